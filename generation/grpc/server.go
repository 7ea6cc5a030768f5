package grpc

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"solver_gateway/generation"
	"solver_gateway/logger"
)

// Server exposes a generation.Service over gRPC.
type Server struct {
	generationService generation.Service
	log               *slog.Logger
}

func NewServer(generationService generation.Service, log *slog.Logger) *Server {
	return &Server{
		generationService: generationService,
		log:               log,
	}
}

func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

func (s *Server) Generate(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "question must not be empty")
	}

	answer, err := s.generationService.Generate(ctx, req.GetValue())
	if err != nil {
		s.log.Error("generation request failed", "error", err, "question", logger.Preview(req.GetValue(), 40))
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	return wrapperspb.String(answer), nil
}
