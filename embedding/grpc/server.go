package grpc

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"solver_gateway/embedding"
)

// Server exposes an embedding.Service over gRPC.
type Server struct {
	embeddingService embedding.Service
	log              *slog.Logger
}

func NewServer(embeddingService embedding.Service, log *slog.Logger) *Server {
	return &Server{
		embeddingService: embeddingService,
		log:              log,
	}
}

// Register attaches the embedding service to s.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

func (s *Server) GetEmbedding(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "text must not be empty")
	}

	vector, err := s.embeddingService.Get(ctx, req.GetValue())
	if err != nil {
		s.log.Error("embedding request failed", "error", err)
		return nil, status.Error(codes.Unavailable, err.Error())
	}

	values := make([]*structpb.Value, len(vector))
	for i, v := range vector {
		values[i] = structpb.NewNumberValue(float64(v))
	}
	return &structpb.ListValue{Values: values}, nil
}
