package grpc

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"solver_gateway/cache"
	"solver_gateway/errs"
)

// Server exposes a cache.Store over gRPC so several gateways can share one
// similarity store.
type Server struct {
	store cache.Store
	log   *slog.Logger
}

func NewServer(store cache.Store, log *slog.Logger) *Server {
	return &Server{
		store: store,
		log:   log,
	}
}

func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

func (s *Server) FindSimilar(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	fields := req.GetFields()
	embedding, err := vectorFromList(fields[fieldEmbedding].GetListValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	threshold := float32(fields[fieldThreshold].GetNumberValue())
	limit := int(fields[fieldLimit].GetNumberValue())
	if limit <= 0 {
		return nil, status.Error(codes.InvalidArgument, "limit must be positive")
	}

	matches, err := s.store.FindSimilar(ctx, embedding, threshold, limit)
	if err != nil {
		return nil, s.statusOf("similarity search failed", err)
	}

	values := make([]*structpb.Value, len(matches))
	for i, m := range matches {
		values[i] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			fieldID:     structpb.NewStringValue(m.ID),
			fieldScore:  structpb.NewNumberValue(float64(m.Score)),
			fieldAnswer: structpb.NewStringValue(m.Answer),
		}})
	}
	return &structpb.ListValue{Values: values}, nil
}

func (s *Server) Insert(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	fields := req.GetFields()
	embedding, err := vectorFromList(fields[fieldEmbedding].GetListValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	id, err := s.store.Insert(ctx, cache.CachedQuestion{
		ID:           fields[fieldID].GetStringValue(),
		QuestionText: fields[fieldQuestion].GetStringValue(),
		Embedding:    embedding,
		Answer:       fields[fieldAnswer].GetStringValue(),
	})
	if err != nil {
		return nil, s.statusOf("insert failed", err)
	}
	return wrapperspb.String(id), nil
}

func (s *Server) IncrementHit(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.store.IncrementHit(ctx, req.GetValue()); err != nil {
		return nil, s.statusOf("hit increment failed", err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) statusOf(msg string, err error) error {
	s.log.Error(msg, "error", err)
	if errs.HasCode(err, errs.CodeConfigInvalid) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Error(codes.Unavailable, err.Error())
}
