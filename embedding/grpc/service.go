package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The embedding service speaks protobuf well-known types so that no generated
// code is needed: the question travels as a StringValue and the vector comes
// back as a ListValue of numbers.
const (
	serviceName        = "solver.embedding.v1.EmbeddingService"
	getEmbeddingMethod = "/" + serviceName + "/GetEmbedding"
)

type embeddingServer interface {
	GetEmbedding(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*embeddingServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetEmbedding",
			Handler:    getEmbeddingHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "solver/embedding/v1/embedding.proto",
}

func getEmbeddingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(embeddingServer).GetEmbedding(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: getEmbeddingMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(embeddingServer).GetEmbedding(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}
