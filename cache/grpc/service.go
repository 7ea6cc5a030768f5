package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The similarity store travels as well-known types: queries and records are
// Structs, matches a ListValue of Structs, record ids StringValues.
const (
	serviceName        = "solver.cache.v1.SimilarityStore"
	findSimilarMethod  = "/" + serviceName + "/FindSimilar"
	insertMethod       = "/" + serviceName + "/Insert"
	incrementHitMethod = "/" + serviceName + "/IncrementHit"
)

// Struct field names.
const (
	fieldEmbedding = "embedding"
	fieldThreshold = "threshold"
	fieldLimit     = "limit"
	fieldID        = "id"
	fieldQuestion  = "question"
	fieldAnswer    = "answer"
	fieldScore     = "score"
)

type storeServer interface {
	FindSimilar(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error)
	Insert(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error)
	IncrementHit(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*storeServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "FindSimilar",
			Handler: unaryHandler(findSimilarMethod, func(srv storeServer, ctx context.Context, in *structpb.Struct) (any, error) {
				return srv.FindSimilar(ctx, in)
			}),
		},
		{
			MethodName: "Insert",
			Handler: unaryHandler(insertMethod, func(srv storeServer, ctx context.Context, in *structpb.Struct) (any, error) {
				return srv.Insert(ctx, in)
			}),
		},
		{
			MethodName: "IncrementHit",
			Handler: unaryHandler(incrementHitMethod, func(srv storeServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
				return srv.IncrementHit(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "solver/cache/v1/cache.proto",
}

// unaryHandler adapts a typed method to grpc.MethodDesc's handler shape.
func unaryHandler[Req any, PReq interface {
	*Req
}](fullMethod string, call func(storeServer, context.Context, PReq) (any, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(storeServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(storeServer), ctx, req.(PReq))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func listFromVector(vector []float32) *structpb.Value {
	values := make([]*structpb.Value, len(vector))
	for i, v := range vector {
		values[i] = structpb.NewNumberValue(float64(v))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

func vectorFromList(list *structpb.ListValue) ([]float32, error) {
	vector := make([]float32, len(list.GetValues()))
	for i, v := range list.GetValues() {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("element %d is not a number", i)
		}
		vector[i] = float32(n.NumberValue)
	}
	return vector, nil
}
