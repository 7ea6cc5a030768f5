package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"solver_gateway/errs"
)

// Client implements embedding.Service against a remote embedding server.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient connects to address. Extra options are applied after the
// default insecure transport credentials.
func NewClient(address string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, errs.Wrapf(err, errs.CodeConfigInvalid, "failed to connect to embedding service")
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Get(ctx context.Context, text string) ([]float32, error) {
	resp := new(structpb.ListValue)
	if err := c.conn.Invoke(ctx, getEmbeddingMethod, wrapperspb.String(text), resp); err != nil {
		return nil, errs.Upstream(err, errs.UpstreamEmbedding, "failed to get embedding")
	}

	vector := make([]float32, len(resp.GetValues()))
	for i, v := range resp.GetValues() {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, errs.Upstream(fmt.Errorf("element %d is not a number", i),
				errs.UpstreamEmbedding, "malformed embedding response")
		}
		vector[i] = float32(n.NumberValue)
	}
	return vector, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
