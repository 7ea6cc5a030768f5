package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"solver_gateway/errs"
)

// Client implements generation.Service against a remote generation server.
type Client struct {
	conn *grpc.ClientConn
}

func NewClient(address string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, errs.Wrapf(err, errs.CodeConfigInvalid, "failed to connect to generation service")
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Generate(ctx context.Context, question string) (string, error) {
	resp := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, generateMethod, wrapperspb.String(question), resp); err != nil {
		return "", errs.Upstream(err, errs.UpstreamGeneration, "failed to generate answer")
	}
	if resp.GetValue() == "" {
		return "", errs.New(errs.CodeUpstreamUnavailable, "generation service returned no answer",
			errs.FieldUpstream(errs.UpstreamGeneration))
	}
	return resp.GetValue(), nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
