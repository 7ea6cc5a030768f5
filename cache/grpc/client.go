package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"solver_gateway/cache"
	"solver_gateway/errs"
)

// Client implements cache.Store against a remote similarity store server.
type Client struct {
	conn *grpc.ClientConn
}

func NewClient(address string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, errs.Wrapf(err, errs.CodeConfigInvalid, "fail to connect to cache service")
	}
	return &Client{conn: conn}, nil
}

func (c *Client) FindSimilar(ctx context.Context, embedding []float32, threshold float32, limit int) ([]cache.Match, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldEmbedding: listFromVector(embedding),
		fieldThreshold: structpb.NewNumberValue(float64(threshold)),
		fieldLimit:     structpb.NewNumberValue(float64(limit)),
	}}
	resp := new(structpb.ListValue)
	if err := c.conn.Invoke(ctx, findSimilarMethod, req, resp); err != nil {
		return nil, wrapRemote(err, "fail to search remote cache")
	}

	matches := make([]cache.Match, 0, len(resp.GetValues()))
	for _, v := range resp.GetValues() {
		fields := v.GetStructValue().GetFields()
		matches = append(matches, cache.Match{
			ID:     fields[fieldID].GetStringValue(),
			Score:  float32(fields[fieldScore].GetNumberValue()),
			Answer: fields[fieldAnswer].GetStringValue(),
		})
	}
	return matches, nil
}

func (c *Client) Insert(ctx context.Context, item cache.CachedQuestion) (string, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldID:        structpb.NewStringValue(item.ID),
		fieldQuestion:  structpb.NewStringValue(item.QuestionText),
		fieldEmbedding: listFromVector(item.Embedding),
		fieldAnswer:    structpb.NewStringValue(item.Answer),
	}}
	resp := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, insertMethod, req, resp); err != nil {
		return "", wrapRemote(err, "fail to insert into remote cache")
	}
	return resp.GetValue(), nil
}

func (c *Client) IncrementHit(ctx context.Context, id string) error {
	if err := c.conn.Invoke(ctx, incrementHitMethod, wrapperspb.String(id), new(emptypb.Empty)); err != nil {
		return wrapRemote(err, "fail to increment remote hit count")
	}
	return nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// wrapRemote keeps dimension mismatches a configuration error on this side
// of the wire; everything else is the store being unavailable.
func wrapRemote(err error, msg string) error {
	if status.Code(err) == codes.InvalidArgument {
		return errs.Wrap(err, errs.CodeConfigInvalid, msg)
	}
	return errs.Wrap(err, errs.CodeStoreUnavailable, msg)
}
