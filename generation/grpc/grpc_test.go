package grpc

import (
	"context"
	stderrors "errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"solver_gateway/errs"
	"solver_gateway/generation/mock"
	"solver_gateway/logger"
)

func startServer(t *testing.T, svc *mock.MockService) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	NewServer(svc, logger.Discard()).Register(gs)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	client, err := NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRoundTrip(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mock.NewMockService(ctrl)
	svc.EXPECT().Generate(gomock.Any(), "what is 2+2").Return("4", nil)

	answer, err := startServer(t, svc).Generate(context.Background(), "what is 2+2")
	require.NoError(t, err)
	assert.Equal(t, "4", answer)
}

func TestRemoteFailureIsUpstreamUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mock.NewMockService(ctrl)
	svc.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("", stderrors.New("model overloaded"))

	_, err := startServer(t, svc).Generate(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, errs.IsUpstreamUnavailable(err))
	assert.Equal(t, errs.UpstreamGeneration, errs.UpstreamOf(err))
}
