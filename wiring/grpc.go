package wiring

import (
	"context"
	"log/slog"
	"net"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"solver_gateway/errs"
)

// ServeGRPC listens on addr and serves the registered services until ctx is
// done, then stops gracefully.
func ServeGRPC(ctx context.Context, addr string, register func(*grpc.Server), log *slog.Logger) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return errs.Wrapf(err, errs.CodeConfigInvalid, "fail to listen on %s", addr)
	}
	return serveListener(ctx, lis, register, log)
}

func serveListener(ctx context.Context, lis net.Listener, register func(*grpc.Server), log *slog.Logger) error {
	gs := grpc.NewServer()
	register(gs)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("grpc server listening", "addr", lis.Addr().String())
		return gs.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("stopping grpc server")
		gs.GracefulStop()
		return nil
	})
	return g.Wait()
}
