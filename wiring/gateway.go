package wiring

import (
	"context"
	"log/slog"
	"net/http"

	"solver_gateway/bookkeeping"
	"solver_gateway/config"
	"solver_gateway/errs"
	"solver_gateway/metrics"
	"solver_gateway/orchestrator"
	"solver_gateway/server"
)

// Gateway is the assembled answer service and the resources it owns.
type Gateway struct {
	Handler http.Handler
	Metrics *metrics.Metrics
	Pool    *bookkeeping.Pool

	closers []func() error
}

// Build wires every backend named in cfg into the HTTP handler. On error,
// anything already opened is released.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger) (gw *Gateway, err error) {
	gw = &Gateway{}
	defer func() {
		if err != nil {
			_ = gw.Close()
			gw = nil
		}
	}()

	pgPool, err := connectPostgres(ctx, cfg)
	if err != nil {
		return gw, err
	}
	if pgPool != nil {
		gw.closers = append(gw.closers, func() error { pgPool.Close(); return nil })
	}

	store, closeStore, err := similarityStore(ctx, cfg, pgPool, log)
	if err != nil {
		return gw, err
	}
	gw.closers = append(gw.closers, closeStore)

	ledger, closeLedger, err := quotaLedger(ctx, cfg, pgPool, log)
	if err != nil {
		return gw, err
	}
	gw.closers = append(gw.closers, closeLedger)

	embedder, closeEmbedder, err := Embedder(ctx, cfg.Embedding, log)
	if err != nil {
		return gw, err
	}
	gw.closers = append(gw.closers, closeEmbedder)

	generator, closeGenerator, err := Generator(ctx, cfg.Generation, log)
	if err != nil {
		return gw, err
	}
	gw.closers = append(gw.closers, closeGenerator)

	res, err := resolver(cfg.Identity)
	if err != nil {
		return gw, err
	}

	gw.Metrics = metrics.New()
	gw.Pool = bookkeeping.New(
		cfg.Bookkeeping.QueueSize,
		cfg.Bookkeeping.Workers,
		cfg.Bookkeeping.TaskTimeout,
		log,
		gw.Metrics.BookkeepingObserver,
	)

	svc := orchestrator.New(res, ledger, embedder, store, generator, gw.Pool, gw.Metrics, log, orchestrator.Policy{
		SimilarityThreshold: float32(cfg.Policy.SimilarityThreshold),
		DailyFreeLimit:      cfg.Policy.DailyFreeLimit,
		UpstreamTimeout:     cfg.Policy.UpstreamTimeout,
		StoreTimeout:        cfg.Policy.StoreTimeout,
	})

	gw.Handler = server.New(svc, gw.Metrics, log, server.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
	})

	log.Info("gateway wired",
		"store", cfg.Store.Backend,
		"ledger", cfg.Ledger.Backend,
		"embedding", cfg.Embedding.Backend,
		"generation", cfg.Generation.Backend,
		"identity", cfg.Identity.Backend,
	)
	return gw, nil
}

// Close drains pending bookkeeping, then releases backends in reverse
// order of creation.
func (gw *Gateway) Close() error {
	if gw.Pool != nil {
		gw.Pool.Shutdown()
	}

	var closeErrs []error
	for i := len(gw.closers) - 1; i >= 0; i-- {
		if err := gw.closers[i](); err != nil {
			closeErrs = append(closeErrs, err)
		}
	}
	if len(closeErrs) == 0 {
		return nil
	}
	return errs.Join(closeErrs...)
}
