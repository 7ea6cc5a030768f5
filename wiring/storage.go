package wiring

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"solver_gateway/cache"
	cachegrpc "solver_gateway/cache/grpc"
	cachememory "solver_gateway/cache/memory"
	cachepostgres "solver_gateway/cache/postgres"
	"solver_gateway/cache/qdrant"
	"solver_gateway/cache/sqlite"
	"solver_gateway/config"
	"solver_gateway/errs"
	"solver_gateway/identity"
	"solver_gateway/quota"
	quotamemory "solver_gateway/quota/memory"
	quotapostgres "solver_gateway/quota/postgres"
	quotaredis "solver_gateway/quota/redis"
)

// connectPostgres opens the shared pool used by the postgres store and
// ledger, or returns nil when neither is configured.
func connectPostgres(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if cfg.Store.Backend != "postgres" && cfg.Ledger.Backend != "postgres" {
		return nil, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.URL)
	if err != nil {
		return nil, errs.Wrapf(err, errs.CodeConfigInvalid, "fail to parse postgres url")
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errs.Wrapf(err, errs.CodeStoreUnavailable, "fail to create postgres pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.Wrapf(err, errs.CodeStoreUnavailable, "fail to reach postgres")
	}
	return pool, nil
}

// Store builds the configured similarity store on its own, opening a
// postgres pool when the backend needs one.
func Store(ctx context.Context, cfg *config.Config, log *slog.Logger) (cache.Store, func() error, error) {
	var pool *pgxpool.Pool
	if cfg.Store.Backend == "postgres" {
		var err error
		if pool, err = connectPostgres(ctx, cfg); err != nil {
			return nil, nop, err
		}
	}

	store, closeStore, err := similarityStore(ctx, cfg, pool, log)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, nop, err
	}
	if pool == nil {
		return store, closeStore, nil
	}
	return store, func() error {
		err := closeStore()
		pool.Close()
		return err
	}, nil
}

func similarityStore(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, log *slog.Logger) (cache.Store, func() error, error) {
	dims := cfg.Embedding.Dimensions

	switch cfg.Store.Backend {
	case "qdrant":
		q := cfg.Store.Qdrant
		s, err := qdrant.New(ctx, q.Host, q.Port, q.Collection, dims, log)
		if err != nil {
			return nil, nop, err
		}
		return s, s.Close, nil
	case "postgres":
		s := cachepostgres.New(pool, dims)
		check := s.CheckSchema
		if cfg.Postgres.EnsureSchema {
			check = s.EnsureSchema
		}
		if err := check(ctx); err != nil {
			return nil, nop, err
		}
		return s, nop, nil
	case "sqlite":
		s, err := sqlite.New(cfg.Store.SQLitePath, dims)
		if err != nil {
			return nil, nop, err
		}
		return s, s.Close, nil
	case "grpc":
		client, err := cachegrpc.NewClient(cfg.Store.GRPCAddress)
		if err != nil {
			return nil, nop, err
		}
		log.Info("using remote similarity store", "address", cfg.Store.GRPCAddress)
		return client, client.Close, nil
	case "memory":
		log.Warn("cached answers are kept in memory and lost on restart", "capacity", cfg.Store.MemoryCapacity)
		return cachememory.New(cfg.Store.MemoryCapacity, dims), nop, nil
	default:
		return nil, nop, errs.Errorf(errs.CodeConfigInvalid, "unknown store backend %q", cfg.Store.Backend)
	}
}

func quotaLedger(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, log *slog.Logger) (quota.Ledger, func() error, error) {
	switch cfg.Ledger.Backend {
	case "postgres":
		l := quotapostgres.New(pool)
		if cfg.Postgres.EnsureSchema {
			if err := l.EnsureSchema(ctx); err != nil {
				return nil, nop, err
			}
		}
		return l, nop, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Ledger.RedisAddr,
			Password: cfg.Ledger.RedisPassword,
			DB:       cfg.Ledger.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nop, errs.Wrapf(err, errs.CodeStoreUnavailable, "fail to reach redis at %s", cfg.Ledger.RedisAddr)
		}
		return quotaredis.New(client), client.Close, nil
	case "memory":
		log.Warn("quota ledger is kept in memory and lost on restart", "auto_provision", cfg.Ledger.AutoProvision)
		l := quotamemory.New(quotamemory.Options{AutoProvision: cfg.Ledger.AutoProvision})
		if cfg.Identity.Backend == "static" {
			seedStaticAccounts(l, cfg.Identity.StaticTokens)
		}
		return l, nop, nil
	default:
		return nil, nop, errs.Errorf(errs.CodeConfigInvalid, "unknown ledger backend %q", cfg.Ledger.Backend)
	}
}

// seedStaticAccounts creates a free account for every account id a static
// token resolves to.
func seedStaticAccounts(l *quotamemory.Ledger, tokens map[string]string) {
	for _, accountID := range tokens {
		l.Put(quota.Account{ID: accountID, Tier: quota.TierFree})
	}
}

func resolver(cfg config.IdentityConfig) (identity.Resolver, error) {
	switch cfg.Backend {
	case "jwt":
		return identity.NewJWT(cfg.JWTSecret, cfg.Issuer, cfg.Audience), nil
	case "static":
		return identity.NewStatic(cfg.StaticTokens), nil
	default:
		return nil, errs.Errorf(errs.CodeConfigInvalid, "unknown identity backend %q", cfg.Backend)
	}
}
