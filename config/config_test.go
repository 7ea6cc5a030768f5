package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solver_gateway/config"
	"solver_gateway/errs"
)

func setMinimalEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SOLVER_IDENTITY_JWT_SECRET", "test-secret")
	t.Setenv("SOLVER_POSTGRES_URL", "postgres://localhost:5432/solver")
}

func TestLoadDefaults(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 0.95, cfg.Policy.SimilarityThreshold)
	assert.Equal(t, 5, cfg.Policy.DailyFreeLimit)
	assert.Equal(t, 30*time.Second, cfg.Policy.UpstreamTimeout)
	assert.Equal(t, 5*time.Second, cfg.Policy.StoreTimeout)
	assert.Equal(t, "gemini", cfg.Embedding.Backend)
	assert.Equal(t, 768, cfg.Embedding.Dimensions)
	assert.Equal(t, "Solve this step-by-step: %s", cfg.Generation.PromptTemplate)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "qdrant", cfg.Store.Backend)
	assert.Equal(t, ":50052", cfg.Store.ServeAddr)
	assert.Equal(t, "postgres", cfg.Ledger.Backend)
	assert.Equal(t, 4, cfg.Bookkeeping.Workers)
}

func TestLoadEnvOverrides(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv("SOLVER_POLICY_SIMILARITY_THRESHOLD", "0.9")
	t.Setenv("SOLVER_POLICY_DAILY_FREE_LIMIT", "10")
	t.Setenv("SOLVER_POLICY_UPSTREAM_TIMEOUT", "2s")
	t.Setenv("SOLVER_STORE_BACKEND", "memory")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 0.9, cfg.Policy.SimilarityThreshold)
	assert.Equal(t, 10, cfg.Policy.DailyFreeLimit)
	assert.Equal(t, 2*time.Second, cfg.Policy.UpstreamTimeout)
	assert.Equal(t, "memory", cfg.Store.Backend)
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("SOLVER_IDENTITY_JWT_SECRET", "test-secret")

	path := filepath.Join(t.TempDir(), "solver.yaml")
	body := []byte(`
store:
  backend: sqlite
  sqlite_path: /tmp/solver.db
ledger:
  backend: redis
  redis_addr: redis:6379
policy:
  daily_free_limit: 3
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "/tmp/solver.db", cfg.Store.SQLitePath)
	assert.Equal(t, "redis", cfg.Ledger.Backend)
	assert.Equal(t, "redis:6379", cfg.Ledger.RedisAddr)
	assert.Equal(t, 3, cfg.Policy.DailyFreeLimit)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"threshold above one", "SOLVER_POLICY_SIMILARITY_THRESHOLD", "1.5"},
		{"negative free limit", "SOLVER_POLICY_DAILY_FREE_LIMIT", "-1"},
		{"unknown store backend", "SOLVER_STORE_BACKEND", "mongo"},
		{"unknown generation backend", "SOLVER_GENERATION_BACKEND", "cohere"},
		{"zero dimensions", "SOLVER_EMBEDDING_DIMENSIONS", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setMinimalEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := config.Load("")
			require.Error(t, err)
			assert.True(t, errs.HasCode(err, errs.CodeConfigInvalid))
		})
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("SOLVER_POSTGRES_URL", "postgres://localhost:5432/solver")
	t.Setenv("SOLVER_IDENTITY_JWT_SECRET", "")

	_, err := config.Load("")
	require.Error(t, err)
}

func TestLoadRequiresPostgresURLForPostgresBackends(t *testing.T) {
	t.Setenv("SOLVER_IDENTITY_JWT_SECRET", "test-secret")
	t.Setenv("SOLVER_POSTGRES_URL", "")

	_, err := config.Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres.url")
}

func TestLoadMissingFile(t *testing.T) {
	setMinimalEnv(t)

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeConfigInvalid))
}

func TestLoadRejectsMemoryLedgerWithoutAccountSource(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv("SOLVER_LEDGER_BACKEND", "memory")
	t.Setenv("SOLVER_LEDGER_AUTO_PROVISION", "false")

	_, err := config.Load("")
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeConfigInvalid))
	assert.Contains(t, err.Error(), "auto_provision")

	t.Setenv("SOLVER_LEDGER_AUTO_PROVISION", "true")
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Ledger.AutoProvision)
}
