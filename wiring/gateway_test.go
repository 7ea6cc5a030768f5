package wiring

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"google.golang.org/grpc"

	"solver_gateway/config"
	embeddinggrpc "solver_gateway/embedding/grpc"
	embeddingmock "solver_gateway/embedding/mock"
	"solver_gateway/errs"
	generationgrpc "solver_gateway/generation/grpc"
	generationmock "solver_gateway/generation/mock"
	"solver_gateway/logger"
)

// serveGRPC starts a gRPC server on a loopback port and returns its address.
func serveGRPC(t *testing.T, register func(*grpc.Server)) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	gs := grpc.NewServer()
	register(gs)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)
	return lis.Addr().String()
}

func localConfig(embeddingAddr, generationAddr string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Listen:          ":0",
			AllowedOrigins:  []string{"*"},
			MaxBodyBytes:    1 << 16,
			ShutdownTimeout: time.Second,
		},
		Log: config.LogConfig{Level: "ERROR", Format: "text"},
		Policy: config.PolicyConfig{
			SimilarityThreshold: 0.95,
			DailyFreeLimit:      5,
			UpstreamTimeout:     5 * time.Second,
			StoreTimeout:        time.Second,
		},
		Embedding: config.EmbeddingConfig{
			Backend:     "grpc",
			Model:       "test",
			Dimensions:  3,
			GRPCAddress: embeddingAddr,
		},
		Generation: config.GenerationConfig{
			Backend:        "grpc",
			Model:          "test",
			PromptTemplate: "%s",
			MaxTokens:      16,
			GRPCAddress:    generationAddr,
		},
		Store:  config.StoreConfig{Backend: "memory", MemoryCapacity: 10},
		Ledger: config.LedgerConfig{Backend: "memory", AutoProvision: true},
		Identity: config.IdentityConfig{
			Backend:      "static",
			StaticTokens: map[string]string{"tok": "acct-1"},
		},
		Bookkeeping: config.BookkeepingConfig{Workers: 1, QueueSize: 10, TaskTimeout: time.Second},
	}
}

func ask(t *testing.T, h http.Handler, question string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/answer", strings.NewReader(`{"question":"`+question+`"}`))
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestBuildServesAnswersThroughRemoteBackends(t *testing.T) {
	ctrl := gomock.NewController(t)
	embedder := embeddingmock.NewMockService(ctrl)
	generator := generationmock.NewMockService(ctrl)

	embedder.EXPECT().Get(gomock.Any(), "what is 2+2").Return([]float32{1, 0, 0}, nil).Times(2)
	generator.EXPECT().Generate(gomock.Any(), "what is 2+2").Return("4", nil).Times(1)

	log := logger.Discard()
	embeddingAddr := serveGRPC(t, embeddinggrpc.NewServer(embedder, log).Register)
	generationAddr := serveGRPC(t, generationgrpc.NewServer(generator, log).Register)

	gw, err := Build(context.Background(), localConfig(embeddingAddr, generationAddr), log)
	require.NoError(t, err)
	defer func() { assert.NoError(t, gw.Close()) }()

	status, body := ask(t, gw.Handler, "what is 2+2")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "4", body["answer"])
	assert.Equal(t, false, body["cached"])

	status, body = ask(t, gw.Handler, "what is 2+2")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "4", body["answer"])
	assert.Equal(t, true, body["cached"])
}

func TestBuildRejectsUnknownBackends(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"store", func(c *config.Config) { c.Store.Backend = "cassandra" }},
		{"ledger", func(c *config.Config) { c.Ledger.Backend = "etcd" }},
		{"embedding", func(c *config.Config) { c.Embedding.Backend = "word2vec" }},
		{"generation", func(c *config.Config) { c.Generation.Backend = "eliza" }},
		{"identity", func(c *config.Config) { c.Identity.Backend = "ldap" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := localConfig("127.0.0.1:1", "127.0.0.1:1")
			tt.mutate(cfg)

			gw, err := Build(context.Background(), cfg, logger.Discard())
			assert.Nil(t, gw)
			assert.True(t, errs.HasCode(err, errs.CodeConfigInvalid), "got %v", err)
		})
	}
}

func TestGeminiEmbedderRequiresKey(t *testing.T) {
	t.Setenv("SOLVER_TEST_MISSING_KEY", "")

	_, closer, err := Embedder(context.Background(), config.EmbeddingConfig{
		Backend:    "gemini",
		Model:      "text-embedding-004",
		Dimensions: 768,
		APIKeyEnv:  "SOLVER_TEST_MISSING_KEY",
	}, logger.Discard())

	assert.True(t, errs.HasCode(err, errs.CodeConfigInvalid))
	assert.NoError(t, closer())
}

func TestStaticTokensSeedMemoryLedger(t *testing.T) {
	ctrl := gomock.NewController(t)
	embedder := embeddingmock.NewMockService(ctrl)
	generator := generationmock.NewMockService(ctrl)
	embedder.EXPECT().Get(gomock.Any(), "q").Return([]float32{0, 1, 0}, nil)
	generator.EXPECT().Generate(gomock.Any(), "q").Return("a", nil)

	log := logger.Discard()
	cfg := localConfig(
		serveGRPC(t, embeddinggrpc.NewServer(embedder, log).Register),
		serveGRPC(t, generationgrpc.NewServer(generator, log).Register),
	)
	cfg.Ledger.AutoProvision = false
	require.NoError(t, cfg.Validate())

	gw, err := Build(context.Background(), cfg, log)
	require.NoError(t, err)
	defer func() { assert.NoError(t, gw.Close()) }()

	status, body := ask(t, gw.Handler, "q")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "a", body["answer"])
}
