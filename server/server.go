package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"

	"solver_gateway/metrics"
	"solver_gateway/orchestrator"
)

// Answerer is the answer pipeline the HTTP surface fronts.
type Answerer interface {
	AnswerQuestion(ctx context.Context, req orchestrator.Request) (orchestrator.Result, error)
}

type Options struct {
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxBodyBytes   int64
}

// Answer routes. The second keeps the extension's existing function URL working.
const (
	AnswerPath      = "/v1/answer"
	LegacyProxyPath = "/functions/v1/ai-proxy"
)

// New builds the gateway's HTTP handler: a gin engine behind CORS.
func New(answerer Answerer, m *metrics.Metrics, log *slog.Logger, opts Options) http.Handler {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery(), requestID(), accessLog(log))

	h := &handler{answerer: answerer, log: log, maxBodyBytes: opts.MaxBodyBytes}

	limited := engine.Group("/", rateLimit(newIPLimiter(opts.RateLimitRPS, opts.RateLimitBurst)))
	limited.POST(AnswerPath, h.answer)
	limited.POST(LegacyProxyPath, h.answer)

	engine.GET("/healthz", h.health)
	engine.GET("/metrics", gin.WrapH(m.Handler()))

	// Preflight and bare OPTIONS requests get an empty 200. CORS headers are
	// already set by the wrapper below.
	engine.OPTIONS("/*path", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	return corsMiddleware(opts.AllowedOrigins)(engine)
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:     origins,
		AllowedMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:     []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type", "X-Request-ID"},
		ExposedHeaders:     []string{"X-Request-ID"},
		MaxAge:             86400,
		OptionsPassthrough: true,
	})
}
