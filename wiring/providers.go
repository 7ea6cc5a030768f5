package wiring

import (
	"context"
	"log/slog"
	"os"

	"solver_gateway/config"
	"solver_gateway/embedding"
	embeddinggemini "solver_gateway/embedding/gemini"
	embeddinggrpc "solver_gateway/embedding/grpc"
	embeddingopenai "solver_gateway/embedding/openai"
	"solver_gateway/errs"
	"solver_gateway/generation"
	"solver_gateway/generation/anthropic"
	generationgemini "solver_gateway/generation/gemini"
	generationgrpc "solver_gateway/generation/grpc"
	generationopenai "solver_gateway/generation/openai"
)

// Embedder builds the configured embedding backend. The returned closer is
// never nil.
func Embedder(ctx context.Context, cfg config.EmbeddingConfig, log *slog.Logger) (embedding.Service, func() error, error) {
	switch cfg.Backend {
	case "gemini":
		svc, err := embeddinggemini.New(ctx, os.Getenv(cfg.APIKeyEnv), cfg.Model, cfg.Dimensions, "")
		if err != nil {
			return nil, nop, err
		}
		return svc, nop, nil
	case "openai":
		return embeddingopenai.New(cfg.Endpoint, cfg.Model, cfg.APIKeyEnv, cfg.Dimensions), nop, nil
	case "grpc":
		client, err := embeddinggrpc.NewClient(cfg.GRPCAddress)
		if err != nil {
			return nil, nop, err
		}
		log.Info("using remote embedding service", "address", cfg.GRPCAddress)
		return client, client.Close, nil
	default:
		return nil, nop, errs.Errorf(errs.CodeConfigInvalid, "unknown embedding backend %q", cfg.Backend)
	}
}

// Generator builds the configured answer generation backend.
func Generator(ctx context.Context, cfg config.GenerationConfig, log *slog.Logger) (generation.Service, func() error, error) {
	switch cfg.Backend {
	case "gemini":
		svc, err := generationgemini.New(ctx, generationgemini.Config{
			APIKey:         os.Getenv(cfg.APIKeyEnv),
			Model:          cfg.Model,
			PromptTemplate: cfg.PromptTemplate,
			MaxTokens:      cfg.MaxTokens,
			Temperature:    cfg.Temperature,
		})
		if err != nil {
			return nil, nop, err
		}
		return svc, nop, nil
	case "anthropic":
		svc, err := anthropic.New(anthropic.Config{
			APIKey:         os.Getenv(cfg.APIKeyEnv),
			Model:          cfg.Model,
			PromptTemplate: cfg.PromptTemplate,
			MaxTokens:      cfg.MaxTokens,
			Temperature:    cfg.Temperature,
		})
		if err != nil {
			return nil, nop, err
		}
		return svc, nop, nil
	case "openai":
		return generationopenai.New(generationopenai.Config{
			Endpoint:       cfg.Endpoint,
			APIKeyEnv:      cfg.APIKeyEnv,
			Model:          cfg.Model,
			PromptTemplate: cfg.PromptTemplate,
			MaxTokens:      cfg.MaxTokens,
			Temperature:    cfg.Temperature,
		}, log), nop, nil
	case "grpc":
		client, err := generationgrpc.NewClient(cfg.GRPCAddress)
		if err != nil {
			return nil, nop, err
		}
		log.Info("using remote generation service", "address", cfg.GRPCAddress)
		return client, client.Close, nil
	default:
		return nil, nop, errs.Errorf(errs.CodeConfigInvalid, "unknown generation backend %q", cfg.Backend)
	}
}

func nop() error { return nil }
