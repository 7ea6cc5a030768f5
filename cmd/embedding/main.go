package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"solver_gateway/config"
	embeddinggrpc "solver_gateway/embedding/grpc"
	"solver_gateway/errs"
	"solver_gateway/logger"
	"solver_gateway/wiring"
)

func main() {
	cmd := &cobra.Command{
		Use:           "embedding",
		Short:         "Serve the configured embedding backend over gRPC",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	cmd.Flags().StringP("config", "c", "", "path to config file")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if cfg.Embedding.Backend == "grpc" {
		return errs.New(errs.CodeConfigInvalid, "embedding server needs a local backend, not grpc")
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, closeSvc, err := wiring.Embedder(ctx, cfg.Embedding, log)
	if err != nil {
		return err
	}
	defer closeSvc()

	log.Info("serving embeddings", "backend", cfg.Embedding.Backend, "model", cfg.Embedding.Model)
	return wiring.ServeGRPC(ctx, cfg.Embedding.ServeAddr, embeddinggrpc.NewServer(svc, log).Register, log)
}
