package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"solver_gateway/config"
	"solver_gateway/errs"
	generationgrpc "solver_gateway/generation/grpc"
	"solver_gateway/logger"
	"solver_gateway/wiring"
)

func main() {
	cmd := &cobra.Command{
		Use:           "generation",
		Short:         "Serve the configured answer generator over gRPC",
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
	if cfg.Generation.Backend == "grpc" {
		return errs.New(errs.CodeConfigInvalid, "generation server needs a local backend, not grpc")
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, closeSvc, err := wiring.Generator(ctx, cfg.Generation, log)
	if err != nil {
		return err
	}
	defer closeSvc()

	log.Info("serving answers", "backend", cfg.Generation.Backend, "model", cfg.Generation.Model)
	return wiring.ServeGRPC(ctx, cfg.Generation.ServeAddr, generationgrpc.NewServer(svc, log).Register, log)
}
