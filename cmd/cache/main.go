package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	cachegrpc "solver_gateway/cache/grpc"
	"solver_gateway/config"
	"solver_gateway/errs"
	"solver_gateway/logger"
	"solver_gateway/wiring"
)

func main() {
	cmd := &cobra.Command{
		Use:           "cache",
		Short:         "Serve the configured similarity store over gRPC",
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
	if cfg.Store.Backend == "grpc" {
		return errs.New(errs.CodeConfigInvalid, "cache server needs a local store backend, not grpc")
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := wiring.Store(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error("fail to close store", "error", err)
		}
	}()

	log.Info("serving similarity store", "backend", cfg.Store.Backend)
	return wiring.ServeGRPC(ctx, cfg.Store.ServeAddr, cachegrpc.NewServer(store, log).Register, log)
}
