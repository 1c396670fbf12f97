package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-ops/internal/app"
	"github.com/hackgods/clinic-ops/internal/config"
	"github.com/hackgods/clinic-ops/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.Env, "reconcile-worker")

	// memory and sqlite state belongs to the api-server process, which
	// reconciles it in-process
	if cfg.StoreDriver != config.StorePostgres {
		logger.Fatal().Str("store", cfg.StoreDriver).Msg("reconcile-worker requires STORE_DRIVER=postgres")
	}
	logger.Info().Dur("interval", cfg.WorkerInterval).Msg("reconcile worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.Open(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer func() { _ = rt.Close() }()

	app.ReconcileLoop(rootCtx, rt.Services().Appointments, cfg.WorkerInterval, logger)
}
