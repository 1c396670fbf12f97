package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-ops/internal/appointment"
)

// ReconcileLoop rebuilds slot availability once immediately and then every
// interval until ctx is done.
func ReconcileLoop(ctx context.Context, svc *appointment.Service, interval time.Duration, logger zerolog.Logger) {
	runOnce(ctx, svc, logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("stopping availability reconciliation")
			return
		case <-ticker.C:
			runOnce(ctx, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	stats, err := svc.ReconcileAvailability(runCtx, start.UTC())
	if err != nil {
		logger.Error().Err(err).Msg("reconcile run error")
		return
	}
	logger.Info().
		Int("slots", stats.Slots).
		Int("freed", stats.Freed).
		Int("occupied", stats.Occupied).
		Dur("took", time.Since(start)).
		Msg("reconcile run complete")
}
