package app

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-ops/internal/appointment"
	"github.com/hackgods/clinic-ops/internal/config"
	redisclient "github.com/hackgods/clinic-ops/internal/redis"
	"github.com/hackgods/clinic-ops/internal/store"
	"github.com/hackgods/clinic-ops/internal/store/storetest"
)

func TestReconcileLoopRunsUntilCancelled(t *testing.T) {
	c := storetest.NewClinic(t)
	ctx := context.Background()

	// mark every slot taken so the first run has something to free
	require.NoError(t, c.Store.Update(ctx, func(tx store.Tx) error {
		for _, s := range c.Slots {
			s.IsAvailable = false
			if err := tx.UpdateTimeSlot(ctx, s); err != nil {
				return err
			}
		}
		return nil
	}))

	svc := appointment.NewService(c.Store, redisclient.NewLocalLocker(time.Second),
		config.Config{DefaultFee: decimal.NewFromInt(50)}, zerolog.Nop())

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		ReconcileLoop(loopCtx, svc, time.Hour, zerolog.Nop())
		close(done)
	}()

	require.Eventually(t, func() bool {
		var free int
		_ = c.Store.View(ctx, func(r store.Reader) error {
			slots, _ := r.ListTimeSlots(ctx, c.MondaySchedule.ID)
			for _, s := range slots {
				if s.IsAvailable {
					free++
				}
			}
			return nil
		})
		return free == len(c.Slots)
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}
