package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/hackgods/clinic-ops/internal/domain"
	"github.com/hackgods/clinic-ops/internal/metrics"
	"github.com/hackgods/clinic-ops/internal/scheduling"
	"github.com/hackgods/clinic-ops/internal/store"
)

type ReconcileStats struct {
	Slots    int
	Freed    int
	Occupied int
}

// ReconcileAvailability rebuilds every slot's IsAvailable flag as "free on
// the slot's next occurrence on or after from". It is intended to be called by
// the worker periodically.
func (s *Service) ReconcileAvailability(ctx context.Context, from time.Time) (ReconcileStats, error) {
	var stats ReconcileStats
	err := s.store.Update(ctx, func(tx store.Tx) error {
		stats = ReconcileStats{}
		schedules, err := tx.ListSchedules(ctx)
		if err != nil {
			return fmt.Errorf("list schedules: %w", err)
		}
		for _, sched := range schedules {
			next := domain.NextOccurrence(sched.DayOfWeek, from)
			slots, err := tx.ListTimeSlots(ctx, sched.ID)
			if err != nil {
				return fmt.Errorf("list slots: %w", err)
			}
			for _, slot := range slots {
				stats.Slots++
				free, err := scheduling.IsFree(ctx, tx, slot.ID, next, 0)
				if err != nil {
					return err
				}
				if slot.IsAvailable == free {
					continue
				}
				slot.IsAvailable = free
				if err := tx.UpdateTimeSlot(ctx, slot); err != nil {
					return fmt.Errorf("update slot %d: %w", slot.ID, err)
				}
				if free {
					stats.Freed++
				} else {
					stats.Occupied++
				}
			}
		}
		return nil
	})
	metrics.RecordReconcile(err == nil)
	if err != nil {
		return ReconcileStats{}, err
	}

	s.log.Debug().
		Int("slots", stats.Slots).
		Int("freed", stats.Freed).
		Int("occupied", stats.Occupied).
		Msg("availability reconciled")
	return stats, nil
}
