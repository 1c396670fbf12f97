package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-ops/internal/domain"
	"github.com/hackgods/clinic-ops/internal/store"
)

type Service struct {
	store store.Store
	log   zerolog.Logger
}

func NewService(st store.Store, logger zerolog.Logger) *Service {
	return &Service{
		store: st,
		log:   logger.With().Str("component", "scheduling").Logger(),
	}
}

// SlotsForDate answers which of the audiologist's slots exist on date and
// which of them are free.
func (s *Service) SlotsForDate(ctx context.Context, audiologistID int64, date time.Time) ([]SlotAvailability, error) {
	var out []SlotAvailability
	err := s.store.View(ctx, func(r store.Reader) error {
		var err error
		out, err = SlotsForDate(ctx, r, audiologistID, date)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSchedule registers a weekday for an audiologist. An existing schedule
// for the same weekday is returned unchanged.
func (s *Service) CreateSchedule(ctx context.Context, actor domain.Actor, audiologistID int64, weekday time.Weekday) (*domain.Schedule, error) {
	if err := domain.RequireRole(actor, "manage schedules", domain.RoleAdmin); err != nil {
		return nil, err
	}
	if weekday < time.Sunday || weekday > time.Saturday {
		return nil, domain.Invalid("day_of_week", fmt.Sprintf("unknown weekday %d", weekday))
	}

	var out *domain.Schedule
	err := s.store.Update(ctx, func(tx store.Tx) error {
		sched, err := ensureSchedule(ctx, tx, audiologistID, weekday)
		out = sched
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func ensureSchedule(ctx context.Context, tx store.Tx, audiologistID int64, weekday time.Weekday) (*domain.Schedule, error) {
	if _, err := tx.GetAudiologist(ctx, audiologistID); err != nil {
		return nil, err
	}
	existing, err := tx.FindSchedule(ctx, audiologistID, weekday)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrScheduleNotFound) {
		return nil, fmt.Errorf("find schedule: %w", err)
	}
	sched := &domain.Schedule{AudiologistID: audiologistID, DayOfWeek: weekday}
	if err := tx.InsertSchedule(ctx, sched); err != nil {
		return nil, fmt.Errorf("insert schedule: %w", err)
	}
	return sched, nil
}

// GenerateSlots covers each window with consecutive 30 minute slots on the
// schedule. Slots already present with the same start and end are reused, so
// regenerating never duplicates; a new slot that overlaps an existing one is
// rejected.
func (s *Service) GenerateSlots(ctx context.Context, actor domain.Actor, scheduleID int64, windows []domain.Window) ([]domain.TimeSlot, error) {
	if err := domain.RequireRole(actor, "manage schedules", domain.RoleAdmin); err != nil {
		return nil, err
	}
	windows, err := validateWindows(windows)
	if err != nil {
		return nil, err
	}

	var out []domain.TimeSlot
	created := 0
	err = s.store.Update(ctx, func(tx store.Tx) error {
		var n int
		var err error
		out, n, err = generateSlots(ctx, tx, scheduleID, windows)
		created = n
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("schedule_id", scheduleID).
		Int("slots", len(out)).
		Int("created", created).
		Msg("slots generated")
	return out, nil
}

func generateSlots(ctx context.Context, tx store.Tx, scheduleID int64, windows []domain.Window) ([]domain.TimeSlot, int, error) {
	if _, err := tx.GetSchedule(ctx, scheduleID); err != nil {
		return nil, 0, err
	}
	existing, err := tx.ListTimeSlots(ctx, scheduleID)
	if err != nil {
		return nil, 0, fmt.Errorf("list slots: %w", err)
	}
	byKey := make(map[domain.Window]domain.TimeSlot, len(existing))
	for _, sl := range existing {
		byKey[domain.Window{Start: sl.StartTime, End: sl.EndTime}] = sl
	}

	var out []domain.TimeSlot
	created := 0
	for _, w := range SplitWindows(windows) {
		if sl, ok := byKey[w]; ok {
			out = append(out, sl)
			continue
		}
		for _, sl := range existing {
			if w.Start < sl.EndTime && sl.StartTime < w.End {
				return nil, 0, domain.Invalid("windows", fmt.Sprintf("slot %s overlaps existing slot %d (%s)", w, sl.ID, sl.Label()))
			}
		}
		sl := domain.TimeSlot{ScheduleID: scheduleID, StartTime: w.Start, EndTime: w.End, IsAvailable: true}
		if err := tx.InsertTimeSlot(ctx, &sl); err != nil {
			return nil, 0, fmt.Errorf("insert slot %s: %w", w, err)
		}
		byKey[w] = sl
		out = append(out, sl)
		created++
	}
	return out, created, nil
}

// SetupWeek creates schedules for each weekday and fills them with slots, in
// one transaction.
func (s *Service) SetupWeek(ctx context.Context, actor domain.Actor, audiologistID int64, days []time.Weekday, windows []domain.Window) ([]domain.Schedule, error) {
	if err := domain.RequireRole(actor, "manage schedules", domain.RoleAdmin); err != nil {
		return nil, err
	}
	windows, err := validateWindows(windows)
	if err != nil {
		return nil, err
	}

	var out []domain.Schedule
	err = s.store.Update(ctx, func(tx store.Tx) error {
		out = out[:0]
		for _, day := range days {
			sched, err := ensureSchedule(ctx, tx, audiologistID, day)
			if err != nil {
				return err
			}
			if _, _, err := generateSlots(ctx, tx, sched.ID, windows); err != nil {
				return err
			}
			out = append(out, *sched)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
