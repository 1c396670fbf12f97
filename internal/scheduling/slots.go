package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hackgods/clinic-ops/internal/domain"
	"github.com/hackgods/clinic-ops/internal/store"
)

// SlotLength is the fixed length of every generated slot.
const SlotLength = 30 * time.Minute

// SlotAvailability pairs a recurring slot with its occupancy on one date.
type SlotAvailability struct {
	Slot domain.TimeSlot
	Free bool
}

// SplitWindows cuts each window into consecutive SlotLength intervals. A
// trailing remainder shorter than SlotLength is dropped.
func SplitWindows(windows []domain.Window) []domain.Window {
	var out []domain.Window
	for _, w := range windows {
		for start := w.Start; start.Add(SlotLength) <= w.End; start = start.Add(SlotLength) {
			out = append(out, domain.Window{Start: start, End: start.Add(SlotLength)})
		}
	}
	return out
}

func validateWindows(windows []domain.Window) ([]domain.Window, error) {
	if len(windows) == 0 {
		return nil, domain.Invalid("windows", "at least one window is required")
	}
	sorted := append([]domain.Window(nil), windows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	for i, w := range sorted {
		if w.Start < 0 || w.End > domain.Clock(24, 0) || w.Start >= w.End {
			return nil, domain.Invalid("windows", fmt.Sprintf("window %s is not a valid period of the day", w))
		}
		if i > 0 && w.Start < sorted[i-1].End {
			return nil, domain.Invalid("windows", fmt.Sprintf("window %s overlaps %s", w, sorted[i-1]))
		}
	}
	return sorted, nil
}

// SlotsForDate lists the audiologist's slots for the weekday of date, ordered
// by start time, each flagged free unless a pending or confirmed appointment
// holds it on that date.
func SlotsForDate(ctx context.Context, r store.Reader, audiologistID int64, date time.Time) ([]SlotAvailability, error) {
	if _, err := r.GetAudiologist(ctx, audiologistID); err != nil {
		return nil, err
	}

	day := domain.DateOf(date)
	sched, err := r.FindSchedule(ctx, audiologistID, day.Weekday())
	if err != nil {
		if errors.Is(err, domain.ErrScheduleNotFound) {
			return nil, fmt.Errorf("audiologist %d on %s: %w", audiologistID, day.Weekday(), domain.ErrNoScheduleForDay)
		}
		return nil, fmt.Errorf("find schedule: %w", err)
	}

	slots, err := r.ListTimeSlots(ctx, sched.ID)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	booked, err := r.ListAppointments(ctx, store.AppointmentFilter{
		Date:     &day,
		Statuses: []domain.AppointmentStatus{domain.StatusPending, domain.StatusConfirmed},
	})
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	held := make(map[int64]bool, len(booked))
	for _, a := range booked {
		held[a.TimeSlotID] = true
	}

	out := make([]SlotAvailability, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotAvailability{Slot: s, Free: !held[s.ID]})
	}
	return out, nil
}

// IsFree reports whether no active appointment holds slotID on date.
func IsFree(ctx context.Context, r store.Reader, slotID int64, date time.Time, except int64) (bool, error) {
	appts, err := r.ListAppointments(ctx, store.ActiveOn(slotID, date))
	if err != nil {
		return false, fmt.Errorf("list appointments: %w", err)
	}
	for _, a := range appts {
		if a.ID != except {
			return false, nil
		}
	}
	return true, nil
}
