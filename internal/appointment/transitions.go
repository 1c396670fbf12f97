package appointment

import (
	"fmt"

	"github.com/hackgods/clinic-ops/internal/domain"
)

type transition struct {
	from domain.AppointmentStatus
	to   domain.AppointmentStatus
}

// allowed is the complete appointment state machine. Completed and cancelled
// have no outgoing edges.
var allowed = map[transition]bool{
	{domain.StatusPending, domain.StatusConfirmed}:   true,
	{domain.StatusPending, domain.StatusCancelled}:   true,
	{domain.StatusConfirmed, domain.StatusCancelled}: true,
	{domain.StatusConfirmed, domain.StatusCompleted}: true,
}

// CanTransition reports whether an appointment may move from one status to another.
func CanTransition(from, to domain.AppointmentStatus) bool {
	return allowed[transition{from, to}]
}

func checkTransition(a *domain.Appointment, to domain.AppointmentStatus) error {
	if !CanTransition(a.Status, to) {
		return fmt.Errorf("appointment %d: %s -> %s: %w", a.ID, a.Status, to, domain.ErrInvalidTransition)
	}
	return nil
}
