package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-ops/internal/config"
	"github.com/hackgods/clinic-ops/internal/domain"
	"github.com/hackgods/clinic-ops/internal/metrics"
	redisclient "github.com/hackgods/clinic-ops/internal/redis"
	"github.com/hackgods/clinic-ops/internal/scheduling"
	"github.com/hackgods/clinic-ops/internal/store"
)

const (
	EventAppointmentCreated   = "appointment_created"
	EventAppointmentConfirmed = "appointment_confirmed"
	EventAppointmentCancelled = "appointment_cancelled"
	EventAppointmentCompleted = "appointment_completed"
	EventHearingTestRecorded  = "hearing_test_recorded"
)

type Service struct {
	store  store.Store
	locker redisclient.Locker
	cfg    config.Config
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(st store.Store, locker redisclient.Locker, cfg config.Config, logger zerolog.Logger) *Service {
	return &Service{
		store:  st,
		locker: locker,
		cfg:    cfg,
		log:    logger.With().Str("component", "appointment").Logger(),
		now:    time.Now,
	}
}

// CreateRequest describes a booking. InitialStatus defaults to pending; Fee
// defaults to the configured appointment fee.
type CreateRequest struct {
	PatientID     int64
	AudiologistID int64
	Date          time.Time
	TimeSlotID    int64
	Purpose       string
	InitialStatus domain.AppointmentStatus
	Fee           *decimal.Decimal
}

func (r *CreateRequest) validate(actor domain.Actor) error {
	if r.InitialStatus == "" {
		r.InitialStatus = domain.StatusPending
	}
	switch r.InitialStatus {
	case domain.StatusPending:
	case domain.StatusConfirmed:
		if err := domain.RequireStaff(actor, "book a confirmed appointment"); err != nil {
			return err
		}
	default:
		return domain.Invalid("initial_status", "must be pending or confirmed")
	}
	if r.Date.IsZero() {
		return domain.Invalid("date", "is required")
	}
	if r.Fee != nil {
		if err := domain.NonNegative("fee", *r.Fee); err != nil {
			return err
		}
	}
	return domain.MaxLen("purpose_of_visit", r.Purpose, domain.MaxPurposeLen)
}

// CreateAppointment books a slot on a date for a patient.
// It holds the slot's lock for that date, and the store transaction re-checks
// occupancy, so concurrent requests for the same slot cannot both succeed.
func (s *Service) CreateAppointment(ctx context.Context, actor domain.Actor, req CreateRequest) (*domain.Appointment, error) {
	created, err := s.createAppointment(ctx, actor, req)
	if err != nil {
		metrics.RecordBookingRejection(domain.Kind(err))
		return nil, err
	}
	metrics.RecordTransition(string(created.Status))
	s.logEvent(EventAppointmentCreated, actor, created)
	return created, nil
}

func (s *Service) createAppointment(ctx context.Context, actor domain.Actor, req CreateRequest) (*domain.Appointment, error) {
	if err := req.validate(actor); err != nil {
		return nil, err
	}
	date := domain.DateOf(req.Date)
	fee := s.cfg.DefaultFee
	if req.Fee != nil {
		fee = *req.Fee
	}

	var created *domain.Appointment
	err := s.withSlotLock(ctx, req.TimeSlotID, date, func(lockCtx context.Context) error {
		return s.store.Update(lockCtx, func(tx store.Tx) error {
			patient, err := tx.GetPatient(lockCtx, req.PatientID)
			if err != nil {
				return err
			}
			if !actor.Role.Staff() && !ownsPatient(actor, patient) {
				return domain.Forbid(actor, "book for another patient")
			}
			if _, err := tx.GetAudiologist(lockCtx, req.AudiologistID); err != nil {
				return err
			}
			slot, err := tx.GetTimeSlot(lockCtx, req.TimeSlotID)
			if err != nil {
				return err
			}
			sched, err := tx.GetSchedule(lockCtx, slot.ScheduleID)
			if err != nil {
				return err
			}
			if sched.AudiologistID != req.AudiologistID {
				return domain.Invalid("time_slot_id", fmt.Sprintf("slot %d belongs to another audiologist", slot.ID))
			}
			if sched.DayOfWeek != date.Weekday() {
				return domain.Invalid("date", fmt.Sprintf("slot %d runs on %s, not %s", slot.ID, sched.DayOfWeek, date.Weekday()))
			}

			free, err := scheduling.IsFree(lockCtx, tx, slot.ID, date, 0)
			if err != nil {
				return err
			}
			if !free {
				return fmt.Errorf("slot %d on %s: %w", slot.ID, date.Format(time.DateOnly), domain.ErrSlotUnavailable)
			}

			now := s.now().UTC()
			appt := &domain.Appointment{
				PatientID:      req.PatientID,
				AudiologistID:  req.AudiologistID,
				Date:           date,
				TimeSlotID:     slot.ID,
				PurposeOfVisit: req.Purpose,
				Status:         req.InitialStatus,
				Fee:            fee,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if actor.UserID > 0 {
				createdBy := actor.UserID
				appt.CreatedBy = &createdBy
			}
			if err := tx.InsertAppointment(lockCtx, appt); err != nil {
				return fmt.Errorf("create appointment: %w", err)
			}
			created = appt
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ConfirmAppointment moves a pending appointment to confirmed.
func (s *Service) ConfirmAppointment(ctx context.Context, actor domain.Actor, id int64) (*domain.Appointment, error) {
	if err := domain.RequireStaff(actor, "confirm appointments"); err != nil {
		return nil, err
	}

	current, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	var updated *domain.Appointment
	err = s.withSlotLock(ctx, current.TimeSlotID, current.Date, func(lockCtx context.Context) error {
		return s.store.Update(lockCtx, func(tx store.Tx) error {
			appt, err := tx.GetAppointment(lockCtx, id)
			if err != nil {
				return err
			}
			if err := checkTransition(appt, domain.StatusConfirmed); err != nil {
				return err
			}
			free, err := scheduling.IsFree(lockCtx, tx, appt.TimeSlotID, appt.Date, appt.ID)
			if err != nil {
				return err
			}
			if !free {
				return fmt.Errorf("slot %d on %s: %w", appt.TimeSlotID, appt.Date.Format(time.DateOnly), domain.ErrSlotUnavailable)
			}
			appt.Status = domain.StatusConfirmed
			appt.UpdatedAt = s.now().UTC()
			if err := tx.UpdateAppointment(lockCtx, *appt); err != nil {
				return fmt.Errorf("confirm appointment: %w", err)
			}
			updated = appt
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTransition(string(updated.Status))
	s.logEvent(EventAppointmentConfirmed, actor, updated)
	return updated, nil
}

// CancelAppointment releases the slot. A pending appointment may be cancelled
// by staff or by the patient it belongs to; a confirmed one only by staff.
func (s *Service) CancelAppointment(ctx context.Context, actor domain.Actor, id int64) (*domain.Appointment, error) {
	var updated *domain.Appointment
	err := s.store.Update(ctx, func(tx store.Tx) error {
		appt, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return err
		}
		if err := checkTransition(appt, domain.StatusCancelled); err != nil {
			return err
		}
		if !actor.Role.Staff() {
			if appt.Status != domain.StatusPending || actor.Role != domain.RolePatient {
				return domain.Forbid(actor, "cancel a confirmed appointment")
			}
			patient, err := tx.GetPatient(ctx, appt.PatientID)
			if err != nil {
				return err
			}
			if !ownsPatient(actor, patient) {
				return domain.Forbid(actor, "cancel another patient's appointment")
			}
		}
		appt.Status = domain.StatusCancelled
		appt.UpdatedAt = s.now().UTC()
		if err := tx.UpdateAppointment(ctx, *appt); err != nil {
			return fmt.Errorf("cancel appointment: %w", err)
		}
		updated = appt
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTransition(string(updated.Status))
	s.logEvent(EventAppointmentCancelled, actor, updated)
	return updated, nil
}

// GetAppointment loads one appointment.
func (s *Service) GetAppointment(ctx context.Context, id int64) (*domain.Appointment, error) {
	var out *domain.Appointment
	err := s.store.View(ctx, func(r store.Reader) error {
		var err error
		out, err = r.GetAppointment(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// withSlotLock runs fn while holding the lock for one slot on one date. A
// lock that cannot be had in time means someone else is booking the slot.
func (s *Service) withSlotLock(ctx context.Context, slotID int64, date time.Time, fn func(ctx context.Context) error) error {
	key := redisclient.SlotKey(slotID, domain.DateOf(date))
	start := time.Now()
	err := s.locker.WithLock(ctx, key, fn)
	acquired := !errors.Is(err, redisclient.ErrLockNotAcquired)
	metrics.RecordLock("slot", time.Since(start), acquired)
	if !acquired {
		return fmt.Errorf("slot %d on %s is being booked: %w", slotID, date.Format(time.DateOnly), domain.ErrSlotUnavailable)
	}
	return err
}

func ownsPatient(actor domain.Actor, p *domain.Patient) bool {
	return actor.Role == domain.RolePatient && p.UserID != nil && *p.UserID == actor.UserID
}

// requireAssigned fails unless actor is the audiologist with the given id.
func requireAssigned(ctx context.Context, r store.Reader, actor domain.Actor, audiologistID int64, action string) error {
	if actor.Role != domain.RoleAudiologist {
		return domain.Forbid(actor, action)
	}
	aud, err := r.GetAudiologist(ctx, audiologistID)
	if err != nil {
		return err
	}
	if aud.UserID != actor.UserID {
		return domain.Forbid(actor, action)
	}
	return nil
}

func (s *Service) logEvent(event string, actor domain.Actor, appt *domain.Appointment) {
	s.log.Info().
		Str("event", event).
		Int64("appointment_id", appt.ID).
		Int64("patient_id", appt.PatientID).
		Int64("audiologist_id", appt.AudiologistID).
		Int64("time_slot_id", appt.TimeSlotID).
		Str("date", appt.Date.Format(time.DateOnly)).
		Str("status", string(appt.Status)).
		Stringer("actor", actor).
		Msg("appointment event")
}
