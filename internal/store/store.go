// Package store defines the entity store used by the clinic core and an
// in-memory implementation of it.
package store

import (
	"context"
	"time"

	"github.com/hackgods/clinic-ops/internal/domain"
)

// Store is the persistence boundary. Update runs fn atomically: either every
// write made through tx is committed or none is. View runs fn against a
// consistent snapshot and never blocks writers.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(r Reader) error) error
	Ping(ctx context.Context) error
	Close() error
}

// AppointmentFilter narrows ListAppointments. Zero fields do not filter.
type AppointmentFilter struct {
	PatientID     int64
	AudiologistID int64
	TimeSlotID    int64
	Date          *time.Time
	Statuses      []domain.AppointmentStatus
}

// Match reports whether a satisfies the filter.
func (f AppointmentFilter) Match(a domain.Appointment) bool {
	if f.PatientID != 0 && a.PatientID != f.PatientID {
		return false
	}
	if f.AudiologistID != 0 && a.AudiologistID != f.AudiologistID {
		return false
	}
	if f.TimeSlotID != 0 && a.TimeSlotID != f.TimeSlotID {
		return false
	}
	if f.Date != nil && !domain.DateOf(a.Date).Equal(domain.DateOf(*f.Date)) {
		return false
	}
	if len(f.Statuses) > 0 {
		for _, s := range f.Statuses {
			if a.Status == s {
				return true
			}
		}
		return false
	}
	return true
}

// ActiveOn selects the appointments holding a slot on a date.
func ActiveOn(slotID int64, date time.Time) AppointmentFilter {
	d := domain.DateOf(date)
	return AppointmentFilter{
		TimeSlotID: slotID,
		Date:       &d,
		Statuses:   []domain.AppointmentStatus{domain.StatusPending, domain.StatusConfirmed},
	}
}

// Reader is the read side of the store. Lookups of missing ids return errors
// wrapping domain.ErrNotFound.
type Reader interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)

	GetPatient(ctx context.Context, id int64) (*domain.Patient, error)
	ListPatients(ctx context.Context) ([]domain.Patient, error)

	GetAudiologist(ctx context.Context, id int64) (*domain.Audiologist, error)
	ListAudiologists(ctx context.Context) ([]domain.Audiologist, error)

	GetSchedule(ctx context.Context, id int64) (*domain.Schedule, error)
	// FindSchedule returns the audiologist's schedule for weekday or ErrScheduleNotFound.
	FindSchedule(ctx context.Context, audiologistID int64, weekday time.Weekday) (*domain.Schedule, error)
	ListSchedules(ctx context.Context) ([]domain.Schedule, error)

	GetTimeSlot(ctx context.Context, id int64) (*domain.TimeSlot, error)
	// ListTimeSlots returns the schedule's slots ordered by start time.
	ListTimeSlots(ctx context.Context, scheduleID int64) ([]domain.TimeSlot, error)

	GetAppointment(ctx context.Context, id int64) (*domain.Appointment, error)
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]domain.Appointment, error)

	GetMedicalRecord(ctx context.Context, id int64) (*domain.MedicalRecord, error)
	GetMedicalRecordByAppointment(ctx context.Context, appointmentID int64) (*domain.MedicalRecord, error)
	ListMedicalRecords(ctx context.Context, patientID int64) ([]domain.MedicalRecord, error)

	GetHearingTest(ctx context.Context, id int64) (*domain.HearingTest, error)
	ListHearingTests(ctx context.Context, recordID int64) ([]domain.HearingTest, error)
	ListAudiogramData(ctx context.Context, testID int64) ([]domain.AudiogramData, error)

	ListPrescriptions(ctx context.Context, appointmentID int64) ([]domain.Prescription, error)

	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListInventoryTransactions(ctx context.Context, productID int64) ([]domain.InventoryTransaction, error)

	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	ListOrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error)

	GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error)
	FindInvoiceByOrder(ctx context.Context, orderID int64) (*domain.Invoice, error)
	FindInvoiceByAppointment(ctx context.Context, appointmentID int64) (*domain.Invoice, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]domain.Payment, error)
}

// Tx adds writes to Reader. Insert methods assign the new identity to the
// passed entity.
type Tx interface {
	Reader

	InsertUser(ctx context.Context, u *domain.User) error
	InsertPatient(ctx context.Context, p *domain.Patient) error
	InsertAudiologist(ctx context.Context, a *domain.Audiologist) error

	InsertSchedule(ctx context.Context, s *domain.Schedule) error
	InsertTimeSlot(ctx context.Context, s *domain.TimeSlot) error
	UpdateTimeSlot(ctx context.Context, s domain.TimeSlot) error

	InsertAppointment(ctx context.Context, a *domain.Appointment) error
	UpdateAppointment(ctx context.Context, a domain.Appointment) error

	InsertMedicalRecord(ctx context.Context, r *domain.MedicalRecord) error
	UpdateMedicalRecord(ctx context.Context, r domain.MedicalRecord) error
	InsertHearingTest(ctx context.Context, t *domain.HearingTest) error
	UpdateHearingTest(ctx context.Context, t domain.HearingTest) error
	InsertAudiogramData(ctx context.Context, d *domain.AudiogramData) error
	InsertPrescription(ctx context.Context, p *domain.Prescription) error

	InsertProduct(ctx context.Context, p *domain.Product) error
	UpdateProduct(ctx context.Context, p domain.Product) error
	InsertInventoryTransaction(ctx context.Context, t *domain.InventoryTransaction) error

	InsertOrder(ctx context.Context, o *domain.Order) error
	UpdateOrder(ctx context.Context, o domain.Order) error
	InsertOrderItem(ctx context.Context, i *domain.OrderItem) error
	InsertInvoice(ctx context.Context, inv *domain.Invoice) error
	UpdateInvoice(ctx context.Context, inv domain.Invoice) error
	InsertPayment(ctx context.Context, p *domain.Payment) error
}
