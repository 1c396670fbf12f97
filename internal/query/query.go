// Package query answers the read-only questions the front desk and the
// clinicians ask. Every answer comes from one store snapshot.
package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hackgods/clinic-ops/internal/domain"
	"github.com/hackgods/clinic-ops/internal/scheduling"
	"github.com/hackgods/clinic-ops/internal/store"
)

type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// AppointmentView is an appointment joined with what a day sheet shows.
type AppointmentView struct {
	Appointment domain.Appointment
	Patient     domain.Patient
	Slot        domain.TimeSlot
	Record      *domain.MedicalRecord
}

// HearingTestView is a test with its record and audiogram.
type HearingTestView struct {
	Test          domain.HearingTest
	Record        domain.MedicalRecord
	AudiogramData []domain.AudiogramData
}

// SelectionItem is a display label paired with the id it stands for.
type SelectionItem struct {
	DisplayText string `json:"display_text"`
	ReferenceID int64  `json:"reference_id"`
}

// AudiologistDay lists the audiologist's appointments on date, in slot order.
func (s *Service) AudiologistDay(ctx context.Context, audiologistID int64, date time.Time) ([]AppointmentView, error) {
	day := domain.DateOf(date)
	var out []AppointmentView
	err := s.store.View(ctx, func(r store.Reader) error {
		if _, err := r.GetAudiologist(ctx, audiologistID); err != nil {
			return err
		}
		appts, err := r.ListAppointments(ctx, store.AppointmentFilter{AudiologistID: audiologistID, Date: &day})
		if err != nil {
			return fmt.Errorf("list appointments: %w", err)
		}
		out, err = joinAppointments(ctx, r, appts)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Slot.StartTime < out[j].Slot.StartTime })
	return out, nil
}

// PatientAppointments lists a patient's appointments by date and slot.
func (s *Service) PatientAppointments(ctx context.Context, patientID int64) ([]AppointmentView, error) {
	var out []AppointmentView
	err := s.store.View(ctx, func(r store.Reader) error {
		if _, err := r.GetPatient(ctx, patientID); err != nil {
			return err
		}
		appts, err := r.ListAppointments(ctx, store.AppointmentFilter{PatientID: patientID})
		if err != nil {
			return fmt.Errorf("list appointments: %w", err)
		}
		out, err = joinAppointments(ctx, r, appts)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Appointment.Date.Equal(b.Appointment.Date) {
			return a.Appointment.Date.Before(b.Appointment.Date)
		}
		return a.Slot.StartTime < b.Slot.StartTime
	})
	return out, nil
}

func joinAppointments(ctx context.Context, r store.Reader, appts []domain.Appointment) ([]AppointmentView, error) {
	out := make([]AppointmentView, 0, len(appts))
	for _, a := range appts {
		patient, err := r.GetPatient(ctx, a.PatientID)
		if err != nil {
			return nil, err
		}
		slot, err := r.GetTimeSlot(ctx, a.TimeSlotID)
		if err != nil {
			return nil, err
		}
		v := AppointmentView{Appointment: a, Patient: *patient, Slot: *slot}
		record, err := r.GetMedicalRecordByAppointment(ctx, a.ID)
		switch {
		case err == nil:
			v.Record = record
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// PatientHearingHistory lists every hearing test taken by the patient, newest
// first.
func (s *Service) PatientHearingHistory(ctx context.Context, patientID int64) ([]HearingTestView, error) {
	var out []HearingTestView
	err := s.store.View(ctx, func(r store.Reader) error {
		if _, err := r.GetPatient(ctx, patientID); err != nil {
			return err
		}
		records, err := r.ListMedicalRecords(ctx, patientID)
		if err != nil {
			return fmt.Errorf("list medical records: %w", err)
		}
		for _, rec := range records {
			tests, err := r.ListHearingTests(ctx, rec.ID)
			if err != nil {
				return fmt.Errorf("list hearing tests: %w", err)
			}
			for _, t := range tests {
				data, err := r.ListAudiogramData(ctx, t.ID)
				if err != nil {
					return fmt.Errorf("list audiogram data: %w", err)
				}
				out = append(out, HearingTestView{Test: t, Record: rec, AudiogramData: data})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Test, out[j].Test
		if !a.TestDate.Equal(b.TestDate) {
			return a.TestDate.After(b.TestDate)
		}
		return a.ID > b.ID
	})
	return out, nil
}

// ProductListing returns the catalogue, optionally only what is in stock.
func (s *Service) ProductListing(ctx context.Context, inStockOnly bool) ([]domain.Product, error) {
	var out []domain.Product
	err := s.store.View(ctx, func(r store.Reader) error {
		products, err := r.ListProducts(ctx)
		if err != nil {
			return err
		}
		for _, p := range products {
			if inStockOnly && p.QuantityInStock <= 0 {
				continue
			}
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) AudiologistOptions(ctx context.Context) ([]SelectionItem, error) {
	var out []SelectionItem
	err := s.store.View(ctx, func(r store.Reader) error {
		auds, err := r.ListAudiologists(ctx)
		if err != nil {
			return err
		}
		for _, a := range auds {
			out = append(out, SelectionItem{DisplayText: a.FullName(), ReferenceID: a.ID})
		}
		return nil
	})
	return out, err
}

func (s *Service) PatientOptions(ctx context.Context) ([]SelectionItem, error) {
	var out []SelectionItem
	err := s.store.View(ctx, func(r store.Reader) error {
		patients, err := r.ListPatients(ctx)
		if err != nil {
			return err
		}
		for _, p := range patients {
			out = append(out, SelectionItem{DisplayText: p.FullName(), ReferenceID: p.ID})
		}
		return nil
	})
	return out, err
}

// FreeSlotOptions lists the audiologist's free slots on date.
func (s *Service) FreeSlotOptions(ctx context.Context, audiologistID int64, date time.Time) ([]SelectionItem, error) {
	var out []SelectionItem
	err := s.store.View(ctx, func(r store.Reader) error {
		slots, err := scheduling.SlotsForDate(ctx, r, audiologistID, date)
		if err != nil {
			return err
		}
		for _, sa := range slots {
			if sa.Free {
				out = append(out, SelectionItem{DisplayText: sa.Slot.Label(), ReferenceID: sa.Slot.ID})
			}
		}
		return nil
	})
	return out, err
}

// ProductOptions lists products that can be sold right now.
func (s *Service) ProductOptions(ctx context.Context) ([]SelectionItem, error) {
	products, err := s.ProductListing(ctx, true)
	if err != nil {
		return nil, err
	}
	out := make([]SelectionItem, 0, len(products))
	for _, p := range products {
		out = append(out, SelectionItem{
			DisplayText: fmt.Sprintf("%s (%s)", p.Label(), p.Price.StringFixed(2)),
			ReferenceID: p.ID,
		})
	}
	return out, nil
}
