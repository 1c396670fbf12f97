package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hackgods/clinic-ops/internal/domain"
	"github.com/hackgods/clinic-ops/internal/metrics"
	"github.com/hackgods/clinic-ops/internal/store"
)

// RecordContent is the clinical narrative of a medical record.
type RecordContent struct {
	ChiefComplaint string
	Diagnosis      string
	TreatmentPlan  string
}

func (c RecordContent) IsZero() bool {
	return c.ChiefComplaint == "" && c.Diagnosis == "" && c.TreatmentPlan == ""
}

func (c RecordContent) matches(r *domain.MedicalRecord) bool {
	return c.ChiefComplaint == r.ChiefComplaint && c.Diagnosis == r.Diagnosis && c.TreatmentPlan == r.TreatmentPlan
}

func (c RecordContent) validate() error {
	return domain.First(
		domain.MaxLen("chief_complaint", c.ChiefComplaint, domain.MaxComplaintLen),
		domain.MaxLen("diagnosis", c.Diagnosis, domain.MaxClinicalNotesLen),
		domain.MaxLen("treatment_plan", c.TreatmentPlan, domain.MaxClinicalNotesLen),
	)
}

// DataPoint is one audiogram measurement.
type DataPoint struct {
	Ear       domain.Ear
	Frequency int
	Threshold int
}

type HearingTestRequest struct {
	PatientID     int64
	AppointmentID int64
	AudiologistID int64
	TestType      domain.TestType
	Notes         string
	Record        *RecordContent
	DataPoints    []DataPoint
}

func (r HearingTestRequest) validate() error {
	if !r.TestType.Valid() {
		return domain.Invalid("test_type", fmt.Sprintf("unknown test type %q", r.TestType))
	}
	if err := domain.MaxLen("test_notes", r.Notes, domain.MaxClinicalNotesLen); err != nil {
		return err
	}
	if r.Record != nil {
		if err := r.Record.validate(); err != nil {
			return err
		}
	}
	for _, p := range r.DataPoints {
		d := domain.AudiogramData{Ear: p.Ear, Frequency: p.Frequency, Threshold: p.Threshold}
		if err := d.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// RecordHearingTest stores a test and its audiogram on the appointment's
// medical record, creating the record on first use. The test and every data
// point are written in one transaction.
func (s *Service) RecordHearingTest(ctx context.Context, actor domain.Actor, req HearingTestRequest) (int64, error) {
	if err := req.validate(); err != nil {
		return 0, err
	}

	var testID int64
	var recordID int64
	err := s.store.Update(ctx, func(tx store.Tx) error {
		appt, err := tx.GetAppointment(ctx, req.AppointmentID)
		if err != nil {
			return err
		}
		if err := requireAssigned(ctx, tx, actor, appt.AudiologistID, "record hearing tests for this appointment"); err != nil {
			return err
		}
		if req.AudiologistID != appt.AudiologistID {
			return domain.Invalid("audiologist_id", "does not match the appointment")
		}
		if req.PatientID != appt.PatientID {
			return domain.Invalid("patient_id", "does not match the appointment")
		}
		if appt.Status != domain.StatusConfirmed {
			return fmt.Errorf("appointment %d is %s, tests need a confirmed appointment: %w", appt.ID, appt.Status, domain.ErrInvalidState)
		}

		now := s.now().UTC()
		record, err := tx.GetMedicalRecordByAppointment(ctx, appt.ID)
		switch {
		case err == nil:
			if req.Record != nil && !req.Record.IsZero() && !req.Record.matches(record) {
				return fmt.Errorf("appointment %d already has medical record %d: %w", appt.ID, record.ID, domain.ErrDuplicateRecord)
			}
		case errors.Is(err, domain.ErrNotFound):
			record = &domain.MedicalRecord{
				PatientID:     appt.PatientID,
				AppointmentID: appt.ID,
				CreatedBy:     appt.AudiologistID,
				RecordDate:    now,
			}
			if req.Record != nil {
				record.ChiefComplaint = req.Record.ChiefComplaint
				record.Diagnosis = req.Record.Diagnosis
				record.TreatmentPlan = req.Record.TreatmentPlan
			}
			if err := tx.InsertMedicalRecord(ctx, record); err != nil {
				return fmt.Errorf("create medical record: %w", err)
			}
		default:
			return fmt.Errorf("load medical record: %w", err)
		}

		test := &domain.HearingTest{
			RecordID:  record.ID,
			TestType:  req.TestType,
			TestDate:  now,
			TestNotes: req.Notes,
		}
		if err := tx.InsertHearingTest(ctx, test); err != nil {
			return fmt.Errorf("insert hearing test: %w", err)
		}
		for _, p := range req.DataPoints {
			d := &domain.AudiogramData{TestID: test.ID, Ear: p.Ear, Frequency: p.Frequency, Threshold: p.Threshold}
			if err := tx.InsertAudiogramData(ctx, d); err != nil {
				return fmt.Errorf("insert audiogram data: %w", err)
			}
		}
		testID = test.ID
		recordID = record.ID
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.Info().
		Str("event", EventHearingTestRecorded).
		Int64("appointment_id", req.AppointmentID).
		Int64("record_id", recordID).
		Int64("test_id", testID).
		Str("test_type", string(req.TestType)).
		Int("data_points", len(req.DataPoints)).
		Stringer("actor", actor).
		Msg("appointment event")
	return testID, nil
}

// PrescribeRequest asks for a prescription to be written on completion.
// ProductID is optional.
type PrescribeRequest struct {
	ProductID *int64
	Notes     string
}

type CompleteRequest struct {
	Prescribe    *PrescribeRequest
	FollowUpDate *time.Time
}

// CompletionResult carries the completed appointment and the outcome of the
// prescription step. PrescriptionErr wraps domain.ErrPrescriptionSkipped when
// the prescription could not be written; the completion stands regardless.
type CompletionResult struct {
	Appointment     domain.Appointment
	Prescription    *domain.Prescription
	PrescriptionErr error
}

// CompleteAppointment closes a confirmed appointment that has at least one
// hearing test on its medical record.
func (s *Service) CompleteAppointment(ctx context.Context, actor domain.Actor, id int64, req CompleteRequest) (*CompletionResult, error) {
	if req.Prescribe != nil {
		if err := domain.MaxLen("notes", req.Prescribe.Notes, domain.MaxClinicalNotesLen); err != nil {
			return nil, err
		}
	}

	var completed *domain.Appointment
	err := s.store.Update(ctx, func(tx store.Tx) error {
		appt, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return err
		}
		if err := requireAssigned(ctx, tx, actor, appt.AudiologistID, "complete this appointment"); err != nil {
			return err
		}
		if err := checkTransition(appt, domain.StatusCompleted); err != nil {
			return err
		}
		tested, err := hasHearingTest(ctx, tx, appt.ID)
		if err != nil {
			return err
		}
		if !tested {
			return fmt.Errorf("appointment %d has no hearing test: %w", appt.ID, domain.ErrInvalidState)
		}

		appt.Status = domain.StatusCompleted
		if req.FollowUpDate != nil {
			d := domain.DateOf(*req.FollowUpDate)
			appt.FollowUpRequired = true
			appt.FollowUpDate = &d
		}
		appt.UpdatedAt = s.now().UTC()
		if err := tx.UpdateAppointment(ctx, *appt); err != nil {
			return fmt.Errorf("complete appointment: %w", err)
		}
		completed = appt
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTransition(string(completed.Status))
	s.logEvent(EventAppointmentCompleted, actor, completed)

	result := &CompletionResult{Appointment: *completed}
	if req.Prescribe != nil {
		result.Prescription, result.PrescriptionErr = s.prescribe(ctx, completed, *req.Prescribe)
		if result.PrescriptionErr != nil {
			s.log.Warn().
				Err(result.PrescriptionErr).
				Int64("appointment_id", completed.ID).
				Msg("prescription skipped")
		}
	}
	return result, nil
}

func (s *Service) prescribe(ctx context.Context, appt *domain.Appointment, req PrescribeRequest) (*domain.Prescription, error) {
	var out *domain.Prescription
	err := s.store.Update(ctx, func(tx store.Tx) error {
		if req.ProductID != nil {
			if _, err := tx.GetProduct(ctx, *req.ProductID); err != nil {
				return err
			}
		}
		p := &domain.Prescription{
			AppointmentID:  appt.ID,
			ProductID:      req.ProductID,
			PrescribedBy:   appt.AudiologistID,
			PrescribedDate: s.now().UTC(),
			Notes:          req.Notes,
		}
		if err := tx.InsertPrescription(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPrescriptionSkipped, err)
	}
	return out, nil
}

func hasHearingTest(ctx context.Context, r store.Reader, appointmentID int64) (bool, error) {
	record, err := r.GetMedicalRecordByAppointment(ctx, appointmentID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load medical record: %w", err)
	}
	tests, err := r.ListHearingTests(ctx, record.ID)
	if err != nil {
		return false, fmt.Errorf("list hearing tests: %w", err)
	}
	return len(tests) > 0, nil
}

// UpdateRecordNotes rewrites the clinical narrative of a medical record.
func (s *Service) UpdateRecordNotes(ctx context.Context, actor domain.Actor, recordID int64, content RecordContent) (*domain.MedicalRecord, error) {
	if err := content.validate(); err != nil {
		return nil, err
	}

	var out *domain.MedicalRecord
	err := s.store.Update(ctx, func(tx store.Tx) error {
		record, err := tx.GetMedicalRecord(ctx, recordID)
		if err != nil {
			return err
		}
		if err := s.requireEditable(ctx, tx, actor, record.AppointmentID); err != nil {
			return err
		}
		record.ChiefComplaint = content.ChiefComplaint
		record.Diagnosis = content.Diagnosis
		record.TreatmentPlan = content.TreatmentPlan
		if err := tx.UpdateMedicalRecord(ctx, *record); err != nil {
			return fmt.Errorf("update medical record: %w", err)
		}
		out = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateTestNotes replaces the notes on a hearing test.
func (s *Service) UpdateTestNotes(ctx context.Context, actor domain.Actor, testID int64, notes string) (*domain.HearingTest, error) {
	if err := domain.MaxLen("test_notes", notes, domain.MaxClinicalNotesLen); err != nil {
		return nil, err
	}

	var out *domain.HearingTest
	err := s.store.Update(ctx, func(tx store.Tx) error {
		test, err := tx.GetHearingTest(ctx, testID)
		if err != nil {
			return err
		}
		record, err := tx.GetMedicalRecord(ctx, test.RecordID)
		if err != nil {
			return err
		}
		if err := s.requireEditable(ctx, tx, actor, record.AppointmentID); err != nil {
			return err
		}
		test.TestNotes = notes
		if err := tx.UpdateHearingTest(ctx, *test); err != nil {
			return fmt.Errorf("update hearing test: %w", err)
		}
		out = test
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// requireEditable allows the assigned audiologist to edit clinical notes of an
// appointment that was not cancelled.
func (s *Service) requireEditable(ctx context.Context, r store.Reader, actor domain.Actor, appointmentID int64) error {
	appt, err := r.GetAppointment(ctx, appointmentID)
	if err != nil {
		return err
	}
	if err := requireAssigned(ctx, r, actor, appt.AudiologistID, "edit clinical notes"); err != nil {
		return err
	}
	if appt.Status == domain.StatusCancelled {
		return fmt.Errorf("appointment %d is cancelled: %w", appt.ID, domain.ErrInvalidState)
	}
	return nil
}
