package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure returned by the core wraps exactly one of these.
var (
	ErrNotFound            = errors.New("not found")
	ErrSlotUnavailable     = errors.New("slot unavailable")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInvalidState        = errors.New("invalid state")
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrDuplicateRecord     = errors.New("duplicate record")
	ErrValidation          = errors.New("validation error")
	ErrNoScheduleForDay    = errors.New("no schedule for day")
	ErrForbidden           = errors.New("forbidden")
	ErrBusy                = errors.New("resource busy, retry")
	ErrPrescriptionSkipped = errors.New("prescription skipped")
)

var (
	ErrUserNotFound          = fmt.Errorf("user %w", ErrNotFound)
	ErrPatientNotFound       = fmt.Errorf("patient %w", ErrNotFound)
	ErrAudiologistNotFound   = fmt.Errorf("audiologist %w", ErrNotFound)
	ErrScheduleNotFound      = fmt.Errorf("schedule %w", ErrNotFound)
	ErrSlotNotFound          = fmt.Errorf("time slot %w", ErrNotFound)
	ErrAppointmentNotFound   = fmt.Errorf("appointment %w", ErrNotFound)
	ErrRecordNotFound        = fmt.Errorf("medical record %w", ErrNotFound)
	ErrHearingTestNotFound   = fmt.Errorf("hearing test %w", ErrNotFound)
	ErrProductNotFound       = fmt.Errorf("product %w", ErrNotFound)
	ErrOrderNotFound         = fmt.Errorf("order %w", ErrNotFound)
	ErrInvoiceNotFound       = fmt.Errorf("invoice %w", ErrNotFound)
	ErrPrescriptionNotFound  = fmt.Errorf("prescription %w", ErrNotFound)
	ErrTransactionNotFound   = fmt.Errorf("inventory transaction %w", ErrNotFound)
	ErrPaymentNotFound       = fmt.Errorf("payment %w", ErrNotFound)
	ErrAudiogramDataNotFound = fmt.Errorf("audiogram data %w", ErrNotFound)
)

// ValidationError reports a field-level constraint violation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

var kinds = []struct {
	err  error
	name string
}{
	{ErrNotFound, "not_found"},
	{ErrSlotUnavailable, "slot_unavailable"},
	{ErrInvalidTransition, "invalid_transition"},
	{ErrInvalidState, "invalid_state"},
	{ErrInvalidQuantity, "invalid_quantity"},
	{ErrInsufficientStock, "insufficient_stock"},
	{ErrDuplicateRecord, "duplicate_record"},
	{ErrValidation, "validation_error"},
	{ErrNoScheduleForDay, "no_schedule_for_day"},
	{ErrForbidden, "forbidden"},
	{ErrBusy, "busy"},
	{ErrPrescriptionSkipped, "prescription_skipped"},
}

// Kind returns the name of the error kind err belongs to, or "internal".
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}
