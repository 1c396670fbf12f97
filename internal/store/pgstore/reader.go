package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-ops/internal/domain"
	"github.com/hackgods/clinic-ops/internal/store"
)

type reader struct {
	q         querier
	forUpdate bool
}

// lockSuffix row-locks single reads of contended rows inside Update.
func (r reader) lockSuffix() string {
	if r.forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

func getOne[T any](ctx context.Context, q querier, scan func(pgx.Row) (*T, error), notFound error, id int64, sql string, args ...any) (*T, error) {
	v, err := scan(q.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, notFoundIfNoRows(err, notFound, id)
	}
	return v, nil
}

func (r reader) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return getOne(ctx, r.q, scanUser, domain.ErrUserNotFound, id,
		`SELECT `+userCols+` FROM users WHERE id = $1`, id)
}

func (r reader) GetPatient(ctx context.Context, id int64) (*domain.Patient, error) {
	return getOne(ctx, r.q, scanPatient, domain.ErrPatientNotFound, id,
		`SELECT `+patientCols+` FROM patients WHERE id = $1`, id)
}

func (r reader) ListPatients(ctx context.Context) ([]domain.Patient, error) {
	rows, err := r.q.Query(ctx, `SELECT `+patientCols+` FROM patients ORDER BY id`)
	return collect(rows, err, scanPatient)
}

func (r reader) GetAudiologist(ctx context.Context, id int64) (*domain.Audiologist, error) {
	return getOne(ctx, r.q, scanAudiologist, domain.ErrAudiologistNotFound, id,
		`SELECT `+audiologistCols+` FROM audiologists WHERE id = $1`, id)
}

func (r reader) ListAudiologists(ctx context.Context) ([]domain.Audiologist, error) {
	rows, err := r.q.Query(ctx, `SELECT `+audiologistCols+` FROM audiologists ORDER BY id`)
	return collect(rows, err, scanAudiologist)
}

func (r reader) GetSchedule(ctx context.Context, id int64) (*domain.Schedule, error) {
	return getOne(ctx, r.q, scanSchedule, domain.ErrScheduleNotFound, id,
		`SELECT `+scheduleCols+` FROM schedules WHERE id = $1`, id)
}

func (r reader) FindSchedule(ctx context.Context, audiologistID int64, weekday time.Weekday) (*domain.Schedule, error) {
	s, err := scanSchedule(r.q.QueryRow(ctx,
		`SELECT `+scheduleCols+` FROM schedules WHERE audiologist_id = $1 AND day_of_week = $2`,
		audiologistID, int16(weekday)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: audiologist=%d day=%s", domain.ErrScheduleNotFound, audiologistID, weekday)
	}
	return s, err
}

func (r reader) ListSchedules(ctx context.Context) ([]domain.Schedule, error) {
	rows, err := r.q.Query(ctx, `SELECT `+scheduleCols+` FROM schedules ORDER BY id`)
	return collect(rows, err, scanSchedule)
}

func (r reader) GetTimeSlot(ctx context.Context, id int64) (*domain.TimeSlot, error) {
	return getOne(ctx, r.q, scanSlot, domain.ErrSlotNotFound, id,
		`SELECT `+slotCols+` FROM time_slots WHERE id = $1`, id)
}

func (r reader) ListTimeSlots(ctx context.Context, scheduleID int64) ([]domain.TimeSlot, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+slotCols+` FROM time_slots WHERE schedule_id = $1 ORDER BY start_minute, id`, scheduleID)
	return collect(rows, err, scanSlot)
}

func (r reader) GetAppointment(ctx context.Context, id int64) (*domain.Appointment, error) {
	return getOne(ctx, r.q, scanAppointment, domain.ErrAppointmentNotFound, id,
		`SELECT `+appointmentCols+` FROM appointments WHERE id = $1`+r.lockSuffix(), id)
}

func (r reader) ListAppointments(ctx context.Context, f store.AppointmentFilter) ([]domain.Appointment, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.PatientID != 0 {
		add("patient_id = $%d", f.PatientID)
	}
	if f.AudiologistID != 0 {
		add("audiologist_id = $%d", f.AudiologistID)
	}
	if f.TimeSlotID != 0 {
		add("time_slot_id = $%d", f.TimeSlotID)
	}
	if f.Date != nil {
		add("appt_date = $%d", domain.DateOf(*f.Date))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		add("status = ANY($%d)", statuses)
	}

	sql := `SELECT ` + appointmentCols + ` FROM appointments`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY appt_date, id`

	rows, err := r.q.Query(ctx, sql, args...)
	return collect(rows, err, scanAppointment)
}

func (r reader) GetMedicalRecord(ctx context.Context, id int64) (*domain.MedicalRecord, error) {
	return getOne(ctx, r.q, scanRecord, domain.ErrRecordNotFound, id,
		`SELECT `+recordCols+` FROM medical_records WHERE id = $1`, id)
}

func (r reader) GetMedicalRecordByAppointment(ctx context.Context, appointmentID int64) (*domain.MedicalRecord, error) {
	rec, err := scanRecord(r.q.QueryRow(ctx,
		`SELECT `+recordCols+` FROM medical_records WHERE appointment_id = $1`, appointmentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: appointment=%d", domain.ErrRecordNotFound, appointmentID)
	}
	return rec, err
}

func (r reader) ListMedicalRecords(ctx context.Context, patientID int64) ([]domain.MedicalRecord, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+recordCols+` FROM medical_records WHERE patient_id = $1 ORDER BY id`, patientID)
	return collect(rows, err, scanRecord)
}

func (r reader) GetHearingTest(ctx context.Context, id int64) (*domain.HearingTest, error) {
	return getOne(ctx, r.q, scanHearingTest, domain.ErrHearingTestNotFound, id,
		`SELECT `+testCols+` FROM hearing_tests WHERE id = $1`, id)
}

func (r reader) ListHearingTests(ctx context.Context, recordID int64) ([]domain.HearingTest, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+testCols+` FROM hearing_tests WHERE record_id = $1 ORDER BY id`, recordID)
	return collect(rows, err, scanHearingTest)
}

func (r reader) ListAudiogramData(ctx context.Context, testID int64) ([]domain.AudiogramData, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+audiogramCols+` FROM audiogram_data WHERE test_id = $1 ORDER BY id`, testID)
	return collect(rows, err, scanAudiogram)
}

func (r reader) ListPrescriptions(ctx context.Context, appointmentID int64) ([]domain.Prescription, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+prescriptionCols+` FROM prescriptions WHERE appointment_id = $1 ORDER BY id`, appointmentID)
	return collect(rows, err, scanPrescription)
}

func (r reader) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return getOne(ctx, r.q, scanProduct, domain.ErrProductNotFound, id,
		`SELECT `+productCols+` FROM products WHERE id = $1`+r.lockSuffix(), id)
}

func (r reader) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.q.Query(ctx, `SELECT `+productCols+` FROM products ORDER BY id`)
	return collect(rows, err, scanProduct)
}

func (r reader) ListInventoryTransactions(ctx context.Context, productID int64) ([]domain.InventoryTransaction, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+ledgerCols+` FROM inventory_transactions WHERE product_id = $1 ORDER BY id`, productID)
	return collect(rows, err, scanLedger)
}

func (r reader) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return getOne(ctx, r.q, scanOrder, domain.ErrOrderNotFound, id,
		`SELECT `+orderCols+` FROM orders WHERE id = $1`, id)
}

func (r reader) ListOrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+orderItemCols+` FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	return collect(rows, err, scanOrderItem)
}

func (r reader) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	return getOne(ctx, r.q, scanInvoice, domain.ErrInvoiceNotFound, id,
		`SELECT `+invoiceCols+` FROM invoices WHERE id = $1`, id)
}

func (r reader) FindInvoiceByOrder(ctx context.Context, orderID int64) (*domain.Invoice, error) {
	inv, err := scanInvoice(r.q.QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE order_id = $1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: order=%d", domain.ErrInvoiceNotFound, orderID)
	}
	return inv, err
}

func (r reader) FindInvoiceByAppointment(ctx context.Context, appointmentID int64) (*domain.Invoice, error) {
	inv, err := scanInvoice(r.q.QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE appointment_id = $1`, appointmentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: appointment=%d", domain.ErrInvoiceNotFound, appointmentID)
	}
	return inv, err
}

func (r reader) ListPayments(ctx context.Context, invoiceID int64) ([]domain.Payment, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE invoice_id = $1 ORDER BY id`, invoiceID)
	return collect(rows, err, scanPayment)
}
