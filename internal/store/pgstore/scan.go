package pgstore

import (
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-ops/internal/domain"
)

const (
	userCols         = `id, username, role`
	patientCols      = `id, user_id, first_name, last_name, date_of_birth, phone, email`
	audiologistCols  = `id, user_id, first_name, last_name, specialization`
	scheduleCols     = `id, audiologist_id, day_of_week`
	slotCols         = `id, schedule_id, start_minute, end_minute, is_available`
	appointmentCols  = `id, patient_id, audiologist_id, created_by, appt_date, time_slot_id, purpose_of_visit, status, fee, follow_up_required, follow_up_date, created_at, updated_at`
	recordCols       = `id, patient_id, appointment_id, created_by, chief_complaint, diagnosis, treatment_plan, record_date`
	testCols         = `id, record_id, test_type, test_date, test_notes`
	audiogramCols    = `id, test_id, ear, frequency, threshold`
	prescriptionCols = `id, appointment_id, product_id, prescribed_by, prescribed_date, notes`
	productCols      = `id, manufacturer, model, features, price, quantity_in_stock`
	ledgerCols       = `id, product_id, transaction_type, quantity, reason, transaction_date, processed_by`
	orderCols        = `id, patient_id, order_date, status, created_by`
	orderItemCols    = `id, order_id, product_id, quantity, unit_price`
	invoiceCols      = `id, patient_id, order_id, appointment_id, total_amount, issued_at, status`
	paymentCols      = `id, invoice_id, amount, method, paid_at, received_by`
)

// nullDate stores the zero time as NULL.
func nullDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var role string
	if err := row.Scan(&u.ID, &u.Username, &role); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	return &u, nil
}

func scanPatient(row pgx.Row) (*domain.Patient, error) {
	var p domain.Patient
	var dob *time.Time
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.FirstName,
		&p.LastName,
		&dob,
		&p.Phone,
		&p.Email,
	)
	if err != nil {
		return nil, err
	}
	if dob != nil {
		p.DateOfBirth = *dob
	}
	return &p, nil
}

func scanAudiologist(row pgx.Row) (*domain.Audiologist, error) {
	var a domain.Audiologist
	if err := row.Scan(&a.ID, &a.UserID, &a.FirstName, &a.LastName, &a.Specialization); err != nil {
		return nil, err
	}
	return &a, nil
}

func scanSchedule(row pgx.Row) (*domain.Schedule, error) {
	var s domain.Schedule
	var day int16
	if err := row.Scan(&s.ID, &s.AudiologistID, &day); err != nil {
		return nil, err
	}
	s.DayOfWeek = time.Weekday(day)
	return &s, nil
}

func scanSlot(row pgx.Row) (*domain.TimeSlot, error) {
	var s domain.TimeSlot
	var start, end int32
	if err := row.Scan(&s.ID, &s.ScheduleID, &start, &end, &s.IsAvailable); err != nil {
		return nil, err
	}
	s.StartTime = domain.TimeOfDay(start)
	s.EndTime = domain.TimeOfDay(end)
	return &s, nil
}

func scanAppointment(row pgx.Row) (*domain.Appointment, error) {
	var a domain.Appointment
	var status string
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.AudiologistID,
		&a.CreatedBy,
		&a.Date,
		&a.TimeSlotID,
		&a.PurposeOfVisit,
		&status,
		&a.Fee,
		&a.FollowUpRequired,
		&a.FollowUpDate,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = domain.AppointmentStatus(status)
	a.Date = domain.DateOf(a.Date)
	return &a, nil
}

func scanRecord(row pgx.Row) (*domain.MedicalRecord, error) {
	var r domain.MedicalRecord
	err := row.Scan(
		&r.ID,
		&r.PatientID,
		&r.AppointmentID,
		&r.CreatedBy,
		&r.ChiefComplaint,
		&r.Diagnosis,
		&r.TreatmentPlan,
		&r.RecordDate,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanHearingTest(row pgx.Row) (*domain.HearingTest, error) {
	var t domain.HearingTest
	var typ string
	if err := row.Scan(&t.ID, &t.RecordID, &typ, &t.TestDate, &t.TestNotes); err != nil {
		return nil, err
	}
	t.TestType = domain.TestType(typ)
	return &t, nil
}

func scanAudiogram(row pgx.Row) (*domain.AudiogramData, error) {
	var d domain.AudiogramData
	var ear string
	var freq, threshold int32
	if err := row.Scan(&d.ID, &d.TestID, &ear, &freq, &threshold); err != nil {
		return nil, err
	}
	d.Ear = domain.Ear(ear)
	d.Frequency = int(freq)
	d.Threshold = int(threshold)
	return &d, nil
}

func scanPrescription(row pgx.Row) (*domain.Prescription, error) {
	var p domain.Prescription
	if err := row.Scan(&p.ID, &p.AppointmentID, &p.ProductID, &p.PrescribedBy, &p.PrescribedDate, &p.Notes); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	var qty int32
	if err := row.Scan(&p.ID, &p.Manufacturer, &p.Model, &p.Features, &p.Price, &qty); err != nil {
		return nil, err
	}
	p.QuantityInStock = int(qty)
	return &p, nil
}

func scanLedger(row pgx.Row) (*domain.InventoryTransaction, error) {
	var t domain.InventoryTransaction
	var typ string
	var qty int32
	err := row.Scan(
		&t.ID,
		&t.ProductID,
		&typ,
		&qty,
		&t.Reason,
		&t.TransactionDate,
		&t.ProcessedBy,
	)
	if err != nil {
		return nil, err
	}
	t.Type = domain.TransactionType(typ)
	t.Quantity = int(qty)
	return &t, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var status string
	if err := row.Scan(&o.ID, &o.PatientID, &o.OrderDate, &status, &o.CreatedBy); err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

func scanOrderItem(row pgx.Row) (*domain.OrderItem, error) {
	var i domain.OrderItem
	var qty int32
	if err := row.Scan(&i.ID, &i.OrderID, &i.ProductID, &qty, &i.UnitPrice); err != nil {
		return nil, err
	}
	i.Quantity = int(qty)
	return &i, nil
}

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var inv domain.Invoice
	var status string
	err := row.Scan(
		&inv.ID,
		&inv.PatientID,
		&inv.OrderID,
		&inv.AppointmentID,
		&inv.TotalAmount,
		&inv.IssuedAt,
		&status,
	)
	if err != nil {
		return nil, err
	}
	inv.Status = domain.InvoiceStatus(status)
	return &inv, nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	var method string
	if err := row.Scan(&p.ID, &p.InvoiceID, &p.Amount, &method, &p.PaidAt, &p.ReceivedBy); err != nil {
		return nil, err
	}
	p.Method = domain.PaymentMethod(method)
	return &p, nil
}
