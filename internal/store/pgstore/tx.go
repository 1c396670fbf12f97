package pgstore

import (
	"context"
	"fmt"

	"github.com/hackgods/clinic-ops/internal/domain"
)

type pgTx struct {
	reader
}

// insert runs an INSERT ... RETURNING id and stores the identity in id.
func (tx *pgTx) insert(ctx context.Context, id *int64, sql string, args ...any) error {
	if err := tx.q.QueryRow(ctx, sql, args...).Scan(id); err != nil {
		return translate(err)
	}
	return nil
}

// update runs an UPDATE and reports notFound when no row matched.
func (tx *pgTx) update(ctx context.Context, notFound error, id int64, sql string, args ...any) error {
	tag, err := tx.q.Exec(ctx, sql, args...)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id=%d", notFound, id)
	}
	return nil
}

func (tx *pgTx) InsertUser(ctx context.Context, u *domain.User) error {
	return tx.insert(ctx, &u.ID,
		`INSERT INTO users (username, role) VALUES ($1, $2) RETURNING id`,
		u.Username, string(u.Role))
}

func (tx *pgTx) InsertPatient(ctx context.Context, p *domain.Patient) error {
	return tx.insert(ctx, &p.ID, `
		INSERT INTO patients (user_id, first_name, last_name, date_of_birth, phone, email)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		p.UserID, p.FirstName, p.LastName, nullDate(p.DateOfBirth), p.Phone, p.Email)
}

func (tx *pgTx) InsertAudiologist(ctx context.Context, a *domain.Audiologist) error {
	return tx.insert(ctx, &a.ID, `
		INSERT INTO audiologists (user_id, first_name, last_name, specialization)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		a.UserID, a.FirstName, a.LastName, a.Specialization)
}

func (tx *pgTx) InsertSchedule(ctx context.Context, s *domain.Schedule) error {
	return tx.insert(ctx, &s.ID,
		`INSERT INTO schedules (audiologist_id, day_of_week) VALUES ($1, $2) RETURNING id`,
		s.AudiologistID, int16(s.DayOfWeek))
}

func (tx *pgTx) InsertTimeSlot(ctx context.Context, s *domain.TimeSlot) error {
	return tx.insert(ctx, &s.ID, `
		INSERT INTO time_slots (schedule_id, start_minute, end_minute, is_available)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		s.ScheduleID, int32(s.StartTime), int32(s.EndTime), s.IsAvailable)
}

func (tx *pgTx) UpdateTimeSlot(ctx context.Context, s domain.TimeSlot) error {
	return tx.update(ctx, domain.ErrSlotNotFound, s.ID, `
		UPDATE time_slots
		SET start_minute = $2, end_minute = $3, is_available = $4
		WHERE id = $1`,
		s.ID, int32(s.StartTime), int32(s.EndTime), s.IsAvailable)
}

func (tx *pgTx) InsertAppointment(ctx context.Context, a *domain.Appointment) error {
	a.Date = domain.DateOf(a.Date)
	return tx.insert(ctx, &a.ID, `
		INSERT INTO appointments (
			patient_id, audiologist_id, created_by, appt_date, time_slot_id, purpose_of_visit,
			status, fee, follow_up_required, follow_up_date, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		a.PatientID, a.AudiologistID, a.CreatedBy, a.Date, a.TimeSlotID, a.PurposeOfVisit,
		string(a.Status), a.Fee, a.FollowUpRequired, a.FollowUpDate, a.CreatedAt, a.UpdatedAt)
}

func (tx *pgTx) UpdateAppointment(ctx context.Context, a domain.Appointment) error {
	return tx.update(ctx, domain.ErrAppointmentNotFound, a.ID, `
		UPDATE appointments
		SET status = $2,
		    purpose_of_visit = $3,
		    fee = $4,
		    follow_up_required = $5,
		    follow_up_date = $6,
		    updated_at = $7
		WHERE id = $1`,
		a.ID, string(a.Status), a.PurposeOfVisit, a.Fee, a.FollowUpRequired, a.FollowUpDate, a.UpdatedAt)
}

func (tx *pgTx) InsertMedicalRecord(ctx context.Context, r *domain.MedicalRecord) error {
	return tx.insert(ctx, &r.ID, `
		INSERT INTO medical_records (
			patient_id, appointment_id, created_by, chief_complaint, diagnosis, treatment_plan, record_date
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		r.PatientID, r.AppointmentID, r.CreatedBy, r.ChiefComplaint, r.Diagnosis, r.TreatmentPlan, r.RecordDate)
}

func (tx *pgTx) UpdateMedicalRecord(ctx context.Context, r domain.MedicalRecord) error {
	return tx.update(ctx, domain.ErrRecordNotFound, r.ID, `
		UPDATE medical_records
		SET chief_complaint = $2, diagnosis = $3, treatment_plan = $4
		WHERE id = $1`,
		r.ID, r.ChiefComplaint, r.Diagnosis, r.TreatmentPlan)
}

func (tx *pgTx) InsertHearingTest(ctx context.Context, t *domain.HearingTest) error {
	return tx.insert(ctx, &t.ID, `
		INSERT INTO hearing_tests (record_id, test_type, test_date, test_notes)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		t.RecordID, string(t.TestType), t.TestDate, t.TestNotes)
}

func (tx *pgTx) UpdateHearingTest(ctx context.Context, t domain.HearingTest) error {
	return tx.update(ctx, domain.ErrHearingTestNotFound, t.ID,
		`UPDATE hearing_tests SET test_notes = $2 WHERE id = $1`,
		t.ID, t.TestNotes)
}

func (tx *pgTx) InsertAudiogramData(ctx context.Context, d *domain.AudiogramData) error {
	return tx.insert(ctx, &d.ID, `
		INSERT INTO audiogram_data (test_id, ear, frequency, threshold)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		d.TestID, string(d.Ear), int32(d.Frequency), int32(d.Threshold))
}

func (tx *pgTx) InsertPrescription(ctx context.Context, p *domain.Prescription) error {
	return tx.insert(ctx, &p.ID, `
		INSERT INTO prescriptions (appointment_id, product_id, prescribed_by, prescribed_date, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		p.AppointmentID, p.ProductID, p.PrescribedBy, p.PrescribedDate, p.Notes)
}

func (tx *pgTx) InsertProduct(ctx context.Context, p *domain.Product) error {
	return tx.insert(ctx, &p.ID, `
		INSERT INTO products (manufacturer, model, features, price, quantity_in_stock)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		p.Manufacturer, p.Model, p.Features, p.Price, int32(p.QuantityInStock))
}

func (tx *pgTx) UpdateProduct(ctx context.Context, p domain.Product) error {
	return tx.update(ctx, domain.ErrProductNotFound, p.ID, `
		UPDATE products
		SET manufacturer = $2, model = $3, features = $4, price = $5, quantity_in_stock = $6
		WHERE id = $1`,
		p.ID, p.Manufacturer, p.Model, p.Features, p.Price, int32(p.QuantityInStock))
}

func (tx *pgTx) InsertInventoryTransaction(ctx context.Context, t *domain.InventoryTransaction) error {
	return tx.insert(ctx, &t.ID, `
		INSERT INTO inventory_transactions (
			product_id, transaction_type, quantity, reason, transaction_date, processed_by
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		t.ProductID, string(t.Type), int32(t.Quantity), t.Reason, t.TransactionDate, t.ProcessedBy)
}

func (tx *pgTx) InsertOrder(ctx context.Context, o *domain.Order) error {
	return tx.insert(ctx, &o.ID, `
		INSERT INTO orders (patient_id, order_date, status, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		o.PatientID, o.OrderDate, string(o.Status), o.CreatedBy)
}

func (tx *pgTx) UpdateOrder(ctx context.Context, o domain.Order) error {
	return tx.update(ctx, domain.ErrOrderNotFound, o.ID,
		`UPDATE orders SET status = $2 WHERE id = $1`,
		o.ID, string(o.Status))
}

func (tx *pgTx) InsertOrderItem(ctx context.Context, i *domain.OrderItem) error {
	return tx.insert(ctx, &i.ID, `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		i.OrderID, i.ProductID, int32(i.Quantity), i.UnitPrice)
}

func (tx *pgTx) InsertInvoice(ctx context.Context, inv *domain.Invoice) error {
	return tx.insert(ctx, &inv.ID, `
		INSERT INTO invoices (patient_id, order_id, appointment_id, total_amount, issued_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		inv.PatientID, inv.OrderID, inv.AppointmentID, inv.TotalAmount, inv.IssuedAt, string(inv.Status))
}

func (tx *pgTx) UpdateInvoice(ctx context.Context, inv domain.Invoice) error {
	return tx.update(ctx, domain.ErrInvoiceNotFound, inv.ID,
		`UPDATE invoices SET total_amount = $2, status = $3 WHERE id = $1`,
		inv.ID, inv.TotalAmount, string(inv.Status))
}

func (tx *pgTx) InsertPayment(ctx context.Context, p *domain.Payment) error {
	return tx.insert(ctx, &p.ID, `
		INSERT INTO payments (invoice_id, amount, method, paid_at, received_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		p.InvoiceID, p.Amount, string(p.Method), p.PaidAt, p.ReceivedBy)
}
