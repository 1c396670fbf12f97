package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hackgods/clinic-ops/internal/domain"
)

// Compile-time assertion that Memory satisfies Store.
var _ Store = (*Memory)(nil)

type table[T any] struct {
	rows map[int64]T
	seq  int64
	id   func(T) int64
}

func newTable[T any](id func(T) int64) *table[T] {
	return &table[T]{rows: make(map[int64]T), id: id}
}

func (t *table[T]) clone() *table[T] {
	c := &table[T]{rows: make(map[int64]T, len(t.rows)), seq: t.seq, id: t.id}
	for k, v := range t.rows {
		c.rows[k] = v
	}
	return c
}

func (t *table[T]) next() int64 {
	t.seq++
	return t.seq
}

func (t *table[T]) put(v T) {
	id := t.id(v)
	t.rows[id] = v
	if id > t.seq {
		t.seq = id
	}
}

func (t *table[T]) get(id int64, notFound error) (*T, error) {
	v, ok := t.rows[id]
	if !ok {
		return nil, fmt.Errorf("%w: id=%d", notFound, id)
	}
	return &v, nil
}

func (t *table[T]) has(id int64) bool {
	_, ok := t.rows[id]
	return ok
}

// filter returns matching rows ordered by id.
func (t *table[T]) filter(match func(T) bool) []T {
	out := make([]T, 0)
	for _, v := range t.rows {
		if match == nil || match(v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return t.id(out[i]) < t.id(out[j]) })
	return out
}

type memoryState struct {
	users        *table[domain.User]
	patients     *table[domain.Patient]
	audiologists *table[domain.Audiologist]
	schedules    *table[domain.Schedule]
	slots        *table[domain.TimeSlot]
	appointments *table[domain.Appointment]
	records      *table[domain.MedicalRecord]
	tests        *table[domain.HearingTest]
	audiogram    *table[domain.AudiogramData]
	scripts      *table[domain.Prescription]
	products     *table[domain.Product]
	ledger       *table[domain.InventoryTransaction]
	orders       *table[domain.Order]
	orderItems   *table[domain.OrderItem]
	invoices     *table[domain.Invoice]
	payments     *table[domain.Payment]
}

func newMemoryState() *memoryState {
	return &memoryState{
		users:        newTable(func(v domain.User) int64 { return v.ID }),
		patients:     newTable(func(v domain.Patient) int64 { return v.ID }),
		audiologists: newTable(func(v domain.Audiologist) int64 { return v.ID }),
		schedules:    newTable(func(v domain.Schedule) int64 { return v.ID }),
		slots:        newTable(func(v domain.TimeSlot) int64 { return v.ID }),
		appointments: newTable(func(v domain.Appointment) int64 { return v.ID }),
		records:      newTable(func(v domain.MedicalRecord) int64 { return v.ID }),
		tests:        newTable(func(v domain.HearingTest) int64 { return v.ID }),
		audiogram:    newTable(func(v domain.AudiogramData) int64 { return v.ID }),
		scripts:      newTable(func(v domain.Prescription) int64 { return v.ID }),
		products:     newTable(func(v domain.Product) int64 { return v.ID }),
		ledger:       newTable(func(v domain.InventoryTransaction) int64 { return v.ID }),
		orders:       newTable(func(v domain.Order) int64 { return v.ID }),
		orderItems:   newTable(func(v domain.OrderItem) int64 { return v.ID }),
		invoices:     newTable(func(v domain.Invoice) int64 { return v.ID }),
		payments:     newTable(func(v domain.Payment) int64 { return v.ID }),
	}
}

// Memory is an in-memory Store. Published state is immutable: Update works on
// copies of the tables it touches and swaps them in on success, so readers
// take snapshots without locking and a failed Update leaves no trace.
type Memory struct {
	writeMu sync.Mutex
	state   atomic.Pointer[memoryState]
}

func NewMemory() *Memory {
	m := &Memory{}
	m.state.Store(newMemoryState())
	return m
}

func (m *Memory) Update(ctx context.Context, fn func(tx Tx) error) error {
	return m.UpdateAndCommit(ctx, fn, nil)
}

// UpdateAndCommit is Update with a commit hook. commit sees the state fn
// produced and runs under the writer lock before that state is published;
// if it fails, readers keep seeing the previous state.
func (m *Memory) UpdateAndCommit(ctx context.Context, fn func(tx Tx) error, commit func(Snapshot) error) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	cur := m.state.Load()
	next := *cur
	tx := &memTx{memReader: memReader{st: &next}, owned: make(map[any]bool)}
	if err := fn(tx); err != nil {
		return err
	}
	if commit != nil {
		if err := commit(next.snapshot()); err != nil {
			return err
		}
	}
	m.state.Store(&next)
	return nil
}

func (m *Memory) View(ctx context.Context, fn func(r Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(memReader{st: m.state.Load()})
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Memory) Close() error { return nil }

type memReader struct {
	st *memoryState
}

func (r memReader) GetUser(_ context.Context, id int64) (*domain.User, error) {
	return r.st.users.get(id, domain.ErrUserNotFound)
}

func (r memReader) GetPatient(_ context.Context, id int64) (*domain.Patient, error) {
	return r.st.patients.get(id, domain.ErrPatientNotFound)
}

func (r memReader) ListPatients(_ context.Context) ([]domain.Patient, error) {
	return r.st.patients.filter(nil), nil
}

func (r memReader) GetAudiologist(_ context.Context, id int64) (*domain.Audiologist, error) {
	return r.st.audiologists.get(id, domain.ErrAudiologistNotFound)
}

func (r memReader) ListAudiologists(_ context.Context) ([]domain.Audiologist, error) {
	return r.st.audiologists.filter(nil), nil
}

func (r memReader) GetSchedule(_ context.Context, id int64) (*domain.Schedule, error) {
	return r.st.schedules.get(id, domain.ErrScheduleNotFound)
}

func (r memReader) FindSchedule(_ context.Context, audiologistID int64, weekday time.Weekday) (*domain.Schedule, error) {
	found := r.st.schedules.filter(func(s domain.Schedule) bool {
		return s.AudiologistID == audiologistID && s.DayOfWeek == weekday
	})
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: audiologist=%d day=%s", domain.ErrScheduleNotFound, audiologistID, weekday)
	}
	return &found[0], nil
}

func (r memReader) ListSchedules(_ context.Context) ([]domain.Schedule, error) {
	return r.st.schedules.filter(nil), nil
}

func (r memReader) GetTimeSlot(_ context.Context, id int64) (*domain.TimeSlot, error) {
	return r.st.slots.get(id, domain.ErrSlotNotFound)
}

func (r memReader) ListTimeSlots(_ context.Context, scheduleID int64) ([]domain.TimeSlot, error) {
	slots := r.st.slots.filter(func(s domain.TimeSlot) bool { return s.ScheduleID == scheduleID })
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].StartTime < slots[j].StartTime })
	return slots, nil
}

func (r memReader) GetAppointment(_ context.Context, id int64) (*domain.Appointment, error) {
	return r.st.appointments.get(id, domain.ErrAppointmentNotFound)
}

func (r memReader) ListAppointments(_ context.Context, f AppointmentFilter) ([]domain.Appointment, error) {
	appts := r.st.appointments.filter(f.Match)
	sort.SliceStable(appts, func(i, j int) bool { return appts[i].Date.Before(appts[j].Date) })
	return appts, nil
}

func (r memReader) GetMedicalRecord(_ context.Context, id int64) (*domain.MedicalRecord, error) {
	return r.st.records.get(id, domain.ErrRecordNotFound)
}

func (r memReader) GetMedicalRecordByAppointment(_ context.Context, appointmentID int64) (*domain.MedicalRecord, error) {
	found := r.st.records.filter(func(m domain.MedicalRecord) bool { return m.AppointmentID == appointmentID })
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: appointment=%d", domain.ErrRecordNotFound, appointmentID)
	}
	return &found[0], nil
}

func (r memReader) ListMedicalRecords(_ context.Context, patientID int64) ([]domain.MedicalRecord, error) {
	return r.st.records.filter(func(m domain.MedicalRecord) bool { return m.PatientID == patientID }), nil
}

func (r memReader) GetHearingTest(_ context.Context, id int64) (*domain.HearingTest, error) {
	return r.st.tests.get(id, domain.ErrHearingTestNotFound)
}

func (r memReader) ListHearingTests(_ context.Context, recordID int64) ([]domain.HearingTest, error) {
	return r.st.tests.filter(func(t domain.HearingTest) bool { return t.RecordID == recordID }), nil
}

func (r memReader) ListAudiogramData(_ context.Context, testID int64) ([]domain.AudiogramData, error) {
	return r.st.audiogram.filter(func(d domain.AudiogramData) bool { return d.TestID == testID }), nil
}

func (r memReader) ListPrescriptions(_ context.Context, appointmentID int64) ([]domain.Prescription, error) {
	return r.st.scripts.filter(func(p domain.Prescription) bool { return p.AppointmentID == appointmentID }), nil
}

func (r memReader) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	return r.st.products.get(id, domain.ErrProductNotFound)
}

func (r memReader) ListProducts(_ context.Context) ([]domain.Product, error) {
	return r.st.products.filter(nil), nil
}

func (r memReader) ListInventoryTransactions(_ context.Context, productID int64) ([]domain.InventoryTransaction, error) {
	return r.st.ledger.filter(func(t domain.InventoryTransaction) bool { return t.ProductID == productID }), nil
}

func (r memReader) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	return r.st.orders.get(id, domain.ErrOrderNotFound)
}

func (r memReader) ListOrderItems(_ context.Context, orderID int64) ([]domain.OrderItem, error) {
	return r.st.orderItems.filter(func(i domain.OrderItem) bool { return i.OrderID == orderID }), nil
}

func (r memReader) GetInvoice(_ context.Context, id int64) (*domain.Invoice, error) {
	return r.st.invoices.get(id, domain.ErrInvoiceNotFound)
}

func (r memReader) FindInvoiceByOrder(_ context.Context, orderID int64) (*domain.Invoice, error) {
	found := r.st.invoices.filter(func(inv domain.Invoice) bool {
		return inv.OrderID != nil && *inv.OrderID == orderID
	})
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: order=%d", domain.ErrInvoiceNotFound, orderID)
	}
	return &found[0], nil
}

func (r memReader) FindInvoiceByAppointment(_ context.Context, appointmentID int64) (*domain.Invoice, error) {
	found := r.st.invoices.filter(func(inv domain.Invoice) bool {
		return inv.AppointmentID != nil && *inv.AppointmentID == appointmentID
	})
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: appointment=%d", domain.ErrInvoiceNotFound, appointmentID)
	}
	return &found[0], nil
}

func (r memReader) ListPayments(_ context.Context, invoiceID int64) ([]domain.Payment, error) {
	return r.st.payments.filter(func(p domain.Payment) bool { return p.InvoiceID == invoiceID }), nil
}

type memTx struct {
	memReader
	owned map[any]bool
}

// writable returns a private copy of the table behind field, cloning it on
// first write within the transaction.
func writable[T any](tx *memTx, field **table[T]) *table[T] {
	if !tx.owned[field] {
		*field = (*field).clone()
		tx.owned[field] = true
	}
	return *field
}

func (tx *memTx) InsertUser(_ context.Context, u *domain.User) error {
	t := writable(tx, &tx.st.users)
	u.ID = t.next()
	t.put(*u)
	return nil
}

func (tx *memTx) InsertPatient(_ context.Context, p *domain.Patient) error {
	t := writable(tx, &tx.st.patients)
	p.ID = t.next()
	t.put(*p)
	return nil
}

func (tx *memTx) InsertAudiologist(_ context.Context, a *domain.Audiologist) error {
	t := writable(tx, &tx.st.audiologists)
	a.ID = t.next()
	t.put(*a)
	return nil
}

func (tx *memTx) InsertSchedule(_ context.Context, s *domain.Schedule) error {
	if !tx.st.audiologists.has(s.AudiologistID) {
		return fmt.Errorf("%w: id=%d", domain.ErrAudiologistNotFound, s.AudiologistID)
	}
	t := writable(tx, &tx.st.schedules)
	s.ID = t.next()
	t.put(*s)
	return nil
}

func (tx *memTx) InsertTimeSlot(_ context.Context, s *domain.TimeSlot) error {
	if !tx.st.schedules.has(s.ScheduleID) {
		return fmt.Errorf("%w: id=%d", domain.ErrScheduleNotFound, s.ScheduleID)
	}
	dup := tx.st.slots.filter(func(o domain.TimeSlot) bool {
		return o.ScheduleID == s.ScheduleID && o.StartTime == s.StartTime && o.EndTime == s.EndTime
	})
	if len(dup) > 0 {
		return fmt.Errorf("slot %s on schedule %d: %w", s.Label(), s.ScheduleID, domain.ErrDuplicateRecord)
	}
	t := writable(tx, &tx.st.slots)
	s.ID = t.next()
	t.put(*s)
	return nil
}

func (tx *memTx) UpdateTimeSlot(_ context.Context, s domain.TimeSlot) error {
	if !tx.st.slots.has(s.ID) {
		return fmt.Errorf("%w: id=%d", domain.ErrSlotNotFound, s.ID)
	}
	writable(tx, &tx.st.slots).put(s)
	return nil
}

// checkOccupancy enforces at most one active appointment per (slot, date).
func (tx *memTx) checkOccupancy(a domain.Appointment) error {
	if !a.Status.Active() {
		return nil
	}
	clash := tx.st.appointments.filter(func(o domain.Appointment) bool {
		return o.ID != a.ID && ActiveOn(a.TimeSlotID, a.Date).Match(o)
	})
	if len(clash) > 0 {
		return fmt.Errorf("slot %d on %s held by appointment %d: %w",
			a.TimeSlotID, a.Date.Format(time.DateOnly), clash[0].ID, domain.ErrSlotUnavailable)
	}
	return nil
}

func (tx *memTx) InsertAppointment(_ context.Context, a *domain.Appointment) error {
	a.Date = domain.DateOf(a.Date)
	if err := tx.checkOccupancy(*a); err != nil {
		return err
	}
	t := writable(tx, &tx.st.appointments)
	a.ID = t.next()
	t.put(*a)
	return nil
}

func (tx *memTx) UpdateAppointment(_ context.Context, a domain.Appointment) error {
	if !tx.st.appointments.has(a.ID) {
		return fmt.Errorf("%w: id=%d", domain.ErrAppointmentNotFound, a.ID)
	}
	if err := tx.checkOccupancy(a); err != nil {
		return err
	}
	writable(tx, &tx.st.appointments).put(a)
	return nil
}

func (tx *memTx) InsertMedicalRecord(ctx context.Context, r *domain.MedicalRecord) error {
	if _, err := tx.GetMedicalRecordByAppointment(ctx, r.AppointmentID); err == nil {
		return fmt.Errorf("medical record for appointment %d: %w", r.AppointmentID, domain.ErrDuplicateRecord)
	}
	t := writable(tx, &tx.st.records)
	r.ID = t.next()
	t.put(*r)
	return nil
}

func (tx *memTx) UpdateMedicalRecord(_ context.Context, r domain.MedicalRecord) error {
	if !tx.st.records.has(r.ID) {
		return fmt.Errorf("%w: id=%d", domain.ErrRecordNotFound, r.ID)
	}
	writable(tx, &tx.st.records).put(r)
	return nil
}

func (tx *memTx) InsertHearingTest(_ context.Context, ht *domain.HearingTest) error {
	if !tx.st.records.has(ht.RecordID) {
		return fmt.Errorf("%w: id=%d", domain.ErrRecordNotFound, ht.RecordID)
	}
	t := writable(tx, &tx.st.tests)
	ht.ID = t.next()
	t.put(*ht)
	return nil
}

func (tx *memTx) UpdateHearingTest(_ context.Context, ht domain.HearingTest) error {
	if !tx.st.tests.has(ht.ID) {
		return fmt.Errorf("%w: id=%d", domain.ErrHearingTestNotFound, ht.ID)
	}
	writable(tx, &tx.st.tests).put(ht)
	return nil
}

func (tx *memTx) InsertAudiogramData(_ context.Context, d *domain.AudiogramData) error {
	if !tx.st.tests.has(d.TestID) {
		return fmt.Errorf("%w: id=%d", domain.ErrHearingTestNotFound, d.TestID)
	}
	t := writable(tx, &tx.st.audiogram)
	d.ID = t.next()
	t.put(*d)
	return nil
}

func (tx *memTx) InsertPrescription(_ context.Context, p *domain.Prescription) error {
	if p.ProductID != nil && !tx.st.products.has(*p.ProductID) {
		return fmt.Errorf("%w: id=%d", domain.ErrProductNotFound, *p.ProductID)
	}
	t := writable(tx, &tx.st.scripts)
	p.ID = t.next()
	t.put(*p)
	return nil
}

func (tx *memTx) InsertProduct(_ context.Context, p *domain.Product) error {
	if p.QuantityInStock < 0 {
		return fmt.Errorf("product %s: %w", p.Label(), domain.ErrInsufficientStock)
	}
	t := writable(tx, &tx.st.products)
	p.ID = t.next()
	t.put(*p)
	return nil
}

func (tx *memTx) UpdateProduct(_ context.Context, p domain.Product) error {
	if !tx.st.products.has(p.ID) {
		return fmt.Errorf("%w: id=%d", domain.ErrProductNotFound, p.ID)
	}
	if p.QuantityInStock < 0 {
		return fmt.Errorf("product %d would reach %d: %w", p.ID, p.QuantityInStock, domain.ErrInsufficientStock)
	}
	writable(tx, &tx.st.products).put(p)
	return nil
}

func (tx *memTx) InsertInventoryTransaction(_ context.Context, it *domain.InventoryTransaction) error {
	if !tx.st.products.has(it.ProductID) {
		return fmt.Errorf("%w: id=%d", domain.ErrProductNotFound, it.ProductID)
	}
	t := writable(tx, &tx.st.ledger)
	it.ID = t.next()
	t.put(*it)
	return nil
}

func (tx *memTx) InsertOrder(_ context.Context, o *domain.Order) error {
	if !tx.st.patients.has(o.PatientID) {
		return fmt.Errorf("%w: id=%d", domain.ErrPatientNotFound, o.PatientID)
	}
	t := writable(tx, &tx.st.orders)
	o.ID = t.next()
	t.put(*o)
	return nil
}

func (tx *memTx) UpdateOrder(_ context.Context, o domain.Order) error {
	if !tx.st.orders.has(o.ID) {
		return fmt.Errorf("%w: id=%d", domain.ErrOrderNotFound, o.ID)
	}
	writable(tx, &tx.st.orders).put(o)
	return nil
}

func (tx *memTx) InsertOrderItem(_ context.Context, i *domain.OrderItem) error {
	if !tx.st.orders.has(i.OrderID) {
		return fmt.Errorf("%w: id=%d", domain.ErrOrderNotFound, i.OrderID)
	}
	t := writable(tx, &tx.st.orderItems)
	i.ID = t.next()
	t.put(*i)
	return nil
}

func (tx *memTx) InsertInvoice(ctx context.Context, inv *domain.Invoice) error {
	if inv.OrderID != nil {
		if _, err := tx.FindInvoiceByOrder(ctx, *inv.OrderID); err == nil {
			return fmt.Errorf("invoice for order %d: %w", *inv.OrderID, domain.ErrDuplicateRecord)
		}
	}
	if inv.AppointmentID != nil {
		if _, err := tx.FindInvoiceByAppointment(ctx, *inv.AppointmentID); err == nil {
			return fmt.Errorf("invoice for appointment %d: %w", *inv.AppointmentID, domain.ErrDuplicateRecord)
		}
	}
	t := writable(tx, &tx.st.invoices)
	inv.ID = t.next()
	t.put(*inv)
	return nil
}

func (tx *memTx) UpdateInvoice(_ context.Context, inv domain.Invoice) error {
	if !tx.st.invoices.has(inv.ID) {
		return fmt.Errorf("%w: id=%d", domain.ErrInvoiceNotFound, inv.ID)
	}
	writable(tx, &tx.st.invoices).put(inv)
	return nil
}

func (tx *memTx) InsertPayment(_ context.Context, p *domain.Payment) error {
	if !tx.st.invoices.has(p.InvoiceID) {
		return fmt.Errorf("%w: id=%d", domain.ErrInvoiceNotFound, p.InvoiceID)
	}
	t := writable(tx, &tx.st.payments)
	p.ID = t.next()
	t.put(*p)
	return nil
}
