package store

import "github.com/hackgods/clinic-ops/internal/domain"

// Snapshot is a point-in-time copy of every entity in a Memory store, keyed
// by bucket name for durable wrappers.
type Snapshot struct {
	Users         []domain.User                 `json:"users"`
	Patients      []domain.Patient              `json:"patients"`
	Audiologists  []domain.Audiologist          `json:"audiologists"`
	Schedules     []domain.Schedule             `json:"schedules"`
	TimeSlots     []domain.TimeSlot             `json:"time_slots"`
	Appointments  []domain.Appointment          `json:"appointments"`
	Records       []domain.MedicalRecord        `json:"medical_records"`
	HearingTests  []domain.HearingTest          `json:"hearing_tests"`
	Audiogram     []domain.AudiogramData        `json:"audiogram_data"`
	Prescriptions []domain.Prescription         `json:"prescriptions"`
	Products      []domain.Product              `json:"products"`
	Ledger        []domain.InventoryTransaction `json:"inventory_transactions"`
	Orders        []domain.Order                `json:"orders"`
	OrderItems    []domain.OrderItem            `json:"order_items"`
	Invoices      []domain.Invoice              `json:"invoices"`
	Payments      []domain.Payment              `json:"payments"`
}

// Export returns the currently published state.
func (m *Memory) Export() Snapshot {
	return m.state.Load().snapshot()
}

func (st *memoryState) snapshot() Snapshot {
	return Snapshot{
		Users:         st.users.filter(nil),
		Patients:      st.patients.filter(nil),
		Audiologists:  st.audiologists.filter(nil),
		Schedules:     st.schedules.filter(nil),
		TimeSlots:     st.slots.filter(nil),
		Appointments:  st.appointments.filter(nil),
		Records:       st.records.filter(nil),
		HearingTests:  st.tests.filter(nil),
		Audiogram:     st.audiogram.filter(nil),
		Prescriptions: st.scripts.filter(nil),
		Products:      st.products.filter(nil),
		Ledger:        st.ledger.filter(nil),
		Orders:        st.orders.filter(nil),
		OrderItems:    st.orderItems.filter(nil),
		Invoices:      st.invoices.filter(nil),
		Payments:      st.payments.filter(nil),
	}
}

// Import replaces the store contents with s. Identity sequences resume after
// the highest imported id of each entity.
func (m *Memory) Import(s Snapshot) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	st := newMemoryState()
	putAll(st.users, s.Users)
	putAll(st.patients, s.Patients)
	putAll(st.audiologists, s.Audiologists)
	putAll(st.schedules, s.Schedules)
	putAll(st.slots, s.TimeSlots)
	putAll(st.appointments, s.Appointments)
	putAll(st.records, s.Records)
	putAll(st.tests, s.HearingTests)
	putAll(st.audiogram, s.Audiogram)
	putAll(st.scripts, s.Prescriptions)
	putAll(st.products, s.Products)
	putAll(st.ledger, s.Ledger)
	putAll(st.orders, s.Orders)
	putAll(st.orderItems, s.OrderItems)
	putAll(st.invoices, s.Invoices)
	putAll(st.payments, s.Payments)
	m.state.Store(st)
}

func putAll[T any](t *table[T], rows []T) {
	for _, r := range rows {
		t.put(r)
	}
}
