// Package storetest seeds a small clinic into a memory store for tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-ops/internal/domain"
	"github.com/hackgods/clinic-ops/internal/store"
)

// Monday is a fixed Monday used as the booking date across tests.
var Monday = time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

// Clinic is one audiologist working Monday mornings, one patient with a
// login, a second patient without one, and a stocked product.
type Clinic struct {
	Store *store.Memory

	Admin        domain.Actor
	Receptionist domain.Actor

	Audiologist      domain.Audiologist
	AudiologistActor domain.Actor
	// Colleague is a second audiologist with no schedule.
	Colleague      domain.Audiologist
	ColleagueActor domain.Actor

	Patient      domain.Patient
	PatientActor domain.Actor
	Walkin       domain.Patient

	MondaySchedule domain.Schedule
	// Slots are the six Monday slots from 09:00 to 12:00.
	Slots []domain.TimeSlot

	Product domain.Product
}

func NewClinic(t testing.TB) *Clinic {
	t.Helper()
	ctx := context.Background()
	c := &Clinic{Store: store.NewMemory()}

	err := c.Store.Update(ctx, func(tx store.Tx) error {
		user := func(name string, role domain.Role) domain.Actor {
			u := &domain.User{Username: name, Role: role}
			require.NoError(t, tx.InsertUser(ctx, u))
			return domain.Actor{UserID: u.ID, Role: role}
		}
		c.Admin = user("admin", domain.RoleAdmin)
		c.Receptionist = user("frontdesk", domain.RoleReceptionist)
		c.AudiologistActor = user("dr.lee", domain.RoleAudiologist)
		c.ColleagueActor = user("dr.okafor", domain.RoleAudiologist)
		c.PatientActor = user("maria", domain.RolePatient)

		c.Audiologist = domain.Audiologist{UserID: c.AudiologistActor.UserID, FirstName: "Jin", LastName: "Lee", Specialization: "Paediatric"}
		require.NoError(t, tx.InsertAudiologist(ctx, &c.Audiologist))
		c.Colleague = domain.Audiologist{UserID: c.ColleagueActor.UserID, FirstName: "Ada", LastName: "Okafor"}
		require.NoError(t, tx.InsertAudiologist(ctx, &c.Colleague))

		uid := c.PatientActor.UserID
		c.Patient = domain.Patient{UserID: &uid, FirstName: "Maria", LastName: "Silva", DateOfBirth: time.Date(1960, 5, 17, 0, 0, 0, 0, time.UTC)}
		require.NoError(t, tx.InsertPatient(ctx, &c.Patient))
		c.Walkin = domain.Patient{FirstName: "Tom", LastName: "Berg"}
		require.NoError(t, tx.InsertPatient(ctx, &c.Walkin))

		c.MondaySchedule = domain.Schedule{AudiologistID: c.Audiologist.ID, DayOfWeek: time.Monday}
		require.NoError(t, tx.InsertSchedule(ctx, &c.MondaySchedule))
		for start := domain.Clock(9, 0); start < domain.Clock(12, 0); start = start.Add(30 * time.Minute) {
			s := domain.TimeSlot{ScheduleID: c.MondaySchedule.ID, StartTime: start, EndTime: start.Add(30 * time.Minute), IsAvailable: true}
			require.NoError(t, tx.InsertTimeSlot(ctx, &s))
			c.Slots = append(c.Slots, s)
		}

		c.Product = domain.Product{Manufacturer: "Phonak", Model: "Audeo L90", Price: decimal.RequireFromString("1200.00"), QuantityInStock: 10}
		require.NoError(t, tx.InsertProduct(ctx, &c.Product))
		return tx.InsertInventoryTransaction(ctx, &domain.InventoryTransaction{
			ProductID:       c.Product.ID,
			Type:            domain.TxRestock,
			Quantity:        10,
			Reason:          "opening stock",
			TransactionDate: Monday,
			ProcessedBy:     c.Admin.UserID,
		})
	})
	require.NoError(t, err)
	return c
}

// Appointment reads an appointment straight from the store.
func (c *Clinic) Appointment(t testing.TB, id int64) domain.Appointment {
	t.Helper()
	var out domain.Appointment
	require.NoError(t, c.Store.View(context.Background(), func(r store.Reader) error {
		a, err := r.GetAppointment(context.Background(), id)
		if err != nil {
			return err
		}
		out = *a
		return nil
	}))
	return out
}

// Stock reads the cached on-hand quantity of a product.
func (c *Clinic) Stock(t testing.TB, productID int64) int {
	t.Helper()
	var qty int
	require.NoError(t, c.Store.View(context.Background(), func(r store.Reader) error {
		p, err := r.GetProduct(context.Background(), productID)
		if err != nil {
			return err
		}
		qty = p.QuantityInStock
		return nil
	}))
	return qty
}

// Ledger lists a product's inventory transactions.
func (c *Clinic) Ledger(t testing.TB, productID int64) []domain.InventoryTransaction {
	t.Helper()
	var out []domain.InventoryTransaction
	require.NoError(t, c.Store.View(context.Background(), func(r store.Reader) error {
		var err error
		out, err = r.ListInventoryTransactions(context.Background(), productID)
		return err
	}))
	return out
}
