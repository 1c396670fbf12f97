package sqlitestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-ops/internal/domain"
	"github.com/hackgods/clinic-ops/internal/store"
)

func TestStateSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "clinic.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Ping(ctx))

	var product domain.Product
	var appt domain.Appointment
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		aud := &domain.Audiologist{FirstName: "Jin", LastName: "Lee"}
		if err := tx.InsertAudiologist(ctx, aud); err != nil {
			return err
		}
		pat := &domain.Patient{FirstName: "Maria", LastName: "Silva"}
		if err := tx.InsertPatient(ctx, pat); err != nil {
			return err
		}
		sched := &domain.Schedule{AudiologistID: aud.ID, DayOfWeek: time.Monday}
		if err := tx.InsertSchedule(ctx, sched); err != nil {
			return err
		}
		slot := &domain.TimeSlot{ScheduleID: sched.ID, StartTime: domain.Clock(9, 0), EndTime: domain.Clock(9, 30), IsAvailable: true}
		if err := tx.InsertTimeSlot(ctx, slot); err != nil {
			return err
		}
		appt = domain.Appointment{PatientID: pat.ID, AudiologistID: aud.ID, TimeSlotID: slot.ID,
			Date: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), Status: domain.StatusConfirmed, Fee: decimal.RequireFromString("85.50")}
		if err := tx.InsertAppointment(ctx, &appt); err != nil {
			return err
		}
		product = domain.Product{Manufacturer: "Phonak", Model: "Audeo", Price: decimal.RequireFromString("1200"), QuantityInStock: 3}
		return tx.InsertProduct(ctx, &product)
	}))

	// a failed update is neither applied nor persisted
	err = s.Update(ctx, func(tx store.Tx) error {
		p, err := tx.GetProduct(ctx, product.ID)
		if err != nil {
			return err
		}
		p.QuantityInStock = 0
		if err := tx.UpdateProduct(ctx, *p); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	require.NoError(t, reopened.View(ctx, func(r store.Reader) error {
		got, err := r.GetAppointment(ctx, appt.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusConfirmed, got.Status)
		assert.True(t, decimal.RequireFromString("85.5").Equal(got.Fee))
		assert.True(t, appt.Date.Equal(got.Date))

		p, err := r.GetProduct(ctx, product.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, p.QuantityInStock)

		slots, err := r.ListTimeSlots(ctx, 1)
		require.NoError(t, err)
		require.Len(t, slots, 1)
		assert.Equal(t, "09:00-09:30", slots[0].Label())
		return nil
	}))

	// sequences resume after the reloaded rows
	require.NoError(t, reopened.Update(ctx, func(tx store.Tx) error {
		p := &domain.Patient{FirstName: "Tom", LastName: "Berg"}
		require.NoError(t, tx.InsertPatient(ctx, p))
		assert.Equal(t, int64(2), p.ID)
		return nil
	}))
}

func TestOpenEmptyDatabase(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.View(ctx, func(r store.Reader) error {
		products, err := r.ListProducts(ctx)
		require.NoError(t, err)
		assert.Empty(t, products)
		return nil
	}))
}

func TestFailedPersistLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "clinic.db"))
	require.NoError(t, err)

	product := domain.Product{Manufacturer: "Oticon", Model: "Real 1", Price: decimal.NewFromInt(1800), QuantityInStock: 4}
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		return tx.InsertProduct(ctx, &product)
	}))

	require.NoError(t, s.db.Close())

	restock := func(tx store.Tx) error {
		p, err := tx.GetProduct(ctx, product.ID)
		if err != nil {
			return err
		}
		if err := tx.InsertInventoryTransaction(ctx, &domain.InventoryTransaction{
			ProductID: p.ID, Type: domain.TxRestock, Quantity: 6, TransactionDate: time.Now().UTC(),
		}); err != nil {
			return err
		}
		p.QuantityInStock += 6
		return tx.UpdateProduct(ctx, *p)
	}
	err = s.Update(ctx, restock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist state")

	require.NoError(t, s.View(ctx, func(r store.Reader) error {
		p, err := r.GetProduct(ctx, product.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, p.QuantityInStock)

		entries, err := r.ListInventoryTransactions(ctx, product.ID)
		require.NoError(t, err)
		assert.Empty(t, entries)
		return nil
	}))
}
