package billing

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-ops/internal/domain"
	"github.com/hackgods/clinic-ops/internal/inventory"
	redisclient "github.com/hackgods/clinic-ops/internal/redis"
	"github.com/hackgods/clinic-ops/internal/store"
	"github.com/hackgods/clinic-ops/internal/store/storetest"
)

type fixture struct {
	*storetest.Clinic
	inv     *inventory.Service
	billing *Service
	cheap   domain.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := storetest.NewClinic(t)
	inv := inventory.NewService(c.Store, redisclient.NewLocalLocker(time.Second), zerolog.Nop())
	cheap, err := inv.CreateProduct(context.Background(), c.Admin, domain.Product{
		Manufacturer:    "Rayovac",
		Model:           "Size 312 batteries",
		Price:           decimal.RequireFromString("7.50"),
		QuantityInStock: 40,
	})
	require.NoError(t, err)
	return &fixture{Clinic: c, inv: inv, billing: NewService(c.Store, inv, zerolog.Nop()), cheap: *cheap}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestOrderInvoicePayFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	order, items, err := f.billing.PlaceOrder(ctx, f.Receptionist, f.Patient.ID, []OrderLine{
		{ProductID: f.Product.ID, Quantity: 2},
		{ProductID: f.cheap.ID, Quantity: 4},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, domain.OrderPlaced, order.Status)
	assert.Equal(t, 8, f.Stock(t, f.Product.ID))
	assert.Equal(t, 36, f.Stock(t, f.cheap.ID))

	// later price changes do not touch placed lines
	_, err = f.inv.SetPrice(ctx, f.Admin, f.Product.ID, dec("1500.00"))
	require.NoError(t, err)

	inv, err := f.billing.InvoiceOrder(ctx, f.Receptionist, order.ID)
	require.NoError(t, err)
	assert.True(t, dec("2430.00").Equal(inv.TotalAmount), "total %s", inv.TotalAmount)
	assert.Equal(t, domain.InvoiceUnpaid, inv.Status)

	_, err = f.billing.InvoiceOrder(ctx, f.Receptionist, order.ID)
	assert.ErrorIs(t, err, domain.ErrDuplicateRecord)

	_, inv, err = f.billing.RecordPayment(ctx, f.Receptionist, inv.ID, dec("1000"), domain.PaymentCard)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePartiallyPaid, inv.Status)

	due, err := f.billing.Outstanding(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, dec("1430").Equal(due))

	_, _, err = f.billing.RecordPayment(ctx, f.Receptionist, inv.ID, dec("2000"), domain.PaymentCash)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	_, _, err = f.billing.RecordPayment(ctx, f.Receptionist, inv.ID, dec("0"), domain.PaymentCash)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	_, _, err = f.billing.RecordPayment(ctx, f.Receptionist, inv.ID, dec("10"), "cheque")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, inv, err = f.billing.RecordPayment(ctx, f.Receptionist, inv.ID, dec("1430"), domain.PaymentInsurance)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePaid, inv.Status)
}

func TestPlaceOrderIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, err := f.billing.PlaceOrder(ctx, f.Receptionist, f.Patient.ID, []OrderLine{
		{ProductID: f.cheap.ID, Quantity: 4},
		{ProductID: f.Product.ID, Quantity: 11},
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 40, f.Stock(t, f.cheap.ID))
	assert.Equal(t, 10, f.Stock(t, f.Product.ID))
	assert.Len(t, f.Ledger(t, f.cheap.ID), 1)

	require.NoError(t, f.Store.View(ctx, func(r store.Reader) error {
		_, err := r.GetOrder(ctx, 1)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		return nil
	}))

	for _, id := range []int64{f.cheap.ID, f.Product.ID} {
		rec, err := f.inv.Verify(ctx, id)
		require.NoError(t, err)
		assert.True(t, rec.Consistent)
	}
}

func TestPlaceOrderValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, err := f.billing.PlaceOrder(ctx, f.PatientActor, f.Patient.ID, []OrderLine{{ProductID: f.cheap.ID, Quantity: 1}})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, _, err = f.billing.PlaceOrder(ctx, f.Receptionist, f.Patient.ID, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = f.billing.PlaceOrder(ctx, f.Receptionist, f.Patient.ID, []OrderLine{{ProductID: f.cheap.ID, Quantity: 0}})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, _, err = f.billing.PlaceOrder(ctx, f.Receptionist, 999, []OrderLine{{ProductID: f.cheap.ID, Quantity: 1}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInvoiceAppointment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var pending, completed domain.Appointment
	require.NoError(t, f.Store.Update(ctx, func(tx store.Tx) error {
		pending = domain.Appointment{PatientID: f.Patient.ID, AudiologistID: f.Audiologist.ID, Date: storetest.Monday,
			TimeSlotID: f.Slots[0].ID, Status: domain.StatusPending, Fee: dec("50")}
		if err := tx.InsertAppointment(ctx, &pending); err != nil {
			return err
		}
		completed = domain.Appointment{PatientID: f.Patient.ID, AudiologistID: f.Audiologist.ID, Date: storetest.Monday,
			TimeSlotID: f.Slots[1].ID, Status: domain.StatusCompleted, Fee: dec("85.00")}
		return tx.InsertAppointment(ctx, &completed)
	}))

	_, err := f.billing.InvoiceAppointment(ctx, f.Receptionist, pending.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	inv, err := f.billing.InvoiceAppointment(ctx, f.Receptionist, completed.ID)
	require.NoError(t, err)
	assert.True(t, dec("85").Equal(inv.TotalAmount))
	require.NotNil(t, inv.AppointmentID)
	assert.Equal(t, completed.ID, *inv.AppointmentID)

	_, err = f.billing.InvoiceAppointment(ctx, f.Receptionist, completed.ID)
	assert.ErrorIs(t, err, domain.ErrDuplicateRecord)
}

func TestZeroTotalInvoiceIsPaidAtIssue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var free domain.Appointment
	require.NoError(t, f.Store.Update(ctx, func(tx store.Tx) error {
		free = domain.Appointment{PatientID: f.Patient.ID, AudiologistID: f.Audiologist.ID, Date: storetest.Monday,
			TimeSlotID: f.Slots[2].ID, Status: domain.StatusCompleted, Fee: decimal.Zero}
		return tx.InsertAppointment(ctx, &free)
	}))

	inv, err := f.billing.InvoiceAppointment(ctx, f.Receptionist, free.ID)
	require.NoError(t, err)
	assert.True(t, inv.TotalAmount.IsZero())
	assert.Equal(t, domain.InvoicePaid, inv.Status)

	_, _, err = f.billing.RecordPayment(ctx, f.Receptionist, inv.ID, dec("0.01"), domain.PaymentCash)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}
