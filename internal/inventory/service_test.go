package inventory

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-ops/internal/domain"
	redisclient "github.com/hackgods/clinic-ops/internal/redis"
	"github.com/hackgods/clinic-ops/internal/store/storetest"
)

func newService(t *testing.T) (*Service, *storetest.Clinic) {
	t.Helper()
	c := storetest.NewClinic(t)
	return NewService(c.Store, redisclient.NewLocalLocker(2*time.Second), zerolog.Nop()), c
}

func TestRemoveStockScenario(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)
	require.Equal(t, 10, c.Stock(t, c.Product.ID))

	_, err := svc.RemoveStock(ctx, c.Receptionist, c.Product.ID, 15, domain.TxSale, "walk-in sale")
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 10, c.Stock(t, c.Product.ID))
	assert.Len(t, c.Ledger(t, c.Product.ID), 1)

	txID, err := svc.RemoveStock(ctx, c.Receptionist, c.Product.ID, 7, domain.TxSale, "walk-in sale")
	require.NoError(t, err)
	assert.Equal(t, 3, c.Stock(t, c.Product.ID))

	ledger := c.Ledger(t, c.Product.ID)
	require.Len(t, ledger, 2)
	last := ledger[1]
	assert.Equal(t, txID, last.ID)
	assert.Equal(t, -7, last.Quantity)
	assert.Equal(t, domain.TxSale, last.Type)
	assert.Equal(t, c.Receptionist.UserID, last.ProcessedBy)
}

func TestQuantityMustBePositive(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)

	_, err := svc.AddStock(ctx, c.Admin, c.Product.ID, 0, "")
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	_, err = svc.RemoveStock(ctx, c.Admin, c.Product.ID, -2, domain.TxSale, "")
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	_, err = svc.Adjust(ctx, c.Admin, c.Product.ID, 0, "count")
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = svc.RemoveStock(ctx, c.Admin, c.Product.ID, 1, domain.TxRestock, "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.AddStock(ctx, c.Admin, 999, 5, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQuantityUpperBound(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)

	_, err := svc.AddStock(ctx, c.Receptionist, c.Product.ID, math.MaxInt-5, "bulk")
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = svc.AddStock(ctx, c.Receptionist, c.Product.ID, domain.MaxQuantity-5, "bulk")
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = svc.Adjust(ctx, c.Receptionist, c.Product.ID, math.MinInt, "miscount")
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	assert.Equal(t, 10, c.Stock(t, c.Product.ID))
	assert.Len(t, c.Ledger(t, c.Product.ID), 1)

	_, err = svc.AddStock(ctx, c.Receptionist, c.Product.ID, domain.MaxQuantity-10, "bulk")
	require.NoError(t, err)
	assert.Equal(t, domain.MaxQuantity, c.Stock(t, c.Product.ID))
}

func TestStockMovesAreStaffOnly(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)

	_, err := svc.AddStock(ctx, c.PatientActor, c.Product.ID, 5, "")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.CreateProduct(ctx, c.Receptionist, domain.Product{Manufacturer: "Oticon", Model: "Intent 1"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestAdjust(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)

	_, err := svc.Adjust(ctx, c.Admin, c.Product.ID, -2, "")
	assert.ErrorIs(t, err, domain.ErrValidation, "adjustments need a reason")

	_, err = svc.Adjust(ctx, c.Admin, c.Product.ID, -2, "damaged in transit")
	require.NoError(t, err)
	_, err = svc.Adjust(ctx, c.Admin, c.Product.ID, 1, "found in back room")
	require.NoError(t, err)
	assert.Equal(t, 9, c.Stock(t, c.Product.ID))

	_, err = svc.Adjust(ctx, c.Admin, c.Product.ID, -10, "write off")
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestConcurrentRemovalsNeverGoNegative(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)

	const callers = 16
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.RemoveStock(ctx, c.Receptionist, c.Product.ID, 1, domain.TxSale, "rush")
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	}
	assert.Equal(t, 10, ok)
	assert.Equal(t, 0, c.Stock(t, c.Product.ID))

	rec, err := svc.Verify(ctx, c.Product.ID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
	assert.Equal(t, 11, rec.Entries)
}

func TestCreateProductRecordsOpeningStock(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)

	p, err := svc.CreateProduct(ctx, c.Admin, domain.Product{
		Manufacturer:    "Oticon",
		Model:           "Intent 1",
		Price:           decimal.RequireFromString("2450.00"),
		QuantityInStock: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, p.QuantityInStock)

	history, err := svc.History(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.TxRestock, history[0].Type)
	assert.Equal(t, 4, history[0].Quantity)

	rec, err := svc.Verify(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, Reconciliation{ProductID: p.ID, Cached: 4, Replayed: 4, Entries: 1, Consistent: true}, rec)

	_, err = svc.CreateProduct(ctx, c.Admin, domain.Product{Manufacturer: "Oticon"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestBusyProductIsRetryable(t *testing.T) {
	ctx := context.Background()
	c := storetest.NewClinic(t)
	locker := redisclient.NewLocalLocker(0)
	svc := NewService(c.Store, locker, zerolog.Nop())

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = locker.WithLock(ctx, redisclient.ProductKey(c.Product.ID), func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	_, err := svc.AddStock(ctx, c.Admin, c.Product.ID, 1, "delivery")
	assert.ErrorIs(t, err, domain.ErrBusy)
	assert.Equal(t, "busy", domain.Kind(err))

	close(release)
	assert.Eventually(t, func() bool {
		_, err := svc.AddStock(ctx, c.Admin, c.Product.ID, 1, "delivery")
		return err == nil
	}, time.Second, 10*time.Millisecond)
}

func TestReplay(t *testing.T) {
	assert.Equal(t, 0, Replay(nil))
	assert.Equal(t, 3, Replay([]domain.InventoryTransaction{
		{Type: domain.TxRestock, Quantity: 10},
		{Type: domain.TxSale, Quantity: -7},
	}))
}
