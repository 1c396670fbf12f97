package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/hackgods/clinic-ops/internal/domain"
	"github.com/hackgods/clinic-ops/internal/store"
)

// Entry is one stock movement to apply to a product.
type Entry struct {
	ProductID   int64
	Type        domain.TransactionType
	Delta       int
	Reason      string
	ProcessedBy int64
	At          time.Time
}

// Apply appends e to the ledger and moves the product's on-hand quantity by
// e.Delta, inside tx. The caller must hold the product's lock.
func Apply(ctx context.Context, tx store.Tx, e Entry) (*domain.InventoryTransaction, error) {
	p, err := tx.GetProduct(ctx, e.ProductID)
	if err != nil {
		return nil, err
	}
	if e.Delta > domain.MaxQuantity || e.Delta < -domain.MaxQuantity {
		return nil, fmt.Errorf("movement of %d units: %w", e.Delta, domain.ErrInvalidQuantity)
	}
	if p.QuantityInStock+e.Delta > domain.MaxQuantity {
		return nil, fmt.Errorf("product %d: stock %d plus %d exceeds %d: %w",
			p.ID, p.QuantityInStock, e.Delta, domain.MaxQuantity, domain.ErrInvalidQuantity)
	}
	if p.QuantityInStock+e.Delta < 0 {
		return nil, fmt.Errorf("product %d: available %d, requested %d: %w",
			p.ID, p.QuantityInStock, -e.Delta, domain.ErrInsufficientStock)
	}

	entry := &domain.InventoryTransaction{
		ProductID:       p.ID,
		Type:            e.Type,
		Quantity:        e.Delta,
		Reason:          e.Reason,
		TransactionDate: e.At,
		ProcessedBy:     e.ProcessedBy,
	}
	if err := tx.InsertInventoryTransaction(ctx, entry); err != nil {
		return nil, fmt.Errorf("append ledger entry: %w", err)
	}
	p.QuantityInStock += e.Delta
	if err := tx.UpdateProduct(ctx, *p); err != nil {
		return nil, fmt.Errorf("update stock: %w", err)
	}

	return entry, nil
}

// Replay folds a product's ledger into the quantity it implies.
func Replay(entries []domain.InventoryTransaction) int {
	qty := 0
	for _, e := range entries {
		qty += e.Quantity
	}
	return qty
}

// Reconciliation compares the cached stock level with the ledger.
type Reconciliation struct {
	ProductID  int64
	Cached     int
	Replayed   int
	Entries    int
	Consistent bool
}
