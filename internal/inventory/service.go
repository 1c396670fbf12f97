package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-ops/internal/domain"
	"github.com/hackgods/clinic-ops/internal/metrics"
	redisclient "github.com/hackgods/clinic-ops/internal/redis"
	"github.com/hackgods/clinic-ops/internal/store"
)

type Service struct {
	store  store.Store
	locker redisclient.Locker
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(st store.Store, locker redisclient.Locker, logger zerolog.Logger) *Service {
	return &Service{
		store:  st,
		locker: locker,
		log:    logger.With().Str("component", "inventory").Logger(),
		now:    time.Now,
	}
}

// Now is the clock used to stamp ledger entries.
func (s *Service) Now() time.Time { return s.now().UTC() }

// AddStock records a restock of qty units.
func (s *Service) AddStock(ctx context.Context, actor domain.Actor, productID int64, qty int, reason string) (int64, error) {
	if err := domain.RequireStaff(actor, "move stock"); err != nil {
		return 0, err
	}
	if qty <= 0 {
		return 0, fmt.Errorf("restock of %d units: %w", qty, domain.ErrInvalidQuantity)
	}
	return s.move(ctx, actor, Entry{ProductID: productID, Type: domain.TxRestock, Delta: qty, Reason: reason})
}

// RemoveStock takes qty units out of stock as a sale or an adjustment. It
// never drives the on-hand quantity below zero.
func (s *Service) RemoveStock(ctx context.Context, actor domain.Actor, productID int64, qty int, kind domain.TransactionType, reason string) (int64, error) {
	if err := domain.RequireStaff(actor, "move stock"); err != nil {
		return 0, err
	}
	if qty <= 0 {
		return 0, fmt.Errorf("removal of %d units: %w", qty, domain.ErrInvalidQuantity)
	}
	if kind != domain.TxSale && kind != domain.TxAdjustment {
		return 0, domain.Invalid("transaction_type", "removals are sales or adjustments")
	}
	return s.move(ctx, actor, Entry{ProductID: productID, Type: kind, Delta: -qty, Reason: reason})
}

// Adjust applies a signed stock-count correction.
func (s *Service) Adjust(ctx context.Context, actor domain.Actor, productID int64, delta int, reason string) (int64, error) {
	if err := domain.RequireStaff(actor, "move stock"); err != nil {
		return 0, err
	}
	if delta == 0 {
		return 0, fmt.Errorf("adjustment of zero units: %w", domain.ErrInvalidQuantity)
	}
	if err := domain.Required("reason", reason, domain.MaxReasonLen); err != nil {
		return 0, err
	}
	return s.move(ctx, actor, Entry{ProductID: productID, Type: domain.TxAdjustment, Delta: delta, Reason: reason})
}

func (s *Service) move(ctx context.Context, actor domain.Actor, e Entry) (int64, error) {
	if err := domain.MaxLen("reason", e.Reason, domain.MaxReasonLen); err != nil {
		return 0, err
	}
	e.ProcessedBy = actor.UserID
	e.At = s.Now()

	var entry *domain.InventoryTransaction
	err := s.WithProductLocks(ctx, []int64{e.ProductID}, func(lockCtx context.Context) error {
		return s.store.Update(lockCtx, func(tx store.Tx) error {
			var err error
			entry, err = Apply(lockCtx, tx, e)
			return err
		})
	})
	if err != nil {
		return 0, err
	}

	metrics.RecordStockMovement(string(entry.Type), entry.Quantity)
	s.log.Info().
		Int64("product_id", entry.ProductID).
		Int64("transaction_id", entry.ID).
		Str("type", string(entry.Type)).
		Int("quantity", entry.Quantity).
		Stringer("actor", actor).
		Msg("stock moved")
	return entry.ID, nil
}

// CreateProduct adds a catalogue item. An opening quantity is written to the
// ledger as a restock so the stock level always equals the replayed ledger.
func (s *Service) CreateProduct(ctx context.Context, actor domain.Actor, p domain.Product) (*domain.Product, error) {
	if err := domain.RequireRole(actor, "manage the catalogue", domain.RoleAdmin); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	opening := p.QuantityInStock
	p.ID = 0
	p.QuantityInStock = 0
	err := s.store.Update(ctx, func(tx store.Tx) error {
		if err := tx.InsertProduct(ctx, &p); err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
		if opening == 0 {
			return nil
		}
		_, err := Apply(ctx, tx, Entry{
			ProductID:   p.ID,
			Type:        domain.TxRestock,
			Delta:       opening,
			Reason:      "opening stock",
			ProcessedBy: actor.UserID,
			At:          s.Now(),
		})
		if err != nil {
			return err
		}
		p.QuantityInStock = opening
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("product_id", p.ID).Str("product", p.Label()).Int("opening_stock", opening).Msg("product created")
	return &p, nil
}

// SetPrice changes a product's list price. Existing order lines keep the
// price they were placed at.
func (s *Service) SetPrice(ctx context.Context, actor domain.Actor, productID int64, price decimal.Decimal) (*domain.Product, error) {
	if err := domain.RequireRole(actor, "manage the catalogue", domain.RoleAdmin); err != nil {
		return nil, err
	}
	if err := domain.NonNegative("price", price); err != nil {
		return nil, err
	}

	var out *domain.Product
	err := s.WithProductLocks(ctx, []int64{productID}, func(lockCtx context.Context) error {
		return s.store.Update(lockCtx, func(tx store.Tx) error {
			p, err := tx.GetProduct(lockCtx, productID)
			if err != nil {
				return err
			}
			p.Price = price
			out = p
			return tx.UpdateProduct(lockCtx, *p)
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Verify replays the product's ledger and compares it with the cached level.
func (s *Service) Verify(ctx context.Context, productID int64) (Reconciliation, error) {
	var rec Reconciliation
	err := s.store.View(ctx, func(r store.Reader) error {
		p, err := r.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		entries, err := r.ListInventoryTransactions(ctx, productID)
		if err != nil {
			return fmt.Errorf("list ledger: %w", err)
		}
		replayed := Replay(entries)
		rec = Reconciliation{
			ProductID:  p.ID,
			Cached:     p.QuantityInStock,
			Replayed:   replayed,
			Entries:    len(entries),
			Consistent: replayed == p.QuantityInStock,
		}
		return nil
	})
	if err != nil {
		return Reconciliation{}, err
	}
	if !rec.Consistent {
		s.log.Error().
			Int64("product_id", productID).
			Int("cached", rec.Cached).
			Int("replayed", rec.Replayed).
			Msg("stock level disagrees with ledger")
	}
	return rec, nil
}

// History lists a product's ledger in the order it was written.
func (s *Service) History(ctx context.Context, productID int64) ([]domain.InventoryTransaction, error) {
	var out []domain.InventoryTransaction
	err := s.store.View(ctx, func(r store.Reader) error {
		if _, err := r.GetProduct(ctx, productID); err != nil {
			return err
		}
		var err error
		out, err = r.ListInventoryTransactions(ctx, productID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WithProductLocks runs fn while holding the lock of every listed product.
// Locks are taken in id order so overlapping callers cannot deadlock. A lock
// that cannot be had in time yields domain.ErrBusy.
func (s *Service) WithProductLocks(ctx context.Context, productIDs []int64, fn func(ctx context.Context) error) error {
	ids := append([]int64(nil), productIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var uniq []int64
	for _, id := range ids {
		if len(uniq) == 0 || uniq[len(uniq)-1] != id {
			uniq = append(uniq, id)
		}
	}

	start := time.Now()
	err := s.lockEach(ctx, uniq, fn)
	acquired := !errors.Is(err, redisclient.ErrLockNotAcquired)
	metrics.RecordLock("product", time.Since(start), acquired)
	if !acquired {
		return fmt.Errorf("%w: %w", domain.ErrBusy, err)
	}
	return err
}

func (s *Service) lockEach(ctx context.Context, ids []int64, fn func(ctx context.Context) error) error {
	if len(ids) == 0 {
		return fn(ctx)
	}
	return s.locker.WithLock(ctx, redisclient.ProductKey(ids[0]), func(lockCtx context.Context) error {
		return s.lockEach(lockCtx, ids[1:], fn)
	})
}
