// Package pgstore implements store.Store on PostgreSQL through a pgx pool.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-ops/internal/domain"
	"github.com/hackgods/clinic-ops/internal/store"
)

var _ store.Store = (*Store)(nil)

// querier is the subset of pgx shared by pools and transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Update runs fn in a read committed transaction. Single row reads inside it
// take row locks on products and appointments.
func (s *Store) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{reader: reader{q: tx, forUpdate: true}}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", translate(err))
	}
	return nil
}

// View runs fn in a read-only repeatable read transaction so every read sees
// the same snapshot.
func (s *Store) View(ctx context.Context, fn func(r store.Reader) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("begin read tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(reader{q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Constraint names from schema.sql.
const (
	activeSlotIndex    = "appointments_active_slot_idx"
	stockCheck         = "products_quantity_in_stock_check"
	pgUniqueViolation  = "23505"
	pgCheckViolation   = "23514"
	pgForeignKeyAbsent = "23503"
)

// translate maps constraint violations onto domain error kinds.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		if pgErr.ConstraintName == activeSlotIndex {
			return fmt.Errorf("%s: %w", pgErr.Detail, domain.ErrSlotUnavailable)
		}
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, domain.ErrDuplicateRecord)
	case pgCheckViolation:
		if pgErr.ConstraintName == stockCheck {
			return fmt.Errorf("%s: %w", pgErr.Message, domain.ErrInsufficientStock)
		}
		return domain.Invalid(pgErr.ConstraintName, pgErr.Message)
	case pgForeignKeyAbsent:
		return fmt.Errorf("%s: %w", pgErr.Detail, domain.ErrNotFound)
	}
	return err
}

func notFoundIfNoRows(err error, notFound error, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: id=%d", notFound, id)
	}
	return err
}

// collect scans every row with scan.
func collect[T any](rows pgx.Rows, err error, scan func(pgx.Row) (*T, error)) ([]T, error) {
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (T, error) {
		v, err := scan(row)
		if err != nil {
			var zero T
			return zero, err
		}
		return *v, nil
	})
}
