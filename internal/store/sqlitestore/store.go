// Package sqlitestore keeps the memory store durable in a single SQLite file.
// The whole state is written as one JSON blob per entity bucket after every
// Update, before the new state becomes visible, and read back on open.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/hackgods/clinic-ops/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	*store.Memory
	db   *sql.DB
	path string
}

type bucket struct {
	name string
	ref  func(s *store.Snapshot) any
}

var buckets = []bucket{
	{"users", func(s *store.Snapshot) any { return &s.Users }},
	{"patients", func(s *store.Snapshot) any { return &s.Patients }},
	{"audiologists", func(s *store.Snapshot) any { return &s.Audiologists }},
	{"schedules", func(s *store.Snapshot) any { return &s.Schedules }},
	{"time_slots", func(s *store.Snapshot) any { return &s.TimeSlots }},
	{"appointments", func(s *store.Snapshot) any { return &s.Appointments }},
	{"medical_records", func(s *store.Snapshot) any { return &s.Records }},
	{"hearing_tests", func(s *store.Snapshot) any { return &s.HearingTests }},
	{"audiogram_data", func(s *store.Snapshot) any { return &s.Audiogram }},
	{"prescriptions", func(s *store.Snapshot) any { return &s.Prescriptions }},
	{"products", func(s *store.Snapshot) any { return &s.Products }},
	{"inventory_transactions", func(s *store.Snapshot) any { return &s.Ledger }},
	{"orders", func(s *store.Snapshot) any { return &s.Orders }},
	{"order_items", func(s *store.Snapshot) any { return &s.OrderItems }},
	{"invoices", func(s *store.Snapshot) any { return &s.Invoices }},
	{"payments", func(s *store.Snapshot) any { return &s.Payments }},
}

// Open opens or creates the database at path and loads any saved state.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = "clinic.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}

	s := &Store{Memory: store.NewMemory(), db: db, path: path}
	if err := s.load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	refs := make(map[string]func(*store.Snapshot) any, len(buckets))
	for _, b := range buckets {
		refs[b.name] = b.ref
	}

	var snap store.Snapshot
	found := false
	for rows.Next() {
		var name string
		var payload []byte
		if err := rows.Scan(&name, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		ref, ok := refs[name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(payload, ref(&snap)); err != nil {
			return fmt.Errorf("decode %s: %w", name, err)
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read state: %w", err)
	}
	if found {
		s.Import(snap)
	}
	return nil
}

func (s *Store) persist(ctx context.Context, snap store.Snapshot) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	for _, b := range buckets {
		data, err := json.Marshal(b.ref(&snap))
		if err != nil {
			return fmt.Errorf("encode %s: %w", b.name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO state(bucket, payload) VALUES(?, ?) ON CONFLICT(bucket) DO UPDATE SET payload = excluded.payload`,
			b.name, data); err != nil {
			return fmt.Errorf("upsert %s: %w", b.name, err)
		}
	}
	return tx.Commit()
}

// Update applies fn to a copy of the memory state and writes that copy to
// disk. The copy is published only once the write has committed.
func (s *Store) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.Memory.UpdateAndCommit(ctx, fn, func(snap store.Snapshot) error {
		// persist on a context that outlives a caller giving up mid-write
		if err := s.persist(context.WithoutCancel(ctx), snap); err != nil {
			return fmt.Errorf("persist state: %w", err)
		}
		return nil
	})
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }
