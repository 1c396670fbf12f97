package pgstore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/hackgods/clinic-ops/internal/domain"
)

func TestTranslate(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"active slot index", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: activeSlotIndex}, domain.ErrSlotUnavailable},
		{"other unique", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "invoices_order_key"}, domain.ErrDuplicateRecord},
		{"stock check", &pgconn.PgError{Code: pgCheckViolation, ConstraintName: stockCheck}, domain.ErrInsufficientStock},
		{"other check", &pgconn.PgError{Code: pgCheckViolation, ConstraintName: "audiogram_data_frequency_check"}, domain.ErrValidation},
		{"foreign key", &pgconn.PgError{Code: pgForeignKeyAbsent, ConstraintName: "appointments_patient_id_fkey"}, domain.ErrNotFound},
		{"wrapped", fmt.Errorf("exec: %w", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: activeSlotIndex}), domain.ErrSlotUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, translate(tc.err), tc.want)
		})
	}

	plain := errors.New("connection reset")
	assert.Same(t, plain, translate(plain))
}

func TestNotFoundIfNoRows(t *testing.T) {
	err := notFoundIfNoRows(pgx.ErrNoRows, domain.ErrProductNotFound, 7)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "id=7")

	other := errors.New("boom")
	assert.Same(t, other, notFoundIfNoRows(other, domain.ErrProductNotFound, 7))
}

func TestLockSuffix(t *testing.T) {
	assert.Equal(t, "", reader{}.lockSuffix())
	assert.Equal(t, " FOR UPDATE", reader{forUpdate: true}.lockSuffix())
}
