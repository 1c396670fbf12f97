package domain

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	MaxNameLen          = 50
	MaxPurposeLen       = 200
	MaxComplaintLen     = 500
	MaxClinicalNotesLen = 1000
	MaxCatalogFieldLen  = 100
	MaxReasonLen        = 200

	MinFrequencyHz = 125
	MaxFrequencyHz = 8000
	MinThresholdDB = -10
	MaxThresholdDB = 120

	// MaxQuantity bounds any stock level or movement; quantities are int4 columns.
	MaxQuantity = math.MaxInt32
)

func Required(field, value string, max int) error {
	if strings.TrimSpace(value) == "" {
		return Invalid(field, "is required")
	}
	return MaxLen(field, value, max)
}

func MaxLen(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return Invalid(field, fmt.Sprintf("must be at most %d characters", max))
	}
	return nil
}

func NonNegative(field string, v decimal.Decimal) error {
	if v.IsNegative() {
		return Invalid(field, "must not be negative")
	}
	return nil
}

// First returns the first non-nil error.
func First(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (p Patient) Validate() error {
	return First(
		Required("first_name", p.FirstName, MaxNameLen),
		Required("last_name", p.LastName, MaxNameLen),
		MaxLen("phone", p.Phone, 20),
		MaxLen("email", p.Email, 100),
	)
}

func (a Audiologist) Validate() error {
	return First(
		Required("first_name", a.FirstName, MaxNameLen),
		Required("last_name", a.LastName, MaxNameLen),
		MaxLen("specialization", a.Specialization, MaxCatalogFieldLen),
	)
}

func (p Product) Validate() error {
	if p.QuantityInStock < 0 || p.QuantityInStock > MaxQuantity {
		return Invalid("quantity_in_stock", fmt.Sprintf("must be between 0 and %d", MaxQuantity))
	}
	return First(
		Required("manufacturer", p.Manufacturer, MaxCatalogFieldLen),
		Required("model", p.Model, MaxCatalogFieldLen),
		MaxLen("features", p.Features, MaxClinicalNotesLen),
		NonNegative("price", p.Price),
	)
}

func (d AudiogramData) Validate() error {
	if !d.Ear.Valid() {
		return Invalid("ear", fmt.Sprintf("unknown ear %q", d.Ear))
	}
	if d.Frequency < MinFrequencyHz || d.Frequency > MaxFrequencyHz {
		return Invalid("frequency", fmt.Sprintf("must be between %d and %d Hz", MinFrequencyHz, MaxFrequencyHz))
	}
	if d.Threshold < MinThresholdDB || d.Threshold > MaxThresholdDB {
		return Invalid("threshold", fmt.Sprintf("must be between %d and %d dB", MinThresholdDB, MaxThresholdDB))
	}
	return nil
}
