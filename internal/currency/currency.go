// Package currency materializes a per-request conversion table. The
// table is local to one export run and never shared.
package currency

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RateSource is the slice of the ledger store the table loads from.
type RateSource interface {
	CurrencyRates(ctx context.Context, date time.Time) (map[string]decimal.Decimal, error)
}

// Table converts foreign amounts into the company currency using the
// rates in force at one date.
type Table struct {
	company string
	rates   map[string]decimal.Decimal
}

// Load materializes a Table for the given date.
func Load(ctx context.Context, src RateSource, company string, date time.Time) (*Table, error) {
	rates, err := src.CurrencyRates(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("loading currency rates: %w", err)
	}
	return &Table{company: company, rates: rates}, nil
}

// Rate returns company units per unit of the given currency. The
// company currency itself is always 1.
func (t *Table) Rate(code string) (decimal.Decimal, bool) {
	if code == "" || code == t.company {
		return decimal.NewFromInt(1), true
	}
	r, ok := t.rates[code]
	return r, ok
}

// Convert translates amount from the given currency into company
// currency. Unknown currencies pass through unchanged with ok=false
// so callers can surface a validation error instead of panicking.
func (t *Table) Convert(amount decimal.Decimal, code string) (decimal.Decimal, bool) {
	r, ok := t.Rate(code)
	if !ok {
		return amount, false
	}
	return amount.Mul(r), true
}
