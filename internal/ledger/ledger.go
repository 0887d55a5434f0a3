// Package ledger defines the capability set the export pipeline needs
// from an accounting store, plus the row types its aggregation
// queries return. Implementations live in the memory and postgres
// subpackages.
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/auditfile-dev/auditfile/internal/model"
	"github.com/auditfile-dev/auditfile/internal/options"
)

// PartnerAccountBalance is one partner-account row of the balance
// aggregation. Opening sums lines strictly before the range; Closing
// sums lines on or before its end.
type PartnerAccountBalance struct {
	PartnerID   int
	AccountCode string
	Opening     decimal.Decimal
	Closing     decimal.Decimal
}

// InvoiceLineRow is one line of the SAF-T invoice sections.
type InvoiceLineRow struct {
	MoveID         int
	LineID         int
	AccountID      int
	ProductID      int
	UoMID          int
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	Balance        decimal.Decimal
	TaxLineID      int // 0 = not a tax line
	TaxName        string
	TaxAmount      decimal.Decimal
	AmountCurrency decimal.Decimal
	Rate           decimal.Decimal
}

// TaxAggregateRow is the balance sum for one tax tag within one
// column group.
type TaxAggregateRow struct {
	TagName  string
	GroupKey string
	Balance  decimal.Decimal
}

// ProductRow is a distinct product referenced by in-period invoice
// lines, joined with its unit of measure and the category's
// reference unit.
type ProductRow struct {
	Product      model.Product
	UoM          model.UoM
	ReferenceUoM model.UoM
	Factor       decimal.Decimal
}

// Store is the ledger capability set the pipeline consumes. All
// queries see posted moves only, honor the options' date scope and
// forced domain, and translate balances into the presentation
// currency with the period's rates. Implementations must give every
// query of one export run a consistent view of the ledger.
type Store interface {
	// PartnerBalances aggregates opening and closing balances per
	// partner and account, restricted to the given account types.
	// Rows come out ordered by (partner, account code); lines on the
	// same date aggregate in insertion order.
	PartnerBalances(ctx context.Context, opts options.Options, types []model.AccountType) ([]PartnerAccountBalance, error)

	// InvoiceLines returns the in-period invoice lines with their
	// product, unit, and tax joins.
	InvoiceLines(ctx context.Context, opts options.Options) ([]InvoiceLineRow, error)

	// TaxAggregates sums balances per tax tag and column group,
	// flipping sign for negating tags and inverted lines.
	TaxAggregates(ctx context.Context, opts options.Options, tags map[int]model.TaxTag) ([]TaxAggregateRow, error)

	// UniqueProducts returns the distinct products referenced by
	// in-period invoice lines.
	UniqueProducts(ctx context.Context, opts options.Options) ([]ProductRow, error)

	// Moves returns the posted moves in the options' range, with
	// lines, ordered by (date, id).
	Moves(ctx context.Context, opts options.Options) ([]model.Move, error)

	// Accounts returns the full chart of accounts.
	Accounts(ctx context.Context) ([]model.Account, error)

	// Taxes returns all configured taxes.
	Taxes(ctx context.Context) ([]model.Tax, error)

	// Partners returns the partners with the given IDs, or all
	// partners when ids is nil.
	Partners(ctx context.Context, ids []int) ([]model.Partner, error)

	// CurrencyRates returns company-currency units per foreign unit
	// for every currency with a rate at the given date.
	CurrencyRates(ctx context.Context, date time.Time) (map[string]decimal.Decimal, error)

	// FiscalYearStart returns the start of the fiscal year
	// containing d.
	FiscalYearStart(d time.Time) time.Time
}

// AccountByID builds an ID lookup over a chart of accounts.
func AccountByID(accounts []model.Account) map[int]model.Account {
	byID := make(map[int]model.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}
	return byID
}
