// Package trialbalance implements the Romanian trial balance in its
// five-column and four-column variants. Every row carries one cell
// per column group; the Total Amounts group cross-foots the others.
package trialbalance

import (
	"bytes"
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/auditfile-dev/auditfile/internal/export"
	"github.com/auditfile-dev/auditfile/internal/ledger"
	"github.com/auditfile-dev/auditfile/internal/model"
	"github.com/auditfile-dev/auditfile/internal/options"
)

// Variants of the Romanian trial balance.
const (
	VariantFiveColumn = "ro_5col"
	VariantFourColumn = "ro_4col"
)

// Column group keys, in presentation order.
const (
	GroupInitial     = "initial_balance"
	GroupStartOfYear = "start_of_year"
	GroupCurrent     = "default"
	GroupTotal       = "total_amounts"
	GroupEndBalance  = "end_balance"
)

// Cell is one column-group value pair.
type Cell struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// Balance is debit - credit.
func (c Cell) Balance() decimal.Decimal {
	return c.Debit.Sub(c.Credit)
}

func (c Cell) add(other Cell) Cell {
	return Cell{Debit: c.Debit.Add(other.Debit), Credit: c.Credit.Add(other.Credit)}
}

// Row is one account's line.
type Row struct {
	Account model.Account
	Cells   map[string]Cell
}

// Data is the enriched trial balance.
type Data struct {
	Company model.Company
	Variant string
	// ShowStartOfYear is true on the five-column variant when the
	// range does not start at the fiscal year start.
	ShowStartOfYear bool
	Groups          []string
	Rows            []Row
}

// Dialect is the trial balance export dialect.
type Dialect struct{}

// Name implements export.Dialect.
func (Dialect) Name() string { return "ro_trial_balance" }

// PrepareOptions implements export.Dialect.
func (Dialect) PrepareOptions(raw options.Raw) options.Options {
	raw.Dialect = "ro_trial_balance"
	if raw.Variant == "" {
		raw.Variant = VariantFiveColumn
	}
	return options.Resolve(raw)
}

// Enrich implements export.Dialect.
func (Dialect) Enrich(ctx context.Context, store ledger.Store, company model.Company, opts options.Options) (any, error) {
	fyStart := store.FiscalYearStart(opts.Date.From)
	showStartOfYear := opts.Variant == VariantFiveColumn && !opts.Date.From.Equal(fyStart)

	// One pass over everything up to date_to; each line lands in the
	// bucket its date selects.
	wide := opts
	wide.Date.Scope = options.FromBeginning
	moves, err := store.Moves(ctx, wide)
	if err != nil {
		return nil, fmt.Errorf("loading moves: %w", err)
	}
	accounts, err := store.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading accounts: %w", err)
	}
	accountByID := ledger.AccountByID(accounts)

	cells := make(map[int]map[string]Cell)
	touch := func(accountID int) map[string]Cell {
		m, ok := cells[accountID]
		if !ok {
			m = make(map[string]Cell)
			cells[accountID] = m
		}
		return m
	}
	for _, m := range moves {
		for _, l := range m.Lines {
			if l.Date.After(opts.Date.To) {
				continue
			}
			group := GroupCurrent
			switch {
			case l.Date.Before(fyStart):
				group = GroupInitial
			case l.Date.Before(opts.Date.From):
				group = GroupStartOfYear
			}
			row := touch(l.AccountID)
			cell := row[group]
			cell.Debit = cell.Debit.Add(l.Debit)
			cell.Credit = cell.Credit.Add(l.Credit)
			row[group] = cell
		}
	}

	data := &Data{
		Company:         company,
		Variant:         opts.Variant,
		ShowStartOfYear: showStartOfYear,
		Groups:          visibleGroups(showStartOfYear),
	}
	for _, a := range accounts {
		row, ok := cells[a.ID]
		if !ok {
			continue
		}
		if !showStartOfYear {
			// A hidden Start-of-Year column folds into the initial
			// balances so nothing drops out of the totals.
			row[GroupInitial] = row[GroupInitial].add(row[GroupStartOfYear])
			delete(row, GroupStartOfYear)
		}
		total := Cell{}
		for g, c := range row {
			if g != GroupTotal && g != GroupEndBalance {
				total = total.add(c)
			}
		}
		row[GroupTotal] = total
		end := total.Balance()
		if end.Sign() >= 0 {
			row[GroupEndBalance] = Cell{Debit: end}
		} else {
			row[GroupEndBalance] = Cell{Credit: end.Neg()}
		}
		data.Rows = append(data.Rows, Row{Account: accountByID[a.ID], Cells: row})
	}
	return data, nil
}

func visibleGroups(showStartOfYear bool) []string {
	if showStartOfYear {
		return []string{GroupInitial, GroupStartOfYear, GroupCurrent, GroupTotal, GroupEndBalance}
	}
	return []string{GroupInitial, GroupCurrent, GroupTotal, GroupEndBalance}
}

var groupLabels = map[string]string{
	GroupInitial:     "Initial Balance",
	GroupStartOfYear: "Start of Year",
	GroupCurrent:     "Current Period",
	GroupTotal:       "Total Amounts",
	GroupEndBalance:  "End Balance",
}

// Validate implements export.Dialect. The trial balance has no
// semantic checks; malformed ledgers already fail upstream.
func (Dialect) Validate(any) export.ErrorMap {
	return make(export.ErrorMap)
}

// Render implements export.Dialect.
func (Dialect) Render(v any, opts options.Options) (export.Result, error) {
	data := v.(*Data)

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header1 := []any{"Account", ""}
	header2 := []any{"Code", "Name"}
	for _, g := range data.Groups {
		header1 = append(header1, groupLabels[g], "")
		header2 = append(header2, "Debit", "Credit")
	}
	if err := f.SetSheetRow(sheet, "A1", &header1); err != nil {
		return export.Result{}, fmt.Errorf("writing header: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A2", &header2); err != nil {
		return export.Result{}, fmt.Errorf("writing header: %w", err)
	}

	for i, row := range data.Rows {
		values := []any{row.Account.Code, row.Account.Name}
		for _, g := range data.Groups {
			cell := row.Cells[g]
			values = append(values, cell.Debit.StringFixed(2), cell.Credit.StringFixed(2))
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+3), &values); err != nil {
			return export.Result{}, fmt.Errorf("writing row %d: %w", i+3, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return export.Result{}, fmt.Errorf("writing workbook: %w", err)
	}
	return export.Result{
		FileName: export.FileName("ro", "trial_balance", opts.Date.From, opts.Date.To, export.FileXLSX),
		FileType: export.FileXLSX,
		Content:  buf.Bytes(),
	}, nil
}

var _ export.Dialect = Dialect{}
