// Package ecsales implements the Danish EC sales list: a CSV summary
// of intra-EU sales per partner VAT number.
package ecsales

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/auditfile-dev/auditfile/internal/export"
	"github.com/auditfile-dev/auditfile/internal/ledger"
	"github.com/auditfile-dev/auditfile/internal/model"
	"github.com/auditfile-dev/auditfile/internal/options"
)

// Dialect is the DK EC sales list export.
type Dialect struct{}

// Row is one partner's period sales total.
type Row struct {
	PartnerVAT  string
	PartnerName string
	Total       decimal.Decimal
}

// Data is the enriched EC sales list.
type Data struct {
	Company model.Company
	Rows    []Row

	partnersNoVAT []int
}

// Name implements export.Dialect.
func (Dialect) Name() string { return "dk_ec_sales" }

// PrepareOptions implements export.Dialect.
func (Dialect) PrepareOptions(raw options.Raw) options.Options {
	raw.Dialect = "dk_ec_sales"
	return options.Resolve(raw)
}

// Enrich implements export.Dialect.
func (Dialect) Enrich(ctx context.Context, store ledger.Store, company model.Company, opts options.Options) (any, error) {
	moves, err := store.Moves(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("loading moves: %w", err)
	}
	partners, err := store.Partners(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("loading partners: %w", err)
	}
	partnerByID := make(map[int]model.Partner, len(partners))
	for _, p := range partners {
		partnerByID[p.ID] = p
	}
	accounts, err := store.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading accounts: %w", err)
	}
	accountByID := ledger.AccountByID(accounts)

	data := &Data{Company: company}
	totals := make(map[int]*Row)
	var order []int
	noVAT := make(map[int]bool)
	for _, m := range moves {
		if !m.Type.IsSale() || m.PartnerID == 0 {
			continue
		}
		partner := partnerByID[m.PartnerID]
		// Domestic sales stay off the EC list.
		if partner.Address.Country == company.Address.Country {
			continue
		}
		if partner.VAT == "" {
			noVAT[partner.ID] = true
			continue
		}
		row, ok := totals[partner.ID]
		if !ok {
			row = &Row{PartnerVAT: partner.VAT, PartnerName: partner.Name}
			totals[partner.ID] = row
			order = append(order, partner.ID)
		}
		for _, l := range m.Lines {
			if accountByID[l.AccountID].Type.IsReceivablePayable() || l.TaxLineID != 0 {
				continue
			}
			row.Total = row.Total.Add(l.Balance.Neg())
		}
	}
	for _, id := range order {
		data.Rows = append(data.Rows, *totals[id])
	}
	for id := range noVAT {
		data.partnersNoVAT = append(data.partnersNoVAT, id)
	}
	return data, nil
}

// Validate implements export.Dialect.
func (Dialect) Validate(v any) export.ErrorMap {
	data := v.(*Data)
	errs := make(export.ErrorMap)
	if len(data.partnersNoVAT) > 0 {
		errs.Add(export.Error{
			Code:     "ec_sales_partner_vat_missing",
			Message:  "Some intra-EU customers have no VAT number and were skipped.",
			Severity: export.SeverityWarning,
			Action:   &export.Action{Text: "Check Partners", Model: "partner", IDs: data.partnersNoVAT},
		})
	}
	return errs
}

// Render implements export.Dialect.
func (Dialect) Render(v any, opts options.Options) (export.Result, error) {
	data := v.(*Data)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'
	if err := w.Write([]string{"partner_vat", "partner_name", "amount"}); err != nil {
		return export.Result{}, fmt.Errorf("writing header: %w", err)
	}
	for _, row := range data.Rows {
		if err := w.Write([]string{row.PartnerVAT, row.PartnerName, row.Total.StringFixed(2)}); err != nil {
			return export.Result{}, fmt.Errorf("writing row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return export.Result{}, fmt.Errorf("flushing CSV: %w", err)
	}
	return export.Result{
		FileName: export.FileName("dk", "ec_sales", opts.Date.From, opts.Date.To, export.FileCSV),
		FileType: export.FileCSV,
		Content:  buf.Bytes(),
	}, nil
}

var _ export.Dialect = Dialect{}
