package saft

import (
	"context"
	"fmt"
	"time"

	"github.com/auditfile-dev/auditfile/internal/export"
	"github.com/auditfile-dev/auditfile/internal/ledger"
	"github.com/auditfile-dev/auditfile/internal/model"
	"github.com/auditfile-dev/auditfile/internal/options"
	"github.com/auditfile-dev/auditfile/internal/xmlel"
)

// NO is the Norwegian SAF-T dialect. It reuses the Lithuanian
// partner-account aggregation; every account classifies as GL.
type NO struct {
	Now func() time.Time
}

// NOTax is a tax with the standard code extracted from its
// description.
type NOTax struct {
	Tax          model.Tax
	StandardCode string
}

// NOData is the enriched Norwegian export.
type NOData struct {
	Company  model.Company
	Sections []PartnerSection
	Accounts []model.Account
	Taxes    []NOTax

	taxesWithoutCode []int
}

// Name implements export.Dialect.
func (NO) Name() string { return "no_saft" }

// PrepareOptions implements export.Dialect.
func (NO) PrepareOptions(raw options.Raw) options.Options {
	raw.Dialect = "no_saft"
	return options.Resolve(raw)
}

// Enrich implements export.Dialect.
func (NO) Enrich(ctx context.Context, store ledger.Store, company model.Company, opts options.Options) (any, error) {
	balances, err := store.PartnerBalances(ctx, opts, receivablePayable)
	if err != nil {
		return nil, fmt.Errorf("aggregating partner balances: %w", err)
	}
	sections, err := partnerSections(ctx, store, balances)
	if err != nil {
		return nil, err
	}
	accounts, err := store.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading accounts: %w", err)
	}
	taxes, err := store.Taxes(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading taxes: %w", err)
	}

	data := &NOData{Company: company, Sections: sections, Accounts: accounts}
	for _, t := range taxes {
		code := firstNumericToken(t.Description)
		if code == "" {
			data.taxesWithoutCode = append(data.taxesWithoutCode, t.ID)
		}
		data.Taxes = append(data.Taxes, NOTax{Tax: t, StandardCode: code})
	}
	return data, nil
}

// Validate implements export.Dialect.
func (NO) Validate(v any) export.ErrorMap {
	data := v.(*NOData)
	errs := make(export.ErrorMap)
	if len(data.taxesWithoutCode) > 0 {
		errs.Add(export.Error{
			Code:     "no_tax_standard_code_missing",
			Message:  "Please update the descriptions of your taxes to include their Norwegian standard tax code (the first number in the description is used).",
			Severity: export.SeverityDanger,
			Action:   &export.Action{Text: "Check Taxes", Model: "tax", IDs: data.taxesWithoutCode},
		})
	}
	return errs
}

// Render implements export.Dialect.
func (d NO) Render(v any, opts options.Options) (export.Result, error) {
	data := v.(*NOData)
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}

	root := xmlel.El("AuditFile",
		"xmlns", "urn:StandardAuditFile-Taxation-Financial:NO")
	root.Child(headerEl(data.Company, opts, dateOnly, now()))

	master := xmlel.El("MasterFiles")
	accountsEl := xmlel.El("GeneralLedgerAccounts")
	for _, a := range data.Accounts {
		accountsEl.Child(xmlel.El("Account").
			MustChildText("AccountID", a.Code).
			MustChildText("AccountDescription", a.Name).
			MustChildText("AccountType", "GL"))
	}
	master.Child(accountsEl)

	taxTable := xmlel.El("TaxTable")
	for _, t := range data.Taxes {
		taxTable.Child(xmlel.El("TaxCodeDetails").
			MustChildText("TaxCode", t.StandardCode).
			MustChildText("Description", t.Tax.Name).
			MustChildText("TaxPercentage", t.Tax.Rate.StringFixed(2)))
	}
	master.Child(taxTable)

	customers := xmlel.El("Customers")
	suppliers := xmlel.El("Suppliers")
	for _, s := range data.Sections {
		opening, closing := sectionTotals([]PartnerSection{s})
		if s.Partner.Customer || !s.Partner.Supplier {
			customers.Child(partnerEl("Customer", s.Partner, opening, closing))
		}
		if s.Partner.Supplier {
			suppliers.Child(partnerEl("Supplier", s.Partner, opening, closing))
		}
	}
	master.Child(customers, suppliers)
	root.Child(master)

	content, err := root.Render(xmlel.DefaultRenderOptions())
	if err != nil {
		return export.Result{}, fmt.Errorf("rendering NO SAF-T: %w", err)
	}
	return export.Result{
		FileName: export.FileName("no", "saft", opts.Date.From, opts.Date.To, export.FileXML),
		FileType: export.FileXML,
		Content:  content,
	}, nil
}

var _ export.Dialect = NO{}
