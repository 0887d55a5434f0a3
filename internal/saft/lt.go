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

// LT is the Lithuanian SAF-T dialect.
type LT struct {
	Now func() time.Time
}

// LTAccount is one account with its Lithuanian letter code.
type LTAccount struct {
	Account    model.Account
	LetterCode string
}

// LTData is the enriched Lithuanian export.
type LTData struct {
	Company  model.Company
	Basis    model.AccountingBasis
	Sections []PartnerSection
	Accounts []LTAccount
	Taxes    []model.Tax
}

// Name implements export.Dialect.
func (LT) Name() string { return "lt_saft" }

// PrepareOptions implements export.Dialect.
func (LT) PrepareOptions(raw options.Raw) options.Options {
	raw.Dialect = "lt_saft"
	return options.Resolve(raw)
}

// Enrich implements export.Dialect.
func (LT) Enrich(ctx context.Context, store ledger.Store, company model.Company, opts options.Options) (any, error) {
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

	data := &LTData{Company: company, Basis: company.Basis, Sections: sections, Taxes: taxes}
	for _, a := range accounts {
		data.Accounts = append(data.Accounts, LTAccount{Account: a, LetterCode: letterCode[a.Type]})
	}
	return data, nil
}

// Validate implements export.Dialect. Lithuania only requires the
// accounting basis setting; the letter table covers every type.
func (LT) Validate(v any) export.ErrorMap {
	data := v.(*LTData)
	errs := make(export.ErrorMap)
	if data.Basis != model.BasisCash && data.Basis != model.BasisAccrual {
		errs.Add(export.Error{
			Code:     "lt_accounting_basis_missing",
			Message:  "Set the accounting basis (K or P) on the company.",
			Severity: export.SeverityDanger,
		})
	}
	return errs
}

// Render implements export.Dialect.
func (d LT) Render(v any, opts options.Options) (export.Result, error) {
	data := v.(*LTData)
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}

	root := xmlel.El("AuditFile",
		"xmlns", "https://www.vmi.lt/cms/saf-t")
	header := headerEl(data.Company, opts, dateTimeLT, now())
	header.MustChildText("AccountingBasis", string(data.Basis))
	root.Child(header)

	master := xmlel.El("MasterFiles")
	accountsEl := xmlel.El("GeneralLedgerAccounts")
	for _, a := range data.Accounts {
		accountsEl.Child(xmlel.El("Account").
			MustChildText("AccountID", a.Account.Code).
			MustChildText("AccountDescription", a.Account.Name).
			MustChildText("AccountType", a.LetterCode))
	}
	master.Child(accountsEl)

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
		return export.Result{}, fmt.Errorf("rendering LT SAF-T: %w", err)
	}
	return export.Result{
		FileName: export.FileName("lt", "saft", opts.Date.From, opts.Date.To, export.FileXML),
		FileType: export.FileXML,
		Content:  content,
	}, nil
}

var _ export.Dialect = LT{}
