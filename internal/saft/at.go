package saft

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/auditfile-dev/auditfile/internal/export"
	"github.com/auditfile-dev/auditfile/internal/ledger"
	"github.com/auditfile-dev/auditfile/internal/model"
	"github.com/auditfile-dev/auditfile/internal/options"
	"github.com/auditfile-dev/auditfile/internal/xmlel"
)

// AT is the Austrian SAF-T dialect.
type AT struct {
	// Now supplies the file-creation timestamp; nil = time.Now.
	Now func() time.Time
}

// ATAccount is one general-ledger account with its Austrian codes.
type ATAccount struct {
	Account      model.Account
	LetterCode   string
	StandardCode string // from the first numeric account tag
}

// ATTaxGroup is the taxes of one type_tax_use bucket.
type ATTaxGroup struct {
	Type  model.TaxType
	Taxes []model.Tax
}

// ATData is the enriched Austrian export.
type ATData struct {
	Company   model.Company
	Sections  []PartnerSection
	Accounts  []ATAccount
	TaxGroups []ATTaxGroup

	missingStdAccounts []int
	nonPercentTaxes    []int
	taxesWithoutDigit  []int
	partnersBadAddress []int
}

// Name implements export.Dialect.
func (AT) Name() string { return "at_saft" }

// PrepareOptions implements export.Dialect.
func (AT) PrepareOptions(raw options.Raw) options.Options {
	raw.Dialect = "at_saft"
	return options.Resolve(raw)
}

// Enrich implements export.Dialect.
func (d AT) Enrich(ctx context.Context, store ledger.Store, company model.Company, opts options.Options) (any, error) {
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
	data := &ATData{Company: company, Sections: sections}
	for _, a := range accounts {
		std := ""
		for _, tag := range a.Tags {
			// A tag counts as numeric when its name starts with the
			// numeric token, with or without a trailing label.
			if tok := firstNumericToken(tag.Name); tok != "" && strings.HasPrefix(tag.Name, tok) {
				std = tok
				break
			}
		}
		if std == "" {
			data.missingStdAccounts = append(data.missingStdAccounts, a.ID)
		}
		data.Accounts = append(data.Accounts, ATAccount{
			Account:      a,
			LetterCode:   letterCode[a.Type],
			StandardCode: std,
		})
	}

	taxes, err := store.Taxes(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading taxes: %w", err)
	}
	groups := map[model.TaxType]int{}
	for _, t := range taxes {
		i, ok := groups[t.Type]
		if !ok {
			i = len(data.TaxGroups)
			groups[t.Type] = i
			data.TaxGroups = append(data.TaxGroups, ATTaxGroup{Type: t.Type})
		}
		data.TaxGroups[i].Taxes = append(data.TaxGroups[i].Taxes, t)
		if t.AmountType != model.AmountPercent {
			data.nonPercentTaxes = append(data.nonPercentTaxes, t.ID)
		}
		if t.StandardCode == "" && firstNumericToken(t.Description) == "" {
			data.taxesWithoutDigit = append(data.taxesWithoutDigit, t.ID)
		}
	}

	for _, s := range sections {
		if !s.Partner.Address.Complete() {
			data.partnersBadAddress = append(data.partnersBadAddress, s.Partner.ID)
		}
	}
	return data, nil
}

// Validate implements export.Dialect.
func (AT) Validate(v any) export.ErrorMap {
	data := v.(*ATData)
	errs := make(export.ErrorMap)

	if len(data.missingStdAccounts) > 0 {
		errs.Add(export.Error{
			Code:     "at_account_standard_code_missing",
			Message:  fmt.Sprintf("Some accounts have no numeric SAF-T tag: %s.", joinInts(data.missingStdAccounts)),
			Severity: export.SeverityDanger,
			Action:   &export.Action{Text: "Check Accounts", Model: "account", IDs: data.missingStdAccounts},
		})
	}
	if len(data.nonPercentTaxes) > 0 {
		errs.Add(export.Error{
			Code:     "at_tax_amount_type_invalid",
			Message:  "The Austrian SAF-T only supports percentage taxes.",
			Severity: export.SeverityDanger,
			Action:   &export.Action{Text: "Check Taxes", Model: "tax", IDs: data.nonPercentTaxes},
		})
	}
	if len(data.taxesWithoutDigit) > 0 {
		errs.Add(export.Error{
			Code:     "at_tax_standard_code_missing",
			Message:  "Some tax descriptions carry no standard code digit.",
			Severity: export.SeverityWarning,
			Action:   &export.Action{Text: "Check Taxes", Model: "tax", IDs: data.taxesWithoutDigit},
		})
	}
	if data.Company.ProfitAssessment != model.ProfitPar4Abs1 && data.Company.ProfitAssessment != model.ProfitPar5 {
		errs.Add(export.Error{
			Code:     "at_profit_assessment_missing",
			Message:  "Set the profit assessment method (§4 Abs 1 or §5) on the company.",
			Severity: export.SeverityDanger,
		})
	}
	if data.Company.OenaceCode == "" {
		errs.Add(export.Error{
			Code:     "at_oenace_missing",
			Message:  "Set the ÖNACE activity code on the company.",
			Severity: export.SeverityDanger,
		})
	}
	if data.Company.ContactName == "" || data.Company.Phone == "" {
		errs.Add(export.Error{
			Code:     "at_company_contact_missing",
			Message:  "The company needs a contact person with a phone number.",
			Severity: export.SeverityDanger,
		})
	}
	if len(data.partnersBadAddress) > 0 {
		errs.Add(export.Error{
			Code:     "at_partner_address_incomplete",
			Message:  "Some partners have incomplete addresses.",
			Severity: export.SeverityDanger,
			Action:   &export.Action{Text: "Check Partners", Model: "partner", IDs: data.partnersBadAddress},
		})
	}
	return errs
}

// Render implements export.Dialect.
func (d AT) Render(v any, opts options.Options) (export.Result, error) {
	data := v.(*ATData)
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}

	root := xmlel.El("AuditFile",
		"xmlns", "urn:OECD:StandardAuditFile-Taxation/2.00_AT")
	header := headerEl(data.Company, opts, dateOnly, now())
	header.
		ChildText("ProfitAssessmentMethod", string(data.Company.ProfitAssessment)).
		ChildText("OenaceCode", data.Company.OenaceCode).
		ChildText("ContactPerson", data.Company.ContactName)
	root.Child(header)

	master := xmlel.El("MasterFiles")
	accountsEl := xmlel.El("GeneralLedgerAccounts")
	for _, a := range data.Accounts {
		accountsEl.Child(xmlel.El("Account").
			MustChildText("AccountID", a.Account.Code).
			MustChildText("AccountDescription", a.Account.Name).
			MustChildText("StandardAccountID", a.StandardCode).
			MustChildText("AccountType", a.LetterCode))
	}
	master.Child(accountsEl)

	taxTable := xmlel.El("TaxTable")
	for _, g := range data.TaxGroups {
		entry := xmlel.El("TaxTableEntry").
			MustChildText("TaxType", string(g.Type))
		for _, t := range g.Taxes {
			entry.Child(xmlel.El("TaxCodeDetails").
				MustChildText("TaxCode", taxStandardCode(t)).
				MustChildText("Description", t.Name).
				MustChildText("TaxPercentage", t.Rate.StringFixed(2)))
		}
		taxTable.Child(entry)
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
		return export.Result{}, fmt.Errorf("rendering AT SAF-T: %w", err)
	}
	return export.Result{
		FileName: export.FileName("at", "saft", opts.Date.From, opts.Date.To, export.FileXML),
		FileType: export.FileXML,
		Content:  content,
	}, nil
}

// taxStandardCode prefers the configured standard code and falls back
// to the first number in the description.
func taxStandardCode(t model.Tax) string {
	if t.StandardCode != "" {
		return t.StandardCode
	}
	return firstNumericToken(t.Description)
}

var _ export.Dialect = AT{}
