package saft

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/auditfile-dev/auditfile/internal/export"
	"github.com/auditfile-dev/auditfile/internal/ledger"
	"github.com/auditfile-dev/auditfile/internal/model"
	"github.com/auditfile-dev/auditfile/internal/options"
	"github.com/auditfile-dev/auditfile/internal/xmlel"
)

// RO is the Romanian monthly SAF-T (D406) dialect.
type RO struct {
	Now func() time.Time
}

// ROInvoice is one invoice block of the Romanian report.
type ROInvoice struct {
	Move    model.Move
	Partner model.Partner
	Net     decimal.Decimal
	Tax     decimal.Decimal
	Total   decimal.Decimal
}

// ROData is the enriched Romanian export.
type ROData struct {
	Company  model.Company
	Sections []PartnerSection
	Partners []model.Partner
	Accounts []model.Account
	Taxes    []model.Tax
	Products []ledger.ProductRow
	Invoices []ROInvoice

	partnersNoCity     []int
	partnersNoCountry  []int
	partnersBadReg     []int
	partnersVATCountry []int
	taxesNoType        []int
	productsNoRef      []int
	productsDupRef     []int
	productsNoIntra    []int
}

// Name implements export.Dialect.
func (RO) Name() string { return "ro_saft" }

// PrepareOptions implements export.Dialect.
func (RO) PrepareOptions(raw options.Raw) options.Options {
	raw.Dialect = "ro_saft"
	return options.Resolve(raw)
}

// Enrich implements export.Dialect.
func (RO) Enrich(ctx context.Context, store ledger.Store, company model.Company, opts options.Options) (any, error) {
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
	accountByID := ledger.AccountByID(accounts)
	taxes, err := store.Taxes(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading taxes: %w", err)
	}
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

	data := &ROData{Company: company, Sections: sections, Accounts: accounts, Taxes: taxes}

	usedPartner := make(map[int]bool)
	for _, m := range moves {
		if !m.Type.IsInvoice() {
			continue
		}
		inv := ROInvoice{Move: m, Partner: partnerByID[m.PartnerID]}
		for _, l := range m.Lines {
			switch {
			case l.TaxLineID != 0:
				inv.Tax = inv.Tax.Add(l.Balance.Abs())
			case accountByID[l.AccountID].Type.IsReceivablePayable():
				inv.Total = inv.Total.Add(l.Balance.Abs())
			default:
				inv.Net = inv.Net.Add(l.Balance.Abs())
			}
		}
		data.Invoices = append(data.Invoices, inv)
		if m.PartnerID != 0 && !usedPartner[m.PartnerID] {
			usedPartner[m.PartnerID] = true
			data.Partners = append(data.Partners, partnerByID[m.PartnerID])
		}
	}
	for _, s := range sections {
		if s.Partner.ID != 0 && !usedPartner[s.Partner.ID] {
			usedPartner[s.Partner.ID] = true
			data.Partners = append(data.Partners, s.Partner)
		}
	}

	products, err := store.UniqueProducts(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("loading products: %w", err)
	}
	for _, p := range products {
		// Without intrastat support only services are reported;
		// with it, goods join and need their commodity code.
		if !company.IntrastatEnabled && p.Product.Kind != model.KindService {
			continue
		}
		data.Products = append(data.Products, p)
		if company.IntrastatEnabled && p.Product.Kind != model.KindService && p.Product.CommodityCode == "" {
			data.productsNoIntra = append(data.productsNoIntra, p.Product.ID)
		}
	}

	data.collectFindings()
	return data, nil
}

func (d *ROData) collectFindings() {
	for _, p := range d.Partners {
		if p.Address.City == "" {
			d.partnersNoCity = append(d.partnersNoCity, p.ID)
		}
		if p.Address.Country == "" {
			d.partnersNoCountry = append(d.partnersNoCountry, p.ID)
		}
		if p.Address.Country == "RO" && !allDigits(p.RegistryNumber) {
			d.partnersBadReg = append(d.partnersBadReg, p.ID)
		}
		if !vatMatchesCountry(p.VAT, p.Address.Country) {
			d.partnersVATCountry = append(d.partnersVATCountry, p.ID)
		}
	}
	for _, t := range d.Taxes {
		if t.StandardCode == "" {
			d.taxesNoType = append(d.taxesNoType, t.ID)
		}
	}
	refs := make(map[string][]int)
	for _, p := range d.Products {
		if p.Product.DefaultCode == "" {
			d.productsNoRef = append(d.productsNoRef, p.Product.ID)
			continue
		}
		refs[p.Product.DefaultCode] = append(refs[p.Product.DefaultCode], p.Product.ID)
	}
	for _, ids := range refs {
		if len(ids) > 1 {
			d.productsDupRef = append(d.productsDupRef, ids...)
		}
	}
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// vatMatchesCountry checks the two-letter VAT prefix against the
// partner country. VAT numbers without a letter prefix pass.
func vatMatchesCountry(vat, country string) bool {
	if len(vat) < 2 || country == "" {
		return true
	}
	prefix := strings.ToUpper(vat[:2])
	if !unicode.IsLetter(rune(prefix[0])) || !unicode.IsLetter(rune(prefix[1])) {
		return true
	}
	// Greece uses EL as its VAT prefix.
	if country == "GR" {
		country = "EL"
	}
	return prefix == country
}

// Validate implements export.Dialect.
func (RO) Validate(v any) export.ErrorMap {
	data := v.(*ROData)
	errs := make(export.ErrorMap)

	if data.Company.Basis == "" {
		errs.Add(export.Error{
			Code:     "settings_accounting_basis_missing",
			Message:  "Set the accounting basis on the company before exporting.",
			Severity: export.SeverityDanger,
		})
	}
	if data.Company.Phone == "" {
		errs.Add(export.Error{
			Code:     "company_phone_missing",
			Message:  "The company needs a phone number.",
			Severity: export.SeverityDanger,
		})
	}
	if len(data.Company.BankAccounts) == 0 {
		errs.Add(export.Error{
			Code:     "company_bank_account_missing",
			Message:  "The company needs at least one bank account.",
			Severity: export.SeverityDanger,
		})
	}
	if data.Company.VAT == "" || data.Company.RegistryNumber == "" {
		errs.Add(export.Error{
			Code:     "company_vat_registry_number_missing",
			Message:  "The company needs both a VAT number and a registry number.",
			Severity: export.SeverityDanger,
		})
	} else if !allDigits(strings.TrimPrefix(data.Company.VAT, "RO")) || !allDigits(data.Company.RegistryNumber) {
		errs.Add(export.Error{
			Code:     "company_registry_number_invalid",
			Message:  "The company registry number must be numeric.",
			Severity: export.SeverityDanger,
		})
	}
	addPartnerFinding := func(code, msg string, ids []int) {
		if len(ids) == 0 {
			return
		}
		errs.Add(export.Error{
			Code:     code,
			Message:  msg,
			Severity: export.SeverityWarning,
			Action:   &export.Action{Text: "Check Partners", Model: "partner", IDs: ids},
		})
	}
	addPartnerFinding("partner_city_missing", "Some partners have no city.", data.partnersNoCity)
	addPartnerFinding("partner_country_missing", "Some partners have no country.", data.partnersNoCountry)
	addPartnerFinding("partner_registry_incorrect", "Some Romanian partners have a non-numeric registry number.", data.partnersBadReg)
	addPartnerFinding("partner_vat_doesnt_match_country", "Some partners' VAT prefix does not match their country.", data.partnersVATCountry)

	if len(data.taxesNoType) > 0 {
		errs.Add(export.Error{
			Code:     "taxes_tax_type_missing",
			Message:  "Some taxes have no Romanian tax type code.",
			Severity: export.SeverityWarning,
			Action:   &export.Action{Text: "Check Taxes", Model: "tax", IDs: data.taxesNoType},
		})
	}
	if len(data.productsNoRef) > 0 {
		errs.Add(export.Error{
			Code:     "product_internal_reference_missing",
			Message:  "Some products have no internal reference.",
			Severity: export.SeverityWarning,
			Action:   &export.Action{Text: "Check Products", Model: "product", IDs: data.productsNoRef},
		})
	}
	if len(data.productsDupRef) > 0 {
		errs.Add(export.Error{
			Code:     "product_internal_reference_duplicated",
			Message:  "Some products share an internal reference.",
			Severity: export.SeverityWarning,
			Action:   &export.Action{Text: "Check Products", Model: "product", IDs: data.productsDupRef},
		})
	}
	if len(data.productsNoIntra) > 0 {
		errs.Add(export.Error{
			Code:     "product_intrastat_code_missing",
			Message:  "Some goods have no intrastat commodity code.",
			Severity: export.SeverityWarning,
			Action:   &export.Action{Text: "Check Products", Model: "product", IDs: data.productsNoIntra},
		})
	}
	return errs
}

// Render implements export.Dialect.
func (d RO) Render(v any, opts options.Options) (export.Result, error) {
	data := v.(*ROData)
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}

	root := xmlel.El("AuditFile",
		"xmlns", "mfp:anaf:dgti:d406:declaratie:v1")
	header := headerEl(data.Company, opts, dateOnly, now())
	header.MustChildText("TaxAccountingBasis", string(data.Company.Basis))
	root.Child(header)

	master := xmlel.El("MasterFiles")
	accountsEl := xmlel.El("GeneralLedgerAccounts")
	for _, a := range data.Accounts {
		accountsEl.Child(xmlel.El("Account").
			MustChildText("AccountID", a.Code).
			MustChildText("AccountDescription", a.Name))
	}
	master.Child(accountsEl)

	customers := xmlel.El("Customers")
	suppliers := xmlel.El("Suppliers")
	for _, p := range data.Partners {
		if p.Customer || !p.Supplier {
			customers.Child(partnerEl("Customer", p, decimal.Zero, decimal.Zero))
		}
		if p.Supplier {
			suppliers.Child(partnerEl("Supplier", p, decimal.Zero, decimal.Zero))
		}
	}
	master.Child(customers, suppliers)

	taxTable := xmlel.El("TaxTable")
	for _, t := range data.Taxes {
		taxTable.Child(xmlel.El("TaxTableEntry").
			MustChildText("TaxCode", t.StandardCode).
			MustChildText("Description", t.Name).
			MustChildText("TaxPercentage", t.Rate.StringFixed(2)))
	}
	master.Child(taxTable)

	productsEl := xmlel.El("Products")
	for _, p := range data.Products {
		productsEl.Child(xmlel.El("Product").
			MustChildText("ProductCode", p.Product.DefaultCode).
			MustChildText("Description", p.Product.Name).
			ChildText("CommodityCode", p.Product.CommodityCode))
	}
	master.Child(productsEl)
	root.Child(master)

	source := xmlel.El("SourceDocuments")
	invoicesEl := xmlel.El("SalesInvoices").
		MustChildText("NumberOfEntries", fmt.Sprintf("%d", len(data.Invoices)))
	for _, inv := range data.Invoices {
		invoicesEl.Child(xmlel.El("Invoice").
			MustChildText("InvoiceNo", inv.Move.Name).
			MustChildText("InvoiceDate", inv.Move.Date.Format(dateOnly)).
			MustChildText("InvoiceType", string(inv.Move.Type)).
			ChildText("CustomerID", partnerID(inv.Partner)).
			MustChildText("NetTotal", amount(inv.Net)).
			MustChildText("TaxPayable", amount(inv.Tax)).
			MustChildText("GrossTotal", amount(inv.Total)))
	}
	source.Child(invoicesEl)
	root.Child(source)

	content, err := root.Render(xmlel.DefaultRenderOptions())
	if err != nil {
		return export.Result{}, fmt.Errorf("rendering RO SAF-T: %w", err)
	}
	return export.Result{
		FileName: export.FileName("ro", "saft", opts.Date.From, opts.Date.To, export.FileXML),
		FileType: export.FileXML,
		Content:  content,
	}, nil
}

var _ export.Dialect = RO{}
