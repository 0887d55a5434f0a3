package saft

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/auditfile-dev/auditfile/internal/export"
	"github.com/auditfile-dev/auditfile/internal/ledger"
	"github.com/auditfile-dev/auditfile/internal/model"
	"github.com/auditfile-dev/auditfile/internal/options"
	"github.com/auditfile-dev/auditfile/internal/xmlel"
)

// LU is the Luxembourgish FAIA dialect. On top of the customer and
// supplier sections it emits a detailed invoice section with a
// per-invoice tax breakdown.
type LU struct {
	Now func() time.Time
}

// LUInvoiceLine is one product line of a FAIA invoice. Receivable
// and payable counterpart lines are excluded.
type LUInvoiceLine struct {
	LineID    int
	ProductID int
	UoMID     int
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Balance   decimal.Decimal
}

// LUTaxDetail is one tax line of a FAIA invoice.
type LUTaxDetail struct {
	TaxName   string
	TaxAmount decimal.Decimal
}

// LUInvoice is one enriched invoice block.
type LUInvoice struct {
	Move           model.Move
	Partner        model.Partner
	InvoiceLines   []LUInvoiceLine
	TaxDetails     []LUTaxDetail
	UntaxedBalance decimal.Decimal
	TaxBalance     decimal.Decimal
	TotalBalance   decimal.Decimal
}

// LUData is the enriched FAIA export.
type LUData struct {
	Company  model.Company
	Sections []PartnerSection
	Invoices []LUInvoice
	Products []ledger.ProductRow
	UoMs     []model.UoM

	// TotalDebit and TotalCredit aggregate across customer invoices.
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal

	duplicateCodeProducts []int
	emptyCodeProducts     []int
}

// Name implements export.Dialect.
func (LU) Name() string { return "lu_faia" }

// PrepareOptions implements export.Dialect.
func (LU) PrepareOptions(raw options.Raw) options.Options {
	raw.Dialect = "lu_faia"
	return options.Resolve(raw)
}

// Enrich implements export.Dialect.
func (LU) Enrich(ctx context.Context, store ledger.Store, company model.Company, opts options.Options) (any, error) {
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

	rows, err := store.InvoiceLines(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("loading invoice lines: %w", err)
	}
	rowsByMove := make(map[int][]ledger.InvoiceLineRow)
	for _, r := range rows {
		rowsByMove[r.MoveID] = append(rowsByMove[r.MoveID], r)
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

	data := &LUData{Company: company, Sections: sections}
	for _, m := range moves {
		if !m.Type.IsInvoice() {
			continue
		}
		inv := LUInvoice{Move: m, Partner: partnerByID[m.PartnerID]}
		for _, r := range rowsByMove[m.ID] {
			switch {
			case r.TaxLineID != 0:
				inv.TaxDetails = append(inv.TaxDetails, LUTaxDetail{
					TaxName:   r.TaxName,
					TaxAmount: r.Balance,
				})
				inv.TaxBalance = inv.TaxBalance.Add(r.Balance)
			case accountByID[r.AccountID].Type.IsReceivablePayable():
				// Counterpart line: only its weight in the totals.
				if m.Type.IsSale() {
					if r.Balance.Sign() >= 0 {
						data.TotalDebit = data.TotalDebit.Add(r.Balance)
					} else {
						data.TotalCredit = data.TotalCredit.Add(r.Balance.Neg())
					}
				}
			default:
				inv.InvoiceLines = append(inv.InvoiceLines, LUInvoiceLine{
					LineID:    r.LineID,
					ProductID: r.ProductID,
					UoMID:     r.UoMID,
					Quantity:  r.Quantity,
					UnitPrice: r.UnitPrice,
					Balance:   r.Balance,
				})
				inv.UntaxedBalance = inv.UntaxedBalance.Add(r.Balance)
			}
		}
		inv.TotalBalance = inv.UntaxedBalance.Add(inv.TaxBalance)
		data.Invoices = append(data.Invoices, inv)
	}

	products, err := store.UniqueProducts(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("loading products: %w", err)
	}
	data.Products = products

	// Reference units ride along for every non-reference unit used.
	seenUoM := make(map[int]bool)
	for _, p := range products {
		if p.UoM.ID != 0 && !seenUoM[p.UoM.ID] {
			seenUoM[p.UoM.ID] = true
			data.UoMs = append(data.UoMs, p.UoM)
		}
		if !p.UoM.IsReference && p.ReferenceUoM.ID != 0 && !seenUoM[p.ReferenceUoM.ID] {
			seenUoM[p.ReferenceUoM.ID] = true
			data.UoMs = append(data.UoMs, p.ReferenceUoM)
		}
	}

	codes := make(map[string][]int)
	for _, p := range products {
		if p.Product.DefaultCode == "" {
			data.emptyCodeProducts = append(data.emptyCodeProducts, p.Product.ID)
			continue
		}
		codes[p.Product.DefaultCode] = append(codes[p.Product.DefaultCode], p.Product.ID)
	}
	for _, ids := range codes {
		if len(ids) > 1 {
			data.duplicateCodeProducts = append(data.duplicateCodeProducts, ids...)
		}
	}
	return data, nil
}

// Validate implements export.Dialect.
func (LU) Validate(v any) export.ErrorMap {
	data := v.(*LUData)
	errs := make(export.ErrorMap)
	if len(data.emptyCodeProducts) > 0 {
		errs.Add(export.Error{
			Code:     "lu_product_code_missing",
			Message:  "Some products in the period have no internal reference.",
			Severity: export.SeverityDanger,
			Action:   &export.Action{Text: "Check Products", Model: "product", IDs: data.emptyCodeProducts},
		})
	}
	if len(data.duplicateCodeProducts) > 0 {
		errs.Add(export.Error{
			Code:     "lu_product_code_duplicated",
			Message:  "Some products in the period share an internal reference.",
			Severity: export.SeverityDanger,
			Action:   &export.Action{Text: "Check Products", Model: "product", IDs: data.duplicateCodeProducts},
		})
	}
	return errs
}

// Render implements export.Dialect.
func (d LU) Render(v any, opts options.Options) (export.Result, error) {
	data := v.(*LUData)
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}

	root := xmlel.El("AuditFile",
		"xmlns", "urn:OECD:StandardAuditFile-Taxation/2.00_LU")
	root.Child(headerEl(data.Company, opts, dateOnly, now()))

	master := xmlel.El("MasterFiles")
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

	productsEl := xmlel.El("Products")
	for _, p := range data.Products {
		productsEl.Child(xmlel.El("Product").
			MustChildText("ProductCode", p.Product.DefaultCode).
			MustChildText("ProductGroup", p.Product.Category).
			MustChildText("Description", p.Product.Name).
			ChildText("UOMBase", p.ReferenceUoM.Name).
			ChildText("UOMStandard", p.UoM.Name).
			ChildText("UOMToUOMBaseConversionFactor", p.Factor.String()))
	}
	master.Child(productsEl)

	uomsEl := xmlel.El("UOMTable")
	for _, u := range data.UoMs {
		uomsEl.Child(xmlel.El("UOMTableEntry").
			MustChildText("UnitOfMeasure", u.Name).
			MustChildText("Description", u.Category))
	}
	master.Child(uomsEl)
	root.Child(master)

	source := xmlel.El("SourceDocuments")
	salesEl := xmlel.El("SalesInvoices").
		MustChildText("NumberOfEntries", fmt.Sprintf("%d", len(data.Invoices))).
		MustChildText("TotalDebit", amount(data.TotalDebit)).
		MustChildText("TotalCredit", amount(data.TotalCredit))
	for _, inv := range data.Invoices {
		invEl := xmlel.El("Invoice").
			MustChildText("InvoiceNo", inv.Move.Name).
			MustChildText("InvoiceDate", inv.Move.Date.Format(dateOnly)).
			MustChildText("InvoiceType", string(inv.Move.Type)).
			ChildText("CustomerID", partnerID(inv.Partner))
		for _, l := range inv.InvoiceLines {
			invEl.Child(xmlel.El("Line").
				MustChildText("LineNumber", fmt.Sprintf("%d", l.LineID)).
				ChildText("ProductCode", productCode(data.Products, l.ProductID)).
				MustChildText("Quantity", l.Quantity.String()).
				MustChildText("UnitPrice", amount(l.UnitPrice)).
				MustChildText("Amount", amount(l.Balance)))
		}
		taxInfo := xmlel.El("TaxInformation")
		for _, t := range inv.TaxDetails {
			taxInfo.Child(xmlel.El("TaxDetail").
				MustChildText("TaxCode", t.TaxName).
				MustChildText("TaxAmount", amount(t.TaxAmount)))
		}
		invEl.Child(taxInfo)
		invEl.
			MustChildText("NetTotal", amount(inv.UntaxedBalance)).
			MustChildText("TaxPayable", amount(inv.TaxBalance)).
			MustChildText("GrossTotal", amount(inv.TotalBalance))
		salesEl.Child(invEl)
	}
	source.Child(salesEl)
	root.Child(source)

	content, err := root.Render(xmlel.DefaultRenderOptions())
	if err != nil {
		return export.Result{}, fmt.Errorf("rendering FAIA: %w", err)
	}
	return export.Result{
		FileName: export.FileName("lu", "faia", opts.Date.From, opts.Date.To, export.FileXML),
		FileType: export.FileXML,
		Content:  content,
	}, nil
}

func partnerID(p model.Partner) string {
	if p.ID == 0 {
		return ""
	}
	return fmt.Sprintf("%d", p.ID)
}

func productCode(products []ledger.ProductRow, id int) string {
	for _, p := range products {
		if p.Product.ID == id {
			return p.Product.DefaultCode
		}
	}
	return ""
}

var _ export.Dialect = LU{}
