package model

import "github.com/shopspring/decimal"

// TaxType is the side of the ledger a tax applies to.
type TaxType string

const (
	TaxSale     TaxType = "sale"
	TaxPurchase TaxType = "purchase"
)

// TaxAmountType is how the tax amount is computed from the base.
type TaxAmountType string

const (
	AmountPercent TaxAmountType = "percent"
	AmountFixed   TaxAmountType = "fixed"
	AmountGroup   TaxAmountType = "group"
)

// TaxExigibility is when the tax becomes due.
type TaxExigibility string

const (
	ExigibleOnInvoice TaxExigibility = "on_invoice"
	ExigibleOnPayment TaxExigibility = "on_payment"
)

// Tax is a configured tax. StandardCode is the regulator-assigned
// code; dialects that lack one derive it from the description.
type Tax struct {
	ID           int
	Name         string
	Description  string
	Rate         decimal.Decimal // percentage, e.g. 19 for 19%
	Type         TaxType
	AmountType   TaxAmountType
	StandardCode string
	Exigibility  TaxExigibility
}

// TaxTag is a reporting grid cell marker on a tax repartition line.
type TaxTag struct {
	ID     int
	Name   string
	Negate bool // sums with flipped sign
}
