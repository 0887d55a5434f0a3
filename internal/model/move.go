package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// JournalType groups moves by their business origin.
type JournalType string

const (
	JournalSale     JournalType = "sale"
	JournalPurchase JournalType = "purchase"
	JournalBank     JournalType = "bank"
	JournalCash     JournalType = "cash"
	JournalMisc     JournalType = "misc"
)

// Journal is a named grouping of moves.
type Journal struct {
	ID   int
	Code string
	Name string
	Type JournalType
}

// MoveType distinguishes invoices, refunds, and plain entries.
type MoveType string

const (
	MoveOutInvoice MoveType = "out_invoice" // customer invoice
	MoveOutRefund  MoveType = "out_refund"  // customer credit note
	MoveInInvoice  MoveType = "in_invoice"  // vendor bill
	MoveInRefund   MoveType = "in_refund"   // vendor credit note
	MoveEntry      MoveType = "entry"
)

// IsSale reports whether the move is a customer-side document.
func (t MoveType) IsSale() bool {
	return t == MoveOutInvoice || t == MoveOutRefund
}

// IsPurchase reports whether the move is a vendor-side document.
func (t MoveType) IsPurchase() bool {
	return t == MoveInInvoice || t == MoveInRefund
}

// IsInvoice reports whether the move is any invoice-like document.
func (t MoveType) IsInvoice() bool {
	return t.IsSale() || t.IsPurchase()
}

// MoveState is the lifecycle state of a journal entry.
type MoveState string

const (
	StateDraft  MoveState = "draft"
	StatePosted MoveState = "posted"
	StateCancel MoveState = "cancel"
)

// Move is one journal entry. It owns its lines.
type Move struct {
	ID        int
	Name      string
	Date      time.Time
	JournalID int
	Type      MoveType
	State     MoveState
	Currency  string // ISO code; empty means company currency
	PartnerID int    // 0 = no partner
	Ref       string
	Lines     []MoveLine
}

// Balanced reports whether debits equal credits across all lines,
// in company currency.
func (m Move) Balanced() bool {
	sum := decimal.Zero
	for _, l := range m.Lines {
		sum = sum.Add(l.Debit).Sub(l.Credit)
	}
	return sum.IsZero()
}

// MoveLine is a single row of a journal entry. Balance is
// debit - credit in company currency; AmountCurrency is the amount in
// the move's currency when that differs.
type MoveLine struct {
	ID             int
	MoveID         int
	AccountID      int
	PartnerID      int // 0 = inherited from the move or none
	Name           string
	Debit          decimal.Decimal
	Credit         decimal.Decimal
	Balance        decimal.Decimal
	AmountCurrency decimal.Decimal
	Rate           decimal.Decimal // company units per currency unit; zero = 1
	TaxLineID      int             // tax this line books; 0 = not a tax line
	TaxTagIDs      []int
	TaxTagInvert   bool
	ProductID      int // 0 = no product
	UoMID          int // 0 = no unit
	Quantity       decimal.Decimal
	PriceUnit      decimal.Decimal
	Date           time.Time

	// Intrastat attributes, populated on goods lines only.
	IntrastatTransactionCode string
	IntrastatTransportCode   string
	IntrastatOriginCountry   string
	Weight                   decimal.Decimal // net mass in kg
}
