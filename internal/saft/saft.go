// Package saft implements the SAF-T export dialects: Austrian,
// Lithuanian, Norwegian, Luxembourgish (FAIA), and the Romanian
// monthly report. The dialects share partner-balance aggregation,
// the account-type letter table, and header assembly; each owns its
// enrichment struct, validation rules, and XML layout.
package saft

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/auditfile-dev/auditfile/internal/ledger"
	"github.com/auditfile-dev/auditfile/internal/model"
	"github.com/auditfile-dev/auditfile/internal/options"
	"github.com/auditfile-dev/auditfile/internal/xmlel"
)

// FileVersion is the SAF-T schema version emitted in headers.
const FileVersion = "1.0"

const (
	dateOnly   = "2006-01-02"
	dateTimeLT = "2006-01-02T15:04:05"
)

// letterCode maps account types to the one-letter SAF-T account
// classification used by the Austrian and Lithuanian schemas.
// Long-lived assets classify as investments (IT), the rest of the
// asset side as current (TT).
var letterCode = map[model.AccountType]string{
	model.AccountAssetFixed:          "IT",
	model.AccountAssetNonCurrent:     "IT",
	model.AccountAssetReceivable:     "TT",
	model.AccountAssetCash:           "TT",
	model.AccountAssetCurrent:        "TT",
	model.AccountAssetPrepayments:    "TT",
	model.AccountEquity:              "NK",
	model.AccountEquityUnaffected:    "NK",
	model.AccountLiabilityPayable:    "I",
	model.AccountLiabilityCurrent:    "I",
	model.AccountLiabilityNonCurr:    "I",
	model.AccountLiabilityCreditCard: "I",
	model.AccountIncome:              "P",
	model.AccountIncomeOther:         "P",
	model.AccountExpense:             "S",
	model.AccountExpenseDepreciation: "S",
	model.AccountExpenseDirectCost:   "S",
	model.AccountOffBalance:          "KT",
}

// firstNumericToken returns the first run of digits in s, or "".
func firstNumericToken(s string) string {
	start := -1
	for i, r := range s {
		if unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			return s[start:i]
		}
	}
	if start >= 0 {
		return s[start:]
	}
	return ""
}

// PartnerSection is the per-partner balance block shared by the
// dialects that require opening/closing balances per account.
type PartnerSection struct {
	Partner  model.Partner
	Balances []ledger.PartnerAccountBalance
}

// partnerSections joins balance rows with their partners, preserving
// the aggregation order.
func partnerSections(ctx context.Context, store ledger.Store, balances []ledger.PartnerAccountBalance) ([]PartnerSection, error) {
	var ids []int
	seen := make(map[int]bool)
	for _, b := range balances {
		if !seen[b.PartnerID] {
			seen[b.PartnerID] = true
			ids = append(ids, b.PartnerID)
		}
	}
	partners, err := store.Partners(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading partners: %w", err)
	}
	byID := make(map[int]model.Partner, len(partners))
	for _, p := range partners {
		byID[p.ID] = p
	}

	var out []PartnerSection
	index := make(map[int]int)
	for _, b := range balances {
		i, ok := index[b.PartnerID]
		if !ok {
			i = len(out)
			index[b.PartnerID] = i
			out = append(out, PartnerSection{Partner: byID[b.PartnerID]})
		}
		out[i].Balances = append(out[i].Balances, b)
	}
	return out, nil
}

// receivablePayable is the account-type restriction for the partner
// balance aggregation.
var receivablePayable = []model.AccountType{
	model.AccountAssetReceivable,
	model.AccountLiabilityPayable,
}

// headerEl builds the shared SAF-T header block. dateLayout is
// dialect-specific; created uses the same layout.
func headerEl(company model.Company, opts options.Options, dateLayout string, created time.Time) *xmlel.Element {
	h := xmlel.El("Header").
		MustChildText("AuditFileVersion", FileVersion).
		MustChildText("AuditFileDateCreated", created.Format(dateLayout)).
		ChildText("SoftwareCompanyName", "auditfile").
		MustChildText("SelectionCriteria", "").
		Child(companyEl("Company", companyParty{
			Name:     company.Name,
			VAT:      company.VAT,
			Registry: company.RegistryNumber,
			Address:  company.Address,
			Phone:    company.Phone,
		}))
	h.Child(
		xmlel.TextEl("SelectionStartDate", opts.Date.From.Format(dateLayout)),
		xmlel.TextEl("SelectionEndDate", opts.Date.To.Format(dateLayout)),
	)
	return h
}

// companyParty carries the fields every party block shares.
type companyParty struct {
	Name     string
	VAT      string
	Registry string
	Address  model.Address
	Phone    string
}

func companyEl(tag string, p companyParty) *xmlel.Element {
	e := xmlel.El(tag).
		ChildText("RegistrationNumber", p.Registry).
		MustChildText("Name", p.Name).
		Child(addressEl(p.Address)).
		ChildText("TaxRegistrationNumber", p.VAT).
		ChildText("Telephone", p.Phone)
	return e
}

func addressEl(a model.Address) *xmlel.Element {
	return xmlel.El("Address").
		ChildText("StreetName", a.Street).
		ChildText("City", a.City).
		ChildText("PostalCode", a.Zip).
		ChildText("Region", a.Region).
		ChildText("Country", a.Country)
}

func partnerEl(tag string, p model.Partner, opening, closing decimal.Decimal) *xmlel.Element {
	e := xmlel.El(tag).
		ChildText("RegistrationNumber", p.RegistryNumber).
		MustChildText("Name", p.Name).
		Child(addressEl(p.Address)).
		ChildText("TaxRegistrationNumber", p.VAT).
		MustChildText("CustomerID", fmt.Sprintf("%d", p.ID))
	e.Child(balanceEl("OpeningDebitBalance", "OpeningCreditBalance", opening))
	e.Child(balanceEl("ClosingDebitBalance", "ClosingCreditBalance", closing))
	return e
}

// balanceEl emits a debit element for non-negative balances and a
// credit element for negative ones, per SAF-T convention.
func balanceEl(debitTag, creditTag string, balance decimal.Decimal) *xmlel.Element {
	if balance.Sign() < 0 {
		return xmlel.TextEl(creditTag, balance.Neg().StringFixed(2))
	}
	return xmlel.TextEl(debitTag, balance.StringFixed(2))
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// sectionTotals sums each partner section's opening and closing.
func sectionTotals(sections []PartnerSection) (opening, closing decimal.Decimal) {
	for _, s := range sections {
		for _, b := range s.Balances {
			opening = opening.Add(b.Opening)
			closing = closing.Add(b.Closing)
		}
	}
	return opening, closing
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ", ")
}
