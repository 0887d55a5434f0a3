// Package memory implements ledger.Store over in-memory slices. It
// backs the CSV loader and the test fixtures; the postgres package
// provides the same contracts against a live database.
package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/auditfile-dev/auditfile/internal/currency"
	"github.com/auditfile-dev/auditfile/internal/ledger"
	"github.com/auditfile-dev/auditfile/internal/model"
	"github.com/auditfile-dev/auditfile/internal/options"
)

// Snapshot is the full ledger state a Store serves.
type Snapshot struct {
	Accounts        []model.Account
	Partners        []model.Partner
	Taxes           []model.Tax
	TaxTags         []model.TaxTag
	Products        []model.Product
	UoMs            []model.UoM
	Journals        []model.Journal
	Moves           []model.Move
	Rates           map[string]decimal.Decimal // company units per foreign unit
	FiscalYearStart string                     // "MM-DD", empty = "01-01"
}

// Store serves ledger queries from a Snapshot.
type Store struct {
	snap      Snapshot
	byAccount map[int]model.Account
	byTax     map[int]model.Tax
	byProduct map[int]model.Product
	byUoM     map[int]model.UoM
	byJournal map[int]model.Journal
	refByCat  map[string]model.UoM
	tagsByID  map[int]model.TaxTag
}

// New builds a Store. Line balances left at zero are derived from
// debit - credit so fixtures can specify either form.
func New(snap Snapshot) *Store {
	s := &Store{
		snap:      snap,
		byAccount: make(map[int]model.Account, len(snap.Accounts)),
		byTax:     make(map[int]model.Tax, len(snap.Taxes)),
		byProduct: make(map[int]model.Product, len(snap.Products)),
		byUoM:     make(map[int]model.UoM, len(snap.UoMs)),
		byJournal: make(map[int]model.Journal, len(snap.Journals)),
		refByCat:  make(map[string]model.UoM),
		tagsByID:  make(map[int]model.TaxTag, len(snap.TaxTags)),
	}
	for _, a := range snap.Accounts {
		s.byAccount[a.ID] = a
	}
	for _, t := range snap.Taxes {
		s.byTax[t.ID] = t
	}
	for _, p := range snap.Products {
		s.byProduct[p.ID] = p
	}
	for _, u := range snap.UoMs {
		s.byUoM[u.ID] = u
		if u.IsReference {
			s.refByCat[u.Category] = u
		}
	}
	for _, j := range snap.Journals {
		s.byJournal[j.ID] = j
	}
	for _, t := range snap.TaxTags {
		s.tagsByID[t.ID] = t
	}
	for mi := range s.snap.Moves {
		m := &s.snap.Moves[mi]
		for li := range m.Lines {
			l := &m.Lines[li]
			if l.Balance.IsZero() && (!l.Debit.IsZero() || !l.Credit.IsZero()) {
				l.Balance = l.Debit.Sub(l.Credit)
			}
			if l.Date.IsZero() {
				l.Date = m.Date
			}
			if l.MoveID == 0 {
				l.MoveID = m.ID
			}
		}
	}
	return s
}

// TaxTags returns the tag lookup for TaxAggregates calls.
func (s *Store) TaxTags() map[int]model.TaxTag {
	return s.tagsByID
}

// Account returns the account with the given ID.
func (s *Store) Account(id int) (model.Account, bool) {
	a, ok := s.byAccount[id]
	return a, ok
}

// Journal returns the journal with the given ID.
func (s *Store) Journal(id int) (model.Journal, bool) {
	j, ok := s.byJournal[id]
	return j, ok
}

// UoM returns the unit with the given ID.
func (s *Store) UoM(id int) (model.UoM, bool) {
	u, ok := s.byUoM[id]
	return u, ok
}

func (s *Store) postedMoves(opts options.Options) []model.Move {
	var out []model.Move
	for _, m := range s.snap.Moves {
		if m.State != model.StatePosted {
			continue
		}
		if !matchDomain(m, s.byJournal, opts.ForcedDomain) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func matchDomain(m model.Move, journals map[int]model.Journal, domain []options.Condition) bool {
	for _, c := range domain {
		var got any
		switch c.Field {
		case "move_type":
			got = string(m.Type)
		case "journal_type":
			got = string(journals[m.JournalID].Type)
		case "partner_id":
			got = m.PartnerID
		default:
			continue
		}
		switch c.Op {
		case "=", "":
			if got != c.Value {
				return false
			}
		case "!=":
			if got == c.Value {
				return false
			}
		case "in":
			vals, ok := c.Value.([]any)
			if !ok {
				return false
			}
			found := false
			for _, v := range vals {
				if got == v {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

// PartnerBalances implements ledger.Store. Lines without a partner
// (own or inherited from the move) are skipped: the aggregation is
// strictly per partner.
func (s *Store) PartnerBalances(ctx context.Context, opts options.Options, types []model.AccountType) ([]ledger.PartnerAccountBalance, error) {
	wanted := make(map[model.AccountType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}

	type key struct {
		partner int
		code    string
	}
	sums := make(map[key]*ledger.PartnerAccountBalance)
	var order []key

	for _, m := range s.postedMoves(opts) {
		for _, l := range m.Lines {
			acc, ok := s.byAccount[l.AccountID]
			if !ok || !wanted[acc.Type] {
				continue
			}
			partner := l.PartnerID
			if partner == 0 {
				partner = m.PartnerID
			}
			if partner == 0 {
				continue
			}
			if l.Date.After(opts.Date.To) {
				continue
			}
			k := key{partner, acc.Code}
			row, seen := sums[k]
			if !seen {
				row = &ledger.PartnerAccountBalance{PartnerID: partner, AccountCode: acc.Code}
				sums[k] = row
				order = append(order, k)
			}
			row.Closing = row.Closing.Add(l.Balance)
			if l.Date.Before(opts.Date.From) {
				row.Opening = row.Opening.Add(l.Balance)
			}
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].partner != order[j].partner {
			return order[i].partner < order[j].partner
		}
		return order[i].code < order[j].code
	})
	out := make([]ledger.PartnerAccountBalance, 0, len(order))
	for _, k := range order {
		out = append(out, *sums[k])
	}
	return out, nil
}

// InvoiceLines implements ledger.Store.
func (s *Store) InvoiceLines(ctx context.Context, opts options.Options) ([]ledger.InvoiceLineRow, error) {
	table, err := currency.Load(ctx, s, "", opts.Date.To)
	if err != nil {
		return nil, err
	}

	var out []ledger.InvoiceLineRow
	for _, m := range s.postedMoves(opts) {
		if !m.Type.IsInvoice() || !opts.Date.Contains(m.Date) {
			continue
		}
		for _, l := range m.Lines {
			row := ledger.InvoiceLineRow{
				MoveID:         m.ID,
				LineID:         l.ID,
				AccountID:      l.AccountID,
				ProductID:      l.ProductID,
				UoMID:          l.UoMID,
				Quantity:       l.Quantity,
				UnitPrice:      l.PriceUnit,
				Balance:        l.Balance,
				TaxLineID:      l.TaxLineID,
				AmountCurrency: l.AmountCurrency,
				Rate:           lineRate(l, m, table),
			}
			if tax, ok := s.byTax[l.TaxLineID]; ok && l.TaxLineID != 0 {
				row.TaxName = tax.Name
				row.TaxAmount = l.Balance
			}
			out = append(out, row)
		}
	}
	return out, nil
}

// lineRate prefers the rate booked on the line; otherwise the move
// currency resolves against the period's conversion table.
func lineRate(l model.MoveLine, m model.Move, table *currency.Table) decimal.Decimal {
	if !l.Rate.IsZero() {
		return l.Rate
	}
	if r, ok := table.Rate(m.Currency); ok {
		return r
	}
	return decimal.NewFromInt(1)
}

// TaxAggregates implements ledger.Store. A negating tag and an
// inverted line each flip the sign; both together cancel out.
func (s *Store) TaxAggregates(ctx context.Context, opts options.Options, tags map[int]model.TaxTag) ([]ledger.TaxAggregateRow, error) {
	type key struct {
		tag   string
		group string
	}
	sums := make(map[key]decimal.Decimal)
	var order []key

	for _, m := range s.postedMoves(opts) {
		for _, l := range m.Lines {
			for _, tagID := range l.TaxTagIDs {
				tag, ok := tags[tagID]
				if !ok {
					continue
				}
				for _, g := range opts.ColumnGroups {
					if !g.Range.Contains(l.Date) {
						continue
					}
					amount := l.Balance
					if tag.Negate != l.TaxTagInvert {
						amount = amount.Neg()
					}
					k := key{tag.Name, g.Key}
					if _, seen := sums[k]; !seen {
						order = append(order, k)
					}
					sums[k] = sums[k].Add(amount)
				}
			}
		}
	}

	out := make([]ledger.TaxAggregateRow, 0, len(order))
	for _, k := range order {
		out = append(out, ledger.TaxAggregateRow{TagName: k.tag, GroupKey: k.group, Balance: sums[k]})
	}
	return out, nil
}

// UniqueProducts implements ledger.Store.
func (s *Store) UniqueProducts(ctx context.Context, opts options.Options) ([]ledger.ProductRow, error) {
	seen := make(map[int]bool)
	var out []ledger.ProductRow
	for _, m := range s.postedMoves(opts) {
		if !m.Type.IsInvoice() || !opts.Date.Contains(m.Date) {
			continue
		}
		for _, l := range m.Lines {
			if l.ProductID == 0 || seen[l.ProductID] {
				continue
			}
			seen[l.ProductID] = true
			p, ok := s.byProduct[l.ProductID]
			if !ok {
				continue
			}
			uom := s.byUoM[p.UoMID]
			ref := s.refByCat[uom.Category]
			factor := uom.Factor
			if factor.IsZero() {
				factor = decimal.NewFromInt(1)
			}
			out = append(out, ledger.ProductRow{
				Product:      p,
				UoM:          uom,
				ReferenceUoM: ref,
				Factor:       factor,
			})
		}
	}
	return out, nil
}

// Moves implements ledger.Store.
func (s *Store) Moves(ctx context.Context, opts options.Options) ([]model.Move, error) {
	var out []model.Move
	for _, m := range s.postedMoves(opts) {
		if !opts.Date.Contains(m.Date) {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Accounts implements ledger.Store.
func (s *Store) Accounts(ctx context.Context) ([]model.Account, error) {
	out := make([]model.Account, len(s.snap.Accounts))
	copy(out, s.snap.Accounts)
	return out, nil
}

// Taxes implements ledger.Store.
func (s *Store) Taxes(ctx context.Context) ([]model.Tax, error) {
	out := make([]model.Tax, len(s.snap.Taxes))
	copy(out, s.snap.Taxes)
	return out, nil
}

// Partners implements ledger.Store.
func (s *Store) Partners(ctx context.Context, ids []int) ([]model.Partner, error) {
	if ids == nil {
		out := make([]model.Partner, len(s.snap.Partners))
		copy(out, s.snap.Partners)
		return out, nil
	}
	wanted := make(map[int]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []model.Partner
	for _, p := range s.snap.Partners {
		if wanted[p.ID] {
			out = append(out, p)
		}
	}
	return out, nil
}

// CurrencyRates implements ledger.Store. The snapshot carries one
// rate per currency; date granularity is the postgres store's job.
func (s *Store) CurrencyRates(ctx context.Context, date time.Time) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(s.snap.Rates))
	for k, v := range s.snap.Rates {
		out[k] = v
	}
	return out, nil
}

// FiscalYearStart implements ledger.Store.
func (s *Store) FiscalYearStart(d time.Time) time.Time {
	start := s.snap.FiscalYearStart
	if start == "" {
		start = "01-01"
	}
	return options.FiscalYearStart(d, start)
}
