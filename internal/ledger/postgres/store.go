// Package postgres implements ledger.Store against a PostgreSQL
// ledger schema. One export run holds one repeatable-read read-only
// transaction so that opening balances, closing balances, and line
// enumeration all see the same ledger state.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/auditfile-dev/auditfile/internal/ledger"
	"github.com/auditfile-dev/auditfile/internal/model"
	"github.com/auditfile-dev/auditfile/internal/options"
)

// Store hands out per-export snapshots over a connection pool.
type Store struct {
	pool            *pgxpool.Pool
	fiscalYearStart string // "MM-DD"
	companyID       int
}

// New creates a Store for one company's ledger.
func New(pool *pgxpool.Pool, companyID int, fiscalYearStart string) *Store {
	if fiscalYearStart == "" {
		fiscalYearStart = "01-01"
	}
	return &Store{pool: pool, fiscalYearStart: fiscalYearStart, companyID: companyID}
}

// Snapshot opens the read-only transaction backing one export run.
// The caller must Close it on every exit path.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("beginning snapshot transaction: %w", err)
	}
	return &Snapshot{tx: tx, store: s}, nil
}

// Snapshot is one consistent view of the ledger. It implements
// ledger.Store.
type Snapshot struct {
	tx    pgx.Tx
	store *Store
}

// Close releases the snapshot transaction.
func (s *Snapshot) Close(ctx context.Context) error {
	return s.tx.Rollback(ctx)
}

const balanceQuery = `
	SELECT COALESCE(l.partner_id, m.partner_id) AS partner_id,
	       a.code,
	       COALESCE(SUM(l.balance) FILTER (WHERE l.date < $2), 0) AS opening,
	       COALESCE(SUM(l.balance), 0)                            AS closing
	FROM move_lines l
	JOIN moves m    ON m.id = l.move_id
	JOIN accounts a ON a.id = l.account_id
	WHERE m.company_id = $1
	  AND m.state = 'posted'
	  AND l.date <= $3
	  AND a.account_type = ANY($4)
	  AND COALESCE(l.partner_id, m.partner_id) IS NOT NULL
	GROUP BY COALESCE(l.partner_id, m.partner_id), a.code
	ORDER BY 1, 2`

// PartnerBalances implements ledger.Store.
func (s *Snapshot) PartnerBalances(ctx context.Context, opts options.Options, types []model.AccountType) ([]ledger.PartnerAccountBalance, error) {
	typeNames := make([]string, len(types))
	for i, t := range types {
		typeNames[i] = string(t)
	}
	rows, err := s.tx.Query(ctx, balanceQuery, s.store.companyID, opts.Date.From, opts.Date.To, typeNames)
	if err != nil {
		return nil, fmt.Errorf("querying partner balances: %w", err)
	}
	defer rows.Close()

	var out []ledger.PartnerAccountBalance
	for rows.Next() {
		var b ledger.PartnerAccountBalance
		if err := rows.Scan(&b.PartnerID, &b.AccountCode, &b.Opening, &b.Closing); err != nil {
			return nil, fmt.Errorf("scanning partner balance: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const invoiceLineQuery = `
	SELECT l.move_id, l.id, l.account_id,
	       COALESCE(l.product_id, 0), COALESCE(l.uom_id, 0),
	       l.quantity, l.price_unit, l.balance,
	       COALESCE(l.tax_line_id, 0), COALESCE(t.name, ''),
	       CASE WHEN l.tax_line_id IS NULL THEN 0 ELSE l.balance END,
	       l.amount_currency, COALESCE(l.rate, 1)
	FROM move_lines l
	JOIN moves m ON m.id = l.move_id
	LEFT JOIN taxes t ON t.id = l.tax_line_id
	WHERE m.company_id = $1
	  AND m.state = 'posted'
	  AND m.move_type IN ('out_invoice','out_refund','in_invoice','in_refund')
	  AND m.date BETWEEN $2 AND $3
	ORDER BY l.move_id, l.id`

// InvoiceLines implements ledger.Store.
func (s *Snapshot) InvoiceLines(ctx context.Context, opts options.Options) ([]ledger.InvoiceLineRow, error) {
	from := rangeFrom(opts)
	rows, err := s.tx.Query(ctx, invoiceLineQuery, s.store.companyID, from, opts.Date.To)
	if err != nil {
		return nil, fmt.Errorf("querying invoice lines: %w", err)
	}
	defer rows.Close()

	var out []ledger.InvoiceLineRow
	for rows.Next() {
		var r ledger.InvoiceLineRow
		if err := rows.Scan(&r.MoveID, &r.LineID, &r.AccountID, &r.ProductID, &r.UoMID,
			&r.Quantity, &r.UnitPrice, &r.Balance, &r.TaxLineID, &r.TaxName,
			&r.TaxAmount, &r.AmountCurrency, &r.Rate); err != nil {
			return nil, fmt.Errorf("scanning invoice line: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const taxAggregateQuery = `
	SELECT g.name, g.negate, l.tax_tag_invert, SUM(l.balance)
	FROM move_lines l
	JOIN moves m       ON m.id = l.move_id
	JOIN line_tax_tags lt ON lt.line_id = l.id
	JOIN tax_tags g    ON g.id = lt.tag_id
	WHERE m.company_id = $1
	  AND m.state = 'posted'
	  AND l.date BETWEEN $2 AND $3
	GROUP BY g.name, g.negate, l.tax_tag_invert`

// TaxAggregates implements ledger.Store. The sign flips are folded in
// Go after grouping so the SQL stays portable.
func (s *Snapshot) TaxAggregates(ctx context.Context, opts options.Options, tags map[int]model.TaxTag) ([]ledger.TaxAggregateRow, error) {
	var out []ledger.TaxAggregateRow
	for _, g := range opts.ColumnGroups {
		from := g.Range.From
		if g.Range.Scope == options.FromBeginning {
			from = time.Time{}
		}
		rows, err := s.tx.Query(ctx, taxAggregateQuery, s.store.companyID, from, g.Range.To)
		if err != nil {
			return nil, fmt.Errorf("querying tax aggregates: %w", err)
		}
		sums := make(map[string]decimal.Decimal)
		var order []string
		for rows.Next() {
			var (
				name           string
				negate, invert bool
				balance        decimal.Decimal
			)
			if err := rows.Scan(&name, &negate, &invert, &balance); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning tax aggregate: %w", err)
			}
			if negate != invert {
				balance = balance.Neg()
			}
			if _, seen := sums[name]; !seen {
				order = append(order, name)
			}
			sums[name] = sums[name].Add(balance)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
		for _, name := range order {
			out = append(out, ledger.TaxAggregateRow{TagName: name, GroupKey: g.Key, Balance: sums[name]})
		}
	}
	return out, nil
}

const uniqueProductQuery = `
	SELECT DISTINCT ON (p.id)
	       p.id, COALESCE(p.default_code, ''), p.name, COALESCE(p.category, ''),
	       COALESCE(p.uom_id, 0), COALESCE(p.commodity_code, ''),
	       COALESCE(p.origin_country, ''), p.kind,
	       u.id, u.name, u.category, u.factor, u.is_reference,
	       r.id, r.name, r.category
	FROM move_lines l
	JOIN moves m    ON m.id = l.move_id
	JOIN products p ON p.id = l.product_id
	JOIN uoms u     ON u.id = p.uom_id
	JOIN uoms r     ON r.category = u.category AND r.is_reference
	WHERE m.company_id = $1
	  AND m.state = 'posted'
	  AND m.move_type IN ('out_invoice','out_refund','in_invoice','in_refund')
	  AND m.date BETWEEN $2 AND $3
	ORDER BY p.id`

// UniqueProducts implements ledger.Store.
func (s *Snapshot) UniqueProducts(ctx context.Context, opts options.Options) ([]ledger.ProductRow, error) {
	rows, err := s.tx.Query(ctx, uniqueProductQuery, s.store.companyID, rangeFrom(opts), opts.Date.To)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	var out []ledger.ProductRow
	for rows.Next() {
		var r ledger.ProductRow
		if err := rows.Scan(
			&r.Product.ID, &r.Product.DefaultCode, &r.Product.Name, &r.Product.Category,
			&r.Product.UoMID, &r.Product.CommodityCode, &r.Product.OriginCountry, &r.Product.Kind,
			&r.UoM.ID, &r.UoM.Name, &r.UoM.Category, &r.UoM.Factor, &r.UoM.IsReference,
			&r.ReferenceUoM.ID, &r.ReferenceUoM.Name, &r.ReferenceUoM.Category,
		); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		r.ReferenceUoM.IsReference = true
		r.ReferenceUoM.Factor = decimal.NewFromInt(1)
		r.Factor = r.UoM.Factor
		if r.Factor.IsZero() {
			r.Factor = decimal.NewFromInt(1)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const movesQuery = `
	SELECT m.id, m.name, m.date, m.journal_id, m.move_type, m.state,
	       COALESCE(m.currency, ''), COALESCE(m.partner_id, 0), COALESCE(m.ref, '')
	FROM moves m
	WHERE m.company_id = $1 AND m.state = 'posted' AND m.date BETWEEN $2 AND $3
	ORDER BY m.date, m.id`

const moveLinesQuery = `
	SELECT l.id, l.move_id, l.account_id, COALESCE(l.partner_id, 0),
	       COALESCE(l.name, ''), l.debit, l.credit, l.balance,
	       l.amount_currency, COALESCE(l.rate, 0), COALESCE(l.tax_line_id, 0),
	       l.tax_tag_invert, COALESCE(l.product_id, 0), COALESCE(l.uom_id, 0),
	       l.quantity, l.price_unit, l.date,
	       COALESCE(l.intrastat_transaction_code, ''),
	       COALESCE(l.intrastat_transport_code, ''),
	       COALESCE(l.intrastat_origin_country, ''),
	       COALESCE(l.weight, 0)
	FROM move_lines l
	JOIN moves m ON m.id = l.move_id
	WHERE m.company_id = $1 AND m.state = 'posted' AND m.date BETWEEN $2 AND $3
	ORDER BY l.move_id, l.id`

// Moves implements ledger.Store.
func (s *Snapshot) Moves(ctx context.Context, opts options.Options) ([]model.Move, error) {
	from := rangeFrom(opts)
	rows, err := s.tx.Query(ctx, movesQuery, s.store.companyID, from, opts.Date.To)
	if err != nil {
		return nil, fmt.Errorf("querying moves: %w", err)
	}
	var moves []model.Move
	index := make(map[int]int)
	for rows.Next() {
		var m model.Move
		if err := rows.Scan(&m.ID, &m.Name, &m.Date, &m.JournalID, &m.Type, &m.State,
			&m.Currency, &m.PartnerID, &m.Ref); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning move: %w", err)
		}
		index[m.ID] = len(moves)
		moves = append(moves, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.tx.Query(ctx, moveLinesQuery, s.store.companyID, from, opts.Date.To)
	if err != nil {
		return nil, fmt.Errorf("querying move lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l model.MoveLine
		if err := rows.Scan(&l.ID, &l.MoveID, &l.AccountID, &l.PartnerID, &l.Name,
			&l.Debit, &l.Credit, &l.Balance, &l.AmountCurrency, &l.Rate, &l.TaxLineID,
			&l.TaxTagInvert, &l.ProductID, &l.UoMID, &l.Quantity, &l.PriceUnit, &l.Date,
			&l.IntrastatTransactionCode, &l.IntrastatTransportCode,
			&l.IntrastatOriginCountry, &l.Weight); err != nil {
			return nil, fmt.Errorf("scanning move line: %w", err)
		}
		if i, ok := index[l.MoveID]; ok {
			moves[i].Lines = append(moves[i].Lines, l)
		}
	}
	return moves, rows.Err()
}

// Accounts implements ledger.Store.
func (s *Snapshot) Accounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.tx.Query(ctx, `
		SELECT a.id, a.code, a.name, a.account_type,
		       COALESCE(array_agg(t.id) FILTER (WHERE t.id IS NOT NULL), '{}'),
		       COALESCE(array_agg(t.name) FILTER (WHERE t.id IS NOT NULL), '{}')
		FROM accounts a
		LEFT JOIN account_account_tags at ON at.account_id = a.id
		LEFT JOIN account_tags t          ON t.id = at.tag_id
		WHERE a.company_id = $1
		GROUP BY a.id
		ORDER BY a.code`, s.store.companyID)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		var (
			a        model.Account
			tagIDs   []int
			tagNames []string
		)
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &tagIDs, &tagNames); err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		for i := range tagIDs {
			a.Tags = append(a.Tags, model.AccountTag{ID: tagIDs[i], Name: tagNames[i]})
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Taxes implements ledger.Store.
func (s *Snapshot) Taxes(ctx context.Context) ([]model.Tax, error) {
	rows, err := s.tx.Query(ctx, `
		SELECT id, name, COALESCE(description, ''), rate, tax_type, amount_type,
		       COALESCE(standard_code, ''), exigibility
		FROM taxes WHERE company_id = $1 ORDER BY id`, s.store.companyID)
	if err != nil {
		return nil, fmt.Errorf("querying taxes: %w", err)
	}
	defer rows.Close()

	var out []model.Tax
	for rows.Next() {
		var t model.Tax
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Rate, &t.Type,
			&t.AmountType, &t.StandardCode, &t.Exigibility); err != nil {
			return nil, fmt.Errorf("scanning tax: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Partners implements ledger.Store.
func (s *Snapshot) Partners(ctx context.Context, ids []int) ([]model.Partner, error) {
	query := `
		SELECT id, name, COALESCE(vat, ''), COALESCE(registry_number, ''),
		       COALESCE(street, ''), COALESCE(city, ''), COALESCE(zip, ''),
		       COALESCE(country, ''), COALESCE(phone, ''),
		       is_company, customer, supplier
		FROM partners WHERE company_id = $1`
	args := []any{s.store.companyID}
	if ids != nil {
		query += ` AND id = ANY($2)`
		args = append(args, ids)
	}
	query += ` ORDER BY id`

	rows, err := s.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying partners: %w", err)
	}
	defer rows.Close()

	var out []model.Partner
	for rows.Next() {
		var p model.Partner
		if err := rows.Scan(&p.ID, &p.Name, &p.VAT, &p.RegistryNumber,
			&p.Address.Street, &p.Address.City, &p.Address.Zip, &p.Address.Country,
			&p.Phone, &p.IsCompany, &p.Customer, &p.Supplier); err != nil {
			return nil, fmt.Errorf("scanning partner: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CurrencyRates implements ledger.Store.
func (s *Snapshot) CurrencyRates(ctx context.Context, date time.Time) (map[string]decimal.Decimal, error) {
	rows, err := s.tx.Query(ctx, `
		SELECT DISTINCT ON (currency) currency, rate
		FROM currency_rates
		WHERE company_id = $1 AND rate_date <= $2
		ORDER BY currency, rate_date DESC`, s.store.companyID, date)
	if err != nil {
		return nil, fmt.Errorf("querying currency rates: %w", err)
	}
	defer rows.Close()

	out := make(map[string]decimal.Decimal)
	for rows.Next() {
		var (
			code string
			rate decimal.Decimal
		)
		if err := rows.Scan(&code, &rate); err != nil {
			return nil, fmt.Errorf("scanning currency rate: %w", err)
		}
		out[code] = rate
	}
	return out, rows.Err()
}

// FiscalYearStart implements ledger.Store.
func (s *Snapshot) FiscalYearStart(d time.Time) time.Time {
	return options.FiscalYearStart(d, s.store.fiscalYearStart)
}

// rangeFrom collapses a FromBeginning scope into an open lower bound.
func rangeFrom(opts options.Options) time.Time {
	if opts.Date.Scope == options.FromBeginning {
		return time.Time{}
	}
	return opts.Date.From
}
