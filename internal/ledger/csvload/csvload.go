// Package csvload reads a ledger snapshot from a directory of CSV
// files into a memory.Store. One file per entity; moves.csv is flat,
// one row per move line with the move columns repeated.
package csvload

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/auditfile-dev/auditfile/internal/ledger/memory"
	"github.com/auditfile-dev/auditfile/internal/model"
)

const dateFormat = "2006-01-02"

// Load reads every snapshot file under dir. Missing entity files are
// treated as empty; moves.csv and accounts.csv are required.
func Load(dir string, fiscalYearStart string, rates map[string]decimal.Decimal) (*memory.Store, error) {
	snap := memory.Snapshot{FiscalYearStart: fiscalYearStart, Rates: rates}

	var err error
	if snap.Accounts, err = readFile(dir, "accounts.csv", true, readAccount); err != nil {
		return nil, err
	}
	if snap.Partners, err = readFile(dir, "partners.csv", false, readPartner); err != nil {
		return nil, err
	}
	if snap.Taxes, err = readFile(dir, "taxes.csv", false, readTax); err != nil {
		return nil, err
	}
	if snap.TaxTags, err = readFile(dir, "tax_tags.csv", false, readTaxTag); err != nil {
		return nil, err
	}
	if snap.Products, err = readFile(dir, "products.csv", false, readProduct); err != nil {
		return nil, err
	}
	if snap.UoMs, err = readFile(dir, "uoms.csv", false, readUoM); err != nil {
		return nil, err
	}
	if snap.Journals, err = readFile(dir, "journals.csv", false, readJournal); err != nil {
		return nil, err
	}

	lines, err := readFile(dir, "moves.csv", true, readMoveLine)
	if err != nil {
		return nil, err
	}
	snap.Moves = groupMoves(lines)

	return memory.New(snap), nil
}

func readFile[T any](dir, name string, required bool, read func([]string) (T, error)) ([]T, error) {
	path := filepath.Join(dir, name)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		if required {
			return nil, fmt.Errorf("missing required snapshot file %s", path)
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	out, err := readAll(f, read)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

func readAll[T any](r io.Reader, read func([]string) (T, error)) ([]T, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}
	var out []T
	for i, rec := range records[1:] {
		v, err := read(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// accounts.csv: id,code,name,account_type,tags
// tags is "id:name" pairs separated by semicolons.
func readAccount(rec []string) (model.Account, error) {
	if len(rec) != 5 {
		return model.Account{}, fmt.Errorf("expected 5 fields, got %d", len(rec))
	}
	id, err := strconv.Atoi(rec[0])
	if err != nil {
		return model.Account{}, fmt.Errorf("invalid account id %q: %w", rec[0], err)
	}
	a := model.Account{ID: id, Code: rec[1], Name: rec[2], Type: model.AccountType(rec[3])}
	for _, pair := range splitList(rec[4]) {
		tagID, tagName, ok := strings.Cut(pair, ":")
		if !ok {
			return model.Account{}, fmt.Errorf("invalid tag %q", pair)
		}
		tid, err := strconv.Atoi(tagID)
		if err != nil {
			return model.Account{}, fmt.Errorf("invalid tag id %q: %w", tagID, err)
		}
		a.Tags = append(a.Tags, model.AccountTag{ID: tid, Name: tagName})
	}
	return a, nil
}

// partners.csv: id,name,vat,registry_number,street,city,zip,country,
// phone,is_company,customer,supplier,bank_accounts
func readPartner(rec []string) (model.Partner, error) {
	if len(rec) != 13 {
		return model.Partner{}, fmt.Errorf("expected 13 fields, got %d", len(rec))
	}
	id, err := strconv.Atoi(rec[0])
	if err != nil {
		return model.Partner{}, fmt.Errorf("invalid partner id %q: %w", rec[0], err)
	}
	p := model.Partner{
		ID:             id,
		Name:           rec[1],
		VAT:            rec[2],
		RegistryNumber: rec[3],
		Address:        model.Address{Street: rec[4], City: rec[5], Zip: rec[6], Country: rec[7]},
		Phone:          rec[8],
		IsCompany:      rec[9] == "true",
		Customer:       rec[10] == "true",
		Supplier:       rec[11] == "true",
	}
	for _, iban := range splitList(rec[12]) {
		p.BankAccounts = append(p.BankAccounts, model.BankAccount{Number: iban})
	}
	return p, nil
}

// taxes.csv: id,name,description,rate,tax_type,amount_type,standard_code,exigibility
func readTax(rec []string) (model.Tax, error) {
	if len(rec) != 8 {
		return model.Tax{}, fmt.Errorf("expected 8 fields, got %d", len(rec))
	}
	id, err := strconv.Atoi(rec[0])
	if err != nil {
		return model.Tax{}, fmt.Errorf("invalid tax id %q: %w", rec[0], err)
	}
	rate, err := parseDecimal(rec[3])
	if err != nil {
		return model.Tax{}, fmt.Errorf("invalid rate %q: %w", rec[3], err)
	}
	return model.Tax{
		ID:           id,
		Name:         rec[1],
		Description:  rec[2],
		Rate:         rate,
		Type:         model.TaxType(rec[4]),
		AmountType:   model.TaxAmountType(rec[5]),
		StandardCode: rec[6],
		Exigibility:  model.TaxExigibility(rec[7]),
	}, nil
}

// tax_tags.csv: id,name,negate
func readTaxTag(rec []string) (model.TaxTag, error) {
	if len(rec) != 3 {
		return model.TaxTag{}, fmt.Errorf("expected 3 fields, got %d", len(rec))
	}
	id, err := strconv.Atoi(rec[0])
	if err != nil {
		return model.TaxTag{}, fmt.Errorf("invalid tag id %q: %w", rec[0], err)
	}
	return model.TaxTag{ID: id, Name: rec[1], Negate: rec[2] == "true"}, nil
}

// products.csv: id,default_code,name,category,uom_id,commodity_code,origin_country,kind
func readProduct(rec []string) (model.Product, error) {
	if len(rec) != 8 {
		return model.Product{}, fmt.Errorf("expected 8 fields, got %d", len(rec))
	}
	id, err := strconv.Atoi(rec[0])
	if err != nil {
		return model.Product{}, fmt.Errorf("invalid product id %q: %w", rec[0], err)
	}
	uomID, err := strconv.Atoi(rec[4])
	if err != nil {
		return model.Product{}, fmt.Errorf("invalid uom id %q: %w", rec[4], err)
	}
	return model.Product{
		ID:            id,
		DefaultCode:   rec[1],
		Name:          rec[2],
		Category:      rec[3],
		UoMID:         uomID,
		CommodityCode: rec[5],
		OriginCountry: rec[6],
		Kind:          model.ProductKind(rec[7]),
	}, nil
}

// uoms.csv: id,name,category,factor,is_reference
func readUoM(rec []string) (model.UoM, error) {
	if len(rec) != 5 {
		return model.UoM{}, fmt.Errorf("expected 5 fields, got %d", len(rec))
	}
	id, err := strconv.Atoi(rec[0])
	if err != nil {
		return model.UoM{}, fmt.Errorf("invalid uom id %q: %w", rec[0], err)
	}
	factor, err := parseDecimal(rec[3])
	if err != nil {
		return model.UoM{}, fmt.Errorf("invalid factor %q: %w", rec[3], err)
	}
	return model.UoM{ID: id, Name: rec[1], Category: rec[2], Factor: factor, IsReference: rec[4] == "true"}, nil
}

// journals.csv: id,code,name,journal_type
func readJournal(rec []string) (model.Journal, error) {
	if len(rec) != 4 {
		return model.Journal{}, fmt.Errorf("expected 4 fields, got %d", len(rec))
	}
	id, err := strconv.Atoi(rec[0])
	if err != nil {
		return model.Journal{}, fmt.Errorf("invalid journal id %q: %w", rec[0], err)
	}
	return model.Journal{ID: id, Code: rec[1], Name: rec[2], Type: model.JournalType(rec[3])}, nil
}

// moveLine pairs a parsed move header with one of its lines.
type moveLine struct {
	move model.Move
	line model.MoveLine
}

const (
	colMoveID = iota
	colMoveName
	colMoveDate
	colJournalID
	colMoveType
	colState
	colCurrency
	colMovePartner
	colLineID
	colAccountID
	colLinePartner
	colDebit
	colCredit
	colAmountCurrency
	colRate
	colTaxLineID
	colTaxTags
	colTaxTagInvert
	colProductID
	colUoMID
	colQuantity
	colPriceUnit
	colTransaction
	colTransport
	colOrigin
	colWeight
	numMoveFields
)

// moves.csv columns, in order: move_id,move_name,date,journal_id,
// move_type,state,currency,move_partner_id,line_id,account_id,
// partner_id,debit,credit,amount_currency,rate,tax_line_id,tax_tags,
// tax_tag_invert,product_id,uom_id,quantity,price_unit,
// intrastat_transaction_code,intrastat_transport_code,
// intrastat_origin_country,weight
func readMoveLine(rec []string) (moveLine, error) {
	if len(rec) != numMoveFields {
		return moveLine{}, fmt.Errorf("expected %d fields, got %d", numMoveFields, len(rec))
	}
	moveID, err := strconv.Atoi(rec[colMoveID])
	if err != nil {
		return moveLine{}, fmt.Errorf("invalid move id %q: %w", rec[colMoveID], err)
	}
	date, err := time.Parse(dateFormat, rec[colMoveDate])
	if err != nil {
		return moveLine{}, fmt.Errorf("invalid date %q: %w", rec[colMoveDate], err)
	}
	journalID, err := strconv.Atoi(rec[colJournalID])
	if err != nil {
		return moveLine{}, fmt.Errorf("invalid journal id %q: %w", rec[colJournalID], err)
	}

	m := model.Move{
		ID:        moveID,
		Name:      rec[colMoveName],
		Date:      date,
		JournalID: journalID,
		Type:      model.MoveType(rec[colMoveType]),
		State:     model.MoveState(rec[colState]),
		Currency:  rec[colCurrency],
		PartnerID: atoiDefault(rec[colMovePartner]),
	}

	l := model.MoveLine{
		ID:                       atoiDefault(rec[colLineID]),
		MoveID:                   moveID,
		AccountID:                atoiDefault(rec[colAccountID]),
		PartnerID:                atoiDefault(rec[colLinePartner]),
		TaxLineID:                atoiDefault(rec[colTaxLineID]),
		TaxTagInvert:             rec[colTaxTagInvert] == "true",
		ProductID:                atoiDefault(rec[colProductID]),
		UoMID:                    atoiDefault(rec[colUoMID]),
		Date:                     date,
		IntrastatTransactionCode: rec[colTransaction],
		IntrastatTransportCode:   rec[colTransport],
		IntrastatOriginCountry:   rec[colOrigin],
	}
	for _, field := range []struct {
		dst *decimal.Decimal
		col int
	}{
		{&l.Debit, colDebit},
		{&l.Credit, colCredit},
		{&l.AmountCurrency, colAmountCurrency},
		{&l.Rate, colRate},
		{&l.Quantity, colQuantity},
		{&l.PriceUnit, colPriceUnit},
		{&l.Weight, colWeight},
	} {
		v, err := parseDecimal(rec[field.col])
		if err != nil {
			return moveLine{}, fmt.Errorf("invalid amount %q: %w", rec[field.col], err)
		}
		*field.dst = v
	}
	for _, tag := range splitList(rec[colTaxTags]) {
		id, err := strconv.Atoi(tag)
		if err != nil {
			return moveLine{}, fmt.Errorf("invalid tax tag %q: %w", tag, err)
		}
		l.TaxTagIDs = append(l.TaxTagIDs, id)
	}
	return moveLine{move: m, line: l}, nil
}

func groupMoves(lines []moveLine) []model.Move {
	var moves []model.Move
	index := make(map[int]int)
	for _, ml := range lines {
		i, seen := index[ml.move.ID]
		if !seen {
			i = len(moves)
			index[ml.move.ID] = i
			moves = append(moves, ml.move)
		}
		moves[i].Lines = append(moves[i].Lines, ml.line)
	}
	return moves
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ";")
}

func atoiDefault(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
