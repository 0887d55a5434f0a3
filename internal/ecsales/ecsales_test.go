package ecsales

import (
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditfile-dev/auditfile/internal/export"
	"github.com/auditfile-dev/auditfile/internal/ledger/memory"
	"github.com/auditfile-dev/auditfile/internal/model"
	"github.com/auditfile-dev/auditfile/internal/options"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func danishCompany() model.Company {
	return model.Company{Name: "DK Test ApS", VAT: "DK12345678", Currency: "DKK",
		Address: model.Address{Street: "Gade 1", City: "Copenhagen", Zip: "1050", Country: "DK"}}
}

func salesStore() *memory.Store {
	invoice := func(id, day, partnerID int, amount string) model.Move {
		return model.Move{
			ID: id, Name: "INV", Date: date(2023, 3, day), Type: model.MoveOutInvoice,
			State: model.StatePosted, PartnerID: partnerID,
			Lines: []model.MoveLine{
				{ID: id*10 + 1, AccountID: 1, Debit: dec(amount)},
				{ID: id*10 + 2, AccountID: 2, Credit: dec(amount)},
			},
		}
	}
	return memory.New(memory.Snapshot{
		Accounts: []model.Account{
			{ID: 1, Code: "4111", Name: "Debtors", Type: model.AccountAssetReceivable},
			{ID: 2, Code: "707", Name: "Sales", Type: model.AccountIncome},
		},
		Partners: []model.Partner{
			{ID: 1, Name: "Berlin GmbH", VAT: "DE123456789", Customer: true,
				Address: model.Address{Country: "DE"}},
			{ID: 2, Name: "Dansk Kunde", VAT: "DK87654321", Customer: true,
				Address: model.Address{Country: "DK"}},
			{ID: 3, Name: "No VAT BV", Customer: true,
				Address: model.Address{Country: "NL"}},
		},
		Moves: []model.Move{
			invoice(1, 3, 1, "1000"),
			invoice(2, 9, 1, "250.50"),
			invoice(3, 14, 2, "400"),
			invoice(4, 20, 3, "75"),
		},
	})
}

func TestAggregatesPerForeignPartner(t *testing.T) {
	opts := Dialect{}.PrepareOptions(options.Raw{DateFrom: date(2023, 3, 1), DateTo: date(2023, 3, 31)})
	v, err := Dialect{}.Enrich(context.Background(), salesStore(), danishCompany(), opts)
	require.NoError(t, err)
	data := v.(*Data)

	// The domestic customer and the VAT-less one never make a row.
	require.Len(t, data.Rows, 1)
	row := data.Rows[0]
	assert.Equal(t, "DE123456789", row.PartnerVAT)
	assert.Equal(t, "Berlin GmbH", row.PartnerName)
	assert.Equal(t, "1250.50", row.Total.StringFixed(2))
}

func TestMissingVATWarns(t *testing.T) {
	opts := Dialect{}.PrepareOptions(options.Raw{DateFrom: date(2023, 3, 1), DateTo: date(2023, 3, 31)})
	v, err := Dialect{}.Enrich(context.Background(), salesStore(), danishCompany(), opts)
	require.NoError(t, err)

	errs := Dialect{}.Validate(v)
	assert.False(t, errs.HasDanger())
	e := errs["ec_sales_partner_vat_missing"]
	assert.Equal(t, export.SeverityWarning, e.Severity)
	require.NotNil(t, e.Action)
	assert.Equal(t, []int{3}, e.Action.IDs)
}

func TestRenderCSV(t *testing.T) {
	opts := Dialect{}.PrepareOptions(options.Raw{DateFrom: date(2023, 3, 1), DateTo: date(2023, 3, 31)})
	v, err := Dialect{}.Enrich(context.Background(), salesStore(), danishCompany(), opts)
	require.NoError(t, err)

	result, err := Dialect{}.Render(v, opts)
	require.NoError(t, err)
	assert.Equal(t, "dk_ec_sales_2023-03-01_2023-03-31.csv", result.FileName)
	assert.Equal(t, export.FileCSV, result.FileType)

	r := csv.NewReader(strings.NewReader(string(result.Content)))
	r.Comma = ';'
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"partner_vat", "partner_name", "amount"}, rows[0])
	assert.Equal(t, []string{"DE123456789", "Berlin GmbH", "1250.50"}, rows[1])
}

func TestRefundsReduceTheTotal(t *testing.T) {
	snap := memory.Snapshot{
		Accounts: []model.Account{
			{ID: 1, Code: "4111", Name: "Debtors", Type: model.AccountAssetReceivable},
			{ID: 2, Code: "707", Name: "Sales", Type: model.AccountIncome},
		},
		Partners: []model.Partner{{ID: 1, Name: "Berlin GmbH", VAT: "DE123456789", Customer: true,
			Address: model.Address{Country: "DE"}}},
		Moves: []model.Move{
			{ID: 1, Name: "INV", Date: date(2023, 3, 3), Type: model.MoveOutInvoice,
				State: model.StatePosted, PartnerID: 1,
				Lines: []model.MoveLine{
					{ID: 11, AccountID: 1, Debit: dec("1000")},
					{ID: 12, AccountID: 2, Credit: dec("1000")},
				}},
			{ID: 2, Name: "RINV", Date: date(2023, 3, 17), Type: model.MoveOutRefund,
				State: model.StatePosted, PartnerID: 1,
				Lines: []model.MoveLine{
					{ID: 21, AccountID: 1, Credit: dec("200")},
					{ID: 22, AccountID: 2, Debit: dec("200")},
				}},
		},
	}
	opts := Dialect{}.PrepareOptions(options.Raw{DateFrom: date(2023, 3, 1), DateTo: date(2023, 3, 31)})
	v, err := Dialect{}.Enrich(context.Background(), memory.New(snap), danishCompany(), opts)
	require.NoError(t, err)

	data := v.(*Data)
	require.Len(t, data.Rows, 1)
	assert.Equal(t, "800.00", data.Rows[0].Total.StringFixed(2))
}
