package trialbalance

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

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

func balanceOptions(variant string, from, to time.Time) options.Options {
	return Dialect{}.PrepareOptions(options.Raw{
		Variant:  variant,
		DateFrom: from,
		DateTo:   to,
	})
}

// ledgerStore posts 30 before the fiscal year, 100 in January, and 50
// in March, all against the same receivable.
func ledgerStore() *memory.Store {
	entry := func(id int, day time.Time, amount string) model.Move {
		return model.Move{
			ID: id, Name: "MISC", Date: day, Type: model.MoveEntry, State: model.StatePosted,
			Lines: []model.MoveLine{
				{ID: id*10 + 1, AccountID: 1, Debit: dec(amount)},
				{ID: id*10 + 2, AccountID: 2, Credit: dec(amount)},
			},
		}
	}
	return memory.New(memory.Snapshot{
		Accounts: []model.Account{
			{ID: 1, Code: "4111", Name: "Clients", Type: model.AccountAssetReceivable},
			{ID: 2, Code: "707", Name: "Sales", Type: model.AccountIncome},
		},
		Moves: []model.Move{
			entry(1, date(2022, 12, 20), "30"),
			entry(2, date(2023, 1, 15), "100"),
			entry(3, date(2023, 3, 10), "50"),
		},
	})
}

func rowByCode(t *testing.T, data *Data, code string) Row {
	t.Helper()
	for _, r := range data.Rows {
		if r.Account.Code == code {
			return r
		}
	}
	t.Fatalf("no row for account %s", code)
	return Row{}
}

func TestFiveColumnMidYear(t *testing.T) {
	opts := balanceOptions(VariantFiveColumn, date(2023, 3, 1), date(2023, 3, 31))
	v, err := Dialect{}.Enrich(context.Background(), ledgerStore(), model.Company{Name: "RO Test SRL"}, opts)
	require.NoError(t, err)
	data := v.(*Data)

	assert.True(t, data.ShowStartOfYear)
	assert.Equal(t, []string{GroupInitial, GroupStartOfYear, GroupCurrent, GroupTotal, GroupEndBalance}, data.Groups)

	row := rowByCode(t, data, "4111")
	assert.Equal(t, "30", row.Cells[GroupInitial].Debit.String())
	assert.Equal(t, "100", row.Cells[GroupStartOfYear].Debit.String())
	assert.Equal(t, "50", row.Cells[GroupCurrent].Debit.String())
	assert.Equal(t, "180", row.Cells[GroupTotal].Debit.String())
	assert.Equal(t, "180", row.Cells[GroupEndBalance].Debit.String())
	assert.True(t, row.Cells[GroupEndBalance].Credit.IsZero())

	// The income side closes on the credit column.
	income := rowByCode(t, data, "707")
	assert.Equal(t, "180", income.Cells[GroupTotal].Credit.String())
	assert.Equal(t, "180", income.Cells[GroupEndBalance].Credit.String())
	assert.True(t, income.Cells[GroupEndBalance].Debit.IsZero())
}

func TestFiveColumnFromFiscalYearStart(t *testing.T) {
	opts := balanceOptions(VariantFiveColumn, date(2023, 1, 1), date(2023, 3, 31))
	v, err := Dialect{}.Enrich(context.Background(), ledgerStore(), model.Company{Name: "RO Test SRL"}, opts)
	require.NoError(t, err)
	data := v.(*Data)

	// Starting at the fiscal year start leaves nothing for the
	// Start of Year group.
	assert.False(t, data.ShowStartOfYear)
	assert.Len(t, data.Groups, 4)

	row := rowByCode(t, data, "4111")
	assert.Equal(t, "30", row.Cells[GroupInitial].Debit.String())
	assert.Equal(t, "150", row.Cells[GroupCurrent].Debit.String())
	assert.Equal(t, "180", row.Cells[GroupTotal].Debit.String())
}

func TestFourColumnFoldsStartOfYear(t *testing.T) {
	opts := balanceOptions(VariantFourColumn, date(2023, 3, 1), date(2023, 3, 31))
	v, err := Dialect{}.Enrich(context.Background(), ledgerStore(), model.Company{Name: "RO Test SRL"}, opts)
	require.NoError(t, err)
	data := v.(*Data)

	assert.False(t, data.ShowStartOfYear)

	// January activity folds into the initial balances.
	row := rowByCode(t, data, "4111")
	assert.Equal(t, "130", row.Cells[GroupInitial].Debit.String())
	assert.Equal(t, "50", row.Cells[GroupCurrent].Debit.String())
	assert.Equal(t, "180", row.Cells[GroupTotal].Debit.String())
	_, ok := row.Cells[GroupStartOfYear]
	assert.False(t, ok)
}

func TestCellBalance(t *testing.T) {
	c := Cell{Debit: dec("70"), Credit: dec("100")}
	assert.Equal(t, "-30", c.Balance().String())
}

func TestRenderSheet(t *testing.T) {
	opts := balanceOptions(VariantFiveColumn, date(2023, 3, 1), date(2023, 3, 31))
	v, err := Dialect{}.Enrich(context.Background(), ledgerStore(), model.Company{Name: "RO Test SRL"}, opts)
	require.NoError(t, err)

	result, err := Dialect{}.Render(v, opts)
	require.NoError(t, err)
	assert.Equal(t, "ro_trial_balance_2023-03-01_2023-03-31.xlsx", result.FileName)

	f, err := excelize.OpenReader(bytes.NewReader(result.Content))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)

	// Two header rows plus one row per touched account.
	require.Len(t, rows, 4)
	assert.Equal(t, "Initial Balance", rows[0][2])
	assert.Equal(t, "End Balance", rows[0][10])
	assert.Equal(t, "Debit", rows[1][2])

	clients := rows[2]
	assert.Equal(t, "4111", clients[0])
	assert.Equal(t, "30.00", clients[2])
	assert.Equal(t, "100.00", clients[4])
	assert.Equal(t, "50.00", clients[6])
	assert.Equal(t, "180.00", clients[8])
	assert.Equal(t, "180.00", clients[10])
	assert.Equal(t, "0.00", clients[11])
}
