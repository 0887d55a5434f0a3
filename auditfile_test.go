package auditfile

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditfile-dev/auditfile/internal/export"
	"github.com/auditfile-dev/auditfile/internal/intrastat"
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

func testStore() *memory.Store {
	return memory.New(memory.Snapshot{
		Accounts: []model.Account{
			{ID: 1, Code: "1500", Name: "Receivables", Type: model.AccountAssetReceivable},
			{ID: 2, Code: "3000", Name: "Sales", Type: model.AccountIncome},
		},
		Partners: []model.Partner{{ID: 1, Name: "Kunde AS", Customer: true,
			Address: model.Address{Street: "Gate 1", City: "Oslo", Zip: "0150", Country: "NO"}}},
		Taxes: []model.Tax{{ID: 1, Name: "Mva 25%", Description: "3 utgående", Rate: dec("25")}},
		Moves: []model.Move{{
			ID: 1, Name: "F/2023/03/0001", Date: date(2023, 3, 15), Type: model.MoveOutInvoice,
			State: model.StatePosted, PartnerID: 1,
			Lines: []model.MoveLine{
				{ID: 11, AccountID: 1, Debit: dec("500")},
				{ID: 12, AccountID: 2, Credit: dec("500")},
			},
		}},
	})
}

func marchRaw() options.Raw {
	return options.Raw{DateFrom: date(2023, 3, 1), DateTo: date(2023, 3, 31)}
}

func TestDefaultRegistryNames(t *testing.T) {
	r := DefaultRegistry()
	for _, name := range []string{
		"at_saft", "lt_saft", "lu_faia", "no_saft", "ro_saft",
		"de_intrastat", "dk_intrastat", "fr_intrastat",
		"ro_trial_balance", "dk_ec_sales",
	} {
		assert.NotNil(t, r.Get(name), "dialect %s", name)
	}
}

func TestExportSAFT(t *testing.T) {
	e := New(testStore(), model.Company{Name: "NO Test AS", Currency: "NOK"}, zerolog.Nop())

	result, err := e.ExportSAFT(context.Background(), marchRaw(), "no")
	require.NoError(t, err)
	assert.Equal(t, "no_saft_2023-03-01_2023-03-31.xml", result.FileName)
	assert.Equal(t, export.FileXML, result.FileType)
}

func TestExportSAFTUnknownDialect(t *testing.T) {
	e := New(testStore(), model.Company{Name: "Test"}, zerolog.Nop())

	_, err := e.ExportSAFT(context.Background(), marchRaw(), "pt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown SAF-T dialect "pt"`)
}

func TestExportTrialBalanceVariants(t *testing.T) {
	e := New(testStore(), model.Company{Name: "RO Test SRL"}, zerolog.Nop())

	result, err := e.ExportTrialBalance(context.Background(), marchRaw(), "")
	require.NoError(t, err)
	assert.Equal(t, "ro_trial_balance_2023-03-01_2023-03-31.xlsx", result.FileName)

	_, err = e.ExportTrialBalance(context.Background(), marchRaw(), "ro_6col")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown trial balance variant")
}

func TestExportIntrastatFlowSelection(t *testing.T) {
	e := New(testStore(), model.Company{Name: "DK Test ApS"}, zerolog.Nop())

	result, err := e.ExportIntrastat(context.Background(), marchRaw(), "dk", intrastat.FlowArrivals)
	require.NoError(t, err)
	assert.Equal(t, "dk_intrastat_arrivals_2023-03-01_2023-03-31.xlsx", result.FileName)

	_, err = e.ExportIntrastat(context.Background(), marchRaw(), "se", intrastat.FlowBoth)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown intrastat dialect "se"`)
}

func TestExportECSales(t *testing.T) {
	e := New(testStore(), model.Company{Name: "DK Test ApS",
		Address: model.Address{Country: "DK"}}, zerolog.Nop())

	result, err := e.ExportECSales(context.Background(), marchRaw())
	require.NoError(t, err)
	assert.Equal(t, "dk_ec_sales_2023-03-01_2023-03-31.csv", result.FileName)
	assert.Equal(t, export.FileCSV, result.FileType)
}

func TestExportFailureCarriesFindings(t *testing.T) {
	// The French declaration blocks without company settings.
	e := New(testStore(), model.Company{Name: "FR Test SAS"}, zerolog.Nop())

	_, err := e.ExportIntrastat(context.Background(), marchRaw(), "fr", intrastat.FlowBoth)
	require.Error(t, err)

	var failed *export.ExportFailed
	require.ErrorAs(t, err, &failed)
	assert.Contains(t, failed.Errors.Codes(), "company_vat_or_siret_missing")
	assert.Contains(t, failed.Errors.Codes(), "settings_region_id_missing")
}
