package intrastat

import (
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditfile-dev/auditfile/internal/export"
	"github.com/auditfile-dev/auditfile/internal/ledger/memory"
	"github.com/auditfile-dev/auditfile/internal/model"
	"github.com/auditfile-dev/auditfile/internal/options"
)

func frenchCompany() model.Company {
	return model.Company{
		Name: "FR Test SAS", VAT: "FR23334175221", Siret: "33417522100014",
		RegionCode: "11", Currency: "EUR",
	}
}

func TestFRStatisticalSurvey(t *testing.T) {
	opts := FR{}.PrepareOptions(options.Raw{
		Dialect:  "fr_intrastat",
		DateFrom: date(2023, 3, 1),
		DateTo:   date(2023, 3, 31),
	})
	assert.Equal(t, FRStatisticalSurvey, opts.Variant)

	snap := tradeSnapshot()
	snap.Products[0].OriginCountry = "IT"
	v, err := FR{}.Enrich(context.Background(), memory.New(snap), frenchCompany(), opts)
	require.NoError(t, err)
	require.Empty(t, FR{}.Validate(v))

	result, err := FR{}.Render(v, opts)
	require.NoError(t, err)
	assert.Equal(t, "fr_emebi_2023-03-01_2023-03-31.csv", result.FileName)
	assert.Equal(t, export.FileCSV, result.FileType)

	r := csv.NewReader(strings.NewReader(string(result.Content)))
	r.Comma = ';'
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "flow", rows[0][0])

	arrival := rows[1]
	assert.Equal(t, "arrival", arrival[0])
	assert.Equal(t, "94017900", arrival[1])
	assert.Equal(t, "DE", arrival[2])
	assert.Equal(t, "11", arrival[4]) // company region

	dispatch := rows[2]
	assert.Equal(t, "dispatch", dispatch[0])
	assert.Equal(t, "EL", dispatch[2])
	assert.Equal(t, "VN", dispatch[8])
}

func TestFRVATSummaryStatement(t *testing.T) {
	opts := marchOptions("fr_intrastat", FRVATSummaryStatement)
	v, err := FR{}.Enrich(context.Background(), memory.New(tradeSnapshot()), frenchCompany(), opts)
	require.NoError(t, err)

	result, err := FR{}.Render(v, opts)
	require.NoError(t, err)
	assert.Equal(t, "fr_vat_summary_2023-03-01_2023-03-31.csv", result.FileName)

	r := csv.NewReader(strings.NewReader(string(result.Content)))
	r.Comma = ';'
	rows, err := r.ReadAll()
	require.NoError(t, err)

	// Arrivals stay out of the VAT summary.
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"partner_vat", "value"}, rows[0])
	assert.Equal(t, []string{"EL123456789", "14956.00"}, rows[1])
}

func TestFRExportBlocksOnIncompleteData(t *testing.T) {
	snap := tradeSnapshot()
	snap.Products[0].CommodityCode = ""
	snap.Products[0].OriginCountry = ""
	snap.Moves[0].Lines[1].IntrastatTransactionCode = ""
	snap.Moves[0].Lines[1].IntrastatTransportCode = ""
	snap.Moves[1].Lines[1].IntrastatOriginCountry = ""
	snap.Moves[1].Lines[1].IntrastatTransactionCode = ""
	snap.Moves[1].Lines[1].IntrastatTransportCode = ""
	snap.Products[2].OriginCountry = ""
	// Second line on the codeless product; the action still lists it once.
	snap.Moves[0].Lines = append(snap.Moves[0].Lines, model.MoveLine{
		ID: 13, AccountID: 2, Debit: dec("50"), ProductID: 1, UoMID: 1,
		Quantity: dec("1"), PriceUnit: dec("50"), Weight: dec("1")})

	company := frenchCompany()
	company.Siret = ""
	company.RegionCode = ""

	registry := export.NewRegistry()
	registry.Register(FR{})
	exporter := export.New(registry, memory.New(snap), company, zerolog.Nop())

	_, err := exporter.Export(context.Background(), options.Raw{
		Dialect:  "fr_intrastat",
		DateFrom: date(2023, 3, 1),
		DateTo:   date(2023, 3, 31),
	})
	require.Error(t, err)

	var failed *export.ExportFailed
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, []string{
		"company_vat_or_siret_missing",
		"move_lines_country_of_origin_missing",
		"move_lines_transaction_code_missing",
		"move_lines_transport_code_missing",
		"products_commodity_code_missing",
		"settings_region_id_missing",
	}, failed.Errors.Codes())
	for code, e := range failed.Errors {
		require.NotNil(t, e.Action, "finding %s", code)
	}
	assert.Equal(t, []int{1}, failed.Errors["products_commodity_code_missing"].Action.IDs)
}
