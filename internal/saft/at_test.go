package saft

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditfile-dev/auditfile/internal/export"
	"github.com/auditfile-dev/auditfile/internal/ledger/memory"
	"github.com/auditfile-dev/auditfile/internal/model"
	"github.com/auditfile-dev/auditfile/internal/xmlel"
)

func austrianCompany() model.Company {
	return model.Company{
		Name:             "AT Test GmbH",
		VAT:              "ATU12345675",
		Currency:         "EUR",
		Phone:            "+43 1 555 0000",
		ContactName:      "Eva Gruber",
		OenaceCode:       "62.01-0",
		ProfitAssessment: model.ProfitPar5,
		Address:          model.Address{Street: "Ring 1", City: "Vienna", Zip: "1010", Country: "AT"},
	}
}

func austrianStore() *memory.Store {
	return memory.New(memory.Snapshot{
		Accounts: []model.Account{
			{ID: 1, Code: "2000", Name: "Forderungen", Type: model.AccountAssetReceivable,
				Tags: []model.AccountTag{{ID: 1, Name: "Umlaufvermögen"}, {ID: 2, Name: "1400"}}},
			{ID: 2, Code: "4000", Name: "Erlöse", Type: model.AccountIncome,
				Tags: []model.AccountTag{{ID: 3, Name: "9040"}}},
		},
		Partners: []model.Partner{{
			ID: 1, Name: "Kunde Eins", Customer: true,
			Address: model.Address{Street: "Gasse 2", City: "Graz", Zip: "8010", Country: "AT"},
		}},
		Taxes: []model.Tax{
			{ID: 1, Name: "USt 20%", Description: "022 Normalsteuersatz", Rate: dec("20"),
				Type: model.TaxSale, AmountType: model.AmountPercent},
			{ID: 2, Name: "VSt 20%", StandardCode: "060", Rate: dec("20"),
				Type: model.TaxPurchase, AmountType: model.AmountPercent},
		},
		Moves: []model.Move{{
			ID: 1, Name: "RE/2023/03/0001", Date: date(2023, 3, 10), Type: model.MoveOutInvoice,
			State: model.StatePosted, PartnerID: 1,
			Lines: []model.MoveLine{
				{ID: 11, AccountID: 1, Debit: dec("1200")},
				{ID: 12, AccountID: 2, Credit: dec("1200")},
			},
		}},
	})
}

func TestATStandardCodeFromNumericTag(t *testing.T) {
	opts := rangeOptions("at_saft", date(2023, 3, 1), date(2023, 3, 31))
	v, err := AT{}.Enrich(context.Background(), austrianStore(), austrianCompany(), opts)
	require.NoError(t, err)
	data := v.(*ATData)

	require.Len(t, data.Accounts, 2)
	// The first all-numeric tag wins; word tags are skipped.
	assert.Equal(t, "1400", data.Accounts[0].StandardCode)
	assert.Equal(t, "TT", data.Accounts[0].LetterCode)
	assert.Equal(t, "9040", data.Accounts[1].StandardCode)

	errs := AT{}.Validate(data)
	assert.False(t, errs.HasDanger(), "codes: %v", errs.Codes())
}

func TestATStandardCodeFromLabelledTag(t *testing.T) {
	store := memory.New(memory.Snapshot{
		Accounts: []model.Account{
			{ID: 1, Code: "2000", Name: "Forderungen", Type: model.AccountAssetReceivable,
				Tags: []model.AccountTag{{ID: 1, Name: "1400 Umlaufvermögen"}}},
			{ID: 2, Code: "9000", Name: "Kapital", Type: model.AccountEquity,
				Tags: []model.AccountTag{{ID: 2, Name: "Rücklagen 2023"}}},
		},
	})
	opts := rangeOptions("at_saft", date(2023, 3, 1), date(2023, 3, 31))
	v, err := AT{}.Enrich(context.Background(), store, austrianCompany(), opts)
	require.NoError(t, err)
	data := v.(*ATData)

	require.Len(t, data.Accounts, 2)
	// A tag labelled after its leading number still maps; a number
	// buried mid-name does not.
	assert.Equal(t, "1400", data.Accounts[0].StandardCode)
	assert.Equal(t, "", data.Accounts[1].StandardCode)

	errs := AT{}.Validate(data)
	require.True(t, errs.HasDanger())
	e := errs["at_account_standard_code_missing"]
	require.NotNil(t, e.Action)
	assert.Equal(t, []int{2}, e.Action.IDs)
}

func TestATAccountWithoutNumericTagBlocks(t *testing.T) {
	data := &ATData{
		Company: austrianCompany(),
		Accounts: []ATAccount{
			{Account: model.Account{ID: 7, Code: "9999", Name: "Sonstige"}},
		},
		missingStdAccounts: []int{7},
	}
	errs := AT{}.Validate(data)

	require.True(t, errs.HasDanger())
	e := errs["at_account_standard_code_missing"]
	assert.Equal(t, export.SeverityDanger, e.Severity)
	require.NotNil(t, e.Action)
	assert.Equal(t, []int{7}, e.Action.IDs)
}

func TestATTaxValidation(t *testing.T) {
	data := &ATData{
		Company:           austrianCompany(),
		nonPercentTaxes:   []int{3},
		taxesWithoutDigit: []int{4},
	}
	errs := AT{}.Validate(data)

	assert.True(t, errs.HasDanger())
	assert.Contains(t, errs.Codes(), "at_tax_amount_type_invalid")
	assert.Equal(t, export.SeverityWarning, errs["at_tax_standard_code_missing"].Severity)
}

func TestATCompanySettingsRequired(t *testing.T) {
	errs := AT{}.Validate(&ATData{Company: model.Company{}})

	codes := errs.Codes()
	assert.Contains(t, codes, "at_profit_assessment_missing")
	assert.Contains(t, codes, "at_oenace_missing")
	assert.Contains(t, codes, "at_company_contact_missing")
}

func TestATRender(t *testing.T) {
	opts := rangeOptions("at_saft", date(2023, 3, 1), date(2023, 3, 31))
	v, err := AT{}.Enrich(context.Background(), austrianStore(), austrianCompany(), opts)
	require.NoError(t, err)

	result, err := AT{Now: fixedNow}.Render(v, opts)
	require.NoError(t, err)
	assert.Equal(t, "at_saft_2023-03-01_2023-03-31.xml", result.FileName)

	root, err := xmlel.Parse(result.Content)
	require.NoError(t, err)
	assert.Equal(t, "urn:OECD:StandardAuditFile-Taxation/2.00_AT", root.Attrs[0].Value)
	assert.Equal(t, "par_5", findOne(t, root, "ProfitAssessmentMethod").Text)
	assert.Equal(t, "62.01-0", findOne(t, root, "OenaceCode").Text)
	assert.Equal(t, "Eva Gruber", findOne(t, root, "ContactPerson").Text)

	accounts := findAll(root, "Account")
	require.Len(t, accounts, 2)
	assert.Equal(t, "1400", findOne(t, accounts[0], "StandardAccountID").Text)
	assert.Equal(t, "TT", findOne(t, accounts[0], "AccountType").Text)

	// sale and purchase taxes render as separate table entries.
	entries := findAll(root, "TaxTableEntry")
	require.Len(t, entries, 2)
	assert.Equal(t, "sale", findOne(t, entries[0], "TaxType").Text)
	details := findOne(t, entries[0], "TaxCodeDetails")
	assert.Equal(t, "022", findOne(t, details, "TaxCode").Text)

	customers := findAll(root, "Customer")
	require.Len(t, customers, 1)
	assert.Equal(t, "Kunde Eins", findOne(t, customers[0], "Name").Text)
}
