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

func norwegianStore(taxes []model.Tax) *memory.Store {
	return memory.New(memory.Snapshot{
		Accounts: []model.Account{
			{ID: 1, Code: "1500", Name: "Kundefordringer", Type: model.AccountAssetReceivable},
			{ID: 2, Code: "3000", Name: "Salgsinntekt", Type: model.AccountIncome},
		},
		Partners: []model.Partner{{ID: 1, Name: "Kunde AS", Customer: true,
			Address: model.Address{Street: "Gate 1", City: "Oslo", Zip: "0150", Country: "NO"}}},
		Taxes: taxes,
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

func TestNOTaxCodeFromDescription(t *testing.T) {
	taxes := []model.Tax{
		{ID: 1, Name: "Utgående mva 25%", Description: "3 Utgående merverdiavgift", Rate: dec("25")},
		{ID: 2, Name: "Fritatt", Description: "Fritatt for merverdiavgift"},
	}
	opts := rangeOptions("no_saft", date(2023, 3, 1), date(2023, 3, 31))
	v, err := NO{}.Enrich(context.Background(), norwegianStore(taxes), model.Company{Name: "NO Test AS"}, opts)
	require.NoError(t, err)
	data := v.(*NOData)

	require.Len(t, data.Taxes, 2)
	assert.Equal(t, "3", data.Taxes[0].StandardCode)
	assert.Empty(t, data.Taxes[1].StandardCode)

	errs := NO{}.Validate(data)
	require.True(t, errs.HasDanger())
	e := errs["no_tax_standard_code_missing"]
	assert.Equal(t, export.SeverityDanger, e.Severity)
	assert.Equal(t, "Please update the descriptions of your taxes to include their Norwegian standard tax code (the first number in the description is used).", e.Message)
	require.NotNil(t, e.Action)
	assert.Equal(t, []int{2}, e.Action.IDs)
}

func TestNORender(t *testing.T) {
	taxes := []model.Tax{{ID: 1, Name: "Utgående mva 25%", Description: "3 Utgående merverdiavgift", Rate: dec("25")}}
	opts := rangeOptions("no_saft", date(2023, 3, 1), date(2023, 3, 31))
	company := model.Company{Name: "NO Test AS", VAT: "NO999999999MVA", Currency: "NOK",
		Address: model.Address{Street: "Vei 2", City: "Bergen", Zip: "5003", Country: "NO"}}

	v, err := NO{}.Enrich(context.Background(), norwegianStore(taxes), company, opts)
	require.NoError(t, err)
	result, err := NO{Now: fixedNow}.Render(v, opts)
	require.NoError(t, err)
	assert.Equal(t, "no_saft_2023-03-01_2023-03-31.xml", result.FileName)

	root, err := xmlel.Parse(result.Content)
	require.NoError(t, err)
	assert.Equal(t, "urn:StandardAuditFile-Taxation-Financial:NO", root.Attrs[0].Value)
	assert.Equal(t, "2023-11-02", findOne(t, root, "AuditFileDateCreated").Text)

	// Every Norwegian account reports as a general-ledger account.
	accounts := findAll(root, "Account")
	require.Len(t, accounts, 2)
	for _, a := range accounts {
		assert.Equal(t, "GL", findOne(t, a, "AccountType").Text)
	}
	assert.Equal(t, "3", findOne(t, root, "TaxCode").Text)

	customers := findAll(root, "Customer")
	require.Len(t, customers, 1)
	// The invoice leaves a 500 receivable at period end.
	assert.Equal(t, "500.00", findOne(t, customers[0], "ClosingDebitBalance").Text)
	assert.Equal(t, "0.00", findOne(t, customers[0], "OpeningDebitBalance").Text)
}
