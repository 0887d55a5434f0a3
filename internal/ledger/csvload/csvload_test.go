package csvload

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditfile-dev/auditfile/internal/model"
	"github.com/auditfile-dev/auditfile/internal/options"
)

func writeSnapshot(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

const accountsCSV = `id,code,name,account_type,tags
1,4111,Clients,asset_receivable,
2,707,Sales,income,10:755
`

const movesCSV = `move_id,move_name,date,journal_id,move_type,state,currency,move_partner_id,line_id,account_id,partner_id,debit,credit,amount_currency,rate,tax_line_id,tax_tags,tax_tag_invert,product_id,uom_id,quantity,price_unit,intrastat_transaction_code,intrastat_transport_code,intrastat_origin_country,weight
1,INV/2023/001,2023-03-10,1,out_invoice,posted,,7,11,1,,100,,,,,,,,,,,,,,
1,INV/2023/001,2023-03-10,1,out_invoice,posted,,7,12,2,,,100,,,,,,1,2,5,20,,,IT,3.5
`

func TestLoadSnapshot(t *testing.T) {
	dir := writeSnapshot(t, map[string]string{
		"accounts.csv": accountsCSV,
		"moves.csv":    movesCSV,
		"partners.csv": "id,name,vat,registry_number,street,city,zip,country,phone,is_company,customer,supplier,bank_accounts\n" +
			"7,Acme,RO123,123,Main St,Cluj,4000,RO,+40 1 234,true,true,false,RO49AAAA1B31007593840000\n",
		"products.csv": "id,default_code,name,category,uom_id,commodity_code,origin_country,kind\n" +
			"1,PA,Consulting,services,2,,,service\n",
		"uoms.csv": "id,name,category,factor,is_reference\n" +
			"2,Unit,unit,1,true\n",
	})

	store, err := Load(dir, "01-01", map[string]decimal.Decimal{"EUR": decimal.NewFromInt(5)})
	require.NoError(t, err)

	ctx := context.Background()
	accounts, err := store.Accounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	require.Len(t, accounts[1].Tags, 1)
	assert.Equal(t, model.AccountTag{ID: 10, Name: "755"}, accounts[1].Tags[0])

	partners, err := store.Partners(ctx, nil)
	require.NoError(t, err)
	require.Len(t, partners, 1)
	assert.Equal(t, "RO123", partners[0].VAT)
	require.Len(t, partners[0].BankAccounts, 1)

	opts := options.Resolve(options.Raw{
		DateFrom: time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC),
		DateTo:   time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC),
	})
	moves, err := store.Moves(ctx, opts)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	m := moves[0]
	assert.Equal(t, "INV/2023/001", m.Name)
	assert.Equal(t, 7, m.PartnerID)
	require.Len(t, m.Lines, 2)
	// Line balances derive from debit and credit.
	assert.True(t, m.Lines[0].Balance.Equal(decimal.NewFromInt(100)))
	assert.True(t, m.Lines[1].Balance.Equal(decimal.NewFromInt(-100)))
	assert.Equal(t, "IT", m.Lines[1].IntrastatOriginCountry)
	assert.True(t, m.Lines[1].Weight.Equal(decimal.NewFromFloat(3.5)))

	rates, err := store.CurrencyRates(ctx, opts.Date.To)
	require.NoError(t, err)
	assert.True(t, rates["EUR"].Equal(decimal.NewFromInt(5)))
}

func TestLoadMissingRequiredFile(t *testing.T) {
	dir := writeSnapshot(t, map[string]string{"accounts.csv": accountsCSV})
	_, err := Load(dir, "01-01", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "moves.csv")
}

func TestLoadRejectsShortRows(t *testing.T) {
	dir := writeSnapshot(t, map[string]string{
		"accounts.csv": "id,code,name,account_type,tags\n1,4111,Clients\n",
		"moves.csv":    movesCSV,
	})
	_, err := Load(dir, "01-01", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accounts.csv")
}

func TestLoadOptionalFilesMayBeAbsent(t *testing.T) {
	dir := writeSnapshot(t, map[string]string{
		"accounts.csv": accountsCSV,
		"moves.csv":    movesCSV,
	})
	store, err := Load(dir, "01-01", nil)
	require.NoError(t, err)

	partners, err := store.Partners(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, partners)
}
