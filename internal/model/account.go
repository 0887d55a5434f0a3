package model

// AccountType classifies accounts in the chart of accounts.
type AccountType string

const (
	AccountAssetReceivable     AccountType = "asset_receivable"
	AccountAssetCash           AccountType = "asset_cash"
	AccountAssetCurrent        AccountType = "asset_current"
	AccountAssetNonCurrent     AccountType = "asset_non_current"
	AccountAssetFixed          AccountType = "asset_fixed"
	AccountAssetPrepayments    AccountType = "asset_prepayments"
	AccountLiabilityPayable    AccountType = "liability_payable"
	AccountLiabilityCurrent    AccountType = "liability_current"
	AccountLiabilityNonCurr    AccountType = "liability_non_current"
	AccountLiabilityCreditCard AccountType = "liability_credit_card"
	AccountEquity              AccountType = "equity"
	AccountEquityUnaffected    AccountType = "equity_unaffected"
	AccountIncome              AccountType = "income"
	AccountIncomeOther         AccountType = "income_other"
	AccountExpense             AccountType = "expense"
	AccountExpenseDepreciation AccountType = "expense_depreciation"
	AccountExpenseDirectCost   AccountType = "expense_direct_cost"
	AccountOffBalance          AccountType = "off_balance"
)

// IsReceivablePayable reports whether the type is a partner-facing
// receivable or payable account.
func (t AccountType) IsReceivablePayable() bool {
	return t == AccountAssetReceivable || t == AccountLiabilityPayable
}

// Account represents a chart-of-accounts node.
type Account struct {
	ID   int
	Code string
	Name string
	Type AccountType
	Tags []AccountTag
}

// AccountTag is a classification marker on an account. Numeric tags
// drive the Austrian standard-code mapping.
type AccountTag struct {
	ID   int
	Name string
}
