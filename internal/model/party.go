package model

// Address is a postal address shared by companies and partners.
type Address struct {
	Street  string
	City    string
	Zip     string
	Region  string
	Country string // ISO 3166-1 alpha-2
}

// Complete reports whether the address carries the minimum fields the
// SAF-T schemas require.
func (a Address) Complete() bool {
	return a.Street != "" && a.City != "" && a.Zip != "" && a.Country != ""
}

// BankAccount is an IBAN (or domestic number) owned by a company or
// partner.
type BankAccount struct {
	Number string
	BIC    string
}

// AccountingBasis selects cash ('K') or accrual ('P'/'A') accounting,
// as reported in SAF-T headers.
type AccountingBasis string

const (
	BasisCash    AccountingBasis = "K"
	BasisAccrual AccountingBasis = "P"
	BasisInvoice AccountingBasis = "A"
)

// ProfitAssessment is the Austrian profit assessment method.
type ProfitAssessment string

const (
	ProfitPar4Abs1 ProfitAssessment = "par_4_abs_1"
	ProfitPar5     ProfitAssessment = "par_5"
)

// Company is the legal entity an export is produced for. Exactly one
// per export.
type Company struct {
	Name            string
	VAT             string
	RegistryNumber  string
	Currency        string // ISO code of the company currency
	Address         Address
	Phone           string
	Email           string
	BankAccounts    []BankAccount
	FiscalYearStart string // "MM-DD"
	Basis           AccountingBasis

	// Dialect settings.
	ProfitAssessment ProfitAssessment // AT
	OenaceCode       string           // AT
	ContactName      string           // AT: responsible contact
	Siret            string           // FR
	RegionCode       string           // FR: intrastat region
	IntrastatEnabled bool             // RO
}

// Partner is a customer or supplier.
type Partner struct {
	ID             int
	Name           string
	VAT            string
	RegistryNumber string
	Address        Address
	Phone          string
	IsCompany      bool
	Customer       bool
	Supplier       bool
	BankAccounts   []BankAccount
}
