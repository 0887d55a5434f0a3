package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/auditfile-dev/auditfile/internal/model"
)

// Config represents the top-level auditfile.yaml configuration.
type Config struct {
	Company Company           `yaml:"company"`
	Data    DataConfig        `yaml:"data"`
	Rates   map[string]string `yaml:"rates,omitempty"` // currency code -> rate to company currency
}

// Company identifies the exporting entity and its dialect settings.
type Company struct {
	Name            string        `yaml:"name"`
	VAT             string        `yaml:"vat"`
	RegistryNumber  string        `yaml:"registry_number"`
	Currency        string        `yaml:"currency"`
	Phone           string        `yaml:"phone,omitempty"`
	Email           string        `yaml:"email,omitempty"`
	Address         Address       `yaml:"address"`
	BankAccounts    []BankAccount `yaml:"bank_accounts,omitempty"`
	FiscalYearStart string        `yaml:"fiscal_year_start"` // "MM-DD" format, e.g. "01-01"
	AccountingBasis string        `yaml:"accounting_basis"`  // K, P or A

	// Dialect-specific settings, used only by the matching exports.
	ProfitAssessment string `yaml:"profit_assessment,omitempty"` // AT
	OenaceCode       string `yaml:"oenace_code,omitempty"`       // AT
	ContactName      string `yaml:"contact_name,omitempty"`      // AT
	Siret            string `yaml:"siret,omitempty"`             // FR
	RegionCode       string `yaml:"region_code,omitempty"`       // FR
	IntrastatEnabled bool   `yaml:"intrastat_enabled,omitempty"` // RO
}

// Address is the company's registered address.
type Address struct {
	Street  string `yaml:"street"`
	City    string `yaml:"city"`
	Zip     string `yaml:"zip"`
	Region  string `yaml:"region,omitempty"`
	Country string `yaml:"country"` // ISO 3166-1 alpha-2
}

// BankAccount is one of the company's bank accounts.
type BankAccount struct {
	Number string `yaml:"number"`
	BIC    string `yaml:"bic,omitempty"`
}

// DataConfig selects where ledger data comes from. Exactly one source
// is active: a CSV snapshot directory, or Postgres when DSNEnv names
// an environment variable holding a connection string.
type DataConfig struct {
	CSVDir    string `yaml:"csv_dir,omitempty"`
	DSNEnv    string `yaml:"dsn_env,omitempty"`
	CompanyID int    `yaml:"company_id,omitempty"`
}

// Load reads an auditfile.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Data.CSVDir != "" && cfg.Data.DSNEnv != "" {
		return nil, fmt.Errorf("config selects both csv_dir and dsn_env")
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default(companyName, country string) *Config {
	return &Config{
		Company: Company{
			Name:            companyName,
			Currency:        "EUR",
			Address:         Address{Country: country},
			FiscalYearStart: "01-01",
			AccountingBasis: string(model.BasisAccrual),
		},
		Data: DataConfig{CSVDir: "data"},
	}
}

// ModelCompany converts the configured company into the model type the
// export pipeline consumes.
func (c *Config) ModelCompany() model.Company {
	co := model.Company{
		Name:           c.Company.Name,
		VAT:            c.Company.VAT,
		RegistryNumber: c.Company.RegistryNumber,
		Currency:       c.Company.Currency,
		Phone:          c.Company.Phone,
		Email:          c.Company.Email,
		Address: model.Address{
			Street:  c.Company.Address.Street,
			City:    c.Company.Address.City,
			Zip:     c.Company.Address.Zip,
			Region:  c.Company.Address.Region,
			Country: c.Company.Address.Country,
		},
		FiscalYearStart:  c.Company.FiscalYearStart,
		Basis:            model.AccountingBasis(c.Company.AccountingBasis),
		ProfitAssessment: model.ProfitAssessment(c.Company.ProfitAssessment),
		OenaceCode:       c.Company.OenaceCode,
		ContactName:      c.Company.ContactName,
		Siret:            c.Company.Siret,
		RegionCode:       c.Company.RegionCode,
		IntrastatEnabled: c.Company.IntrastatEnabled,
	}
	for _, b := range c.Company.BankAccounts {
		co.BankAccounts = append(co.BankAccounts, model.BankAccount{Number: b.Number, BIC: b.BIC})
	}
	return co
}
