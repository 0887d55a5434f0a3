// Package auditfile exports accounting data into regulator-prescribed
// audit files: SAF-T (AT, LU, NO, LT, RO), Intrastat declarations
// (DE, DK, FR), the Romanian trial balance and the Danish EC sales
// list. The package is a library; callers supply a ledger.Store and a
// company and receive the rendered bytes.
package auditfile

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/auditfile-dev/auditfile/internal/ecsales"
	"github.com/auditfile-dev/auditfile/internal/export"
	"github.com/auditfile-dev/auditfile/internal/intrastat"
	"github.com/auditfile-dev/auditfile/internal/ledger"
	"github.com/auditfile-dev/auditfile/internal/model"
	"github.com/auditfile-dev/auditfile/internal/options"
	"github.com/auditfile-dev/auditfile/internal/saft"
	"github.com/auditfile-dev/auditfile/internal/trialbalance"
)

// DefaultRegistry returns a registry with every built-in dialect.
func DefaultRegistry() *export.Registry {
	r := export.NewRegistry()
	r.Register(saft.AT{})
	r.Register(saft.LT{})
	r.Register(saft.LU{})
	r.Register(saft.NO{})
	r.Register(saft.RO{})
	r.Register(intrastat.DE{})
	r.Register(intrastat.DK{})
	r.Register(intrastat.FR{})
	r.Register(trialbalance.Dialect{})
	r.Register(ecsales.Dialect{})
	return r
}

// Exporter runs exports for one company against one store, with every
// built-in dialect registered.
type Exporter struct {
	inner *export.Exporter
}

// New creates an Exporter.
func New(store ledger.Store, company model.Company, log zerolog.Logger) *Exporter {
	return &Exporter{inner: export.New(DefaultRegistry(), store, company, log)}
}

// Export runs the raw request as-is; raw.Dialect selects the dialect
// by registry name.
func (e *Exporter) Export(ctx context.Context, raw options.Raw) (export.Result, error) {
	return e.inner.Export(ctx, raw)
}

// saftDialects maps caller-facing SAF-T names to registry keys.
var saftDialects = map[string]string{
	"at":         "at_saft",
	"lu":         "lu_faia",
	"no":         "no_saft",
	"lt":         "lt_saft",
	"ro_monthly": "ro_saft",
}

// ExportSAFT renders the SAF-T file for one of at, lu, no, lt or
// ro_monthly.
func (e *Exporter) ExportSAFT(ctx context.Context, raw options.Raw, dialect string) (export.Result, error) {
	key, ok := saftDialects[dialect]
	if !ok {
		return export.Result{}, fmt.Errorf("unknown SAF-T dialect %q", dialect)
	}
	raw.Dialect = key
	return e.inner.Export(ctx, raw)
}

// ExportTrialBalance renders the Romanian trial balance. Variant is
// ro_4col or ro_5col; empty defaults to the five-column layout.
func (e *Exporter) ExportTrialBalance(ctx context.Context, raw options.Raw, variant string) (export.Result, error) {
	switch variant {
	case "", trialbalance.VariantFourColumn, trialbalance.VariantFiveColumn:
	default:
		return export.Result{}, fmt.Errorf("unknown trial balance variant %q", variant)
	}
	raw.Dialect = "ro_trial_balance"
	raw.Variant = variant
	return e.inner.Export(ctx, raw)
}

// ExportIntrastat renders the Intrastat declaration for de, dk or fr.
// Flow is arrivals, dispatches or both; the French declaration always
// covers both directions and keeps raw.Variant as its report type.
func (e *Exporter) ExportIntrastat(ctx context.Context, raw options.Raw, dialect string, flow intrastat.Flow) (export.Result, error) {
	switch dialect {
	case "de", "dk":
		raw.Variant = string(flow)
	case "fr":
	default:
		return export.Result{}, fmt.Errorf("unknown intrastat dialect %q", dialect)
	}
	raw.Dialect = dialect + "_intrastat"
	return e.inner.Export(ctx, raw)
}

// ExportECSales renders the Danish EC sales list.
func (e *Exporter) ExportECSales(ctx context.Context, raw options.Raw) (export.Result, error) {
	raw.Dialect = "dk_ec_sales"
	return e.inner.Export(ctx, raw)
}
