// Package export orchestrates the audit-file pipeline: options
// resolution, enrichment against a ledger store, validation, and
// rendering into the regulator's file format. Dialects plug in
// behind the Dialect interface.
package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/auditfile-dev/auditfile/internal/ledger"
	"github.com/auditfile-dev/auditfile/internal/model"
	"github.com/auditfile-dev/auditfile/internal/options"
)

// Dialect is one country-specific export implementation.
type Dialect interface {
	// Name is the registry key, e.g. "at_saft" or "dk_intrastat".
	Name() string

	// PrepareOptions normalizes the raw request for this dialect.
	PrepareOptions(raw options.Raw) options.Options

	// Enrich aggregates and shapes the ledger data. The returned
	// value is dialect-owned and flows unchanged into Validate and
	// Render.
	Enrich(ctx context.Context, store ledger.Store, company model.Company, opts options.Options) (any, error)

	// Validate runs the dialect's semantic checks over enriched data.
	Validate(data any) ErrorMap

	// Render produces the final file from validated data.
	Render(data any, opts options.Options) (Result, error)
}

// Registry holds named dialects.
type Registry struct {
	dialects map[string]Dialect
}

// NewRegistry creates an empty dialect registry.
func NewRegistry() *Registry {
	return &Registry{dialects: make(map[string]Dialect)}
}

// Register adds a dialect. Panics on duplicate name.
func (r *Registry) Register(d Dialect) {
	key := strings.ToLower(d.Name())
	if _, ok := r.dialects[key]; ok {
		panic("duplicate dialect: " + key)
	}
	r.dialects[key] = d
}

// Get returns the dialect for name, or nil.
func (r *Registry) Get(name string) Dialect {
	return r.dialects[strings.ToLower(name)]
}

// Exporter runs the pipeline for one company against one store.
// Exporters hold no mutable state and are safe for concurrent use;
// all scratch data lives in the per-run enriched value.
type Exporter struct {
	registry *Registry
	store    ledger.Store
	company  model.Company
	log      zerolog.Logger
}

// New creates an Exporter.
func New(registry *Registry, store ledger.Store, company model.Company, log zerolog.Logger) *Exporter {
	return &Exporter{registry: registry, store: store, company: company, log: log}
}

// Export runs one full pipeline pass. If any danger finding fires the
// returned error is *ExportFailed carrying the full map and no file
// is produced; warnings ride along on the Result.
func (e *Exporter) Export(ctx context.Context, raw options.Raw) (Result, error) {
	dialect := e.registry.Get(raw.Dialect)
	if dialect == nil {
		return Result{}, fmt.Errorf("unknown dialect %q", raw.Dialect)
	}

	runID := uuid.NewString()
	log := e.log.With().Str("run_id", runID).Str("dialect", dialect.Name()).Logger()

	opts := dialect.PrepareOptions(raw)
	log.Debug().
		Time("from", opts.Date.From).
		Time("to", opts.Date.To).
		Msg("options resolved")

	data, err := dialect.Enrich(ctx, e.store, e.company, opts)
	if err != nil {
		return Result{}, fmt.Errorf("enriching %s: %w", dialect.Name(), err)
	}
	log.Debug().Msg("enrichment done")

	errs := dialect.Validate(data)
	if errs.HasDanger() {
		log.Debug().Strs("codes", errs.Codes()).Msg("blocking validation findings")
		return Result{}, &ExportFailed{Errors: errs}
	}

	result, err := dialect.Render(data, opts)
	if err != nil {
		return Result{}, fmt.Errorf("rendering %s: %w", dialect.Name(), err)
	}
	result.Warnings = errs.Warnings()
	log.Debug().
		Str("file", result.FileName).
		Int("bytes", len(result.Content)).
		Msg("export rendered")
	return result, nil
}
