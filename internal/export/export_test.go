package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditfile-dev/auditfile/internal/ledger"
	"github.com/auditfile-dev/auditfile/internal/model"
	"github.com/auditfile-dev/auditfile/internal/options"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fakeDialect exercises the pipeline without a real store.
type fakeDialect struct {
	name     string
	findings []Error
}

func (f fakeDialect) Name() string { return f.name }

func (f fakeDialect) PrepareOptions(raw options.Raw) options.Options {
	raw.Dialect = f.name
	return options.Resolve(raw)
}

func (f fakeDialect) Enrich(ctx context.Context, store ledger.Store, company model.Company, opts options.Options) (any, error) {
	return f.findings, nil
}

func (f fakeDialect) Validate(data any) ErrorMap {
	errs := make(ErrorMap)
	for _, e := range data.([]Error) {
		errs.Add(e)
	}
	return errs
}

func (f fakeDialect) Render(data any, opts options.Options) (Result, error) {
	return Result{
		FileName: FileName("fake", "report", opts.Date.From, opts.Date.To, FileCSV),
		FileType: FileCSV,
		Content:  []byte("ok"),
	}, nil
}

func newExporter(d Dialect) *Exporter {
	r := NewRegistry()
	r.Register(d)
	return New(r, nil, model.Company{Name: "Test Co"}, zerolog.Nop())
}

func TestRegistryDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeDialect{name: "dup"})
	assert.Panics(t, func() {
		r.Register(fakeDialect{name: "DUP"})
	})
}

func TestRegistryGetCaseInsensitive(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeDialect{name: "at_saft"})
	assert.NotNil(t, r.Get("AT_SAFT"))
	assert.Nil(t, r.Get("nope"))
}

func TestExportUnknownDialect(t *testing.T) {
	e := newExporter(fakeDialect{name: "known"})
	_, err := e.Export(context.Background(), options.Raw{Dialect: "unknown"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dialect")
}

func TestExportSuccessCarriesWarnings(t *testing.T) {
	e := newExporter(fakeDialect{
		name:     "warned",
		findings: []Error{{Code: "soft", Severity: SeverityWarning}},
	})

	result, err := e.Export(context.Background(), options.Raw{
		Dialect:  "warned",
		DateFrom: date(2023, 3, 1),
		DateTo:   date(2023, 3, 31),
	})
	require.NoError(t, err)
	assert.Equal(t, "fake_report_2023-03-01_2023-03-31.csv", result.FileName)
	assert.Equal(t, []byte("ok"), result.Content)
	require.Len(t, result.Warnings, 1)
	_, ok := result.Warnings["soft"]
	assert.True(t, ok)
}

func TestExportDangerBlocksFile(t *testing.T) {
	e := newExporter(fakeDialect{
		name: "blocked",
		findings: []Error{
			{Code: "hard", Severity: SeverityDanger},
			{Code: "soft", Severity: SeverityWarning},
		},
	})

	result, err := e.Export(context.Background(), options.Raw{
		Dialect:  "blocked",
		DateFrom: date(2023, 3, 1),
		DateTo:   date(2023, 3, 31),
	})
	require.Error(t, err)
	assert.Empty(t, result.Content)

	var failed *ExportFailed
	require.True(t, errors.As(err, &failed))
	// The failure carries the full map, warnings included.
	assert.Equal(t, []string{"hard", "soft"}, failed.Errors.Codes())
}

func TestZip(t *testing.T) {
	content, err := Zip([]ZipEntry{
		{Name: "a.xlsx", Content: []byte("aaa")},
		{Name: "b.xlsx", Content: []byte("bbb")},
	})
	require.NoError(t, err)

	r, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	require.NoError(t, err)
	require.Len(t, r.File, 2)
	assert.Equal(t, "a.xlsx", r.File[0].Name)
	assert.Equal(t, "b.xlsx", r.File[1].Name)
}
