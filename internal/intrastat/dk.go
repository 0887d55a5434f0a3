package intrastat

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/auditfile-dev/auditfile/internal/export"
	"github.com/auditfile-dev/auditfile/internal/ledger"
	"github.com/auditfile-dev/auditfile/internal/model"
	"github.com/auditfile-dev/auditfile/internal/options"
)

// DK is the Danish Intrastat dialect: one XLSX per direction, zipped
// together when both are requested.
type DK struct{}

// DKData is the enriched Danish export.
type DKData struct {
	Flow       Flow
	Arrivals   []Line
	Dispatches []Line
}

// Name implements export.Dialect.
func (DK) Name() string { return "dk_intrastat" }

// PrepareOptions implements export.Dialect.
func (DK) PrepareOptions(raw options.Raw) options.Options {
	raw.Dialect = "dk_intrastat"
	return options.Resolve(raw)
}

// Enrich implements export.Dialect.
func (DK) Enrich(ctx context.Context, store ledger.Store, company model.Company, opts options.Options) (any, error) {
	lines, err := Extract(ctx, store, opts)
	if err != nil {
		return nil, err
	}
	arrivals, dispatches := split(lines)
	return &DKData{Flow: ParseFlow(opts.Variant), Arrivals: arrivals, Dispatches: dispatches}, nil
}

// Validate implements export.Dialect. The Danish sheets accept
// partial data; gaps surface as warnings only.
func (DK) Validate(v any) export.ErrorMap {
	data := v.(*DKData)
	errs := make(export.ErrorMap)
	var missing []int
	seen := make(map[int]bool)
	for _, l := range append(append([]Line{}, data.Arrivals...), data.Dispatches...) {
		if l.CommodityCode == "" && !seen[l.productID] {
			seen[l.productID] = true
			missing = append(missing, l.productID)
		}
	}
	if len(missing) > 0 {
		errs.Add(export.Error{
			Code:     "dk_commodity_code_missing",
			Message:  "Some declared products have no commodity code.",
			Severity: export.SeverityWarning,
			Action:   &export.Action{Text: "Check Products", Model: "product", IDs: missing},
		})
	}
	return errs
}

// Regulator-prescribed column orders. The free-text Reference column
// sits immediately after the value in both directions.
var (
	dkArrivalColumns = []string{
		"CN8 goods code", "Nature of transaction", "Partner country",
		"Net weight", "Supplementary units", "Invoice value", "Reference",
	}
	dkDispatchColumns = []string{
		"CN8 goods code", "Nature of transaction", "Partner country",
		"Net weight", "Supplementary units", "Invoice value", "Reference",
		"Partner VAT No.", "Country of origin",
	}
)

// charPixels is the character width table at the reference font size
// (11). Characters outside the table count as 7 pixels.
var charPixels = map[rune]int{
	' ': 3, '.': 4, ',': 4, '-': 5, '/': 5,
	'i': 3, 'j': 3, 'l': 3, 'f': 4, 't': 4, 'r': 5,
	'I': 4, 'J': 5, 'W': 11, 'M': 11, 'm': 11, 'w': 10,
}

func textPixels(s string) int {
	px := 0
	for _, r := range s {
		if w, ok := charPixels[r]; ok {
			px += w
		} else {
			px += 7
		}
	}
	return px
}

// Render implements export.Dialect.
func (DK) Render(v any, opts options.Options) (export.Result, error) {
	data := v.(*DKData)

	arrivalsFile := export.FileName("dk", "intrastat_arrivals", opts.Date.From, opts.Date.To, export.FileXLSX)
	dispatchFile := export.FileName("dk", "intrastat_dispatches", opts.Date.From, opts.Date.To, export.FileXLSX)

	switch data.Flow {
	case FlowArrivals:
		content, err := dkSheet(dkArrivalColumns, data.Arrivals, false)
		if err != nil {
			return export.Result{}, err
		}
		return export.Result{FileName: arrivalsFile, FileType: export.FileXLSX, Content: content}, nil
	case FlowDispatches:
		content, err := dkSheet(dkDispatchColumns, data.Dispatches, true)
		if err != nil {
			return export.Result{}, err
		}
		return export.Result{FileName: dispatchFile, FileType: export.FileXLSX, Content: content}, nil
	default:
		arrivals, err := dkSheet(dkArrivalColumns, data.Arrivals, false)
		if err != nil {
			return export.Result{}, err
		}
		dispatches, err := dkSheet(dkDispatchColumns, data.Dispatches, true)
		if err != nil {
			return export.Result{}, err
		}
		content, err := export.Zip([]export.ZipEntry{
			{Name: arrivalsFile, Content: arrivals},
			{Name: dispatchFile, Content: dispatches},
		})
		if err != nil {
			return export.Result{}, err
		}
		return export.Result{
			FileName: export.FileName("dk", "intrastat", opts.Date.From, opts.Date.To, export.FileZip),
			FileType: export.FileZip,
			Content:  content,
		}, nil
	}
}

func dkSheet(columns []string, lines []Line, dispatch bool) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	widths := make([]int, len(columns))
	for i, h := range columns {
		widths[i] = textPixels(h)
	}
	if err := f.SetSheetRow(sheet, "A1", &columns); err != nil {
		return nil, fmt.Errorf("writing header row: %w", err)
	}

	for i, l := range lines {
		row := []any{
			l.CommodityCode,
			l.TransactionCode,
			euCountryCode(l.CountryCode),
			l.Weight.String(),
			l.Units.String(),
			l.Value.StringFixed(2),
			"", // Reference, left to the declarant
		}
		if dispatch {
			row = append(row, l.PartnerVAT, euCountryCode(l.OriginCountry))
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("writing row %d: %w", i+2, err)
		}
		for c, vAny := range row {
			if s, ok := vAny.(string); ok {
				if px := textPixels(s); px > widths[c] {
					widths[c] = px
				}
			}
		}
	}

	for i, px := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("resolving column %d: %w", i+1, err)
		}
		// Pixel widths translate into Excel character units against
		// the 7px reference digit at font size 11.
		if err := f.SetColWidth(sheet, col, col, float64(px+5)/7.0); err != nil {
			return nil, fmt.Errorf("setting column width: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

var _ export.Dialect = DK{}
