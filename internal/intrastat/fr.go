package intrastat

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"github.com/auditfile-dev/auditfile/internal/export"
	"github.com/auditfile-dev/auditfile/internal/ledger"
	"github.com/auditfile-dev/auditfile/internal/model"
	"github.com/auditfile-dev/auditfile/internal/options"
)

// FR is the French Intrastat dialect. Two export types are
// independently selectable through the options variant: the EMEBI
// statistical survey and the VAT summary statement.
type FR struct{}

// FR export types.
const (
	FRStatisticalSurvey   = "statistical_survey"
	FRVATSummaryStatement = "vat_summary_statement"
)

// FRData is the enriched French export.
type FRData struct {
	Company    model.Company
	ExportType string
	Flow       Flow
	Lines      []Line

	linesNoTransaction []int
	linesNoOrigin      []int
	linesNoTransport   []int
	productsNoCode     []int
}

// Name implements export.Dialect.
func (FR) Name() string { return "fr_intrastat" }

// PrepareOptions implements export.Dialect.
func (FR) PrepareOptions(raw options.Raw) options.Options {
	raw.Dialect = "fr_intrastat"
	if raw.Variant == "" {
		raw.Variant = FRStatisticalSurvey
	}
	return options.Resolve(raw)
}

// Enrich implements export.Dialect.
func (FR) Enrich(ctx context.Context, store ledger.Store, company model.Company, opts options.Options) (any, error) {
	lines, err := Extract(ctx, store, opts)
	if err != nil {
		return nil, err
	}
	data := &FRData{Company: company, ExportType: opts.Variant, Flow: FlowBoth, Lines: lines}
	seenProduct := make(map[int]bool)
	for _, l := range lines {
		if l.TransactionCode == "" {
			data.linesNoTransaction = append(data.linesNoTransaction, l.LineID)
		}
		if l.OriginCountry == "" {
			data.linesNoOrigin = append(data.linesNoOrigin, l.LineID)
		}
		if l.TransportCode == "" {
			data.linesNoTransport = append(data.linesNoTransport, l.LineID)
		}
		if l.CommodityCode == "" && !seenProduct[l.productID] {
			seenProduct[l.productID] = true
			data.productsNoCode = append(data.productsNoCode, l.productID)
		}
	}
	return data, nil
}

// Validate implements export.Dialect. Every French check is blocking
// and carries a navigation action to the offending records.
func (FR) Validate(v any) export.ErrorMap {
	data := v.(*FRData)
	errs := make(export.ErrorMap)

	if data.Company.VAT == "" || data.Company.Siret == "" {
		errs.Add(export.Error{
			Code:     "company_vat_or_siret_missing",
			Message:  "The company needs both a VAT number and a SIRET.",
			Severity: export.SeverityDanger,
			Action:   &export.Action{Text: "Open Company", Model: "company", IDs: []int{1}},
		})
	}
	if data.Company.RegionCode == "" {
		errs.Add(export.Error{
			Code:     "settings_region_id_missing",
			Message:  "Set the intrastat region in the settings.",
			Severity: export.SeverityDanger,
			Action:   &export.Action{Text: "Open Settings", Model: "settings", IDs: []int{1}},
		})
	}
	addLineFinding := func(code, msg string, ids []int) {
		if len(ids) == 0 {
			return
		}
		errs.Add(export.Error{
			Code:     code,
			Message:  msg,
			Severity: export.SeverityDanger,
			Action:   &export.Action{Text: "Check Journal Items", Model: "move_line", IDs: ids},
		})
	}
	addLineFinding("move_lines_transaction_code_missing", "Some journal items have no intrastat transaction code.", data.linesNoTransaction)
	addLineFinding("move_lines_country_of_origin_missing", "Some journal items have no country of origin.", data.linesNoOrigin)
	addLineFinding("move_lines_transport_code_missing", "Some journal items have no transport mode.", data.linesNoTransport)
	if len(data.productsNoCode) > 0 {
		errs.Add(export.Error{
			Code:     "products_commodity_code_missing",
			Message:  "Some declared products have no commodity code.",
			Severity: export.SeverityDanger,
			Action:   &export.Action{Text: "Check Products", Model: "product", IDs: data.productsNoCode},
		})
	}
	return errs
}

// Render implements export.Dialect.
func (FR) Render(v any, opts options.Options) (export.Result, error) {
	data := v.(*FRData)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'

	if data.ExportType == FRVATSummaryStatement {
		if err := w.Write([]string{"partner_vat", "value"}); err != nil {
			return export.Result{}, fmt.Errorf("writing header: %w", err)
		}
		// The VAT summary sums dispatches per buyer VAT.
		var order []string
		agg := make(map[string][]Line)
		for _, l := range data.Lines {
			if l.Arrival {
				continue
			}
			if _, seen := agg[l.PartnerVAT]; !seen {
				order = append(order, l.PartnerVAT)
			}
			agg[l.PartnerVAT] = append(agg[l.PartnerVAT], l)
		}
		for _, vat := range order {
			total := agg[vat][0].Value
			for _, l := range agg[vat][1:] {
				total = total.Add(l.Value)
			}
			if err := w.Write([]string{vat, total.StringFixed(2)}); err != nil {
				return export.Result{}, fmt.Errorf("writing row: %w", err)
			}
		}
	} else {
		header := []string{
			"flow", "cn8", "country", "value", "region", "transaction",
			"transport", "net_mass", "origin", "partner_vat",
		}
		if err := w.Write(header); err != nil {
			return export.Result{}, fmt.Errorf("writing header: %w", err)
		}
		for _, l := range data.Lines {
			flow := "dispatch"
			if l.Arrival {
				flow = "arrival"
			}
			row := []string{
				flow, l.CommodityCode, euCountryCode(l.CountryCode),
				l.Value.StringFixed(2), data.Company.RegionCode,
				l.TransactionCode, l.TransportCode, l.Weight.String(),
				euCountryCode(l.OriginCountry), l.PartnerVAT,
			}
			if err := w.Write(row); err != nil {
				return export.Result{}, fmt.Errorf("writing row: %w", err)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return export.Result{}, fmt.Errorf("flushing CSV: %w", err)
	}

	reportModel := "emebi"
	if data.ExportType == FRVATSummaryStatement {
		reportModel = "vat_summary"
	}
	return export.Result{
		FileName: export.FileName("fr", reportModel, opts.Date.From, opts.Date.To, export.FileCSV),
		FileType: export.FileCSV,
		Content:  buf.Bytes(),
	}, nil
}

var _ export.Dialect = FR{}
