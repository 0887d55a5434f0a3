package intrastat

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/auditfile-dev/auditfile/internal/export"
	"github.com/auditfile-dev/auditfile/internal/ledger"
	"github.com/auditfile-dev/auditfile/internal/model"
	"github.com/auditfile-dev/auditfile/internal/options"
	"github.com/auditfile-dev/auditfile/internal/xmlel"
)

// DE is the German Intrastat dialect: one XML envelope with a fixed
// receiver and one Declaration per selected direction.
type DE struct {
	Now func() time.Time
}

// deReceiver is the fixed envelope receiver.
const deReceiver = "Statistisches Bundesamt"

// DEItem is one (commodity code, country) aggregate inside a
// declaration.
type DEItem struct {
	CommodityCode       string
	Country             string
	NatureOfTransaction string
	TotalNetMass        decimal.Decimal
	TotalInvoicedAmount decimal.Decimal
	QuantityInSU        decimal.Decimal
}

// DEDeclaration is the item list for one direction.
type DEDeclaration struct {
	Arrival bool
	Items   []DEItem
}

// DEData is the enriched German export.
type DEData struct {
	Company      model.Company
	Flow         Flow
	Declarations []DEDeclaration
}

// Name implements export.Dialect.
func (DE) Name() string { return "de_intrastat" }

// PrepareOptions implements export.Dialect.
func (DE) PrepareOptions(raw options.Raw) options.Options {
	raw.Dialect = "de_intrastat"
	return options.Resolve(raw)
}

// Enrich implements export.Dialect.
func (DE) Enrich(ctx context.Context, store ledger.Store, company model.Company, opts options.Options) (any, error) {
	lines, err := Extract(ctx, store, opts)
	if err != nil {
		return nil, err
	}
	arrivals, dispatches := split(lines)

	flow := ParseFlow(opts.Variant)
	data := &DEData{Company: company, Flow: flow}
	if flow == FlowArrivals || flow == FlowBoth {
		data.Declarations = append(data.Declarations, DEDeclaration{Arrival: true, Items: aggregateItems(arrivals)})
	}
	if flow == FlowDispatches || flow == FlowBoth {
		data.Declarations = append(data.Declarations, DEDeclaration{Arrival: false, Items: aggregateItems(dispatches)})
	}
	return data, nil
}

// aggregateItems folds lines into one item per (commodity, country).
func aggregateItems(lines []Line) []DEItem {
	type key struct {
		code    string
		country string
	}
	sums := make(map[key]*DEItem)
	var order []key
	for _, l := range lines {
		k := key{l.CommodityCode, euCountryCode(l.CountryCode)}
		item, ok := sums[k]
		if !ok {
			item = &DEItem{
				CommodityCode:       k.code,
				Country:             k.country,
				NatureOfTransaction: l.TransactionCode,
			}
			sums[k] = item
			order = append(order, k)
		}
		item.TotalNetMass = item.TotalNetMass.Add(l.Weight)
		item.TotalInvoicedAmount = item.TotalInvoicedAmount.Add(l.Value)
		item.QuantityInSU = item.QuantityInSU.Add(l.Units)
	}
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].code != order[j].code {
			return order[i].code < order[j].code
		}
		return order[i].country < order[j].country
	})
	out := make([]DEItem, 0, len(order))
	for _, k := range order {
		out = append(out, *sums[k])
	}
	return out
}

// Validate implements export.Dialect.
func (DE) Validate(v any) export.ErrorMap {
	data := v.(*DEData)
	errs := make(export.ErrorMap)
	if data.Company.VAT == "" {
		errs.Add(export.Error{
			Code:     "de_company_vat_missing",
			Message:  "The company needs a VAT number to declare intrastat.",
			Severity: export.SeverityDanger,
		})
	}
	return errs
}

// Render implements export.Dialect.
func (d DE) Render(v any, opts options.Options) (export.Result, error) {
	data := v.(*DEData)
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}

	root := xmlel.El("InstatImport",
		"xmlns", "http://www.destatis.de/schema/datett/instat/v1")
	envelope := xmlel.El("Envelope").
		MustChildText("envelopeId", fmt.Sprintf("%s-%s", opts.Date.From.Format("200601"), data.Company.VAT)).
		Child(xmlel.El("DateTime").
			MustChildText("date", now().Format("2006-01-02")).
			MustChildText("time", now().Format("15:04:05"))).
		Child(xmlel.El("Party", "partyType", "PSI", "partyRole", "sender").
			MustChildText("partyId", data.Company.VAT).
			MustChildText("partyName", data.Company.Name)).
		Child(xmlel.El("Party", "partyType", "CC", "partyRole", "receiver").
			MustChildText("partyName", deReceiver))

	for _, decl := range data.Declarations {
		flowCode := "D"
		if decl.Arrival {
			flowCode = "A"
		}
		declEl := xmlel.El("Declaration").
			MustChildText("declarationId", opts.Date.From.Format("200601")).
			MustChildText("referencePeriod", opts.Date.From.Format("2006-01")).
			Child(xmlel.El("Function").MustChildText("functionCode", "O")).
			MustChildText("flowCode", flowCode).
			MustChildText("currencyCode", data.Company.Currency)
		for i, item := range decl.Items {
			declEl.Child(xmlel.El("Item").
				MustChildText("itemNumber", fmt.Sprintf("%d", i+1)).
				Child(xmlel.El("CN8").MustChildText("CN8Code", item.CommodityCode)).
				MustChildText("MSConsDestCode", item.Country).
				Child(xmlel.El("NatureOfTransaction").
					MustChildText("natureOfTransactionACode", natureCode(item.NatureOfTransaction, 0)).
					MustChildText("natureOfTransactionBCode", natureCode(item.NatureOfTransaction, 1))).
				MustChildText("totalNetMass", item.TotalNetMass.StringFixed(1)).
				MustChildText("totalInvoicedAmount", item.TotalInvoicedAmount.StringFixed(2)).
				MustChildText("quantityInSU", item.QuantityInSU.String()))
		}
		envelope.Child(declEl)
	}
	envelope.MustChildText("numberOfDeclarations", fmt.Sprintf("%d", len(data.Declarations)))
	root.Child(envelope)

	content, err := root.Render(xmlel.DefaultRenderOptions())
	if err != nil {
		return export.Result{}, fmt.Errorf("rendering DE intrastat: %w", err)
	}
	return export.Result{
		FileName: export.FileName("de", "intrastat", opts.Date.From, opts.Date.To, export.FileXML),
		FileType: export.FileXML,
		Content:  content,
	}, nil
}

// natureCode splits a two-digit transaction code into its A and B
// halves; missing digits come out as "1" and "".
func natureCode(code string, pos int) string {
	if pos < len(code) {
		return string(code[pos])
	}
	if pos == 0 {
		return "1"
	}
	return ""
}

var _ export.Dialect = DE{}
