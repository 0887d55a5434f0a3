// Package intrastat implements the Danish, French, and German
// Intrastat export dialects over a shared goods-movement extraction.
package intrastat

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/auditfile-dev/auditfile/internal/ledger"
	"github.com/auditfile-dev/auditfile/internal/model"
	"github.com/auditfile-dev/auditfile/internal/options"
)

// Flow selects the declared direction(s).
type Flow string

const (
	FlowArrivals   Flow = "arrivals"
	FlowDispatches Flow = "dispatches"
	FlowBoth       Flow = "arrivals_and_dispatches"
)

// ParseFlow normalizes a raw flow string; empty means both.
func ParseFlow(s string) Flow {
	switch Flow(s) {
	case FlowArrivals, FlowDispatches:
		return Flow(s)
	case "both":
		return FlowBoth
	default:
		return FlowBoth
	}
}

// Line is one goods movement, already joined with its product and
// partner.
type Line struct {
	LineID          int
	MoveID          int
	Arrival         bool // vendor side; false = dispatch
	CommodityCode   string
	TransactionCode string
	TransportCode   string
	CountryCode     string // counterparty country
	OriginCountry   string
	PartnerVAT      string
	Weight          decimal.Decimal
	Units           decimal.Decimal
	Value           decimal.Decimal

	productID int
}

// Extract walks the in-period posted invoices and returns the goods
// lines. Service lines never enter the declaration.
func Extract(ctx context.Context, store ledger.Store, opts options.Options) ([]Line, error) {
	moves, err := store.Moves(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("loading moves: %w", err)
	}
	partners, err := store.Partners(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("loading partners: %w", err)
	}
	partnerByID := make(map[int]model.Partner, len(partners))
	for _, p := range partners {
		partnerByID[p.ID] = p
	}
	products, err := store.UniqueProducts(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("loading products: %w", err)
	}
	productByID := make(map[int]model.Product, len(products))
	for _, p := range products {
		productByID[p.Product.ID] = p.Product
	}

	var out []Line
	for _, m := range moves {
		if !m.Type.IsInvoice() {
			continue
		}
		partner := partnerByID[m.PartnerID]
		for _, l := range m.Lines {
			if l.ProductID == 0 {
				continue
			}
			product := productByID[l.ProductID]
			if product.Kind == model.KindService {
				continue
			}
			origin := l.IntrastatOriginCountry
			if origin == "" {
				origin = product.OriginCountry
			}
			out = append(out, Line{
				LineID:          l.ID,
				MoveID:          m.ID,
				Arrival:         m.Type.IsPurchase(),
				CommodityCode:   product.CommodityCode,
				TransactionCode: l.IntrastatTransactionCode,
				TransportCode:   l.IntrastatTransportCode,
				CountryCode:     partner.Address.Country,
				OriginCountry:   origin,
				PartnerVAT:      partner.VAT,
				Weight:          l.Weight,
				Units:           l.Quantity,
				Value:           l.Balance.Abs(),
				productID:       l.ProductID,
			})
		}
	}
	return out, nil
}

// split partitions lines by direction.
func split(lines []Line) (arrivals, dispatches []Line) {
	for _, l := range lines {
		if l.Arrival {
			arrivals = append(arrivals, l)
		} else {
			dispatches = append(dispatches, l)
		}
	}
	return arrivals, dispatches
}

// euCountryCode maps ISO codes to their Intrastat form. Greece
// declares as EL.
func euCountryCode(iso string) string {
	if iso == "GR" {
		return "EL"
	}
	return iso
}
