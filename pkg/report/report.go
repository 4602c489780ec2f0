// Package report builds per-symbol market documents: it fans out the kline
// and auxiliary fetches against a provider, enriches the series with
// indicators, and assembles the canonical output document. A batch runner
// executes symbol-by-interval task grids with bounded concurrency.
package report

import (
	"time"

	"perpscan/pkg/market"
	"perpscan/pkg/market/analysis"
)

// Meta identifies the request a document answers.
type Meta struct {
	Exchange string
	Symbol   string
	Interval market.Interval
}

// Assemble joins a series and its auxiliary metrics into the outbound
// document. The series is embedded as-is, so callers enrich it first. Every
// auxiliary field is independently optional; only the identity fields are
// required. Signal labels are derived from the newest bar against the
// current price, falling back to the last close when no live price is
// present.
func Assemble(meta Meta, series market.Series, aux market.SymbolMetrics) (*market.Document, error) {
	doc := &market.Document{
		Exchange:     meta.Exchange,
		Symbol:       meta.Symbol,
		Interval:     meta.Interval.String(),
		GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
		Klines:       series,
		Ticker24h:    aux.Ticker24h,
		FundingRate:  aux.FundingRate,
		OpenInterest: aux.OpenInterest,
		CurrentPrice: aux.CurrentPrice,
		OrderBook:    aux.OrderBook,
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if last := series.Last(); last != nil {
		price := last.Close
		if aux.CurrentPrice != nil {
			price = aux.CurrentPrice.Price
		}
		doc.Signals = analysis.Signals(price, last, series)
	}
	return doc, nil
}
