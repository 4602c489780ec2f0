// Package screener turns a full exchange ticker universe into the ranked
// market snapshot used for candidate selection: top symbols by turnover,
// top gainers and top losers.
package screener

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"perpscan/pkg/market"
)

const defaultTop = 10

// Params controls snapshot generation. The quote-asset filter is applied
// before ranking, so an excluded symbol never occupies a ranked slot; an
// "ALL" entry (any case) disables the filter entirely.
type Params struct {
	QuoteAssets []string
	Top         int
	IncludeRaw  bool
}

// Build produces a ranked snapshot from an already-fetched universe. The
// universe is never mutated; ranking works on private copies. A non-positive
// top falls back to the default list length.
func Build(universe *market.Universe, params Params) (*market.Snapshot, error) {
	if universe == nil {
		return nil, fmt.Errorf("screener: universe is required")
	}
	if universe.Exchange == "" {
		return nil, fmt.Errorf("screener: universe has no exchange")
	}

	top := params.Top
	if top <= 0 {
		top = defaultTop
	}

	quoteSet := normalizeQuotes(params.QuoteAssets)
	rows := filterRows(universe.Rows, quoteSet)

	snapshot := &market.Snapshot{
		Exchange:     universe.Exchange,
		GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
		TotalSymbols: len(rows),
		TopVolume:    rankUnstable(rows, top, byTurnoverDesc),
		TopGainers:   rank(rows, top, byChangeDesc),
		TopLosers:    rank(rows, top, byChangeAsc),
		Filters: market.SnapshotFilters{
			QuoteAssets: sortedQuotes(quoteSet),
			Top:         top,
		},
	}
	if params.IncludeRaw {
		snapshot.Tickers = rows
	}
	return snapshot, nil
}

// byTurnoverDesc orders by 24h quote volume descending with a symbol-name
// tiebreak, making the turnover board fully deterministic.
func byTurnoverDesc(a, b market.TickerRow) bool {
	if a.QuoteVolume != b.QuoteVolume {
		return a.QuoteVolume > b.QuoteVolume
	}
	return a.Symbol < b.Symbol
}

func byChangeDesc(a, b market.TickerRow) bool {
	return a.PriceChangePercent > b.PriceChangePercent
}

func byChangeAsc(a, b market.TickerRow) bool {
	return a.PriceChangePercent < b.PriceChangePercent
}

// rank sorts a copy of rows with a stable sort (ties keep universe order)
// and returns up to top entries. Fewer surviving rows than top is fine; the
// board is simply shorter.
func rank(rows []market.TickerRow, top int, less func(a, b market.TickerRow) bool) []market.TickerRow {
	ranked := append([]market.TickerRow(nil), rows...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return less(ranked[i], ranked[j])
	})
	if len(ranked) > top {
		ranked = ranked[:top]
	}
	return ranked
}

// rankUnstable is rank for total orderings, where the tiebreak lives in the
// less function itself.
func rankUnstable(rows []market.TickerRow, top int, less func(a, b market.TickerRow) bool) []market.TickerRow {
	ranked := append([]market.TickerRow(nil), rows...)
	sort.Slice(ranked, func(i, j int) bool {
		return less(ranked[i], ranked[j])
	})
	if len(ranked) > top {
		ranked = ranked[:top]
	}
	return ranked
}

func filterRows(rows []market.TickerRow, quoteSet map[string]struct{}) []market.TickerRow {
	if quoteSet == nil {
		return append([]market.TickerRow(nil), rows...)
	}
	filtered := make([]market.TickerRow, 0, len(rows))
	for _, row := range rows {
		if matchesQuote(row.Symbol, quoteSet) {
			filtered = append(filtered, row)
		}
	}
	return filtered
}

// matchesQuote checks a symbol against the quote allow-list. Dashed
// instrument IDs (BTC-USDT-SWAP) carry the quote in their second segment;
// compact symbols (BTCUSDT) are matched by suffix.
func matchesQuote(symbol string, quoteSet map[string]struct{}) bool {
	upper := strings.ToUpper(symbol)
	if strings.Contains(upper, "-") {
		parts := strings.Split(upper, "-")
		if len(parts) < 2 {
			return false
		}
		_, ok := quoteSet[parts[1]]
		return ok
	}
	for quote := range quoteSet {
		if strings.HasSuffix(upper, quote) {
			return true
		}
	}
	return false
}

// normalizeQuotes upper-cases and de-duplicates the quote filter. An empty
// list or an ALL entry means no filtering.
func normalizeQuotes(quotes []string) map[string]struct{} {
	if len(quotes) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(quotes))
	for _, quote := range quotes {
		quote = strings.ToUpper(strings.TrimSpace(quote))
		if quote == "" {
			continue
		}
		if quote == "ALL" {
			return nil
		}
		set[quote] = struct{}{}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

// sortedQuotes echoes the effective filter in the snapshot; nil marshals to
// JSON null when no filter was applied.
func sortedQuotes(quoteSet map[string]struct{}) []string {
	if quoteSet == nil {
		return nil
	}
	quotes := make([]string, 0, len(quoteSet))
	for quote := range quoteSet {
		quotes = append(quotes, quote)
	}
	sort.Strings(quotes)
	return quotes
}

// ParseQuoteFilter splits a user-supplied quote list like "USDT,BUSD" into
// filter entries. ALL (any case) yields nil, meaning no filter.
func ParseQuoteFilter(text string) []string {
	normalized := strings.ToUpper(strings.TrimSpace(text))
	if normalized == "" || normalized == "ALL" {
		return nil
	}
	parts := strings.Split(normalized, ",")
	quotes := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			quotes = append(quotes, part)
		}
	}
	if len(quotes) == 0 {
		return nil
	}
	return quotes
}
