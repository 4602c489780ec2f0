package market

import (
	"context"
	"sort"
	"strings"
)

// SymbolFilter restricts symbol listing and universe fetches. Zero value
// means no filtering; adapters apply their own defaults for contract and
// instrument types.
type SymbolFilter struct {
	// QuoteAssets keeps only symbols quoted in one of these assets.
	// Empty (or an "ALL" entry resolved by the caller) disables the filter.
	QuoteAssets []string
	// ContractType narrows Binance futures listings, e.g. "PERPETUAL".
	ContractType string
	// InstType narrows OKX instrument listings, e.g. "SWAP".
	InstType string
}

// QuoteSet returns the quote filter as an upper-cased set, or nil when the
// filter carries no usable entries.
func (f SymbolFilter) QuoteSet() map[string]struct{} {
	if len(f.QuoteAssets) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(f.QuoteAssets))
	for _, quote := range f.QuoteAssets {
		quote = strings.ToUpper(strings.TrimSpace(quote))
		if quote == "" {
			continue
		}
		set[quote] = struct{}{}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

// Key returns a canonical string for the filter, usable as a cache key.
// Equivalent filters (order, case, whitespace) produce the same key.
func (f SymbolFilter) Key() string {
	quotes := make([]string, 0, len(f.QuoteAssets))
	for quote := range f.QuoteSet() {
		quotes = append(quotes, quote)
	}
	sort.Strings(quotes)
	return strings.Join(quotes, ",") + "|" +
		strings.ToUpper(strings.TrimSpace(f.ContractType)) + "|" +
		strings.ToUpper(strings.TrimSpace(f.InstType))
}

// Provider exposes one exchange's market data in canonical form. Adapters
// normalize wire payloads at this boundary; nothing downstream branches on
// the exchange identity.
type Provider interface {
	// Name returns the provider's configured name.
	Name() string
	// Klines fetches up to limit bars and normalizes them into an ascending
	// validated Series.
	Klines(ctx context.Context, symbol string, interval Interval, limit int) (Series, error)
	// Ticker24h returns trailing 24-hour statistics for one symbol.
	Ticker24h(ctx context.Context, symbol string) (*Ticker24h, error)
	// FundingRate returns the current funding state for a perpetual symbol.
	FundingRate(ctx context.Context, symbol string) (*FundingRate, error)
	// OpenInterest returns outstanding contract volume for one symbol.
	OpenInterest(ctx context.Context, symbol string) (*OpenInterest, error)
	// OrderBook returns a depth snapshot with up to depth levels per side.
	OrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error)
	// Price returns the latest traded price.
	Price(ctx context.Context, symbol string) (*PriceQuote, error)
	// ListSymbols returns tradeable symbols matching the filter.
	ListSymbols(ctx context.Context, filter SymbolFilter) ([]string, error)
	// Universe returns the full 24h ticker universe matching the filter,
	// ready for snapshot ranking. Rows with unparsable numerics are skipped.
	Universe(ctx context.Context, filter SymbolFilter) (*Universe, error)
}
