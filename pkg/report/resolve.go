package report

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"perpscan/pkg/market"
)

// SplitList splits comma- or space-separated entries into clean tokens, so
// "BTCUSDT,ETHUSDT SOLUSDT" and ["BTCUSDT", "ETHUSDT,SOLUSDT"] resolve the
// same way.
func SplitList(items ...string) []string {
	var out []string
	for _, item := range items {
		out = append(out, strings.Fields(strings.ReplaceAll(item, ",", " "))...)
	}
	return out
}

// ResolveSymbols expands the raw symbol arguments into the final work list.
// Entries are upper-cased, an ALL entry (any case) expands to the provider's
// full listing under the filter, and maxSymbols caps the result when
// positive.
func ResolveSymbols(ctx context.Context, provider market.Provider, raw []string, filter market.SymbolFilter, maxSymbols int) ([]string, error) {
	candidates := SplitList(raw...)
	if len(candidates) == 0 {
		return nil, errors.New("report: at least one symbol (or ALL) is required")
	}

	expandAll := false
	for _, candidate := range candidates {
		if strings.EqualFold(candidate, "ALL") {
			expandAll = true
			break
		}
	}

	var symbols []string
	if expandAll {
		listed, err := provider.ListSymbols(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("report: list symbols: %w", err)
		}
		symbols = listed
	} else {
		symbols = candidates
	}

	out := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		out = append(out, strings.ToUpper(strings.TrimSpace(symbol)))
	}
	if maxSymbols > 0 && len(out) > maxSymbols {
		out = out[:maxSymbols]
	}
	return out, nil
}

// ResolveIntervals parses the interval arguments, drops duplicates while
// keeping first-seen order, and defaults to 1h when nothing was given.
func ResolveIntervals(raw []string) ([]market.Interval, error) {
	tokens := SplitList(raw...)
	if len(tokens) == 0 {
		tokens = []string{"1h"}
	}
	seen := make(map[market.Interval]struct{}, len(tokens))
	out := make([]market.Interval, 0, len(tokens))
	for _, token := range tokens {
		interval, err := market.CanonicalInterval(token)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[interval]; ok {
			continue
		}
		seen[interval] = struct{}{}
		out = append(out, interval)
	}
	return out, nil
}

// DetectExchange infers the provider from the symbol shape: OKX instrument
// IDs carry dashes and a SWAP segment, everything else reads as Binance.
func DetectExchange(symbol string) string {
	if strings.Contains(symbol, "-") && strings.Contains(strings.ToUpper(symbol), "SWAP") {
		return "okx"
	}
	return "binance"
}
