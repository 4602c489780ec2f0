package okx

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"perpscan/pkg/market"
)

const (
	defaultInstType = "SWAP"
	liveState       = "live"
)

// ListSymbols returns the live instrument IDs matching the filter. An empty
// instrument type in the filter defaults to perpetual swaps. The quote asset
// sits in the middle segment of the instrument ID (BTC-USDT-SWAP).
func (c *Client) ListSymbols(ctx context.Context, filter market.SymbolFilter) ([]string, error) {
	query := url.Values{}
	query.Set("instType", instTypeOrDefault(filter))

	var data []InstrumentData
	if err := c.doRequest(ctx, "/api/v5/public/instruments", query, &data); err != nil {
		return nil, err
	}

	quoteSet := filter.QuoteSet()
	symbols := make([]string, 0, len(data))
	for _, item := range data {
		if item.State != liveState {
			continue
		}
		if item.InstID == "" {
			continue
		}
		if quoteSet != nil {
			if _, ok := quoteSet[instQuote(item.InstID)]; !ok {
				continue
			}
		}
		symbols = append(symbols, item.InstID)
	}
	return symbols, nil
}

// GetUniverse returns the filtered ticker universe used for snapshot
// ranking. Rows that fail to decode are skipped rather than failing the
// whole fetch.
func (c *Client) GetUniverse(ctx context.Context, filter market.SymbolFilter) (*market.Universe, error) {
	query := url.Values{}
	query.Set("instType", instTypeOrDefault(filter))

	var raw []json.RawMessage
	if err := c.doRequest(ctx, "/api/v5/market/tickers", query, &raw); err != nil {
		return nil, err
	}

	quoteSet := filter.QuoteSet()
	rows := make([]market.TickerRow, 0, len(raw))
	for _, entry := range raw {
		var tick TickerData
		if err := json.Unmarshal(entry, &tick); err != nil {
			c.logf("okx: skipping malformed ticker row: %v", err)
			continue
		}
		instID := strings.ToUpper(tick.InstID)
		if instID == "" {
			continue
		}
		if quoteSet != nil {
			if _, ok := quoteSet[instQuote(instID)]; !ok {
				continue
			}
		}
		rows = append(rows, market.TickerRow{
			Symbol:             instID,
			PriceChangePercent: changePercent(tick.Last, tick.Open24h),
			LastPrice:          tick.Last,
			HighPrice:          tick.High24h,
			LowPrice:           tick.Low24h,
			Volume:             tick.Vol24h,
			QuoteVolume:        tick.VolCcy24h,
			OpenPrice:          tick.Open24h,
		})
	}
	return &market.Universe{
		Exchange:  "okx",
		FetchedAt: time.Now().UTC(),
		Rows:      rows,
	}, nil
}

func instTypeOrDefault(filter market.SymbolFilter) string {
	instType := strings.ToUpper(strings.TrimSpace(filter.InstType))
	if instType == "" {
		return defaultInstType
	}
	return instType
}

// instQuote extracts the quote asset from an instrument ID like
// BTC-USDT-SWAP; IDs without a quote segment yield "".
func instQuote(instID string) string {
	parts := strings.Split(instID, "-")
	if len(parts) < 2 {
		return ""
	}
	return strings.ToUpper(parts[1])
}
