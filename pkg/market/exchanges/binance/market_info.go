package binance

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"perpscan/pkg/market"
)

const (
	defaultContractType = "PERPETUAL"
	tradingStatus       = "TRADING"
)

// ListSymbols returns the tradable contract symbols matching the filter.
// An empty contract type in the filter defaults to perpetuals.
func (c *Client) ListSymbols(ctx context.Context, filter market.SymbolFilter) ([]string, error) {
	var resp ExchangeInfoResponse
	if err := c.doRequest(ctx, "/fapi/v1/exchangeInfo", nil, &resp); err != nil {
		return nil, err
	}

	contractType := strings.TrimSpace(filter.ContractType)
	if contractType == "" {
		contractType = defaultContractType
	}
	quoteSet := filter.QuoteSet()

	symbols := make([]string, 0, len(resp.Symbols))
	for _, item := range resp.Symbols {
		if item.ContractType != contractType {
			continue
		}
		if item.Status != tradingStatus {
			continue
		}
		if quoteSet != nil {
			if _, ok := quoteSet[strings.ToUpper(item.QuoteAsset)]; !ok {
				continue
			}
		}
		if item.Symbol != "" {
			symbols = append(symbols, item.Symbol)
		}
	}
	return symbols, nil
}

// GetUniverse returns the filtered 24h ticker universe used for snapshot
// ranking. Rows that fail to decode are skipped rather than failing the
// whole fetch; the batch endpoint has no quote-asset field, so the filter
// matches on symbol suffix.
func (c *Client) GetUniverse(ctx context.Context, filter market.SymbolFilter) (*market.Universe, error) {
	var raw []json.RawMessage
	if err := c.doRequest(ctx, "/fapi/v1/ticker/24hr", nil, &raw); err != nil {
		return nil, err
	}

	quoteSet := filter.QuoteSet()
	rows := make([]market.TickerRow, 0, len(raw))
	for _, entry := range raw {
		var tick Ticker24hResponse
		if err := json.Unmarshal(entry, &tick); err != nil {
			c.logf("binance: skipping malformed ticker row: %v", err)
			continue
		}
		symbol := strings.ToUpper(tick.Symbol)
		if symbol == "" {
			continue
		}
		if quoteSet != nil && !hasQuoteSuffix(symbol, quoteSet) {
			continue
		}
		rows = append(rows, market.TickerRow{
			Symbol:             symbol,
			PriceChangePercent: tick.PriceChangePercent,
			LastPrice:          tick.LastPrice,
			HighPrice:          tick.HighPrice,
			LowPrice:           tick.LowPrice,
			Volume:             tick.Volume,
			QuoteVolume:        tick.QuoteVolume,
			OpenPrice:          tick.OpenPrice,
			Count:              tick.Count,
		})
	}
	return &market.Universe{
		Exchange:  "binance",
		FetchedAt: time.Now().UTC(),
		Rows:      rows,
	}, nil
}

func hasQuoteSuffix(symbol string, quotes map[string]struct{}) bool {
	for quote := range quotes {
		if strings.HasSuffix(symbol, quote) {
			return true
		}
	}
	return false
}
