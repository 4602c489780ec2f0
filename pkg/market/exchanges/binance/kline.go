package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"perpscan/pkg/market"
)

// Kline rows arrive as positional arrays mixing numeric timestamps with
// string-encoded prices:
// [openTime, open, high, low, close, volume, closeTime, quoteVolume, trades, ...]
const klineRowFields = 9

// GetKlines fetches up to limit bars and normalizes them into a validated
// ascending series. Binance already returns bars oldest first.
func (c *Client) GetKlines(ctx context.Context, symbol string, interval market.Interval, limit int) (market.Series, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("binance: limit must be positive")
	}
	canonical := canonicalSymbol(symbol)

	query := url.Values{}
	query.Set("symbol", canonical)
	query.Set("interval", string(interval))
	query.Set("limit", strconv.Itoa(limit))

	var rows [][]any
	if err := c.doRequest(ctx, "/fapi/v1/klines", query, &rows); err != nil {
		return nil, err
	}

	series := make(market.Series, 0, len(rows))
	for _, row := range rows {
		bar, err := parseKlineRow(canonical, row)
		if err != nil {
			return nil, err
		}
		series = append(series, bar)
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}

func parseKlineRow(symbol string, row []any) (market.Kline, error) {
	if len(row) < klineRowFields {
		return market.Kline{}, fmt.Errorf("%w: kline row has %d of %d fields", market.ErrMalformedData, len(row), klineRowFields)
	}

	bar := market.Kline{Symbol: symbol}
	fields := []struct {
		name string
		set  func(float64)
	}{
		{"open_time", func(v float64) { bar.OpenTime = int64(v) }},
		{"open", func(v float64) { bar.Open = v }},
		{"high", func(v float64) { bar.High = v }},
		{"low", func(v float64) { bar.Low = v }},
		{"close", func(v float64) { bar.Close = v }},
		{"volume", func(v float64) { bar.Volume = v }},
		{"close_time", func(v float64) { bar.CloseTime = int64(v) }},
		{"quote_volume", func(v float64) { bar.QuoteVolume = v }},
		{"trades", func(v float64) { bar.Trades = int64(v) }},
	}
	for i, field := range fields {
		v, err := numericField(row[i])
		if err != nil {
			return market.Kline{}, fmt.Errorf("%w: kline %s: %v", market.ErrMalformedData, field.name, err)
		}
		field.set(v)
	}
	return bar, nil
}

// numericField accepts the string and numeric encodings Binance mixes within
// a single kline row.
func numericField(v any) (float64, error) {
	switch val := v.(type) {
	case string:
		return strconv.ParseFloat(val, 64)
	case float64:
		return val, nil
	case json.Number:
		return val.Float64()
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
