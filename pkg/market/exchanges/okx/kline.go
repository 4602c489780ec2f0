package okx

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"perpscan/pkg/market"
)

// Candle rows arrive as positional all-string arrays:
// [ts, open, high, low, close, volume, volCcy, volCcyQuote, confirm]
const candleRowFields = 8

// nativeInterval maps a canonical interval onto OKX bar tokens. OKX uses a
// lowercase suffix for minute bars and uppercase for everything else, so
// only "1M" keeps its case and stays a month.
func nativeInterval(interval market.Interval) string {
	token := string(interval)
	if strings.HasSuffix(token, "m") {
		return token
	}
	return strings.ToUpper(token)
}

// GetKlines fetches up to limit bars and normalizes them into a validated
// ascending series. OKX returns candles newest first, so the rows are
// reversed before validation.
func (c *Client) GetKlines(ctx context.Context, symbol string, interval market.Interval, limit int) (market.Series, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("okx: limit must be positive")
	}
	canonical := canonicalSymbol(symbol)

	query := url.Values{}
	query.Set("instId", canonical)
	query.Set("bar", nativeInterval(interval))
	query.Set("limit", strconv.Itoa(limit))

	var rows [][]string
	if err := c.doRequest(ctx, "/api/v5/market/candles", query, &rows); err != nil {
		return nil, err
	}

	series := make(market.Series, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		bar, err := parseCandleRow(canonical, rows[i])
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

// parseCandleRow decodes one positional candle. OKX timestamps the bar open
// only; close_time is synthesized as open_time+1 so the field is populated
// without claiming precision the wire does not carry.
func parseCandleRow(symbol string, row []string) (market.Kline, error) {
	if len(row) < candleRowFields {
		return market.Kline{}, fmt.Errorf("%w: candle row has %d of %d fields", market.ErrMalformedData, len(row), candleRowFields)
	}

	openTime, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return market.Kline{}, fmt.Errorf("%w: candle ts: %v", market.ErrMalformedData, err)
	}

	bar := market.Kline{
		Symbol:    symbol,
		OpenTime:  openTime,
		CloseTime: openTime + 1,
	}
	fields := []struct {
		name string
		set  func(float64)
	}{
		{"open", func(v float64) { bar.Open = v }},
		{"high", func(v float64) { bar.High = v }},
		{"low", func(v float64) { bar.Low = v }},
		{"close", func(v float64) { bar.Close = v }},
		{"volume", func(v float64) { bar.Volume = v }},
		{"quote_volume", func(v float64) { bar.QuoteVolume = v }},
		{"trades", func(v float64) { bar.Trades = int64(v) }},
	}
	for i, field := range fields {
		v, err := strconv.ParseFloat(row[i+1], 64)
		if err != nil {
			return market.Kline{}, fmt.Errorf("%w: candle %s: %v", market.ErrMalformedData, field.name, err)
		}
		field.set(v)
	}
	return bar, nil
}
