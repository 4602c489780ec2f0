package market

import (
	"fmt"
	"strings"
)

// Interval is a canonical candle interval token. The canonical set uses
// lowercase unit suffixes except the monthly "1M", matching Binance bar
// naming; adapters translate to exchange-native tokens at the boundary.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval3m  Interval = "3m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval2h  Interval = "2h"
	Interval4h  Interval = "4h"
	Interval6h  Interval = "6h"
	Interval8h  Interval = "8h"
	Interval12h Interval = "12h"
	Interval1d  Interval = "1d"
	Interval3d  Interval = "3d"
	Interval1w  Interval = "1w"
	Interval1M  Interval = "1M"
)

var canonicalIntervals = map[Interval]struct{}{
	Interval1m: {}, Interval3m: {}, Interval5m: {}, Interval15m: {}, Interval30m: {},
	Interval1h: {}, Interval2h: {}, Interval4h: {}, Interval6h: {}, Interval8h: {},
	Interval12h: {}, Interval1d: {}, Interval3d: {}, Interval1w: {}, Interval1M: {},
}

// CanonicalInterval maps a user-supplied token onto the canonical set.
// Exact matches win so "1m" (minute) and "1M" (month) stay distinct; other
// tokens are retried lowercased, accepting variants like "4H" or "1D".
func CanonicalInterval(token string) (Interval, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty interval", ErrUnsupportedInterval)
	}
	if _, ok := canonicalIntervals[Interval(trimmed)]; ok {
		return Interval(trimmed), nil
	}
	lowered := Interval(strings.ToLower(trimmed))
	if _, ok := canonicalIntervals[lowered]; ok {
		return lowered, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedInterval, token)
}

func (i Interval) String() string { return string(i) }
