package analysis

import (
	"fmt"

	"perpscan/pkg/market"
)

const (
	// defaultRegimeLookback is the window a volatility reading is judged
	// against.
	defaultRegimeLookback = 20
	// regimeTrendSpan is how many recent readings decide the short-term
	// direction.
	regimeTrendSpan = 5
)

// Regime summarizes where the newest volatility reading sits inside its
// recent range. Numeric fields are meaningful only when Status is "ok".
type Regime struct {
	Status     string  `json:"status"`
	Message    string  `json:"message,omitempty"`
	Current    float64 `json:"current_volatility"`
	Average    float64 `json:"average_volatility"`
	Max        float64 `json:"max_volatility"`
	Min        float64 `json:"min_volatility"`
	Percentile float64 `json:"volatility_percentile"`
	Band       string  `json:"regime,omitempty"`
	Trend      string  `json:"volatility_trend,omitempty"`
	Source     string  `json:"volatility_key,omitempty"`
}

// VolatilityRegime judges the newest volatility reading against the lookback
// window ending at it. The ATR percentage is preferred; rolling close
// volatility is the fallback when the newest bar carries no ATR. Current
// volatility below 0.7x the window average reads as low_volatility, above
// 1.3x as high_volatility.
func VolatilityRegime(s market.Series, lookback int) *Regime {
	if lookback <= 0 {
		lookback = defaultRegimeLookback
	}
	if len(s) < lookback {
		return &Regime{
			Status:  "insufficient_data",
			Message: fmt.Sprintf("need at least %d bars, got %d", lookback, len(s)),
		}
	}
	latest := s.Last()
	source, currentPtr := volatilitySource(latest)
	if currentPtr == nil {
		return &Regime{
			Status:  "no_volatility_data",
			Message: "series carries no volatility fields; enrich it first",
		}
	}
	current := *currentPtr

	recent := s[len(s)-lookback:]
	history := make([]float64, 0, lookback)
	for i := range recent {
		if v := volatilityValue(&recent[i], source); v != nil {
			history = append(history, *v)
		}
	}

	sum, maxVol, minVol := 0.0, history[0], history[0]
	atOrBelow := 0
	for _, v := range history {
		sum += v
		if v > maxVol {
			maxVol = v
		}
		if v < minVol {
			minVol = v
		}
		if v <= current {
			atOrBelow++
		}
	}
	avg := sum / float64(len(history))
	percentile := float64(atOrBelow) / float64(len(history)) * 100

	band := "normal_volatility"
	switch {
	case current < avg*0.7:
		band = "low_volatility"
	case current > avg*1.3:
		band = "high_volatility"
	}

	return &Regime{
		Status:     "ok",
		Current:    round(current, 4),
		Average:    round(avg, 4),
		Max:        round(maxVol, 4),
		Min:        round(minVol, 4),
		Percentile: round(percentile, 2),
		Band:       band,
		Trend:      shortTermTrend(s, source),
		Source:     source,
	}
}

// shortTermTrend compares the oldest and newest readings across the last few
// bars. Fewer than two readings defaults to decreasing.
func shortTermTrend(s market.Series, source string) string {
	span := s
	if len(span) > regimeTrendSpan {
		span = span[len(span)-regimeTrendSpan:]
	}
	readings := make([]float64, 0, regimeTrendSpan)
	for i := range span {
		if v := volatilityValue(&span[i], source); v != nil {
			readings = append(readings, *v)
		}
	}
	if len(readings) >= 2 && readings[len(readings)-1] > readings[0] {
		return "increasing"
	}
	return "decreasing"
}

// volatilitySource picks the field the regime is judged on: the ATR
// percentage when the newest bar carries one, else rolling close volatility.
func volatilitySource(k *market.Kline) (string, *float64) {
	if k.ATR14Pct != nil {
		return "atr14_pct", k.ATR14Pct
	}
	return "volatility_20_pct", k.Volatility20Pct
}

func volatilityValue(k *market.Kline, source string) *float64 {
	if source == "atr14_pct" {
		return k.ATR14Pct
	}
	return k.Volatility20Pct
}
