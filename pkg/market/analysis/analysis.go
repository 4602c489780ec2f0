// Package analysis derives objective labels from an enriched series and its
// auxiliary metrics: RSI and trend bands, volume participation, order-book
// imbalance, and a volatility regime summary. Everything here is pure
// labeling; no function reaches the network or mutates its inputs.
package analysis

import (
	"errors"
	"math"

	"perpscan/pkg/market"
)

const (
	// defaultBookDepth bounds how many levels per side feed the imbalance
	// ratio.
	defaultBookDepth = 10
	// defaultVolumeLookback is how many preceding bars a volume ratio
	// averages over.
	defaultVolumeLookback = 20
)

// LatestBar returns the newest bar of the series, which is ordered oldest
// first.
func LatestBar(s market.Series) (*market.Kline, error) {
	last := s.Last()
	if last == nil {
		return nil, errors.New("analysis: series is empty")
	}
	return last, nil
}

// BookImbalance reports (bidValue-askValue)/(bidValue+askValue) over the top
// depth levels of each side, in [-1, 1]. Positive values mean bid-side
// pressure. A nil or empty book yields 0.
func BookImbalance(book *market.OrderBook, depth int) float64 {
	if book == nil {
		return 0
	}
	if depth <= 0 {
		depth = defaultBookDepth
	}
	bidValue := sideValue(book.Bids, depth)
	askValue := sideValue(book.Asks, depth)
	total := bidValue + askValue
	if total == 0 {
		return 0
	}
	return (bidValue - askValue) / total
}

// VolumeRatio compares the newest bar's volume with the mean volume of the
// lookback bars preceding it. It yields 0 when the series is shorter than
// lookback+1 bars or the preceding mean is zero, so 0 always reads as
// "no signal".
func VolumeRatio(s market.Series, lookback int) float64 {
	if lookback <= 0 {
		lookback = defaultVolumeLookback
	}
	if len(s) < lookback+1 {
		return 0
	}
	prev := s[len(s)-lookback-1 : len(s)-1]
	sum := 0.0
	for i := range prev {
		sum += prev[i].Volume
	}
	avg := sum / float64(lookback)
	if avg <= 0 {
		return 0
	}
	return s.Last().Volume / avg
}

// Signals labels a series against its current price: RSI band, trend versus
// the moving averages, and volume participation. Labels whose inputs are
// missing stay empty; volume_ratio and volume_status are always present.
func Signals(price float64, latest *market.Kline, s market.Series) *market.SignalReport {
	ratio := VolumeRatio(s, defaultVolumeLookback)
	report := &market.SignalReport{
		VolumeRatio:  round(ratio, 2),
		VolumeStatus: volumeStatus(ratio),
	}
	if latest == nil {
		return report
	}
	if latest.RSI14 != nil {
		report.RSIStatus, report.RSILevel = rsiBand(*latest.RSI14)
	}
	if price > 0 && latest.MA20 != nil && latest.MA50 != nil {
		applyTrend(report, price, *latest.MA20, *latest.MA50)
	}
	return report
}

// applyTrend fills the moving-average distance and trend fields. Zero or
// negative averages are skipped so the distances stay well defined.
func applyTrend(r *market.SignalReport, price, ma20, ma50 float64) {
	if ma20 <= 0 || ma50 <= 0 {
		return
	}
	r.PriceVsMA20Pct = roundPtr((price-ma20)/ma20*100, 2)
	r.PriceVsMA50Pct = roundPtr((price-ma50)/ma50*100, 2)
	r.MA20VsMA50Pct = roundPtr((ma20-ma50)/ma50*100, 2)
	r.Trend = trendLabel(price, ma20, ma50)
}

// rsiBand maps an RSI reading onto its band label. A reading exactly on 30
// sits between the oversold and bearish bands and gets no label.
func rsiBand(rsi float64) (status, level string) {
	switch {
	case rsi < 20:
		return "extreme_oversold", "<20"
	case rsi < 30:
		return "oversold", "20-30"
	case rsi > 80:
		return "extreme_overbought", ">80"
	case rsi > 70:
		return "overbought", "70-80"
	case rsi > 50:
		return "bullish", "50-70"
	case rsi > 30:
		return "bearish", "30-50"
	default:
		return "", ""
	}
}

func trendLabel(price, ma20, ma50 float64) string {
	switch {
	case price > ma20 && ma20 > ma50:
		return "uptrend"
	case price < ma20 && ma20 < ma50:
		return "downtrend"
	case ma20 > ma50 && price < ma20:
		return "uptrend_pullback"
	case ma20 < ma50 && price > ma20:
		return "downtrend_rebound"
	default:
		return "sideways"
	}
}

func volumeStatus(ratio float64) string {
	switch {
	case ratio > 3.0:
		return "extreme_spike"
	case ratio > 2.0:
		return "spike"
	case ratio > 1.5:
		return "elevated"
	case ratio < 0.5:
		return "low"
	default:
		return "normal"
	}
}

func sideValue(levels []market.BookLevel, depth int) float64 {
	if len(levels) > depth {
		levels = levels[:depth]
	}
	sum := 0.0
	for _, level := range levels {
		sum += level.Price * level.Qty
	}
	return sum
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

func roundPtr(v float64, places int) *float64 {
	r := round(v, places)
	return &r
}
