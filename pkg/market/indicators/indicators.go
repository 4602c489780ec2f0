// Package indicators derives the technical fields carried on normalized
// klines: moving averages, RSI, per-bar price change, average true range,
// and rolling close volatility. All windows trail the bar they annotate,
// so a value at index i depends only on bars [0..i].
package indicators

import (
	"math"

	"perpscan/pkg/market"
)

const (
	maShortPeriod = 20
	maLongPeriod  = 50
	rsiPeriod     = 14
	atrPeriod     = 14
	volPeriod     = 20
)

// Enrich returns a copy of the series with every derived field populated
// where enough history exists. Bars earlier than a full window keep the
// field unset. The input series is never modified, and any derived values
// already present on it are discarded, so the output depends only on the
// OHLCV columns.
func Enrich(s market.Series) market.Series {
	if len(s) == 0 {
		return market.Series{}
	}
	out := make(market.Series, len(s))
	closes := s.Closes()

	for i := range s {
		out[i] = stripDerived(s[i])

		if i >= maShortPeriod-1 {
			out[i].MA20 = rounded(mean(closes[i-maShortPeriod+1:i+1]), 8)
		}
		if i >= maLongPeriod-1 {
			out[i].MA50 = rounded(mean(closes[i-maLongPeriod+1:i+1]), 8)
		}
		if i >= rsiPeriod {
			avgGain, avgLoss := averageGainLoss(closes[i-rsiPeriod : i+1])
			out[i].RSI14 = rounded(computeRSI(avgGain, avgLoss), 2)
		}
		if i > 0 {
			change := closes[i] - closes[i-1]
			out[i].PriceChange = rounded(change, 8)
			out[i].PriceChangePct = rounded(change/closes[i-1]*100, 4)
		}
		if i >= atrPeriod {
			atr := atrAt(s, i)
			out[i].ATR14 = rounded(atr, 8)
			if closes[i] > 0 {
				out[i].ATR14Pct = rounded(atr/closes[i]*100, 4)
			}
		}
		if i >= volPeriod-1 {
			window := closes[i-volPeriod+1 : i+1]
			m := mean(window)
			sigma := math.Sqrt(variance(window, m))
			out[i].Volatility20 = rounded(sigma, 8)
			if m > 0 {
				out[i].Volatility20Pct = rounded(sigma/m*100, 4)
			}
		}
	}
	return out
}

// averageGainLoss splits the close-to-close moves of a window into average
// gain and average loss. A window of n closes yields n-1 moves.
func averageGainLoss(window []float64) (avgGain, avgLoss float64) {
	n := float64(len(window) - 1)
	for j := 1; j < len(window); j++ {
		change := window[j] - window[j-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	return avgGain / n, avgLoss / n
}

func computeRSI(avgGain, avgLoss float64) float64 {
	switch {
	case avgLoss == 0 && avgGain == 0:
		return 50.0
	case avgLoss == 0:
		return 100.0
	case avgGain == 0:
		return 0.0
	default:
		rs := avgGain / avgLoss
		return 100.0 - (100.0 / (1.0 + rs))
	}
}

// atrAt averages the true ranges of the atrPeriod bars ending at index i.
// Callers guarantee i >= atrPeriod, so every bar in the window has a
// previous close.
func atrAt(s market.Series, i int) float64 {
	sum := 0.0
	for j := i - atrPeriod + 1; j <= i; j++ {
		highLow := s[j].High - s[j].Low
		highClose := math.Abs(s[j].High - s[j-1].Close)
		lowClose := math.Abs(s[j].Low - s[j-1].Close)
		sum += math.Max(highLow, math.Max(highClose, lowClose))
	}
	return sum / float64(atrPeriod)
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// variance is the population variance around the supplied mean.
func variance(xs []float64, mean float64) float64 {
	sum := 0.0
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return sum / float64(len(xs))
}

func stripDerived(k market.Kline) market.Kline {
	k.MA20, k.MA50, k.RSI14 = nil, nil, nil
	k.PriceChange, k.PriceChangePct = nil, nil
	k.ATR14, k.ATR14Pct = nil, nil
	k.Volatility20, k.Volatility20Pct = nil, nil
	return k
}

func rounded(v float64, places int) *float64 {
	scale := math.Pow(10, float64(places))
	r := math.Round(v*scale) / scale
	return &r
}
