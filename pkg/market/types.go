package market

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Kline is one canonical OHLCV bar. Field names and JSON keys are identical
// regardless of the source exchange; derived indicator fields stay nil until
// enough preceding bars exist, so absence is unambiguous in the output.
type Kline struct {
	Symbol      string  `json:"symbol"`
	OpenTime    int64   `json:"open_time"` // epoch ms
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      float64 `json:"volume"`
	CloseTime   int64   `json:"close_time"` // epoch ms
	QuoteVolume float64 `json:"quote_volume"`
	Trades      int64   `json:"trades"`

	MA20            *float64 `json:"ma20,omitempty"`
	MA50            *float64 `json:"ma50,omitempty"`
	RSI14           *float64 `json:"rsi14,omitempty"`
	PriceChange     *float64 `json:"price_change,omitempty"`
	PriceChangePct  *float64 `json:"price_change_pct,omitempty"`
	ATR14           *float64 `json:"atr14,omitempty"`
	ATR14Pct        *float64 `json:"atr14_pct,omitempty"`
	Volatility20    *float64 `json:"volatility_20,omitempty"`
	Volatility20Pct *float64 `json:"volatility_20_pct,omitempty"`
}

// validate checks the single-bar price/volume invariants.
func (k *Kline) validate() error {
	if k.Open <= 0 || k.High <= 0 || k.Low <= 0 || k.Close <= 0 {
		return fmt.Errorf("%w: bar at %d has non-positive price", ErrMalformedData, k.OpenTime)
	}
	if k.Volume < 0 {
		return fmt.Errorf("%w: bar at %d has negative volume", ErrMalformedData, k.OpenTime)
	}
	if k.Low > k.High {
		return fmt.Errorf("%w: bar at %d has low above high", ErrMalformedData, k.OpenTime)
	}
	if k.Open < k.Low || k.Open > k.High {
		return fmt.Errorf("%w: bar at %d has open outside low/high", ErrMalformedData, k.OpenTime)
	}
	if k.Close < k.Low || k.Close > k.High {
		return fmt.Errorf("%w: bar at %d has close outside low/high", ErrMalformedData, k.OpenTime)
	}
	return nil
}

// Series is an ordered sequence of bars for one (symbol, interval) pair,
// oldest first. A fresh Series is produced per fetch and never mutated.
type Series []Kline

// Validate enforces the canonical series invariants: strictly ascending
// open_time and per-bar price/volume sanity. Violations report ErrMalformedData.
func (s Series) Validate() error {
	for i := range s {
		if err := s[i].validate(); err != nil {
			return err
		}
		if i > 0 && s[i].OpenTime <= s[i-1].OpenTime {
			return fmt.Errorf("%w: open_time %d at index %d is not strictly increasing", ErrMalformedData, s[i].OpenTime, i)
		}
	}
	return nil
}

// Closes returns the close prices in series order.
func (s Series) Closes() []float64 {
	closes := make([]float64, len(s))
	for i := range s {
		closes[i] = s[i].Close
	}
	return closes
}

// Last returns the newest bar, or nil for an empty series.
func (s Series) Last() *Kline {
	if len(s) == 0 {
		return nil
	}
	return &s[len(s)-1]
}

// Ticker24h carries trailing 24-hour statistics for one symbol.
type Ticker24h struct {
	Symbol             string  `json:"symbol"`
	PriceChange        float64 `json:"priceChange"`
	PriceChangePercent float64 `json:"priceChangePercent"`
	LastPrice          float64 `json:"lastPrice"`
	HighPrice          float64 `json:"highPrice"`
	LowPrice           float64 `json:"lowPrice"`
	Volume             float64 `json:"volume"`
	QuoteVolume        float64 `json:"quoteVolume"`
	Count              int64   `json:"count,omitempty"`
	OpenPrice          float64 `json:"openPrice"`
	PrevClosePrice     float64 `json:"prevClosePrice"`
}

// FundingRate is the perpetual funding state for one symbol. Instruments
// without funding simply have no FundingRate in their document.
type FundingRate struct {
	Symbol          string  `json:"symbol"`
	LastFundingRate float64 `json:"lastFundingRate"`
	NextFundingTime int64   `json:"nextFundingTime"` // epoch ms
	MarkPrice       float64 `json:"markPrice"`
	IndexPrice      float64 `json:"indexPrice"`
}

// OpenInterest is the outstanding contract volume for one symbol.
type OpenInterest struct {
	Symbol       string  `json:"symbol"`
	OpenInterest float64 `json:"openInterest"`
	Timestamp    int64   `json:"timestamp"` // epoch ms
}

// BookLevel is one order-book price level.
type BookLevel struct {
	Price float64
	Qty   float64
}

// MarshalJSON encodes the level as a [price, qty] pair, the shape both
// exchanges and the output documents use.
func (l BookLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{l.Price, l.Qty})
}

// UnmarshalJSON accepts [price, qty] pairs with either string or numeric
// elements, covering raw exchange payloads and round-tripped documents.
func (l *BookLevel) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) < 2 {
		return fmt.Errorf("book level needs price and qty, got %d elements", len(raw))
	}
	price, err := levelValue(raw[0])
	if err != nil {
		return fmt.Errorf("book level price: %w", err)
	}
	qty, err := levelValue(raw[1])
	if err != nil {
		return fmt.Errorf("book level qty: %w", err)
	}
	l.Price = price
	l.Qty = qty
	return nil
}

func levelValue(v any) (float64, error) {
	switch val := v.(type) {
	case string:
		return strconv.ParseFloat(val, 64)
	case float64:
		return val, nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

// OrderBook is a depth snapshot, best price first on both sides.
type OrderBook struct {
	Symbol       string      `json:"symbol"`
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         []BookLevel `json:"bids"`
	Asks         []BookLevel `json:"asks"`
	BidTotalQty  float64     `json:"bid_total_qty"`
	AskTotalQty  float64     `json:"ask_total_qty"`
}

// PriceQuote is a minimal last-price answer for the quick price-only path.
type PriceQuote struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// TickerRow is one universe entry used for snapshot ranking. Count is only
// populated by exchanges that report a trade count.
type TickerRow struct {
	Symbol             string  `json:"symbol"`
	PriceChangePercent float64 `json:"priceChangePercent"`
	LastPrice          float64 `json:"lastPrice"`
	HighPrice          float64 `json:"highPrice"`
	LowPrice           float64 `json:"lowPrice"`
	Volume             float64 `json:"volume"`
	QuoteVolume        float64 `json:"quoteVolume"`
	OpenPrice          float64 `json:"openPrice"`
	Count              int64   `json:"count,omitempty"`
}

// Universe is the full ticker universe of one exchange at fetch time.
type Universe struct {
	Exchange  string      `json:"exchange"`
	FetchedAt time.Time   `json:"fetched_at"`
	Rows      []TickerRow `json:"rows"`
}

// SymbolMetrics groups the auxiliary per-symbol signals that accompany a
// kline series. Every field is independently optional: a missing signal is
// represented by nil, never by a sentinel value.
type SymbolMetrics struct {
	Ticker24h    *Ticker24h
	FundingRate  *FundingRate
	OpenInterest *OpenInterest
	CurrentPrice *PriceQuote
	OrderBook    *OrderBook
}

// SignalReport carries the objective technical labels derived from a
// document's series and metrics. Fields stay empty when the inputs needed
// to derive them are missing.
type SignalReport struct {
	RSIStatus      string   `json:"rsi_status,omitempty"`
	RSILevel       string   `json:"rsi_level,omitempty"`
	PriceVsMA20Pct *float64 `json:"price_vs_ma20_pct,omitempty"`
	PriceVsMA50Pct *float64 `json:"price_vs_ma50_pct,omitempty"`
	MA20VsMA50Pct  *float64 `json:"ma20_vs_ma50_pct,omitempty"`
	Trend          string   `json:"trend,omitempty"`
	VolumeRatio    float64  `json:"volume_ratio"`
	VolumeStatus   string   `json:"volume_status"`
}

// Document is the canonical per-(symbol, interval) output: an indicator-
// enriched series joined with the auxiliary symbol metrics plus request
// metadata.
type Document struct {
	Exchange     string        `json:"exchange"`
	Symbol       string        `json:"symbol"`
	Interval     string        `json:"interval"`
	GeneratedAt  string        `json:"generated_at"`
	Klines       Series        `json:"klines"`
	Ticker24h    *Ticker24h    `json:"ticker_24hr,omitempty"`
	FundingRate  *FundingRate  `json:"funding_rate,omitempty"`
	OpenInterest *OpenInterest `json:"open_interest,omitempty"`
	CurrentPrice *PriceQuote   `json:"current_price,omitempty"`
	OrderBook    *OrderBook    `json:"order_book,omitempty"`
	Signals      *SignalReport `json:"signals,omitempty"`
}

// Validate checks the identity fields every document must carry.
func (d *Document) Validate() error {
	if d.Exchange == "" {
		return fmt.Errorf("document: exchange is required")
	}
	if d.Symbol == "" {
		return fmt.Errorf("document: symbol is required")
	}
	if d.Interval == "" {
		return fmt.Errorf("document: interval is required")
	}
	return nil
}

// SnapshotFilters echoes the filter parameters a snapshot was built with.
type SnapshotFilters struct {
	QuoteAssets []string `json:"quote_assets"`
	Top         int      `json:"top"`
}

// Snapshot is the ranked market-wide view produced by the screener: top
// turnover, top gainers and top losers over one exchange's ticker universe.
type Snapshot struct {
	Exchange     string          `json:"exchange"`
	GeneratedAt  string          `json:"generated_at"`
	TotalSymbols int             `json:"total_symbols"`
	TopVolume    []TickerRow     `json:"top_volume"`
	TopGainers   []TickerRow     `json:"top_gainers"`
	TopLosers    []TickerRow     `json:"top_losers"`
	Tickers      []TickerRow     `json:"tickers,omitempty"`
	Filters      SnapshotFilters `json:"filters"`
}
