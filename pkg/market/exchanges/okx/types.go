package okx

import "perpscan/pkg/market"

// TickerData is one /api/v5/market/ticker(s) entry. OKX encodes every
// numeric as a JSON string. There is no 24h change field on the wire; the
// adapter derives it from last and open24h.
type TickerData struct {
	InstID    string  `json:"instId"`
	InstType  string  `json:"instType"`
	Last      float64 `json:"last,string"`
	Open24h   float64 `json:"open24h,string"`
	High24h   float64 `json:"high24h,string"`
	Low24h    float64 `json:"low24h,string"`
	Vol24h    float64 `json:"vol24h,string"`
	VolCcy24h float64 `json:"volCcy24h,string"`
	Ts        int64   `json:"ts,string"`
}

// FundingData is one /api/v5/public/funding-rate entry.
type FundingData struct {
	InstID          string  `json:"instId"`
	FundingRate     float64 `json:"fundingRate,string"`
	NextFundingTime int64   `json:"nextFundingTime,string"`
	MarkPx          float64 `json:"markPx,string"`
	IdxPx           float64 `json:"idxPx,string"`
}

// OIData is one /api/v5/public/open-interest entry.
type OIData struct {
	InstID string  `json:"instId"`
	Oi     float64 `json:"oi,string"`
	OiCcy  float64 `json:"oiCcy,string"`
	Ts     int64   `json:"ts,string"`
}

// BookData is one /api/v5/market/books entry. Levels arrive as arrays with
// price and size first and extra per-level counters after, which the
// canonical level decoder ignores. The payload carries no instrument ID.
type BookData struct {
	Bids []market.BookLevel `json:"bids"`
	Asks []market.BookLevel `json:"asks"`
	Ts   int64              `json:"ts,string"`
}

// InstrumentData is the subset of /api/v5/public/instruments used for
// symbol listing.
type InstrumentData struct {
	InstID   string `json:"instId"`
	InstType string `json:"instType"`
	State    string `json:"state"`
}
