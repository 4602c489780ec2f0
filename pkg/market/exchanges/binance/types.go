package binance

import "perpscan/pkg/market"

// Ticker24hResponse mirrors /fapi/v1/ticker/24hr. Binance encodes prices and
// volumes as JSON strings; prevClosePrice is absent on the futures API and
// stays zero.
type Ticker24hResponse struct {
	Symbol             string  `json:"symbol"`
	PriceChange        float64 `json:"priceChange,string"`
	PriceChangePercent float64 `json:"priceChangePercent,string"`
	LastPrice          float64 `json:"lastPrice,string"`
	OpenPrice          float64 `json:"openPrice,string"`
	HighPrice          float64 `json:"highPrice,string"`
	LowPrice           float64 `json:"lowPrice,string"`
	Volume             float64 `json:"volume,string"`
	QuoteVolume        float64 `json:"quoteVolume,string"`
	PrevClosePrice     float64 `json:"prevClosePrice,string"`
	OpenTime           int64   `json:"openTime"`
	CloseTime          int64   `json:"closeTime"`
	Count              int64   `json:"count"`
}

// PremiumIndexResponse mirrors /fapi/v1/premiumIndex, the funding-rate source.
type PremiumIndexResponse struct {
	Symbol          string  `json:"symbol"`
	MarkPrice       float64 `json:"markPrice,string"`
	IndexPrice      float64 `json:"indexPrice,string"`
	LastFundingRate float64 `json:"lastFundingRate,string"`
	NextFundingTime int64   `json:"nextFundingTime"`
	Time            int64   `json:"time"`
}

// OpenInterestResponse mirrors /fapi/v1/openInterest.
type OpenInterestResponse struct {
	Symbol       string  `json:"symbol"`
	OpenInterest float64 `json:"openInterest,string"`
	Time         int64   `json:"time"`
}

// DepthResponse mirrors /fapi/v1/depth. Levels arrive as [price, qty] string
// pairs and decode straight into canonical book levels.
type DepthResponse struct {
	LastUpdateID int64              `json:"lastUpdateId"`
	EventTime    int64              `json:"E"`
	TradeTime    int64              `json:"T"`
	Bids         []market.BookLevel `json:"bids"`
	Asks         []market.BookLevel `json:"asks"`
}

// PriceResponse mirrors /fapi/v1/ticker/price.
type PriceResponse struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price,string"`
	Time   int64   `json:"time"`
}

// ExchangeInfoResponse carries the subset of /fapi/v1/exchangeInfo used for
// symbol listing.
type ExchangeInfoResponse struct {
	Symbols []SymbolInfo `json:"symbols"`
}

// SymbolInfo describes one listed contract.
type SymbolInfo struct {
	Symbol       string `json:"symbol"`
	Status       string `json:"status"`
	ContractType string `json:"contractType"`
	BaseAsset    string `json:"baseAsset"`
	QuoteAsset   string `json:"quoteAsset"`
}
