package binance

import (
	"context"
	"math"
	"net/url"
	"strconv"

	"perpscan/pkg/market"
)

// GetTicker24h returns rolling 24-hour statistics for one symbol.
func (c *Client) GetTicker24h(ctx context.Context, symbol string) (*market.Ticker24h, error) {
	canonical := canonicalSymbol(symbol)
	query := url.Values{}
	query.Set("symbol", canonical)

	var resp Ticker24hResponse
	if err := c.doRequest(ctx, "/fapi/v1/ticker/24hr", query, &resp); err != nil {
		return nil, err
	}
	if resp.Symbol == "" {
		resp.Symbol = canonical
	}
	return &market.Ticker24h{
		Symbol:             resp.Symbol,
		PriceChange:        resp.PriceChange,
		PriceChangePercent: resp.PriceChangePercent,
		LastPrice:          resp.LastPrice,
		HighPrice:          resp.HighPrice,
		LowPrice:           resp.LowPrice,
		Volume:             resp.Volume,
		QuoteVolume:        resp.QuoteVolume,
		Count:              resp.Count,
		OpenPrice:          resp.OpenPrice,
		PrevClosePrice:     resp.PrevClosePrice,
	}, nil
}

// GetFundingRate returns the current funding state from the premium index.
func (c *Client) GetFundingRate(ctx context.Context, symbol string) (*market.FundingRate, error) {
	canonical := canonicalSymbol(symbol)
	query := url.Values{}
	query.Set("symbol", canonical)

	var resp PremiumIndexResponse
	if err := c.doRequest(ctx, "/fapi/v1/premiumIndex", query, &resp); err != nil {
		return nil, err
	}
	if resp.Symbol == "" {
		resp.Symbol = canonical
	}
	return &market.FundingRate{
		Symbol:          resp.Symbol,
		LastFundingRate: resp.LastFundingRate,
		NextFundingTime: resp.NextFundingTime,
		MarkPrice:       resp.MarkPrice,
		IndexPrice:      resp.IndexPrice,
	}, nil
}

// GetOpenInterest returns the outstanding contract volume for one symbol.
func (c *Client) GetOpenInterest(ctx context.Context, symbol string) (*market.OpenInterest, error) {
	canonical := canonicalSymbol(symbol)
	query := url.Values{}
	query.Set("symbol", canonical)

	var resp OpenInterestResponse
	if err := c.doRequest(ctx, "/fapi/v1/openInterest", query, &resp); err != nil {
		return nil, err
	}
	if resp.Symbol == "" {
		resp.Symbol = canonical
	}
	return &market.OpenInterest{
		Symbol:       resp.Symbol,
		OpenInterest: resp.OpenInterest,
		Timestamp:    resp.Time,
	}, nil
}

// GetOrderBook returns a depth snapshot with up to depth levels per side.
func (c *Client) GetOrderBook(ctx context.Context, symbol string, depth int) (*market.OrderBook, error) {
	canonical := canonicalSymbol(symbol)
	query := url.Values{}
	query.Set("symbol", canonical)
	if depth > 0 {
		query.Set("limit", strconv.Itoa(depth))
	}

	var resp DepthResponse
	if err := c.doRequest(ctx, "/fapi/v1/depth", query, &resp); err != nil {
		return nil, err
	}
	return &market.OrderBook{
		Symbol:       canonical,
		LastUpdateID: resp.LastUpdateID,
		Bids:         resp.Bids,
		Asks:         resp.Asks,
		BidTotalQty:  totalQty(resp.Bids),
		AskTotalQty:  totalQty(resp.Asks),
	}, nil
}

// GetPrice returns the latest traded price.
func (c *Client) GetPrice(ctx context.Context, symbol string) (*market.PriceQuote, error) {
	canonical := canonicalSymbol(symbol)
	query := url.Values{}
	query.Set("symbol", canonical)

	var resp PriceResponse
	if err := c.doRequest(ctx, "/fapi/v1/ticker/price", query, &resp); err != nil {
		return nil, err
	}
	if resp.Symbol == "" {
		resp.Symbol = canonical
	}
	return &market.PriceQuote{Symbol: resp.Symbol, Price: resp.Price}, nil
}

func totalQty(levels []market.BookLevel) float64 {
	sum := 0.0
	for _, level := range levels {
		sum += level.Qty
	}
	return round8(sum)
}

func round8(v float64) float64 {
	return math.Round(v*1e8) / 1e8
}
