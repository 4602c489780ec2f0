package okx

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"

	"perpscan/pkg/market"
)

// GetTicker24h returns rolling 24-hour statistics for one instrument. The
// change fields are derived from last and open24h; OKX has no prior close,
// so open24h doubles as the previous close.
func (c *Client) GetTicker24h(ctx context.Context, symbol string) (*market.Ticker24h, error) {
	canonical := canonicalSymbol(symbol)
	query := url.Values{}
	query.Set("instId", canonical)

	var data []TickerData
	if err := c.doRequest(ctx, "/api/v5/market/ticker", query, &data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("okx: empty ticker data for %s", canonical)
	}

	tick := data[0]
	instID := tick.InstID
	if instID == "" {
		instID = canonical
	}
	return &market.Ticker24h{
		Symbol:             instID,
		PriceChange:        tick.Last - tick.Open24h,
		PriceChangePercent: changePercent(tick.Last, tick.Open24h),
		LastPrice:          tick.Last,
		HighPrice:          tick.High24h,
		LowPrice:           tick.Low24h,
		Volume:             tick.Vol24h,
		QuoteVolume:        tick.VolCcy24h,
		OpenPrice:          tick.Open24h,
		PrevClosePrice:     tick.Open24h,
	}, nil
}

// GetFundingRate returns the current funding state. Only swap instruments
// carry funding; spot or index IDs come back with an empty data array.
func (c *Client) GetFundingRate(ctx context.Context, symbol string) (*market.FundingRate, error) {
	canonical := canonicalSymbol(symbol)
	query := url.Values{}
	query.Set("instId", canonical)

	var data []FundingData
	if err := c.doRequest(ctx, "/api/v5/public/funding-rate", query, &data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("okx: empty funding rate data for %s (funding needs a swap instrument like BTC-USDT-SWAP)", canonical)
	}

	funding := data[0]
	instID := funding.InstID
	if instID == "" {
		instID = canonical
	}
	return &market.FundingRate{
		Symbol:          instID,
		LastFundingRate: funding.FundingRate,
		NextFundingTime: funding.NextFundingTime,
		MarkPrice:       funding.MarkPx,
		IndexPrice:      funding.IdxPx,
	}, nil
}

// GetOpenInterest returns the outstanding contract volume for one instrument.
func (c *Client) GetOpenInterest(ctx context.Context, symbol string) (*market.OpenInterest, error) {
	canonical := canonicalSymbol(symbol)
	query := url.Values{}
	query.Set("instId", canonical)

	var data []OIData
	if err := c.doRequest(ctx, "/api/v5/public/open-interest", query, &data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("okx: empty open interest data for %s (expects a contract instrument like BTC-USDT-SWAP)", canonical)
	}

	oi := data[0]
	instID := oi.InstID
	if instID == "" {
		instID = canonical
	}
	return &market.OpenInterest{
		Symbol:       instID,
		OpenInterest: oi.Oi,
		Timestamp:    oi.Ts,
	}, nil
}

// GetOrderBook returns a depth snapshot with up to depth levels per side.
// The books payload has no update sequence, so the exchange timestamp
// stands in as the update ID.
func (c *Client) GetOrderBook(ctx context.Context, symbol string, depth int) (*market.OrderBook, error) {
	canonical := canonicalSymbol(symbol)
	query := url.Values{}
	query.Set("instId", canonical)
	if depth > 0 {
		query.Set("sz", strconv.Itoa(depth))
	}

	var data []BookData
	if err := c.doRequest(ctx, "/api/v5/market/books", query, &data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("okx: empty order book data for %s", canonical)
	}

	book := data[0]
	return &market.OrderBook{
		Symbol:       canonical,
		LastUpdateID: book.Ts,
		Bids:         book.Bids,
		Asks:         book.Asks,
		BidTotalQty:  totalQty(book.Bids),
		AskTotalQty:  totalQty(book.Asks),
	}, nil
}

// GetPrice returns the latest traded price.
func (c *Client) GetPrice(ctx context.Context, symbol string) (*market.PriceQuote, error) {
	canonical := canonicalSymbol(symbol)
	query := url.Values{}
	query.Set("instId", canonical)

	var data []TickerData
	if err := c.doRequest(ctx, "/api/v5/market/ticker", query, &data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("okx: empty ticker data for %s", canonical)
	}

	tick := data[0]
	instID := tick.InstID
	if instID == "" {
		instID = canonical
	}
	return &market.PriceQuote{Symbol: instID, Price: tick.Last}, nil
}

// changePercent derives the 24h percent move from the session open.
func changePercent(last, open float64) float64 {
	if open == 0 {
		return 0
	}
	return (last - open) / open * 100
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
