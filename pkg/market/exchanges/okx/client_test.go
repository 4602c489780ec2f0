package okx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpscan/pkg/market"
)

func TestNativeInterval(t *testing.T) {
	tests := []struct {
		canonical market.Interval
		want      string
	}{
		{market.Interval1m, "1m"},
		{market.Interval15m, "15m"},
		{market.Interval30m, "30m"},
		{market.Interval1h, "1H"},
		{market.Interval4h, "4H"},
		{market.Interval1d, "1D"},
		{market.Interval1w, "1W"},
		{market.Interval1M, "1M"},
	}
	for _, tt := range tests {
		t.Run(string(tt.canonical), func(t *testing.T) {
			assert.Equal(t, tt.want, nativeInterval(tt.canonical))
		})
	}
}

func TestClientGetKlines(t *testing.T) {
	server, client := newMockOKXServer(t)
	defer server.Close()

	ctx := context.Background()
	series, err := client.GetKlines(ctx, "btc-usdt-swap", market.Interval1h, 30)
	require.NoError(t, err)
	require.Len(t, series, 30)
	require.NoError(t, series.Validate())

	// The wire carries newest first; the series must come back ascending.
	first, last := series[0], series[len(series)-1]
	require.Equal(t, "BTC-USDT-SWAP", first.Symbol)
	require.True(t, first.OpenTime < last.OpenTime)
	require.InDelta(t, 130.0, first.Close, 1e-9)
	require.InDelta(t, 159.0, last.Close, 1e-9)
	require.Equal(t, first.OpenTime+1, first.CloseTime)
	require.EqualValues(t, 159, last.Trades)
	require.InDelta(t, float64(159)*(100+59), last.QuoteVolume, 1e-6)
}

func TestClientSendsNativeBarToken(t *testing.T) {
	var gotBar string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBar = r.URL.Query().Get("bar")
		writeEnvelope(w, [][]string{candleRow(1700000000000, 100, 10)})
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.GetKlines(context.Background(), "BTC-USDT-SWAP", market.Interval4h, 1)
	require.NoError(t, err)
	assert.Equal(t, "4H", gotBar)

	_, err = client.GetKlines(context.Background(), "BTC-USDT-SWAP", market.Interval1M, 1)
	require.NoError(t, err)
	assert.Equal(t, "1M", gotBar)
}

func TestClientGetKlinesRejectsMalformedRows(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
	}{
		{
			name: "short row",
			rows: [][]string{{"1700000000000", "1", "2", "0.5", "1.5", "10"}},
		},
		{
			name: "unparsable timestamp",
			rows: [][]string{candleRowRaw("later", "1", "2", "0.5", "1.5", "10", "15", "3")},
		},
		{
			name: "unparsable price",
			rows: [][]string{candleRowRaw("1700000000000", "abc", "2", "0.5", "1.5", "10", "15", "3")},
		},
		{
			name: "duplicate open_time",
			rows: [][]string{
				candleRowRaw("1700000000000", "1.5", "2.5", "1", "2", "11", "22", "4"),
				candleRowRaw("1700000000000", "1", "2", "0.5", "1.5", "10", "15", "3"),
			},
		},
		{
			name: "negative volume",
			rows: [][]string{candleRowRaw("1700000000000", "1", "2", "0.5", "1.5", "-10", "15", "3")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, tt.rows)
			}))
			defer server.Close()

			client := newTestClient(server)
			_, err := client.GetKlines(context.Background(), "BTC-USDT-SWAP", market.Interval1h, 10)
			require.Error(t, err)
			assert.True(t, errors.Is(err, market.ErrMalformedData), "got %v", err)
		})
	}
}

func TestClientGetTicker24h(t *testing.T) {
	server, client := newMockOKXServer(t)
	defer server.Close()

	ticker, err := client.GetTicker24h(context.Background(), "btc-usdt-swap")
	require.NoError(t, err)
	require.Equal(t, "BTC-USDT-SWAP", ticker.Symbol)
	require.InDelta(t, 50000.0, ticker.LastPrice, 1e-9)
	require.InDelta(t, 2000.0, ticker.PriceChange, 1e-9)
	require.InDelta(t, 2000.0/48000.0*100, ticker.PriceChangePercent, 1e-9)
	require.InDelta(t, 51000.0, ticker.HighPrice, 1e-9)
	require.InDelta(t, 47500.0, ticker.LowPrice, 1e-9)
	require.InDelta(t, 120000.0, ticker.Volume, 1e-9)
	require.InDelta(t, 98000000.0, ticker.QuoteVolume, 1e-9)
	require.InDelta(t, 48000.0, ticker.OpenPrice, 1e-9)
	require.InDelta(t, 48000.0, ticker.PrevClosePrice, 1e-9)
}

func TestClientGetFundingRate(t *testing.T) {
	server, client := newMockOKXServer(t)
	defer server.Close()

	funding, err := client.GetFundingRate(context.Background(), "BTC-USDT-SWAP")
	require.NoError(t, err)
	require.Equal(t, "BTC-USDT-SWAP", funding.Symbol)
	require.InDelta(t, 0.0001, funding.LastFundingRate, 1e-12)
	require.EqualValues(t, 1597059600000, funding.NextFundingTime)
	require.InDelta(t, 11000.5, funding.MarkPrice, 1e-9)
	require.InDelta(t, 10999.2, funding.IndexPrice, 1e-9)
}

func TestClientGetFundingRateEmptyData(t *testing.T) {
	server, client := newMockOKXServer(t)
	defer server.Close()

	// Spot pairs have no funding; OKX answers with an empty data array.
	_, err := client.GetFundingRate(context.Background(), "BTC-USDT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty funding rate data")
}

func TestClientGetOpenInterest(t *testing.T) {
	server, client := newMockOKXServer(t)
	defer server.Close()

	oi, err := client.GetOpenInterest(context.Background(), "BTC-USDT-SWAP")
	require.NoError(t, err)
	require.Equal(t, "BTC-USDT-SWAP", oi.Symbol)
	require.InDelta(t, 1100000.0, oi.OpenInterest, 1e-9)
	require.EqualValues(t, 1597026383085, oi.Timestamp)
}

func TestClientGetOrderBook(t *testing.T) {
	server, client := newMockOKXServer(t)
	defer server.Close()

	book, err := client.GetOrderBook(context.Background(), "btc-usdt-swap", 5)
	require.NoError(t, err)
	require.Equal(t, "BTC-USDT-SWAP", book.Symbol)
	require.EqualValues(t, 1597026383085, book.LastUpdateID)
	require.Len(t, book.Bids, 2)
	require.Len(t, book.Asks, 2)

	// Four-element wire levels decode down to price and size.
	require.InDelta(t, 50000.0, book.Bids[0].Price, 1e-9)
	require.InDelta(t, 1.5, book.Bids[0].Qty, 1e-9)
	require.InDelta(t, 3.5, book.BidTotalQty, 1e-9)
	require.InDelta(t, 3.75, book.AskTotalQty, 1e-9)
}

func TestClientGetPrice(t *testing.T) {
	server, client := newMockOKXServer(t)
	defer server.Close()

	quote, err := client.GetPrice(context.Background(), "BTC-USDT-SWAP")
	require.NoError(t, err)
	require.Equal(t, "BTC-USDT-SWAP", quote.Symbol)
	require.InDelta(t, 50000.0, quote.Price, 1e-9)
}

func TestClientListSymbols(t *testing.T) {
	server, client := newMockOKXServer(t)
	defer server.Close()

	ctx := context.Background()

	all, err := client.ListSymbols(ctx, market.SymbolFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC-USDT-SWAP", "ETH-USD-SWAP"}, all)

	usdt, err := client.ListSymbols(ctx, market.SymbolFilter{QuoteAssets: []string{"usdt"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC-USDT-SWAP"}, usdt)

	futures, err := client.ListSymbols(ctx, market.SymbolFilter{InstType: "FUTURES"})
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC-USDT-240628"}, futures)
}

func TestClientGetUniverse(t *testing.T) {
	server, client := newMockOKXServer(t)
	defer server.Close()

	ctx := context.Background()

	universe, err := client.GetUniverse(ctx, market.SymbolFilter{QuoteAssets: []string{"USDT"}})
	require.NoError(t, err)
	require.Equal(t, "okx", universe.Exchange)
	require.Len(t, universe.Rows, 2)
	assert.Equal(t, "BTC-USDT-SWAP", universe.Rows[0].Symbol)
	assert.Equal(t, "ETH-USDT-SWAP", universe.Rows[1].Symbol)
	assert.InDelta(t, 2000.0/48000.0*100, universe.Rows[0].PriceChangePercent, 1e-9)
	assert.InDelta(t, -100.0/3100.0*100, universe.Rows[1].PriceChangePercent, 1e-9)

	// Without a quote filter the USD-margined swap shows up; the row with
	// broken numerics never does.
	unfiltered, err := client.GetUniverse(ctx, market.SymbolFilter{})
	require.NoError(t, err)
	require.Len(t, unfiltered.Rows, 3)
}

func TestClientAPIErrorIsTerminal(t *testing.T) {
	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		writeJSON(w, map[string]interface{}{
			"code": "51001",
			"msg":  "Instrument ID does not exist",
			"data": []interface{}{},
		})
	}))
	defer server.Close()

	client := NewClient(
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
		WithMaxRetries(2),
		WithLimiter(market.NewLimiter(0, 0)),
	)

	_, err := client.GetTicker24h(context.Background(), "NOPE-USDT-SWAP")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "51001")
	assert.Contains(t, err.Error(), "Instrument ID does not exist")

	// The exchange rejected the request outright; retrying is pointless.
	assert.Equal(t, 1, callCount)
}

func TestClientDoRequestRetry(t *testing.T) {
	tests := []struct {
		name        string
		setupServer func() *httptest.Server
		maxRetries  int
		wantErr     bool
		errContains string
	}{
		{
			name: "successful after retry",
			setupServer: func() *httptest.Server {
				callCount := 0
				return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					callCount++
					if callCount < 2 {
						w.WriteHeader(http.StatusInternalServerError)
						return
					}
					writeEnvelope(w, []map[string]string{{"instId": "BTC-USDT-SWAP", "last": "1.5"}})
				}))
			},
			maxRetries: 2,
			wantErr:    false,
		},
		{
			name: "fail after max retries",
			setupServer: func() *httptest.Server {
				return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusBadGateway)
				}))
			},
			maxRetries:  1,
			wantErr:     true,
			errContains: "http status 502",
		},
		{
			name: "context timeout during retry",
			setupServer: func() *httptest.Server {
				return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					time.Sleep(200 * time.Millisecond)
					writeEnvelope(w, []map[string]string{})
				}))
			},
			maxRetries:  2,
			wantErr:     true,
			errContains: "context deadline exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := tt.setupServer()
			defer server.Close()

			client := NewClient(
				WithBaseURL(server.URL),
				WithHTTPClient(server.Client()),
				WithMaxRetries(tt.maxRetries),
				WithLimiter(market.NewLimiter(0, 0)),
			)

			ctx := context.Background()
			if tt.name == "context timeout during retry" {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, 100*time.Millisecond)
				defer cancel()
			}

			var result []TickerData
			err := client.doRequest(ctx, "/api/v5/market/ticker", nil, &result)

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// --- helpers ---

func newTestClient(server *httptest.Server) *Client {
	return NewClient(
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
		WithMaxRetries(0),
		WithLimiter(market.NewLimiter(0, 0)),
	)
}

func newMockOKXServer(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v5/market/candles", func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 || limit > 60 {
			limit = 60
		}
		// Newest first, the way the exchange answers.
		rows := make([][]string, 0, limit)
		for i := 59; i >= 60-limit; i-- {
			openTime := int64(1_700_000_000_000) + int64(i)*3_600_000
			rows = append(rows, candleRow(openTime, 100.0+float64(i), 100+float64(i)))
		}
		writeEnvelope(w, rows)
	})
	mux.HandleFunc("/api/v5/market/ticker", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, []map[string]interface{}{
			{
				"instId":    "BTC-USDT-SWAP",
				"instType":  "SWAP",
				"last":      "50000",
				"open24h":   "48000",
				"high24h":   "51000",
				"low24h":    "47500",
				"vol24h":    "120000",
				"volCcy24h": "98000000",
				"ts":        "1597026383085",
			},
		})
	})
	mux.HandleFunc("/api/v5/public/funding-rate", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("instId") == "BTC-USDT" {
			writeEnvelope(w, []map[string]interface{}{})
			return
		}
		writeEnvelope(w, []map[string]interface{}{
			{
				"instId":          "BTC-USDT-SWAP",
				"fundingRate":     "0.0001",
				"nextFundingTime": "1597059600000",
				"markPx":          "11000.5",
				"idxPx":           "10999.2",
			},
		})
	})
	mux.HandleFunc("/api/v5/public/open-interest", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, []map[string]interface{}{
			{
				"instId": "BTC-USDT-SWAP",
				"oi":     "1100000",
				"oiCcy":  "11000",
				"ts":     "1597026383085",
			},
		})
	})
	mux.HandleFunc("/api/v5/market/books", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, []map[string]interface{}{
			{
				"bids": [][]string{{"50000", "1.5", "0", "3"}, {"49990", "2", "0", "1"}},
				"asks": [][]string{{"50010", "0.5", "0", "2"}, {"50020", "3.25", "0", "1"}},
				"ts":   "1597026383085",
			},
		})
	})
	mux.HandleFunc("/api/v5/public/instruments", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("instType") == "FUTURES" {
			writeEnvelope(w, []map[string]interface{}{
				{"instId": "BTC-USDT-240628", "instType": "FUTURES", "state": "live"},
			})
			return
		}
		writeEnvelope(w, []map[string]interface{}{
			{"instId": "BTC-USDT-SWAP", "instType": "SWAP", "state": "live"},
			{"instId": "ETH-USD-SWAP", "instType": "SWAP", "state": "live"},
			{"instId": "DOGE-USDT-SWAP", "instType": "SWAP", "state": "suspend"},
		})
	})
	mux.HandleFunc("/api/v5/market/tickers", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, []map[string]interface{}{
			{
				"instId":    "BTC-USDT-SWAP",
				"last":      "50000",
				"open24h":   "48000",
				"high24h":   "51000",
				"low24h":    "47500",
				"vol24h":    "120000",
				"volCcy24h": "98000000",
				"ts":        "1597026383085",
			},
			{
				"instId":    "ETH-USDT-SWAP",
				"last":      "3000",
				"open24h":   "3100",
				"high24h":   "3150",
				"low24h":    "2950",
				"vol24h":    "300000",
				"volCcy24h": "9000000",
				"ts":        "1597026383085",
			},
			{
				"instId": "BROKEN-USDT-SWAP",
				"last":   "oops",
			},
			{
				"instId":    "SOL-USD-SWAP",
				"last":      "140",
				"open24h":   "150",
				"high24h":   "151",
				"low24h":    "139",
				"vol24h":    "50000",
				"volCcy24h": "700000",
				"ts":        "1597026383085",
			},
		})
	})

	server := httptest.NewServer(mux)
	return server, newTestClient(server)
}

// candleRow builds a positional candle entry the way the exchange encodes
// it: every element a string, with volCcyQuote carrying a fractional value
// that truncates to the trade count.
func candleRow(openTime int64, close, volume float64) []string {
	return []string{
		strconv.FormatInt(openTime, 10),
		formatFloat(close - 0.5),
		formatFloat(close + 1),
		formatFloat(close - 1),
		formatFloat(close),
		formatFloat(volume),
		formatFloat(close * volume),
		formatFloat(volume + 0.9),
		"1",
	}
}

func candleRowRaw(ts, open, high, low, close, volume, quoteVolume, trades string) []string {
	return []string{ts, open, high, low, close, volume, quoteVolume, trades, "1"}
}

func formatFloat(val float64) string {
	return strconv.FormatFloat(val, 'f', -1, 64)
}

func writeEnvelope(w http.ResponseWriter, data interface{}) {
	writeJSON(w, map[string]interface{}{"code": "0", "msg": "", "data": data})
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
