package okx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpscan/pkg/market"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name         string
		opts         []ProviderOption
		wantTimeout  time.Duration
		validateFunc func(*testing.T, *Provider)
	}{
		{
			name:        "default configuration",
			opts:        nil,
			wantTimeout: defaultProviderTimeout,
		},
		{
			name:        "custom timeout",
			opts:        []ProviderOption{WithTimeout(5 * time.Second)},
			wantTimeout: 5 * time.Second,
		},
		{
			name: "with client options",
			opts: []ProviderOption{
				WithClientOptions(WithMaxRetries(2)),
				WithTimeout(10 * time.Second),
			},
			wantTimeout: 10 * time.Second,
			validateFunc: func(t *testing.T, p *Provider) {
				assert.Equal(t, 2, p.client.maxRetries)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := NewProvider(tt.opts...)
			assert.NotNil(t, provider)
			assert.NotNil(t, provider.client)
			assert.Equal(t, tt.wantTimeout, provider.timeout)
			assert.Equal(t, defaultOrderBookDepth, provider.bookDepth)
			if tt.validateFunc != nil {
				tt.validateFunc(t, provider)
			}
		})
	}
}

func TestProviderBuiltFromConfig(t *testing.T) {
	cfg := &market.Config{
		Default: "okx-main",
		Providers: map[string]*market.ProviderConfig{
			"okx-main": {
				Type:           "okx",
				MaxRetries:     2,
				QuoteAssets:    []string{"USDT"},
				InstType:       "SWAP",
				OrderBookDepth: 10,
			},
		},
	}
	providers, err := cfg.BuildProviders()
	require.NoError(t, err)
	require.Contains(t, providers, "okx-main")

	provider, ok := providers["okx-main"].(*Provider)
	require.True(t, ok)
	assert.Equal(t, "okx-main", provider.Name())
	assert.Equal(t, []string{"USDT"}, provider.quoteAssets)
	assert.Equal(t, "SWAP", provider.instType)
	assert.Equal(t, 10, provider.bookDepth)
	assert.Equal(t, 2, provider.client.maxRetries)
}

func TestProviderUniverseCachesAndAppliesDefaults(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeEnvelope(w, []map[string]interface{}{
			{
				"instId":    "BTC-USDT-SWAP",
				"last":      "50000",
				"open24h":   "49500",
				"high24h":   "51000",
				"low24h":    "49000",
				"vol24h":    "10",
				"volCcy24h": "500000",
				"ts":        "1597026383085",
			},
			{
				"instId":    "ETH-USDC-SWAP",
				"last":      "3000",
				"open24h":   "2941.17",
				"high24h":   "3100",
				"low24h":    "2900",
				"vol24h":    "20",
				"volCcy24h": "60000",
				"ts":        "1597026383085",
			},
		})
	}))
	defer server.Close()

	provider := NewProvider(WithClientOptions(
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
		WithMaxRetries(0),
		WithLimiter(market.NewLimiter(0, 0)),
	))
	provider.quoteAssets = []string{"USDT"}

	ctx := context.Background()
	first, err := provider.Universe(ctx, market.SymbolFilter{})
	require.NoError(t, err)
	require.Len(t, first.Rows, 1, "configured quote default should filter the USDC pair")
	assert.Equal(t, "BTC-USDT-SWAP", first.Rows[0].Symbol)

	second, err := provider.Universe(ctx, market.SymbolFilter{})
	require.NoError(t, err)
	require.Len(t, second.Rows, 1)
	assert.EqualValues(t, 1, hits.Load(), "second call within the TTL must come from cache")

	// Mutating the returned copy must not poison the cache.
	second.Rows[0].Symbol = "MUTATED"
	third, err := provider.Universe(ctx, market.SymbolFilter{})
	require.NoError(t, err)
	assert.Equal(t, "BTC-USDT-SWAP", third.Rows[0].Symbol)

	// An explicit filter bypasses the configured default and its cache key.
	all, err := provider.Universe(ctx, market.SymbolFilter{QuoteAssets: []string{"USDC"}})
	require.NoError(t, err)
	require.Len(t, all.Rows, 1)
	assert.Equal(t, "ETH-USDC-SWAP", all.Rows[0].Symbol)
	assert.EqualValues(t, 2, hits.Load())
}

func TestProviderOrderBookAppliesDefaultDepth(t *testing.T) {
	var gotSize atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSize.Store(r.URL.Query().Get("sz"))
		writeEnvelope(w, []map[string]interface{}{
			{
				"bids": [][]string{{"1.0", "2.0", "0", "1"}},
				"asks": [][]string{{"1.1", "3.0", "0", "1"}},
				"ts":   "1",
			},
		})
	}))
	defer server.Close()

	provider := NewProvider(WithClientOptions(
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
		WithMaxRetries(0),
		WithLimiter(market.NewLimiter(0, 0)),
	))
	provider.bookDepth = 25

	_, err := provider.OrderBook(context.Background(), "BTC-USDT-SWAP", 0)
	require.NoError(t, err)
	assert.Equal(t, "25", gotSize.Load())

	_, err = provider.OrderBook(context.Background(), "BTC-USDT-SWAP", 5)
	require.NoError(t, err)
	assert.Equal(t, "5", gotSize.Load())
}

func TestProviderSymbolListAppliesInstTypeDefault(t *testing.T) {
	var hits atomic.Int64
	var gotInstType atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gotInstType.Store(r.URL.Query().Get("instType"))
		writeEnvelope(w, []map[string]interface{}{
			{"instId": "BTC-USDT-SWAP", "instType": "SWAP", "state": "live"},
		})
	}))
	defer server.Close()

	provider := NewProvider(WithClientOptions(
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
		WithMaxRetries(0),
		WithLimiter(market.NewLimiter(0, 0)),
	))
	provider.instType = "SWAP"

	ctx := context.Background()
	symbols, err := provider.ListSymbols(ctx, market.SymbolFilter{QuoteAssets: []string{"USDT"}})
	require.NoError(t, err)
	require.Equal(t, []string{"BTC-USDT-SWAP"}, symbols)
	assert.Equal(t, "SWAP", gotInstType.Load())

	again, err := provider.ListSymbols(ctx, market.SymbolFilter{QuoteAssets: []string{"USDT"}})
	require.NoError(t, err)
	require.Equal(t, symbols, again)
	assert.EqualValues(t, 1, hits.Load())
}

type recordingPersistence struct {
	upserts atomic.Int64
}

func (r *recordingPersistence) UpsertSymbols(ctx context.Context, exchange string, rows []market.TickerRow) error {
	r.upserts.Add(1)
	return nil
}

func (r *recordingPersistence) RecordDocument(ctx context.Context, exchange string, doc *market.Document) error {
	return nil
}

func (r *recordingPersistence) RecordSnapshot(ctx context.Context, exchange string, snap *market.Snapshot) error {
	return nil
}

func TestProviderUniversePersistenceHook(t *testing.T) {
	server, client := newMockOKXServer(t)
	defer server.Close()

	provider := NewProvider()
	provider.client = client

	persist := &recordingPersistence{}
	provider.SetPersistence(persist)

	_, err := provider.Universe(context.Background(), market.SymbolFilter{QuoteAssets: []string{"USDT"}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, persist.upserts.Load())

	// Cached reads must not re-trigger persistence.
	_, err = provider.Universe(context.Background(), market.SymbolFilter{QuoteAssets: []string{"USDT"}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, persist.upserts.Load())
}
