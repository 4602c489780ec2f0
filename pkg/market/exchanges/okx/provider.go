package okx

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"perpscan/pkg/market"
)

const (
	defaultProviderTimeout = 8 * time.Second
	defaultOrderBookDepth  = 20

	universeCacheTTL = 15 * time.Second
	symbolsCacheTTL  = 5 * time.Minute
)

// Provider adapts the OKX client to the generic market.Provider contract.
type Provider struct {
	client      *Client
	timeout     time.Duration
	persistence market.Persistence
	providerID  string

	quoteAssets []string
	instType    string
	bookDepth   int

	cacheMu   sync.RWMutex
	universes map[string]cachedUniverse
	symbols   map[string]cachedSymbols
}

type providerConfig struct {
	timeout      time.Duration
	clientConfig []Option
}

// ProviderOption customises the OKX provider.
type ProviderOption func(*providerConfig)

// WithTimeout overrides the default per-call timeout.
func WithTimeout(timeout time.Duration) ProviderOption {
	return func(cfg *providerConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

// WithClientOptions passes options to the underlying OKX client.
func WithClientOptions(options ...Option) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.clientConfig = append(cfg.clientConfig, options...)
	}
}

// NewProvider constructs an OKX market provider.
func NewProvider(opts ...ProviderOption) *Provider {
	cfg := &providerConfig{
		timeout: defaultProviderTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Provider{
		client:    NewClient(cfg.clientConfig...),
		timeout:   cfg.timeout,
		bookDepth: defaultOrderBookDepth,
		universes: make(map[string]cachedUniverse),
		symbols:   make(map[string]cachedSymbols),
	}
}

func init() {
	market.RegisterProvider("okx", func(name string, cfg *market.ProviderConfig) (market.Provider, error) {
		opts := []ProviderOption{}
		clientOptions := []Option{}
		if cfg.Timeout > 0 {
			opts = append(opts, WithTimeout(cfg.Timeout))
		}
		if cfg.HTTPTimeout > 0 {
			clientOptions = append(clientOptions, WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
		}
		if cfg.BaseURL != "" {
			clientOptions = append(clientOptions, WithBaseURL(cfg.BaseURL))
		}
		if cfg.MaxRetries > 0 {
			clientOptions = append(clientOptions, WithMaxRetries(cfg.MaxRetries))
		}
		if cfg.MaxConcurrent > 0 || cfg.MinInterval > 0 {
			maxConcurrent := cfg.MaxConcurrent
			if maxConcurrent <= 0 {
				maxConcurrent = defaultMaxConcurrent
			}
			minInterval := cfg.MinInterval
			if minInterval <= 0 {
				minInterval = defaultMinInterval
			}
			clientOptions = append(clientOptions, WithLimiter(market.NewLimiter(maxConcurrent, minInterval)))
		}
		if len(clientOptions) > 0 {
			opts = append(opts, WithClientOptions(clientOptions...))
		}

		provider := NewProvider(opts...)
		provider.providerID = name
		provider.quoteAssets = append([]string(nil), cfg.QuoteAssets...)
		provider.instType = cfg.InstType
		if cfg.OrderBookDepth > 0 {
			provider.bookDepth = cfg.OrderBookDepth
		}
		return provider, nil
	})
}

// Name implements market.Provider.
func (p *Provider) Name() string {
	return p.providerName()
}

// Klines implements market.Provider by fetching a normalized ascending series.
func (p *Provider) Klines(ctx context.Context, symbol string, interval market.Interval, limit int) (market.Series, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	return p.client.GetKlines(ctx, symbol, interval, limit)
}

// Ticker24h implements market.Provider.
func (p *Provider) Ticker24h(ctx context.Context, symbol string) (*market.Ticker24h, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	return p.client.GetTicker24h(ctx, symbol)
}

// FundingRate implements market.Provider.
func (p *Provider) FundingRate(ctx context.Context, symbol string) (*market.FundingRate, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	return p.client.GetFundingRate(ctx, symbol)
}

// OpenInterest implements market.Provider.
func (p *Provider) OpenInterest(ctx context.Context, symbol string) (*market.OpenInterest, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	return p.client.GetOpenInterest(ctx, symbol)
}

// OrderBook implements market.Provider. A non-positive depth falls back to
// the configured default.
func (p *Provider) OrderBook(ctx context.Context, symbol string, depth int) (*market.OrderBook, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	if depth <= 0 {
		depth = p.bookDepth
	}
	return p.client.GetOrderBook(ctx, symbol, depth)
}

// Price implements market.Provider.
func (p *Provider) Price(ctx context.Context, symbol string) (*market.PriceQuote, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	return p.client.GetPrice(ctx, symbol)
}

// ListSymbols implements market.Provider with a short-lived cache.
func (p *Provider) ListSymbols(ctx context.Context, filter market.SymbolFilter) ([]string, error) {
	filter = p.applyDefaults(filter)
	if symbols, ok := p.loadSymbols(filter); ok {
		return symbols, nil
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	symbols, err := p.client.ListSymbols(ctx, filter)
	if err != nil {
		return nil, err
	}
	p.storeSymbols(filter, symbols)
	return symbols, nil
}

// Universe implements market.Provider. Fresh fetches are mirrored to the
// persistence hook before being cached.
func (p *Provider) Universe(ctx context.Context, filter market.SymbolFilter) (*market.Universe, error) {
	filter = p.applyDefaults(filter)
	if universe, ok := p.loadUniverse(filter); ok {
		return universe, nil
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	universe, err := p.client.GetUniverse(ctx, filter)
	if err != nil {
		return nil, err
	}
	universe.Exchange = p.providerName()
	p.persistUniverse(ctx, universe)
	p.storeUniverse(filter, universe)
	return universe, nil
}

// SetPersistence wires a persistence layer for fetched universe rows.
func (p *Provider) SetPersistence(persist market.Persistence) {
	p.persistence = persist
}

func (p *Provider) applyDefaults(filter market.SymbolFilter) market.SymbolFilter {
	if len(filter.QuoteAssets) == 0 {
		filter.QuoteAssets = append([]string(nil), p.quoteAssets...)
	}
	if strings.TrimSpace(filter.InstType) == "" {
		filter.InstType = p.instType
	}
	return filter
}

func (p *Provider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, p.timeout)
}

type cachedUniverse struct {
	Universe *market.Universe
	Fetched  time.Time
}

type cachedSymbols struct {
	Symbols []string
	Fetched time.Time
}

func (p *Provider) loadUniverse(filter market.SymbolFilter) (*market.Universe, bool) {
	p.cacheMu.RLock()
	defer p.cacheMu.RUnlock()
	entry, ok := p.universes[filter.Key()]
	if !ok || entry.Universe == nil || time.Since(entry.Fetched) > universeCacheTTL {
		return nil, false
	}
	copied := *entry.Universe
	copied.Rows = append([]market.TickerRow(nil), entry.Universe.Rows...)
	return &copied, true
}

func (p *Provider) storeUniverse(filter market.SymbolFilter, universe *market.Universe) {
	if universe == nil {
		return
	}
	copied := *universe
	copied.Rows = append([]market.TickerRow(nil), universe.Rows...)
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	if p.universes == nil {
		p.universes = make(map[string]cachedUniverse)
	}
	p.universes[filter.Key()] = cachedUniverse{Universe: &copied, Fetched: time.Now()}
}

func (p *Provider) loadSymbols(filter market.SymbolFilter) ([]string, bool) {
	p.cacheMu.RLock()
	defer p.cacheMu.RUnlock()
	entry, ok := p.symbols[filter.Key()]
	if !ok || len(entry.Symbols) == 0 || time.Since(entry.Fetched) > symbolsCacheTTL {
		return nil, false
	}
	symbols := make([]string, len(entry.Symbols))
	copy(symbols, entry.Symbols)
	return symbols, true
}

func (p *Provider) storeSymbols(filter market.SymbolFilter, symbols []string) {
	clone := make([]string, len(symbols))
	copy(clone, symbols)
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	if p.symbols == nil {
		p.symbols = make(map[string]cachedSymbols)
	}
	p.symbols[filter.Key()] = cachedSymbols{Symbols: clone, Fetched: time.Now()}
}

func (p *Provider) providerName() string {
	if strings.TrimSpace(p.providerID) != "" {
		return p.providerID
	}
	return "okx"
}
