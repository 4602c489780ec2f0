package report

import (
	"context"
	"fmt"
	"sync"

	"github.com/zeromicro/go-zero/core/logx"

	"perpscan/pkg/market"
	"perpscan/pkg/market/indicators"
)

// Collect fetches everything one document needs and assembles it. The kline
// series and the five auxiliary metrics are fetched concurrently; a kline
// failure fails the collect, while an auxiliary failure is logged and leaves
// its field absent.
func Collect(ctx context.Context, provider market.Provider, symbol string, interval market.Interval, limit int) (*market.Document, error) {
	var (
		wg        sync.WaitGroup
		series    market.Series
		seriesErr error
		aux       market.SymbolMetrics
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		series, seriesErr = provider.Klines(ctx, symbol, interval, limit)
	}()

	// Each fetch writes its own aux field, so no lock is needed.
	fetches := []struct {
		field string
		run   func() error
	}{
		{"ticker_24hr", func() (err error) {
			aux.Ticker24h, err = provider.Ticker24h(ctx, symbol)
			return err
		}},
		{"funding_rate", func() (err error) {
			aux.FundingRate, err = provider.FundingRate(ctx, symbol)
			return err
		}},
		{"open_interest", func() (err error) {
			aux.OpenInterest, err = provider.OpenInterest(ctx, symbol)
			return err
		}},
		{"current_price", func() (err error) {
			aux.CurrentPrice, err = provider.Price(ctx, symbol)
			return err
		}},
		{"order_book", func() (err error) {
			aux.OrderBook, err = provider.OrderBook(ctx, symbol, 0)
			return err
		}},
	}
	for _, fetch := range fetches {
		fetch := fetch
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fetch.run(); err != nil {
				logx.WithContext(ctx).Errorf("report: %s %s: %s fetch failed: %v",
					provider.Name(), symbol, fetch.field, err)
			}
		}()
	}
	wg.Wait()

	if seriesErr != nil {
		return nil, fmt.Errorf("report: fetch klines %s %s: %w", symbol, interval, seriesErr)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("report: no klines returned for %s %s", symbol, interval)
	}

	meta := Meta{Exchange: provider.Name(), Symbol: symbol, Interval: interval}
	return Assemble(meta, indicators.Enrich(series), aux)
}
