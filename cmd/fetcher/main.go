package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"perpscan/internal/cli"
	"perpscan/internal/config"
	"perpscan/internal/svc"
	"perpscan/pkg/market"
	"perpscan/pkg/market/analysis"
	"perpscan/pkg/report"
)

const (
	priceTimeout   = 10 * time.Second // Timeout for a single price lookup
	resolveTimeout = 30 * time.Second // Timeout for symbol listing expansion
	taskTimeout    = 45 * time.Second // Timeout for one symbol/interval document
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	var (
		configPath   = flag.String("config", "etc/perpscan.yaml", "path to the application configuration")
		exchangeName = flag.String("exchange", "", "market provider name (empty uses the configured default)")
		symbolsRaw   = flag.String("symbols", "BTCUSDT", "comma-separated symbols, or ALL to expand the full listing")
		intervalsRaw = flag.String("interval", "1h", "comma-separated kline intervals")
		limit        = flag.Int("limit", 0, "klines per request (0 uses the provider default)")
		quoteRaw     = flag.String("quote", "", "quote assets applied when expanding ALL, e.g. USDT,USDC")
		maxSymbols   = flag.Int("max-symbols", 0, "cap on expanded symbols (0 keeps all)")
		contractType = flag.String("contract-type", "", "Binance contract type filter, e.g. PERPETUAL")
		instType     = flag.String("inst-type", "", "OKX instrument type filter, e.g. SWAP")
		priceOnly    = flag.Bool("price-only", false, "fetch latest prices only, skip documents")
		workers      = flag.Int("workers", 4, "concurrent document fetches")
	)
	flag.Parse()

	log.Println("[main] Starting market fetcher...")

	appCfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("[main] Warning: Failed to load app config: %v", err)
		log.Printf("[main] Using default configuration")
		appCfg = &config.Config{Env: "test"} // Default fallback
	}
	if appCfg.Market.Value == nil {
		appCfg.Market.Value = config.MustLoadMarket()
	}

	log.Printf("[main] Configuration loaded:")
	for _, line := range cli.ConfigSummaryLines(appCfg) {
		log.Printf("  - %s", line)
	}

	sc := svc.NewServiceContext(*appCfg)

	provider, ok := sc.Provider(*exchangeName)
	if !ok {
		log.Fatalf("[main] Market provider %q not configured", *exchangeName)
	}

	filter := market.SymbolFilter{
		QuoteAssets:  report.SplitList(*quoteRaw),
		ContractType: *contractType,
		InstType:     *instType,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolveCtx, cancel := context.WithTimeout(ctx, resolveTimeout)
	symbols, err := report.ResolveSymbols(resolveCtx, provider, []string{*symbolsRaw}, filter, *maxSymbols)
	cancel()
	if err != nil {
		log.Fatalf("[main] Resolve symbols: %v", err)
	}

	log.Printf("  - Exchange: %s", provider.Name())
	log.Printf("  - Symbols: %v", symbols)

	if *priceOnly {
		// With no explicit exchange, each symbol is routed by its naming
		// shape, so BTC-USDT-SWAP resolves to okx even when binance is the
		// default.
		fetched := fetchPrices(ctx, sc, provider, *exchangeName == "", symbols)
		if fetched == 0 {
			log.Fatalf("[main] All %d price lookups failed", len(symbols))
		}
		log.Printf("[main] Fetched %d/%d prices", fetched, len(symbols))
		return
	}

	intervals, err := report.ResolveIntervals(report.SplitList(*intervalsRaw))
	if err != nil {
		log.Fatalf("[main] Resolve intervals: %v", err)
	}
	log.Printf("  - Intervals: %v", intervals)

	tasks := report.Tasks(symbols, intervals)
	log.Printf("[main] Fetching %d documents (%d symbols x %d intervals, workers=%d)",
		len(tasks), len(symbols), len(intervals), *workers)

	start := time.Now()
	result := report.RunBatch(ctx, tasks, *workers, func(taskCtx context.Context, task report.Task) error {
		return fetchDocument(taskCtx, sc, provider, task, *limit)
	})
	elapsed := time.Since(start)

	for _, failure := range result.Failures {
		log.Printf("[fetch] [ERROR] %s", failure)
	}
	log.Printf("[main] Completed %d/%d documents, took %dms", result.Succeeded, len(tasks), elapsed.Milliseconds())

	if err := result.Err(); err != nil {
		log.Fatalf("[main] %v", err)
	}
}

// fetchDocument collects one symbol/interval document, writes it to the data
// directory, and mirrors it when persistence is configured.
func fetchDocument(parentCtx context.Context, sc *svc.ServiceContext, provider market.Provider, task report.Task, limit int) error {
	ctx, cancel := context.WithTimeout(parentCtx, taskTimeout)
	defer cancel()

	start := time.Now()
	doc, err := report.Collect(ctx, provider, task.Symbol, task.Interval, limit)
	if err != nil {
		return err
	}

	path, err := sc.Store.SaveDocument(doc)
	if err != nil {
		return err
	}

	if sc.Persistence != nil {
		if err := sc.Persistence.RecordDocument(ctx, provider.Name(), doc); err != nil {
			log.Printf("[fetch.%s.%s] [WARN] mirror failed: %v", task.Symbol, task.Interval, err)
		}
	}

	log.Printf("[fetch.%s.%s] [OK] %d bars -> %s, took %dms",
		task.Symbol, task.Interval, len(doc.Klines), path, time.Since(start).Milliseconds())

	if doc.Signals != nil {
		log.Printf("  - Signals: trend=%s rsi=%s volume=%s",
			doc.Signals.Trend, doc.Signals.RSIStatus, doc.Signals.VolumeStatus)
	}
	if regime := analysis.VolatilityRegime(doc.Klines, 0); regime.Status == "ok" {
		log.Printf("  - Volatility: %s current=%.4f avg=%.4f trend=%s",
			regime.Band, regime.Current, regime.Average, regime.Trend)
	}
	return nil
}

// fetchPrices looks up the latest traded price for each symbol and returns
// how many lookups succeeded. When detect is set the provider is resolved per
// symbol from its instrument naming.
func fetchPrices(parentCtx context.Context, sc *svc.ServiceContext, fallback market.Provider, detect bool, symbols []string) int {
	fetched := 0
	for _, symbol := range symbols {
		func(sym string) {
			ctx, cancel := context.WithTimeout(parentCtx, priceTimeout)
			defer cancel()

			prov := fallback
			if detect {
				if p, ok := sc.Provider(report.DetectExchange(sym)); ok {
					prov = p
				}
			}

			start := time.Now()
			quote, err := prov.Price(ctx, sym)
			elapsed := time.Since(start)

			if err != nil {
				log.Printf("[fetch.price.%s] [ERROR] %v, took %dms", sym, err, elapsed.Milliseconds())
				return
			}

			log.Printf("[fetch.price.%s] [OK] exchange=%s price=%v, took %dms",
				sym, prov.Name(), quote.Price, elapsed.Milliseconds())
			fetched++
		}(symbol)
	}
	return fetched
}
