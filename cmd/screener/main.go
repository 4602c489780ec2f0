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
	"perpscan/pkg/market/screener"
)

const universeTimeout = 30 * time.Second // Timeout for the full ticker universe fetch

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	var (
		configPath   = flag.String("config", "etc/perpscan.yaml", "path to the application configuration")
		exchangeName = flag.String("exchange", "", "market provider name (empty uses the configured default)")
		quoteRaw     = flag.String("quote", "", "quote asset filter override, e.g. USDT,USDC")
		top          = flag.Int("top", 0, "rows per ranked list (0 uses the configured value)")
		instType     = flag.String("inst-type", "", "OKX instrument type filter, e.g. SWAP")
		includeRaw   = flag.Bool("include-raw", false, "carry the filtered ticker rows in the snapshot")
	)
	flag.Parse()

	log.Println("[main] Starting market screener...")

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

	params := screener.Params{}
	snapStore := sc.Store
	if sc.ScreenerConfig != nil {
		params = sc.ScreenerConfig.Params()
		snapStore = snapStore.WithKeep(sc.ScreenerConfig.Keep)
	}
	if quotes := screener.ParseQuoteFilter(*quoteRaw); len(quotes) > 0 {
		params.QuoteAssets = quotes
	}
	if *top > 0 {
		params.Top = *top
	}
	if *includeRaw {
		params.IncludeRaw = true
	}

	log.Printf("  - Exchange: %s", provider.Name())
	log.Printf("  - Quote Assets: %v", params.QuoteAssets)

	filter := market.SymbolFilter{QuoteAssets: params.QuoteAssets, InstType: *instType}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetchCtx, cancel := context.WithTimeout(ctx, universeTimeout)
	defer cancel()

	start := time.Now()
	universe, err := provider.Universe(fetchCtx, filter)
	if err != nil {
		log.Fatalf("[main] Fetch ticker universe: %v", err)
	}
	log.Printf("[screener] [OK] universe has %d rows, took %dms", len(universe.Rows), time.Since(start).Milliseconds())

	snap, err := screener.Build(universe, params)
	if err != nil {
		log.Fatalf("[main] Build snapshot: %v", err)
	}

	path, err := snapStore.SaveSnapshot(snap)
	if err != nil {
		log.Fatalf("[main] Save snapshot: %v", err)
	}
	log.Printf("[screener] [OK] snapshot %d symbols -> %s", snap.TotalSymbols, path)

	if sc.Persistence != nil {
		if err := sc.Persistence.RecordSnapshot(ctx, provider.Name(), snap); err != nil {
			log.Printf("[screener] [WARN] mirror failed: %v", err)
		}
	}

	logRanked("top_volume", snap.TopVolume)
	logRanked("top_gainers", snap.TopGainers)
	logRanked("top_losers", snap.TopLosers)
}

// logRanked prints one ranked list, best entry first.
func logRanked(name string, rows []market.TickerRow) {
	log.Printf("[screener] %s:", name)
	for i, row := range rows {
		log.Printf("  %2d. %-20s last=%v change=%v%% quote_volume=%v",
			i+1, row.Symbol, row.LastPrice, row.PriceChangePercent, row.QuoteVolume)
	}
}
