package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"perpscan/internal/cli"
	"perpscan/internal/config"
	"perpscan/internal/svc"
	marketpkg "perpscan/pkg/market"
	"perpscan/pkg/report"
)

const shutdownTimeout = 10 * time.Second // Grace period for shutdown

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	var (
		configPath     = flag.String("config", "etc/perpscan.yaml", "path to the application configuration")
		symbolsRaw     = flag.String("symbols", "BTCUSDT,ETHUSDT", "comma-separated symbols, routed to providers by naming shape")
		intervalsRaw   = flag.String("interval", "1h", "comma-separated kline intervals per document")
		limit          = flag.Int("limit", 0, "klines per request (0 uses the provider default)")
		refreshEvery   = flag.Duration("refresh", 60*time.Second, "document refresh cadence")
		snapshotEvery  = flag.Duration("snapshot-refresh", 5*time.Minute, "snapshot refresh cadence (0 runs snapshots once at startup)")
		delayPerSymbol = flag.Duration("delay", 250*time.Millisecond, "pause between symbols to respect rate limits")
	)
	flag.Parse()
	logx.MustSetup(logx.LogConf{})
	logx.DisableStat()

	log.Println("[main] Starting market ingestor...")

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
	if len(sc.MarketProviders) == 0 {
		log.Fatalf("[main] No market providers configured")
	}

	intervals, err := report.ResolveIntervals(report.SplitList(*intervalsRaw))
	if err != nil {
		log.Fatalf("[main] Resolve intervals: %v", err)
	}

	routed, unrouted := routeSymbols(sc.MarketProviders, report.SplitList(*symbolsRaw))
	for _, sym := range unrouted {
		log.Printf("[main] Warning: no provider for symbol %s, skipping", sym)
	}

	ing := newIngestor(sc.MarketProviders, routed, intervals, *refreshEvery, *snapshotEvery, *delayPerSymbol)
	ing.limit = *limit
	ing.documents = sc.Store
	ing.snapshots = sc.Store
	if sc.ScreenerConfig != nil {
		ing.params = sc.ScreenerConfig.Params()
		ing.snapshots = sc.Store.WithKeep(sc.ScreenerConfig.Keep)
	}
	ing.filter = marketpkg.SymbolFilter{QuoteAssets: ing.params.QuoteAssets}
	ing.persistence = sc.Persistence

	for _, name := range ing.orderedNames {
		log.Printf("  - Symbols (%s): %v", name, routed[name])
	}
	log.Printf("  - Intervals: %v", intervals)
	log.Printf("  - Cadence: documents=%s, snapshots=%s", *refreshEvery, *snapshotEvery)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ing.run(ctx)
	}()

	log.Println("[main] Ingestor started. Press Ctrl+C to stop.")

	<-ctx.Done()
	log.Println("[main] Shutdown signal received, stopping tasks...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[main] All tasks stopped cleanly")
	case <-shutdownCtx.Done():
		log.Println("[main] Shutdown timeout exceeded, forcing exit")
	}

	log.Println("[main] Ingestor stopped")
}

// routeSymbols assigns each symbol to the provider whose instrument naming it
// matches, deduplicating along the way. Symbols whose detected provider is
// not configured come back as unrouted.
func routeSymbols(providers map[string]marketpkg.Provider, symbols []string) (map[string][]string, []string) {
	routed := make(map[string][]string, len(providers))
	var unrouted []string
	seen := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		name := report.DetectExchange(sym)
		if _, ok := providers[name]; !ok {
			unrouted = append(unrouted, sym)
			continue
		}
		routed[name] = append(routed[name], sym)
	}
	return routed, unrouted
}
