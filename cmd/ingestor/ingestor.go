package main

import (
	"context"
	"sort"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	marketpkg "perpscan/pkg/market"
	"perpscan/pkg/market/screener"
	"perpscan/pkg/report"
	"perpscan/pkg/store"
)

const (
	documentTimeout = 45 * time.Second
	universeTimeout = 30 * time.Second
)

// ingestor periodically rebuilds per-symbol documents and ranked market
// snapshots so the JSON store and the optional Postgres/Redis mirror stay
// current. Documents refresh on every cycle; snapshots run on their own
// slower cadence tracked per provider.
type ingestor struct {
	providers       map[string]marketpkg.Provider
	orderedNames    []string
	symbols         map[string][]string
	intervals       []marketpkg.Interval
	limit           int
	interval        time.Duration
	snapshotRefresh time.Duration
	delayPerSymbol  time.Duration

	documents   *store.Store
	snapshots   *store.Store
	params      screener.Params
	filter      marketpkg.SymbolFilter
	persistence marketpkg.Persistence

	snapshotAt map[string]time.Time
}

func newIngestor(providers map[string]marketpkg.Provider, symbols map[string][]string, intervals []marketpkg.Interval, interval, snapshotRefresh, delay time.Duration) *ingestor {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if snapshotRefresh < 0 {
		snapshotRefresh = 0
	}
	if delay < 0 {
		delay = 0
	}
	ordered := make([]string, 0, len(providers))
	for name := range providers {
		if providers[name] == nil {
			continue
		}
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)
	return &ingestor{
		providers:       providers,
		orderedNames:    ordered,
		symbols:         symbols,
		intervals:       intervals,
		interval:        interval,
		snapshotRefresh: snapshotRefresh,
		delayPerSymbol:  delay,
		snapshotAt:      make(map[string]time.Time, len(providers)),
	}
}

// run starts the refresh loop and blocks until the context is cancelled.
func (ing *ingestor) run(ctx context.Context) {
	if ing == nil || len(ing.orderedNames) == 0 {
		return
	}
	ing.refreshSnapshots(ctx, true)
	ing.refreshDocuments(ctx)
	ticker := time.NewTicker(ing.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ing.refreshSnapshots(ctx, false)
			ing.refreshDocuments(ctx)
		}
	}
}

func (ing *ingestor) refreshSnapshots(ctx context.Context, force bool) {
	if ing.snapshotRefresh == 0 && !force {
		return
	}
	now := time.Now()
	for _, name := range ing.orderedNames {
		if !force && ing.snapshotRefresh > 0 {
			if last, ok := ing.snapshotAt[name]; ok && now.Sub(last) < ing.snapshotRefresh {
				continue
			}
		}
		prov := ing.providers[name]
		if prov == nil {
			continue
		}
		reqCtx, cancel := context.WithTimeout(ctx, universeTimeout)
		universe, err := prov.Universe(reqCtx, ing.filter)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logx.WithContext(ctx).Errorf("ingest: universe provider=%s err=%v", name, err)
			continue
		}
		snap, err := screener.Build(universe, ing.params)
		if err != nil {
			logx.WithContext(ctx).Errorf("ingest: build snapshot provider=%s err=%v", name, err)
			continue
		}
		if _, err := ing.snapshots.SaveSnapshot(snap); err != nil {
			logx.WithContext(ctx).Errorf("ingest: save snapshot provider=%s err=%v", name, err)
			continue
		}
		if ing.persistence != nil {
			if err := ing.persistence.RecordSnapshot(ctx, name, snap); err != nil {
				logx.WithContext(ctx).Errorf("ingest: mirror snapshot provider=%s err=%v", name, err)
			}
		}
		ing.snapshotAt[name] = time.Now()
	}
}

func (ing *ingestor) refreshDocuments(ctx context.Context) {
	for _, name := range ing.orderedNames {
		prov := ing.providers[name]
		if prov == nil {
			continue
		}
		for _, symbol := range ing.symbols[name] {
			for _, interval := range ing.intervals {
				if ctx.Err() != nil {
					return
				}
				ing.refreshDocument(ctx, name, prov, symbol, interval)
			}
			if ing.delayPerSymbol > 0 {
				if !sleepWithContext(ctx, ing.delayPerSymbol) {
					return
				}
			}
		}
	}
}

func (ing *ingestor) refreshDocument(ctx context.Context, name string, prov marketpkg.Provider, symbol string, interval marketpkg.Interval) {
	reqCtx, cancel := context.WithTimeout(ctx, documentTimeout)
	defer cancel()
	doc, err := report.Collect(reqCtx, prov, symbol, interval, ing.limit)
	if err != nil {
		if reqCtx.Err() == nil {
			logx.WithContext(ctx).Errorf("ingest: collect provider=%s symbol=%s interval=%s err=%v", name, symbol, interval, err)
		}
		return
	}
	if _, err := ing.documents.SaveDocument(doc); err != nil {
		logx.WithContext(ctx).Errorf("ingest: save document provider=%s symbol=%s interval=%s err=%v", name, symbol, interval, err)
		return
	}
	if ing.persistence != nil {
		if err := ing.persistence.RecordDocument(ctx, name, doc); err != nil {
			logx.WithContext(ctx).Errorf("ingest: mirror document provider=%s symbol=%s interval=%s err=%v", name, symbol, interval, err)
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
