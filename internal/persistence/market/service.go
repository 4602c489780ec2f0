package marketpersist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/redis"

	cachekeys "perpscan/internal/cache"
	"perpscan/internal/model"
	"perpscan/pkg/market"
)

// Service implements market data persistence and caching hooks.
type Service struct {
	symbolsModel   model.MarketSymbolsModel
	reportsModel   model.MarketReportsModel
	snapshotsModel model.MarketSnapshotsModel
	cache          *redis.Redis
	ttl            cachekeys.TTLSet
}

// Config enumerates dependencies required to persist market data.
type Config struct {
	SymbolsModel   model.MarketSymbolsModel
	ReportsModel   model.MarketReportsModel
	SnapshotsModel model.MarketSnapshotsModel
	Cache          *redis.Redis
	TTL            cachekeys.TTLSet
}

// NewService wires a market persistence service. Returns nil when the model
// dependencies are missing; the cache is optional.
func NewService(cfg Config) market.Persistence {
	if cfg.SymbolsModel == nil || cfg.ReportsModel == nil || cfg.SnapshotsModel == nil {
		return nil
	}
	return &Service{
		symbolsModel:   cfg.SymbolsModel,
		reportsModel:   cfg.ReportsModel,
		snapshotsModel: cfg.SnapshotsModel,
		cache:          cfg.Cache,
		ttl:            cfg.TTL,
	}
}

// UpsertSymbols persists the ticker universe and refreshes the Redis copy.
func (s *Service) UpsertSymbols(ctx context.Context, exchange string, rows []market.TickerRow) error {
	if s == nil || len(rows) == 0 {
		return nil
	}
	for i := range rows {
		row := &rows[i]
		if strings.TrimSpace(row.Symbol) == "" {
			continue
		}
		rec := &model.MarketSymbols{
			Exchange:           exchange,
			Symbol:             row.Symbol,
			LastPrice:          row.LastPrice,
			PriceChangePercent: row.PriceChangePercent,
			QuoteVolume:        row.QuoteVolume,
			BaseVolume:         row.Volume,
		}
		if err := s.symbolsModel.Upsert(ctx, rec); err != nil {
			return err
		}
	}
	s.cacheSymbols(ctx, exchange, rows)
	return nil
}

// RecordDocument persists the latest enriched document to Postgres + Redis.
func (s *Service) RecordDocument(ctx context.Context, exchange string, doc *market.Document) error {
	if s == nil || doc == nil || strings.TrimSpace(doc.Symbol) == "" {
		return nil
	}
	if strings.TrimSpace(exchange) == "" {
		exchange = doc.Exchange
	}
	now := time.Now().UTC()
	raw, _ := json.Marshal(doc)
	rec := &model.MarketReports{
		Exchange:      exchange,
		Symbol:        doc.Symbol,
		Interval:      doc.Interval,
		GeneratedAtMs: now.UnixMilli(),
		KlineCount:    int64(len(doc.Klines)),
		Raw:           string(raw),
	}
	price, havePrice := documentPrice(doc)
	if havePrice {
		rec.LastPrice = sql.NullFloat64{Float64: price, Valid: true}
	}
	if err := s.reportsModel.Upsert(ctx, rec); err != nil {
		return err
	}

	s.cacheReport(ctx, exchange, doc)
	if havePrice {
		s.cachePrice(ctx, exchange, doc.Symbol, price, now)
		s.updatePrices(ctx, exchange, doc.Symbol, price)
	}
	return nil
}

// RecordSnapshot persists the latest ranked snapshot to Postgres + Redis.
func (s *Service) RecordSnapshot(ctx context.Context, exchange string, snap *market.Snapshot) error {
	if s == nil || snap == nil {
		return nil
	}
	if strings.TrimSpace(exchange) == "" {
		exchange = snap.Exchange
	}
	now := time.Now().UTC()
	raw, _ := json.Marshal(snap)
	rec := &model.MarketSnapshots{
		Exchange:      exchange,
		GeneratedAtMs: now.UnixMilli(),
		TotalSymbols:  int64(snap.TotalSymbols),
		Raw:           string(raw),
	}
	if err := s.snapshotsModel.Upsert(ctx, rec); err != nil {
		return err
	}
	s.cacheSnapshot(ctx, exchange, snap)
	return nil
}

// documentPrice prefers the live quote over the last close.
func documentPrice(doc *market.Document) (float64, bool) {
	if doc.CurrentPrice != nil {
		return doc.CurrentPrice.Price, true
	}
	if last := doc.Klines.Last(); last != nil {
		return last.Close, true
	}
	return 0, false
}

func (s *Service) cacheSymbols(ctx context.Context, exchange string, rows []market.TickerRow) {
	payload := map[string]any{
		"exchange":   exchange,
		"rows":       rows,
		"updated_at": time.Now().UTC().UnixMilli(),
	}
	s.setCache(ctx, cachekeys.SymbolsKey(exchange), payload, cachekeys.SymbolsTTL(s.ttl))
}

func (s *Service) cacheReport(ctx context.Context, exchange string, doc *market.Document) {
	key := cachekeys.ReportKey(exchange, doc.Symbol, doc.Interval)
	s.setCache(ctx, key, doc, cachekeys.ReportTTL(s.ttl))
}

func (s *Service) cachePrice(ctx context.Context, exchange, symbol string, price float64, ts time.Time) {
	ttl := cachekeys.PriceTTL(s.ttl)
	if ttl <= 0 {
		return
	}
	payload := map[string]any{
		"price": price,
		"ts":    ts.UnixMilli(),
	}
	// Exchange scoped key
	s.setCache(ctx, cachekeys.PriceLatestByExchangeKey(exchange, symbol), payload, ttl)
	// Global key
	s.setCache(ctx, cachekeys.PriceLatestKey(symbol), payload, ttl)
}

func (s *Service) cacheSnapshot(ctx context.Context, exchange string, snap *market.Snapshot) {
	s.setCache(ctx, cachekeys.SnapshotKey(exchange), snap, cachekeys.SnapshotTTL(s.ttl))
}

// updatePrices maintains an aggregated map of every exchange:symbol price
// seen recently, so consumers can read one key instead of fanning out.
func (s *Service) updatePrices(ctx context.Context, exchange, symbol string, price float64) {
	if s.cache == nil {
		return
	}
	ttl := cachekeys.PricesTTL(s.ttl)
	if ttl <= 0 {
		return
	}
	key := cachekeys.PricesKey()
	payload := make(map[string]float64)
	raw, err := s.cache.GetCtx(ctx, key)
	if err != nil {
		logx.WithContext(ctx).Errorf("marketpersist: load prices key=%s err=%v", key, err)
		return
	}
	if raw != "" {
		if err := msgpack.Unmarshal([]byte(raw), &payload); err != nil {
			logx.WithContext(ctx).Errorf("marketpersist: decode prices key=%s err=%v", key, err)
			payload = make(map[string]float64)
		}
	}
	payload[fmt.Sprintf("%s:%s", exchange, symbol)] = price
	s.setCache(ctx, key, payload, ttl)
}

// setCache writes one msgpack-encoded value with a TTL. Cache writes are
// best effort; failures are logged and never bubble up to the caller.
func (s *Service) setCache(ctx context.Context, key string, value any, ttl time.Duration) {
	if s.cache == nil || ttl <= 0 {
		return
	}
	raw, err := msgpack.Marshal(value)
	if err != nil {
		logx.WithContext(ctx).Errorf("marketpersist: msgpack encode key=%s err=%v", key, err)
		return
	}
	seconds := int(ttl / time.Second)
	if seconds <= 0 {
		seconds = 1
	}
	if err := s.cache.SetexCtx(ctx, key, string(raw), seconds); err != nil {
		logx.WithContext(ctx).Errorf("marketpersist: cache set key=%s err=%v", key, err)
	}
}
