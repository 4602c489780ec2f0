package svc

import (
	"log"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "perpscan/internal/cache"
	"perpscan/internal/config"
	"perpscan/internal/model"
	marketpersist "perpscan/internal/persistence/market"
	marketpkg "perpscan/pkg/market"
	_ "perpscan/pkg/market/exchanges/binance"
	_ "perpscan/pkg/market/exchanges/okx"
	screenerpkg "perpscan/pkg/market/screener"
	"perpscan/pkg/store"
)

// persistenceSetter is implemented by providers that can mirror fetched
// universe rows to a persistence hook.
type persistenceSetter interface {
	SetPersistence(marketpkg.Persistence)
}

type ServiceContext struct {
	Config config.Config

	Store *store.Store

	MarketConfig    *marketpkg.Config
	MarketProviders map[string]marketpkg.Provider
	DefaultMarket   marketpkg.Provider

	ScreenerConfig *screenerpkg.Config

	// Optional DB/cache mirror; nil when Postgres is not configured.
	DBConn               sqlx.SqlConn
	Cache                *redis.Redis
	TTL                  cachekeys.TTLSet
	MarketSymbolsModel   model.MarketSymbolsModel
	MarketReportsModel   model.MarketReportsModel
	MarketSnapshotsModel model.MarketSnapshotsModel
	Persistence          marketpkg.Persistence
}

func NewServiceContext(c config.Config) *ServiceContext {
	svc := &ServiceContext{
		Config: c,
		Store:  store.New(c.DataPath, c.Keep),
		TTL:    cachekeys.NewTTLSet(c.TTL),
	}

	// Build providers from the hydrated market section
	if c.Market.Value != nil {
		providers, err := c.Market.Value.BuildProviders()
		if err != nil {
			log.Fatalf("failed to build market providers: %v", err)
		}
		svc.MarketConfig = c.Market.Value
		svc.MarketProviders = providers
		if c.Market.Value.Default != "" {
			svc.DefaultMarket = providers[c.Market.Value.Default]
		}
	}

	svc.ScreenerConfig = c.Screener.Value

	// Only inject DB models when DSN provided; file output works without them.
	if c.Postgres.DSN != "" {
		conn := sqlx.NewSqlConn("pgx", c.Postgres.DSN)
		svc.DBConn = conn
		svc.MarketSymbolsModel = model.NewMarketSymbolsModel(conn)
		svc.MarketReportsModel = model.NewMarketReportsModel(conn)
		svc.MarketSnapshotsModel = model.NewMarketSnapshotsModel(conn)
	}

	if c.Redis.Host != "" {
		cache, err := redis.NewRedis(c.Redis)
		if err != nil {
			log.Fatalf("failed to init redis: %v", err)
		}
		svc.Cache = cache
	}

	svc.Persistence = marketpersist.NewService(marketpersist.Config{
		SymbolsModel:   svc.MarketSymbolsModel,
		ReportsModel:   svc.MarketReportsModel,
		SnapshotsModel: svc.MarketSnapshotsModel,
		Cache:          svc.Cache,
		TTL:            svc.TTL,
	})

	if svc.Persistence != nil {
		for _, provider := range svc.MarketProviders {
			if setter, ok := provider.(persistenceSetter); ok {
				setter.SetPersistence(svc.Persistence)
			}
		}
	}

	return svc
}

// Provider resolves a named provider, falling back to the default when name
// is empty. The second return reports whether a provider was found.
func (s *ServiceContext) Provider(name string) (marketpkg.Provider, bool) {
	if name == "" {
		if s.DefaultMarket != nil {
			return s.DefaultMarket, true
		}
		return nil, false
	}
	provider, ok := s.MarketProviders[name]
	return provider, ok
}
