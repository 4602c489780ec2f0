package model

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ MarketSymbolsModel = (*defaultMarketSymbolsModel)(nil)

type (
	// MarketSymbolsModel wraps persistence for the market_symbols table,
	// one row per listed contract and exchange.
	MarketSymbolsModel interface {
		Upsert(ctx context.Context, data *MarketSymbols) error
		ListByExchange(ctx context.Context, exchange string) ([]MarketSymbols, error)
	}

	defaultMarketSymbolsModel struct {
		conn sqlx.SqlConn
	}

	// MarketSymbols maps one row of the market_symbols table.
	MarketSymbols struct {
		Id                 int64     `db:"id"`
		Exchange           string    `db:"exchange"`
		Symbol             string    `db:"symbol"`
		LastPrice          float64   `db:"last_price"`
		PriceChangePercent float64   `db:"price_change_percent"`
		QuoteVolume        float64   `db:"quote_volume"`
		BaseVolume         float64   `db:"base_volume"`
		CreatedAt          time.Time `db:"created_at"`
		UpdatedAt          time.Time `db:"updated_at"`
	}
)

// NewMarketSymbolsModel returns a model for the database table.
func NewMarketSymbolsModel(conn sqlx.SqlConn) MarketSymbolsModel {
	return &defaultMarketSymbolsModel{conn: conn}
}

// Upsert inserts or refreshes one universe row keyed by (exchange, symbol).
func (m *defaultMarketSymbolsModel) Upsert(ctx context.Context, data *MarketSymbols) error {
	const stmt = `
INSERT INTO public.market_symbols (
    exchange, symbol, last_price, price_change_percent, quote_volume, base_volume, created_at, updated_at
) VALUES (
    $1, $2, $3, $4, $5, $6, NOW(), NOW()
)
ON CONFLICT (exchange, symbol) DO UPDATE SET
    last_price = EXCLUDED.last_price,
    price_change_percent = EXCLUDED.price_change_percent,
    quote_volume = EXCLUDED.quote_volume,
    base_volume = EXCLUDED.base_volume,
    updated_at = NOW();`
	if _, err := m.conn.ExecCtx(ctx, stmt,
		data.Exchange,
		data.Symbol,
		data.LastPrice,
		data.PriceChangePercent,
		data.QuoteVolume,
		data.BaseVolume,
	); err != nil {
		return fmt.Errorf("market_symbols.Upsert exec: %w", err)
	}
	return nil
}

// ListByExchange returns every universe row for one exchange ordered by
// symbol name.
func (m *defaultMarketSymbolsModel) ListByExchange(ctx context.Context, exchange string) ([]MarketSymbols, error) {
	const query = `
SELECT
    id,
    exchange,
    symbol,
    last_price,
    price_change_percent,
    quote_volume,
    base_volume,
    created_at,
    updated_at
FROM public.market_symbols
WHERE exchange = $1
ORDER BY symbol`

	var rows []MarketSymbols
	if err := m.conn.QueryRowsCtx(ctx, &rows, query, exchange); err != nil {
		return nil, fmt.Errorf("market_symbols.ListByExchange query: %w", err)
	}
	return rows, nil
}
