package model

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ MarketReportsModel = (*defaultMarketReportsModel)(nil)

type (
	// MarketReportsModel wraps persistence for the market_reports table,
	// the latest enriched document per (exchange, symbol, interval).
	MarketReportsModel interface {
		Upsert(ctx context.Context, data *MarketReports) error
		FindOne(ctx context.Context, exchange, symbol, interval string) (*MarketReports, error)
	}

	defaultMarketReportsModel struct {
		conn sqlx.SqlConn
	}

	// MarketReports maps one row of the market_reports table. Raw holds the
	// full document JSON; the remaining columns exist for cheap filtering.
	MarketReports struct {
		Id            int64           `db:"id"`
		Exchange      string          `db:"exchange"`
		Symbol        string          `db:"symbol"`
		Interval      string          `db:"interval"`
		GeneratedAtMs int64           `db:"generated_at_ms"`
		KlineCount    int64           `db:"kline_count"`
		LastPrice     sql.NullFloat64 `db:"last_price"`
		Raw           string          `db:"raw"`
		CreatedAt     time.Time       `db:"created_at"`
		UpdatedAt     time.Time       `db:"updated_at"`
	}
)

// NewMarketReportsModel returns a model for the database table.
func NewMarketReportsModel(conn sqlx.SqlConn) MarketReportsModel {
	return &defaultMarketReportsModel{conn: conn}
}

// Upsert inserts or refreshes the latest document for one
// (exchange, symbol, interval) key.
func (m *defaultMarketReportsModel) Upsert(ctx context.Context, data *MarketReports) error {
	const stmt = `
INSERT INTO public.market_reports (
    exchange, symbol, interval, generated_at_ms, kline_count, last_price, raw, created_at, updated_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, NOW(), NOW()
)
ON CONFLICT (exchange, symbol, interval) DO UPDATE SET
    generated_at_ms = EXCLUDED.generated_at_ms,
    kline_count = EXCLUDED.kline_count,
    last_price = EXCLUDED.last_price,
    raw = EXCLUDED.raw,
    updated_at = NOW();`
	if _, err := m.conn.ExecCtx(ctx, stmt,
		data.Exchange,
		data.Symbol,
		data.Interval,
		data.GeneratedAtMs,
		data.KlineCount,
		data.LastPrice,
		data.Raw,
	); err != nil {
		return fmt.Errorf("market_reports.Upsert exec: %w", err)
	}
	return nil
}

// FindOne returns the latest stored document for a key, or ErrNotFound.
func (m *defaultMarketReportsModel) FindOne(ctx context.Context, exchange, symbol, interval string) (*MarketReports, error) {
	const query = `
SELECT
    id,
    exchange,
    symbol,
    interval,
    generated_at_ms,
    kline_count,
    last_price,
    raw,
    created_at,
    updated_at
FROM public.market_reports
WHERE exchange = $1 AND symbol = $2 AND interval = $3
LIMIT 1`

	var resp MarketReports
	err := m.conn.QueryRowCtx(ctx, &resp, query, exchange, symbol, interval)
	switch err {
	case nil:
		return &resp, nil
	case sqlx.ErrNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("market_reports.FindOne query: %w", err)
	}
}
