package model

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ MarketSnapshotsModel = (*defaultMarketSnapshotsModel)(nil)

type (
	// MarketSnapshotsModel wraps persistence for the market_snapshots table,
	// the latest ranked snapshot per exchange.
	MarketSnapshotsModel interface {
		Upsert(ctx context.Context, data *MarketSnapshots) error
		FindOne(ctx context.Context, exchange string) (*MarketSnapshots, error)
	}

	defaultMarketSnapshotsModel struct {
		conn sqlx.SqlConn
	}

	// MarketSnapshots maps one row of the market_snapshots table. Raw holds
	// the full snapshot JSON including the ranked boards.
	MarketSnapshots struct {
		Id            int64     `db:"id"`
		Exchange      string    `db:"exchange"`
		GeneratedAtMs int64     `db:"generated_at_ms"`
		TotalSymbols  int64     `db:"total_symbols"`
		Raw           string    `db:"raw"`
		CreatedAt     time.Time `db:"created_at"`
		UpdatedAt     time.Time `db:"updated_at"`
	}
)

// NewMarketSnapshotsModel returns a model for the database table.
func NewMarketSnapshotsModel(conn sqlx.SqlConn) MarketSnapshotsModel {
	return &defaultMarketSnapshotsModel{conn: conn}
}

// Upsert inserts or refreshes the latest snapshot for one exchange.
func (m *defaultMarketSnapshotsModel) Upsert(ctx context.Context, data *MarketSnapshots) error {
	const stmt = `
INSERT INTO public.market_snapshots (
    exchange, generated_at_ms, total_symbols, raw, created_at, updated_at
) VALUES (
    $1, $2, $3, $4, NOW(), NOW()
)
ON CONFLICT (exchange) DO UPDATE SET
    generated_at_ms = EXCLUDED.generated_at_ms,
    total_symbols = EXCLUDED.total_symbols,
    raw = EXCLUDED.raw,
    updated_at = NOW();`
	if _, err := m.conn.ExecCtx(ctx, stmt,
		data.Exchange,
		data.GeneratedAtMs,
		data.TotalSymbols,
		data.Raw,
	); err != nil {
		return fmt.Errorf("market_snapshots.Upsert exec: %w", err)
	}
	return nil
}

// FindOne returns the latest snapshot row for an exchange, or ErrNotFound.
func (m *defaultMarketSnapshotsModel) FindOne(ctx context.Context, exchange string) (*MarketSnapshots, error) {
	const query = `
SELECT
    id,
    exchange,
    generated_at_ms,
    total_symbols,
    raw,
    created_at,
    updated_at
FROM public.market_snapshots
WHERE exchange = $1
LIMIT 1`

	var resp MarketSnapshots
	err := m.conn.QueryRowCtx(ctx, &resp, query, exchange)
	switch err {
	case nil:
		return &resp, nil
	case sqlx.ErrNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("market_snapshots.FindOne query: %w", err)
	}
}
