package binance

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"perpscan/pkg/market"
)

// persistUniverse mirrors freshly fetched universe rows to the persistence
// hook (if configured) and logs errors without blocking the data path.
func (p *Provider) persistUniverse(ctx context.Context, universe *market.Universe) {
	if p.persistence == nil || universe == nil || len(universe.Rows) == 0 {
		return
	}
	if err := p.persistence.UpsertSymbols(ctx, p.providerName(), universe.Rows); err != nil {
		logx.WithContext(ctx).Errorf("binance: persist universe provider=%s rows=%d err=%v", p.providerName(), len(universe.Rows), err)
	}
}
