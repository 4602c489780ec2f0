package market

import "context"

// Persistence hooks let callers mirror market data to external stores.
// All implementations must tolerate partial documents; a nil hook disables
// mirroring entirely.
type Persistence interface {
	// UpsertSymbols persists the symbol universe rows for an exchange.
	UpsertSymbols(ctx context.Context, exchange string, rows []TickerRow) error
	// RecordDocument persists one per-(symbol, interval) document.
	RecordDocument(ctx context.Context, exchange string, doc *Document) error
	// RecordSnapshot persists one ranked market snapshot.
	RecordSnapshot(ctx context.Context, exchange string, snap *Snapshot) error
}
