// Package domain defines the ledger entities, the position transition
// vocabulary, and the interfaces that external collaborators (storage, quote
// source, notification channels) must implement.
package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for closed-position history queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// LedgerStore is the durable ledger. It is the sole owner of OpenPosition
// and ClosedPosition rows and the only mutual-exclusion point for per-ticker
// state: implementations must guarantee at most one open position per ticker
// even under concurrent writers.
type LedgerStore interface {
	// FindOpen returns the open position for ticker, or ErrNotFound.
	FindOpen(ctx context.Context, ticker string) (OpenPosition, error)
	// ListOpen returns all open positions in entry-time order.
	ListOpen(ctx context.Context) ([]OpenPosition, error)
	// ListClosed returns closed-position history, newest first.
	ListClosed(ctx context.Context, opts ListOpts) ([]ClosedPosition, error)
	// Open inserts a new open position. A concurrent insert for the same
	// ticker yields ErrConflict.
	Open(ctx context.Context, pos OpenPosition) error
	// Flip atomically appends closed, deletes the open position it was
	// derived from, and inserts next. If the open row has already been
	// removed by a concurrent writer, nothing is committed and ErrConflict
	// is returned.
	Flip(ctx context.Context, closed ClosedPosition, next OpenPosition) error
}

// Quote is a resolved market price for a ticker.
type Quote struct {
	Ticker string
	Price  float64
	At     time.Time
}

// QuoteSource resolves current prices for tickers. It is best-effort and
// unreliable: tickers with no data are simply absent from the Batch result,
// and Single returns ErrQuoteUnavailable.
type QuoteSource interface {
	// Batch fetches the most recent price for many tickers at once over the
	// given range/interval window (e.g. "1d"/"1m").
	Batch(ctx context.Context, tickers []string, rng, interval string) (map[string]Quote, error)
	// Single fetches the most recent price for one ticker.
	Single(ctx context.Context, ticker, rng, interval string) (Quote, error)
}

// QuoteCache caches resolved quotes between report runs.
type QuoteCache interface {
	Get(ctx context.Context, ticker string) (Quote, error)
	GetMany(ctx context.Context, tickers []string) (map[string]Quote, error)
	Set(ctx context.Context, q Quote) error
}

// EventPublisher receives signal events after a successful ledger mutation.
// Delivery is fire-and-forget relative to the ledger transaction: errors are
// logged by the caller, never propagated into the intake path.
type EventPublisher interface {
	Publish(ctx context.Context, evt SignalEvent) error
}
