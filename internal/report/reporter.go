// Package report produces the open-position valuation report: unrealized
// profit per open position against live quotes, degraded per-row when a
// quote cannot be resolved.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tickerwatch/sigledger/internal/domain"
)

// singleLookupLimit bounds concurrent per-ticker fallback lookups.
const singleLookupLimit = 4

// tier is one batch attempt window. Tiers are tried in order against the
// tickers still missing a quote; each tier fails fast and hands the
// remainder to the next.
type tier struct {
	rng      string
	interval string
}

var batchTiers = []tier{
	{rng: "1d", interval: "1m"},
	{rng: "1d", interval: "5m"},
	{rng: "5d", interval: "1d"},
}

// Row degradation notes.
const (
	noteInvalidEntry = "invalid entry price"
	noteNoQuote      = "no quote data"
	noteInvalidPrice = "invalid price"
	noteNoProfit     = "profit not computable"
)

// Reporter values all open positions against the quote source. It only reads
// the ledger; it never writes.
type Reporter struct {
	store  domain.LedgerStore
	quotes domain.QuoteSource
	logger *slog.Logger
}

// NewReporter creates a Reporter over the given ledger and quote source.
func NewReporter(store domain.LedgerStore, quotes domain.QuoteSource, logger *slog.Logger) *Reporter {
	return &Reporter{
		store:  store,
		quotes: quotes,
		logger: logger.With(slog.String("component", "reporter")),
	}
}

// Valuate reads every open position, resolves a current price per ticker,
// and returns one row per position in retrieval order. A quote-source outage
// degrades individual rows, never the whole report.
func (r *Reporter) Valuate(ctx context.Context) (domain.Report, error) {
	positions, err := r.store.ListOpen(ctx)
	if err != nil {
		return domain.Report{}, fmt.Errorf("report: list open positions: %w", err)
	}

	rep := domain.Report{GeneratedAt: time.Now().UTC()}
	if len(positions) == 0 {
		return rep, nil
	}

	tickers := make([]string, len(positions))
	for i, pos := range positions {
		tickers[i] = pos.Ticker
	}
	prices := r.resolvePrices(ctx, tickers)

	rep.Rows = make([]domain.ValuationRow, 0, len(positions))
	for _, pos := range positions {
		rep.Rows = append(rep.Rows, r.valuateOne(pos, prices))
	}
	return rep, nil
}

// resolvePrices runs the tiered quote retrieval: batch windows first, then a
// bounded fan-out of per-ticker lookups for whatever is still missing.
func (r *Reporter) resolvePrices(ctx context.Context, tickers []string) map[string]float64 {
	prices := make(map[string]float64, len(tickers))
	missing := tickers

	for _, t := range batchTiers {
		if len(missing) == 0 {
			break
		}
		quotes, err := r.quotes.Batch(ctx, missing, t.rng, t.interval)
		if err != nil {
			r.logger.WarnContext(ctx, "batch quote tier failed",
				slog.String("range", t.rng),
				slog.String("interval", t.interval),
				slog.String("error", err.Error()),
			)
			continue
		}
		for ticker, q := range quotes {
			prices[ticker] = q.Price
		}
		missing = without(missing, prices)
	}

	if len(missing) == 0 {
		return prices
	}

	// Last resort: one lookup per remaining ticker.
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(singleLookupLimit)
	for _, ticker := range missing {
		ticker := ticker
		g.Go(func() error {
			q, err := r.quotes.Single(gctx, ticker, "1d", "1m")
			if err != nil {
				r.logger.WarnContext(gctx, "single quote lookup failed",
					slog.String("ticker", ticker),
					slog.String("error", err.Error()),
				)
				return nil
			}
			mu.Lock()
			prices[ticker] = q.Price
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return prices
}

// valuateOne builds the row for a single position, degrading to an
// unavailable marker instead of ever producing a wrong number.
func (r *Reporter) valuateOne(pos domain.OpenPosition, prices map[string]float64) domain.ValuationRow {
	row := domain.ValuationRow{
		Ticker:     pos.Ticker,
		Direction:  pos.Direction,
		EntryPrice: pos.EntryPrice,
	}

	if pos.EntryPrice <= 0 || math.IsNaN(pos.EntryPrice) || math.IsInf(pos.EntryPrice, 0) {
		row.Note = noteInvalidEntry
		return row
	}

	price, ok := prices[pos.Ticker]
	if !ok {
		row.Note = noteNoQuote
		return row
	}
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		row.Note = noteInvalidPrice
		return row
	}

	profit, err := domain.ProfitPercent(pos.Direction, pos.EntryPrice, price)
	if err != nil {
		row.CurrentPrice = &price
		row.Note = noteNoProfit
		return row
	}

	row.CurrentPrice = &price
	row.ProfitPercent = &profit
	return row
}

func without(tickers []string, resolved map[string]float64) []string {
	var rest []string
	for _, t := range tickers {
		if _, ok := resolved[t]; !ok {
			rest = append(rest, t)
		}
	}
	return rest
}
