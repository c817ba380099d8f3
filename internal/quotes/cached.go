package quotes

import (
	"context"
	"log/slog"
	"time"

	"github.com/tickerwatch/sigledger/internal/domain"
)

// Cached decorates a QuoteSource with a QuoteCache. Fresh cached quotes are
// served without touching the network; resolved quotes are written back.
// Cache failures degrade to the underlying source and are only logged.
type Cached struct {
	src    domain.QuoteSource
	cache  domain.QuoteCache
	maxAge time.Duration
	logger *slog.Logger
}

// NewCached wraps src with cache. Quotes older than maxAge are refetched.
func NewCached(src domain.QuoteSource, cache domain.QuoteCache, maxAge time.Duration, logger *slog.Logger) *Cached {
	return &Cached{
		src:    src,
		cache:  cache,
		maxAge: maxAge,
		logger: logger.With(slog.String("component", "quote_cache")),
	}
}

// Batch serves what it can from the cache and fetches only the missing or
// stale tickers from the underlying source.
func (c *Cached) Batch(ctx context.Context, tickers []string, rng, interval string) (map[string]domain.Quote, error) {
	result := make(map[string]domain.Quote, len(tickers))

	cached, err := c.cache.GetMany(ctx, tickers)
	if err != nil {
		c.logger.WarnContext(ctx, "cache read failed", slog.String("error", err.Error()))
		cached = map[string]domain.Quote{}
	}

	var misses []string
	for _, t := range tickers {
		if q, ok := cached[t]; ok && c.fresh(q) {
			result[t] = q
			continue
		}
		misses = append(misses, t)
	}
	if len(misses) == 0 {
		return result, nil
	}

	fetched, err := c.src.Batch(ctx, misses, rng, interval)
	if err != nil {
		// Partial results from the cache are still useful to the caller.
		if len(result) > 0 {
			c.logger.WarnContext(ctx, "batch fetch failed, serving cached subset",
				slog.Int("cached", len(result)),
				slog.String("error", err.Error()),
			)
			return result, nil
		}
		return nil, err
	}

	for t, q := range fetched {
		result[t] = q
		if err := c.cache.Set(ctx, q); err != nil {
			c.logger.WarnContext(ctx, "cache write failed",
				slog.String("ticker", t),
				slog.String("error", err.Error()),
			)
		}
	}
	return result, nil
}

// Single consults the cache first, then the underlying source.
func (c *Cached) Single(ctx context.Context, ticker, rng, interval string) (domain.Quote, error) {
	if q, err := c.cache.Get(ctx, ticker); err == nil && c.fresh(q) {
		return q, nil
	}

	q, err := c.src.Single(ctx, ticker, rng, interval)
	if err != nil {
		return domain.Quote{}, err
	}
	if err := c.cache.Set(ctx, q); err != nil {
		c.logger.WarnContext(ctx, "cache write failed",
			slog.String("ticker", ticker),
			slog.String("error", err.Error()),
		)
	}
	return q, nil
}

func (c *Cached) fresh(q domain.Quote) bool {
	if c.maxAge <= 0 {
		return false
	}
	return time.Since(q.At) <= c.maxAge
}

// Compile-time interface check.
var _ domain.QuoteSource = (*Cached)(nil)
