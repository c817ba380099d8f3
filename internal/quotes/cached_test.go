package quotes

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickerwatch/sigledger/internal/domain"
)

type memCache struct {
	quotes map[string]domain.Quote
	err    error
	sets   int
}

func newMemCache() *memCache {
	return &memCache{quotes: make(map[string]domain.Quote)}
}

func (c *memCache) Get(_ context.Context, ticker string) (domain.Quote, error) {
	if c.err != nil {
		return domain.Quote{}, c.err
	}
	q, ok := c.quotes[ticker]
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	return q, nil
}

func (c *memCache) GetMany(_ context.Context, tickers []string) (map[string]domain.Quote, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := make(map[string]domain.Quote)
	for _, t := range tickers {
		if q, ok := c.quotes[t]; ok {
			out[t] = q
		}
	}
	return out, nil
}

func (c *memCache) Set(_ context.Context, q domain.Quote) error {
	c.sets++
	c.quotes[q.Ticker] = q
	return nil
}

type stubSource struct {
	quotes     map[string]domain.Quote
	err        error
	batchCalls int
}

func (s *stubSource) Batch(_ context.Context, tickers []string, _, _ string) (map[string]domain.Quote, error) {
	s.batchCalls++
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]domain.Quote)
	for _, t := range tickers {
		if q, ok := s.quotes[t]; ok {
			out[t] = q
		}
	}
	return out, nil
}

func (s *stubSource) Single(_ context.Context, ticker, _, _ string) (domain.Quote, error) {
	if s.err != nil {
		return domain.Quote{}, s.err
	}
	q, ok := s.quotes[ticker]
	if !ok {
		return domain.Quote{}, domain.ErrQuoteUnavailable
	}
	return q, nil
}

func freshQuote(ticker string, price float64) domain.Quote {
	return domain.Quote{Ticker: ticker, Price: price, At: time.Now()}
}

func staleQuote(ticker string, price float64) domain.Quote {
	return domain.Quote{Ticker: ticker, Price: price, At: time.Now().Add(-time.Hour)}
}

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCachedBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh cached quotes skip the source", func(t *testing.T) {
		cache := newMemCache()
		cache.quotes["GARAN"] = freshQuote("GARAN", 110)
		src := &stubSource{}

		c := NewCached(src, cache, time.Minute, nopLogger())
		quotes, err := c.Batch(ctx, []string{"GARAN"}, "1d", "1m")
		require.NoError(t, err)
		assert.Equal(t, 110.0, quotes["GARAN"].Price)
		assert.Zero(t, src.batchCalls)
	})

	t.Run("stale quotes are refetched and written back", func(t *testing.T) {
		cache := newMemCache()
		cache.quotes["GARAN"] = staleQuote("GARAN", 90)
		src := &stubSource{quotes: map[string]domain.Quote{
			"GARAN": freshQuote("GARAN", 112),
		}}

		c := NewCached(src, cache, time.Minute, nopLogger())
		quotes, err := c.Batch(ctx, []string{"GARAN"}, "1d", "1m")
		require.NoError(t, err)
		assert.Equal(t, 112.0, quotes["GARAN"].Price)
		assert.Equal(t, 1, src.batchCalls)
		assert.Equal(t, 1, cache.sets)
	})

	t.Run("mixed hit and miss fetches only the misses", func(t *testing.T) {
		cache := newMemCache()
		cache.quotes["GARAN"] = freshQuote("GARAN", 110)
		src := &stubSource{quotes: map[string]domain.Quote{
			"AKBNK": freshQuote("AKBNK", 62),
		}}

		c := NewCached(src, cache, time.Minute, nopLogger())
		quotes, err := c.Batch(ctx, []string{"GARAN", "AKBNK"}, "1d", "1m")
		require.NoError(t, err)
		assert.Len(t, quotes, 2)
		assert.Equal(t, 1, src.batchCalls)
	})

	t.Run("cache outage degrades to the source", func(t *testing.T) {
		cache := newMemCache()
		cache.err = errors.New("redis down")
		src := &stubSource{quotes: map[string]domain.Quote{
			"GARAN": freshQuote("GARAN", 111),
		}}

		c := NewCached(src, cache, time.Minute, nopLogger())
		quotes, err := c.Batch(ctx, []string{"GARAN"}, "1d", "1m")
		require.NoError(t, err)
		assert.Equal(t, 111.0, quotes["GARAN"].Price)
	})

	t.Run("source failure still serves the cached subset", func(t *testing.T) {
		cache := newMemCache()
		cache.quotes["GARAN"] = freshQuote("GARAN", 110)
		src := &stubSource{err: errors.New("upstream down")}

		c := NewCached(src, cache, time.Minute, nopLogger())
		quotes, err := c.Batch(ctx, []string{"GARAN", "AKBNK"}, "1d", "1m")
		require.NoError(t, err)
		assert.Len(t, quotes, 1)
		assert.Equal(t, 110.0, quotes["GARAN"].Price)
	})
}

func TestCachedSingle(t *testing.T) {
	ctx := context.Background()

	t.Run("serves a fresh cached quote", func(t *testing.T) {
		cache := newMemCache()
		cache.quotes["SASA"] = freshQuote("SASA", 4.5)
		src := &stubSource{err: errors.New("must not be called")}

		c := NewCached(src, cache, time.Minute, nopLogger())
		q, err := c.Single(ctx, "SASA", "1d", "1m")
		require.NoError(t, err)
		assert.Equal(t, 4.5, q.Price)
	})

	t.Run("a miss goes to the source and fills the cache", func(t *testing.T) {
		cache := newMemCache()
		src := &stubSource{quotes: map[string]domain.Quote{
			"SASA": freshQuote("SASA", 4.7),
		}}

		c := NewCached(src, cache, time.Minute, nopLogger())
		q, err := c.Single(ctx, "SASA", "1d", "1m")
		require.NoError(t, err)
		assert.Equal(t, 4.7, q.Price)
		assert.Equal(t, 1, cache.sets)
	})

	t.Run("source failure propagates", func(t *testing.T) {
		c := NewCached(&stubSource{}, newMemCache(), time.Minute, nopLogger())
		_, err := c.Single(ctx, "GHOST", "1d", "1m")
		assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)
	})
}
