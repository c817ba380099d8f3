package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tickerwatch/sigledger/internal/domain"
)

// QuoteCache implements domain.QuoteCache using Redis hashes. Each ticker's
// quote is stored at key "quote:{ticker}" with fields "price" and "ts"
// (Unix nanosecond timestamp).
type QuoteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuoteCache creates a QuoteCache backed by the given Client. Keys expire
// after ttl; zero disables expiry.
func NewQuoteCache(c *Client, ttl time.Duration) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying(), ttl: ttl}
}

func quoteKey(ticker string) string {
	return "quote:" + ticker
}

// Set stores the quote for its ticker.
func (qc *QuoteCache) Set(ctx context.Context, q domain.Quote) error {
	key := quoteKey(q.Ticker)
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(q.Price, 'f', -1, 64),
		"ts":    strconv.FormatInt(q.At.UnixNano(), 10),
	}
	if err := qc.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", q.Ticker, err)
	}
	if qc.ttl > 0 {
		if err := qc.rdb.Expire(ctx, key, qc.ttl).Err(); err != nil {
			return fmt.Errorf("redis: expire quote %s: %w", q.Ticker, err)
		}
	}
	return nil
}

// Get retrieves the cached quote for a ticker, or domain.ErrNotFound.
func (qc *QuoteCache) Get(ctx context.Context, ticker string) (domain.Quote, error) {
	vals, err := qc.rdb.HGetAll(ctx, quoteKey(ticker)).Result()
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: get quote %s: %w", ticker, err)
	}
	q, ok := parseQuote(ticker, vals)
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	return q, nil
}

// GetMany retrieves cached quotes for multiple tickers using a pipeline.
// Tickers without a cached quote are omitted from the result map.
func (qc *QuoteCache) GetMany(ctx context.Context, tickers []string) (map[string]domain.Quote, error) {
	if len(tickers) == 0 {
		return map[string]domain.Quote{}, nil
	}

	pipe := qc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(tickers))
	for _, t := range tickers {
		cmds[t] = pipe.HGetAll(ctx, quoteKey(t))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get quotes pipeline: %w", err)
	}

	result := make(map[string]domain.Quote, len(tickers))
	for t, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil {
			continue
		}
		if q, ok := parseQuote(t, vals); ok {
			result[t] = q
		}
	}
	return result, nil
}

func parseQuote(ticker string, vals map[string]string) (domain.Quote, bool) {
	if len(vals) == 0 {
		return domain.Quote{}, false
	}
	priceStr, ok := vals["price"]
	if !ok {
		return domain.Quote{}, false
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return domain.Quote{}, false
	}
	tsStr, ok := vals["ts"]
	if !ok {
		return domain.Quote{}, false
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return domain.Quote{}, false
	}
	return domain.Quote{Ticker: ticker, Price: price, At: time.Unix(0, tsNano)}, true
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
