// Package quotes resolves current market prices for tickers from a
// Yahoo-Finance-compatible HTTP API. The source is treated as best-effort:
// tickers without data are omitted from batch results rather than failing
// the whole request.
package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tickerwatch/sigledger/internal/domain"
)

// ClientConfig holds parameters for the quote client.
type ClientConfig struct {
	// BaseURL is the API host, e.g. "https://query1.finance.yahoo.com".
	BaseURL string
	// Suffix is appended to every ticker symbol on the wire (exchange
	// convention, e.g. ".IS" for Borsa Istanbul) and stripped from results.
	Suffix string
	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// Client implements domain.QuoteSource against the spark (batch) and chart
// (single) endpoints.
type Client struct {
	baseURL string
	suffix  string
	http    *http.Client
}

// NewClient creates a quote Client from cfg.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		suffix:  cfg.Suffix,
		http:    &http.Client{Timeout: timeout},
	}
}

type chartIndicators struct {
	Quote []struct {
		Close []*float64 `json:"close"`
	} `json:"quote"`
}

type chartResult struct {
	Meta struct {
		Symbol             string  `json:"symbol"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
	} `json:"meta"`
	Timestamp  []int64         `json:"timestamp"`
	Indicators chartIndicators `json:"indicators"`
}

type sparkResponse struct {
	Spark struct {
		Result []struct {
			Symbol   string        `json:"symbol"`
			Response []chartResult `json:"response"`
		} `json:"result"`
	} `json:"spark"`
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Batch fetches the most recent prices for many tickers in one spark
// request. Tickers that resolve to no usable close are absent from the map.
func (c *Client) Batch(ctx context.Context, tickers []string, rng, interval string) (map[string]domain.Quote, error) {
	if len(tickers) == 0 {
		return map[string]domain.Quote{}, nil
	}

	symbols := make([]string, len(tickers))
	for i, t := range tickers {
		symbols[i] = c.symbol(t)
	}

	q := url.Values{}
	q.Set("symbols", strings.Join(symbols, ","))
	q.Set("range", rng)
	q.Set("interval", interval)
	endpoint := c.baseURL + "/v7/finance/spark?" + q.Encode()

	var resp sparkResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("quotes: batch %d tickers: %w", len(tickers), err)
	}

	quotes := make(map[string]domain.Quote, len(tickers))
	for _, res := range resp.Spark.Result {
		if len(res.Response) == 0 {
			continue
		}
		price, at, ok := lastClose(res.Response[0])
		if !ok {
			continue
		}
		ticker := c.ticker(res.Symbol)
		quotes[ticker] = domain.Quote{Ticker: ticker, Price: price, At: at}
	}
	return quotes, nil
}

// Single fetches the most recent price for one ticker via the chart
// endpoint. Missing data yields domain.ErrQuoteUnavailable.
func (c *Client) Single(ctx context.Context, ticker, rng, interval string) (domain.Quote, error) {
	q := url.Values{}
	q.Set("range", rng)
	q.Set("interval", interval)
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s",
		c.baseURL, url.PathEscape(c.symbol(ticker)), q.Encode())

	var resp chartResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("quotes: single %s: %w", ticker, err)
	}
	if resp.Chart.Error != nil {
		return domain.Quote{}, fmt.Errorf("%w: %s: %s",
			domain.ErrQuoteUnavailable, ticker, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return domain.Quote{}, fmt.Errorf("%w: %s", domain.ErrQuoteUnavailable, ticker)
	}

	price, at, ok := lastClose(resp.Chart.Result[0])
	if !ok {
		return domain.Quote{}, fmt.Errorf("%w: %s: no usable close", domain.ErrQuoteUnavailable, ticker)
	}
	return domain.Quote{Ticker: ticker, Price: price, At: at}, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "sigledger/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// lastClose extracts the most recent non-null close from a chart result,
// falling back to the regular market price in the meta block.
func lastClose(res chartResult) (float64, time.Time, bool) {
	if len(res.Indicators.Quote) > 0 {
		closes := res.Indicators.Quote[0].Close
		for i := len(closes) - 1; i >= 0; i-- {
			if closes[i] == nil || *closes[i] <= 0 {
				continue
			}
			at := time.Now().UTC()
			if i < len(res.Timestamp) {
				at = time.Unix(res.Timestamp[i], 0).UTC()
			}
			return *closes[i], at, true
		}
	}
	if res.Meta.RegularMarketPrice > 0 {
		return res.Meta.RegularMarketPrice, time.Now().UTC(), true
	}
	return 0, time.Time{}, false
}

func (c *Client) symbol(ticker string) string {
	if c.suffix != "" && !strings.HasSuffix(ticker, c.suffix) {
		return ticker + c.suffix
	}
	return ticker
}

func (c *Client) ticker(symbol string) string {
	return strings.TrimSuffix(symbol, c.suffix)
}

// Compile-time interface check.
var _ domain.QuoteSource = (*Client)(nil)
