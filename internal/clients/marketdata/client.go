// Package marketdata provides the EOD price and FX client used to satisfy
// the pipeline's price-lookup capability. Requests are rate limited,
// retried with exponential backoff, and bounded by the configured timeout;
// exhausted retries surface as errors so callers can flag symbols
// unpriceable instead of valuing them at zero.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"github.com/mkeating/perfrecon/internal/common"
	"github.com/mkeating/perfrecon/internal/interfaces"
	"github.com/mkeating/perfrecon/internal/models"
)

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
	DefaultRetries   = 3
)

// Compile-time interface check
var _ interfaces.MarketDataClient = (*Client)(nil)

// Client implements MarketDataClient against an EODHD-compatible API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	retries    uint
	cache      interfaces.BarCache
	cacheTTL   time.Duration
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRetries sets the retry budget for transient failures
func WithRetries(retries int) ClientOption {
	return func(c *Client) {
		if retries > 0 {
			c.retries = uint(retries)
		}
	}
}

// WithCache attaches a bar cache with the given freshness TTL
func WithCache(cache interfaces.BarCache, ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

// NewClient creates a new market data client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		retries: DefaultRetries,
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetEOD retrieves end-of-day bars for a symbol within [from, to].
func (c *Client) GetEOD(ctx context.Context, symbol string, from, to time.Time) ([]models.EODBar, error) {
	endpoint := fmt.Sprintf("%s/eod/%s", c.baseURL, url.PathEscape(symbol))
	return c.fetchBars(ctx, "eod:"+symbol, endpoint, from, to)
}

// GetFX retrieves daily FX rates for a currency pair such as "AUDUSD".
func (c *Client) GetFX(ctx context.Context, pair string, from, to time.Time) ([]models.EODBar, error) {
	endpoint := fmt.Sprintf("%s/eod/%s.FOREX", c.baseURL, url.PathEscape(pair))
	return c.fetchBars(ctx, "fx:"+pair, endpoint, from, to)
}

func (c *Client) fetchBars(ctx context.Context, cacheKey, endpoint string, from, to time.Time) ([]models.EODBar, error) {
	if c.cache != nil {
		if bars, fetched, err := c.cache.GetBars(ctx, cacheKey); err == nil && time.Since(fetched) < c.cacheTTL {
			c.logger.Debug().Str("key", cacheKey).Int("bars", len(bars)).Msg("Bar cache hit")
			return bars, nil
		}
	}

	operation := func() ([]models.EODBar, error) {
		return c.doFetch(ctx, endpoint, from, to)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond

	notify := func(err error, delay time.Duration) {
		c.logger.Warn().Err(err).Dur("backoff", delay).Str("endpoint", endpoint).Msg("Retrying market data request")
	}

	bars, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.retries),
		backoff.WithNotify(notify))
	if err != nil {
		return nil, fmt.Errorf("market data fetch %s: %w", endpoint, err)
	}

	if c.cache != nil {
		if err := c.cache.PutBars(ctx, cacheKey, bars); err != nil {
			c.logger.Warn().Err(err).Str("key", cacheKey).Msg("Failed to cache bars")
		}
	}

	return bars, nil
}

// barRecord is the provider's wire format for one day.
type barRecord struct {
	Date     string  `json:"date"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adjusted_close"`
	Volume   int64   `json:"volume"`
}

func (c *Client) doFetch(ctx context.Context, endpoint string, from, to time.Time) ([]models.EODBar, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, backoff.Permanent(err)
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("invalid endpoint: %w", err))
	}
	q := u.Query()
	q.Set("api_token", c.apiKey)
	q.Set("fmt", "json")
	q.Set("period", "d")
	q.Set("from", from.Format("2006-01-02"))
	q.Set("to", to.Format("2006-01-02"))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(fmt.Errorf("symbol not found (status 404)"))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, backoff.Permanent(fmt.Errorf("authentication failed (status %d)", resp.StatusCode))
	default:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var records []barRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("malformed bar payload: %w", err))
	}

	bars := make([]models.EODBar, 0, len(records))
	for _, r := range records {
		d, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			continue
		}
		bars = append(bars, models.EODBar{
			Date:     d,
			Open:     r.Open,
			High:     r.High,
			Low:      r.Low,
			Close:    r.Close,
			AdjClose: r.AdjClose,
			Volume:   r.Volume,
		})
	}

	return bars, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
