package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"perpscan/pkg/market"
)

const (
	defaultBaseURL          = "https://www.okx.com"
	defaultHTTPTimeout      = 10 * time.Second
	defaultMaxRetries       = 3
	defaultRetryBackoffBase = 150 * time.Millisecond

	// OKX paces public endpoints per IP in 2-second windows; stay under it.
	defaultMaxConcurrent = 10
	defaultMinInterval   = 50 * time.Millisecond
)

// Client wraps the OKX v5 public REST endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	logger     *log.Logger
	limiter    *market.Limiter
}

// Option configures a new Client.
type Option func(*Client)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL overrides the default REST base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithMaxRetries adjusts the retry budget.
func WithMaxRetries(max int) Option {
	return func(c *Client) {
		if max >= 0 {
			c.maxRetries = max
		}
	}
}

// WithLogger injects a custom logger (defaults to log.Default()).
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithLimiter replaces the default request limiter. All calls made through
// one client share the limiter.
func WithLimiter(l *market.Limiter) Option {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// NewClient constructs an OKX API client.
func NewClient(opts ...Option) *Client {
	httpClient := &http.Client{Timeout: defaultHTTPTimeout}
	client := &Client{
		baseURL:    defaultBaseURL,
		httpClient: httpClient,
		maxRetries: defaultMaxRetries,
		logger:     log.Default(),
		limiter:    market.NewLimiter(defaultMaxConcurrent, defaultMinInterval),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = httpClient
	}
	if client.logger == nil {
		client.logger = log.Default()
	}
	return client
}

// apiResponse is the envelope every OKX endpoint wraps its payload in. A
// non-zero code means the request was rejected even when HTTP says 200.
type apiResponse struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// doRequest issues a GET against path, unwraps the OKX envelope and decodes
// its data payload into result. Each attempt passes through the shared
// limiter before hitting the wire. API-level rejections (code != "0") are
// terminal: the exchange understood the request and refused it, so retrying
// the same parameters cannot succeed.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values, result interface{}) error {
	endpoint := strings.TrimRight(c.baseURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var lastErr error
	backoff := defaultRetryBackoffBase
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("okx: build request: %w", err)
		}
		if err := c.limiter.Acquire(ctx); err != nil {
			return err
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			c.limiter.Release()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			c.limiter.Release()
			if readErr != nil {
				lastErr = fmt.Errorf("okx: read response: %w", readErr)
			} else if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				lastErr = fmt.Errorf("okx: http status %d: %s", resp.StatusCode, string(body))
			} else {
				var envelope apiResponse
				if err := json.Unmarshal(body, &envelope); err != nil {
					return fmt.Errorf("okx: decode response: %w", err)
				}
				if envelope.Code != "0" {
					return fmt.Errorf("okx: api error code=%s: %s", envelope.Code, envelope.Msg)
				}
				if result != nil && len(envelope.Data) > 0 {
					if err := json.Unmarshal(envelope.Data, result); err != nil {
						return fmt.Errorf("okx: decode data: %w", err)
					}
				}
				return nil
			}
		}

		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}
	}
	if lastErr != nil {
		return lastErr
	}
	return fmt.Errorf("okx: request failed without error detail")
}

// logf prints debug output when a logger is configured.
func (c *Client) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

// canonicalSymbol upper-cases an instrument ID like BTC-USDT-SWAP.
func canonicalSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
