// Package oracle wraps the external historical-price service.
// Unavailability is a normal outcome (illiquid asset, no trade at that
// time, oracle gap) and is never surfaced as a transport error.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"tickerpulse/internal/catalog"
	"tickerpulse/internal/observability"
)

// ErrUnavailable is the only error clients return. It covers future
// timestamps, transport failures, non-2xx responses and missing data.
var ErrUnavailable = errors.New("price unavailable")

// Client provides point-in-time historical prices.
type Client interface {
	// PriceAt returns the asset price at unixTime. Any failure mode
	// returns ErrUnavailable; callers must not treat it as fatal.
	PriceAt(ctx context.Context, address string, chain catalog.Chain, unixTime int64) (float64, error)
}

// Default configuration values.
const (
	DefaultBaseURL = "https://public-api.birdeye.so"
	DefaultTimeout = 15 * time.Second
)

// HTTPClient implements Client against the Birdeye historical price API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	now     func() time.Time
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *HTTPClient) {
		c.baseURL = u
	}
}

// WithTimeout sets the per-call HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithNowFunc overrides the clock used for the future-timestamp guard.
func WithNowFunc(now func() time.Time) ClientOption {
	return func(c *HTTPClient) {
		c.now = now
	}
}

// NewHTTPClient creates a price oracle client.
func NewHTTPClient(apiKey string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: DefaultTimeout},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ Client = (*HTTPClient)(nil)

// priceResponse is the wire shape of a historical price lookup.
// Absence of data or value means the price is unavailable.
type priceResponse struct {
	Data *struct {
		Value *float64 `json:"value"`
	} `json:"data"`
}

// PriceAt issues one historical-price query. Timestamps in the future
// short-circuit to ErrUnavailable without touching the network.
func (c *HTTPClient) PriceAt(ctx context.Context, address string, chain catalog.Chain, unixTime int64) (float64, error) {
	if unixTime > c.now().Unix() {
		observability.RecordOracleCall(string(chain), "future", 0)
		return 0, ErrUnavailable
	}

	start := time.Now()
	price, err := c.fetch(ctx, address, chain, unixTime)
	outcome := "ok"
	if err != nil {
		outcome = "unavailable"
	}
	observability.RecordOracleCall(string(chain), outcome, time.Since(start).Seconds())
	return price, err
}

func (c *HTTPClient) fetch(ctx context.Context, address string, chain catalog.Chain, unixTime int64) (float64, error) {
	endpoint := fmt.Sprintf("%s/defi/historical_price_unix?address=%s&unixtime=%d",
		c.baseURL, url.QueryEscape(address), unixTime)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, ErrUnavailable
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("x-chain", string(chain))

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, ErrUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, ErrUnavailable
	}

	var decoded priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, ErrUnavailable
	}
	if decoded.Data == nil || decoded.Data.Value == nil {
		return 0, ErrUnavailable
	}
	return *decoded.Data.Value, nil
}
