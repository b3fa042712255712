// Package metadata talks to the token metadata service for pool discovery
// and swap quotes.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Default configuration values.
const (
	DefaultTimeout       = 10 * time.Second
	DefaultRatePerSecond = 5
	DefaultBurst         = 10
)

// PoolInfo describes the primary liquidity pool holding a mint.
type PoolInfo struct {
	PoolID    string `json:"poolId"`
	Market    string `json:"market"`
	BaseMint  string `json:"baseMint"`
	QuoteMint string `json:"quoteMint"`
}

// Quote is an expected swap outcome for a given input amount.
type Quote struct {
	InputMint     string `json:"inputMint"`
	OutputMint    string `json:"outputMint"`
	InAmount      uint64 `json:"inAmount,string"`
	OutAmount     uint64 `json:"outAmount,string"`
	PriceImpactPc string `json:"priceImpactPct"`
}

// Client is a rate-limited HTTP client for the metadata service.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// Option configures Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithRateLimit sets requests per second and burst size.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a metadata service client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(DefaultRatePerSecond), DefaultBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetPrimaryPool returns the primary liquidity pool for a mint. A mint the
// service does not know about returns (nil, nil).
func (c *Client) GetPrimaryPool(ctx context.Context, mint string) (*PoolInfo, error) {
	var pool PoolInfo
	found, err := c.get(ctx, "/v1/pools/primary/"+url.PathEscape(mint), nil, &pool)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &pool, nil
}

// GetQuote returns the expected output amount for swapping amountIn of
// inputMint into outputMint. An unquotable pair returns (nil, nil).
func (c *Client) GetQuote(ctx context.Context, inputMint, outputMint string, amountIn uint64) (*Quote, error) {
	query := url.Values{
		"inputMint":  {inputMint},
		"outputMint": {outputMint},
		"amount":     {strconv.FormatUint(amountIn, 10)},
	}

	var quote Quote
	found, err := c.get(ctx, "/v1/quote", query, &quote)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &quote, nil
}

// get performs a rate-limited GET. Returns false without error on 404.
func (c *Client) get(ctx context.Context, path string, query url.Values, result interface{}) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, err
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, result); err != nil {
		return false, fmt.Errorf("unmarshal response: %w", err)
	}

	return true, nil
}
