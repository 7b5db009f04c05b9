// Package pricefeed fetches external reference rates from the price
// feed API. Rate unavailability invalidates all USD-denominated output,
// so the client applies a timeout and bounded retry with exponential
// backoff.
package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"warp-markets/internal/domain"
)

// ErrUnavailable is returned when the feed cannot be reached or answers
// with a non-2xx status after all retries.
var ErrUnavailable = errors.New("price feed unavailable")

// tokensPath is the feed endpoint listing known reference assets.
const tokensPath = "price_feed_api/tokens/"

// Default configuration values.
const (
	DefaultTimeout     = 10 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
	DefaultBackoffMult = 2.0
)

// Source fetches the current set of exchange rates.
type Source interface {
	ExchangeRates(ctx context.Context) (Rates, error)
}

// Client implements Source over HTTP.
type Client struct {
	baseURL     string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// Option configures Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets the initial retry delay.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a price feed client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     baseURL,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExchangeRates fetches the full rate set from the feed.
func (c *Client) ExchangeRates(ctx context.Context) (Rates, error) {
	endpoint, err := url.JoinPath(c.baseURL, tokensPath)
	if err != nil {
		return Rates{}, fmt.Errorf("join feed url: %w", err)
	}

	var lastErr error
	delay := c.retryDelay
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Rates{}, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		rates, err := c.fetch(ctx, endpoint)
		if err == nil {
			return rates, nil
		}
		lastErr = err
	}

	return Rates{}, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *Client) fetch(ctx context.Context, endpoint string) (Rates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Rates{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Rates{}, fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Rates{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var rates []domain.ExchangeRate
	if err := json.NewDecoder(resp.Body).Decode(&rates); err != nil {
		return Rates{}, fmt.Errorf("decode rates: %w", err)
	}

	return NewRates(rates), nil
}
