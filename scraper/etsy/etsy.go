package etsy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"keyword-median/config"
	"keyword-median/models"
	"keyword-median/utils"
)

const (
	DefaultBaseURL = "https://openapi.etsy.com"
	activePath     = "/v3/application/listings/active"
	apiKeyHeader   = "x-api-key"
)

// Client pages through the Etsy active-listings endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *utils.Logger
	throttle   *utils.Throttle
	retry      *utils.RetryConfig
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another host (tests, proxies).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a ready-to-use listings client from cfg.
func New(cfg *config.Config, logger *utils.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.FetchTimeout()},
		baseURL:    strings.TrimRight(cfg.ListingsAPIURL, "/"),
		apiKey:     cfg.APIKey,
		logger:     logger,
		throttle:   utils.NewThrottle(cfg.RateLimitMs),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("etsy: unexpected status %d: %s", e.StatusCode, e.Body)
}

// FetchPage returns one page of active listings, newest first.
func (c *Client) FetchPage(ctx context.Context, limit, offset int) ([]models.ListingItem, error) {
	if err := c.throttle.Wait(ctx); err != nil {
		return nil, err
	}

	var page models.ListingPage
	err := c.retry.Do(ctx, fmt.Sprintf("fetch offset %d", offset), func() error {
		p, err := c.get(ctx, limit, offset)
		if err != nil {
			return err
		}
		page = *p
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("[etsy] offset %d: %d items (total reported %d)", offset, len(page.Results), page.Count)
	return page.Results, nil
}

func (c *Client) get(ctx context.Context, limit, offset int) (*models.ListingPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("sort_on", "created")
	q.Set("sort_order", "desc")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+activePath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("etsy: create request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("etsy: fetch listings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var page models.ListingPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("etsy: decode response: %w", err)
	}
	return &page, nil
}
