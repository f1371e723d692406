package gammaapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/polysentry/polysentry/internal/metrics"
	"github.com/polysentry/polysentry/internal/ratelimit"
)

// Client handles communication with the Polymarket Gamma API
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
}

// NewClient creates a new Gamma API client
func NewClient(baseURL string, rps float64) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    ratelimit.New(rps),
	}
}

// MarketByConditionID fetches market details by condition ID
func (c *Client) MarketByConditionID(ctx context.Context, conditionID string) (*Market, error) {
	q := url.Values{}
	q.Set("condition_ids", conditionID)

	body, err := c.get(ctx, "/markets", q)
	if err != nil {
		return nil, err
	}

	var markets []Market
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, fmt.Errorf("decode markets response: %w", err)
	}
	if len(markets) == 0 {
		return nil, fmt.Errorf("no market found for condition_id %s", conditionID)
	}

	return &markets[0], nil
}

// MarketBySlug fetches market details by slug
func (c *Client) MarketBySlug(ctx context.Context, slug string) (*Market, error) {
	q := url.Values{}
	q.Set("slug", slug)

	body, err := c.get(ctx, "/markets", q)
	if err != nil {
		return nil, err
	}

	var markets []Market
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, fmt.Errorf("decode markets response: %w", err)
	}
	if len(markets) == 0 {
		return nil, fmt.Errorf("no market found for slug %s", slug)
	}

	return &markets[0], nil
}

// EventBySlug fetches event details, including its markets, by slug
func (c *Client) EventBySlug(ctx context.Context, slug string) (*Event, error) {
	q := url.Values{}
	q.Set("slug", slug)

	body, err := c.get(ctx, "/events", q)
	if err != nil {
		return nil, err
	}

	var events []Event
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("decode events response: %w", err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("no event found for slug %s", slug)
	}

	return &events[0], nil
}

// ActiveMarkets fetches open markets ordered by 24h volume, highest first
func (c *Client) ActiveMarkets(ctx context.Context, limit, offset int) ([]Market, error) {
	q := url.Values{}
	q.Set("active", "true")
	q.Set("closed", "false")
	q.Set("order", "volume24hr")
	q.Set("ascending", "false")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}

	body, err := c.get(ctx, "/markets", q)
	if err != nil {
		return nil, err
	}

	var markets []Market
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, fmt.Errorf("decode markets response: %w", err)
	}

	return markets, nil
}

// get performs a rate-limited GET against the Gamma API and returns the body.
// The Gamma API is public, so no auth headers are set.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u, err := url.Parse(c.baseURL + endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RecordAPIRequest("gamma", endpoint, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
