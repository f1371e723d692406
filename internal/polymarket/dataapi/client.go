package dataapi

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

	"github.com/polysentry/polysentry/internal/metrics"
	"github.com/polysentry/polysentry/internal/ratelimit"
)

// Limits holds the per-endpoint-group rate limits in requests per second.
type Limits struct {
	TradesRPS    float64
	ActivityRPS  float64
	PositionsRPS float64
}

// Client handles communication with the Polymarket Data API
type Client struct {
	baseURL    string
	httpClient *http.Client

	tradesLimiter    *ratelimit.Limiter
	activityLimiter  *ratelimit.Limiter
	positionsLimiter *ratelimit.Limiter
}

// NewClient creates a new Data API client
func NewClient(baseURL string, limits Limits) *Client {
	return &Client{
		baseURL:          baseURL,
		httpClient:       &http.Client{Timeout: 30 * time.Second},
		tradesLimiter:    ratelimit.New(limits.TradesRPS),
		activityLimiter:  ratelimit.New(limits.ActivityRPS),
		positionsLimiter: ratelimit.New(limits.PositionsRPS),
	}
}

// ActivityParams holds parameters for the UserActivity call
type ActivityParams struct {
	User          string
	Limit         int
	Offset        int
	Market        string
	Type          string // TRADE, SPLIT, MERGE, REDEEM, REWARD, CONVERSION
	Start         int64  // Unix seconds, inclusive
	End           int64
	SortBy        string // TIMESTAMP, TOKENS, CASH
	SortDirection string // ASC, DESC
	Side          string // BUY, SELL
}

// UserActivity fetches on-chain activity for a wallet
func (c *Client) UserActivity(ctx context.Context, params ActivityParams) ([]Activity, error) {
	q := url.Values{}
	q.Set("user", params.User)
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Offset > 0 {
		q.Set("offset", strconv.Itoa(params.Offset))
	}
	if params.Market != "" {
		q.Set("market", params.Market)
	}
	if params.Type != "" {
		q.Set("type", params.Type)
	}
	if params.Start > 0 {
		q.Set("start", strconv.FormatInt(params.Start, 10))
	}
	if params.End > 0 {
		q.Set("end", strconv.FormatInt(params.End, 10))
	}
	if params.SortBy != "" {
		q.Set("sortBy", params.SortBy)
	}
	if params.SortDirection != "" {
		q.Set("sortDirection", params.SortDirection)
	}
	if params.Side != "" {
		q.Set("side", params.Side)
	}

	var activities []Activity
	if err := c.get(ctx, c.activityLimiter, "/activity", q, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

// MarketTrades fetches recent trades for a market, newest first. A non-zero
// since timestamp (Unix seconds) bounds the window.
func (c *Client) MarketTrades(ctx context.Context, conditionID string, limit int, since int64) ([]Activity, error) {
	q := url.Values{}
	q.Set("market", conditionID)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if since > 0 {
		q.Set("start", strconv.FormatInt(since, 10))
	}
	q.Set("sortBy", "TIMESTAMP")
	q.Set("sortDirection", "DESC")

	var trades []Activity
	if err := c.get(ctx, c.tradesLimiter, "/trades", q, &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

// UserPositions fetches open positions for a wallet
func (c *Client) UserPositions(ctx context.Context, user string, limit int) ([]Position, error) {
	q := url.Values{}
	q.Set("user", user)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var positions []Position
	if err := c.get(ctx, c.positionsLimiter, "/positions", q, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

// UserMarketPosition fetches a wallet's open position in one market, or
// nil, nil when the wallet holds nothing there
func (c *Client) UserMarketPosition(ctx context.Context, user, conditionID string) (*Position, error) {
	q := url.Values{}
	q.Set("user", user)
	q.Set("market", conditionID)
	q.Set("limit", "1")

	var positions []Position
	if err := c.get(ctx, c.positionsLimiter, "/positions", q, &positions); err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, nil
	}
	return &positions[0], nil
}

// UserClosedPositions fetches settled positions for a wallet
func (c *Client) UserClosedPositions(ctx context.Context, user string, limit int) ([]ClosedPosition, error) {
	q := url.Values{}
	q.Set("user", user)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var positions []ClosedPosition
	if err := c.get(ctx, c.positionsLimiter, "/v1/closed-positions", q, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

// MarketHolders fetches the top token holders for a market. The API caps the
// limit at 20 per outcome token.
func (c *Client) MarketHolders(ctx context.Context, conditionID string, limit int) ([]MarketHolders, error) {
	if limit <= 0 || limit > 20 {
		limit = 20
	}

	q := url.Values{}
	q.Set("market", conditionID)
	q.Set("limit", strconv.Itoa(limit))

	var holders []MarketHolders
	if err := c.get(ctx, c.positionsLimiter, "/holders", q, &holders); err != nil {
		return nil, err
	}
	return holders, nil
}

// OpenInterestFor fetches open interest for the given markets
func (c *Client) OpenInterestFor(ctx context.Context, conditionIDs []string) ([]OpenInterest, error) {
	q := url.Values{}
	q.Set("market", strings.Join(conditionIDs, ","))

	var oi []OpenInterest
	if err := c.get(ctx, c.positionsLimiter, "/oi", q, &oi); err != nil {
		return nil, err
	}
	return oi, nil
}

// EventLiveVolume fetches the live trading volume for an event. Returns
// nil, nil when the API has no volume data for the event.
func (c *Client) EventLiveVolume(ctx context.Context, eventID int64) (*LiveVolume, error) {
	q := url.Values{}
	q.Set("id", strconv.FormatInt(eventID, 10))

	var volumes []LiveVolume
	if err := c.get(ctx, c.positionsLimiter, "/live-volume", q, &volumes); err != nil {
		return nil, err
	}
	if len(volumes) == 0 {
		return nil, nil
	}
	return &volumes[0], nil
}

// get performs a rate-limited GET against the Data API and decodes the JSON
// response into out.
func (c *Client) get(ctx context.Context, limiter *ratelimit.Limiter, endpoint string, query url.Values, out any) error {
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	u, err := url.Parse(c.baseURL + endpoint)
	if err != nil {
		return fmt.Errorf("parse URL: %w", err)
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RecordAPIRequest("data", endpoint, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
