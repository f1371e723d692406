// Package intel aggregates per-trader profitability and market holder
// composition from the Data API. Results feed alert enrichment, so lookups
// degrade to zeroed summaries instead of failing a monitor run.
package intel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/polysentry/polysentry/internal/polymarket/dataapi"
)

const (
	openPositionsLimit   = 500
	closedPositionsLimit = 50
	pnlCacheTTL          = 5 * time.Minute
)

// PositionsClient is the slice of the Data API used for trader lookups
type PositionsClient interface {
	UserPositions(ctx context.Context, user string, limit int) ([]dataapi.Position, error)
	UserClosedPositions(ctx context.Context, user string, limit int) ([]dataapi.ClosedPosition, error)
	UserMarketPosition(ctx context.Context, user, conditionID string) (*dataapi.Position, error)
}

// TraderPnLSummary aggregates a wallet's lifetime profitability
type TraderPnLSummary struct {
	TotalRealizedPnl     float64
	TotalCashPnl         float64
	TotalPnl             float64
	OpenPositionsCount   int
	ClosedPositionsCount int
}

// PnLResult wraps a summary with whether it was actually fetched. A zeroed
// summary with Fetched=false means the upstream lookup failed, which is
// distinct from a trader who genuinely has zero P&L.
type PnLResult struct {
	TraderPnLSummary
	Fetched bool
}

type cacheEntry struct {
	result    PnLResult
	fetchedAt time.Time
}

// TraderIntelligence computes lifetime P&L for wallets with a short TTL
// cache, since the same whales show up across markets within one cycle.
type TraderIntelligence struct {
	client PositionsClient
	log    *logrus.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
	ttl   time.Duration
	now   func() time.Time
}

// NewTraderIntelligence creates a trader intelligence service
func NewTraderIntelligence(client PositionsClient, log *logrus.Logger) *TraderIntelligence {
	return &TraderIntelligence{
		client: client,
		log:    log,
		cache:  make(map[string]cacheEntry),
		ttl:    pnlCacheTTL,
		now:    time.Now,
	}
}

// LifetimePnL returns the wallet's aggregate P&L across open and closed
// positions. Upstream failures yield a zeroed result with Fetched=false and
// are not cached.
func (t *TraderIntelligence) LifetimePnL(ctx context.Context, address string) PnLResult {
	t.mu.Lock()
	if entry, ok := t.cache[address]; ok && t.now().Sub(entry.fetchedAt) < t.ttl {
		t.mu.Unlock()
		return entry.result
	}
	t.mu.Unlock()

	open, err := t.client.UserPositions(ctx, address, openPositionsLimit)
	if err != nil {
		t.log.WithFields(logrus.Fields{
			"address": address,
			"error":   err.Error(),
		}).Warn("Failed to fetch open positions")
		return PnLResult{}
	}

	closed, err := t.client.UserClosedPositions(ctx, address, closedPositionsLimit)
	if err != nil {
		t.log.WithFields(logrus.Fields{
			"address": address,
			"error":   err.Error(),
		}).Warn("Failed to fetch closed positions")
		return PnLResult{}
	}

	summary := TraderPnLSummary{
		OpenPositionsCount:   len(open),
		ClosedPositionsCount: len(closed),
	}
	for _, pos := range open {
		summary.TotalRealizedPnl += pos.RealizedPnl
		summary.TotalCashPnl += pos.CashPnl
	}
	for _, pos := range closed {
		summary.TotalRealizedPnl += pos.RealizedPnl
	}
	summary.TotalPnl = summary.TotalRealizedPnl + summary.TotalCashPnl

	result := PnLResult{TraderPnLSummary: summary, Fetched: true}

	t.mu.Lock()
	t.cache[address] = cacheEntry{result: result, fetchedAt: t.now()}
	t.mu.Unlock()

	return result
}

// Position returns the wallet's open position in one market, or nil when it
// holds nothing there
func (t *TraderIntelligence) Position(ctx context.Context, address, conditionID string) (*dataapi.Position, error) {
	pos, err := t.client.UserMarketPosition(ctx, address, conditionID)
	if err != nil {
		return nil, fmt.Errorf("fetch position for %s in %s: %w", address, conditionID, err)
	}
	return pos, nil
}

// ClearCache drops all cached summaries
func (t *TraderIntelligence) ClearCache() {
	t.mu.Lock()
	t.cache = make(map[string]cacheEntry)
	t.mu.Unlock()
}

// ShortAddress renders a wallet address in the usual 0x1234...abcd display form
func ShortAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
