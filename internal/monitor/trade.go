package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/polysentry/polysentry/internal/alert"
	"github.com/polysentry/polysentry/internal/config"
	"github.com/polysentry/polysentry/internal/intel"
	"github.com/polysentry/polysentry/internal/polymarket/dataapi"
	"github.com/polysentry/polysentry/internal/polymarket/gammaapi"
	"github.com/polysentry/polysentry/internal/storage"
)

const tradeFetchLimit = 100

// TradeMonitor watches the trade flow of tracked markets. Wallets whose
// single-trade notional reaches the whale threshold join a process-lifetime
// whale set; their later trades are tagged WHALE_ACTIVITY instead of
// LARGE_TRADE.
type TradeMonitor struct {
	data    DataClient
	gamma   GammaClient
	db      *storage.DB
	intel   *intel.TraderIntelligence
	log     *logrus.Logger
	enabled bool

	largeTradeUSD float64
	whalePnlUSD   float64
	includeIntel  bool

	// cursors maps condition ID to the last processed trade timestamp
	// (Unix seconds); it only advances after a successful fetch
	cursors map[string]int64
	whales  map[string]struct{}
}

// NewTradeMonitor creates a tracked-market trade monitor
func NewTradeMonitor(data DataClient, gamma GammaClient, db *storage.DB, traderIntel *intel.TraderIntelligence, cfg *config.Config, log *logrus.Logger) *TradeMonitor {
	return &TradeMonitor{
		data:          data,
		gamma:         gamma,
		db:            db,
		intel:         traderIntel,
		log:           log,
		enabled:       cfg.TradeActivityEnabled,
		largeTradeUSD: cfg.LargeTradeUSD,
		whalePnlUSD:   cfg.WhalePnlUSD,
		includeIntel:  cfg.IncludeTraderIntel,
		cursors:       make(map[string]int64),
		whales:        make(map[string]struct{}),
	}
}

func (m *TradeMonitor) Name() string { return "TradeMonitor" }

func (m *TradeMonitor) Enabled() bool { return m.enabled }

// Run fetches new trades per tracked market and classifies them
func (m *TradeMonitor) Run(ctx context.Context) ([]alert.Alert, error) {
	trackedMarkets, err := m.db.EnabledTrackedMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tracked markets: %w", err)
	}

	if len(trackedMarkets) == 0 {
		m.log.Debug("No tracked markets configured")
		return nil, nil
	}

	m.intel.ClearCache()

	var alerts []alert.Alert

	for _, tracked := range trackedMarkets {
		market := resolveTrackedMarket(ctx, m.gamma, tracked, m.log)
		if market == nil {
			continue
		}

		since := m.cursors[tracked.ConditionID]
		if since == 0 {
			since = time.Now().Add(-5 * time.Minute).Unix()
		}

		trades, err := m.data.MarketTrades(ctx, tracked.ConditionID, tradeFetchLimit, since)
		if err != nil {
			m.log.WithFields(logrus.Fields{
				"condition_id": tracked.ConditionID,
				"error":        err.Error(),
			}).Error("Failed to fetch market trades")
			continue
		}

		maxSeen := since
		newTrades := 0

		for i := range trades {
			trade := &trades[i]
			if trade.Timestamp <= since {
				continue
			}
			newTrades++
			if trade.Timestamp > maxSeen {
				maxSeen = trade.Timestamp
			}

			if a := m.classify(ctx, market, tracked.ConditionID, trade); a != nil {
				alerts = append(alerts, *a)
			}
		}

		if newTrades > 0 {
			m.log.WithFields(logrus.Fields{
				"slug":  market.Slug,
				"count": newTrades,
			}).Info("Processed new trades")
		}

		m.cursors[tracked.ConditionID] = maxSeen
	}

	return alerts, nil
}

// classify persists the trade, updates the whale set and builds an alert when
// the trade clears the large-trade threshold
func (m *TradeMonitor) classify(ctx context.Context, market *gammaapi.Market, conditionID string, trade *dataapi.Activity) *alert.Alert {
	notional := float64(trade.Size) * float64(trade.Price)

	if err := m.db.UpsertTrade(ctx, &storage.Trade{
		TransactionHash: trade.TransactionHash,
		ConditionID:     conditionID,
		ProxyWallet:     trade.ProxyWallet,
		Side:            trade.Side,
		Outcome:         m.tradeOutcome(market, trade),
		OutcomeIndex:    trade.OutcomeIndex,
		Size:            float64(trade.Size),
		Price:           float64(trade.Price),
		NotionalUSD:     notional,
		TimestampSec:    trade.Timestamp,
	}); err != nil {
		m.log.WithFields(logrus.Fields{
			"tx":    trade.TransactionHash,
			"error": err.Error(),
		}).Error("Failed to persist trade")
	}

	if notional >= m.whalePnlUSD {
		if _, known := m.whales[trade.ProxyWallet]; !known {
			m.whales[trade.ProxyWallet] = struct{}{}
			m.log.WithFields(logrus.Fields{
				"wallet": intel.ShortAddress(trade.ProxyWallet),
				"size":   notional,
			}).Info("Whale trader identified")
		}
	}

	if notional < m.largeTradeUSD {
		return nil
	}

	_, isWhale := m.whales[trade.ProxyWallet]

	alertType := alert.TypeLargeTrade
	title := fmt.Sprintf("Trade on %s", market.Question)
	if isWhale {
		alertType = alert.TypeWhaleActivity
		title = fmt.Sprintf("Whale trader active on %s", market.Question)
	}

	data := map[string]any{
		"market": map[string]any{
			"slug":        market.Slug,
			"title":       market.Question,
			"conditionId": conditionID,
			"outcomes":    market.ParseOutcomes(),
		},
		"trade": map[string]any{
			"size":            notional,
			"side":            trade.Side,
			"outcome":         m.tradeOutcome(market, trade),
			"price":           float64(trade.Price),
			"userAddress":     trade.ProxyWallet,
			"transactionHash": trade.TransactionHash,
			"timestamp":       time.Unix(trade.Timestamp, 0).UTC().Format(time.RFC3339),
		},
		"currentProbability": market.Probability(),
		"outcomePrices":      market.ParseOutcomePrices(),
		"isKnownWhale":       isWhale,
	}

	if m.includeIntel {
		data["trader"] = m.traderData(ctx, trade.ProxyWallet, conditionID)
	}

	return &alert.Alert{
		Type:      alertType,
		Severity:  tradeSeverity(notional),
		Title:     title,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// traderData enriches an alert with the trader's lifetime P&L and current
// position. The intel cache keeps repeat whales cheap within one run.
func (m *TradeMonitor) traderData(ctx context.Context, address, conditionID string) map[string]any {
	pnl := m.intel.LifetimePnL(ctx, address)

	data := map[string]any{
		"address":         address,
		"name":            intel.ShortAddress(address),
		"lifetimePnL":     pnl.TotalPnl,
		"realizedPnL":     pnl.TotalRealizedPnl,
		"unrealizedPnL":   pnl.TotalCashPnl,
		"openPositions":   pnl.OpenPositionsCount,
		"closedPositions": pnl.ClosedPositionsCount,
		"fetched":         pnl.Fetched,
		"positionSize":    0.0,
		"positionValue":   0.0,
	}

	position, err := m.intel.Position(ctx, address, conditionID)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"address": address,
			"error":   err.Error(),
		}).Warn("Failed to fetch trader position")
		return data
	}
	if position != nil {
		data["positionSize"] = position.Size
		data["positionValue"] = position.CurrentValue
	}

	return data
}

func (m *TradeMonitor) tradeOutcome(market *gammaapi.Market, trade *dataapi.Activity) string {
	if trade.Market != nil && trade.Market.Outcome != "" {
		return trade.Market.Outcome
	}
	outcomes := market.ParseOutcomes()
	if trade.OutcomeIndex >= 0 && trade.OutcomeIndex < len(outcomes) {
		return outcomes[trade.OutcomeIndex]
	}
	return ""
}

func tradeSeverity(notional float64) alert.Severity {
	switch {
	case notional > 50000:
		return alert.SeverityHigh
	case notional > 10000:
		return alert.SeverityMedium
	default:
		return alert.SeverityLow
	}
}
