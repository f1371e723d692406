package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/polysentry/polysentry/internal/alert"
	"github.com/polysentry/polysentry/internal/config"
	"github.com/polysentry/polysentry/internal/polymarket/dataapi"
	"github.com/polysentry/polysentry/internal/storage"
)

const accountActivityLimit = 100

// AccountMonitor raises an alert for every new trade made by a tracked wallet
type AccountMonitor struct {
	data    DataClient
	db      *storage.DB
	log     *logrus.Logger
	enabled bool

	// lastCheck is the activity checkpoint; it only advances after a full
	// pass so a failed account is retried next cycle
	lastCheck time.Time
}

// NewAccountMonitor creates a tracked-account monitor
func NewAccountMonitor(data DataClient, db *storage.DB, cfg *config.Config, log *logrus.Logger) *AccountMonitor {
	return &AccountMonitor{
		data:      data,
		db:        db,
		log:       log,
		enabled:   cfg.AccountActivityEnabled,
		lastCheck: time.Now().Add(-5 * time.Minute),
	}
}

func (m *AccountMonitor) Name() string { return "AccountMonitor" }

func (m *AccountMonitor) Enabled() bool { return m.enabled }

// Run fetches TRADE activity since the checkpoint for every tracked account
func (m *AccountMonitor) Run(ctx context.Context) ([]alert.Alert, error) {
	accounts, err := m.db.EnabledTrackedAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tracked accounts: %w", err)
	}

	if len(accounts) == 0 {
		m.log.Debug("No tracked accounts configured")
		return nil, nil
	}

	var alerts []alert.Alert
	start := m.lastCheck.Unix()

	for _, account := range accounts {
		activities, err := m.data.UserActivity(ctx, dataapi.ActivityParams{
			User:  account.Address,
			Type:  "TRADE",
			Start: start,
			Limit: accountActivityLimit,
		})
		if err != nil {
			m.log.WithFields(logrus.Fields{
				"address": account.Address,
				"error":   err.Error(),
			}).Error("Failed to fetch account activity")
			continue
		}

		if len(activities) == 0 {
			continue
		}

		m.log.WithFields(logrus.Fields{
			"address": account.Address,
			"name":    account.Name,
			"count":   len(activities),
		}).Info("New tracked account trades")

		for _, activity := range activities {
			if activity.Market == nil {
				continue
			}

			if err := m.recordTrade(ctx, account.Address, &activity); err != nil {
				m.log.WithFields(logrus.Fields{
					"address": account.Address,
					"tx":      activity.TransactionHash,
					"error":   err.Error(),
				}).Error("Failed to record trade")
				continue
			}

			name := account.Name
			if name == "" {
				name = account.Address
			}

			alerts = append(alerts, alert.Alert{
				Type:      alert.TypeAccountActivity,
				Severity:  accountSeverity(activity.Notional()),
				Title:     fmt.Sprintf("Tracked account activity: %s", name),
				Timestamp: time.Now(),
				Data: map[string]any{
					"account": map[string]any{
						"address": account.Address,
						"name":    account.Name,
					},
					"trade": map[string]any{
						"size":            float64(activity.Size),
						"usdcSize":        float64(activity.USDCSize),
						"price":           float64(activity.Price),
						"side":            activity.Side,
						"timestamp":       time.Unix(activity.Timestamp, 0).UTC().Format(time.RFC3339),
						"transactionHash": activity.TransactionHash,
					},
					"market": map[string]any{
						"slug":        activity.Market.Slug,
						"title":       activity.Market.Title,
						"conditionId": activity.ConditionID,
						"outcome":     activity.Market.Outcome,
					},
				},
			})
		}
	}

	m.lastCheck = time.Now()

	return alerts, nil
}

// recordTrade upserts the market row when unknown and the trade row always
func (m *AccountMonitor) recordTrade(ctx context.Context, address string, activity *dataapi.Activity) error {
	known, err := m.db.FindMarketByConditionID(ctx, activity.ConditionID)
	if err != nil {
		return fmt.Errorf("find market: %w", err)
	}
	if known == nil {
		if err := m.db.UpsertMarket(ctx, &storage.Market{
			ConditionID: activity.ConditionID,
			Slug:        activity.Market.Slug,
			Title:       activity.Market.Title,
		}); err != nil {
			return fmt.Errorf("upsert market: %w", err)
		}
	}

	side := activity.Side
	if side == "" {
		side = "BUY"
	}

	if err := m.db.UpsertTrade(ctx, &storage.Trade{
		TransactionHash: activity.TransactionHash,
		ConditionID:     activity.ConditionID,
		ProxyWallet:     address,
		Side:            side,
		Outcome:         activity.Market.Outcome,
		OutcomeIndex:    activity.OutcomeIndex,
		Size:            float64(activity.Size),
		Price:           float64(activity.Price),
		NotionalUSD:     activity.Notional(),
		TimestampSec:    activity.Timestamp,
	}); err != nil {
		return fmt.Errorf("upsert trade: %w", err)
	}

	return nil
}

func accountSeverity(usdcSize float64) alert.Severity {
	switch {
	case usdcSize > 10000:
		return alert.SeverityHigh
	case usdcSize > 1000:
		return alert.SeverityMedium
	default:
		return alert.SeverityLow
	}
}
