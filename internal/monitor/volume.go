package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/polysentry/polysentry/internal/alert"
	"github.com/polysentry/polysentry/internal/config"
	"github.com/polysentry/polysentry/internal/stats"
	"github.com/polysentry/polysentry/internal/storage"
)

const minVolumeSamples = 10

// VolumeMonitor scans the highest-volume active markets and flags trades
// whose notional is a statistical outlier against the market's recent window.
type VolumeMonitor struct {
	gamma   GammaClient
	db      *storage.DB
	log     *logrus.Logger
	enabled bool

	threshold float64
	window    time.Duration
	scanLimit int
}

// NewVolumeMonitor creates a volume outlier monitor
func NewVolumeMonitor(gamma GammaClient, db *storage.DB, cfg *config.Config, log *logrus.Logger) *VolumeMonitor {
	return &VolumeMonitor{
		gamma:     gamma,
		db:        db,
		log:       log,
		enabled:   cfg.VolumeOutlierEnabled,
		threshold: cfg.VolumeStdDevThreshold,
		window:    time.Duration(cfg.VolumeWindowHours) * time.Hour,
		scanLimit: cfg.VolumeMarketScanLimit,
	}
}

func (m *VolumeMonitor) Name() string { return "VolumeMonitor" }

func (m *VolumeMonitor) Enabled() bool { return m.enabled }

// Run fetches active markets and tests each market's most recent trade
// against the stored trade-size distribution
func (m *VolumeMonitor) Run(ctx context.Context) ([]alert.Alert, error) {
	markets, err := m.gamma.ActiveMarkets(ctx, m.scanLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("fetch active markets: %w", err)
	}

	m.log.WithField("count", len(markets)).Debug("Scanning active markets for volume outliers")

	var alerts []alert.Alert
	since := time.Now().Add(-m.window)

	for i := range markets {
		market := &markets[i]

		if err := m.db.UpsertMarket(ctx, &storage.Market{
			ConditionID: market.ConditionID,
			Slug:        market.Slug,
			Title:       market.Question,
			Volume24hr:  float64(market.Volume24hr),
		}); err != nil {
			m.log.WithFields(logrus.Fields{
				"slug":  market.Slug,
				"error": err.Error(),
			}).Error("Failed to upsert market")
			continue
		}

		trades, err := m.db.TradesByMarketSince(ctx, market.ConditionID, since)
		if err != nil {
			m.log.WithFields(logrus.Fields{
				"slug":  market.Slug,
				"error": err.Error(),
			}).Error("Failed to load recent trades")
			continue
		}

		if len(trades) < minVolumeSamples {
			continue
		}

		sizes := make([]float64, len(trades))
		for j, t := range trades {
			sizes[j] = t.NotionalUSD
		}

		// trades are ordered oldest first
		lastTrade := trades[len(trades)-1]
		result := stats.DetectOutlier(lastTrade.NotionalUSD, sizes, m.threshold)
		if !result.IsOutlier {
			continue
		}

		m.log.WithFields(logrus.Fields{
			"slug":    market.Slug,
			"size":    lastTrade.NotionalUSD,
			"z_score": result.ZScore,
		}).Info("Volume outlier detected")

		alerts = append(alerts, alert.Alert{
			Type:      alert.TypeVolumeOutlier,
			Severity:  volumeSeverity(result.ZScore),
			Title:     fmt.Sprintf("Large trade detected on %s", market.Question),
			Timestamp: time.Now(),
			Data: map[string]any{
				"market": marketData(market),
				"trade": map[string]any{
					"size":            lastTrade.Size,
					"usdcSize":        lastTrade.NotionalUSD,
					"price":           lastTrade.Price,
					"side":            lastTrade.Side,
					"userAddress":     lastTrade.ProxyWallet,
					"transactionHash": lastTrade.TransactionHash,
					"timestamp":       time.Unix(lastTrade.TimestampSec, 0).UTC().Format(time.RFC3339),
				},
				"statistics": map[string]any{
					"mean":      result.Mean,
					"stdDev":    result.StdDev,
					"zScore":    result.ZScore,
					"threshold": result.Threshold,
				},
			},
		})
	}

	return alerts, nil
}

func volumeSeverity(zScore float64) alert.Severity {
	switch {
	case zScore > 4:
		return alert.SeverityHigh
	case zScore > 3:
		return alert.SeverityMedium
	default:
		return alert.SeverityLow
	}
}
