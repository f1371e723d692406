package monitor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/polysentry/polysentry/internal/alert"
	"github.com/polysentry/polysentry/internal/config"
	"github.com/polysentry/polysentry/internal/polymarket/gammaapi"
	"github.com/polysentry/polysentry/internal/storage"
)

// MarketMonitor snapshots the probability of every tracked market each cycle
// and alerts when it moved more than the configured percentage against the
// snapshot taken at least the configured offset ago. It also emits a periodic
// low-severity MARKET_UPDATE per market.
type MarketMonitor struct {
	gamma   GammaClient
	data    DataClient
	db      *storage.DB
	log     *logrus.Logger
	enabled bool

	changeThresholdPct float64
	snapshotOffset     time.Duration
	updateInterval     time.Duration
	trackLiveVolume    bool

	lastVolumes     map[string]float64
	lastUpdateAlert map[string]time.Time
}

// NewMarketMonitor creates a tracked-market probability monitor
func NewMarketMonitor(gamma GammaClient, data DataClient, db *storage.DB, cfg *config.Config, log *logrus.Logger) *MarketMonitor {
	return &MarketMonitor{
		gamma:              gamma,
		data:               data,
		db:                 db,
		log:                log,
		enabled:            cfg.MarketProbabilityEnabled,
		changeThresholdPct: cfg.MarketChangeThresholdPct,
		snapshotOffset:     time.Duration(cfg.MarketSnapshotOffsetMin) * time.Minute,
		updateInterval:     time.Duration(cfg.MarketUpdateIntervalMin) * time.Minute,
		trackLiveVolume:    cfg.TrackLiveVolume,
		lastVolumes:        make(map[string]float64),
		lastUpdateAlert:    make(map[string]time.Time),
	}
}

func (m *MarketMonitor) Name() string { return "MarketMonitor" }

func (m *MarketMonitor) Enabled() bool { return m.enabled }

// Run snapshots and compares each tracked market
func (m *MarketMonitor) Run(ctx context.Context) ([]alert.Alert, error) {
	trackedMarkets, err := m.db.EnabledTrackedMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tracked markets: %w", err)
	}

	if len(trackedMarkets) == 0 {
		m.log.Debug("No tracked markets configured")
		return nil, nil
	}

	var alerts []alert.Alert
	now := time.Now()

	for _, tracked := range trackedMarkets {
		market := resolveTrackedMarket(ctx, m.gamma, tracked, m.log)
		if market == nil {
			continue
		}

		if err := m.db.UpsertMarket(ctx, &storage.Market{
			ConditionID: tracked.ConditionID,
			Slug:        market.Slug,
			Title:       market.Question,
			EventID:     tracked.EventID,
			Volume24hr:  float64(market.Volume24hr),
		}); err != nil {
			m.log.WithFields(logrus.Fields{
				"condition_id": tracked.ConditionID,
				"error":        err.Error(),
			}).Error("Failed to upsert market")
			continue
		}

		probability := market.Probability()
		volume, volumeChange := m.trackVolume(ctx, tracked, float64(market.Volume24hr))

		// read the comparison snapshot before inserting the current one so
		// the current observation never compares against itself
		previous, err := m.db.PriceSnapshotAt(ctx, tracked.ConditionID, m.snapshotOffset)
		if err != nil {
			m.log.WithFields(logrus.Fields{
				"condition_id": tracked.ConditionID,
				"error":        err.Error(),
			}).Error("Failed to load previous snapshot")
			continue
		}

		if err := m.db.CreatePriceSnapshot(ctx, &storage.PriceSnapshot{
			ConditionID: tracked.ConditionID,
			Probability: probability,
			Volume24hr:  volume,
		}); err != nil {
			m.log.WithFields(logrus.Fields{
				"condition_id": tracked.ConditionID,
				"error":        err.Error(),
			}).Error("Failed to persist snapshot")
			continue
		}

		if previous != nil && previous.Probability > 0 {
			change := math.Abs(probability - previous.Probability)
			percentChange := change / previous.Probability * 100

			if percentChange >= m.changeThresholdPct {
				m.log.WithFields(logrus.Fields{
					"slug":     market.Slug,
					"previous": previous.Probability,
					"current":  probability,
				}).Info("Probability shift detected")

				alerts = append(alerts, alert.Alert{
					Type:      alert.TypeProbabilityShift,
					Severity:  marketSeverity(percentChange),
					Title:     fmt.Sprintf("Probability shift on %s", market.Question),
					Timestamp: now,
					Data: map[string]any{
						"market": map[string]any{
							"slug":        market.Slug,
							"title":       market.Question,
							"conditionId": tracked.ConditionID,
							"outcomes":    market.ParseOutcomes(),
						},
						"probability": map[string]any{
							"previous":      previous.Probability,
							"current":       probability,
							"change":        change,
							"percentChange": percentChange,
						},
						"volume": map[string]any{
							"current": volume,
							"change":  volumeChange,
						},
					},
				})
			}
		}

		if update := m.marketUpdate(tracked.ConditionID, market, probability, volume, now); update != nil {
			alerts = append(alerts, *update)
		}
	}

	return alerts, nil
}

// trackVolume returns the best current volume figure for the market and its
// change since last cycle. Live volume is preferred when an event ID is
// configured; failures fall back to the Gamma 24h figure.
func (m *MarketMonitor) trackVolume(ctx context.Context, tracked storage.TrackedMarket, volume24hr float64) (current, change float64) {
	current = volume24hr

	if !m.trackLiveVolume || tracked.EventID == 0 {
		return current, 0
	}

	liveVolume, err := m.data.EventLiveVolume(ctx, tracked.EventID)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"condition_id": tracked.ConditionID,
			"event_id":     tracked.EventID,
			"error":        err.Error(),
		}).Warn("Failed to fetch live volume")
		return current, 0
	}
	if liveVolume == nil {
		return current, 0
	}

	for _, mv := range liveVolume.Markets {
		if mv.Market == tracked.ConditionID {
			current = mv.Value
			change = current - m.lastVolumes[tracked.ConditionID]
			m.lastVolumes[tracked.ConditionID] = current
			return current, change
		}
	}

	return current, 0
}

// marketUpdate emits a low-severity status alert once per interval per market
func (m *MarketMonitor) marketUpdate(conditionID string, market *gammaapi.Market, probability, volume float64, now time.Time) *alert.Alert {
	if m.updateInterval <= 0 {
		return nil
	}
	if last, ok := m.lastUpdateAlert[conditionID]; ok && now.Sub(last) < m.updateInterval {
		return nil
	}
	m.lastUpdateAlert[conditionID] = now

	return &alert.Alert{
		Type:      alert.TypeMarketUpdate,
		Severity:  alert.SeverityLow,
		Title:     fmt.Sprintf("Market update: %s", market.Question),
		Timestamp: now,
		Data: map[string]any{
			"market": map[string]any{
				"slug":        market.Slug,
				"title":       market.Question,
				"conditionId": conditionID,
				"outcomes":    market.ParseOutcomes(),
			},
			"probability":   probability,
			"outcomePrices": market.ParseOutcomePrices(),
			"volume":        volume,
		},
	}
}

func marketSeverity(percentChange float64) alert.Severity {
	switch {
	case percentChange > 20:
		return alert.SeverityHigh
	case percentChange > 10:
		return alert.SeverityMedium
	default:
		return alert.SeverityLow
	}
}
