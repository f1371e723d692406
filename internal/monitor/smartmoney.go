package monitor

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/polysentry/polysentry/internal/alert"
	"github.com/polysentry/polysentry/internal/config"
	"github.com/polysentry/polysentry/internal/intel"
	"github.com/polysentry/polysentry/internal/storage"
)

// pnlNoiseFloor is the minimum absolute side P&L movement considered a shift
const pnlNoiseFloor = 1000.0

// SmartMoneyMonitor produces a periodic report per tracked market comparing
// the profitability of the holders on each side, alongside open interest and
// live volume movement since the previous report.
type SmartMoneyMonitor struct {
	gamma    GammaClient
	data     DataClient
	db       *storage.DB
	analyzer *intel.SmartMoneyAnalyzer
	log      *logrus.Logger
	enabled  bool

	interval time.Duration
	lastRun  time.Time // zero value makes the first cycle run
}

// NewSmartMoneyMonitor creates a smart money monitor
func NewSmartMoneyMonitor(gamma GammaClient, data DataClient, db *storage.DB, analyzer *intel.SmartMoneyAnalyzer, cfg *config.Config, log *logrus.Logger) *SmartMoneyMonitor {
	return &SmartMoneyMonitor{
		gamma:    gamma,
		data:     data,
		db:       db,
		analyzer: analyzer,
		log:      log,
		enabled:  cfg.SmartMoneyEnabled,
		interval: time.Duration(cfg.SmartMoneyIntervalMin) * time.Minute,
	}
}

func (m *SmartMoneyMonitor) Name() string { return "SmartMoneyMonitor" }

func (m *SmartMoneyMonitor) Enabled() bool { return m.enabled }

// Run analyzes each tracked market when the interval has elapsed
func (m *SmartMoneyMonitor) Run(ctx context.Context) ([]alert.Alert, error) {
	now := time.Now()
	if now.Sub(m.lastRun) < m.interval {
		return nil, nil
	}

	trackedMarkets, err := m.db.EnabledTrackedMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tracked markets: %w", err)
	}

	if len(trackedMarkets) == 0 {
		m.log.Debug("No tracked markets configured")
		return nil, nil
	}

	m.log.WithField("count", len(trackedMarkets)).Info("Running smart money analysis")

	var alerts []alert.Alert

	for _, tracked := range trackedMarkets {
		a, err := m.analyzeMarket(ctx, tracked, now)
		if err != nil {
			m.log.WithFields(logrus.Fields{
				"condition_id": tracked.ConditionID,
				"name":         tracked.Name,
				"error":        err.Error(),
			}).Error("Smart money analysis failed")
			continue
		}
		if a != nil {
			alerts = append(alerts, *a)
		}
	}

	m.lastRun = now

	return alerts, nil
}

func (m *SmartMoneyMonitor) analyzeMarket(ctx context.Context, tracked storage.TrackedMarket, now time.Time) (*alert.Alert, error) {
	market := resolveTrackedMarket(ctx, m.gamma, tracked, m.log)
	if market == nil {
		return nil, nil
	}

	sidePnL, err := m.analyzer.SidePnL(ctx, tracked.ConditionID)
	if err != nil {
		return nil, err
	}
	dist := sidePnL.Distribution

	openInterest := m.openInterest(ctx, tracked.ConditionID)
	liveVolume := m.liveVolume(ctx, tracked)
	probability := market.Probability()

	// read the previous report before persisting the current one so the
	// hour-over-hour comparison never sees its own snapshot
	previous, err := m.db.LatestMarketSnapshot(ctx, tracked.ConditionID)
	if err != nil {
		return nil, fmt.Errorf("load previous snapshot: %w", err)
	}

	if err := m.db.CreateMarketSnapshot(ctx, &storage.MarketSnapshot{
		ConditionID:      tracked.ConditionID,
		Probability:      probability,
		OpenInterest:     openInterest,
		LiveVolume:       liveVolume,
		YesHolderCount:   len(dist.YesHolders),
		NoHolderCount:    len(dist.NoHolders),
		YesConcentration: dist.YesConcentration,
		NoConcentration:  dist.NoConcentration,
		YesTotalPnl:      sidePnL.YesSidePnL,
		NoTotalPnl:       sidePnL.NoSidePnL,
		YesAvgPnl:        sidePnL.YesSideAvgPnL,
		NoAvgPnl:         sidePnL.NoSideAvgPnL,
		SmarterSide:      sidePnL.SmarterSide,
	}); err != nil {
		return nil, fmt.Errorf("persist snapshot: %w", err)
	}

	data := map[string]any{
		"market": map[string]any{
			"slug":        market.Slug,
			"title":       market.Question,
			"conditionId": tracked.ConditionID,
			"outcomes":    market.ParseOutcomes(),
		},
		"openInterest": map[string]any{
			"current": openInterest,
			"change":  0.0,
		},
		"volume": map[string]any{
			"current": liveVolume,
			"change":  0.0,
		},
		"holderDistribution": map[string]any{
			"yes": map[string]any{
				"topHolders":    dist.YesHolders,
				"concentration": dist.YesConcentration,
				"totalAmount":   dist.TotalYesAmount,
				"count":         len(dist.YesHolders),
			},
			"no": map[string]any{
				"topHolders":    dist.NoHolders,
				"concentration": dist.NoConcentration,
				"totalAmount":   dist.TotalNoAmount,
				"count":         len(dist.NoHolders),
			},
		},
		"sidePnL": map[string]any{
			"yes": map[string]any{
				"totalPnL": sidePnL.YesSidePnL,
				"avgPnL":   sidePnL.YesSideAvgPnL,
			},
			"no": map[string]any{
				"totalPnL": sidePnL.NoSidePnL,
				"avgPnL":   sidePnL.NoSideAvgPnL,
			},
			"smarterSide": sidePnL.SmarterSide,
		},
	}

	pnlShift := ""
	if previous != nil {
		oiChange := openInterest - previous.OpenInterest
		volumeChange := liveVolume - previous.LiveVolume
		pnlShift = detectPnLShift(sidePnL.YesSidePnL, sidePnL.NoSidePnL, previous.YesTotalPnl, previous.NoTotalPnl)

		data["openInterest"].(map[string]any)["change"] = oiChange
		data["volume"].(map[string]any)["change"] = volumeChange
		data["hourOverHour"] = map[string]any{
			"openInterestTrend": trend(oiChange),
			"volumeTrend":       trend(volumeChange),
			"smartMoneyShift":   pnlShift,
		}
	}

	data["sidePnL"].(map[string]any)["analysis"] = buildInsights(sidePnL, pnlShift)

	m.log.WithFields(logrus.Fields{
		"slug":         market.Slug,
		"smarter_side": sidePnL.SmarterSide,
	}).Info("Smart money report generated")

	return &alert.Alert{
		Type:      alert.TypeSmartMoneyReport,
		Severity:  alert.SeverityLow,
		Title:     fmt.Sprintf("Smart Money Report: %s", market.Question),
		Timestamp: now,
		Data:      data,
	}, nil
}

func (m *SmartMoneyMonitor) openInterest(ctx context.Context, conditionID string) float64 {
	oiData, err := m.data.OpenInterestFor(ctx, []string{conditionID})
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"condition_id": conditionID,
			"error":        err.Error(),
		}).Warn("Failed to fetch open interest")
		return 0
	}
	if len(oiData) == 0 {
		return 0
	}
	return oiData[0].Value
}

func (m *SmartMoneyMonitor) liveVolume(ctx context.Context, tracked storage.TrackedMarket) float64 {
	if tracked.EventID == 0 {
		return 0
	}

	volumeData, err := m.data.EventLiveVolume(ctx, tracked.EventID)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"event_id": tracked.EventID,
			"error":    err.Error(),
		}).Warn("Failed to fetch live volume")
		return 0
	}
	if volumeData == nil {
		return 0
	}

	for _, mv := range volumeData.Markets {
		if mv.Market == tracked.ConditionID {
			return mv.Value
		}
	}
	return 0
}

// detectPnLShift summarizes how side P&L moved since the previous report.
// Movements under the noise floor on both sides are not a shift.
func detectPnLShift(curYes, curNo, prevYes, prevNo float64) string {
	yesChange := curYes - prevYes
	noChange := curNo - prevNo

	if math.Abs(yesChange) < pnlNoiseFloor && math.Abs(noChange) < pnlNoiseFloor {
		return "No significant P&L shift"
	}

	switch {
	case yesChange > noChange*2:
		return fmt.Sprintf("Yes side P&L improving (+$%.0f)", yesChange)
	case noChange > yesChange*2:
		return fmt.Sprintf("No side P&L improving (+$%.0f)", noChange)
	default:
		return fmt.Sprintf("Both sides P&L changing (Yes: $%.0f, No: $%.0f)", yesChange, noChange)
	}
}

// buildInsights renders the qualitative summary attached to the report
func buildInsights(sidePnL *intel.SidePnLAnalysis, pnlShift string) string {
	avg := sidePnL.NoSideAvgPnL
	if sidePnL.SmarterSide == "YES" {
		avg = sidePnL.YesSideAvgPnL
	}

	insights := []string{
		fmt.Sprintf("%s side has more profitable traders (avg P&L: $%.0f)", sidePnL.SmarterSide, avg),
	}

	if sidePnL.Distribution.YesConcentration > 70 {
		insights = append(insights, fmt.Sprintf("Yes side highly concentrated (%.1f%% in top 5)", sidePnL.Distribution.YesConcentration))
	}
	if sidePnL.Distribution.NoConcentration > 70 {
		insights = append(insights, fmt.Sprintf("No side highly concentrated (%.1f%% in top 5)", sidePnL.Distribution.NoConcentration))
	}

	if pnlShift != "" && !strings.Contains(pnlShift, "No significant") {
		insights = append(insights, pnlShift)
	}

	return strings.Join(insights, ". ")
}

func trend(change float64) string {
	if change > 0 {
		return "INCREASING"
	}
	return "DECREASING"
}
