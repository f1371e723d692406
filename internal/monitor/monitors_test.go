package monitor

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/polysentry/polysentry/internal/alert"
	"github.com/polysentry/polysentry/internal/config"
	"github.com/polysentry/polysentry/internal/intel"
	"github.com/polysentry/polysentry/internal/polymarket/dataapi"
	"github.com/polysentry/polysentry/internal/polymarket/gammaapi"
	"github.com/polysentry/polysentry/internal/storage"
)

func testStorage(t *testing.T) *storage.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	db := storage.NewFromConn(conn, testLogger())
	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fakeGamma struct {
	markets map[string]*gammaapi.Market
	active  []gammaapi.Market
}

func (f *fakeGamma) MarketByConditionID(ctx context.Context, conditionID string) (*gammaapi.Market, error) {
	if m, ok := f.markets[conditionID]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("no market found for condition_id %s", conditionID)
}

func (f *fakeGamma) EventBySlug(ctx context.Context, slug string) (*gammaapi.Event, error) {
	return nil, fmt.Errorf("no event found for slug %s", slug)
}

func (f *fakeGamma) ActiveMarkets(ctx context.Context, limit, offset int) ([]gammaapi.Market, error) {
	return f.active, nil
}

type fakeData struct {
	activities []dataapi.Activity
	trades     []dataapi.Activity
}

func (f *fakeData) UserActivity(ctx context.Context, params dataapi.ActivityParams) ([]dataapi.Activity, error) {
	return f.activities, nil
}

func (f *fakeData) MarketTrades(ctx context.Context, conditionID string, limit int, since int64) ([]dataapi.Activity, error) {
	return f.trades, nil
}

func (f *fakeData) OpenInterestFor(ctx context.Context, conditionIDs []string) ([]dataapi.OpenInterest, error) {
	return nil, nil
}

func (f *fakeData) EventLiveVolume(ctx context.Context, eventID int64) (*dataapi.LiveVolume, error) {
	return nil, nil
}

func seedTrackedMarket(t *testing.T, db *storage.DB, conditionID, name string) {
	t.Helper()
	if err := db.SyncTracked(context.Background(), &config.Tracked{
		Markets: []config.TrackedMarket{{ConditionID: conditionID, Name: name}},
	}); err != nil {
		t.Fatalf("seed tracked market: %v", err)
	}
}

func binaryMarket(conditionID, slug, question, yesPrice, noPrice string) *gammaapi.Market {
	return &gammaapi.Market{
		ConditionID:   conditionID,
		Slug:          slug,
		Question:      question,
		Active:        true,
		Outcomes:      `["Yes","No"]`,
		OutcomePrices: fmt.Sprintf(`["%s","%s"]`, yesPrice, noPrice),
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "Will BTC hit 100k", "will-btc-hit-100k"},
		{"punctuation", "Trump wins 2024?", "trump-wins-2024"},
		{"leading trailing", "  !Election!  ", "election"},
		{"collapses runs", "a -- b", "a-b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := slugify(tt.input); got != tt.want {
				t.Errorf("slugify(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSeverityBuckets(t *testing.T) {
	volumeTests := []struct {
		zScore float64
		want   alert.Severity
	}{
		{4.1, alert.SeverityHigh},
		{4.0, alert.SeverityMedium},
		{3.5, alert.SeverityMedium},
		{3.0, alert.SeverityLow},
		{1.0, alert.SeverityLow},
	}
	for _, tt := range volumeTests {
		if got := volumeSeverity(tt.zScore); got != tt.want {
			t.Errorf("volumeSeverity(%v) = %v, want %v", tt.zScore, got, tt.want)
		}
	}

	accountTests := []struct {
		usdc float64
		want alert.Severity
	}{
		{15000, alert.SeverityHigh},
		{10000, alert.SeverityMedium},
		{1500, alert.SeverityMedium},
		{1000, alert.SeverityLow},
		{50, alert.SeverityLow},
	}
	for _, tt := range accountTests {
		if got := accountSeverity(tt.usdc); got != tt.want {
			t.Errorf("accountSeverity(%v) = %v, want %v", tt.usdc, got, tt.want)
		}
	}

	marketTests := []struct {
		pct  float64
		want alert.Severity
	}{
		{25, alert.SeverityHigh},
		{20, alert.SeverityMedium},
		{15, alert.SeverityMedium},
		{10, alert.SeverityLow},
		{2, alert.SeverityLow},
	}
	for _, tt := range marketTests {
		if got := marketSeverity(tt.pct); got != tt.want {
			t.Errorf("marketSeverity(%v) = %v, want %v", tt.pct, got, tt.want)
		}
	}

	tradeTests := []struct {
		notional float64
		want     alert.Severity
	}{
		{60000, alert.SeverityHigh},
		{50000, alert.SeverityMedium},
		{20000, alert.SeverityMedium},
		{10000, alert.SeverityLow},
		{500, alert.SeverityLow},
	}
	for _, tt := range tradeTests {
		if got := tradeSeverity(tt.notional); got != tt.want {
			t.Errorf("tradeSeverity(%v) = %v, want %v", tt.notional, got, tt.want)
		}
	}
}

func TestVolumeMonitorDetectsOutlier(t *testing.T) {
	db := testStorage(t)
	ctx := context.Background()
	now := time.Now()

	gamma := &fakeGamma{active: []gammaapi.Market{
		*binaryMarket("0xcond", "test-market", "Test Market", "0.5", "0.5"),
	}}

	// ten ordinary trades plus one huge most-recent trade
	for i := 0; i < 10; i++ {
		if err := db.UpsertTrade(ctx, &storage.Trade{
			TransactionHash: fmt.Sprintf("0xtx%d", i),
			ConditionID:     "0xcond",
			ProxyWallet:     "0xw",
			NotionalUSD:     100,
			TimestampSec:    now.Add(time.Duration(i-11) * time.Minute).Unix(),
		}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	if err := db.UpsertTrade(ctx, &storage.Trade{
		TransactionHash: "0xbig",
		ConditionID:     "0xcond",
		ProxyWallet:     "0xwhale",
		NotionalUSD:     1000,
		TimestampSec:    now.Unix(),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cfg := &config.Config{
		VolumeOutlierEnabled:  true,
		VolumeStdDevThreshold: 2.0,
		VolumeWindowHours:     24,
		VolumeMarketScanLimit: 100,
	}

	m := NewVolumeMonitor(gamma, db, cfg, testLogger())
	alerts, err := m.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts))
	}
	if alerts[0].Type != alert.TypeVolumeOutlier {
		t.Errorf("type = %v, want VOLUME_OUTLIER", alerts[0].Type)
	}
	if alerts[0].Severity != alert.SeverityMedium {
		t.Errorf("severity = %v, want medium", alerts[0].Severity)
	}
}

func TestVolumeMonitorSkipsThinMarkets(t *testing.T) {
	db := testStorage(t)
	ctx := context.Background()
	now := time.Now()

	gamma := &fakeGamma{active: []gammaapi.Market{
		*binaryMarket("0xcond", "thin-market", "Thin Market", "0.5", "0.5"),
	}}

	// nine samples, one of them extreme, still below the minimum
	for i := 0; i < 8; i++ {
		db.UpsertTrade(ctx, &storage.Trade{
			TransactionHash: fmt.Sprintf("0xtx%d", i),
			ConditionID:     "0xcond",
			ProxyWallet:     "0xw",
			NotionalUSD:     100,
			TimestampSec:    now.Add(-time.Minute).Unix(),
		})
	}
	db.UpsertTrade(ctx, &storage.Trade{
		TransactionHash: "0xbig",
		ConditionID:     "0xcond",
		ProxyWallet:     "0xw",
		NotionalUSD:     100000,
		TimestampSec:    now.Unix(),
	})

	cfg := &config.Config{
		VolumeOutlierEnabled:  true,
		VolumeStdDevThreshold: 2.0,
		VolumeWindowHours:     24,
		VolumeMarketScanLimit: 100,
	}

	m := NewVolumeMonitor(gamma, db, cfg, testLogger())
	alerts, err := m.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("alerts = %d, want 0 (below minimum sample count)", len(alerts))
	}
}

func TestAccountMonitorAlertsOnActivity(t *testing.T) {
	db := testStorage(t)
	ctx := context.Background()

	if err := db.SyncTracked(ctx, &config.Tracked{
		Accounts: []config.TrackedAccount{
			{Address: "0x1234567890abcdef1234567890abcdef12345678", Name: "watched"},
		},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	data := &fakeData{activities: []dataapi.Activity{
		{
			ProxyWallet:     "0x1234567890abcdef1234567890abcdef12345678",
			ConditionID:     "0xcond",
			Type:            "TRADE",
			Size:            5000,
			USDCSize:        2500,
			Price:           0.5,
			Side:            "BUY",
			Timestamp:       time.Now().Unix(),
			TransactionHash: "0xtx1",
			Market:          &dataapi.ActivityMarket{ConditionID: "0xcond", Slug: "m", Title: "M", Outcome: "Yes"},
		},
		{
			// no market details attached, must be skipped
			ProxyWallet:     "0x1234567890abcdef1234567890abcdef12345678",
			ConditionID:     "0xcond2",
			Type:            "TRADE",
			TransactionHash: "0xtx2",
			Timestamp:       time.Now().Unix(),
		},
		{
			// no usdcSize reported, notional falls back to size*price
			ProxyWallet:     "0x1234567890abcdef1234567890abcdef12345678",
			ConditionID:     "0xcond",
			Type:            "TRADE",
			Size:            30000,
			Price:           0.5,
			Side:            "BUY",
			Timestamp:       time.Now().Unix(),
			TransactionHash: "0xtx3",
			Market:          &dataapi.ActivityMarket{ConditionID: "0xcond", Slug: "m", Title: "M", Outcome: "Yes"},
		},
	}}

	cfg := &config.Config{AccountActivityEnabled: true}
	m := NewAccountMonitor(data, db, cfg, testLogger())

	alerts, err := m.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(alerts) != 2 {
		t.Fatalf("alerts = %d, want 2", len(alerts))
	}
	if alerts[0].Type != alert.TypeAccountActivity {
		t.Errorf("type = %v, want ACCOUNT_ACTIVITY", alerts[0].Type)
	}
	if alerts[0].Severity != alert.SeverityMedium {
		t.Errorf("severity = %v, want medium for $2500", alerts[0].Severity)
	}
	if alerts[1].Severity != alert.SeverityHigh {
		t.Errorf("severity = %v, want high for the $15000 fallback notional", alerts[1].Severity)
	}

	// the trades must be persisted for the volume monitor's dataset
	trades, err := db.TradesByMarketSince(ctx, "0xcond", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("query trades: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("persisted trades = %d, want 2", len(trades))
	}
	for _, trade := range trades {
		if trade.TransactionHash == "0xtx3" && trade.NotionalUSD != 15000 {
			t.Errorf("fallback NotionalUSD = %v, want 15000", trade.NotionalUSD)
		}
	}
}

func TestMarketMonitorProbabilityShift(t *testing.T) {
	db := testStorage(t)
	ctx := context.Background()
	seedTrackedMarket(t, db, "0xcond", "Test Market")

	gamma := &fakeGamma{markets: map[string]*gammaapi.Market{
		"0xcond": binaryMarket("0xcond", "test-market", "Test Market", "0.50", "0.50"),
	}}

	cfg := &config.Config{
		MarketProbabilityEnabled: true,
		MarketChangeThresholdPct: 1.0,
		MarketSnapshotOffsetMin:  0, // compare against the immediately previous cycle
		MarketUpdateIntervalMin:  60,
	}

	m := NewMarketMonitor(gamma, &fakeData{}, db, cfg, testLogger())

	// first cycle records a baseline and emits the periodic market update
	alerts, err := m.Run(ctx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Type != alert.TypeMarketUpdate {
		t.Fatalf("first cycle alerts = %+v, want one MARKET_UPDATE", alerts)
	}

	// probability moves 0.50 -> 0.60, a 20% relative change
	gamma.markets["0xcond"] = binaryMarket("0xcond", "test-market", "Test Market", "0.60", "0.40")

	alerts, err = m.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("second cycle alerts = %d, want 1", len(alerts))
	}
	if alerts[0].Type != alert.TypeProbabilityShift {
		t.Errorf("type = %v, want PROBABILITY_SHIFT", alerts[0].Type)
	}
	// 20% is not strictly above the 20% bucket boundary
	if alerts[0].Severity != alert.SeverityMedium {
		t.Errorf("severity = %v, want medium", alerts[0].Severity)
	}
}

func TestMarketMonitorBelowThresholdNoShift(t *testing.T) {
	db := testStorage(t)
	ctx := context.Background()
	seedTrackedMarket(t, db, "0xcond", "Test Market")

	gamma := &fakeGamma{markets: map[string]*gammaapi.Market{
		"0xcond": binaryMarket("0xcond", "test-market", "Test Market", "0.500", "0.500"),
	}}

	cfg := &config.Config{
		MarketProbabilityEnabled: true,
		MarketChangeThresholdPct: 5.0,
		MarketSnapshotOffsetMin:  0,
		MarketUpdateIntervalMin:  0, // disable the periodic update for this test
	}

	m := NewMarketMonitor(gamma, &fakeData{}, db, cfg, testLogger())
	if _, err := m.Run(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// 2% relative change is below the 5% threshold
	gamma.markets["0xcond"] = binaryMarket("0xcond", "test-market", "Test Market", "0.510", "0.490")

	alerts, err := m.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("alerts = %+v, want none below threshold", alerts)
	}
}

func TestTradeMonitorWhalePromotion(t *testing.T) {
	db := testStorage(t)
	ctx := context.Background()
	seedTrackedMarket(t, db, "0xcond", "Test Market")

	gamma := &fakeGamma{markets: map[string]*gammaapi.Market{
		"0xcond": binaryMarket("0xcond", "test-market", "Test Market", "0.5", "0.5"),
	}}
	data := &fakeData{}

	cfg := &config.Config{
		TradeActivityEnabled: true,
		LargeTradeUSD:        10,
		WhalePnlUSD:          100000,
		IncludeTraderIntel:   false,
	}

	traderIntel := intel.NewTraderIntelligence(nil, testLogger())
	m := NewTradeMonitor(data, gamma, db, traderIntel, cfg, testLogger())

	// first cycle: one whale-sized trade and one small trade below threshold
	now := time.Now()
	data.trades = []dataapi.Activity{
		{ProxyWallet: "0xwhale", Size: 300000, Price: 0.5, Timestamp: now.Unix(), TransactionHash: "0xt1", Side: "BUY", OutcomeIndex: 0},
		{ProxyWallet: "0xminnow", Size: 10, Price: 0.5, Timestamp: now.Unix(), TransactionHash: "0xt2", Side: "SELL", OutcomeIndex: 1},
	}

	alerts, err := m.Run(ctx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1 (minnow trade below threshold)", len(alerts))
	}
	if alerts[0].Type != alert.TypeWhaleActivity {
		t.Errorf("type = %v, want WHALE_ACTIVITY (promotion applies to the qualifying trade)", alerts[0].Type)
	}
	if alerts[0].Severity != alert.SeverityHigh {
		t.Errorf("severity = %v, want high for $150000", alerts[0].Severity)
	}

	// second cycle: the same wallet makes a modest trade, still tagged as whale
	data.trades = []dataapi.Activity{
		{ProxyWallet: "0xwhale", Size: 100, Price: 0.5, Timestamp: now.Add(time.Minute).Unix(), TransactionHash: "0xt3", Side: "BUY", OutcomeIndex: 0},
	}

	alerts, err = m.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("second cycle alerts = %d, want 1", len(alerts))
	}
	if alerts[0].Type != alert.TypeWhaleActivity {
		t.Errorf("type = %v, want WHALE_ACTIVITY for a known whale", alerts[0].Type)
	}
	if alerts[0].Severity != alert.SeverityLow {
		t.Errorf("severity = %v, want low for $50", alerts[0].Severity)
	}
}

func TestTradeMonitorCursorSkipsSeenTrades(t *testing.T) {
	db := testStorage(t)
	ctx := context.Background()
	seedTrackedMarket(t, db, "0xcond", "Test Market")

	gamma := &fakeGamma{markets: map[string]*gammaapi.Market{
		"0xcond": binaryMarket("0xcond", "test-market", "Test Market", "0.5", "0.5"),
	}}
	data := &fakeData{}

	cfg := &config.Config{
		TradeActivityEnabled: true,
		LargeTradeUSD:        10,
		WhalePnlUSD:          100000,
	}

	m := NewTradeMonitor(data, gamma, db, intel.NewTraderIntelligence(nil, testLogger()), cfg, testLogger())

	now := time.Now()
	data.trades = []dataapi.Activity{
		{ProxyWallet: "0xw", Size: 100, Price: 0.5, Timestamp: now.Unix(), TransactionHash: "0xt1", Side: "BUY"},
	}

	alerts, err := m.Run(ctx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("first cycle alerts = %d, want 1", len(alerts))
	}

	// same response again; the cursor must filter the already-seen trade
	alerts, err = m.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("second cycle alerts = %d, want 0", len(alerts))
	}
}

func TestDetectPnLShift(t *testing.T) {
	tests := []struct {
		name            string
		curYes, curNo   float64
		prevYes, prevNo float64
		want            string
	}{
		{"below noise floor", 500, -300, 0, 0, "No significant P&L shift"},
		{"yes improving", 10000, 0, 0, 0, "Yes side P&L improving (+$10000)"},
		{"no improving", 0, 10000, 0, 0, "No side P&L improving (+$10000)"},
		{"both moving", 5000, 4000, 0, 0, "Both sides P&L changing (Yes: $5000, No: $4000)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectPnLShift(tt.curYes, tt.curNo, tt.prevYes, tt.prevNo)
			if got != tt.want {
				t.Errorf("detectPnLShift = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildInsightsFlagsConcentration(t *testing.T) {
	analysis := &intel.SidePnLAnalysis{
		YesSideAvgPnL: 500,
		NoSideAvgPnL:  100,
		SmarterSide:   "YES",
		Distribution: intel.HolderDistribution{
			YesConcentration: 85.5,
			NoConcentration:  40,
		},
	}

	insights := buildInsights(analysis, "No significant P&L shift")

	if want := "YES side has more profitable traders (avg P&L: $500)"; !strings.HasPrefix(insights, want) {
		t.Errorf("insights = %q, want prefix %q", insights, want)
	}
	if !strings.Contains(insights, "Yes side highly concentrated (85.5% in top 5)") {
		t.Errorf("concentration flag missing from %q", insights)
	}
	if strings.Contains(insights, "No side highly concentrated") {
		t.Errorf("unexpected No-side concentration flag in %q", insights)
	}
	if strings.Contains(insights, "No significant") {
		t.Errorf("noise-floor shift must not appear in %q", insights)
	}
}

func TestTrend(t *testing.T) {
	if trend(5) != "INCREASING" {
		t.Error("positive change should be INCREASING")
	}
	if trend(-5) != "DECREASING" {
		t.Error("negative change should be DECREASING")
	}
}
