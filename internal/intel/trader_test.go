package intel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/polysentry/polysentry/internal/polymarket/dataapi"
)

type fakePositionsClient struct {
	open      []dataapi.Position
	closed    []dataapi.ClosedPosition
	openErr   error
	closedErr error
	calls     int
}

func (f *fakePositionsClient) UserPositions(ctx context.Context, user string, limit int) ([]dataapi.Position, error) {
	f.calls++
	return f.open, f.openErr
}

func (f *fakePositionsClient) UserClosedPositions(ctx context.Context, user string, limit int) ([]dataapi.ClosedPosition, error) {
	return f.closed, f.closedErr
}

func (f *fakePositionsClient) UserMarketPosition(ctx context.Context, user, conditionID string) (*dataapi.Position, error) {
	if len(f.open) == 0 {
		return nil, f.openErr
	}
	return &f.open[0], nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestLifetimePnLTotals(t *testing.T) {
	client := &fakePositionsClient{
		open: []dataapi.Position{
			{RealizedPnl: 100, CashPnl: 50},
			{RealizedPnl: -20, CashPnl: 30},
		},
		closed: []dataapi.ClosedPosition{
			{RealizedPnl: 200},
		},
	}

	ti := NewTraderIntelligence(client, testLogger())
	result := ti.LifetimePnL(context.Background(), "0xabc")

	if !result.Fetched {
		t.Fatal("expected Fetched=true on success")
	}
	if result.TotalRealizedPnl != 280 {
		t.Errorf("TotalRealizedPnl = %v, want 280", result.TotalRealizedPnl)
	}
	if result.TotalCashPnl != 80 {
		t.Errorf("TotalCashPnl = %v, want 80", result.TotalCashPnl)
	}
	if result.TotalPnl != 360 {
		t.Errorf("TotalPnl = %v, want 360", result.TotalPnl)
	}
	if result.OpenPositionsCount != 2 || result.ClosedPositionsCount != 1 {
		t.Errorf("counts = %d/%d, want 2/1", result.OpenPositionsCount, result.ClosedPositionsCount)
	}
}

func TestLifetimePnLFailureIsZeroedAndUncached(t *testing.T) {
	client := &fakePositionsClient{openErr: errors.New("upstream down")}
	ti := NewTraderIntelligence(client, testLogger())

	result := ti.LifetimePnL(context.Background(), "0xabc")
	if result.Fetched {
		t.Fatal("expected Fetched=false on upstream failure")
	}
	if result.TotalPnl != 0 || result.OpenPositionsCount != 0 {
		t.Errorf("expected zeroed summary, got %+v", result)
	}

	// the failure must not be cached; the next call hits upstream again
	client.openErr = nil
	client.open = []dataapi.Position{{RealizedPnl: 10}}
	result = ti.LifetimePnL(context.Background(), "0xabc")
	if !result.Fetched || result.TotalPnl != 10 {
		t.Errorf("expected refetched result, got %+v", result)
	}
}

func TestLifetimePnLCacheWithinTTL(t *testing.T) {
	client := &fakePositionsClient{
		open: []dataapi.Position{{RealizedPnl: 42}},
	}
	ti := NewTraderIntelligence(client, testLogger())

	now := time.Now()
	ti.now = func() time.Time { return now }

	first := ti.LifetimePnL(context.Background(), "0xabc")
	second := ti.LifetimePnL(context.Background(), "0xabc")

	if first.TotalPnl != second.TotalPnl {
		t.Errorf("cached result differs: %v vs %v", first.TotalPnl, second.TotalPnl)
	}
	if client.calls != 1 {
		t.Errorf("expected 1 upstream call within TTL, got %d", client.calls)
	}

	// advance past the TTL; the next call must refetch
	now = now.Add(pnlCacheTTL + time.Second)
	ti.LifetimePnL(context.Background(), "0xabc")
	if client.calls != 2 {
		t.Errorf("expected refetch after TTL expiry, got %d calls", client.calls)
	}
}

func TestClearCache(t *testing.T) {
	client := &fakePositionsClient{
		open: []dataapi.Position{{RealizedPnl: 42}},
	}
	ti := NewTraderIntelligence(client, testLogger())

	ti.LifetimePnL(context.Background(), "0xabc")
	ti.ClearCache()
	ti.LifetimePnL(context.Background(), "0xabc")

	if client.calls != 2 {
		t.Errorf("expected refetch after ClearCache, got %d calls", client.calls)
	}
}

func TestShortAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    string
	}{
		{"full address", "0x1234567890abcdef1234567890abcdef12345678", "0x1234...5678"},
		{"short input unchanged", "0x1234", "0x1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShortAddress(tt.address); got != tt.want {
				t.Errorf("ShortAddress(%q) = %q, want %q", tt.address, got, tt.want)
			}
		})
	}
}
