package intel

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/polysentry/polysentry/internal/polymarket/dataapi"
)

const topHolderLimit = 20

// HoldersClient is the slice of the Data API used for holder lookups
type HoldersClient interface {
	MarketHolders(ctx context.Context, conditionID string, limit int) ([]dataapi.MarketHolders, error)
}

// HolderInfo is one holder of an outcome token. The JSON tags match the
// camelCase keys of the webhook payloads it is embedded in.
type HolderInfo struct {
	Address string  `json:"address"`
	Name    string  `json:"name"`
	Amount  float64 `json:"amount"`
	Pnl     float64 `json:"pnl"`
}

// HolderDistribution describes who holds each side of a binary market.
// Concentration is the share of a side held by its top five wallets.
type HolderDistribution struct {
	YesHolders       []HolderInfo
	NoHolders        []HolderInfo
	YesConcentration float64
	NoConcentration  float64
	TotalYesAmount   float64
	TotalNoAmount    float64
}

// SidePnLAnalysis compares the lifetime profitability of the two sides of a
// market. SmarterSide is YES only when the YES average strictly exceeds NO.
type SidePnLAnalysis struct {
	YesSidePnL    float64
	NoSidePnL     float64
	YesSideAvgPnL float64
	NoSideAvgPnL  float64
	SmarterSide   string // YES or NO
	Distribution  HolderDistribution
}

// SmartMoneyAnalyzer ranks the two sides of a market by the historical
// profitability of their top holders.
type SmartMoneyAnalyzer struct {
	client HoldersClient
	intel  *TraderIntelligence
	log    *logrus.Logger
}

// NewSmartMoneyAnalyzer creates a smart money analyzer
func NewSmartMoneyAnalyzer(client HoldersClient, intel *TraderIntelligence, log *logrus.Logger) *SmartMoneyAnalyzer {
	return &SmartMoneyAnalyzer{client: client, intel: intel, log: log}
}

// AnalyzeHolderDistribution fetches the top holders of each outcome token and
// partitions them by outcome index (0 = YES, 1 = NO). Holder P&L fields are
// left zero; SidePnL fills them on its own copy.
func (a *SmartMoneyAnalyzer) AnalyzeHolderDistribution(ctx context.Context, conditionID string) (*HolderDistribution, error) {
	holdersData, err := a.client.MarketHolders(ctx, conditionID, topHolderLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch holders for %s: %w", conditionID, err)
	}

	dist := &HolderDistribution{}
	for _, tokenData := range holdersData {
		for _, h := range tokenData.Holders {
			info := HolderInfo{
				Address: h.ProxyWallet,
				Name:    holderName(h),
				Amount:  h.Amount,
			}
			switch h.OutcomeIndex {
			case 0:
				dist.YesHolders = append(dist.YesHolders, info)
				dist.TotalYesAmount += h.Amount
			case 1:
				dist.NoHolders = append(dist.NoHolders, info)
				dist.TotalNoAmount += h.Amount
			}
		}
	}

	dist.YesConcentration = concentration(dist.YesHolders, dist.TotalYesAmount)
	dist.NoConcentration = concentration(dist.NoHolders, dist.TotalNoAmount)

	return dist, nil
}

// SidePnL computes total and average lifetime P&L per side and picks the
// smarter side. A failed P&L lookup zeroes that holder only.
func (a *SmartMoneyAnalyzer) SidePnL(ctx context.Context, conditionID string) (*SidePnLAnalysis, error) {
	dist, err := a.AnalyzeHolderDistribution(ctx, conditionID)
	if err != nil {
		return nil, err
	}

	enriched := HolderDistribution{
		YesHolders:       enrichHolders(ctx, a.intel, dist.YesHolders),
		NoHolders:        enrichHolders(ctx, a.intel, dist.NoHolders),
		YesConcentration: dist.YesConcentration,
		NoConcentration:  dist.NoConcentration,
		TotalYesAmount:   dist.TotalYesAmount,
		TotalNoAmount:    dist.TotalNoAmount,
	}

	analysis := &SidePnLAnalysis{Distribution: enriched}
	for _, h := range enriched.YesHolders {
		analysis.YesSidePnL += h.Pnl
	}
	for _, h := range enriched.NoHolders {
		analysis.NoSidePnL += h.Pnl
	}
	if n := len(enriched.YesHolders); n > 0 {
		analysis.YesSideAvgPnL = analysis.YesSidePnL / float64(n)
	}
	if n := len(enriched.NoHolders); n > 0 {
		analysis.NoSideAvgPnL = analysis.NoSidePnL / float64(n)
	}

	analysis.SmarterSide = "NO"
	if analysis.YesSideAvgPnL > analysis.NoSideAvgPnL {
		analysis.SmarterSide = "YES"
	}

	return analysis, nil
}

func enrichHolders(ctx context.Context, intel *TraderIntelligence, holders []HolderInfo) []HolderInfo {
	enriched := make([]HolderInfo, len(holders))
	for i, h := range holders {
		enriched[i] = h
		result := intel.LifetimePnL(ctx, h.Address)
		if result.Fetched {
			enriched[i].Pnl = result.TotalPnl
		}
	}
	return enriched
}

func concentration(holders []HolderInfo, total float64) float64 {
	if total <= 0 {
		return 0
	}
	top := holders
	if len(top) > 5 {
		top = top[:5]
	}
	sum := 0.0
	for _, h := range top {
		sum += h.Amount
	}
	return sum / total * 100
}

func holderName(h dataapi.Holder) string {
	if h.Pseudonym != "" {
		return h.Pseudonym
	}
	if h.Name != "" {
		return h.Name
	}
	return ShortAddress(h.ProxyWallet)
}
