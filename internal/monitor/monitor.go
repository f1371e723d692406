// Package monitor contains the detection monitors and the orchestrator that
// drives them once per polling cycle. A monitor returns an error only when it
// cannot start at all; failures on individual markets or accounts are logged
// and skipped so one bad item cannot starve the rest of the cycle.
package monitor

import (
	"context"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/polysentry/polysentry/internal/alert"
	"github.com/polysentry/polysentry/internal/polymarket/dataapi"
	"github.com/polysentry/polysentry/internal/polymarket/gammaapi"
	"github.com/polysentry/polysentry/internal/storage"
)

// Monitor is one detection strategy run once per polling cycle
type Monitor interface {
	Name() string
	Enabled() bool
	Run(ctx context.Context) ([]alert.Alert, error)
}

// GammaClient is the slice of the Gamma API the monitors use
type GammaClient interface {
	MarketByConditionID(ctx context.Context, conditionID string) (*gammaapi.Market, error)
	EventBySlug(ctx context.Context, slug string) (*gammaapi.Event, error)
	ActiveMarkets(ctx context.Context, limit, offset int) ([]gammaapi.Market, error)
}

// DataClient is the slice of the Data API the monitors use
type DataClient interface {
	UserActivity(ctx context.Context, params dataapi.ActivityParams) ([]dataapi.Activity, error)
	MarketTrades(ctx context.Context, conditionID string, limit int, since int64) ([]dataapi.Activity, error)
	OpenInterestFor(ctx context.Context, conditionIDs []string) ([]dataapi.OpenInterest, error)
	EventLiveVolume(ctx context.Context, eventID int64) (*dataapi.LiveVolume, error)
}

var slugCleaner = regexp.MustCompile(`[^a-z0-9]+`)

// slugify turns a market display name into the slug form the Gamma API uses
func slugify(name string) string {
	slug := slugCleaner.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

// resolveTrackedMarket looks a tracked market up in the Gamma API, first by
// condition ID, then through its slugified display name's event. Returns
// nil when the market cannot be found either way.
func resolveTrackedMarket(ctx context.Context, gamma GammaClient, tracked storage.TrackedMarket, log *logrus.Logger) *gammaapi.Market {
	market, err := gamma.MarketByConditionID(ctx, tracked.ConditionID)
	if err == nil {
		return market
	}

	if tracked.Name == "" {
		log.WithFields(logrus.Fields{
			"condition_id": tracked.ConditionID,
			"error":        err.Error(),
		}).Warn("Tracked market not found in Gamma API")
		return nil
	}

	event, eventErr := gamma.EventBySlug(ctx, slugify(tracked.Name))
	if eventErr != nil {
		log.WithFields(logrus.Fields{
			"condition_id": tracked.ConditionID,
			"name":         tracked.Name,
			"error":        eventErr.Error(),
		}).Warn("Tracked market not found in Gamma API")
		return nil
	}

	for i := range event.Markets {
		if event.Markets[i].ConditionID == tracked.ConditionID {
			return &event.Markets[i]
		}
	}

	log.WithFields(logrus.Fields{
		"condition_id": tracked.ConditionID,
		"event_slug":   event.Slug,
	}).Warn("Tracked market not present in its event")
	return nil
}

// marketData is the common market block embedded in alert payloads
func marketData(m *gammaapi.Market) map[string]any {
	return map[string]any{
		"slug":        m.Slug,
		"title":       m.Question,
		"conditionId": m.ConditionID,
	}
}
