package alert

import "time"

// Type identifies what kind of condition a monitor detected.
type Type string

const (
	TypeVolumeOutlier    Type = "VOLUME_OUTLIER"
	TypeAccountActivity  Type = "ACCOUNT_ACTIVITY"
	TypeProbabilityShift Type = "PROBABILITY_SHIFT"
	TypeMarketUpdate     Type = "MARKET_UPDATE"
	TypeLargeTrade       Type = "LARGE_TRADE"
	TypeWhaleActivity    Type = "WHALE_ACTIVITY"
	TypeSmartMoneyReport Type = "SMART_MONEY_REPORT"
)

// Severity represents alert severity
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Alert is a single finding produced by a monitor. Alerts are immutable once
// created; the Data payload shape is monitor-defined.
type Alert struct {
	Type      Type
	Severity  Severity
	Title     string
	Data      map[string]any
	Timestamp time.Time
}

// Payload is the fixed envelope POSTed to the webhook endpoint.
type Payload struct {
	Timestamp string         `json:"timestamp"`
	AlertType Type           `json:"alertType"`
	Severity  Severity       `json:"severity"`
	Title     string         `json:"title"`
	Data      map[string]any `json:"data"`
}

// NewPayload builds the webhook envelope for an alert.
func NewPayload(a *Alert) *Payload {
	return &Payload{
		Timestamp: a.Timestamp.UTC().Format(time.RFC3339),
		AlertType: a.Type,
		Severity:  a.Severity,
		Title:     a.Title,
		Data:      a.Data,
	}
}
