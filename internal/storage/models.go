package storage

import (
	"time"
)

// Market caches Gamma market metadata referenced by trades and snapshots
type Market struct {
	ID          int64   `gorm:"primaryKey;autoIncrement"`
	ConditionID string  `gorm:"uniqueIndex;size:128;not null"`
	Slug        string  `gorm:"size:255"`
	Title       string  `gorm:"size:512"`
	EventID     int64   `gorm:"default:0"`
	Volume24hr  float64 `gorm:"type:decimal(20,6);not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Market) TableName() string {
	return "markets"
}

// Trade stores observed trades; the transaction hash makes ingestion idempotent
type Trade struct {
	ID              int64   `gorm:"primaryKey;autoIncrement"`
	TransactionHash string  `gorm:"uniqueIndex;size:128;not null"`
	ConditionID     string  `gorm:"size:128;not null;index"`
	ProxyWallet     string  `gorm:"size:128;not null;index"`
	Side            string  `gorm:"size:10"`
	Outcome         string  `gorm:"size:255"`
	OutcomeIndex    int     `gorm:"not null;default:0"`
	Size            float64 `gorm:"type:decimal(20,6);not null"`
	Price           float64 `gorm:"type:decimal(10,6);not null"`
	NotionalUSD     float64 `gorm:"type:decimal(20,6);not null"`
	TimestampSec    int64   `gorm:"not null;index"`
	CreatedAt       time.Time
}

func (Trade) TableName() string {
	return "trades"
}

// TrackedAccount mirrors the tracked-accounts YAML into the database
type TrackedAccount struct {
	Address   string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"size:255"`
	Enabled   bool   `gorm:"not null;default:true"`
	UpdatedAt time.Time
}

func (TrackedAccount) TableName() string {
	return "tracked_accounts"
}

// TrackedMarket mirrors the tracked-markets YAML into the database
type TrackedMarket struct {
	ConditionID string `gorm:"primaryKey;size:128"`
	Name        string `gorm:"size:255"`
	EventID     int64  `gorm:"default:0"`
	Enabled     bool   `gorm:"not null;default:true"`
	UpdatedAt   time.Time
}

func (TrackedMarket) TableName() string {
	return "tracked_markets"
}

// PriceSnapshot is an append-only probability observation for a market
type PriceSnapshot struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	ConditionID string    `gorm:"size:128;not null;index:idx_price_snapshots_market_time"`
	Probability float64   `gorm:"type:decimal(10,6);not null"`
	Volume24hr  float64   `gorm:"type:decimal(20,6);not null;default:0"`
	CreatedAt   time.Time `gorm:"index:idx_price_snapshots_market_time"`
}

func (PriceSnapshot) TableName() string {
	return "price_snapshots"
}

// MarketSnapshot is an append-only smart-money observation for a market
type MarketSnapshot struct {
	ID               int64     `gorm:"primaryKey;autoIncrement"`
	ConditionID      string    `gorm:"size:128;not null;index:idx_market_snapshots_market_time"`
	Probability      float64   `gorm:"type:decimal(10,6);not null;default:0"`
	OpenInterest     float64   `gorm:"type:decimal(20,6);not null;default:0"`
	LiveVolume       float64   `gorm:"type:decimal(20,6);not null;default:0"`
	YesHolderCount   int       `gorm:"not null;default:0"`
	NoHolderCount    int       `gorm:"not null;default:0"`
	YesConcentration float64   `gorm:"type:decimal(10,4);not null;default:0"`
	NoConcentration  float64   `gorm:"type:decimal(10,4);not null;default:0"`
	YesTotalPnl      float64   `gorm:"type:decimal(20,6);not null;default:0"`
	NoTotalPnl       float64   `gorm:"type:decimal(20,6);not null;default:0"`
	YesAvgPnl        float64   `gorm:"type:decimal(20,6);not null;default:0"`
	NoAvgPnl         float64   `gorm:"type:decimal(20,6);not null;default:0"`
	SmarterSide      string    `gorm:"size:10"`
	CreatedAt        time.Time `gorm:"index:idx_market_snapshots_market_time"`
}

func (MarketSnapshot) TableName() string {
	return "market_snapshots"
}

// Alert stores generated alerts together with their webhook delivery state
type Alert struct {
	ID          int64      `gorm:"primaryKey;autoIncrement"`
	AlertType   string     `gorm:"size:32;not null;index"`
	Severity    string     `gorm:"size:10;not null"`
	Title       string     `gorm:"size:512;not null"`
	Payload     string     `gorm:"type:text;not null"`
	WebhookSent bool       `gorm:"not null;default:false;index"`
	SentAt      *time.Time `gorm:""`
	RetryCount  int        `gorm:"not null;default:0"`
	CreatedAt   time.Time  `gorm:"index"`
}

func (Alert) TableName() string {
	return "alerts"
}
