package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/polysentry/polysentry/internal/config"
	"github.com/polysentry/polysentry/internal/metrics"
)

// DB wraps the GORM database connection
type DB struct {
	conn *gorm.DB
	log  *logrus.Logger
}

// New creates a new database connection with GORM
func New(cfg *config.Config, log *logrus.Logger) (*DB, error) {
	gormLogger := logger.New(
		&gormLogAdapter{log: log},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	conn, err := gorm.Open(mysql.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.DatabaseMaxConns)
	sqlDB.SetMaxIdleConns(cfg.DatabaseMaxConns / 2)
	sqlDB.SetConnMaxIdleTime(cfg.DatabaseMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("Database connection established")

	return &DB{conn: conn, log: log}, nil
}

// NewFromConn wraps an already-open GORM connection. Used by tests to run
// against an embedded database.
func NewFromConn(conn *gorm.DB, log *logrus.Logger) *DB {
	return &DB{conn: conn, log: log}
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate runs GORM auto-migration (for development only)
func (db *DB) AutoMigrate() error {
	return db.conn.AutoMigrate(
		&Market{},
		&Trade{},
		&TrackedAccount{},
		&TrackedMarket{},
		&PriceSnapshot{},
		&MarketSnapshot{},
		&Alert{},
	)
}

// UpsertMarket inserts a market row or refreshes its metadata
func (db *DB) UpsertMarket(ctx context.Context, market *Market) error {
	result := db.conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "condition_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"slug", "title", "event_id", "volume24hr", "updated_at"}),
	}).Create(market)
	metrics.RecordDatabaseQuery("upsert_market", result.Error)
	return result.Error
}

// FindMarketByConditionID returns a market row, or nil when unknown
func (db *DB) FindMarketByConditionID(ctx context.Context, conditionID string) (*Market, error) {
	var market Market
	result := db.conn.WithContext(ctx).Where("condition_id = ?", conditionID).First(&market)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &market, nil
}

// UpsertTrade inserts a trade row or refreshes its values; replaying the same
// transaction hash keeps exactly one row reflecting the latest observation.
func (db *DB) UpsertTrade(ctx context.Context, trade *Trade) error {
	result := db.conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "transaction_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"side", "outcome", "outcome_index", "size", "price", "notional_usd", "timestamp_sec"}),
	}).Create(trade)
	metrics.RecordDatabaseQuery("upsert_trade", result.Error)
	return result.Error
}

// TradesByMarketSince returns trades for a market newer than since, oldest first
func (db *DB) TradesByMarketSince(ctx context.Context, conditionID string, since time.Time) ([]Trade, error) {
	var trades []Trade
	result := db.conn.WithContext(ctx).
		Where("condition_id = ? AND timestamp_sec >= ?", conditionID, since.Unix()).
		Order("timestamp_sec asc").
		Find(&trades)
	if result.Error != nil {
		return nil, result.Error
	}
	return trades, nil
}

// SyncTracked mirrors the tracked-entity YAML into the database so other
// tooling can join against it. Entries removed from the file are disabled,
// not deleted.
func (db *DB) SyncTracked(ctx context.Context, tracked *config.Tracked) error {
	return db.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&TrackedAccount{}).Where("1 = 1").Update("enabled", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&TrackedMarket{}).Where("1 = 1").Update("enabled", false).Error; err != nil {
			return err
		}

		for _, account := range tracked.Accounts {
			row := TrackedAccount{
				Address: account.Address,
				Name:    account.Name,
				Enabled: account.IsEnabled(),
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "address"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "enabled", "updated_at"}),
			}).Create(&row).Error; err != nil {
				return err
			}
		}

		for _, market := range tracked.Markets {
			row := TrackedMarket{
				ConditionID: market.ConditionID,
				Name:        market.Name,
				EventID:     market.EventID,
				Enabled:     market.IsEnabled(),
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "condition_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "event_id", "enabled", "updated_at"}),
			}).Create(&row).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

// EnabledTrackedAccounts returns the accounts currently being monitored
func (db *DB) EnabledTrackedAccounts(ctx context.Context) ([]TrackedAccount, error) {
	var accounts []TrackedAccount
	result := db.conn.WithContext(ctx).Where("enabled = ?", true).Find(&accounts)
	if result.Error != nil {
		return nil, result.Error
	}
	return accounts, nil
}

// EnabledTrackedMarkets returns the markets currently being monitored
func (db *DB) EnabledTrackedMarkets(ctx context.Context) ([]TrackedMarket, error) {
	var markets []TrackedMarket
	result := db.conn.WithContext(ctx).Where("enabled = ?", true).Find(&markets)
	if result.Error != nil {
		return nil, result.Error
	}
	return markets, nil
}

// CreatePriceSnapshot appends a probability observation
func (db *DB) CreatePriceSnapshot(ctx context.Context, snapshot *PriceSnapshot) error {
	result := db.conn.WithContext(ctx).Create(snapshot)
	metrics.RecordDatabaseQuery("create_price_snapshot", result.Error)
	return result.Error
}

// LatestPriceSnapshot returns the most recent probability observation for a
// market, or nil when none exists
func (db *DB) LatestPriceSnapshot(ctx context.Context, conditionID string) (*PriceSnapshot, error) {
	var snapshot PriceSnapshot
	result := db.conn.WithContext(ctx).
		Where("condition_id = ?", conditionID).
		Order("created_at desc").
		First(&snapshot)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &snapshot, nil
}

// PriceSnapshotAt returns the most recent probability observation taken at
// least offset before now, or nil when none is old enough
func (db *DB) PriceSnapshotAt(ctx context.Context, conditionID string, offset time.Duration) (*PriceSnapshot, error) {
	cutoff := time.Now().Add(-offset)

	var snapshot PriceSnapshot
	result := db.conn.WithContext(ctx).
		Where("condition_id = ? AND created_at <= ?", conditionID, cutoff).
		Order("created_at desc").
		First(&snapshot)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &snapshot, nil
}

// PriceHistory returns probability observations newer than since, oldest first
func (db *DB) PriceHistory(ctx context.Context, conditionID string, since time.Time) ([]PriceSnapshot, error) {
	var snapshots []PriceSnapshot
	result := db.conn.WithContext(ctx).
		Where("condition_id = ? AND created_at >= ?", conditionID, since).
		Order("created_at asc").
		Find(&snapshots)
	if result.Error != nil {
		return nil, result.Error
	}
	return snapshots, nil
}

// CreateMarketSnapshot appends a smart-money observation
func (db *DB) CreateMarketSnapshot(ctx context.Context, snapshot *MarketSnapshot) error {
	result := db.conn.WithContext(ctx).Create(snapshot)
	metrics.RecordDatabaseQuery("create_market_snapshot", result.Error)
	return result.Error
}

// LatestMarketSnapshot returns the most recent smart-money observation for a
// market, or nil when none exists
func (db *DB) LatestMarketSnapshot(ctx context.Context, conditionID string) (*MarketSnapshot, error) {
	var snapshot MarketSnapshot
	result := db.conn.WithContext(ctx).
		Where("condition_id = ?", conditionID).
		Order("created_at desc").
		First(&snapshot)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &snapshot, nil
}

// InsertAlert persists a new alert with its webhook payload
func (db *DB) InsertAlert(ctx context.Context, alert *Alert) error {
	result := db.conn.WithContext(ctx).Create(alert)
	metrics.RecordDatabaseQuery("insert_alert", result.Error)
	return result.Error
}

// PendingAlerts returns undelivered alerts that still have retry budget,
// oldest first
func (db *DB) PendingAlerts(ctx context.Context, limit int) ([]Alert, error) {
	var alerts []Alert
	result := db.conn.WithContext(ctx).
		Where("webhook_sent = ? AND retry_count < ?", false, 3).
		Order("created_at asc").
		Limit(limit).
		Find(&alerts)
	if result.Error != nil {
		return nil, result.Error
	}
	return alerts, nil
}

// MarkAlertSent records a successful webhook delivery
func (db *DB) MarkAlertSent(ctx context.Context, alertID int64) error {
	now := time.Now()
	result := db.conn.WithContext(ctx).
		Model(&Alert{}).
		Where("id = ?", alertID).
		Updates(map[string]any{
			"webhook_sent": true,
			"sent_at":      &now,
		})
	metrics.RecordDatabaseQuery("mark_alert_sent", result.Error)
	return result.Error
}

// IncrementAlertRetry bumps the retry counter after a failed delivery
func (db *DB) IncrementAlertRetry(ctx context.Context, alertID int64) error {
	result := db.conn.WithContext(ctx).
		Model(&Alert{}).
		Where("id = ?", alertID).
		Update("retry_count", gorm.Expr("retry_count + 1"))
	metrics.RecordDatabaseQuery("increment_alert_retry", result.Error)
	return result.Error
}

// DeleteSnapshotsBefore prunes old probability and smart-money observations
func (db *DB) DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) error {
	if err := db.conn.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&PriceSnapshot{}).Error; err != nil {
		return fmt.Errorf("prune price snapshots: %w", err)
	}
	if err := db.conn.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&MarketSnapshot{}).Error; err != nil {
		return fmt.Errorf("prune market snapshots: %w", err)
	}
	return nil
}

// gormLogAdapter adapts logrus to GORM's logger interface
type gormLogAdapter struct {
	log *logrus.Logger
}

func (a *gormLogAdapter) Printf(format string, args ...any) {
	a.log.Debugf(format, args...)
}
