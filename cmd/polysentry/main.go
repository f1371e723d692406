package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/polysentry/polysentry/internal/config"
	"github.com/polysentry/polysentry/internal/intel"
	"github.com/polysentry/polysentry/internal/metrics"
	"github.com/polysentry/polysentry/internal/monitor"
	"github.com/polysentry/polysentry/internal/polymarket/dataapi"
	"github.com/polysentry/polysentry/internal/polymarket/gammaapi"
	"github.com/polysentry/polysentry/internal/storage"
	"github.com/polysentry/polysentry/internal/webhook"
)

func main() {
	// Initialize logger
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)

	log.Info("Starting polysentry service...")

	// Load .env when present; env vars already set take precedence
	if err := godotenv.Load(); err == nil {
		log.Info("Loaded environment from .env file")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	if cfg.Environment != "production" {
		log.SetLevel(logrus.DebugLevel)
	}

	log.WithFields(logrus.Fields{
		"environment":       cfg.Environment,
		"poll_interval_sec": cfg.PollIntervalSec,
		"large_trade_usd":   cfg.LargeTradeUSD,
		"whale_pnl_usd":     cfg.WhalePnlUSD,
	}).Info("Configuration loaded")

	tracked, err := config.LoadTracked(cfg.TrackedConfigPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load tracked config")
	}

	log.WithFields(logrus.Fields{
		"accounts": len(tracked.Accounts),
		"markets":  len(tracked.Markets),
	}).Info("Tracked config loaded")

	// Initialize database
	db, err := storage.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	// Run auto-migration
	if err := db.AutoMigrate(); err != nil {
		log.WithError(err).Fatal("Failed to run database migrations")
	}

	log.Info("Database migrations complete")

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.SyncTracked(ctx, tracked); err != nil {
		log.WithError(err).Fatal("Failed to sync tracked config")
	}

	// Initialize API clients
	dataClient := dataapi.NewClient(cfg.DataAPIBaseURL, dataapi.Limits{
		TradesRPS:    cfg.DataAPITradesRPS,
		ActivityRPS:  cfg.DataAPIActivityRPS,
		PositionsRPS: cfg.DataAPIPositionsRPS,
	})
	gammaClient := gammaapi.NewClient(cfg.GammaAPIBaseURL, cfg.GammaAPIMarketsRPS)

	log.Info("API clients initialized")

	// Intelligence services
	traderIntel := intel.NewTraderIntelligence(dataClient, log)
	analyzer := intel.NewSmartMoneyAnalyzer(dataClient, traderIntel, log)

	// Webhook delivery
	sender := webhook.NewService(cfg.WebhookURL, cfg.WebhookRetryAttempts, cfg.WebhookTimeout, db, log)

	// Monitors, run in this order every cycle
	monitors := []monitor.Monitor{
		monitor.NewVolumeMonitor(gammaClient, db, cfg, log),
		monitor.NewAccountMonitor(dataClient, db, cfg, log),
		monitor.NewMarketMonitor(gammaClient, dataClient, db, cfg, log),
		monitor.NewTradeMonitor(dataClient, gammaClient, db, traderIntel, cfg, log),
		monitor.NewSmartMoneyMonitor(gammaClient, dataClient, db, analyzer, cfg, log),
	}

	orchestrator := monitor.NewOrchestrator(monitors, sender, db, log)

	// Start HTTP server (health + metrics)
	go startHTTPServer(cfg.HealthPort, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(cfg.PollIntervalSec) * time.Second)
	defer ticker.Stop()

	pruneTicker := time.NewTicker(24 * time.Hour)
	defer pruneTicker.Stop()

	log.Info("Starting monitoring loop")

	// Run immediately on startup
	orchestrator.RunCycle(ctx)

	for {
		select {
		case <-ticker.C:
			orchestrator.RunCycle(ctx)
		case <-pruneTicker.C:
			cutoff := time.Now().AddDate(0, 0, -cfg.SnapshotRetentionDays)
			if err := db.DeleteSnapshotsBefore(ctx, cutoff); err != nil {
				log.WithError(err).Error("Failed to prune old snapshots")
			} else {
				log.WithField("cutoff", cutoff.Format(time.RFC3339)).Info("Pruned old snapshots")
			}
		case sig := <-sigChan:
			log.WithField("signal", sig).Info("Received shutdown signal")
			cancel()
			log.Info("Graceful shutdown complete")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, shutting down")
			return
		}
	}
}

func startHTTPServer(port int, log *logrus.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		metrics.RecordHealthCheck(true)
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy"}`)
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		metrics.RecordHealthCheck(true)
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ready"}`)
	})

	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	log.WithField("port", port).Info("Starting HTTP server (health + metrics)")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("HTTP server failed")
	}
}
