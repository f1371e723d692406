package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Polling cycle metrics
	CyclesRun = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polysentry_cycles_total",
			Help: "Total number of polling cycles executed",
		},
	)

	CyclesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polysentry_cycles_skipped_total",
			Help: "Total number of polling cycles skipped because a cycle was still running",
		},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "polysentry_cycle_duration_seconds",
			Help:    "Duration of a full polling cycle",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	// Monitor metrics
	MonitorRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polysentry_monitor_runs_total",
			Help: "Total number of monitor runs",
		},
		[]string{"monitor", "status"}, // success/error
	)

	MonitorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polysentry_monitor_duration_seconds",
			Help:    "Duration of a single monitor run",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"monitor"},
	)

	// Alert metrics
	AlertsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polysentry_alerts_generated_total",
			Help: "Total number of alerts generated",
		},
		[]string{"type", "severity"},
	)

	// Webhook delivery metrics
	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polysentry_webhook_deliveries_total",
			Help: "Total number of webhook delivery attempts that reached a terminal outcome",
		},
		[]string{"status"}, // success/failure
	)

	WebhookBacklogProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polysentry_webhook_backlog_processed_total",
			Help: "Total number of backlog alerts retried by the pending sweep",
		},
		[]string{"status"}, // success/failure
	)

	// API metrics
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polysentry_api_requests_total",
			Help: "Total number of upstream API requests",
		},
		[]string{"api", "endpoint", "status"}, // data/gamma, /trades, success/error
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polysentry_api_request_duration_seconds",
			Help:    "Duration of upstream API requests",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"api", "endpoint"},
	)

	// Database metrics
	DatabaseQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polysentry_database_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"}, // get/insert/update, success/error
	)

	// System health
	HealthChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polysentry_health_checks_total",
			Help: "Total number of health check requests",
		},
		[]string{"status"}, // healthy/unhealthy
	)
)

// RecordCycle records a completed polling cycle
func RecordCycle(duration time.Duration) {
	CyclesRun.Inc()
	CycleDuration.Observe(duration.Seconds())
}

// RecordMonitorRun records a single monitor run
func RecordMonitorRun(monitor string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	MonitorRuns.WithLabelValues(monitor, status).Inc()
	MonitorDuration.WithLabelValues(monitor).Observe(duration.Seconds())
}

// RecordAlert records a generated alert
func RecordAlert(alertType, severity string) {
	AlertsGenerated.WithLabelValues(alertType, severity).Inc()
}

// RecordWebhookDelivery records the terminal outcome of a webhook delivery
func RecordWebhookDelivery(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	WebhookDeliveries.WithLabelValues(status).Inc()
}

// RecordBacklogDelivery records a backlog retry outcome
func RecordBacklogDelivery(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	WebhookBacklogProcessed.WithLabelValues(status).Inc()
}

// RecordAPIRequest records upstream API request metrics
func RecordAPIRequest(api, endpoint string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	APIRequests.WithLabelValues(api, endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(api, endpoint).Observe(duration.Seconds())
}

// RecordDatabaseQuery records database query metrics
func RecordDatabaseQuery(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseQueries.WithLabelValues(operation, status).Inc()
}

// RecordHealthCheck records health check status
func RecordHealthCheck(healthy bool) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	HealthChecks.WithLabelValues(status).Inc()
}
