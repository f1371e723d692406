package monitor

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/polysentry/polysentry/internal/alert"
	"github.com/polysentry/polysentry/internal/metrics"
	"github.com/polysentry/polysentry/internal/storage"
)

// AlertSender delivers alerts and replays the persisted backlog
type AlertSender interface {
	SendAlert(ctx context.Context, a *alert.Alert) bool
	ProcessPendingAlerts(ctx context.Context)
}

// AlertStore persists alerts and their delivery state
type AlertStore interface {
	InsertAlert(ctx context.Context, a *storage.Alert) error
	MarkAlertSent(ctx context.Context, alertID int64) error
}

// Orchestrator runs the monitors in order once per cycle, persists and
// delivers their alerts, then sweeps the delivery backlog.
type Orchestrator struct {
	monitors []Monitor
	sender   AlertSender
	store    AlertStore
	log      *logrus.Logger
	inFlight atomic.Bool
}

// NewOrchestrator creates an orchestrator over an ordered monitor list
func NewOrchestrator(monitors []Monitor, sender AlertSender, store AlertStore, log *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		monitors: monitors,
		sender:   sender,
		store:    store,
		log:      log,
	}
}

// RunCycle executes one full polling cycle. If a previous cycle is still
// running the call is a no-op; the skipped cycle is not queued.
func (o *Orchestrator) RunCycle(ctx context.Context) {
	if !o.inFlight.CompareAndSwap(false, true) {
		o.log.Warn("Previous cycle still running, skipping")
		metrics.CyclesSkipped.Inc()
		return
	}
	defer o.inFlight.Store(false)

	start := time.Now()
	var cycleAlerts []alert.Alert

	for _, m := range o.monitors {
		if !m.Enabled() {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		monitorStart := time.Now()
		alerts, err := m.Run(ctx)
		metrics.RecordMonitorRun(m.Name(), time.Since(monitorStart), err)

		if err != nil {
			o.log.WithFields(logrus.Fields{
				"monitor": m.Name(),
				"error":   err.Error(),
			}).Error("Monitor run failed")
			continue
		}

		cycleAlerts = append(cycleAlerts, alerts...)
	}

	for i := range cycleAlerts {
		o.dispatch(ctx, &cycleAlerts[i])
	}

	o.sender.ProcessPendingAlerts(ctx)

	duration := time.Since(start)
	metrics.RecordCycle(duration)
	o.log.WithFields(logrus.Fields{
		"alerts":      len(cycleAlerts),
		"duration_ms": duration.Milliseconds(),
	}).Info("Cycle completed")
}

// dispatch persists one alert and attempts immediate delivery. An alert that
// cannot be persisted is dropped from the cycle; one that cannot be delivered
// stays pending for the backlog sweep.
func (o *Orchestrator) dispatch(ctx context.Context, a *alert.Alert) {
	payload, err := json.Marshal(alert.NewPayload(a))
	if err != nil {
		o.log.WithFields(logrus.Fields{
			"alert_type": string(a.Type),
			"error":      err.Error(),
		}).Error("Failed to marshal alert payload")
		return
	}

	row := &storage.Alert{
		AlertType: string(a.Type),
		Severity:  string(a.Severity),
		Title:     a.Title,
		Payload:   string(payload),
	}
	if err := o.store.InsertAlert(ctx, row); err != nil {
		o.log.WithFields(logrus.Fields{
			"alert_type": string(a.Type),
			"error":      err.Error(),
		}).Error("Failed to persist alert, dropping")
		return
	}

	metrics.RecordAlert(string(a.Type), string(a.Severity))

	if o.sender.SendAlert(ctx, a) {
		if err := o.store.MarkAlertSent(ctx, row.ID); err != nil {
			o.log.WithFields(logrus.Fields{
				"alert_id": row.ID,
				"error":    err.Error(),
			}).Error("Failed to mark alert sent")
		}
	}
}
