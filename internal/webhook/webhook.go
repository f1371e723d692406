// Package webhook delivers alert payloads to the configured endpoint with
// bounded retries, and replays the persisted backlog of failed deliveries.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/polysentry/polysentry/internal/alert"
	"github.com/polysentry/polysentry/internal/metrics"
	"github.com/polysentry/polysentry/internal/storage"
)

const backlogBatchSize = 50

// AlertStore is the slice of storage the delivery service needs
type AlertStore interface {
	PendingAlerts(ctx context.Context, limit int) ([]storage.Alert, error)
	MarkAlertSent(ctx context.Context, alertID int64) error
	IncrementAlertRetry(ctx context.Context, alertID int64) error
}

// Service posts alert envelopes to a webhook URL
type Service struct {
	url           string
	retryAttempts int
	baseDelay     time.Duration
	httpClient    *http.Client
	store         AlertStore
	log           *logrus.Logger
}

// NewService creates a webhook delivery service
func NewService(url string, retryAttempts int, timeout time.Duration, store AlertStore, log *logrus.Logger) *Service {
	return &Service{
		url:           url,
		retryAttempts: retryAttempts,
		baseDelay:     time.Second,
		httpClient:    &http.Client{Timeout: timeout},
		store:         store,
		log:           log,
	}
}

// SendAlert delivers one alert immediately. It reports success or failure and
// never returns an error; a failed delivery is picked up later by the backlog
// sweep.
func (s *Service) SendAlert(ctx context.Context, a *alert.Alert) bool {
	body, err := json.Marshal(alert.NewPayload(a))
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"alert_type": string(a.Type),
			"error":      err.Error(),
		}).Error("Failed to marshal alert payload")
		return false
	}

	ok := s.deliver(ctx, body)
	metrics.RecordWebhookDelivery(ok)
	if !ok {
		s.log.WithFields(logrus.Fields{
			"alert_type": string(a.Type),
			"severity":   string(a.Severity),
			"attempts":   s.retryAttempts,
		}).Error("Webhook delivery failed, alert left for backlog sweep")
	}
	return ok
}

// ProcessPendingAlerts replays persisted alerts that were never delivered.
// Each replay gets the same bounded retry as an immediate send; success marks
// the alert sent, failure burns one unit of its retry budget.
func (s *Service) ProcessPendingAlerts(ctx context.Context) {
	pending, err := s.store.PendingAlerts(ctx, backlogBatchSize)
	if err != nil {
		s.log.WithField("error", err.Error()).Error("Failed to load pending alerts")
		return
	}
	if len(pending) == 0 {
		return
	}

	s.log.WithField("count", len(pending)).Info("Replaying pending alerts")

	for _, row := range pending {
		if ctx.Err() != nil {
			return
		}

		ok := s.deliver(ctx, []byte(row.Payload))
		metrics.RecordBacklogDelivery(ok)

		if ok {
			if err := s.store.MarkAlertSent(ctx, row.ID); err != nil {
				s.log.WithFields(logrus.Fields{
					"alert_id": row.ID,
					"error":    err.Error(),
				}).Error("Failed to mark alert sent")
			}
			continue
		}

		if err := s.store.IncrementAlertRetry(ctx, row.ID); err != nil {
			s.log.WithFields(logrus.Fields{
				"alert_id": row.ID,
				"error":    err.Error(),
			}).Error("Failed to increment alert retry count")
		}
	}
}

// deliver posts the payload, retrying with exponential backoff. Returns true
// on the first 2xx response.
func (s *Service) deliver(ctx context.Context, body []byte) bool {
	for attempt := 0; attempt < s.retryAttempts; attempt++ {
		if attempt > 0 {
			delay := s.backoff(attempt - 1)
			select {
			case <-ctx.Done():
				return false
			case <-time.After(delay):
			}
		}

		err := s.post(ctx, body)
		if err == nil {
			return true
		}

		s.log.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"max":     s.retryAttempts,
			"error":   err.Error(),
		}).Warn("Webhook delivery attempt failed")
	}
	return false
}

func (s *Service) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, "POST", s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// backoff returns baseDelay * 2^attempt
func (s *Service) backoff(attempt int) time.Duration {
	return s.baseDelay * time.Duration(1<<attempt)
}
