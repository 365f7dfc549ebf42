package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/backy/backend/internal/logging"
	"github.com/backy/backend/internal/model"
	"github.com/backy/backend/internal/repository"
	"github.com/backy/backend/pkg/webhook"
)

var webhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "backy_webhook_deliveries_total",
	Help: "Webhook delivery attempts by event kind and result.",
}, []string{"kind", "result"})

// AuditTracker appends audit events and dispatches notification webhooks.
// Delivery is at most once: a single POST, no retry.
type AuditTracker struct {
	repo   repository.AuditRepository
	client webhook.Client
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewAuditTracker creates an AuditTracker writing to repo and posting through client.
func NewAuditTracker(repo repository.AuditRepository, client webhook.Client) *AuditTracker {
	return &AuditTracker{
		repo:   repo,
		client: client,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Track appends ev. Failures are logged and never returned.
func (t *AuditTracker) Track(ctx context.Context, ev model.AuditEvent) {
	if ev.RequestID == "" {
		ev.RequestID = logging.RequestID(ctx)
	}
	if err := t.repo.Append(context.WithoutCancel(ctx), &ev); err != nil {
		logging.FromContext(ctx).Error("failed to append audit event",
			"kind", ev.Kind, "site_id", ev.SiteID, "status", ev.Status, "error", err)
	}
}

// Notify records ev as queued and posts payload to target in the background.
// The outcome is appended as a second event with status succeeded or failed.
func (t *AuditTracker) Notify(ctx context.Context, ev model.AuditEvent, target string, payload webhook.Payload) {
	if payload.Timestamp == "" {
		payload.Timestamp = t.now().Format(time.RFC3339)
	}
	if payload.Kind == "" {
		payload.Kind = string(ev.Kind)
	}
	if ev.RequestID == "" {
		ev.RequestID = logging.RequestID(ctx)
	}
	ev.Status = model.DeliveryQueued
	t.Track(ctx, ev)

	ctx = context.WithoutCancel(ctx)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		code, err := t.client.Post(ctx, target, payload, webhook.Headers(payload))

		result := ev
		result.StatusCode = code
		if err != nil {
			result.Status = model.DeliveryFailed
			result.Error = err.Error()
			slog.Warn("webhook delivery failed", "kind", ev.Kind, "site_id", ev.SiteID,
				"status_code", code, "error", err)
		} else {
			result.Status = model.DeliverySucceeded
		}
		webhookDeliveries.WithLabelValues(string(ev.Kind), string(result.Status)).Inc()
		t.Track(ctx, result)
	}()
}

// Wait blocks until every in-flight delivery has recorded its outcome.
func (t *AuditTracker) Wait() {
	t.wg.Wait()
}

// List returns audit events newest first.
func (t *AuditTracker) List(ctx context.Context, opts model.AuditListOptions) ([]*model.AuditEvent, error) {
	return t.repo.List(ctx, opts)
}
