// Package worker consumes flagged-transaction events and delivers
// notifications.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/stats"
)

// Worker subscribes to the flagged-transaction topic and fans each
// event out to the configured notifier. Delivery failures are logged
// and counted, never retried or propagated.
type Worker struct {
	bus      domain.EventBus
	notifier domain.Notifier
	stats    *stats.Service

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a notification worker. The stats service is
// optional and only feeds the rolling per-account alert counters.
func NewWorker(bus domain.EventBus, notifier domain.Notifier, statsSvc *stats.Service) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		notifier: notifier,
		stats:    statsSvc,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to the flagged-transaction topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicTransactionFlagged, w.handleFlagged)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("notification worker started", "topic", domain.TopicTransactionFlagged)
	return nil
}

func (w *Worker) handleFlagged(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var event domain.FlaggedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("failed to parse flagged event",
			"message_id", msg.ID,
			"error", err,
		)
		metrics.NotificationsTotal.WithLabelValues("malformed").Inc()
		return err
	}
	if event.Transaction == nil || event.Alert == nil {
		slog.Error("flagged event missing transaction or alert", "message_id", msg.ID)
		metrics.NotificationsTotal.WithLabelValues("malformed").Inc()
		return nil
	}

	if w.stats != nil {
		if _, err := w.stats.RecordAlert(ctx, event.Transaction.SenderAccount); err != nil {
			slog.Warn("failed to record alert counter",
				"account", event.Transaction.SenderAccount,
				"error", err,
			)
		}
	}

	if err := w.notifier.Notify(ctx, event.Transaction, event.Alert); err != nil {
		slog.Error("notification failed",
			"tx_id", event.Transaction.ID,
			"error", err,
		)
		metrics.NotificationsTotal.WithLabelValues("error").Inc()
		return nil
	}

	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	slog.Debug("notification delivered",
		"tx_id", event.Transaction.ID,
		"risk_score", event.Transaction.RiskScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Stop unsubscribes and stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("notification worker stopped")
	return nil
}
