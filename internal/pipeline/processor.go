// Package pipeline wires the scoring engine to persistence and events.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/rules"
)

// Processor runs a transaction through scoring, persistence, alert
// attribution and event publication. Scoring happens synchronously on
// the ingestion path so the caller sees the final risk fields.
type Processor struct {
	repo       domain.Repository
	cache      domain.Cache
	bus        domain.EventBus
	ruleSetTTL time.Duration
}

// NewProcessor creates a transaction processor. cache and bus may be
// nil in tests; rule lookups then always hit the repository and events
// are skipped.
func NewProcessor(repo domain.Repository, cache domain.Cache, bus domain.EventBus, ruleSetTTL time.Duration) *Processor {
	if ruleSetTTL <= 0 {
		ruleSetTTL = 30 * time.Second
	}
	return &Processor{
		repo:       repo,
		cache:      cache,
		bus:        bus,
		ruleSetTTL: ruleSetTTL,
	}
}

// Process scores and persists a transaction, creating alerts when it is
// flagged. The returned alerts are the ones created for this
// transaction, fallback included. Event publication failures are logged
// but never fail the request.
func (p *Processor) Process(ctx context.Context, tx *domain.Transaction) ([]*domain.Alert, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	enabled, err := p.enabledRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	score := rules.ComputeRiskScore(tx, enabled)
	tx.RiskScore = score
	tx.IsFlagged = score > 0
	if tx.IsFlagged {
		tx.Status = domain.TxStatusFlagged
	} else {
		tx.Status = domain.TxStatusNormal
	}

	if err := p.repo.SaveTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}

	metrics.TransactionsScoredTotal.WithLabelValues(tx.Status).Inc()
	metrics.RiskScoreDistribution.Observe(float64(score))

	p.publish(ctx, domain.TopicTransactionCreated, tx)

	if !tx.IsFlagged {
		return nil, nil
	}

	alerts, err := p.createAlerts(ctx, tx, enabled)
	if err != nil {
		return nil, err
	}

	p.publish(ctx, domain.TopicTransactionFlagged, &domain.FlaggedEvent{
		Transaction: tx,
		Alert:       alerts[0],
	})

	slog.Info("transaction flagged",
		"tx_id", tx.ID,
		"risk_score", tx.RiskScore,
		"alerts", len(alerts),
	)

	return alerts, nil
}

// createAlerts attributes the flag to matching rules, one alert per
// matched rule with the rule's definition snapshotted on the alert.
// When no rule matches under the attribution comparators, a single
// fallback alert carries a severity derived from the score.
func (p *Processor) createAlerts(ctx context.Context, tx *domain.Transaction, enabled []*domain.Rule) ([]*domain.Alert, error) {
	now := time.Now().UTC()
	var alerts []*domain.Alert

	for _, r := range rules.Attribute(tx, enabled) {
		alerts = append(alerts, &domain.Alert{
			ID:            uuid.NewString(),
			TransactionID: tx.ID,
			Severity:      r.Severity,
			Status:        domain.AlertPending,
			RuleName:      r.Name,
			RuleField:     r.Field,
			RuleCondition: r.Condition,
			RuleValue:     r.Value,
			CreatedAt:     now,
		})
	}

	if len(alerts) == 0 {
		alerts = append(alerts, &domain.Alert{
			ID:            uuid.NewString(),
			TransactionID: tx.ID,
			Severity:      rules.SeverityForScore(tx.RiskScore),
			Status:        domain.AlertPending,
			RuleName:      domain.AutoFlagRuleName,
			CreatedAt:     now,
		})
	}

	for _, alert := range alerts {
		if err := p.repo.SaveAlert(ctx, alert); err != nil {
			return nil, fmt.Errorf("failed to save alert: %w", err)
		}
		metrics.AlertsCreatedTotal.WithLabelValues(string(alert.Severity)).Inc()
		p.publish(ctx, domain.TopicAlertCreated, alert)
	}

	return alerts, nil
}

// enabledRules loads the enabled rule set, preferring the cache. A
// cache failure degrades to a repository read rather than failing the
// transaction.
func (p *Processor) enabledRules(ctx context.Context) ([]*domain.Rule, error) {
	if p.cache != nil {
		cached, err := p.cache.GetRules(ctx)
		if err != nil {
			slog.Warn("rule cache read failed", "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	enabled, err := p.repo.ListEnabledRules(ctx)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.SetRules(ctx, enabled, p.ruleSetTTL); err != nil {
			slog.Warn("rule cache write failed", "error", err)
		}
	}

	return enabled, nil
}

// InvalidateRules drops the cached rule set after a rule mutation.
func (p *Processor) InvalidateRules(ctx context.Context) {
	if p.cache == nil {
		return
	}
	if err := p.cache.InvalidateRules(ctx); err != nil {
		slog.Warn("rule cache invalidation failed", "error", err)
	}
}

func (p *Processor) publish(ctx context.Context, topic string, payload any) {
	if p.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal event", "topic", topic, "error", err)
		return
	}
	if err := p.bus.Publish(ctx, topic, data); err != nil {
		slog.Error("failed to publish event", "topic", topic, "error", err)
	}
}
