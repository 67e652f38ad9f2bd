// Package stats provides account-level risk statistics.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const (
	// DefaultTopN bounds the leaderboard size when none is requested.
	DefaultTopN = 5
	MaxTopN     = 50

	alertCounterWindow = 24 * time.Hour
)

// Service aggregates per-account statistics for the review surface.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates a stats service. The cache is optional; without it
// the rolling alert counters are disabled.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// AccountProfile returns lifetime statistics for an account.
func (s *Service) AccountProfile(ctx context.Context, account string) (*domain.AccountStats, error) {
	if account == "" {
		return nil, fmt.Errorf("account is required")
	}
	return s.repo.GetAccountStats(ctx, account)
}

// TopFlaggedAccounts returns the n sender accounts with the most alerts.
func (s *Service) TopFlaggedAccounts(ctx context.Context, n int) ([]domain.AccountAlertCount, error) {
	if n <= 0 {
		n = DefaultTopN
	}
	if n > MaxTopN {
		n = MaxTopN
	}
	return s.repo.TopAccountsByAlerts(ctx, n)
}

// RecordAlert bumps the rolling 24h alert counter for an account and
// returns the new count. Returns 0 when no cache is configured.
func (s *Service) RecordAlert(ctx context.Context, account string) (int64, error) {
	if s.cache == nil || account == "" {
		return 0, nil
	}
	return s.cache.IncrementCounter(ctx, "alerts:account:"+account, alertCounterWindow)
}
