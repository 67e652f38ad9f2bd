package stats

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/repository"
)

func newTestService(t *testing.T) (*Service, domain.Repository) {
	t.Helper()
	f, err := os.CreateTemp("", "kestrel-stats-*.db")
	if err != nil {
		t.Fatalf("failed to create temp db: %v", err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: f.Name(),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	c := cache.NewLRUCache(100)
	t.Cleanup(func() { c.Close() })

	return NewService(repo, c), repo
}

func saveTx(t *testing.T, repo domain.Repository, id, sender string, amount float64, score int) *domain.Transaction {
	t.Helper()
	tx := &domain.Transaction{
		ID:              id,
		SenderAccount:   sender,
		ReceiverAccount: "9999999999",
		Type:            "transfer",
		Amount:          amount,
		RiskScore:       score,
		IsFlagged:       score > 0,
		Status:          domain.TxStatusNormal,
		CreatedAt:       time.Now().UTC(),
	}
	if score > 0 {
		tx.Status = domain.TxStatusFlagged
	}
	if err := repo.SaveTransaction(context.Background(), tx); err != nil {
		t.Fatalf("failed to save transaction: %v", err)
	}
	return tx
}

func saveAlert(t *testing.T, repo domain.Repository, id, txID string) {
	t.Helper()
	err := repo.SaveAlert(context.Background(), &domain.Alert{
		ID:            id,
		TransactionID: txID,
		RuleName:      "High Amount",
		Severity:      domain.SeverityHigh,
		Status:        domain.AlertPending,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("failed to save alert: %v", err)
	}
}

func TestAccountProfile(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	saveTx(t, repo, "tx-1", "1111111111", 100, 0)
	saveTx(t, repo, "tx-2", "1111111111", 300, 0)

	stats, err := svc.AccountProfile(ctx, "1111111111")
	if err != nil {
		t.Fatalf("AccountProfile failed: %v", err)
	}
	if stats.TxCount != 2 {
		t.Errorf("expected 2 transactions, got %d", stats.TxCount)
	}
	if stats.AvgAmount != 200 {
		t.Errorf("expected average 200, got %v", stats.AvgAmount)
	}

	t.Run("UnknownAccount", func(t *testing.T) {
		_, err := svc.AccountProfile(ctx, "0000000000")
		if !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("EmptyAccount", func(t *testing.T) {
		if _, err := svc.AccountProfile(ctx, ""); err == nil {
			t.Error("expected error for empty account")
		}
	})
}

func TestTopFlaggedAccounts(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	tx1 := saveTx(t, repo, "tx-1", "1111111111", 100, 80)
	tx2 := saveTx(t, repo, "tx-2", "2222222222", 100, 60)
	saveAlert(t, repo, "al-1", tx1.ID)
	saveAlert(t, repo, "al-2", tx1.ID)
	saveAlert(t, repo, "al-3", tx2.ID)

	top, err := svc.TopFlaggedAccounts(ctx, 10)
	if err != nil {
		t.Fatalf("TopFlaggedAccounts failed: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(top))
	}
	if top[0].AccountNumber != "1111111111" || top[0].Count != 2 {
		t.Errorf("unexpected leader: %+v", top[0])
	}

	t.Run("DefaultsAndCaps", func(t *testing.T) {
		if _, err := svc.TopFlaggedAccounts(ctx, 0); err != nil {
			t.Errorf("zero n should use default: %v", err)
		}
		if _, err := svc.TopFlaggedAccounts(ctx, 10000); err != nil {
			t.Errorf("oversized n should be capped: %v", err)
		}
	})
}

func TestRecordAlert(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		count, err := svc.RecordAlert(ctx, "1111111111")
		if err != nil {
			t.Fatalf("RecordAlert failed: %v", err)
		}
		if count != int64(i) {
			t.Errorf("expected count %d, got %d", i, count)
		}
	}

	t.Run("NilCache", func(t *testing.T) {
		bare := NewService(nil, nil)
		count, err := bare.RecordAlert(ctx, "1111111111")
		if err != nil || count != 0 {
			t.Errorf("expected no-op without cache, got (%d, %v)", count, err)
		}
	})
}
