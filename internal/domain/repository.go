// Package domain defines the core entities and collaborator interfaces
// for Kestrel.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
type Repository interface {
	// Transaction operations
	SaveTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, txID string) (*Transaction, error)
	ListTransactions(ctx context.Context, f TransactionFilter) ([]*Transaction, int, error)
	ListTransactionsByAccount(ctx context.Context, account string) ([]*Transaction, error)
	SetTransactionFlag(ctx context.Context, txID string, flagged bool) error
	GetAccountStats(ctx context.Context, account string) (*AccountStats, error)

	// Rule operations
	SaveRule(ctx context.Context, rule *Rule) error
	GetRule(ctx context.Context, ruleID string) (*Rule, error)
	ListRules(ctx context.Context) ([]*Rule, error)
	ListEnabledRules(ctx context.Context) ([]*Rule, error)
	SetRuleEnabled(ctx context.Context, ruleID string, enabled bool) error
	DeleteRule(ctx context.Context, ruleID string) error

	// Alert operations
	SaveAlert(ctx context.Context, alert *Alert) error
	GetAlert(ctx context.Context, alertID string) (*Alert, error)
	ListAlertsByTransaction(ctx context.Context, txID string) ([]*Alert, error)
	ListAlerted(ctx context.Context, f AlertFilter) ([]*Transaction, int, error)
	SetAlertStatus(ctx context.Context, alertID string, status AlertStatus) error
	TopAccountsByAlerts(ctx context.Context, n int) ([]AccountAlertCount, error)

	// Case operations
	SaveCase(ctx context.Context, c *Case) error
	GetCase(ctx context.Context, caseID string) (*Case, error)
	ListCases(ctx context.Context, page, pageSize int) ([]*Case, int, error)
	ListCasesByTransaction(ctx context.Context, txID string) ([]*Case, error)
	SetCaseStatus(ctx context.Context, caseID string, status CaseStatus) error

	// User operations
	SaveUser(ctx context.Context, u *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUser(ctx context.Context, userID string) (*User, error)
	ListUsersByRole(ctx context.Context, role Role) ([]*User, error)
	CountUsers(ctx context.Context) (int64, error)

	// Audit trail
	AppendAudit(ctx context.Context, e *AuditEntry) error
	ListAudit(ctx context.Context, page, pageSize int) ([]*AuditEntry, int, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
