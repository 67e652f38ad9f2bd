// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("record already exists")
)

// DefaultPageSize applies when a paged listing is requested without an
// explicit page size.
const DefaultPageSize = 20

// MaxPageSize caps a requested page size.
const MaxPageSize = 200

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

const transactionColumns = `id, sender_account, receiver_account, type, amount,
	   location, device, ip_address, risk_score, is_flagged, status, created_at`

func scanTransaction(scan func(dest ...any) error) (*domain.Transaction, error) {
	var tx domain.Transaction
	var flagged int

	err := scan(
		&tx.ID, &tx.SenderAccount, &tx.ReceiverAccount, &tx.Type, &tx.Amount,
		&tx.Location, &tx.Device, &tx.IPAddress, &tx.RiskScore, &flagged,
		&tx.Status, &tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.IsFlagged = flagged == 1
	return &tx, nil
}

// SaveTransaction stores a transaction.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.ID == "" {
		return fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}

	flagged := 0
	if tx.IsFlagged {
		flagged = 1
	}

	query := `
		INSERT INTO transactions (
			id, sender_account, receiver_account, type, amount,
			location, device, ip_address, risk_score, is_flagged, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, tx.SenderAccount, tx.ReceiverAccount, tx.Type, tx.Amount,
		tx.Location, tx.Device, tx.IPAddress, tx.RiskScore, flagged,
		tx.Status, tx.CreatedAt,
	)
	return err
}

// GetTransaction retrieves a transaction by ID.
func (r *SQLRepository) GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, r.rebind(query), txID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// ListTransactions retrieves a filtered, paginated transaction listing
// ordered newest first, along with the total count before paging.
func (r *SQLRepository) ListTransactions(ctx context.Context, f domain.TransactionFilter) ([]*domain.Transaction, int, error) {
	var conds []string
	var args []any

	if f.Status != "" {
		conds = append(conds, "status = ?")
		switch strings.ToLower(f.Status) {
		case "flagged":
			args = append(args, domain.TxStatusFlagged)
		case "normal":
			args = append(args, domain.TxStatusNormal)
		default:
			args = append(args, f.Status)
		}
	}
	if f.Account != "" {
		conds = append(conds, "(sender_account = ? OR receiver_account = ?)")
		args = append(args, f.Account, f.Account)
	}
	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, f.Type)
	}
	if f.From != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, f.To.UTC())
	}
	if f.MinRisk != nil {
		conds = append(conds, "risk_score >= ?")
		args = append(args, *f.MinRisk)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM transactions" + where
	if err := r.db.QueryRowContext(ctx, r.rebind(countQuery), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, pageSize := normalizePage(f.Page, f.PageSize)
	query := `SELECT ` + transactionColumns + ` FROM transactions` + where +
		` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, total, rows.Err()
}

// ListTransactionsByAccount retrieves all transactions where the account
// appears as sender or receiver, newest first.
func (r *SQLRepository) ListTransactionsByAccount(ctx context.Context, account string) ([]*domain.Transaction, error) {
	if account == "" {
		return nil, fmt.Errorf("%w: account is required", ErrInvalidInput)
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE sender_account = ? OR receiver_account = ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), account, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

// SetTransactionFlag updates the manual flag on a transaction. The risk
// score is left untouched; only the flag and display status change.
func (r *SQLRepository) SetTransactionFlag(ctx context.Context, txID string, flagged bool) error {
	flag := 0
	status := domain.TxStatusNormal
	if flagged {
		flag = 1
		status = domain.TxStatusFlagged
	}

	query := `UPDATE transactions SET is_flagged = ?, status = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), flag, status, txID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// GetAccountStats aggregates activity for an account: first seen time,
// average amount and transaction count across sent and received.
func (r *SQLRepository) GetAccountStats(ctx context.Context, account string) (*domain.AccountStats, error) {
	if account == "" {
		return nil, fmt.Errorf("%w: account is required", ErrInvalidInput)
	}

	query := `
		SELECT MIN(created_at), AVG(amount), COUNT(*)
		FROM transactions
		WHERE sender_account = ? OR receiver_account = ?
	`

	var firstSeen sql.NullTime
	var avg sql.NullFloat64
	var count int64

	err := r.db.QueryRowContext(ctx, r.rebind(query), account, account).Scan(&firstSeen, &avg, &count)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNotFound
	}

	return &domain.AccountStats{
		AccountNumber: account,
		FirstSeen:     firstSeen.Time,
		AvgAmount:     avg.Float64,
		TxCount:       count,
	}, nil
}

// SaveRule inserts or updates a rule.
func (r *SQLRepository) SaveRule(ctx context.Context, rule *domain.Rule) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	query := `
		INSERT INTO rules (
			id, name, field, condition, value, enabled, severity, severity_weight, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			field = excluded.field,
			condition = excluded.condition,
			value = excluded.value,
			enabled = excluded.enabled,
			severity = excluded.severity,
			severity_weight = excluded.severity_weight,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Field, rule.Condition, rule.Value,
		enabled, rule.Severity, rule.SeverityWeight,
		rule.CreatedAt, rule.UpdatedAt,
	)
	return err
}

const ruleColumns = `id, name, field, condition, value, enabled, severity, severity_weight, created_at, updated_at`

func scanRule(scan func(dest ...any) error) (*domain.Rule, error) {
	var rule domain.Rule
	var enabled int

	err := scan(
		&rule.ID, &rule.Name, &rule.Field, &rule.Condition, &rule.Value,
		&enabled, &rule.Severity, &rule.SeverityWeight,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Enabled = enabled == 1
	return &rule, nil
}

// GetRule retrieves a rule by ID.
func (r *SQLRepository) GetRule(ctx context.Context, ruleID string) (*domain.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules WHERE id = ?`

	rule, err := scanRule(r.db.QueryRowContext(ctx, r.rebind(query), ruleID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// ListRules retrieves all rules ordered by name.
func (r *SQLRepository) ListRules(ctx context.Context) ([]*domain.Rule, error) {
	return r.listRules(ctx, `SELECT `+ruleColumns+` FROM rules ORDER BY name`)
}

// ListEnabledRules retrieves the enabled rule set used by the scoring
// pipeline, ordered by name.
func (r *SQLRepository) ListEnabledRules(ctx context.Context) ([]*domain.Rule, error) {
	return r.listRules(ctx, `SELECT `+ruleColumns+` FROM rules WHERE enabled = 1 ORDER BY name`)
}

func (r *SQLRepository) listRules(ctx context.Context, query string, args ...any) ([]*domain.Rule, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.Rule
	for rows.Next() {
		rule, err := scanRule(rows.Scan)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// SetRuleEnabled toggles a rule without touching its definition.
func (r *SQLRepository) SetRuleEnabled(ctx context.Context, ruleID string, enabled bool) error {
	e := 0
	if enabled {
		e = 1
	}

	query := `UPDATE rules SET enabled = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), e, time.Now().UTC(), ruleID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// DeleteRule removes a rule. Existing alerts keep their snapshot of the
// rule's definition.
func (r *SQLRepository) DeleteRule(ctx context.Context, ruleID string) error {
	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM rules WHERE id = ?`), ruleID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// SaveAlert stores an alert.
func (r *SQLRepository) SaveAlert(ctx context.Context, alert *domain.Alert) error {
	if alert == nil || alert.ID == "" {
		return fmt.Errorf("%w: alert id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO alerts (
			id, transaction_id, severity, status, rule_name,
			rule_field, rule_condition, rule_value, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		alert.ID, alert.TransactionID, alert.Severity, alert.Status, alert.RuleName,
		alert.RuleField, alert.RuleCondition, alert.RuleValue, alert.CreatedAt,
	)
	return err
}

const alertColumns = `id, transaction_id, severity, status, rule_name, rule_field, rule_condition, rule_value, created_at`

func scanAlert(scan func(dest ...any) error) (*domain.Alert, error) {
	var alert domain.Alert
	var field, cond, value sql.NullString

	err := scan(
		&alert.ID, &alert.TransactionID, &alert.Severity, &alert.Status,
		&alert.RuleName, &field, &cond, &value, &alert.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	alert.RuleField = field.String
	alert.RuleCondition = cond.String
	alert.RuleValue = value.String
	return &alert, nil
}

// GetAlert retrieves an alert with its transaction joined in.
func (r *SQLRepository) GetAlert(ctx context.Context, alertID string) (*domain.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = ?`

	alert, err := scanAlert(r.db.QueryRowContext(ctx, r.rebind(query), alertID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	tx, err := r.GetTransaction(ctx, alert.TransactionID)
	if err == nil {
		alert.Transaction = tx
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	return alert, nil
}

// ListAlertsByTransaction retrieves all alerts for a transaction,
// oldest first.
func (r *SQLRepository) ListAlertsByTransaction(ctx context.Context, txID string) ([]*domain.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE transaction_id = ? ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), txID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		alert, err := scanAlert(rows.Scan)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}

	return alerts, rows.Err()
}

// ListAlerted retrieves the distinct transactions that have alerts,
// filtered and paginated for the alert review listing. The severity
// filter buckets by the transaction's stored risk score (Critical >= 90,
// High [70,90), Medium [40,70), Low (0,40)), not by each alert's own
// severity. The month filter is applied in memory so the query stays
// portable across SQLite and PostgreSQL date functions.
func (r *SQLRepository) ListAlerted(ctx context.Context, f domain.AlertFilter) ([]*domain.Transaction, int, error) {
	conds := []string{"EXISTS (SELECT 1 FROM alerts a WHERE a.transaction_id = t.id"}
	var args []any

	if f.Status != nil {
		conds[0] += " AND a.status = ?"
		args = append(args, *f.Status)
	}
	conds[0] += ")"

	if f.Severity != nil {
		switch *f.Severity {
		case domain.SeverityCritical:
			conds = append(conds, "t.risk_score >= 90")
		case domain.SeverityHigh:
			conds = append(conds, "t.risk_score >= 70 AND t.risk_score < 90")
		case domain.SeverityMedium:
			conds = append(conds, "t.risk_score >= 40 AND t.risk_score < 70")
		case domain.SeverityLow:
			conds = append(conds, "t.risk_score > 0 AND t.risk_score < 40")
		}
	}

	query := `
		SELECT ` + prefixColumns("t", transactionColumns) + `
		FROM transactions t
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY t.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var matched []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		if f.Month != nil && int(tx.CreatedAt.Month()) != *f.Month {
			continue
		}
		matched = append(matched, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	total := len(matched)
	page, pageSize := normalizePage(f.Page, f.PageSize)
	start := (page - 1) * pageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return matched[start:end], total, nil
}

// SetAlertStatus updates the triage status of an alert.
func (r *SQLRepository) SetAlertStatus(ctx context.Context, alertID string, status domain.AlertStatus) error {
	query := `UPDATE alerts SET status = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), status, alertID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// TopAccountsByAlerts returns the n sender accounts with the most
// alerts, most alerted first.
func (r *SQLRepository) TopAccountsByAlerts(ctx context.Context, n int) ([]domain.AccountAlertCount, error) {
	if n <= 0 {
		n = 10
	}

	query := `
		SELECT t.sender_account, COUNT(a.id) AS alert_count
		FROM alerts a
		JOIN transactions t ON t.id = a.transaction_id
		GROUP BY t.sender_account
		ORDER BY alert_count DESC, t.sender_account
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []domain.AccountAlertCount
	for rows.Next() {
		var c domain.AccountAlertCount
		if err := rows.Scan(&c.AccountNumber, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}

	return counts, rows.Err()
}

// SaveCase inserts or updates a case.
func (r *SQLRepository) SaveCase(ctx context.Context, c *domain.Case) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("%w: case id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO cases (
			id, transaction_id, title, notes, status, assigned_to, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			notes = excluded.notes,
			status = excluded.status,
			assigned_to = excluded.assigned_to,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		c.ID, c.TransactionID, c.Title, c.Notes, c.Status, c.AssignedTo,
		c.CreatedAt, c.UpdatedAt,
	)
	return err
}

const caseColumns = `id, transaction_id, title, notes, status, assigned_to, created_at, updated_at`

func scanCase(scan func(dest ...any) error) (*domain.Case, error) {
	var c domain.Case
	var notes, assigned sql.NullString

	err := scan(
		&c.ID, &c.TransactionID, &c.Title, &notes, &c.Status, &assigned,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Notes = notes.String
	c.AssignedTo = assigned.String
	return &c, nil
}

// GetCase retrieves a case by ID.
func (r *SQLRepository) GetCase(ctx context.Context, caseID string) (*domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = ?`

	c, err := scanCase(r.db.QueryRowContext(ctx, r.rebind(query), caseID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListCases retrieves a paginated case listing, newest first.
func (r *SQLRepository) ListCases(ctx context.Context, page, pageSize int) ([]*domain.Case, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cases`).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, pageSize = normalizePage(page, pageSize)
	query := `SELECT ` + caseColumns + ` FROM cases ORDER BY created_at DESC LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var cases []*domain.Case
	for rows.Next() {
		c, err := scanCase(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		cases = append(cases, c)
	}

	return cases, total, rows.Err()
}

// ListCasesByTransaction returns every case opened against a transaction.
func (r *SQLRepository) ListCasesByTransaction(ctx context.Context, txID string) ([]*domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE transaction_id = ? ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), txID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []*domain.Case
	for rows.Next() {
		c, err := scanCase(rows.Scan)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}

	return cases, rows.Err()
}

// SetCaseStatus updates the investigation status of a case.
func (r *SQLRepository) SetCaseStatus(ctx context.Context, caseID string, status domain.CaseStatus) error {
	query := `UPDATE cases SET status = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), status, time.Now().UTC(), caseID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// SaveUser stores a new user. Emails are unique; a duplicate returns
// ErrConflict.
func (r *SQLRepository) SaveUser(ctx context.Context, u *domain.User) error {
	if u == nil || u.ID == "" || u.Email == "" {
		return fmt.Errorf("%w: user id and email are required", ErrInvalidInput)
	}

	query := `
		INSERT INTO users (id, email, full_name, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		u.ID, u.Email, u.FullName, u.PasswordHash, u.Role, u.CreatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("%w: email %s", ErrConflict, u.Email)
	}
	return err
}

const userColumns = `id, email, full_name, password_hash, role, created_at`

func scanUser(scan func(dest ...any) error) (*domain.User, error) {
	var u domain.User
	err := scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail retrieves a user by email.
func (r *SQLRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`

	u, err := scanUser(r.db.QueryRowContext(ctx, r.rebind(query), email).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetUser retrieves a user by ID.
func (r *SQLRepository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	u, err := scanUser(r.db.QueryRowContext(ctx, r.rebind(query), userID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// ListUsersByRole retrieves all users with a role, used for alert
// notification fan-out.
func (r *SQLRepository) ListUsersByRole(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = ? ORDER BY email`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// CountUsers returns the total user count, used for first-run admin
// seeding.
func (r *SQLRepository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// AppendAudit records an audit trail entry.
func (r *SQLRepository) AppendAudit(ctx context.Context, e *domain.AuditEntry) error {
	if e == nil || e.ID == "" {
		return fmt.Errorf("%w: audit id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO audit_log (id, action, entity, entity_id, detail, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		e.ID, e.Action, e.Entity, e.EntityID, e.Detail, e.Actor, e.CreatedAt,
	)
	return err
}

// ListAudit retrieves a paginated audit trail, newest first.
func (r *SQLRepository) ListAudit(ctx context.Context, page, pageSize int) ([]*domain.AuditEntry, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, pageSize = normalizePage(page, pageSize)
	query := `
		SELECT id, action, entity, entity_id, detail, actor, created_at
		FROM audit_log
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var detail, actor sql.NullString
		if err := rows.Scan(&e.ID, &e.Action, &e.Entity, &e.EntityID, &detail, &actor, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		e.Detail = detail.String
		e.Actor = actor.String
		entries = append(entries, &e)
	}

	return entries, total, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// prefixColumns qualifies a comma-separated column list with a table
// alias for joined queries.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// isUniqueViolation detects a unique constraint failure across the
// sqlite and postgres drivers without importing driver error types.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
