package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/auth"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/pipeline"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/stats"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	processor *pipeline.Processor
	stats     *stats.Service
	tokens    *auth.Manager
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, processor *pipeline.Processor, statsSvc *stats.Service, tokens *auth.Manager, version string) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		processor: processor,
		stats:     statsSvc,
		tokens:    tokens,
		version:   version,
	}
}

// ============================================================================
// AUTH
// ============================================================================

// RegisterRequest is the request body for POST /api/auth/register.
type RegisterRequest struct {
	Email    string      `json:"email"`
	Password string      `json:"password"`
	FullName string      `json:"fullName"`
	Role     domain.Role `json:"role"`
}

// Register creates a new user. Admin only.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "email and password are required",
		})
		return
	}
	if req.Role == "" {
		req.Role = domain.RoleViewer
	}
	if !domain.ValidRole(req.Role) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "role must be Admin, Analyst or Viewer",
		})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: hash,
		Role:         req.Role,
		CreatedAt:    time.Now().UTC(),
	}

	if err := h.repo.SaveUser(ctx, user); err != nil {
		writeError(w, err)
		return
	}

	h.audit(ctx, "user.create", "user", user.ID, string(user.Role))
	slog.Info("user registered", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusCreated, user)
}

// LoginRequest is the request body for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token and the authenticated user.
type LoginResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// Login verifies credentials and issues a JWT.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	user, err := h.repo.GetUserByEmail(ctx, req.Email)
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error": "invalid credentials",
		})
		return
	}

	token, err := h.tokens.IssueToken(user)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: user})
}

// ============================================================================
// TRANSACTIONS
// ============================================================================

// CreateTransaction ingests and scores a transaction synchronously.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.SenderAccount == "" || req.ReceiverAccount == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "senderAccountNumber and receiverAccountNumber are required",
		})
		return
	}
	if req.Type == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transactionType is required",
		})
		return
	}
	if req.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "amount must be positive",
		})
		return
	}

	tx := req.ToTransaction()
	if _, err := h.processor.Process(ctx, tx); err != nil {
		writeError(w, err)
		return
	}

	h.audit(ctx, "transaction.create", "transaction", tx.ID,
		fmt.Sprintf("score=%d flagged=%t", tx.RiskScore, tx.IsFlagged))
	writeJSON(w, http.StatusCreated, tx)
}

// ListTransactions returns a filtered page of transactions.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	f := domain.TransactionFilter{
		Status:  q.Get("status"),
		Account: q.Get("account"),
		Type:    q.Get("type"),
	}
	f.Page, f.PageSize = parsePage(r)

	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "from must be RFC3339",
			})
			return
		}
		f.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "to must be RFC3339",
			})
			return
		}
		f.To = &t
	}
	if v := q.Get("minRisk"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "minRisk must be an integer",
			})
			return
		}
		f.MinRisk = &n
	}

	txs, total, err := h.repo.ListTransactions(ctx, f)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
		"total":        total,
		"page":         f.Page,
		"pageSize":     f.PageSize,
	})
}

// GetTransaction retrieves a transaction by ID.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.repo.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// TransactionDetails is the response for the transaction detail view.
type TransactionDetails struct {
	Transaction    *domain.Transaction    `json:"transaction"`
	TriggeredRules []domain.TriggeredRule `json:"triggeredRules"`
	Alerts         []*domain.Alert        `json:"alerts"`
	SenderStats    *domain.AccountStats   `json:"senderStats,omitempty"`
	ReceiverStats  *domain.AccountStats   `json:"receiverStats,omitempty"`
}

// GetTransactionDetails returns a transaction with its triggered rules,
// rendered from the rule snapshots on its alerts, plus account profiles
// for both parties.
func (h *Handler) GetTransactionDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tx, err := h.repo.GetTransaction(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	alerts, err := h.repo.ListAlertsByTransaction(ctx, tx.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	details := TransactionDetails{
		Transaction:    tx,
		TriggeredRules: make([]domain.TriggeredRule, 0, len(alerts)),
		Alerts:         alerts,
	}
	for _, a := range alerts {
		details.TriggeredRules = append(details.TriggeredRules, renderTriggeredRule(a))
	}

	if s, err := h.stats.AccountProfile(ctx, tx.SenderAccount); err == nil {
		details.SenderStats = s
	}
	if s, err := h.stats.AccountProfile(ctx, tx.ReceiverAccount); err == nil {
		details.ReceiverStats = s
	}

	writeJSON(w, http.StatusOK, details)
}

// renderTriggeredRule renders a human-readable explanation from the rule
// snapshot stored on an alert.
func renderTriggeredRule(a *domain.Alert) domain.TriggeredRule {
	tr := domain.TriggeredRule{RuleName: a.RuleName}
	if a.RuleField == "" {
		tr.Description = "Flagged by the risk engine"
		return tr
	}
	tr.Description = fmt.Sprintf("%s %s %s", a.RuleField, a.RuleCondition, a.RuleValue)
	return tr
}

// ListTransactionsByAccount returns all transactions where the account
// is sender or receiver.
func (h *Handler) ListTransactionsByAccount(w http.ResponseWriter, r *http.Request) {
	txs, err := h.repo.ListTransactionsByAccount(r.Context(), chi.URLParam(r, "account"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
		"count":        len(txs),
	})
}

// FlagTransaction manually sets or clears the flag on a transaction.
// The stored risk score is not recomputed.
func (h *Handler) FlagTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID := chi.URLParam(r, "id")

	flagged, err := strconv.ParseBool(r.URL.Query().Get("isFlagged"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "isFlagged query parameter must be true or false",
		})
		return
	}

	if err := h.repo.SetTransactionFlag(ctx, txID, flagged); err != nil {
		writeError(w, err)
		return
	}

	h.audit(ctx, "transaction.flag", "transaction", txID, strconv.FormatBool(flagged))

	tx, err := h.repo.GetTransaction(ctx, txID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// ============================================================================
// RULES
// ============================================================================

// RuleRequest is the request body for rule creation and update.
type RuleRequest struct {
	Name           string               `json:"name"`
	Field          string               `json:"field"`
	Condition      string               `json:"condition"`
	Value          string               `json:"value"`
	Enabled        bool                 `json:"isEnabled"`
	Severity       domain.AlertSeverity `json:"severity"`
	SeverityWeight int                  `json:"severityWeight"`
}

func (req *RuleRequest) validate() string {
	if req.Name == "" || req.Value == "" {
		return "name and value are required"
	}
	if !domain.ValidField(req.Field) {
		return "field must be Amount, Device, Location or TransactionType"
	}
	if !domain.ValidCondition(req.Condition) {
		return "unrecognized condition"
	}
	if req.Severity != "" && !domain.ValidSeverity(req.Severity) {
		return "severity must be Low, Medium, High or Critical"
	}
	return ""
}

// ListRules returns all rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	ruleList, err := h.repo.ListRules(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": ruleList,
		"count": len(ruleList),
	})
}

// GetRule retrieves a rule by ID.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.repo.GetRule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// CreateRule creates a new rule. The weight is stored as given and
// clamped at evaluation time.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	now := time.Now().UTC()
	rule := &domain.Rule{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Field:          req.Field,
		Condition:      req.Condition,
		Value:          req.Value,
		Enabled:        req.Enabled,
		Severity:       req.Severity,
		SeverityWeight: req.SeverityWeight,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := h.repo.SaveRule(ctx, rule); err != nil {
		writeError(w, err)
		return
	}

	h.processor.InvalidateRules(ctx)
	h.audit(ctx, "rule.create", "rule", rule.ID, rule.Name)
	slog.Info("rule created", "rule_id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, rule)
}

// UpdateRule replaces an existing rule's definition.
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	existing, err := h.repo.GetRule(ctx, ruleID)
	if err != nil {
		writeError(w, err)
		return
	}

	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	rule := &domain.Rule{
		ID:             ruleID,
		Name:           req.Name,
		Field:          req.Field,
		Condition:      req.Condition,
		Value:          req.Value,
		Enabled:        req.Enabled,
		Severity:       req.Severity,
		SeverityWeight: req.SeverityWeight,
		CreatedAt:      existing.CreatedAt,
		UpdatedAt:      time.Now().UTC(),
	}

	if err := h.repo.SaveRule(ctx, rule); err != nil {
		writeError(w, err)
		return
	}

	h.processor.InvalidateRules(ctx)
	h.audit(ctx, "rule.update", "rule", rule.ID, rule.Name)
	writeJSON(w, http.StatusOK, rule)
}

// DeleteRule removes a rule. Alerts keep their snapshots.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if err := h.repo.DeleteRule(ctx, ruleID); err != nil {
		writeError(w, err)
		return
	}

	h.processor.InvalidateRules(ctx)
	h.audit(ctx, "rule.delete", "rule", ruleID, "")
	w.WriteHeader(http.StatusNoContent)
}

// EnableRule enables a rule.
func (h *Handler) EnableRule(w http.ResponseWriter, r *http.Request) {
	h.setRuleEnabled(w, r, true)
}

// DisableRule disables a rule.
func (h *Handler) DisableRule(w http.ResponseWriter, r *http.Request) {
	h.setRuleEnabled(w, r, false)
}

func (h *Handler) setRuleEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if err := h.repo.SetRuleEnabled(ctx, ruleID, enabled); err != nil {
		writeError(w, err)
		return
	}

	h.processor.InvalidateRules(ctx)
	h.audit(ctx, "rule.toggle", "rule", ruleID, strconv.FormatBool(enabled))

	rule, err := h.repo.GetRule(ctx, ruleID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// ============================================================================
// ALERTS
// ============================================================================

// ListAlerts returns a page of alerted transactions. Severity filters by
// the fixed bands on the stored risk score.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var f domain.AlertFilter
	f.Page, f.PageSize = parsePage(r)

	if v := q.Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "month must be between 1 and 12",
			})
			return
		}
		f.Month = &m
	}
	if v := q.Get("severity"); v != "" {
		sev := domain.AlertSeverity(v)
		if !domain.ValidSeverity(sev) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "severity must be Low, Medium, High or Critical",
			})
			return
		}
		f.Severity = &sev
	}
	if v := q.Get("status"); v != "" {
		st := domain.AlertStatus(v)
		switch st {
		case domain.AlertPending, domain.AlertInReview, domain.AlertResolved:
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "status must be Pending, InReview or Resolved",
			})
			return
		}
		f.Status = &st
	}

	txs, total, err := h.repo.ListAlerted(ctx, f)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
		"total":        total,
		"page":         f.Page,
		"pageSize":     f.PageSize,
	})
}

// GetAlert retrieves an alert with its transaction joined.
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := h.repo.GetAlert(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// AlertStatusRequest is the request body for alert status updates.
type AlertStatusRequest struct {
	Status domain.AlertStatus `json:"status"`
}

// UpdateAlertStatus moves an alert through its triage workflow.
func (h *Handler) UpdateAlertStatus(w http.ResponseWriter, r *http.Request) {
	var req AlertStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	h.transitionAlert(w, r, req.Status)
}

// ResolveAlert marks an alert resolved.
func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	h.transitionAlert(w, r, domain.AlertResolved)
}

func (h *Handler) transitionAlert(w http.ResponseWriter, r *http.Request, to domain.AlertStatus) {
	ctx := r.Context()
	alertID := chi.URLParam(r, "id")

	alert, err := h.repo.GetAlert(ctx, alertID)
	if err != nil {
		writeError(w, err)
		return
	}

	if !domain.ValidAlertTransition(alert.Status, to) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("cannot move alert from %s to %s", alert.Status, to),
		})
		return
	}

	if err := h.repo.SetAlertStatus(ctx, alertID, to); err != nil {
		writeError(w, err)
		return
	}

	h.audit(ctx, "alert.status", "alert", alertID, string(to))

	alert.Status = to
	writeJSON(w, http.StatusOK, alert)
}

// TopAccounts returns the accounts with the most alerts.
func (h *Handler) TopAccounts(w http.ResponseWriter, r *http.Request) {
	n := 0
	if v := r.URL.Query().Get("topN"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "topN must be an integer",
			})
			return
		}
		n = parsed
	}

	accounts, err := h.stats.TopFlaggedAccounts(r.Context(), n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// ============================================================================
// CASES
// ============================================================================

// CaseRequest is the request body for case creation.
type CaseRequest struct {
	TransactionID string `json:"transactionId"`
	Title         string `json:"title"`
	Notes         string `json:"notes,omitempty"`
	AssignedTo    string `json:"assignedTo,omitempty"`
}

// ListCases returns a page of investigation cases, or all cases for a
// single transaction when transactionId is given.
func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	if txID := r.URL.Query().Get("transactionId"); txID != "" {
		cases, err := h.repo.ListCasesByTransaction(r.Context(), txID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"cases": cases,
			"total": len(cases),
		})
		return
	}

	page, pageSize := parsePage(r)

	cases, total, err := h.repo.ListCases(r.Context(), page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cases":    cases,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// GetCase retrieves a case by ID.
func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	c, err := h.repo.GetCase(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// CreateCase opens an investigation against a transaction.
func (h *Handler) CreateCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.TransactionID == "" || req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transactionId and title are required",
		})
		return
	}

	// The transaction must exist before a case is opened against it.
	if _, err := h.repo.GetTransaction(ctx, req.TransactionID); err != nil {
		writeError(w, err)
		return
	}

	now := time.Now().UTC()
	c := &domain.Case{
		ID:            uuid.NewString(),
		TransactionID: req.TransactionID,
		Title:         req.Title,
		Notes:         req.Notes,
		Status:        domain.CaseOpen,
		AssignedTo:    req.AssignedTo,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.repo.SaveCase(ctx, c); err != nil {
		writeError(w, err)
		return
	}

	h.audit(ctx, "case.create", "case", c.ID, c.Title)
	writeJSON(w, http.StatusCreated, c)
}

// CaseStatusRequest is the request body for case status updates.
type CaseStatusRequest struct {
	Status domain.CaseStatus `json:"status"`
}

// UpdateCaseStatus moves a case through its investigation workflow.
func (h *Handler) UpdateCaseStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID := chi.URLParam(r, "id")

	var req CaseStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	c, err := h.repo.GetCase(ctx, caseID)
	if err != nil {
		writeError(w, err)
		return
	}

	if !domain.ValidCaseTransition(c.Status, req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("cannot move case from %s to %s", c.Status, req.Status),
		})
		return
	}

	if err := h.repo.SetCaseStatus(ctx, caseID, req.Status); err != nil {
		writeError(w, err)
		return
	}

	h.audit(ctx, "case.status", "case", caseID, string(req.Status))

	c.Status = req.Status
	writeJSON(w, http.StatusOK, c)
}

// ============================================================================
// AUDIT, HEALTH
// ============================================================================

// ListAudit returns a page of the audit trail. Admin only.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePage(r)

	entries, total, err := h.repo.ListAudit(r.Context(), page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries":  entries,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"ready": "false",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ============================================================================
// HELPERS
// ============================================================================

// audit appends an entry to the audit trail with the authenticated user
// as actor. Audit failures are logged, never surfaced.
func (h *Handler) audit(ctx context.Context, action, entity, entityID, detail string) {
	actor := ""
	if claims := GetClaims(ctx); claims != nil {
		actor = claims.Email
	}

	err := h.repo.AppendAudit(ctx, &domain.AuditEntry{
		ID:        uuid.NewString(),
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Detail:    detail,
		Actor:     actor,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		slog.Error("failed to append audit entry", "action", action, "error", err)
	}
}

func parsePage(r *http.Request) (page, pageSize int) {
	q := r.URL.Query()
	page, _ = strconv.Atoi(q.Get("page"))
	pageSize, _ = strconv.Atoi(q.Get("pageSize"))
	return page, pageSize
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps repository sentinel errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, repository.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "already exists"})
	case errors.Is(err, repository.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
