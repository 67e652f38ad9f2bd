package domain

import (
	"time"
)

// AlertSeverity classifies how serious an alert is.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "Low"
	SeverityMedium   AlertSeverity = "Medium"
	SeverityHigh     AlertSeverity = "High"
	SeverityCritical AlertSeverity = "Critical"
)

// ValidSeverity reports whether s is a recognized severity.
func ValidSeverity(s AlertSeverity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// AlertStatus is the triage state of an alert.
type AlertStatus string

const (
	AlertPending  AlertStatus = "Pending"
	AlertInReview AlertStatus = "InReview"
	AlertResolved AlertStatus = "Resolved"
)

// ValidAlertTransition reports whether an alert may move from one status
// to another. Transitions are forward-only: Pending -> InReview ->
// Resolved, with Pending -> Resolved allowed as a shortcut.
func ValidAlertTransition(from, to AlertStatus) bool {
	switch from {
	case AlertPending:
		return to == AlertInReview || to == AlertResolved
	case AlertInReview:
		return to == AlertResolved
	}
	return false
}

// AutoFlagRuleName is the sentinel rule name carried by the fallback alert
// created when a transaction is flagged but no individual rule could be
// attributed.
const AutoFlagRuleName = "RuleEngine:AutoFlag"

// Alert is created when a transaction is flagged: one per attributed rule,
// or a single fallback alert when attribution comes up empty. The matched
// rule's defining fields are snapshotted on the alert so later rule edits
// or renames cannot orphan the explanation.
type Alert struct {
	ID            string        `json:"id"`
	TransactionID string        `json:"transactionId"`
	Severity      AlertSeverity `json:"severity"`
	Status        AlertStatus   `json:"status"`
	RuleName      string        `json:"ruleName"`

	// Snapshot of the matched rule at attribution time. Empty for
	// fallback alerts.
	RuleField     string `json:"ruleField,omitempty"`
	RuleCondition string `json:"ruleCondition,omitempty"`
	RuleValue     string `json:"ruleValue,omitempty"`

	CreatedAt time.Time `json:"createdAt"`

	// Joined on read paths that need it; never persisted from here.
	Transaction *Transaction `json:"transaction,omitempty"`
}

// AlertFilter narrows the paged alert listing. Severity filters by the
// fixed score bands on the stored riskScore (Critical >=90, High [70,90),
// Medium [40,70), Low (0,40)), independent of each alert's own stored
// severity.
type AlertFilter struct {
	Month    *int
	Severity *AlertSeverity
	Status   *AlertStatus

	Page     int
	PageSize int
}
