package domain

import (
	"strings"
	"time"
)

// Rule fields a condition can target. Field lookup is case-insensitive;
// an unknown field resolves to the empty string.
const (
	FieldAmount          = "Amount"
	FieldDevice          = "Device"
	FieldLocation        = "Location"
	FieldTransactionType = "TransactionType"
)

// Rule conditions. Scoring only honors GreaterThan, Equals, In and NotIn;
// alert attribution additionally honors LessThan, NotEquals and Contains.
const (
	CondGreaterThan = "GreaterThan"
	CondLessThan    = "LessThan"
	CondEquals      = "Equals"
	CondNotEquals   = "NotEquals"
	CondContains    = "Contains"
	CondIn          = "In"
	CondNotIn       = "NotIn"
)

// Rule is a configurable fraud detection condition. SeverityWeight is
// stored as-is and clamped to [0,100] at evaluation time, so out-of-range
// stored values are harmless.
type Rule struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Field     string        `json:"field"`
	Condition string        `json:"condition"`
	Value     string        `json:"value"`
	Enabled   bool          `json:"isEnabled"`
	Severity  AlertSeverity `json:"severity"`

	// Weight in percentage points (0-100); contributes to the risk score
	// when the rule matches.
	SeverityWeight int `json:"severityWeight"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ValidField reports whether name is a recognized rule field.
func ValidField(name string) bool {
	switch strings.ToLower(name) {
	case "amount", "device", "location", "transactiontype":
		return true
	}
	return false
}

// ValidCondition reports whether name is a recognized comparator.
func ValidCondition(name string) bool {
	switch strings.ToLower(name) {
	case "greaterthan", "lessthan", "equals", "notequals", "contains", "in", "notin":
		return true
	}
	return false
}
