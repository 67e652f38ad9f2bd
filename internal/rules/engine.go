// Package rules implements the weighted risk scoring engine.
//
// The engine is a pure function of a transaction and a rule set: no
// state, no I/O, no errors. A rule that cannot be evaluated (bad
// numeric value, unknown field) silently does not match, so a
// misconfigured rule can never block transaction processing.
package rules

import (
	"math"
	"strconv"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// ClampWeight bounds a rule weight to [0, 100]. Stored weights outside
// the range are tolerated and clamped at evaluation time.
func ClampWeight(w int) int {
	if w < 0 {
		return 0
	}
	if w > 100 {
		return 100
	}
	return w
}

// ComputeRiskScore evaluates every enabled rule against tx and returns
// a risk score in [0, 100].
//
// Each matching rule contributes its clamped weight. When the raw sum
// exceeds 100 and the total possible weight of all enabled rules also
// exceeds 100, the raw sum is rescaled proportionally against the total
// possible weight; otherwise the raw sum is capped at 100.
func ComputeRiskScore(tx *domain.Transaction, rules []*domain.Rule) int {
	raw := 0
	maxPossible := 0

	for _, r := range rules {
		if r == nil || !r.Enabled {
			continue
		}
		w := ClampWeight(r.SeverityWeight)
		maxPossible += w
		if MatchesForScoring(tx, r) {
			raw += w
		}
	}

	// Rescale only when both the raw sum and the normalization
	// denominator exceed 100. The raw sum is otherwise returned as-is;
	// it cannot exceed the denominator, so the result stays in range.
	if raw > 100 && maxPossible > 100 {
		return int(math.Round(float64(raw) * 100 / float64(maxPossible)))
	}
	return raw
}

// MatchesForScoring reports whether a rule matches a transaction under
// the scoring comparator set: GreaterThan, Equals, In and NotIn. Other
// comparators never match here even though attribution honors them.
func MatchesForScoring(tx *domain.Transaction, r *domain.Rule) bool {
	fieldVal := fieldValue(tx, r.Field)

	switch strings.ToLower(r.Condition) {
	case "greaterthan":
		fv, err1 := strconv.ParseFloat(fieldVal, 64)
		rv, err2 := strconv.ParseFloat(r.Value, 64)
		return err1 == nil && err2 == nil && fv > rv
	case "equals":
		return strings.EqualFold(fieldVal, r.Value)
	case "in":
		return inList(fieldVal, r.Value)
	case "notin":
		return !inList(fieldVal, r.Value)
	}
	return false
}

// MatchesForAlert reports whether a rule matches a transaction under
// the attribution comparator set, which extends scoring with LessThan,
// NotEquals and Contains. A transaction can therefore be flagged by
// scoring yet gain extra explanatory alerts from the wider set.
func MatchesForAlert(tx *domain.Transaction, r *domain.Rule) bool {
	fieldVal := fieldValue(tx, r.Field)

	switch strings.ToLower(r.Condition) {
	case "greaterthan":
		fv, err1 := strconv.ParseFloat(fieldVal, 64)
		rv, err2 := strconv.ParseFloat(r.Value, 64)
		return err1 == nil && err2 == nil && fv > rv
	case "lessthan":
		fv, err1 := strconv.ParseFloat(fieldVal, 64)
		rv, err2 := strconv.ParseFloat(r.Value, 64)
		return err1 == nil && err2 == nil && fv < rv
	case "equals":
		return strings.EqualFold(fieldVal, r.Value)
	case "notequals":
		return !strings.EqualFold(fieldVal, r.Value)
	case "contains":
		return strings.Contains(strings.ToLower(fieldVal), strings.ToLower(r.Value))
	case "in":
		return inList(fieldVal, r.Value)
	case "notin":
		return !inList(fieldVal, r.Value)
	}
	return false
}

// Attribute returns the enabled rules that explain why tx was flagged,
// in the order given. Callers create one alert per returned rule; an
// empty result on a flagged transaction means the fallback alert.
func Attribute(tx *domain.Transaction, rules []*domain.Rule) []*domain.Rule {
	var matched []*domain.Rule
	for _, r := range rules {
		if r == nil || !r.Enabled {
			continue
		}
		if MatchesForAlert(tx, r) {
			matched = append(matched, r)
		}
	}
	return matched
}

// SeverityForScore maps a risk score to an alert severity band.
func SeverityForScore(score int) domain.AlertSeverity {
	switch {
	case score >= 90:
		return domain.SeverityCritical
	case score >= 70:
		return domain.SeverityHigh
	case score >= 40:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// fieldValue renders a transaction field as a string for comparison.
// Field names are case-insensitive; unknown fields resolve to "", which
// never matches the positive comparators.
func fieldValue(tx *domain.Transaction, field string) string {
	switch strings.ToLower(field) {
	case "amount":
		return strconv.FormatFloat(tx.Amount, 'f', -1, 64)
	case "device":
		return tx.Device
	case "location":
		return tx.Location
	case "transactiontype":
		return tx.Type
	}
	return ""
}

// inList reports whether v matches any comma-separated element of list,
// case-insensitively and ignoring surrounding whitespace.
func inList(v, list string) bool {
	for _, item := range strings.Split(list, ",") {
		if strings.EqualFold(strings.TrimSpace(item), v) {
			return true
		}
	}
	return false
}
