package rules

import (
	"sync"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func rule(field, cond, value string, weight int, enabled bool) *domain.Rule {
	return &domain.Rule{
		Name:           field + "-" + cond,
		Field:          field,
		Condition:      cond,
		Value:          value,
		SeverityWeight: weight,
		Enabled:        enabled,
		Severity:       domain.SeverityMedium,
	}
}

func tx(amount float64, location, device, txType string) *domain.Transaction {
	return &domain.Transaction{
		ID:       "tx-001",
		Amount:   amount,
		Location: location,
		Device:   device,
		Type:     txType,
	}
}

func TestComputeRiskScoreNoMatch(t *testing.T) {
	rules := []*domain.Rule{
		rule("Amount", "GreaterThan", "1000", 40, true),
		rule("Location", "Equals", "NG-LAGOS", 30, true),
	}

	score := ComputeRiskScore(tx(500, "NG-ABUJA", "", "Transfer"), rules)
	if score != 0 {
		t.Errorf("expected score 0, got %d", score)
	}
}

func TestComputeRiskScoreSingleMatch(t *testing.T) {
	rules := []*domain.Rule{
		rule("Amount", "GreaterThan", "1000", 40, true),
	}

	score := ComputeRiskScore(tx(5000, "", "", "Transfer"), rules)
	if score != 40 {
		t.Errorf("expected score 40, got %d", score)
	}
}

func TestComputeRiskScoreDisabledRulesInert(t *testing.T) {
	rules := []*domain.Rule{
		rule("Amount", "GreaterThan", "1000", 40, false),
		rule("Location", "Equals", "NG-LAGOS", 30, false),
	}

	score := ComputeRiskScore(tx(5000, "NG-LAGOS", "", "Transfer"), rules)
	if score != 0 {
		t.Errorf("expected score 0 with all rules disabled, got %d", score)
	}
}

func TestComputeRiskScoreWeightClamping(t *testing.T) {
	t.Run("negative weight contributes zero", func(t *testing.T) {
		rules := []*domain.Rule{
			rule("Amount", "GreaterThan", "1000", -50, true),
			rule("Location", "Equals", "NG-LAGOS", 30, true),
		}
		score := ComputeRiskScore(tx(5000, "NG-LAGOS", "", "Transfer"), rules)
		if score != 30 {
			t.Errorf("expected score 30, got %d", score)
		}
	})

	t.Run("oversized weight clamps to 100", func(t *testing.T) {
		// One rule with weight 150 clamps to 100. Raw score is 100,
		// which is not above 100, so no rescale happens.
		rules := []*domain.Rule{
			rule("Amount", "GreaterThan", "1000", 150, true),
		}
		score := ComputeRiskScore(tx(5000, "", "", "Transfer"), rules)
		if score != 100 {
			t.Errorf("expected score 100, got %d", score)
		}
	})

	t.Run("clamped rule alongside unmatched rule does not rescale", func(t *testing.T) {
		rules := []*domain.Rule{
			rule("Amount", "GreaterThan", "1000", 150, true),
			rule("Location", "Equals", "NG-LAGOS", 120, true),
		}
		score := ComputeRiskScore(tx(5000, "NG-ABUJA", "", "Transfer"), rules)
		if score != 100 {
			t.Errorf("expected score 100, got %d", score)
		}
	})
}

func TestComputeRiskScoreNormalization(t *testing.T) {
	// Two matching rules at weight 60: raw 120 and max possible 120 both
	// exceed 100, so the score rescales to round(120*100/120) = 100.
	rules := []*domain.Rule{
		rule("Amount", "GreaterThan", "1000", 60, true),
		rule("Location", "Equals", "NG-LAGOS", 60, true),
	}

	score := ComputeRiskScore(tx(5000, "NG-LAGOS", "", "Transfer"), rules)
	if score != 100 {
		t.Errorf("expected normalized score 100, got %d", score)
	}
}

func TestComputeRiskScorePartialNormalization(t *testing.T) {
	// Three enabled rules (max possible 150), two match for raw 110.
	// Rescaled: round(110*100/150) = 73.
	rules := []*domain.Rule{
		rule("Amount", "GreaterThan", "1000", 60, true),
		rule("Location", "Equals", "NG-LAGOS", 50, true),
		rule("Device", "Equals", "ios", 40, true),
	}

	score := ComputeRiskScore(tx(5000, "NG-LAGOS", "android", "Transfer"), rules)
	if score != 73 {
		t.Errorf("expected normalized score 73, got %d", score)
	}
}

func TestGreaterThanNonNumericNeverMatches(t *testing.T) {
	t.Run("non-numeric field value", func(t *testing.T) {
		rules := []*domain.Rule{
			rule("Location", "GreaterThan", "1000", 40, true),
		}
		if score := ComputeRiskScore(tx(0, "NG-LAGOS", "", "Transfer"), rules); score != 0 {
			t.Errorf("expected score 0, got %d", score)
		}
	})

	t.Run("non-numeric rule value", func(t *testing.T) {
		rules := []*domain.Rule{
			rule("Amount", "GreaterThan", "a lot", 40, true),
		}
		if score := ComputeRiskScore(tx(5000, "", "", "Transfer"), rules); score != 0 {
			t.Errorf("expected score 0, got %d", score)
		}
	})
}

func TestInListTrimsAndIgnoresCase(t *testing.T) {
	r := rule("Location", "In", "NG-LAGOS, NG-ABUJA", 30, true)

	if !MatchesForScoring(tx(0, "ng-lagos", "", "Transfer"), r) {
		t.Error("expected ng-lagos to match NG-LAGOS, NG-ABUJA")
	}
	if !MatchesForScoring(tx(0, "NG-ABUJA", "", "Transfer"), r) {
		t.Error("expected NG-ABUJA to match")
	}
	if MatchesForScoring(tx(0, "NG-KANO", "", "Transfer"), r) {
		t.Error("did not expect NG-KANO to match")
	}
}

func TestNotInNegatesIn(t *testing.T) {
	r := rule("Location", "NotIn", "NG-LAGOS,NG-ABUJA", 30, true)

	if MatchesForScoring(tx(0, "ng-lagos", "", "Transfer"), r) {
		t.Error("did not expect listed location to match NotIn")
	}
	if !MatchesForScoring(tx(0, "NG-KANO", "", "Transfer"), r) {
		t.Error("expected unlisted location to match NotIn")
	}
}

func TestUnknownFieldResolvesEmpty(t *testing.T) {
	r := rule("Currency", "Equals", "USD", 40, true)
	if MatchesForScoring(tx(0, "", "", "Transfer"), r) {
		t.Error("unknown field should not match Equals")
	}
}

func TestScoringIgnoresAttributionOnlyComparators(t *testing.T) {
	rules := []*domain.Rule{
		rule("Amount", "LessThan", "1000", 40, true),
		rule("Location", "Contains", "LAGOS", 30, true),
		rule("Device", "NotEquals", "ios", 20, true),
	}

	// All three match under attribution semantics but none counts
	// toward the score.
	score := ComputeRiskScore(tx(500, "NG-LAGOS", "android", "Transfer"), rules)
	if score != 0 {
		t.Errorf("expected score 0, got %d", score)
	}

	matched := Attribute(tx(500, "NG-LAGOS", "android", "Transfer"), rules)
	if len(matched) != 3 {
		t.Errorf("expected 3 attributed rules, got %d", len(matched))
	}
}

func TestMatchesForAlert(t *testing.T) {
	cases := []struct {
		name  string
		rule  *domain.Rule
		tx    *domain.Transaction
		match bool
	}{
		{"lessthan matches", rule("Amount", "LessThan", "1000", 10, true), tx(500, "", "", "Transfer"), true},
		{"lessthan no match", rule("Amount", "LessThan", "1000", 10, true), tx(2000, "", "", "Transfer"), false},
		{"lessthan non-numeric", rule("Device", "LessThan", "1000", 10, true), tx(0, "", "ios", "Transfer"), false},
		{"notequals matches", rule("Device", "NotEquals", "ios", 10, true), tx(0, "", "android", "Transfer"), true},
		{"notequals case-insensitive", rule("Device", "NotEquals", "IOS", 10, true), tx(0, "", "ios", "Transfer"), false},
		{"contains matches", rule("Location", "Contains", "lagos", 10, true), tx(0, "NG-LAGOS", "", "Transfer"), true},
		{"contains no match", rule("Location", "Contains", "abuja", 10, true), tx(0, "NG-LAGOS", "", "Transfer"), false},
		{"greaterthan shared", rule("Amount", "GreaterThan", "100", 10, true), tx(500, "", "", "Transfer"), true},
		{"unknown condition", rule("Amount", "Matches", "100", 10, true), tx(500, "", "", "Transfer"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MatchesForAlert(tc.tx, tc.rule); got != tc.match {
				t.Errorf("expected match=%v, got %v", tc.match, got)
			}
		})
	}
}

func TestAttributeSkipsDisabled(t *testing.T) {
	rules := []*domain.Rule{
		rule("Amount", "GreaterThan", "100", 40, false),
		rule("Amount", "GreaterThan", "200", 40, true),
	}

	matched := Attribute(tx(500, "", "", "Transfer"), rules)
	if len(matched) != 1 {
		t.Fatalf("expected 1 attributed rule, got %d", len(matched))
	}
	if matched[0].Value != "200" {
		t.Errorf("expected the enabled rule, got value %q", matched[0].Value)
	}
}

func TestSeverityForScore(t *testing.T) {
	cases := []struct {
		score int
		want  domain.AlertSeverity
	}{
		{100, domain.SeverityCritical},
		{90, domain.SeverityCritical},
		{89, domain.SeverityHigh},
		{70, domain.SeverityHigh},
		{69, domain.SeverityMedium},
		{40, domain.SeverityMedium},
		{39, domain.SeverityLow},
		{1, domain.SeverityLow},
		{0, domain.SeverityLow},
	}

	for _, tc := range cases {
		if got := SeverityForScore(tc.score); got != tc.want {
			t.Errorf("SeverityForScore(%d) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestEndToEndScenario(t *testing.T) {
	rules := []*domain.Rule{
		rule("Amount", "GreaterThan", "500000", 40, true),
		rule("Location", "In", "NG-LAGOS,NG-ABUJA", 30, true),
	}

	transaction := tx(600000, "NG-LAGOS", "", "Transfer")

	score := ComputeRiskScore(transaction, rules)
	if score != 70 {
		t.Fatalf("expected score 70, got %d", score)
	}
	if sev := SeverityForScore(score); sev != domain.SeverityHigh {
		t.Errorf("expected High banding, got %s", sev)
	}

	matched := Attribute(transaction, rules)
	if len(matched) != 2 {
		t.Errorf("expected both rules attributed, got %d", len(matched))
	}
}

func TestAmountRendering(t *testing.T) {
	// Amount is compared as its decimal string form, so Equals works on
	// whole and fractional amounts alike.
	if !MatchesForScoring(tx(250000, "", "", "Transfer"), rule("Amount", "Equals", "250000", 10, true)) {
		t.Error("expected whole amount to render without decimal point")
	}
	if !MatchesForScoring(tx(99.5, "", "", "Transfer"), rule("Amount", "Equals", "99.5", 10, true)) {
		t.Error("expected fractional amount to render exactly")
	}
}

func TestConcurrentScoringIsIndependent(t *testing.T) {
	rules := []*domain.Rule{
		rule("Amount", "GreaterThan", "1000", 40, true),
		rule("Location", "In", "NG-LAGOS,NG-ABUJA", 30, true),
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if score := ComputeRiskScore(tx(5000, "NG-LAGOS", "", "Transfer"), rules); score != 70 {
				t.Errorf("expected score 70, got %d", score)
			}
			if score := ComputeRiskScore(tx(100, "NG-KANO", "", "Transfer"), rules); score != 0 {
				t.Errorf("expected score 0, got %d", score)
			}
		}()
	}
	wg.Wait()
}

func TestClampWeight(t *testing.T) {
	cases := []struct{ in, want int }{
		{-10, 0},
		{0, 0},
		{55, 55},
		{100, 100},
		{150, 100},
	}
	for _, tc := range cases {
		if got := ClampWeight(tc.in); got != tc.want {
			t.Errorf("ClampWeight(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
