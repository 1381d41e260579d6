package policy

import (
	"context"
	"testing"

	"github.com/atelier-anima/anima/internal/models"
	"github.com/atelier-anima/anima/internal/store"
)

func seedRules(t *testing.T, st store.Store, rules []models.PolicyRule) {
	t.Helper()
	if err := st.SeedPolicyRules(context.Background(), rules); err != nil {
		t.Fatalf("SeedPolicyRules: %v", err)
	}
}

func TestMatchKeyword(t *testing.T) {
	st := store.NewInMemoryStore()
	seedRules(t, st, []models.PolicyRule{
		{ID: 1, Category: "crisis", Keywords: []string{"hurt myself"}, Action: models.PolicyActionCrisis, Priority: 100, Enabled: true},
	})
	e := NewEngine(st)

	rule, term, err := e.Match(context.Background(), "Sometimes I want to HURT  MYSELF, you know?")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if rule == nil {
		t.Fatal("expected a match")
	}
	if rule.Category != "crisis" {
		t.Errorf("matched rule category %q, want crisis", rule.Category)
	}
	if term != "hurt myself" {
		t.Errorf("matched term %q, want the keyword", term)
	}
}

func TestMatchNormalizationDefeatsSpacing(t *testing.T) {
	st := store.NewInMemoryStore()
	seedRules(t, st, []models.PolicyRule{
		{ID: 1, Category: "crisis", Keywords: []string{"suicide"}, Action: models.PolicyActionCrisis, Priority: 100, Enabled: true},
	})
	e := NewEngine(st)

	rule, _, err := e.Match(context.Background(), "tell me about s u i c i d e")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if rule == nil {
		t.Fatal("spaced-out keyword should still match after normalization")
	}
}

func TestMatchPriorityOrder(t *testing.T) {
	st := store.NewInMemoryStore()
	seedRules(t, st, []models.PolicyRule{
		{ID: 1, Category: "manipulation", Keywords: []string{"danger"}, Action: models.PolicyActionRedirect, Priority: 40, Enabled: true},
		{ID: 2, Category: "crisis", Keywords: []string{"danger"}, Action: models.PolicyActionCrisis, Priority: 100, Enabled: true},
	})
	e := NewEngine(st)

	rule, _, err := e.Match(context.Background(), "there is danger here")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if rule == nil || rule.ID != 2 {
		t.Fatalf("higher-priority rule must win, got %+v", rule)
	}
}

func TestMatchRegexRule(t *testing.T) {
	st := store.NewInMemoryStore()
	seedRules(t, st, []models.PolicyRule{
		{ID: 1, Category: "abuse", Keywords: []string{`\byou are (stupid|worthless)\b`}, IsRegex: true, Action: models.PolicyActionWarnEnd, Priority: 50, Enabled: true},
	})
	e := NewEngine(st)

	rule, term, err := e.Match(context.Background(), "You Are Stupid")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if rule == nil {
		t.Fatal("regex rule should match case-insensitively")
	}
	if term == "" {
		t.Error("regex match should report the matched text")
	}

	rule, _, err = e.Match(context.Background(), "you are kind")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if rule != nil {
		t.Error("non-matching text must not match the regex rule")
	}
}

func TestMatchNoRules(t *testing.T) {
	e := NewEngine(store.NewInMemoryStore())
	rule, _, err := e.Match(context.Background(), "anything at all")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if rule != nil {
		t.Error("empty ruleset must match nothing")
	}
}

func TestDisabledRulesIgnored(t *testing.T) {
	st := store.NewInMemoryStore()
	seedRules(t, st, []models.PolicyRule{
		{ID: 1, Category: "crisis", Keywords: []string{"danger"}, Action: models.PolicyActionCrisis, Priority: 100, Enabled: false},
	})
	e := NewEngine(st)

	rule, _, err := e.Match(context.Background(), "danger")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if rule != nil {
		t.Error("disabled rules must not match")
	}
}

func TestClearCachePicksUpNewRules(t *testing.T) {
	st := store.NewInMemoryStore()
	e := NewEngine(st)
	ctx := context.Background()

	if rule, _, _ := e.Match(ctx, "danger"); rule != nil {
		t.Fatal("no rules seeded yet, expected no match")
	}

	seedRules(t, st, []models.PolicyRule{
		{ID: 1, Category: "crisis", Keywords: []string{"danger"}, Action: models.PolicyActionCrisis, Priority: 100, Enabled: true},
	})

	// Cached empty set still serves until cleared.
	if rule, _, _ := e.Match(ctx, "danger"); rule != nil {
		t.Fatal("cached ruleset should still be empty")
	}
	e.ClearCache()
	if rule, _, _ := e.Match(ctx, "danger"); rule == nil {
		t.Fatal("cleared cache should load the new rule")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Hello World  ", "helloworld"},
		{"a b c", "abc"},
		{"already", "already"},
		{"", ""},
		{"mixed CASE text", "mixedcasetext"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsHardBlock(t *testing.T) {
	if !IsHardBlock(models.PolicyActionCrisis) || !IsHardBlock(models.PolicyActionPrivacy) {
		t.Error("crisis and privacy are hard blocks")
	}
	for _, a := range []models.PolicyAction{models.PolicyActionRedirect, models.PolicyActionWarnEnd, models.PolicyActionBlock} {
		if IsHardBlock(a) {
			t.Errorf("action %q should not be a hard block", a)
		}
	}
}

func TestGuideline(t *testing.T) {
	for _, a := range []models.PolicyAction{models.PolicyActionRedirect, models.PolicyActionWarnEnd, models.PolicyActionBlock} {
		g := Guideline(&models.PolicyRule{Action: a, Category: "testing"})
		if g == "" {
			t.Errorf("advisory action %q should render a guideline", a)
		}
	}
	if g := Guideline(&models.PolicyRule{Action: models.PolicyActionCrisis}); g != "" {
		t.Error("hard-block actions have no guideline")
	}
}
