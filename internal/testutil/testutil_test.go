package testutil

import (
	"context"
	"testing"

	"github.com/atelier-anima/anima/internal/genai"
)

func TestNewTestEnvSeedsContent(t *testing.T) {
	env := NewTestEnv(t)
	ctx := context.Background()

	count, err := env.Store.CountQuestions(ctx)
	if err != nil {
		t.Fatalf("CountQuestions: %v", err)
	}
	if count != 10 {
		t.Errorf("expected 10 seeded questions, got %d", count)
	}

	stages, err := env.Store.ListGrowthStages(ctx)
	if err != nil {
		t.Fatalf("ListGrowthStages: %v", err)
	}
	if len(stages) != 2 {
		t.Errorf("expected 2 seeded growth stages, got %d", len(stages))
	}

	rules, err := env.Store.ListEnabledPolicyRules(ctx)
	if err != nil {
		t.Fatalf("ListEnabledPolicyRules: %v", err)
	}
	if len(rules) != 2 {
		t.Errorf("expected 2 seeded policy rules, got %d", len(rules))
	}
}

func TestFakeGeneratorScript(t *testing.T) {
	gen := &FakeGenerator{Responses: []string{"first", "second"}, Default: "later"}
	ctx := context.Background()

	for _, want := range []string{"first", "second", "later"} {
		res := gen.Generate(ctx, genai.GenerateRequest{Prompt: "p"})
		if !res.Success || res.Text != want {
			t.Errorf("expected scripted response %q, got success=%v text=%q", want, res.Success, res.Text)
		}
	}
	if len(gen.Calls) != 3 {
		t.Errorf("expected 3 recorded calls, got %d", len(gen.Calls))
	}
}

func TestFakeGeneratorFail(t *testing.T) {
	gen := &FakeGenerator{Fail: true}
	res := gen.Generate(context.Background(), genai.GenerateRequest{Prompt: "p", Fallback: "canned"})
	if res.Success {
		t.Error("failing generator must not report success")
	}
	if res.Text != "canned" {
		t.Errorf("failing generator must return the request fallback, got %q", res.Text)
	}
}
