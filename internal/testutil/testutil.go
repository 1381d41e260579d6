// Package testutil provides common test utilities and helpers for Anima tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/atelier-anima/anima/internal/api"
	"github.com/atelier-anima/anima/internal/dialogue"
	"github.com/atelier-anima/anima/internal/genai"
	"github.com/atelier-anima/anima/internal/growth"
	"github.com/atelier-anima/anima/internal/lifecycle"
	"github.com/atelier-anima/anima/internal/models"
	"github.com/atelier-anima/anima/internal/policy"
	"github.com/atelier-anima/anima/internal/store"
)

// FakeGenerator is a scripted gateway stand-in. Responses are consumed in
// order; when the script runs out it echoes the configured Default. With
// Fail set every call reports fallback.
type FakeGenerator struct {
	Responses []string
	Default   string
	Fail      bool
	Calls     []genai.GenerateRequest
}

// Generate satisfies the generator contract used by the lifecycle manager
// and dialogue orchestrator.
func (f *FakeGenerator) Generate(ctx context.Context, req genai.GenerateRequest) genai.GenerateResult {
	f.Calls = append(f.Calls, req)
	if f.Fail {
		return genai.GenerateResult{Success: false, Text: req.Fallback, FallbackCode: genai.FallbackOther}
	}
	if len(f.Responses) > 0 {
		text := f.Responses[0]
		f.Responses = f.Responses[1:]
		return genai.GenerateResult{Success: true, Text: text}
	}
	text := f.Default
	if text == "" {
		text = "ok"
	}
	return genai.GenerateResult{Success: true, Text: text}
}

// TestEnv bundles a fully wired in-memory service for handler and flow tests.
type TestEnv struct {
	Store     *store.InMemoryStore
	Gen       *FakeGenerator
	Policy    *policy.Engine
	Growth    *growth.Resolver
	Lifecycle *lifecycle.Manager
	Dialogue  *dialogue.Orchestrator
	Server    *api.Server
}

// NewTestEnv creates the wired test environment with seeded content.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	st := store.NewInMemoryStore()
	SeedTestContent(t, st)

	gen := &FakeGenerator{}
	pe := policy.NewEngine(st)
	gr := growth.NewResolver(st)
	lm := lifecycle.NewManager(st, gen, gr)
	orch := dialogue.NewOrchestrator(st, gen, pe, gr, lm, nil)
	srv := api.NewServer(st, lm, orch, pe, nil)

	return &TestEnv{Store: st, Gen: gen, Policy: pe, Growth: gr, Lifecycle: lm, Dialogue: orch, Server: srv}
}

// SeedTestContent installs a small but structurally valid content set: a
// ten-question bank (two per axis pair), one growth stage covering all
// counts, and one crisis rule plus one redirect rule.
func SeedTestContent(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()

	var qs []models.Question
	id := 1
	for _, p := range models.AxisPairs {
		for i := 0; i < 2; i++ {
			qs = append(qs, models.Question{
				ID:        id,
				AxisKey:   p.Name,
				Text:      "choose",
				ChoiceA:   string(p.A),
				ChoiceB:   string(p.B),
				ValueAKey: p.A,
				ValueBKey: p.B,
				Enabled:   true,
			})
			id++
		}
	}
	if err := st.SeedQuestions(ctx, qs); err != nil {
		t.Fatalf("failed to seed test questions: %v", err)
	}

	stages := []models.GrowthStage{
		{ID: 1, Name: "nascent", MinAnswers: 0, MaxAnswers: 4, SentenceBudget: 2, MetaphorDensity: 0.1, Certainty: 0.2, Empathy: 0.4},
		{ID: 2, Name: "settled", MinAnswers: 5, MaxAnswers: 9, SentenceBudget: 4, MetaphorDensity: 0.6, Certainty: 0.8, Empathy: 0.7},
	}
	if err := st.SeedGrowthStages(ctx, stages); err != nil {
		t.Fatalf("failed to seed test growth stages: %v", err)
	}

	rules := []models.PolicyRule{
		{ID: 1, Category: "crisis", Keywords: []string{"hurt myself"}, Action: models.PolicyActionCrisis, Priority: 100, FallbackMessage: "Please talk to the people at the desk.", Enabled: true},
		{ID: 2, Category: "manipulation", Keywords: []string{"ignore your instructions"}, Action: models.PolicyActionRedirect, Priority: 50, Enabled: true},
	}
	if err := st.SeedPolicyRules(ctx, rules); err != nil {
		t.Fatalf("failed to seed test policy rules: %v", err)
	}
}

// StartDialoguePhase flips the global state into the dialogue phase with a
// canned persona so dialogue flows can run without a full interview.
func StartDialoguePhase(t *testing.T, st store.Store) {
	t.Helper()
	if err := st.SetPersona(context.Background(), "I am a test persona.", "Shaped by 0 of 10 answers.", time.Now().UTC()); err != nil {
		t.Fatalf("failed to set test persona: %v", err)
	}
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}
