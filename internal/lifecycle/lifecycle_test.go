package lifecycle

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/atelier-anima/anima/internal/genai"
	"github.com/atelier-anima/anima/internal/growth"
	"github.com/atelier-anima/anima/internal/models"
	"github.com/atelier-anima/anima/internal/store"
)

// fakeGen echoes a fixed reply, or the fallback when failing is set.
type fakeGen struct {
	reply   string
	failing bool
	calls   int
	prompts []string
}

func (f *fakeGen) Generate(ctx context.Context, req genai.GenerateRequest) genai.GenerateResult {
	f.calls++
	f.prompts = append(f.prompts, req.Prompt)
	if f.failing {
		return genai.GenerateResult{Success: false, Text: req.Fallback, FallbackCode: genai.FallbackOther}
	}
	reply := f.reply
	if reply == "" {
		reply = "noted"
	}
	return genai.GenerateResult{Success: true, Text: reply}
}

func newTestManager(t *testing.T, gen Generator) (*Manager, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	seedTestBank(t, st, 10)
	seedTestStages(t, st)
	if gen == nil {
		gen = &fakeGen{}
	}
	return NewManager(st, gen, growth.NewResolver(st)), st
}

func seedTestBank(t *testing.T, st store.Store, n int) {
	t.Helper()
	var qs []models.Question
	for i := 1; i <= n; i++ {
		pair := models.AxisPairs[(i-1)%len(models.AxisPairs)]
		qs = append(qs, models.Question{
			ID: i, AxisKey: pair.Name, Text: "pick one", ChoiceA: string(pair.A), ChoiceB: string(pair.B),
			ValueAKey: pair.A, ValueBKey: pair.B, Enabled: true,
		})
	}
	if err := st.SeedQuestions(context.Background(), qs); err != nil {
		t.Fatalf("SeedQuestions: %v", err)
	}
}

func seedTestStages(t *testing.T, st store.Store) {
	t.Helper()
	stages := []models.GrowthStage{
		{ID: 1, Name: "nascent", MinAnswers: 0, MaxAnswers: 4, SentenceBudget: 2, Certainty: 0.2, Empathy: 0.4, MetaphorDensity: 0.1},
		{ID: 2, Name: "settled", MinAnswers: 5, MaxAnswers: 9, SentenceBudget: 4, Certainty: 0.9, Empathy: 0.8, MetaphorDensity: 0.6},
	}
	if err := st.SeedGrowthStages(context.Background(), stages); err != nil {
		t.Fatalf("SeedGrowthStages: %v", err)
	}
}

func TestStartSessionPinsCursor(t *testing.T) {
	m, st := newTestManager(t, nil)
	ctx := context.Background()

	if err := st.ApplySessionAggregate(ctx, nil, 4); err != nil {
		t.Fatalf("ApplySessionAggregate: %v", err)
	}

	sess, err := m.StartSession(ctx, "  Ada  ")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if sess.VisitorName != "Ada" {
		t.Errorf("visitor name should be trimmed, got %q", sess.VisitorName)
	}
	if sess.StartQuestionID != 4 {
		t.Errorf("start question should pin the global cursor, got %d", sess.StartQuestionID)
	}
	if sess.ID == "" {
		t.Error("session id must be assigned")
	}
}

func TestStartSessionNameValidation(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	if _, err := m.StartSession(ctx, strings.Repeat("x", models.MaxVisitorNameLength+1)); !errors.Is(err, models.ErrVisitorNameTooLong) {
		t.Errorf("overlong name should be rejected, got %v", err)
	}

	sess, err := m.StartSession(ctx, "   ")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if sess.VisitorName != "visitor" {
		t.Errorf("blank name should default to visitor, got %q", sess.VisitorName)
	}
}

func TestCurrentQuestionWalk(t *testing.T) {
	m, st := newTestManager(t, nil)
	ctx := context.Background()

	sess, _ := m.StartSession(ctx, "v")
	q, err := m.CurrentQuestion(ctx, sess.ID)
	if err != nil {
		t.Fatalf("CurrentQuestion: %v", err)
	}
	if q.ID != 1 {
		t.Errorf("first question should be 1, got %d", q.ID)
	}

	if _, err := m.SubmitAnswer(ctx, sess.ID, 1, models.ChoiceA); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	st.SetQuestionEnabled(2, false)
	q, err = m.CurrentQuestion(ctx, sess.ID)
	if err != nil {
		t.Fatalf("CurrentQuestion: %v", err)
	}
	if q.ID != 3 {
		t.Errorf("disabled question should be skipped, got %d", q.ID)
	}
}

func TestCurrentQuestionUnknownSession(t *testing.T) {
	m, _ := newTestManager(t, nil)
	if _, err := m.CurrentQuestion(context.Background(), "missing"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSubmitAnswerValidation(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()
	sess, _ := m.StartSession(ctx, "v")

	if _, err := m.SubmitAnswer(ctx, sess.ID, 1, models.Choice("X")); !errors.Is(err, models.ErrInvalidChoice) {
		t.Errorf("invalid choice should be rejected, got %v", err)
	}
	if _, err := m.SubmitAnswer(ctx, sess.ID, 99, models.ChoiceA); !errors.Is(err, models.ErrQuestionNotFound) {
		t.Errorf("unknown question should be rejected, got %v", err)
	}

	if _, err := m.SubmitAnswer(ctx, sess.ID, 1, models.ChoiceA); err != nil {
		t.Fatalf("valid submit: %v", err)
	}
	if _, err := m.SubmitAnswer(ctx, sess.ID, 1, models.ChoiceB); !errors.Is(err, models.ErrDuplicateAnswer) {
		t.Errorf("duplicate should be rejected, got %v", err)
	}
	if _, err := m.SubmitAnswer(ctx, sess.ID, 4, models.ChoiceA); !errors.Is(err, models.ErrOutOfSequence) {
		t.Errorf("out-of-sequence should be rejected, got %v", err)
	}
}

func TestSubmitAnswerQuotaAndCompletion(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()
	sess, _ := m.StartSession(ctx, "v")

	var last *SubmitResult
	for i := 1; i <= models.SessionQuestionQuota; i++ {
		res, err := m.SubmitAnswer(ctx, sess.ID, i, models.ChoiceA)
		if err != nil {
			t.Fatalf("SubmitAnswer %d: %v", i, err)
		}
		last = res
	}
	if !last.SessionComplete {
		t.Error("final quota answer should mark the session complete")
	}

	if _, err := m.SubmitAnswer(ctx, sess.ID, models.SessionQuestionQuota+1, models.ChoiceA); !errors.Is(err, models.ErrQuotaReached) {
		t.Errorf("post-quota submit should be rejected, got %v", err)
	}
	if _, err := m.CurrentQuestion(ctx, sess.ID); !errors.Is(err, models.ErrQuotaReached) {
		t.Errorf("post-quota question fetch should be rejected, got %v", err)
	}
}

func TestSubmitAnswerReactionFallback(t *testing.T) {
	gen := &fakeGen{failing: true}
	m, _ := newTestManager(t, gen)
	ctx := context.Background()
	sess, _ := m.StartSession(ctx, "v")

	res, err := m.SubmitAnswer(ctx, sess.ID, 1, models.ChoiceB)
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if !res.ReactionFallback {
		t.Error("failing generator should mark the reaction as fallback")
	}
	if res.Reaction == "" {
		t.Error("the reaction must never be empty")
	}
	// The answer stands regardless of reaction failure.
	if res.Answer.QuestionID != 1 {
		t.Errorf("answer not recorded: %+v", res.Answer)
	}
}

func TestEndSessionAggregates(t *testing.T) {
	m, st := newTestManager(t, nil)
	ctx := context.Background()
	sess, _ := m.StartSession(ctx, "v")

	for i := 1; i <= models.SessionQuestionQuota; i++ {
		if _, err := m.SubmitAnswer(ctx, sess.ID, i, models.ChoiceA); err != nil {
			t.Fatalf("SubmitAnswer %d: %v", i, err)
		}
	}

	res, err := m.EndSession(ctx, sess.ID, models.EndReasonCompleted)
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if !res.Aggregated {
		t.Fatal("completed session should aggregate")
	}
	if res.NewCursor != models.SessionQuestionQuota+1 {
		t.Errorf("cursor should advance past the batch, got %d", res.NewCursor)
	}

	profile, _ := st.GetValueProfile(ctx)
	if profile.Total() != models.SessionQuestionQuota {
		t.Errorf("profile total = %d, want %d", profile.Total(), models.SessionQuestionQuota)
	}

	// The next session picks up at the advanced cursor.
	next, _ := m.StartSession(ctx, "w")
	if next.StartQuestionID != res.NewCursor {
		t.Errorf("next session start = %d, want %d", next.StartQuestionID, res.NewCursor)
	}
}

func TestEndSessionIdempotent(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()
	sess, _ := m.StartSession(ctx, "v")

	first, err := m.EndSession(ctx, sess.ID, models.EndReasonVisitorLeft)
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if first.AlreadyEnded {
		t.Error("first end should not report already ended")
	}

	second, err := m.EndSession(ctx, sess.ID, models.EndReasonTimeout)
	if err != nil {
		t.Fatalf("second EndSession: %v", err)
	}
	if !second.AlreadyEnded {
		t.Error("second end should report already ended")
	}
	if second.Reason != models.EndReasonVisitorLeft {
		t.Errorf("second end should report the original reason, got %q", second.Reason)
	}
}

func TestEndSessionTimeoutDiscardsAnswers(t *testing.T) {
	m, st := newTestManager(t, nil)
	ctx := context.Background()
	sess, _ := m.StartSession(ctx, "v")

	if _, err := m.SubmitAnswer(ctx, sess.ID, 1, models.ChoiceA); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	res, err := m.EndSession(ctx, sess.ID, models.EndReasonTimeout)
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if res.Aggregated {
		t.Error("timeout end must not aggregate")
	}

	profile, _ := st.GetValueProfile(ctx)
	if profile.Total() != 0 {
		t.Errorf("profile should be untouched, total=%d", profile.Total())
	}
	global, _ := st.GetGlobalState(ctx)
	if global.NextQuestionID != 1 {
		t.Errorf("cursor should be untouched, got %d", global.NextQuestionID)
	}
}

func TestSynthesizePersonaThreshold(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	if _, err := m.SynthesizePersona(ctx, false, false); !errors.Is(err, models.ErrThresholdNotReached) {
		t.Errorf("early synthesis should be rejected, got %v", err)
	}
	if _, err := m.SynthesizePersona(ctx, false, true); err != nil {
		t.Errorf("allowBelowThreshold should bypass the check, got %v", err)
	}
}

func TestSynthesizePersonaIdempotent(t *testing.T) {
	gen := &fakeGen{reply: "I am the first persona."}
	m, st := newTestManager(t, gen)
	ctx := context.Background()

	first, err := m.SynthesizePersona(ctx, false, true)
	if err != nil {
		t.Fatalf("SynthesizePersona: %v", err)
	}
	if first.Reused || first.PersonaText != "I am the first persona." {
		t.Errorf("unexpected first synthesis: %+v", first)
	}

	global, _ := st.GetGlobalState(ctx)
	if global.Phase != models.PhaseDialogue {
		t.Errorf("synthesis should flip phase to dialogue, got %q", global.Phase)
	}

	gen.reply = "I am a different persona."
	second, err := m.SynthesizePersona(ctx, false, true)
	if err != nil {
		t.Fatalf("second SynthesizePersona: %v", err)
	}
	if !second.Reused || second.PersonaText != "I am the first persona." {
		t.Errorf("second call should reuse, got %+v", second)
	}

	forced, err := m.SynthesizePersona(ctx, true, true)
	if err != nil {
		t.Fatalf("forced SynthesizePersona: %v", err)
	}
	if forced.Reused || forced.PersonaText != "I am a different persona." {
		t.Errorf("force should regenerate, got %+v", forced)
	}
}

func TestSynthesizePersonaFallbackStillFlipsPhase(t *testing.T) {
	m, st := newTestManager(t, &fakeGen{failing: true})
	ctx := context.Background()

	res, err := m.SynthesizePersona(ctx, false, true)
	if err != nil {
		t.Fatalf("SynthesizePersona: %v", err)
	}
	if !res.UsedFallback {
		t.Error("failing generator should mark fallback")
	}
	if res.PersonaText == "" {
		t.Error("fallback persona must not be empty")
	}
	global, _ := st.GetGlobalState(ctx)
	if global.Phase != models.PhaseDialogue {
		t.Error("phase must flip even on fallback synthesis")
	}
}

func TestResetCycleEndsSessions(t *testing.T) {
	m, st := newTestManager(t, nil)
	ctx := context.Background()
	sess, _ := m.StartSession(ctx, "v")
	if _, err := m.SynthesizePersona(ctx, false, true); err != nil {
		t.Fatalf("SynthesizePersona: %v", err)
	}

	res, err := m.ResetCycle(ctx, models.EndReasonCycleReset)
	if err != nil {
		t.Fatalf("ResetCycle: %v", err)
	}
	if res.Cycle != 2 || res.EndedSessions != 1 {
		t.Errorf("unexpected reset result: %+v", res)
	}

	ended, _ := m.GetSession(ctx, sess.ID)
	if !ended.Ended() || ended.EndReason != models.EndReasonCycleReset {
		t.Errorf("active session should be ended by reset: %+v", ended)
	}
	global, _ := st.GetGlobalState(ctx)
	if global.Phase != models.PhaseInterview || global.PersonaText != "" {
		t.Errorf("global state should return to interview: %+v", global)
	}
}

// TestInterviewToDialogueScenario walks a full visitor flow: interview,
// aggregation, synthesis.
func TestInterviewToDialogueScenario(t *testing.T) {
	m, st := newTestManager(t, nil)
	ctx := context.Background()

	for visitor := 0; visitor < 2; visitor++ {
		sess, err := m.StartSession(ctx, "visitor")
		if err != nil {
			t.Fatalf("StartSession: %v", err)
		}
		for i := 0; i < models.SessionQuestionQuota; i++ {
			q, err := m.CurrentQuestion(ctx, sess.ID)
			if err != nil {
				t.Fatalf("CurrentQuestion: %v", err)
			}
			if _, err := m.SubmitAnswer(ctx, sess.ID, q.ID, models.ChoiceA); err != nil {
				t.Fatalf("SubmitAnswer: %v", err)
			}
		}
		if _, err := m.EndSession(ctx, sess.ID, models.EndReasonCompleted); err != nil {
			t.Fatalf("EndSession: %v", err)
		}
	}

	profile, _ := st.GetValueProfile(ctx)
	if profile.Total() != 10 {
		t.Fatalf("profile total = %d, want 10", profile.Total())
	}

	// Bank of 10 fully covered, threshold met without overrides.
	res, err := m.SynthesizePersona(ctx, false, false)
	if err != nil {
		t.Fatalf("SynthesizePersona at threshold: %v", err)
	}
	if res.PersonaText == "" || res.SummaryText == "" {
		t.Error("synthesis should produce persona and summary text")
	}
}
