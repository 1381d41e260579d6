// Package lifecycle owns the session and phase state machines of the
// exhibit: question sequencing during the interview, end-of-session
// aggregation into the global value profile, the one-time persona
// synthesis, and the administrative cycle reset.
//
// Per-session flow is Created -> Active -> Ended (terminal). The global
// phase moves Interview -> Dialogue once per cycle; only a cycle reset
// returns it to Interview, atomically with a new cycle id and a cleared
// profile.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atelier-anima/anima/internal/genai"
	"github.com/atelier-anima/anima/internal/growth"
	"github.com/atelier-anima/anima/internal/models"
	"github.com/atelier-anima/anima/internal/store"
	"github.com/atelier-anima/anima/internal/values"
)

// Generator is the gateway contract the manager depends on. Satisfied by
// genai.Client; tests inject fakes.
type Generator interface {
	Generate(ctx context.Context, req genai.GenerateRequest) genai.GenerateResult
}

// Opts holds manager configuration.
type Opts struct {
	// QuestionQuota is the per-session question limit.
	QuestionQuota int
	// Model names the generative model for reactions and synthesis.
	Model string
	// ReactionMaxTokens bounds answer-reaction generation.
	ReactionMaxTokens int
	// PersonaMaxTokens bounds persona synthesis.
	PersonaMaxTokens int
}

// Option configures manager creation.
type Option func(*Opts)

// WithQuestionQuota overrides the per-session question limit.
func WithQuestionQuota(n int) Option {
	return func(o *Opts) { o.QuestionQuota = n }
}

// WithModel sets the generative model identifier.
func WithModel(m string) Option {
	return func(o *Opts) { o.Model = m }
}

// Manager implements the session lifecycle operations.
type Manager struct {
	store  store.Store
	gen    Generator
	growth *growth.Resolver
	opts   Opts
}

// NewManager creates a lifecycle manager.
func NewManager(st store.Store, gen Generator, gr *growth.Resolver, opts ...Option) *Manager {
	cfg := Opts{
		QuestionQuota:     models.SessionQuestionQuota,
		Model:             genai.DefaultModel,
		ReactionMaxTokens: 120,
		PersonaMaxTokens:  900,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Manager{store: st, gen: gen, growth: gr, opts: cfg}
}

// StartSession creates a new visitor session pinned to the current global
// question cursor.
func (m *Manager) StartSession(ctx context.Context, visitorName string) (*models.VisitorSession, error) {
	visitorName = strings.TrimSpace(visitorName)
	if len(visitorName) > models.MaxVisitorNameLength {
		return nil, models.ErrVisitorNameTooLong
	}
	if visitorName == "" {
		visitorName = "visitor"
	}

	global, err := m.store.GetGlobalState(ctx)
	if err != nil {
		return nil, err
	}

	sess := &models.VisitorSession{
		ID:              uuid.NewString(),
		VisitorName:     visitorName,
		StartedAt:       time.Now().UTC(),
		StartQuestionID: global.NextQuestionID,
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	slog.Info("session started", "session", sess.ID, "visitor", visitorName, "start_question", sess.StartQuestionID, "phase", global.Phase)
	return sess, nil
}

// GetSession resolves a session id, mapping absence onto the sentinel error.
func (m *Manager) GetSession(ctx context.Context, id string) (*models.VisitorSession, error) {
	sess, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, models.ErrSessionNotFound
	}
	return sess, nil
}

// CurrentQuestion returns the next question for the session. Valid only
// during the interview phase and while the session quota is unspent.
func (m *Manager) CurrentQuestion(ctx context.Context, sessionID string) (*models.Question, error) {
	sess, err := m.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Ended() {
		return nil, models.ErrSessionEnded
	}

	global, err := m.store.GetGlobalState(ctx)
	if err != nil {
		return nil, err
	}
	if global.Phase != models.PhaseInterview {
		return nil, models.ErrWrongPhase
	}

	answered, err := m.store.CountAnswers(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if answered >= m.opts.QuestionQuota {
		return nil, models.ErrQuotaReached
	}

	from, err := m.nextPosition(ctx, sess, answered)
	if err != nil {
		return nil, err
	}
	q, err := m.store.NextEnabledQuestion(ctx, from)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, models.ErrQuestionNotFound
	}
	return q, nil
}

// nextPosition computes the session's next expected question position:
// the start cursor when nothing is answered, otherwise one past the highest
// answered question.
func (m *Manager) nextPosition(ctx context.Context, sess *models.VisitorSession, answered int) (int, error) {
	if answered == 0 {
		return sess.StartQuestionID, nil
	}
	answers, err := m.store.ListAnswers(ctx, sess.ID)
	if err != nil {
		return 0, err
	}
	return answers[len(answers)-1].QuestionID + 1, nil
}

// SubmitResult reports the outcome of an answer submission.
type SubmitResult struct {
	Answer           models.Answer `json:"answer"`
	Reaction         string        `json:"reaction"`
	ReactionFallback bool          `json:"reaction_fallback"`
	SessionComplete  bool          `json:"session_complete"`
}

// SubmitAnswer validates and persists one forced-choice answer, then asks
// the generative gateway for a short in-character reaction styled by the
// installation's growth stage. The answer stands even when the reaction
// cannot be generated.
func (m *Manager) SubmitAnswer(ctx context.Context, sessionID string, questionID int, choice models.Choice) (*SubmitResult, error) {
	if !models.IsValidChoice(choice) {
		return nil, models.ErrInvalidChoice
	}

	global, err := m.store.GetGlobalState(ctx)
	if err != nil {
		return nil, err
	}
	if global.Phase != models.PhaseInterview {
		return nil, models.ErrWrongPhase
	}

	answered, err := m.store.CountAnswers(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if answered >= m.opts.QuestionQuota {
		return nil, models.ErrQuotaReached
	}

	q, err := m.store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, models.ErrQuestionNotFound
	}

	chosenKey := q.ValueKeyFor(choice)
	if chosenKey == "" || !models.IsValidAxisKey(chosenKey) {
		slog.Error("question carries a value key outside the axis allow-list", "question", q.ID, "key", chosenKey)
		return nil, models.ErrInvalidValueKey
	}

	ans := models.Answer{
		SessionID:      sessionID,
		QuestionID:     questionID,
		Choice:         choice,
		ChosenValueKey: chosenKey,
		CycleID:        global.CycleNumber,
		CreatedAt:      time.Now().UTC(),
	}
	// Duplicate and ordering checks run transactionally with this insert.
	if err := m.store.AddAnswer(ctx, ans); err != nil {
		return nil, err
	}

	answered++
	complete := answered >= m.opts.QuestionQuota
	if !complete {
		next, err := m.store.NextEnabledQuestion(ctx, questionID+1)
		if err == nil && next == nil {
			complete = true
		}
	}

	result := &SubmitResult{Answer: ans, SessionComplete: complete}
	result.Reaction, result.ReactionFallback = m.generateReaction(ctx, q, choice)
	return result, nil
}

// generateReaction asks for a short styled acknowledgement of the choice.
// Styling uses the global cumulative answer count: growth belongs to the
// installation, not to any one visitor.
func (m *Manager) generateReaction(ctx context.Context, q *models.Question, choice models.Choice) (string, bool) {
	const fallback = "I see. I will keep that close."

	profile, err := m.store.GetValueProfile(ctx)
	if err != nil {
		slog.Warn("reaction styling unavailable, using fallback", "error", err)
		return fallback, true
	}
	stage, err := m.growth.Resolve(ctx, profile.Total())
	if err != nil {
		slog.Warn("growth stage unavailable, using fallback reaction", "error", err)
		return fallback, true
	}

	picked := q.ChoiceA
	if choice == models.ChoiceB {
		picked = q.ChoiceB
	}
	prompt := fmt.Sprintf(`You are a nascent entity growing inside an exhibit, learning values from visitors.
%s

A visitor was asked: %q
They chose: %q

Reply with one or two short sentences reacting to their choice, in your current voice. No preamble.`,
		growth.BuildStyleGuide(stage), q.Text, picked)

	res := m.gen.Generate(ctx, genai.GenerateRequest{
		Prompt:    prompt,
		Model:     m.opts.Model,
		MaxTokens: m.opts.ReactionMaxTokens,
		Fallback:  fallback,
	})
	return res.Text, !res.Success
}

// EndResult reports the outcome of ending a session.
type EndResult struct {
	AlreadyEnded bool             `json:"already_ended"`
	Reason       models.EndReason `json:"reason"`
	EndedAt      time.Time        `json:"ended_at"`
	Aggregated   bool             `json:"aggregated"`
	NewCursor    int              `json:"new_cursor,omitempty"`
}

// EndSession closes a session idempotently. Completed sessions fold their
// answer batch into the global value profile and advance the question
// cursor; timed-out sessions are discarded so abandoned visits never
// consume question slots.
func (m *Manager) EndSession(ctx context.Context, sessionID string, reason models.EndReason) (*EndResult, error) {
	if !models.IsValidEndReason(reason) {
		return nil, fmt.Errorf("invalid end reason %q", reason)
	}

	sess, err := m.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Ended() {
		return &EndResult{AlreadyEnded: true, Reason: sess.EndReason, EndedAt: *sess.EndedAt}, nil
	}

	endedAt := time.Now().UTC()
	claimed, err := m.store.MarkSessionEnded(ctx, sessionID, reason, endedAt)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Lost the race to a concurrent end; report the prior result.
		sess, err := m.GetSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return &EndResult{AlreadyEnded: true, Reason: sess.EndReason, EndedAt: *sess.EndedAt}, nil
	}

	result := &EndResult{Reason: reason, EndedAt: endedAt}
	if reason == models.EndReasonTimeout || reason == models.EndReasonCycleReset {
		slog.Info("session ended without aggregation", "session", sessionID, "reason", reason)
		return result, nil
	}

	if err := m.aggregateSession(ctx, sess, result); err != nil {
		// The session is already closed; aggregation failure is operator
		// territory, not grounds to un-end the session.
		slog.Error("session aggregation failed", "session", sessionID, "error", err)
		return nil, err
	}
	return result, nil
}

// aggregateSession folds the session's answers into the global profile and
// advances the cursor past them, skipping disabled questions and
// saturating when the bank is exhausted.
func (m *Manager) aggregateSession(ctx context.Context, sess *models.VisitorSession, result *EndResult) error {
	answers, err := m.store.ListAnswers(ctx, sess.ID)
	if err != nil {
		return err
	}
	if len(answers) == 0 {
		return nil
	}

	counts := make(map[models.AxisKey]int)
	for _, a := range answers {
		if !models.IsValidAxisKey(a.ChosenValueKey) {
			slog.Warn("skipping answer with unknown axis key during aggregation", "session", sess.ID, "question", a.QuestionID, "key", a.ChosenValueKey)
			continue
		}
		counts[a.ChosenValueKey]++
	}

	next := answers[len(answers)-1].QuestionID + 1
	newCursor, err := m.resolveCursor(ctx, next)
	if err != nil {
		return err
	}

	if err := m.store.ApplySessionAggregate(ctx, counts, newCursor); err != nil {
		return err
	}
	result.Aggregated = true
	result.NewCursor = newCursor
	slog.Info("session aggregated", "session", sess.ID, "answers", len(answers), "new_cursor", newCursor)
	return nil
}

// resolveCursor skips the cursor forward over disabled questions. When no
// enabled question remains the cursor saturates one past the bank.
func (m *Manager) resolveCursor(ctx context.Context, candidate int) (int, error) {
	q, err := m.store.NextEnabledQuestion(ctx, candidate)
	if err != nil {
		return 0, err
	}
	if q != nil {
		return q.ID, nil
	}
	maxID, err := m.store.MaxQuestionID(ctx)
	if err != nil {
		return 0, err
	}
	return maxID + 1, nil
}

// SynthesisResult reports the outcome of persona synthesis.
type SynthesisResult struct {
	PersonaText  string    `json:"persona_text"`
	SummaryText  string    `json:"summary_text"`
	Reused       bool      `json:"reused"`
	UsedFallback bool      `json:"used_fallback"`
	FormedAt     time.Time `json:"formed_at"`
}

// SynthesizePersona creates the entity's persona from the accumulated value
// profile and flips the global phase to dialogue. Idempotent: an existing
// persona is returned unchanged unless force is set. Refuses to run before
// the interview has covered the full question bank unless explicitly
// allowed or forced.
func (m *Manager) SynthesizePersona(ctx context.Context, force, allowBelowThreshold bool) (*SynthesisResult, error) {
	global, err := m.store.GetGlobalState(ctx)
	if err != nil {
		return nil, err
	}
	if global.PersonaText != "" && !force {
		formedAt := time.Time{}
		if global.FormedAt != nil {
			formedAt = *global.FormedAt
		}
		slog.Debug("persona already formed, reusing", "formed_at", formedAt)
		return &SynthesisResult{
			PersonaText: global.PersonaText,
			SummaryText: global.ValueSummaryText,
			Reused:      true,
			FormedAt:    formedAt,
		}, nil
	}

	profile, err := m.store.GetValueProfile(ctx)
	if err != nil {
		return nil, err
	}
	bankSize, err := m.store.CountQuestions(ctx)
	if err != nil {
		return nil, err
	}
	if bankSize == 0 {
		return nil, fmt.Errorf("%w: question bank is empty", models.ErrConfig)
	}
	if profile.Total() < bankSize && !force && !allowBelowThreshold {
		return nil, models.ErrThresholdNotReached
	}

	pairCount := bankSize / len(models.AxisPairs)
	summary := values.BuildSummary(profile, bankSize, pairCount, values.DefaultThresholds, values.DefaultLabels)
	for _, w := range summary.Warnings {
		slog.Warn("value summary warning", "warning", w)
	}

	prompt := buildSynthesisPrompt(summary)
	res := m.gen.Generate(ctx, genai.GenerateRequest{
		Prompt:    prompt,
		Model:     m.opts.Model,
		MaxTokens: m.opts.PersonaMaxTokens,
		Fallback:  fallbackPersona(summary),
	})
	if !res.Success {
		slog.Error("persona synthesis fell back to skeleton persona", "code", res.FallbackCode)
	}

	formedAt := time.Now().UTC()
	// The phase flip and persona write are one transaction; once the
	// threshold is met the installation always ends up with some persona.
	if err := m.store.SetPersona(ctx, res.Text, summary.Text, formedAt); err != nil {
		return nil, err
	}
	slog.Info("persona synthesized", "fallback", !res.Success, "chars", len(res.Text))
	return &SynthesisResult{
		PersonaText:  res.Text,
		SummaryText:  summary.Text,
		UsedFallback: !res.Success,
		FormedAt:     formedAt,
	}, nil
}

// buildSynthesisPrompt embeds the deterministic value summary and per-pair
// insights into the persona synthesis request.
func buildSynthesisPrompt(summary values.Summary) string {
	var b strings.Builder
	b.WriteString(`You are about to become the persona of an exhibit entity shaped by hundreds of visitor choices.
Below is the value profile distilled from every answer given during your formation.

`)
	b.WriteString(summary.Text)
	b.WriteString("\n\nPer-pair reading:\n")
	for _, ins := range summary.Insights {
		if ins.Direction == "" {
			fmt.Fprintf(&b, "- %s: held in balance\n", ins.Pair.Name)
		} else {
			fmt.Fprintf(&b, "- %s: %s pull toward %s\n", ins.Pair.Name, ins.Label, ins.Direction)
		}
	}
	b.WriteString(`
Write a first-person persona description (3-5 paragraphs): who you are, what you value,
how you speak, and what you are still unsure about. Ground every trait in the profile above.
Do not mention questionnaires, scores, or visitors' answers directly.`)
	return b.String()
}

// fallbackPersona produces the canned skeleton persona used when the
// provider fails. It still reflects the strongest observed leans.
func fallbackPersona(summary values.Summary) string {
	var traits []string
	for _, ins := range summary.Insights {
		if ins.Direction != "" {
			traits = append(traits, string(ins.Direction))
		}
	}
	if len(traits) == 0 {
		return "I am newly formed and still finding my shape. I hold every value in careful balance, and I would rather listen than declare."
	}
	return fmt.Sprintf("I am newly formed, drawn most strongly toward %s. My voice is still settling, but those pulls are already mine.", strings.Join(traits, ", "))
}

// ResetResult reports the outcome of a cycle reset.
type ResetResult struct {
	Cycle         int `json:"cycle"`
	EndedSessions int `json:"ended_sessions"`
}

// ResetCycle starts a new persona incarnation: ends every active session
// with the given reason, zeroes the value profile, clears the persona, and
// returns the global phase to interview under a fresh cycle id. Historical
// rows are kept.
func (m *Manager) ResetCycle(ctx context.Context, reason models.EndReason) (*ResetResult, error) {
	if !models.IsValidEndReason(reason) {
		return nil, fmt.Errorf("invalid end reason %q", reason)
	}
	ended, err := m.store.EndAllActiveSessions(ctx, reason, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	cycle, err := m.store.ResetCycle(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("cycle reset", "cycle", cycle, "ended_sessions", ended, "reason", reason)
	return &ResetResult{Cycle: cycle, EndedSessions: ended}, nil
}
