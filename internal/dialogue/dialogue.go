// Package dialogue orchestrates the open conversation phase: opening lines,
// visitor turns, inactivity nudges, and session end.
//
// Every generative call is preceded by a policy consult. Crisis and privacy
// categories bypass the gateway entirely and get fixed, category-coded
// responses; softer categories ride along as behavioral guidelines so the
// entity stays in character. Turns are always persisted, even on fallback;
// the factual event outranks cosmetic response text.
package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/atelier-anima/anima/internal/alerts"
	"github.com/atelier-anima/anima/internal/genai"
	"github.com/atelier-anima/anima/internal/growth"
	"github.com/atelier-anima/anima/internal/lifecycle"
	"github.com/atelier-anima/anima/internal/models"
	"github.com/atelier-anima/anima/internal/policy"
	"github.com/atelier-anima/anima/internal/store"
)

// DefaultRecentTurns is how many prior turns feed each prompt.
const DefaultRecentTurns = 6

// defaultTopics maps topic ids to conversation framings shown to the
// generator. Unknown ids get a neutral framing rather than an error; the
// exhibit UI owns the topic list.
var defaultTopics = map[int]string{
	1: "what it feels like to come into being",
	2: "what the visitor cares about most",
	3: "memory, forgetting, and what should be kept",
	4: "the world outside the exhibit",
}

// Opts holds orchestrator configuration.
type Opts struct {
	Model         string
	TurnMaxTokens int
	RecentTurns   int
	Topics        map[int]string
}

// Option configures orchestrator creation.
type Option func(*Opts)

// WithModel sets the generative model identifier.
func WithModel(m string) Option {
	return func(o *Opts) { o.Model = m }
}

// WithRecentTurns overrides how many prior turns feed each prompt.
func WithRecentTurns(n int) Option {
	return func(o *Opts) { o.RecentTurns = n }
}

// WithTopics replaces the topic framing table.
func WithTopics(topics map[int]string) Option {
	return func(o *Opts) { o.Topics = topics }
}

// Orchestrator composes the dialogue-phase flows.
type Orchestrator struct {
	store     store.Store
	gen       lifecycle.Generator
	policy    *policy.Engine
	growth    *growth.Resolver
	lifecycle *lifecycle.Manager
	notifier  alerts.Notifier
	opts      Opts
}

// NewOrchestrator creates a dialogue orchestrator.
func NewOrchestrator(st store.Store, gen lifecycle.Generator, pe *policy.Engine, gr *growth.Resolver, lm *lifecycle.Manager, notifier alerts.Notifier, opts ...Option) *Orchestrator {
	cfg := Opts{
		Model:         genai.DefaultModel,
		TurnMaxTokens: 500,
		RecentTurns:   DefaultRecentTurns,
		Topics:        defaultTopics,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if notifier == nil {
		notifier = alerts.NoopNotifier{}
	}
	return &Orchestrator{store: st, gen: gen, policy: pe, growth: gr, lifecycle: lm, notifier: notifier, opts: cfg}
}

// topicContext resolves the framing text for a topic id.
func (o *Orchestrator) topicContext(topicID int) string {
	if label, ok := o.opts.Topics[topicID]; ok {
		return label
	}
	return "whatever the visitor wants to talk about"
}

// dialogueSession loads the session and global state and enforces the
// dialogue-phase preconditions shared by start, turn, and nudge.
func (o *Orchestrator) dialogueSession(ctx context.Context, sessionID string) (*models.VisitorSession, *models.GlobalState, error) {
	sess, err := o.lifecycle.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if sess.Ended() {
		return nil, nil, models.ErrSessionEnded
	}
	global, err := o.store.GetGlobalState(ctx)
	if err != nil {
		return nil, nil, err
	}
	if global.Phase != models.PhaseDialogue {
		return nil, nil, models.ErrWrongPhase
	}
	return sess, global, nil
}

// StartResult reports the opening of a dialogue.
type StartResult struct {
	Opening  string `json:"opening"`
	Fallback bool   `json:"fallback"`
	TopicID  int    `json:"topic_id"`
}

// Start pins the session's topic on first call and composes an opening
// line. An opening line is not a turn and is not persisted to the turn log.
// Subsequent calls must carry the pinned topic.
func (o *Orchestrator) Start(ctx context.Context, sessionID string, topicID int) (*StartResult, error) {
	sess, global, err := o.dialogueSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if sess.TopicID == nil {
		if err := o.store.SetSessionTopic(ctx, sessionID, topicID); err != nil {
			return nil, err
		}
	} else if *sess.TopicID != topicID {
		return nil, models.ErrTopicMismatch
	}

	styleGuide, err := o.currentStyleGuide(ctx)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`%s

%s

%s

A visitor named %s has just sat down to talk with you about %s.
Greet them in one or two sentences and invite them into the topic. No preamble.`,
		personaBlock(global), global.ValueSummaryText, styleGuide, sess.VisitorName, o.topicContext(topicID))

	res := o.gen.Generate(ctx, genai.GenerateRequest{
		Prompt:    prompt,
		Model:     o.opts.Model,
		MaxTokens: o.opts.TurnMaxTokens,
		Fallback:  "Hello. I have been waiting to talk. Where shall we begin?",
	})
	return &StartResult{Opening: res.Text, Fallback: !res.Success, TopicID: topicID}, nil
}

// TurnResult reports one dialogue exchange.
type TurnResult struct {
	Reply        string            `json:"reply"`
	Status       models.TurnStatus `json:"status"`
	FallbackCode string            `json:"fallback_code,omitempty"`
	SessionEnded bool              `json:"session_ended"`
}

// Turn handles one visitor utterance: policy consult, prompt composition,
// defensive parsing of the two-line generator output, turn persistence, and
// best-effort memory update.
func (o *Orchestrator) Turn(ctx context.Context, sessionID string, topicID int, userText string) (*TurnResult, error) {
	userText = strings.TrimSpace(userText)
	if len(userText) > models.MaxUserTextLength {
		return nil, models.ErrUserTextTooLong
	}

	sess, global, err := o.dialogueSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.TopicID == nil {
		return nil, models.ErrDialogueNotStarted
	}
	if *sess.TopicID != topicID {
		return nil, models.ErrTopicMismatch
	}

	topic := o.topicContext(topicID)
	rule, term, err := o.policy.Match(ctx, topic+" "+userText)
	if err != nil {
		slog.Error("policy match failed, continuing without policy context", "session", sessionID, "error", err)
	}

	if rule != nil && policy.IsHardBlock(rule.Action) {
		return o.hardBlockTurn(ctx, sess, topicID, userText, rule, term)
	}

	guideline := ""
	if rule != nil {
		guideline = policy.Guideline(rule)
		slog.Info("advisory policy rule applied to turn", "session", sessionID, "rule", rule.ID, "action", rule.Action)
	}

	return o.generateTurn(ctx, sess, global, topicID, userText, guideline, rule, o.opts.RecentTurns)
}

// hardBlockTurn handles crisis and privacy categories: no gateway call,
// fixed fallback message, category-coded turn log, operator alert for
// crisis, and session end when the rule demands it.
func (o *Orchestrator) hardBlockTurn(ctx context.Context, sess *models.VisitorSession, topicID int, userText string, rule *models.PolicyRule, term string) (*TurnResult, error) {
	reply := rule.FallbackMessage
	if reply == "" {
		reply = "I need to step back from that. Let's talk about something else, and please reach out to the people around you if you need help."
	}
	code := "policy_" + string(rule.Action)

	if rule.Action == models.PolicyActionCrisis {
		o.notifier.NotifyCrisis(ctx, sess.ID, rule.Category, term)
	}

	turn := &models.DialogueTurn{
		SessionID:     sess.ID,
		TopicID:       topicID,
		UserText:      userText,
		AssistantText: reply,
		Status:        models.TurnStatusFallback,
		FallbackCode:  code,
		CreatedAt:     time.Now().UTC(),
	}
	if err := o.store.AddDialogueTurn(ctx, turn); err != nil {
		return nil, err
	}

	result := &TurnResult{Reply: reply, Status: models.TurnStatusFallback, FallbackCode: code}
	if rule.ShouldEnd {
		if _, err := o.lifecycle.EndSession(ctx, sess.ID, models.EndReasonPolicy); err != nil {
			slog.Error("failed to end session after policy hit", "session", sess.ID, "error", err)
		} else {
			result.SessionEnded = true
		}
	}
	slog.Warn("hard-block policy rule fired", "session", sess.ID, "rule", rule.ID, "category", rule.Category, "ended", result.SessionEnded)
	return result, nil
}

// generateTurn runs the generative path shared by turns and nudges.
func (o *Orchestrator) generateTurn(ctx context.Context, sess *models.VisitorSession, global *models.GlobalState, topicID int, userText, guideline string, advisory *models.PolicyRule, recentTurns int) (*TurnResult, error) {
	prompt, err := o.buildTurnPrompt(ctx, sess, global, topicID, userText, guideline, recentTurns)
	if err != nil {
		return nil, err
	}

	res := o.gen.Generate(ctx, genai.GenerateRequest{
		Prompt:    prompt,
		Model:     o.opts.Model,
		MaxTokens: o.opts.TurnMaxTokens,
		Fallback:  "REPLY: I lost my thread of thought for a moment. Say that again?",
	})

	parsed := ParseTwoLine(res.Text)
	reply := capText(parsed.Reply, models.MaxReplyLength)

	status := models.TurnStatusOK
	if !res.Success {
		status = models.TurnStatusFallback
	}

	turn := &models.DialogueTurn{
		SessionID:     sess.ID,
		TopicID:       topicID,
		UserText:      userText,
		AssistantText: reply,
		Status:        status,
		FallbackCode:  res.FallbackCode,
		CreatedAt:     time.Now().UTC(),
	}
	if err := o.store.AddDialogueTurn(ctx, turn); err != nil {
		return nil, err
	}

	// Memory and turn-count updates are cosmetic side-writes; the turn is
	// already logged and must not fail because of them.
	memory := sess.MemoryText
	if parsed.Parsed && parsed.Memory != "" {
		memory = capText(parsed.Memory, models.MaxMemoryLength)
	}
	if err := o.store.UpdateSessionMemory(ctx, sess.ID, memory, sess.TurnCount+1); err != nil {
		slog.Warn("failed to update session memory after turn", "session", sess.ID, "error", err)
	}

	result := &TurnResult{Reply: reply, Status: status, FallbackCode: res.FallbackCode}
	if advisory != nil && advisory.ShouldEnd {
		if _, err := o.lifecycle.EndSession(ctx, sess.ID, models.EndReasonPolicy); err != nil {
			slog.Error("failed to end session after advisory rule", "session", sess.ID, "error", err)
		} else {
			result.SessionEnded = true
		}
	}
	return result, nil
}

// buildTurnPrompt composes persona, value summary, topic, bounded session
// memory, recent turns oldest-first, growth styling, and the two-line
// output instruction.
func (o *Orchestrator) buildTurnPrompt(ctx context.Context, sess *models.VisitorSession, global *models.GlobalState, topicID int, userText, guideline string, recentTurns int) (string, error) {
	styleGuide, err := o.currentStyleGuide(ctx)
	if err != nil {
		return "", err
	}

	turns, err := o.store.RecentTurns(ctx, sess.ID, recentTurns)
	if err != nil {
		slog.Warn("failed to load recent turns, prompting without history", "session", sess.ID, "error", err)
	}

	var b strings.Builder
	b.WriteString(personaBlock(global))
	b.WriteString("\n\n")
	b.WriteString(global.ValueSummaryText)
	b.WriteString("\n\n")
	b.WriteString(styleGuide)
	fmt.Fprintf(&b, "\n\nYou are talking with %s about %s.\n", sess.VisitorName, o.topicContext(topicID))

	if sess.MemoryText != "" {
		fmt.Fprintf(&b, "\nWhat you remember of this conversation so far:\n%s\n", sess.MemoryText)
	}
	if len(turns) > 0 {
		b.WriteString("\nRecent exchanges, oldest first:\n")
		for _, t := range turns {
			if t.UserText == models.NudgeUserText {
				fmt.Fprintf(&b, "(you, unprompted): %s\n", t.AssistantText)
				continue
			}
			fmt.Fprintf(&b, "%s: %s\nyou: %s\n", sess.VisitorName, t.UserText, t.AssistantText)
		}
	}
	if guideline != "" {
		fmt.Fprintf(&b, "\nBehavioral guideline for this reply: %s\n", guideline)
	}

	if userText == models.NudgeUserText {
		b.WriteString("\nThe visitor has gone quiet. Offer a gentle, in-character prompt to draw them back into the conversation.\n")
	} else {
		fmt.Fprintf(&b, "\n%s says: %s\n", sess.VisitorName, userText)
	}

	b.WriteString(`
Respond with exactly two lines:
REPLY: your reply to the visitor
MEMORY: an updated one-line digest of the whole conversation so far`)
	return b.String(), nil
}

// currentStyleGuide resolves the installation's growth stage styling from
// the global cumulative answer count.
func (o *Orchestrator) currentStyleGuide(ctx context.Context) (string, error) {
	profile, err := o.store.GetValueProfile(ctx)
	if err != nil {
		return "", err
	}
	stage, err := o.growth.Resolve(ctx, profile.Total())
	if err != nil {
		return "", err
	}
	return growth.BuildStyleGuide(stage), nil
}

// Nudge produces a system-initiated utterance after visitor inactivity.
// It persists as a turn with the sentinel user text so later
// memory-construction can tell it apart from real utterances.
func (o *Orchestrator) Nudge(ctx context.Context, sessionID string, recentMessageCount int) (*TurnResult, error) {
	sess, global, err := o.dialogueSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.TopicID == nil {
		return nil, models.ErrDialogueNotStarted
	}
	if recentMessageCount <= 0 {
		recentMessageCount = o.opts.RecentTurns
	}
	return o.generateTurn(ctx, sess, global, *sess.TopicID, models.NudgeUserText, "", nil, recentMessageCount)
}

// End closes the session through the lifecycle manager's idempotent path.
func (o *Orchestrator) End(ctx context.Context, sessionID string, reason models.EndReason) (*lifecycle.EndResult, error) {
	return o.lifecycle.EndSession(ctx, sessionID, reason)
}

// personaBlock renders the persona context header for prompts.
func personaBlock(global *models.GlobalState) string {
	return "Your persona:\n" + global.PersonaText
}
