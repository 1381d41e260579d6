// Package models defines the core data structures for Anima.
//
// It includes the global installation state, visitor sessions, the question
// bank, answers, dialogue turns, and the shared API response envelope.
package models

import (
	"errors"
	"time"
)

// Phase describes which half of the installation lifecycle is active.
type Phase string

const (
	// PhaseInterview is the question-answering phase before the persona exists.
	PhaseInterview Phase = "interview"
	// PhaseDialogue is the open conversation phase after persona synthesis.
	PhaseDialogue Phase = "dialogue"
)

// IsValidPhase checks if the given phase is supported.
func IsValidPhase(p Phase) bool {
	return p == PhaseInterview || p == PhaseDialogue
}

// EndReason describes why a visitor session was closed.
type EndReason string

const (
	// EndReasonCompleted means the visitor finished their question quota.
	EndReasonCompleted EndReason = "completed"
	// EndReasonTimeout means the visitor walked away; answers are discarded.
	EndReasonTimeout EndReason = "timeout"
	// EndReasonVisitorLeft means the visitor explicitly ended the session.
	EndReasonVisitorLeft EndReason = "visitor_left"
	// EndReasonCycleReset means an administrator reset the persona cycle.
	EndReasonCycleReset EndReason = "cycle_reset"
	// EndReasonPolicy means a policy rule required the session to end.
	EndReasonPolicy EndReason = "policy"
)

// IsValidEndReason checks if the given end reason is supported.
func IsValidEndReason(r EndReason) bool {
	switch r {
	case EndReasonCompleted, EndReasonTimeout, EndReasonVisitorLeft, EndReasonCycleReset, EndReasonPolicy:
		return true
	default:
		return false
	}
}

// Choice identifies which side of a forced-choice question was picked.
type Choice string

const (
	ChoiceA Choice = "A"
	ChoiceB Choice = "B"
)

// IsValidChoice checks if the given choice tag is supported.
func IsValidChoice(c Choice) bool {
	return c == ChoiceA || c == ChoiceB
}

// TurnStatus records how a dialogue turn's assistant text was produced.
type TurnStatus string

const (
	// TurnStatusOK means the generative provider produced the reply.
	TurnStatusOK TurnStatus = "ok"
	// TurnStatusFallback means a canned or policy reply was used.
	TurnStatusFallback TurnStatus = "fallback"
	// TurnStatusError means the turn was persisted despite a hard failure.
	TurnStatusError TurnStatus = "error"
)

// Validation constants for externally supplied input.
const (
	// MaxVisitorNameLength caps the visitor name captured at session start.
	MaxVisitorNameLength = 80
	// MaxUserTextLength caps free-text dialogue input.
	MaxUserTextLength = 2000
	// MaxReplyLength caps a generated assistant reply before persisting.
	MaxReplyLength = 1200
	// MaxMemoryLength caps the running session memory digest.
	MaxMemoryLength = 600
	// SessionQuestionQuota is the per-session forced-choice question limit.
	SessionQuestionQuota = 5
	// QuestionsPerPair is the number of bank questions feeding each axis pair.
	QuestionsPerPair = 73
	// TotalQuestions is the full question bank size (5 pairs x 73).
	TotalQuestions = 365
	// NudgeUserText is the sentinel user text recorded for inactivity nudges.
	NudgeUserText = "[nudge]"
)

// Sentinel errors for client-misuse conditions. Handlers map these onto
// HTTP status codes; managers return them unwrapped or wrapped with %w.
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionEnded        = errors.New("session already ended")
	ErrQuestionNotFound    = errors.New("question not found")
	ErrQuotaReached        = errors.New("session question quota reached")
	ErrDuplicateAnswer     = errors.New("question already answered in this session")
	ErrOutOfSequence       = errors.New("answer submitted out of sequence")
	ErrInvalidChoice       = errors.New("invalid choice tag")
	ErrInvalidValueKey     = errors.New("question value key is not an allowed axis key")
	ErrWrongPhase          = errors.New("operation not valid in current phase")
	ErrTopicMismatch       = errors.New("session is pinned to a different topic")
	ErrDialogueNotStarted  = errors.New("dialogue has not been started for this session")
	ErrPersonaExists       = errors.New("persona already formed")
	ErrThresholdNotReached = errors.New("interview progress below synthesis threshold")
	ErrUserTextTooLong     = errors.New("user text exceeds maximum length")
	ErrVisitorNameTooLong  = errors.New("visitor name exceeds maximum length")
)

// ErrConfig marks fatal configuration problems (missing singleton rows,
// empty stage table). These are operator errors, never client errors.
var ErrConfig = errors.New("configuration error")

// GlobalState is the singleton row describing the installation lifecycle.
// Mutated only by the lifecycle manager.
type GlobalState struct {
	Phase            Phase      `json:"phase"`
	NextQuestionID   int        `json:"next_question_id"`
	PersonaText      string     `json:"persona_text,omitempty"`
	ValueSummaryText string     `json:"value_summary_text,omitempty"`
	FormedAt         *time.Time `json:"formed_at,omitempty"`
	CycleNumber      int        `json:"cycle_number"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// VisitorSession is one visitor's interaction with the entity.
// StartQuestionID pins the question sequence at creation time so concurrent
// sessions never observe the global cursor moving mid-sequence.
type VisitorSession struct {
	ID              string     `json:"id"`
	VisitorName     string     `json:"visitor_name"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	EndReason       EndReason  `json:"end_reason,omitempty"`
	StartQuestionID int        `json:"start_question_id"`
	TopicID         *int       `json:"topic_id,omitempty"`
	MemoryText      string     `json:"memory_text,omitempty"`
	TurnCount       int        `json:"turn_count"`
}

// Ended reports whether the session has been closed.
func (s *VisitorSession) Ended() bool {
	return s.EndedAt != nil
}

// Question is one forced-choice entry in the question bank. Read-only to
// the core; disabled questions are skipped forward during sequencing.
type Question struct {
	ID        int     `json:"id"`
	AxisKey   string  `json:"axis_key"`
	Text      string  `json:"text"`
	ChoiceA   string  `json:"choice_a"`
	ChoiceB   string  `json:"choice_b"`
	ValueAKey AxisKey `json:"value_a_key"`
	ValueBKey AxisKey `json:"value_b_key"`
	Enabled   bool    `json:"enabled"`
}

// ValueKeyFor resolves which axis counter the given choice increments.
func (q *Question) ValueKeyFor(c Choice) AxisKey {
	if c == ChoiceA {
		return q.ValueAKey
	}
	return q.ValueBKey
}

// Answer is one visitor's pick for one question. Append-only; at most one
// per (session, question).
type Answer struct {
	SessionID      string    `json:"session_id"`
	QuestionID     int       `json:"question_id"`
	Choice         Choice    `json:"choice"`
	ChosenValueKey AxisKey   `json:"chosen_value_key"`
	CycleID        int       `json:"cycle_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// DialogueTurn is one persisted exchange in the dialogue phase.
type DialogueTurn struct {
	ID            int64      `json:"id"`
	SessionID     string     `json:"session_id"`
	TopicID       int        `json:"topic_id"`
	UserText      string     `json:"user_text"`
	AssistantText string     `json:"assistant_text"`
	Status        TurnStatus `json:"status"`
	FallbackCode  string     `json:"fallback_code,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// GrowthStage carries the style parameters for one cumulative-answer range.
// Ranges are ordered and non-overlapping; exactly one matches any count,
// with the highest stage applying beyond the configured ranges.
type GrowthStage struct {
	ID              int     `json:"id"`
	Name            string  `json:"name"`
	MinAnswers      int     `json:"min_answers"`
	MaxAnswers      int     `json:"max_answers"`
	SentenceBudget  int     `json:"sentence_budget"`
	MetaphorDensity float64 `json:"metaphor_density"`
	Certainty       float64 `json:"certainty"`
	Empathy         float64 `json:"empathy"`
	ExampleNotes    string  `json:"example_notes,omitempty"`
}

// PolicyAction describes what a matched policy rule asks the caller to do.
type PolicyAction string

const (
	// PolicyActionRedirect steers the conversation away from the topic.
	PolicyActionRedirect PolicyAction = "redirect"
	// PolicyActionWarnEnd warns the visitor the session may be ended.
	PolicyActionWarnEnd PolicyAction = "warn_end"
	// PolicyActionBlock declines the request in-character.
	PolicyActionBlock PolicyAction = "block"
	// PolicyActionCrisis hard-blocks with a fixed safety response.
	PolicyActionCrisis PolicyAction = "crisis"
	// PolicyActionPrivacy hard-blocks requests for personal data.
	PolicyActionPrivacy PolicyAction = "privacy"
)

// IsValidPolicyAction checks if the given action is supported.
func IsValidPolicyAction(a PolicyAction) bool {
	switch a {
	case PolicyActionRedirect, PolicyActionWarnEnd, PolicyActionBlock, PolicyActionCrisis, PolicyActionPrivacy:
		return true
	default:
		return false
	}
}

// PolicyRule is one moderation rule. Keywords holds substring terms, or a
// single pattern when IsRegex is set.
type PolicyRule struct {
	ID              int          `json:"id"`
	Category        string       `json:"category"`
	Keywords        []string     `json:"keywords"`
	IsRegex         bool         `json:"is_regex"`
	Action          PolicyAction `json:"action"`
	Priority        int          `json:"priority"`
	FallbackMessage string       `json:"fallback_message"`
	ShouldEnd       bool         `json:"should_end"`
	Enabled         bool         `json:"enabled"`
}

// ValueProfile is the singleton vector of ten axis counters. Counters only
// ever grow, by whole per-session batches at session end; a cycle reset is
// the only path that zeroes them.
type ValueProfile struct {
	Harmony    int       `json:"harmony"`
	Candor     int       `json:"candor"`
	Intuition  int       `json:"intuition"`
	Evidence   int       `json:"evidence"`
	Novelty    int       `json:"novelty"`
	Continuity int       `json:"continuity"`
	Communion  int       `json:"communion"`
	Solitude   int       `json:"solitude"`
	Wonder     int       `json:"wonder"`
	Mastery    int       `json:"mastery"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Score returns the counter for the given axis key. Unknown keys read as
// zero; callers validate keys before use.
func (p *ValueProfile) Score(k AxisKey) int {
	switch k {
	case AxisHarmony:
		return p.Harmony
	case AxisCandor:
		return p.Candor
	case AxisIntuition:
		return p.Intuition
	case AxisEvidence:
		return p.Evidence
	case AxisNovelty:
		return p.Novelty
	case AxisContinuity:
		return p.Continuity
	case AxisCommunion:
		return p.Communion
	case AxisSolitude:
		return p.Solitude
	case AxisWonder:
		return p.Wonder
	case AxisMastery:
		return p.Mastery
	default:
		return 0
	}
}

// Add increments the counter for the given axis key by delta. Unknown keys
// are ignored; the axis enum is closed so this never touches arbitrary
// fields.
func (p *ValueProfile) Add(k AxisKey, delta int) {
	switch k {
	case AxisHarmony:
		p.Harmony += delta
	case AxisCandor:
		p.Candor += delta
	case AxisIntuition:
		p.Intuition += delta
	case AxisEvidence:
		p.Evidence += delta
	case AxisNovelty:
		p.Novelty += delta
	case AxisContinuity:
		p.Continuity += delta
	case AxisCommunion:
		p.Communion += delta
	case AxisSolitude:
		p.Solitude += delta
	case AxisWonder:
		p.Wonder += delta
	case AxisMastery:
		p.Mastery += delta
	}
}

// Total returns the sum of all ten counters, i.e. the cumulative number of
// aggregated answers in the current cycle.
func (p *ValueProfile) Total() int {
	total := 0
	for _, k := range AllAxisKeys {
		total += p.Score(k)
	}
	return total
}
