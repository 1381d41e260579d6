// Package store provides storage backends for Anima.
//
// It defines the Store interface the lifecycle and dialogue layers depend
// on, plus SQLite, PostgreSQL, and in-memory implementations. The durable
// store is the single source of truth: all singleton mutations (global
// state, value profile) run inside a transaction that serializes writers.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/atelier-anima/anima/internal/models"
)

// DetectDSNType reports which backend a DSN addresses: "postgres" for
// URL-style or key=value connection strings, "sqlite3" for file paths.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite3"
}

// NewStore creates the backend matching the configured DSN: PostgreSQL for
// postgres DSNs, SQLite for file paths, in-memory when no DSN is set.
func NewStore(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return NewInMemoryStore(), nil
	}
	if DetectDSNType(cfg.DSN) == "postgres" {
		return NewPostgresStore(opts...)
	}
	return NewSQLiteStore(opts...)
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option configures store creation.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// Store is the persistence contract for the exhibit core.
type Store interface {
	// Global singleton state.
	GetGlobalState(ctx context.Context) (*models.GlobalState, error)
	GetValueProfile(ctx context.Context) (*models.ValueProfile, error)
	// ApplySessionAggregate folds one session's per-axis answer counts into
	// the value profile and advances the question cursor, atomically and
	// serialized against concurrent aggregations.
	ApplySessionAggregate(ctx context.Context, counts map[models.AxisKey]int, newCursor int) error
	// SetPersona stores the synthesized persona and flips the global phase
	// to dialogue in the same transaction.
	SetPersona(ctx context.Context, personaText, summaryText string, formedAt time.Time) error
	// ResetCycle starts a new persona incarnation: increments the cycle id,
	// zeroes the value profile, clears persona fields, and returns the
	// global phase to interview. Returns the new cycle number.
	ResetCycle(ctx context.Context) (int, error)

	// Sessions.
	CreateSession(ctx context.Context, s *models.VisitorSession) error
	GetSession(ctx context.Context, id string) (*models.VisitorSession, error)
	// MarkSessionEnded closes the session if it is still open. Returns true
	// when this call performed the close, false when it was already ended.
	MarkSessionEnded(ctx context.Context, id string, reason models.EndReason, endedAt time.Time) (bool, error)
	SetSessionTopic(ctx context.Context, id string, topicID int) error
	UpdateSessionMemory(ctx context.Context, id string, memoryText string, turnCount int) error
	EndAllActiveSessions(ctx context.Context, reason models.EndReason, endedAt time.Time) (int, error)

	// Answers.
	CountAnswers(ctx context.Context, sessionID string) (int, error)
	// AddAnswer inserts the answer after verifying, in the same transaction,
	// that it is not a duplicate and that its question id matches the
	// session's next expected position. Returns models.ErrDuplicateAnswer
	// or models.ErrOutOfSequence on violation.
	AddAnswer(ctx context.Context, a models.Answer) error
	ListAnswers(ctx context.Context, sessionID string) ([]models.Answer, error)

	// Question bank.
	GetQuestion(ctx context.Context, id int) (*models.Question, error)
	// NextEnabledQuestion returns the first enabled question with id >= fromID,
	// or nil when the bank is exhausted from that position.
	NextEnabledQuestion(ctx context.Context, fromID int) (*models.Question, error)
	CountQuestions(ctx context.Context) (int, error)
	MaxQuestionID(ctx context.Context) (int, error)
	SeedQuestions(ctx context.Context, qs []models.Question) error

	// Growth stages.
	ListGrowthStages(ctx context.Context) ([]models.GrowthStage, error)
	SeedGrowthStages(ctx context.Context, stages []models.GrowthStage) error

	// Policy rules.
	ListEnabledPolicyRules(ctx context.Context) ([]models.PolicyRule, error)
	SeedPolicyRules(ctx context.Context, rules []models.PolicyRule) error

	// Dialogue turns.
	AddDialogueTurn(ctx context.Context, t *models.DialogueTurn) error
	// RecentTurns returns up to n of the session's most recent turns,
	// ordered oldest-first.
	RecentTurns(ctx context.Context, sessionID string, n int) ([]models.DialogueTurn, error)

	Close() error
}
