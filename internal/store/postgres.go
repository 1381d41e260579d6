// Package store provides storage backends for Anima.
//
// This file implements the PostgreSQL-backed store. Singleton mutations take
// a row lock (SELECT ... FOR UPDATE) so concurrent session aggregations
// never interleave increments into the same counters.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/atelier-anima/anima/internal/models"
	"github.com/lib/pq"
)

// Database connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

// uniqueViolation is the PostgreSQL error code for unique constraint failures.
const uniqueViolation = "23505"

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

const globalStateQueryPostgres = `SELECT phase, next_question_id, persona_text, value_summary_text, formed_at, cycle_number, updated_at FROM global_state WHERE id = 1`

func (s *PostgresStore) GetGlobalState(ctx context.Context) (*models.GlobalState, error) {
	gs, err := scanGlobalState(s.db.QueryRowContext(ctx, globalStateQueryPostgres))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: global_state row missing", models.ErrConfig)
	}
	if err != nil {
		slog.Error("PostgresStore GetGlobalState failed", "error", err)
		return nil, fmt.Errorf("failed to read global state: %w", err)
	}
	return gs, nil
}

const valueProfileQueryPostgres = `SELECT harmony, candor, intuition, evidence, novelty, continuity, communion, solitude, wonder, mastery, updated_at FROM value_profile WHERE id = 1`

func (s *PostgresStore) GetValueProfile(ctx context.Context) (*models.ValueProfile, error) {
	p, err := scanValueProfile(s.db.QueryRowContext(ctx, valueProfileQueryPostgres))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: value_profile row missing", models.ErrConfig)
	}
	if err != nil {
		slog.Error("PostgresStore GetValueProfile failed", "error", err)
		return nil, fmt.Errorf("failed to read value profile: %w", err)
	}
	return p, nil
}

const aggregateUpdatePostgres = `UPDATE value_profile SET
	harmony = harmony + $1, candor = candor + $2,
	intuition = intuition + $3, evidence = evidence + $4,
	novelty = novelty + $5, continuity = continuity + $6,
	communion = communion + $7, solitude = solitude + $8,
	wonder = wonder + $9, mastery = mastery + $10,
	updated_at = $11
	WHERE id = 1`

func (s *PostgresStore) ApplySessionAggregate(ctx context.Context, counts map[models.AxisKey]int, newCursor int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin aggregate transaction: %w", err)
	}
	defer tx.Rollback()

	// Lock both singleton rows so concurrent aggregations serialize.
	if _, err := tx.ExecContext(ctx, `SELECT id FROM value_profile WHERE id = 1 FOR UPDATE`); err != nil {
		return fmt.Errorf("failed to lock value profile: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT id FROM global_state WHERE id = 1 FOR UPDATE`); err != nil {
		return fmt.Errorf("failed to lock global state: %w", err)
	}

	now := time.Now().UTC()
	args := make([]interface{}, 0, 11)
	for _, k := range models.AllAxisKeys {
		args = append(args, counts[k])
	}
	args = append(args, now)
	if _, err := tx.ExecContext(ctx, aggregateUpdatePostgres, args...); err != nil {
		slog.Error("PostgresStore ApplySessionAggregate profile update failed", "error", err)
		return fmt.Errorf("failed to update value profile: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE global_state SET next_question_id = $1, updated_at = $2 WHERE id = 1`, newCursor, now); err != nil {
		slog.Error("PostgresStore ApplySessionAggregate cursor update failed", "error", err)
		return fmt.Errorf("failed to advance question cursor: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit aggregate transaction: %w", err)
	}
	slog.Debug("PostgresStore ApplySessionAggregate succeeded", "new_cursor", newCursor)
	return nil
}

func (s *PostgresStore) SetPersona(ctx context.Context, personaText, summaryText string, formedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE global_state SET phase = $1, persona_text = $2, value_summary_text = $3, formed_at = $4, updated_at = $5 WHERE id = 1`,
		string(models.PhaseDialogue), personaText, summaryText, formedAt.UTC(), time.Now().UTC())
	if err != nil {
		slog.Error("PostgresStore SetPersona failed", "error", err)
		return fmt.Errorf("failed to store persona: %w", err)
	}
	return nil
}

func (s *PostgresStore) ResetCycle(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin reset transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var cycle int
	err = tx.QueryRowContext(ctx,
		`UPDATE global_state SET phase = $1, next_question_id = 1, persona_text = NULL, value_summary_text = NULL, formed_at = NULL, cycle_number = cycle_number + 1, updated_at = $2 WHERE id = 1 RETURNING cycle_number`,
		string(models.PhaseInterview), now).Scan(&cycle)
	if err != nil {
		return 0, fmt.Errorf("failed to reset global state: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE value_profile SET harmony=0, candor=0, intuition=0, evidence=0, novelty=0, continuity=0, communion=0, solitude=0, wonder=0, mastery=0, updated_at = $1 WHERE id = 1`,
		now); err != nil {
		return 0, fmt.Errorf("failed to zero value profile: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit reset transaction: %w", err)
	}
	slog.Info("PostgresStore ResetCycle succeeded", "cycle", cycle)
	return cycle, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, sess *models.VisitorSession) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, visitor_name, started_at, start_question_id, memory_text, turn_count) VALUES ($1, $2, $3, $4, $5, $6)`,
		sess.ID, sess.VisitorName, sess.StartedAt.UTC(), sess.StartQuestionID, sess.MemoryText, sess.TurnCount)
	if err != nil {
		slog.Error("PostgresStore CreateSession failed", "error", err, "session", sess.ID)
		return fmt.Errorf("failed to insert session %s: %w", sess.ID, err)
	}
	return nil
}

const sessionQueryPostgres = `SELECT id, visitor_name, started_at, ended_at, end_reason, start_question_id, topic_id, memory_text, turn_count FROM sessions WHERE id = $1`

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*models.VisitorSession, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx, sessionQueryPostgres, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "session", id)
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}
	return sess, nil
}

func (s *PostgresStore) MarkSessionEnded(ctx context.Context, id string, reason models.EndReason, endedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = $1, end_reason = $2 WHERE id = $3 AND ended_at IS NULL`,
		endedAt.UTC(), string(reason), id)
	if err != nil {
		slog.Error("PostgresStore MarkSessionEnded failed", "error", err, "session", id)
		return false, fmt.Errorf("failed to end session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read end-session result for %s: %w", id, err)
	}
	return n > 0, nil
}

func (s *PostgresStore) SetSessionTopic(ctx context.Context, id string, topicID int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET topic_id = $1 WHERE id = $2`, topicID, id)
	if err != nil {
		slog.Error("PostgresStore SetSessionTopic failed", "error", err, "session", id)
		return fmt.Errorf("failed to set topic for session %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) UpdateSessionMemory(ctx context.Context, id string, memoryText string, turnCount int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET memory_text = $1, turn_count = $2 WHERE id = $3`, memoryText, turnCount, id)
	if err != nil {
		slog.Error("PostgresStore UpdateSessionMemory failed", "error", err, "session", id)
		return fmt.Errorf("failed to update memory for session %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) EndAllActiveSessions(ctx context.Context, reason models.EndReason, endedAt time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = $1, end_reason = $2 WHERE ended_at IS NULL`,
		endedAt.UTC(), string(reason))
	if err != nil {
		slog.Error("PostgresStore EndAllActiveSessions failed", "error", err)
		return 0, fmt.Errorf("failed to end active sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read ended-session count: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) CountAnswers(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM answers WHERE session_id = $1`, sessionID).Scan(&n)
	if err != nil {
		slog.Error("PostgresStore CountAnswers failed", "error", err, "session", sessionID)
		return 0, fmt.Errorf("failed to count answers for session %s: %w", sessionID, err)
	}
	return n, nil
}

// AddAnswer verifies sequencing and uniqueness inside the insert
// transaction. The session row is locked FOR UPDATE so concurrent
// submissions for the same session serialize; the answers primary key is a
// backstop for the duplicate check.
func (s *PostgresStore) AddAnswer(ctx context.Context, a models.Answer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin answer transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.checkAnswerPosition(ctx, tx, a); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO answers (session_id, question_id, choice, chosen_value_key, cycle_id, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		a.SessionID, a.QuestionID, string(a.Choice), string(a.ChosenValueKey), a.CycleID, a.CreatedAt.UTC())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return models.ErrDuplicateAnswer
		}
		slog.Error("PostgresStore AddAnswer insert failed", "error", err, "session", a.SessionID, "question", a.QuestionID)
		return fmt.Errorf("failed to insert answer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit answer transaction: %w", err)
	}
	slog.Debug("PostgresStore AddAnswer succeeded", "session", a.SessionID, "question", a.QuestionID)
	return nil
}

func (s *PostgresStore) checkAnswerPosition(ctx context.Context, tx *sql.Tx, a models.Answer) error {
	var startID int
	var endedAt sql.NullTime
	err := tx.QueryRowContext(ctx, `SELECT start_question_id, ended_at FROM sessions WHERE id = $1 FOR UPDATE`, a.SessionID).Scan(&startID, &endedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read session %s: %w", a.SessionID, err)
	}
	if endedAt.Valid {
		return models.ErrSessionEnded
	}

	var count, maxQID int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(MAX(question_id), 0) FROM answers WHERE session_id = $1`, a.SessionID).Scan(&count, &maxQID); err != nil {
		return fmt.Errorf("failed to inspect answers for session %s: %w", a.SessionID, err)
	}

	var dup int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM answers WHERE session_id = $1 AND question_id = $2`, a.SessionID, a.QuestionID).Scan(&dup); err != nil {
		return fmt.Errorf("failed to check duplicate answer: %w", err)
	}
	if dup > 0 {
		return models.ErrDuplicateAnswer
	}

	expected := startID
	if count > 0 {
		expected = maxQID + 1
	}
	var nextEnabled int
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM questions WHERE id >= $1 AND enabled ORDER BY id LIMIT 1`, expected).Scan(&nextEnabled)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrQuestionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to resolve expected question: %w", err)
	}
	if a.QuestionID != nextEnabled {
		return models.ErrOutOfSequence
	}
	return nil
}

func (s *PostgresStore) ListAnswers(ctx context.Context, sessionID string) ([]models.Answer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, question_id, choice, chosen_value_key, cycle_id, created_at FROM answers WHERE session_id = $1 ORDER BY question_id`,
		sessionID)
	if err != nil {
		slog.Error("PostgresStore ListAnswers query failed", "error", err, "session", sessionID)
		return nil, fmt.Errorf("failed to query answers for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var answers []models.Answer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan answer row: %w", err)
		}
		answers = append(answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate answer rows: %w", err)
	}
	return answers, nil
}

const questionQueryPostgres = `SELECT id, axis_key, text, choice_a, choice_b, value_a_key, value_b_key, enabled FROM questions`

func (s *PostgresStore) GetQuestion(ctx context.Context, id int) (*models.Question, error) {
	q, err := scanQuestion(s.db.QueryRowContext(ctx, questionQueryPostgres+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetQuestion failed", "error", err, "question", id)
		return nil, fmt.Errorf("failed to read question %d: %w", id, err)
	}
	return q, nil
}

func (s *PostgresStore) NextEnabledQuestion(ctx context.Context, fromID int) (*models.Question, error) {
	q, err := scanQuestion(s.db.QueryRowContext(ctx,
		questionQueryPostgres+` WHERE id >= $1 AND enabled ORDER BY id LIMIT 1`, fromID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore NextEnabledQuestion failed", "error", err, "from", fromID)
		return nil, fmt.Errorf("failed to find next enabled question from %d: %w", fromID, err)
	}
	return q, nil
}

func (s *PostgresStore) CountQuestions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) MaxQuestionID(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM questions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to read max question id: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) SeedQuestions(ctx context.Context, qs []models.Question) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()
	for _, q := range qs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO questions (id, axis_key, text, choice_a, choice_b, value_a_key, value_b_key, enabled) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			q.ID, q.AxisKey, q.Text, q.ChoiceA, q.ChoiceB, string(q.ValueAKey), string(q.ValueBKey), q.Enabled); err != nil {
			return fmt.Errorf("failed to seed question %d: %w", q.ID, err)
		}
	}
	return tx.Commit()
}

const growthStagesQueryPostgres = `SELECT id, name, min_answers, max_answers, sentence_budget, metaphor_density, certainty, empathy, example_notes FROM growth_stages ORDER BY min_answers`

func (s *PostgresStore) ListGrowthStages(ctx context.Context) ([]models.GrowthStage, error) {
	rows, err := s.db.QueryContext(ctx, growthStagesQueryPostgres)
	if err != nil {
		slog.Error("PostgresStore ListGrowthStages query failed", "error", err)
		return nil, fmt.Errorf("failed to query growth stages: %w", err)
	}
	defer rows.Close()

	var stages []models.GrowthStage
	for rows.Next() {
		g, err := scanGrowthStage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan growth stage row: %w", err)
		}
		stages = append(stages, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate growth stage rows: %w", err)
	}
	return stages, nil
}

func (s *PostgresStore) SeedGrowthStages(ctx context.Context, stages []models.GrowthStage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()
	for _, g := range stages {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO growth_stages (id, name, min_answers, max_answers, sentence_budget, metaphor_density, certainty, empathy, example_notes) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			g.ID, g.Name, g.MinAnswers, g.MaxAnswers, g.SentenceBudget, g.MetaphorDensity, g.Certainty, g.Empathy, g.ExampleNotes); err != nil {
			return fmt.Errorf("failed to seed growth stage %d: %w", g.ID, err)
		}
	}
	return tx.Commit()
}

const policyRulesQueryPostgres = `SELECT id, category, keywords, is_regex, action, priority, fallback_message, should_end, enabled FROM policy_rules WHERE enabled ORDER BY priority DESC, id`

func (s *PostgresStore) ListEnabledPolicyRules(ctx context.Context) ([]models.PolicyRule, error) {
	rows, err := s.db.QueryContext(ctx, policyRulesQueryPostgres)
	if err != nil {
		slog.Error("PostgresStore ListEnabledPolicyRules query failed", "error", err)
		return nil, fmt.Errorf("failed to query policy rules: %w", err)
	}
	defer rows.Close()

	var rules []models.PolicyRule
	for rows.Next() {
		p, err := scanPolicyRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate policy rule rows: %w", err)
	}
	return rules, nil
}

func (s *PostgresStore) SeedPolicyRules(ctx context.Context, rules []models.PolicyRule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()
	for _, p := range rules {
		keywordsJSON, err := encodeKeywords(p.Keywords)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO policy_rules (id, category, keywords, is_regex, action, priority, fallback_message, should_end, enabled) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			p.ID, p.Category, keywordsJSON, p.IsRegex, string(p.Action), p.Priority, p.FallbackMessage, p.ShouldEnd, p.Enabled); err != nil {
			return fmt.Errorf("failed to seed policy rule %d: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) AddDialogueTurn(ctx context.Context, t *models.DialogueTurn) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO dialogue_turns (session_id, topic_id, user_text, assistant_text, status, fallback_code, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		t.SessionID, t.TopicID, t.UserText, t.AssistantText, string(t.Status), t.FallbackCode, t.CreatedAt.UTC()).Scan(&t.ID)
	if err != nil {
		slog.Error("PostgresStore AddDialogueTurn failed", "error", err, "session", t.SessionID)
		return fmt.Errorf("failed to insert dialogue turn: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentTurns(ctx context.Context, sessionID string, n int) ([]models.DialogueTurn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, topic_id, user_text, assistant_text, status, fallback_code, created_at
		 FROM (SELECT * FROM dialogue_turns WHERE session_id = $1 ORDER BY id DESC LIMIT $2) recent ORDER BY id`,
		sessionID, n)
	if err != nil {
		slog.Error("PostgresStore RecentTurns query failed", "error", err, "session", sessionID)
		return nil, fmt.Errorf("failed to query recent turns for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var turns []models.DialogueTurn
	for rows.Next() {
		t, err := scanDialogueTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dialogue turn row: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dialogue turn rows: %w", err)
	}
	return turns, nil
}
