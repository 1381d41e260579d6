// Package store provides storage backends for Anima.
//
// This file implements the SQLite-backed store used for single-box exhibit
// deployments. SQLite serializes writers on the connection, so the
// transactional paths below rely on explicit transactions rather than row
// locks.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/atelier-anima/anima/internal/models"
	"github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const globalStateQuerySQLite = `SELECT phase, next_question_id, persona_text, value_summary_text, formed_at, cycle_number, updated_at FROM global_state WHERE id = 1`

func (s *SQLiteStore) GetGlobalState(ctx context.Context) (*models.GlobalState, error) {
	gs, err := scanGlobalState(s.db.QueryRowContext(ctx, globalStateQuerySQLite))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: global_state row missing", models.ErrConfig)
	}
	if err != nil {
		slog.Error("SQLiteStore GetGlobalState failed", "error", err)
		return nil, fmt.Errorf("failed to read global state: %w", err)
	}
	return gs, nil
}

const valueProfileQuerySQLite = `SELECT harmony, candor, intuition, evidence, novelty, continuity, communion, solitude, wonder, mastery, updated_at FROM value_profile WHERE id = 1`

func (s *SQLiteStore) GetValueProfile(ctx context.Context) (*models.ValueProfile, error) {
	p, err := scanValueProfile(s.db.QueryRowContext(ctx, valueProfileQuerySQLite))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: value_profile row missing", models.ErrConfig)
	}
	if err != nil {
		slog.Error("SQLiteStore GetValueProfile failed", "error", err)
		return nil, fmt.Errorf("failed to read value profile: %w", err)
	}
	return p, nil
}

const aggregateUpdateSQLite = `UPDATE value_profile SET
	harmony = harmony + ?, candor = candor + ?,
	intuition = intuition + ?, evidence = evidence + ?,
	novelty = novelty + ?, continuity = continuity + ?,
	communion = communion + ?, solitude = solitude + ?,
	wonder = wonder + ?, mastery = mastery + ?,
	updated_at = ?
	WHERE id = 1`

func (s *SQLiteStore) ApplySessionAggregate(ctx context.Context, counts map[models.AxisKey]int, newCursor int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin aggregate transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	args := make([]interface{}, 0, 11)
	for _, k := range models.AllAxisKeys {
		args = append(args, counts[k])
	}
	args = append(args, now)
	if _, err := tx.ExecContext(ctx, aggregateUpdateSQLite, args...); err != nil {
		slog.Error("SQLiteStore ApplySessionAggregate profile update failed", "error", err)
		return fmt.Errorf("failed to update value profile: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE global_state SET next_question_id = ?, updated_at = ? WHERE id = 1`, newCursor, now); err != nil {
		slog.Error("SQLiteStore ApplySessionAggregate cursor update failed", "error", err)
		return fmt.Errorf("failed to advance question cursor: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit aggregate transaction: %w", err)
	}
	slog.Debug("SQLiteStore ApplySessionAggregate succeeded", "new_cursor", newCursor)
	return nil
}

func (s *SQLiteStore) SetPersona(ctx context.Context, personaText, summaryText string, formedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE global_state SET phase = ?, persona_text = ?, value_summary_text = ?, formed_at = ?, updated_at = ? WHERE id = 1`,
		string(models.PhaseDialogue), personaText, summaryText, formedAt.UTC(), time.Now().UTC())
	if err != nil {
		slog.Error("SQLiteStore SetPersona failed", "error", err)
		return fmt.Errorf("failed to store persona: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ResetCycle(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin reset transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE global_state SET phase = ?, next_question_id = 1, persona_text = NULL, value_summary_text = NULL, formed_at = NULL, cycle_number = cycle_number + 1, updated_at = ? WHERE id = 1`,
		string(models.PhaseInterview), now); err != nil {
		return 0, fmt.Errorf("failed to reset global state: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE value_profile SET harmony=0, candor=0, intuition=0, evidence=0, novelty=0, continuity=0, communion=0, solitude=0, wonder=0, mastery=0, updated_at = ? WHERE id = 1`,
		now); err != nil {
		return 0, fmt.Errorf("failed to zero value profile: %w", err)
	}
	var cycle int
	if err := tx.QueryRowContext(ctx, `SELECT cycle_number FROM global_state WHERE id = 1`).Scan(&cycle); err != nil {
		return 0, fmt.Errorf("failed to read new cycle number: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit reset transaction: %w", err)
	}
	slog.Info("SQLiteStore ResetCycle succeeded", "cycle", cycle)
	return cycle, nil
}

func (s *SQLiteStore) CreateSession(ctx context.Context, sess *models.VisitorSession) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, visitor_name, started_at, start_question_id, memory_text, turn_count) VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.VisitorName, sess.StartedAt.UTC(), sess.StartQuestionID, sess.MemoryText, sess.TurnCount)
	if err != nil {
		slog.Error("SQLiteStore CreateSession failed", "error", err, "session", sess.ID)
		return fmt.Errorf("failed to insert session %s: %w", sess.ID, err)
	}
	return nil
}

const sessionQuerySQLite = `SELECT id, visitor_name, started_at, ended_at, end_reason, start_question_id, topic_id, memory_text, turn_count FROM sessions WHERE id = ?`

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*models.VisitorSession, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx, sessionQuerySQLite, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err, "session", id)
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}
	return sess, nil
}

func (s *SQLiteStore) MarkSessionEnded(ctx context.Context, id string, reason models.EndReason, endedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ?, end_reason = ? WHERE id = ? AND ended_at IS NULL`,
		endedAt.UTC(), string(reason), id)
	if err != nil {
		slog.Error("SQLiteStore MarkSessionEnded failed", "error", err, "session", id)
		return false, fmt.Errorf("failed to end session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read end-session result for %s: %w", id, err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) SetSessionTopic(ctx context.Context, id string, topicID int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET topic_id = ? WHERE id = ?`, topicID, id)
	if err != nil {
		slog.Error("SQLiteStore SetSessionTopic failed", "error", err, "session", id)
		return fmt.Errorf("failed to set topic for session %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateSessionMemory(ctx context.Context, id string, memoryText string, turnCount int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET memory_text = ?, turn_count = ? WHERE id = ?`, memoryText, turnCount, id)
	if err != nil {
		slog.Error("SQLiteStore UpdateSessionMemory failed", "error", err, "session", id)
		return fmt.Errorf("failed to update memory for session %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) EndAllActiveSessions(ctx context.Context, reason models.EndReason, endedAt time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ?, end_reason = ? WHERE ended_at IS NULL`,
		endedAt.UTC(), string(reason))
	if err != nil {
		slog.Error("SQLiteStore EndAllActiveSessions failed", "error", err)
		return 0, fmt.Errorf("failed to end active sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read ended-session count: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) CountAnswers(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM answers WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		slog.Error("SQLiteStore CountAnswers failed", "error", err, "session", sessionID)
		return 0, fmt.Errorf("failed to count answers for session %s: %w", sessionID, err)
	}
	return n, nil
}

// AddAnswer verifies sequencing and uniqueness inside the insert
// transaction, closing the race between the checks and the insert. The
// answers primary key is a backstop for the duplicate check under
// concurrent submission.
func (s *SQLiteStore) AddAnswer(ctx context.Context, a models.Answer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin answer transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.checkAnswerPosition(ctx, tx, a); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO answers (session_id, question_id, choice, chosen_value_key, cycle_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.SessionID, a.QuestionID, string(a.Choice), string(a.ChosenValueKey), a.CycleID, a.CreatedAt.UTC())
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return models.ErrDuplicateAnswer
		}
		slog.Error("SQLiteStore AddAnswer insert failed", "error", err, "session", a.SessionID, "question", a.QuestionID)
		return fmt.Errorf("failed to insert answer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit answer transaction: %w", err)
	}
	slog.Debug("SQLiteStore AddAnswer succeeded", "session", a.SessionID, "question", a.QuestionID)
	return nil
}

func (s *SQLiteStore) ListAnswers(ctx context.Context, sessionID string) ([]models.Answer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, question_id, choice, chosen_value_key, cycle_id, created_at FROM answers WHERE session_id = ? ORDER BY question_id`,
		sessionID)
	if err != nil {
		slog.Error("SQLiteStore ListAnswers query failed", "error", err, "session", sessionID)
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

const questionQuerySQLite = `SELECT id, axis_key, text, choice_a, choice_b, value_a_key, value_b_key, enabled FROM questions`

func (s *SQLiteStore) GetQuestion(ctx context.Context, id int) (*models.Question, error) {
	q, err := scanQuestion(s.db.QueryRowContext(ctx, questionQuerySQLite+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetQuestion failed", "error", err, "question", id)
		return nil, fmt.Errorf("failed to read question %d: %w", id, err)
	}
	return q, nil
}

func (s *SQLiteStore) NextEnabledQuestion(ctx context.Context, fromID int) (*models.Question, error) {
	q, err := scanQuestion(s.db.QueryRowContext(ctx,
		questionQuerySQLite+` WHERE id >= ? AND enabled = 1 ORDER BY id LIMIT 1`, fromID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore NextEnabledQuestion failed", "error", err, "from", fromID)
		return nil, fmt.Errorf("failed to find next enabled question from %d: %w", fromID, err)
	}
	return q, nil
}

func (s *SQLiteStore) CountQuestions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) MaxQuestionID(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM questions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to read max question id: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) SeedQuestions(ctx context.Context, qs []models.Question) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()
	for _, q := range qs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO questions (id, axis_key, text, choice_a, choice_b, value_a_key, value_b_key, enabled) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			q.ID, q.AxisKey, q.Text, q.ChoiceA, q.ChoiceB, string(q.ValueAKey), string(q.ValueBKey), q.Enabled); err != nil {
			return fmt.Errorf("failed to seed question %d: %w", q.ID, err)
		}
	}
	return tx.Commit()
}

const growthStagesQuerySQLite = `SELECT id, name, min_answers, max_answers, sentence_budget, metaphor_density, certainty, empathy, example_notes FROM growth_stages ORDER BY min_answers`

func (s *SQLiteStore) ListGrowthStages(ctx context.Context) ([]models.GrowthStage, error) {
	rows, err := s.db.QueryContext(ctx, growthStagesQuerySQLite)
	if err != nil {
		slog.Error("SQLiteStore ListGrowthStages query failed", "error", err)
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

func (s *SQLiteStore) SeedGrowthStages(ctx context.Context, stages []models.GrowthStage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()
	for _, g := range stages {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO growth_stages (id, name, min_answers, max_answers, sentence_budget, metaphor_density, certainty, empathy, example_notes) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			g.ID, g.Name, g.MinAnswers, g.MaxAnswers, g.SentenceBudget, g.MetaphorDensity, g.Certainty, g.Empathy, g.ExampleNotes); err != nil {
			return fmt.Errorf("failed to seed growth stage %d: %w", g.ID, err)
		}
	}
	return tx.Commit()
}

const policyRulesQuerySQLite = `SELECT id, category, keywords, is_regex, action, priority, fallback_message, should_end, enabled FROM policy_rules WHERE enabled = 1 ORDER BY priority DESC, id`

func (s *SQLiteStore) ListEnabledPolicyRules(ctx context.Context) ([]models.PolicyRule, error) {
	rows, err := s.db.QueryContext(ctx, policyRulesQuerySQLite)
	if err != nil {
		slog.Error("SQLiteStore ListEnabledPolicyRules query failed", "error", err)
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

func (s *SQLiteStore) SeedPolicyRules(ctx context.Context, rules []models.PolicyRule) error {
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
			`INSERT INTO policy_rules (id, category, keywords, is_regex, action, priority, fallback_message, should_end, enabled) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Category, keywordsJSON, p.IsRegex, string(p.Action), p.Priority, p.FallbackMessage, p.ShouldEnd, p.Enabled); err != nil {
			return fmt.Errorf("failed to seed policy rule %d: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) AddDialogueTurn(ctx context.Context, t *models.DialogueTurn) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO dialogue_turns (session_id, topic_id, user_text, assistant_text, status, fallback_code, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.SessionID, t.TopicID, t.UserText, t.AssistantText, string(t.Status), t.FallbackCode, t.CreatedAt.UTC())
	if err != nil {
		slog.Error("SQLiteStore AddDialogueTurn failed", "error", err, "session", t.SessionID)
		return fmt.Errorf("failed to insert dialogue turn: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		t.ID = id
	}
	return nil
}

func (s *SQLiteStore) RecentTurns(ctx context.Context, sessionID string, n int) ([]models.DialogueTurn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, topic_id, user_text, assistant_text, status, fallback_code, created_at
		 FROM (SELECT * FROM dialogue_turns WHERE session_id = ? ORDER BY id DESC LIMIT ?) ORDER BY id`,
		sessionID, n)
	if err != nil {
		slog.Error("SQLiteStore RecentTurns query failed", "error", err, "session", sessionID)
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

// checkAnswerPosition enforces the duplicate and ordering invariants inside
// the caller's transaction. The session's next expected question id is the
// first enabled question at or beyond max(start_question_id, highest
// answered id + 1).
func (s *SQLiteStore) checkAnswerPosition(ctx context.Context, tx *sql.Tx, a models.Answer) error {
	var startID int
	var endedAt sql.NullTime
	err := tx.QueryRowContext(ctx, `SELECT start_question_id, ended_at FROM sessions WHERE id = ?`, a.SessionID).Scan(&startID, &endedAt)
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
		`SELECT COUNT(*), COALESCE(MAX(question_id), 0) FROM answers WHERE session_id = ?`, a.SessionID).Scan(&count, &maxQID); err != nil {
		return fmt.Errorf("failed to inspect answers for session %s: %w", a.SessionID, err)
	}

	var dup int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM answers WHERE session_id = ? AND question_id = ?`, a.SessionID, a.QuestionID).Scan(&dup); err != nil {
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
		`SELECT id FROM questions WHERE id >= ? AND enabled = 1 ORDER BY id LIMIT 1`, expected).Scan(&nextEnabled)
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
