package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/atelier-anima/anima/internal/models"
)

// rowScanner abstracts sql.Row and sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanGlobalState scans the global_state singleton row.
func scanGlobalState(r rowScanner) (*models.GlobalState, error) {
	var gs models.GlobalState
	var phase string
	var persona, summary sql.NullString
	var formedAt sql.NullTime
	err := r.Scan(&phase, &gs.NextQuestionID, &persona, &summary, &formedAt, &gs.CycleNumber, &gs.UpdatedAt)
	if err != nil {
		return nil, err
	}
	gs.Phase = models.Phase(phase)
	gs.PersonaText = persona.String
	gs.ValueSummaryText = summary.String
	if formedAt.Valid {
		t := formedAt.Time
		gs.FormedAt = &t
	}
	return &gs, nil
}

// scanValueProfile scans the value_profile singleton row in axis-pair order.
func scanValueProfile(r rowScanner) (*models.ValueProfile, error) {
	var p models.ValueProfile
	err := r.Scan(
		&p.Harmony, &p.Candor, &p.Intuition, &p.Evidence, &p.Novelty,
		&p.Continuity, &p.Communion, &p.Solitude, &p.Wonder, &p.Mastery,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// scanSession scans one sessions row.
func scanSession(r rowScanner) (*models.VisitorSession, error) {
	var s models.VisitorSession
	var endedAt sql.NullTime
	var endReason sql.NullString
	var topicID sql.NullInt64
	err := r.Scan(
		&s.ID, &s.VisitorName, &s.StartedAt, &endedAt, &endReason,
		&s.StartQuestionID, &topicID, &s.MemoryText, &s.TurnCount,
	)
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	s.EndReason = models.EndReason(endReason.String)
	if topicID.Valid {
		tid := int(topicID.Int64)
		s.TopicID = &tid
	}
	return &s, nil
}

// scanQuestion scans one questions row.
func scanQuestion(r rowScanner) (*models.Question, error) {
	var q models.Question
	var valueA, valueB string
	err := r.Scan(&q.ID, &q.AxisKey, &q.Text, &q.ChoiceA, &q.ChoiceB, &valueA, &valueB, &q.Enabled)
	if err != nil {
		return nil, err
	}
	q.ValueAKey = models.AxisKey(valueA)
	q.ValueBKey = models.AxisKey(valueB)
	return &q, nil
}

// scanAnswer scans one answers row.
func scanAnswer(r rowScanner) (models.Answer, error) {
	var a models.Answer
	var choice, key string
	err := r.Scan(&a.SessionID, &a.QuestionID, &choice, &key, &a.CycleID, &a.CreatedAt)
	if err != nil {
		return a, err
	}
	a.Choice = models.Choice(choice)
	a.ChosenValueKey = models.AxisKey(key)
	return a, nil
}

// scanGrowthStage scans one growth_stages row.
func scanGrowthStage(r rowScanner) (models.GrowthStage, error) {
	var g models.GrowthStage
	err := r.Scan(
		&g.ID, &g.Name, &g.MinAnswers, &g.MaxAnswers,
		&g.SentenceBudget, &g.MetaphorDensity, &g.Certainty, &g.Empathy, &g.ExampleNotes,
	)
	return g, err
}

// scanPolicyRule scans one policy_rules row, decoding the keywords JSON.
func scanPolicyRule(r rowScanner) (models.PolicyRule, error) {
	var p models.PolicyRule
	var action, keywordsJSON string
	err := r.Scan(
		&p.ID, &p.Category, &keywordsJSON, &p.IsRegex, &action,
		&p.Priority, &p.FallbackMessage, &p.ShouldEnd, &p.Enabled,
	)
	if err != nil {
		return p, err
	}
	p.Action = models.PolicyAction(action)
	if err := json.Unmarshal([]byte(keywordsJSON), &p.Keywords); err != nil {
		return p, fmt.Errorf("failed to decode policy rule keywords for rule %d: %w", p.ID, err)
	}
	return p, nil
}

// scanDialogueTurn scans one dialogue_turns row.
func scanDialogueTurn(r rowScanner) (models.DialogueTurn, error) {
	var t models.DialogueTurn
	var status string
	err := r.Scan(&t.ID, &t.SessionID, &t.TopicID, &t.UserText, &t.AssistantText, &status, &t.FallbackCode, &t.CreatedAt)
	if err != nil {
		return t, err
	}
	t.Status = models.TurnStatus(status)
	return t, nil
}

// encodeKeywords serializes a rule's keyword list for storage.
func encodeKeywords(keywords []string) (string, error) {
	if keywords == nil {
		keywords = []string{}
	}
	data, err := json.Marshal(keywords)
	if err != nil {
		return "", fmt.Errorf("failed to encode policy rule keywords: %w", err)
	}
	return string(data), nil
}
