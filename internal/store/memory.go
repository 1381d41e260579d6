// Package store provides storage backends for Anima.
//
// This file implements an in-memory store used by tests and local
// development. It mirrors the transactional semantics of the SQL backends
// under a single mutex.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/atelier-anima/anima/internal/models"
)

// InMemoryStore is a mutex-guarded Store implementation.
type InMemoryStore struct {
	mu sync.Mutex

	global  models.GlobalState
	profile models.ValueProfile

	sessions  map[string]*models.VisitorSession
	answers   map[string][]models.Answer
	questions map[int]models.Question
	stages    []models.GrowthStage
	rules     []models.PolicyRule
	turns     []models.DialogueTurn
	nextTurn  int64
}

// NewInMemoryStore creates an empty in-memory store with a fresh interview
// cycle.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		global: models.GlobalState{
			Phase:          models.PhaseInterview,
			NextQuestionID: 1,
			CycleNumber:    1,
			UpdatedAt:      time.Now().UTC(),
		},
		sessions:  make(map[string]*models.VisitorSession),
		answers:   make(map[string][]models.Answer),
		questions: make(map[int]models.Question),
		nextTurn:  1,
	}
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) GetGlobalState(ctx context.Context) (*models.GlobalState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gs := s.global
	return &gs, nil
}

func (s *InMemoryStore) GetValueProfile(ctx context.Context) (*models.ValueProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.profile
	return &p, nil
}

func (s *InMemoryStore) ApplySessionAggregate(ctx context.Context, counts map[models.AxisKey]int, newCursor int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, n := range counts {
		s.profile.Add(k, n)
	}
	s.profile.UpdatedAt = time.Now().UTC()
	s.global.NextQuestionID = newCursor
	s.global.UpdatedAt = s.profile.UpdatedAt
	return nil
}

func (s *InMemoryStore) SetPersona(ctx context.Context, personaText, summaryText string, formedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := formedAt.UTC()
	s.global.Phase = models.PhaseDialogue
	s.global.PersonaText = personaText
	s.global.ValueSummaryText = summaryText
	s.global.FormedAt = &t
	s.global.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemoryStore) ResetCycle(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.global.Phase = models.PhaseInterview
	s.global.NextQuestionID = 1
	s.global.PersonaText = ""
	s.global.ValueSummaryText = ""
	s.global.FormedAt = nil
	s.global.CycleNumber++
	s.global.UpdatedAt = time.Now().UTC()
	s.profile = models.ValueProfile{UpdatedAt: s.global.UpdatedAt}
	return s.global.CycleNumber, nil
}

func (s *InMemoryStore) CreateSession(ctx context.Context, sess *models.VisitorSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *InMemoryStore) GetSession(ctx context.Context, id string) (*models.VisitorSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (s *InMemoryStore) MarkSessionEnded(ctx context.Context, id string, reason models.EndReason, endedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.EndedAt != nil {
		return false, nil
	}
	t := endedAt.UTC()
	sess.EndedAt = &t
	sess.EndReason = reason
	return true, nil
}

func (s *InMemoryStore) SetSessionTopic(ctx context.Context, id string, topicID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		tid := topicID
		sess.TopicID = &tid
	}
	return nil
}

func (s *InMemoryStore) UpdateSessionMemory(ctx context.Context, id string, memoryText string, turnCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.MemoryText = memoryText
		sess.TurnCount = turnCount
	}
	return nil
}

func (s *InMemoryStore) EndAllActiveSessions(ctx context.Context, reason models.EndReason, endedAt time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := endedAt.UTC()
	n := 0
	for _, sess := range s.sessions {
		if sess.EndedAt == nil {
			sess.EndedAt = &t
			sess.EndReason = reason
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) CountAnswers(ctx context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.answers[sessionID]), nil
}

func (s *InMemoryStore) AddAnswer(ctx context.Context, a models.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[a.SessionID]
	if !ok {
		return models.ErrSessionNotFound
	}
	if sess.EndedAt != nil {
		return models.ErrSessionEnded
	}

	existing := s.answers[a.SessionID]
	maxQID := 0
	for _, prev := range existing {
		if prev.QuestionID == a.QuestionID {
			return models.ErrDuplicateAnswer
		}
		if prev.QuestionID > maxQID {
			maxQID = prev.QuestionID
		}
	}

	expected := sess.StartQuestionID
	if len(existing) > 0 {
		expected = maxQID + 1
	}
	next, found := s.nextEnabledLocked(expected)
	if !found {
		return models.ErrQuestionNotFound
	}
	if a.QuestionID != next {
		return models.ErrOutOfSequence
	}

	s.answers[a.SessionID] = append(existing, a)
	return nil
}

// nextEnabledLocked returns the lowest enabled question id >= fromID.
// Caller must hold the mutex.
func (s *InMemoryStore) nextEnabledLocked(fromID int) (int, bool) {
	best := 0
	for id, q := range s.questions {
		if id >= fromID && q.Enabled && (best == 0 || id < best) {
			best = id
		}
	}
	return best, best != 0
}

func (s *InMemoryStore) ListAnswers(ctx context.Context, sessionID string) ([]models.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	answers := append([]models.Answer(nil), s.answers[sessionID]...)
	sort.Slice(answers, func(i, j int) bool { return answers[i].QuestionID < answers[j].QuestionID })
	return answers, nil
}

func (s *InMemoryStore) GetQuestion(ctx context.Context, id int) (*models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok {
		return nil, nil
	}
	return &q, nil
}

func (s *InMemoryStore) NextEnabledQuestion(ctx context.Context, fromID int) (*models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, found := s.nextEnabledLocked(fromID)
	if !found {
		return nil, nil
	}
	q := s.questions[id]
	return &q, nil
}

func (s *InMemoryStore) CountQuestions(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.questions), nil
}

func (s *InMemoryStore) MaxQuestionID(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0
	for id := range s.questions {
		if id > max {
			max = id
		}
	}
	return max, nil
}

func (s *InMemoryStore) SeedQuestions(ctx context.Context, qs []models.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range qs {
		s.questions[q.ID] = q
	}
	return nil
}

// SetQuestionEnabled toggles a question in place. Test helper; the SQL
// backends manage this through operator tooling.
func (s *InMemoryStore) SetQuestionEnabled(id int, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.questions[id]; ok {
		q.Enabled = enabled
		s.questions[id] = q
	}
}

func (s *InMemoryStore) ListGrowthStages(ctx context.Context) ([]models.GrowthStage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stages := append([]models.GrowthStage(nil), s.stages...)
	sort.Slice(stages, func(i, j int) bool { return stages[i].MinAnswers < stages[j].MinAnswers })
	return stages, nil
}

func (s *InMemoryStore) SeedGrowthStages(ctx context.Context, stages []models.GrowthStage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages = append(s.stages, stages...)
	return nil
}

func (s *InMemoryStore) ListEnabledPolicyRules(ctx context.Context) ([]models.PolicyRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rules []models.PolicyRule
	for _, r := range s.rules {
		if r.Enabled {
			rules = append(rules, r)
		}
	}
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].ID < rules[j].ID
	})
	return rules, nil
}

func (s *InMemoryStore) SeedPolicyRules(ctx context.Context, rules []models.PolicyRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, rules...)
	return nil
}

func (s *InMemoryStore) AddDialogueTurn(ctx context.Context, t *models.DialogueTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.nextTurn
	s.nextTurn++
	s.turns = append(s.turns, *t)
	return nil
}

func (s *InMemoryStore) RecentTurns(ctx context.Context, sessionID string, n int) ([]models.DialogueTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var mine []models.DialogueTurn
	for _, t := range s.turns {
		if t.SessionID == sessionID {
			mine = append(mine, t)
		}
	}
	if len(mine) > n {
		mine = mine[len(mine)-n:]
	}
	return mine, nil
}
