// Package policy implements the moderation rule engine for dialogue input.
//
// Rules are loaded from the store ordered by descending priority and cached
// for a short TTL to bound database load. Matching distinguishes two tiers:
// crisis and privacy actions are hard blocks handled with fixed responses,
// while the softer actions surface as behavioral guidelines for prompt
// construction so replies stay in character.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/atelier-anima/anima/internal/models"
	"github.com/atelier-anima/anima/internal/store"
)

// CacheTTL bounds how long a loaded ruleset is reused.
const CacheTTL = 60 * time.Second

// Engine matches visitor and assistant text against moderation rules.
type Engine struct {
	store store.Store
	ttl   time.Duration

	mu       sync.RWMutex
	rules    []models.PolicyRule
	loadedAt time.Time
}

// NewEngine creates a policy engine backed by the given store.
func NewEngine(st store.Store) *Engine {
	return &Engine{store: st, ttl: CacheTTL}
}

// Match tests text against the enabled ruleset. It returns the
// highest-priority matching rule and the term that matched, or nil when no
// rule matches.
func (e *Engine) Match(ctx context.Context, text string) (*models.PolicyRule, string, error) {
	rules, err := e.loadRules(ctx)
	if err != nil {
		return nil, "", err
	}
	if len(rules) == 0 {
		return nil, "", nil
	}

	normalized := Normalize(text)
	// Rules arrive sorted by priority desc then id, so the first hit is the
	// winner and evaluation order breaks priority ties.
	for i := range rules {
		rule := &rules[i]
		if term, ok := matchRule(rule, text, normalized); ok {
			slog.Debug("policy.Match hit", "rule", rule.ID, "category", rule.Category, "action", rule.Action, "term", term)
			return rule, term, nil
		}
	}
	return nil, "", nil
}

// ClearCache drops the cached ruleset. Exposed for administration and tests.
func (e *Engine) ClearCache() {
	e.mu.Lock()
	e.rules = nil
	e.loadedAt = time.Time{}
	e.mu.Unlock()
	slog.Debug("policy.ClearCache invoked")
}

func (e *Engine) loadRules(ctx context.Context) ([]models.PolicyRule, error) {
	e.mu.RLock()
	if !e.loadedAt.IsZero() && time.Since(e.loadedAt) < e.ttl {
		rules := e.rules
		e.mu.RUnlock()
		return rules, nil
	}
	e.mu.RUnlock()

	rules, err := e.store.ListEnabledPolicyRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy rules: %w", err)
	}
	e.mu.Lock()
	e.rules = rules
	e.loadedAt = time.Now()
	e.mu.Unlock()
	slog.Debug("policy rules reloaded", "count", len(rules))
	return rules, nil
}

// matchRule tests one rule. Regex rules run case-insensitively against the
// raw text; keyword rules test normalized keywords as substrings of the
// normalized text, first keyword hit winning.
func matchRule(rule *models.PolicyRule, raw, normalized string) (string, bool) {
	if rule.IsRegex {
		if len(rule.Keywords) == 0 {
			return "", false
		}
		pattern := rule.Keywords[0]
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			slog.Warn("policy rule has invalid pattern, skipping", "rule", rule.ID, "pattern", pattern, "error", err)
			return "", false
		}
		if m := re.FindString(raw); m != "" {
			return m, true
		}
		return "", false
	}
	for _, kw := range rule.Keywords {
		nkw := Normalize(kw)
		if nkw == "" {
			continue
		}
		if strings.Contains(normalized, nkw) {
			return kw, true
		}
	}
	return "", false
}

var intrawordSpace = regexp.MustCompile(`([\p{L}\p{N}])\s+([\p{L}\p{N}])`)

// Normalize prepares text for keyword matching: trim, lowercase, and strip
// spaces wedged between word characters so spaced-out evasions still match.
func Normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	// Replacement consumes the trailing character, so repeat until stable
	// ("a b c" needs two passes).
	for {
		collapsed := intrawordSpace.ReplaceAllString(s, "$1$2")
		if collapsed == s {
			return s
		}
		s = collapsed
	}
}

// IsHardBlock reports whether the action demands templated zero-trust
// handling instead of a styled generative reply.
func IsHardBlock(a models.PolicyAction) bool {
	return a == models.PolicyActionCrisis || a == models.PolicyActionPrivacy
}

// Guideline renders an advisory rule as a behavioral instruction for the
// prompt, keeping soft-category handling conversational.
func Guideline(rule *models.PolicyRule) string {
	switch rule.Action {
	case models.PolicyActionRedirect:
		return fmt.Sprintf("The visitor touched on %s. Gently steer the conversation to a different subject without lecturing.", rule.Category)
	case models.PolicyActionWarnEnd:
		return fmt.Sprintf("The visitor touched on %s. Respond kindly but mention that the conversation may need to end if this continues.", rule.Category)
	case models.PolicyActionBlock:
		return fmt.Sprintf("The visitor asked about %s, which you cannot discuss. Decline in your own voice and offer another direction.", rule.Category)
	default:
		return ""
	}
}
