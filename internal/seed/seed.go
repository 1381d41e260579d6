// Package seed loads authored exhibit content (the question bank, growth
// stages, and policy rules) from YAML files and installs it into an empty
// store at boot.
//
// Growth stages and policy rules ship with embedded defaults so a fresh
// install is immediately usable; the question bank is curated per exhibit
// and must be supplied as a file.
package seed

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/atelier-anima/anima/internal/models"
	"github.com/atelier-anima/anima/internal/store"
)

//go:embed defaults/*.yaml
var defaultsFS embed.FS

// Well-known file names inside the seed directory.
const (
	QuestionsFile    = "questions.yaml"
	GrowthStagesFile = "growth_stages.yaml"
	PolicyRulesFile  = "policy_rules.yaml"
)

type questionDoc struct {
	Questions []questionYAML `yaml:"questions"`
}

type questionYAML struct {
	ID        int    `yaml:"id"`
	AxisKey   string `yaml:"axis_key"`
	Text      string `yaml:"text"`
	ChoiceA   string `yaml:"choice_a"`
	ChoiceB   string `yaml:"choice_b"`
	ValueAKey string `yaml:"value_a_key"`
	ValueBKey string `yaml:"value_b_key"`
	Enabled   *bool  `yaml:"enabled"`
}

type stageDoc struct {
	Stages []stageYAML `yaml:"stages"`
}

type stageYAML struct {
	ID              int     `yaml:"id"`
	Name            string  `yaml:"name"`
	MinAnswers      int     `yaml:"min_answers"`
	MaxAnswers      int     `yaml:"max_answers"`
	SentenceBudget  int     `yaml:"sentence_budget"`
	MetaphorDensity float64 `yaml:"metaphor_density"`
	Certainty       float64 `yaml:"certainty"`
	Empathy         float64 `yaml:"empathy"`
	ExampleNotes    string  `yaml:"example_notes"`
}

type ruleDoc struct {
	Rules []ruleYAML `yaml:"rules"`
}

type ruleYAML struct {
	ID              int      `yaml:"id"`
	Category        string   `yaml:"category"`
	Keywords        []string `yaml:"keywords"`
	IsRegex         bool     `yaml:"is_regex"`
	Action          string   `yaml:"action"`
	Priority        int      `yaml:"priority"`
	FallbackMessage string   `yaml:"fallback_message"`
	ShouldEnd       bool     `yaml:"should_end"`
	Enabled         *bool    `yaml:"enabled"`
}

// ParseQuestions decodes and validates a question bank document.
func ParseQuestions(r io.Reader) ([]models.Question, error) {
	var doc questionDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode questions: %w", err)
	}
	qs := make([]models.Question, 0, len(doc.Questions))
	for _, q := range doc.Questions {
		enabled := true
		if q.Enabled != nil {
			enabled = *q.Enabled
		}
		qs = append(qs, models.Question{
			ID:        q.ID,
			AxisKey:   q.AxisKey,
			Text:      q.Text,
			ChoiceA:   q.ChoiceA,
			ChoiceB:   q.ChoiceB,
			ValueAKey: models.AxisKey(q.ValueAKey),
			ValueBKey: models.AxisKey(q.ValueBKey),
			Enabled:   enabled,
		})
	}
	if err := ValidateQuestionBank(qs); err != nil {
		return nil, err
	}
	return qs, nil
}

// ValidateQuestionBank checks structural invariants of an authored bank:
// unique positive ids, known axis keys, both value keys drawn from the
// question's own pair, and the pair arithmetic the aggregation math assumes
// (each pair contributes the same number of questions).
func ValidateQuestionBank(qs []models.Question) error {
	if len(qs) == 0 {
		return fmt.Errorf("%w: question bank is empty", models.ErrConfig)
	}
	seen := make(map[int]bool, len(qs))
	perPair := make(map[string]int)
	for _, q := range qs {
		if q.ID <= 0 {
			return fmt.Errorf("%w: question id %d is not positive", models.ErrConfig, q.ID)
		}
		if seen[q.ID] {
			return fmt.Errorf("%w: duplicate question id %d", models.ErrConfig, q.ID)
		}
		seen[q.ID] = true
		pair, ok := pairByName(q.AxisKey)
		if !ok {
			return fmt.Errorf("%w: question %d has unknown axis %q", models.ErrConfig, q.ID, q.AxisKey)
		}
		if !pairContains(pair, q.ValueAKey) || !pairContains(pair, q.ValueBKey) {
			return fmt.Errorf("%w: question %d value keys %q/%q do not belong to axis %q",
				models.ErrConfig, q.ID, q.ValueAKey, q.ValueBKey, q.AxisKey)
		}
		if q.ValueAKey == q.ValueBKey {
			return fmt.Errorf("%w: question %d maps both choices to %q", models.ErrConfig, q.ID, q.ValueAKey)
		}
		perPair[q.AxisKey]++
	}
	want := len(qs) / len(models.AxisPairs)
	if want*len(models.AxisPairs) != len(qs) {
		return fmt.Errorf("%w: bank size %d is not divisible across %d axis pairs",
			models.ErrConfig, len(qs), len(models.AxisPairs))
	}
	for _, p := range models.AxisPairs {
		if perPair[p.Name] != want {
			return fmt.Errorf("%w: axis %q has %d questions, want %d",
				models.ErrConfig, p.Name, perPair[p.Name], want)
		}
	}
	return nil
}

func pairByName(name string) (models.AxisPair, bool) {
	for _, p := range models.AxisPairs {
		if p.Name == name {
			return p, true
		}
	}
	return models.AxisPair{}, false
}

func pairContains(p models.AxisPair, k models.AxisKey) bool {
	return k == p.A || k == p.B
}

// ParseGrowthStages decodes and validates a growth stage document.
func ParseGrowthStages(r io.Reader) ([]models.GrowthStage, error) {
	var doc stageDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode growth stages: %w", err)
	}
	stages := make([]models.GrowthStage, 0, len(doc.Stages))
	for _, s := range doc.Stages {
		stages = append(stages, models.GrowthStage{
			ID:              s.ID,
			Name:            s.Name,
			MinAnswers:      s.MinAnswers,
			MaxAnswers:      s.MaxAnswers,
			SentenceBudget:  s.SentenceBudget,
			MetaphorDensity: s.MetaphorDensity,
			Certainty:       s.Certainty,
			Empathy:         s.Empathy,
			ExampleNotes:    s.ExampleNotes,
		})
	}
	if err := ValidateGrowthStages(stages); err != nil {
		return nil, err
	}
	return stages, nil
}

// ValidateGrowthStages checks that stage ranges start at zero, are
// non-overlapping, and are contiguous, so exactly one stage matches any
// in-range answer count.
func ValidateGrowthStages(stages []models.GrowthStage) error {
	if len(stages) == 0 {
		return fmt.Errorf("%w: no growth stages defined", models.ErrConfig)
	}
	sorted := make([]models.GrowthStage, len(stages))
	copy(sorted, stages)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinAnswers < sorted[j].MinAnswers })
	if sorted[0].MinAnswers != 0 {
		return fmt.Errorf("%w: first growth stage must start at 0, got %d", models.ErrConfig, sorted[0].MinAnswers)
	}
	for i, s := range sorted {
		if s.MaxAnswers < s.MinAnswers {
			return fmt.Errorf("%w: stage %q range [%d,%d] is inverted", models.ErrConfig, s.Name, s.MinAnswers, s.MaxAnswers)
		}
		if i > 0 && s.MinAnswers != sorted[i-1].MaxAnswers+1 {
			return fmt.Errorf("%w: gap or overlap between stages %q and %q",
				models.ErrConfig, sorted[i-1].Name, s.Name)
		}
	}
	return nil
}

// ParsePolicyRules decodes and validates a policy rule document.
func ParsePolicyRules(r io.Reader) ([]models.PolicyRule, error) {
	var doc ruleDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode policy rules: %w", err)
	}
	rules := make([]models.PolicyRule, 0, len(doc.Rules))
	for _, r := range doc.Rules {
		enabled := true
		if r.Enabled != nil {
			enabled = *r.Enabled
		}
		rule := models.PolicyRule{
			ID:              r.ID,
			Category:        r.Category,
			Keywords:        r.Keywords,
			IsRegex:         r.IsRegex,
			Action:          models.PolicyAction(r.Action),
			Priority:        r.Priority,
			FallbackMessage: r.FallbackMessage,
			ShouldEnd:       r.ShouldEnd,
			Enabled:         enabled,
		}
		if err := validateRule(rule); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func validateRule(r models.PolicyRule) error {
	if !models.IsValidPolicyAction(r.Action) {
		return fmt.Errorf("%w: rule %d has unknown action %q", models.ErrConfig, r.ID, r.Action)
	}
	if len(r.Keywords) == 0 {
		return fmt.Errorf("%w: rule %d has no keywords", models.ErrConfig, r.ID)
	}
	if r.IsRegex {
		if _, err := regexp.Compile("(?i)" + r.Keywords[0]); err != nil {
			return fmt.Errorf("%w: rule %d pattern does not compile: %v", models.ErrConfig, r.ID, err)
		}
	}
	return nil
}

// Seeder installs authored content into a store when the corresponding
// tables are empty. Already-populated tables are left untouched, so boot
// seeding is idempotent.
type Seeder struct {
	store store.Store
	dir   string
}

// NewSeeder creates a seeder reading YAML files from dir. An empty dir
// disables file lookup; embedded defaults still apply.
func NewSeeder(st store.Store, dir string) *Seeder {
	return &Seeder{store: st, dir: dir}
}

// EnsureSeeded seeds questions, growth stages, and policy rules as needed.
// A missing question file with an empty question table is fatal; the other
// two concerns fall back to embedded defaults.
func (s *Seeder) EnsureSeeded(ctx context.Context) error {
	if err := s.ensureQuestions(ctx); err != nil {
		return err
	}
	if err := s.ensureGrowthStages(ctx); err != nil {
		return err
	}
	return s.ensurePolicyRules(ctx)
}

func (s *Seeder) ensureQuestions(ctx context.Context) error {
	count, err := s.store.CountQuestions(ctx)
	if err != nil {
		return fmt.Errorf("failed to count questions: %w", err)
	}
	if count > 0 {
		slog.Debug("question bank already seeded", "count", count)
		return nil
	}
	f, err := s.openSeedFile(QuestionsFile)
	if err != nil {
		return fmt.Errorf("question bank is empty and no %s found: %w", QuestionsFile, err)
	}
	defer f.Close()
	qs, err := ParseQuestions(f)
	if err != nil {
		return err
	}
	if err := s.store.SeedQuestions(ctx, qs); err != nil {
		return fmt.Errorf("failed to seed questions: %w", err)
	}
	slog.Info("seeded question bank", "count", len(qs))
	return nil
}

func (s *Seeder) ensureGrowthStages(ctx context.Context) error {
	existing, err := s.store.ListGrowthStages(ctx)
	if err != nil {
		return fmt.Errorf("failed to list growth stages: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	r, fromFile, err := s.openWithDefault(GrowthStagesFile)
	if err != nil {
		return err
	}
	defer r.Close()
	stages, err := ParseGrowthStages(r)
	if err != nil {
		return err
	}
	if err := s.store.SeedGrowthStages(ctx, stages); err != nil {
		return fmt.Errorf("failed to seed growth stages: %w", err)
	}
	slog.Info("seeded growth stages", "count", len(stages), "from_file", fromFile)
	return nil
}

func (s *Seeder) ensurePolicyRules(ctx context.Context) error {
	existing, err := s.store.ListEnabledPolicyRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to list policy rules: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	r, fromFile, err := s.openWithDefault(PolicyRulesFile)
	if err != nil {
		return err
	}
	defer r.Close()
	rules, err := ParsePolicyRules(r)
	if err != nil {
		return err
	}
	if err := s.store.SeedPolicyRules(ctx, rules); err != nil {
		return fmt.Errorf("failed to seed policy rules: %w", err)
	}
	slog.Info("seeded policy rules", "count", len(rules), "from_file", fromFile)
	return nil
}

func (s *Seeder) openSeedFile(name string) (io.ReadCloser, error) {
	if s.dir == "" {
		return nil, os.ErrNotExist
	}
	return os.Open(filepath.Join(s.dir, name))
}

// openWithDefault prefers the operator's file and falls back to the
// embedded default. The boolean reports whether a file was used.
func (s *Seeder) openWithDefault(name string) (io.ReadCloser, bool, error) {
	f, err := s.openSeedFile(name)
	if err == nil {
		return f, true, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, fmt.Errorf("failed to open seed file %s: %w", name, err)
	}
	def, err := defaultsFS.Open("defaults/" + name)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open embedded default %s: %w", name, err)
	}
	return def, false, nil
}
