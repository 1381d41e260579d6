// Package growth resolves the installation's growth stage from the
// cumulative answer count and turns stage parameters into prompt style
// instructions.
//
// Growth is a property of the whole installation, not of any one visitor:
// resolution always runs against the global cumulative count.
package growth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/atelier-anima/anima/internal/models"
	"github.com/atelier-anima/anima/internal/store"
)

// Style instruction cutoffs. Each continuous stage parameter maps onto a
// discrete instruction bucket.
const (
	certaintyHedgeBelow  = 0.45
	certaintyAssertAbove = 0.8
	empathyWarmAbove     = 0.7
	metaphorRichAbove    = 0.5
	metaphorPlainBelow   = 0.2
)

// Resolver selects growth stages from the configured stage table.
type Resolver struct {
	store store.Store
}

// NewResolver creates a Resolver backed by the given store.
func NewResolver(st store.Store) *Resolver {
	return &Resolver{store: st}
}

// Resolve returns the stage whose range contains count. Counts beyond the
// highest configured range return the highest stage. An empty stage table
// is a fatal misconfiguration, not a soft fallback.
func (r *Resolver) Resolve(ctx context.Context, count int) (*models.GrowthStage, error) {
	stages, err := r.store.ListGrowthStages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list growth stages: %w", err)
	}
	return Select(stages, count)
}

// Select picks the matching stage from an ordered stage list. Exposed
// separately so callers holding a loaded list avoid a second store trip.
func Select(stages []models.GrowthStage, count int) (*models.GrowthStage, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("%w: growth stage table is empty", models.ErrConfig)
	}
	for i := range stages {
		if count >= stages[i].MinAnswers && count <= stages[i].MaxAnswers {
			return &stages[i], nil
		}
	}
	// Beyond all configured ranges: the entity stays at its highest stage.
	highest := &stages[len(stages)-1]
	slog.Debug("growth count beyond configured ranges, using highest stage", "count", count, "stage", highest.Name)
	return highest, nil
}

// BuildStyleGuide produces a compact instruction snippet for injection into
// generation prompts, derived from the stage's style parameters.
func BuildStyleGuide(stage *models.GrowthStage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are at the %q stage of your growth.\n", stage.Name)
	fmt.Fprintf(&b, "- Use at most %d sentences per reply.\n", stage.SentenceBudget)

	switch {
	case stage.Certainty <= certaintyHedgeBelow:
		b.WriteString("- Hedge your claims; you are still unsure of many things.\n")
	case stage.Certainty >= certaintyAssertAbove:
		b.WriteString("- Speak with settled conviction.\n")
	default:
		b.WriteString("- Balance confidence with openness to being wrong.\n")
	}

	if stage.Empathy >= empathyWarmAbove {
		b.WriteString("- Respond warmly; acknowledge the visitor's feelings first.\n")
	} else {
		b.WriteString("- Stay curious about the visitor without overreaching emotionally.\n")
	}

	switch {
	case stage.MetaphorDensity >= metaphorRichAbove:
		b.WriteString("- Use imagery and metaphor freely.\n")
	case stage.MetaphorDensity <= metaphorPlainBelow:
		b.WriteString("- Speak plainly; avoid metaphor.\n")
	default:
		b.WriteString("- An occasional metaphor is fine; do not overdo it.\n")
	}

	if stage.ExampleNotes != "" {
		fmt.Fprintf(&b, "- Example of your register: %s\n", stage.ExampleNotes)
	}
	return strings.TrimRight(b.String(), "\n")
}
