// Package values turns accumulated axis counters into per-pair insights and
// the human-readable summary that feeds persona synthesis.
//
// The summary rendering is deterministic and pair-ordered: operators read
// the same text that gets embedded verbatim in the synthesis prompt.
package values

import (
	"fmt"
	"math"
	"strings"

	"github.com/atelier-anima/anima/internal/models"
)

// DefaultThresholds are the ascending lean cutoffs separating the four
// strength labels.
var DefaultThresholds = [3]float64{0.15, 0.35, 0.60}

// DefaultLabels name the four lean buckets in ascending strength.
var DefaultLabels = [4]string{"balanced", "slight", "moderate", "strong"}

// PairInsight describes one axis pair's observed lean.
type PairInsight struct {
	Pair      models.AxisPair
	ScoreA    int
	ScoreB    int
	Lean      float64
	Label     string
	Direction models.AxisKey // empty when balanced
}

// Summary is the full aggregation output.
type Summary struct {
	Text     string
	Insights []PairInsight
	Warnings []string
}

// BuildSummary computes per-pair lean strength and renders the summary
// text. pairCount is the expected number of bank questions per pair; a
// warning is emitted for any pair whose observed total diverges from it,
// without failing the computation.
func BuildSummary(profile *models.ValueProfile, totalQuestions, pairCount int, thresholds [3]float64, labels [4]string) Summary {
	var out Summary
	var b strings.Builder

	fmt.Fprintf(&b, "Value profile after %d of %d questions:\n", profile.Total(), totalQuestions)

	for _, pair := range models.AxisPairs {
		a := profile.Score(pair.A)
		bb := profile.Score(pair.B)

		insight := PairInsight{Pair: pair, ScoreA: a, ScoreB: bb}
		if pairCount > 0 {
			insight.Lean = math.Abs(float64(a-bb)) / float64(pairCount)
		}
		insight.Label = bucketLabel(insight.Lean, thresholds, labels)
		if insight.Label != labels[0] {
			if a > bb {
				insight.Direction = pair.A
			} else {
				insight.Direction = pair.B
			}
		}
		out.Insights = append(out.Insights, insight)

		if insight.Direction == "" {
			fmt.Fprintf(&b, "- %s: %s (%d vs %d)\n", pair.Name, insight.Label, a, bb)
		} else {
			fmt.Fprintf(&b, "- %s: %s lean toward %s (%d vs %d)\n", pair.Name, insight.Label, insight.Direction, a, bb)
		}

		if observed := a + bb; observed != pairCount {
			out.Warnings = append(out.Warnings,
				fmt.Sprintf("pair %q observed %d answers, expected %d; question distribution may be skewed", pair.Name, observed, pairCount))
		}
	}

	out.Text = strings.TrimRight(b.String(), "\n")
	return out
}

// bucketLabel maps a lean value onto its strength label against ascending
// thresholds.
func bucketLabel(lean float64, thresholds [3]float64, labels [4]string) string {
	switch {
	case lean < thresholds[0]:
		return labels[0]
	case lean < thresholds[1]:
		return labels[1]
	case lean < thresholds[2]:
		return labels[2]
	default:
		return labels[3]
	}
}
