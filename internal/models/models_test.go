package models

import "testing"

func TestIsValidPhase(t *testing.T) {
	if !IsValidPhase(PhaseInterview) || !IsValidPhase(PhaseDialogue) {
		t.Error("known phases should be valid")
	}
	if IsValidPhase(Phase("sleeping")) {
		t.Error("unknown phase should be invalid")
	}
}

func TestIsValidEndReason(t *testing.T) {
	for _, r := range []EndReason{EndReasonCompleted, EndReasonTimeout, EndReasonVisitorLeft, EndReasonCycleReset, EndReasonPolicy} {
		if !IsValidEndReason(r) {
			t.Errorf("reason %q should be valid", r)
		}
	}
	if IsValidEndReason(EndReason("rage_quit")) {
		t.Error("unknown reason should be invalid")
	}
}

func TestIsValidChoice(t *testing.T) {
	if !IsValidChoice(ChoiceA) || !IsValidChoice(ChoiceB) {
		t.Error("A and B should be valid choices")
	}
	if IsValidChoice(Choice("C")) || IsValidChoice(Choice("a")) {
		t.Error("only uppercase A and B are valid choices")
	}
}

func TestQuestionValueKeyFor(t *testing.T) {
	q := Question{ValueAKey: AxisHarmony, ValueBKey: AxisCandor}
	if got := q.ValueKeyFor(ChoiceA); got != AxisHarmony {
		t.Errorf("choice A should map to harmony, got %q", got)
	}
	if got := q.ValueKeyFor(ChoiceB); got != AxisCandor {
		t.Errorf("choice B should map to candor, got %q", got)
	}
}

func TestValueProfileScoreAddTotal(t *testing.T) {
	var p ValueProfile
	if p.Total() != 0 {
		t.Errorf("fresh profile total should be 0, got %d", p.Total())
	}

	for i, k := range AllAxisKeys {
		p.Add(k, i+1)
	}
	want := 0
	for i := range AllAxisKeys {
		want += i + 1
	}
	if p.Total() != want {
		t.Errorf("total = %d, want %d", p.Total(), want)
	}
	if p.Score(AxisHarmony) != 1 || p.Score(AxisMastery) != len(AllAxisKeys) {
		t.Errorf("per-axis scores wrong: harmony=%d mastery=%d", p.Score(AxisHarmony), p.Score(AxisMastery))
	}

	// Unknown keys must neither read nor mutate anything.
	before := p.Total()
	p.Add(AxisKey("charisma"), 100)
	if p.Total() != before {
		t.Error("unknown axis key must not mutate the profile")
	}
	if p.Score(AxisKey("charisma")) != 0 {
		t.Error("unknown axis key must read as zero")
	}
}

func TestAxisPairsCoverAllKeys(t *testing.T) {
	seen := make(map[AxisKey]bool)
	for _, pair := range AxisPairs {
		seen[pair.A] = true
		seen[pair.B] = true
	}
	if len(seen) != len(AllAxisKeys) {
		t.Errorf("pairs cover %d keys, want %d", len(seen), len(AllAxisKeys))
	}
	for _, k := range AllAxisKeys {
		if !seen[k] {
			t.Errorf("axis key %q missing from pairs", k)
		}
		if !IsValidAxisKey(k) {
			t.Errorf("axis key %q should be valid", k)
		}
	}
	if IsValidAxisKey(AxisKey("chaos")) {
		t.Error("unknown axis key should be invalid")
	}
}

func TestSessionEnded(t *testing.T) {
	s := VisitorSession{}
	if s.Ended() {
		t.Error("session without EndedAt should not report ended")
	}
}
