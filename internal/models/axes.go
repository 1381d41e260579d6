// Package models: the closed axis-key enumeration.
//
// Axis keys are the only identifiers ever used to address ValueProfile
// counters. They are mapped onto fixed struct fields through a switch, never
// interpolated into queries, so schema drift in the question bank cannot
// reach the store layer.
package models

// AxisKey names one pole of an opposing personality-trait pair.
type AxisKey string

const (
	AxisHarmony    AxisKey = "harmony"
	AxisCandor     AxisKey = "candor"
	AxisIntuition  AxisKey = "intuition"
	AxisEvidence   AxisKey = "evidence"
	AxisNovelty    AxisKey = "novelty"
	AxisContinuity AxisKey = "continuity"
	AxisCommunion  AxisKey = "communion"
	AxisSolitude   AxisKey = "solitude"
	AxisWonder     AxisKey = "wonder"
	AxisMastery    AxisKey = "mastery"
)

// AllAxisKeys lists every axis key in pair order (A pole before B pole).
var AllAxisKeys = []AxisKey{
	AxisHarmony, AxisCandor,
	AxisIntuition, AxisEvidence,
	AxisNovelty, AxisContinuity,
	AxisCommunion, AxisSolitude,
	AxisWonder, AxisMastery,
}

// AxisPair groups the two opposing poles of one value axis.
type AxisPair struct {
	Name string
	A    AxisKey
	B    AxisKey
}

// AxisPairs lists the five opposing pairs in their canonical order. Summary
// rendering and synthesis prompts iterate this slice, so its order is part
// of the deterministic output contract.
var AxisPairs = []AxisPair{
	{Name: "harmony vs candor", A: AxisHarmony, B: AxisCandor},
	{Name: "intuition vs evidence", A: AxisIntuition, B: AxisEvidence},
	{Name: "novelty vs continuity", A: AxisNovelty, B: AxisContinuity},
	{Name: "communion vs solitude", A: AxisCommunion, B: AxisSolitude},
	{Name: "wonder vs mastery", A: AxisWonder, B: AxisMastery},
}

// IsValidAxisKey checks membership in the closed axis-key set.
func IsValidAxisKey(k AxisKey) bool {
	switch k {
	case AxisHarmony, AxisCandor, AxisIntuition, AxisEvidence, AxisNovelty,
		AxisContinuity, AxisCommunion, AxisSolitude, AxisWonder, AxisMastery:
		return true
	default:
		return false
	}
}
