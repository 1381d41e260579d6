package dialogue

import (
	"strings"
	"testing"
)

func TestParseTwoLine(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantParsed bool
		wantReply  string
		wantMemory string
	}{
		{
			name:       "well formed",
			raw:        "REPLY: Hello there.\nMEMORY: Visitor greeted the entity.",
			wantParsed: true,
			wantReply:  "Hello there.",
			wantMemory: "Visitor greeted the entity.",
		},
		{
			name:       "lowercase labels",
			raw:        "reply: Hi.\nmemory: greeting.",
			wantParsed: true,
			wantReply:  "Hi.",
			wantMemory: "greeting.",
		},
		{
			name:       "multi-line reply folds into one",
			raw:        "REPLY: First part.\nSecond part.\nMEMORY: digest.",
			wantParsed: true,
			wantReply:  "First part. Second part.",
			wantMemory: "digest.",
		},
		{
			name:       "missing memory line",
			raw:        "REPLY: Just a reply.",
			wantParsed: true,
			wantReply:  "Just a reply.",
			wantMemory: "",
		},
		{
			name:       "no labels at all degrades to raw",
			raw:        "I am just talking without structure.",
			wantParsed: false,
			wantReply:  "I am just talking without structure.",
		},
		{
			name:       "memory only degrades to raw",
			raw:        "MEMORY: only a digest",
			wantParsed: false,
			wantReply:  "MEMORY: only a digest",
		},
		{
			name:       "surrounding whitespace",
			raw:        "\n\n  REPLY: trimmed.  \n  MEMORY: kept.  \n",
			wantParsed: true,
			wantReply:  "trimmed.",
			wantMemory: "kept.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTwoLine(tt.raw)
			if got.Parsed != tt.wantParsed {
				t.Errorf("Parsed = %v, want %v", got.Parsed, tt.wantParsed)
			}
			if got.Reply != tt.wantReply {
				t.Errorf("Reply = %q, want %q", got.Reply, tt.wantReply)
			}
			if got.Parsed && got.Memory != tt.wantMemory {
				t.Errorf("Memory = %q, want %q", got.Memory, tt.wantMemory)
			}
		})
	}
}

func TestCapText(t *testing.T) {
	if got := capText("short", 10); got != "short" {
		t.Errorf("capText should not touch text under the cap, got %q", got)
	}
	if got := capText("abcdef", 3); got != "abc" {
		t.Errorf("capText = %q, want %q", got, "abc")
	}

	// Truncation must never split a multi-byte rune.
	s := strings.Repeat("é", 10)
	got := capText(s, 5)
	if len(got) > 5 {
		t.Errorf("capText result is %d bytes, cap was 5", len(got))
	}
	for _, r := range got {
		if r != 'é' {
			t.Errorf("capText corrupted a rune: %q", got)
		}
	}
}
