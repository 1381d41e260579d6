package genai

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
)

// syncBuffer guards a bytes.Buffer for the writer goroutine.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestAuditLoggerWritesJSONLines(t *testing.T) {
	buf := &syncBuffer{}
	a := NewAuditLogger(buf)

	a.Log(AuditRecord{Model: "m", Prompt: "p1", Response: "r1", Attempt: 1})
	a.Log(AuditRecord{Model: "m", Prompt: "p2", Error: "boom", Attempt: 2})
	a.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 audit lines, got %d: %q", len(lines), buf.String())
	}

	var rec AuditRecord
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("first line is not valid JSON: %v", err)
	}
	if rec.Prompt != "p1" || rec.Response != "r1" {
		t.Errorf("unexpected first record: %+v", rec)
	}
	if rec.Time.IsZero() {
		t.Error("logger should stamp records with a time")
	}

	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatalf("second line is not valid JSON: %v", err)
	}
	if rec.Error != "boom" {
		t.Errorf("unexpected second record: %+v", rec)
	}
}

func TestAuditLoggerNilSafe(t *testing.T) {
	var a *AuditLogger
	a.Log(AuditRecord{Prompt: "p"})
	a.Close()
}
