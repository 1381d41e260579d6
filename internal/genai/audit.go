package genai

import (
	"encoding/json"
	"io"
	"log/slog"
	"time"
)

// auditBufferSize bounds the number of pending audit records. Records past
// the bound are dropped; audit logging must never block the call path.
const auditBufferSize = 256

// AuditRecord captures one raw provider exchange for offline inspection.
type AuditRecord struct {
	Time     time.Time `json:"time"`
	Model    string    `json:"model"`
	Prompt   string    `json:"prompt"`
	Response string    `json:"response,omitempty"`
	Error    string    `json:"error,omitempty"`
	Attempt  int       `json:"attempt"`
}

// AuditLogger writes provider exchanges as JSON lines on a background
// goroutine.
type AuditLogger struct {
	ch   chan AuditRecord
	done chan struct{}
}

// NewAuditLogger starts an audit logger writing to w. Close the logger to
// flush and stop the writer goroutine; w is not closed.
func NewAuditLogger(w io.Writer) *AuditLogger {
	a := &AuditLogger{
		ch:   make(chan AuditRecord, auditBufferSize),
		done: make(chan struct{}),
	}
	go a.run(w)
	return a
}

func (a *AuditLogger) run(w io.Writer) {
	defer close(a.done)
	enc := json.NewEncoder(w)
	for rec := range a.ch {
		if err := enc.Encode(rec); err != nil {
			slog.Warn("genai audit write failed", "error", err)
		}
	}
}

// Log enqueues a record without blocking. Safe on a nil logger. Records are
// dropped when the buffer is full.
func (a *AuditLogger) Log(rec AuditRecord) {
	if a == nil {
		return
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}
	select {
	case a.ch <- rec:
	default:
		slog.Debug("genai audit buffer full, dropping record")
	}
}

// Close stops the logger after draining queued records.
func (a *AuditLogger) Close() {
	if a == nil {
		return
	}
	close(a.ch)
	<-a.done
}
