package dialogue

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultInactivityDelay is how long a session sits silent before a nudge
// fires.
const DefaultInactivityDelay = 90 * time.Second

// InactivityWatcher tracks per-session silence and fires a callback when a
// visitor stops interacting. Timers are in-process only; they are rebuilt
// naturally as requests arrive after a restart.
type InactivityWatcher struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	delay  time.Duration
	onIdle func(sessionID string)
}

// NewInactivityWatcher creates a watcher invoking onIdle after delay of
// session silence.
func NewInactivityWatcher(delay time.Duration, onIdle func(sessionID string)) *InactivityWatcher {
	if delay <= 0 {
		delay = DefaultInactivityDelay
	}
	return &InactivityWatcher{
		timers: make(map[string]*time.Timer),
		delay:  delay,
		onIdle: onIdle,
	}
}

// Touch resets the session's inactivity timer, starting one if needed.
func (w *InactivityWatcher) Touch(sessionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[sessionID]; ok {
		t.Reset(w.delay)
		return
	}
	w.timers[sessionID] = time.AfterFunc(w.delay, func() {
		slog.Debug("inactivity timer fired", "session", sessionID)
		w.mu.Lock()
		delete(w.timers, sessionID)
		w.mu.Unlock()
		w.onIdle(sessionID)
	})
}

// Cancel stops tracking the session, typically on session end.
func (w *InactivityWatcher) Cancel(sessionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[sessionID]; ok {
		t.Stop()
		delete(w.timers, sessionID)
	}
}

// Stop cancels all timers.
func (w *InactivityWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, t := range w.timers {
		t.Stop()
		delete(w.timers, id)
	}
}
