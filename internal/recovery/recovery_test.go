package recovery

import (
	"context"
	"testing"
	"time"

	"github.com/atelier-anima/anima/internal/models"
	"github.com/atelier-anima/anima/internal/store"
)

func TestSweepOrphanedSessions(t *testing.T) {
	st := store.NewInMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"s1", "s2"} {
		if err := st.CreateSession(ctx, &models.VisitorSession{ID: id, VisitorName: "v", StartedAt: time.Now()}); err != nil {
			t.Fatalf("CreateSession(%s): %v", id, err)
		}
	}
	// One session already closed; the sweep must not touch it.
	if _, err := st.MarkSessionEnded(ctx, "s1", models.EndReasonCompleted, time.Now()); err != nil {
		t.Fatalf("MarkSessionEnded: %v", err)
	}

	ended, err := SweepOrphanedSessions(ctx, st)
	if err != nil {
		t.Fatalf("SweepOrphanedSessions: %v", err)
	}
	if ended != 1 {
		t.Errorf("expected 1 orphaned session closed, got %d", ended)
	}

	s2, err := st.GetSession(ctx, "s2")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !s2.Ended() || s2.EndReason != models.EndReasonTimeout {
		t.Errorf("expected s2 ended with timeout reason, got ended=%v reason=%q", s2.Ended(), s2.EndReason)
	}

	s1, err := st.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if s1.EndReason != models.EndReasonCompleted {
		t.Errorf("sweep must not rewrite the reason of an already-ended session, got %q", s1.EndReason)
	}
}

func TestVerifyInstallationState(t *testing.T) {
	st := store.NewInMemoryStore()
	ctx := context.Background()

	if err := VerifyInstallationState(ctx, st); err != nil {
		t.Fatalf("fresh store should verify cleanly: %v", err)
	}

	// A persona flip moves the phase; both fields travel together.
	if err := st.SetPersona(ctx, "I am formed.", "summary", time.Now()); err != nil {
		t.Fatalf("SetPersona: %v", err)
	}
	if err := VerifyInstallationState(ctx, st); err != nil {
		t.Fatalf("dialogue phase with persona should verify cleanly: %v", err)
	}
}
