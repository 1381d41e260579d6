// Package recovery restores a consistent installation state after a
// process restart.
//
// Kiosk connections do not survive a restart, so any session still marked
// active belongs to a visitor who is long gone. Those sessions are closed
// as timeouts, which discards their partial answers instead of folding
// them into the value profile.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/atelier-anima/anima/internal/models"
	"github.com/atelier-anima/anima/internal/store"
)

// SweepOrphanedSessions ends every session left active by a previous
// process. Returns the number of sessions closed.
func SweepOrphanedSessions(ctx context.Context, st store.Store) (int, error) {
	ended, err := st.EndAllActiveSessions(ctx, models.EndReasonTimeout, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep orphaned sessions: %w", err)
	}
	if ended > 0 {
		slog.Info("closed orphaned sessions from previous run", "count", ended)
	}
	return ended, nil
}

// VerifyInstallationState confirms the singleton rows load and are
// coherent before the server starts taking traffic. A dialogue phase
// without a persona means the store was tampered with or a migration
// failed half-way.
func VerifyInstallationState(ctx context.Context, st store.Store) error {
	global, err := st.GetGlobalState(ctx)
	if err != nil {
		return fmt.Errorf("failed to load global state: %w", err)
	}
	if !models.IsValidPhase(global.Phase) {
		return fmt.Errorf("%w: global phase %q is not recognized", models.ErrConfig, global.Phase)
	}
	if global.Phase == models.PhaseDialogue && global.PersonaText == "" {
		return fmt.Errorf("%w: dialogue phase with no persona text", models.ErrConfig)
	}
	if _, err := st.GetValueProfile(ctx); err != nil {
		return fmt.Errorf("failed to load value profile: %w", err)
	}
	slog.Debug("installation state verified", "phase", global.Phase, "cycle", global.CycleNumber)
	return nil
}
