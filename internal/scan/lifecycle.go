package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/galleykit/galley/internal/types"
)

// Lifecycle errors callers branch on.
var (
	// ErrSessionStarted is returned when Start is called twice on the
	// same workflow instance.
	ErrSessionStarted = errors.New("session already started")
	// ErrNoSession is returned when a lifecycle call arrives before
	// Start succeeded.
	ErrNoSession = errors.New("session not started")
	// ErrSessionCancelled is returned when Complete is called on a
	// cancelled session.
	ErrSessionCancelled = errors.New("session is cancelled")
)

// Lifecycle owns the session's identity and wraps the gateway with the
// invariants the controller depends on: Start happens at most once,
// recipe records never duplicate, Complete tolerates duplicate "done"
// taps, and Cancel aborts the workflow without touching recipes that
// were already saved.
type Lifecycle struct {
	gateway   Gateway
	sessionID string
}

// NewLifecycle returns a lifecycle manager bound to the gateway.
func NewLifecycle(gateway Gateway) *Lifecycle {
	return &Lifecycle{gateway: gateway}
}

// SessionID returns the persisted session's ID, empty before Start.
func (l *Lifecycle) SessionID() string { return l.sessionID }

// Start creates the session record. At most one call per workflow
// instance succeeds.
func (l *Lifecycle) Start(ctx context.Context, bookName, cookbookID, coverRef string) (string, error) {
	if l.sessionID != "" {
		return "", ErrSessionStarted
	}

	now := time.Now().UTC()
	id, err := l.gateway.CreateSession(ctx, types.ScanSession{
		BookName:      bookName,
		CoverImageRef: coverRef,
		CookbookID:    cookbookID,
		Status:        types.SessionActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	l.sessionID = id
	return id, nil
}

// RecordRecipe appends a saved recipe's ID to the session. Idempotent:
// recording the same ID twice leaves a single entry.
func (l *Lifecycle) RecordRecipe(ctx context.Context, recipeID string) error {
	if l.sessionID == "" {
		return ErrNoSession
	}

	sess, err := l.gateway.GetSession(ctx, l.sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if sess.HasRecipe(recipeID) {
		return nil
	}

	ids := append(append([]string{}, sess.ScannedRecipeIDs...), recipeID)
	if err := l.gateway.UpdateSessionRecipes(ctx, l.sessionID, ids); err != nil {
		return fmt.Errorf("failed to record recipe: %w", err)
	}
	return nil
}

// Complete marks the session completed. Calling it on an already
// completed session is a no-op, tolerating duplicate "done" taps.
func (l *Lifecycle) Complete(ctx context.Context) error {
	if l.sessionID == "" {
		return ErrNoSession
	}

	sess, err := l.gateway.GetSession(ctx, l.sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	switch sess.Status {
	case types.SessionCompleted:
		return nil
	case types.SessionCancelled:
		return ErrSessionCancelled
	}

	if err := l.gateway.UpdateSessionStatus(ctx, l.sessionID, types.SessionCompleted); err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	return nil
}

// Cancel marks the session cancelled. It aborts the workflow, not the
// data already produced: recipes recorded so far stay saved. No-op when
// the session already reached a terminal status, and when Start never
// ran (closing the workflow from the cover step persists nothing).
func (l *Lifecycle) Cancel(ctx context.Context) error {
	if l.sessionID == "" {
		return nil
	}

	sess, err := l.gateway.GetSession(ctx, l.sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if sess.Status.Terminal() {
		return nil
	}

	if err := l.gateway.UpdateSessionStatus(ctx, l.sessionID, types.SessionCancelled); err != nil {
		return fmt.Errorf("failed to cancel session: %w", err)
	}
	return nil
}
