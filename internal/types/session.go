package types

import "time"

// SessionStatus is the lifecycle status of a scan session.
type SessionStatus string

const (
	// SessionActive means the workflow is still in progress.
	SessionActive SessionStatus = "active"
	// SessionCompleted means the user finished the workflow normally.
	SessionCompleted SessionStatus = "completed"
	// SessionCancelled means the workflow was abandoned before completion.
	SessionCancelled SessionStatus = "cancelled"
)

// ParseSessionStatus converts a string to a SessionStatus.
// Unrecognized values map to SessionActive.
func ParseSessionStatus(s string) SessionStatus {
	switch s {
	case "completed":
		return SessionCompleted
	case "cancelled":
		return SessionCancelled
	default:
		return SessionActive
	}
}

// Terminal reports whether the status is immutable.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

// CanTransitionTo reports whether a status change is legal.
// Terminal states accept no transitions.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	if s.Terminal() {
		return false
	}
	return next == SessionCompleted || next == SessionCancelled
}

// ScanSession is one scanning pass over a physical book. The session
// exclusively owns its recipe-ID list and status; the recipes themselves
// are owned by the recipe store and only referenced here.
type ScanSession struct {
	ID            string `json:"id"`
	BookName      string `json:"book_name"`
	CoverImageRef string `json:"cover_image_ref,omitempty"`
	CookbookID    string `json:"cookbook_id,omitempty"`

	// ScannedRecipeIDs is ordered by save time and contains no duplicates.
	ScannedRecipeIDs []string `json:"scanned_recipe_ids"`

	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// HasRecipe reports whether the session already references the recipe.
func (s *ScanSession) HasRecipe(recipeID string) bool {
	for _, id := range s.ScannedRecipeIDs {
		if id == recipeID {
			return true
		}
	}
	return false
}
