package scan

import (
	"context"

	"github.com/galleykit/galley/internal/types"
)

// Gateway is the persistence collaborator the workflow depends on. All
// operations are scoped to the authenticated user by the implementation;
// the workflow never sees another user's data.
type Gateway interface {
	// CreateSession persists a new session and returns its ID.
	CreateSession(ctx context.Context, s types.ScanSession) (string, error)

	// GetSession loads a session by ID.
	GetSession(ctx context.Context, id string) (*types.ScanSession, error)

	// UpdateSessionRecipes replaces the session's ordered recipe-ID list.
	UpdateSessionRecipes(ctx context.Context, id string, recipeIDs []string) error

	// UpdateSessionStatus moves the session to a new lifecycle status.
	UpdateSessionStatus(ctx context.Context, id string, status types.SessionStatus) error

	// SaveRecipe persists a recipe and returns its ID.
	SaveRecipe(ctx context.Context, r types.Recipe) (string, error)

	// ResolveCookbook returns the cookbook with the given name, creating
	// it if none exists yet.
	ResolveCookbook(ctx context.Context, name, coverRef string) (string, error)

	// SaveImage stores a captured photograph and returns an opaque
	// storage ref. The hint names the image's role ("cover", "page").
	SaveImage(ctx context.Context, img []byte, mimeType, hint string) (string, error)
}

// Extractor is the AI extraction collaborator: one photographed page in,
// structured recipe-page data out. Implementations must be safe to call
// again with the same image after a failure.
type Extractor interface {
	Extract(ctx context.Context, image []byte, mimeType string) (types.ExtractedPage, error)
}
