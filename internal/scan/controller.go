package scan

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/galleykit/galley/internal/types"
)

// DefaultExtractTimeout bounds a single extraction call. Expiry surfaces
// as a PROCESSING_ERROR rather than a stuck processing phase.
const DefaultExtractTimeout = 120 * time.Second

// Controller errors for misuse of the workflow surface. Workflow
// failures (upload, extraction, persistence) are not returned here; they
// land in the state's Err and the phase reverts.
var (
	// ErrBusy is returned when a capture arrives while an extraction is
	// already in flight.
	ErrBusy = errors.New("extraction in flight")
	// ErrWrongPhase is returned when an action does not apply to the
	// current phase.
	ErrWrongPhase = errors.New("action not valid in current phase")
	// ErrClosed is returned after the workflow was dismissed.
	ErrClosed = errors.New("workflow closed")
)

// untitledRecipe is used when no page yielded a title.
const untitledRecipe = "Untitled recipe"

// Controller drives one scan-session workflow: capture the cover,
// capture recipe pages, hand each photograph to extraction, accumulate
// multi-page recipes, and persist results through the lifecycle manager.
// It is the single source of truth for what step the user is on and the
// only component that requests state transitions.
type Controller struct {
	id        string
	bookName  string
	gateway   Gateway
	extractor Extractor
	lifecycle *Lifecycle
	logger    *slog.Logger
	timeout   time.Duration

	mu    sync.Mutex
	state State
	acc   *Accumulator

	// pendingRecipeID is set once the current accumulator has been saved,
	// so retrying a failed "done" tap never saves the recipe twice.
	pendingRecipeID string
	pageImageRefs   []string
	saved           []types.RecipePreview

	cancelExtract context.CancelFunc
}

// ControllerConfig configures a workflow instance.
type ControllerConfig struct {
	BookName       string
	Gateway        Gateway
	Extractor      Extractor
	Logger         *slog.Logger
	ExtractTimeout time.Duration
}

// NewController creates a workflow in the cover phase. No session exists
// until the cover is captured or skipped.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ExtractTimeout <= 0 {
		cfg.ExtractTimeout = DefaultExtractTimeout
	}
	return &Controller{
		id:        uuid.New().String(),
		bookName:  cfg.BookName,
		gateway:   cfg.Gateway,
		extractor: cfg.Extractor,
		lifecycle: NewLifecycle(cfg.Gateway),
		logger:    cfg.Logger,
		timeout:   cfg.ExtractTimeout,
		state:     Initial(),
		acc:       NewAccumulator(),
	}
}

// ID returns the workflow instance ID.
func (c *Controller) ID() string { return c.id }

// BookName returns the book this workflow is scanning.
func (c *Controller) BookName() string { return c.bookName }

// SessionID returns the persisted session's ID, empty before creation.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lifecycle.SessionID()
}

// apply runs the transition function and commits the result. Returns the
// effects and whether the event was accepted.
func (c *Controller) apply(ev Event) ([]Effect, bool) {
	next, effects := Transition(c.state, ev)
	accepted := next != c.state || len(effects) > 0
	c.state = next
	return effects, accepted
}

// fail reverts the workflow to the error's recovery phase.
func (c *Controller) fail(err *WorkflowError) {
	c.logger.Warn("scan workflow error",
		"workflow_id", c.id,
		"kind", string(err.Kind),
		"recovery", string(err.Recovery),
		"error", err.Message)
	c.state, _ = Transition(c.state, Failed{Err: err})
}

// CaptureCover handles a cover photograph: upload it, resolve the
// cookbook, create the session, and move to scanning. On failure the
// workflow stays on the cover step with the error surfaced.
func (c *Controller) CaptureCover(ctx context.Context, img []byte, mimeType string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase == PhaseClosed {
		return ErrClosed
	}
	if _, accepted := c.apply(CoverCaptured{}); !accepted {
		return ErrWrongPhase
	}

	coverRef, err := c.gateway.SaveImage(ctx, img, mimeType, "cover")
	if err != nil {
		c.fail(newError(KindUpload, PhaseCover, err))
		return nil
	}
	c.createSession(ctx, coverRef)
	return nil
}

// SkipCover creates the session without a cover photo and moves to
// scanning.
func (c *Controller) SkipCover(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase == PhaseClosed {
		return ErrClosed
	}
	if _, accepted := c.apply(CoverSkipped{}); !accepted {
		return ErrWrongPhase
	}
	c.createSession(ctx, "")
	return nil
}

// createSession resolves the cookbook and starts the session. Callers
// hold the lock.
func (c *Controller) createSession(ctx context.Context, coverRef string) {
	cookbookID, err := c.gateway.ResolveCookbook(ctx, c.bookName, coverRef)
	if err != nil {
		c.fail(newError(KindSession, PhaseCover, err))
		return
	}
	if _, err := c.lifecycle.Start(ctx, c.bookName, cookbookID, coverRef); err != nil {
		c.fail(newError(KindSession, PhaseCover, err))
		return
	}
	c.logger.Info("scan session started",
		"workflow_id", c.id,
		"session_id", c.lifecycle.SessionID(),
		"book", c.bookName,
		"has_cover", coverRef != "")
}

// CapturePage handles a recipe-page photograph: store it, run extraction
// under a bounded timeout, and move to review on success. Captures are
// strictly serialized: a capture during an in-flight extraction returns
// ErrBusy. A result that resolves after the workflow was closed (or
// after a newer capture) is discarded via the generation guard.
func (c *Controller) CapturePage(ctx context.Context, img []byte, mimeType string) error {
	c.mu.Lock()
	if c.state.Phase == PhaseClosed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state.Phase == PhaseProcessing {
		c.mu.Unlock()
		return ErrBusy
	}
	if _, accepted := c.apply(PageCaptured{}); !accepted {
		c.mu.Unlock()
		return ErrWrongPhase
	}
	gen := c.state.Generation

	imageRef, err := c.gateway.SaveImage(ctx, img, mimeType, "page")
	if err != nil {
		c.fail(newError(KindUpload, PhaseScanning, err))
		c.mu.Unlock()
		return nil
	}

	extractCtx, cancel := context.WithTimeout(ctx, c.timeout)
	c.cancelExtract = cancel
	c.mu.Unlock()

	// The only suspension point: run extraction without the lock so the
	// close action can cancel it.
	page, extractErr := c.extractor.Extract(extractCtx, img, mimeType)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelExtract = nil

	if extractErr != nil {
		c.apply(ExtractionFailed{Generation: gen, Err: classifyExtraction(extractErr)})
		return nil
	}

	if _, accepted := c.apply(ExtractionSucceeded{Generation: gen}); !accepted {
		// Cancelled or superseded while extraction was in flight.
		c.logger.Debug("discarding stale extraction result", "workflow_id", c.id, "generation", gen)
		return nil
	}

	c.acc.Add(page)
	c.pageImageRefs = append(c.pageImageRefs, imageRef)
	c.logger.Info("page extracted",
		"workflow_id", c.id,
		"session_id", c.lifecycle.SessionID(),
		"pages", c.acc.Len(),
		"title", page.Title)
	return nil
}

// ContinueRecipe marks the recipe as spanning more pages and returns to
// scanning with the accumulator intact.
func (c *Controller) ContinueRecipe() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase == PhaseClosed {
		return ErrClosed
	}
	if _, accepted := c.apply(ContinueRecipe{}); !accepted {
		return ErrWrongPhase
	}
	return nil
}

// SaveAndScanNext persists the current recipe and returns to scanning
// for a fresh one. On persistence failure the workflow reverts to review
// with nothing discarded.
func (c *Controller) SaveAndScanNext(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase == PhaseClosed {
		return ErrClosed
	}
	effects, accepted := c.apply(SaveAndScanNext{})
	if !accepted {
		return ErrWrongPhase
	}
	c.runEffects(ctx, effects)
	return nil
}

// FinishScanning persists the current recipe, completes the session, and
// moves to the complete screen.
func (c *Controller) FinishScanning(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase == PhaseClosed {
		return ErrClosed
	}
	effects, accepted := c.apply(FinishScanning{})
	if !accepted {
		return ErrWrongPhase
	}
	c.runEffects(ctx, effects)
	return nil
}

// ScanMore reuses the completed session for further scanning.
func (c *Controller) ScanMore() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase == PhaseClosed {
		return ErrClosed
	}
	effects, accepted := c.apply(ScanMore{})
	if !accepted {
		return ErrWrongPhase
	}
	c.runEffects(context.Background(), effects)
	return nil
}

// SetEditing toggles the hand-correction overlay in review.
func (c *Controller) SetEditing(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, accepted := c.apply(EditToggled{On: on}); !accepted {
		return ErrWrongPhase
	}
	return nil
}

// ApplyEdit replaces the reviewed extraction result with the user's
// corrected version. What the user sees in review is the merged recipe,
// so the edit replaces the whole accumulator with a single page.
func (c *Controller) ApplyEdit(edited types.ExtractedPage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase != PhaseReview {
		return ErrWrongPhase
	}
	c.acc.Reset()
	c.acc.Add(edited)
	c.pendingRecipeID = ""
	c.apply(EditToggled{On: false})
	return nil
}

// Close dismisses the workflow. Unless the session already completed,
// it is cancelled; recipes saved so far are never deleted. Any in-flight
// extraction is cancelled and its result discarded.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase == PhaseClosed {
		return nil
	}
	if c.cancelExtract != nil {
		c.cancelExtract()
		c.cancelExtract = nil
	}

	effects, _ := c.apply(Closed{})
	for _, eff := range effects {
		if eff != EffectCancelSession {
			continue
		}
		if err := c.lifecycle.Cancel(ctx); err != nil {
			c.logger.Error("failed to cancel session",
				"workflow_id", c.id,
				"session_id", c.lifecycle.SessionID(),
				"error", err)
			return err
		}
	}
	c.logger.Info("scan workflow closed", "workflow_id", c.id, "session_id", c.lifecycle.SessionID())
	return nil
}

// runEffects executes post-transition effects in order, stopping at the
// first failure. Callers hold the lock.
func (c *Controller) runEffects(ctx context.Context, effects []Effect) {
	for _, eff := range effects {
		switch eff {
		case EffectPersistRecipe:
			if err := c.persistCurrent(ctx); err != nil {
				c.fail(newError(KindSession, PhaseReview, err))
				return
			}
		case EffectCompleteSession:
			if err := c.lifecycle.Complete(ctx); err != nil {
				c.fail(newError(KindSession, PhaseReview, err))
				return
			}
		case EffectResetAccumulator:
			c.acc.Reset()
			c.pendingRecipeID = ""
			c.pageImageRefs = nil
		}
	}
}

// persistCurrent saves the merged recipe once and records it against the
// session. The save is skipped when the current accumulator was already
// persisted, so retrying after a failed completion cannot duplicate the
// recipe.
func (c *Controller) persistCurrent(ctx context.Context) error {
	if c.pendingRecipeID == "" {
		merged := Merge(c.acc.Pages())
		recipe := types.FromExtractedPage(merged)
		if strings.TrimSpace(recipe.Title) == "" {
			recipe.Title = untitledRecipe
		}
		recipe.CookbookID = c.cookbookID()
		recipe.SessionID = c.lifecycle.SessionID()
		recipe.PageImageRefs = append([]string{}, c.pageImageRefs...)
		recipe.CreatedAt = time.Now().UTC()

		id, err := c.gateway.SaveRecipe(ctx, recipe)
		if err != nil {
			return err
		}
		recipe.ID = id
		c.pendingRecipeID = id
		c.saved = append(c.saved, types.PreviewOf(recipe))
		c.logger.Info("recipe saved",
			"workflow_id", c.id,
			"session_id", c.lifecycle.SessionID(),
			"recipe_id", id,
			"pages", c.acc.Len(),
			"title", recipe.Title)
	}

	return c.lifecycle.RecordRecipe(ctx, c.pendingRecipeID)
}

// cookbookID loads the session's cookbook ref. Callers hold the lock.
func (c *Controller) cookbookID() string {
	if c.lifecycle.SessionID() == "" {
		return ""
	}
	sess, err := c.gateway.GetSession(context.Background(), c.lifecycle.SessionID())
	if err != nil || sess == nil {
		return ""
	}
	return sess.CookbookID
}

// Snapshot is a read-only view of the workflow for rendering.
type Snapshot struct {
	WorkflowID string                `json:"workflow_id"`
	SessionID  string                `json:"session_id,omitempty"`
	BookName   string                `json:"book_name"`
	State      State                 `json:"state"`
	PageCount  int                   `json:"page_count"`
	Current    *types.ExtractedPage  `json:"current_recipe,omitempty"`
	Saved      []types.RecipePreview `json:"saved_recipes"`
}

// Snapshot returns the current view. The merged current recipe is
// included only while reviewing.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		WorkflowID: c.id,
		SessionID:  c.lifecycle.SessionID(),
		BookName:   c.bookName,
		State:      c.state,
		PageCount:  c.acc.Len(),
		Saved:      append([]types.RecipePreview{}, c.saved...),
	}
	if c.state.Phase == PhaseReview && c.acc.Len() > 0 {
		merged := Merge(c.acc.Pages())
		snap.Current = &merged
	}
	return snap
}
