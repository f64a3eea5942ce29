package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/galleykit/galley/internal/types"
)

func newTestController(g *fakeGateway, x Extractor) *Controller {
	return NewController(ControllerConfig{
		BookName:  "Joy of Cooking",
		Gateway:   g,
		Extractor: x,
	})
}

var photo = []byte("not really a jpeg")

func TestController_SinglePageRecipe(t *testing.T) {
	g := newFakeGateway()
	x := &fakeExtractor{}
	x.queue(types.ExtractedPage{
		Title:        "Omelette",
		Ingredients:  []types.Ingredient{{Name: "eggs", Quantity: "3"}},
		Instructions: []string{"beat eggs", "cook"},
		Servings:     1,
	}, nil)

	c := newTestController(g, x)
	ctx := context.Background()

	if err := c.SkipCover(ctx); err != nil {
		t.Fatalf("skip cover: %v", err)
	}
	if got := c.Snapshot().State.Phase; got != PhaseScanning {
		t.Fatalf("phase after skip = %s", got)
	}
	if c.SessionID() == "" {
		t.Fatal("session not created on cover skip")
	}

	if err := c.CapturePage(ctx, photo, "image/jpeg"); err != nil {
		t.Fatalf("capture: %v", err)
	}
	snap := c.Snapshot()
	if snap.State.Phase != PhaseReview {
		t.Fatalf("phase after extraction = %s", snap.State.Phase)
	}
	if snap.Current == nil || snap.Current.Title != "Omelette" {
		t.Fatalf("review recipe = %+v", snap.Current)
	}

	if err := c.FinishScanning(ctx); err != nil {
		t.Fatalf("finish: %v", err)
	}

	sess := g.session(c.SessionID())
	if sess.Status != types.SessionCompleted {
		t.Errorf("session status = %s, want completed", sess.Status)
	}
	if len(sess.ScannedRecipeIDs) != 1 {
		t.Errorf("recorded recipes = %v, want exactly 1", sess.ScannedRecipeIDs)
	}
	if g.recipeCount() != 1 {
		t.Errorf("saved recipes = %d, want 1", g.recipeCount())
	}
}

func TestController_MultiPageRecipe(t *testing.T) {
	g := newFakeGateway()
	x := &fakeExtractor{}
	x.queue(types.ExtractedPage{
		Title:        "Cassoulet",
		Ingredients:  []types.Ingredient{{Name: "beans"}},
		Instructions: []string{"soak beans"},
		PageNumber:   1,
	}, nil)
	x.queue(types.ExtractedPage{
		Ingredients:  []types.Ingredient{{Name: "sausage"}},
		Instructions: []string{"brown sausage", "bake"},
		PageNumber:   2,
	}, nil)

	c := newTestController(g, x)
	ctx := context.Background()

	if err := c.SkipCover(ctx); err != nil {
		t.Fatalf("skip cover: %v", err)
	}
	if err := c.CapturePage(ctx, photo, "image/jpeg"); err != nil {
		t.Fatalf("capture page 1: %v", err)
	}
	if err := c.ContinueRecipe(); err != nil {
		t.Fatalf("continue: %v", err)
	}
	if !c.Snapshot().State.MultiPage {
		t.Fatal("multi-page mode not active")
	}
	if err := c.CapturePage(ctx, photo, "image/jpeg"); err != nil {
		t.Fatalf("capture page 2: %v", err)
	}

	snap := c.Snapshot()
	if snap.PageCount != 2 {
		t.Fatalf("page count = %d", snap.PageCount)
	}
	if snap.Current == nil {
		t.Fatal("no merged recipe in review")
	}
	if len(snap.Current.Ingredients) != 2 {
		t.Errorf("merged ingredients = %+v", snap.Current.Ingredients)
	}
	wantSteps := []string{"soak beans", "brown sausage", "bake"}
	if len(snap.Current.Instructions) != len(wantSteps) {
		t.Fatalf("merged instructions = %v", snap.Current.Instructions)
	}
	for i, step := range wantSteps {
		if snap.Current.Instructions[i] != step {
			t.Errorf("instructions[%d] = %q, want %q", i, snap.Current.Instructions[i], step)
		}
	}

	if err := c.FinishScanning(ctx); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if len(g.session(c.SessionID()).ScannedRecipeIDs) != 1 {
		t.Errorf("multi-page recipe saved as more than one record")
	}
}

func TestController_ExtractionFailureRecovery(t *testing.T) {
	g := newFakeGateway()
	x := &fakeExtractor{}
	x.queue(types.ExtractedPage{}, errors.New("model returned garbage"))
	x.queue(types.ExtractedPage{Title: "Second Try"}, nil)

	c := newTestController(g, x)
	ctx := context.Background()

	if err := c.SkipCover(ctx); err != nil {
		t.Fatalf("skip cover: %v", err)
	}
	if err := c.CapturePage(ctx, photo, "image/jpeg"); err != nil {
		t.Fatalf("capture: %v", err)
	}

	snap := c.Snapshot()
	if snap.State.Phase != PhaseScanning {
		t.Fatalf("phase after failure = %s, want scanning", snap.State.Phase)
	}
	if snap.State.Err == nil || snap.State.Err.Kind != KindExtraction {
		t.Fatalf("surfaced error = %+v, want EXTRACTION_FAILED", snap.State.Err)
	}
	if got := len(g.session(c.SessionID()).ScannedRecipeIDs); got != 0 {
		t.Errorf("failure mutated session: %d recipes recorded", got)
	}

	// Retry with a fresh photo succeeds normally and clears the error.
	if err := c.CapturePage(ctx, photo, "image/jpeg"); err != nil {
		t.Fatalf("retry capture: %v", err)
	}
	snap = c.Snapshot()
	if snap.State.Phase != PhaseReview || snap.State.Err != nil {
		t.Errorf("after retry: phase=%s err=%+v", snap.State.Phase, snap.State.Err)
	}
}

func TestController_TimeoutIsProcessingError(t *testing.T) {
	g := newFakeGateway()
	x := &fakeExtractor{block: make(chan struct{})}

	c := NewController(ControllerConfig{
		BookName:       "Joy of Cooking",
		Gateway:        g,
		Extractor:      x,
		ExtractTimeout: 20 * time.Millisecond,
	})
	ctx := context.Background()

	if err := c.SkipCover(ctx); err != nil {
		t.Fatalf("skip cover: %v", err)
	}
	if err := c.CapturePage(ctx, photo, "image/jpeg"); err != nil {
		t.Fatalf("capture: %v", err)
	}

	snap := c.Snapshot()
	if snap.State.Phase != PhaseScanning {
		t.Fatalf("phase = %s, want scanning", snap.State.Phase)
	}
	if snap.State.Err == nil || snap.State.Err.Kind != KindProcessing {
		t.Errorf("err = %+v, want PROCESSING_ERROR", snap.State.Err)
	}
}

func TestController_CancelAfterSavesPreservesRecipes(t *testing.T) {
	g := newFakeGateway()
	x := &fakeExtractor{}
	x.queue(types.ExtractedPage{Title: "First"}, nil)
	x.queue(types.ExtractedPage{Title: "Second"}, nil)

	c := newTestController(g, x)
	ctx := context.Background()

	if err := c.SkipCover(ctx); err != nil {
		t.Fatalf("skip cover: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := c.CapturePage(ctx, photo, "image/jpeg"); err != nil {
			t.Fatalf("capture %d: %v", i+1, err)
		}
		if i == 0 {
			if err := c.SaveAndScanNext(ctx); err != nil {
				t.Fatalf("save and scan next: %v", err)
			}
		}
	}
	if err := c.SaveAndScanNext(ctx); err != nil {
		t.Fatalf("save second: %v", err)
	}

	if err := c.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	sess := g.session(c.SessionID())
	if sess.Status != types.SessionCancelled {
		t.Errorf("status = %s, want cancelled", sess.Status)
	}
	if len(sess.ScannedRecipeIDs) != 2 {
		t.Errorf("cancel dropped recipes: %v", sess.ScannedRecipeIDs)
	}
	if g.recipeCount() != 2 {
		t.Errorf("saved recipes = %d, want 2 still queryable", g.recipeCount())
	}
}

func TestController_BusyGuardRefusesConcurrentCapture(t *testing.T) {
	g := newFakeGateway()
	x := &fakeExtractor{
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}

	c := newTestController(g, x)
	ctx := context.Background()

	if err := c.SkipCover(ctx); err != nil {
		t.Fatalf("skip cover: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- c.CapturePage(ctx, photo, "image/jpeg") }()
	<-x.started

	if err := c.CapturePage(ctx, photo, "image/jpeg"); !errors.Is(err, ErrBusy) {
		t.Errorf("second capture err = %v, want ErrBusy", err)
	}

	close(x.block)
	if err := <-done; err != nil {
		t.Fatalf("first capture: %v", err)
	}
}

func TestController_CloseDiscardsInFlightExtraction(t *testing.T) {
	g := newFakeGateway()
	x := &fakeExtractor{
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	x.queue(types.ExtractedPage{Title: "Too Late"}, nil)

	c := newTestController(g, x)
	ctx := context.Background()

	if err := c.SkipCover(ctx); err != nil {
		t.Fatalf("skip cover: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- c.CapturePage(ctx, photo, "image/jpeg") }()
	<-x.started

	if err := c.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	close(x.block)
	if err := <-done; err != nil {
		t.Fatalf("capture after close: %v", err)
	}

	snap := c.Snapshot()
	if snap.State.Phase != PhaseClosed {
		t.Errorf("phase = %s, want closed", snap.State.Phase)
	}
	if snap.PageCount != 0 {
		t.Errorf("late extraction result was kept: %d pages", snap.PageCount)
	}
	if g.session(c.SessionID()).Status != types.SessionCancelled {
		t.Errorf("session not cancelled")
	}
}

func TestController_CoverUploadFailureStaysOnCover(t *testing.T) {
	g := newFakeGateway()
	g.failSaveImage = errors.New("disk full")
	c := newTestController(g, &fakeExtractor{})
	ctx := context.Background()

	if err := c.CaptureCover(ctx, photo, "image/jpeg"); err != nil {
		t.Fatalf("capture cover: %v", err)
	}

	snap := c.Snapshot()
	if snap.State.Phase != PhaseCover {
		t.Fatalf("phase = %s, want cover", snap.State.Phase)
	}
	if snap.State.Err == nil || snap.State.Err.Kind != KindUpload {
		t.Fatalf("err = %+v, want UPLOAD_ERROR", snap.State.Err)
	}

	// Retry succeeds once the store recovers.
	if err := c.CaptureCover(ctx, photo, "image/jpeg"); err != nil {
		t.Fatalf("retry cover: %v", err)
	}
	if got := c.Snapshot().State.Phase; got != PhaseScanning {
		t.Errorf("phase after retry = %s", got)
	}
}

func TestController_SaveFailureRevertsToReviewWithoutDataLoss(t *testing.T) {
	g := newFakeGateway()
	g.failSaveRecipe = errors.New("defra write failed")
	x := &fakeExtractor{}
	x.queue(types.ExtractedPage{Title: "Fragile"}, nil)

	c := newTestController(g, x)
	ctx := context.Background()

	if err := c.SkipCover(ctx); err != nil {
		t.Fatalf("skip cover: %v", err)
	}
	if err := c.CapturePage(ctx, photo, "image/jpeg"); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if err := c.FinishScanning(ctx); err != nil {
		t.Fatalf("finish: %v", err)
	}

	snap := c.Snapshot()
	if snap.State.Phase != PhaseReview {
		t.Fatalf("phase = %s, want review", snap.State.Phase)
	}
	if snap.State.Err == nil || snap.State.Err.Kind != KindSession {
		t.Fatalf("err = %+v, want SESSION_ERROR", snap.State.Err)
	}
	if snap.PageCount != 1 {
		t.Fatalf("extracted page lost on save failure")
	}

	// Retrying "done" saves exactly one recipe and completes.
	if err := c.FinishScanning(ctx); err != nil {
		t.Fatalf("retry finish: %v", err)
	}
	if g.recipeCount() != 1 {
		t.Errorf("recipes = %d, want exactly 1", g.recipeCount())
	}
	if g.session(c.SessionID()).Status != types.SessionCompleted {
		t.Errorf("session not completed after retry")
	}
}

func TestController_CompleteFailureRetryDoesNotDuplicateRecipe(t *testing.T) {
	g := newFakeGateway()
	g.failStatusOnce = errors.New("defra unavailable")
	x := &fakeExtractor{}
	x.queue(types.ExtractedPage{Title: "Once Only"}, nil)

	c := newTestController(g, x)
	ctx := context.Background()

	if err := c.SkipCover(ctx); err != nil {
		t.Fatalf("skip cover: %v", err)
	}
	if err := c.CapturePage(ctx, photo, "image/jpeg"); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if err := c.FinishScanning(ctx); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if got := c.Snapshot().State.Phase; got != PhaseReview {
		t.Fatalf("phase after complete failure = %s, want review", got)
	}

	if err := c.FinishScanning(ctx); err != nil {
		t.Fatalf("retry finish: %v", err)
	}
	if g.recipeCount() != 1 {
		t.Errorf("retry duplicated the recipe: %d saved", g.recipeCount())
	}
	sess := g.session(c.SessionID())
	if sess.Status != types.SessionCompleted || len(sess.ScannedRecipeIDs) != 1 {
		t.Errorf("session = %+v", sess)
	}
}

func TestController_ScanMoreReusesSession(t *testing.T) {
	g := newFakeGateway()
	x := &fakeExtractor{}
	x.queue(types.ExtractedPage{Title: "First"}, nil)
	x.queue(types.ExtractedPage{Title: "Second"}, nil)

	c := newTestController(g, x)
	ctx := context.Background()

	if err := c.SkipCover(ctx); err != nil {
		t.Fatalf("skip cover: %v", err)
	}
	if err := c.CapturePage(ctx, photo, "image/jpeg"); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if err := c.FinishScanning(ctx); err != nil {
		t.Fatalf("finish: %v", err)
	}
	sessionID := c.SessionID()

	if err := c.ScanMore(); err != nil {
		t.Fatalf("scan more: %v", err)
	}
	if got := c.Snapshot().State.Phase; got != PhaseScanning {
		t.Fatalf("phase = %s", got)
	}
	if c.SessionID() != sessionID {
		t.Errorf("scan more created a new session")
	}

	if err := c.CapturePage(ctx, photo, "image/jpeg"); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if err := c.SaveAndScanNext(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := len(g.session(sessionID).ScannedRecipeIDs); got != 2 {
		t.Errorf("recorded recipes = %d, want 2", got)
	}
}

func TestController_ApplyEditReplacesReviewedRecipe(t *testing.T) {
	g := newFakeGateway()
	x := &fakeExtractor{}
	x.queue(types.ExtractedPage{Title: "Misread Titel", Servings: 3}, nil)

	c := newTestController(g, x)
	ctx := context.Background()

	if err := c.SkipCover(ctx); err != nil {
		t.Fatalf("skip cover: %v", err)
	}
	if err := c.CapturePage(ctx, photo, "image/jpeg"); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if err := c.SetEditing(true); err != nil {
		t.Fatalf("set editing: %v", err)
	}
	if err := c.ApplyEdit(types.ExtractedPage{Title: "Misread Title", Servings: 4}); err != nil {
		t.Fatalf("apply edit: %v", err)
	}

	snap := c.Snapshot()
	if snap.State.Editing {
		t.Errorf("editing flag still set after apply")
	}
	if snap.Current == nil || snap.Current.Title != "Misread Title" || snap.Current.Servings != 4 {
		t.Errorf("edit not applied: %+v", snap.Current)
	}
}

func TestController_UntitledRecipeGetsPlaceholder(t *testing.T) {
	g := newFakeGateway()
	x := &fakeExtractor{}
	x.queue(types.ExtractedPage{Instructions: []string{"stir"}}, nil)

	c := newTestController(g, x)
	ctx := context.Background()

	if err := c.SkipCover(ctx); err != nil {
		t.Fatalf("skip cover: %v", err)
	}
	if err := c.CapturePage(ctx, photo, "image/jpeg"); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if err := c.FinishScanning(ctx); err != nil {
		t.Fatalf("finish: %v", err)
	}

	snap := c.Snapshot()
	if len(snap.Saved) != 1 || snap.Saved[0].Title != untitledRecipe {
		t.Errorf("saved previews = %+v", snap.Saved)
	}
}
