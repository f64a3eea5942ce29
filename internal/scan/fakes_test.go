package scan

import (
	"context"
	"fmt"
	"sync"

	"github.com/galleykit/galley/internal/types"
)

// fakeGateway is an in-memory Gateway for workflow tests.
type fakeGateway struct {
	mu        sync.Mutex
	sessions  map[string]*types.ScanSession
	recipes   map[string]types.Recipe
	cookbooks map[string]string
	images    int
	nextID    int

	failCreateSession error
	failSaveRecipe    error
	failSaveImage     error
	failStatusOnce    error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		sessions:  make(map[string]*types.ScanSession),
		recipes:   make(map[string]types.Recipe),
		cookbooks: make(map[string]string),
	}
}

func (g *fakeGateway) id(prefix string) string {
	g.nextID++
	return fmt.Sprintf("%s-%d", prefix, g.nextID)
}

func (g *fakeGateway) CreateSession(_ context.Context, s types.ScanSession) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCreateSession != nil {
		return "", g.failCreateSession
	}
	id := g.id("sess")
	s.ID = id
	g.sessions[id] = &s
	return id, nil
}

func (g *fakeGateway) GetSession(_ context.Context, id string) (*types.ScanSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sess, ok := g.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	cp := *sess
	cp.ScannedRecipeIDs = append([]string{}, sess.ScannedRecipeIDs...)
	return &cp, nil
}

func (g *fakeGateway) UpdateSessionRecipes(_ context.Context, id string, recipeIDs []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	sess, ok := g.sessions[id]
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	sess.ScannedRecipeIDs = append([]string{}, recipeIDs...)
	return nil
}

func (g *fakeGateway) UpdateSessionStatus(_ context.Context, id string, status types.SessionStatus) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failStatusOnce != nil {
		err := g.failStatusOnce
		g.failStatusOnce = nil
		return err
	}
	sess, ok := g.sessions[id]
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	sess.Status = status
	return nil
}

func (g *fakeGateway) SaveRecipe(_ context.Context, r types.Recipe) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failSaveRecipe != nil {
		err := g.failSaveRecipe
		g.failSaveRecipe = nil
		return "", err
	}
	id := g.id("recipe")
	r.ID = id
	g.recipes[id] = r
	return id, nil
}

func (g *fakeGateway) ResolveCookbook(_ context.Context, name, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.cookbooks[name]; ok {
		return id, nil
	}
	id := g.id("book")
	g.cookbooks[name] = id
	return id, nil
}

func (g *fakeGateway) SaveImage(_ context.Context, _ []byte, _, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failSaveImage != nil {
		err := g.failSaveImage
		g.failSaveImage = nil
		return "", err
	}
	g.images++
	return fmt.Sprintf("img-%d", g.images), nil
}

func (g *fakeGateway) session(id string) *types.ScanSession {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessions[id]
}

func (g *fakeGateway) recipeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.recipes)
}

// fakeExtractor replays a queue of canned results.
type fakeExtractor struct {
	mu      sync.Mutex
	results []extractResult
	calls   int

	// block, when set, makes Extract wait for release or ctx done.
	block   chan struct{}
	started chan struct{}
}

type extractResult struct {
	page types.ExtractedPage
	err  error
}

func (f *fakeExtractor) queue(page types.ExtractedPage, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, extractResult{page: page, err: err})
}

func (f *fakeExtractor) Extract(ctx context.Context, _ []byte, _ string) (types.ExtractedPage, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return types.ExtractedPage{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.results) == 0 {
		return types.ExtractedPage{Title: "Fallback"}, nil
	}
	res := f.results[0]
	f.results = f.results[1:]
	return res.page, res.err
}
