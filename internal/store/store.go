// Package store persists scan sessions, recipes, and cookbooks in
// DefraDB and captured photographs on disk. It implements the gateway
// the scan workflow depends on.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/galleykit/galley/internal/defra"
	"github.com/galleykit/galley/internal/home"
	"github.com/galleykit/galley/internal/types"
)

// Collection names in DefraDB.
const (
	CollectionSession  = "ScanSession"
	CollectionRecipe   = "Recipe"
	CollectionCookbook = "Cookbook"
)

// Store is the DefraDB-backed persistence gateway.
type Store struct {
	client *defra.Client
	home   *home.Dir
	logger *slog.Logger
}

// New creates a store on top of the DefraDB client and home directory.
func New(client *defra.Client, homeDir *home.Dir, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, home: homeDir, logger: logger}
}

// CreateSession persists a new scan session and returns its document ID.
func (s *Store) CreateSession(ctx context.Context, sess types.ScanSession) (string, error) {
	input := map[string]any{
		"book_name":          sess.BookName,
		"cookbook_id":        sess.CookbookID,
		"cover_image_ref":    sess.CoverImageRef,
		"status":             string(sess.Status),
		"scanned_recipe_ids": sess.ScannedRecipeIDs,
		"created_at":         sess.CreatedAt.Format(time.RFC3339),
		"updated_at":         sess.UpdatedAt.Format(time.RFC3339),
	}
	id, err := s.client.Create(ctx, CollectionSession, input)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return id, nil
}

// GetSession loads a session by document ID.
func (s *Store) GetSession(ctx context.Context, id string) (*types.ScanSession, error) {
	query := fmt.Sprintf(`{
		%s(docID: %q) {
			_docID
			book_name
			cookbook_id
			cover_image_ref
			status
			scanned_recipe_ids
			created_at
			updated_at
		}
	}`, CollectionSession, id)

	resp, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("session query error: %s", errMsg)
	}

	docs, ok := resp.Data[CollectionSession].([]any)
	if !ok || len(docs) == 0 {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	doc, ok := docs[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected session document format")
	}
	return sessionFromDoc(doc), nil
}

// ListSessions returns all sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]types.ScanSession, error) {
	query := fmt.Sprintf(`{
		%s(order: {created_at: DESC}) {
			_docID
			book_name
			cookbook_id
			cover_image_ref
			status
			scanned_recipe_ids
			created_at
			updated_at
		}
	}`, CollectionSession)

	resp, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("session list error: %s", errMsg)
	}

	docs, _ := resp.Data[CollectionSession].([]any)
	sessions := make([]types.ScanSession, 0, len(docs))
	for _, d := range docs {
		if doc, ok := d.(map[string]any); ok {
			sessions = append(sessions, *sessionFromDoc(doc))
		}
	}
	return sessions, nil
}

// UpdateSessionRecipes replaces the session's recipe-ID list.
func (s *Store) UpdateSessionRecipes(ctx context.Context, id string, recipeIDs []string) error {
	input := map[string]any{
		"scanned_recipe_ids": recipeIDs,
		"updated_at":         time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.client.Update(ctx, CollectionSession, id, input); err != nil {
		return fmt.Errorf("failed to update session recipes: %w", err)
	}
	return nil
}

// UpdateSessionStatus sets the session's lifecycle status.
func (s *Store) UpdateSessionStatus(ctx context.Context, id string, status types.SessionStatus) error {
	input := map[string]any{
		"status":     string(status),
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.client.Update(ctx, CollectionSession, id, input); err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	return nil
}

// SaveRecipe persists a recipe and returns its document ID. Ingredients
// are stored as a JSON blob; DefraDB's scalar model has no nested
// object arrays.
func (s *Store) SaveRecipe(ctx context.Context, r types.Recipe) (string, error) {
	ingredients, err := json.Marshal(r.Ingredients)
	if err != nil {
		return "", fmt.Errorf("failed to encode ingredients: %w", err)
	}

	input := map[string]any{
		"title":             r.Title,
		"ingredients_json":  string(ingredients),
		"instructions":      r.Instructions,
		"servings":          r.Servings,
		"prep_time_minutes": r.PrepTimeMin,
		"cook_time_minutes": r.CookTimeMin,
		"cookbook_id":       r.CookbookID,
		"session_id":        r.SessionID,
		"page_image_refs":   r.PageImageRefs,
		"created_at":        r.CreatedAt.Format(time.RFC3339),
	}
	id, err := s.client.Create(ctx, CollectionRecipe, input)
	if err != nil {
		return "", fmt.Errorf("failed to save recipe: %w", err)
	}
	return id, nil
}

// GetRecipe loads a recipe by document ID.
func (s *Store) GetRecipe(ctx context.Context, id string) (*types.Recipe, error) {
	query := fmt.Sprintf(`{
		%s(docID: %q) {
			_docID
			title
			ingredients_json
			instructions
			servings
			prep_time_minutes
			cook_time_minutes
			cookbook_id
			session_id
			page_image_refs
			created_at
		}
	}`, CollectionRecipe, id)

	resp, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipe: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("recipe query error: %s", errMsg)
	}

	docs, ok := resp.Data[CollectionRecipe].([]any)
	if !ok || len(docs) == 0 {
		return nil, fmt.Errorf("recipe not found: %s", id)
	}
	doc, ok := docs[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected recipe document format")
	}
	return recipeFromDoc(doc), nil
}

// ListRecipes returns recipes, optionally filtered by cookbook,
// newest first.
func (s *Store) ListRecipes(ctx context.Context, cookbookID string) ([]types.Recipe, error) {
	filter := ""
	if cookbookID != "" {
		filter = fmt.Sprintf(`filter: {cookbook_id: {_eq: %q}}, `, cookbookID)
	}
	query := fmt.Sprintf(`{
		%s(%sorder: {created_at: DESC}) {
			_docID
			title
			ingredients_json
			instructions
			servings
			prep_time_minutes
			cook_time_minutes
			cookbook_id
			session_id
			page_image_refs
			created_at
		}
	}`, CollectionRecipe, filter)

	resp, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("recipe list error: %s", errMsg)
	}

	docs, _ := resp.Data[CollectionRecipe].([]any)
	recipes := make([]types.Recipe, 0, len(docs))
	for _, d := range docs {
		if doc, ok := d.(map[string]any); ok {
			recipes = append(recipes, *recipeFromDoc(doc))
		}
	}
	return recipes, nil
}

// ResolveCookbook returns the cookbook ID for a book name, creating the
// record on first sight. The cover ref is attached when provided.
func (s *Store) ResolveCookbook(ctx context.Context, name, coverRef string) (string, error) {
	create := map[string]any{
		"name":       name,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
	update := map[string]any{}
	if coverRef != "" {
		create["cover_image_ref"] = coverRef
		update["cover_image_ref"] = coverRef
	} else {
		// Upsert requires a non-empty update document.
		update["name"] = name
	}

	id, err := s.client.Upsert(ctx, CollectionCookbook,
		map[string]any{"name": map[string]any{"_eq": name}},
		create, update)
	if err != nil {
		return "", fmt.Errorf("failed to resolve cookbook %q: %w", name, err)
	}
	return id, nil
}

// SaveImage writes a captured photograph under the home images dir and
// returns its ref (path relative to the home directory).
func (s *Store) SaveImage(ctx context.Context, img []byte, mimeType, hint string) (string, error) {
	if len(img) == 0 {
		return "", fmt.Errorf("image is empty")
	}

	dir := s.home.ImagesDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create images directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s%s", hint, uuid.New().String(), extensionFor(mimeType))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	s.logger.Debug("image saved", "path", path, "bytes", len(img))
	return filepath.Join(home.ImagesDirName, name), nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/heic":
		return ".heic"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func sessionFromDoc(doc map[string]any) *types.ScanSession {
	sess := &types.ScanSession{
		ID:            str(doc["_docID"]),
		BookName:      str(doc["book_name"]),
		CookbookID:    str(doc["cookbook_id"]),
		CoverImageRef: str(doc["cover_image_ref"]),
		Status:        types.ParseSessionStatus(str(doc["status"])),
	}
	sess.ScannedRecipeIDs = strSlice(doc["scanned_recipe_ids"])
	sess.CreatedAt = timestamp(doc["created_at"])
	sess.UpdatedAt = timestamp(doc["updated_at"])
	return sess
}

func recipeFromDoc(doc map[string]any) *types.Recipe {
	r := &types.Recipe{
		ID:            str(doc["_docID"]),
		Title:         str(doc["title"]),
		Instructions:  strSlice(doc["instructions"]),
		Servings:      num(doc["servings"]),
		PrepTimeMin:   num(doc["prep_time_minutes"]),
		CookTimeMin:   num(doc["cook_time_minutes"]),
		CookbookID:    str(doc["cookbook_id"]),
		SessionID:     str(doc["session_id"]),
		PageImageRefs: strSlice(doc["page_image_refs"]),
		CreatedAt:     timestamp(doc["created_at"]),
	}
	if raw := str(doc["ingredients_json"]); raw != "" {
		// Best effort: a corrupt blob yields an empty list, not a failure.
		_ = json.Unmarshal([]byte(raw), &r.Ingredients)
	}
	return r
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) int {
	f, _ := v.(float64)
	return int(f)
}

func strSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func timestamp(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
