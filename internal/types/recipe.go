// Package types provides shared types used across multiple packages.
// This package has no dependencies on other galley packages to avoid import cycles.
package types

import (
	"strings"
	"time"
)

// Ingredient is a single ingredient line as it appears on a recipe page.
// Quantity is kept as a string because cookbooks print fractions and
// ranges ("1/2", "2-3") that don't round-trip through a number.
type Ingredient struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity,omitempty"`
	Unit     string `json:"unit,omitempty"`
	Category string `json:"category,omitempty"`
}

// ExtractedPage is the structured result of extracting one photographed
// recipe page. It is immutable once returned by the extraction provider
// and is never persisted standalone; it is either merged with other pages
// or saved directly as a single-page recipe.
type ExtractedPage struct {
	Title        string       `json:"title"`
	Ingredients  []Ingredient `json:"ingredients"`
	Instructions []string     `json:"instructions"`
	Servings     int          `json:"servings"`
	PrepTimeMin  int          `json:"prep_time_minutes"`
	CookTimeMin  int          `json:"cook_time_minutes"`

	// PageNumber is the page's position within the current recipe capture,
	// 1-based. Zero means the caller should fall back to capture order.
	PageNumber int `json:"page_number,omitempty"`
}

// IsEmpty reports whether the page carries no extracted content at all.
func (p ExtractedPage) IsEmpty() bool {
	return strings.TrimSpace(p.Title) == "" &&
		len(p.Ingredients) == 0 &&
		len(p.Instructions) == 0 &&
		p.Servings == 0 &&
		p.PrepTimeMin == 0 &&
		p.CookTimeMin == 0
}

// Recipe is a persisted recipe record. Once saved it is owned by the
// recipe store; scan sessions only reference it by ID.
type Recipe struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Ingredients  []Ingredient `json:"ingredients"`
	Instructions []string     `json:"instructions"`
	Servings     int          `json:"servings"`
	PrepTimeMin  int          `json:"prep_time_minutes"`
	CookTimeMin  int          `json:"cook_time_minutes"`

	// CookbookID references the physical cookbook this was scanned from.
	CookbookID string `json:"cookbook_id,omitempty"`
	// SessionID references the scan session that produced this recipe.
	SessionID string `json:"session_id,omitempty"`
	// PageImageRefs are storage refs for the source photographs, in page order.
	PageImageRefs []string `json:"page_image_refs,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// FromExtractedPage builds the persistable recipe fields from a merged page.
func FromExtractedPage(p ExtractedPage) Recipe {
	return Recipe{
		Title:        p.Title,
		Ingredients:  p.Ingredients,
		Instructions: p.Instructions,
		Servings:     p.Servings,
		PrepTimeMin:  p.PrepTimeMin,
		CookTimeMin:  p.CookTimeMin,
	}
}

// RecipePreview is a lightweight projection used to render session
// progress. Derived from a Recipe, never the source of truth.
type RecipePreview struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	IngredientCount  int    `json:"ingredient_count"`
	InstructionCount int    `json:"instruction_count"`
}

// PreviewOf returns the preview projection of a recipe.
func PreviewOf(r Recipe) RecipePreview {
	return RecipePreview{
		ID:               r.ID,
		Title:            r.Title,
		IngredientCount:  len(r.Ingredients),
		InstructionCount: len(r.Instructions),
	}
}

// Cookbook represents a physical cookbook. Created lazily the first time
// a session needs to attach scanned recipes to a named book.
type Cookbook struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	CoverImageRef string `json:"cover_image_ref,omitempty"`
	Author        string `json:"author,omitempty"`
}
