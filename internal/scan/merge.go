package scan

import (
	"strings"

	"github.com/galleykit/galley/internal/types"
)

// Merge combines per-page extraction results, ordered by page number,
// into a single recipe. It is pure: no I/O, no errors. An empty input
// yields an empty recipe shape; the controller guarantees at least one
// page is present before it asks for a merge.
//
// Field policy:
//   - title: first non-empty title (page 1 is authoritative; later pages
//     rarely repeat it).
//   - ingredients: concatenated in page order with NO deduplication.
//     Recipes list the same ingredient across pages with different
//     quantities ("for the sauce" vs "for the garnish"); dropping
//     repeats would silently lose information.
//   - instructions: concatenated in page order, then intra-page order,
//     matching the reading order of the physical book.
//   - servings, prep time, cook time: first non-zero value wins.
//   - pageNumber: the last page's number, kept for display only.
//
// Merging is associative as long as the caller preserves page order:
// merging [p1] and later re-merging [p1,p2] equals merging both at once.
func Merge(pages []types.ExtractedPage) types.ExtractedPage {
	var merged types.ExtractedPage

	for _, p := range pages {
		if merged.Title == "" && strings.TrimSpace(p.Title) != "" {
			merged.Title = p.Title
		}
		merged.Ingredients = append(merged.Ingredients, p.Ingredients...)
		merged.Instructions = append(merged.Instructions, p.Instructions...)
		if merged.Servings == 0 {
			merged.Servings = p.Servings
		}
		if merged.PrepTimeMin == 0 {
			merged.PrepTimeMin = p.PrepTimeMin
		}
		if merged.CookTimeMin == 0 {
			merged.CookTimeMin = p.CookTimeMin
		}
		merged.PageNumber = p.PageNumber
	}

	return merged
}
