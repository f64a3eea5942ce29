package scan

import (
	"testing"

	"github.com/galleykit/galley/internal/types"
)

func TestAccumulator_OrdersByPageNumber(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(types.ExtractedPage{Title: "second", PageNumber: 2})
	acc.Add(types.ExtractedPage{Title: "first", PageNumber: 1})

	pages := acc.Pages()
	if len(pages) != 2 {
		t.Fatalf("len = %d", len(pages))
	}
	if pages[0].Title != "first" || pages[1].Title != "second" {
		t.Errorf("pages out of order: %q, %q", pages[0].Title, pages[1].Title)
	}
}

func TestAccumulator_UnnumberedPagesKeepCaptureOrder(t *testing.T) {
	acc := NewAccumulator()
	n1 := acc.Add(types.ExtractedPage{Title: "a"})
	n2 := acc.Add(types.ExtractedPage{Title: "b"})
	n3 := acc.Add(types.ExtractedPage{Title: "c"})

	if n1 != 1 || n2 != 2 || n3 != 3 {
		t.Errorf("assigned numbers = %d, %d, %d", n1, n2, n3)
	}

	pages := acc.Pages()
	got := []string{pages[0].Title, pages[1].Title, pages[2].Title}
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pages[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAccumulator_MixedNumbering(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(types.ExtractedPage{Title: "numbered", PageNumber: 5})
	n := acc.Add(types.ExtractedPage{Title: "unnumbered"})

	// Unnumbered pages slot in after everything seen so far.
	if n != 6 {
		t.Errorf("assigned number = %d, want 6", n)
	}
}

func TestAccumulator_RecaptureReplacesPage(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(types.ExtractedPage{Title: "blurry", PageNumber: 1})
	acc.Add(types.ExtractedPage{Title: "sharp", PageNumber: 1})

	if acc.Len() != 1 {
		t.Fatalf("len = %d, want 1", acc.Len())
	}
	if acc.Pages()[0].Title != "sharp" {
		t.Errorf("recapture did not replace: %q", acc.Pages()[0].Title)
	}
}

func TestAccumulator_ReplaceLatest(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(types.ExtractedPage{Title: "page one", PageNumber: 1})
	acc.Add(types.ExtractedPage{Title: "page two", PageNumber: 2})

	acc.ReplaceLatest(types.ExtractedPage{Title: "corrected"})

	pages := acc.Pages()
	if pages[1].Title != "corrected" {
		t.Errorf("latest not replaced: %q", pages[1].Title)
	}
	if pages[1].PageNumber != 2 {
		t.Errorf("page number not preserved: %d", pages[1].PageNumber)
	}
	if pages[0].Title != "page one" {
		t.Errorf("earlier page touched: %q", pages[0].Title)
	}
}

func TestAccumulator_Reset(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(types.ExtractedPage{Title: "a"})
	acc.Reset()

	if acc.Len() != 0 {
		t.Errorf("len after reset = %d", acc.Len())
	}
	if n := acc.Add(types.ExtractedPage{Title: "b"}); n != 1 {
		t.Errorf("numbering not reset: %d", n)
	}
}
