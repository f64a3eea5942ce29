package scan

import (
	"sort"

	"github.com/galleykit/galley/internal/types"
)

// Accumulator holds the per-page extraction results of the recipe
// currently being captured, keyed by page number. It exists only for the
// duration of one multi-page capture and is discarded after the recipe
// is saved or abandoned.
//
// Pages with an explicit page number are stored under it; recapturing
// the same page number replaces the earlier result. Pages without a
// number are assigned the next free slot so capture order is retained
// even when extraction completions arrive out of order.
type Accumulator struct {
	pages map[int]types.ExtractedPage
	// arrival records insertion order per page number, used to keep the
	// sort stable when explicit numbers collide with assigned ones.
	arrival map[int]int
	seq     int
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		pages:   make(map[int]types.ExtractedPage),
		arrival: make(map[int]int),
	}
}

// Add records one page's extraction result and returns the page number
// it was stored under.
func (a *Accumulator) Add(p types.ExtractedPage) int {
	num := p.PageNumber
	if num <= 0 {
		num = a.nextFree()
		p.PageNumber = num
	}
	if _, exists := a.pages[num]; !exists {
		a.arrival[num] = a.seq
	}
	a.seq++
	a.pages[num] = p
	return num
}

// ReplaceLatest swaps the most recently added page for an edited
// version, preserving its page number. No-op on an empty accumulator.
func (a *Accumulator) ReplaceLatest(p types.ExtractedPage) {
	latest, ok := a.latest()
	if !ok {
		return
	}
	p.PageNumber = latest
	a.pages[latest] = p
}

// Latest returns the most recently added page.
func (a *Accumulator) Latest() (types.ExtractedPage, bool) {
	num, ok := a.latest()
	if !ok {
		return types.ExtractedPage{}, false
	}
	return a.pages[num], true
}

func (a *Accumulator) latest() (int, bool) {
	best, bestArrival := 0, -1
	for num, arr := range a.arrival {
		if arr > bestArrival {
			best, bestArrival = num, arr
		}
	}
	if bestArrival < 0 {
		return 0, false
	}
	return best, true
}

// Pages returns the accumulated pages ordered by page number.
func (a *Accumulator) Pages() []types.ExtractedPage {
	nums := make([]int, 0, len(a.pages))
	for num := range a.pages {
		nums = append(nums, num)
	}
	sort.Ints(nums)

	out := make([]types.ExtractedPage, 0, len(nums))
	for _, num := range nums {
		out = append(out, a.pages[num])
	}
	return out
}

// Len returns the number of accumulated pages.
func (a *Accumulator) Len() int { return len(a.pages) }

// Reset discards all accumulated pages.
func (a *Accumulator) Reset() {
	a.pages = make(map[int]types.ExtractedPage)
	a.arrival = make(map[int]int)
	a.seq = 0
}

// nextFree returns the smallest page number above every occupied slot.
func (a *Accumulator) nextFree() int {
	max := 0
	for num := range a.pages {
		if num > max {
			max = num
		}
	}
	return max + 1
}
