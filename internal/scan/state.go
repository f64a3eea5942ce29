package scan

// Phase is the top-level workflow step. The phase plus the overlay flags
// on State fully describe what the client should render.
type Phase string

const (
	// PhaseCover waits for a cover photo or an explicit skip.
	PhaseCover Phase = "cover"
	// PhaseScanning waits for a recipe page photo.
	PhaseScanning Phase = "scanning"
	// PhaseProcessing has an extraction call in flight. This is the only
	// phase that accepts extraction-result events; it refuses new captures.
	PhaseProcessing Phase = "processing"
	// PhaseReview shows the extracted (or merged) recipe for a decision.
	PhaseReview Phase = "review"
	// PhaseComplete is reached after "done scanning".
	PhaseComplete Phase = "complete"
	// PhaseClosed is the terminal state after the workflow is dismissed.
	PhaseClosed Phase = "closed"
)

// Interactive reports whether the phase accepts user events.
func (p Phase) Interactive() bool {
	return p == PhaseCover || p == PhaseScanning || p == PhaseReview || p == PhaseComplete
}

// State is the complete workflow state as a single value. Transition is
// the only producer of new states; the controller never mutates fields
// piecemeal.
type State struct {
	Phase Phase `json:"phase"`

	// CoverCapture marks that the viewfinder is aimed at the book cover
	// rather than a recipe page.
	CoverCapture bool `json:"cover_capture"`
	// Editing marks that the user is hand-correcting the extraction
	// result shown in review before saving.
	Editing bool `json:"editing,omitempty"`
	// MultiPage marks that the accumulator holds earlier pages of the
	// recipe currently being captured.
	MultiPage bool `json:"multi_page,omitempty"`

	// Generation counts extraction attempts. An extraction result event
	// is applied only if its generation matches; results that resolve
	// after cancellation or a newer capture are discarded.
	Generation int `json:"-"`

	// Err is the surfaced workflow error, cleared by the next accepted
	// event.
	Err *WorkflowError `json:"error,omitempty"`
}

// Initial returns the workflow's starting state.
func Initial() State {
	return State{Phase: PhaseCover, CoverCapture: true}
}

// Event is a user action or collaborator result driving the workflow.
type Event interface{ isEvent() }

// CoverCaptured fires when the cover photo was taken.
type CoverCaptured struct{}

// CoverSkipped fires when the user declines to photograph the cover.
type CoverSkipped struct{}

// PageCaptured fires when a recipe page photo was taken.
type PageCaptured struct{}

// ExtractionSucceeded fires when the in-flight extraction resolved.
// Generation must match the state's for the event to be applied.
type ExtractionSucceeded struct{ Generation int }

// ExtractionFailed fires when the in-flight extraction failed.
type ExtractionFailed struct {
	Generation int
	Err        *WorkflowError
}

// ContinueRecipe fires on "continue this recipe" in review: the recipe
// spans more pages, keep the accumulator and scan the next page.
type ContinueRecipe struct{}

// SaveAndScanNext fires on "scan another" in review: persist the current
// recipe and return to scanning for a fresh one.
type SaveAndScanNext struct{}

// FinishScanning fires on "done scanning" in review: persist the current
// recipe and complete the session.
type FinishScanning struct{}

// ScanMore fires on "scan more" from the complete screen.
type ScanMore struct{}

// EditToggled flips the hand-correction overlay in review.
type EditToggled struct{ On bool }

// Failed reverts the workflow to the error's recovery phase. Emitted by
// the controller when an effect (session creation, upload, persist)
// fails; never by the user.
type Failed struct{ Err *WorkflowError }

// Closed fires when the workflow is dismissed.
type Closed struct{}

func (CoverCaptured) isEvent()       {}
func (CoverSkipped) isEvent()        {}
func (PageCaptured) isEvent()        {}
func (ExtractionSucceeded) isEvent() {}
func (ExtractionFailed) isEvent()    {}
func (ContinueRecipe) isEvent()      {}
func (SaveAndScanNext) isEvent()     {}
func (FinishScanning) isEvent()      {}
func (ScanMore) isEvent()            {}
func (EditToggled) isEvent()         {}
func (Failed) isEvent()              {}
func (Closed) isEvent()              {}

// Effect is work the controller must perform after a transition.
type Effect int

const (
	// EffectCreateSession creates the session (and, when the cover was
	// captured, uploads it and resolves the cookbook).
	EffectCreateSession Effect = iota
	// EffectStartExtraction dispatches the captured page to extraction.
	EffectStartExtraction
	// EffectPersistRecipe merges the accumulator and saves the recipe.
	EffectPersistRecipe
	// EffectResetAccumulator discards the accumulated pages.
	EffectResetAccumulator
	// EffectCompleteSession marks the session completed.
	EffectCompleteSession
	// EffectCancelSession marks the session cancelled. Never issued when
	// the session already completed.
	EffectCancelSession
)

// Transition is the pure, total transition function. Events that don't
// apply in the current state are ignored: the state is returned
// unchanged with no effects. This is the workflow's only concurrency
// guard: PhaseProcessing refuses PageCaptured, and extraction results
// are accepted only in PhaseProcessing with a matching generation.
func Transition(s State, ev Event) (State, []Effect) {
	switch e := ev.(type) {
	case CoverCaptured:
		if s.Phase != PhaseCover {
			return s, nil
		}
		next := s
		next.Phase = PhaseScanning
		next.CoverCapture = false
		next.Err = nil
		return next, []Effect{EffectCreateSession}

	case CoverSkipped:
		if s.Phase != PhaseCover {
			return s, nil
		}
		next := s
		next.Phase = PhaseScanning
		next.CoverCapture = false
		next.Err = nil
		return next, []Effect{EffectCreateSession}

	case PageCaptured:
		if s.Phase != PhaseScanning {
			return s, nil
		}
		next := s
		next.Phase = PhaseProcessing
		next.Generation++
		next.Err = nil
		return next, []Effect{EffectStartExtraction}

	case ExtractionSucceeded:
		if s.Phase != PhaseProcessing || e.Generation != s.Generation {
			return s, nil
		}
		next := s
		next.Phase = PhaseReview
		next.Err = nil
		return next, nil

	case ExtractionFailed:
		if s.Phase != PhaseProcessing || e.Generation != s.Generation {
			return s, nil
		}
		next := s
		next.Phase = PhaseScanning
		next.Err = e.Err
		return next, nil

	case ContinueRecipe:
		if s.Phase != PhaseReview {
			return s, nil
		}
		next := s
		next.Phase = PhaseScanning
		next.MultiPage = true
		next.Editing = false
		next.Err = nil
		return next, nil

	case SaveAndScanNext:
		if s.Phase != PhaseReview {
			return s, nil
		}
		next := s
		next.Phase = PhaseScanning
		next.MultiPage = false
		next.Editing = false
		next.Err = nil
		return next, []Effect{EffectPersistRecipe, EffectResetAccumulator}

	case FinishScanning:
		if s.Phase != PhaseReview {
			return s, nil
		}
		next := s
		next.Phase = PhaseComplete
		next.MultiPage = false
		next.Editing = false
		next.Err = nil
		return next, []Effect{EffectPersistRecipe, EffectCompleteSession, EffectResetAccumulator}

	case ScanMore:
		if s.Phase != PhaseComplete {
			return s, nil
		}
		next := s
		next.Phase = PhaseScanning
		next.Err = nil
		return next, []Effect{EffectResetAccumulator}

	case EditToggled:
		if s.Phase != PhaseReview {
			return s, nil
		}
		next := s
		next.Editing = e.On
		return next, nil

	case Failed:
		next := s
		next.Phase = e.Err.Recovery
		next.CoverCapture = e.Err.Recovery == PhaseCover
		next.Err = e.Err
		return next, nil

	case Closed:
		if s.Phase == PhaseClosed {
			return s, nil
		}
		next := s
		next.Phase = PhaseClosed
		next.Editing = false
		next.Err = nil
		if s.Phase == PhaseComplete {
			// Session already completed; closing discards nothing.
			return next, nil
		}
		return next, []Effect{EffectCancelSession}
	}

	return s, nil
}
