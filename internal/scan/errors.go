package scan

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a workflow failure. Every error that reaches the
// controller is converted into one of these at the boundary where it
// occurred; the controller never sees a raw error from a collaborator.
type Kind string

const (
	// KindUpload means a cover or page image could not be stored.
	KindUpload Kind = "UPLOAD_ERROR"
	// KindExtraction means the extraction service returned a non-success
	// result or a malformed payload.
	KindExtraction Kind = "EXTRACTION_FAILED"
	// KindProcessing means an unexpected failure during the processing
	// step, including extraction timeout.
	KindProcessing Kind = "PROCESSING_ERROR"
	// KindSession means the session could not be created, updated, or
	// completed in the persistence layer.
	KindSession Kind = "SESSION_ERROR"
)

// WorkflowError is the {kind, message, recovery} triple surfaced to the
// user. Recovery names the interactive phase the workflow reverts to.
// All kinds are recoverable by retrying the triggering user action; none
// are retried automatically because the triggering input (a photograph)
// may itself need to be recaptured.
type WorkflowError struct {
	Kind     Kind   `json:"kind"`
	Message  string `json:"message"`
	Recovery Phase  `json:"recovery"`
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// newError builds a WorkflowError wrapping the cause's message.
func newError(kind Kind, recovery Phase, err error) *WorkflowError {
	return &WorkflowError{Kind: kind, Message: err.Error(), Recovery: recovery}
}

// classifyExtraction maps an extraction call failure to the taxonomy.
// A deadline expiry is a processing fault (the service never answered);
// everything else is an extraction failure.
func classifyExtraction(err error) *WorkflowError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &WorkflowError{
			Kind:     KindProcessing,
			Message:  "extraction timed out",
			Recovery: PhaseScanning,
		}
	}
	return newError(KindExtraction, PhaseScanning, err)
}
