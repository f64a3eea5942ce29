package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/galleykit/galley/internal/api"
	"github.com/galleykit/galley/internal/scan"
	"github.com/galleykit/galley/internal/svcctx"
	"github.com/galleykit/galley/internal/types"
)

// Review actions accepted by POST /api/scan/{id}/review.
const (
	ActionContinue = "continue"  // recipe spans more pages, keep accumulating
	ActionSaveNext = "save-next" // persist the recipe, scan a fresh one
	ActionFinish   = "finish"    // persist the recipe, complete the session
)

// ReviewRequest is the body for POST /api/scan/{id}/review.
type ReviewRequest struct {
	Action string `json:"action"`
}

// ReviewEndpoint handles POST /api/scan/{id}/review. It applies the
// user's review decision to the extracted recipe currently on screen.
type ReviewEndpoint struct{}

var _ api.Endpoint = (*ReviewEndpoint)(nil)

func (e *ReviewEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/scan/{id}/review", e.handler
}

func (e *ReviewEndpoint) RequiresInit() bool { return true }

func (e *ReviewEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := workflowFrom(w, r)
	if !ok {
		return
	}

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	var err error
	switch req.Action {
	case ActionContinue:
		err = ctrl.ContinueRecipe()
	case ActionSaveNext:
		err = ctrl.SaveAndScanNext(r.Context())
	case ActionFinish:
		err = ctrl.FinishScanning(r.Context())
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown review action: %q", req.Action))
		return
	}
	if err != nil {
		writeScanError(w, err)
		return
	}

	if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
		logger.Debug("review action applied", "workflow_id", ctrl.ID(), "action", req.Action)
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (e *ReviewEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "review <workflow-id> <continue|save-next|finish>",
		Short: "Apply a review decision to the current recipe",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var snap scan.Snapshot
			path := "/api/scan/" + args[0] + "/review"
			if err := client.Post(cmd.Context(), path, ReviewRequest{Action: args[1]}, &snap); err != nil {
				return err
			}
			return api.Output(snap)
		},
	}
}

// ScanMoreEndpoint handles POST /api/scan/{id}/scan-more. From the
// complete screen, it reopens scanning against the same session.
type ScanMoreEndpoint struct{}

var _ api.Endpoint = (*ScanMoreEndpoint)(nil)

func (e *ScanMoreEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/scan/{id}/scan-more", e.handler
}

func (e *ScanMoreEndpoint) RequiresInit() bool { return true }

func (e *ScanMoreEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := workflowFrom(w, r)
	if !ok {
		return
	}

	if err := ctrl.ScanMore(); err != nil {
		writeScanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (e *ScanMoreEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "scan-more <workflow-id>",
		Short: "Resume scanning after finishing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var snap scan.Snapshot
			if err := client.Post(cmd.Context(), "/api/scan/"+args[0]+"/scan-more", nil, &snap); err != nil {
				return err
			}
			return api.Output(snap)
		},
	}
}

// EditRecipeEndpoint handles PUT /api/scan/{id}/recipe. The body is the
// corrected recipe exactly as the user wants it saved; it replaces the
// merged extraction result shown in review.
type EditRecipeEndpoint struct{}

var _ api.Endpoint = (*EditRecipeEndpoint)(nil)

func (e *EditRecipeEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/api/scan/{id}/recipe", e.handler
}

func (e *EditRecipeEndpoint) RequiresInit() bool { return true }

func (e *EditRecipeEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := workflowFrom(w, r)
	if !ok {
		return
	}

	var edited types.ExtractedPage
	if err := json.NewDecoder(r.Body).Decode(&edited); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if err := ctrl.ApplyEdit(edited); err != nil {
		writeScanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (e *EditRecipeEndpoint) Command(_ func() string) *cobra.Command {
	// Hand-editing structured recipe JSON has no CLI counterpart.
	return nil
}
