package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/galleykit/galley/internal/api"
	"github.com/galleykit/galley/internal/scan"
	"github.com/galleykit/galley/internal/svcctx"
)

// CaptureCoverEndpoint handles POST /api/scan/{id}/cover with a
// multipart photo upload. On success the workflow's session is created
// and scanning begins; upload failures keep the workflow on the cover
// step with the error in the returned snapshot.
type CaptureCoverEndpoint struct{}

var _ api.Endpoint = (*CaptureCoverEndpoint)(nil)

func (e *CaptureCoverEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/scan/{id}/cover", e.handler
}

func (e *CaptureCoverEndpoint) RequiresInit() bool { return true }

func (e *CaptureCoverEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := workflowFrom(w, r)
	if !ok {
		return
	}

	img, mimeType, err := readPhoto(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := ctrl.CaptureCover(r.Context(), img, mimeType); err != nil {
		writeScanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (e *CaptureCoverEndpoint) Command(_ func() string) *cobra.Command {
	// Photo upload has no CLI counterpart.
	return nil
}

// SkipCoverEndpoint handles POST /api/scan/{id}/cover/skip. The session
// is created without a cover photo.
type SkipCoverEndpoint struct{}

var _ api.Endpoint = (*SkipCoverEndpoint)(nil)

func (e *SkipCoverEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/scan/{id}/cover/skip", e.handler
}

func (e *SkipCoverEndpoint) RequiresInit() bool { return true }

func (e *SkipCoverEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := workflowFrom(w, r)
	if !ok {
		return
	}

	if err := ctrl.SkipCover(r.Context()); err != nil {
		writeScanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (e *SkipCoverEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "skip-cover <workflow-id>",
		Short: "Skip the cover photo and start scanning",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var snap scan.Snapshot
			if err := client.Post(cmd.Context(), "/api/scan/"+args[0]+"/cover/skip", nil, &snap); err != nil {
				return err
			}
			return api.Output(snap)
		},
	}
}

// CapturePageEndpoint handles POST /api/scan/{id}/pages with a multipart
// photo upload. The request blocks while extraction runs; a capture
// during an in-flight extraction gets 409. Extraction failures come back
// as a snapshot with the error set and the workflow back on scanning.
type CapturePageEndpoint struct{}

var _ api.Endpoint = (*CapturePageEndpoint)(nil)

func (e *CapturePageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/scan/{id}/pages", e.handler
}

func (e *CapturePageEndpoint) RequiresInit() bool { return true }

func (e *CapturePageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := workflowFrom(w, r)
	if !ok {
		return
	}

	img, mimeType, err := readPhoto(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logger := svcctx.LoggerFrom(r.Context())
	if logger != nil {
		logger.Debug("page capture received",
			"workflow_id", ctrl.ID(), "bytes", len(img), "mime_type", mimeType)
	}

	if err := ctrl.CapturePage(r.Context(), img, mimeType); err != nil {
		writeScanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (e *CapturePageEndpoint) Command(_ func() string) *cobra.Command {
	// Photo upload has no CLI counterpart.
	return nil
}

