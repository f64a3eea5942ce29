package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/galleykit/galley/internal/api"
	"github.com/galleykit/galley/internal/scan"
	"github.com/galleykit/galley/internal/svcctx"
)

// maxPhotoBytes caps a single uploaded photograph at 32MB.
const maxPhotoBytes = 32 << 20

// StartScanRequest is the body for POST /api/scan.
type StartScanRequest struct {
	BookName string `json:"book_name"`
}

// StartScanEndpoint handles POST /api/scan. It opens a new scan workflow
// for a cookbook; only one workflow may be live at a time.
type StartScanEndpoint struct{}

var _ api.Endpoint = (*StartScanEndpoint)(nil)

func (e *StartScanEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/scan", e.handler
}

func (e *StartScanEndpoint) RequiresInit() bool { return true }

func (e *StartScanEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req StartScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(req.BookName) == "" {
		writeError(w, http.StatusBadRequest, "book_name is required")
		return
	}

	manager := svcctx.ScanManagerFrom(r.Context())
	if manager == nil {
		writeError(w, http.StatusServiceUnavailable, "scan manager not initialized")
		return
	}

	ctrl, err := manager.Start(r.Context(), req.BookName)
	if err != nil {
		if errors.Is(err, scan.ErrWorkflowActive) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, ctrl.Snapshot())
}

func (e *StartScanEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "start <book-name>",
		Short: "Start a scan workflow for a cookbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var snap scan.Snapshot
			if err := client.Post(cmd.Context(), "/api/scan", StartScanRequest{BookName: args[0]}, &snap); err != nil {
				return err
			}
			return api.Output(snap)
		},
	}
}

// ListScansEndpoint handles GET /api/scan.
type ListScansEndpoint struct{}

var _ api.Endpoint = (*ListScansEndpoint)(nil)

func (e *ListScansEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/scan", e.handler
}

func (e *ListScansEndpoint) RequiresInit() bool { return true }

func (e *ListScansEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	manager := svcctx.ScanManagerFrom(r.Context())
	if manager == nil {
		writeError(w, http.StatusServiceUnavailable, "scan manager not initialized")
		return
	}
	writeJSON(w, http.StatusOK, manager.List())
}

func (e *ListScansEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List live scan workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var snaps []scan.Snapshot
			if err := client.Get(cmd.Context(), "/api/scan", &snaps); err != nil {
				return err
			}
			return api.Output(snaps)
		},
	}
}

// GetScanEndpoint handles GET /api/scan/{id}.
type GetScanEndpoint struct{}

var _ api.Endpoint = (*GetScanEndpoint)(nil)

func (e *GetScanEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/scan/{id}", e.handler
}

func (e *GetScanEndpoint) RequiresInit() bool { return true }

func (e *GetScanEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := workflowFrom(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (e *GetScanEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <workflow-id>",
		Short: "Get a scan workflow's state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var snap scan.Snapshot
			if err := client.Get(cmd.Context(), "/api/scan/"+args[0], &snap); err != nil {
				return err
			}
			return api.Output(snap)
		},
	}
}

// CloseScanEndpoint handles DELETE /api/scan/{id}. Dismissing a workflow
// cancels its session unless it already completed; saved recipes are
// never deleted.
type CloseScanEndpoint struct{}

var _ api.Endpoint = (*CloseScanEndpoint)(nil)

func (e *CloseScanEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/scan/{id}", e.handler
}

func (e *CloseScanEndpoint) RequiresInit() bool { return true }

func (e *CloseScanEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	manager := svcctx.ScanManagerFrom(r.Context())
	if manager == nil {
		writeError(w, http.StatusServiceUnavailable, "scan manager not initialized")
		return
	}

	if err := manager.Close(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, scan.ErrWorkflowNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *CloseScanEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "close <workflow-id>",
		Short: "Dismiss a scan workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/api/scan/"+args[0]); err != nil {
				return err
			}
			fmt.Println("Workflow closed")
			return nil
		},
	}
}

// workflowFrom resolves the {id} path value to a live controller,
// writing the error response itself when lookup fails.
func workflowFrom(w http.ResponseWriter, r *http.Request) (*scan.Controller, bool) {
	manager := svcctx.ScanManagerFrom(r.Context())
	if manager == nil {
		writeError(w, http.StatusServiceUnavailable, "scan manager not initialized")
		return nil, false
	}

	ctrl, err := manager.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return ctrl, true
}

// writeScanError maps workflow misuse errors to HTTP statuses.
func writeScanError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scan.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, scan.ErrWrongPhase):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, scan.ErrClosed):
		writeError(w, http.StatusGone, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// readPhoto pulls the uploaded photograph out of a multipart form. The
// field is named "photo"; the MIME type comes from the part header with
// a JPEG fallback.
func readPhoto(r *http.Request) ([]byte, string, error) {
	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		return nil, "", fmt.Errorf("failed to parse form: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("photo")
	if err != nil {
		return nil, "", fmt.Errorf("photo field is required: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read photo: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("photo is empty")
	}

	return data, photoMIMEType(header), nil
}

func photoMIMEType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	name := strings.ToLower(header.Filename)
	switch {
	case strings.HasSuffix(name, ".png"):
		return "image/png"
	case strings.HasSuffix(name, ".heic"):
		return "image/heic"
	case strings.HasSuffix(name, ".webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
