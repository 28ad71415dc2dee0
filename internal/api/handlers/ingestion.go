package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/ndewijer/custody-ingest/internal/api/request"
	"github.com/ndewijer/custody-ingest/internal/api/response"
	"github.com/ndewijer/custody-ingest/internal/model"
	"github.com/ndewijer/custody-ingest/internal/service"
)

// IngestionHandler accepts statement uploads and reports ingestion runs.
type IngestionHandler struct {
	ingestionService *service.IngestionService
	inbox            service.Inbox
	maxUploadBytes   int64
}

// NewIngestionHandler creates a new IngestionHandler. maxUploadBytes bounds
// the whole multipart body.
func NewIngestionHandler(ingestionService *service.IngestionService, inbox service.Inbox, maxUploadBytes int64) *IngestionHandler {
	return &IngestionHandler{
		ingestionService: ingestionService,
		inbox:            inbox,
		maxUploadBytes:   maxUploadBytes,
	}
}

// FileResult is the per-file part of an upload response.
type FileResult struct {
	Summary model.IngestionSummary `json:"summary"`
	Error   string                 `json:"error,omitempty"`
}

// IngestResponse is returned by POST /api/ingest.
type IngestResponse struct {
	Files     []FileResult `json:"files"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
}

// Ingest stores one or more uploaded statement files.
//
// Endpoint: POST /api/ingest (multipart/form-data)
// Parts: one or more "file" parts; optional "bank", "bank_name", "user" and
// "file_date" (YYYY-MM-DD) fields apply to every file.
// Response: 200 OK when every file was stored, 207 Multi-Status when some
// were, otherwise the status of the first failure.
func (h *IngestionHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	files, err := h.readUpload(w, r)
	if err != nil {
		response.RespondError(w, uploadStatus(err), "invalid upload", err.Error())
		return
	}

	outcomes, err := h.ingestionService.IngestBatch(r.Context(), files)
	if err != nil {
		response.RespondAppError(w, err, "ingestion aborted")
		return
	}

	resp := IngestResponse{Files: make([]FileResult, len(outcomes))}
	var firstErr error
	for i, o := range outcomes {
		resp.Files[i] = FileResult{Summary: o.Summary}
		if o.Err != nil {
			resp.Files[i].Error = o.Err.Error()
			resp.Failed++
			if firstErr == nil {
				firstErr = o.Err
			}
			continue
		}
		resp.Succeeded++
	}

	status := http.StatusOK
	switch {
	case resp.Failed > 0 && resp.Succeeded > 0:
		status = http.StatusMultiStatus
	case resp.Failed > 0:
		status = response.StatusFor(firstErr)
	}
	response.RespondJSON(w, status, resp)
}

// Preview parses one uploaded file without storing anything.
//
// Endpoint: POST /api/ingest/preview (multipart/form-data)
func (h *IngestionHandler) Preview(w http.ResponseWriter, r *http.Request) {
	files, err := h.readUpload(w, r)
	if err != nil {
		response.RespondError(w, uploadStatus(err), "invalid upload", err.Error())
		return
	}
	if len(files) != 1 {
		response.RespondError(w, http.StatusBadRequest, "invalid upload", "preview takes exactly one file")
		return
	}

	result, err := h.ingestionService.Preview(files[0])
	if err != nil {
		response.RespondAppError(w, err, "failed to parse file")
		return
	}
	response.RespondJSON(w, http.StatusOK, result)
}

// ScanInbox ingests whatever waits in the inbox directory.
//
// Endpoint: POST /api/ingest/inbox/scan
func (h *IngestionHandler) ScanInbox(w http.ResponseWriter, r *http.Request) {
	if h.inbox.Dir == "" {
		response.RespondError(w, http.StatusServiceUnavailable, "inbox is not configured", "")
		return
	}
	result, err := h.ingestionService.ScanInbox(r.Context(), h.inbox)
	if err != nil {
		response.RespondAppError(w, err, "inbox scan failed")
		return
	}
	response.RespondJSON(w, http.StatusOK, result)
}

// Runs lists recent ingestion runs.
//
// Endpoint: GET /api/ingest/runs?limit=
func (h *IngestionHandler) Runs(w http.ResponseWriter, r *http.Request) {
	limit, err := request.ParseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid limit", err.Error())
		return
	}
	runs, err := h.ingestionService.ListRuns(r.Context(), limit)
	if err != nil {
		response.RespondAppError(w, err, "failed to list ingestion runs")
		return
	}
	response.RespondJSON(w, http.StatusOK, runs)
}

// Parsers lists the registered parsers in routing order.
//
// Endpoint: GET /api/ingest/parsers
func (h *IngestionHandler) Parsers(w http.ResponseWriter, _ *http.Request) {
	response.RespondJSON(w, http.StatusOK, h.ingestionService.Parsers())
}

var errNoFiles = errors.New(`no "file" part in upload`)

func (h *IngestionHandler) readUpload(w http.ResponseWriter, r *http.Request) ([]service.File, error) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		return nil, fmt.Errorf("failed to parse multipart form: %w", err)
	}

	base := service.File{
		BankID:   strings.ToUpper(strings.TrimSpace(r.FormValue("bank"))),
		BankName: strings.TrimSpace(r.FormValue("bank_name")),
		UserID:   strings.TrimSpace(r.FormValue("user")),
	}
	if raw := strings.TrimSpace(r.FormValue("file_date")); raw != "" {
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid file_date %q: expected YYYY-MM-DD", raw)
		}
		base.FileDate = d
	}

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		return nil, errNoFiles
	}
	files := make([]service.File, 0, len(headers))
	for _, fh := range headers {
		content, err := readPart(fh)
		if err != nil {
			return nil, err
		}
		f := base
		f.Name = fh.Filename
		f.Content = content
		files = append(files, f)
	}
	return files, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	part, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer part.Close()

	content, err := io.ReadAll(part)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}
	return content, nil
}

func uploadStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
