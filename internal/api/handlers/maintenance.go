package handlers

import (
	"net/http"

	"github.com/ndewijer/custody-ingest/internal/api/request"
	"github.com/ndewijer/custody-ingest/internal/api/response"
	"github.com/ndewijer/custody-ingest/internal/service"
	"github.com/ndewijer/custody-ingest/internal/validation"
)

// MaintenanceHandler triggers deduplication and security classification.
type MaintenanceHandler struct {
	maintenanceService *service.MaintenanceService
}

// NewMaintenanceHandler creates a new MaintenanceHandler
func NewMaintenanceHandler(maintenanceService *service.MaintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{maintenanceService: maintenanceService}
}

// Dedup runs the deduplication engine.
//
// Endpoint: POST /api/maintenance/dedup
// Body (optional): {"mode": "delete" | "flag"}
// Response: 200 OK with model.DedupSummary
// Error: 409 Conflict while another maintenance run holds the store
func (h *MaintenanceHandler) Dedup(w http.ResponseWriter, r *http.Request) {
	var req request.DedupRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if mode := r.URL.Query().Get("mode"); mode != "" {
		req.Mode = mode
	}
	if err := validation.ValidateDedupMode(req.Mode); err != nil {
		response.RespondAppError(w, err, "")
		return
	}

	summary, err := h.maintenanceService.RunDedup(r.Context(), req.Mode)
	if err != nil {
		response.RespondAppError(w, err, "deduplication failed")
		return
	}
	response.RespondJSON(w, http.StatusOK, summary)
}

// DedupRuns lists recent deduplication summaries.
//
// Endpoint: GET /api/maintenance/dedup/runs?limit=
func (h *MaintenanceHandler) DedupRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := request.ParseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid limit", err.Error())
		return
	}
	runs, err := h.maintenanceService.ListDedupRuns(r.Context(), limit)
	if err != nil {
		response.RespondAppError(w, err, "failed to list dedup runs")
		return
	}
	response.RespondJSON(w, http.StatusOK, runs)
}

// Classify classifies every UNKNOWN holding.
//
// Endpoint: POST /api/maintenance/classify
func (h *MaintenanceHandler) Classify(w http.ResponseWriter, r *http.Request) {
	summary, err := h.maintenanceService.ClassifyUnknown(r.Context())
	if err != nil {
		response.RespondAppError(w, err, "classification failed")
		return
	}
	response.RespondJSON(w, http.StatusOK, summary)
}

// Reclassify forces fresh lookups for the listed ISINs.
//
// Endpoint: POST /api/maintenance/reclassify
// Body: {"isins": ["FR0000121014"]}
func (h *MaintenanceHandler) Reclassify(w http.ResponseWriter, r *http.Request) {
	var req request.ReclassifyRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := validation.ValidateISINs(req.ISINs); err != nil {
		response.RespondAppError(w, err, "")
		return
	}

	summary, err := h.maintenanceService.Reclassify(r.Context(), req.ISINs)
	if err != nil {
		response.RespondAppError(w, err, "reclassification failed")
		return
	}
	response.RespondJSON(w, http.StatusOK, summary)
}

// Classifications lists stored classifications.
//
// Endpoint: GET /api/maintenance/classifications?status=CLASSIFIED|UNCLASSIFIED
func (h *MaintenanceHandler) Classifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.maintenanceService.ListClassifications(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		response.RespondAppError(w, err, "failed to list classifications")
		return
	}
	response.RespondJSON(w, http.StatusOK, list)
}
