package handlers

import (
	"net/http"

	"github.com/ndewijer/custody-ingest/internal/api/response"
	"github.com/ndewijer/custody-ingest/internal/service"
)

// SystemHandler handles system-related HTTP requests
type SystemHandler struct {
	systemService *service.SystemService
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(systemService *service.SystemService) *SystemHandler {
	return &SystemHandler{
		systemService: systemService,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Error    string `json:"error,omitempty"`
}

// Health checks the health of the system and database connectivity
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.systemService.CheckHealth(r.Context()); err != nil {
		response.RespondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:   "unhealthy",
			Database: "disconnected",
			Error:    err.Error(),
		})
		return
	}

	response.RespondJSON(w, http.StatusOK, HealthResponse{
		Status:   "healthy",
		Database: "connected",
	})
}

// VersionInfoResponse represents the version check response.
type VersionInfoResponse struct {
	AppVersion string `json:"app_version"`
}

// Version handles GET /api/system/version.
func (h *SystemHandler) Version(w http.ResponseWriter, _ *http.Request) {
	response.RespondJSON(w, http.StatusOK, VersionInfoResponse{AppVersion: h.systemService.CheckVersion()})
}

// Stats handles GET /api/system/stats.
//
// Endpoint: GET /api/system/stats
// Response: 200 OK with service.StoreStats
// Error: 500 Internal Server Error if the store cannot be read
func (h *SystemHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.systemService.Stats(r.Context())
	if err != nil {
		response.RespondAppError(w, err, "failed to read store statistics")
		return
	}
	response.RespondJSON(w, http.StatusOK, stats)
}
