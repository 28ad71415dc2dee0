package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/custody-ingest/internal/api/request"
	"github.com/ndewijer/custody-ingest/internal/api/response"
	"github.com/ndewijer/custody-ingest/internal/service"
)

// PositionHandler serves canonical positions.
type PositionHandler struct {
	positionService *service.PositionService
}

// NewPositionHandler creates a new PositionHandler
func NewPositionHandler(positionService *service.PositionService) *PositionHandler {
	return &PositionHandler{positionService: positionService}
}

// Latest returns the current record of every holding.
//
// Endpoint: GET /api/positions?bank=&user=&portfolio=&isin=&type=&limit=
func (h *PositionHandler) Latest(w http.ResponseWriter, r *http.Request) {
	filter, err := request.ParsePositionFilter(r.URL.Query())
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid filter", err.Error())
		return
	}

	positions, err := h.positionService.ListLatest(r.Context(), filter)
	if err != nil {
		response.RespondAppError(w, err, "failed to list positions")
		return
	}
	response.RespondJSON(w, http.StatusOK, positions)
}

// History returns every version of one holding, newest first.
//
// Endpoint: GET /api/positions/history?bank=EDR&key=EDR|P001|FR0000121014|-
func (h *PositionHandler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bankID := strings.ToUpper(strings.TrimSpace(q.Get("bank")))
	key := strings.TrimSpace(q.Get("key"))
	if bankID == "" && key != "" {
		bankID = strings.SplitN(key, "|", 2)[0]
	}

	positions, err := h.positionService.History(r.Context(), bankID, key)
	if err != nil {
		response.RespondAppError(w, err, "failed to load position history")
		return
	}
	response.RespondJSON(w, http.StatusOK, positions)
}

// Position returns one record by ID.
//
// Endpoint: GET /api/positions/{uuid}
func (h *PositionHandler) Position(w http.ResponseWriter, r *http.Request) {
	position, err := h.positionService.GetPosition(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		response.RespondAppError(w, err, "failed to load position")
		return
	}
	response.RespondJSON(w, http.StatusOK, position)
}

// OperationHandler serves canonical operations.
type OperationHandler struct {
	operationService *service.OperationService
}

// NewOperationHandler creates a new OperationHandler
func NewOperationHandler(operationService *service.OperationService) *OperationHandler {
	return &OperationHandler{operationService: operationService}
}

// Operations lists movements, most recent first.
//
// Endpoint: GET /api/operations?bank=&portfolio=&isin=&type=&from=&to=&limit=
func (h *OperationHandler) Operations(w http.ResponseWriter, r *http.Request) {
	filter, err := request.ParseOperationFilter(r.URL.Query())
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid filter", err.Error())
		return
	}

	ops, err := h.operationService.ListOperations(r.Context(), filter)
	if err != nil {
		response.RespondAppError(w, err, "failed to list operations")
		return
	}
	response.RespondJSON(w, http.StatusOK, ops)
}
