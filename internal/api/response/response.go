// Package response provides utilities for sending consistent HTTP responses.
// It includes helpers for JSON responses and standardized error responses.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/ndewijer/custody-ingest/internal/apperrors"
	"github.com/ndewijer/custody-ingest/internal/validation"
)

// ErrorResponse represents a structured error response returned by the API.
// The Details field is optional and can contain additional context about the error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// RespondJSON sends a JSON response with the given status code.
// If data is nil, only the status code is sent.
// Logs encoding errors but does not fail the response.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Error().Err(err).Msg("failed to encode JSON response")
		}
	}
}

// RespondError sends a structured error response with the given status code.
//
// Example:
//
//	response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
//	response.RespondError(w, http.StatusNotFound, "resource not found", "")
func RespondError(w http.ResponseWriter, status int, message string, details any) {
	RespondJSON(w, status, ErrorResponse{
		Error:   message,
		Details: details,
	})
}

// RespondAppError maps err to a status code and sends it. message is used
// for unexpected errors only; known errors carry their own text.
func RespondAppError(w http.ResponseWriter, err error, message string) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg(message)
		RespondError(w, status, message, err.Error())
		return
	}

	var verr *validation.Error
	if errors.As(err, &verr) {
		RespondError(w, status, "validation failed", verr.Fields)
		return
	}
	RespondError(w, status, err.Error(), "")
}

// StatusFor returns the HTTP status that err maps to.
func StatusFor(err error) int {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case apperrors.IsFormatError(err), errors.Is(err, apperrors.ErrNoParser):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperrors.ErrPositionNotFound),
		errors.Is(err, apperrors.ErrClassificationNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrMissingRequiredField),
		errors.Is(err, apperrors.ErrInvalidDateRange),
		errors.Is(err, apperrors.ErrInvalidUUID):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrMaintenanceInProgress):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrEnrichmentDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperrors.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
