package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/custody-ingest/internal/apperrors"
	"github.com/ndewijer/custody-ingest/internal/validation"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"format error", apperrors.NewFormatError("x.csv", apperrors.ErrInvalidHeader, "missing"), http.StatusUnprocessableEntity},
		{"no parser", fmt.Errorf("%w: x.csv", apperrors.ErrNoParser), http.StatusUnprocessableEntity},
		{"not found", apperrors.ErrPositionNotFound, http.StatusNotFound},
		{"validation", &validation.Error{Fields: map[string]string{"a": "b"}}, http.StatusBadRequest},
		{"date range", apperrors.ErrInvalidDateRange, http.StatusBadRequest},
		{"busy", apperrors.ErrMaintenanceInProgress, http.StatusConflict},
		{"disabled", apperrors.ErrEnrichmentDisabled, http.StatusServiceUnavailable},
		{"throttled", apperrors.ErrRateLimited, http.StatusTooManyRequests},
		{"unexpected", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestRespondAppError(t *testing.T) {
	t.Run("validation fields are returned as details", func(t *testing.T) {
		w := httptest.NewRecorder()
		RespondAppError(w, &validation.Error{Fields: map[string]string{"mode": "bad"}}, "unused")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var body struct {
			Error   string            `json:"error"`
			Details map[string]string `json:"details"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "validation failed", body.Error)
		assert.Equal(t, "bad", body.Details["mode"])
	})

	t.Run("unexpected errors use the message", func(t *testing.T) {
		w := httptest.NewRecorder()
		RespondAppError(w, errors.New("disk full"), "failed to list runs")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		var body ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "failed to list runs", body.Error)
		assert.Equal(t, "disk full", body.Details)
	})
}
