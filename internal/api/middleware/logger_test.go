package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/custody-ingest/internal/api/middleware"
	"github.com/ndewijer/custody-ingest/internal/logging"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewWithWriter(&buf, "debug", "json")

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	})
	handler := chimiddleware.RequestID(middleware.Logger(log)(next))

	req := httptest.NewRequest(http.MethodGet, "/api/positions/x%0Aforged", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "http", entry["component"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/api/positions/xforged", entry["path"])
	assert.EqualValues(t, 404, entry["status"])
	assert.EqualValues(t, 7, entry["bytes"])
	assert.NotEmpty(t, entry["request_id"])
}
