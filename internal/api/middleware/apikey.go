package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/ndewijer/custody-ingest/internal/api/response"
)

// APIKeyHeader carries the admin key on guarded requests.
const APIKeyHeader = "X-API-Key"

// APIKey guards mutating routes with the X-API-Key header. When key is empty
// the routes are refused outright, so an unconfigured deployment never
// exposes them.
func APIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				response.RespondError(w, http.StatusInternalServerError, "unauthorized", "Authentication not loaded")
				return
			}
			provided := r.Header.Get(APIKeyHeader)
			if provided == "" {
				response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Missing API key")
				return
			}
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
