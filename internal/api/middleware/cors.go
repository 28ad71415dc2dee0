package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// NewCORS returns the CORS policy for the admin API. Reads and uploads are
// the only verbs; the API key travels in a header, so no cookies are
// allowed across origins.
func NewCORS(allowedOrigins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", APIKeyHeader},
		ExposedHeaders: []string{"Content-Type", "X-Request-Id"},
		MaxAge:         300,
	})
}
