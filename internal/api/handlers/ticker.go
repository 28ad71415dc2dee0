package handlers

import (
	"net/http"
	"strings"

	"github.com/ndewijer/custody-ingest/internal/api/response"
	"github.com/ndewijer/custody-ingest/internal/ticker"
)

// NormalizeResponse is returned by GET /api/ticker/normalize.
type NormalizeResponse struct {
	Symbol     string `json:"symbol"`
	Normalized string `json:"normalized"`
	Currency   string `json:"currency"`
}

// NormalizeTicker maps a raw symbol to SYMBOL.EXCHANGE form.
//
// Endpoint: GET /api/ticker/normalize?symbol=MC&exchange=&country=&currency=
func NormalizeTicker(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := strings.TrimSpace(q.Get("symbol"))
	if symbol == "" {
		response.RespondError(w, http.StatusBadRequest, "symbol is required", "")
		return
	}

	normalized := ticker.Normalize(symbol, ticker.Hints{
		Exchange: q.Get("exchange"),
		Country:  q.Get("country"),
		Currency: q.Get("currency"),
	})
	response.RespondJSON(w, http.StatusOK, NormalizeResponse{
		Symbol:     symbol,
		Normalized: normalized,
		Currency:   ticker.CurrencyForExchange(normalized),
	})
}
