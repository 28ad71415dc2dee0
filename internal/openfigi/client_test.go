package openfigi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/custody-ingest/internal/apperrors"
	"github.com/ndewijer/custody-ingest/internal/logging"
)

func newTestClient(url string, attempts int) *HTTPClient {
	return NewClient(Options{
		BaseURL:        url,
		APIKey:         "secret",
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}, logging.Nop())
}

func TestMapISINs(t *testing.T) {
	t.Run("maps responses back to ISINs by position", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/mapping", r.URL.Path)
			assert.Equal(t, "secret", r.Header.Get("X-OPENFIGI-APIKEY"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var reqs []MappingRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&reqs))
			require.Len(t, reqs, 2)
			assert.Equal(t, "ID_ISIN", reqs[0].IDType)
			assert.Equal(t, "US0378331005", reqs[0].IDValue)

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode([]MappingResponse{
				{Data: []MappingResult{{Ticker: "AAPL", ExchCode: "US", SecurityType: "Common Stock", MarketSector: "Equity"}}},
				{Error: "No identifier found."},
			})
		}))
		defer server.Close()

		c := newTestClient(server.URL, 3)
		got, err := c.MapISINs(context.Background(), []string{"US0378331005", "XS0000000000"})
		require.NoError(t, err)

		require.Len(t, got, 2)
		assert.Equal(t, "AAPL", got["US0378331005"].Data[0].Ticker)
		assert.Equal(t, "No identifier found.", got["XS0000000000"].Error)
	})

	t.Run("empty input makes no request", func(t *testing.T) {
		c := newTestClient("http://127.0.0.1:1", 1)
		got, err := c.MapISINs(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("retries after 429", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_ = json.NewEncoder(w).Encode([]MappingResponse{{Data: []MappingResult{{Ticker: "MC"}}}})
		}))
		defer server.Close()

		c := newTestClient(server.URL, 5)
		got, err := c.MapISINs(context.Background(), []string{"FR0000121014"})
		require.NoError(t, err)
		assert.Equal(t, "MC", got["FR0000121014"].Data[0].Ticker)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		c := newTestClient(server.URL, 3)
		_, err := c.MapISINs(context.Background(), []string{"FR0000121014"})
		assert.ErrorIs(t, err, apperrors.ErrRateLimited)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("other status codes fail immediately", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "bad key", http.StatusUnauthorized)
		}))
		defer server.Close()

		c := newTestClient(server.URL, 3)
		_, err := c.MapISINs(context.Background(), []string{"FR0000121014"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 401")
		assert.NotErrorIs(t, err, apperrors.ErrRateLimited)
	})

	t.Run("result count mismatch is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode([]MappingResponse{})
		}))
		defer server.Close()

		c := newTestClient(server.URL, 1)
		_, err := c.MapISINs(context.Background(), []string{"FR0000121014"})
		assert.Error(t, err)
	})

	t.Run("cancelled context stops backoff", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		c := NewClient(Options{BaseURL: server.URL, MaxAttempts: 5, InitialBackoff: time.Hour}, logging.Nop())
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := c.MapISINs(ctx, []string{"FR0000121014"})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Options{}, logging.Nop())
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, 5, c.maxAttempts)
	assert.Equal(t, 2*time.Second, c.initialBackoff)
	assert.Equal(t, 30*time.Second, c.maxBackoff)
}
