// Package openfigi provides a client for Bloomberg's OpenFIGI mapping API,
// used to classify securities by ISIN.
package openfigi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ndewijer/custody-ingest/internal/apperrors"
)

// DefaultBaseURL is the public OpenFIGI v3 endpoint.
const DefaultBaseURL = "https://api.openfigi.com/v3"

// MappingRequest represents one job of a mapping call.
type MappingRequest struct {
	IDType   string `json:"idType"`
	IDValue  string `json:"idValue"`
	ExchCode string `json:"exchCode,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// MappingResult represents a single instrument returned by OpenFIGI.
type MappingResult struct {
	FIGI          string `json:"figi"`
	Ticker        string `json:"ticker"`
	ExchCode      string `json:"exchCode"`
	Name          string `json:"name"`
	MarketSector  string `json:"marketSector"`
	SecurityType  string `json:"securityType"`
	SecurityType2 string `json:"securityType2"`
	CompositeFIGI string `json:"compositeFIGI"`
}

// MappingResponse is the answer to one MappingRequest. Error is set when the
// identifier is unknown.
type MappingResponse struct {
	Data    []MappingResult `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Warning string          `json:"warning,omitempty"`
}

// Client maps ISINs to instrument descriptions.
type Client interface {
	MapISINs(ctx context.Context, isins []string) (map[string]MappingResponse, error)
}

// Options configures an HTTPClient.
type Options struct {
	BaseURL           string
	APIKey            string
	RequestsPerSecond float64
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	HTTPClient        *http.Client
}

// HTTPClient talks to the OpenFIGI REST API. Every request waits on a token
// bucket; 429 responses are retried with exponential backoff.
type HTTPClient struct {
	baseURL        string
	apiKey         string
	httpClient     *http.Client
	limiter        *rate.Limiter
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	log            zerolog.Logger
}

// NewClient creates an HTTPClient. Zero options fall back to defaults:
// the public endpoint, no throttle, 5 attempts, 2s initial and 30s max backoff.
func NewClient(opts Options, log zerolog.Logger) *HTTPClient {
	c := &HTTPClient{
		baseURL:        opts.BaseURL,
		apiKey:         opts.APIKey,
		httpClient:     opts.HTTPClient,
		limiter:        rate.NewLimiter(rate.Inf, 1),
		maxAttempts:    opts.MaxAttempts,
		initialBackoff: opts.InitialBackoff,
		maxBackoff:     opts.MaxBackoff,
		log:            log.With().Str("component", "openfigi").Logger(),
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = 5
	}
	if c.initialBackoff <= 0 {
		c.initialBackoff = 2 * time.Second
	}
	if c.maxBackoff <= 0 {
		c.maxBackoff = 30 * time.Second
	}
	return c
}

// MapISINs maps every ISIN in one request. The result holds one entry per
// requested ISIN.
func (c *HTTPClient) MapISINs(ctx context.Context, isins []string) (map[string]MappingResponse, error) {
	out := make(map[string]MappingResponse, len(isins))
	if len(isins) == 0 {
		return out, nil
	}

	requests := make([]MappingRequest, len(isins))
	for i, isin := range isins {
		requests[i] = MappingRequest{IDType: "ID_ISIN", IDValue: isin}
	}

	responses, err := c.doRequest(ctx, requests)
	if err != nil {
		return nil, err
	}
	if len(responses) != len(isins) {
		return nil, fmt.Errorf("OpenFIGI returned %d results for %d requests", len(responses), len(isins))
	}

	for i, isin := range isins {
		out[isin] = responses[i]
	}
	return out, nil
}

func (c *HTTPClient) doRequest(ctx context.Context, requests []MappingRequest) ([]MappingResponse, error) {
	body, err := json.Marshal(requests)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	backoff := c.initialBackoff
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > c.maxBackoff {
				backoff = c.maxBackoff
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mapping", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("X-OPENFIGI-APIKEY", c.apiKey)
		}

		c.log.Debug().Int("count", len(requests)).Int("attempt", attempt+1).Msg("Making OpenFIGI request")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			c.log.Warn().Int("attempt", attempt+1).Dur("backoff", backoff).Msg("OpenFIGI rate limited, backing off")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("OpenFIGI API error: status %d, body: %s", resp.StatusCode, string(data))
		}

		var responses []MappingResponse
		if err := json.Unmarshal(data, &responses); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return responses, nil
	}

	return nil, fmt.Errorf("%w after %d attempts", apperrors.ErrRateLimited, c.maxAttempts)
}
