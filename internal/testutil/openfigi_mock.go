package testutil

import (
	"context"

	"github.com/ndewijer/custody-ingest/internal/openfigi"
)

// MockOpenFIGIClient is a mock implementation of openfigi.Client for testing.
// ISINs without a configured response are answered with an OpenFIGI
// "No identifier found." error entry.
type MockOpenFIGIClient struct {
	// Responses maps ISIN to the answer to return
	Responses map[string]openfigi.MappingResponse
	// MockError is returned instead of any answer when set
	MockError error
	// CallCount tracks how many mapping calls were made
	CallCount int
	// Requested records every ISIN asked for, in order
	Requested []string
}

// NewMockOpenFIGIClient creates a mock with no configured answers.
func NewMockOpenFIGIClient() *MockOpenFIGIClient {
	return &MockOpenFIGIClient{Responses: map[string]openfigi.MappingResponse{}}
}

// MapISINs returns the configured answers.
func (m *MockOpenFIGIClient) MapISINs(_ context.Context, isins []string) (map[string]openfigi.MappingResponse, error) {
	m.CallCount++
	m.Requested = append(m.Requested, isins...)
	if m.MockError != nil {
		return nil, m.MockError
	}
	out := make(map[string]openfigi.MappingResponse, len(isins))
	for _, isin := range isins {
		resp, ok := m.Responses[isin]
		if !ok {
			resp = openfigi.MappingResponse{Error: "No identifier found."}
		}
		out[isin] = resp
	}
	return out, nil
}

// WithError configures the mock to fail every call.
func (m *MockOpenFIGIClient) WithError(err error) *MockOpenFIGIClient {
	m.MockError = err
	return m
}

// WithInstrument answers isin with a single listing.
func (m *MockOpenFIGIClient) WithInstrument(isin, ticker, exchCode, marketSector, securityType string) *MockOpenFIGIClient {
	m.Responses[isin] = openfigi.MappingResponse{Data: []openfigi.MappingResult{{
		Ticker:       ticker,
		ExchCode:     exchCode,
		Name:         ticker + " TEST",
		MarketSector: marketSector,
		SecurityType: securityType,
	}}}
	return m
}
