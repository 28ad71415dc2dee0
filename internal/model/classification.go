package model

import "time"

// Classification statuses.
const (
	ClassificationClassified   = "CLASSIFIED"
	ClassificationUnclassified = "UNCLASSIFIED"
)

// SecurityClassification caches what the enrichment service learned about an ISIN.
// UNCLASSIFIED rows are not retried automatically; an operator reclassifies them.
type SecurityClassification struct {
	ISIN         string       `json:"isin"`
	SecurityType SecurityType `json:"securityType"`
	Ticker       string       `json:"ticker,omitempty"`
	Exchange     string       `json:"exchange,omitempty"`
	Symbol       string       `json:"symbol,omitempty"`
	Currency     string       `json:"currency,omitempty"`
	Name         string       `json:"name,omitempty"`
	Source       string       `json:"source"`
	Status       string       `json:"status"`
	Error        string       `json:"error,omitempty"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// ClassificationSummary reports the outcome of one enrichment pass.
type ClassificationSummary struct {
	Requested       int           `json:"requested"`
	Classified      int           `json:"classified"`
	Unclassified    int           `json:"unclassified"`
	CacheHits       int           `json:"cacheHits"`
	Batches         int           `json:"batches"`
	PositionsUpdate int           `json:"positionsUpdated"`
	Duration        time.Duration `json:"duration"`
}
