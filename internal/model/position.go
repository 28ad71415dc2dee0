package model

import "time"

// Position is one snapshot of a holding as reported by a custodian statement.
// Records are immutable once stored, apart from IsLatest, Version and UniqueKey
// which the reconciler and the deduplication engine maintain.
type Position struct {
	ID                string       `json:"id"`
	BankID            string       `json:"bankId"`
	BankName          string       `json:"bankName"`
	UserID            string       `json:"userId,omitempty"`
	PortfolioCode     string       `json:"portfolioCode"`
	PortfolioCurrency string       `json:"portfolioCurrency"`
	ISIN              *string      `json:"isin"`
	SecurityName      string       `json:"securityName"`
	SecurityType      SecurityType `json:"securityType"`
	Currency          string       `json:"currency"`
	Quantity          float64      `json:"quantity"`

	Price     *float64  `json:"price"`
	PriceType PriceType `json:"priceType"`

	MarketValue             float64  `json:"marketValue"`
	MarketValuePortfolioCcy *float64 `json:"marketValuePortfolioCcy"`
	CostPrice               *float64 `json:"costPrice"`
	CostBasis               *float64 `json:"costBasis"`
	CostBasisPortfolioCcy   *float64 `json:"costBasisPortfolioCcy"`
	UnrealizedPnl           *float64 `json:"unrealizedPnl"`
	UnrealizedPnlPortfolio  *float64 `json:"unrealizedPnlPortfolioCcy"`
	UnrealizedPnlPercent    *float64 `json:"unrealizedPnlPercent"`
	AccruedInterest         *float64 `json:"accruedInterest"`
	FXRate                  *float64 `json:"fxRate"`

	MaturityDate *time.Time `json:"maturityDate"`
	SnapshotDate time.Time  `json:"snapshotDate"`
	FileDate     time.Time  `json:"fileDate"`
	ProcessedAt  time.Time  `json:"processedAt"`
	SourceFile   string     `json:"sourceFile"`

	UniqueKey string `json:"uniqueKey"`
	Version   int    `json:"version"`
	IsLatest  bool   `json:"isLatest"`

	RawPayload map[string]string `json:"rawPayload,omitempty"`
}

// ISINOrEmpty returns the ISIN or "" when the position has none.
func (p Position) ISINOrEmpty() string {
	if p.ISIN == nil {
		return ""
	}
	return *p.ISIN
}

// PositionFilter narrows position queries. Zero values mean "any".
type PositionFilter struct {
	BankID        string
	UserID        string
	PortfolioCode string
	ISIN          string
	UniqueKey     string
	SecurityType  SecurityType
	LatestOnly    bool
	Limit         int
}

// PositionVersion is the slim projection the reconciler and the deduplication
// engine order and renumber.
type PositionVersion struct {
	ID           string
	UniqueKey    string
	SnapshotDate time.Time
	ProcessedAt  time.Time
	Version      int
	IsLatest     bool
}

// IdentityGroup is one bucket of the "latest records by logical identity" aggregate.
type IdentityGroup struct {
	Owner         string   `json:"owner"`
	PortfolioCode string   `json:"portfolioCode"`
	Identity      string   `json:"identity"`
	Count         int      `json:"count"`
	PositionIDs   []string `json:"positionIds"`
}
