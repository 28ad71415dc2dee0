package model

import "time"

// Operation is a single cash or security movement taken from an operations export.
type Operation struct {
	ID            string        `json:"id"`
	BankID        string        `json:"bankId"`
	BankName      string        `json:"bankName"`
	UserID        string        `json:"userId,omitempty"`
	PortfolioCode string        `json:"portfolioCode"`
	OperationDate time.Time     `json:"operationDate"`
	ValueDate     *time.Time    `json:"valueDate"`
	BookingDate   *time.Time    `json:"bookingDate"`
	ISIN          *string       `json:"isin"`
	SecurityName  string        `json:"securityName,omitempty"`
	OperationType OperationType `json:"operationType"`
	Direction     Direction     `json:"direction"`
	Amount        float64       `json:"amount"`
	Currency      string        `json:"currency"`
	Quantity      *float64      `json:"quantity"`
	Price         *float64      `json:"price"`
	Fees          *float64      `json:"fees"`
	Taxes         *float64      `json:"taxes"`
	Description   string        `json:"description"`
	SourceFile    string        `json:"sourceFile"`
	FileDate      time.Time     `json:"fileDate"`
	ProcessedAt   time.Time     `json:"processedAt"`
	ContentHash   string        `json:"contentHash"`

	RawPayload map[string]string `json:"rawPayload,omitempty"`
}

// ISINOrEmpty returns the ISIN or "" when the operation has none.
func (o Operation) ISINOrEmpty() string {
	if o.ISIN == nil {
		return ""
	}
	return *o.ISIN
}

// OperationFilter narrows operation queries. Zero values mean "any".
type OperationFilter struct {
	BankID        string
	UserID        string
	PortfolioCode string
	ISIN          string
	OperationType OperationType
	From          time.Time
	To            time.Time
	Limit         int
}
