package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/ndewijer/custody-ingest/internal/model"
	"github.com/ndewijer/custody-ingest/internal/parsers/canonical"
	"github.com/ndewijer/custody-ingest/internal/repository"
)

// PositionBuilder provides a fluent interface for creating test positions.
//
// Example usage:
//
//	// Simple creation with defaults
//	pos := testutil.NewPosition().Build(t, db)
//
//	// A second snapshot of the same holding, not yet reconciled
//	pos := testutil.NewPosition().
//	    WithISIN("FR0000120271").
//	    WithSnapshotDate(testutil.Date("2024-02-10")).
//	    NotLatest().
//	    Build(t, db)
type PositionBuilder struct {
	p model.Position
}

// NewPosition creates a PositionBuilder with sensible defaults: a latest,
// version 1 equity snapshot held by bank EDR in portfolio P001.
func NewPosition() *PositionBuilder {
	isin := MakeISIN("FR")
	price := 100.0
	return &PositionBuilder{p: model.Position{
		ID:                MakeID(),
		BankID:            "EDR",
		BankName:          "Edmond de Rothschild",
		PortfolioCode:     "P001",
		PortfolioCurrency: "EUR",
		ISIN:              &isin,
		SecurityName:      MakeSymbolName("Test Security"),
		SecurityType:      model.SecurityTypeEquity,
		Currency:          "EUR",
		Quantity:          10,
		Price:             &price,
		MarketValue:       1000,
		SnapshotDate:      Date("2024-01-10"),
		FileDate:          Date("2024-01-10"),
		ProcessedAt:       time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC),
		SourceFile:        "portef_ABC123_20240110.csv",
		Version:           1,
		IsLatest:          true,
	}}
}

// WithID sets a custom ID.
func (b *PositionBuilder) WithID(id string) *PositionBuilder {
	b.p.ID = id
	return b
}

// WithBank sets the bank identifier.
func (b *PositionBuilder) WithBank(bankID string) *PositionBuilder {
	b.p.BankID = bankID
	return b
}

// WithUser sets the owning user.
func (b *PositionBuilder) WithUser(userID string) *PositionBuilder {
	b.p.UserID = userID
	return b
}

// WithPortfolio sets the portfolio code.
func (b *PositionBuilder) WithPortfolio(code string) *PositionBuilder {
	b.p.PortfolioCode = code
	return b
}

// WithISIN sets the ISIN. An empty string clears it.
func (b *PositionBuilder) WithISIN(isin string) *PositionBuilder {
	if isin == "" {
		b.p.ISIN = nil
		return b
	}
	b.p.ISIN = &isin
	return b
}

// WithName sets the security name.
func (b *PositionBuilder) WithName(name string) *PositionBuilder {
	b.p.SecurityName = name
	return b
}

// WithType sets the security type.
func (b *PositionBuilder) WithType(t model.SecurityType) *PositionBuilder {
	b.p.SecurityType = t
	return b
}

// WithCurrency sets the position currency.
func (b *PositionBuilder) WithCurrency(ccy string) *PositionBuilder {
	b.p.Currency = ccy
	return b
}

// WithPrice sets the stored price and the cost price.
func (b *PositionBuilder) WithPrice(price, costPrice float64) *PositionBuilder {
	b.p.Price = &price
	b.p.CostPrice = &costPrice
	return b
}

// WithQuantity sets quantity and market value.
func (b *PositionBuilder) WithQuantity(qty, marketValue float64) *PositionBuilder {
	b.p.Quantity = qty
	b.p.MarketValue = marketValue
	return b
}

// WithMaturity sets the maturity date.
func (b *PositionBuilder) WithMaturity(d time.Time) *PositionBuilder {
	b.p.MaturityDate = &d
	return b
}

// WithSnapshotDate sets snapshot and file date.
func (b *PositionBuilder) WithSnapshotDate(d time.Time) *PositionBuilder {
	b.p.SnapshotDate = d
	b.p.FileDate = d
	return b
}

// WithProcessedAt sets the ingestion time.
func (b *PositionBuilder) WithProcessedAt(ts time.Time) *PositionBuilder {
	b.p.ProcessedAt = ts
	return b
}

// WithUniqueKey overrides the derived identity key.
func (b *PositionBuilder) WithUniqueKey(key string) *PositionBuilder {
	b.p.UniqueKey = key
	return b
}

// WithVersion sets the stored version number.
func (b *PositionBuilder) WithVersion(v int) *PositionBuilder {
	b.p.Version = v
	return b
}

// NotLatest clears the latest flag.
func (b *PositionBuilder) NotLatest() *PositionBuilder {
	b.p.IsLatest = false
	return b
}

// WithRawPayload sets the raw source columns.
func (b *PositionBuilder) WithRawPayload(raw map[string]string) *PositionBuilder {
	b.p.RawPayload = raw
	return b
}

// Value returns the position without storing it.
func (b *PositionBuilder) Value() model.Position {
	p := b.p
	p.PriceType = canonical.PriceTypeFor(p.SecurityType)
	if p.UniqueKey == "" {
		p.UniqueKey = canonical.UniqueKey(&p)
	}
	return p
}

// Build creates the position in the database and returns it.
func (b *PositionBuilder) Build(t *testing.T, db *sql.DB) model.Position {
	t.Helper()

	p := b.Value()
	if err := repository.NewPositionRepository(db).InsertPositions(context.Background(), []model.Position{p}); err != nil {
		t.Fatalf("Failed to create test position: %v", err)
	}
	return p
}

// OperationBuilder provides a fluent interface for creating test operations.
//
// Example usage:
//
//	op := testutil.NewOperation().
//	    WithType(model.OperationTypeBuy).
//	    WithAmount(-1500).
//	    Build(t, db)
type OperationBuilder struct {
	op model.Operation
}

// NewOperation creates an OperationBuilder with sensible defaults.
func NewOperation() *OperationBuilder {
	return &OperationBuilder{op: model.Operation{
		ID:            MakeID(),
		BankID:        "EDR",
		BankName:      "Edmond de Rothschild",
		PortfolioCode: "P001",
		OperationDate: Date("2024-01-10"),
		SecurityName:  MakeSymbolName("Test Security"),
		OperationType: model.OperationTypeDividend,
		Amount:        42.5,
		Currency:      "EUR",
		Description:   "Dividend",
		SourceFile:    "mvt_ABC123_20240110.csv",
		FileDate:      Date("2024-01-10"),
		ProcessedAt:   time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC),
		RawPayload:    map[string]string{"REF": randomAlphanumeric(8)},
	}}
}

// WithBank sets the bank identifier.
func (b *OperationBuilder) WithBank(bankID string) *OperationBuilder {
	b.op.BankID = bankID
	return b
}

// WithPortfolio sets the portfolio code.
func (b *OperationBuilder) WithPortfolio(code string) *OperationBuilder {
	b.op.PortfolioCode = code
	return b
}

// WithISIN sets the ISIN.
func (b *OperationBuilder) WithISIN(isin string) *OperationBuilder {
	b.op.ISIN = &isin
	return b
}

// WithType sets the operation type.
func (b *OperationBuilder) WithType(t model.OperationType) *OperationBuilder {
	b.op.OperationType = t
	return b
}

// WithAmount sets the signed amount.
func (b *OperationBuilder) WithAmount(amount float64) *OperationBuilder {
	b.op.Amount = amount
	return b
}

// WithDate sets the operation date.
func (b *OperationBuilder) WithDate(d time.Time) *OperationBuilder {
	b.op.OperationDate = d
	return b
}

// WithRawPayload sets the raw source columns.
func (b *OperationBuilder) WithRawPayload(raw map[string]string) *OperationBuilder {
	b.op.RawPayload = raw
	return b
}

// Value returns the finalized operation without storing it.
func (b *OperationBuilder) Value() model.Operation {
	op := b.op
	canonical.FinalizeOperation(&op)
	return op
}

// Build creates the operation in the database and returns it.
func (b *OperationBuilder) Build(t *testing.T, db *sql.DB) model.Operation {
	t.Helper()

	op := b.Value()
	if _, _, err := repository.NewOperationRepository(db).InsertOperations(context.Background(), []model.Operation{op}); err != nil {
		t.Fatalf("Failed to create test operation: %v", err)
	}
	return op
}

// CreateClassification stores a classification for isin.
func CreateClassification(t *testing.T, db *sql.DB, isin string, st model.SecurityType, status string) model.SecurityClassification {
	t.Helper()

	c := model.SecurityClassification{
		ISIN:         isin,
		SecurityType: st,
		Source:       "test",
		Status:       status,
		UpdatedAt:    time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC),
	}
	if err := repository.NewClassificationRepository(db).Upsert(context.Background(), c); err != nil {
		t.Fatalf("Failed to create test classification: %v", err)
	}
	return c
}
