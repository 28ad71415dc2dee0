// Package edr parses Edmond de Rothschild statement exports: comma
// separated, quoted, with a header row.
package edr

import (
	"regexp"

	"github.com/ndewijer/custody-ingest/internal/model"
	"github.com/ndewijer/custody-ingest/internal/parsers"
	"github.com/ndewijer/custody-ingest/internal/parsers/canonical"
	"github.com/ndewijer/custody-ingest/internal/parsers/csvdialect"
	"github.com/ndewijer/custody-ingest/internal/parsers/fields"
)

const (
	BankID   = "EDR"
	BankName = "Edmond de Rothschild"
)

// Position export columns.
const (
	colPortfolio      = "PORTFOLIO"
	colPortfolioCcy   = "PTF_CCY"
	colPositionDate   = "POSITION_DATE"
	colISIN           = "ISIN"
	colDescription    = "DESCRIPTION"
	colAssetClass     = "ASSET_CLASS"
	colCurrency       = "CCY"
	colQuantity       = "QUANTITY"
	colPrice          = "PRICE"
	colCostPrice      = "COST_PRICE"
	colMarketValue    = "MKT_VALUE"
	colMarketValuePtf = "MKT_VALUE_PTF"
	colAccrued        = "ACCRUED_INT"
	colMaturity       = "MATURITY"
)

var positionTypes = fields.SecurityTypes{
	"ACT":  model.SecurityTypeEquity,
	"EQ":   model.SecurityTypeEquity,
	"ETF":  model.SecurityTypeETF,
	"OBL":  model.SecurityTypeBond,
	"BD":   model.SecurityTypeBond,
	"OPC":  model.SecurityTypeFund,
	"FDS":  model.SecurityTypeFund,
	"PS":   model.SecurityTypeStructuredProduct,
	"CERT": model.SecurityTypeCertificate,
	"LIQ":  model.SecurityTypeCash,
	"CASH": model.SecurityTypeCash,
	"DAT":  model.SecurityTypeTermDeposit,
	"DEP":  model.SecurityTypeTermDeposit,
}

var positionsPattern = regexp.MustCompile(`^portef_[A-F0-9]+_(\d{8})\.csv$`)

// PositionsParser reads portef_<HEX>_<YYYYMMDD>.csv position snapshots.
type PositionsParser struct {
	parsers.Format
}

func NewPositionsParser() *PositionsParser {
	return &PositionsParser{Format: parsers.Format{
		ParserName:      "edr-positions",
		FileKind:        model.FileKindPositions,
		BankID:          BankID,
		BankName:        BankName,
		Pattern:         positionsPattern,
		PatternHint:     "portef_<HEX>_<YYYYMMDD>.csv",
		Dialect:         csvdialect.Comma,
		RequiredColumns: []string{colPortfolio, colISIN, colAssetClass, colCurrency, colQuantity, colMarketValue},
	}}
}

func (p *PositionsParser) Parse(content []byte, fc model.FileContext) (parsers.Result, error) {
	return parsers.Run(p, p.Format, content, fc)
}

func (p *PositionsParser) MapRow(row parsers.Row, fc model.FileContext) (*parsers.Record, bool) {
	portfolio := row.Get(colPortfolio)
	if portfolio == "" {
		return nil, false
	}
	tr := p.Tolerant()

	pos := canonical.NewPosition(fc)
	pos.PortfolioCode = portfolio
	pos.PortfolioCurrency = tr.Currency(row.Get(colPortfolioCcy))
	if d := tr.Date(row.Get(colPositionDate)); d != nil {
		pos.SnapshotDate = *d
	}
	pos.ISIN = tr.ISIN(row.Get(colISIN))
	pos.SecurityName = row.Get(colDescription)
	pos.SecurityType = positionTypes.Lookup(row.Get(colAssetClass))
	pos.Currency = tr.Currency(row.Get(colCurrency))
	if pos.Currency == "" {
		pos.Currency = pos.PortfolioCurrency
	}
	pos.Quantity = tr.Amount(row.Get(colQuantity))
	pos.Price = tr.Number(row.Get(colPrice))
	pos.CostPrice = tr.Number(row.Get(colCostPrice))
	pos.MarketValue = tr.Amount(row.Get(colMarketValue))
	pos.MarketValuePortfolioCcy = tr.Number(row.Get(colMarketValuePtf))
	pos.AccruedInterest = tr.Number(row.Get(colAccrued))
	pos.MaturityDate = tr.Date(row.Get(colMaturity))
	pos.RawPayload = row.Raw()

	if !canonical.HasIdentity(pos) {
		return nil, false
	}
	return &parsers.Record{Position: pos, FieldErrors: tr.Errors}, true
}
