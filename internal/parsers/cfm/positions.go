package cfm

import (
	"github.com/ndewijer/custody-ingest/internal/model"
	"github.com/ndewijer/custody-ingest/internal/parsers"
	"github.com/ndewijer/custody-ingest/internal/parsers/canonical"
	"github.com/ndewijer/custody-ingest/internal/parsers/fields"
)

// mpos column positions.
const (
	posPortfolio = iota
	posPortfolioCcy
	posDate
	posAssetType
	posISIN
	posName
	posCurrency
	posQuantity
	posPrice
	posCostPrice
	posMarketValue
	posMarketValuePtf
	posAccrued
	posMaturity
)

var positionTypes = fields.SecurityTypes{
	"10": model.SecurityTypeEquity,
	"11": model.SecurityTypeETF,
	"20": model.SecurityTypeBond,
	"21": model.SecurityTypeBond,
	"30": model.SecurityTypeFund,
	"40": model.SecurityTypeStructuredProduct,
	"41": model.SecurityTypeCertificate,
	"50": model.SecurityTypeCash,
	"51": model.SecurityTypeTermDeposit,
}

// PositionsParser reads *-mpos.csv position snapshots.
type PositionsParser struct {
	parsers.Format
}

func NewPositionsParser() *PositionsParser {
	return &PositionsParser{Format: format("cfm-positions", model.FileKindPositions, "mpos", posMaturity)}
}

func (p *PositionsParser) Parse(content []byte, fc model.FileContext) (parsers.Result, error) {
	return parsers.Run(p, p.Format, content, fc)
}

func (p *PositionsParser) MapRow(row parsers.Row, fc model.FileContext) (*parsers.Record, bool) {
	portfolio := row.At(posPortfolio)
	if portfolio == "" {
		return nil, false
	}
	tr := p.Tolerant()

	pos := canonical.NewPosition(fc)
	pos.PortfolioCode = portfolio
	pos.PortfolioCurrency = tr.Currency(row.At(posPortfolioCcy))
	if d := tr.Date(row.At(posDate)); d != nil {
		pos.SnapshotDate = *d
	}
	pos.SecurityType = positionTypes.Lookup(row.At(posAssetType))
	pos.ISIN = tr.ISIN(row.At(posISIN))
	pos.SecurityName = row.At(posName)
	pos.Currency = tr.Currency(row.At(posCurrency))
	if pos.Currency == "" {
		pos.Currency = pos.PortfolioCurrency
	}
	pos.Quantity = tr.Amount(row.At(posQuantity))
	pos.Price = tr.Number(row.At(posPrice))
	pos.CostPrice = tr.Number(row.At(posCostPrice))
	pos.MarketValue = tr.Amount(row.At(posMarketValue))
	pos.MarketValuePortfolioCcy = tr.Number(row.At(posMarketValuePtf))
	pos.AccruedInterest = tr.Number(row.At(posAccrued))
	pos.MaturityDate = tr.Date(row.At(posMaturity))
	pos.RawPayload = row.Raw()

	if !canonical.HasIdentity(pos) {
		return nil, false
	}
	return &parsers.Record{Position: pos, FieldErrors: tr.Errors}, true
}
