package edr

import (
	"regexp"

	"github.com/ndewijer/custody-ingest/internal/model"
	"github.com/ndewijer/custody-ingest/internal/parsers"
	"github.com/ndewijer/custody-ingest/internal/parsers/canonical"
	"github.com/ndewijer/custody-ingest/internal/parsers/csvdialect"
	"github.com/ndewijer/custody-ingest/internal/parsers/fields"
)

// Movement export columns. PORTFOLIO, ISIN, DESCRIPTION, QUANTITY, PRICE and
// CCY are shared with the position export.
const (
	colTradeDate   = "TRADE_DATE"
	colValueDate   = "VALUE_DATE"
	colBookingDate = "BOOKING_DATE"
	colTrxCode     = "TRX_CODE"
	colSecurity    = "SECURITY"
	colAmount      = "AMOUNT"
	colFees        = "FEES"
	colTaxes       = "TAXES"
	colDebitCredit = "DC"
)

var operationCodes = fields.OperationCodes{
	"ACH":  model.OperationTypeBuy,
	"SOUS": model.OperationTypeBuy,
	"VTE":  model.OperationTypeSell,
	"CPN":  model.OperationTypeCoupon,
	"DIV":  model.OperationTypeDividend,
	"INT":  model.OperationTypeInterest,
	"RMB":  model.OperationTypeRedemption,
	"ENT":  model.OperationTypeTransferIn,
	"SOR":  model.OperationTypeTransferOut,
	"FRS":  model.OperationTypeFee,
	"DDG":  model.OperationTypeFee,
	"TAX":  model.OperationTypeTax,
	"CB":   model.OperationTypeCardPayment,
	"VIRE": model.OperationTypePaymentIn,
	"VIRS": model.OperationTypePaymentOut,
}

var operationsPattern = regexp.MustCompile(`^mvt_[A-Z0-9]+_(\d{8})\.csv$`)

// OperationsParser reads mvt_<ID>_<YYYYMMDD>.csv movement logs, which carry
// both cash and security movements.
type OperationsParser struct {
	parsers.Format
}

func NewOperationsParser() *OperationsParser {
	return &OperationsParser{Format: parsers.Format{
		ParserName:      "edr-operations",
		FileKind:        model.FileKindSecurityOperations,
		BankID:          BankID,
		BankName:        BankName,
		Pattern:         operationsPattern,
		PatternHint:     "mvt_<ID>_<YYYYMMDD>.csv",
		Dialect:         csvdialect.Comma,
		RequiredColumns: []string{colPortfolio, colTradeDate, colTrxCode, colAmount, colCurrency},
	}}
}

func (p *OperationsParser) Parse(content []byte, fc model.FileContext) (parsers.Result, error) {
	return parsers.Run(p, p.Format, content, fc)
}

func (p *OperationsParser) MapRow(row parsers.Row, fc model.FileContext) (*parsers.Record, bool) {
	portfolio := row.Get(colPortfolio)
	if portfolio == "" {
		return nil, false
	}
	tr := p.Tolerant()

	op := canonical.NewOperation(fc)
	op.PortfolioCode = portfolio
	switch {
	case row.Get(colTradeDate) != "":
		if d := tr.Date(row.Get(colTradeDate)); d != nil {
			op.OperationDate = *d
		}
	case row.Get(colBookingDate) != "":
		if d := tr.Date(row.Get(colBookingDate)); d != nil {
			op.OperationDate = *d
		}
	}
	op.ValueDate = tr.Date(row.Get(colValueDate))
	op.BookingDate = tr.Date(row.Get(colBookingDate))
	op.ISIN = tr.ISIN(row.Get(colISIN))
	op.SecurityName = row.Get(colSecurity)
	op.Description = row.Get(colDescription)
	op.Currency = tr.Currency(row.Get(colCurrency))
	op.Quantity = tr.Number(row.Get(colQuantity))
	op.Price = tr.Number(row.Get(colPrice))
	op.Fees = tr.Number(row.Get(colFees))
	op.Taxes = tr.Number(row.Get(colTaxes))

	amount := tr.Amount(row.Get(colAmount))
	op.Direction = fields.ParseDirection(row.Get(colDebitCredit))
	if op.Direction == "" {
		op.Direction = fields.DirectionOf(amount)
	}
	op.Amount = fields.Signed(amount, op.Direction)
	op.OperationType = fields.InferOperationType(operationCodes, row.Get(colTrxCode), op.Description, op.Direction)
	op.RawPayload = row.Raw()

	if op.Amount == 0 && op.ISIN == nil && op.Quantity == nil {
		return nil, false
	}
	return &parsers.Record{Operation: op, FieldErrors: tr.Errors}, true
}
