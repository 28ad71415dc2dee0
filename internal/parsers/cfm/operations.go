package cfm

import (
	"github.com/ndewijer/custody-ingest/internal/model"
	"github.com/ndewijer/custody-ingest/internal/parsers"
	"github.com/ndewijer/custody-ingest/internal/parsers/canonical"
	"github.com/ndewijer/custody-ingest/internal/parsers/fields"
)

// mesp column positions.
const (
	cashPortfolio = iota
	cashCurrency
	cashOperationDate
	cashValueDate
	cashCode
	cashLabel
	cashAmount
	cashDebitCredit
	cashReference
)

// mtit column positions.
const (
	secPortfolio = iota
	secTradeDate
	secValueDate
	secCode
	secISIN
	secName
	secQuantity
	secPrice
	secCurrency
	secGross
	secFees
	secTaxes
	secNet
	secDebitCredit
)

var cashCodes = fields.OperationCodes{
	"CB":  model.OperationTypeCardPayment,
	"INT": model.OperationTypeInterest,
	"FRA": model.OperationTypeFee,
	"DDG": model.OperationTypeFee,
	"IMP": model.OperationTypeTax,
	"DIV": model.OperationTypeDividend,
	"CPN": model.OperationTypeCoupon,
}

var securityCodes = fields.OperationCodes{
	"ACHA": model.OperationTypeBuy,
	"SOUS": model.OperationTypeBuy,
	"VENT": model.OperationTypeSell,
	"REMB": model.OperationTypeRedemption,
	"ENTR": model.OperationTypeTransferIn,
	"SORT": model.OperationTypeTransferOut,
	"CPN":  model.OperationTypeCoupon,
	"DIV":  model.OperationTypeDividend,
}

// CashOperationsParser reads *-mesp.csv cash movement logs.
type CashOperationsParser struct {
	parsers.Format
}

func NewCashOperationsParser() *CashOperationsParser {
	return &CashOperationsParser{Format: format("cfm-cash-operations", model.FileKindCashOperations, "mesp", cashReference)}
}

func (p *CashOperationsParser) Parse(content []byte, fc model.FileContext) (parsers.Result, error) {
	return parsers.Run(p, p.Format, content, fc)
}

func (p *CashOperationsParser) MapRow(row parsers.Row, fc model.FileContext) (*parsers.Record, bool) {
	portfolio := row.At(cashPortfolio)
	if portfolio == "" {
		return nil, false
	}
	tr := p.Tolerant()

	op := canonical.NewOperation(fc)
	op.PortfolioCode = portfolio
	op.Currency = tr.Currency(row.At(cashCurrency))
	if d := tr.Date(row.At(cashOperationDate)); d != nil {
		op.OperationDate = *d
	}
	op.ValueDate = tr.Date(row.At(cashValueDate))
	op.BookingDate = tr.Date(row.At(cashOperationDate))
	op.Description = row.At(cashLabel)

	amount := tr.Amount(row.At(cashAmount))
	op.Direction = fields.ParseDirection(row.At(cashDebitCredit))
	if op.Direction == "" {
		op.Direction = fields.DirectionOf(amount)
	}
	op.Amount = fields.Signed(amount, op.Direction)
	op.OperationType = fields.InferOperationType(cashCodes, row.At(cashCode), op.Description, op.Direction)
	op.RawPayload = row.Raw()

	if op.Amount == 0 {
		return nil, false
	}
	return &parsers.Record{Operation: op, FieldErrors: tr.Errors}, true
}

// SecurityOperationsParser reads *-mtit.csv security movement logs.
type SecurityOperationsParser struct {
	parsers.Format
}

func NewSecurityOperationsParser() *SecurityOperationsParser {
	return &SecurityOperationsParser{Format: format("cfm-security-operations", model.FileKindSecurityOperations, "mtit", secDebitCredit)}
}

func (p *SecurityOperationsParser) Parse(content []byte, fc model.FileContext) (parsers.Result, error) {
	return parsers.Run(p, p.Format, content, fc)
}

func (p *SecurityOperationsParser) MapRow(row parsers.Row, fc model.FileContext) (*parsers.Record, bool) {
	portfolio := row.At(secPortfolio)
	if portfolio == "" {
		return nil, false
	}
	tr := p.Tolerant()

	op := canonical.NewOperation(fc)
	op.PortfolioCode = portfolio
	if d := tr.Date(row.At(secTradeDate)); d != nil {
		op.OperationDate = *d
	}
	op.ValueDate = tr.Date(row.At(secValueDate))
	op.ISIN = tr.ISIN(row.At(secISIN))
	op.SecurityName = row.At(secName)
	op.Description = row.At(secName)
	op.Quantity = tr.Number(row.At(secQuantity))
	op.Price = tr.Number(row.At(secPrice))
	op.Currency = tr.Currency(row.At(secCurrency))
	op.Fees = tr.Number(row.At(secFees))
	op.Taxes = tr.Number(row.At(secTaxes))

	amount := tr.Amount(row.At(secNet))
	if amount == 0 {
		amount = tr.Amount(row.At(secGross))
	}
	op.Direction = fields.ParseDirection(row.At(secDebitCredit))
	if op.Direction == "" {
		op.Direction = fields.DirectionOf(amount)
	}
	op.Amount = fields.Signed(amount, op.Direction)
	op.OperationType = fields.InferOperationType(securityCodes, row.At(secCode), op.Description, op.Direction)
	op.RawPayload = row.Raw()

	if op.ISIN == nil && op.Amount == 0 {
		return nil, false
	}
	return &parsers.Record{Operation: op, FieldErrors: tr.Errors}, true
}
