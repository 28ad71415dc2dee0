// Package canonical turns bank-mapped values into canonical records: it
// normalises prices, derives cost basis and P&L, computes the implied FX rate
// and assigns identity keys.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ndewijer/custody-ingest/internal/model"
)

// percentThreshold is the raw price at or above which a percentage-quoted
// price is taken to be expressed in percent rather than as a fraction.
var percentThreshold = decimal.NewFromInt(10)

var hundred = decimal.NewFromInt(100)

// PriceTypeFor returns how prices of the given security type are quoted.
func PriceTypeFor(t model.SecurityType) model.PriceType {
	if t.QuotedAsPercentage() {
		return model.PriceTypePercentage
	}
	return model.PriceTypeAbsolute
}

// NormalizePrice maps a raw statement price onto its canonical scale.
// Percentage-quoted types are stored as a fraction of nominal: a raw value of
// 10 or more is divided by 100, so 92.86 becomes 0.9286. Other types are unchanged.
func NormalizePrice(raw float64, t model.SecurityType) float64 {
	if !t.QuotedAsPercentage() {
		return raw
	}
	d := decimal.NewFromFloat(raw)
	if d.Abs().LessThan(percentThreshold) {
		return raw
	}
	return d.Div(hundred).InexactFloat64()
}

// NormalizePricePtr is NormalizePrice for nullable prices.
func NormalizePricePtr(raw *float64, t model.SecurityType) *float64 {
	if raw == nil {
		return nil
	}
	v := NormalizePrice(*raw, t)
	return &v
}

// ImpliedFXRate is the rate the bank itself applied between the position
// currency and the portfolio currency: marketValuePortfolioCcy / marketValue.
// It is nil when either side is missing or the market value is zero.
func ImpliedFXRate(marketValue float64, marketValuePortfolioCcy *float64) *float64 {
	if marketValuePortfolioCcy == nil || marketValue == 0 {
		return nil
	}
	rate := decimal.NewFromFloat(*marketValuePortfolioCcy).Div(decimal.NewFromFloat(marketValue)).InexactFloat64()
	return &rate
}

// DerivePosition fills the derived fields of p in place. Values the bank
// reported are kept; only missing ones are computed.
//
// Cost basis is quantity times the normalised cost price. P&L is market value
// minus cost basis and the percentage is relative to cost basis. Portfolio
// currency figures use the implied FX rate. Accrued interest is excluded.
func DerivePosition(p *model.Position) {
	p.PriceType = PriceTypeFor(p.SecurityType)
	p.Price = NormalizePricePtr(p.Price, p.SecurityType)
	p.CostPrice = NormalizePricePtr(p.CostPrice, p.SecurityType)

	if p.FXRate == nil {
		p.FXRate = ImpliedFXRate(p.MarketValue, p.MarketValuePortfolioCcy)
	}
	if p.FXRate == nil && p.Currency != "" && p.Currency == p.PortfolioCurrency {
		one := 1.0
		p.FXRate = &one
	}
	if p.MarketValuePortfolioCcy == nil && p.FXRate != nil {
		p.MarketValuePortfolioCcy = mul(p.MarketValue, *p.FXRate)
	}

	if p.CostBasis == nil && p.CostPrice != nil {
		p.CostBasis = mul(p.Quantity, *p.CostPrice)
	}
	if p.CostBasis != nil {
		if p.UnrealizedPnl == nil {
			p.UnrealizedPnl = sub(p.MarketValue, *p.CostBasis)
		}
		if p.UnrealizedPnlPercent == nil && *p.CostBasis != 0 {
			pct := decimal.NewFromFloat(*p.UnrealizedPnl).
				Div(decimal.NewFromFloat(*p.CostBasis)).
				Mul(hundred).InexactFloat64()
			p.UnrealizedPnlPercent = &pct
		}
		if p.CostBasisPortfolioCcy == nil && p.FXRate != nil {
			p.CostBasisPortfolioCcy = mul(*p.CostBasis, *p.FXRate)
		}
	}
	if p.UnrealizedPnlPortfolio == nil && p.MarketValuePortfolioCcy != nil && p.CostBasisPortfolioCcy != nil {
		p.UnrealizedPnlPortfolio = sub(*p.MarketValuePortfolioCcy, *p.CostBasisPortfolioCcy)
	}
}

// Reclassify changes the security type of a stored position and recomputes
// the values that depend on it. The stored price must be on the scale of the
// previous type; absolute prices are rescaled when the new type is quoted in percent.
func Reclassify(p *model.Position, t model.SecurityType) {
	p.SecurityType = t
	p.CostBasis = nil
	p.CostBasisPortfolioCcy = nil
	p.UnrealizedPnl = nil
	p.UnrealizedPnlPortfolio = nil
	p.UnrealizedPnlPercent = nil
	DerivePosition(p)
}

func mul(a, b float64) *float64 {
	v := decimal.NewFromFloat(a).Mul(decimal.NewFromFloat(b)).InexactFloat64()
	return &v
}

func sub(a, b float64) *float64 {
	v := decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).InexactFloat64()
	return &v
}

// HasIdentity reports whether a position row identifies a holding: it has an
// ISIN, is cash-like, or carries a non-zero market value.
func HasIdentity(p *model.Position) bool {
	return p.ISINOrEmpty() != "" || p.SecurityType.IsCashLike() || p.MarketValue != 0
}

// UniqueKey builds bankId|portfolioCode|<ISIN or CCY:TYPE>|<maturity or ->.
func UniqueKey(p *model.Position) string {
	instrument := p.ISINOrEmpty()
	if instrument == "" {
		instrument = p.Currency + ":" + string(p.SecurityType)
	}
	maturity := "-"
	if p.MaturityDate != nil {
		maturity = p.MaturityDate.Format(time.DateOnly)
	}
	return strings.Join([]string{p.BankID, p.PortfolioCode, instrument, maturity}, "|")
}

// NewPosition returns a position pre-filled with provenance from fc.
func NewPosition(fc model.FileContext) *model.Position {
	return &model.Position{
		ID:           uuid.New().String(),
		BankID:       fc.BankID,
		BankName:     fc.BankName,
		UserID:       fc.UserID,
		SnapshotDate: fc.FileDate,
		FileDate:     fc.FileDate,
		ProcessedAt:  fc.ProcessedAt,
		SourceFile:   fc.FileName,
		SecurityType: model.SecurityTypeUnknown,
	}
}

// NewOperation returns an operation pre-filled with provenance from fc.
func NewOperation(fc model.FileContext) *model.Operation {
	return &model.Operation{
		ID:            uuid.New().String(),
		BankID:        fc.BankID,
		BankName:      fc.BankName,
		UserID:        fc.UserID,
		OperationDate: fc.FileDate,
		FileDate:      fc.FileDate,
		ProcessedAt:   fc.ProcessedAt,
		SourceFile:    fc.FileName,
		OperationType: model.OperationTypeOther,
	}
}

// FinalizePosition derives values and assigns the identity key. Version
// numbering is left to the reconciler.
func FinalizePosition(p *model.Position) {
	DerivePosition(p)
	p.UniqueKey = UniqueKey(p)
}

// FinalizeOperation derives the direction when missing and assigns the content hash.
func FinalizeOperation(op *model.Operation) {
	if op.Direction == "" {
		if op.Amount < 0 {
			op.Direction = model.DirectionDebit
		} else {
			op.Direction = model.DirectionCredit
		}
	}
	op.ContentHash = OperationHash(op)
}

// OperationHash identifies an operation by content so that a re-submitted
// or overlapping export does not store the same movement twice. Provenance
// (file name, file date, processing time) is excluded; the raw payload is
// included so that two distinct movements with equal amounts stay distinct.
func OperationHash(op *model.Operation) string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0x1f})
	}

	write(op.BankID)
	write(op.PortfolioCode)
	write(op.OperationDate.Format(time.DateOnly))
	write(optDate(op.ValueDate))
	write(op.ISINOrEmpty())
	write(string(op.OperationType))
	write(string(op.Direction))
	write(strconv.FormatFloat(op.Amount, 'f', -1, 64))
	write(op.Currency)
	write(optFloat(op.Quantity))
	write(optFloat(op.Price))

	keys := make([]string, 0, len(op.RawPayload))
	for k := range op.RawPayload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		write(k + "=" + op.RawPayload[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func optDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}

func optFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
