package model

// SecurityType classifies the instrument behind a position.
type SecurityType string

const (
	SecurityTypeCash              SecurityType = "CASH"
	SecurityTypeBond              SecurityType = "BOND"
	SecurityTypeEquity            SecurityType = "EQUITY"
	SecurityTypeETF               SecurityType = "ETF"
	SecurityTypeStructuredProduct SecurityType = "STRUCTURED_PRODUCT"
	SecurityTypeCertificate       SecurityType = "CERTIFICATE"
	SecurityTypeTermDeposit       SecurityType = "TERM_DEPOSIT"
	SecurityTypeFund              SecurityType = "FUND"
	SecurityTypeUnknown           SecurityType = "UNKNOWN"
)

// IsCashLike reports whether the instrument is identified by currency rather than ISIN.
func (t SecurityType) IsCashLike() bool {
	return t == SecurityTypeCash || t == SecurityTypeTermDeposit
}

// QuotedAsPercentage reports whether prices for this type are a fraction of nominal.
func (t SecurityType) QuotedAsPercentage() bool {
	switch t {
	case SecurityTypeBond, SecurityTypeStructuredProduct, SecurityTypeCertificate, SecurityTypeTermDeposit:
		return true
	default:
		return false
	}
}

// ParseSecurityType returns the matching SecurityType, or UNKNOWN.
func ParseSecurityType(s string) SecurityType {
	switch t := SecurityType(s); t {
	case SecurityTypeCash, SecurityTypeBond, SecurityTypeEquity, SecurityTypeETF,
		SecurityTypeStructuredProduct, SecurityTypeCertificate, SecurityTypeTermDeposit, SecurityTypeFund:
		return t
	default:
		return SecurityTypeUnknown
	}
}

// PriceType records how Position.Price must be read.
type PriceType string

const (
	PriceTypeAbsolute   PriceType = "ABSOLUTE"
	PriceTypePercentage PriceType = "PERCENTAGE"
)

// OperationType is the canonical kind of a cash or security movement.
type OperationType string

const (
	OperationTypeBuy         OperationType = "BUY"
	OperationTypeSell        OperationType = "SELL"
	OperationTypeCoupon      OperationType = "COUPON"
	OperationTypeDividend    OperationType = "DIVIDEND"
	OperationTypeInterest    OperationType = "INTEREST"
	OperationTypeRedemption  OperationType = "REDEMPTION"
	OperationTypeTransferIn  OperationType = "TRANSFER_IN"
	OperationTypeTransferOut OperationType = "TRANSFER_OUT"
	OperationTypeFee         OperationType = "FEE"
	OperationTypeTax         OperationType = "TAX"
	OperationTypeCardPayment OperationType = "CARD_PAYMENT"
	OperationTypePaymentIn   OperationType = "PAYMENT_IN"
	OperationTypePaymentOut  OperationType = "PAYMENT_OUT"
	OperationTypeOther       OperationType = "OTHER"
)

// Direction is the cash direction of an operation from the account holder's view.
type Direction string

const (
	DirectionCredit Direction = "CREDIT"
	DirectionDebit  Direction = "DEBIT"
)

// FileKind identifies what a statement export contains.
type FileKind string

const (
	FileKindPositions          FileKind = "POSITIONS"
	FileKindCashOperations     FileKind = "CASH_OPERATIONS"
	FileKindSecurityOperations FileKind = "SECURITY_OPERATIONS"
)

// IsOperations reports whether the file produces Operation records.
func (k FileKind) IsOperations() bool {
	return k == FileKindCashOperations || k == FileKindSecurityOperations
}
