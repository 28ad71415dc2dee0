package fields

import (
	"strings"

	"github.com/ndewijer/custody-ingest/internal/model"
)

// SecurityTypes is a per-bank table from instrument class code to canonical type.
type SecurityTypes map[string]model.SecurityType

// Lookup returns the canonical type for code, or UNKNOWN.
func (t SecurityTypes) Lookup(code string) model.SecurityType {
	if st, ok := t[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return st
	}
	return model.SecurityTypeUnknown
}

// OperationCodes is a per-bank table from transaction code to canonical type.
type OperationCodes map[string]model.OperationType

type keywordRule struct {
	keywords []string
	opType   model.OperationType
}

// operationKeywords is checked in order, so taxes and fees on a coupon or a
// dividend are classified as TAX or FEE rather than as the income itself.
var operationKeywords = []keywordRule{
	{[]string{"impot", "retenue a la source", "withholding", "taxe", "tax", "prelevement"}, model.OperationTypeTax},
	{[]string{"droits de garde", "commission", "courtage", "frais", "fee"}, model.OperationTypeFee},
	{[]string{"coupon"}, model.OperationTypeCoupon},
	{[]string{"dividende", "dividend"}, model.OperationTypeDividend},
	{[]string{"interets", "interet", "interest"}, model.OperationTypeInterest},
	{[]string{"remboursement", "echeance", "redemption", "maturity"}, model.OperationTypeRedemption},
	{[]string{"entree de titres", "reception de titres", "transfer in"}, model.OperationTypeTransferIn},
	{[]string{"sortie de titres", "livraison de titres", "transfer out"}, model.OperationTypeTransferOut},
	{[]string{"souscription", "achat", "purchase", "buy"}, model.OperationTypeBuy},
	{[]string{"vente", "cession", "sale", "sell"}, model.OperationTypeSell},
	{[]string{"carte", "card"}, model.OperationTypeCardPayment},
}

var accentFolder = strings.NewReplacer(
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"à", "a", "â", "a", "ä", "a",
	"î", "i", "ï", "i",
	"ô", "o", "ö", "o",
	"ù", "u", "û", "u", "ü", "u",
	"ç", "c",
)

// InferOperationType classifies a movement. The bank code table wins; then
// keywords in the free-text description; then the credit/debit direction.
func InferOperationType(codes OperationCodes, code, description string, dir model.Direction) model.OperationType {
	if t, ok := codes[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return t
	}

	text := accentFolder.Replace(strings.ToLower(description))
	for _, rule := range operationKeywords {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.opType
			}
		}
	}

	switch dir {
	case model.DirectionCredit:
		return model.OperationTypePaymentIn
	case model.DirectionDebit:
		return model.OperationTypePaymentOut
	default:
		return model.OperationTypeOther
	}
}

// ParseDirection reads a credit/debit marker. Unknown markers return "".
func ParseDirection(raw string) model.Direction {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "C", "CR", "CRE", "CREDIT", "+":
		return model.DirectionCredit
	case "D", "DB", "DEB", "DEBIT", "-":
		return model.DirectionDebit
	default:
		return ""
	}
}

// DirectionOf derives the direction from a signed amount.
func DirectionOf(amount float64) model.Direction {
	if amount < 0 {
		return model.DirectionDebit
	}
	return model.DirectionCredit
}

// Signed applies dir to an unsigned amount: debits are negative.
func Signed(amount float64, dir model.Direction) float64 {
	if amount < 0 {
		amount = -amount
	}
	if dir == model.DirectionDebit {
		return -amount
	}
	return amount
}
