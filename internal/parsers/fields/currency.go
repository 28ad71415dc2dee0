package fields

import (
	"fmt"
	"strings"

	"github.com/ndewijer/custody-ingest/internal/apperrors"
)

// numericCurrencies maps ISO 4217 numeric codes to alpha codes.
var numericCurrencies = map[string]string{
	"036": "AUD",
	"124": "CAD",
	"156": "CNY",
	"203": "CZK",
	"208": "DKK",
	"344": "HKD",
	"348": "HUF",
	"356": "INR",
	"376": "ILS",
	"392": "JPY",
	"484": "MXN",
	"554": "NZD",
	"578": "NOK",
	"643": "RUB",
	"682": "SAR",
	"702": "SGD",
	"710": "ZAR",
	"752": "SEK",
	"756": "CHF",
	"784": "AED",
	"826": "GBP",
	"840": "USD",
	"949": "TRY",
	"978": "EUR",
	"985": "PLN",
	"986": "BRL",
}

// ParseCurrency returns the ISO 4217 alpha code for raw, which may already be
// an alpha code or a numeric code with or without leading zeros.
func ParseCurrency(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", apperrors.ErrEmptyField
	}
	if isDigits(s) {
		if len(s) < 3 {
			s = strings.Repeat("0", 3-len(s)) + s
		}
		if alpha, ok := numericCurrencies[s]; ok {
			return alpha, nil
		}
		return "", fmt.Errorf("%q: %w", raw, apperrors.ErrUnknownCurrency)
	}
	if len(s) == 3 && isLetters(s) {
		return s, nil
	}
	return "", fmt.Errorf("%q: %w", raw, apperrors.ErrUnknownCurrency)
}

func isLetters(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
