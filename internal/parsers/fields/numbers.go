package fields

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/custody-ingest/internal/apperrors"
)

// placeholders are values banks print instead of leaving a cell empty.
var placeholders = map[string]struct{}{
	"-":    {},
	"--":   {},
	"N/A":  {},
	"NA":   {},
	"N.A.": {},
	"NULL": {},
	"ND":   {},
}

var numberCleaner = strings.NewReplacer(
	" ", "",
	"\u00a0", "",
	"\u202f", "",
	"'", "",
	"\u2019", "",
)

// ParseDecimal parses a locale-formatted number. Accepted shapes include
// "1 234,56", "1.234,56", "1,234.56", "-12.5", "12.5-" and "(12.5)".
//
// When a single separator is ambiguous ("1,234") it is read as a thousands
// separator if exactly three digits follow and the integer part is non-zero.
func ParseDecimal(raw string) (decimal.Decimal, error) {
	return parseDecimal(raw, false)
}

// ParseDecimalComma is ParseDecimal for exports that use a decimal comma,
// so "1,234" is 1.234 and "1.234" is 1234.
func ParseDecimalComma(raw string) (decimal.Decimal, error) {
	return parseDecimal(raw, true)
}

// ParseNumber is ParseDecimal returning a float64.
func ParseNumber(raw string) (float64, error) {
	d, err := ParseDecimal(raw)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

// ParseNumberComma is ParseDecimalComma returning a float64.
func ParseNumberComma(raw string) (float64, error) {
	d, err := ParseDecimalComma(raw)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

func parseDecimal(raw string, commaDecimal bool) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, apperrors.ErrEmptyField
	}
	if _, ok := placeholders[strings.ToUpper(s)]; ok {
		return decimal.Zero, apperrors.ErrEmptyField
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = numberCleaner.Replace(s)
	switch {
	case strings.HasSuffix(s, "-"):
		negative = !negative
		s = strings.TrimSuffix(s, "-")
	case strings.HasPrefix(s, "-"):
		negative = !negative
		s = strings.TrimPrefix(s, "-")
	case strings.HasPrefix(s, "+"):
		s = strings.TrimPrefix(s, "+")
	}
	if s == "" {
		return decimal.Zero, fmt.Errorf("%q: %w", raw, apperrors.ErrInvalidNumber)
	}

	s = canonicalSeparators(s, commaDecimal)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q: %w", raw, apperrors.ErrInvalidNumber)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// canonicalSeparators rewrites s so that "." is the only decimal separator
// and no grouping separators remain.
func canonicalSeparators(s string, commaDecimal bool) string {
	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			return strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")

	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return strings.ReplaceAll(s, ",", "")
		}
		if !commaDecimal && isGrouping(s, lastComma) {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)

	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			return strings.ReplaceAll(s, ".", "")
		}
		if commaDecimal && isGrouping(s, lastDot) {
			return strings.ReplaceAll(s, ".", "")
		}
		return s
	}
	return s
}

// isGrouping reports whether the separator at i looks like a thousands separator.
func isGrouping(s string, i int) bool {
	intPart, frac := s[:i], s[i+1:]
	if len(frac) != 3 || intPart == "" || len(intPart) > 3 {
		return false
	}
	return strings.Trim(intPart, "0") != ""
}
