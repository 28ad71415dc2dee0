package fields

import (
	"errors"
	"strings"
	"time"

	"github.com/ndewijer/custody-ingest/internal/apperrors"
)

// Tolerant reads the cells of one row. A cell that fails to parse becomes
// nil (or the zero value) and is counted in Errors; empty cells are not
// counted. Row mappers use it so that one bad cell never drops a row.
type Tolerant struct {
	// CommaDecimal selects ParseDecimalComma for numbers.
	CommaDecimal bool
	Errors       int
}

func (t *Tolerant) note(err error) {
	if err != nil && !errors.Is(err, apperrors.ErrEmptyField) {
		t.Errors++
	}
}

// Number returns the parsed number or nil.
func (t *Tolerant) Number(raw string) *float64 {
	parse := ParseNumber
	if t.CommaDecimal {
		parse = ParseNumberComma
	}
	v, err := parse(raw)
	if err != nil {
		t.note(err)
		return nil
	}
	return &v
}

// Amount is Number with nil mapped to zero.
func (t *Tolerant) Amount(raw string) float64 {
	if v := t.Number(raw); v != nil {
		return *v
	}
	return 0
}

// Date returns the parsed date or nil.
func (t *Tolerant) Date(raw string) *time.Time {
	v, err := ParseDate(raw)
	if err != nil {
		t.note(err)
		return nil
	}
	return &v
}

// Currency returns the alpha currency code or "".
func (t *Tolerant) Currency(raw string) string {
	v, err := ParseCurrency(raw)
	if err != nil {
		t.note(err)
		return ""
	}
	return v
}

// ISIN returns the upper-cased ISIN or nil when the cell is empty or not a plausible ISIN.
func (t *Tolerant) ISIN(raw string) *string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return nil
	}
	if !ValidISIN(s) {
		t.Errors++
		return nil
	}
	return &s
}

// ValidISIN checks the ISO 6166 shape: two letters, nine alphanumerics and a
// check digit. The check digit itself is not verified; banks export test and
// placeholder codes that fail it.
func ValidISIN(s string) bool {
	if len(s) != 12 || !isLetters(s[:2]) || !isDigits(s[11:]) {
		return false
	}
	for _, r := range s[2:11] {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
