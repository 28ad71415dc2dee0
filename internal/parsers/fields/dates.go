package fields

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ndewijer/custody-ingest/internal/apperrors"
)

// ParseDate parses the date shapes found in custodian exports: DDMMYYYY,
// YYYYMMDD, DD/MM/YYYY, DD.MM.YYYY, DD-MM-YYYY, YYYY-MM-DD and RFC 3339.
// A trailing time of day separated by a space is ignored.
//
// With separators, the position of the four digit year decides the order.
// Without separators, YYYYMMDD is tried first when the value starts with 19
// or 20, then DDMMYYYY. Empty masks such as "/  /" and all-zero dates return
// apperrors.ErrEmptyField. Results are midnight UTC.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if isEmptyDate(s) {
		return time.Time{}, apperrors.ErrEmptyField
	}

	if strings.ContainsRune(s, 'T') {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return dateOf(t), nil
		}
	}
	if i := strings.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}

	if isDigits(s) {
		return parseCompact(raw, s)
	}

	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '/' || r == '.' || r == '-'
	})
	if len(parts) != 3 || !isDigits(parts[0]) || !isDigits(parts[1]) || !isDigits(parts[2]) {
		return time.Time{}, fmt.Errorf("%q: %w", raw, apperrors.ErrInvalidDate)
	}

	var y, m, d string
	switch {
	case len(parts[0]) == 4:
		y, m, d = parts[0], parts[1], parts[2]
	case len(parts[2]) == 4:
		d, m, y = parts[0], parts[1], parts[2]
	case len(parts[2]) == 2:
		d, m, y = parts[0], parts[1], "20"+parts[2]
	default:
		return time.Time{}, fmt.Errorf("%q: %w", raw, apperrors.ErrInvalidDate)
	}
	return build(raw, y, m, d)
}

// DateOrNil is ParseDate with errors mapped to nil.
func DateOrNil(raw string) *time.Time {
	t, err := ParseDate(raw)
	if err != nil {
		return nil
	}
	return &t
}

// ParseCompactDate parses an eight digit YYYYMMDD value as found in file names.
func ParseCompactDate(s string) (time.Time, error) {
	if len(s) != 8 || !isDigits(s) {
		return time.Time{}, fmt.Errorf("%q: %w", s, apperrors.ErrInvalidDate)
	}
	return build(s, s[:4], s[4:6], s[6:])
}

func parseCompact(raw, s string) (time.Time, error) {
	if len(s) != 8 {
		return time.Time{}, fmt.Errorf("%q: %w", raw, apperrors.ErrInvalidDate)
	}
	if strings.HasPrefix(s, "19") || strings.HasPrefix(s, "20") {
		if t, err := build(raw, s[:4], s[4:6], s[6:]); err == nil {
			return t, nil
		}
	}
	return build(raw, s[4:], s[2:4], s[:2])
}

func build(raw, ys, ms, ds string) (time.Time, error) {
	y, errY := strconv.Atoi(ys)
	m, errM := strconv.Atoi(ms)
	d, errD := strconv.Atoi(ds)
	if errY != nil || errM != nil || errD != nil || m < 1 || m > 12 || d < 1 || y < 1900 {
		return time.Time{}, fmt.Errorf("%q: %w", raw, apperrors.ErrInvalidDate)
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || t.Month() != time.Month(m) {
		return time.Time{}, fmt.Errorf("%q: %w", raw, apperrors.ErrInvalidDate)
	}
	return t, nil
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// isEmptyDate matches blanks, placeholder masks and all-zero dates.
func isEmptyDate(s string) bool {
	if _, ok := placeholders[strings.ToUpper(s)]; ok {
		return true
	}
	for _, r := range s {
		switch r {
		case '0', '/', '.', '-', ' ':
		default:
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
