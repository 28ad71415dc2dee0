// Package csvdialect splits bank statement exports into rows and fields.
//
// Custodians disagree on delimiters, header rows and whitespace, and some of
// them emit quoted fields that span lines. A Dialect captures one bank's
// flavour; Split walks the content character by character and tracks the
// quote state so that a delimiter inside an open quote never ends a field.
// A quote in the middle of an unquoted field, such as an inch mark in a
// security name, is kept as text.
package csvdialect

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ndewijer/custody-ingest/internal/apperrors"
)

const defaultQuote = '"'

// Dialect describes one delimited-text flavour.
type Dialect struct {
	Delimiter rune
	// Quote defaults to '"'. Two consecutive quotes inside a quoted field are a literal quote.
	Quote     rune
	HasHeader bool
	TrimSpace bool
}

// Comma is the header-first, comma separated flavour.
var Comma = Dialect{Delimiter: ',', HasHeader: true, TrimSpace: true}

// Semicolon is the headerless, semicolon separated flavour used by continental back offices.
var Semicolon = Dialect{Delimiter: ';', HasHeader: false, TrimSpace: true}

func (d Dialect) quote() rune {
	if d.Quote == 0 {
		return defaultQuote
	}
	return d.Quote
}

func (d Dialect) delimiter() rune {
	if d.Delimiter == 0 {
		return ','
	}
	return d.Delimiter
}

// Split returns every non-blank row of content. A leading UTF-8 byte order
// mark is ignored. Both CRLF and LF end a row, except inside quotes.
func (d Dialect) Split(content []byte) ([][]string, error) {
	text := strings.TrimPrefix(string(content), "\ufeff")
	runes := []rune(text)
	delim, quote := d.delimiter(), d.quote()

	var (
		rows      [][]string
		row       []string
		field     strings.Builder
		inQuotes  bool
		quoted    bool
		line      = 1
		quoteLine int
	)

	endField := func() {
		v := field.String()
		if d.TrimSpace {
			v = strings.TrimSpace(v)
		}
		row = append(row, v)
		field.Reset()
		quoted = false
	}
	// A quote opens a quoted field only as the field's first character, or
	// after leading blanks when they are trimmed. Anywhere else it is literal.
	opensQuote := func() bool {
		if quoted {
			return false
		}
		if field.Len() == 0 {
			return true
		}
		return d.TrimSpace && strings.TrimSpace(field.String()) == ""
	}
	endRow := func() {
		endField()
		if !blank(row) {
			rows = append(rows, row)
		}
		row = nil
	}

	for i := 0; i < len(runes); i++ {
		c := runes[i]

		if inQuotes {
			if c == quote {
				if i+1 < len(runes) && runes[i+1] == quote {
					field.WriteRune(quote)
					i++
					continue
				}
				inQuotes = false
				continue
			}
			if c == '\n' {
				line++
			}
			field.WriteRune(c)
			continue
		}

		switch c {
		case quote:
			if !opensQuote() {
				field.WriteRune(c)
				continue
			}
			inQuotes, quoted = true, true
			quoteLine = line
		case delim:
			endField()
		case '\r':
			if i+1 < len(runes) && runes[i+1] == '\n' {
				i++
			}
			endRow()
			line++
		case '\n':
			endRow()
			line++
		default:
			field.WriteRune(c)
		}
	}

	if inQuotes {
		return nil, fmt.Errorf("line %d: %w", quoteLine, apperrors.ErrUnterminatedQuote)
	}
	if field.Len() > 0 || len(row) > 0 {
		endRow()
	}
	return rows, nil
}

// SplitLine splits a single row. It is a convenience for tests and tools.
func (d Dialect) SplitLine(line string) ([]string, error) {
	rows, err := d.Split([]byte(line))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Records splits content and separates the header row when the dialect has one.
func (d Dialect) Records(content []byte) (header []string, rows [][]string, err error) {
	rows, err = d.Split(content)
	if err != nil {
		return nil, nil, err
	}
	if !d.HasHeader || len(rows) == 0 {
		return nil, rows, nil
	}
	return rows[0], rows[1:], nil
}

func blank(row []string) bool {
	for _, f := range row {
		if strings.TrimFunc(f, unicode.IsSpace) != "" {
			return false
		}
	}
	return true
}

// HeaderIndex maps normalised column names to their position.
// Names are compared case-insensitively with surrounding whitespace removed.
func HeaderIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := NormalizeColumn(h)
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

// NormalizeColumn is the key HeaderIndex uses for a column name.
func NormalizeColumn(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
