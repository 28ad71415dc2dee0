// Package parsers defines the contract every bank statement parser fulfils,
// the shared parse pipeline and the router that picks a parser by file name.
package parsers

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/ndewijer/custody-ingest/internal/apperrors"
	"github.com/ndewijer/custody-ingest/internal/model"
	"github.com/ndewijer/custody-ingest/internal/parsers/canonical"
	"github.com/ndewijer/custody-ingest/internal/parsers/csvdialect"
	"github.com/ndewijer/custody-ingest/internal/parsers/fields"
)

// Parser is implemented once per bank export format.
type Parser interface {
	Name() string
	Kind() model.FileKind
	MatchesPattern(filename string) bool
	ExtractFileDate(filename string) (time.Time, error)
	Validate(content []byte) error
	ParseCSV(content []byte) ([][]string, error)
	MapRow(row Row, fc model.FileContext) (*Record, bool)
	Parse(content []byte, fc model.FileContext) (Result, error)
}

// Row is one data row together with the header lookup of its file.
type Row struct {
	Fields []string
	Line   int
	index  map[string]int
}

// NewRow builds a Row. index may be nil for headerless dialects.
func NewRow(fields []string, line int, index map[string]int) Row {
	return Row{Fields: fields, Line: line, index: index}
}

// At returns the field at i, or "" when the row is short.
func (r Row) At(i int) string {
	if i < 0 || i >= len(r.Fields) {
		return ""
	}
	return r.Fields[i]
}

// Get returns the field under the named header column, or "".
func (r Row) Get(column string) string {
	i, ok := r.index[csvdialect.NormalizeColumn(column)]
	if !ok {
		return ""
	}
	return r.At(i)
}

// Raw returns the row as a payload map for audit. Header files use column
// names; headerless files use zero-padded positional keys.
func (r Row) Raw() map[string]string {
	out := make(map[string]string, len(r.Fields))
	if len(r.index) > 0 {
		for name, i := range r.index {
			if v := r.At(i); v != "" {
				out[name] = v
			}
		}
		return out
	}
	for i, v := range r.Fields {
		if v != "" {
			out[fmt.Sprintf("c%02d", i)] = v
		}
	}
	return out
}

// Record is what MapRow produces: exactly one of Position or Operation is set.
type Record struct {
	Position    *model.Position
	Operation   *model.Operation
	FieldErrors int
}

// Result is the parse outcome of one file.
type Result struct {
	Parser      string            `json:"parser"`
	Kind        model.FileKind    `json:"kind"`
	FileDate    time.Time         `json:"fileDate"`
	Positions   []model.Position  `json:"positions,omitempty"`
	Operations  []model.Operation `json:"operations,omitempty"`
	RowsTotal   int               `json:"rowsTotal"`
	RowsMapped  int               `json:"rowsMapped"`
	RowsSkipped int               `json:"rowsSkipped"`
	FieldErrors int               `json:"fieldErrors"`
}

// Format is the static description of one export format. Bank parsers embed
// it and add MapRow and Parse.
type Format struct {
	ParserName string
	FileKind   model.FileKind
	BankID     string
	BankName   string
	// Pattern must capture the YYYYMMDD file date in its first group.
	Pattern *regexp.Regexp
	// PatternHint is shown in rejection messages.
	PatternHint string
	Dialect     csvdialect.Dialect
	// RequiredColumns applies to header dialects only.
	RequiredColumns []string
	MinColumns      int
	// CommaDecimal selects decimal-comma number parsing for the row mapper.
	CommaDecimal bool
}

func (f Format) Name() string         { return f.ParserName }
func (f Format) Kind() model.FileKind { return f.FileKind }

// MatchesPattern reports whether filename follows this format's naming convention.
func (f Format) MatchesPattern(filename string) bool {
	return f.Pattern.MatchString(baseName(filename))
}

// ExtractFileDate reads the statement date embedded in the file name.
func (f Format) ExtractFileDate(filename string) (time.Time, error) {
	name := baseName(filename)
	m := f.Pattern.FindStringSubmatch(name)
	if m == nil || len(m) < 2 {
		return time.Time{}, apperrors.NewFormatError(name, apperrors.ErrFilenameMismatch, "expected %s", f.PatternHint)
	}
	d, err := fields.ParseCompactDate(m[1])
	if err != nil {
		return time.Time{}, apperrors.NewFormatError(name, apperrors.ErrFilenameMismatch, "invalid date %q", m[1])
	}
	return d, nil
}

// ParseCSV splits content with the format's dialect.
func (f Format) ParseCSV(content []byte) ([][]string, error) {
	rows, err := f.Dialect.Split(content)
	if err != nil {
		return nil, apperrors.NewFormatError(f.ParserName, apperrors.ErrInvalidHeader, "%v", err)
	}
	return rows, nil
}

// Validate fails fast when the file cannot be this format: no data rows,
// missing header columns or a first data row that is too short.
func (f Format) Validate(content []byte) error {
	rows, err := f.ParseCSV(content)
	if err != nil {
		return err
	}
	return f.validateRows(rows)
}

func (f Format) validateRows(rows [][]string) error {
	data := rows
	if f.Dialect.HasHeader {
		if len(rows) == 0 {
			return apperrors.NewFormatError(f.ParserName, apperrors.ErrEmptyFile, "")
		}
		idx := csvdialect.HeaderIndex(rows[0])
		var missing []string
		for _, col := range f.RequiredColumns {
			if _, ok := idx[csvdialect.NormalizeColumn(col)]; !ok {
				missing = append(missing, col)
			}
		}
		if len(missing) > 0 {
			return apperrors.NewFormatError(f.ParserName, apperrors.ErrInvalidHeader, "missing columns %v", missing)
		}
		data = rows[1:]
	}
	if len(data) == 0 {
		return apperrors.NewFormatError(f.ParserName, apperrors.ErrEmptyFile, "")
	}
	if f.MinColumns > 0 && len(data[0]) < f.MinColumns {
		return apperrors.NewFormatError(f.ParserName, apperrors.ErrInvalidHeader,
			"expected at least %d columns, got %d", f.MinColumns, len(data[0]))
	}
	return nil
}

// Tolerant returns a field reader configured for this format.
func (f Format) Tolerant() *fields.Tolerant {
	return &fields.Tolerant{CommaDecimal: f.CommaDecimal}
}

// Resolve fills the file date and bank identity of fc from the file name and
// the format defaults when the caller left them empty.
func (f Format) Resolve(fc model.FileContext) (model.FileContext, error) {
	if fc.FileDate.IsZero() {
		d, err := f.ExtractFileDate(fc.FileName)
		if err != nil {
			return fc, err
		}
		fc.FileDate = d
	}
	if fc.BankID == "" {
		fc.BankID = f.BankID
	}
	if fc.BankName == "" {
		fc.BankName = f.BankName
	}
	if fc.ProcessedAt.IsZero() {
		fc.ProcessedAt = time.Now().UTC()
	}
	return fc, nil
}

// Run is the shared pipeline behind every Parser.Parse: validate, split,
// map each row, drop rows without identity and finalise the records.
// p is the bank parser itself so that its MapRow is used.
func Run(p Parser, f Format, content []byte, fc model.FileContext) (Result, error) {
	fc, err := f.Resolve(fc)
	if err != nil {
		return Result{}, err
	}

	rows, err := p.ParseCSV(content)
	if err != nil {
		return Result{}, err
	}
	if err := f.validateRows(rows); err != nil {
		return Result{}, err
	}

	res := Result{Parser: p.Name(), Kind: p.Kind(), FileDate: fc.FileDate}

	var index map[string]int
	line := 1
	if f.Dialect.HasHeader {
		index = csvdialect.HeaderIndex(rows[0])
		rows = rows[1:]
		line = 2
	}

	for i, fieldsRow := range rows {
		res.RowsTotal++
		rec, ok := p.MapRow(NewRow(fieldsRow, line+i, index), fc)
		if !ok || rec == nil {
			res.RowsSkipped++
			continue
		}
		res.FieldErrors += rec.FieldErrors
		switch {
		case rec.Position != nil:
			canonical.FinalizePosition(rec.Position)
			res.Positions = append(res.Positions, *rec.Position)
		case rec.Operation != nil:
			canonical.FinalizeOperation(rec.Operation)
			res.Operations = append(res.Operations, *rec.Operation)
		default:
			res.RowsSkipped++
			continue
		}
		res.RowsMapped++
	}
	return res, nil
}

// ErrorIsFormat reports whether err rejects the whole file.
func ErrorIsFormat(err error) bool {
	return apperrors.IsFormatError(err) || errors.Is(err, apperrors.ErrNoParser)
}
