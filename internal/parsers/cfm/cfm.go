// Package cfm parses CFM Indosuez back-office exports. Files are semicolon
// separated without a header row, use a decimal comma and carry ISO 4217
// numeric currency codes. Columns are addressed by fixed index.
package cfm

import (
	"regexp"

	"github.com/ndewijer/custody-ingest/internal/model"
	"github.com/ndewijer/custody-ingest/internal/parsers"
	"github.com/ndewijer/custody-ingest/internal/parsers/csvdialect"
)

const (
	BankID   = "CFM"
	BankName = "CFM Indosuez"
)

// filePattern builds <YYYYMMDD>-<branch>-<country>-W<n>-<suffix>.csv.
func filePattern(suffix string) *regexp.Regexp {
	return regexp.MustCompile(`^(\d{8})-[A-Z]\d+-[A-Z]{2}-W\d+-` + suffix + `\.csv$`)
}

func format(name string, kind model.FileKind, suffix string, minColumns int) parsers.Format {
	return parsers.Format{
		ParserName:   name,
		FileKind:     kind,
		BankID:       BankID,
		BankName:     BankName,
		Pattern:      filePattern(suffix),
		PatternHint:  "<YYYYMMDD>-<branch>-<CC>-W<n>-" + suffix + ".csv",
		Dialect:      csvdialect.Semicolon,
		MinColumns:   minColumns,
		CommaDecimal: true,
	}
}
