package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/custody-ingest/internal/apperrors"
	"github.com/ndewijer/custody-ingest/internal/parsers/fields"
)

func TestValidateUUID(t *testing.T) {
	assert.NoError(t, ValidateUUID("8c3f6b7e-2b55-4c1e-9a3f-0d7c1b2a4e5f"))

	err := ValidateUUID("not-a-uuid")
	assert.ErrorIs(t, err, apperrors.ErrInvalidUUID)
}

var isinShapes = []string{
	"FR0000121014",
	"XS1234567890",
	"fr0000121014",
	"FR000012101",
	"FR00001210145",
	"1R0000121014",
	"FR000012101X",
	"FR00001-1014",
}

// TestValidateISINs_ParserRule checks that request validation and statement
// parsing accept exactly the same codes.
func TestValidateISINs_ParserRule(t *testing.T) {
	for _, isin := range isinShapes {
		t.Run(isin, func(t *testing.T) {
			want := fields.ValidISIN(strings.ToUpper(isin))
			assert.Equal(t, want, ValidateISINs([]string{isin}) == nil)
		})
	}
}

// TestValidateISINs tests the reclassification list check.
//
// WHY: Operators paste ISINs from spreadsheets; case and surrounding blanks are
// forgiven but every malformed entry is reported by position.
func TestValidateISINs(t *testing.T) {
	t.Run("clean list", func(t *testing.T) {
		assert.NoError(t, ValidateISINs([]string{" fr0000121014 ", "XS1234567890"}))
	})

	t.Run("empty list", func(t *testing.T) {
		err := ValidateISINs(nil)
		var verr *Error
		require.True(t, errors.As(err, &verr))
		assert.Contains(t, verr.Fields, "isins")
	})

	t.Run("bad entries by index", func(t *testing.T) {
		err := ValidateISINs([]string{"FR0000121014", "nope", "XS123"})
		var verr *Error
		require.True(t, errors.As(err, &verr))
		assert.Len(t, verr.Fields, 2)
		assert.Contains(t, verr.Fields, "isins[1]")
		assert.Contains(t, verr.Fields, "isins[2]")
		assert.Equal(t, `isins[1]: "nope" is not a valid ISIN; isins[2]: "XS123" is not a valid ISIN`, err.Error())
	})
}

func TestValidateDedupMode(t *testing.T) {
	for _, mode := range []string{"", "delete", "flag", "FLAG"} {
		assert.NoError(t, ValidateDedupMode(mode), mode)
	}

	err := ValidateDedupMode("purge")
	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "mode")
}
