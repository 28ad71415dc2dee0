package apperrors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ndewijer/custody-ingest/internal/apperrors"
)

func TestFormatError(t *testing.T) {
	t.Run("unwraps to the sentinel", func(t *testing.T) {
		err := apperrors.NewFormatError("randomfile.csv", apperrors.ErrFilenameMismatch, "expected %s", "portef_<HEX>_<YYYYMMDD>.csv")

		assert.ErrorIs(t, err, apperrors.ErrFilenameMismatch)
		assert.True(t, apperrors.IsFormatError(err))
		assert.Contains(t, err.Error(), "randomfile.csv")
		assert.Contains(t, err.Error(), "portef_<HEX>_<YYYYMMDD>.csv")
	})

	t.Run("survives further wrapping", func(t *testing.T) {
		err := fmt.Errorf("ingest: %w", apperrors.NewFormatError("x.csv", apperrors.ErrInvalidHeader, ""))

		assert.True(t, apperrors.IsFormatError(err))
		assert.ErrorIs(t, err, apperrors.ErrInvalidHeader)
		assert.Equal(t, "ingest: x.csv: invalid statement header", err.Error())
	})

	t.Run("plain errors are not format errors", func(t *testing.T) {
		assert.False(t, apperrors.IsFormatError(errors.New("boom")))
		assert.False(t, apperrors.IsFormatError(nil))
	})
}
