package request

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/custody-ingest/internal/model"
)

func TestParsePositionFilter(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		f, err := ParsePositionFilter(url.Values{})
		require.NoError(t, err)
		assert.Equal(t, DefaultLimit, f.Limit)
		assert.Empty(t, f.BankID)
		assert.Empty(t, f.SecurityType)
	})

	t.Run("values are normalised", func(t *testing.T) {
		f, err := ParsePositionFilter(url.Values{
			"bank":  {"edr"},
			"isin":  {"fr0000121014 "},
			"type":  {"bond"},
			"limit": {"5"},
		})
		require.NoError(t, err)
		assert.Equal(t, "EDR", f.BankID)
		assert.Equal(t, "FR0000121014", f.ISIN)
		assert.Equal(t, model.SecurityTypeBond, f.SecurityType)
		assert.Equal(t, 5, f.Limit)
	})

	t.Run("unknown type is accepted by name", func(t *testing.T) {
		f, err := ParsePositionFilter(url.Values{"type": {"unknown"}})
		require.NoError(t, err)
		assert.Equal(t, model.SecurityTypeUnknown, f.SecurityType)
	})

	for _, q := range []url.Values{
		{"type": {"crypto"}},
		{"limit": {"abc"}},
		{"limit": {"0"}},
		{"limit": {"5000"}},
	} {
		t.Run("rejects "+q.Encode(), func(t *testing.T) {
			_, err := ParsePositionFilter(q)
			assert.Error(t, err)
		})
	}
}

func TestParseOperationFilter(t *testing.T) {
	t.Run("dates", func(t *testing.T) {
		f, err := ParseOperationFilter(url.Values{
			"from": {"2024-01-01"},
			"to":   {"2024-03-31T00:00:00Z"},
			"type": {"coupon"},
		})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), f.From)
		assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), f.To)
		assert.Equal(t, model.OperationTypeCoupon, f.OperationType)
	})

	t.Run("bad date", func(t *testing.T) {
		_, err := ParseOperationFilter(url.Values{"from": {"01/02/2024"}})
		assert.ErrorContains(t, err, "invalid from format")
	})
}
