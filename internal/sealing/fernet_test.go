package sealing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/custody-ingest/internal/apperrors"
)

func newKey(t *testing.T) string {
	t.Helper()
	k, err := GenerateKey()
	require.NoError(t, err)
	return k
}

// TestFernet tests payload sealing.
//
// WHY: Raw statement rows hold account details. They must not be readable
// from the database file, and rotating the key must keep old rows readable.
func TestFernet(t *testing.T) {
	payload := []byte(`{"Compte":"123456789","Libelle":"LVMH"}`)

	t.Run("seal and open", func(t *testing.T) {
		f, err := NewFernet(newKey(t))
		require.NoError(t, err)

		tok, err := f.Seal(payload)
		require.NoError(t, err)
		assert.NotContains(t, tok, "123456789")

		got, err := f.Open(tok)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("rotated keys still open old tokens", func(t *testing.T) {
		oldKey, newKeyValue := newKey(t), newKey(t)
		old, err := NewFernet(oldKey)
		require.NoError(t, err)
		tok, err := old.Seal(payload)
		require.NoError(t, err)

		rotated, err := NewFernet(newKeyValue + "," + oldKey)
		require.NoError(t, err)
		got, err := rotated.Open(tok)
		require.NoError(t, err)
		assert.Equal(t, payload, got)

		fresh, err := rotated.Seal(payload)
		require.NoError(t, err)
		_, err = old.Open(fresh)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("tampered token", func(t *testing.T) {
		f, err := NewFernet(newKey(t))
		require.NoError(t, err)
		tok, err := f.Seal(payload)
		require.NoError(t, err)

		_, err = f.Open(tok[:len(tok)-4] + "AAAA")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("bad keys", func(t *testing.T) {
		_, err := NewFernet()
		assert.ErrorIs(t, err, apperrors.ErrInvalidSealKey)
		_, err = NewFernet(" , ")
		assert.ErrorIs(t, err, apperrors.ErrInvalidSealKey)
		_, err = NewFernet("not-a-key")
		assert.ErrorIs(t, err, apperrors.ErrInvalidSealKey)
	})
}
