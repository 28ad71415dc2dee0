// Package sealing encrypts raw statement payloads at rest with Fernet tokens.
package sealing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fernet/fernet-go"

	"github.com/ndewijer/custody-ingest/internal/apperrors"
)

// ErrInvalidToken is returned when a token cannot be verified with any key.
var ErrInvalidToken = errors.New("invalid or tampered payload token")

// Fernet seals with the first key and opens with any of them, so keys can be
// rotated by prepending a new one.
type Fernet struct {
	keys []*fernet.Key
}

// NewFernet parses base64 encoded 32-byte keys. Keys may also be passed as a
// single comma separated string.
func NewFernet(keys ...string) (*Fernet, error) {
	var encoded []string
	for _, k := range keys {
		for _, part := range strings.Split(k, ",") {
			if part = strings.TrimSpace(part); part != "" {
				encoded = append(encoded, part)
			}
		}
	}
	if len(encoded) == 0 {
		return nil, fmt.Errorf("%w: no key configured", apperrors.ErrInvalidSealKey)
	}

	parsed, err := fernet.DecodeKeys(encoded...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidSealKey, err)
	}
	return &Fernet{keys: parsed}, nil
}

// GenerateKey returns a new random key in its encoded form.
func GenerateKey() (string, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return k.Encode(), nil
}

// Seal encrypts plaintext into a token.
func (f *Fernet) Seal(plaintext []byte) (string, error) {
	tok, err := fernet.EncryptAndSign(plaintext, f.keys[0])
	if err != nil {
		return "", fmt.Errorf("failed to seal payload: %w", err)
	}
	return string(tok), nil
}

// Open verifies and decrypts a token. Tokens do not expire.
func (f *Fernet) Open(token string) ([]byte, error) {
	msg := fernet.VerifyAndDecrypt([]byte(token), 0, f.keys)
	if msg == nil {
		return nil, ErrInvalidToken
	}
	return msg, nil
}
