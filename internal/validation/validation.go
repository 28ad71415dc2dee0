package validation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ndewijer/custody-ingest/internal/apperrors"
	"github.com/ndewijer/custody-ingest/internal/dedup"
	"github.com/ndewijer/custody-ingest/internal/parsers/fields"
)

// ValidateUUID checks if a string is a valid UUID
func ValidateUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidUUID, id)
	}
	return nil
}

// ValidateISINs checks a reclassification list with the same shape rule the
// parsers apply to statement cells.
func ValidateISINs(isins []string) error {
	errors := make(map[string]string)

	if len(isins) == 0 {
		errors["isins"] = "at least one ISIN is required"
	}
	for i, isin := range isins {
		if !fields.ValidISIN(strings.ToUpper(strings.TrimSpace(isin))) {
			errors[fmt.Sprintf("isins[%d]", i)] = fmt.Sprintf("%q is not a valid ISIN", isin)
		}
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}

// ValidateDedupMode accepts an empty mode (use the configured one) or a known mode.
func ValidateDedupMode(mode string) error {
	if mode == "" || dedup.ValidMode(strings.ToLower(mode)) {
		return nil
	}
	return &Error{Fields: map[string]string{
		"mode": fmt.Sprintf("must be %q or %q", dedup.ModeDelete, dedup.ModeFlag),
	}}
}
