package apperrors

import (
	"errors"
	"fmt"
)

// Format errors reject a whole file before any record is produced.
var (
	// ErrNoParser indicates that no registered parser recognises the file name.
	ErrNoParser = errors.New("no parser matches file name")

	// ErrFilenameMismatch indicates that a file name does not follow the parser's naming convention.
	ErrFilenameMismatch = errors.New("file name does not match expected pattern")

	// ErrInvalidHeader indicates missing header columns or too few columns per row.
	ErrInvalidHeader = errors.New("invalid statement header")

	// ErrEmptyFile indicates that the file has no data rows.
	ErrEmptyFile = errors.New("statement file is empty")

	// ErrUnterminatedQuote indicates a quoted field that never closes.
	ErrUnterminatedQuote = errors.New("unterminated quoted field")
)

// Field-level errors. Row mappers absorb these and store null.
var (
	ErrEmptyField      = errors.New("empty field")
	ErrInvalidNumber   = errors.New("invalid number")
	ErrInvalidDate     = errors.New("invalid date")
	ErrUnknownCurrency = errors.New("unknown currency code")
)

// Domain entity errors represent missing entities.
var (
	// ErrPositionNotFound indicates that a position with the given ID does not exist.
	ErrPositionNotFound = errors.New("position not found")

	// ErrClassificationNotFound indicates that no classification is cached for an ISIN.
	ErrClassificationNotFound = errors.New("classification not found")
)

// Operational errors.
var (
	// ErrMaintenanceInProgress indicates that an exclusive deduplication run holds the store.
	ErrMaintenanceInProgress = errors.New("maintenance run in progress")

	// ErrEnrichmentDisabled indicates that classification was requested with enrichment switched off.
	ErrEnrichmentDisabled = errors.New("enrichment is disabled")

	// ErrRateLimited indicates that the enrichment provider kept throttling past the retry budget.
	ErrRateLimited = errors.New("enrichment provider rate limit exceeded")

	// ErrInvalidSealKey indicates a malformed raw payload encryption key.
	ErrInvalidSealKey = errors.New("invalid payload encryption key")

	// ErrMissingRequiredField indicates that a required request field is missing or empty.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrInvalidDateRange indicates that the provided date range is invalid
	// (e.g., start date is after end date).
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrInvalidUUID indicates that a provided ID is not a valid UUID format.
	ErrInvalidUUID = errors.New("invalid UUID format")
)

// FormatError describes why a statement file was rejected as a whole.
type FormatError struct {
	File   string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %v", e.File, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.File, e.Err, e.Reason)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// NewFormatError wraps a sentinel format error with the file name and a reason.
func NewFormatError(file string, err error, reason string, args ...any) *FormatError {
	if len(args) > 0 {
		reason = fmt.Sprintf(reason, args...)
	}
	return &FormatError{File: file, Reason: reason, Err: err}
}

// IsFormatError reports whether err rejects a file as a whole.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}
