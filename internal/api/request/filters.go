// Package request parses and validates HTTP request input for the handlers.
package request

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ndewijer/custody-ingest/internal/model"
)

// DefaultLimit caps list endpoints when no limit is given.
const DefaultLimit = 100

// MaxLimit is the largest accepted limit.
const MaxLimit = 1000

// ParsePositionFilter builds a position filter from the query string.
// Accepted keys: bank, user, portfolio, isin, type, limit.
func ParsePositionFilter(q url.Values) (model.PositionFilter, error) {
	filter := model.PositionFilter{
		BankID:        strings.ToUpper(strings.TrimSpace(q.Get("bank"))),
		UserID:        strings.TrimSpace(q.Get("user")),
		PortfolioCode: strings.TrimSpace(q.Get("portfolio")),
		ISIN:          strings.ToUpper(strings.TrimSpace(q.Get("isin"))),
	}

	if raw := strings.TrimSpace(q.Get("type")); raw != "" {
		st := model.ParseSecurityType(strings.ToUpper(raw))
		if st == model.SecurityTypeUnknown && !strings.EqualFold(raw, string(model.SecurityTypeUnknown)) {
			return filter, fmt.Errorf("invalid type: %s", raw)
		}
		filter.SecurityType = st
	}

	limit, err := ParseLimit(q.Get("limit"))
	if err != nil {
		return filter, err
	}
	filter.Limit = limit
	return filter, nil
}

// ParseOperationFilter builds an operation filter from the query string.
// Accepted keys: bank, user, portfolio, isin, type, from, to, limit.
func ParseOperationFilter(q url.Values) (model.OperationFilter, error) {
	filter := model.OperationFilter{
		BankID:        strings.ToUpper(strings.TrimSpace(q.Get("bank"))),
		UserID:        strings.TrimSpace(q.Get("user")),
		PortfolioCode: strings.TrimSpace(q.Get("portfolio")),
		ISIN:          strings.ToUpper(strings.TrimSpace(q.Get("isin"))),
		OperationType: model.OperationType(strings.ToUpper(strings.TrimSpace(q.Get("type")))),
	}

	if raw := q.Get("from"); raw != "" {
		from, err := parseFilterTime(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid from format: %w", err)
		}
		filter.From = from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := parseFilterTime(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid to format: %w", err)
		}
		filter.To = to
	}

	limit, err := ParseLimit(q.Get("limit"))
	if err != nil {
		return filter, err
	}
	filter.Limit = limit
	return filter, nil
}

// ParseLimit parses a limit parameter, defaulting to DefaultLimit.
func ParseLimit(raw string) (int, error) {
	if raw == "" {
		return DefaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid limit: must be a number")
	}
	if limit < 1 || limit > MaxLimit {
		return 0, fmt.Errorf("invalid limit: must be between 1 and %d", MaxLimit)
	}
	return limit, nil
}

// parseFilterTime accepts YYYY-MM-DD and RFC3339.
func parseFilterTime(str string) (time.Time, error) {
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, str); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a date or datetime", str)
}
