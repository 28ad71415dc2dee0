package parsers

import (
	"path/filepath"
	"strings"

	"github.com/ndewijer/custody-ingest/internal/apperrors"
)

// Registry routes a file to the first parser whose pattern matches its name.
type Registry struct {
	parsers []Parser
}

// NewRegistry returns a registry that tries parsers in the given order.
func NewRegistry(parsers ...Parser) *Registry {
	return &Registry{parsers: parsers}
}

// Register appends p to the routing order.
func (r *Registry) Register(p Parser) {
	r.parsers = append(r.parsers, p)
}

// Select returns the parser for filename or a format error wrapping ErrNoParser.
func (r *Registry) Select(filename string) (Parser, error) {
	name := baseName(filename)
	for _, p := range r.parsers {
		if p.MatchesPattern(name) {
			return p, nil
		}
	}
	return nil, apperrors.NewFormatError(name, apperrors.ErrNoParser, "")
}

// Lookup returns the parser registered under name.
func (r *Registry) Lookup(name string) (Parser, bool) {
	for _, p := range r.parsers {
		if strings.EqualFold(p.Name(), name) {
			return p, true
		}
	}
	return nil, false
}

// Parsers returns the registered parsers in routing order.
func (r *Registry) Parsers() []Parser {
	out := make([]Parser, len(r.parsers))
	copy(out, r.parsers)
	return out
}

func baseName(filename string) string {
	return filepath.Base(strings.TrimSpace(filename))
}
