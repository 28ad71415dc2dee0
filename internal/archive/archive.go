// Package archive keeps a copy of every successfully ingested statement file,
// either in a local directory or in an S3 bucket.
package archive

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Backends.
const (
	BackendNone  = "none"
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Object is one source file to archive.
type Object struct {
	Name     string
	BankID   string
	FileDate time.Time
	Data     []byte
}

// Key returns the relative location of o: <bank>/<yyyy-mm>/<name>. Files
// without a date go under "undated".
func (o Object) Key() string {
	bank := strings.ToLower(strings.TrimSpace(o.BankID))
	if bank == "" {
		bank = "unknown"
	}
	month := "undated"
	if !o.FileDate.IsZero() {
		month = o.FileDate.Format("2006-01")
	}
	return path.Join(bank, month, filepath.Base(o.Name))
}

// Archiver stores source files and returns where they went.
type Archiver interface {
	Archive(ctx context.Context, o Object) (string, error)
}

// Nop discards files.
type Nop struct{}

// Archive implements Archiver.
func (Nop) Archive(_ context.Context, _ Object) (string, error) {
	return "", nil
}

// Local writes files under a root directory.
type Local struct {
	root string
}

// NewLocal creates the root directory if needed.
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &Local{root: root}, nil
}

// Archive implements Archiver. An existing file with the same key is replaced.
func (l *Local) Archive(ctx context.Context, o Object) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dest := filepath.Join(l.root, filepath.FromSlash(o.Key()))
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	if err := os.WriteFile(dest, o.Data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write archive file: %w", err)
	}
	return dest, nil
}

// Options selects and configures a backend.
type Options struct {
	Backend string
	Dir     string
	S3      S3Options
}

// New returns the archiver for opts.Backend. An empty backend means none.
func New(ctx context.Context, opts Options) (Archiver, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendNone:
		return Nop{}, nil
	case BackendLocal:
		return NewLocal(opts.Dir)
	case BackendS3:
		return NewS3(ctx, opts.S3)
	default:
		return nil, fmt.Errorf("unknown archive backend %q", opts.Backend)
	}
}
