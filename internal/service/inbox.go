package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// InboxResult reports one inbox scan.
type InboxResult struct {
	Ingested []string `json:"ingested"`
	Rejected []string `json:"rejected"`
	Skipped  []string `json:"skipped"`
	Retried  []string `json:"retried"`
}

// Inbox is a drop directory scanned for new statement files.
type Inbox struct {
	Dir       string
	FailedDir string
	UserID    string
}

// ScanInbox ingests every regular file in the inbox. Ingested files are
// removed, rejected files move to the failed directory, and files whose
// name already succeeded once are dropped without being stored again.
// Files that failed for any other reason stay for the next scan.
func (s *IngestionService) ScanInbox(ctx context.Context, inbox Inbox) (InboxResult, error) {
	var result InboxResult

	entries, err := os.ReadDir(inbox.Dir)
	if err != nil {
		return result, fmt.Errorf("failed to read inbox: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var files []File
	for _, name := range names {
		path := filepath.Join(inbox.Dir, name)
		done, err := s.runs.HasSucceeded(ctx, name)
		if err != nil {
			return result, err
		}
		if done {
			s.log.Info().Str("file", name).Msg("file already ingested, removing from inbox")
			if err := os.Remove(path); err != nil {
				return result, fmt.Errorf("failed to remove %s: %w", name, err)
			}
			result.Skipped = append(result.Skipped, name)
			continue
		}

		// #nosec G304 -- path is built from a directory listing of the configured inbox
		content, err := os.ReadFile(path)
		if err != nil {
			return result, fmt.Errorf("failed to read %s: %w", name, err)
		}
		files = append(files, File{Name: name, Content: content, UserID: inbox.UserID})
	}
	if len(files) == 0 {
		return result, nil
	}

	outcomes, err := s.IngestBatch(ctx, files)
	if err != nil {
		return result, err
	}
	for _, o := range outcomes {
		name := o.Summary.FileName
		path := filepath.Join(inbox.Dir, name)
		switch {
		case o.Err == nil:
			if err := os.Remove(path); err != nil {
				return result, fmt.Errorf("failed to remove %s: %w", name, err)
			}
			result.Ingested = append(result.Ingested, name)
		case IsRejected(o.Err):
			if err := moveTo(path, inbox.FailedDir); err != nil {
				return result, err
			}
			result.Rejected = append(result.Rejected, name)
		default:
			result.Retried = append(result.Retried, name)
		}
	}

	s.log.Info().
		Int("ingested", len(result.Ingested)).
		Int("rejected", len(result.Rejected)).
		Int("skipped", len(result.Skipped)).
		Int("retried", len(result.Retried)).
		Msg("inbox scan finished")
	return result, nil
}

func moveTo(path, dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := os.Rename(path, filepath.Join(dir, filepath.Base(path))); err != nil {
		return fmt.Errorf("failed to move %s: %w", filepath.Base(path), err)
	}
	return nil
}
