package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ndewijer/custody-ingest/internal/model"
)

// IngestionRepository records one row per ingested file in ingestion_runs.
type IngestionRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewIngestionRepository creates a new IngestionRepository with the provided database connection.
func NewIngestionRepository(db *sql.DB) *IngestionRepository {
	return &IngestionRepository{db: db}
}

func (r *IngestionRepository) WithTx(tx *sql.Tx) *IngestionRepository {
	return &IngestionRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *IngestionRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// InsertRun stores an ingestion summary.
func (r *IngestionRepository) InsertRun(ctx context.Context, s model.IngestionSummary) error {
	dups, err := encodeJSON(nonNilStrings(s.SameDateDuplicates))
	if err != nil {
		return fmt.Errorf("failed to encode same-date duplicates: %w", err)
	}

	var fileDate any
	if !s.FileDate.IsZero() {
		fileDate = formatDate(s.FileDate)
	}

	query := `
		INSERT INTO ingestion_runs (
			id, file_name, parser, kind, bank_id, user_id, file_date, status,
			rows_total, rows_mapped, rows_skipped, field_errors, records_inserted,
			duplicates_skipped, keys_reconciled, same_date_duplicates, error,
			started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.getQuerier().ExecContext(ctx, query,
		s.ID, s.FileName, s.Parser, string(s.Kind), s.BankID, s.UserID, fileDate, s.Status,
		s.RowsTotal, s.RowsMapped, s.RowsSkipped, s.FieldErrors, s.RecordsInserted,
		s.DuplicatesSkipped, s.KeysReconciled, dups, s.Error,
		formatTimestamp(s.StartedAt), formatTimestamp(s.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert ingestion run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent ingestion runs, newest first.
func (r *IngestionRepository) ListRuns(ctx context.Context, limit int) ([]model.IngestionSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, file_name, parser, kind, bank_id, user_id, file_date, status,
			rows_total, rows_mapped, rows_skipped, field_errors, records_inserted,
			duplicates_skipped, keys_reconciled, same_date_duplicates, error,
			started_at, finished_at
		FROM ingestion_runs
		ORDER BY started_at DESC
		LIMIT ?
	`
	rows, err := r.getQuerier().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingestion_runs table: %w", err)
	}
	defer rows.Close()

	runs := []model.IngestionSummary{}
	for rows.Next() {
		var (
			s                   model.IngestionSummary
			kind, dups          string
			fileDate            sql.NullString
			startedAt, finished string
		)
		err := rows.Scan(
			&s.ID, &s.FileName, &s.Parser, &kind, &s.BankID, &s.UserID, &fileDate, &s.Status,
			&s.RowsTotal, &s.RowsMapped, &s.RowsSkipped, &s.FieldErrors, &s.RecordsInserted,
			&s.DuplicatesSkipped, &s.KeysReconciled, &dups, &s.Error,
			&startedAt, &finished,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ingestion_runs table results: %w", err)
		}
		s.Kind = model.FileKind(kind)
		if fd, err := nullTimeFromString(fileDate); err != nil {
			return nil, err
		} else if fd != nil {
			s.FileDate = *fd
		}
		if s.StartedAt, err = ParseTime(startedAt); err != nil {
			return nil, err
		}
		if s.FinishedAt, err = ParseTime(finished); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(dups), &s.SameDateDuplicates); err != nil {
			return nil, fmt.Errorf("failed to decode same-date duplicates: %w", err)
		}
		runs = append(runs, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ingestion_runs table: %w", err)
	}
	return runs, nil
}

// HasSucceeded reports whether a file with this name was already ingested successfully.
func (r *IngestionRepository) HasSucceeded(ctx context.Context, fileName string) (bool, error) {
	var n int
	err := r.getQuerier().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ingestion_runs WHERE file_name = ? AND status = ?`,
		fileName, model.IngestionStatusSucceeded).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query ingestion_runs table: %w", err)
	}
	return n > 0, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
