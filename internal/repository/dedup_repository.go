package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ndewijer/custody-ingest/internal/model"
)

// DedupRunRepository persists deduplication summaries in dedup_runs.
type DedupRunRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewDedupRunRepository creates a new DedupRunRepository with the provided database connection.
func NewDedupRunRepository(db *sql.DB) *DedupRunRepository {
	return &DedupRunRepository{db: db}
}

func (r *DedupRunRepository) WithTx(tx *sql.Tx) *DedupRunRepository {
	return &DedupRunRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *DedupRunRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// InsertRun stores a deduplication summary.
func (r *DedupRunRepository) InsertRun(ctx context.Context, s model.DedupSummary) error {
	anomalies := s.Anomalies
	if anomalies == nil {
		anomalies = []model.Anomaly{}
	}
	anomaliesJSON, err := encodeJSON(anomalies)
	if err != nil {
		return fmt.Errorf("failed to encode anomalies: %w", err)
	}
	errorsJSON, err := encodeJSON(nonNilStrings(s.Errors))
	if err != nil {
		return fmt.Errorf("failed to encode errors: %w", err)
	}

	query := `
		INSERT INTO dedup_runs (
			id, mode, started_at, finished_at, groups_found, records_kept,
			records_deleted, records_flagged, records_rekeyed, keys_scanned,
			versions_renumbered, latest_changed, anomalies, errors, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.getQuerier().ExecContext(ctx, query,
		s.ID, s.Mode, formatTimestamp(s.StartedAt), formatTimestamp(s.FinishedAt),
		s.GroupsFound, s.RecordsKept, s.RecordsDeleted, s.RecordsFlagged, s.RecordsRekeyed,
		s.KeysScanned, s.VersionsRenumbered, s.LatestChanged, anomaliesJSON, errorsJSON,
		s.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert dedup run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent deduplication runs, newest first.
func (r *DedupRunRepository) ListRuns(ctx context.Context, limit int) ([]model.DedupSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, mode, started_at, finished_at, groups_found, records_kept,
			records_deleted, records_flagged, records_rekeyed, keys_scanned,
			versions_renumbered, latest_changed, anomalies, errors, duration_ms
		FROM dedup_runs
		ORDER BY started_at DESC
		LIMIT ?
	`
	rows, err := r.getQuerier().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query dedup_runs table: %w", err)
	}
	defer rows.Close()

	runs := []model.DedupSummary{}
	for rows.Next() {
		var (
			s                         model.DedupSummary
			startedAt, finishedAt     string
			anomaliesJSON, errorsJSON string
			durationMs                int64
		)
		err := rows.Scan(
			&s.ID, &s.Mode, &startedAt, &finishedAt, &s.GroupsFound, &s.RecordsKept,
			&s.RecordsDeleted, &s.RecordsFlagged, &s.RecordsRekeyed, &s.KeysScanned,
			&s.VersionsRenumbered, &s.LatestChanged, &anomaliesJSON, &errorsJSON, &durationMs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dedup_runs table results: %w", err)
		}
		if s.StartedAt, err = ParseTime(startedAt); err != nil {
			return nil, err
		}
		if s.FinishedAt, err = ParseTime(finishedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(anomaliesJSON), &s.Anomalies); err != nil {
			return nil, fmt.Errorf("failed to decode anomalies: %w", err)
		}
		if err := json.Unmarshal([]byte(errorsJSON), &s.Errors); err != nil {
			return nil, fmt.Errorf("failed to decode errors: %w", err)
		}
		s.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dedup_runs table: %w", err)
	}
	return runs, nil
}
