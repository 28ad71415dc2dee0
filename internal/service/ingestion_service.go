package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ndewijer/custody-ingest/internal/archive"
	"github.com/ndewijer/custody-ingest/internal/model"
	"github.com/ndewijer/custody-ingest/internal/parsers"
	"github.com/ndewijer/custody-ingest/internal/reconcile"
	"github.com/ndewijer/custody-ingest/internal/repository"
)

// File is one statement export handed to the ingestion pipeline together
// with the provenance its trigger knows. Empty bank fields are filled from
// the parser; a zero FileDate is read from the file name.
type File struct {
	Name     string
	Content  []byte
	BankID   string
	BankName string
	UserID   string
	FileDate time.Time
}

// Outcome is the result of ingesting one file of a batch.
type Outcome struct {
	Summary model.IngestionSummary
	Err     error
}

// IngestionService turns statement files into canonical records.
type IngestionService struct {
	db         *sql.DB
	registry   *parsers.Registry
	positions  *repository.PositionRepository
	operations *repository.OperationRepository
	runs       *repository.IngestionRepository
	reconciler *reconcile.Reconciler
	archiver   archive.Archiver
	maint      *sync.RWMutex
	workers    int
	log        zerolog.Logger
	now        func() time.Time
}

// NewIngestionService creates a new IngestionService. maint is the store
// maintenance lock shared with the deduplication engine; ingestion holds it
// for reading. A nil archiver disables archival.
func NewIngestionService(
	db *sql.DB,
	registry *parsers.Registry,
	positions *repository.PositionRepository,
	operations *repository.OperationRepository,
	runs *repository.IngestionRepository,
	reconciler *reconcile.Reconciler,
	archiver archive.Archiver,
	maint *sync.RWMutex,
	workers int,
	log zerolog.Logger,
) *IngestionService {
	if archiver == nil {
		archiver = archive.Nop{}
	}
	if workers < 1 {
		workers = 1
	}
	return &IngestionService{
		db:         db,
		registry:   registry,
		positions:  positions,
		operations: operations,
		runs:       runs,
		reconciler: reconciler,
		archiver:   archiver,
		maint:      maint,
		workers:    workers,
		log:        log.With().Str("component", "ingestion").Logger(),
		now:        time.Now,
	}
}

// Parsers lists the registered parser names in routing order.
func (s *IngestionService) Parsers() []string {
	ps := s.registry.Parsers()
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name()
	}
	return names
}

// Preview parses f without storing anything.
func (s *IngestionService) Preview(f File) (parsers.Result, error) {
	p, err := s.registry.Select(f.Name)
	if err != nil {
		return parsers.Result{}, err
	}
	return p.Parse(f.Content, fileContext(f, s.now().UTC()))
}

// IngestFile parses, stores and reconciles one file. The returned summary is
// also recorded in the ingestion run log, including for rejected files.
func (s *IngestionService) IngestFile(ctx context.Context, f File) (model.IngestionSummary, error) {
	outcomes, err := s.IngestBatch(ctx, []File{f})
	if err != nil {
		return model.IngestionSummary{}, err
	}
	return outcomes[0].Summary, outcomes[0].Err
}

// IngestBatch parses files in parallel and persists them one by one in the
// given order. A failing file does not stop the others; only a cancelled
// context aborts the batch.
func (s *IngestionService) IngestBatch(ctx context.Context, files []File) ([]Outcome, error) {
	type parsed struct {
		parser    string
		result    parsers.Result
		err       error
		startedAt time.Time
	}
	results := make([]parsed, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, f := range files {
		startedAt := s.now().UTC()
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := s.registry.Select(f.Name)
			if err != nil {
				results[i] = parsed{err: err, startedAt: startedAt}
				return nil
			}
			res, err := p.Parse(f.Content, fileContext(f, startedAt))
			results[i] = parsed{parser: p.Name(), result: res, err: err, startedAt: startedAt}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, len(files))
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return outcomes[:i], err
		}
		summary := model.IngestionSummary{
			ID:        uuid.New().String(),
			FileName:  f.Name,
			Parser:    results[i].parser,
			BankID:    f.BankID,
			UserID:    f.UserID,
			StartedAt: results[i].startedAt,
		}
		err := results[i].err
		if err == nil {
			err = s.persist(ctx, f, results[i].result, &summary)
		}
		s.finish(ctx, &summary, err)
		outcomes[i] = Outcome{Summary: summary, Err: err}
	}
	return outcomes, nil
}

func fileContext(f File, processedAt time.Time) model.FileContext {
	return model.FileContext{
		FileName:    f.Name,
		BankID:      f.BankID,
		BankName:    f.BankName,
		UserID:      f.UserID,
		FileDate:    f.FileDate,
		ProcessedAt: processedAt,
	}
}

// persist stores one parsed file in a single transaction and reconciles the
// touched keys before committing.
func (s *IngestionService) persist(ctx context.Context, f File, res parsers.Result, summary *model.IngestionSummary) error {
	summary.Kind = res.Kind
	summary.FileDate = res.FileDate
	summary.RowsTotal = res.RowsTotal
	summary.RowsMapped = res.RowsMapped
	summary.RowsSkipped = res.RowsSkipped
	summary.FieldErrors = res.FieldErrors
	if bankID := recordBank(res); bankID != "" {
		summary.BankID = bankID
	}

	s.maint.RLock()
	defer s.maint.RUnlock()

	keys := touchedKeys(res.Positions)
	if len(keys) > 0 {
		unlock := s.reconciler.Lock(summary.BankID, keys)
		defer unlock()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if len(res.Positions) > 0 {
		if err := s.positions.WithTx(tx).InsertPositions(ctx, res.Positions); err != nil {
			return err
		}
		summary.RecordsInserted += len(res.Positions)

		rec, err := s.reconciler.Reconcile(ctx, tx, summary.BankID, keys)
		if err != nil {
			return err
		}
		summary.KeysReconciled = rec.KeysReconciled
		summary.SameDateDuplicates = rec.SameDateDuplicates
		for _, a := range rec.Anomalies {
			s.log.Warn().
				Str("file", f.Name).
				Str("kind", a.Kind).
				Str("unique_key", a.UniqueKey).
				Str("detail", a.Detail).
				Msg("reconciliation anomaly")
		}
	}

	if len(res.Operations) > 0 {
		inserted, dupes, err := s.operations.WithTx(tx).InsertOperations(ctx, res.Operations)
		if err != nil {
			return err
		}
		summary.RecordsInserted += inserted
		summary.DuplicatesSkipped += dupes
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	location, err := s.archiver.Archive(ctx, archive.Object{
		Name:     f.Name,
		BankID:   summary.BankID,
		FileDate: summary.FileDate,
		Data:     f.Content,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("file", f.Name).Msg("failed to archive source file")
	} else if location != "" {
		s.log.Debug().Str("file", f.Name).Str("location", location).Msg("source file archived")
	}
	return nil
}

// finish stamps the run status and records it. A failure to record is
// logged; the ingestion result stands.
func (s *IngestionService) finish(ctx context.Context, summary *model.IngestionSummary, err error) {
	summary.FinishedAt = s.now().UTC()
	summary.Status = model.IngestionStatusSucceeded
	if err != nil {
		summary.Status = model.IngestionStatusFailed
		summary.Error = err.Error()
	}

	// The run log is written even when the caller's context was cancelled mid-file.
	if recErr := s.runs.InsertRun(context.WithoutCancel(ctx), *summary); recErr != nil {
		s.log.Error().Err(recErr).Str("file", summary.FileName).Msg("failed to record ingestion run")
	}

	event := s.log.Info()
	if err != nil {
		event = s.log.Warn().Err(err).Bool("format_error", parsers.ErrorIsFormat(err))
	}
	event.
		Str("file", summary.FileName).
		Str("parser", summary.Parser).
		Str("status", summary.Status).
		Int("rows_total", summary.RowsTotal).
		Int("rows_mapped", summary.RowsMapped).
		Int("rows_skipped", summary.RowsSkipped).
		Int("field_errors", summary.FieldErrors).
		Int("inserted", summary.RecordsInserted).
		Int("duplicates", summary.DuplicatesSkipped).
		Int("keys_reconciled", summary.KeysReconciled).
		Int("same_date_duplicates", len(summary.SameDateDuplicates)).
		Msg("ingestion finished")
}

// ListRuns returns recent ingestion runs.
func (s *IngestionService) ListRuns(ctx context.Context, limit int) ([]model.IngestionSummary, error) {
	return s.runs.ListRuns(ctx, limit)
}

// AlreadyIngested reports whether a file of this name was stored before.
func (s *IngestionService) AlreadyIngested(ctx context.Context, name string) (bool, error) {
	return s.runs.HasSucceeded(ctx, name)
}

func recordBank(res parsers.Result) string {
	if len(res.Positions) > 0 {
		return res.Positions[0].BankID
	}
	if len(res.Operations) > 0 {
		return res.Operations[0].BankID
	}
	return ""
}

func touchedKeys(positions []model.Position) []string {
	seen := make(map[string]struct{}, len(positions))
	keys := make([]string, 0, len(positions))
	for _, p := range positions {
		if _, ok := seen[p.UniqueKey]; ok {
			continue
		}
		seen[p.UniqueKey] = struct{}{}
		keys = append(keys, p.UniqueKey)
	}
	sort.Strings(keys)
	return keys
}

// IsRejected reports whether err rejected a file as a whole, as opposed to a
// storage failure worth retrying.
func IsRejected(err error) bool {
	return err != nil && parsers.ErrorIsFormat(err)
}
