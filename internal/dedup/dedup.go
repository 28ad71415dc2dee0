// Package dedup repairs drift in the position store: duplicate latest records
// for one logical holding, histories split across unique keys and version
// sequences with gaps. It is an exclusive maintenance run over the whole store.
package dedup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ndewijer/custody-ingest/internal/apperrors"
	"github.com/ndewijer/custody-ingest/internal/model"
	"github.com/ndewijer/custody-ingest/internal/reconcile"
	"github.com/ndewijer/custody-ingest/internal/repository"
)

// Resolution modes for the losing records of a duplicate group.
const (
	ModeDelete = "delete"
	ModeFlag   = "flag"
)

// keysPerTx bounds how many unique keys are re-sequenced per transaction.
const keysPerTx = 200

// ValidMode reports whether mode is a known resolution mode.
func ValidMode(mode string) bool {
	return mode == ModeDelete || mode == ModeFlag
}

// Engine runs deduplication passes.
type Engine struct {
	db        *sql.DB
	positions *repository.PositionRepository
	runs      *repository.DedupRunRepository
	maint     *sync.RWMutex
	mode      string
	log       zerolog.Logger
	now       func() time.Time
}

// New creates an Engine. maint is shared with ingestion, which holds it for
// reading; a run needs it for writing. An unknown mode falls back to delete.
func New(
	db *sql.DB,
	positions *repository.PositionRepository,
	runs *repository.DedupRunRepository,
	maint *sync.RWMutex,
	mode string,
	log zerolog.Logger,
) *Engine {
	if !ValidMode(mode) {
		mode = ModeDelete
	}
	return &Engine{
		db:        db,
		positions: positions,
		runs:      runs,
		maint:     maint,
		mode:      mode,
		log:       log.With().Str("component", "dedup").Logger(),
		now:       time.Now,
	}
}

// Mode returns the configured resolution mode.
func (e *Engine) Mode() string {
	return e.mode
}

// Run executes one pass in the configured mode.
func (e *Engine) Run(ctx context.Context) (model.DedupSummary, error) {
	return e.RunMode(ctx, e.mode)
}

// RunMode executes one pass: collapse duplicate latest groups, then
// re-sequence every unique key. Failures in one group or key are recorded in
// the summary and do not stop the run. The summary is persisted.
func (e *Engine) RunMode(ctx context.Context, mode string) (model.DedupSummary, error) {
	if !ValidMode(mode) {
		return model.DedupSummary{}, fmt.Errorf("unknown dedup mode %q", mode)
	}
	if !e.maint.TryLock() {
		return model.DedupSummary{}, apperrors.ErrMaintenanceInProgress
	}
	defer e.maint.Unlock()

	summary := model.DedupSummary{
		ID:        uuid.New().String(),
		Mode:      mode,
		StartedAt: e.now().UTC(),
		Anomalies: []model.Anomaly{},
		Errors:    []string{},
	}
	e.log.Info().Str("run_id", summary.ID).Str("mode", mode).Msg("deduplication started")

	groups, err := e.positions.GroupLatestByIdentity(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to group latest positions: %w", err)
	}
	summary.GroupsFound = len(groups)

	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := e.resolveGroup(ctx, g, mode, &summary); err != nil {
			e.log.Error().Err(err).Str("owner", g.Owner).Str("identity", g.Identity).Msg("failed to resolve duplicate group")
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s %s: %v", g.Owner, g.Identity, err))
			summary.Anomalies = append(summary.Anomalies, model.Anomaly{
				Kind:        model.AnomalyGroupFailure,
				Identity:    g.Identity,
				PositionIDs: g.PositionIDs,
				Detail:      err.Error(),
			})
		}
	}

	if err := e.resequence(ctx, &summary); err != nil {
		return summary, err
	}

	summary.FinishedAt = e.now().UTC()
	summary.Duration = summary.FinishedAt.Sub(summary.StartedAt)

	if err := e.runs.InsertRun(ctx, summary); err != nil {
		return summary, err
	}

	e.log.Info().
		Str("run_id", summary.ID).
		Int("groups_found", summary.GroupsFound).
		Int("records_kept", summary.RecordsKept).
		Int("records_deleted", summary.RecordsDeleted).
		Int("records_flagged", summary.RecordsFlagged).
		Int("records_rekeyed", summary.RecordsRekeyed).
		Int("versions_renumbered", summary.VersionsRenumbered).
		Int("latest_changed", summary.LatestChanged).
		Int("anomalies", len(summary.Anomalies)).
		Dur("duration", summary.Duration).
		Msg("deduplication finished")

	return summary, nil
}

// newestFirst orders records by snapshot date then processing time, newest first.
func newestFirst(recs []model.Position) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.SnapshotDate.Equal(b.SnapshotDate) {
			return a.SnapshotDate.After(b.SnapshotDate)
		}
		return a.ProcessedAt.After(b.ProcessedAt)
	})
}

// resolveGroup keeps the newest record of a duplicate group and retires the
// others. The history of every losing key is moved under the survivor's key.
func (e *Engine) resolveGroup(ctx context.Context, g model.IdentityGroup, mode string, summary *model.DedupSummary) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	repo := e.positions.WithTx(tx)
	recs, err := repo.GetPositionsByIDs(ctx, g.PositionIDs)
	if err != nil {
		return err
	}
	if len(recs) != len(g.PositionIDs) {
		summary.Anomalies = append(summary.Anomalies, model.Anomaly{
			Kind:        model.AnomalyMissingPosition,
			Identity:    g.Identity,
			PositionIDs: g.PositionIDs,
			Detail:      fmt.Sprintf("group lists %d records, %d found", len(g.PositionIDs), len(recs)),
		})
	}
	if len(recs) < 2 {
		return nil
	}

	newestFirst(recs)
	head, next := recs[0], recs[1]
	if head.SnapshotDate.Equal(next.SnapshotDate) && head.ProcessedAt.Equal(next.ProcessedAt) {
		summary.Anomalies = append(summary.Anomalies, model.Anomaly{
			Kind:        model.AnomalyUnresolvedTie,
			UniqueKey:   head.UniqueKey,
			Identity:    g.Identity,
			PositionIDs: []string{head.ID, next.ID},
			Detail:      "newest records share snapshot date and processing time; left for manual review",
		})
		e.log.Warn().Str("owner", g.Owner).Str("identity", g.Identity).Msg("unresolved tie in duplicate group")
		return nil
	}

	losers := recs[1:]
	var deleted, flagged, rekeyed int

	switch mode {
	case ModeDelete:
		ids := make([]string, len(losers))
		for i, l := range losers {
			ids[i] = l.ID
		}
		if deleted, err = repo.DeletePositions(ctx, ids); err != nil {
			return err
		}
	case ModeFlag:
		for _, l := range losers {
			if err := repo.ClearLatest(ctx, l.BankID, l.UniqueKey); err != nil {
				return err
			}
			flagged++
		}
	}

	moved := map[string]bool{}
	for _, l := range losers {
		if l.UniqueKey == head.UniqueKey || moved[l.UniqueKey] {
			continue
		}
		moved[l.UniqueKey] = true
		n, err := repo.Rekey(ctx, l.BankID, l.UniqueKey, head.UniqueKey)
		if err != nil {
			return err
		}
		rekeyed += n
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	summary.RecordsKept++
	summary.RecordsDeleted += deleted
	summary.RecordsFlagged += flagged
	summary.RecordsRekeyed += rekeyed

	e.log.Debug().
		Str("owner", g.Owner).
		Str("identity", g.Identity).
		Str("kept", head.ID).
		Int("deleted", deleted).
		Int("flagged", flagged).
		Int("rekeyed", rekeyed).
		Msg("resolved duplicate group")
	return nil
}

// resequence re-derives versions and latest flags for every unique key.
func (e *Engine) resequence(ctx context.Context, summary *model.DedupSummary) error {
	keys, err := e.positions.DistinctKeys(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate unique keys: %w", err)
	}
	summary.KeysScanned = len(keys)

	for start := 0; start < len(keys); start += keysPerTx {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+keysPerTx, len(keys))
		if err := e.resequenceBatch(ctx, keys[start:end], summary); err != nil {
			e.log.Error().Err(err).Msg("failed to re-sequence key batch")
			summary.Errors = append(summary.Errors, err.Error())
		}
	}
	return nil
}

func (e *Engine) resequenceBatch(ctx context.Context, keys []repository.BankKey, summary *model.DedupSummary) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	repo := e.positions.WithTx(tx)
	var renumbered, latestChanged int
	var anomalies []model.Anomaly
	var errs []string

	for _, k := range keys {
		versions, err := repo.GetVersions(ctx, k.BankID, k.UniqueKey)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", k.UniqueKey, err))
			continue
		}
		if len(versions) == 0 {
			continue
		}
		plan := reconcile.Sequence(versions)
		if plan.Tie {
			anomalies = append(anomalies, plan.TieAnomaly(k.UniqueKey))
		}
		if err := reconcile.Apply(ctx, tx, repo, k.BankID, k.UniqueKey, plan); err != nil {
			if errors.Is(err, reconcile.ErrPartialApply) {
				return err
			}
			errs = append(errs, fmt.Sprintf("%s: %v", k.UniqueKey, err))
			anomalies = append(anomalies, model.Anomaly{
				Kind:      model.AnomalyReconcileFailure,
				UniqueKey: k.UniqueKey,
				Detail:    err.Error(),
			})
			continue
		}
		renumbered += plan.Renumbered
		latestChanged += plan.LatestChanged
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	summary.VersionsRenumbered += renumbered
	summary.LatestChanged += latestChanged
	summary.Anomalies = append(summary.Anomalies, anomalies...)
	summary.Errors = append(summary.Errors, errs...)
	return nil
}
