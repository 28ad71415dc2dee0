// Package reconcile maintains version numbers and the latest flag of the
// position records that share a unique key.
//
// The Reconciler runs at ingestion time and only touches the keys a file
// produced. Total recomputation over the whole store is the job of the
// dedup package, which reuses Sequence and Apply from here.
package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/ndewijer/custody-ingest/internal/model"
	"github.com/ndewijer/custody-ingest/internal/repository"
)

// Reconciler renumbers versions and moves the latest flag for touched keys.
type Reconciler struct {
	positions *repository.PositionRepository
	locks     *KeyedMutex
	log       zerolog.Logger
}

// New creates a Reconciler over the position repository.
func New(positions *repository.PositionRepository, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		positions: positions,
		locks:     NewKeyedMutex(),
		log:       log.With().Str("component", "reconcile").Logger(),
	}
}

// Lock serializes work on the given keys of one bank. Callers take it before
// inserting records and release it after the transaction commits.
func (r *Reconciler) Lock(bankID string, keys []string) (unlock func()) {
	scoped := make([]string, len(keys))
	for i, k := range keys {
		scoped[i] = bankID + "\x00" + k
	}
	return r.locks.LockAll(scoped)
}

// Result aggregates what one Reconcile call changed and found.
type Result struct {
	KeysReconciled     int
	VersionsRenumbered int
	LatestChanged      int
	SameDateDuplicates []string
	Anomalies          []model.Anomaly
}

// Reconcile re-sequences every key in keys inside tx. A failure on one key
// is recorded as an anomaly, its writes are undone, and the remaining keys
// are still processed. An error is returned only when a failed key could not
// be undone; the caller must then roll tx back.
func (r *Reconciler) Reconcile(ctx context.Context, tx *sql.Tx, bankID string, keys []string) (Result, error) {
	repo := r.positions.WithTx(tx)
	var res Result

	for _, key := range uniqueSorted(keys) {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		versions, err := repo.GetVersions(ctx, bankID, key)
		if err != nil {
			r.fail(&res, key, err)
			continue
		}
		if len(versions) == 0 {
			continue
		}

		plan := Sequence(versions)
		if err := Apply(ctx, tx, repo, bankID, key, plan); err != nil {
			if errors.Is(err, ErrPartialApply) {
				return res, err
			}
			r.fail(&res, key, err)
			continue
		}

		res.KeysReconciled++
		res.VersionsRenumbered += plan.Renumbered
		res.LatestChanged += plan.LatestChanged

		if len(plan.SameDate) > 0 {
			res.SameDateDuplicates = append(res.SameDateDuplicates, key)
			r.log.Warn().
				Str("bank_id", bankID).
				Str("unique_key", key).
				Strs("position_ids", plan.SameDate).
				Msg("same-date snapshots for key, latest chosen by processing time")
		}
		if plan.Tie {
			res.Anomalies = append(res.Anomalies, plan.TieAnomaly(key))
		}
	}

	return res, nil
}

func (r *Reconciler) fail(res *Result, key string, err error) {
	r.log.Error().Err(err).Str("unique_key", key).Msg("failed to reconcile key")
	res.Anomalies = append(res.Anomalies, model.Anomaly{
		Kind:      model.AnomalyReconcileFailure,
		UniqueKey: key,
		Detail:    err.Error(),
	})
}

// Less orders versions by snapshot date, then processing time, then id.
func Less(a, b model.PositionVersion) bool {
	if !a.SnapshotDate.Equal(b.SnapshotDate) {
		return a.SnapshotDate.Before(b.SnapshotDate)
	}
	if !a.ProcessedAt.Equal(b.ProcessedAt) {
		return a.ProcessedAt.Before(b.ProcessedAt)
	}
	return a.ID < b.ID
}

// Plan is the target state of one key.
type Plan struct {
	// Ordered holds every record in version order with its target Version and IsLatest.
	Ordered []model.PositionVersion
	// Changed holds the records whose version or latest flag differs from the stored one.
	Changed []model.PositionVersion

	Renumbered    int
	LatestChanged int

	// Tie is set when the two newest records share snapshot date and processing time.
	Tie bool
	// SameDate lists the non-latest records that share the latest record's snapshot date.
	SameDate []string
}

// Sequence computes the dense 1..N numbering of versions and selects the
// newest record as latest. The input is not modified.
func Sequence(versions []model.PositionVersion) Plan {
	ordered := make([]model.PositionVersion, len(versions))
	copy(ordered, versions)
	sort.Slice(ordered, func(i, j int) bool { return Less(ordered[i], ordered[j]) })

	var plan Plan
	last := len(ordered) - 1
	for i := range ordered {
		cur := ordered[i]
		target := cur
		target.Version = i + 1
		target.IsLatest = i == last

		changed := false
		if cur.Version != target.Version {
			plan.Renumbered++
			changed = true
		}
		if cur.IsLatest != target.IsLatest {
			plan.LatestChanged++
			changed = true
		}
		if changed {
			plan.Changed = append(plan.Changed, target)
		}
		ordered[i] = target
	}
	plan.Ordered = ordered

	if last >= 1 {
		head, prev := ordered[last], ordered[last-1]
		plan.Tie = head.SnapshotDate.Equal(prev.SnapshotDate) && head.ProcessedAt.Equal(prev.ProcessedAt)
		for _, v := range ordered[:last] {
			if v.SnapshotDate.Equal(head.SnapshotDate) {
				plan.SameDate = append(plan.SameDate, v.ID)
			}
		}
	}
	return plan
}

// Latest returns the record the plan flags as latest.
func (p Plan) Latest() model.PositionVersion {
	if len(p.Ordered) == 0 {
		return model.PositionVersion{}
	}
	return p.Ordered[len(p.Ordered)-1]
}

// TieAnomaly describes an unresolved tie at the head of the plan.
func (p Plan) TieAnomaly(key string) model.Anomaly {
	n := len(p.Ordered)
	head, prev := p.Ordered[n-1], p.Ordered[n-2]
	return model.Anomaly{
		Kind:        model.AnomalyVersionTie,
		UniqueKey:   key,
		PositionIDs: []string{prev.ID, head.ID},
		Detail: fmt.Sprintf("records share snapshot date %s and processing time %s; latest chosen by id",
			head.SnapshotDate.Format("2006-01-02"), head.ProcessedAt.Format("2006-01-02T15:04:05.000Z07:00")),
	}
}

// ErrPartialApply reports that a failed Apply could not be undone, leaving
// the transaction with a key that may have no latest record.
var ErrPartialApply = errors.New("key partially re-sequenced")

const applySavepoint = "reconcile_key"

// Apply writes a plan inside tx under a savepoint. When any write fails the
// key is restored to its state before Apply, so a caller that records the
// failure and commits never persists a half-written sequence. repo must be
// bound to tx.
func Apply(ctx context.Context, tx *sql.Tx, repo *repository.PositionRepository, bankID, key string, plan Plan) error {
	if len(plan.Changed) == 0 {
		return nil
	}

	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+applySavepoint); err != nil {
		return fmt.Errorf("failed to open savepoint: %w", err)
	}

	if err := write(ctx, repo, bankID, key, plan); err != nil {
		// The undo must run even when ctx was the cause of the failure.
		undoCtx := context.WithoutCancel(ctx)
		if _, rbErr := tx.ExecContext(undoCtx, "ROLLBACK TO SAVEPOINT "+applySavepoint); rbErr != nil {
			return fmt.Errorf("%w: %w (undo: %w)", ErrPartialApply, err, rbErr)
		}
		if _, relErr := tx.ExecContext(undoCtx, "RELEASE SAVEPOINT "+applySavepoint); relErr != nil {
			return fmt.Errorf("%w: %w (release: %w)", ErrPartialApply, err, relErr)
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+applySavepoint); err != nil {
		return fmt.Errorf("%w: failed to release savepoint: %w", ErrPartialApply, err)
	}
	return nil
}

// write clears the latest flag for the whole key before a new latest is set,
// so the one-latest index is never violated mid-update.
func write(ctx context.Context, repo *repository.PositionRepository, bankID, key string, plan Plan) error {
	if plan.LatestChanged > 0 {
		if err := repo.ClearLatest(ctx, bankID, key); err != nil {
			return err
		}
	}

	latest := plan.Latest()
	wroteLatest := false
	for _, v := range plan.Changed {
		if err := repo.SetVersion(ctx, v.ID, v.Version, v.IsLatest); err != nil {
			return fmt.Errorf("failed to set version of %s: %w", v.ID, err)
		}
		if v.ID == latest.ID {
			wroteLatest = true
		}
	}
	if plan.LatestChanged > 0 && !wroteLatest {
		if err := repo.SetVersion(ctx, latest.ID, latest.Version, true); err != nil {
			return fmt.Errorf("failed to set version of %s: %w", latest.ID, err)
		}
	}
	return nil
}
