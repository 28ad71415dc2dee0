package dedup_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/custody-ingest/internal/apperrors"
	"github.com/ndewijer/custody-ingest/internal/dedup"
	"github.com/ndewijer/custody-ingest/internal/logging"
	"github.com/ndewijer/custody-ingest/internal/model"
	"github.com/ndewijer/custody-ingest/internal/repository"
	"github.com/ndewijer/custody-ingest/internal/testutil"
)

const isin = "FR0000120271"

func at(day string, hour int) (time.Time, time.Time) {
	d := testutil.Date(day)
	return d, d.Add(time.Duration(hour) * time.Hour)
}

// seedDrift stores three latest records of one holding under three legacy
// keys: 2024-01-10, 2024-02-10 processed at noon, 2024-02-10 processed at 8.
func seedDrift(t *testing.T, db *sql.DB) (older, keep, earlier model.Position) {
	t.Helper()

	d, p := at("2024-01-10", 12)
	older = testutil.NewPosition().WithISIN(isin).WithUniqueKey("EDR|P001|FR0000120271|legacy-a").
		WithSnapshotDate(d).WithProcessedAt(p).Build(t, db)
	d, p = at("2024-02-10", 12)
	keep = testutil.NewPosition().WithISIN(isin).WithUniqueKey("EDR|P001|FR0000120271|legacy-b").
		WithSnapshotDate(d).WithProcessedAt(p).Build(t, db)
	d, p = at("2024-02-10", 8)
	earlier = testutil.NewPosition().WithISIN(isin).WithUniqueKey("EDR|P001|FR0000120271|legacy-c").
		WithSnapshotDate(d).WithProcessedAt(p).Build(t, db)
	return older, keep, earlier
}

func newEngine(db *sql.DB, mode string) (*dedup.Engine, *sync.RWMutex) {
	maint := &sync.RWMutex{}
	return dedup.New(
		db,
		repository.NewPositionRepository(db),
		repository.NewDedupRunRepository(db),
		maint,
		mode,
		logging.Nop(),
	), maint
}

// TestEngine_Run_Delete tests the default delete mode.
//
// WHY: Duplicate latest records for one holding break every consumer that
// sums current positions. The newest snapshot must survive, ties on snapshot
// date must be broken by processing time, and a second run must change nothing.
func TestEngine_Run_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps the newest record and deletes the rest", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		engine, _ := newEngine(db, dedup.ModeDelete)
		_, keep, _ := seedDrift(t, db)

		summary, err := engine.Run(ctx)
		require.NoError(t, err)

		assert.Equal(t, dedup.ModeDelete, summary.Mode)
		assert.Equal(t, 1, summary.GroupsFound)
		assert.Equal(t, 1, summary.RecordsKept)
		assert.Equal(t, 2, summary.RecordsDeleted)
		assert.Equal(t, 0, summary.RecordsFlagged)
		assert.Empty(t, summary.Anomalies)

		remaining, err := repository.NewPositionRepository(db).FindPositions(ctx, model.PositionFilter{ISIN: isin})
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, keep.ID, remaining[0].ID)
		assert.True(t, remaining[0].IsLatest)
		assert.Equal(t, 1, remaining[0].Version)
	})

	t.Run("second run is a no-op", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		engine, _ := newEngine(db, dedup.ModeDelete)
		seedDrift(t, db)

		_, err := engine.Run(ctx)
		require.NoError(t, err)
		second, err := engine.Run(ctx)
		require.NoError(t, err)

		assert.Equal(t, 0, second.GroupsFound)
		assert.False(t, second.Changed())
		assert.Equal(t, 1, testutil.CountRows(t, db, "positions"))
	})

	t.Run("history of a losing key moves to the survivor", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		engine, _ := newEngine(db, dedup.ModeDelete)
		positions := repository.NewPositionRepository(db)

		loserKey := "EDR|P001|" + isin + "|legacy-a"
		keepKey := "EDR|P001|" + isin + "|legacy-b"
		history := testutil.NewPosition().WithISIN(isin).WithUniqueKey(loserKey).
			WithSnapshotDate(testutil.Date("2023-12-10")).NotLatest().Build(t, db)
		testutil.NewPosition().WithISIN(isin).WithUniqueKey(loserKey).
			WithSnapshotDate(testutil.Date("2024-01-10")).WithVersion(2).Build(t, db)
		keep := testutil.NewPosition().WithISIN(isin).WithUniqueKey(keepKey).
			WithSnapshotDate(testutil.Date("2024-02-10")).Build(t, db)

		summary, err := engine.Run(ctx)
		require.NoError(t, err)

		assert.Equal(t, 1, summary.RecordsDeleted)
		assert.Equal(t, 1, summary.RecordsRekeyed)
		assert.Equal(t, 1, summary.VersionsRenumbered)

		moved, err := positions.GetPosition(ctx, history.ID)
		require.NoError(t, err)
		assert.Equal(t, keepKey, moved.UniqueKey)
		assert.Equal(t, 1, moved.Version)
		assert.False(t, moved.IsLatest)

		survivor, err := positions.GetPosition(ctx, keep.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, survivor.Version)
		assert.True(t, survivor.IsLatest)
		assert.Equal(t, 1, testutil.CountLatest(t, db, "EDR", keepKey))
	})
}

// TestEngine_Run_Flag tests flag mode.
//
// WHY: Operators who want to audit before deleting run in flag mode. Losers
// must stay in the store as non-latest history of the survivor's key.
func TestEngine_Run_Flag(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	engine, _ := newEngine(db, dedup.ModeFlag)
	older, keep, earlier := seedDrift(t, db)

	summary, err := engine.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.RecordsFlagged)
	assert.Equal(t, 0, summary.RecordsDeleted)
	assert.Equal(t, 2, summary.RecordsRekeyed)
	assert.Equal(t, 3, testutil.CountRows(t, db, "positions"))
	assert.Equal(t, 1, testutil.CountLatest(t, db, "EDR", keep.UniqueKey))

	versions, err := repository.NewPositionRepository(db).GetVersions(ctx, "EDR", keep.UniqueKey)
	require.NoError(t, err)
	byID := map[string]model.PositionVersion{}
	for _, v := range versions {
		byID[v.ID] = v
	}
	require.Len(t, byID, 3)
	assert.Equal(t, 1, byID[older.ID].Version)
	assert.Equal(t, 2, byID[earlier.ID].Version)
	assert.Equal(t, 3, byID[keep.ID].Version)
	assert.True(t, byID[keep.ID].IsLatest)

	second, err := engine.Run(ctx)
	require.NoError(t, err)
	assert.False(t, second.Changed())
}

// TestEngine_Run_Anomalies tests cases the engine must not resolve on its own.
//
// WHY: Ambiguous duplicates are left for manual review, and holdings of
// different banks are never merged even when they share an ISIN.
func TestEngine_Run_Anomalies(t *testing.T) {
	ctx := context.Background()

	t.Run("full tie is reported and left untouched", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		engine, _ := newEngine(db, dedup.ModeDelete)
		d, p := at("2024-02-10", 12)
		testutil.NewPosition().WithISIN(isin).WithUniqueKey("k1").WithSnapshotDate(d).WithProcessedAt(p).Build(t, db)
		testutil.NewPosition().WithISIN(isin).WithUniqueKey("k2").WithSnapshotDate(d).WithProcessedAt(p).Build(t, db)

		summary, err := engine.Run(ctx)
		require.NoError(t, err)

		assert.Equal(t, 1, summary.GroupsFound)
		assert.Equal(t, 0, summary.RecordsKept)
		assert.Equal(t, 0, summary.RecordsDeleted)
		require.Len(t, summary.Anomalies, 1)
		assert.Equal(t, model.AnomalyUnresolvedTie, summary.Anomalies[0].Kind)
		assert.Equal(t, 2, testutil.CountRows(t, db, "positions"))
	})

	t.Run("different banks are not merged", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		engine, _ := newEngine(db, dedup.ModeDelete)
		testutil.NewPosition().WithISIN(isin).Build(t, db)
		testutil.NewPosition().WithBank("CFM").WithISIN(isin).Build(t, db)

		summary, err := engine.Run(ctx)
		require.NoError(t, err)

		assert.Equal(t, 0, summary.GroupsFound)
		assert.Equal(t, 2, testutil.CountRows(t, db, "positions"))
	})

	t.Run("cash without ISIN groups by currency type and name", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		engine, _ := newEngine(db, dedup.ModeDelete)
		testutil.NewPosition().WithISIN("").WithType(model.SecurityTypeCash).WithName("Current account").
			WithUniqueKey("EDR|P001|EUR:CASH|-").WithSnapshotDate(testutil.Date("2024-01-10")).Build(t, db)
		testutil.NewPosition().WithISIN("").WithType(model.SecurityTypeCash).WithName("Current account").
			WithUniqueKey("EDR|P001|EUR:CASH|legacy").WithSnapshotDate(testutil.Date("2024-02-10")).Build(t, db)

		summary, err := engine.Run(ctx)
		require.NoError(t, err)

		assert.Equal(t, 1, summary.GroupsFound)
		assert.Equal(t, 1, summary.RecordsDeleted)
	})
}

// TestEngine_Run_Resequence tests the version repair pass.
//
// WHY: Re-sequencing commits a whole batch of keys at once. A key whose writes
// fail halfway must be restored, otherwise the commit stores a holding with no
// latest record at all.
func TestEngine_Run_Resequence(t *testing.T) {
	ctx := context.Background()

	t.Run("failed key is restored and reported", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		engine, _ := newEngine(db, dedup.ModeDelete)
		positions := repository.NewPositionRepository(db)

		first := testutil.NewPosition().WithISIN(isin).
			WithSnapshotDate(testutil.Date("2024-01-10")).Build(t, db)
		second := testutil.NewPosition().WithISIN(isin).
			WithSnapshotDate(testutil.Date("2024-02-10")).NotLatest().WithVersion(0).Build(t, db)
		gap := testutil.NewPosition().WithISIN("LU0000000004").
			WithSnapshotDate(testutil.Date("2024-02-10")).WithVersion(3).Build(t, db)

		_, err := db.ExecContext(ctx, `CREATE TRIGGER fail_second_version
			BEFORE UPDATE OF version ON positions WHEN NEW.id = '`+second.ID+`'
			BEGIN SELECT RAISE(ABORT, 'version write rejected'); END`)
		require.NoError(t, err)

		summary, err := engine.Run(ctx)
		require.NoError(t, err)

		require.Len(t, summary.Anomalies, 1)
		assert.Equal(t, model.AnomalyReconcileFailure, summary.Anomalies[0].Kind)
		assert.Equal(t, first.UniqueKey, summary.Anomalies[0].UniqueKey)
		assert.Len(t, summary.Errors, 1)

		latest, err := positions.FindPositions(ctx, model.PositionFilter{UniqueKey: first.UniqueKey, LatestOnly: true})
		require.NoError(t, err)
		require.Len(t, latest, 1)
		assert.Equal(t, first.ID, latest[0].ID)

		repaired, err := positions.GetVersions(ctx, "EDR", gap.UniqueKey)
		require.NoError(t, err)
		require.Len(t, repaired, 1)
		assert.Equal(t, 1, repaired[0].Version)
		assert.True(t, repaired[0].IsLatest)
	})
}

// TestEngine_Run_Exclusive tests the maintenance lock.
//
// WHY: A dedup run must not overlap ingestion or another run; callers get a
// distinct error instead of blocking.
func TestEngine_Run_Exclusive(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	engine, maint := newEngine(db, dedup.ModeDelete)

	maint.RLock()
	_, err := engine.Run(ctx)
	maint.RUnlock()
	assert.ErrorIs(t, err, apperrors.ErrMaintenanceInProgress)

	_, err = engine.Run(ctx)
	require.NoError(t, err)
}

// TestEngine_Run_Persists tests that summaries land in dedup_runs.
func TestEngine_Run_Persists(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	engine, _ := newEngine(db, dedup.ModeDelete)
	seedDrift(t, db)

	summary, err := engine.Run(ctx)
	require.NoError(t, err)

	runs, err := repository.NewDedupRunRepository(db).ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.ID, runs[0].ID)
	assert.Equal(t, 2, runs[0].RecordsDeleted)
	assert.Empty(t, runs[0].Anomalies)
}

func TestEngine_RunMode_Unknown(t *testing.T) {
	db := testutil.SetupTestDB(t)
	engine, _ := newEngine(db, "bogus")
	assert.Equal(t, dedup.ModeDelete, engine.Mode())

	_, err := engine.RunMode(context.Background(), "purge")
	assert.Error(t, err)
}
