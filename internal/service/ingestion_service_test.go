package service_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/custody-ingest/internal/apperrors"
	"github.com/ndewijer/custody-ingest/internal/archive"
	"github.com/ndewijer/custody-ingest/internal/model"
	"github.com/ndewijer/custody-ingest/internal/repository"
	"github.com/ndewijer/custody-ingest/internal/service"
	"github.com/ndewijer/custody-ingest/internal/testutil"
)

const (
	equityKey = "EDR|P001|FR0000121014|-"
	bondKey   = "EDR|P001|XS1234567890|2030-06-15"
	cashKey   = "EDR|P001|EUR:CASH|-"
)

func positionsFile(day string) service.File {
	name, content := testutil.EDRPositionsFile(testutil.Date(day))
	return service.File{Name: name, Content: content}
}

// TestIngestionService_IngestFile tests the single-file pipeline.
//
// WHY: Every stored snapshot must end up with exactly one latest record per
// holding and dense versions, whatever order the bank's files arrive in.
func TestIngestionService_IngestFile(t *testing.T) {
	ctx := context.Background()

	t.Run("first snapshot becomes version 1", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestIngestionService(t, db, nil, nil)

		summary, err := svc.IngestFile(ctx, positionsFile("2025-12-05"))
		require.NoError(t, err)

		assert.Equal(t, model.IngestionStatusSucceeded, summary.Status)
		assert.Equal(t, "edr-positions", summary.Parser)
		assert.Equal(t, model.FileKindPositions, summary.Kind)
		assert.Equal(t, "EDR", summary.BankID)
		assert.Equal(t, testutil.Date("2025-12-05"), summary.FileDate)
		assert.Equal(t, 3, summary.RowsTotal)
		assert.Equal(t, 3, summary.RecordsInserted)
		assert.Equal(t, 3, summary.KeysReconciled)
		assert.Empty(t, summary.SameDateDuplicates)

		for _, key := range []string{equityKey, bondKey, cashKey} {
			assert.Equal(t, 1, testutil.CountLatest(t, db, "EDR", key), key)
		}
		latest, err := repository.NewPositionRepository(db).FindPositions(ctx, model.PositionFilter{UniqueKey: equityKey})
		require.NoError(t, err)
		require.Len(t, latest, 1)
		assert.Equal(t, 1, latest[0].Version)
		assert.True(t, latest[0].IsLatest)
	})

	t.Run("late older snapshot does not take latest", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestIngestionService(t, db, nil, nil)

		_, err := svc.IngestFile(ctx, positionsFile("2025-12-05"))
		require.NoError(t, err)
		_, err = svc.IngestFile(ctx, positionsFile("2025-11-28"))
		require.NoError(t, err)

		history, err := testutil.NewTestPositionService(t, db).History(ctx, "EDR", equityKey)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, testutil.Date("2025-12-05"), history[0].SnapshotDate)
		assert.Equal(t, 2, history[0].Version)
		assert.True(t, history[0].IsLatest)
		assert.Equal(t, 1, history[1].Version)
		assert.False(t, history[1].IsLatest)
	})

	t.Run("resubmitted file is reported as same-date duplicate", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestIngestionService(t, db, nil, nil)

		_, err := svc.IngestFile(ctx, positionsFile("2025-12-05"))
		require.NoError(t, err)
		summary, err := svc.IngestFile(ctx, positionsFile("2025-12-05"))
		require.NoError(t, err)

		assert.ElementsMatch(t, []string{equityKey, bondKey, cashKey}, summary.SameDateDuplicates)
		assert.Equal(t, 1, testutil.CountLatest(t, db, "EDR", equityKey))
		assert.Equal(t, 6, testutil.CountRows(t, db, "positions"))
	})

	t.Run("unknown file name is rejected and logged", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestIngestionService(t, db, nil, nil)

		summary, err := svc.IngestFile(ctx, service.File{Name: "random.csv", Content: []byte("a,b\n1,2\n")})
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrNoParser)
		assert.True(t, service.IsRejected(err))
		assert.Equal(t, model.IngestionStatusFailed, summary.Status)
		assert.Equal(t, 0, testutil.CountRows(t, db, "positions"))

		runs, err := svc.ListRuns(ctx, 10)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, model.IngestionStatusFailed, runs[0].Status)
		assert.NotEmpty(t, runs[0].Error)
	})

	t.Run("bad header stores nothing", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestIngestionService(t, db, nil, nil)

		_, err := svc.IngestFile(ctx, service.File{Name: "portef_AB12_20251205.csv", Content: []byte("foo,bar\n1,2\n")})
		assert.ErrorIs(t, err, apperrors.ErrInvalidHeader)
		assert.Equal(t, 0, testutil.CountRows(t, db, "positions"))
	})

	t.Run("operations are stored once", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestIngestionService(t, db, nil, nil)
		name, content := testutil.EDROperationsFile(testutil.Date("2025-12-05"))

		first, err := svc.IngestFile(ctx, service.File{Name: name, Content: content})
		require.NoError(t, err)
		assert.Equal(t, 3, first.RecordsInserted)
		assert.Equal(t, 0, first.KeysReconciled)

		second, err := svc.IngestFile(ctx, service.File{Name: "mvt_X1_20251206.csv", Content: content})
		require.NoError(t, err)
		assert.Equal(t, 0, second.RecordsInserted)
		assert.Equal(t, 3, second.DuplicatesSkipped)
		assert.Equal(t, 3, testutil.CountRows(t, db, "operations"))
	})

	t.Run("provenance from the trigger wins", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestIngestionService(t, db, nil, nil)

		f := positionsFile("2025-12-05")
		f.UserID = "alice"
		summary, err := svc.IngestFile(ctx, f)
		require.NoError(t, err)
		assert.Equal(t, "alice", summary.UserID)

		got, err := repository.NewPositionRepository(db).FindPositions(ctx, model.PositionFilter{UserID: "alice"})
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})
}

func TestIngestionService_IngestBatch(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestIngestionService(t, db, nil, nil)

	files := []service.File{
		positionsFile("2025-12-05"),
		positionsFile("2025-11-28"),
		{Name: "random.csv", Content: []byte("x")},
		positionsFile("2025-12-12"),
	}
	outcomes, err := svc.IngestBatch(ctx, files)
	require.NoError(t, err)
	require.Len(t, outcomes, 4)

	assert.NoError(t, outcomes[0].Err)
	assert.NoError(t, outcomes[1].Err)
	assert.Error(t, outcomes[2].Err)
	assert.NoError(t, outcomes[3].Err)

	versions, err := repository.NewPositionRepository(db).GetVersions(ctx, "EDR", bondKey)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	for i, v := range versions {
		assert.Equal(t, i+1, v.Version)
		assert.Equal(t, i == 2, v.IsLatest)
	}
	assert.Equal(t, testutil.Date("2025-12-12"), versions[2].SnapshotDate)

	runs, err := svc.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 4)
}

func TestIngestionService_Archive(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	dir := t.TempDir()
	local, err := archive.NewLocal(dir)
	require.NoError(t, err)
	svc := testutil.NewTestIngestionService(t, db, nil, local)

	f := positionsFile("2025-12-05")
	_, err = svc.IngestFile(ctx, f)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "edr", "2025-12", f.Name))
	require.NoError(t, err)
	assert.Equal(t, f.Content, got)
}

// TestIngestionService_WaitsForMaintenance tests the shared maintenance lock.
//
// WHY: Ingestion must never interleave with a deduplication run; it waits
// until the run releases the store.
func TestIngestionService_WaitsForMaintenance(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	maint := &sync.RWMutex{}
	svc := testutil.NewTestIngestionService(t, db, maint, nil)

	maint.Lock()
	done := make(chan error, 1)
	go func() {
		_, err := svc.IngestFile(ctx, positionsFile("2025-12-05"))
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("ingestion finished while maintenance held the store")
	case <-time.After(50 * time.Millisecond):
	}

	maint.Unlock()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ingestion did not resume after maintenance")
	}
	assert.Equal(t, 3, testutil.CountRows(t, db, "positions"))
}

// TestIngestionService_ScanInbox tests the drop directory workflow.
//
// WHY: Operators drop files and walk away. Good files must disappear from the
// inbox, bad ones must be parked for inspection, and a file dropped twice
// must not be stored twice.
func TestIngestionService_ScanInbox(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestIngestionService(t, db, nil, nil)

	inbox := service.Inbox{Dir: t.TempDir()}
	inbox.FailedDir = filepath.Join(inbox.Dir, "failed")

	good := positionsFile("2025-12-05")
	require.NoError(t, os.WriteFile(filepath.Join(inbox.Dir, good.Name), good.Content, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(inbox.Dir, "notes.txt"), []byte("hello"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(inbox.Dir, ".hidden"), []byte("x"), 0o600))

	result, err := svc.ScanInbox(ctx, inbox)
	require.NoError(t, err)
	assert.Equal(t, []string{good.Name}, result.Ingested)
	assert.Equal(t, []string{"notes.txt"}, result.Rejected)

	_, err = os.Stat(filepath.Join(inbox.Dir, good.Name))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(inbox.FailedDir, "notes.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(inbox.Dir, ".hidden"))
	assert.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(inbox.Dir, good.Name), good.Content, 0o600))
	result, err = svc.ScanInbox(ctx, inbox)
	require.NoError(t, err)
	assert.Equal(t, []string{good.Name}, result.Skipped)
	assert.Empty(t, result.Ingested)
	assert.Equal(t, 3, testutil.CountRows(t, db, "positions"))
}
