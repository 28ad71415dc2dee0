package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/custody-ingest/internal/apperrors"
	"github.com/ndewijer/custody-ingest/internal/model"
	"github.com/ndewijer/custody-ingest/internal/repository"
	"github.com/ndewijer/custody-ingest/internal/sealing"
	"github.com/ndewijer/custody-ingest/internal/testutil"
)

// TestPositionRepository_OneLatestPerKey tests the store-level guard.
//
// WHY: Whatever the application does, the store must refuse a second latest
// record for the same (bank, uniqueKey).
func TestPositionRepository_OneLatestPerKey(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	repo := repository.NewPositionRepository(db)

	first := testutil.NewPosition().WithUniqueKey("EDR|P001|FR0000120271|-").Build(t, db)
	second := testutil.NewPosition().WithUniqueKey(first.UniqueKey).
		WithSnapshotDate(testutil.Date("2024-02-10")).WithVersion(2).Value()

	err := repo.InsertPositions(ctx, []model.Position{second})
	require.Error(t, err)

	second.IsLatest = false
	require.NoError(t, repo.InsertPositions(ctx, []model.Position{second}))
	require.NoError(t, repo.ClearLatest(ctx, "EDR", first.UniqueKey))
	require.NoError(t, repo.SetVersion(ctx, second.ID, 2, true))
	assert.Equal(t, 1, testutil.CountLatest(t, db, "EDR", first.UniqueKey))

	other := testutil.NewPosition().WithBank("CFM").WithUniqueKey(first.UniqueKey).Value()
	require.NoError(t, repo.InsertPositions(ctx, []model.Position{other}))
}

func TestPositionRepository_FindPositions(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	repo := repository.NewPositionRepository(db)

	isin := testutil.MakeISIN("FR")
	old := testutil.NewPosition().WithISIN(isin).WithSnapshotDate(testutil.Date("2024-01-10")).NotLatest().Build(t, db)
	latest := testutil.NewPosition().WithISIN(isin).WithSnapshotDate(testutil.Date("2024-02-10")).WithVersion(2).Build(t, db)
	testutil.NewPosition().WithPortfolio("P002").Build(t, db)

	t.Run("newest snapshot first", func(t *testing.T) {
		got, err := repo.FindPositions(ctx, model.PositionFilter{ISIN: isin})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, latest.ID, got[0].ID)
		assert.Equal(t, old.ID, got[1].ID)
		assert.Equal(t, testutil.Date("2024-02-10"), got[0].SnapshotDate)
	})

	t.Run("latest only", func(t *testing.T) {
		got, err := repo.FindPositions(ctx, model.PositionFilter{LatestOnly: true})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("portfolio and limit", func(t *testing.T) {
		got, err := repo.FindPositions(ctx, model.PositionFilter{PortfolioCode: "P001", Limit: 1})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, latest.ID, got[0].ID)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := repo.GetPosition(ctx, "missing")
		assert.ErrorIs(t, err, apperrors.ErrPositionNotFound)
	})
}

// TestPositionRepository_Sealing tests raw payload encryption.
//
// WHY: Raw statement rows must be unreadable in the database file when a key
// is configured, and unsealed rows written before must stay readable.
func TestPositionRepository_Sealing(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)

	key, err := sealing.GenerateKey()
	require.NoError(t, err)
	sealer, err := sealing.NewFernet(key)
	require.NoError(t, err)

	plain := repository.NewPositionRepository(db)
	sealed := plain.WithSealer(sealer)

	raw := map[string]string{"Compte": "123456789"}
	legacy := testutil.NewPosition().WithRawPayload(raw).Build(t, db)
	p := testutil.NewPosition().WithRawPayload(raw).Value()
	require.NoError(t, sealed.InsertPositions(ctx, []model.Position{p}))

	var stored string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT raw_payload FROM positions WHERE id = ?`, p.ID).Scan(&stored))
	assert.NotContains(t, stored, "123456789")

	got, err := sealed.GetPosition(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, raw, got.RawPayload)

	got, err = sealed.GetPosition(ctx, legacy.ID)
	require.NoError(t, err)
	assert.Equal(t, raw, got.RawPayload)

	got, err = plain.GetPosition(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got.RawPayload)
}

func TestPositionRepository_GroupLatestByIdentity(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	repo := repository.NewPositionRepository(db)

	isin := testutil.MakeISIN("LU")
	a := testutil.NewPosition().WithUser("alice").WithISIN(isin).WithUniqueKey("a").Build(t, db)
	b := testutil.NewPosition().WithUser("alice").WithISIN(isin).WithUniqueKey("b").Build(t, db)
	testutil.NewPosition().WithUser("bob").WithISIN(isin).WithUniqueKey("c").Build(t, db)

	groups, err := repo.GroupLatestByIdentity(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "EDR/alice", groups[0].Owner)
	assert.Equal(t, 2, groups[0].Count)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, groups[0].PositionIDs)
}

func TestPositionRepository_Rekey(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	repo := repository.NewPositionRepository(db)

	testutil.NewPosition().WithUniqueKey("old").NotLatest().Build(t, db)
	testutil.NewPosition().WithUniqueKey("old").WithSnapshotDate(testutil.Date("2024-02-10")).Build(t, db)
	testutil.NewPosition().WithBank("CFM").WithUniqueKey("old").Build(t, db)

	n, err := repo.Rekey(ctx, "EDR", "old", "new")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	versions, err := repo.GetVersions(ctx, "CFM", "old")
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

// TestOperationRepository_InsertOperations tests content-hash deduplication.
//
// WHY: Overlapping operation exports are common; the same movement must be
// stored once no matter how many files contain it.
func TestOperationRepository_InsertOperations(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	repo := repository.NewOperationRepository(db)

	op := testutil.NewOperation().WithAmount(-1500).WithType(model.OperationTypeBuy).Value()
	again := op
	again.ID = testutil.MakeID()
	again.SourceFile = "mvt_ABC123_20240210.csv"

	inserted, dupes, err := repo.InsertOperations(ctx, []model.Operation{op, again})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.Equal(t, 1, dupes)

	got, err := repo.FindOperations(ctx, model.OperationFilter{OperationType: model.OperationTypeBuy})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.DirectionDebit, got[0].Direction)
}

func TestIngestionRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	repo := repository.NewIngestionRepository(db)

	run := model.IngestionSummary{
		ID:        testutil.MakeID(),
		FileName:  "portef_ABC123_20240110.csv",
		Parser:    "edr",
		Kind:      model.FileKindPositions,
		BankID:    "EDR",
		Status:    model.IngestionStatusSucceeded,
		StartedAt: testutil.Date("2024-01-10"),
	}
	require.NoError(t, repo.InsertRun(ctx, run))

	ok, err := repo.HasSucceeded(ctx, run.FileName)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.HasSucceeded(ctx, "other.csv")
	require.NoError(t, err)
	assert.False(t, ok)

	runs, err := repo.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.FileName, runs[0].FileName)
	assert.Empty(t, runs[0].SameDateDuplicates)
}
