package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/custody-ingest/internal/apperrors"
	"github.com/ndewijer/custody-ingest/internal/dedup"
	"github.com/ndewijer/custody-ingest/internal/model"
	"github.com/ndewijer/custody-ingest/internal/testutil"
)

// TestMaintenanceService_RunDedup tests mode selection and the maintenance lock.
//
// WHY: Operators trigger deduplication from the API with an optional mode
// override; a run that cannot get the store must fail fast instead of queueing
// behind ingestion.
func TestMaintenanceService_RunDedup(t *testing.T) {
	ctx := context.Background()
	const isin = "FR0000120271"

	t.Run("configured mode deletes duplicates", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestMaintenanceService(t, db, nil, nil)
		testutil.NewPosition().WithISIN(isin).WithUniqueKey("EDR|P001|FR0000120271|a").
			WithSnapshotDate(testutil.Date("2024-01-10")).Build(t, db)
		testutil.NewPosition().WithISIN(isin).WithUniqueKey("EDR|P001|FR0000120271|b").
			WithSnapshotDate(testutil.Date("2024-02-10")).Build(t, db)

		summary, err := svc.RunDedup(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, dedup.ModeDelete, summary.Mode)
		assert.Equal(t, 1, summary.RecordsDeleted)

		runs, err := svc.ListDedupRuns(ctx, 10)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, summary.ID, runs[0].ID)
	})

	t.Run("mode override flags instead", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestMaintenanceService(t, db, nil, nil)
		testutil.NewPosition().WithISIN(isin).WithUniqueKey("EDR|P001|FR0000120271|a").
			WithSnapshotDate(testutil.Date("2024-01-10")).Build(t, db)
		testutil.NewPosition().WithISIN(isin).WithUniqueKey("EDR|P001|FR0000120271|b").
			WithSnapshotDate(testutil.Date("2024-02-10")).Build(t, db)

		summary, err := svc.RunDedup(ctx, "FLAG")
		require.NoError(t, err)
		assert.Equal(t, dedup.ModeFlag, summary.Mode)
		assert.Equal(t, 0, summary.RecordsDeleted)
		assert.Equal(t, 2, testutil.CountRows(t, db, "positions"))
	})

	t.Run("unknown mode is refused", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestMaintenanceService(t, db, nil, nil)

		_, err := svc.RunDedup(ctx, "purge")
		assert.Error(t, err)
	})

	t.Run("busy store", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		maint := &sync.RWMutex{}
		svc := testutil.NewTestMaintenanceService(t, db, maint, nil)

		maint.RLock()
		defer maint.RUnlock()
		_, err := svc.RunDedup(ctx, "")
		assert.ErrorIs(t, err, apperrors.ErrMaintenanceInProgress)
	})
}

func TestMaintenanceService_Classification(t *testing.T) {
	ctx := context.Background()
	const equityISIN = "FR0000121014"

	t.Run("not wired", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestMaintenanceService(t, db, nil, nil)

		_, err := svc.ClassifyUnknown(ctx)
		assert.ErrorIs(t, err, apperrors.ErrEnrichmentDisabled)
		_, err = svc.Reclassify(ctx, []string{equityISIN})
		assert.ErrorIs(t, err, apperrors.ErrEnrichmentDisabled)
	})

	t.Run("classify unknown holdings", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		client := testutil.NewMockOpenFIGIClient().
			WithInstrument(equityISIN, "MC", "FP", "Equity", "Common Stock")
		svc := testutil.NewTestMaintenanceService(t, db, nil, client)
		testutil.NewPosition().WithISIN(equityISIN).WithType(model.SecurityTypeUnknown).Build(t, db)

		summary, err := svc.ClassifyUnknown(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Classified)

		list, err := svc.ListClassifications(ctx, "classified")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, equityISIN, list[0].ISIN)
		assert.Equal(t, model.SecurityTypeEquity, list[0].SecurityType)
	})

	t.Run("reclassify cleans its input", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		client := testutil.NewMockOpenFIGIClient().
			WithInstrument(equityISIN, "MC", "FP", "Equity", "Common Stock")
		svc := testutil.NewTestMaintenanceService(t, db, nil, client)

		summary, err := svc.Reclassify(ctx, []string{" fr0000121014", equityISIN, ""})
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Requested)
		assert.Equal(t, []string{equityISIN}, client.Requested)
	})

	t.Run("reclassify needs an isin", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestMaintenanceService(t, db, nil, testutil.NewMockOpenFIGIClient())

		_, err := svc.Reclassify(ctx, []string{" ", ""})
		assert.ErrorIs(t, err, apperrors.ErrMissingRequiredField)
	})
}
