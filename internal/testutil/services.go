package testutil

import (
	"database/sql"
	"sync"
	"testing"

	"github.com/ndewijer/custody-ingest/internal/archive"
	"github.com/ndewijer/custody-ingest/internal/dedup"
	"github.com/ndewijer/custody-ingest/internal/enrichment"
	"github.com/ndewijer/custody-ingest/internal/logging"
	"github.com/ndewijer/custody-ingest/internal/parsers/banks"
	"github.com/ndewijer/custody-ingest/internal/reconcile"
	"github.com/ndewijer/custody-ingest/internal/repository"
	"github.com/ndewijer/custody-ingest/internal/service"
)

// NewTestIngestionService creates an IngestionService over every bank parser
// for testing. A nil maint gets a fresh lock; a nil archiver disables archival.
func NewTestIngestionService(t *testing.T, db *sql.DB, maint *sync.RWMutex, archiver archive.Archiver) *service.IngestionService {
	t.Helper()
	if maint == nil {
		maint = &sync.RWMutex{}
	}
	positions := repository.NewPositionRepository(db)
	return service.NewIngestionService(
		db,
		banks.Registry(),
		positions,
		repository.NewOperationRepository(db),
		repository.NewIngestionRepository(db),
		reconcile.New(positions, logging.Nop()),
		archiver,
		maint,
		2,
		logging.Nop(),
	)
}

// NewTestMaintenanceService creates a MaintenanceService in delete mode with
// enrichment enabled against client. A nil client leaves enrichment unwired.
func NewTestMaintenanceService(t *testing.T, db *sql.DB, maint *sync.RWMutex, client *MockOpenFIGIClient) *service.MaintenanceService {
	t.Helper()
	if maint == nil {
		maint = &sync.RWMutex{}
	}
	positions := repository.NewPositionRepository(db)
	dedupRuns := repository.NewDedupRunRepository(db)
	classifications := repository.NewClassificationRepository(db)

	var enricher *enrichment.Service
	if client != nil {
		enricher = enrichment.New(db, client, positions, classifications, maint, enrichment.Config{Enabled: true}, logging.Nop())
	}
	return service.NewMaintenanceService(
		dedup.New(db, positions, dedupRuns, maint, dedup.ModeDelete, logging.Nop()),
		dedupRuns,
		enricher,
		classifications,
	)
}

// NewTestPositionService creates a PositionService for testing.
func NewTestPositionService(t *testing.T, db *sql.DB) *service.PositionService {
	t.Helper()
	return service.NewPositionService(repository.NewPositionRepository(db))
}

// NewTestOperationService creates an OperationService for testing.
func NewTestOperationService(t *testing.T, db *sql.DB) *service.OperationService {
	t.Helper()
	return service.NewOperationService(repository.NewOperationRepository(db))
}

// NewTestSystemService creates a SystemService for testing.
func NewTestSystemService(t *testing.T, db *sql.DB) *service.SystemService {
	t.Helper()
	return service.NewSystemService(db, repository.NewPositionRepository(db), repository.NewOperationRepository(db))
}
