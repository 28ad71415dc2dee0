package service

import (
	"context"
	"database/sql"

	"github.com/ndewijer/custody-ingest/internal/database"
	"github.com/ndewijer/custody-ingest/internal/repository"
	"github.com/ndewijer/custody-ingest/internal/version"
)

// StoreStats summarises what the canonical store holds.
type StoreStats struct {
	SchemaVersion   int64 `json:"schemaVersion"`
	Positions       int   `json:"positions"`
	LatestPositions int   `json:"latestPositions"`
	Operations      int   `json:"operations"`
}

// SystemService handles system-related operations
type SystemService struct {
	db         *sql.DB
	positions  *repository.PositionRepository
	operations *repository.OperationRepository
}

// NewSystemService creates a new SystemService
func NewSystemService(db *sql.DB, positions *repository.PositionRepository, operations *repository.OperationRepository) *SystemService {
	return &SystemService{
		db:         db,
		positions:  positions,
		operations: operations,
	}
}

// CheckHealth checks the health of the system
func (s *SystemService) CheckHealth(ctx context.Context) error {
	return database.HealthCheck(ctx, s.db)
}

func (s *SystemService) CheckVersion() string {
	return version.Version
}

// Stats counts stored records.
func (s *SystemService) Stats(ctx context.Context) (StoreStats, error) {
	var st StoreStats
	var err error
	if st.SchemaVersion, err = database.SchemaVersion(ctx, s.db); err != nil {
		return st, err
	}
	if st.Positions, st.LatestPositions, err = s.positions.CountPositions(ctx); err != nil {
		return st, err
	}
	if st.Operations, err = s.operations.CountOperations(ctx); err != nil {
		return st, err
	}
	return st, nil
}
