package service

import (
	"context"
	"fmt"

	"github.com/ndewijer/custody-ingest/internal/apperrors"
	"github.com/ndewijer/custody-ingest/internal/model"
	"github.com/ndewijer/custody-ingest/internal/repository"
)

// PositionService handles read access to canonical positions.
type PositionService struct {
	positions *repository.PositionRepository
}

// NewPositionService creates a new PositionService with the provided repository dependencies.
func NewPositionService(positions *repository.PositionRepository) *PositionService {
	return &PositionService{positions: positions}
}

// ListLatest returns the current record of every holding matching filter.
func (s *PositionService) ListLatest(ctx context.Context, filter model.PositionFilter) ([]model.Position, error) {
	filter.LatestOnly = true
	return s.positions.FindPositions(ctx, filter)
}

// History returns every version of one holding, newest first.
func (s *PositionService) History(ctx context.Context, bankID, uniqueKey string) ([]model.Position, error) {
	if bankID == "" || uniqueKey == "" {
		return nil, fmt.Errorf("%w: bank and unique key", apperrors.ErrMissingRequiredField)
	}
	return s.positions.FindPositions(ctx, model.PositionFilter{BankID: bankID, UniqueKey: uniqueKey})
}

// GetPosition retrieves one record by ID.
func (s *PositionService) GetPosition(ctx context.Context, id string) (model.Position, error) {
	return s.positions.GetPosition(ctx, id)
}

// OperationService handles read access to canonical operations.
type OperationService struct {
	operations *repository.OperationRepository
}

// NewOperationService creates a new OperationService.
func NewOperationService(operations *repository.OperationRepository) *OperationService {
	return &OperationService{operations: operations}
}

// ListOperations returns operations matching filter, most recent first.
func (s *OperationService) ListOperations(ctx context.Context, filter model.OperationFilter) ([]model.Operation, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return nil, fmt.Errorf("%w: from %s is after to %s", apperrors.ErrInvalidDateRange,
			filter.From.Format("2006-01-02"), filter.To.Format("2006-01-02"))
	}
	return s.operations.FindOperations(ctx, filter)
}
