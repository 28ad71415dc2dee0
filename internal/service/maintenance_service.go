package service

import (
	"context"
	"strings"

	"github.com/ndewijer/custody-ingest/internal/apperrors"
	"github.com/ndewijer/custody-ingest/internal/dedup"
	"github.com/ndewijer/custody-ingest/internal/enrichment"
	"github.com/ndewijer/custody-ingest/internal/model"
	"github.com/ndewijer/custody-ingest/internal/repository"
)

// MaintenanceService exposes the store maintenance jobs: deduplication and
// security classification.
type MaintenanceService struct {
	engine          *dedup.Engine
	dedupRuns       *repository.DedupRunRepository
	enricher        *enrichment.Service
	classifications *repository.ClassificationRepository
}

// NewMaintenanceService creates a new MaintenanceService. enricher may be nil
// when enrichment is not wired.
func NewMaintenanceService(
	engine *dedup.Engine,
	dedupRuns *repository.DedupRunRepository,
	enricher *enrichment.Service,
	classifications *repository.ClassificationRepository,
) *MaintenanceService {
	return &MaintenanceService{
		engine:          engine,
		dedupRuns:       dedupRuns,
		enricher:        enricher,
		classifications: classifications,
	}
}

// RunDedup runs the deduplication engine. An empty mode uses the configured one.
func (s *MaintenanceService) RunDedup(ctx context.Context, mode string) (model.DedupSummary, error) {
	if mode == "" {
		return s.engine.Run(ctx)
	}
	return s.engine.RunMode(ctx, strings.ToLower(mode))
}

// ListDedupRuns returns recent deduplication summaries.
func (s *MaintenanceService) ListDedupRuns(ctx context.Context, limit int) ([]model.DedupSummary, error) {
	return s.dedupRuns.ListRuns(ctx, limit)
}

// ClassifyUnknown classifies every UNKNOWN holding.
func (s *MaintenanceService) ClassifyUnknown(ctx context.Context) (model.ClassificationSummary, error) {
	if s.enricher == nil {
		return model.ClassificationSummary{}, apperrors.ErrEnrichmentDisabled
	}
	return s.enricher.ClassifyUnknown(ctx)
}

// Reclassify forces fresh lookups for isins.
func (s *MaintenanceService) Reclassify(ctx context.Context, isins []string) (model.ClassificationSummary, error) {
	if s.enricher == nil {
		return model.ClassificationSummary{}, apperrors.ErrEnrichmentDisabled
	}
	cleaned := make([]string, 0, len(isins))
	seen := make(map[string]bool, len(isins))
	for _, isin := range isins {
		isin = strings.ToUpper(strings.TrimSpace(isin))
		if isin == "" || seen[isin] {
			continue
		}
		seen[isin] = true
		cleaned = append(cleaned, isin)
	}
	if len(cleaned) == 0 {
		return model.ClassificationSummary{}, apperrors.ErrMissingRequiredField
	}
	return s.enricher.Reclassify(ctx, cleaned)
}

// ListClassifications returns stored classifications, optionally by status.
func (s *MaintenanceService) ListClassifications(ctx context.Context, status string) ([]model.SecurityClassification, error) {
	return s.classifications.List(ctx, strings.ToUpper(status))
}
