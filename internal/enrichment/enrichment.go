// Package enrichment classifies securities the bank statements left as
// UNKNOWN by looking their ISIN up in OpenFIGI. Lookups run in batches with
// a pause between batches; results are cached in memory and persisted, and
// failures are stored as UNCLASSIFIED so they are not retried automatically.
package enrichment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/ndewijer/custody-ingest/internal/apperrors"
	"github.com/ndewijer/custody-ingest/internal/model"
	"github.com/ndewijer/custody-ingest/internal/openfigi"
	"github.com/ndewijer/custody-ingest/internal/parsers/canonical"
	"github.com/ndewijer/custody-ingest/internal/repository"
)

// Config holds the batching policy.
type Config struct {
	Enabled    bool
	BatchSize  int
	BatchDelay time.Duration
	CacheTTL   time.Duration
}

// Service runs classification passes.
type Service struct {
	db              *sql.DB
	client          openfigi.Client
	positions       *repository.PositionRepository
	classifications *repository.ClassificationRepository
	maint           *sync.RWMutex
	cache           *cache.Cache
	cfg             Config
	log             zerolog.Logger
	now             func() time.Time
}

// New creates a Service. maint is the store maintenance lock; write-back to
// positions holds it for reading.
func New(
	db *sql.DB,
	client openfigi.Client,
	positions *repository.PositionRepository,
	classifications *repository.ClassificationRepository,
	maint *sync.RWMutex,
	cfg Config,
	log zerolog.Logger,
) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	return &Service{
		db:              db,
		client:          client,
		positions:       positions,
		classifications: classifications,
		maint:           maint,
		cache:           cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		cfg:             cfg,
		log:             log.With().Str("component", "enrichment").Logger(),
		now:             time.Now,
	}
}

// Enabled reports whether lookups are switched on.
func (s *Service) Enabled() bool {
	return s.cfg.Enabled
}

// ClassifyUnknown classifies every ISIN held by a latest UNKNOWN position.
// ISINs already stored as UNCLASSIFIED are skipped; already CLASSIFIED ones
// are written back without a lookup.
func (s *Service) ClassifyUnknown(ctx context.Context) (model.ClassificationSummary, error) {
	if !s.cfg.Enabled {
		return model.ClassificationSummary{}, apperrors.ErrEnrichmentDisabled
	}
	isins, err := s.positions.DistinctISINs(ctx, model.SecurityTypeUnknown)
	if err != nil {
		return model.ClassificationSummary{}, err
	}
	return s.classify(ctx, isins, false)
}

// Reclassify looks the given ISINs up again regardless of what is stored.
func (s *Service) Reclassify(ctx context.Context, isins []string) (model.ClassificationSummary, error) {
	if !s.cfg.Enabled {
		return model.ClassificationSummary{}, apperrors.ErrEnrichmentDisabled
	}
	for _, isin := range isins {
		s.cache.Delete(isin)
	}
	return s.classify(ctx, isins, true)
}

// Lookup returns the cached classification of isin without calling OpenFIGI.
func (s *Service) Lookup(ctx context.Context, isin string) (model.SecurityClassification, error) {
	if c, ok := s.cache.Get(isin); ok {
		return c.(model.SecurityClassification), nil
	}
	c, err := s.classifications.Get(ctx, isin)
	if err != nil {
		return model.SecurityClassification{}, err
	}
	s.cache.SetDefault(isin, c)
	return c, nil
}

func (s *Service) classify(ctx context.Context, isins []string, force bool) (model.ClassificationSummary, error) {
	began := s.now()
	summary := model.ClassificationSummary{Requested: len(isins)}

	var pending []string
	for _, isin := range isins {
		if force {
			pending = append(pending, isin)
			continue
		}
		known, ok, err := s.known(ctx, isin, &summary)
		if err != nil {
			return summary, err
		}
		if !ok {
			pending = append(pending, isin)
			continue
		}
		if known.Status == model.ClassificationClassified {
			if err := s.apply(ctx, known, &summary); err != nil {
				return summary, err
			}
		}
	}

	for start := 0; start < len(pending); start += s.cfg.BatchSize {
		if start > 0 && s.cfg.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(s.cfg.BatchDelay):
			}
		}
		end := min(start+s.cfg.BatchSize, len(pending))
		if err := s.runBatch(ctx, pending[start:end], &summary); err != nil {
			return summary, err
		}
		summary.Batches++
		s.log.Info().
			Int("batch", summary.Batches).
			Int("done", end).
			Int("total", len(pending)).
			Msg("classification batch finished")
	}

	summary.Duration = s.now().Sub(began)
	s.log.Info().
		Int("requested", summary.Requested).
		Int("classified", summary.Classified).
		Int("unclassified", summary.Unclassified).
		Int("cache_hits", summary.CacheHits).
		Int("positions_updated", summary.PositionsUpdate).
		Dur("duration", summary.Duration).
		Msg("classification pass finished")
	return summary, nil
}

// known returns a previously stored classification from memory or the store.
func (s *Service) known(ctx context.Context, isin string, summary *model.ClassificationSummary) (model.SecurityClassification, bool, error) {
	if c, ok := s.cache.Get(isin); ok {
		summary.CacheHits++
		return c.(model.SecurityClassification), true, nil
	}
	c, err := s.classifications.Get(ctx, isin)
	if errors.Is(err, apperrors.ErrClassificationNotFound) {
		return model.SecurityClassification{}, false, nil
	}
	if err != nil {
		return model.SecurityClassification{}, false, err
	}
	s.cache.SetDefault(isin, c)
	return c, true, nil
}

// runBatch looks up one batch. A failed lookup marks the whole batch
// UNCLASSIFIED; only a cancelled context aborts the pass.
func (s *Service) runBatch(ctx context.Context, isins []string, summary *model.ClassificationSummary) error {
	results, err := s.client.MapISINs(ctx, isins)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warn().Err(err).Strs("isins", isins).Msg("OpenFIGI lookup failed, storing as unclassified")
		for _, isin := range isins {
			if err := s.store(ctx, Failed(isin, err, s.now()), summary); err != nil {
				return err
			}
		}
		return nil
	}

	for _, isin := range isins {
		c := FromMapping(isin, results[isin], s.now())
		if err := s.store(ctx, c, summary); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) store(ctx context.Context, c model.SecurityClassification, summary *model.ClassificationSummary) error {
	if err := s.classifications.Upsert(ctx, c); err != nil {
		return err
	}
	s.cache.SetDefault(c.ISIN, c)

	if c.Status != model.ClassificationClassified {
		summary.Unclassified++
		return nil
	}
	summary.Classified++
	return s.apply(ctx, c, summary)
}

// apply writes a classified type back to the UNKNOWN positions of the ISIN.
// Types quoted in percent change the price scale, so those records are
// re-derived one by one; other types are a bulk update.
func (s *Service) apply(ctx context.Context, c model.SecurityClassification, summary *model.ClassificationSummary) error {
	s.maint.RLock()
	defer s.maint.RUnlock()

	t := c.SecurityType
	if !t.QuotedAsPercentage() {
		n, err := s.positions.UpdateSecurityType(ctx, c.ISIN, model.SecurityTypeUnknown, t, canonical.PriceTypeFor(t))
		if err != nil {
			return err
		}
		summary.PositionsUpdate += n
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	repo := s.positions.WithTx(tx)
	unknown, err := repo.FindPositions(ctx, model.PositionFilter{ISIN: c.ISIN, SecurityType: model.SecurityTypeUnknown})
	if err != nil {
		return err
	}
	for i := range unknown {
		p := unknown[i]
		canonical.Reclassify(&p, t)
		if err := repo.UpdateClassification(ctx, p); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	summary.PositionsUpdate += len(unknown)
	return nil
}
