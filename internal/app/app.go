// Package app wires configuration into the running components. The server
// and the command line tool share it so both see the same store.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ndewijer/custody-ingest/internal/api"
	"github.com/ndewijer/custody-ingest/internal/archive"
	"github.com/ndewijer/custody-ingest/internal/config"
	"github.com/ndewijer/custody-ingest/internal/database"
	"github.com/ndewijer/custody-ingest/internal/dedup"
	"github.com/ndewijer/custody-ingest/internal/enrichment"
	"github.com/ndewijer/custody-ingest/internal/openfigi"
	"github.com/ndewijer/custody-ingest/internal/parsers/banks"
	"github.com/ndewijer/custody-ingest/internal/reconcile"
	"github.com/ndewijer/custody-ingest/internal/repository"
	"github.com/ndewijer/custody-ingest/internal/scheduler"
	"github.com/ndewijer/custody-ingest/internal/sealing"
	"github.com/ndewijer/custody-ingest/internal/service"
)

// App holds the opened store and the services built on it.
type App struct {
	DB          *sql.DB
	Config      *config.Config
	Log         zerolog.Logger
	Ingestion   *service.IngestionService
	Positions   *service.PositionService
	Operations  *service.OperationService
	Maintenance *service.MaintenanceService
	System      *service.SystemService
}

// New opens the database, applies migrations and builds every service.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	a, err := build(ctx, db, cfg, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, db *sql.DB, cfg *config.Config, log zerolog.Logger) (*App, error) {
	if err := database.Migrate(ctx, db, log); err != nil {
		return nil, err
	}

	positions := repository.NewPositionRepository(db)
	operations := repository.NewOperationRepository(db)
	if cfg.Security.SealingKeys != "" {
		sealer, err := sealing.NewFernet(cfg.Security.SealingKeys)
		if err != nil {
			return nil, err
		}
		positions = positions.WithSealer(sealer)
		operations = operations.WithSealer(sealer)
	}
	runs := repository.NewIngestionRepository(db)
	dedupRuns := repository.NewDedupRunRepository(db)
	classifications := repository.NewClassificationRepository(db)

	archiver, err := archive.New(ctx, archive.Options{
		Backend: cfg.Archive.Backend,
		Dir:     cfg.Archive.Dir,
		S3: archive.S3Options{
			Bucket:    cfg.Archive.S3Bucket,
			Prefix:    cfg.Archive.S3Prefix,
			Region:    cfg.Archive.S3Region,
			Endpoint:  cfg.Archive.S3Endpoint,
			AccessKey: cfg.Archive.S3AccessKey,
			SecretKey: cfg.Archive.S3SecretKey,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up archive: %w", err)
	}

	// Ingestion and enrichment write-back read-lock it; deduplication takes it exclusively.
	maint := &sync.RWMutex{}

	var enricher *enrichment.Service
	if cfg.Enrichment.Enabled {
		client := openfigi.NewClient(openfigi.Options{
			BaseURL:           cfg.Enrichment.BaseURL,
			APIKey:            cfg.Enrichment.APIKey,
			RequestsPerSecond: cfg.Enrichment.RequestsPerSecond,
			MaxAttempts:       cfg.Enrichment.MaxAttempts,
		}, log)
		enricher = enrichment.New(db, client, positions, classifications, maint, enrichment.Config{
			Enabled:    true,
			BatchSize:  cfg.Enrichment.BatchSize,
			BatchDelay: cfg.Enrichment.BatchDelay,
			CacheTTL:   cfg.Enrichment.CacheTTL,
		}, log)
	}

	return &App{
		DB:     db,
		Config: cfg,
		Log:    log,
		Ingestion: service.NewIngestionService(
			db,
			banks.Registry(),
			positions,
			operations,
			runs,
			reconcile.New(positions, log),
			archiver,
			maint,
			cfg.Ingest.Workers,
			log,
		),
		Positions:  service.NewPositionService(positions),
		Operations: service.NewOperationService(operations),
		Maintenance: service.NewMaintenanceService(
			dedup.New(db, positions, dedupRuns, maint, cfg.Dedup.Mode, log),
			dedupRuns,
			enricher,
			classifications,
		),
		System: service.NewSystemService(db, positions, operations),
	}, nil
}

// Inbox returns the configured drop directory.
func (a *App) Inbox() service.Inbox {
	return service.Inbox{
		Dir:       a.Config.Ingest.InboxDir,
		FailedDir: a.Config.Ingest.FailedDir,
		UserID:    a.Config.Ingest.UserID,
	}
}

// Handler builds the HTTP API.
func (a *App) Handler() http.Handler {
	return api.NewRouter(api.Services{
		System:      a.System,
		Ingestion:   a.Ingestion,
		Positions:   a.Positions,
		Operations:  a.Operations,
		Maintenance: a.Maintenance,
	}, a.Config, a.Log)
}

// Schedule registers the periodic jobs. A job with an empty schedule, or
// whose feature is off, is skipped.
func (a *App) Schedule(s *scheduler.Scheduler) error {
	if a.Config.Ingest.InboxDir != "" {
		inbox := a.Inbox()
		job := scheduler.NewJob("inbox-scan", func(ctx context.Context) error {
			_, err := a.Ingestion.ScanInbox(ctx, inbox)
			return err
		})
		if err := s.AddJob(a.Config.Ingest.Schedule, job); err != nil {
			return err
		}
	}

	dedupJob := scheduler.NewJob("dedup", func(ctx context.Context) error {
		_, err := a.Maintenance.RunDedup(ctx, "")
		return err
	})
	if err := s.AddJob(a.Config.Dedup.Schedule, dedupJob); err != nil {
		return err
	}

	if a.Config.Enrichment.Enabled {
		job := scheduler.NewJob("classify-unknown", func(ctx context.Context) error {
			_, err := a.Maintenance.ClassifyUnknown(ctx)
			return err
		})
		if err := s.AddJob(a.Config.Enrichment.Schedule, job); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.DB.Close()
}
