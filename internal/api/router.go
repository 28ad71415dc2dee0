package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ndewijer/custody-ingest/internal/api/handlers"
	custommiddleware "github.com/ndewijer/custody-ingest/internal/api/middleware"
	"github.com/ndewijer/custody-ingest/internal/config"
	"github.com/ndewijer/custody-ingest/internal/service"
)

// Services bundles what the router serves.
type Services struct {
	System      *service.SystemService
	Ingestion   *service.IngestionService
	Positions   *service.PositionService
	Operations  *service.OperationService
	Maintenance *service.MaintenanceService
}

// NewRouter creates and configures the HTTP router
func NewRouter(svc Services, cfg *config.Config, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger(log))
	r.Use(middleware.Recoverer)

	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	requireKey := custommiddleware.APIKey(cfg.Security.APIKey)

	r.Route("/api", func(r chi.Router) {
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(svc.System)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
			r.Get("/stats", systemHandler.Stats)
		})

		r.Route("/ingest", func(r chi.Router) {
			inbox := service.Inbox{
				Dir:       cfg.Ingest.InboxDir,
				FailedDir: cfg.Ingest.FailedDir,
				UserID:    cfg.Ingest.UserID,
			}
			ingestionHandler := handlers.NewIngestionHandler(svc.Ingestion, inbox, cfg.Ingest.MaxUploadBytes)
			r.Get("/runs", ingestionHandler.Runs)
			r.Get("/parsers", ingestionHandler.Parsers)
			r.Post("/preview", ingestionHandler.Preview)

			r.Group(func(r chi.Router) {
				r.Use(requireKey)
				r.Post("/", ingestionHandler.Ingest)
				r.Post("/inbox/scan", ingestionHandler.ScanInbox)
			})
		})

		r.Route("/positions", func(r chi.Router) {
			positionHandler := handlers.NewPositionHandler(svc.Positions)
			r.Get("/", positionHandler.Latest)
			r.Get("/history", positionHandler.History)
			r.Route("/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", positionHandler.Position)
			})
		})

		r.Route("/operations", func(r chi.Router) {
			operationHandler := handlers.NewOperationHandler(svc.Operations)
			r.Get("/", operationHandler.Operations)
		})

		r.Route("/maintenance", func(r chi.Router) {
			maintenanceHandler := handlers.NewMaintenanceHandler(svc.Maintenance)
			r.Get("/dedup/runs", maintenanceHandler.DedupRuns)
			r.Get("/classifications", maintenanceHandler.Classifications)

			r.Group(func(r chi.Router) {
				r.Use(requireKey)
				r.Post("/dedup", maintenanceHandler.Dedup)
				r.Post("/classify", maintenanceHandler.Classify)
				r.Post("/reclassify", maintenanceHandler.Reclassify)
			})
		})

		r.Get("/ticker/normalize", handlers.NormalizeTicker)
	})

	return r
}
