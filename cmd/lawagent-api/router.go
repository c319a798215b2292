// Package main provides the API router setup.
package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sandjman56/LAWAgent-test/cmd/lawagent-api/handlers"
	"github.com/sandjman56/LAWAgent-test/cmd/lawagent-api/middleware"
	"github.com/sandjman56/LAWAgent-test/internal/config"
	"github.com/sandjman56/LAWAgent-test/internal/jobs"
	"github.com/sandjman56/LAWAgent-test/internal/observability"
	"github.com/sandjman56/LAWAgent-test/internal/storage"
)

// NewRouter creates the API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg *config.Config, store *storage.Store, files *storage.FileStore, queue jobs.Queue) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.Use(chimiddleware.Timeout(cfg.Server.WriteTimeout))

	// Health checks (unauthenticated)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"lawagent"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := store.DB().PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Write([]byte(`{"status":"ready"}`))
	})

	limits := handlers.UploadLimits{
		MaxBytes: cfg.MaxUploadBytes(),
		MaxMB:    cfg.Storage.MaxUploadMB,
		MaxPages: cfg.Storage.MaxPages,
	}
	uploadHandler := handlers.NewUploadHandler(store, files, queue, limits, logger)
	analysisHandler := handlers.NewAnalysisHandler(store, queue, logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(middleware.AuthConfig{Token: cfg.Server.AuthToken}))

		r.Route("/uploads", func(r chi.Router) {
			r.Post("/", uploadHandler.Create)
			r.Get("/", uploadHandler.List)
			r.Get("/{uploadID}/status", uploadHandler.Status)
			r.Get("/{uploadID}/download", uploadHandler.Download)
			r.Get("/{uploadID}/text", uploadHandler.Text)
			r.Delete("/{uploadID}", uploadHandler.Delete)
		})

		r.Route("/analyze", func(r chi.Router) {
			r.Post("/{uploadID}", analysisHandler.Start)
			r.Get("/{analysisID}/status", analysisHandler.Status)
			r.Get("/{analysisID}/result", analysisHandler.Result)
		})
	})

	return r
}
