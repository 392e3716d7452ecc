// Copyright (c) 2025, the driftsync contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/driftsync/driftsync/internal/api/handlers"
	apimiddleware "github.com/driftsync/driftsync/internal/api/middleware"
	"github.com/driftsync/driftsync/internal/auth"
	"github.com/driftsync/driftsync/internal/config"
	"github.com/driftsync/driftsync/internal/license"
	"github.com/driftsync/driftsync/internal/metrics"
	"github.com/driftsync/driftsync/internal/sync"
	"github.com/driftsync/driftsync/internal/web/swagger"
)

// Dependencies holds everything the API router needs
type Dependencies struct {
	Config         *config.AppConfig
	AuthService    *auth.Service
	APIKeyStore    *auth.APIKeyStore
	LicenseService *license.Service
	SyncManager    *sync.Manager
	MetricsManager *metrics.Manager
	Version        string
}

// NewRouter creates and configures the main application router
func NewRouter(deps *Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(apimiddleware.HTTPLogger)

	authHandler := handlers.NewAuthHandler(deps.AuthService, deps.APIKeyStore)
	licenseHandler := handlers.NewLicenseHandler(deps.LicenseService, deps.Version)
	syncHandler := handlers.NewSyncHandler(deps.SyncManager)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(apimiddleware.RequireSetup(deps.AuthService))
			r.Use(apimiddleware.IsAuthenticated(deps.AuthService, deps.APIKeyStore))

			r.Route("/license", func(r chi.Router) {
				r.Get("/", licenseHandler.GetStatus)
				r.Post("/activate", licenseHandler.Activate)
				r.Post("/check", licenseHandler.Check)
				r.Post("/deactivate", licenseHandler.Deactivate)
			})

			r.Route("/sync", func(r chi.Router) {
				r.Get("/", syncHandler.GetStatus)
				r.Post("/run", syncHandler.RunNow)
			})

			r.Route("/api-keys", func(r chi.Router) {
				r.Get("/", authHandler.ListAPIKeys)
				r.Post("/", authHandler.CreateAPIKey)
				r.Delete("/{id}", authHandler.DeleteAPIKey)
			})
		})
	})

	if deps.MetricsManager != nil {
		metricsHandler := handlers.NewMetricsHandler(deps.MetricsManager)
		r.Get("/metrics", metricsHandler.ServeMetrics)
	}

	if swaggerHandler, err := swagger.NewHandler(deps.Config.Config.BaseURL); err == nil && swaggerHandler != nil {
		swaggerHandler.RegisterRoutes(r)
	}

	return r
}
