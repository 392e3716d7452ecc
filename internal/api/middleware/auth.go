// Copyright (c) 2025, the driftsync contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/driftsync/driftsync/internal/auth"
)

// IsAuthenticated accepts either an API key or an authenticated
// session cookie.
func IsAuthenticated(authService *auth.Service, apiKeys *auth.APIKeyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
				valid, err := apiKeys.Validate(r.Context(), apiKey)
				if err != nil {
					log.Error().Err(err).Msg("Failed to validate API key")
					http.Error(w, "Internal server error", http.StatusInternalServerError)
					return
				}
				if !valid {
					log.Warn().Str("remote_addr", r.RemoteAddr).Msg("Invalid API key")
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}

				next.ServeHTTP(w, r)
				return
			}

			if !authService.IsAuthenticated(r) {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireSetup rejects API requests until the admin password has been
// set. The login and health endpoints stay reachable so the UI can
// explain what to do.
func RequireSetup(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			complete, err := authService.IsSetupComplete(r.Context())
			if err != nil {
				log.Error().Err(err).Msg("Failed to check setup status")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			if !complete {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusPreconditionRequired)
				w.Write([]byte(`{"error":"Admin password not set. Run 'driftsync set-password' first.","setup_required":true}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
