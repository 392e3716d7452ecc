// Copyright (c) 2025, the driftsync contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/driftsync/driftsync/internal/auth"
)

type AuthHandler struct {
	authService *auth.Service
	apiKeys     *auth.APIKeyStore
}

func NewAuthHandler(authService *auth.Service, apiKeys *auth.APIKeyStore) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		apiKeys:     apiKeys,
	}
}

type LoginRequest struct {
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.authService.Login(r.Context(), req.Password); err != nil {
		switch {
		case errors.Is(err, auth.ErrSetupIncomplete):
			RespondError(w, http.StatusPreconditionRequired, "Admin password not set. Run 'driftsync set-password' first.")
		case errors.Is(err, auth.ErrInvalidCredentials):
			log.Warn().Str("remote_addr", r.RemoteAddr).Msg("Failed login attempt")
			RespondError(w, http.StatusUnauthorized, "Invalid credentials")
		default:
			log.Error().Err(err).Msg("Login failed")
			RespondError(w, http.StatusInternalServerError, "Login failed")
		}
		return
	}

	if err := h.authService.CreateSession(w, r); err != nil {
		log.Error().Err(err).Msg("Failed to create session")
		RespondError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.DestroySession(w, r); err != nil {
		log.Error().Err(err).Msg("Failed to destroy session")
		RespondError(w, http.StatusInternalServerError, "Failed to log out")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type CreateAPIKeyRequest struct {
	Name string `json:"name"`
}

type CreateAPIKeyResponse struct {
	Key    *auth.APIKey `json:"key"`
	RawKey string       `json:"rawKey"`
}

func (h *AuthHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.apiKeys.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list API keys")
		RespondError(w, http.StatusInternalServerError, "Failed to list API keys")
		return
	}

	if keys == nil {
		keys = []*auth.APIKey{}
	}
	RespondJSON(w, http.StatusOK, keys)
}

func (h *AuthHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req CreateAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		RespondError(w, http.StatusBadRequest, "Name is required")
		return
	}

	key, rawKey, err := h.apiKeys.Create(r.Context(), req.Name)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create API key")
		RespondError(w, http.StatusInternalServerError, "Failed to create API key")
		return
	}

	log.Info().Str("name", key.Name).Msg("API key created")

	// The raw key is returned once and never stored.
	RespondJSON(w, http.StatusCreated, CreateAPIKeyResponse{
		Key:    key,
		RawKey: rawKey,
	})
}

func (h *AuthHandler) DeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid API key ID")
		return
	}

	if err := h.apiKeys.Delete(r.Context(), id); err != nil {
		if errors.Is(err, auth.ErrAPIKeyNotFound) {
			RespondError(w, http.StatusNotFound, "API key not found")
			return
		}
		log.Error().Err(err).Msg("Failed to delete API key")
		RespondError(w, http.StatusInternalServerError, "Failed to delete API key")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
