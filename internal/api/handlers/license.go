// Copyright (c) 2025, the driftsync contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/driftsync/driftsync/internal/license"
	"github.com/driftsync/driftsync/internal/update"
)

type LicenseHandler struct {
	licenseService *license.Service
	version        string
}

func NewLicenseHandler(licenseService *license.Service, version string) *LicenseHandler {
	return &LicenseHandler{
		licenseService: licenseService,
		version:        version,
	}
}

type ActivateLicenseRequest struct {
	LicenseKey string `json:"licenseKey"`
}

// LicenseStatusResponse is the UI-facing view of the stored license.
// The key is always masked.
type LicenseStatusResponse struct {
	Key             string               `json:"key,omitempty"`
	Status          license.Status       `json:"status"`
	Valid           bool                 `json:"valid"`
	CanReactivate   bool                 `json:"canReactivate"`
	NeedsRenewal    bool                 `json:"needsRenewal"`
	Lifetime        bool                 `json:"lifetime"`
	ExpiresAt       *time.Time           `json:"expiresAt,omitempty"`
	RemainingDays   *int                 `json:"remainingDays,omitempty"`
	InGracePeriod   bool                 `json:"inGracePeriod"`
	GraceDaysLeft   int                  `json:"graceDaysLeft,omitempty"`
	LastCheckedAt   *time.Time           `json:"lastCheckedAt,omitempty"`
	Activations     *license.Activations `json:"activations,omitempty"`
	Product         string               `json:"product,omitempty"`
	Package         string               `json:"package,omitempty"`
	UpdateAvailable bool                 `json:"updateAvailable"`
}

// GetStatus returns the stored license record with its derived fields.
func (h *LicenseHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	rec, err := h.licenseService.CurrentRecord(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load license record")
		RespondError(w, http.StatusInternalServerError, "Failed to load license")
		return
	}

	now := h.licenseService.Now()

	resp := LicenseStatusResponse{
		Key:           license.MaskKey(rec.Key),
		Status:        rec.Status,
		Valid:         rec.IsValid(),
		CanReactivate: rec.Status.CanReactivate(),
		NeedsRenewal:  rec.Status.NeedsRenewal(),
		InGracePeriod: rec.InGracePeriod(now),
		LastCheckedAt: rec.LastCheckedAt,
	}

	if resp.InGracePeriod {
		resp.GraceDaysLeft = rec.GraceDaysRemaining(now)
	}

	if rec.Data != nil {
		resp.ExpiresAt = rec.Data.ExpiresAt
		resp.Activations = &rec.Data.Activations
		resp.Product = rec.Data.Product
		resp.Package = rec.Data.Package
		resp.UpdateAvailable = update.Available(h.version, rec.Data.LatestVersion)

		if days, ok := rec.RemainingDays(now); ok {
			resp.RemainingDays = &days
		} else {
			resp.Lifetime = true
		}
	}

	RespondJSON(w, http.StatusOK, resp)
}

// Activate submits a license key to the portal and stores the verdict.
func (h *LicenseHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req ActivateLicenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.licenseService.Activate(r.Context(), req.LicenseKey)
	if err != nil {
		if errors.Is(err, license.ErrEmptyKey) {
			RespondError(w, http.StatusBadRequest, "License key is required")
			return
		}
		log.Error().Err(err).Msg("Failed to activate license")
		RespondError(w, http.StatusInternalServerError, "Failed to activate license")
		return
	}

	log.Info().
		Str("licenseKey", license.MaskKey(req.LicenseKey)).
		Str("status", string(result.Status)).
		Bool("success", result.Success).
		Msg("License activation attempted")

	respondResult(w, result)
}

// Check runs an on-demand reconciliation against the portal.
func (h *LicenseHandler) Check(w http.ResponseWriter, r *http.Request) {
	result, err := h.licenseService.Check(r.Context(), "")
	if err != nil {
		log.Error().Err(err).Msg("Failed to check license")
		RespondError(w, http.StatusInternalServerError, "Failed to check license")
		return
	}

	respondResult(w, result)
}

// Deactivate releases the activation slot and clears local state.
func (h *LicenseHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	result, err := h.licenseService.Deactivate(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to deactivate license")
		RespondError(w, http.StatusInternalServerError, "Failed to deactivate license")
		return
	}

	log.Info().Msg("License deactivated")
	RespondJSON(w, http.StatusOK, result)
}

// respondResult maps a reconciliation result onto an HTTP status:
// portal rejections become 422, unreachable portals 503.
func respondResult(w http.ResponseWriter, result *license.Result) {
	switch {
	case result.Success:
		RespondJSON(w, http.StatusOK, result)
	case result.IsNetworkError:
		RespondJSON(w, http.StatusServiceUnavailable, result)
	default:
		RespondJSON(w, http.StatusUnprocessableEntity, result)
	}
}
