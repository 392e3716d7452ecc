// Copyright (c) 2025, the driftsync contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/driftsync/driftsync/internal/sync"
)

type SyncHandler struct {
	syncManager *sync.Manager
}

func NewSyncHandler(syncManager *sync.Manager) *SyncHandler {
	return &SyncHandler{syncManager: syncManager}
}

func (h *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.syncManager.Status())
}

type RunSyncResponse struct {
	FilesCopied int `json:"filesCopied"`
}

func (h *SyncHandler) RunNow(w http.ResponseWriter, r *http.Request) {
	copied, err := h.syncManager.RunOnce(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, sync.ErrNotEntitled):
			RespondError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, sync.ErrNotConfigured):
			RespondError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Msg("Manual sync failed")
			RespondError(w, http.StatusInternalServerError, "Sync failed")
		}
		return
	}

	RespondJSON(w, http.StatusOK, RunSyncResponse{FilesCopied: copied})
}
