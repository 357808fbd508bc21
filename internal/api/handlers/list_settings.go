// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/quilist/internal/models"
)

// SettingsStore reads the persisted list preferences.
type SettingsStore interface {
	Get(ctx context.Context) (*models.ListSettings, error)
}

type ListSettingsHandler struct {
	store SettingsStore
}

func NewListSettingsHandler(store SettingsStore) *ListSettingsHandler {
	return &ListSettingsHandler{
		store: store,
	}
}

func (h *ListSettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		RespondError(w, http.StatusServiceUnavailable, "List settings are not available")
		return
	}

	settings, err := h.store.Get(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to get list settings")
		RespondError(w, http.StatusInternalServerError, "Failed to load list settings")
		return
	}

	RespondJSON(w, http.StatusOK, settings)
}
