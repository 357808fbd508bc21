// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"
	"time"
)

// ClientStatus reports the state of the qBittorrent connection.
type ClientStatus interface {
	IsHealthy() bool
	GetLastHealthCheck() time.Time
	GetWebAPIVersion() string
	UsesStopCommand() bool
}

type HealthHandler struct {
	version string
	client  ClientStatus
}

type HealthResponse struct {
	Status        string     `json:"status"`
	Version       string     `json:"version"`
	Qbittorrent   bool       `json:"qbittorrent"`
	WebAPIVersion string     `json:"webApiVersion,omitempty"`
	LastSync      *time.Time `json:"lastSync,omitempty"`
}

func NewHealthHandler(version string, client ClientStatus) *HealthHandler {
	return &HealthHandler{version: version, client: client}
}

// HandleHealth always answers 200 and reports the qBittorrent connection.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Version: h.version}

	if h.client != nil {
		resp.Qbittorrent = h.client.IsHealthy()
		resp.WebAPIVersion = h.client.GetWebAPIVersion()
		if last := h.client.GetLastHealthCheck(); !last.IsZero() {
			resp.LastSync = &last
		}
		if !resp.Qbittorrent {
			resp.Status = "degraded"
		}
	}

	RespondJSON(w, http.StatusOK, resp)
}

// HandleReady answers 503 until qBittorrent has been synced successfully.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if h.client == nil || !h.client.IsHealthy() {
		RespondError(w, http.StatusServiceUnavailable, "qBittorrent not ready")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}
