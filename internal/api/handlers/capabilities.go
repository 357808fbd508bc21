// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"
)

// CapabilitiesResponse describes what the connected qBittorrent instance supports.
type CapabilitiesResponse struct {
	WebAPIVersion   string `json:"webAPIVersion,omitempty"`
	UsesStopCommand bool   `json:"usesStopCommand"`
	Connected       bool   `json:"connected"`
}

// NewCapabilitiesResponse creates a response payload from a qBittorrent client.
func NewCapabilitiesResponse(client ClientStatus) CapabilitiesResponse {
	capabilities := CapabilitiesResponse{
		UsesStopCommand: client.UsesStopCommand(),
		Connected:       client.IsHealthy(),
	}

	if version := client.GetWebAPIVersion(); version != "" {
		capabilities.WebAPIVersion = version
	}

	return capabilities
}

// HandleCapabilities reports the WebAPI version and command naming of the instance.
func (h *HealthHandler) HandleCapabilities(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		RespondError(w, http.StatusServiceUnavailable, "qBittorrent client not configured")
		return
	}

	RespondJSON(w, http.StatusOK, NewCapabilitiesResponse(h.client))
}
