// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package swagger

import (
	_ "embed"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

//go:embed openapi.yaml
var openAPISpec []byte

// GetOpenAPISpec returns the embedded OpenAPI document.
func GetOpenAPISpec() ([]byte, error) {
	return openAPISpec, nil
}

type Handler struct {
	baseURL string
}

func NewHandler(baseURL string) *Handler {
	return &Handler{baseURL: baseURL}
}

// RegisterRoutes serves the document at <baseURL>api/openapi.yaml.
func (h *Handler) RegisterRoutes(r chi.Router) {
	base := h.baseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	r.Get(base+"api/openapi.yaml", h.ServeSpec)
}

func (h *Handler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(openAPISpec)
}
