// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/quilist/internal/torrentlist"
)

type ListHandler struct {
	list *torrentlist.List
}

func NewListHandler(list *torrentlist.List) *ListHandler {
	return &ListHandler{list: list}
}

type QueryRequest struct {
	Query string `json:"query"`
}

// SelectionRequest carries row keys from a published state. When Version is
// set and no longer current the request is rejected so stale keys never
// resolve to different torrents.
type SelectionRequest struct {
	Keys    []torrentlist.SelectionKey `json:"keys"`
	Version uint64                     `json:"version,omitempty"`
}

type ActionResponse struct {
	Action     torrentlist.Action `json:"action"`
	Dispatched int                `json:"dispatched"`
}

type SelectedResponse struct {
	Records      []torrentlist.Record `json:"records"`
	CanResumeAny bool                 `json:"canResumeAny"`
	CanPauseAny  bool                 `json:"canPauseAny"`
}

// Routes registers the list endpoints on r.
func (h *ListHandler) Routes(r chi.Router) {
	r.Get("/", h.GetState)
	r.Put("/query", h.SetQuery)
	r.Put("/sort", h.SetSort)

	r.Route("/selection", func(r chi.Router) {
		r.Get("/", h.GetSelection)
		r.Put("/", h.SetSelection)
		r.Post("/", h.AddSelection)
		r.Delete("/", h.ClearSelection)
		r.Post("/remove", h.RemoveSelection)
		r.Post("/all", h.SelectAll)
	})

	r.Post("/actions/{action}", h.BulkAction)
	r.Delete("/rows/{section}/{row}", h.RemoveRow)
}

func (h *ListHandler) GetState(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.list.State())
}

func (h *ListHandler) SetQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.list.SetQuery(r.Context(), req.Query); err != nil {
		h.respondListError(w, err, "query")
		return
	}

	RespondJSON(w, http.StatusOK, h.list.State())
}

func (h *ListHandler) SetSort(w http.ResponseWriter, r *http.Request) {
	var cfg torrentlist.SortConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid sort configuration")
		return
	}

	if err := h.list.SetSortConfig(r.Context(), cfg); err != nil {
		h.respondListError(w, err, "sort")
		return
	}

	RespondJSON(w, http.StatusOK, h.list.State())
}

func (h *ListHandler) GetSelection(w http.ResponseWriter, r *http.Request) {
	records, err := h.list.SelectedRecords(r.Context())
	if err != nil {
		h.respondListError(w, err, "selection")
		return
	}

	state := h.list.State()
	RespondJSON(w, http.StatusOK, SelectedResponse{
		Records:      records,
		CanResumeAny: state.CanResumeAny,
		CanPauseAny:  state.CanPauseAny,
	})
}

func (h *ListHandler) SetSelection(w http.ResponseWriter, r *http.Request) {
	h.withSelection(w, r, h.list.SetSelectionAt)
}

func (h *ListHandler) AddSelection(w http.ResponseWriter, r *http.Request) {
	h.withSelection(w, r, h.list.SelectAt)
}

func (h *ListHandler) RemoveSelection(w http.ResponseWriter, r *http.Request) {
	h.withSelection(w, r, h.list.DeselectAt)
}

func (h *ListHandler) SelectAll(w http.ResponseWriter, r *http.Request) {
	if err := h.list.SelectAll(r.Context()); err != nil {
		h.respondListError(w, err, "selection")
		return
	}
	RespondJSON(w, http.StatusOK, h.list.State())
}

func (h *ListHandler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	if err := h.list.ClearSelection(r.Context()); err != nil {
		h.respondListError(w, err, "selection")
		return
	}
	RespondJSON(w, http.StatusOK, h.list.State())
}

func (h *ListHandler) withSelection(w http.ResponseWriter, r *http.Request, apply func(context.Context, uint64, ...torrentlist.SelectionKey) error) {
	var req SelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := apply(r.Context(), req.Version, req.Keys...); err != nil {
		h.respondListError(w, err, "selection")
		return
	}

	RespondJSON(w, http.StatusOK, h.list.State())
}

func (h *ListHandler) BulkAction(w http.ResponseWriter, r *http.Request) {
	action := torrentlist.Action(chi.URLParam(r, "action"))

	var (
		dispatched int
		err        error
	)

	switch action {
	case torrentlist.ActionResume:
		dispatched, err = h.list.ResumeSelected(r.Context())
	case torrentlist.ActionPause:
		dispatched, err = h.list.PauseSelected(r.Context())
	case torrentlist.ActionRehash:
		dispatched, err = h.list.RehashSelected(r.Context())
	case torrentlist.ActionRemove:
		dispatched, err = h.list.RemoveSelected(r.Context(), deleteFilesParam(r))
	default:
		RespondError(w, http.StatusBadRequest, "Invalid action")
		return
	}

	if err != nil {
		h.respondListError(w, err, string(action))
		return
	}

	RespondJSON(w, http.StatusOK, ActionResponse{Action: action, Dispatched: dispatched})
}

func (h *ListHandler) RemoveRow(w http.ResponseWriter, r *http.Request) {
	section, err := strconv.Atoi(chi.URLParam(r, "section"))
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid section index")
		return
	}
	row, err := strconv.Atoi(chi.URLParam(r, "row"))
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid row index")
		return
	}

	var version uint64
	if raw := r.URL.Query().Get("version"); raw != "" {
		version, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			RespondError(w, http.StatusBadRequest, "Invalid version")
			return
		}
	}

	removed, err := h.list.RemoveOneAt(r.Context(), version, torrentlist.SelectionKey{Section: section, Row: row}, deleteFilesParam(r))
	if err != nil {
		h.respondListError(w, err, string(torrentlist.ActionRemove))
		return
	}
	if !removed {
		RespondError(w, http.StatusNotFound, "Row not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ListHandler) respondListError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, torrentlist.ErrStaleVersion):
		RespondError(w, http.StatusConflict, "List changed, refresh and retry")
	case errors.Is(err, torrentlist.ErrListStopped):
		RespondError(w, http.StatusServiceUnavailable, "Torrent list is shutting down")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		RespondError(w, http.StatusServiceUnavailable, "Request cancelled")
	default:
		log.Error().Err(err).Str("op", op).Msg("Torrent list operation failed")
		RespondError(w, http.StatusInternalServerError, "Torrent list operation failed")
	}
}

func deleteFilesParam(r *http.Request) bool {
	deleteFiles, _ := strconv.ParseBool(r.URL.Query().Get("deleteFiles"))
	return deleteFiles
}
