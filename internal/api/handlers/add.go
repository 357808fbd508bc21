// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/quilist/internal/qbittorrent"
)

const addTorrentMaxFormMemory int64 = 64 << 20

// TorrentAdder adds torrents to the connected instance.
type TorrentAdder interface {
	AddURL(ctx context.Context, url string, opts qbittorrent.AddOptions) error
	AddFile(ctx context.Context, content []byte, opts qbittorrent.AddOptions) error
}

type AddTorrentHandler struct {
	adder TorrentAdder
}

func NewAddTorrentHandler(adder TorrentAdder) *AddTorrentHandler {
	return &AddTorrentHandler{adder: adder}
}

type AddTorrentFailure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

type AddTorrentResponse struct {
	Message string              `json:"message"`
	Added   int                 `json:"added"`
	Failed  int                 `json:"failed"`
	Errors  []AddTorrentFailure `json:"errors,omitempty"`
}

// AddTorrent accepts .torrent uploads in the "torrent" field or magnet links and
// URLs in "urls" (comma or newline separated), as multipart or urlencoded form.
func (h *AddTorrentHandler) AddTorrent(w http.ResponseWriter, r *http.Request) {
	if h.adder == nil {
		RespondError(w, http.StatusServiceUnavailable, "qBittorrent client not configured")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	if err := r.ParseMultipartForm(addTorrentMaxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		if errors.Is(err, multipart.ErrMessageTooLarge) {
			RespondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeded %d MB limit", addTorrentMaxFormMemory>>20))
			return
		}
		RespondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	opts, err := addOptionsFromForm(r)
	if err != nil {
		RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var files []*multipart.FileHeader
	if r.MultipartForm != nil {
		files = r.MultipartForm.File["torrent"]
	}
	urls := splitURLs(r.FormValue("urls"))

	if len(files) == 0 && len(urls) == 0 {
		RespondError(w, http.StatusBadRequest, "Either torrent files or URLs are required")
		return
	}

	var resp AddTorrentResponse
	fail := func(source string, err error) {
		log.Error().Err(err).Str("source", source).Msg("Failed to add torrent")
		resp.Failed++
		resp.Errors = append(resp.Errors, AddTorrentFailure{Source: source, Error: err.Error()})
	}

	for _, header := range files {
		if ctx.Err() != nil {
			break
		}

		content, err := readUpload(header)
		if err != nil {
			fail(header.Filename, err)
			continue
		}
		if err := h.adder.AddFile(ctx, content, opts); err != nil {
			fail(header.Filename, err)
			continue
		}
		resp.Added++
	}

	for _, url := range urls {
		if ctx.Err() != nil {
			break
		}

		if err := h.adder.AddURL(ctx, url, opts); err != nil {
			fail(url, err)
			continue
		}
		resp.Added++
	}

	if resp.Added == 0 {
		resp.Message = "Failed to add torrents"
		RespondJSON(w, http.StatusInternalServerError, resp)
		return
	}

	switch {
	case resp.Failed > 0:
		resp.Message = fmt.Sprintf("Added %d torrent(s), %d failed", resp.Added, resp.Failed)
	case resp.Added > 1:
		resp.Message = fmt.Sprintf("%d torrents added successfully", resp.Added)
	default:
		resp.Message = "Torrent added successfully"
	}

	RespondJSON(w, http.StatusCreated, resp)
}

func addOptionsFromForm(r *http.Request) (qbittorrent.AddOptions, error) {
	opts := qbittorrent.AddOptions{
		Category: r.FormValue("category"),
		Tags:     r.FormValue("tags"),
		SavePath: r.FormValue("savepath"),
	}

	if raw := r.FormValue("paused"); raw != "" {
		paused, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, fmt.Errorf("invalid paused value %q", raw)
		}
		opts.Paused = &paused
	}

	return opts, nil
}

func splitURLs(raw string) []string {
	var urls []string
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '\n' }) {
		if url := strings.TrimSpace(part); url != "" {
			urls = append(urls, url)
		}
	}
	return urls
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return content, nil
}
