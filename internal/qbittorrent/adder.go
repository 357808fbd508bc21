// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrEmptyTorrent = errors.New("torrent url or file is empty")

type addAPI interface {
	AddTorrentFromUrlCtx(ctx context.Context, url string, options map[string]string) error
	AddTorrentFromMemoryCtx(ctx context.Context, buf []byte, options map[string]string) error
}

// AddOptions are the add parameters passed through to qBittorrent.
type AddOptions struct {
	Category string
	Tags     string
	SavePath string
	Paused   *bool
}

// Form returns the options in qBittorrent's add form encoding.
func (o AddOptions) Form() map[string]string {
	options := make(map[string]string)

	if o.Category != "" {
		options["category"] = o.Category
	}
	if o.Tags != "" {
		options["tags"] = o.Tags
	}
	if o.SavePath != "" {
		options["savepath"] = o.SavePath
		options["autoTMM"] = "false"
	}
	// older WebAPI versions read paused, newer ones stopped
	if o.Paused != nil {
		value := strconv.FormatBool(*o.Paused)
		options["paused"] = value
		options["stopped"] = value
	}

	return options
}

// Adder adds torrents to qBittorrent. New torrents reach the list through the
// resync that follows every successful add.
type Adder struct {
	api    addAPI
	resync resyncer
	log    zerolog.Logger
}

// NewAdder creates an adder. source may be nil.
func NewAdder(client *Client, source *Source) *Adder {
	var rs resyncer
	if source != nil {
		rs = source
	}
	return newAdder(client, rs)
}

func newAdder(api addAPI, rs resyncer) *Adder {
	return &Adder{
		api:    api,
		resync: rs,
		log:    log.With().Str("module", "adder").Logger(),
	}
}

// AddURL adds a magnet link or a torrent file URL.
func (a *Adder) AddURL(ctx context.Context, url string, opts AddOptions) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return ErrEmptyTorrent
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if err := a.api.AddTorrentFromUrlCtx(ctx, url, opts.Form()); err != nil {
		return errors.Wrap(err, "could not add torrent from url")
	}

	a.log.Debug().Bool("magnet", strings.HasPrefix(strings.ToLower(url), "magnet:")).Msg("Torrent added from url")
	a.afterAdd("add_torrent_from_url")
	return nil
}

// AddFile adds a torrent from the contents of a .torrent file.
func (a *Adder) AddFile(ctx context.Context, content []byte, opts AddOptions) error {
	if len(content) == 0 {
		return ErrEmptyTorrent
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if err := a.api.AddTorrentFromMemoryCtx(ctx, content, opts.Form()); err != nil {
		return errors.Wrap(err, "could not add torrent from file")
	}

	a.log.Debug().Int("size", len(content)).Msg("Torrent added from file")
	a.afterAdd("add_torrent_from_memory")
	return nil
}

func (a *Adder) afterAdd(operation string) {
	if a.resync != nil {
		a.resync.SyncAfterModification(operation)
	}
}
