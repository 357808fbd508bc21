// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/quilist/internal/torrentlist"
)

const commandTimeout = 30 * time.Second

type commandAPI interface {
	ResumeCtx(ctx context.Context, hashes []string) error
	PauseCtx(ctx context.Context, hashes []string) error
	RecheckCtx(ctx context.Context, hashes []string) error
	DeleteTorrentsCtx(ctx context.Context, hashes []string, deleteFiles bool) error
}

// CommandObserver is told about the outcome of every command.
type CommandObserver interface {
	CommandSent(action torrentlist.Action, result string)
}

type resyncer interface {
	SyncAfterModification(operation string)
}

// Commander executes list commands against qBittorrent. Every call returns
// immediately; the request runs in its own goroutine and its effect reaches the
// list through the next maindata sync.
type Commander struct {
	api      commandAPI
	resync   resyncer
	observer CommandObserver
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

var _ torrentlist.Executor = (*Commander)(nil)

// NewCommander creates a commander. source and observer may be nil.
func NewCommander(client *Client, source *Source, observer CommandObserver) *Commander {
	var rs resyncer
	if source != nil {
		rs = source
	}
	return newCommander(client, rs, observer)
}

func newCommander(api commandAPI, rs resyncer, observer CommandObserver) *Commander {
	ctx, cancel := context.WithCancel(context.Background())
	return &Commander{
		api:      api,
		resync:   rs,
		observer: observer,
		log:      log.With().Str("module", "commander").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (c *Commander) Resume(id torrentlist.TorrentID) {
	c.run(torrentlist.ActionResume, id, func(ctx context.Context, hashes []string) error {
		return c.api.ResumeCtx(ctx, hashes)
	})
}

func (c *Commander) Pause(id torrentlist.TorrentID) {
	c.run(torrentlist.ActionPause, id, func(ctx context.Context, hashes []string) error {
		return c.api.PauseCtx(ctx, hashes)
	})
}

func (c *Commander) Rehash(id torrentlist.TorrentID) {
	c.run(torrentlist.ActionRehash, id, func(ctx context.Context, hashes []string) error {
		return c.api.RecheckCtx(ctx, hashes)
	})
}

func (c *Commander) Remove(id torrentlist.TorrentID, deleteFiles bool) {
	c.run(torrentlist.ActionRemove, id, func(ctx context.Context, hashes []string) error {
		return c.api.DeleteTorrentsCtx(ctx, hashes, deleteFiles)
	})
}

// Close cancels outstanding commands and waits for their goroutines.
func (c *Commander) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *Commander) run(action torrentlist.Action, id torrentlist.TorrentID, fn func(ctx context.Context, hashes []string) error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.log.Debug().Str("action", string(action)).Str("hash", string(id)).Msg("Commander closed, dropping command")
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(c.ctx, commandTimeout)
		defer cancel()

		if err := fn(ctx, []string{string(id)}); err != nil {
			c.log.Error().Err(err).Str("action", string(action)).Str("hash", string(id)).Msg("Torrent command failed")
			c.observe(action, "error")
			return
		}

		c.log.Debug().Str("action", string(action)).Str("hash", string(id)).Msg("Torrent command sent")
		c.observe(action, "success")

		if c.resync != nil {
			c.resync.SyncAfterModification(string(action))
		}
	}()
}

func (c *Commander) observe(action torrentlist.Action, result string) {
	if c.observer != nil {
		c.observer.CommandSent(action, result)
	}
}
