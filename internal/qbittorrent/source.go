// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"context"
	"maps"
	"sync"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/autobrr/quilist/internal/torrentlist"
)

const (
	defaultSyncInterval      = 2 * time.Second
	propertiesFetchLimit     = 4
	propertiesFetchTimeout   = 15 * time.Second
	defaultSyncDebounceDelay = 200 * time.Millisecond
)

// RecordSink receives record snapshots, typically a *torrentlist.List.
// Snapshots are delivered in the order they were built, so UpdateRecords must
// not block or call back into the source.
type RecordSink interface {
	UpdateRecords(map[torrentlist.TorrentID]torrentlist.Record)
}

// SinkFunc adapts a function to RecordSink.
type SinkFunc func(map[torrentlist.TorrentID]torrentlist.Record)

func (f SinkFunc) UpdateRecords(records map[torrentlist.TorrentID]torrentlist.Record) {
	f(records)
}

// SyncObserver is told about every sync attempt.
type SyncObserver interface {
	SyncResult(err error)
}

type propertiesAPI interface {
	GetTorrentPropertiesCtx(ctx context.Context, hash string) (qbt.TorrentProperties, error)
}

type mainDataSyncer interface {
	Sync(ctx context.Context) error
}

// Source turns qBittorrent maindata updates into record snapshots. Creation
// dates are not part of maindata, so they are fetched from torrent properties
// in the background and a fresh snapshot is emitted once they arrive.
type Source struct {
	client      *Client
	props       propertiesAPI
	sink        RecordSink
	observer    SyncObserver
	syncManager mainDataSyncer
	interval    time.Duration
	log         zerolog.Logger

	mu       sync.Mutex
	latest   map[string]qbt.Torrent
	created  map[string]*time.Time
	inflight map[string]struct{}

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
	debounceDelay time.Duration
}

// NewSource wires client maindata updates to sink. observer may be nil.
func NewSource(client *Client, sink RecordSink, observer SyncObserver, interval time.Duration) *Source {
	s := newSource(client, sink, observer, interval)

	syncOpts := qbt.DefaultSyncOptions()
	syncOpts.DynamicSync = true
	syncOpts.OnUpdate = func(data *qbt.MainData) {
		client.updateHealthStatus(true)
		s.reportSync(nil)
		s.HandleMainData(data)
	}
	syncOpts.OnError = func(err error) {
		client.updateHealthStatus(false)
		s.reportSync(err)
		s.log.Warn().Err(err).Str("host", client.GetHost()).Msg("Sync manager error received, marking client as unhealthy")
	}

	s.syncManager = client.NewSyncManager(syncOpts)
	return s
}

func newSource(client *Client, sink RecordSink, observer SyncObserver, interval time.Duration) *Source {
	if interval <= 0 {
		interval = defaultSyncInterval
	}

	s := &Source{
		client:        client,
		sink:          sink,
		observer:      observer,
		interval:      interval,
		log:           log.With().Str("module", "qbittorrent").Logger(),
		latest:        make(map[string]qbt.Torrent),
		created:       make(map[string]*time.Time),
		inflight:      make(map[string]struct{}),
		debounceDelay: defaultSyncDebounceDelay,
	}
	if client != nil {
		s.props = client
	}
	return s
}

// Run performs the initial sync and then polls maindata until ctx is done.
func (s *Source) Run(ctx context.Context) error {
	if err := s.syncManager.Sync(ctx); err != nil {
		s.log.Error().Err(err).Msg("Initial qBittorrent sync failed")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.stopDebounce()
			return nil
		case <-ticker.C:
			syncCtx, cancel := context.WithTimeout(ctx, s.interval*5)
			if err := s.syncManager.Sync(syncCtx); err != nil {
				s.log.Debug().Err(err).Msg("qBittorrent sync failed")
			}
			cancel()
		}
	}
}

// HandleMainData emits a snapshot for data and schedules creation date lookups.
func (s *Source) HandleMainData(data *qbt.MainData) {
	if data == nil {
		return
	}

	s.mu.Lock()
	s.latest = maps.Clone(data.Torrents)
	if s.latest == nil {
		s.latest = make(map[string]qbt.Torrent)
	}
	for hash := range s.created {
		if _, ok := s.latest[hash]; !ok {
			delete(s.created, hash)
		}
	}
	missing := s.missingCreationDatesLocked()
	records := s.buildRecordsLocked()
	s.sink.UpdateRecords(records)
	s.mu.Unlock()

	s.log.Trace().Int("torrentCount", len(records)).Msg("Sync manager update received")

	if len(missing) > 0 && s.props != nil {
		go s.fetchCreationDates(missing)
	}
}

func (s *Source) missingCreationDatesLocked() []string {
	var missing []string
	for hash := range s.latest {
		if _, known := s.created[hash]; known {
			continue
		}
		if _, running := s.inflight[hash]; running {
			continue
		}
		s.inflight[hash] = struct{}{}
		missing = append(missing, hash)
	}
	return missing
}

func (s *Source) buildRecordsLocked() map[torrentlist.TorrentID]torrentlist.Record {
	records := make(map[torrentlist.TorrentID]torrentlist.Record, len(s.latest))
	for hash, torrent := range s.latest {
		if torrent.Hash == "" {
			torrent.Hash = hash
		}
		record := ToRecord(torrent, s.created[hash])
		records[record.ID] = record
	}
	return records
}

func (s *Source) fetchCreationDates(hashes []string) {
	ctx, cancel := context.WithTimeout(context.Background(), propertiesFetchTimeout)
	defer cancel()

	var g errgroup.Group
	g.SetLimit(propertiesFetchLimit)

	var resultsMu sync.Mutex
	results := make(map[string]*time.Time, len(hashes))

	for _, hash := range hashes {
		g.Go(func() error {
			props, err := s.props.GetTorrentPropertiesCtx(ctx, hash)
			if err != nil {
				s.log.Debug().Err(err).Str("hash", hash).Msg("Failed to get torrent properties")
				return nil
			}

			var created *time.Time
			if props.CreationDate > 0 {
				t := time.Unix(int64(props.CreationDate), 0)
				created = &t
			}

			resultsMu.Lock()
			results[hash] = created
			resultsMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	for _, hash := range hashes {
		delete(s.inflight, hash)
	}
	changed := false
	for hash, created := range results {
		if _, ok := s.latest[hash]; !ok {
			continue
		}
		s.created[hash] = created
		if created != nil {
			changed = true
		}
	}
	if changed {
		s.sink.UpdateRecords(s.buildRecordsLocked())
	}
	s.mu.Unlock()

	s.log.Debug().Int("requested", len(hashes)).Int("resolved", len(results)).Bool("emitted", changed).Msg("Fetched torrent creation dates")
}

func (s *Source) reportSync(err error) {
	if s.observer != nil {
		s.observer.SyncResult(err)
	}
}

// SyncAfterModification schedules a maindata sync shortly after a command so the
// list sees its outcome. Calls within the debounce window collapse into one sync.
func (s *Source) SyncAfterModification(operation string) {
	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()

	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(s.debounceDelay, func() {
		s.runDebouncedSync(operation, timer)
	})
	s.debounceTimer = timer
}

func (s *Source) runDebouncedSync(operation string, timer *time.Timer) {
	defer func() {
		s.debounceMu.Lock()
		if s.debounceTimer == timer {
			s.debounceTimer = nil
		}
		s.debounceMu.Unlock()
	}()

	if s.syncManager == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.syncManager.Sync(ctx); err != nil {
		s.log.Warn().Err(err).Str("operation", operation).Msg("Failed to sync after modification")
	}
}

func (s *Source) stopDebounce() {
	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
		s.debounceTimer = nil
	}
}
