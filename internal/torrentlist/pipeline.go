// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrentlist

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrListStopped is returned by marshalled calls once Run has exited.
var ErrListStopped = errors.New("torrent list stopped")

// ErrStaleVersion is returned by calls pinned to a state version the list has
// already moved past.
var ErrStaleVersion = errors.New("torrent list changed since the requested version")

// Derive runs the full filter, sort and group reduction over a record snapshot.
// Map order is normalized by ID first so equal inputs always produce equal output.
func Derive(records map[TorrentID]Record, query string, cfg SortConfig) []Section {
	values := make([]Record, 0, len(records))
	for _, record := range records {
		values = append(values, record)
	}
	slices.SortFunc(values, func(a, b Record) int { return cmp.Compare(a.ID, b.ID) })

	return Group(Sort(Filter(values, query), cfg), cfg.Grouped)
}

// State is an immutable published view of the list. Consumers must not mutate it.
type State struct {
	Sections     []Section      `json:"sections"`
	SelectedKeys []SelectionKey `json:"selectedKeys"`
	CanResumeAny bool           `json:"canResumeAny"`
	CanPauseAny  bool           `json:"canPauseAny"`
	Query        string         `json:"query"`
	Sort         SortConfig     `json:"sort"`
	Total        int            `json:"total"`
	Visible      int            `json:"visible"`
	Version      uint64         `json:"version"`
}

// Option configures a List.
type Option func(*List)

// WithSortConfig sets the sort configuration the list starts with.
func WithSortConfig(cfg SortConfig) Option {
	return func(l *List) { l.sort.value = cfg }
}

// WithSortPersister registers a callback invoked on the actor whenever the sort
// configuration changes. It must not block.
func WithSortPersister(fn func(SortConfig)) Option {
	return func(l *List) { l.sort.persist = fn }
}

// WithLogger overrides the module logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *List) { l.log = logger }
}

// List owns the record snapshot, query, sort configuration and selection of one
// torrent list screen. All of them are mutated by a single actor goroutine
// started with Run; readers observe published State values.
type List struct {
	executor Executor
	log      zerolog.Logger

	cmds chan func()
	wake chan struct{}
	done chan struct{}

	pendingMu  sync.Mutex
	pending    map[TorrentID]Record
	hasPending bool

	// actor owned
	records   map[TorrentID]Record
	query     string
	sort      sortBinding
	sections  []Section
	selection map[TorrentID]struct{}
	lastPrint uint64
	version   uint64

	state atomic.Pointer[State]

	subsMu sync.Mutex
	subs   map[chan *State]struct{}
}

// New creates a list that dispatches commands to executor.
func New(executor Executor, opts ...Option) *List {
	l := &List{
		executor:  executor,
		log:       log.With().Str("module", "torrentlist").Logger(),
		cmds:      make(chan func()),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		records:   make(map[TorrentID]Record),
		sort:      sortBinding{value: DefaultSortConfig()},
		selection: make(map[TorrentID]struct{}),
		subs:      make(map[chan *State]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.sections = Derive(l.records, l.query, l.sort.value)
	l.lastPrint = fingerprint(l.sections)
	l.state.Store(l.buildState())

	return l
}

// Run drives the actor until ctx is done.
func (l *List) Run(ctx context.Context) error {
	defer close(l.done)

	l.log.Debug().Str("sort", l.sort.value.Type.String()).Msg("Torrent list started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.wake:
			l.applyPending()
		case fn := <-l.cmds:
			l.applyPending()
			fn()
		}
	}
}

// Do runs fn on the actor and waits for it to finish.
func (l *List) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	cmd := func() {
		defer close(finished)
		fn()
	}

	select {
	case l.cmds <- cmd:
	case <-l.done:
		return ErrListStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DoAt runs fn on the actor like Do, but only when the list is still at version
// once any pending snapshot has been applied. Otherwise fn is skipped and
// ErrStaleVersion is returned. Version 0 skips the check.
func (l *List) DoAt(ctx context.Context, version uint64, fn func()) error {
	stale := false
	err := l.Do(ctx, func() {
		if version != 0 && version != l.version {
			stale = true
			return
		}
		fn()
	})
	if err != nil {
		return err
	}
	if stale {
		return ErrStaleVersion
	}
	return nil
}

// UpdateRecords hands a new snapshot to the list. It never blocks; when several
// snapshots arrive before the actor wakes up only the latest is applied. The
// caller must not modify the map afterwards.
func (l *List) UpdateRecords(records map[TorrentID]Record) {
	if records == nil {
		records = make(map[TorrentID]Record)
	}

	l.pendingMu.Lock()
	l.pending = records
	l.hasPending = true
	l.pendingMu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// SetQuery replaces the search query.
func (l *List) SetQuery(ctx context.Context, query string) error {
	return l.Do(ctx, func() {
		if query == l.query {
			return
		}
		l.query = query
		l.recompute()
	})
}

// SetSortConfig replaces the sort configuration and persists it when it changed.
func (l *List) SetSortConfig(ctx context.Context, cfg SortConfig) error {
	return l.Do(ctx, func() {
		if !l.sort.set(cfg) {
			return
		}
		l.recompute()
		l.sort.notify()
	})
}

// State returns the latest published state.
func (l *List) State() *State {
	return l.state.Load()
}

// Subscribe returns a channel that always holds the most recent state not yet
// received. Slow readers skip intermediate states. Call the returned function to
// stop receiving.
func (l *List) Subscribe() (<-chan *State, func()) {
	ch := make(chan *State, 1)

	// seeded under subsMu; publish stores before it fans out under the same lock
	l.subsMu.Lock()
	l.subs[ch] = struct{}{}
	ch <- l.state.Load()
	l.subsMu.Unlock()

	return ch, func() {
		l.subsMu.Lock()
		delete(l.subs, ch)
		l.subsMu.Unlock()
	}
}

func (l *List) applyPending() {
	l.pendingMu.Lock()
	records, ok := l.pending, l.hasPending
	l.pending, l.hasPending = nil, false
	l.pendingMu.Unlock()

	if !ok {
		return
	}

	l.records = records
	l.pruneSelection()
	l.recompute()
}

// recompute samples records, query and sort together and publishes the result
// when it differs from what was last published.
func (l *List) recompute() {
	l.sections = Derive(l.records, l.query, l.sort.value)

	sum := fingerprint(l.sections)
	if sum == l.lastPrint && !l.stateInputsChanged() {
		l.log.Trace().Msg("Recompute produced identical sections, skipping publish")
		return
	}
	l.lastPrint = sum
	l.publish()
}

// stateInputsChanged reports whether anything other than the sections differs
// from the published state.
func (l *List) stateInputsChanged() bool {
	current := l.state.Load()
	if current == nil {
		return true
	}
	return current.Query != l.query ||
		current.Sort != l.sort.value ||
		current.Total != len(l.records) ||
		!slices.Equal(current.SelectedKeys, l.selectedKeys())
}

func (l *List) publish() {
	next := l.buildState()
	l.state.Store(next)

	l.log.Trace().
		Uint64("version", next.Version).
		Int("total", next.Total).
		Int("visible", next.Visible).
		Int("sections", len(next.Sections)).
		Int("selected", len(next.SelectedKeys)).
		Msg("Published torrent list state")

	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	for ch := range l.subs {
		select {
		case ch <- next:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- next:
			default:
			}
		}
	}
}

func (l *List) buildState() *State {
	l.version++

	visible := 0
	for _, section := range l.sections {
		visible += section.Len()
	}

	keys := l.selectedKeys()
	return &State{
		Sections:     l.sections,
		SelectedKeys: keys,
		CanResumeAny: l.capability(keys, func(r Record) bool { return r.CanResume }),
		CanPauseAny:  l.capability(keys, func(r Record) bool { return r.CanPause }),
		Query:        l.query,
		Sort:         l.sort.value,
		Total:        len(l.records),
		Visible:      visible,
		Version:      l.version,
	}
}
