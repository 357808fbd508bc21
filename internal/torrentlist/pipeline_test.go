// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrentlist

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	verb        Action
	id          TorrentID
	deleteFiles bool
}

type recordingExecutor struct {
	mu    sync.Mutex
	calls []call
}

func (e *recordingExecutor) record(c call) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, c)
}

func (e *recordingExecutor) Resume(id TorrentID) { e.record(call{verb: ActionResume, id: id}) }
func (e *recordingExecutor) Pause(id TorrentID)  { e.record(call{verb: ActionPause, id: id}) }
func (e *recordingExecutor) Rehash(id TorrentID) { e.record(call{verb: ActionRehash, id: id}) }
func (e *recordingExecutor) Remove(id TorrentID, deleteFiles bool) {
	e.record(call{verb: ActionRemove, id: id, deleteFiles: deleteFiles})
}

func (e *recordingExecutor) Calls() []call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]call(nil), e.calls...)
}

func startList(t *testing.T, exec Executor, opts ...Option) *List {
	t.Helper()

	l := New(exec, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		<-done
	})
	return l
}

// settle waits until every snapshot handed to UpdateRecords has been applied.
func settle(t *testing.T, l *List) {
	t.Helper()
	require.NoError(t, l.Do(t.Context(), func() {}))
}

func recordMap(records ...Record) map[TorrentID]Record {
	m := make(map[TorrentID]Record, len(records))
	for _, r := range records {
		m[r.ID] = r
	}
	return m
}

func sectionNames(state *State) [][]string {
	out := make([][]string, 0, len(state.Sections))
	for _, s := range state.Sections {
		out = append(out, names(s.Records))
	}
	return out
}

func scenarioRecords() map[TorrentID]Record {
	t1 := baseTime
	t2 := baseTime.Add(time.Hour)
	return recordMap(
		Record{ID: "b", Name: "beta", AddedDate: t1},
		Record{ID: "a", Name: "Alpha", AddedDate: t2},
	)
}

func TestListScenarioNameSortIsCaseSensitive(t *testing.T) {
	l := startList(t, &recordingExecutor{})
	l.UpdateRecords(scenarioRecords())
	settle(t, l)

	state := l.State()
	require.Len(t, state.Sections, 1)
	assert.Nil(t, state.Sections[0].Header)
	assert.Equal(t, [][]string{{"Alpha", "beta"}}, sectionNames(state))
}

func TestListScenarioDateAddedNewestFirst(t *testing.T) {
	l := startList(t, &recordingExecutor{})
	l.UpdateRecords(scenarioRecords())
	require.NoError(t, l.SetSortConfig(t.Context(), SortConfig{Type: SortByDateAdded}))

	assert.Equal(t, [][]string{{"Alpha", "beta"}}, sectionNames(l.State()))

	require.NoError(t, l.SetSortConfig(t.Context(), SortConfig{Type: SortByDateAdded, Reversed: true}))
	assert.Equal(t, [][]string{{"beta", "Alpha"}}, sectionNames(l.State()))
}

func TestListScenarioQueryIndependentOfSort(t *testing.T) {
	l := startList(t, &recordingExecutor{})
	l.UpdateRecords(scenarioRecords())
	require.NoError(t, l.SetQuery(t.Context(), "al"))

	for _, cfg := range []SortConfig{
		{Type: SortByName},
		{Type: SortByDateAdded, Reversed: true},
		{Type: SortBySize, Grouped: true},
		{Type: SortByDateCreated},
	} {
		require.NoError(t, l.SetSortConfig(t.Context(), cfg))
		assert.Equal(t, [][]string{{"Alpha"}}, sectionNames(l.State()), "sort %+v", cfg)
	}
}

func TestListScenarioGroupedByState(t *testing.T) {
	l := startList(t, &recordingExecutor{}, WithSortConfig(SortConfig{Type: SortBySize, Grouped: true}))
	l.UpdateRecords(recordMap(
		Record{ID: "1", Name: "small", TotalWanted: 10, DisplayState: StateDownloading},
		Record{ID: "2", Name: "paused", TotalWanted: 50, DisplayState: StatePaused},
		Record{ID: "3", Name: "large", TotalWanted: 90, DisplayState: StateDownloading},
	))
	settle(t, l)

	state := l.State()
	require.Len(t, state.Sections, 2)
	assert.Equal(t, "Downloading", *state.Sections[0].Header)
	assert.Equal(t, "Paused", *state.Sections[1].Header)
	assert.Equal(t, [][]string{{"large", "small"}, {"paused"}}, sectionNames(state))
}

func TestListScenarioResumeOnlyEligible(t *testing.T) {
	exec := &recordingExecutor{}
	l := startList(t, exec)
	l.UpdateRecords(recordMap(
		Record{ID: "A", Name: "a", CanResume: true},
		Record{ID: "B", Name: "b", CanResume: false, CanPause: true},
	))
	settle(t, l)

	require.NoError(t, l.SetSelection(t.Context(), SelectionKey{0, 0}, SelectionKey{0, 1}))

	sent, err := l.ResumeSelected(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []call{{verb: ActionResume, id: "A"}}, exec.Calls())
}

func TestListRecomputeIsIdempotent(t *testing.T) {
	l := startList(t, &recordingExecutor{}, WithSortConfig(SortConfig{Type: SortByName, Grouped: true}))
	records := recordMap(
		Record{ID: "1", Name: "one", DisplayState: StateSeeding},
		Record{ID: "2", Name: "two", DisplayState: StateQueued},
	)

	l.UpdateRecords(records)
	settle(t, l)
	first := l.State()

	l.UpdateRecords(recordMap(records["1"], records["2"]))
	settle(t, l)
	second := l.State()

	assert.Equal(t, first.Sections, second.Sections)
	assert.Equal(t, first.Version, second.Version, "identical recompute must not publish")
}

func TestListCoalescesRecordBursts(t *testing.T) {
	l := startList(t, &recordingExecutor{})
	updates, unsubscribe := l.Subscribe()
	defer unsubscribe()
	<-updates

	for i := range 50 {
		l.UpdateRecords(recordMap(Record{ID: "x", Name: "x", TotalWanted: int64(i)}))
	}
	settle(t, l)

	state := l.State()
	require.Len(t, state.Sections, 1)
	require.Len(t, state.Sections[0].Records, 1)
	assert.Equal(t, int64(49), state.Sections[0].Records[0].TotalWanted)

	select {
	case latest := <-updates:
		assert.Equal(t, state.Version, latest.Version)
	case <-time.After(time.Second):
		t.Fatal("no state delivered to subscriber")
	}
}

func TestSubscribeDuringPublishesEndsOnLatest(t *testing.T) {
	l := startList(t, &recordingExecutor{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range 200 {
			l.UpdateRecords(recordMap(Record{ID: "x", Name: "x", TotalWanted: int64(i)}))
		}
	}()

	subs := make([]<-chan *State, 0, 50)
	for range 50 {
		ch, unsubscribe := l.Subscribe()
		defer unsubscribe()
		subs = append(subs, ch)
	}
	wg.Wait()
	settle(t, l)

	want := l.State().Version
	for i, ch := range subs {
		select {
		case got := <-ch:
			assert.Equal(t, want, got.Version, "subscriber %d", i)
		default:
			t.Fatalf("subscriber %d has no state", i)
		}
	}
}

func TestListPublishesCounts(t *testing.T) {
	l := startList(t, &recordingExecutor{})
	l.UpdateRecords(recordMap(
		Record{ID: "1", Name: "linux iso"},
		Record{ID: "2", Name: "bsd iso"},
		Record{ID: "3", Name: "podcast"},
	))
	require.NoError(t, l.SetQuery(t.Context(), "iso"))

	state := l.State()
	assert.Equal(t, 3, state.Total)
	assert.Equal(t, 2, state.Visible)
	assert.Equal(t, "iso", state.Query)
}

func TestListSortPersister(t *testing.T) {
	var mu sync.Mutex
	var persisted []SortConfig

	l := startList(t, &recordingExecutor{},
		WithSortConfig(SortConfig{Type: SortBySize}),
		WithSortPersister(func(cfg SortConfig) {
			mu.Lock()
			defer mu.Unlock()
			persisted = append(persisted, cfg)
		}),
	)

	assert.Equal(t, SortConfig{Type: SortBySize}, l.State().Sort)

	require.NoError(t, l.SetSortConfig(t.Context(), SortConfig{Type: SortBySize}))
	require.NoError(t, l.SetSortConfig(t.Context(), SortConfig{Type: SortByName, Grouped: true}))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []SortConfig{{Type: SortByName, Grouped: true}}, persisted)
	assert.Equal(t, SortConfig{Type: SortByName, Grouped: true}, l.State().Sort)
}

func TestListStopped(t *testing.T) {
	l := New(&recordingExecutor{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)

	assert.ErrorIs(t, l.SetQuery(t.Context(), "x"), ErrListStopped)
}

func TestListDoHonoursContext(t *testing.T) {
	l := New(&recordingExecutor{})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	assert.ErrorIs(t, l.SetQuery(ctx, "x"), context.Canceled)
}
