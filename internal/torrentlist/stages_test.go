// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrentlist

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func rec(id, name string) Record {
	return Record{ID: TorrentID(id), Name: name, AddedDate: baseTime}
}

func names(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Name)
	}
	return out
}

func ptrTime(t time.Time) *time.Time {
	return &t
}

func TestFilter(t *testing.T) {
	records := []Record{
		rec("1", "Ubuntu 24.04 Desktop amd64"),
		rec("2", "debian-12.5.0-amd64-netinst"),
		rec("3", "Ubuntu 22.04 Server arm64"),
		rec("4", ""),
	}

	tests := []struct {
		name     string
		query    string
		expected []string
	}{
		{
			name:     "empty query returns input",
			query:    "",
			expected: []string{"Ubuntu 24.04 Desktop amd64", "debian-12.5.0-amd64-netinst", "Ubuntu 22.04 Server arm64", ""},
		},
		{
			name:     "whitespace only query returns input",
			query:    "   \t ",
			expected: []string{"Ubuntu 24.04 Desktop amd64", "debian-12.5.0-amd64-netinst", "Ubuntu 22.04 Server arm64", ""},
		},
		{
			name:     "single token is case insensitive",
			query:    "UBUNTU",
			expected: []string{"Ubuntu 24.04 Desktop amd64", "Ubuntu 22.04 Server arm64"},
		},
		{
			name:     "all tokens must match",
			query:    "ubuntu amd64",
			expected: []string{"Ubuntu 24.04 Desktop amd64"},
		},
		{
			name:     "token order is irrelevant",
			query:    "amd64   ubuntu",
			expected: []string{"Ubuntu 24.04 Desktop amd64"},
		},
		{
			name:     "substring match inside words",
			query:    "netin",
			expected: []string{"debian-12.5.0-amd64-netinst"},
		},
		{
			name:     "no match",
			query:    "fedora",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(records, tt.query)
			assert.Equal(t, tt.expected, names(got))
		})
	}
}

func TestFilterIsOrderPreservingSubsequence(t *testing.T) {
	records := []Record{
		rec("a", "alpha one"),
		rec("b", "beta two"),
		rec("c", "alpha two"),
		rec("d", "gamma"),
		rec("e", "Two Alpha"),
	}
	original := append([]Record(nil), records...)

	for _, query := range []string{"alpha", "two", "alpha two", "a", "o"} {
		got := Filter(records, query)
		tokens := strings.Fields(strings.ToLower(query))

		next := 0
		for _, r := range got {
			for next < len(records) && records[next].ID != r.ID {
				next++
			}
			require.Less(t, next, len(records), "query %q returned out of order record %s", query, r.ID)
			next++

			for _, token := range tokens {
				assert.Contains(t, strings.ToLower(r.Name), token)
			}
		}
	}

	assert.Equal(t, original, records, "filter must not modify its input")
}

func TestSort(t *testing.T) {
	older := baseTime.Add(-time.Hour)
	newer := baseTime.Add(time.Hour)

	records := []Record{
		{ID: "1", Name: "beta", AddedDate: older, CreationDate: ptrTime(newer), TotalWanted: 100},
		{ID: "2", Name: "Alpha", AddedDate: newer, CreationDate: ptrTime(older), TotalWanted: 300},
		{ID: "3", Name: "gamma", AddedDate: baseTime, CreationDate: ptrTime(baseTime), TotalWanted: 200},
	}

	tests := []struct {
		name     string
		cfg      SortConfig
		expected []string
	}{
		{name: "name ascending case sensitive", cfg: SortConfig{Type: SortByName}, expected: []string{"Alpha", "beta", "gamma"}},
		{name: "name reversed", cfg: SortConfig{Type: SortByName, Reversed: true}, expected: []string{"gamma", "beta", "Alpha"}},
		{name: "date added newest first", cfg: SortConfig{Type: SortByDateAdded}, expected: []string{"Alpha", "gamma", "beta"}},
		{name: "date added reversed", cfg: SortConfig{Type: SortByDateAdded, Reversed: true}, expected: []string{"beta", "gamma", "Alpha"}},
		{name: "date created newest first", cfg: SortConfig{Type: SortByDateCreated}, expected: []string{"beta", "gamma", "Alpha"}},
		{name: "date created reversed", cfg: SortConfig{Type: SortByDateCreated, Reversed: true}, expected: []string{"Alpha", "gamma", "beta"}},
		{name: "size largest first", cfg: SortConfig{Type: SortBySize}, expected: []string{"Alpha", "gamma", "beta"}},
		{name: "size reversed", cfg: SortConfig{Type: SortBySize, Reversed: true}, expected: []string{"beta", "gamma", "Alpha"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := Sort(records, tt.cfg)
			assert.Equal(t, tt.expected, names(got))
			assert.Equal(t, []string{"beta", "Alpha", "gamma"}, names(records), "input must stay untouched")
		})
	}
}

func TestSortIsStableForEqualKeys(t *testing.T) {
	records := []Record{
		{ID: "1", Name: "first", TotalWanted: 10},
		{ID: "2", Name: "second", TotalWanted: 10},
		{ID: "3", Name: "third", TotalWanted: 10},
	}

	assert.Equal(t, []string{"first", "second", "third"}, names(Sort(records, SortConfig{Type: SortBySize})))
	assert.Equal(t, []string{"first", "second", "third"}, names(Sort(records, SortConfig{Type: SortBySize, Reversed: true})))
}

func TestSortMissingCreationDateCountsAsNow(t *testing.T) {
	records := []Record{
		{ID: "old", Name: "old", CreationDate: ptrTime(time.Now().Add(-24 * time.Hour))},
		{ID: "unknown", Name: "unknown"},
	}

	got := Sort(records, SortConfig{Type: SortByDateCreated})
	assert.Equal(t, []string{"unknown", "old"}, names(got))

	got = Sort(records, SortConfig{Type: SortByDateCreated, Reversed: true})
	assert.Equal(t, []string{"old", "unknown"}, names(got))
}

func TestSortEmpty(t *testing.T) {
	assert.Empty(t, Sort(nil, DefaultSortConfig()))
	assert.Empty(t, Sort([]Record{}, SortConfig{Type: SortBySize}))
}

func TestSortTypeText(t *testing.T) {
	for _, st := range []SortType{SortByName, SortByDateAdded, SortByDateCreated, SortBySize} {
		text, err := st.MarshalText()
		require.NoError(t, err)

		var parsed SortType
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, st, parsed)
	}

	_, err := ParseSortType("ratio")
	assert.Error(t, err)

	parsed, err := ParseSortType(" DateAdded ")
	require.NoError(t, err)
	assert.Equal(t, SortByDateAdded, parsed)

	data, err := json.Marshal(SortConfig{Type: SortBySize, Grouped: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"size","grouped":true,"reversed":false}`, string(data))
}

func TestGroup(t *testing.T) {
	records := []Record{
		{ID: "1", Name: "a", DisplayState: StateSeeding},
		{ID: "2", Name: "b", DisplayState: StateDownloading},
		{ID: "3", Name: "c", DisplayState: StateUnknown},
		{ID: "4", Name: "d", DisplayState: StateSeeding},
		{ID: "5", Name: "e", DisplayState: StatePaused},
	}

	t.Run("ungrouped is one headerless section", func(t *testing.T) {
		sections := Group(records, false)
		require.Len(t, sections, 1)
		assert.Nil(t, sections[0].Header)
		assert.Equal(t, records, sections[0].Records)
	})

	t.Run("grouped partitions by display state", func(t *testing.T) {
		sections := Group(records, true)
		require.Len(t, sections, 4)

		headers := make([]string, 0, len(sections))
		total := 0
		for _, s := range sections {
			require.NotNil(t, s.Header)
			headers = append(headers, *s.Header)
			total += s.Len()
			for _, r := range s.Records {
				assert.Equal(t, *s.Header, r.DisplayState.String())
			}
		}

		assert.Equal(t, []string{"", "Downloading", "Paused", "Seeding"}, headers)
		assert.Equal(t, len(records), total)
		assert.Equal(t, []string{"a", "d"}, names(sections[3].Records))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Len(t, Group(nil, false), 1)
		assert.Empty(t, Group(nil, true))
	})
}

func TestDisplayStateLabels(t *testing.T) {
	assert.Equal(t, "", StateUnknown.String())
	assert.Equal(t, "Fetching Metadata", StateFetchingMetadata.String())

	var s DisplayState
	require.NoError(t, s.UnmarshalText([]byte("Checking Files")))
	assert.Equal(t, StateCheckingFiles, s)

	data, err := json.Marshal(Record{ID: "x", DisplayState: StateSeeding})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"displayState":"Seeding"`)
}

func TestDeriveIsDeterministic(t *testing.T) {
	records := map[TorrentID]Record{
		"c": {ID: "c", Name: "same", TotalWanted: 1},
		"a": {ID: "a", Name: "same", TotalWanted: 1},
		"b": {ID: "b", Name: "other", TotalWanted: 2},
	}
	cfg := SortConfig{Type: SortBySize, Grouped: true}

	first := Derive(records, "", cfg)
	second := Derive(records, "", cfg)
	assert.Equal(t, first, second)
	assert.Equal(t, fingerprint(first), fingerprint(second))

	require.Len(t, first, 1)
	ids := []TorrentID{}
	for _, r := range first[0].Records {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []TorrentID{"b", "a", "c"}, ids)
}

func TestFingerprintDetectsChanges(t *testing.T) {
	records := map[TorrentID]Record{
		"a": {ID: "a", Name: "alpha", CanPause: true},
	}
	base := fingerprint(Derive(records, "", DefaultSortConfig()))

	records["a"] = Record{ID: "a", Name: "alpha", CanResume: true}
	assert.NotEqual(t, base, fingerprint(Derive(records, "", DefaultSortConfig())))

	assert.NotEqual(t,
		fingerprint([]Section{{Records: []Record{{ID: "ab", Name: "c"}}}}),
		fingerprint([]Section{{Records: []Record{{ID: "a", Name: "bc"}}}}),
	)
}
