// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrentlist

import (
	"cmp"
	"context"
	"slices"
)

// SelectionKey addresses a row of the rendered list.
type SelectionKey struct {
	Section int `json:"section"`
	Row     int `json:"row"`
}

func compareKeys(a, b SelectionKey) int {
	if c := cmp.Compare(a.Section, b.Section); c != 0 {
		return c
	}
	return cmp.Compare(a.Row, b.Row)
}

// Resolve looks up the record at key. Keys outside the sections resolve to false.
func Resolve(sections []Section, key SelectionKey) (Record, bool) {
	if key.Section < 0 || key.Section >= len(sections) {
		return Record{}, false
	}
	records := sections[key.Section].Records
	if key.Row < 0 || key.Row >= len(records) {
		return Record{}, false
	}
	return records[key.Row], true
}

// Select adds the records at keys to the selection. Stale keys are ignored.
func (l *List) Select(ctx context.Context, keys ...SelectionKey) error {
	return l.SelectAt(ctx, 0, keys...)
}

// SelectAt is Select pinned to a published state version; see DoAt.
func (l *List) SelectAt(ctx context.Context, version uint64, keys ...SelectionKey) error {
	return l.DoAt(ctx, version, func() {
		changed := false
		for _, key := range keys {
			record, ok := Resolve(l.sections, key)
			if !ok {
				continue
			}
			if _, exists := l.selection[record.ID]; !exists {
				l.selection[record.ID] = struct{}{}
				changed = true
			}
		}
		if changed {
			l.publish()
		}
	})
}

// Deselect removes the records at keys from the selection. Stale keys are ignored.
func (l *List) Deselect(ctx context.Context, keys ...SelectionKey) error {
	return l.DeselectAt(ctx, 0, keys...)
}

// DeselectAt is Deselect pinned to a published state version; see DoAt.
func (l *List) DeselectAt(ctx context.Context, version uint64, keys ...SelectionKey) error {
	return l.DoAt(ctx, version, func() {
		changed := false
		for _, key := range keys {
			record, ok := Resolve(l.sections, key)
			if !ok {
				continue
			}
			if _, exists := l.selection[record.ID]; exists {
				delete(l.selection, record.ID)
				changed = true
			}
		}
		if changed {
			l.publish()
		}
	})
}

// SetSelection replaces the selection with the records at keys.
func (l *List) SetSelection(ctx context.Context, keys ...SelectionKey) error {
	return l.SetSelectionAt(ctx, 0, keys...)
}

// SetSelectionAt is SetSelection pinned to a published state version; see DoAt.
func (l *List) SetSelectionAt(ctx context.Context, version uint64, keys ...SelectionKey) error {
	return l.DoAt(ctx, version, func() {
		next := make(map[TorrentID]struct{}, len(keys))
		for _, key := range keys {
			if record, ok := Resolve(l.sections, key); ok {
				next[record.ID] = struct{}{}
			}
		}
		l.selection = next
		l.publish()
	})
}

// SelectAll selects every visible record.
func (l *List) SelectAll(ctx context.Context) error {
	return l.Do(ctx, func() {
		for _, section := range l.sections {
			for _, record := range section.Records {
				l.selection[record.ID] = struct{}{}
			}
		}
		l.publish()
	})
}

// ClearSelection empties the selection, including records hidden by the query.
func (l *List) ClearSelection(ctx context.Context) error {
	return l.Do(ctx, func() {
		if len(l.selection) == 0 {
			return
		}
		l.selection = make(map[TorrentID]struct{})
		l.publish()
	})
}

// SelectedRecords returns the selected records currently visible, in list order.
func (l *List) SelectedRecords(ctx context.Context) ([]Record, error) {
	var records []Record
	err := l.Do(ctx, func() {
		records = l.selectedRecords()
	})
	return records, err
}

// Capability reports whether any visible selected record satisfies pred.
func (l *List) Capability(ctx context.Context, pred func(Record) bool) (bool, error) {
	var result bool
	err := l.Do(ctx, func() {
		result = l.capability(l.selectedKeys(), pred)
	})
	return result, err
}

// selectedKeys maps the selected identities onto the current sections. Selected
// records hidden by the query have no key and are skipped.
func (l *List) selectedKeys() []SelectionKey {
	keys := make([]SelectionKey, 0, len(l.selection))
	if len(l.selection) == 0 {
		return keys
	}

	for s, section := range l.sections {
		for r, record := range section.Records {
			if _, ok := l.selection[record.ID]; ok {
				keys = append(keys, SelectionKey{Section: s, Row: r})
			}
		}
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

func (l *List) selectedRecords() []Record {
	keys := l.selectedKeys()
	records := make([]Record, 0, len(keys))
	for _, key := range keys {
		if record, ok := Resolve(l.sections, key); ok {
			records = append(records, record)
		}
	}
	return records
}

func (l *List) capability(keys []SelectionKey, pred func(Record) bool) bool {
	for _, key := range keys {
		if record, ok := Resolve(l.sections, key); ok && pred(record) {
			return true
		}
	}
	return false
}

// pruneSelection drops identities that left the record source.
func (l *List) pruneSelection() {
	for id := range l.selection {
		if _, ok := l.records[id]; !ok {
			delete(l.selection, id)
		}
	}
}
