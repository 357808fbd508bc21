// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrentlist

import "context"

// Executor carries out torrent commands. Calls must return immediately; any
// work and error reporting happens on the executor's side.
type Executor interface {
	Resume(id TorrentID)
	Pause(id TorrentID)
	Rehash(id TorrentID)
	Remove(id TorrentID, deleteFiles bool)
}

// Action names a bulk command.
type Action string

const (
	ActionResume Action = "resume"
	ActionPause  Action = "pause"
	ActionRehash Action = "rehash"
	ActionRemove Action = "remove"
)

// ResumeSelected resumes every visible selected record that can be resumed and
// returns how many commands were sent.
func (l *List) ResumeSelected(ctx context.Context) (int, error) {
	return l.dispatch(ctx, ActionResume, func(r Record) bool { return r.CanResume }, func(id TorrentID) {
		l.executor.Resume(id)
	}, true)
}

// PauseSelected pauses every visible selected record that can be paused.
func (l *List) PauseSelected(ctx context.Context) (int, error) {
	return l.dispatch(ctx, ActionPause, func(r Record) bool { return r.CanPause }, func(id TorrentID) {
		l.executor.Pause(id)
	}, true)
}

// RehashSelected rechecks every visible selected record.
func (l *List) RehashSelected(ctx context.Context) (int, error) {
	return l.dispatch(ctx, ActionRehash, nil, func(id TorrentID) {
		l.executor.Rehash(id)
	}, false)
}

// RemoveSelected removes every visible selected record, optionally with its data.
func (l *List) RemoveSelected(ctx context.Context, deleteFiles bool) (int, error) {
	return l.dispatch(ctx, ActionRemove, nil, func(id TorrentID) {
		l.executor.Remove(id, deleteFiles)
	}, false)
}

// RemoveOne removes the record at key. A stale key sends nothing and reports false.
func (l *List) RemoveOne(ctx context.Context, key SelectionKey, deleteFiles bool) (bool, error) {
	return l.RemoveOneAt(ctx, 0, key, deleteFiles)
}

// RemoveOneAt is RemoveOne pinned to a published state version; see DoAt.
func (l *List) RemoveOneAt(ctx context.Context, version uint64, key SelectionKey, deleteFiles bool) (bool, error) {
	var sent bool
	err := l.DoAt(ctx, version, func() {
		record, ok := Resolve(l.sections, key)
		if !ok {
			l.log.Debug().Int("section", key.Section).Int("row", key.Row).Msg("Remove skipped, row no longer exists")
			return
		}
		l.executor.Remove(record.ID, deleteFiles)
		sent = true

		l.log.Debug().
			Str("hash", string(record.ID)).
			Bool("deleteFiles", deleteFiles).
			Msg("Dispatched single remove")
	})
	return sent, err
}

func (l *List) dispatch(ctx context.Context, action Action, gate func(Record) bool, send func(TorrentID), refresh bool) (int, error) {
	var count int
	err := l.Do(ctx, func() {
		for _, record := range l.selectedRecords() {
			if gate != nil && !gate(record) {
				continue
			}
			send(record.ID)
			count++
		}

		l.log.Debug().
			Str("action", string(action)).
			Int("selected", len(l.selection)).
			Int("dispatched", count).
			Msg("Dispatched bulk action")

		// resume and pause change what the selection can do next
		if refresh {
			l.publish()
		}
	})
	return count, err
}
