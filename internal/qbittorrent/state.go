// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"time"

	qbt "github.com/autobrr/go-qbittorrent"

	"github.com/autobrr/quilist/internal/torrentlist"
)

// displayStates maps qBittorrent states onto list display states.
var displayStates = map[qbt.TorrentState]torrentlist.DisplayState{
	qbt.TorrentStateDownloading:        torrentlist.StateDownloading,
	qbt.TorrentStateForcedDl:           torrentlist.StateDownloading,
	qbt.TorrentStateStalledDl:          torrentlist.StateDownloading,
	qbt.TorrentStateMetaDl:             torrentlist.StateFetchingMetadata,
	qbt.TorrentStateUploading:          torrentlist.StateSeeding,
	qbt.TorrentStateForcedUp:           torrentlist.StateSeeding,
	qbt.TorrentStateStalledUp:          torrentlist.StateSeeding,
	qbt.TorrentStatePausedDl:           torrentlist.StatePaused,
	qbt.TorrentStateStoppedDl:          torrentlist.StatePaused,
	qbt.TorrentStatePausedUp:           torrentlist.StateFinished,
	qbt.TorrentStateStoppedUp:          torrentlist.StateFinished,
	qbt.TorrentStateQueuedDl:           torrentlist.StateQueued,
	qbt.TorrentStateQueuedUp:           torrentlist.StateQueued,
	qbt.TorrentStateCheckingDl:         torrentlist.StateCheckingFiles,
	qbt.TorrentStateCheckingUp:         torrentlist.StateCheckingFiles,
	qbt.TorrentStateCheckingResumeData: torrentlist.StateCheckingFiles,
	qbt.TorrentStateAllocating:         torrentlist.StateAllocating,
	qbt.TorrentStateMoving:             torrentlist.StateMoving,
	qbt.TorrentStateError:              torrentlist.StateError,
	qbt.TorrentStateMissingFiles:       torrentlist.StateError,
}

// DisplayState returns the list display state for a qBittorrent state.
func DisplayState(state qbt.TorrentState) torrentlist.DisplayState {
	if ds, ok := displayStates[state]; ok {
		return ds
	}
	return torrentlist.StateUnknown
}

// canResume is true for torrents that are stopped, finished or errored.
func canResume(state qbt.TorrentState) bool {
	switch state {
	case qbt.TorrentStatePausedDl, qbt.TorrentStatePausedUp,
		qbt.TorrentStateStoppedDl, qbt.TorrentStateStoppedUp,
		qbt.TorrentStateError, qbt.TorrentStateMissingFiles:
		return true
	default:
		return false
	}
}

// ToRecord projects a qBittorrent torrent onto a list record. created may be nil.
func ToRecord(torrent qbt.Torrent, created *time.Time) torrentlist.Record {
	resumable := canResume(torrent.State)

	wanted := torrent.Size
	if wanted < 0 {
		wanted = 0
	}

	return torrentlist.Record{
		ID:           torrentlist.TorrentID(torrent.Hash),
		Name:         torrent.Name,
		AddedDate:    time.Unix(torrent.AddedOn, 0),
		CreationDate: created,
		TotalWanted:  wanted,
		CanResume:    resumable,
		CanPause:     !resumable,
		DisplayState: DisplayState(torrent.State),
	}
}
