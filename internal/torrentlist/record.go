// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package torrentlist derives a filtered, sorted and optionally grouped view of a
// live torrent set and drives bulk commands from a multi-select selection.
package torrentlist

import (
	"strings"
	"time"
)

// TorrentID identifies a torrent across snapshots (the info hash).
type TorrentID string

// Record is a read-only snapshot of a single torrent as seen by the list.
type Record struct {
	ID           TorrentID    `json:"id"`
	Name         string       `json:"name"`
	AddedDate    time.Time    `json:"addedDate"`
	CreationDate *time.Time   `json:"creationDate,omitempty"`
	TotalWanted  int64        `json:"totalWanted"`
	CanResume    bool         `json:"canResume"`
	CanPause     bool         `json:"canPause"`
	DisplayState DisplayState `json:"displayState"`
}

// DisplayState is the user-facing state of a torrent. Its label doubles as the
// header of the group the torrent lands in when grouping is enabled.
type DisplayState int

const (
	StateUnknown DisplayState = iota
	StateCheckingFiles
	StateFetchingMetadata
	StateDownloading
	StateSeeding
	StateFinished
	StatePaused
	StateQueued
	StateAllocating
	StateMoving
	StateError
)

var displayStateLabels = map[DisplayState]string{
	StateUnknown:          "",
	StateCheckingFiles:    "Checking Files",
	StateFetchingMetadata: "Fetching Metadata",
	StateDownloading:      "Downloading",
	StateSeeding:          "Seeding",
	StateFinished:         "Finished",
	StatePaused:           "Paused",
	StateQueued:           "Queued",
	StateAllocating:       "Allocating",
	StateMoving:           "Moving",
	StateError:            "Error",
}

func (s DisplayState) String() string {
	return displayStateLabels[s]
}

func (s DisplayState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *DisplayState) UnmarshalText(text []byte) error {
	label := strings.TrimSpace(string(text))
	for state, l := range displayStateLabels {
		if l == label {
			*s = state
			return nil
		}
	}
	*s = StateUnknown
	return nil
}
