// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/autobrr/quilist/internal/torrentlist"
)

func TestObserveState(t *testing.T) {
	m := NewManager()

	m.ObserveState(&torrentlist.State{
		Sections:     []torrentlist.Section{{}, {}},
		SelectedKeys: []torrentlist.SelectionKey{{Section: 0, Row: 1}},
		Total:        12,
		Visible:      7,
	})

	assert.Equal(t, float64(1), testutil.ToFloat64(m.statesPublished))
	assert.Equal(t, float64(12), testutil.ToFloat64(m.records))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.visibleRecords))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.sections))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.selected))
}

func TestCommandSentAndSyncResult(t *testing.T) {
	m := NewManager()

	m.CommandSent(torrentlist.ActionPause, "success")
	m.CommandSent(torrentlist.ActionPause, "success")
	m.CommandSent(torrentlist.ActionRemove, "error")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.commands.WithLabelValues("pause", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.commands.WithLabelValues("remove", "error")))

	m.SyncResult(nil)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.clientHealthy))

	m.SyncResult(errors.New("connection refused"))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.clientHealthy))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.syncErrors))
}

func TestNilManagerIsSafe(t *testing.T) {
	var m *Manager
	assert.NotPanics(t, func() {
		m.ObserveState(&torrentlist.State{})
		m.CommandSent(torrentlist.ActionResume, "success")
		m.SyncResult(nil)
	})
}
