// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/quilist/internal/torrentlist"
)

const namespace = "quilist"

// Manager owns the registry and every collector exposed by quilist.
type Manager struct {
	registry *prometheus.Registry

	statesPublished prometheus.Counter
	records         prometheus.Gauge
	visibleRecords  prometheus.Gauge
	sections        prometheus.Gauge
	selected        prometheus.Gauge
	commands        *prometheus.CounterVec
	syncErrors      prometheus.Counter
	clientHealthy   prometheus.Gauge
}

func NewManager() *Manager {
	m := &Manager{
		registry: prometheus.NewRegistry(),

		statesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "list_states_published_total",
			Help:      "Total number of torrent list states published after a recompute.",
		}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "list_records",
			Help:      "Number of torrents reported by the record source.",
		}),
		visibleRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "list_visible_records",
			Help:      "Number of torrents left after applying the search query.",
		}),
		sections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "list_sections",
			Help:      "Number of sections in the rendered list.",
		}),
		selected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "list_selected_records",
			Help:      "Number of visible selected torrents.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Total torrent commands sent to qBittorrent by action and result.",
		}, []string{"action", "result"}),
		syncErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_errors_total",
			Help:      "Total qBittorrent maindata sync failures.",
		}),
		clientHealthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "qbittorrent_healthy",
			Help:      "Whether the last qBittorrent sync succeeded (1) or failed (0).",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.statesPublished,
		m.records,
		m.visibleRecords,
		m.sections,
		m.selected,
		m.commands,
		m.syncErrors,
		m.clientHealthy,
	)

	return m
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}

// ObserveState records the gauges of a published list state.
func (m *Manager) ObserveState(state *torrentlist.State) {
	if m == nil || state == nil {
		return
	}
	m.statesPublished.Inc()
	m.records.Set(float64(state.Total))
	m.visibleRecords.Set(float64(state.Visible))
	m.sections.Set(float64(len(state.Sections)))
	m.selected.Set(float64(len(state.SelectedKeys)))
}

// WatchList feeds every published state of list into the collectors until ctx is done.
func (m *Manager) WatchList(ctx context.Context, list *torrentlist.List) {
	updates, unsubscribe := list.Subscribe()
	defer unsubscribe()

	log.Debug().Str("module", "metrics").Msg("Watching torrent list state")

	for {
		select {
		case <-ctx.Done():
			return
		case state := <-updates:
			m.ObserveState(state)
		}
	}
}

// CommandSent counts a torrent command. result is "success" or "error".
func (m *Manager) CommandSent(action torrentlist.Action, result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(string(action), result).Inc()
}

// SyncResult tracks the health of the qBittorrent sync loop.
func (m *Manager) SyncResult(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.syncErrors.Inc()
		m.clientHealthy.Set(0)
		return
	}
	m.clientHealthy.Set(1)
}
