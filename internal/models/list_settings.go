// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/quilist/internal/dbinterface"
	"github.com/autobrr/quilist/internal/torrentlist"
)

type ListSettings struct {
	Sort      torrentlist.SortConfig `json:"sort"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// ListSettingsStore persists the torrent list preferences in a single row.
type ListSettingsStore struct {
	db       dbinterface.Querier
	defaults torrentlist.SortConfig
}

func NewListSettingsStore(db dbinterface.Querier, defaults torrentlist.SortConfig) *ListSettingsStore {
	return &ListSettingsStore{db: db, defaults: defaults}
}

// Get returns the stored settings, creating them from the defaults if none exist.
func (s *ListSettingsStore) Get(ctx context.Context) (*ListSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT sort_config, created_at, updated_at
		FROM list_settings
		WHERE id = 1
	`)

	var ls ListSettings
	var sortJSON string

	err := row.Scan(&sortJSON, &ls.CreatedAt, &ls.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s.createDefault(ctx)
	}
	if err != nil {
		return nil, err
	}

	ls.Sort = s.defaults
	if sortJSON != "" && sortJSON != "{}" {
		var cfg torrentlist.SortConfig
		if err := json.Unmarshal([]byte(sortJSON), &cfg); err != nil {
			log.Warn().Err(err).Str("sortConfig", sortJSON).Msg("Stored sort config is invalid, using defaults")
		} else {
			ls.Sort = cfg
		}
	}

	return &ls, nil
}

// UpdateSort stores cfg as the current sort configuration.
func (s *ListSettingsStore) UpdateSort(ctx context.Context, cfg torrentlist.SortConfig) (*ListSettings, error) {
	sortJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sort config: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO list_settings (id, sort_config) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET sort_config = excluded.sort_config
	`, string(sortJSON))
	if err != nil {
		return nil, err
	}

	return s.Get(ctx)
}

func (s *ListSettingsStore) createDefault(ctx context.Context) (*ListSettings, error) {
	sortJSON, err := json.Marshal(s.defaults)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO list_settings (id, sort_config) VALUES (1, ?)
		ON CONFLICT(id) DO NOTHING
	`, string(sortJSON))
	if err != nil {
		return nil, err
	}

	return s.Get(ctx)
}

// SortPersister returns a callback suitable for torrentlist.WithSortPersister.
// Writes happen on a background goroutine, newest value wins. Once ctx is done
// any value still queued is written before the returned channel closes.
func (s *ListSettingsStore) SortPersister(ctx context.Context) (func(torrentlist.SortConfig), <-chan struct{}) {
	queue := make(chan torrentlist.SortConfig, 1)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				select {
				case cfg := <-queue:
					s.writeSort(ctx, cfg)
				default:
				}
				return
			case cfg := <-queue:
				s.writeSort(ctx, cfg)
			}
		}
	}()

	return func(cfg torrentlist.SortConfig) {
		// keep only the newest pending value
		for {
			select {
			case queue <- cfg:
				return
			default:
			}
			select {
			case <-queue:
			default:
			}
		}
	}, done
}

// writeSort outlives ctx cancellation so a write in progress at shutdown completes.
func (s *ListSettingsStore) writeSort(ctx context.Context, cfg torrentlist.SortConfig) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if _, err := s.UpdateSort(writeCtx, cfg); err != nil {
		log.Error().Err(err).Msg("Failed to persist sort config")
		return
	}
	log.Debug().Str("type", cfg.Type.String()).Bool("grouped", cfg.Grouped).Bool("reversed", cfg.Reversed).Msg("Persisted sort config")
}
