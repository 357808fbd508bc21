// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/quilist/internal/torrentlist"
)

func TestDefaultSortConfig(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want torrentlist.SortType
	}{
		{name: "empty", in: "", want: torrentlist.SortByName},
		{name: "size", in: "size", want: torrentlist.SortBySize},
		{name: "case insensitive", in: "DateCreated", want: torrentlist.SortByDateCreated},
		{name: "unknown falls back", in: "ratio", want: torrentlist.SortByName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultSortConfig(tt.in)
			assert.Equal(t, tt.want, cfg.Type)
			assert.False(t, cfg.Grouped)
			assert.False(t, cfg.Reversed)
		})
	}
}

func TestGenerateConfigCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cfg")

	cmd := RunGenerateConfigCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config-dir", dir})
	require.NoError(t, cmd.Execute())

	_, err := os.Stat(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "created successfully")

	out.Reset()
	cmd = RunGenerateConfigCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config-dir", dir})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "already exists")
}
