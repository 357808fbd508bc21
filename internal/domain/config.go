// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

type Config struct {
	Version string

	Host          string `toml:"host" mapstructure:"host"`
	Port          int    `toml:"port" mapstructure:"port"`
	BaseURL       string `toml:"baseUrl" mapstructure:"baseUrl"`
	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`
	DataDir       string `toml:"dataDir" mapstructure:"dataDir"`

	MetricsEnabled bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost    string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort    int    `toml:"metricsPort" mapstructure:"metricsPort"`

	QbittorrentHost          string `toml:"qbittorrentHost" mapstructure:"qbittorrentHost"`
	QbittorrentUsername      string `toml:"qbittorrentUsername" mapstructure:"qbittorrentUsername"`
	QbittorrentPassword      string `toml:"qbittorrentPassword" mapstructure:"qbittorrentPassword"`
	QbittorrentBasicUser     string `toml:"qbittorrentBasicUser" mapstructure:"qbittorrentBasicUser"`
	QbittorrentBasicPass     string `toml:"qbittorrentBasicPass" mapstructure:"qbittorrentBasicPass"`
	QbittorrentTLSSkipVerify bool   `toml:"qbittorrentTlsSkipVerify" mapstructure:"qbittorrentTlsSkipVerify"`

	// SyncInterval is the maindata poll period in milliseconds.
	SyncInterval int `toml:"syncInterval" mapstructure:"syncInterval"`

	// DefaultSort is used until a sort configuration has been persisted.
	DefaultSort string `toml:"defaultSort" mapstructure:"defaultSort"`

	// BroadcastInterval throttles websocket state pushes, in milliseconds.
	BroadcastInterval int `toml:"broadcastInterval" mapstructure:"broadcastInterval"`
}
