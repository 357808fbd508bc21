// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	minimumWebAPIVersion = semver.MustParse("2.0.0")
	stopCommandsVersion  = semver.MustParse("2.11.0")
)

var ErrUnsupportedVersion = errors.New("unsupported qBittorrent WebAPI version")

// Config holds what is needed to reach a single qBittorrent instance.
type Config struct {
	Host          string
	Username      string
	Password      string
	BasicUser     string
	BasicPass     string
	TLSSkipVerify bool
	Timeout       time.Duration
}

type Client struct {
	*qbt.Client
	host            string
	webAPIVersion   string
	usesStopCommand bool
	lastHealthCheck time.Time
	isHealthy       bool
	mu              sync.RWMutex
	healthMu        sync.RWMutex
}

// NewClient logs in to qBittorrent, retrying transient failures, and checks the
// WebAPI version.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	qcfg := qbt.Config{
		Host:          cfg.Host,
		Username:      cfg.Username,
		Password:      cfg.Password,
		Timeout:       int(timeout.Seconds()),
		TLSSkipVerify: cfg.TLSSkipVerify,
	}
	if cfg.BasicUser != "" {
		qcfg.BasicUser = cfg.BasicUser
		qcfg.BasicPass = cfg.BasicPass
	}

	qbtClient := qbt.NewClient(qcfg)

	err := retry.Do(
		func() error {
			loginCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return qbtClient.LoginCtx(loginCtx)
		},
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(2*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Str("host", cfg.Host).Msg("Failed to log in to qBittorrent, retrying")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qBittorrent instance: %w", err)
	}

	client := &Client{
		Client:          qbtClient,
		host:            cfg.Host,
		lastHealthCheck: time.Now(),
		isHealthy:       true,
	}

	if err := client.RefreshCapabilities(ctx); err != nil {
		return nil, err
	}

	log.Debug().
		Str("host", cfg.Host).
		Str("webAPIVersion", client.GetWebAPIVersion()).
		Bool("usesStopCommand", client.UsesStopCommand()).
		Bool("tlsSkipVerify", cfg.TLSSkipVerify).
		Msg("qBittorrent client created successfully")

	return client, nil
}

// RefreshCapabilities fetches the WebAPI version and rejects instances that are too old.
func (c *Client) RefreshCapabilities(ctx context.Context) error {
	version, err := c.Client.GetWebAPIVersionCtx(ctx)
	if err != nil {
		return errors.Wrap(err, "could not get WebAPI version")
	}

	version = strings.TrimSpace(version)
	if version == "" {
		return fmt.Errorf("web API version is empty")
	}

	return c.applyVersion(version)
}

func (c *Client) applyVersion(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return errors.Wrapf(err, "could not parse WebAPI version %q", version)
	}
	if v.LessThan(minimumWebAPIVersion) {
		return errors.Wrapf(ErrUnsupportedVersion, "%s is older than %s", v, minimumWebAPIVersion)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.webAPIVersion = version
	c.usesStopCommand = !v.LessThan(stopCommandsVersion)
	return nil
}

func (c *Client) GetWebAPIVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.webAPIVersion
}

// UsesStopCommand reports whether the instance names pause and resume stop and start.
func (c *Client) UsesStopCommand() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.usesStopCommand
}

func (c *Client) GetHost() string {
	return c.host
}

func (c *Client) updateHealthStatus(healthy bool) {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()
	c.isHealthy = healthy
	c.lastHealthCheck = time.Now()
}

func (c *Client) IsHealthy() bool {
	c.healthMu.RLock()
	defer c.healthMu.RUnlock()
	return c.isHealthy
}

func (c *Client) GetLastHealthCheck() time.Time {
	c.healthMu.RLock()
	defer c.healthMu.RUnlock()
	return c.lastHealthCheck
}
