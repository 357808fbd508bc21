// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/autobrr/quilist/internal/api"
	"github.com/autobrr/quilist/internal/api/ws"
	"github.com/autobrr/quilist/internal/buildinfo"
	"github.com/autobrr/quilist/internal/config"
	"github.com/autobrr/quilist/internal/database"
	"github.com/autobrr/quilist/internal/domain"
	"github.com/autobrr/quilist/internal/metrics"
	"github.com/autobrr/quilist/internal/models"
	"github.com/autobrr/quilist/internal/qbittorrent"
	"github.com/autobrr/quilist/internal/torrentlist"
)

func main() {
	config.InitDefaultLogger(buildinfo.Version)

	var rootCmd = &cobra.Command{
		Use:   "quilist",
		Short: "A live, searchable torrent list for qBittorrent",
		Long: `quilist - a self-hosted torrent list for a qBittorrent instance with
search, sorting, grouping by state, multi-select and bulk actions.`,
	}

	rootCmd.Version = buildinfo.Version

	rootCmd.AddCommand(RunServeCommand())
	rootCmd.AddCommand(RunVersionCommand())
	rootCmd.AddCommand(RunGenerateConfigCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RunServeCommand() *cobra.Command {
	var (
		configDir string
		dataDir   string
		logPath   string
	)

	var command = &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
	}

	command.Flags().StringVar(&configDir, "config-dir", "", "config directory path (default is OS-specific: ~/.config/quilist/ or %APPDATA%\\quilist\\). Can also be a direct path to a .toml file")
	command.Flags().StringVar(&dataDir, "data-dir", "", "data directory for the database (default is next to config file)")
	command.Flags().StringVar(&logPath, "log-path", "", "log file path (default is stdout)")

	command.Run = func(cmd *cobra.Command, args []string) {
		app := NewApplication(configDir, dataDir, logPath)
		if err := app.runServer(); err != nil {
			log.Error().Err(err).Msg("Server stopped with error")
			os.Exit(1)
		}
	}

	return command
}

func RunVersionCommand() *cobra.Command {
	var command = &cobra.Command{
		Use:   "version",
		Short: "Print the version of quilist",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(buildinfo.String())
		},
	}

	return command
}

func RunGenerateConfigCommand() *cobra.Command {
	var configDir string

	command := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate a default configuration file",
		Long: `Generate a default configuration file without starting the server.

If no --config-dir is specified, uses the OS-specific default location:
- Linux/macOS: ~/.config/quilist/config.toml
- Windows: %APPDATA%\quilist\config.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var configPath string
			switch {
			case configDir == "":
				configPath = filepath.Join(config.GetDefaultConfigDir(), "config.toml")
			case strings.HasSuffix(strings.ToLower(configDir), ".toml"):
				configPath = configDir
			default:
				if info, err := os.Stat(configDir); err == nil && !info.IsDir() {
					configPath = configDir
				} else {
					configPath = filepath.Join(configDir, "config.toml")
				}
			}

			if _, err := os.Stat(configPath); err == nil {
				cmd.Printf("Configuration file already exists at: %s\n", configPath)
				cmd.Println("Skipping generation to avoid overwriting existing configuration.")
				return nil
			}

			if err := config.WriteDefaultConfig(configPath); err != nil {
				return fmt.Errorf("failed to create configuration file: %w", err)
			}

			cmd.Printf("Configuration file created successfully at: %s\n", configPath)
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "",
		"config directory or file path (defaults to OS-specific location)")

	return command
}

type Application struct {
	configDir string
	dataDir   string
	logPath   string
}

func NewApplication(configDir, dataDir, logPath string) *Application {
	return &Application{
		configDir: configDir,
		dataDir:   dataDir,
		logPath:   logPath,
	}
}

func (app *Application) runServer() error {
	cfg, err := config.New(app.configDir, buildinfo.Version)
	if err != nil {
		return errors.Wrap(err, "failed to initialize configuration")
	}

	if app.dataDir != "" {
		cfg.SetDataDir(app.dataDir)
	}
	if app.logPath != "" {
		cfg.Config.LogPath = app.logPath
	}

	cfg.ApplyLogConfig()

	log.Info().Str("version", buildinfo.Version).Msg("Starting quilist")

	db, err := database.New(cfg.GetDatabasePath())
	if err != nil {
		return errors.Wrap(err, "failed to initialize database")
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fallbackSort := defaultSortConfig(cfg.Config.DefaultSort)
	settingsStore := models.NewListSettingsStore(db, fallbackSort)
	initialSort := fallbackSort
	if settings, err := settingsStore.Get(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to load list settings, using default sort")
	} else {
		initialSort = settings.Sort
	}

	var metricsManager *metrics.Manager
	if cfg.Config.MetricsEnabled {
		metricsManager = metrics.NewManager()
	}

	client, err := qbittorrent.NewClient(ctx, qbittorrent.Config{
		Host:          cfg.Config.QbittorrentHost,
		Username:      cfg.Config.QbittorrentUsername,
		Password:      cfg.Config.QbittorrentPassword,
		BasicUser:     cfg.Config.QbittorrentBasicUser,
		BasicPass:     cfg.Config.QbittorrentBasicPass,
		TLSSkipVerify: cfg.Config.QbittorrentTLSSkipVerify,
	})
	if err != nil {
		return err
	}

	// the source feeds the list and the commander resyncs through the source,
	// so the list is bound to the sink after construction
	var list *torrentlist.List
	source := qbittorrent.NewSource(client, qbittorrent.SinkFunc(func(records map[torrentlist.TorrentID]torrentlist.Record) {
		list.UpdateRecords(records)
	}), metricsManager, cfg.SyncInterval())

	commander := qbittorrent.NewCommander(client, source, metricsManager)
	defer commander.Close()

	persistSort, persisterDone := settingsStore.SortPersister(ctx)
	list = torrentlist.New(commander,
		torrentlist.WithSortConfig(initialSort),
		torrentlist.WithSortPersister(persistSort),
	)

	hub := ws.NewHub(list, cfg.BroadcastInterval())
	cfg.RegisterReloadListener(func(conf *domain.Config) {
		hub.SetInterval(time.Duration(conf.BroadcastInterval) * time.Millisecond)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return list.Run(gctx) })
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return source.Run(gctx) })
	if metricsManager != nil {
		g.Go(func() error {
			metricsManager.WatchList(gctx, list)
			return nil
		})
	}

	httpServer := api.NewServer(&api.Dependencies{
		Config:   cfg,
		Version:  buildinfo.Version,
		List:     list,
		Hub:      hub,
		Client:   client,
		Adder:    qbittorrent.NewAdder(client, source),
		Settings: settingsStore,
	})

	errorChannel := make(chan error, 2)
	serverReady := make(chan struct{}, 1)
	go func() {
		if err := httpServer.ListenAndServeReady(serverReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errorChannel <- err
		}
	}()

	select {
	case <-serverReady:
	case err := <-errorChannel:
		cancel()
		_ = g.Wait()
		<-persisterDone
		return errors.Wrap(err, "failed to start HTTP server")
	}

	var metricsServer *metrics.Server
	if metricsManager != nil {
		metricsServer = metrics.NewMetricsServer(metricsManager, cfg.Config.MetricsHost, cfg.Config.MetricsPort)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil {
				errorChannel <- err
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		log.Info().Msgf("got signal %v, shutting down server", sig.String())
	case runErr = <-errorChannel:
		log.Error().Err(runErr).Msg("got unexpected error from server")
	case <-gctx.Done():
		log.Error().Msg("torrent list pipeline stopped unexpectedly")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("got error during graceful http shutdown")
		runErr = err
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("got error during metrics server shutdown")
		}
	}

	cancel()
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	<-persisterDone

	log.Info().Msg("Server stopped")
	return runErr
}

func defaultSortConfig(name string) torrentlist.SortConfig {
	cfg := torrentlist.DefaultSortConfig()
	if strings.TrimSpace(name) == "" {
		return cfg
	}

	sortType, err := torrentlist.ParseSortType(name)
	if err != nil {
		log.Warn().Err(err).Str("defaultSort", name).Msg("Invalid default sort, falling back to name")
		return cfg
	}
	cfg.Type = sortType
	return cfg
}
