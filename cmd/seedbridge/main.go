// Copyright (c) 2026, the seedbridge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/seedbridge/seedbridge/internal/buildinfo"
	"github.com/seedbridge/seedbridge/internal/config"
	"github.com/seedbridge/seedbridge/internal/domain"
	"github.com/seedbridge/seedbridge/internal/fetchcache"
	"github.com/seedbridge/seedbridge/internal/gazelle"
	"github.com/seedbridge/seedbridge/internal/prompt"
	"github.com/seedbridge/seedbridge/internal/qbittorrent"
	"github.com/seedbridge/seedbridge/internal/services/snatch"
	"github.com/seedbridge/seedbridge/internal/services/transplant"
	"github.com/seedbridge/seedbridge/internal/slskd"
)

func main() {
	config.InitDefaultLogger(buildinfo.Version)

	var rootCmd = &cobra.Command{
		Use:   "seedbridge",
		Short: "Cross-seed albums from the Soulseek network against a Gazelle tracker",
		Long: `seedbridge matches a tracker's torrent file lists against Soulseek peers,
downloads matching album folders and registers the torrents for seeding.`,
	}

	rootCmd.Version = buildinfo.Version

	rootCmd.AddCommand(RunSnatchCommand())
	rootCmd.AddCommand(RunTransplantCommand())
	rootCmd.AddCommand(RunVersionCommand(buildinfo.Version))
	rootCmd.AddCommand(RunGenerateConfigCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RunSnatchCommand() *cobra.Command {
	var (
		configDir string
		timid     bool
	)

	command := &cobra.Command{
		Use:   "snatch <album-list.json>",
		Short: "Match an album list against tracker releases and Soulseek peers",
		Long: `Snatch reads a JSON album list (album/albumartist/original_year records),
resolves each album to tracker releases, searches the Soulseek network for
matching folders and enqueues accepted matches for download. Each accepted
match leaves a shard manifest in the staging directory for a later
transplant run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApplication(configDir, timid)
			if err != nil {
				return err
			}
			defer app.close()

			albums, err := domain.LoadAlbumList(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// A typed nil would slip past the service's nil check.
			var svc *snatch.Service
			if app.torrents != nil {
				svc = snatch.NewService(app.cfg.Config, app.tracker, app.peers, app.torrents, app.prompter)
			} else {
				svc = snatch.NewService(app.cfg.Config, app.tracker, app.peers, nil, app.prompter)
			}

			summary, err := svc.Run(ctx, albums)
			if err != nil {
				return err
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d albums failed", summary.Failed, summary.Albums)
			}
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "", "config directory or file path (defaults to OS-specific location)")
	command.Flags().BoolVar(&timid, "timid", false, "confirm every action, even routine ones")

	return command
}

func RunTransplantCommand() *cobra.Command {
	var (
		configDir string
		timid     bool
	)

	command := &cobra.Command{
		Use:   "transplant [folder ...]",
		Short: "Restore tracker file names in staged folders and register torrents",
		Long: `Transplant walks the staging directory for folders holding a shard
manifest, renames downloaded files back to the tracker's declared names,
then adds the torrent stopped to qBittorrent and forces a recheck. Explicit
folder paths restrict the run to those folders. Safe to rerun;
already-reconciled folders are left untouched.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApplication(configDir, timid)
			if err != nil {
				return err
			}
			defer app.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var svc *transplant.Service
			if app.torrents != nil {
				svc = transplant.NewService(app.cfg.Config, app.tracker, app.torrents, app.cache, app.prompter)
			} else {
				svc = transplant.NewService(app.cfg.Config, app.tracker, nil, app.cache, app.prompter)
			}

			summary, err := svc.Run(ctx, args...)
			if err != nil {
				return err
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d folders failed", summary.Failed, summary.Folders)
			}
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "", "config directory or file path (defaults to OS-specific location)")
	command.Flags().BoolVar(&timid, "timid", false, "confirm every action, even routine ones")

	return command
}

func RunVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of seedbridge",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

func RunGenerateConfigCommand() *cobra.Command {
	var configDir string

	command := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate a default configuration file",
		Long: `Generate a default configuration file without running anything.

If no --config-dir is specified, uses the OS-specific default location:
- Linux/macOS: ~/.config/seedbridge/config.toml
- Windows: %APPDATA%\seedbridge\config.toml

You can specify either a directory path or a direct file path:
- Directory: seedbridge generate-config --config-dir /path/to/config/
- File: seedbridge generate-config --config-dir /path/to/myconfig.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var configPath string
			if configDir != "" {
				if strings.HasSuffix(strings.ToLower(configDir), ".toml") {
					configPath = configDir
				} else if info, err := os.Stat(configDir); err == nil && !info.IsDir() {
					configPath = configDir
				} else {
					configPath = filepath.Join(configDir, "config.toml")
				}
			} else {
				configPath = filepath.Join(config.GetDefaultConfigDir(), "config.toml")
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

// application bundles the wired clients for one command invocation.
type application struct {
	cfg      *config.AppConfig
	cache    *fetchcache.Store
	tracker  *gazelle.Client
	peers    *slskd.Client
	torrents *qbittorrent.Client
	prompter prompt.Prompter
}

func newApplication(configDir string, timid bool) (*application, error) {
	cfg, err := config.New(configDir, buildinfo.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize configuration: %w", err)
	}

	if timid {
		cfg.Config.Timid = true
	}
	cfg.ApplyLogConfig()

	if cfg.Config.Tracker.URL == "" || cfg.Config.Tracker.APIKey == "" {
		return nil, fmt.Errorf("tracker.url and tracker.apiKey must be configured")
	}
	if err := os.MkdirAll(cfg.Config.StagingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	cachePath, err := cfg.GetCachePath()
	if err != nil {
		return nil, err
	}
	cache, err := fetchcache.Open(cachePath, time.Duration(cfg.Config.CacheTTLHours)*time.Hour)
	if err != nil {
		return nil, err
	}

	app := &application{
		cfg:   cfg,
		cache: cache,
		tracker: gazelle.NewClient(
			cfg.Config.Tracker.URL,
			cfg.Config.Tracker.APIKey,
			gazelle.WithResponseCache(cache),
		),
		peers: slskd.NewClient(
			cfg.Config.Soulseek.URL,
			cfg.Config.Soulseek.APIKey,
			time.Duration(cfg.Config.Soulseek.SearchTimeoutMs)*time.Millisecond,
			cfg.Config.Soulseek.ResponseLimit,
		),
		prompter: prompt.NewTerminal(cfg.Config.Timid),
	}

	// The torrent client is optional: without credentials the run still
	// matches and stages, it just cannot check or register torrents.
	if cfg.Config.QBittorrent.Host != "" && cfg.Config.QBittorrent.Username != "" {
		qb, err := qbittorrent.NewClient(
			context.Background(),
			cfg.Config.QBittorrent.Host,
			cfg.Config.QBittorrent.Username,
			cfg.Config.QBittorrent.Password,
			cfg.Config.QBittorrent.TLSSkipVerify,
			cfg.Config.QBittorrent.LocalPathPrefix,
			cfg.Config.QBittorrent.RemotePathPrefix,
		)
		if err != nil {
			log.Warn().Err(err).Msg("qBittorrent unavailable, continuing without it")
		} else {
			app.torrents = qb
		}
	}

	return app, nil
}

func (a *application) close() {
	if a.cache != nil {
		a.cache.Close()
	}
}
