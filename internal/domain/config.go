// Copyright (c) 2026, the seedbridge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

type Config struct {
	Version string `mapstructure:"-"`

	LogLevel      string `mapstructure:"logLevel"`
	LogPath       string `mapstructure:"logPath"`
	LogMaxSize    int    `mapstructure:"logMaxSize"`
	LogMaxBackups int    `mapstructure:"logMaxBackups"`

	// StagingDir is where accepted downloads land and where shards are written.
	StagingDir string `mapstructure:"stagingDir"`

	// CacheDir holds the response cache database and fetched torrent files.
	CacheDir      string `mapstructure:"cacheDir"`
	CacheTTLHours int    `mapstructure:"cacheTTLHours"`

	// Timid asks for confirmation on every interaction, including searches.
	Timid bool `mapstructure:"timid"`

	// CheckInfohash skips candidates whose torrent is already in the client.
	CheckInfohash bool `mapstructure:"checkInfohash"`

	// SearchFolderNames retries unmatched releases with a search for the
	// tracker folder name. Costs extra peer-network queries.
	SearchFolderNames bool `mapstructure:"searchFolderNames"`

	AllowTrumpable   bool     `mapstructure:"allowTrumpable"`
	AllowedFormats   []string `mapstructure:"allowedFormats"`
	AllowedEncodings []string `mapstructure:"allowedEncodings"`

	Tracker     TrackerConfig     `mapstructure:"tracker"`
	Soulseek    SoulseekConfig    `mapstructure:"soulseek"`
	QBittorrent QBittorrentConfig `mapstructure:"qbittorrent"`
	Matching    MatchingConfig    `mapstructure:"matching"`
	Retry       RetryConfig       `mapstructure:"retry"`
}

type TrackerConfig struct {
	URL      string `mapstructure:"url"`
	APIKey   string `mapstructure:"apiKey"`
	MaxPages int    `mapstructure:"maxPages"`
}

type SoulseekConfig struct {
	URL             string `mapstructure:"url"`
	APIKey          string `mapstructure:"apiKey"`
	SearchTimeoutMs int    `mapstructure:"searchTimeoutMs"`
	ResponseLimit   int    `mapstructure:"responseLimit"`
}

type QBittorrentConfig struct {
	Host          string `mapstructure:"host"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	TLSSkipVerify bool   `mapstructure:"tlsSkipVerify"`

	// Remote/local path prefix mapping for clients running elsewhere.
	LocalPathPrefix  string `mapstructure:"localPathPrefix"`
	RemotePathPrefix string `mapstructure:"remotePathPrefix"`
}

type MatchingConfig struct {
	// AcceptThreshold is the minimum aggregate score for unattended acceptance.
	AcceptThreshold float64 `mapstructure:"acceptThreshold"`
	// AmbiguityMargin: a runner-up within this margin of the top score forces a prompt.
	AmbiguityMargin float64 `mapstructure:"ambiguityMargin"`
	// FloorScore is the minimum aggregate score worth presenting at all.
	FloorScore float64 `mapstructure:"floorScore"`
	// MaxNameDistance is the normalized edit distance ceiling for name-only alignments.
	MaxNameDistance float64 `mapstructure:"maxNameDistance"`
}

type RetryConfig struct {
	MaxAttempts uint `mapstructure:"maxAttempts"`
	BaseDelayMs int  `mapstructure:"baseDelayMs"`
	MaxDelayMs  int  `mapstructure:"maxDelayMs"`
}
