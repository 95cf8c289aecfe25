// Copyright (c) 2026, the seedbridge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/seedbridge/seedbridge/internal/domain"
)

var envPrefix = "SEEDBRIDGE__"

type AppConfig struct {
	Config  *domain.Config
	viper   *viper.Viper
	version string
}

func New(configDirOrPath string, versions ...string) (*AppConfig, error) {
	version := "dev"
	if len(versions) > 0 && strings.TrimSpace(versions[0]) != "" {
		version = versions[0]
	}

	c := &AppConfig{
		viper:   viper.New(),
		Config:  &domain.Config{},
		version: version,
	}

	c.defaults()

	if err := c.load(configDirOrPath); err != nil {
		return nil, err
	}

	c.loadFromEnv()

	if err := c.viper.Unmarshal(c.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	c.Config.Version = c.version

	return c, nil
}

func (c *AppConfig) defaults() {
	c.viper.SetDefault("logLevel", "INFO")
	c.viper.SetDefault("logPath", "")
	c.viper.SetDefault("logMaxSize", 50)
	c.viper.SetDefault("logMaxBackups", 3)

	c.viper.SetDefault("stagingDir", filepath.Join(xdg.UserDirs.Download, "seedbridge"))
	c.viper.SetDefault("cacheDir", filepath.Join(xdg.CacheHome, "seedbridge"))
	c.viper.SetDefault("cacheTTLHours", 24)

	c.viper.SetDefault("timid", false)
	c.viper.SetDefault("checkInfohash", true)
	c.viper.SetDefault("searchFolderNames", false)
	c.viper.SetDefault("allowTrumpable", false)
	c.viper.SetDefault("allowedFormats", []string{"FLAC"})
	c.viper.SetDefault("allowedEncodings", []string{"Lossless", "24bit Lossless"})

	c.viper.SetDefault("tracker.url", "")
	c.viper.SetDefault("tracker.apiKey", "")
	c.viper.SetDefault("tracker.maxPages", 3)

	c.viper.SetDefault("soulseek.url", "http://localhost:5030")
	c.viper.SetDefault("soulseek.apiKey", "")
	c.viper.SetDefault("soulseek.searchTimeoutMs", 30000)
	c.viper.SetDefault("soulseek.responseLimit", 100)

	c.viper.SetDefault("qbittorrent.host", "http://localhost:8080")
	c.viper.SetDefault("qbittorrent.username", "")
	c.viper.SetDefault("qbittorrent.password", "")
	c.viper.SetDefault("qbittorrent.tlsSkipVerify", false)
	c.viper.SetDefault("qbittorrent.localPathPrefix", "")
	c.viper.SetDefault("qbittorrent.remotePathPrefix", "")

	c.viper.SetDefault("matching.acceptThreshold", 0.8)
	c.viper.SetDefault("matching.ambiguityMargin", 0.1)
	c.viper.SetDefault("matching.floorScore", 0.3)
	c.viper.SetDefault("matching.maxNameDistance", 0.4)

	c.viper.SetDefault("retry.maxAttempts", 5)
	c.viper.SetDefault("retry.baseDelayMs", 2000)
	c.viper.SetDefault("retry.maxDelayMs", 60000)
}

func (c *AppConfig) load(configDirOrPath string) error {
	c.viper.SetConfigType("toml")

	if configDirOrPath != "" {
		configPath := c.resolveConfigPath(configDirOrPath)
		c.viper.SetConfigFile(configPath)

		if err := c.viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				if err := c.writeDefaultConfig(configPath); err != nil {
					return err
				}
				if err := c.viper.ReadInConfig(); err != nil {
					return fmt.Errorf("failed to read newly created config: %w", err)
				}
				return nil
			}
			return fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		c.viper.SetConfigName("config")
		c.viper.AddConfigPath(".")
		c.viper.AddConfigPath(GetDefaultConfigDir())

		if err := c.viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				defaultConfigPath := filepath.Join(GetDefaultConfigDir(), "config.toml")
				if err := c.writeDefaultConfig(defaultConfigPath); err != nil {
					return err
				}
				c.viper.SetConfigFile(defaultConfigPath)
				if err := c.viper.ReadInConfig(); err != nil {
					return fmt.Errorf("failed to read newly created config: %w", err)
				}
				return nil
			}
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	return nil
}

func (c *AppConfig) loadFromEnv() {
	// Explicit bindings only; AutomaticEnv reads every env var and picks up
	// unrelated deployment variables.
	c.viper.BindEnv("logLevel", envPrefix+"LOG_LEVEL")
	c.viper.BindEnv("logPath", envPrefix+"LOG_PATH")
	c.viper.BindEnv("logMaxSize", envPrefix+"LOG_MAX_SIZE")
	c.viper.BindEnv("logMaxBackups", envPrefix+"LOG_MAX_BACKUPS")
	c.viper.BindEnv("stagingDir", envPrefix+"STAGING_DIR")
	c.viper.BindEnv("cacheDir", envPrefix+"CACHE_DIR")
	c.viper.BindEnv("cacheTTLHours", envPrefix+"CACHE_TTL_HOURS")
	c.viper.BindEnv("timid", envPrefix+"TIMID")
	c.viper.BindEnv("checkInfohash", envPrefix+"CHECK_INFOHASH")
	c.viper.BindEnv("searchFolderNames", envPrefix+"SEARCH_FOLDER_NAMES")
	c.viper.BindEnv("allowTrumpable", envPrefix+"ALLOW_TRUMPABLE")

	c.viper.BindEnv("tracker.url", envPrefix+"TRACKER_URL")
	c.bindOrReadFromFile("tracker.apiKey", envPrefix+"TRACKER_API_KEY")
	c.viper.BindEnv("tracker.maxPages", envPrefix+"TRACKER_MAX_PAGES")

	c.viper.BindEnv("soulseek.url", envPrefix+"SOULSEEK_URL")
	c.bindOrReadFromFile("soulseek.apiKey", envPrefix+"SOULSEEK_API_KEY")
	c.viper.BindEnv("soulseek.searchTimeoutMs", envPrefix+"SOULSEEK_SEARCH_TIMEOUT_MS")
	c.viper.BindEnv("soulseek.responseLimit", envPrefix+"SOULSEEK_RESPONSE_LIMIT")

	c.viper.BindEnv("qbittorrent.host", envPrefix+"QBITTORRENT_HOST")
	c.viper.BindEnv("qbittorrent.username", envPrefix+"QBITTORRENT_USERNAME")
	c.bindOrReadFromFile("qbittorrent.password", envPrefix+"QBITTORRENT_PASSWORD")
	c.viper.BindEnv("qbittorrent.tlsSkipVerify", envPrefix+"QBITTORRENT_TLS_SKIP_VERIFY")
	c.viper.BindEnv("qbittorrent.localPathPrefix", envPrefix+"QBITTORRENT_LOCAL_PATH_PREFIX")
	c.viper.BindEnv("qbittorrent.remotePathPrefix", envPrefix+"QBITTORRENT_REMOTE_PATH_PREFIX")

	c.viper.BindEnv("matching.acceptThreshold", envPrefix+"MATCHING_ACCEPT_THRESHOLD")
	c.viper.BindEnv("matching.ambiguityMargin", envPrefix+"MATCHING_AMBIGUITY_MARGIN")
	c.viper.BindEnv("matching.floorScore", envPrefix+"MATCHING_FLOOR_SCORE")
	c.viper.BindEnv("matching.maxNameDistance", envPrefix+"MATCHING_MAX_NAME_DISTANCE")
}

func (c *AppConfig) writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		log.Debug().Msgf("Config file already exists at: %s", path)
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}

	configTemplate := `# config.toml - Auto-generated on first run

# Log level
# Default: "INFO"
# Options: "ERROR", "DEBUG", "INFO", "WARN", "TRACE"
logLevel = "{{ .logLevel }}"

# Log file path
# If not defined, logs to stdout
# Optional
#logPath = "log/seedbridge.log"

# Log rotation
# Maximum log file size in megabytes before rotation
# Default: {{ .logMaxSize }}
#logMaxSize = {{ .logMaxSize }}

# Number of rotated log files to retain (0 keeps all)
# Default: {{ .logMaxBackups }}
#logMaxBackups = {{ .logMaxBackups }}

# Staging directory
# Accepted downloads and their shard manifests land here. Point your
# Soulseek daemon's completed-downloads directory at the same place.
stagingDir = "{{ .stagingDir }}"

# Response cache
# Tracker metadata is cached on disk to stay friendly to its rate limit.
#cacheDir = "{{ .cacheDir }}"
#cacheTTLHours = {{ .cacheTTLHours }}

# Timid mode: confirm every action, even routine ones
# Default: false
#timid = false

# Skip releases whose torrent is already registered in qBittorrent
# Default: true
#checkInfohash = true

# Retry unmatched albums with a search for the tracker folder name.
# Costs one extra peer-network search per release.
# Default: false
#searchFolderNames = false

# Accept releases the tracker marks as trumpable
# Default: false
#allowTrumpable = false

# Format allow-list applied to tracker releases
#allowedFormats = ["FLAC"]
#allowedEncodings = ["Lossless", "24bit Lossless"]

[tracker]
# Gazelle tracker base URL, e.g. "https://tracker.example"
url = "{{ .trackerUrl }}"
# API key from your tracker profile
apiKey = ""
# Browse pages to scan per album
#maxPages = {{ .trackerMaxPages }}

[soulseek]
# slskd base URL
url = "{{ .soulseekUrl }}"
# slskd API key
apiKey = ""
# How long the daemon collects search responses
#searchTimeoutMs = {{ .soulseekSearchTimeoutMs }}
# Stop collecting after this many responses
#responseLimit = {{ .soulseekResponseLimit }}

[qbittorrent]
host = "{{ .qbittorrentHost }}"
username = ""
password = ""
#tlsSkipVerify = false
# Map local staging paths to the client's filesystem view when qBittorrent
# runs on another host or inside a container.
#localPathPrefix = ""
#remotePathPrefix = ""

[matching]
# Minimum aggregate score for unattended acceptance
#acceptThreshold = {{ .matchingAcceptThreshold }}
# A runner-up within this margin of the top score forces a prompt
#ambiguityMargin = {{ .matchingAmbiguityMargin }}
# Candidates below this score are never presented
#floorScore = {{ .matchingFloorScore }}
# Normalized edit distance ceiling for name-only file alignments
#maxNameDistance = {{ .matchingMaxNameDistance }}

[retry]
# Retries for rate-limited requests, with exponential backoff
#maxAttempts = {{ .retryMaxAttempts }}
#baseDelayMs = {{ .retryBaseDelayMs }}
#maxDelayMs = {{ .retryMaxDelayMs }}
`

	data := map[string]any{
		"logLevel":                c.viper.GetString("logLevel"),
		"logMaxSize":              c.viper.GetInt("logMaxSize"),
		"logMaxBackups":           c.viper.GetInt("logMaxBackups"),
		"stagingDir":              c.viper.GetString("stagingDir"),
		"cacheDir":                c.viper.GetString("cacheDir"),
		"cacheTTLHours":           c.viper.GetInt("cacheTTLHours"),
		"trackerUrl":              c.viper.GetString("tracker.url"),
		"trackerMaxPages":         c.viper.GetInt("tracker.maxPages"),
		"soulseekUrl":             c.viper.GetString("soulseek.url"),
		"soulseekSearchTimeoutMs": c.viper.GetInt("soulseek.searchTimeoutMs"),
		"soulseekResponseLimit":   c.viper.GetInt("soulseek.responseLimit"),
		"qbittorrentHost":         c.viper.GetString("qbittorrent.host"),
		"matchingAcceptThreshold": c.viper.GetFloat64("matching.acceptThreshold"),
		"matchingAmbiguityMargin": c.viper.GetFloat64("matching.ambiguityMargin"),
		"matchingFloorScore":      c.viper.GetFloat64("matching.floorScore"),
		"matchingMaxNameDistance": c.viper.GetFloat64("matching.maxNameDistance"),
		"retryMaxAttempts":        c.viper.GetInt("retry.maxAttempts"),
		"retryBaseDelayMs":        c.viper.GetInt("retry.baseDelayMs"),
		"retryMaxDelayMs":         c.viper.GetInt("retry.maxDelayMs"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse config template: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Info().Msgf("Created default config file: %s", path)
	return nil
}

// GetDefaultConfigDir returns the OS-specific config directory.
func GetDefaultConfigDir() string {
	// Docker containers commonly mount /config directly.
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig == "/config" {
		return xdgConfig
	}
	return filepath.Join(xdg.ConfigHome, "seedbridge")
}

func (c *AppConfig) ApplyLogConfig() {
	zerolog.TimeFieldFormat = time.RFC3339

	setLogLevel(c.Config.LogLevel)

	writer := c.baseLogWriter()

	if c.Config.LogPath != "" {
		multiWriter, err := setupLogFile(c.Config.LogPath, writer, c.Config.LogMaxSize, c.Config.LogMaxBackups)
		if err != nil {
			log.Error().Err(err).Msg("Failed to setup log file")
		} else {
			writer = multiWriter
		}
	}

	log.Logger = log.Logger.Output(writer)
}

func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Logger.Level(lvl)
}

func setupLogFile(path string, base io.Writer, maxSize, maxBackups int) (io.Writer, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	if maxSize <= 0 {
		maxSize = 50
	}

	if maxBackups < 0 {
		maxBackups = 0
	}

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
	}

	return io.MultiWriter(base, rotator), nil
}

func baseLogWriter(version string) io.Writer {
	if isDevBuild(version) {
		writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		writer.PartsOrder = []string{zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName}
		writer.FormatTimestamp = func(i any) string {
			if i == nil {
				return ""
			}
			return fmt.Sprint(i)
		}
		writer.FormatMessage = func(i any) string {
			if i == nil {
				return ""
			}
			msg := strings.TrimSpace(fmt.Sprint(i))
			if msg == "" {
				return ""
			}
			return msg
		}
		return writer
	}
	return os.Stderr
}

func (c *AppConfig) baseLogWriter() io.Writer {
	return baseLogWriter(c.version)
}

// DefaultLogWriter returns the base log writer for the provided version.
func DefaultLogWriter(version string) io.Writer {
	return baseLogWriter(version)
}

// InitDefaultLogger configures zerolog with the default writer for this version.
// This is used by CLI entry points before a configuration file is loaded.
func InitDefaultLogger(version string) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Logger.Output(DefaultLogWriter(version))
}

func isDevBuild(version string) bool {
	v := strings.ToLower(strings.TrimSpace(version))
	return v == "" || v == "dev" || strings.HasSuffix(v, "-dev")
}

// resolveConfigPath determines the actual config file path from the provided directory or file path
func (c *AppConfig) resolveConfigPath(configDirOrPath string) string {
	if strings.HasSuffix(strings.ToLower(configDirOrPath), ".toml") {
		return configDirOrPath
	}

	if info, err := os.Stat(configDirOrPath); err == nil && !info.IsDir() {
		return configDirOrPath
	}

	return filepath.Join(configDirOrPath, "config.toml")
}

// GetCachePath returns the path to the response cache database, creating the
// cache directory if needed.
func (c *AppConfig) GetCachePath() (string, error) {
	if err := os.MkdirAll(c.Config.CacheDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}
	return filepath.Join(c.Config.CacheDir, "seedbridge.db"), nil
}

func WriteDefaultConfig(path string) error {
	c := &AppConfig{
		viper: viper.New(),
	}

	c.defaults()

	return c.writeDefaultConfig(path)
}

// Sets viper variable if environment variable with _FILE suffix is present
func (c *AppConfig) bindOrReadFromFile(viperVar string, envVar string) {
	envVarFile := envVar + "_FILE"
	if filePath := os.Getenv(envVarFile); filePath != "" {
		content, err := os.ReadFile(filePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", filePath).Msg("Could not read " + envVarFile)
		}
		c.viper.Set(viperVar, strings.TrimSpace(string(content)))
	} else {
		c.viper.BindEnv(viperVar, envVar)
	}
}
