// Copyright (c) 2025, the driftsync contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	envPrefix         = "DRIFTSYNC__"
	encryptionKeySize = 32
)

type Config struct {
	Host           string       `mapstructure:"host"`
	Port           int          `mapstructure:"port"`
	BaseURL        string       `mapstructure:"baseUrl"`
	SessionSecret  string       `mapstructure:"sessionSecret"`
	LogLevel       string       `mapstructure:"logLevel"`
	LogPath        string       `mapstructure:"logPath"`
	DataDir        string       `mapstructure:"dataDir"`
	MetricsEnabled bool         `mapstructure:"metricsEnabled"`
	PprofEnabled   bool         `mapstructure:"pprofEnabled"`
	HTTPTimeouts   HTTPTimeouts `mapstructure:"httpTimeouts"`
	License        License      `mapstructure:"license"`
	Sync           Sync         `mapstructure:"sync"`
}

type HTTPTimeouts struct {
	ReadTimeout  int `mapstructure:"readTimeout"`
	WriteTimeout int `mapstructure:"writeTimeout"`
	IdleTimeout  int `mapstructure:"idleTimeout"`
}

// License configures the entitlement portal. The domain defaults to the
// host part of baseUrl when left empty.
type License struct {
	PortalURL          string `mapstructure:"portalUrl"`
	ProductSlug        string `mapstructure:"productSlug"`
	Domain             string `mapstructure:"domain"`
	CheckIntervalHours int    `mapstructure:"checkIntervalHours"`
}

type Sync struct {
	SourceDir       string `mapstructure:"sourceDir"`
	TargetDir       string `mapstructure:"targetDir"`
	IntervalMinutes int    `mapstructure:"intervalMinutes"`
}

type AppConfig struct {
	Config *Config
	viper  *viper.Viper
}

func New(configPath string) (*AppConfig, error) {
	c := &AppConfig{
		viper:  viper.New(),
		Config: &Config{},
	}

	c.defaults()

	if err := c.load(configPath); err != nil {
		return nil, err
	}

	c.loadFromEnv()

	if err := c.viper.Unmarshal(c.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return c, nil
}

func (c *AppConfig) defaults() {
	c.viper.SetDefault("host", "localhost")
	c.viper.SetDefault("port", 8734)
	c.viper.SetDefault("baseUrl", "")
	c.viper.SetDefault("logLevel", "INFO")
	c.viper.SetDefault("logPath", "")
	c.viper.SetDefault("metricsEnabled", false)
	c.viper.SetDefault("pprofEnabled", false)
	c.viper.SetDefault("httpTimeouts.readTimeout", 60)
	c.viper.SetDefault("httpTimeouts.writeTimeout", 120)
	c.viper.SetDefault("httpTimeouts.idleTimeout", 180)
	c.viper.SetDefault("license.portalUrl", "https://portal.driftsync.app/api/v1")
	c.viper.SetDefault("license.productSlug", "driftsync-pro")
	c.viper.SetDefault("license.checkIntervalHours", 24)
	c.viper.SetDefault("sync.intervalMinutes", 15)
}

// resolveConfigPath accepts either a directory or a direct file path.
// Directories get a config.toml appended; existing files are used as-is.
func (c *AppConfig) resolveConfigPath(path string) string {
	if path == "" {
		return filepath.Join(GetDefaultConfigDir(), "config.toml")
	}

	if strings.HasSuffix(strings.ToLower(path), ".toml") {
		return path
	}

	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return filepath.Join(path, "config.toml")
		}
		return path
	}

	return filepath.Join(path, "config.toml")
}

func (c *AppConfig) load(configPath string) error {
	resolved := c.resolveConfigPath(configPath)

	if _, err := os.Stat(resolved); os.IsNotExist(err) {
		if err := WriteDefaultConfig(resolved); err != nil {
			return fmt.Errorf("failed to create default config: %w", err)
		}
		log.Info().Str("path", resolved).Msg("Created default configuration file")
	}

	c.viper.SetConfigFile(resolved)
	c.viper.SetConfigType("toml")

	if err := c.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", resolved, err)
	}

	return nil
}

func (c *AppConfig) loadFromEnv() {
	envMappings := map[string]string{
		envPrefix + "HOST":                   "host",
		envPrefix + "PORT":                   "port",
		envPrefix + "BASE_URL":               "baseUrl",
		envPrefix + "SESSION_SECRET":         "sessionSecret",
		envPrefix + "LOG_LEVEL":              "logLevel",
		envPrefix + "LOG_PATH":               "logPath",
		envPrefix + "DATA_DIR":               "dataDir",
		envPrefix + "METRICS_ENABLED":        "metricsEnabled",
		envPrefix + "PPROF_ENABLED":          "pprofEnabled",
		envPrefix + "LICENSE_PORTAL_URL":     "license.portalUrl",
		envPrefix + "LICENSE_PRODUCT_SLUG":   "license.productSlug",
		envPrefix + "LICENSE_DOMAIN":         "license.domain",
		envPrefix + "SYNC_SOURCE_DIR":        "sync.sourceDir",
		envPrefix + "SYNC_TARGET_DIR":        "sync.targetDir",
		envPrefix + "SYNC_INTERVAL_MINUTES":  "sync.intervalMinutes",
		envPrefix + "LICENSE_CHECK_INTERVAL": "license.checkIntervalHours",
	}

	for env, key := range envMappings {
		if value := os.Getenv(env); value != "" {
			switch key {
			case "port", "sync.intervalMinutes", "license.checkIntervalHours":
				if n, err := strconv.Atoi(value); err == nil {
					c.viper.Set(key, n)
				}
			case "metricsEnabled", "pprofEnabled":
				if b, err := strconv.ParseBool(value); err == nil {
					c.viper.Set(key, b)
				}
			default:
				c.viper.Set(key, value)
			}
		}
	}
}

// WatchConfig reloads the log level when the config file changes on
// disk. Other settings require a restart.
func (c *AppConfig) WatchConfig() {
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		log.Debug().Str("file", e.Name).Msg("Config file changed")

		var next Config
		if err := c.viper.Unmarshal(&next); err != nil {
			log.Error().Err(err).Msg("Failed to reload config")
			return
		}

		if next.LogLevel != c.Config.LogLevel {
			c.Config.LogLevel = next.LogLevel
			setLogLevel(next.LogLevel)
			log.Info().Str("logLevel", next.LogLevel).Msg("Log level updated")
		}
	})
	c.viper.WatchConfig()
}

func (c *AppConfig) SetDataDir(dir string) {
	c.Config.DataDir = dir
}

// GetDatabasePath puts the database in dataDir when set, otherwise next
// to the config file.
func (c *AppConfig) GetDatabasePath() string {
	if c.Config.DataDir != "" {
		return filepath.Join(c.Config.DataDir, "driftsync.db")
	}
	return filepath.Join(filepath.Dir(c.viper.ConfigFileUsed()), "driftsync.db")
}

// GetEncryptionKey derives a fixed-size key from the session secret.
func (c *AppConfig) GetEncryptionKey() []byte {
	sum := sha256.Sum256([]byte(c.Config.SessionSecret))
	return sum[:encryptionKeySize]
}

func (c *AppConfig) ApplyLogConfig() {
	setLogLevel(c.Config.LogLevel)

	if c.Config.LogPath != "" {
		f, err := os.OpenFile(c.Config.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Error().Err(err).Str("path", c.Config.LogPath).Msg("Failed to open log file, keeping stderr")
			return
		}
		log.Logger = log.Output(f)
	}
}

func setLogLevel(level string) {
	switch strings.ToUpper(level) {
	case "TRACE":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "DEBUG":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "INFO":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "WARN":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "ERROR":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func GetDefaultConfigDir() string {
	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "driftsync")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "driftsync")
}

func WriteDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	sessionSecret, err := generateSecureToken(32)
	if err != nil {
		return fmt.Errorf("failed to generate session secret: %w", err)
	}

	content := fmt.Sprintf(`# driftsync configuration

# Address to listen on
host = "localhost"

# Port to listen on
port = 8734

# Base URL for reverse proxy setups, e.g. "/driftsync/"
#baseUrl = "/"

# Session secret for cookie authentication
sessionSecret = "%s"

# Log level: TRACE, DEBUG, INFO, WARN, ERROR
logLevel = "INFO"

# Log file path (empty logs to stderr)
#logPath = "driftsync.log"

# Data directory for the database (defaults to the config directory)
#dataDir = ""

# Expose Prometheus metrics at /metrics
metricsEnabled = false

[license]
# Entitlement portal base URL
portalUrl = "https://portal.driftsync.app/api/v1"
productSlug = "driftsync-pro"
# Domain reported to the portal (defaults to the baseUrl host)
#domain = ""
checkIntervalHours = 24

[sync]
# Directories for premium directory mirroring
#sourceDir = "/data/source"
#targetDir = "/data/mirror"
intervalMinutes = 15
`, sessionSecret)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func generateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
