package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	fileicon "github.com/babs/file-icon"
)

// Config holds the extractor configuration.
type Config struct {
	Format         string `json:"format"`
	OutputDir      string `json:"output_dir"`
	Concurrency    int    `json:"concurrency"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	ICOSizes       []int  `json:"ico_sizes"`
	LogLevel       string `json:"log_level"`
}

// stdoutDir as output_dir writes results to standard output.
const stdoutDir = "-"

var configPath string

func init() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	configPath = filepath.Join(home, ".config", "file-icon", "config.json")
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Format:         string(fileicon.FormatPNG),
		OutputDir:      ".",
		Concurrency:    runtime.NumCPU(),
		TimeoutSeconds: 10,
		ICOSizes:       []int{16, 32, 48},
		LogLevel:       "info",
	}
}

// ValidLogLevel reports whether name is a slog level name.
func ValidLogLevel(name string) bool {
	var l slog.Level
	return l.UnmarshalText([]byte(name)) == nil
}

// level returns the configured log level, Info if unparsable.
func (c Config) level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func validICOSize(s int) bool {
	return s > 0 && s <= 256
}

// loadConfig loads config from disk, creating a default if it doesn't exist.
// Missing fields keep their defaults via json.Unmarshal into a pre-populated struct.
func loadConfig(logger *slog.Logger) Config {
	cfg := defaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			if writeErr := saveConfig(cfg); writeErr != nil {
				logger.Warn("failed to write default config", "path", configPath, "err", writeErr)
			} else {
				logger.Debug("created default config", "path", configPath)
			}
			return cfg
		}
		logger.Warn("failed to read config", "path", configPath, "err", err)
		return cfg
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		logger.Warn("failed to parse config", "path", configPath, "err", err)
		return defaultConfig()
	}

	defaults := defaultConfig()
	if !fileicon.ValidFormat(cfg.Format) {
		logger.Warn("unknown format in config, using default", "format", cfg.Format, "default", defaults.Format)
		cfg.Format = defaults.Format
	}
	cfg.Format = strings.ToLower(cfg.Format)
	if cfg.OutputDir == "" {
		cfg.OutputDir = defaults.OutputDir
	}
	if cfg.Concurrency <= 0 {
		logger.Warn("invalid concurrency in config, using default", "concurrency", cfg.Concurrency, "default", defaults.Concurrency)
		cfg.Concurrency = defaults.Concurrency
	}
	if cfg.TimeoutSeconds <= 0 {
		logger.Warn("invalid timeout_seconds in config, using default", "timeout_seconds", cfg.TimeoutSeconds, "default", defaults.TimeoutSeconds)
		cfg.TimeoutSeconds = defaults.TimeoutSeconds
	}
	sizes := cfg.ICOSizes[:0]
	for _, s := range cfg.ICOSizes {
		if !validICOSize(s) {
			logger.Warn("ignoring invalid ico size in config", "size", s)
			continue
		}
		sizes = append(sizes, s)
	}
	cfg.ICOSizes = sizes
	if !ValidLogLevel(cfg.LogLevel) {
		if cfg.LogLevel != "" {
			logger.Warn("unknown log_level in config, using default", "log_level", cfg.LogLevel, "default", defaults.LogLevel)
		}
		cfg.LogLevel = defaults.LogLevel
	}

	return cfg
}

// saveConfig writes config to disk with restrictive permissions (0600).
func saveConfig(cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFileSecure(configPath, data)
}

// writeFileSecure writes data to path with 0600 permissions, creating parent dirs.
func writeFileSecure(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
