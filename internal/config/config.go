package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all logvault settings.
type Config struct {
	LogDir         string `toml:"log_dir"`
	FallbackLogDir string `toml:"fallback_log_dir"`
	Pattern        string `toml:"pattern"`
	MaxCachedFiles int    `toml:"max_cached_files"`
	Workers        int    `toml:"workers"`
	ListenAddr     string `toml:"listen_addr"`
	LogLevel       string `toml:"log_level"`
	LogFormat      string `toml:"log_format"` // "text" or "json"
	Watch          bool   `toml:"watch"`
}

const (
	defaultConfigPath     = "~/.config/logvault/config.toml"
	defaultLogDir         = "./logs"
	defaultFallbackLogDir = "~/.local/share/logvault/logs"
	defaultPattern        = "*.{log,txt}"
	defaultMaxCachedFiles = 1000
	defaultListenAddr     = "127.0.0.1:8080"
	defaultLogLevel       = "info"
	defaultLogFormat      = "text"
)

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		LogDir:         defaultLogDir,
		FallbackLogDir: defaultFallbackLogDir,
		Pattern:        defaultPattern,
		MaxCachedFiles: defaultMaxCachedFiles,
		ListenAddr:     defaultListenAddr,
		LogLevel:       defaultLogLevel,
		LogFormat:      defaultLogFormat,
		Watch:          true,
	}
}

// Load reads the TOML config at path, falling back to defaults when it is missing.
// An empty path uses ~/.config/logvault/config.toml.
func Load(path string) (Config, error) {
	cfg := Default()

	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg.normalize(), nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(bytes, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg.normalize(), nil
}

// normalize trims values and restores defaults for empty or invalid ones.
func (c Config) normalize() Config {
	c.LogDir = orDefault(c.LogDir, defaultLogDir)
	c.FallbackLogDir = orDefault(c.FallbackLogDir, defaultFallbackLogDir)
	c.Pattern = orDefault(c.Pattern, defaultPattern)
	c.ListenAddr = orDefault(c.ListenAddr, defaultListenAddr)
	c.LogLevel = orDefault(c.LogLevel, defaultLogLevel)
	c.LogFormat = orDefault(strings.ToLower(c.LogFormat), defaultLogFormat)
	if c.MaxCachedFiles <= 0 {
		c.MaxCachedFiles = defaultMaxCachedFiles
	}
	if c.Workers < 0 {
		c.Workers = 0
	}
	return c
}

// ResolveLogDir returns an absolute logs directory, creating primary or, if that
// fails, fallback. When neither can be created the primary path is returned
// anyway: a missing directory yields empty results, not a startup failure.
func ResolveLogDir(primary, fallback string) string {
	primaryPath := mustExpand(primary)
	if err := os.MkdirAll(primaryPath, 0o755); err == nil {
		return primaryPath
	} else {
		slog.Warn("cannot create logs directory, trying fallback", "dir", primaryPath, "err", err)
	}

	if strings.TrimSpace(fallback) == "" {
		return primaryPath
	}
	fallbackPath := mustExpand(fallback)
	if err := os.MkdirAll(fallbackPath, 0o755); err != nil {
		slog.Warn("cannot create fallback logs directory", "dir", fallbackPath, "err", err)
		return primaryPath
	}
	return fallbackPath
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
