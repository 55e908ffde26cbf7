package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"

	"github.com/calvinalkan/disklru/pkg/disklru"
)

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	CacheDir   string `json:"cache_dir"`
	MaxSize    int64  `json:"max_size"`
	AppVersion int    `json:"app_version"`
	ValueCount int    `json:"value_count"`
	Writeback  string `json:"writeback"`
	LogLevel   string `json:"log_level"`
	HashKeys   bool   `json:"hash_keys,omitempty"`

	// Resolved (computed, not serialized)
	EffectiveCwd string        `json:"-"` // Absolute working directory (from -C flag or os.Getwd)
	CacheDirAbs  string        `json:"-"` // Absolute path to the cache directory
	Sources      ConfigSources `json:"-"`
}

// ConfigSources tracks which config files were loaded.
type ConfigSources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project config if loaded, empty otherwise
}

// Writeback modes accepted in config.
const (
	writebackNone = "none"
	writebackSync = "sync"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		CacheDir:   ".disklru",
		MaxSize:    64 << 20,
		AppVersion: 1,
		ValueCount: 1,
		Writeback:  writebackNone,
		LogLevel:   "warn",
	}
}

// ConfigFileName is the default project config file name.
const ConfigFileName = ".disklru.json"

// getGlobalConfigPath returns $XDG_CONFIG_HOME/disklru/config.json, falling
// back to ~/.config/disklru/config.json. Empty if neither can be determined.
func getGlobalConfigPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "disklru", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "disklru", "config.json")
	}

	return ""
}

// LoadConfigInput holds the inputs for LoadConfig.
type LoadConfigInput struct {
	WorkDirOverride string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath      string            // -c/--config flag value
	Overrides       Config            // non-zero fields from flags
	Env             map[string]string // environment variables
}

// LoadConfig loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/disklru/config.json)
// 3. Project config file (.disklru.json, if exists) or the explicit -c file
// 4. CLI overrides.
func LoadConfig(input LoadConfigInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return Config{}, fmt.Errorf("cannot resolve working directory: %w", err)
	}

	cfg := DefaultConfig()

	if globalPath := getGlobalConfigPath(input.Env); globalPath != "" {
		globalCfg, loaded, err := loadConfigFile(globalPath, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg.Sources.Global = globalPath
			cfg = mergeConfig(cfg, globalCfg)
		}
	}

	projectCfg, projectPath, err := loadProjectConfig(workDir, input.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Project = projectPath
	cfg = mergeConfig(cfg, projectCfg)
	cfg = mergeConfig(cfg, input.Overrides)

	if err := validateConfig(cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	cfg.EffectiveCwd = workDir

	if filepath.IsAbs(cfg.CacheDir) {
		cfg.CacheDirAbs = cfg.CacheDir
	} else {
		cfg.CacheDirAbs = filepath.Join(workDir, cfg.CacheDir)
	}

	return cfg, nil
}

// loadProjectConfig loads .disklru.json from workDir, or the explicit
// config file, which must exist.
func loadProjectConfig(workDir, configPath string) (Config, string, error) {
	if configPath == "" {
		path := filepath.Join(workDir, ConfigFileName)

		cfg, loaded, err := loadConfigFile(path, false)
		if err != nil || !loaded {
			return Config{}, "", err
		}

		return cfg, path, nil
	}

	path := configPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}

	if _, err := os.Stat(path); err != nil {
		return Config{}, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
	}

	cfg, _, err := loadConfigFile(path, true)
	if err != nil {
		return Config{}, "", err
	}

	return cfg, path, nil
}

// loadConfigFile loads a config file. If mustExist is false, a missing
// file returns a zero config and loaded == false.
func loadConfigFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !mustExist {
			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("%w: %s", ErrConfigFileRead, path)
	}

	cfg, err := parseConfig(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return cfg, true, nil
}

func parseConfig(data []byte) (Config, error) {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

func mergeConfig(base, overlay Config) Config {
	if overlay.CacheDir != "" {
		base.CacheDir = overlay.CacheDir
	}

	if overlay.MaxSize != 0 {
		base.MaxSize = overlay.MaxSize
	}

	if overlay.AppVersion != 0 {
		base.AppVersion = overlay.AppVersion
	}

	if overlay.ValueCount != 0 {
		base.ValueCount = overlay.ValueCount
	}

	if overlay.Writeback != "" {
		base.Writeback = overlay.Writeback
	}

	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}

	if overlay.HashKeys {
		base.HashKeys = true
	}

	return base
}

func validateConfig(cfg Config) error {
	if cfg.MaxSize < 1 {
		return fmt.Errorf("max_size must be >= 1, got %d", cfg.MaxSize)
	}

	if cfg.ValueCount < 1 {
		return fmt.Errorf("value_count must be >= 1, got %d", cfg.ValueCount)
	}

	if cfg.Writeback != writebackNone && cfg.Writeback != writebackSync {
		return fmt.Errorf("writeback must be %q or %q, got %q", writebackNone, writebackSync, cfg.Writeback)
	}

	if _, err := parseLogLevel(cfg.LogLevel); err != nil {
		return err
	}

	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", s, err)
	}

	return level, nil
}

// CacheOptions converts the config into options for [disklru.Open].
func (cfg Config) CacheOptions(logger *slog.Logger) disklru.Options {
	wb := disklru.WritebackNone
	if cfg.Writeback == writebackSync {
		wb = disklru.WritebackSync
	}

	return disklru.Options{
		Dir:        cfg.CacheDirAbs,
		AppVersion: cfg.AppVersion,
		ValueCount: cfg.ValueCount,
		MaxSize:    cfg.MaxSize,
		Writeback:  wb,
		Logger:     logger,
	}
}

// FormatConfig renders the serialized fields as indented JSON.
func FormatConfig(cfg Config) (string, error) {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("format config: %w", err)
	}

	return string(b), nil
}
