// Package config loads btarena settings from defaults, an optional YAML file
// and BTARENA_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/nathoo/btarena/mastery"
)

// Config holds the runtime settings of the arena.
type Config struct {
	// ContentDir is a directory of Lua content. Empty means the embedded set.
	ContentDir string `yaml:"content_dir" env:"BTARENA_CONTENT_DIR"`

	Seed              int64 `yaml:"seed" env:"BTARENA_SEED"`
	MaxIterations     int   `yaml:"max_iterations" env:"BTARENA_MAX_ITERATIONS"`
	ValidationBattles int   `yaml:"validation_battles" env:"BTARENA_VALIDATION_BATTLES"`
	RollbackAfter     int   `yaml:"rollback_after" env:"BTARENA_ROLLBACK_AFTER"`
	Parallel          int   `yaml:"parallel" env:"BTARENA_PARALLEL"`

	// DBPath enables the SQLite run history when set.
	DBPath        string `yaml:"db_path" env:"BTARENA_DB_PATH"`
	CheckpointDir string `yaml:"checkpoint_dir" env:"BTARENA_CHECKPOINT_DIR"`

	LogLevel  string `yaml:"log_level" env:"BTARENA_LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"BTARENA_LOG_FORMAT"` // text or json
}

// Default returns the built-in settings.
func Default() Config {
	mc := mastery.DefaultConfig()
	home, _ := os.UserHomeDir()
	return Config{
		Seed:              mc.Seed,
		MaxIterations:     mc.MaxIterations,
		ValidationBattles: mc.ValidationBattles,
		RollbackAfter:     mc.RollbackAfter,
		Parallel:          mc.Parallel,
		CheckpointDir:     filepath.Join(home, ".btarena", "checkpoints"),
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// Load returns the defaults overlaid with the YAML file at path (skipped when
// path is empty) and then with the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables. Fields whose
// variable is unset keep their current value.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("max_iterations must be positive, got %d", c.MaxIterations))
	}
	if c.ValidationBattles <= 0 {
		errs = append(errs, fmt.Errorf("validation_battles must be positive, got %d", c.ValidationBattles))
	}
	if c.RollbackAfter < 0 {
		errs = append(errs, fmt.Errorf("rollback_after must not be negative, got %d", c.RollbackAfter))
	}
	if c.Parallel <= 0 {
		errs = append(errs, fmt.Errorf("parallel must be positive, got %d", c.Parallel))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// MasteryConfig maps the curriculum settings onto a mastery.Config.
func (c Config) MasteryConfig() mastery.Config {
	return mastery.Config{
		MaxIterations:     c.MaxIterations,
		ValidationBattles: c.ValidationBattles,
		RollbackAfter:     c.RollbackAfter,
		Parallel:          c.Parallel,
		Seed:              c.Seed,
	}
}

// Logger builds the logger described by the settings.
func (c Config) Logger(w io.Writer) (*slog.Logger, error) {
	return NewLogger(w, c.LogLevel, c.LogFormat)
}

// NewLogger returns a text or JSON slog logger at the given level.
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return slog.New(handler), nil
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}
