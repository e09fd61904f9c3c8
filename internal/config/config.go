// Package config loads knolstudy settings from flags, an optional YAML
// file, a .env file and KNOLSTUDY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is stripped from environment variables; the rest is lowercased
// and underscores become dashes, so KNOLSTUDY_REPOS_DIR sets repos-dir.
const EnvPrefix = "KNOLSTUDY_"

// Config is the resolved configuration.
type Config struct {
	DB            string        `koanf:"db" validate:"required"`
	Addr          string        `koanf:"addr" validate:"required"`
	ReposDir      string        `koanf:"repos-dir" validate:"required"`
	SyncInterval  time.Duration `koanf:"sync-interval" validate:"gte=0s"`
	LogLevel      string        `koanf:"log-level" validate:"oneof=debug info warn error"`
	QuizQuestions int           `koanf:"quiz-questions" validate:"gte=1,lte=100"`
	AddSource     string        `koanf:"add-source"`
	SyncOnly      bool          `koanf:"sync-only"`
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// FlagSet returns the command line flags with their defaults.
func FlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("knolstudy", pflag.ContinueOnError)
	fs.String("config", "", "Path to a YAML config file")
	fs.String("env-file", ".env", "Path to a .env file, ignored when missing")
	fs.String("db", "knolstudy.db", "Path to the SQLite database file")
	fs.String("addr", ":8080", "HTTP listen address")
	fs.String("repos-dir", "repos", "Directory git sources are cloned into")
	fs.Duration("sync-interval", 0, "Resync all sources this often, 0 disables")
	fs.String("log-level", "info", "One of debug, info, warn, error")
	fs.Int("quiz-questions", 10, "Default number of questions per quiz")
	fs.String("add-source", "", "Add a source (local path or git URL) before syncing")
	fs.Bool("sync-only", false, "Sync all sources and exit without serving")
	return fs
}

// Load parses args and layers, lowest first: flag defaults, the YAML file,
// the environment, then flags set on the command line.
func Load(args []string) (Config, error) {
	fs := FlagSet()
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	envFile, _ := fs.GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	k := koanf.New(".")
	if path, _ := fs.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment: %w", err)
	}
	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", "-")
}
