// Package config loads sqltree settings from flags, environment and an
// optional config file.
//
// Precedence, highest first: command-line flags bound with BindFlags,
// SQLTREE_* environment variables, sqltree.toml or sqltree.yaml found in
// the working directory or $HOME/.config/sqltree, then Default.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Mschirtzinger/sqltree/internal/convert"
	"github.com/Mschirtzinger/sqltree/internal/shard"
)

// EnvPrefix prefixes every environment variable, e.g. SQLTREE_SHARD_TARGET_ROWS.
const EnvPrefix = "SQLTREE"

// Config holds all settings.
type Config struct {
	Shard   ShardConfig `mapstructure:"shard"`
	Workers int         `mapstructure:"workers"`
	Log     LogConfig   `mapstructure:"log"`
	Watch   WatchConfig `mapstructure:"watch"`
}

// ShardConfig controls how new trees are sharded.
type ShardConfig struct {
	TargetRows   int `mapstructure:"target_rows"`
	MaxNameBytes int `mapstructure:"max_name_bytes"`
}

// LogConfig controls where log output goes.
type LogConfig struct {
	// File enables rotating file output when non-empty.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	// Quiet discards informational output.
	Quiet bool `mapstructure:"quiet"`
}

// WatchConfig controls the watch command.
type WatchConfig struct {
	// Debounce is how long the database must stay quiet before a run.
	Debounce time.Duration `mapstructure:"debounce"`
	// Commit records each run in the enclosing repository.
	Commit  bool   `mapstructure:"commit"`
	Message string `mapstructure:"message"`
}

// Default returns sensible defaults.
func Default() Config {
	return Config{
		Shard: ShardConfig{
			TargetRows:   shard.DefaultTargetRows,
			MaxNameBytes: shard.DefaultMaxNameBytes,
		},
		Workers: runtime.GOMAXPROCS(0),
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
			Message:  "sqltree snapshot",
		},
	}
}

// SetDefaults registers Default under the dotted keys viper uses, so every
// key is also reachable from the environment.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("shard.target_rows", d.Shard.TargetRows)
	v.SetDefault("shard.max_name_bytes", d.Shard.MaxNameBytes)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("log.compress", d.Log.Compress)
	v.SetDefault("log.quiet", d.Log.Quiet)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("watch.commit", d.Watch.Commit)
	v.SetDefault("watch.message", d.Watch.Message)
}

// NewViper returns a viper instance with defaults, environment binding and
// config search paths set up. It does not read the config file.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("sqltree")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "sqltree"))
	}
	return v
}

// BindFlags binds flags to config keys. Only flags the user set override
// lower layers.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for flag, key := range keys {
		f := flags.Lookup(flag)
		if f == nil {
			return fmt.Errorf("unknown flag %q", flag)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %q: %w", flag, err)
		}
	}
	return nil
}

// Load reads the config file if one exists and decodes the merged
// settings. A file given with SetConfigFile must exist.
func Load(v *viper.Viper) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings no run could use.
func (c Config) Validate() error {
	if err := c.Policy().Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Workers < 0 {
		return fmt.Errorf("invalid config: workers must not be negative, got %d", c.Workers)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("invalid config: watch.debounce must not be negative, got %v", c.Watch.Debounce)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("invalid config: log rotation limits must not be negative")
	}
	return nil
}

// Policy returns the shard policy.
func (c Config) Policy() shard.Policy {
	return shard.Policy{TargetRows: c.Shard.TargetRows, MaxNameBytes: c.Shard.MaxNameBytes}
}

// ConvertOptions returns converter options; the caller supplies the logger.
func (c Config) ConvertOptions() convert.Options {
	return convert.Options{Policy: c.Policy(), Workers: c.Workers}
}
