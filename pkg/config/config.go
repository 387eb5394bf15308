// Package config loads workbench settings from a config file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. WORKBENCH_LOG_LEVEL.
const EnvPrefix = "WORKBENCH"

// Config holds the configuration for the workbench.
type Config struct {
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	Workdir   string `mapstructure:"workdir"`
	Execution struct {
		CancelOnError bool `mapstructure:"cancel_on_error"`
		Concurrency   int  `mapstructure:"concurrency"`
	} `mapstructure:"execution"`
	DAG struct {
		SplitOnRemove bool `mapstructure:"split_on_remove"`
	} `mapstructure:"dag"`
	History struct {
		DSN   string `mapstructure:"dsn"`
		Limit int    `mapstructure:"limit"`
	} `mapstructure:"history"`
	Watch struct {
		Debounce time.Duration `mapstructure:"debounce"`
	} `mapstructure:"watch"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("workdir", "")
	v.SetDefault("execution.cancel_on_error", false)
	v.SetDefault("execution.concurrency", 1)
	v.SetDefault("dag.split_on_remove", false)
	v.SetDefault("history.dsn", "")
	v.SetDefault("history.limit", 20)
	v.SetDefault("watch.debounce", 200*time.Millisecond)
}

// Load reads the configuration. With an empty path a file named
// workbench.{yaml,json,toml} is looked up in the current directory and
// ./config, and its absence is not an error. Environment variables override
// file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("workbench")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if c.Execution.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("execution.concurrency: must be at least 1, got %d", c.Execution.Concurrency))
	}
	if c.History.Limit < 0 {
		errs = append(errs, fmt.Errorf("history.limit: must not be negative, got %d", c.History.Limit))
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce: must not be negative, got %s", c.Watch.Debounce))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
