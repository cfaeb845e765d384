// Package config loads bulkcat configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Runstore RunstoreConfig `mapstructure:"runstore"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CatalogConfig holds remote catalog API settings.
type CatalogConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	AuthToken string        `mapstructure:"auth_token"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// EngineConfig holds bulk run defaults, overridable per run from the CLI.
type EngineConfig struct {
	Workers     int     `mapstructure:"workers"`
	Rate        float64 `mapstructure:"rate"`
	Burst       float64 `mapstructure:"burst"`
	MaxAttempts int     `mapstructure:"max_attempts"`
	NotFound    string  `mapstructure:"not_found"`
}

// CacheConfig holds lookup cache settings.
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	RedisAddr string        `mapstructure:"redis_addr"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// RunstoreConfig holds run history storage settings.
type RunstoreConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Timeout: 15 * time.Second,
		},
		Engine: EngineConfig{
			Workers:     5,
			Rate:        10,
			MaxAttempts: 5,
			NotFound:    "success",
		},
		Cache: CacheConfig{
			RedisAddr: "localhost:6379",
			TTL:       5 * time.Minute,
		},
		Runstore: RunstoreConfig{
			Path: defaultRunstorePath(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// defaultRunstorePath returns the default run history database path.
func defaultRunstorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "bulkcat.db"
	}
	return filepath.Join(home, ".local", "share", "bulkcat", "runs.db")
}

// Load reads configuration from the given file (optional), the working
// directory and $HOME/.config/bulkcat, with BULKCAT_* environment
// variables taking precedence. A missing config file is not an error.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("bulkcat")
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "bulkcat"))
		}
	}

	// Register every key with its default so environment lookups resolve
	// even without a config file.
	v.SetDefault("catalog.base_url", cfg.Catalog.BaseURL)
	v.SetDefault("catalog.auth_token", cfg.Catalog.AuthToken)
	v.SetDefault("catalog.timeout", cfg.Catalog.Timeout)
	v.SetDefault("engine.workers", cfg.Engine.Workers)
	v.SetDefault("engine.rate", cfg.Engine.Rate)
	v.SetDefault("engine.burst", cfg.Engine.Burst)
	v.SetDefault("engine.max_attempts", cfg.Engine.MaxAttempts)
	v.SetDefault("engine.not_found", cfg.Engine.NotFound)
	v.SetDefault("cache.enabled", cfg.Cache.Enabled)
	v.SetDefault("cache.redis_addr", cfg.Cache.RedisAddr)
	v.SetDefault("cache.ttl", cfg.Cache.TTL)
	v.SetDefault("runstore.path", cfg.Runstore.Path)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.pretty", cfg.Logging.Pretty)

	// BULKCAT_CATALOG_BASE_URL overrides catalog.base_url, and so on.
	v.SetEnvPrefix("BULKCAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// A named file must exist; search-path misses are fine.
			if configFile != "" || !os.IsNotExist(err) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks ranges that would otherwise surface deep inside a run.
func (c *Config) Validate() error {
	if c.Engine.Workers < 1 {
		return fmt.Errorf("engine.workers must be at least 1, got %d", c.Engine.Workers)
	}
	if c.Engine.Rate <= 0 {
		return fmt.Errorf("engine.rate must be positive, got %v", c.Engine.Rate)
	}
	if c.Engine.MaxAttempts < 1 {
		return fmt.Errorf("engine.max_attempts must be at least 1, got %d", c.Engine.MaxAttempts)
	}
	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("catalog.timeout must be positive, got %v", c.Catalog.Timeout)
	}
	return nil
}
