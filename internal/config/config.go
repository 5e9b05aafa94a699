// Package config loads lingva settings from defaults, an optional config
// file and LINGVA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/abhisek/lingva/internal/store"
)

type Config struct {
	User     string         `mapstructure:"user"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Sweeper  SweeperConfig  `mapstructure:"sweeper"`
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `mapstructure:"driver"`
	// DSN is a file path for sqlite or a connection URL for postgres. An
	// empty sqlite DSN resolves to the default data path.
	DSN string `mapstructure:"dsn"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CatalogConfig struct {
	// Path to a catalog JSON file; empty uses the built-in catalog.
	Path string `mapstructure:"path"`
}

type SweeperConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// Load reads configuration. path names an explicit config file; when empty,
// lingva.{yaml,toml,json} is looked up in the working directory and the
// user config dir, and a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LINGVA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("lingva")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "lingva"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("user", "local")

	v.SetDefault("database.driver", store.DriverSQLite)
	v.SetDefault("database.dsn", "")

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")

	v.SetDefault("catalog.path", "")

	v.SetDefault("sweeper.interval", "30s")
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case store.DriverSQLite:
	case store.DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log.format %q", c.Log.Format)
	}
	if c.Sweeper.Interval <= 0 {
		return fmt.Errorf("sweeper.interval must be positive, got %s", c.Sweeper.Interval)
	}
	return nil
}

// DatabaseDSN returns the DSN to open, resolving the default sqlite path
// when none is configured.
func (c *Config) DatabaseDSN() (string, error) {
	if c.Database.DSN != "" {
		if c.Database.Driver == store.DriverSQLite {
			return c.Database.DSN, store.EnsureDir(c.Database.DSN)
		}
		return c.Database.DSN, nil
	}
	return store.DefaultDBPath()
}
