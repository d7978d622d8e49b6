// Package config loads the metrics service configuration from defaults,
// an optional YAML file, environment variables and CLI flags, in
// ascending order of precedence.
package config

import (
	"fmt"

	"github.com/sjm-steffann/irrd/internal/storage"
)

// Default configuration values.
const (
	DefaultDatabaseType = "postgres"
	DefaultDatabaseHost = "localhost"
	DefaultDatabasePort = 5432
	DefaultDatabaseName = "irrd"
	DefaultListen       = ":8080"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
)

// DatabaseConfig holds the status database target.
type DatabaseConfig struct {
	Type     string `koanf:"type"` // postgres, sqlite
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	SSLMode  string `koanf:"sslmode"`

	// Path is the database file for sqlite targets.
	Path string `koanf:"path"`
}

// HTTPConfig holds the exposition endpoint settings.
type HTTPConfig struct {
	Listen string `koanf:"listen"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text, json
}

// Config is the full service configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	HTTP     HTTPConfig     `koanf:"http"`
	Log      LogConfig      `koanf:"log"`
}

// StorageConfig converts the database section into the storage package's
// connection settings.
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Type:     c.Database.Type,
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		Database: c.Database.Database,
		Username: c.Database.User,
		Password: c.Database.Password,
		SSLMode:  c.Database.SSLMode,
		Path:     c.Database.Path,
	}
}

// Validate checks the loaded configuration for unusable values.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown database type %q (expected postgres or sqlite)", c.Database.Type)
	}

	if c.HTTP.Listen == "" {
		return fmt.Errorf("http listen address is required")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}

	return nil
}
