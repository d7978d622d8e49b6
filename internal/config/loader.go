package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Default config file names, tried in order when no explicit path is given.
var configFileNames = []string{"irrd-metrics.yaml", "irrd-metrics.yml"}

// envPrefix is stripped from environment variables before mapping them to
// config keys: IRRD_METRICS_DATABASE_HOST -> database.host.
const envPrefix = "IRRD_METRICS_"

// flagKeys maps CLI flag names to config keys. Flags not listed here are
// not configuration (e.g. --config itself).
var flagKeys = map[string]string{
	"db-type":     "database.type",
	"db-host":     "database.host",
	"db-port":     "database.port",
	"db-name":     "database.database",
	"db-user":     "database.user",
	"db-password": "database.password",
	"db-sslmode":  "database.sslmode",
	"db-path":     "database.path",
	"listen":      "http.listen",
	"log-level":   "log.level",
	"log-format":  "log.format",
}

// Load builds the configuration. Precedence, highest to lowest:
// flags > environment > config file > defaults.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults.
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"database.type":     DefaultDatabaseType,
		"database.host":     DefaultDatabaseHost,
		"database.port":     DefaultDatabasePort,
		"database.database": DefaultDatabaseName,
		"http.listen":       DefaultListen,
		"log.level":         DefaultLogLevel,
		"log.format":        DefaultLogFormat,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file, when present.
	configFile := findConfigFile(cfgFile)
	if cfgFile != "" && configFile == "" {
		return nil, fmt.Errorf("config file not found: %s", cfgFile)
	}
	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	// 3. Environment variables.
	// IRRD_METRICS_DATABASE_HOST -> database.host; the first underscore
	// after the prefix separates section from key.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. CLI flags, highest priority. Only explicitly set flags apply.
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// findConfigFile resolves the config file path. An explicit path wins;
// otherwise the default names are tried in the working directory. Returns
// empty when nothing is found.
func findConfigFile(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}
	for _, name := range configFileNames {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}
