// Package cli provides the command-line interface for the IRRd metrics
// service.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sjm-steffann/irrd/internal/config"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// processStart is recorded as early as possible so uptime covers the whole
// process lifetime.
var processStart = time.Now()

// envStartupTime carries the daemon startup timestamp (Unix seconds) when
// the exporter is launched by the IRRd daemon itself, so uptime reflects
// the daemon rather than this process.
const envStartupTime = "IRRD_MAIN_STARTUP_TIME"

// configKey is used to store config in context.
type configKey struct{}

// loggerKey is used to store the logger in context.
type loggerKey struct{}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "irrd-metrics",
		Short: "Metrics exposition service for the IRRd status database",
		Long: `irrd-metrics reads the object statistics and per-source mirroring status
that the IRRd daemon maintains in its database, and renders them in the
plaintext exposition format for pull-based metrics collectors.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			ctx := context.WithValue(cmd.Context(), configKey{}, cfg)
			ctx = context.WithValue(ctx, loggerKey{}, newLogger(cfg.Log))
			cmd.SetContext(ctx)

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Metrics exposition service for IRRd
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./irrd-metrics.yaml)")
	rootCmd.PersistentFlags().String("db-type", "", "Database type (postgres|sqlite)")
	rootCmd.PersistentFlags().String("db-host", "", "Database host")
	rootCmd.PersistentFlags().Int("db-port", 0, "Database port")
	rootCmd.PersistentFlags().String("db-name", "", "Database name")
	rootCmd.PersistentFlags().String("db-user", "", "Database user")
	rootCmd.PersistentFlags().String("db-password", "", "Database password")
	rootCmd.PersistentFlags().String("db-sslmode", "", "Database TLS mode (disable|require|verify-full)")
	rootCmd.PersistentFlags().String("db-path", "", "Database file path (sqlite)")
	rootCmd.PersistentFlags().String("listen", "", "HTTP listen address")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text|json)")

	// Add subcommands
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newRenderCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// Execute runs the root command with a signal-aware context.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// getConfig retrieves the config from the command context.
func getConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	return nil
}

// getLogger retrieves the logger from the command context.
func getLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newLogger builds the process logger from the log config.
func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// startupTime resolves the process-wide startup timestamp: the daemon's,
// when handed down via the environment, or this process's own start.
func startupTime() (time.Time, error) {
	v := os.Getenv(envStartupTime)
	if v == "" {
		return processStart, nil
	}

	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s value %q: %w", envStartupTime, v, err)
	}

	return time.Unix(secs, 0), nil
}
