package cli

import (
	"github.com/spf13/cobra"

	"github.com/sjm-steffann/irrd/internal/metrics"
	"github.com/sjm-steffann/irrd/internal/server"
	"github.com/sjm-steffann/irrd/internal/storage"
)

// openStore connects to the status database. Overridable in tests.
var openStore = func(cmd *cobra.Command) (storage.Store, error) {
	cfg := getConfig(cmd.Context())
	return storage.Open(cmd.Context(), cfg.StorageConfig(), getLogger(cmd.Context()))
}

// newServeCommand creates the serve command.
func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the metrics endpoint over HTTP",
		Long: `Connect to the status database and serve the rendered exposition
document on /metrics until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := getConfig(cmd.Context())
			logger := getLogger(cmd.Context())

			startup, err := startupTime()
			if err != nil {
				return err
			}

			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			renderer, err := metrics.New(metrics.Config{
				Store:   store,
				Version: Version,
				Startup: startup,
			})
			if err != nil {
				return err
			}

			srv := server.New(server.Config{
				Renderer: renderer,
				Listen:   cfg.HTTP.Listen,
				Logger:   logger,
			})

			return srv.Serve(cmd.Context())
		},
	}
}
