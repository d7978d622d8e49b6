package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sjm-steffann/irrd/internal/metrics"
)

// newRenderCommand creates the render command.
func newRenderCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Short: "Render the metrics document once to stdout",
		Long: `Render the full exposition document once and print it to stdout.
Useful for debugging and for push-style collection via cron.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			doc, err := renderer.Render(cmd.Context())
			if err != nil {
				return err
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), doc)
			return err
		},
	}
}
