package cli

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sjm-steffann/irrd/internal/storage"
)

// newStatusCommand creates the status command.
func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-source mirroring status as a table",
		Long: `Query the status database and print one row per configured source with
its last update, last error, and mirror/export/journal serials.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			sess, err := store.Conn(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			status, err := sess.SourceStatus(cmd.Context())
			if err != nil {
				return err
			}

			sort.Slice(status, func(i, j int) bool {
				return status[i].Source < status[j].Source
			})

			renderStatusTable(cmd, status)
			return nil
		},
	}
}

func renderStatusTable(cmd *cobra.Command, status []storage.SourceStatus) {
	w := cmd.OutOrStdout()
	if len(status) == 0 {
		_, _ = fmt.Fprintln(w, "(no sources)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{
		"source", "updated", "last error",
		"newest mirror", "last export", "oldest journal", "newest journal",
	})
	for _, row := range status {
		t.AppendRow(table.Row{
			row.Source,
			formatTime(row.Updated),
			formatTime(row.LastError),
			formatSerial(row.SerialNewestMirror),
			formatSerial(row.SerialLastExport),
			formatSerial(row.SerialOldestJournal),
			formatSerial(row.SerialNewestJournal),
		})
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d sources)\n", len(status))
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func formatSerial(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}
