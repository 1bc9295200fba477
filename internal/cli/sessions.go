package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"media-catalog/internal/catalog"
)

func newSessionsCmd(opts *options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recent scan sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, opts, func(store backend) error {
				sessions, err := store.ListScanSessions(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if opts.format == formatJSON {
					if sessions == nil {
						sessions = []catalog.ScanSession{}
					}
					return printJSON(cmd.OutOrStdout(), sessions)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tROOT\tSTATUS\tSCANNED\tADDED\tUPDATED\tERRORS\tSTARTED")
				for _, s := range sessions {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
						s.ID, s.RootPath, s.Status, s.FilesScanned, s.FilesAdded, s.FilesUpdated, s.ErrorCount,
						s.StartedAt.Format("2006-01-02 15:04:05"))
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Max sessions to show")
	return cmd
}
