package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"media-catalog/internal/catalog"
)

func newFacesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "faces <media-id>",
		Short: "List the detected faces of a catalog record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(store backend) error {
				if _, err := store.GetByID(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("media %s: %w", args[0], err)
				}
				faces, err := store.GetFaces(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if opts.format == formatJSON {
					if faces == nil {
						faces = []catalog.Face{}
					}
					return printJSON(cmd.OutOrStdout(), faces)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "FACE\tBOX\tCONFIDENCE\tDETECTED")
				for _, f := range faces {
					fmt.Fprintf(tw, "%s\t%d,%d %dx%d\t%.2f\t%s\n", f.ID,
						f.BBox.X, f.BBox.Y, f.BBox.Width, f.BBox.Height,
						f.Confidence, f.DetectedAt.Format("2006-01-02 15:04"))
				}
				return tw.Flush()
			})
		},
	}
}
