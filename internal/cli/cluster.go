package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newClusterCmd(opts *options) *cobra.Command {
	var mergeThreshold float64

	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Assign ungrouped faces and merge similar groups",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, appOptions{noFaces: true})
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.engine.AssignUngrouped(cmd.Context())
			if err != nil {
				return err
			}
			threshold := a.engine.Config().MergeThreshold
			if mergeThreshold > 0 {
				threshold = mergeThreshold
			}
			merged, err := a.engine.MergeSimilarGroups(cmd.Context(), threshold)
			if err != nil {
				return err
			}

			if opts.format == formatJSON {
				return printJSON(cmd.OutOrStdout(), map[string]int{
					"assigned": res.Assigned,
					"created":  res.Created,
					"merged":   merged,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "joined %d, new groups %d, merged %d\n", res.Assigned, res.Created, merged)
			return nil
		},
	}

	cmd.Flags().Float64Var(&mergeThreshold, "merge-threshold", 0, "Similarity needed to merge two groups (default: MERGE_THRESHOLD)")
	return cmd
}
