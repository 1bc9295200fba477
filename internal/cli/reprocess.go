package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"media-catalog/internal/catalog"
)

func newReprocessCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess <media-id>...",
		Short: "Re-extract and re-detect faces for catalog records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			type result struct {
				ID    string `json:"id"`
				Error string `json:"error,omitempty"`
			}
			results := make([]result, 0, len(args))
			var failed int
			for _, id := range args {
				r := result{ID: id}
				if err := a.scanner.Reprocess(cmd.Context(), id); err != nil {
					failed++
					r.Error = err.Error()
					if errors.Is(err, catalog.ErrNotFound) {
						r.Error = "not found"
					}
				}
				results = append(results, r)
			}

			if opts.format == formatJSON {
				if err := printJSON(cmd.OutOrStdout(), results); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					if r.Error != "" {
						fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", r.ID, r.Error)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "%s: reprocessed\n", r.ID)
					}
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d records failed", failed, len(args))
			}
			return nil
		},
	}
}
