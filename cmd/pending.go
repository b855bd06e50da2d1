package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/pqrd-enricher/internal/pending"
)

func newPendingCmd() *cobra.Command {
	var showSkipped bool
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Report pending records without opening a browser",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			sel, err := pending.Select(rt.app.Store(), rt.cfg.Columns, rt.cfg.Run.BatchSize)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pending: %d\nnext batch: %d\nskipped: %d\n", sel.TotalPending, len(sel.Items), len(sel.Skipped))
			if showSkipped {
				for _, row := range sel.Skipped {
					// Spreadsheet row numbers: one for the header, one for 1-based indexing.
					fmt.Fprintf(out, "  row %d: missing identifier\n", row+2)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showSkipped, "show-skipped", false, "list rows skipped for a missing identifier")
	return cmd
}
