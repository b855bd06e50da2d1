package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/pqrd-enricher/internal/app"
	"github.com/JakeFAU/pqrd-enricher/internal/metrics"
)

type runFlags struct {
	limit  int
	dryRun bool
}

func newRunCmd() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Enrich the next batch of pending records",
		Long: `Authenticates against the portal and processes up to run.batch_size
pending records, saving the table every run.checkpoint_every records and once
more before exiting.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEnrich(cmd, flags)
		},
	}
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "maximum records to attempt (overrides run.batch_size)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "extract without downloading attachments or writing the table")
	return cmd
}

func runEnrich(cmd *cobra.Command, flags *runFlags) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	p := rt.app.Pipeline(app.Options{
		DriverFactory: driverFactory,
		Limit:         flags.limit,
		DryRun:        flags.dryRun,
	})
	summary, runErr := p.Run(cmd.Context())

	if path := rt.cfg.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			rt.logger.Warn("metrics textfile not written", zap.Error(err))
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: processed %d, failed %d, skipped %d, pending before run %d\n",
		summary.State, summary.Processed, summary.Failed, summary.Skipped, summary.Pending)
	return runErr
}
