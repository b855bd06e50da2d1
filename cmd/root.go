// Package cmd defines the enricher command line.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/pqrd-enricher/internal/app"
	"github.com/JakeFAU/pqrd-enricher/internal/config"
	"github.com/JakeFAU/pqrd-enricher/internal/enrich"
	"github.com/JakeFAU/pqrd-enricher/internal/logging"
)

// runtimeKeyType is the key for storing the runtime in the command context.
type runtimeKeyType string

const runtimeKey runtimeKeyType = "runtime"

// runtime bundles what every subcommand needs.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
	app    *app.App
}

// driverFactory replaces headless Chrome in tests.
var driverFactory enrich.DriverFactory

type rootFlags struct {
	configFile string
	envFile    string
}

// invocation tracks the runtime built for one invocation so Execute can release it.
type invocation struct {
	rt *runtime
}

func (s *invocation) close() {
	if s.rt == nil {
		return
	}
	if err := s.rt.app.Close(); err != nil {
		s.rt.logger.Warn("failed to close services", zap.Error(err))
	}
	logging.Sync(s.rt.logger)
}

func newRootCmd(s *invocation) *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "enricher",
		Short: "Enriches a PQRD record table from the SuperSalud portal.",
		Long: `enricher logs in to the PQRD portal once, visits the detail view of
every record whose tracking column is still empty, and writes the reasons,
tracking history and attachment links back into the table. Progress is saved
every few records so an interrupted run resumes where it stopped.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Runs after flags are parsed and before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd.Context(), flags)
			if err != nil {
				return err
			}
			s.rt = rt
			cmd.SetContext(context.WithValue(cmd.Context(), runtimeKey, rt))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file with portal credentials")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newPendingCmd())
	return cmd
}

func newRuntime(ctx context.Context, flags *rootFlags) (*runtime, error) {
	if err := config.LoadDotEnv(flags.envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		File:        cfg.Logging.File,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logging.Sync(logger)
		return nil, err
	}
	return &runtime{cfg: cfg, logger: logger, app: a}, nil
}

func resolveRuntime(ctx context.Context) (*runtime, error) {
	rt, ok := ctx.Value(runtimeKey).(*runtime)
	if !ok || rt == nil {
		return nil, errors.New("application services not initialized")
	}
	return rt, nil
}

// Exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfig      = 2
	ExitInterrupted = 130
)

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	s := &invocation{}
	cmd := newRootCmd(s)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	s.close()
	if err == nil {
		return ExitOK
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "enricher:", err)
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, enrich.ErrConfiguration):
		return ExitConfig
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	default:
		return ExitFailure
	}
}
