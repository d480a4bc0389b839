package cli

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/princinho/sahoassist/services"
)

var sweepTimeout time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep <auto-close|tickets|retention|all>",
	Short: "Run a maintenance sweep once",
	Long: `Run a maintenance sweep once and print what it changed.

  auto-close  close pending requests older than AUTO_CLOSE_DAYS
  tickets     escalate stale tickets and auto-assign open ones
  retention   purge finished requests, tickets and old conversations
  all         every task above, continuing past failures`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: services.SweepNames,
	RunE:      runSweep,
}

func init() {
	sweepCmd.Flags().DurationVar(&sweepTimeout, "timeout", 10*time.Minute, "abort the sweep after this long")
}

func runSweep(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), sweepTimeout)
	defer cancel()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	report, err := app.Sweeper.Run(ctx, args[0])
	for _, task := range slices.Sorted(maps.Keys(report)) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", task, report[task])
	}
	return err
}
