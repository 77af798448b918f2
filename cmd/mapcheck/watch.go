package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternarybob/mapcheck/internal/schedule"
)

func (c *cli) newWatchCmd() *cobra.Command {
	var (
		cron    string
		reports []string
	)

	cmd := &cobra.Command{
		Use:   "watch [scenario...]",
		Short: "Run scenarios on a cron schedule until interrupted",
		Long: `Runs the selected scenarios (default: [schedule] scenarios, else all) on a
cron schedule such as "*/15 * * * *" or "@every 10m". A pass that is still
running when the next one is due causes that tick to be skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cron == "" {
				cron = c.config.Schedule.Cron
			}
			if cron == "" {
				return errors.New("no schedule: pass --schedule or set [schedule] cron")
			}
			names := args
			if len(names) == 0 {
				names = c.config.Schedule.Scenarios
			}
			if len(reports) == 0 {
				reports = c.config.Output.Reports
			}

			c.printBanner()

			registry, err := c.registry()
			if err != nil {
				return err
			}
			selected, err := registry.Lookup(names)
			if err != nil {
				return err
			}

			runner, cleanup, err := c.newRunner(false)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			watcher := schedule.NewWatcher(func(ctx context.Context) error {
				records, err := runner.RunAll(ctx, selected)
				for _, record := range records {
					c.writeReports(record, reports)
					c.printResult(record)
				}
				return err
			}, c.logger)

			if err := watcher.Start(ctx, cron); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Watching %d scenario(s) on %q, press Ctrl+C to stop\n", len(selected), cron)

			<-ctx.Done()
			watcher.Stop()

			status := watcher.Status()
			c.logger.Info().
				Int("runs", status.Runs).
				Int("failures", status.Failures).
				Int("skipped", status.Skipped).
				Msg("Watch stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&cron, "schedule", "", "Cron schedule (overrides [schedule] cron)")
	cmd.Flags().StringSliceVar(&reports, "report", nil, "Report formats to write per run (overrides config)")
	return cmd
}
