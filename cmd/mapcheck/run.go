package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/mapcheck/internal/browser"
	"github.com/ternarybob/mapcheck/internal/common"
	"github.com/ternarybob/mapcheck/internal/httpclient"
	"github.com/ternarybob/mapcheck/internal/interfaces"
	"github.com/ternarybob/mapcheck/internal/models"
	"github.com/ternarybob/mapcheck/internal/report"
	"github.com/ternarybob/mapcheck/internal/scenario"
)

type runOptions struct {
	reports       []string
	noStore       bool
	skipPreflight bool
}

func (c *cli) newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [scenario...]",
		Short: "Run scenarios (all of them when none are named)",
		Long: `Runs each named scenario in its own browser session, in order. A scenario
stops at its first failing step; later scenarios still run. The exit code is 1
when any scenario failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, args, opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.reports, "report", nil, "Report formats to write per run: markdown, html, pdf (overrides config)")
	cmd.Flags().BoolVar(&opts.noStore, "no-store", false, "Do not record runs in history")
	cmd.Flags().BoolVar(&opts.skipPreflight, "skip-preflight", false, "Launch the browser even if the base URL does not answer")
	return cmd
}

func (c *cli) run(cmd *cobra.Command, names []string, opts *runOptions) error {
	c.printBanner()

	registry, err := c.registry()
	if err != nil {
		return err
	}
	selected, err := registry.Lookup(names)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !opts.skipPreflight {
		client := httpclient.NewDefaultHTTPClient(c.config.Wait.Navigate())
		if err := httpclient.CheckReachable(ctx, client, c.config.Target.BaseURL); err != nil {
			c.logger.Error().Err(err).Str("base_url", c.config.Target.BaseURL).Msg("Map editor is not reachable")
			return err
		}
	}

	runner, cleanup, err := c.newRunner(opts.noStore)
	if err != nil {
		return err
	}
	defer cleanup()

	formats := c.config.Output.Reports
	if len(opts.reports) > 0 {
		formats = opts.reports
	}

	records, runErr := runner.RunAll(ctx, selected)
	for _, record := range records {
		c.writeReports(record, formats)
		c.printResult(record)
	}

	if runErr != nil {
		return &exitError{code: 1, err: runErr}
	}
	return nil
}

// newRunner builds the runner for the configured engine. History is opened
// unless disabled; failing to open it only loses history.
func (c *cli) newRunner(noStore bool) (*scenario.Runner, func(), error) {
	engine, err := browser.NewEngine(c.config.Browser.Engine, c.logger)
	if err != nil {
		return nil, nil, err
	}
	manager := browser.NewManager(engine, browser.LaunchOptionsFromConfig(c.config.Browser), c.logger)

	var store interfaces.RunStorage
	cleanup := func() {}
	if !noStore && c.config.Storage.Badger.Path != "" {
		storage, err := c.openStore()
		if err != nil {
			c.logger.Warn().Err(err).Msg("Run history unavailable, continuing without it")
		} else {
			store = storage.RunStorage()
			cleanup = func() {
				if err := storage.Close(); err != nil {
					c.logger.Warn().Err(err).Msg("Failed to close run history")
				}
			}
		}
	}

	return scenario.NewRunner(manager, store, scenario.ConfigFrom(c.config), c.logger), cleanup, nil
}

func (c *cli) writeReports(record *models.RunRecord, formats []string) {
	if len(formats) == 0 || record.ResultsDir == "" {
		return
	}
	paths, err := report.NewService(c.logger).WriteAll(record, formats, "")
	if err != nil {
		c.logger.Warn().Err(err).Str("run_id", record.ID).Msg("Failed to write run reports")
	}
	for _, p := range paths {
		c.logger.Info().Str("run_id", record.ID).Str("path", p).Msg("Report written")
	}
}

func (c *cli) printResult(record *models.RunRecord) {
	status := "PASS"
	if record.Status != models.RunStatusPassed {
		status = "FAIL"
	}
	fmt.Fprintf(c.out, "%s  %-20s  %8s  %s\n", status, record.Scenario, record.Duration().Round(time.Millisecond), record.ResultsDir)
	if record.Status != models.RunStatusPassed {
		fmt.Fprintf(c.out, "      step %q: %s\n", record.FailedStep, record.Error)
	}
}

func (c *cli) printBanner() {
	if c.out == os.Stdout {
		common.PrintBanner(c.config, c.logger)
	}
}
