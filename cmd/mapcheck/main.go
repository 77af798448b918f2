package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mapcheck/internal/common"
	"github.com/ternarybob/mapcheck/internal/scenario"
	"github.com/ternarybob/mapcheck/internal/scenarios"
	badgerstore "github.com/ternarybob/mapcheck/internal/storage/badger"
)

// Config files tried in order when no --config is given
var defaultConfigFiles = []string{"mapcheck.toml", "deployments/local/mapcheck.toml"}

// exitError carries a process exit code without an extra error message
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

// cli holds the flags and the state resolved before every command
type cli struct {
	out io.Writer

	configFiles []string
	baseURL     string
	engine      string
	headed      bool

	config *common.Config
	logger arbor.ILogger
}

func main() {
	defer common.RecoverWithCrashFile()

	root := newRootCmd(os.Stdout)
	if err := root.ExecuteContext(context.Background()); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:   "mapcheck",
		Short: "Browser-driven scenario runner for the map editor",
		Long: `MapCheck drives a real browser through map editor workflows (drawing features,
managing categories, filtering the legend, rotating the map) and records
screenshots, console output and run history for each scenario.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringSliceVarP(&c.configFiles, "config", "c", nil, "Configuration file path (repeatable, later files override earlier ones)")
	flags.StringVar(&c.baseURL, "base-url", "", "Map editor base URL (overrides config)")
	flags.StringVar(&c.engine, "engine", "", "Browser engine: chromedp, rod or playwright (overrides config)")
	flags.BoolVar(&c.headed, "headed", false, "Show the browser window")

	root.AddCommand(
		c.newRunCmd(),
		c.newListCmd(),
		c.newHistoryCmd(),
		c.newReportCmd(),
		c.newWatchCmd(),
		c.newFixtureCmd(),
		newVersionCmd(),
	)
	return root
}

// setup loads config (defaults -> files -> .env -> environment -> flags),
// then initializes logging and crash reports.
func (c *cli) setup(cmd *cobra.Command, args []string) error {
	files := c.configFiles
	if len(files) == 0 {
		for _, candidate := range defaultConfigFiles {
			if _, err := os.Stat(candidate); err == nil {
				files = []string{candidate}
				break
			}
		}
	}

	config, err := common.LoadFromFiles(files...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	common.ApplyFlagOverrides(config, c.baseURL, c.engine, c.headed)
	if err := config.Validate(); err != nil {
		return err
	}

	c.config = config
	c.logger = common.InitLogger(config)
	common.InstallCrashHandler("")

	c.logger.Debug().
		Strs("config_files", files).
		Str("engine", config.Browser.Engine).
		Str("base_url", config.Target.BaseURL).
		Str("results_dir", config.Output.ResultsDir).
		Str("badger_path", config.Storage.Badger.Path).
		Str("log_level", config.Logging.Level).
		Msg("Resolved configuration")
	return nil
}

// registry returns the built-in scenarios plus any definitions in [scenarios] dir
func (c *cli) registry() (*scenarios.Registry, error) {
	registry := scenarios.NewDefaultRegistry(c.logger)
	if dir := c.config.Scenarios.Dir; dir != "" {
		defs, err := scenario.LoadDefinitions(dir, c.logger)
		if err != nil {
			return nil, err
		}
		registry.RegisterAll(defs)
	}
	return registry, nil
}

// openStore opens run history. The caller closes the returned manager.
func (c *cli) openStore() (*badgerstore.Manager, error) {
	return badgerstore.NewManager(c.logger, &c.config.Storage.Badger)
}
