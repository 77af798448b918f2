package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/mapcheck/internal/models"
	"github.com/ternarybob/mapcheck/internal/report"
)

func (c *cli) newReportCmd() *cobra.Command {
	var (
		formats  []string
		scenario string
		dir      string
	)

	cmd := &cobra.Command{
		Use:   "report [run-id]",
		Short: "Write reports for a recorded run",
		Long: `Renders a stored run as markdown, HTML or PDF. Without a run ID the latest
run (of --scenario, when given) is used. Reports go next to the run's
screenshots unless --dir is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, err := c.openStore()
			if err != nil {
				return err
			}
			defer storage.Close()

			var run *models.RunRecord
			if len(args) == 1 {
				run, err = storage.RunStorage().GetRun(cmd.Context(), args[0])
			} else {
				run, err = storage.RunStorage().LatestRun(cmd.Context(), scenario)
			}
			if err != nil {
				return err
			}

			if len(formats) == 0 {
				formats = c.config.Output.Reports
			}
			paths, err := report.NewService(c.logger).WriteAll(run, formats, dir)
			for _, p := range paths {
				fmt.Fprintln(c.out, p)
			}
			return err
		},
	}
	cmd.Flags().StringSliceVarP(&formats, "format", "f", nil, "Report formats: markdown, html, pdf (default from config)")
	cmd.Flags().StringVar(&scenario, "scenario", "", "Use the latest run of this scenario")
	cmd.Flags().StringVar(&dir, "dir", "", "Output directory (default: the run's results directory)")
	return cmd
}
