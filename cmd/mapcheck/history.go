package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/mapcheck/internal/interfaces"
	"github.com/ternarybob/mapcheck/internal/models"
)

func (c *cli) newHistoryCmd() *cobra.Command {
	opts := &interfaces.RunListOptions{}
	var (
		status string
		keep   int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Status = models.RunStatus(status)

			storage, err := c.openStore()
			if err != nil {
				return err
			}
			defer storage.Close()

			if cmd.Flags().Changed("keep") {
				deleted, err := storage.Prune(cmd.Context(), keep)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "Deleted %d run(s)\n", deleted)
			}

			runs, err := storage.RunStorage().ListRuns(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(c.out, "No runs recorded")
				return nil
			}

			w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSCENARIO\tSTATUS\tSTARTED\tDURATION\tFAILED STEP")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					run.ID,
					run.Scenario,
					run.Status,
					run.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					run.Duration().Round(time.Millisecond),
					run.FailedStep,
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "Only runs of this scenario")
	cmd.Flags().StringVar(&status, "status", "", "Only runs with this status (passed, failed)")
	cmd.Flags().IntVar(&keep, "keep", 0, "Delete all but the newest N runs before listing")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")
	return cmd
}
