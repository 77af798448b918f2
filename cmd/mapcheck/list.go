package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (c *cli) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := c.registry()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSTEPS\tSOURCE\tDESCRIPTION")
			for _, sc := range registry.List() {
				source := sc.Source
				if source == "" {
					source = "built-in"
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", sc.Name, len(sc.Steps), source, sc.Description)
			}
			return w.Flush()
		},
	}
}
