package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/mapcheck/internal/common"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// no configuration needed
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "MapCheck version %s\n", common.GetFullVersion())
		},
	}
}
