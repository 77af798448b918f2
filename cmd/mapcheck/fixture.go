package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/mapcheck/internal/fixture"
)

func (c *cli) newFixtureCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "fixture",
		Short: "Serve a stub map editor for local smoke runs",
		Long: `Serves a static stand-in of the map editor with the same DOM landmarks, so
scenarios can be tried without deploying the editor:

  mapcheck fixture --addr 127.0.0.1:8080 &
  mapcheck run --base-url http://127.0.0.1:8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			server := fixture.New(addr, c.logger)
			if err := server.Start(); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Fixture editor at %s%s, press Ctrl+C to stop\n", server.URL(), fixture.EditorPath)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			select {
			case <-ctx.Done():
			case err := <-waitErr(server):
				if err != nil {
					return err
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "Listen address")
	return cmd
}

func waitErr(server *fixture.Server) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- server.Wait() }()
	return ch
}
