package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goalcoach/goalcoach/internal/daemon"
	"github.com/spf13/cobra"
)

func newSyncCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sync",
		GroupID: "sync",
		Short:   "Sync with the remote backend",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "pull",
		Short: "Pull the signed-in user's records from the remote backend",
		Long: `Copy every record the remote backend holds for the signed-in user into
the local database. Remote records replace local ones with the same id;
local records the remote does not know about are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.openSignedIn(cmd)
			if err != nil {
				return err
			}
			return reportPull(e.ui(), a.NewCoordinator(nil).Pull(cmd.Context(), a.Identity.Current()))
		},
	})
	return cmd
}

func newServeCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		GroupID: "sync",
		Short:   "Run the local sync service",
		Long: `Run goalcoach as a long-lived service.

The service follows sign-ins made from any goalcoach process, pulls the
account's records on each sign-in, and streams live record snapshots:

  ws://localhost:8080/ws/goals
  ws://localhost:8080/ws/journal
  ws://localhost:8080/ws/places
  ws://localhost:8080/ws/insights/confidence

Writes go through the REST API under /api. /health and /metrics report
status.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.open(cmd)
			if err != nil {
				return err
			}

			d, err := daemon.New(a, &daemon.Config{
				DebounceInterval: a.Config.Debounce,
				Port:             a.Config.ServerPort,
				Logger:           a.Logger("daemon"),
			})
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			go func() {
				select {
				case <-d.Ready():
					fmt.Fprintf(e.out, "Serving on http://localhost:%d\n", a.Config.ServerPort)
					fmt.Fprintln(e.out, "Press Ctrl+C to stop...")
				case <-ctx.Done():
				}
			}()
			return d.Start(ctx)
		},
	}
	cmd.Flags().Int("port", 8080, "HTTP port")
	return cmd
}

func newStatusCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		GroupID: "sync",
		Short:   "Show local database and sync status",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.open(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			u := e.ui()

			u.Title("goalcoach")
			owner := a.Identity.Current()
			if owner == "" {
				u.Info("  Signed in: no")
			} else {
				u.Info("  Signed in: %s", owner)
			}
			u.Info("  Database:  %s", a.Config.DBPath)
			if v, err := a.DB.Version(ctx); err == nil {
				u.Info("  Schema:    v%d", v)
			}
			backend := a.Config.Remote.Backend
			if backend == "" {
				backend = "none"
			}
			u.Info("  Remote:    %s", backend)

			if owner == "" {
				return nil
			}
			goals, err := count(ctx, a.Goals)
			if err != nil {
				return err
			}
			entries, err := count(ctx, a.Journal)
			if err != nil {
				return err
			}
			places, err := count(ctx, a.Places)
			if err != nil {
				return err
			}
			u.Info("  Goals:     %d", goals)
			u.Info("  Journal:   %d", entries)
			u.Info("  Places:    %d", places)
			return nil
		},
	}
}

func count[T any](ctx context.Context, l lister[T]) (int, error) {
	recs, err := l.List(ctx)
	return len(recs), err
}
