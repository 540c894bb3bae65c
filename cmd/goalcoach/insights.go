package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/goalcoach/goalcoach/internal/app"
	"github.com/goalcoach/goalcoach/internal/insights"
	"github.com/goalcoach/goalcoach/internal/store"
	"github.com/spf13/cobra"
)

func newInsightsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "insights",
		GroupID: "records",
		Short:   "Summaries of your records",
	}

	var watch bool
	confidence := &cobra.Command{
		Use:   "confidence",
		Short: "Confidence trend per goal over the last 90 days",
		Long: `Show how the confidence ratings of journal entries moved over the last 90
days, one line per goal. Entries not linked to a goal are grouped under
"General". With --watch, the trend is printed again after every change,
including changes made by other goalcoach processes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.openSignedIn(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if watch {
				var stop func()
				if ctx, stop, err = followChanges(ctx, a); err != nil {
					return err
				}
				defer stop()
			}

			u := e.ui()
			for series := range insights.WatchConfidence(ctx, a.Journal, a.Goals, e.now()) {
				u.Trend(series)
				if !watch {
					return nil
				}
				u.Info("")
			}
			return nil
		},
	}
	confidence.Flags().BoolVarP(&watch, "watch", "w", false, "keep printing as entries change")
	cmd.AddCommand(confidence)
	return cmd
}

// followChanges makes a's observers see sign-ins and database writes from
// other processes until stop is called. The returned context also ends on
// an interrupt.
func followChanges(ctx context.Context, a *app.App) (_ context.Context, stop func(), _ error) {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	if err := a.Identity.Start(); err != nil {
		cancel()
		return nil, nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = store.WatchFiles(ctx, a.Config.DBPath, a.Config.Debounce, a.Logger("store"), a.Stores()...)
	}()

	return ctx, func() {
		cancel()
		<-done
		_ = a.Identity.Stop()
	}, nil
}
