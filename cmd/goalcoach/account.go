package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goalcoach/goalcoach/internal/cloudsync"
	"github.com/goalcoach/goalcoach/internal/identity"
	"github.com/goalcoach/goalcoach/internal/model"
	"github.com/goalcoach/goalcoach/internal/ui"
	"github.com/spf13/cobra"
)

func newSignInCmd(e *env) *cobra.Command {
	var (
		email  string
		noPull bool
	)
	cmd := &cobra.Command{
		Use:     "signin <user-id>",
		GroupID: "account",
		Short:   "Sign in and pull the account's records",
		Long: `Sign in as user-id.

Records written from now on are owned by this user. Unless --no-pull is
given, the user's records are pulled from the remote backend into the local
database. Records of other users stay on disk but are hidden.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.open(cmd)
			if err != nil {
				return err
			}
			uid := strings.TrimSpace(args[0])
			if err := a.SignIn(uid, email); err != nil {
				return fmt.Errorf("failed to sign in: %w", err)
			}

			u := e.ui()
			u.Success("Signed in as %s", uid)
			if noPull {
				return nil
			}
			return reportPull(u, a.NewCoordinator(nil).Pull(cmd.Context(), uid))
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email shown by whoami")
	cmd.Flags().BoolVar(&noPull, "no-pull", false, "skip pulling remote records")
	return cmd
}

func newSignOutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "signout",
		GroupID: "account",
		Short:   "Sign out, keeping local data",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.open(cmd)
			if err != nil {
				return err
			}
			if a.Identity.Current() == "" {
				e.ui().Info("Not signed in")
				return nil
			}
			if err := a.SignOut(); err != nil {
				return fmt.Errorf("failed to sign out: %w", err)
			}
			e.ui().Success("Signed out")
			return nil
		},
	}
}

func newWhoAmICmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "whoami",
		GroupID: "account",
		Short:   "Show the signed-in user",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.open(cmd)
			if err != nil {
				return err
			}
			s, err := identity.LoadSession(a.Config.SessionFile)
			if errors.Is(err, identity.ErrNoSession) {
				e.ui().Info("Not signed in")
				return nil
			}
			if err != nil {
				return err
			}

			line := s.UserID
			if s.Email != "" {
				line += " <" + s.Email + ">"
			}
			fmt.Fprintln(e.out, line)
			fmt.Fprintf(e.out, "signed in %s\n", ui.Relative(s.SignedInAt, e.now()))
			return nil
		},
	}
}

// reportPull prints a pull summary. A kind that failed makes the command
// fail after the others are reported.
func reportPull(u *ui.UI, res cloudsync.PullResult) error {
	var failed []string
	for _, kind := range []string{model.GoalKind.Name, model.JournalKind.Name, model.PlaceKind.Name} {
		if err, ok := res.Errors[kind]; ok {
			u.Warn("%s: %v", kind, err)
			failed = append(failed, kind)
			continue
		}
		u.Info("%s: %d pulled", kind, res.Applied[kind])
	}
	if len(failed) > 0 {
		return fmt.Errorf("pull failed for %s", strings.Join(failed, ", "))
	}
	u.Success("Pull complete in %s", res.Duration.Round(time.Millisecond))
	return nil
}
