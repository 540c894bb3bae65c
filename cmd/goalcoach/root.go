package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:   "goalcoach",
		Short: "Goals, journal and places that sync across devices",
		Long: `goalcoach keeps your goals, journal entries and saved places in a local
database and mirrors every change to a remote backend.

Writes land locally first and are pushed in the background. Signing in
pulls the account's records from the remote; signing out keeps local data.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(e.in)
	root.SetOut(e.out)
	root.SetErr(e.errOut)

	root.AddGroup(
		&cobra.Group{ID: "records", Title: "Records:"},
		&cobra.Group{ID: "account", Title: "Account:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
	)

	pf := root.PersistentFlags()
	pf.String("data-dir", "", "data directory (default ~/.goalcoach)")
	pf.String("db-path", "", "local database file (default <data-dir>/goalcoach.db)")
	pf.String("log-file", "", "also log to this rotating file")
	pf.String("remote", "", "remote backend: none, memory, redis, s3 or libsql")
	pf.BoolP("verbose", "v", false, "log to stderr")

	root.AddCommand(
		newGoalCmd(e),
		newJournalCmd(e),
		newPlaceCmd(e),
		newInsightsCmd(e),
		newSignInCmd(e),
		newSignOutCmd(e),
		newWhoAmICmd(e),
		newStatusCmd(e),
		newSyncCmd(e),
		newServeCmd(e),
		newExportCmd(e),
		newImportCmd(e),
	)
	return root
}
