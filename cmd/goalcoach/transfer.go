package main

import (
	"fmt"
	"io"
	"os"

	"github.com/goalcoach/goalcoach/internal/transfer"
	"github.com/spf13/cobra"
)

func newExportCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "export [file]",
		GroupID: "sync",
		Short:   "Export the signed-in user's records as YAML",
		Long:    `Write every goal, journal entry and place of the signed-in user as YAML, to file or to stdout.`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.openSignedIn(cmd)
			if err != nil {
				return err
			}

			var w io.Writer = e.out
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Create(args[0])
				if err != nil {
					return fmt.Errorf("failed to create export file: %w", err)
				}
				defer f.Close()
				w = f
			}

			c, err := transfer.Export(cmd.Context(), w, a.TransferSet())
			if err != nil {
				return err
			}
			if w != e.out {
				e.ui().Success("Exported %d goals, %d journal entries and %d places to %s", c.Goals, c.Journal, c.Places, args[0])
			}
			return nil
		},
	}
}

func newImportCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "import <file>",
		GroupID: "sync",
		Short:   "Import records from a YAML export",
		Long: `Import every record of an export into the signed-in user's account. Records
with an id that already exists are replaced. Use - to read stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.openSignedIn(cmd)
			if err != nil {
				return err
			}

			var r io.Reader = e.in
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open import file: %w", err)
				}
				defer f.Close()
				r = f
			}

			c, err := transfer.Import(cmd.Context(), r, a.TransferSet())
			u := e.ui()
			if c.Goals+c.Journal+c.Places > 0 {
				u.Success("Imported %d goals, %d journal entries and %d places", c.Goals, c.Journal, c.Places)
			}
			return err
		},
	}
}
