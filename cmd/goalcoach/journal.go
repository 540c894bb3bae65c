package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/goalcoach/goalcoach/internal/model"
	"github.com/spf13/cobra"
)

func newJournalCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "journal",
		GroupID: "records",
		Short:   "Write and read journal entries",
	}
	cmd.AddCommand(newJournalAddCmd(e), newJournalListCmd(e), newJournalDeleteCmd(e))
	return cmd
}

func newJournalAddCmd(e *env) *cobra.Command {
	var (
		goal       string
		confidence int
	)
	cmd := &cobra.Command{
		Use:   "add <text>...",
		Short: "Write a journal entry",
		Long: `Write a journal entry, optionally linked to a goal and rated with how
confident you feel about it (0-10).`,
		Example: `  goalcoach journal add --goal 3f2a --confidence 7 "Ran 8k without stopping"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.openSignedIn(cmd)
			if err != nil {
				return err
			}

			var goalID string
			if goal != "" {
				if goalID, err = resolveID(cmd.Context(), a.Goals, model.GoalKind, goal); err != nil {
					return err
				}
			}
			var conf *int
			if cmd.Flags().Changed("confidence") {
				conf = &confidence
			}

			entry, err := a.Journal.Add(cmd.Context(), goalID, strings.Join(args, " "), conf)
			if err != nil {
				return err
			}
			titles, err := goalTitles(cmd.Context(), a.Goals)
			if err != nil {
				return err
			}
			u := e.ui()
			u.Success("Saved entry")
			u.JournalEntry(entry, titles)
			return nil
		},
	}
	cmd.Flags().StringVarP(&goal, "goal", "g", "", "link to this goal")
	cmd.Flags().IntVarP(&confidence, "confidence", "c", 0, fmt.Sprintf("confidence rating (%d-%d)", model.MinConfidence, model.MaxConfidence))
	return cmd
}

func newJournalListCmd(e *env) *cobra.Command {
	var (
		goal  string
		limit int
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List journal entries, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.openSignedIn(cmd)
			if err != nil {
				return err
			}
			var goalID string
			if goal != "" {
				if goalID, err = resolveID(cmd.Context(), a.Goals, model.GoalKind, goal); err != nil {
					return err
				}
			}

			entries, err := a.Journal.List(cmd.Context())
			if err != nil {
				return err
			}
			titles, err := goalTitles(cmd.Context(), a.Goals)
			if err != nil {
				return err
			}

			u := e.ui()
			shown := 0
			for _, entry := range entries {
				if goalID != "" && entry.GoalID != goalID {
					continue
				}
				if limit > 0 && shown == limit {
					break
				}
				u.JournalEntry(entry, titles)
				shown++
			}
			if shown == 0 {
				u.Empty("journal entries")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&goal, "goal", "g", "", "only entries for this goal")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "show at most this many entries")
	return cmd
}

func newJournalDeleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a journal entry",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.openSignedIn(cmd)
			if err != nil {
				return err
			}
			id, err := resolveID(cmd.Context(), a.Journal, model.JournalKind, args[0])
			if err != nil {
				return err
			}
			if err := a.Journal.Delete(cmd.Context(), id); err != nil {
				return err
			}
			e.ui().Success("Deleted entry %s", id)
			return nil
		},
	}
}

// goalTitles maps goal ids to titles for labelling entries.
func goalTitles(ctx context.Context, l lister[model.Goal]) (map[string]string, error) {
	goals, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	titles := make(map[string]string, len(goals))
	for _, g := range goals {
		titles[g.ID] = g.Title
	}
	return titles, nil
}
