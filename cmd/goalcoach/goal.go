package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/goalcoach/goalcoach/internal/model"
	"github.com/goalcoach/goalcoach/internal/repository"
	"github.com/spf13/cobra"
)

func newGoalCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "goal",
		GroupID: "records",
		Short:   "Manage goals",
	}
	cmd.AddCommand(
		newGoalAddCmd(e),
		newGoalListCmd(e),
		newGoalProgressCmd(e),
		newGoalEditCmd(e),
		newGoalDeleteCmd(e),
	)
	return cmd
}

// goalForm holds the fields of the interactive goal form.
type goalForm struct {
	title    string
	category model.Category
	notes    string
	deadline string
}

func (f *goalForm) run(e *env) error {
	options := make([]huh.Option[model.Category], 0, len(model.Categories()))
	for _, c := range model.Categories() {
		options = append(options, huh.NewOption(string(c), c))
	}
	now := e.now()

	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Title").
			Value(&f.title).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("title is required")
				}
				return nil
			}),
		huh.NewSelect[model.Category]().
			Title("Category").
			Options(options...).
			Value(&f.category),
		huh.NewText().
			Title("Notes").
			Value(&f.notes),
		huh.NewInput().
			Title("Deadline").
			Description("YYYY-MM-DD, \"next friday\", or blank").
			Value(&f.deadline).
			Validate(func(s string) error {
				_, err := parseDeadline(s, now)
				return err
			}),
	)).WithInput(e.in).WithOutput(e.out)
	return form.Run()
}

func newGoalAddCmd(e *env) *cobra.Command {
	var category, notes, deadline string
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Add a goal",
		Long: `Add a goal owned by the signed-in user.

Without a title on a terminal, a form asks for the fields. Deadlines take a
date (2026-12-31) or words ("next friday", "in 3 weeks").`,
		Example: `  goalcoach goal add "Run a half marathon" --category physical --deadline "in 10 weeks"`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.openSignedIn(cmd)
			if err != nil {
				return err
			}

			cat, err := parseCategory(category)
			if err != nil {
				return err
			}
			f := goalForm{category: cat, notes: notes, deadline: deadline}
			if len(args) > 0 {
				f.title = args[0]
			}
			if strings.TrimSpace(f.title) == "" {
				if !e.interactive {
					return errors.New("title is required")
				}
				if err := f.run(e); err != nil {
					return err
				}
			}

			due, err := parseDeadline(f.deadline, e.now())
			if err != nil {
				return err
			}
			g, err := a.Goals.Add(cmd.Context(), f.title, f.category, f.notes, due)
			if err != nil {
				return err
			}

			u := e.ui()
			u.Success("Added goal %s", g.Title)
			u.Goal(g)
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "category ("+categoryList()+")")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "notes")
	cmd.Flags().StringVarP(&deadline, "deadline", "d", "", "deadline")
	return cmd
}

func newGoalListCmd(e *env) *cobra.Command {
	var category string
	var open bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List goals",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.openSignedIn(cmd)
			if err != nil {
				return err
			}
			var filter model.Category
			if category != "" {
				if filter, err = parseCategory(category); err != nil {
					return err
				}
			}

			goals, err := a.Goals.List(cmd.Context())
			if err != nil {
				return err
			}

			u := e.ui()
			shown := 0
			for _, g := range goals {
				if filter != "" && g.Category != filter {
					continue
				}
				if open && g.IsCompleted() {
					continue
				}
				u.Goal(g)
				shown++
			}
			if shown == 0 {
				u.Empty("goals")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "only this category")
	cmd.Flags().BoolVar(&open, "open", false, "hide completed goals")
	return cmd
}

func newGoalProgressCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <id> <percent>",
		Short: "Set a goal's progress",
		Long: `Set a goal's progress from 0 to 100. Reaching 100 marks the goal
completed; dropping below 100 clears the completion date.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.openSignedIn(cmd)
			if err != nil {
				return err
			}
			p, err := strconv.Atoi(strings.TrimSuffix(args[1], "%"))
			if err != nil {
				return fmt.Errorf("%w: progress must be a number, got %q", model.ErrInvalid, args[1])
			}
			id, err := resolveID(cmd.Context(), a.Goals, model.GoalKind, args[0])
			if err != nil {
				return err
			}

			g, err := a.Goals.UpdateProgress(cmd.Context(), id, p)
			if err != nil {
				return err
			}
			u := e.ui()
			if g.IsCompleted() {
				u.Success("Completed %s", g.Title)
			} else {
				u.Success("Updated %s", g.Title)
			}
			u.Goal(g)
			return nil
		},
	}
}

func newGoalEditCmd(e *env) *cobra.Command {
	var (
		title, category, notes, deadline string
		clearDeadline, clearImage        bool
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a goal's details",
		Long:  `Change a goal's title, category, notes or deadline. Progress is kept.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.openSignedIn(cmd)
			if err != nil {
				return err
			}

			var edit repository.GoalEdit
			flags := cmd.Flags()
			if flags.Changed("title") {
				edit.Title = &title
			}
			if flags.Changed("category") {
				c, err := parseCategory(category)
				if err != nil {
					return err
				}
				edit.Category = &c
			}
			if flags.Changed("notes") {
				edit.Notes = &notes
			}
			if flags.Changed("deadline") {
				if edit.Deadline, err = parseDeadline(deadline, e.now()); err != nil {
					return err
				}
				edit.ClearDeadline = edit.Deadline == nil
			}
			if clearDeadline {
				edit.ClearDeadline = true
			}
			edit.ClearImage = clearImage

			id, err := resolveID(cmd.Context(), a.Goals, model.GoalKind, args[0])
			if err != nil {
				return err
			}
			g, err := a.Goals.Update(cmd.Context(), id, edit)
			if err != nil {
				return err
			}
			u := e.ui()
			u.Success("Updated %s", g.Title)
			u.Goal(g)
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "new title")
	cmd.Flags().StringVarP(&category, "category", "c", "", "new category")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "new notes")
	cmd.Flags().StringVarP(&deadline, "deadline", "d", "", "new deadline")
	cmd.Flags().BoolVar(&clearDeadline, "clear-deadline", false, "remove the deadline")
	cmd.Flags().BoolVar(&clearImage, "clear-image", false, "remove the cover image")
	return cmd
}

func newGoalDeleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a goal",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.openSignedIn(cmd)
			if err != nil {
				return err
			}
			id, err := resolveID(cmd.Context(), a.Goals, model.GoalKind, args[0])
			if err != nil {
				return err
			}
			if err := a.Goals.Delete(cmd.Context(), id); err != nil {
				return err
			}
			e.ui().Success("Deleted goal %s", id)
			return nil
		},
	}
}
