package main

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/goalcoach/goalcoach/internal/model"
	"github.com/spf13/cobra"
)

func newPlaceCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "place",
		GroupID: "records",
		Short:   "Manage saved places",
	}
	cmd.AddCommand(newPlaceAddCmd(e), newPlaceListCmd(e), newPlaceDeleteCmd(e), newPlaceClearCmd(e))
	return cmd
}

func newPlaceAddCmd(e *env) *cobra.Command {
	var (
		lat, lon    float64
		city, state string
	)
	cmd := &cobra.Command{
		Use:     "add <name>...",
		Short:   "Save a place",
		Example: `  goalcoach place add "Riverside track" --lat 40.7812 --lon -73.9665 --city "New York" --state NY`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.openSignedIn(cmd)
			if err != nil {
				return err
			}
			p, err := a.Places.Add(cmd.Context(), strings.Join(args, " "), lat, lon, city, state)
			if err != nil {
				return err
			}
			u := e.ui()
			u.Success("Saved %s", p.Name)
			u.Place(p)
			return nil
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude")
	cmd.Flags().StringVar(&city, "city", "", "city")
	cmd.Flags().StringVar(&state, "state", "", "state or region")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	return cmd
}

func newPlaceListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved places",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.openSignedIn(cmd)
			if err != nil {
				return err
			}
			places, err := a.Places.List(cmd.Context())
			if err != nil {
				return err
			}
			u := e.ui()
			if len(places) == 0 {
				u.Empty("places")
				return nil
			}
			for _, p := range places {
				u.Place(p)
			}
			return nil
		},
	}
}

func newPlaceDeleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved place",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.openSignedIn(cmd)
			if err != nil {
				return err
			}
			id, err := resolveID(cmd.Context(), a.Places, model.PlaceKind, args[0])
			if err != nil {
				return err
			}
			if err := a.Places.Delete(cmd.Context(), id); err != nil {
				return err
			}
			e.ui().Success("Deleted place %s", id)
			return nil
		},
	}
}

func newPlaceClearCmd(e *env) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every saved place",
		Long:  `Delete every saved place of the signed-in user, locally and on the remote backend.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.openSignedIn(cmd)
			if err != nil {
				return err
			}
			if !yes {
				if !e.interactive {
					return errors.New("refusing to delete every place without --yes")
				}
				confirm := huh.NewConfirm().
					Title("Delete every saved place?").
					Affirmative("Delete").
					Negative("Cancel").
					Value(&yes)
				if err := huh.NewForm(huh.NewGroup(confirm)).WithInput(e.in).WithOutput(e.out).Run(); err != nil {
					return err
				}
				if !yes {
					e.ui().Info("Cancelled")
					return nil
				}
			}

			if err := a.Places.DeleteAllForOwner(cmd.Context()); err != nil {
				return err
			}
			e.ui().Success("Deleted every saved place")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
