package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/retro-shifts/pkg/core/model"
)

// SignupCmd creates the signup command
func SignupCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "signup <event-id> <role>",
		Short: "Sign up for a role on a shift (moves you off any other role)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := app.requireUser()
			if err != nil {
				return err
			}
			role := strings.Join(args[1:], " ")

			app.Logger.Debug("signup command", zap.String("eventID", args[0]), zap.String("role", role), zap.String("user", user))

			previous, err := app.Service.AddSignup(app.Ctx, args[0], role, user)
			if err := reportSaveError(err); err != nil {
				return err
			}
			if len(previous) > 0 {
				fmt.Printf("✓ %s moved from %s to %s\n", user, strings.Join(previous, ", "), role)
			} else {
				fmt.Printf("✓ %s signed up as %s\n", user, role)
			}
			return nil
		},
	}
}

// UnsignupCmd creates the unsignup command
func UnsignupCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unsignup <event-id> <role>",
		Short: "Remove yourself from a role on a shift",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := app.requireUser()
			if err != nil {
				return err
			}
			role := strings.Join(args[1:], " ")

			removed, err := app.Service.RemoveSignup(app.Ctx, args[0], role, user)
			if err := reportSaveError(err); err != nil {
				return err
			}
			if !removed {
				fmt.Printf("%s was not signed up as %s\n", user, role)
				return nil
			}
			fmt.Printf("✓ %s removed from %s\n", user, role)
			return nil
		},
	}
}

// MySignupsCmd creates the mySignups command
func MySignupsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mySignups",
		Short: "List the upcoming shifts you are signed up for",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := app.requireUser()
			if err != nil {
				return err
			}

			signups, err := app.Service.MySignups(app.Ctx, user)
			if err != nil {
				return err
			}
			if len(signups) == 0 {
				fmt.Printf("%s has no upcoming shifts\n", user)
				return nil
			}

			fmt.Printf("\nUpcoming shifts for %s\n\n", user)
			for _, s := range signups {
				fmt.Printf("  %-22s %-30s %s\n",
					model.FormatTime(s.Event.Start, app.Cfg.Location()), s.Event.Title, strings.Join(s.Roles, ", "))
			}
			fmt.Println()
			return nil
		},
	}
}
