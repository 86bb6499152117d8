package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// BlackoutCmd creates the blackout command
func BlackoutCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:       "blackout <add|remove|list> [yyyy-mm-dd]",
		Short:     "Manage dates on which no shift is generated",
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: []string{"add", "remove", "list"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "list" {
				dates, err := app.Service.ListBlackoutDates(app.Ctx)
				if err != nil {
					return err
				}
				if len(dates) == 0 {
					fmt.Println("No blackout dates")
					return nil
				}
				for _, date := range dates {
					fmt.Printf("  %s\n", date)
				}
				return nil
			}

			if err := app.requireEventPermission(); err != nil {
				return err
			}
			if len(args) != 2 {
				return fmt.Errorf("blackout %s needs a date (yyyy-mm-dd)", args[0])
			}

			var changed bool
			var err error
			switch args[0] {
			case "add":
				changed, err = app.Service.AddBlackoutDate(app.Ctx, args[1])
			case "remove":
				changed, err = app.Service.RemoveBlackoutDate(app.Ctx, args[1])
			default:
				return fmt.Errorf("unknown blackout action %q (use add, remove or list)", args[0])
			}
			if err := reportSaveError(err); err != nil {
				return err
			}

			if changed {
				fmt.Printf("✓ Blackout %s %s\n", args[1], pastTense(args[0]))
			} else {
				fmt.Printf("Nothing to do for %s\n", args[1])
			}
			return nil
		},
	}
}

// RoleCmd creates the role command
func RoleCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:       "role <enable|disable|list> [name]",
		Short:     "Enable or disable signups for a role",
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: []string{"enable", "disable", "list"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "list" {
				roles, err := app.Service.ListRoles(app.Ctx)
				if err != nil {
					return err
				}
				for _, role := range roles {
					state := "open"
					if role.Disabled {
						state = "disabled"
					}
					fmt.Printf("  %s %-20s %s\n", role.Emoji, role.Name, state)
				}
				return nil
			}

			if err := app.requireEventPermission(); err != nil {
				return err
			}
			if len(args) < 2 {
				return fmt.Errorf("role %s needs a role name", args[0])
			}
			name := strings.Join(args[1:], " ")

			var changed bool
			var err error
			switch args[0] {
			case "enable":
				changed, err = app.Service.EnableRole(app.Ctx, name)
			case "disable":
				changed, err = app.Service.DisableRole(app.Ctx, name)
			default:
				return fmt.Errorf("unknown role action %q (use enable, disable or list)", args[0])
			}
			if err := reportSaveError(err); err != nil {
				return err
			}

			if changed {
				fmt.Printf("✓ %s %s\n", name, pastTense(args[0]))
			} else {
				fmt.Printf("%s is already %s\n", name, pastTense(args[0]))
			}
			return nil
		},
	}
}

func pastTense(action string) string {
	switch action {
	case "add":
		return "added"
	case "remove":
		return "removed"
	case "enable":
		return "enabled"
	case "disable":
		return "disabled"
	}
	return action
}
