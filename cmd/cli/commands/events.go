package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/retro-shifts/pkg/core/model"
	"github.com/jakechorley/retro-shifts/pkg/core/services"
)

const defaultListDays = 7

// CreateEventCmd creates the createEvent command
func CreateEventCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "createEvent <title> <dd-mm-yyyy> <h:mm> <AM|PM>",
		Short: "Create and post a one-off shift",
		Args:  cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireEventPermission(); err != nil {
				return err
			}

			n := len(args)
			title := strings.Join(args[:n-3], " ")
			start, err := parseDateTime(strings.Join(args[n-3:], " "), app.Cfg.Location())
			if err != nil {
				return err
			}

			app.Logger.Debug("createEvent command", zap.String("title", title), zap.Time("start", start))

			ev, err := app.Service.CreateEvent(app.Ctx, title, start)
			if err := reportSaveError(err); err != nil {
				return err
			}

			fmt.Printf("✓ Created %s for %s (ID %s)\n", ev.Title, model.FormatTime(ev.Start, app.Cfg.Location()), ev.ID)
			if services.IsSyntheticID(ev.ID) {
				fmt.Println("  Post could not be published yet, use 'repost' to retry")
			}
			return nil
		},
	}
}

// CancelEventCmd creates the cancelEvent command
func CancelEventCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancelEvent <id>",
		Short: "Cancel a shift and stop its reminders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireEventPermission(); err != nil {
				return err
			}
			if err := reportSaveError(app.Service.CancelEvent(app.Ctx, args[0])); err != nil {
				return err
			}
			fmt.Printf("✓ Cancelled %s\n", args[0])
			return nil
		},
	}
}

// EditEventTimeCmd creates the editEventTime command
func EditEventTimeCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "editEventTime <id> <dd-mm-yyyy> <h:mm> <AM|PM>",
		Short: "Move a shift to a new start time",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireEventPermission(); err != nil {
				return err
			}
			start, err := parseDateTime(strings.Join(args[1:], " "), app.Cfg.Location())
			if err != nil {
				return err
			}

			ev, err := app.Service.EditEventTime(app.Ctx, args[0], start)
			if err := reportSaveError(err); err != nil {
				return err
			}
			fmt.Printf("✓ %s now starts %s\n", ev.Title, model.FormatTime(ev.Start, app.Cfg.Location()))
			return nil
		},
	}
}

// ListEventsCmd creates the listEvents command
func ListEventsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "listEvents [days]",
		Short: "List upcoming shifts (default 7 days)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := parseWindowDays(args, defaultListDays)
			if err != nil {
				return err
			}

			events, err := app.Service.ListUpcoming(app.Ctx, days)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Printf("No shifts in the next %d days\n", days)
				return nil
			}

			fmt.Printf("\nUpcoming shifts (next %d days)\n\n", days)
			for _, ev := range events {
				fmt.Println(formatEventLine(ev, app))
			}
			fmt.Println()
			return nil
		},
	}
}

// NextShiftCmd creates the nextShift command
func NextShiftCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "nextShift",
		Short: "Show the next upcoming shift and who is on it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := app.Service.NextShift(app.Ctx)
			if errors.Is(err, services.ErrNoUpcomingEvent) {
				fmt.Println("No upcoming shifts")
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Println(formatEventLine(ev, app))
			for _, role := range app.Cfg.RoleNames() {
				users := ev.Signups[role]
				if len(users) == 0 {
					continue
				}
				fmt.Printf("  %s %s: %s\n", app.Cfg.RoleEmoji(role), role, strings.Join(users, ", "))
			}
			return nil
		},
	}
}

// AreWeOpenCmd creates the areWeOpen command
func AreWeOpenCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "areWeOpen",
		Short: "Say whether the bar is open now and when the next shift starts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := app.Service.OpeningStatus(app.Ctx)
			if err != nil {
				return err
			}

			if status.OpenNow {
				fmt.Printf("🟢 Open tonight (%s)\n", status.Today)
			} else {
				fmt.Printf("🔴 Closed right now (%s)\n", status.Today)
			}
			if !status.NextShiftStart.IsZero() {
				fmt.Printf("Next shift: %s\n", model.FormatTime(status.NextShiftStart, app.Cfg.Location()))
			}
			fmt.Printf("Open days: %s\n", strings.Join(status.OpenDays, ", "))
			return nil
		},
	}
}

// RepostCmd creates the repost command
func RepostCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "repost [id]",
		Short: "Publish a fresh post for a shift and retract the old one (default: next shift)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireEventPermission(); err != nil {
				return err
			}
			id := ""
			if len(args) == 1 {
				id = args[0]
			}

			ev, err := app.Service.RepostEvent(app.Ctx, id)
			if err := reportSaveError(err); err != nil {
				return err
			}
			fmt.Printf("✓ Reposted %s (ID %s)\n", ev.Title, ev.ID)
			return nil
		},
	}
}

// RefreshCmd creates the refresh command
func RefreshCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <id>",
		Short: "Re-render a shift's post from its current signups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Service.RefreshEvent(app.Ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("✓ Refreshed %s\n", args[0])
			return nil
		},
	}
}

func formatEventLine(ev model.Event, app *AppContext) string {
	state := ""
	switch {
	case ev.Cancelled:
		state = " [cancelled]"
	case !ev.Posted:
		state = " [scheduled]"
	}
	return fmt.Sprintf("%-22s %-30s %2d signed up  %s%s",
		model.FormatTime(ev.Start, app.Cfg.Location()), ev.Title, ev.Signups.Count(), ev.ID, state)
}

// reportSaveError prints a warning for changes that were applied but not
// saved, and passes every other error through
func reportSaveError(err error) error {
	if errors.Is(err, services.ErrNotPersisted) {
		fmt.Printf("⚠️  %v\n", err)
		return nil
	}
	return err
}
