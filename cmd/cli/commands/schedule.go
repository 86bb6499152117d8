package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/retro-shifts/pkg/core/model"
	"github.com/jakechorley/retro-shifts/pkg/core/services"
)

// GenerateScheduleCmd creates the generateSchedule command
func GenerateScheduleCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "generateSchedule",
		Short: "Create this week's shifts for every open day (not posted until the posting hour)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireEventPermission(); err != nil {
				return err
			}

			result, err := app.Service.GenerateWeeklySchedule(app.Ctx)
			if err := reportSaveError(err); err != nil {
				return err
			}
			printGenerateResult(result, app)
			return nil
		},
	}
}

// PostScheduledCmd creates the postScheduled command
func PostScheduledCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "postScheduled",
		Short: "Post every generated shift now instead of waiting for the posting hour",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireEventPermission(); err != nil {
				return err
			}

			result, err := app.Service.PostScheduledEvents(app.Ctx)
			if err := reportSaveError(err); err != nil {
				return err
			}
			printPromotionResult(result)
			return nil
		},
	}
}

func printGenerateResult(result *services.GenerateResult, app *AppContext) {
	if result == nil {
		return
	}
	fmt.Printf("\nWeek of %s\n", result.WeekStart.Format(model.DateLayout))
	for _, ev := range result.Created {
		fmt.Printf("  ✓ %s  %s\n", model.FormatTime(ev.Start, app.Cfg.Location()), ev.Title)
	}
	for _, skipped := range result.Skipped {
		if skipped.Reason == services.SkipClosed {
			continue
		}
		fmt.Printf("  - %s skipped: %s\n", skipped.Date, skipped.Reason)
	}
	if len(result.Created) == 0 {
		fmt.Println("  No new shifts created")
	}
	fmt.Println()
}

func printPromotionResult(result *services.PromotionResult) {
	if result == nil || len(result.Events) == 0 {
		fmt.Println("No scheduled shifts waiting to be posted")
		return
	}
	for _, ev := range result.Events {
		switch ev.Outcome {
		case services.OutcomePosted:
			fmt.Printf("  ✓ Posted %s (ID %s)\n", ev.Title, ev.EventID)
		case services.OutcomeAdopted:
			fmt.Printf("  ✓ Found existing post for %s (ID %s)\n", ev.Title, ev.EventID)
		case services.OutcomeDuplicate:
			fmt.Printf("  - %s was already posted, marked as duplicate\n", ev.Title)
		case services.OutcomeExpired:
			fmt.Printf("  - %s has already started, not posted\n", ev.Title)
		case services.OutcomeFailed:
			fmt.Printf("  ❌ %s: %v\n", ev.Title, ev.Err)
		}
	}
}
