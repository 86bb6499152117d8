package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/retro-shifts/pkg/db"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorDim    = "\033[2m"
)

// ShiftLogCmd creates the shiftLog command
func ShiftLogCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "shiftLog [count]",
		Short: "Show who staffed the most recent shifts (default 10)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count := 10
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("count must be a positive integer, got: %s", args[0])
				}
				count = n
			}

			app.Logger.Debug("shiftLog command", zap.Int("count", count))

			entries, err := app.Service.ShiftLog(app.Ctx)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No shifts have been archived yet")
				return nil
			}
			entries = lastEntries(entries, count)
			roles := app.Cfg.RoleNames()
			loc := app.Cfg.Location()

			fmt.Printf("\nShift log (last %d shifts)\n\n", len(entries))

			// Column widths
			dateColWidth := 18
			roleColWidth := 14
			for _, role := range roles {
				if len(role)+2 > roleColWidth {
					roleColWidth = len(role) + 2
				}
			}

			fmt.Printf("%-*s", dateColWidth, "")
			for _, role := range roles {
				fmt.Printf("%-*s", roleColWidth, role)
			}
			fmt.Printf("%s\n", "Staffed")

			fmt.Print(strings.Repeat("-", dateColWidth))
			for range roles {
				fmt.Print(strings.Repeat("-", roleColWidth))
			}
			fmt.Println(strings.Repeat("-", 8))

			for _, entry := range entries {
				start := time.Unix(entry.Datetime, 0).In(loc)
				fmt.Printf("%-*s", dateColWidth, start.Format("Mon 02 Jan 3:04PM"))

				for _, role := range roles {
					users := entry.Signups[role]
					if len(users) == 0 {
						fmt.Printf("%s%-*s%s", colorDim, roleColWidth, "-", colorReset)
						continue
					}
					fmt.Printf("%-*s", roleColWidth, truncate(strings.Join(users, ","), roleColWidth-1))
				}

				filled := filledRoles(entry, roles)
				color := staffingColor(filled, len(roles), colorGreen, colorYellow, colorRed)
				fmt.Printf("%s%d/%d%s\n", color, filled, len(roles), colorReset)
			}

			fmt.Println()
			fmt.Println("Legend:")
			fmt.Printf("  %sX/Y%s = every role covered or more than half\n", colorGreen, colorReset)
			fmt.Printf("  %sX/Y%s = half or fewer roles covered\n", colorYellow, colorReset)
			fmt.Printf("  %sX/Y%s = nobody signed up\n", colorRed, colorReset)

			return nil
		},
	}
}

// lastEntries returns the newest count entries, oldest first
func lastEntries(entries []db.ShiftLogEntry, count int) []db.ShiftLogEntry {
	if len(entries) <= count {
		return entries
	}
	return entries[len(entries)-count:]
}

// filledRoles counts the roles of an archived shift that had anyone on them
func filledRoles(entry db.ShiftLogEntry, roles []string) int {
	filled := 0
	for _, role := range roles {
		if len(entry.Signups[role]) > 0 {
			filled++
		}
	}
	return filled
}

// staffingColor picks green for more than half the roles covered, red for
// none and yellow otherwise
func staffingColor(filled, total int, green, yellow, red string) string {
	switch {
	case filled == 0:
		return red
	case filled*2 > total:
		return green
	default:
		return yellow
	}
}

func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}
	if width <= 1 {
		return s[:width]
	}
	return s[:width-1] + "…"
}
