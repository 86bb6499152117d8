package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jakechorley/retro-shifts/pkg/core/model"
)

// parseDateTime reads "dd-mm-yyyy h:mm AM/PM" in loc. The meridiem may be
// any case and extra spaces are ignored.
func parseDateTime(value string, loc *time.Location) (time.Time, error) {
	normalized := strings.ToUpper(strings.Join(strings.Fields(value), " "))
	t, err := time.ParseInLocation(model.DisplayLayout, normalized, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date/time %q: use DD-MM-YYYY h:mm AM/PM (e.g. 25-01-2026 9:00 PM)", value)
	}
	return t, nil
}

// parseWindowDays reads an optional day count, defaulting to def
func parseWindowDays(args []string, def int) (int, error) {
	if len(args) == 0 {
		return def, nil
	}
	days, err := strconv.Atoi(args[0])
	if err != nil || days < 1 {
		return 0, fmt.Errorf("days must be a positive integer, got: %s", args[0])
	}
	return days, nil
}
