package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/jakechorley/retro-shifts/pkg/core/model"
)

const weekKeyPrefix = "week-"

// Reasons a day of the week got no generated event
const (
	SkipClosed   = "not an open day"
	SkipBlackout = "blackout date"
	SkipExists   = "event already exists"
	SkipPassed   = "shift time has passed"
)

// SkippedDay is a day the generator left alone
type SkippedDay struct {
	Date   string
	Reason string
}

// GenerateResult contains the outcome of one weekly generation
type GenerateResult struct {
	WeekStart time.Time
	Created   []model.Event
	Skipped   []SkippedDay
}

// WeekStart returns Monday 00:00 of the week containing t, in loc
func WeekStart(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	daysSinceMonday := (int(local.Weekday()) + 6) % 7
	day := local.AddDate(0, 0, -daysSinceMonday)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
}

// WeekKey is the generation tracking key for the week starting at weekStart
func WeekKey(weekStart time.Time) string {
	return weekKeyPrefix + weekStart.Format(model.DateLayout)
}

// GenerateWeeklySchedule creates an unposted event for every open day of the
// current week that is not blacked out and has no live event yet. Running it
// again in the same week creates nothing new.
func (s *ShiftService) GenerateWeeklySchedule(ctx context.Context) (*GenerateResult, error) {
	var result *GenerateResult
	err := s.do(ctx, func() error {
		var err error
		result, err = s.generateWeek(ctx)
		return err
	})
	return result, err
}

// CheckAndGenerateSchedule generates the current week unless tracking says it
// already has been. Returns nil when nothing was attempted.
func (s *ShiftService) CheckAndGenerateSchedule(ctx context.Context) (*GenerateResult, error) {
	var result *GenerateResult
	err := s.do(ctx, func() error {
		key := WeekKey(WeekStart(s.clock.Now(), s.loc))
		if _, done := s.generated[key]; done {
			return nil
		}
		s.logger.Info("No schedule generated for this week yet", zap.String("week", key))

		var err error
		result, err = s.generateWeek(ctx)
		return err
	})
	return result, err
}

// shiftOccurrences expands the open days of the week into shift start times
// keyed by date
func (s *ShiftService) shiftOccurrences(weekStart time.Time) (map[string]time.Time, error) {
	openDays, err := s.cfg.OpenWeekdays()
	if err != nil {
		return nil, err
	}
	if len(openDays) == 0 {
		return map[string]time.Time{}, nil
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   weekStart,
		Byweekday: openDays,
		Byhour:    []int{s.cfg.ShiftStartHour},
		Byminute:  []int{0},
		Bysecond:  []int{0},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build open day rule: %w", err)
	}

	weekEnd := weekStart.AddDate(0, 0, 7)
	occurrences := map[string]time.Time{}
	for _, t := range rule.Between(weekStart, weekEnd.Add(-time.Nanosecond), true) {
		local := t.In(s.loc)
		occurrences[local.Format(model.DateLayout)] = local
	}
	return occurrences, nil
}

// hasLiveEventOn reports whether a non-cancelled event falls on dateKey
func (s *ShiftService) hasLiveEventOn(dateKey string) bool {
	for _, ev := range s.events {
		if !ev.Cancelled && ev.DateKey(s.loc) == dateKey {
			return true
		}
	}
	return false
}

func (s *ShiftService) generateWeek(ctx context.Context) (*GenerateResult, error) {
	now := s.clock.Now()
	weekStart := WeekStart(now, s.loc)
	result := &GenerateResult{WeekStart: weekStart}

	s.logger.Info("Generating weekly schedule",
		zap.String("week", weekStart.Format(model.DateLayout)),
		zap.Strings("openDays", s.cfg.OpenDays))

	occurrences, err := s.shiftOccurrences(weekStart)
	if err != nil {
		return nil, err
	}

	skip := func(dateKey, reason string) {
		result.Skipped = append(result.Skipped, SkippedDay{Date: dateKey, Reason: reason})
		s.logger.Debug("Skipping day", zap.String("date", dateKey), zap.String("reason", reason))
	}

	generatedAt := now.UnixMilli()
	for i := 0; i < 7; i++ {
		dateKey := weekStart.AddDate(0, 0, i).Format(model.DateLayout)

		start, open := occurrences[dateKey]
		if !open {
			skip(dateKey, SkipClosed)
			continue
		}
		if s.blackout[dateKey] {
			skip(dateKey, SkipBlackout)
			continue
		}
		if s.hasLiveEventOn(dateKey) {
			skip(dateKey, SkipExists)
			continue
		}
		if !start.After(now) {
			skip(dateKey, SkipPassed)
			continue
		}

		ev := &model.Event{
			ID:      generatedIDPrefix + uuid.NewString(),
			Title:   s.shiftTitle(start),
			Start:   start,
			Signups: model.NewSignups(s.cfg.RoleNames()),
		}
		s.events[ev.ID] = ev
		s.generated[dateKey] = generatedAt
		armed := s.armEventTimers(ev)
		result.Created = append(result.Created, ev.Clone())

		s.logger.Info("Scheduled shift",
			zap.String("eventID", ev.ID),
			zap.String("date", dateKey),
			zap.String("title", ev.Title),
			zap.Int("timers", armed))
	}

	s.generated[WeekKey(weekStart)] = generatedAt

	s.logger.Info("Weekly schedule generated",
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", len(result.Skipped)))

	if err := s.saveEventsAndGenerated(ctx); err != nil {
		return result, err
	}
	return result, nil
}

// shiftTitle formats the configured title with the weekday name
func (s *ShiftService) shiftTitle(start time.Time) string {
	if !strings.Contains(s.cfg.ShiftTitleFormat, "%s") {
		return s.cfg.ShiftTitleFormat
	}
	day := start.In(s.loc).Weekday().String()
	return fmt.Sprintf(s.cfg.ShiftTitleFormat, day)
}
