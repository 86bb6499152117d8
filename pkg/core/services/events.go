package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/retro-shifts/internal/config"
	"github.com/jakechorley/retro-shifts/pkg/core/model"
)

const (
	generatedIDPrefix = "scheduled_"
	manualIDPrefix    = "scheduled_manual_"
)

// IsSyntheticID reports whether id was made up locally rather than issued
// by the messenger
func IsSyntheticID(id string) bool {
	return strings.HasPrefix(id, generatedIDPrefix)
}

// CreateEvent adds a live shift and publishes it straight away. If the post
// cannot be published the event keeps a local ID and still gets timers.
func (s *ShiftService) CreateEvent(ctx context.Context, title string, start time.Time) (model.Event, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Event{}, ErrInvalidTitle
	}

	var out model.Event
	err := s.do(ctx, func() error {
		if !start.After(s.clock.Now()) {
			return fmt.Errorf("%w: %s", ErrPastInstant, model.FormatTime(start, s.loc))
		}

		ev := &model.Event{
			ID:              manualIDPrefix + uuid.NewString(),
			Title:           title,
			Start:           start,
			Signups:         model.NewSignups(s.cfg.RoleNames()),
			Posted:          true,
			ManuallyCreated: true,
		}

		if id, err := s.messenger.PublishPost(ctx, s.postFor(ev)); err != nil {
			s.logger.Warn("Failed to publish new event, keeping local ID",
				zap.String("eventID", ev.ID),
				zap.Error(err))
		} else {
			ev.ID = id
		}

		s.events[ev.ID] = ev
		armed := s.armEventTimers(ev)

		s.logger.Info("Created event",
			zap.String("eventID", ev.ID),
			zap.String("title", ev.Title),
			zap.Time("start", ev.Start),
			zap.Int("timers", armed))

		out = ev.Clone()
		return s.saveEvents(ctx)
	})
	return out, err
}

// CancelEvent marks a shift cancelled and stops its timers. The record is
// kept.
func (s *ShiftService) CancelEvent(ctx context.Context, id string) error {
	return s.do(ctx, func() error {
		ev, err := s.lookupLive(id)
		if err != nil {
			return err
		}

		ev.Cancelled = true
		cleared := s.clearEventTimers(id)
		s.logger.Info("Cancelled event",
			zap.String("eventID", id),
			zap.String("title", ev.Title),
			zap.Int("timersCleared", cleared))

		saveErr := s.saveEvents(ctx)
		s.refreshPost(ctx, ev)
		return saveErr
	})
}

// EditEventTime moves a shift to a new start. Old timers are cleared before
// new ones are armed so none can fire for the old time.
func (s *ShiftService) EditEventTime(ctx context.Context, id string, start time.Time) (model.Event, error) {
	var out model.Event
	err := s.do(ctx, func() error {
		ev, err := s.lookupLive(id)
		if err != nil {
			return err
		}
		if !start.After(s.clock.Now()) {
			return fmt.Errorf("%w: %s", ErrPastInstant, model.FormatTime(start, s.loc))
		}

		previous := ev.Start
		s.clearEventTimers(id)
		ev.Start = start
		armed := s.armEventTimers(ev)

		s.logger.Info("Moved event",
			zap.String("eventID", id),
			zap.Time("from", previous),
			zap.Time("to", start),
			zap.Int("timers", armed))

		out = ev.Clone()
		saveErr := s.saveEvents(ctx)
		s.refreshPost(ctx, ev)
		return saveErr
	})
	return out, err
}

// RefreshEvent re-sends the current state of an event's post. Unlike the
// refresh after a change, a failure here is returned.
func (s *ShiftService) RefreshEvent(ctx context.Context, id string) error {
	return s.do(ctx, func() error {
		ev, ok := s.events[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrEventNotFound, id)
		}
		if !ev.Posted || IsSyntheticID(ev.ID) {
			return fmt.Errorf("%w: %s has no published post", ErrNoUpcomingEvent, id)
		}
		if err := s.messenger.UpdatePost(ctx, s.postFor(ev)); err != nil {
			return fmt.Errorf("failed to refresh post: %w", err)
		}
		return nil
	})
}

// ListUpcoming returns live shifts starting within windowDays, soonest first
func (s *ShiftService) ListUpcoming(ctx context.Context, windowDays int) ([]model.Event, error) {
	if windowDays <= 0 {
		return nil, ErrInvalidWindow
	}

	var out []model.Event
	err := s.do(ctx, func() error {
		now := s.clock.Now()
		limit := now.AddDate(0, 0, windowDays)
		var list []*model.Event
		for _, ev := range s.upcoming(now, false) {
			if ev.Start.After(limit) {
				break
			}
			list = append(list, ev)
		}
		out = clones(list)
		return nil
	})
	return out, err
}

// NextShift returns the soonest upcoming live shift
func (s *ShiftService) NextShift(ctx context.Context) (model.Event, error) {
	var out model.Event
	err := s.do(ctx, func() error {
		list := s.upcoming(s.clock.Now(), false)
		if len(list) == 0 {
			return ErrNoUpcomingEvent
		}
		out = list[0].Clone()
		return nil
	})
	return out, err
}

// OpeningStatus says whether the bar is open right now and when the next
// shift starts, going by the configured open days and start hour
type OpeningStatus struct {
	Now            time.Time
	Today          string
	OpenNow        bool
	OpenDays       []string
	NextShiftStart time.Time // zero when no day is open
}

// ComputeOpeningStatus works out the opening status at now
func ComputeOpeningStatus(now time.Time, cfg *config.Config) OpeningStatus {
	local := now.In(cfg.Location())
	status := OpeningStatus{
		Now:      local,
		Today:    local.Weekday().String(),
		OpenDays: cfg.OpenDays,
	}
	status.OpenNow = cfg.IsOpenDay(local.Weekday()) && local.Hour() >= cfg.ShiftStartHour

	if cfg.IsOpenDay(local.Weekday()) && local.Hour() < cfg.ShiftStartHour {
		status.NextShiftStart = shiftStartOn(local, cfg.ShiftStartHour)
		return status
	}
	for daysAhead := 1; daysAhead <= 7; daysAhead++ {
		day := local.AddDate(0, 0, daysAhead)
		if cfg.IsOpenDay(day.Weekday()) {
			status.NextShiftStart = shiftStartOn(day, cfg.ShiftStartHour)
			break
		}
	}
	return status
}

func shiftStartOn(day time.Time, hour int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, day.Location())
}

// OpeningStatus reports whether the bar is open now
func (s *ShiftService) OpeningStatus(ctx context.Context) (OpeningStatus, error) {
	return ComputeOpeningStatus(s.clock.Now(), s.cfg), nil
}
