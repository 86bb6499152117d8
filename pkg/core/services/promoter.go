package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/retro-shifts/pkg/core/model"
)

// PromotionOutcome describes what happened to one unposted event
type PromotionOutcome string

const (
	OutcomePosted    PromotionOutcome = "posted"
	OutcomeAdopted   PromotionOutcome = "adopted"
	OutcomeDuplicate PromotionOutcome = "duplicate"
	OutcomeExpired   PromotionOutcome = "expired"
	OutcomeFailed    PromotionOutcome = "failed"
)

// PromotedEvent is the result for one event of a promotion run
type PromotedEvent struct {
	PreviousID string
	EventID    string
	Title      string
	Outcome    PromotionOutcome
	Err        error
}

// PromotionResult contains the outcome of one promotion run
type PromotionResult struct {
	Events []PromotedEvent
}

// Count returns how many events ended with outcome
func (r *PromotionResult) Count(outcome PromotionOutcome) int {
	n := 0
	for _, ev := range r.Events {
		if ev.Outcome == outcome {
			n++
		}
	}
	return n
}

// CheckAndPostScheduledEvents promotes unposted events when the local time is
// inside the daily posting window. Returns nil when outside it.
func (s *ShiftService) CheckAndPostScheduledEvents(ctx context.Context) (*PromotionResult, error) {
	local := s.clock.Now().In(s.loc)
	if local.Hour() != s.cfg.AutoPostHour {
		return nil, nil
	}
	if time.Duration(local.Minute())*time.Minute >= s.cfg.AutoPostWindow {
		return nil, nil
	}

	s.logger.Info("Posting time reached, checking for scheduled events",
		zap.Int("hour", s.cfg.AutoPostHour))
	return s.PostScheduledEvents(ctx)
}

// PostScheduledEvents turns every unposted future event into a live one with
// a permanent ID. An event already visible in the messenger's recent history
// is adopted or marked duplicate instead of being posted twice. A failure on
// one event does not stop the others.
func (s *ShiftService) PostScheduledEvents(ctx context.Context) (*PromotionResult, error) {
	var result *PromotionResult
	err := s.do(ctx, func() error {
		var err error
		result, err = s.promote(ctx)
		return err
	})
	return result, err
}

func (s *ShiftService) promote(ctx context.Context) (*PromotionResult, error) {
	result := &PromotionResult{}
	now := s.clock.Now()

	var pending []*model.Event
	for _, ev := range s.events {
		if !ev.Posted && !ev.Cancelled {
			pending = append(pending, ev)
		}
	}
	if len(pending) == 0 {
		s.logger.Info("No scheduled events to post")
		return result, nil
	}
	sortByStart(pending)
	s.logger.Info("Found scheduled events to post", zap.Int("count", len(pending)))

	history, err := s.messenger.RecentPosts(ctx, s.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to read recent posts: %w", err)
	}
	s.logger.Debug("Loaded post history", zap.Int("posts", len(history)))

	changed := false
	for _, ev := range pending {
		entry := PromotedEvent{PreviousID: ev.ID, EventID: ev.ID, Title: ev.Title}
		dateKey := ev.DateKey(s.loc)

		if !ev.Start.After(now) {
			entry.Outcome = OutcomeExpired
			result.Events = append(result.Events, entry)
			s.logger.Debug("Not posting past event", zap.String("eventID", ev.ID))
			continue
		}

		if match, ok := s.findPublished(history, ev, now); ok {
			if owner, tracked := s.events[match.ID]; tracked && owner != ev && !owner.Cancelled {
				ev.Posted = true
				ev.Cancelled = true
				ev.DuplicateOf = match.ID
				s.clearEventTimers(ev.ID)
				entry.Outcome = OutcomeDuplicate
				s.logger.Info("Shift already posted, marking duplicate",
					zap.String("eventID", ev.ID),
					zap.String("postID", match.ID))
			} else {
				s.rekey(ev, match.ID)
				ev.Posted = true
				s.armEventTimers(ev)
				s.refreshPost(ctx, ev)
				entry.EventID = ev.ID
				entry.Outcome = OutcomeAdopted
				s.logger.Info("Shift already posted, adopting existing post",
					zap.String("previousID", entry.PreviousID),
					zap.String("postID", match.ID))
			}
			s.generated[dateKey] = now.UnixMilli()
			result.Events = append(result.Events, entry)
			changed = true
			continue
		}

		if ev.Signups.Count() == 0 {
			ev.Signups = model.NewSignups(s.cfg.RoleNames())
		}

		id, err := s.messenger.PublishPost(ctx, s.postFor(ev))
		if err != nil {
			entry.Outcome = OutcomeFailed
			entry.Err = err
			result.Events = append(result.Events, entry)
			s.logger.Warn("Failed to post scheduled event", zap.String("eventID", ev.ID), zap.Error(err))
			continue
		}
		history = append(history, model.PublishedPost{ID: id, Title: ev.Title, Start: ev.Start})

		s.rekey(ev, id)
		ev.Posted = true
		armed := s.armEventTimers(ev)
		s.generated[dateKey] = now.UnixMilli()
		changed = true

		entry.EventID = id
		entry.Outcome = OutcomePosted
		result.Events = append(result.Events, entry)
		s.logger.Info("Posted scheduled event",
			zap.String("previousID", entry.PreviousID),
			zap.String("eventID", id),
			zap.Int("timers", armed))
	}

	s.logger.Info("Promotion finished",
		zap.Int("posted", result.Count(OutcomePosted)),
		zap.Int("adopted", result.Count(OutcomeAdopted)),
		zap.Int("duplicates", result.Count(OutcomeDuplicate)),
		zap.Int("failed", result.Count(OutcomeFailed)))

	if !changed {
		return result, nil
	}
	if err := s.saveEventsAndGenerated(ctx); err != nil {
		return result, err
	}
	return result, nil
}

// findPublished looks for a post of the same shift that is still upcoming
func (s *ShiftService) findPublished(history []model.PublishedPost, ev *model.Event, now time.Time) (model.PublishedPost, bool) {
	dateKey := ev.DateKey(s.loc)
	for _, post := range history {
		if post.Title != ev.Title || !post.Start.After(now) {
			continue
		}
		if post.Start.In(s.loc).Format(model.DateLayout) != dateKey {
			continue
		}
		if owner, ok := s.events[post.ID]; ok && owner.Cancelled {
			continue
		}
		return post, true
	}
	return model.PublishedPost{}, false
}

// rekey moves ev to newID. Timers armed under the old ID are cleared; the
// caller arms new ones.
func (s *ShiftService) rekey(ev *model.Event, newID string) {
	if ev.ID == newID {
		return
	}
	s.clearEventTimers(ev.ID)
	delete(s.events, ev.ID)
	ev.ID = newID
	s.events[newID] = ev
}

// RepostEvent publishes a fresh post for an upcoming live event and retracts
// the old one. An empty id picks the next upcoming posted event.
func (s *ShiftService) RepostEvent(ctx context.Context, id string) (model.Event, error) {
	var out model.Event
	err := s.do(ctx, func() error {
		now := s.clock.Now()

		var ev *model.Event
		if id == "" {
			upcoming := s.upcoming(now, true)
			if len(upcoming) == 0 {
				return ErrNoUpcomingEvent
			}
			ev = upcoming[0]
		} else {
			found, err := s.lookupLive(id)
			if err != nil {
				return err
			}
			if !found.Start.After(now) {
				return fmt.Errorf("%w: %s", ErrPastInstant, model.FormatTime(found.Start, s.loc))
			}
			if !found.Posted {
				return fmt.Errorf("%w: %s has not been posted yet", ErrNoUpcomingEvent, id)
			}
			ev = found
		}

		oldID := ev.ID
		newID, err := s.messenger.PublishPost(ctx, s.postFor(ev))
		if err != nil {
			return fmt.Errorf("failed to publish repost: %w", err)
		}

		if !IsSyntheticID(oldID) {
			if err := s.messenger.RetractPost(ctx, oldID); err != nil {
				s.logger.Warn("Failed to retract old post", zap.String("eventID", oldID), zap.Error(err))
			}
		}

		s.rekey(ev, newID)
		armed := s.armEventTimers(ev)
		s.logger.Info("Reposted event",
			zap.String("previousID", oldID),
			zap.String("eventID", newID),
			zap.Int("timers", armed))

		out = ev.Clone()
		return s.saveEvents(ctx)
	})
	return out, err
}
