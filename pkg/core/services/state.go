package services

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/retro-shifts/pkg/core/model"
	"github.com/jakechorley/retro-shifts/pkg/db"
)

// loadState replaces every in-memory collection with what the database
// holds. Nothing is replaced unless every collection was read, since the
// next save of a collection that failed to load would overwrite it.
func (s *ShiftService) loadState(ctx context.Context) error {
	records, err := s.database.LoadEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to load events: %w", err)
	}
	generated, err := s.database.LoadGenerated(ctx)
	if err != nil {
		return fmt.Errorf("failed to load generation tracking: %w", err)
	}
	shiftLog, err := s.database.LoadShiftLog(ctx)
	if err != nil {
		return fmt.Errorf("failed to load shift log: %w", err)
	}
	dates, err := s.database.LoadBlackoutDates(ctx)
	if err != nil {
		return fmt.Errorf("failed to load blackout dates: %w", err)
	}
	roles, err := s.database.LoadDisabledRoles(ctx)
	if err != nil {
		return fmt.Errorf("failed to load disabled roles: %w", err)
	}

	s.events = make(map[string]*model.Event, len(records))
	for key, record := range records {
		ev := eventFromRecord(record)
		if ev.ID == "" {
			ev.ID = key
		}
		s.events[ev.ID] = ev
	}
	if generated == nil {
		generated = map[string]int64{}
	}
	s.generated = generated
	s.shiftLog = shiftLog
	s.setBlackoutDates(dates)
	s.setDisabledRoles(roles)

	s.logger.Debug("Loaded state",
		zap.Int("events", len(s.events)),
		zap.Int("generated", len(s.generated)),
		zap.Int("shiftLog", len(s.shiftLog)))
	return nil
}

func (s *ShiftService) setBlackoutDates(dates []string) {
	s.blackout = make(map[string]bool, len(dates))
	for _, date := range dates {
		s.blackout[date] = true
	}
}

func (s *ShiftService) setDisabledRoles(roles []string) {
	s.disabled = make(map[string]bool, len(roles))
	for _, role := range roles {
		if name, ok := s.cfg.CanonicalRole(role); ok {
			s.disabled[name] = true
			continue
		}
		s.logger.Warn("Ignoring unknown disabled role", zap.String("role", role))
	}
}

// ReloadReferenceData re-reads blackout dates or disabled roles after
// another process changed them
func (s *ShiftService) ReloadReferenceData(ctx context.Context, collection db.Collection) error {
	return s.do(ctx, func() error {
		// A failed read keeps the current set
		switch collection {
		case db.CollectionBlackoutDates:
			dates, err := s.database.LoadBlackoutDates(ctx)
			if err != nil {
				return fmt.Errorf("failed to reload blackout dates: %w", err)
			}
			s.setBlackoutDates(dates)
			s.logger.Info("Reloaded blackout dates", zap.Int("count", len(s.blackout)))
		case db.CollectionDisabledRoles:
			roles, err := s.database.LoadDisabledRoles(ctx)
			if err != nil {
				return fmt.Errorf("failed to reload disabled roles: %w", err)
			}
			s.setDisabledRoles(roles)
			s.logger.Info("Reloaded disabled roles", zap.Int("count", len(s.disabled)))
		default:
			return fmt.Errorf("collection %s cannot be reloaded", collection)
		}
		return nil
	})
}

func eventFromRecord(r db.EventRecord) *model.Event {
	signups := model.Signups(r.Signups).Clone()
	if signups == nil {
		signups = model.Signups{}
	}
	return &model.Event{
		ID:              r.ID,
		Title:           r.Title,
		Start:           time.UnixMilli(r.Datetime),
		Signups:         signups,
		Cancelled:       r.Cancelled,
		Posted:          r.Posted,
		ManuallyCreated: r.ManuallyCreated,
		DuplicateOf:     r.DuplicateOf,
	}
}

func recordFromEvent(ev *model.Event) db.EventRecord {
	signups := ev.Signups.Clone()
	if signups == nil {
		signups = model.Signups{}
	}
	return db.EventRecord{
		ID:              ev.ID,
		Title:           ev.Title,
		Datetime:        ev.Start.UnixMilli(),
		Signups:         signups,
		Cancelled:       ev.Cancelled,
		Posted:          ev.Posted,
		ManuallyCreated: ev.ManuallyCreated,
		DuplicateOf:     ev.DuplicateOf,
	}
}

func (s *ShiftService) eventRecords() map[string]db.EventRecord {
	records := make(map[string]db.EventRecord, len(s.events))
	for id, ev := range s.events {
		records[id] = recordFromEvent(ev)
	}
	return records
}

// notPersisted logs a failed save and wraps it for the caller. The in-memory
// state is left as it is.
func (s *ShiftService) notPersisted(what string, err error) error {
	s.logger.Error("CRITICAL: failed to persist "+what, zap.Error(err))
	return fmt.Errorf("%w: %w", ErrNotPersisted, err)
}

func (s *ShiftService) saveEvents(ctx context.Context) error {
	if err := s.database.SaveEvents(ctx, s.eventRecords()); err != nil {
		return s.notPersisted("events", err)
	}
	return nil
}

func (s *ShiftService) saveEventsAndGenerated(ctx context.Context) error {
	if err := s.database.SaveEventsAndGenerated(ctx, s.eventRecords(), copyGenerated(s.generated)); err != nil {
		return s.notPersisted("events and generation tracking", err)
	}
	return nil
}

func (s *ShiftService) saveBlackoutDates(ctx context.Context) error {
	if err := s.database.SaveBlackoutDates(ctx, s.sortedBlackoutDates()); err != nil {
		return s.notPersisted("blackout dates", err)
	}
	return nil
}

func (s *ShiftService) saveDisabledRoles(ctx context.Context) error {
	if err := s.database.SaveDisabledRoles(ctx, s.disabledRoleList()); err != nil {
		return s.notPersisted("disabled roles", err)
	}
	return nil
}

func (s *ShiftService) saveShiftLog(ctx context.Context) error {
	if err := s.database.SaveShiftLog(ctx, slices.Clone(s.shiftLog)); err != nil {
		return s.notPersisted("shift log", err)
	}
	return nil
}

func copyGenerated(m map[string]int64) map[string]int64 {
	c := make(map[string]int64, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func (s *ShiftService) sortedBlackoutDates() []string {
	dates := make([]string, 0, len(s.blackout))
	for date := range s.blackout {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

// disabledRoleList returns the disabled roles in configured order
func (s *ShiftService) disabledRoleList() []string {
	roles := []string{}
	for _, name := range s.cfg.RoleNames() {
		if s.disabled[name] {
			roles = append(roles, name)
		}
	}
	return roles
}

// postFor builds the outward view of ev with roles in configured order
func (s *ShiftService) postFor(ev *model.Event) model.Post {
	lines := make([]model.RoleLine, 0, len(s.cfg.Roles))
	for _, role := range s.cfg.Roles {
		lines = append(lines, model.RoleLine{
			Role:     role.Name,
			Emoji:    role.Emoji,
			Users:    slices.Clone(ev.Signups[role.Name]),
			Disabled: s.disabled[role.Name],
		})
	}
	return model.Post{
		EventID:   ev.ID,
		Title:     ev.Title,
		Start:     ev.Start,
		Roles:     lines,
		Cancelled: ev.Cancelled,
	}
}

// refreshPost pushes the current state of a posted event outward. Failures
// are logged only.
func (s *ShiftService) refreshPost(ctx context.Context, ev *model.Event) {
	if !ev.Posted {
		return
	}
	if err := s.messenger.UpdatePost(ctx, s.postFor(ev)); err != nil {
		s.logger.Warn("Failed to update post", zap.String("eventID", ev.ID), zap.Error(err))
	}
}

// lookupLive returns the event if it exists and is not cancelled
func (s *ShiftService) lookupLive(id string) (*model.Event, error) {
	ev, ok := s.events[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	if ev.Cancelled {
		return nil, fmt.Errorf("%w: %s", ErrEventCancelled, id)
	}
	return ev, nil
}

// upcoming returns live events starting after now, soonest first
func (s *ShiftService) upcoming(now time.Time, postedOnly bool) []*model.Event {
	var list []*model.Event
	for _, ev := range s.events {
		if ev.Cancelled || !ev.Start.After(now) {
			continue
		}
		if postedOnly && !ev.Posted {
			continue
		}
		list = append(list, ev)
	}
	sortByStart(list)
	return list
}

func sortByStart(list []*model.Event) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Start.Equal(list[j].Start) {
			return list[i].ID < list[j].ID
		}
		return list[i].Start.Before(list[j].Start)
	})
}

func clones(list []*model.Event) []model.Event {
	out := make([]model.Event, len(list))
	for i, ev := range list {
		out[i] = ev.Clone()
	}
	return out
}

// Events returns a copy of every event, soonest first
func (s *ShiftService) Events(ctx context.Context) ([]model.Event, error) {
	var out []model.Event
	err := s.do(ctx, func() error {
		list := make([]*model.Event, 0, len(s.events))
		for _, ev := range s.events {
			list = append(list, ev)
		}
		sortByStart(list)
		out = clones(list)
		return nil
	})
	return out, err
}

// Event returns a copy of one event
func (s *ShiftService) Event(ctx context.Context, id string) (model.Event, error) {
	var out model.Event
	err := s.do(ctx, func() error {
		ev, ok := s.events[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrEventNotFound, id)
		}
		out = ev.Clone()
		return nil
	})
	return out, err
}

// ShiftLog returns a copy of the shift archive
func (s *ShiftService) ShiftLog(ctx context.Context) ([]db.ShiftLogEntry, error) {
	var out []db.ShiftLogEntry
	err := s.do(ctx, func() error {
		out = slices.Clone(s.shiftLog)
		return nil
	})
	return out, err
}
