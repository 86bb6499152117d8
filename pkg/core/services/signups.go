package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/retro-shifts/pkg/core/model"
)

// AddSignup puts userID on role for an event, taking them off any other role
// first. Returns the roles they were moved out of. Disabled roles reject the
// signup without changing anything.
func (s *ShiftService) AddSignup(ctx context.Context, eventID, role, userID string) ([]string, error) {
	var previous []string
	err := s.do(ctx, func() error {
		ev, err := s.lookupLive(eventID)
		if err != nil {
			return err
		}
		name, ok := s.cfg.CanonicalRole(role)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownRole, role)
		}
		if s.disabled[name] {
			s.logger.Debug("Rejected signup for disabled role",
				zap.String("eventID", eventID),
				zap.String("role", name),
				zap.String("user", userID))
			return fmt.Errorf("%w: %s", ErrRoleDisabled, name)
		}

		if ev.Signups == nil {
			ev.Signups = model.NewSignups(s.cfg.RoleNames())
		}
		previous = ev.Signups.Assign(name, userID)

		s.logger.Info("Signup added",
			zap.String("eventID", eventID),
			zap.String("role", name),
			zap.String("user", userID),
			zap.Strings("movedFrom", previous))

		saveErr := s.saveEvents(ctx)
		s.refreshPost(ctx, ev)
		return saveErr
	})
	return previous, err
}

// RemoveSignup takes userID off role. Removing someone who is not on the
// role changes nothing and is not an error.
func (s *ShiftService) RemoveSignup(ctx context.Context, eventID, role, userID string) (bool, error) {
	removed := false
	err := s.do(ctx, func() error {
		ev, ok := s.events[eventID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
		}
		name, ok := s.cfg.CanonicalRole(role)
		if !ok {
			name = role
		}

		if !ev.Signups.Remove(name, userID) {
			return nil
		}
		removed = true

		s.logger.Info("Signup removed",
			zap.String("eventID", eventID),
			zap.String("role", name),
			zap.String("user", userID))

		saveErr := s.saveEvents(ctx)
		s.refreshPost(ctx, ev)
		return saveErr
	})
	return removed, err
}

// UserSignup is one upcoming shift a user is signed up for
type UserSignup struct {
	Event model.Event
	Roles []string
}

// MySignups lists the upcoming live shifts userID holds a role on
func (s *ShiftService) MySignups(ctx context.Context, userID string) ([]UserSignup, error) {
	var out []UserSignup
	err := s.do(ctx, func() error {
		for _, ev := range s.upcoming(s.clock.Now(), false) {
			roles := ev.Signups.RolesOf(userID)
			if len(roles) == 0 {
				continue
			}
			out = append(out, UserSignup{Event: ev.Clone(), Roles: roles})
		}
		return nil
	})
	return out, err
}
