package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// RoleStatus is a configured role and whether it takes signups
type RoleStatus struct {
	Name     string
	Emoji    string
	Disabled bool
}

// DisableRole stops new signups for role. People already signed up stay.
// Returns false if it was already disabled.
func (s *ShiftService) DisableRole(ctx context.Context, role string) (bool, error) {
	return s.setRoleDisabled(ctx, role, true)
}

// EnableRole lets role take signups again. Returns false if it was not
// disabled.
func (s *ShiftService) EnableRole(ctx context.Context, role string) (bool, error) {
	return s.setRoleDisabled(ctx, role, false)
}

func (s *ShiftService) setRoleDisabled(ctx context.Context, role string, disabled bool) (bool, error) {
	name, ok := s.cfg.CanonicalRole(role)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}

	changed := false
	err := s.do(ctx, func() error {
		if s.disabled[name] == disabled {
			return nil
		}
		if disabled {
			s.disabled[name] = true
		} else {
			delete(s.disabled, name)
		}
		changed = true
		s.logger.Info("Role availability changed", zap.String("role", name), zap.Bool("disabled", disabled))

		saveErr := s.saveDisabledRoles(ctx)
		// Posts show which roles are disabled
		for _, ev := range s.upcoming(s.clock.Now(), true) {
			s.refreshPost(ctx, ev)
		}
		return saveErr
	})
	return changed, err
}

// ListRoles returns every configured role in display order
func (s *ShiftService) ListRoles(ctx context.Context) ([]RoleStatus, error) {
	var out []RoleStatus
	err := s.do(ctx, func() error {
		for _, role := range s.cfg.Roles {
			out = append(out, RoleStatus{
				Name:     role.Name,
				Emoji:    role.Emoji,
				Disabled: s.disabled[role.Name],
			})
		}
		return nil
	})
	return out, err
}
