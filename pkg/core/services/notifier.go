package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jakechorley/retro-shifts/pkg/core/model"
)

// ComputeMissingRoles returns, in the order of roles, every role that is not
// disabled and has nobody signed up
func ComputeMissingRoles(ev *model.Event, roles []string, disabled map[string]bool) []string {
	var missing []string
	for _, role := range roles {
		if disabled[role] {
			continue
		}
		if len(ev.Signups[role]) == 0 {
			missing = append(missing, role)
		}
	}
	return missing
}

// ResolveEscalationTargets maps missing roles to who should be told. Any
// number of missing manager roles collapse to the supervisor targets, added
// once. Other roles go to the target of the same name, or a bold label when
// none resolves. Duplicates are dropped and order is kept.
func ResolveEscalationTargets(missing, managerRoles, supervisorTargets []string, resolver TargetResolver) []string {
	var targets []string
	seen := map[string]bool{}
	add := func(target string) {
		if target == "" || seen[target] {
			return
		}
		seen[target] = true
		targets = append(targets, target)
	}

	for _, role := range missing {
		if containsFold(managerRoles, role) {
			for _, target := range supervisorTargets {
				add(target)
			}
			continue
		}
		if resolver != nil {
			if target, ok := resolver.ResolveTarget(role); ok {
				add(target)
				continue
			}
		}
		add(fmt.Sprintf("**%s**", role))
	}
	return targets
}

// BuildBackupAlert renders the staff message for one alert
func BuildBackupAlert(ev *model.Event, label string, targets []string) string {
	return fmt.Sprintf("⚠️ **BACKUP NEEDED** (%s) for %s\nMissing positions:\n%s",
		label, ev.Title, strings.Join(targets, "\n"))
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

// escalate sends one backup alert for ev if any role is unfilled right now.
// Returns whether a message was attempted.
func (s *ShiftService) escalate(ctx context.Context, ev *model.Event, label string) bool {
	missing := ComputeMissingRoles(ev, s.cfg.RoleNames(), s.disabled)
	if len(missing) == 0 {
		s.logger.Debug("All roles filled, no backup alert",
			zap.String("eventID", ev.ID),
			zap.String("lead", label))
		return false
	}

	targets := ResolveEscalationTargets(missing, s.cfg.ManagerRoles, s.cfg.SupervisorTargets, s.resolver)
	text := BuildBackupAlert(ev, label, targets)

	s.logger.Info("Sending backup alert",
		zap.String("eventID", ev.ID),
		zap.String("lead", label),
		zap.Strings("missing", missing))
	if err := s.messenger.SendStaffMessage(ctx, text); err != nil {
		s.logger.Warn("Failed to send backup alert", zap.String("eventID", ev.ID), zap.Error(err))
	}
	return true
}
