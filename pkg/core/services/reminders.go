package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/retro-shifts/pkg/core/model"
	"github.com/jakechorley/retro-shifts/pkg/db"
)

// Timer slots armed per event
const (
	SlotReminder    = "reminder"
	SlotBackup2h    = "backup-2h"
	SlotBackup5m    = "backup-5m"
	SlotBackupStart = "backup-start"
)

type backupLead struct {
	slot   string
	offset time.Duration
	label  string
}

var backupLeads = []backupLead{
	{slot: SlotBackup2h, offset: 2 * time.Hour, label: "2 hours"},
	{slot: SlotBackup5m, offset: 5 * time.Minute, label: "5 minutes"},
	{slot: SlotBackupStart, offset: 0, label: "now (shift starting)"},
}

// scheduleReminder arms the start reminder. Nothing is armed for a start
// that has already passed.
func (s *ShiftService) scheduleReminder(ev *model.Event) bool {
	id := ev.ID
	return s.timers.Arm(id, SlotReminder, ev.Start, func() { s.fireReminder(id) })
}

// scheduleBackupAlert arms one timer per backup lead that is still ahead
func (s *ShiftService) scheduleBackupAlert(ev *model.Event) int {
	id := ev.ID
	armed := 0
	for _, lead := range backupLeads {
		label := lead.label
		if s.timers.Arm(id, lead.slot, ev.Start.Add(-lead.offset), func() { s.fireBackupAlert(id, label) }) {
			armed++
		}
	}
	return armed
}

// armEventTimers arms every timer for a live event
func (s *ShiftService) armEventTimers(ev *model.Event) int {
	if ev.Cancelled {
		return 0
	}
	armed := s.scheduleBackupAlert(ev)
	if s.scheduleReminder(ev) {
		armed++
	}
	return armed
}

// clearEventTimers cancels everything armed for id. Safe to call repeatedly.
func (s *ShiftService) clearEventTimers(id string) int {
	n := s.timers.CancelAll(id)
	if n > 0 {
		s.logger.Debug("Cleared event timers", zap.String("eventID", id), zap.Int("count", n))
	}
	return n
}

// rearmTimers rebuilds the timers of every non-cancelled event from its
// start. This is the only way timers survive a restart.
func (s *ShiftService) rearmTimers() int {
	s.timers.Clear()
	armed := 0
	for _, ev := range s.events {
		armed += s.armEventTimers(ev)
	}
	return armed
}

func (s *ShiftService) fireReminder(id string) {
	ev, ok := s.events[id]
	if !ok || ev.Cancelled {
		s.logger.Debug("Skipping reminder for missing or cancelled event", zap.String("eventID", id))
		return
	}
	ctx := s.runCtx

	s.logger.Info("Shift starting", zap.String("eventID", id), zap.String("title", ev.Title))
	if err := s.messenger.SendReminder(ctx, s.postFor(ev)); err != nil {
		s.logger.Warn("Failed to send reminder", zap.String("eventID", id), zap.Error(err))
	}

	signups := ev.Signups.Clone()
	if signups == nil {
		signups = model.Signups{}
	}
	s.shiftLog = append(s.shiftLog, db.ShiftLogEntry{
		EventID:    ev.ID,
		Title:      ev.Title,
		Datetime:   ev.Start.UnixMilli(),
		Signups:    signups,
		ArchivedAt: s.clock.Now().UnixMilli(),
	})
	_ = s.saveShiftLog(ctx)
}

func (s *ShiftService) fireBackupAlert(id, label string) {
	ev, ok := s.events[id]
	if !ok || ev.Cancelled {
		s.logger.Debug("Skipping backup alert for missing or cancelled event",
			zap.String("eventID", id),
			zap.String("lead", label))
		return
	}
	s.escalate(s.runCtx, ev, label)
}

// ArmedTimers returns the armed slot names for an event
func (s *ShiftService) ArmedTimers(ctx context.Context, id string) ([]string, error) {
	var slots []string
	err := s.do(ctx, func() error {
		slots = s.timers.Slots(id)
		return nil
	})
	return slots, err
}
