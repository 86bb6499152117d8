package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/retro-shifts/pkg/core/model"
)

// ParseBlackoutDate checks date is a real YYYY-MM-DD calendar date
func ParseBlackoutDate(date string) (string, error) {
	date = strings.TrimSpace(date)
	t, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return t.Format(model.DateLayout), nil
}

// AddBlackoutDate stops the generator creating a shift on date. Adding a
// date twice is not an error; the second call reports false.
func (s *ShiftService) AddBlackoutDate(ctx context.Context, date string) (bool, error) {
	key, err := ParseBlackoutDate(date)
	if err != nil {
		return false, err
	}

	added := false
	err = s.do(ctx, func() error {
		if s.blackout[key] {
			return nil
		}
		s.blackout[key] = true
		added = true
		s.logger.Info("Added blackout date", zap.String("date", key))
		return s.saveBlackoutDates(ctx)
	})
	return added, err
}

// RemoveBlackoutDate allows shifts on date again. Removing a date that is not
// blacked out reports false.
func (s *ShiftService) RemoveBlackoutDate(ctx context.Context, date string) (bool, error) {
	key, err := ParseBlackoutDate(date)
	if err != nil {
		return false, err
	}

	removed := false
	err = s.do(ctx, func() error {
		if !s.blackout[key] {
			return nil
		}
		delete(s.blackout, key)
		removed = true
		s.logger.Info("Removed blackout date", zap.String("date", key))
		return s.saveBlackoutDates(ctx)
	})
	return removed, err
}

// ListBlackoutDates returns the blackout dates, oldest first
func (s *ShiftService) ListBlackoutDates(ctx context.Context) ([]string, error) {
	var out []string
	err := s.do(ctx, func() error {
		out = s.sortedBlackoutDates()
		return nil
	})
	return out, err
}
