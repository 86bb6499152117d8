package services

import "errors"

var (
	ErrEventNotFound   = errors.New("event not found")
	ErrEventCancelled  = errors.New("event is cancelled")
	ErrPastInstant     = errors.New("time is in the past")
	ErrInvalidTitle    = errors.New("title is required")
	ErrUnknownRole     = errors.New("unknown role")
	ErrRoleDisabled    = errors.New("role is disabled")
	ErrInvalidDate     = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidWindow   = errors.New("window must be at least one day")
	ErrNoUpcomingEvent = errors.New("no upcoming shift")
	ErrStopped         = errors.New("shift service is not running")

	// ErrNotPersisted wraps a save failure. The change it reports was
	// applied in memory and will be written by the next successful save.
	ErrNotPersisted = errors.New("change was applied but could not be saved")
)
