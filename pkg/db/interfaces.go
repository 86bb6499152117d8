package db

import "context"

// Database defines the persistence operations for the five shift collections.
// Both the flat-file db.DB and postgres.DB implement this interface.
//
// Collections are independent: a failed save of one leaves the others as
// they were. Both backends fall back to the previously saved version of a
// collection that cannot be decoded. Loads of the flat-file backend never
// fail; a postgres load error means the collection is unknown, and callers
// must not save over it.
type Database interface {
	LoadEvents(ctx context.Context) (map[string]EventRecord, error)
	SaveEvents(ctx context.Context, events map[string]EventRecord) error

	LoadGenerated(ctx context.Context) (map[string]int64, error)
	SaveGenerated(ctx context.Context, generated map[string]int64) error

	LoadBlackoutDates(ctx context.Context) ([]string, error)
	SaveBlackoutDates(ctx context.Context, dates []string) error

	LoadShiftLog(ctx context.Context) ([]ShiftLogEntry, error)
	SaveShiftLog(ctx context.Context, entries []ShiftLogEntry) error

	LoadDisabledRoles(ctx context.Context) ([]string, error)
	SaveDisabledRoles(ctx context.Context, roles []string) error

	// SaveEventsAndGenerated persists the events together with the
	// generation tracking. Only backends with transactions make this atomic.
	SaveEventsAndGenerated(ctx context.Context, events map[string]EventRecord, generated map[string]int64) error

	Close() error
}

// ReferenceWatcher is implemented by backends that can report when the
// blackout dates or disabled roles were changed by another writer
type ReferenceWatcher interface {
	Watch(ctx context.Context, onChange func(Collection)) error
}
