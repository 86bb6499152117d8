package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"go.uber.org/zap"

	"github.com/jakechorley/retro-shifts/pkg/atomicfile"
)

var fileNames = map[Collection]string{
	CollectionEvents:        "scheduled_events.json",
	CollectionGenerated:     "auto_posted.json",
	CollectionBlackoutDates: "blackout_dates.json",
	CollectionShiftLog:      "shift_logs.json",
	CollectionDisabledRoles: "disabled_roles.json",
}

// DB provides database operations over one JSON file per collection
type DB struct {
	dir    string
	files  map[Collection]*atomicfile.File
	logger *zap.Logger
}

// NewDB creates a file-backed database rooted at dir
func NewDB(dir string, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	files := make(map[Collection]*atomicfile.File, len(fileNames))
	for collection, name := range fileNames {
		files[collection] = atomicfile.New(filepath.Join(dir, name), logger.With(zap.String("collection", string(collection))))
	}

	return &DB{
		dir:    dir,
		files:  files,
		logger: logger,
	}, nil
}

// Dir returns the data directory
func (db *DB) Dir() string { return db.dir }

// Path returns the file backing a collection
func (db *DB) Path(collection Collection) string {
	return db.files[collection].Path()
}

// LoadEvents retrieves every event record keyed by ID
func (db *DB) LoadEvents(ctx context.Context) (map[string]EventRecord, error) {
	events, src := atomicfile.Load(db.files[CollectionEvents], map[string]EventRecord{})
	if events == nil {
		events = map[string]EventRecord{}
	}
	db.logLoaded(CollectionEvents, src, len(events))
	return events, nil
}

// SaveEvents replaces the event collection
func (db *DB) SaveEvents(ctx context.Context, events map[string]EventRecord) error {
	if events == nil {
		return fmt.Errorf("refusing to save nil events")
	}
	if err := db.files[CollectionEvents].Save(events); err != nil {
		return fmt.Errorf("failed to save events: %w", err)
	}
	db.logger.Debug("Saved events", zap.Int("count", len(events)))
	return nil
}

// LoadGenerated retrieves the generation tracking (date key -> epoch ms)
func (db *DB) LoadGenerated(ctx context.Context) (map[string]int64, error) {
	generated, src := atomicfile.Load(db.files[CollectionGenerated], map[string]int64{})
	if generated == nil {
		generated = map[string]int64{}
	}
	db.logLoaded(CollectionGenerated, src, len(generated))
	return generated, nil
}

// SaveGenerated replaces the generation tracking
func (db *DB) SaveGenerated(ctx context.Context, generated map[string]int64) error {
	if err := db.files[CollectionGenerated].Save(generated); err != nil {
		return fmt.Errorf("failed to save generation tracking: %w", err)
	}
	return nil
}

// LoadBlackoutDates retrieves the blackout dates
func (db *DB) LoadBlackoutDates(ctx context.Context) ([]string, error) {
	dates, src := atomicfile.Load(db.files[CollectionBlackoutDates], []string{})
	if dates == nil {
		dates = []string{}
	}
	db.logLoaded(CollectionBlackoutDates, src, len(dates))
	return dates, nil
}

// SaveBlackoutDates replaces the blackout dates, sorted
func (db *DB) SaveBlackoutDates(ctx context.Context, dates []string) error {
	sorted := slices.Clone(dates)
	if sorted == nil {
		sorted = []string{}
	}
	slices.Sort(sorted)
	if err := db.files[CollectionBlackoutDates].Save(sorted); err != nil {
		return fmt.Errorf("failed to save blackout dates: %w", err)
	}
	return nil
}

// LoadShiftLog retrieves the shift archive
func (db *DB) LoadShiftLog(ctx context.Context) ([]ShiftLogEntry, error) {
	entries, src := atomicfile.Load(db.files[CollectionShiftLog], []ShiftLogEntry{})
	if entries == nil {
		entries = []ShiftLogEntry{}
	}
	db.logLoaded(CollectionShiftLog, src, len(entries))
	return entries, nil
}

// SaveShiftLog replaces the shift archive
func (db *DB) SaveShiftLog(ctx context.Context, entries []ShiftLogEntry) error {
	if entries == nil {
		entries = []ShiftLogEntry{}
	}
	if err := db.files[CollectionShiftLog].Save(entries); err != nil {
		return fmt.Errorf("failed to save shift log: %w", err)
	}
	return nil
}

// LoadDisabledRoles retrieves the disabled role names
func (db *DB) LoadDisabledRoles(ctx context.Context) ([]string, error) {
	roles, src := atomicfile.Load(db.files[CollectionDisabledRoles], []string{})
	if roles == nil {
		roles = []string{}
	}
	db.logLoaded(CollectionDisabledRoles, src, len(roles))
	return roles, nil
}

// SaveDisabledRoles replaces the disabled role names
func (db *DB) SaveDisabledRoles(ctx context.Context, roles []string) error {
	if roles == nil {
		roles = []string{}
	}
	if err := db.files[CollectionDisabledRoles].Save(roles); err != nil {
		return fmt.Errorf("failed to save disabled roles: %w", err)
	}
	return nil
}

// SaveEventsAndGenerated writes both files one after the other. The files
// are independent, so either may succeed while the other fails.
func (db *DB) SaveEventsAndGenerated(ctx context.Context, events map[string]EventRecord, generated map[string]int64) error {
	eventsErr := db.SaveEvents(ctx, events)
	generatedErr := db.SaveGenerated(ctx, generated)
	return errors.Join(eventsErr, generatedErr)
}

// Close is a no-op for the file backend
func (db *DB) Close() error {
	return nil
}

func (db *DB) logLoaded(collection Collection, src atomicfile.Source, count int) {
	db.logger.Debug("Loaded collection",
		zap.String("collection", string(collection)),
		zap.String("source", src.String()),
		zap.Int("count", count))
}

var (
	_ Database         = (*DB)(nil)
	_ ReferenceWatcher = (*DB)(nil)
)
