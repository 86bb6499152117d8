package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/jakechorley/retro-shifts/pkg/db"
)

// querier is satisfied by both the pool and a transaction
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// loadDocument reads a collection document. A collection that has never
// been saved yields fallback. When the current document cannot be decoded
// the version it replaced is used instead; if that fails too the error is
// returned rather than an empty value that a later save would write back.
func loadDocument[T any](ctx context.Context, q querier, logger *zap.Logger, collection db.Collection, fallback T) (T, error) {
	var current, previous []byte
	err := q.QueryRow(ctx,
		`SELECT document, previous_document FROM collections WHERE name = $1`,
		string(collection)).Scan(&current, &previous)
	if errors.Is(err, pgx.ErrNoRows) {
		return fallback, nil
	}
	if err != nil {
		return fallback, fmt.Errorf("failed to query %s: %w", collection, err)
	}

	v, err := decodeDocument[T](current)
	if err == nil {
		return v, nil
	}
	if previous == nil {
		return fallback, fmt.Errorf("failed to decode %s: %w", collection, err)
	}

	v, prevErr := decodeDocument[T](previous)
	if prevErr != nil {
		return fallback, fmt.Errorf("failed to decode %s or its previous version: %w", collection, errors.Join(err, prevErr))
	}
	logger.Warn("Recovered collection from previous version",
		zap.String("collection", string(collection)),
		zap.Error(err))
	return v, nil
}

func decodeDocument[T any](raw []byte) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}

// saveDocument upserts a collection document, keeping the one it replaces
// as previous_document
func saveDocument(ctx context.Context, q querier, collection db.Collection, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", collection, err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO collections (name, document, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (name) DO UPDATE
		SET previous_document = collections.document,
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at
	`, string(collection), string(data))
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", collection, err)
	}
	return nil
}

// LoadEvents retrieves every event record keyed by ID
func (d *DB) LoadEvents(ctx context.Context) (map[string]db.EventRecord, error) {
	events, err := loadDocument(ctx, d.pool, d.logger, db.CollectionEvents, map[string]db.EventRecord{})
	if events == nil {
		events = map[string]db.EventRecord{}
	}
	return events, err
}

// SaveEvents replaces the event collection
func (d *DB) SaveEvents(ctx context.Context, events map[string]db.EventRecord) error {
	return saveDocument(ctx, d.pool, db.CollectionEvents, events)
}

// LoadGenerated retrieves the generation tracking
func (d *DB) LoadGenerated(ctx context.Context) (map[string]int64, error) {
	generated, err := loadDocument(ctx, d.pool, d.logger, db.CollectionGenerated, map[string]int64{})
	if generated == nil {
		generated = map[string]int64{}
	}
	return generated, err
}

// SaveGenerated replaces the generation tracking
func (d *DB) SaveGenerated(ctx context.Context, generated map[string]int64) error {
	return saveDocument(ctx, d.pool, db.CollectionGenerated, generated)
}

// LoadBlackoutDates retrieves the blackout dates
func (d *DB) LoadBlackoutDates(ctx context.Context) ([]string, error) {
	dates, err := loadDocument(ctx, d.pool, d.logger, db.CollectionBlackoutDates, []string{})
	if dates == nil {
		dates = []string{}
	}
	return dates, err
}

// SaveBlackoutDates replaces the blackout dates
func (d *DB) SaveBlackoutDates(ctx context.Context, dates []string) error {
	if dates == nil {
		dates = []string{}
	}
	return saveDocument(ctx, d.pool, db.CollectionBlackoutDates, dates)
}

// LoadShiftLog retrieves the shift archive
func (d *DB) LoadShiftLog(ctx context.Context) ([]db.ShiftLogEntry, error) {
	entries, err := loadDocument(ctx, d.pool, d.logger, db.CollectionShiftLog, []db.ShiftLogEntry{})
	if entries == nil {
		entries = []db.ShiftLogEntry{}
	}
	return entries, err
}

// SaveShiftLog replaces the shift archive
func (d *DB) SaveShiftLog(ctx context.Context, entries []db.ShiftLogEntry) error {
	if entries == nil {
		entries = []db.ShiftLogEntry{}
	}
	return saveDocument(ctx, d.pool, db.CollectionShiftLog, entries)
}

// LoadDisabledRoles retrieves the disabled role names
func (d *DB) LoadDisabledRoles(ctx context.Context) ([]string, error) {
	roles, err := loadDocument(ctx, d.pool, d.logger, db.CollectionDisabledRoles, []string{})
	if roles == nil {
		roles = []string{}
	}
	return roles, err
}

// SaveDisabledRoles replaces the disabled role names
func (d *DB) SaveDisabledRoles(ctx context.Context, roles []string) error {
	if roles == nil {
		roles = []string{}
	}
	return saveDocument(ctx, d.pool, db.CollectionDisabledRoles, roles)
}

// SaveEventsAndGenerated writes both documents in one transaction
func (d *DB) SaveEventsAndGenerated(ctx context.Context, events map[string]db.EventRecord, generated map[string]int64) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := saveDocument(ctx, tx, db.CollectionEvents, events); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := saveDocument(ctx, tx, db.CollectionGenerated, generated); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit events and generation tracking: %w", err)
	}
	d.logger.Debug("Saved events and generation tracking",
		zap.Int("events", len(events)),
		zap.Int("generated", len(generated)))
	return nil
}

var _ db.Database = (*DB)(nil)
