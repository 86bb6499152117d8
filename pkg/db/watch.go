package db

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const watchDebounce = 500 * time.Millisecond

// watched are the collections an operator may edit by hand while the
// service is running
var watched = []Collection{CollectionBlackoutDates, CollectionDisabledRoles}

// Watch calls onChange whenever the blackout or disabled role file is
// replaced. Bursts of events for the same file are collapsed. Blocks until
// ctx is done.
func (db *DB) Watch(ctx context.Context, onChange func(Collection)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Saves rename a temp file over the target, so watch the directory
	if err := watcher.Add(db.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", db.dir, err)
	}

	byName := make(map[string]Collection, len(watched))
	for _, c := range watched {
		byName[filepath.Base(db.files[c].Path())] = c
	}

	var mu sync.Mutex
	pending := map[Collection]*time.Timer{}
	defer func() {
		mu.Lock()
		for _, t := range pending {
			t.Stop()
		}
		mu.Unlock()
	}()

	db.logger.Debug("Watching data directory", zap.String("dir", db.dir))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			collection, ok := byName[filepath.Base(event.Name)]
			if !ok {
				continue
			}

			mu.Lock()
			if t, exists := pending[collection]; exists {
				t.Stop()
			}
			pending[collection] = time.AfterFunc(watchDebounce, func() {
				if ctx.Err() != nil {
					return
				}
				db.logger.Info("Collection changed on disk", zap.String("collection", string(collection)))
				onChange(collection)
			})
			mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			db.logger.Warn("Watcher error", zap.Error(err))
		}
	}
}
