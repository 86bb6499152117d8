package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/retro-shifts/internal/config"
	"github.com/jakechorley/retro-shifts/pkg/core/model"
	"github.com/jakechorley/retro-shifts/pkg/core/timers"
	"github.com/jakechorley/retro-shifts/pkg/db"
	"github.com/jakechorley/retro-shifts/pkg/utils/clock"
)

var errHandlerPanicked = errors.New("handler panicked")

// Deps are the collaborators a ShiftService needs
type Deps struct {
	Config    *config.Config
	Database  db.Database
	Messenger Messenger
	Resolver  TargetResolver
	Clock     clock.Clock
	Logger    *zap.Logger
}

// ShiftService owns every shift collection in memory. All reads and writes,
// timer callbacks and periodic checks run one at a time on a single
// goroutine fed by a FIFO queue, so no handler ever sees another half done.
type ShiftService struct {
	cfg       *config.Config
	loc       *time.Location
	database  db.Database
	messenger Messenger
	resolver  TargetResolver
	clock     clock.Clock
	logger    *zap.Logger
	timers    *timers.Scheduler

	queueMu sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped chan struct{}
	done    chan struct{}
	running bool

	// runCtx is used for work that no caller is waiting on, such as timers
	runCtx    context.Context
	cancelRun context.CancelFunc

	// Owned by the loop goroutine
	events    map[string]*model.Event
	generated map[string]int64
	blackout  map[string]bool
	disabled  map[string]bool
	shiftLog  []db.ShiftLogEntry
}

// NewShiftService creates a service. Nothing is loaded until Start.
func NewShiftService(deps Deps) (*ShiftService, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Database == nil {
		return nil, fmt.Errorf("database is required")
	}
	if deps.Messenger == nil {
		return nil, fmt.Errorf("messenger is required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Resolver == nil {
		deps.Resolver = NewStaticResolver(deps.Config.Targets)
	}

	s := &ShiftService{
		cfg:       deps.Config,
		loc:       deps.Config.Location(),
		database:  deps.Database,
		messenger: deps.Messenger,
		resolver:  deps.Resolver,
		clock:     deps.Clock,
		logger:    deps.Logger,
		wake:      make(chan struct{}, 1),
		stopped:   make(chan struct{}),
		done:      make(chan struct{}),
		events:    map[string]*model.Event{},
		generated: map[string]int64{},
		blackout:  map[string]bool{},
		disabled:  map[string]bool{},
	}
	s.timers = timers.New(deps.Clock, s.dispatch, deps.Logger.Named("timers"))
	return s, nil
}

// Start loads every collection, starts the handler loop and arms timers for
// all live events. If any collection cannot be read the service is stopped
// and the error returned.
func (s *ShiftService) Start(ctx context.Context) error {
	s.queueMu.Lock()
	if s.runCtx != nil {
		s.queueMu.Unlock()
		return fmt.Errorf("shift service already started")
	}
	s.running = true
	s.runCtx, s.cancelRun = context.WithCancel(context.WithoutCancel(ctx))
	s.queueMu.Unlock()

	go s.loop()

	err := s.do(ctx, func() error {
		if err := s.loadState(ctx); err != nil {
			return err
		}
		armed := s.rearmTimers()
		s.logger.Info("Shift service started",
			zap.Int("events", len(s.events)),
			zap.Int("timers", armed),
			zap.Int("blackoutDates", len(s.blackout)),
			zap.Int("disabledRoles", len(s.disabled)))
		return nil
	})
	if err != nil {
		// Refuse to run on a partial read; saves would overwrite what was missed
		s.Stop()
		return fmt.Errorf("shift service not started: %w", err)
	}
	return nil
}

// Run starts the service and performs the periodic generation and promotion
// checks until ctx is done. Reference data edited by another process is
// reloaded when the database can report changes.
func (s *ShiftService) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.Stop()

	if watcher, ok := s.database.(db.ReferenceWatcher); ok {
		go func() {
			err := watcher.Watch(ctx, func(c db.Collection) {
				if err := s.ReloadReferenceData(ctx, c); err != nil {
					s.logger.Warn("Failed to reload reference data", zap.String("collection", string(c)), zap.Error(err))
				}
			})
			if err != nil {
				s.logger.Warn("Reference data watcher stopped", zap.Error(err))
			}
		}()
	}

	interval := s.cfg.CheckInterval
	if interval <= 0 {
		interval = config.DefaultCheckInterval
	}
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	s.periodicCheck(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Shift service stopping")
			return nil
		case <-ticker.C:
			s.periodicCheck(ctx)
		}
	}
}

func (s *ShiftService) periodicCheck(ctx context.Context) {
	if _, err := s.CheckAndGenerateSchedule(ctx); err != nil {
		s.logger.Error("Weekly schedule check failed", zap.Error(err))
	}
	if _, err := s.CheckAndPostScheduledEvents(ctx); err != nil {
		s.logger.Error("Auto-post check failed", zap.Error(err))
	}
}

// Stop cancels every timer and ends the handler loop once queued work drains
func (s *ShiftService) Stop() {
	s.queueMu.Lock()
	if !s.running {
		s.queueMu.Unlock()
		return
	}
	s.running = false
	close(s.stopped)
	s.queueMu.Unlock()

	<-s.done
	s.timers.Clear()
	s.cancelRun()
	s.logger.Debug("Shift service stopped")
}

// Sync waits until every handler queued before it has run
func (s *ShiftService) Sync(ctx context.Context) error {
	return s.do(ctx, func() error { return nil })
}

// do queues fn and waits for its result
func (s *ShiftService) do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	if !s.enqueue(func() {
		err := errHandlerPanicked
		defer func() { result <- err }()
		err = fn()
	}) {
		return ErrStopped
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		// The loop may have run fn just before exiting
		select {
		case err := <-result:
			return err
		default:
			return ErrStopped
		}
	}
}

// dispatch queues a fired timer callback. Callbacks arriving after Stop are
// dropped.
func (s *ShiftService) dispatch(fn func()) {
	if !s.enqueue(fn) {
		s.logger.Debug("Dropping timer callback after stop")
	}
}

func (s *ShiftService) enqueue(fn func()) bool {
	s.queueMu.Lock()
	if !s.running {
		s.queueMu.Unlock()
		return false
	}
	s.queue = append(s.queue, fn)
	s.queueMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

func (s *ShiftService) loop() {
	defer close(s.done)
	for {
		s.queueMu.Lock()
		batch := s.queue
		s.queue = nil
		s.queueMu.Unlock()

		for _, fn := range batch {
			s.runHandler(fn)
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-s.wake:
		case <-s.stopped:
			s.queueMu.Lock()
			remaining := s.queue
			s.queue = nil
			s.queueMu.Unlock()
			for _, fn := range remaining {
				s.runHandler(fn)
			}
			return
		}
	}
}

// runHandler keeps a panicking handler from taking the loop down with it
func (s *ShiftService) runHandler(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Handler panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	fn()
}
