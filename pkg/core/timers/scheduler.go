package timers

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/retro-shifts/pkg/utils/clock"
)

// Dispatcher hands a fired callback to whoever serializes state changes
type Dispatcher func(func())

// Scheduler keeps at most one pending timer per (key, slot). Keys are event
// IDs and slots name the kind of timer, such as a reminder.
//
// Fired callbacks are not run on the clock's goroutine; they are passed to
// the Dispatcher. A callback only runs if its entry is still the one armed
// for the slot when the dispatcher gets to it, so a Cancel that races a
// firing timer always wins.
type Scheduler struct {
	clock    clock.Clock
	dispatch Dispatcher
	logger   *zap.Logger

	mu    sync.Mutex
	slots map[string]map[string]*entry
}

type entry struct {
	at    time.Time
	timer *clock.Timer
}

// New creates a Scheduler. A nil dispatch runs callbacks directly.
func New(clk clock.Clock, dispatch Dispatcher, logger *zap.Logger) *Scheduler {
	if dispatch == nil {
		dispatch = func(f func()) { f() }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		clock:    clk,
		dispatch: dispatch,
		logger:   logger,
		slots:    map[string]map[string]*entry{},
	}
}

// Arm schedules fn for at, replacing anything already armed in the slot.
// Instants that are not in the future are refused and return false.
func (s *Scheduler) Arm(key, slot string, at time.Time, fn func()) bool {
	now := s.clock.Now()
	if !at.After(now) {
		s.logger.Debug("Not arming timer in the past",
			zap.String("key", key),
			zap.String("slot", slot),
			zap.Time("at", at))
		return false
	}

	e := &entry{at: at}

	s.mu.Lock()
	if prev := s.slots[key][slot]; prev != nil && prev.timer != nil {
		prev.timer.Stop()
	}
	if s.slots[key] == nil {
		s.slots[key] = map[string]*entry{}
	}
	s.slots[key][slot] = e
	s.mu.Unlock()

	timer := s.clock.AfterFunc(at.Sub(now), func() {
		s.dispatch(func() {
			if s.take(key, slot, e) {
				fn()
			}
		})
	})

	s.mu.Lock()
	e.timer = timer
	s.mu.Unlock()

	s.logger.Debug("Armed timer",
		zap.String("key", key),
		zap.String("slot", slot),
		zap.Time("at", at))
	return true
}

// take removes e from its slot if it is still the armed entry
func (s *Scheduler) take(key, slot string, e *entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slots[key][slot] != e {
		return false
	}
	delete(s.slots[key], slot)
	if len(s.slots[key]) == 0 {
		delete(s.slots, key)
	}
	return true
}

// Cancel stops the timer in one slot. Returns false if none was armed.
func (s *Scheduler) Cancel(key, slot string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.slots[key][slot]
	if e == nil {
		return false
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(s.slots[key], slot)
	if len(s.slots[key]) == 0 {
		delete(s.slots, key)
	}
	return true
}

// CancelAll stops every timer armed under key and returns how many there were
func (s *Scheduler) CancelAll(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.slots[key] {
		if e.timer != nil {
			e.timer.Stop()
		}
		n++
	}
	delete(s.slots, key)
	return n
}

// Clear stops every timer
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slots := range s.slots {
		for _, e := range slots {
			if e.timer != nil {
				e.timer.Stop()
			}
		}
	}
	s.slots = map[string]map[string]*entry{}
}

// Slots returns the armed slot names for key, sorted
func (s *Scheduler) Slots(key string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.slots[key]))
	for slot := range s.slots[key] {
		names = append(names, slot)
	}
	sort.Strings(names)
	return names
}

// Deadline reports when the slot will fire
func (s *Scheduler) Deadline(key, slot string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.slots[key][slot]
	if e == nil {
		return time.Time{}, false
	}
	return e.at, true
}

// Len returns the number of armed timers
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, slots := range s.slots {
		n += len(slots)
	}
	return n
}
