package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/retro-shifts/internal/config"
	"github.com/jakechorley/retro-shifts/pkg/core/model"
	"github.com/jakechorley/retro-shifts/pkg/db"
	"github.com/jakechorley/retro-shifts/pkg/utils/clock"
)

var errInjected = errors.New("injected failure")

// fakeStore is an in-memory db.Database that can be told to fail saves or
// loads
type fakeStore struct {
	mu        sync.Mutex
	events    map[string]db.EventRecord
	generated map[string]int64
	blackout  []string
	shiftLog  []db.ShiftLogEntry
	disabled  []string

	failSaves  bool
	failLoads  map[db.Collection]bool
	eventSaves int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:    map[string]db.EventRecord{},
		generated: map[string]int64{},
	}
}

func (f *fakeStore) LoadEvents(ctx context.Context) (map[string]db.EventRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLoads[db.CollectionEvents] {
		return nil, errInjected
	}
	out := make(map[string]db.EventRecord, len(f.events))
	for k, v := range f.events {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) SaveEvents(ctx context.Context, events map[string]db.EventRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSaves {
		return errInjected
	}
	f.events = events
	f.eventSaves++
	return nil
}

func (f *fakeStore) LoadGenerated(ctx context.Context) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLoads[db.CollectionGenerated] {
		return nil, errInjected
	}
	return copyGenerated(f.generated), nil
}

func (f *fakeStore) SaveGenerated(ctx context.Context, generated map[string]int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSaves {
		return errInjected
	}
	f.generated = generated
	return nil
}

func (f *fakeStore) LoadBlackoutDates(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLoads[db.CollectionBlackoutDates] {
		return nil, errInjected
	}
	return append([]string{}, f.blackout...), nil
}

func (f *fakeStore) SaveBlackoutDates(ctx context.Context, dates []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSaves {
		return errInjected
	}
	f.blackout = dates
	return nil
}

func (f *fakeStore) LoadShiftLog(ctx context.Context) ([]db.ShiftLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLoads[db.CollectionShiftLog] {
		return nil, errInjected
	}
	return append([]db.ShiftLogEntry{}, f.shiftLog...), nil
}

func (f *fakeStore) SaveShiftLog(ctx context.Context, entries []db.ShiftLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSaves {
		return errInjected
	}
	f.shiftLog = entries
	return nil
}

func (f *fakeStore) LoadDisabledRoles(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLoads[db.CollectionDisabledRoles] {
		return nil, errInjected
	}
	return append([]string{}, f.disabled...), nil
}

func (f *fakeStore) SaveDisabledRoles(ctx context.Context, roles []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSaves {
		return errInjected
	}
	f.disabled = roles
	return nil
}

func (f *fakeStore) SaveEventsAndGenerated(ctx context.Context, events map[string]db.EventRecord, generated map[string]int64) error {
	if err := f.SaveEvents(ctx, events); err != nil {
		return err
	}
	return f.SaveGenerated(ctx, generated)
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) setFailSaves(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSaves = fail
}

func (f *fakeStore) setFailLoad(collection db.Collection, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLoads == nil {
		f.failLoads = map[db.Collection]bool{}
	}
	f.failLoads[collection] = fail
}

func (f *fakeStore) savedEvents() map[string]db.EventRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events
}

func (f *fakeStore) eventSaveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.eventSaves
}

// fakeMessenger records everything sent and keeps its own post history
type fakeMessenger struct {
	mu        sync.Mutex
	nextID    int
	posts     map[string]model.Post
	history   []model.PublishedPost
	updates   []model.Post
	retracted []string
	reminders []model.Post
	staff     []string

	failPublish bool
	failTitle   string
	failHistory bool
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{posts: map[string]model.Post{}}
}

func (m *fakeMessenger) PublishPost(ctx context.Context, post model.Post) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPublish || (m.failTitle != "" && post.Title == m.failTitle) {
		return "", errInjected
	}
	m.nextID++
	id := fmt.Sprintf("msg-%d", m.nextID)
	m.posts[id] = post
	m.history = append(m.history, model.PublishedPost{ID: id, Title: post.Title, Start: post.Start})
	return id, nil
}

func (m *fakeMessenger) UpdatePost(ctx context.Context, post model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, post)
	return nil
}

func (m *fakeMessenger) RetractPost(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retracted = append(m.retracted, id)
	delete(m.posts, id)
	for i, p := range m.history {
		if p.ID == id {
			m.history = append(m.history[:i], m.history[i+1:]...)
			break
		}
	}
	return nil
}

func (m *fakeMessenger) RecentPosts(ctx context.Context, limit int) ([]model.PublishedPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failHistory {
		return nil, errInjected
	}
	out := append([]model.PublishedPost{}, m.history...)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *fakeMessenger) SendReminder(ctx context.Context, post model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reminders = append(m.reminders, post)
	return nil
}

func (m *fakeMessenger) SendStaffMessage(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staff = append(m.staff, text)
	return nil
}

func (m *fakeMessenger) postCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.posts)
}

func (m *fakeMessenger) reminderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reminders)
}

func (m *fakeMessenger) staffMessages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.staff...)
}

func (m *fakeMessenger) retractedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.retracted...)
}

func (m *fakeMessenger) setFailPublish(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPublish = fail
}

var testRoles = []string{"Active Manager", "Backup Manager", "Bouncer", "Bartender", "Dancer", "DJ"}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Timezone:       "America/New_York",
		OpenDays:       []string{"Friday", "Saturday"},
		ShiftStartHour: 21,
		AutoPostHour:   16,
		Roles: []config.Role{
			{Name: "Active Manager", Emoji: "1️⃣"},
			{Name: "Backup Manager", Emoji: "2️⃣"},
			{Name: "Bouncer", Emoji: "3️⃣"},
			{Name: "Bartender", Emoji: "4️⃣"},
			{Name: "Dancer", Emoji: "5️⃣"},
			{Name: "DJ", Emoji: "6️⃣"},
		},
		ManagerRoles:      []string{"Active Manager", "Backup Manager"},
		SupervisorTargets: []string{"@Head Manager", "@Manager"},
		EventCreatorRoles: []string{"Admin"},
		Targets:           map[string]string{"Bouncer": "@Bouncer", "DJ": "@DJ"},
	}
	cfg.ApplyDefaults()
	require.NoError(t, config.Validate(cfg))
	return cfg
}

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

type harness struct {
	t     *testing.T
	ctx   context.Context
	cfg   *config.Config
	loc   *time.Location
	clock *clock.FakeClock
	store *fakeStore
	msg   *fakeMessenger
	svc   *ShiftService
}

// mondayMorning is 10:00 New York time on Monday 2 March 2026
func mondayMorning(t *testing.T) time.Time {
	return time.Date(2026, 3, 2, 10, 0, 0, 0, newYork(t))
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, newTestConfig(t), newFakeStore(), newFakeMessenger(), clock.Fake(mondayMorning(t)))
}

func newHarnessWith(t *testing.T, cfg *config.Config, store *fakeStore, msg *fakeMessenger, clk *clock.FakeClock) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		ctx:   context.Background(),
		cfg:   cfg,
		loc:   cfg.Location(),
		clock: clk,
		store: store,
		msg:   msg,
	}
	h.svc = h.start()
	return h
}

func (h *harness) start() *ShiftService {
	h.t.Helper()
	svc, err := NewShiftService(Deps{
		Config:    h.cfg,
		Database:  h.store,
		Messenger: h.msg,
		Clock:     h.clock,
		Logger:    zap.NewNop(),
	})
	require.NoError(h.t, err)
	require.NoError(h.t, svc.Start(h.ctx))
	h.t.Cleanup(svc.Stop)
	return svc
}

// restart stops the service and starts a new one over the same store
func (h *harness) restart() {
	h.t.Helper()
	h.svc.Stop()
	h.svc = h.start()
}

// advance moves the clock and waits for every fired timer to be handled
func (h *harness) advance(d time.Duration) {
	h.t.Helper()
	h.clock.Advance(d)
	require.NoError(h.t, h.svc.Sync(h.ctx))
}

func (h *harness) at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, h.loc)
}

// seed puts a record in the store before the service starts
func seedEvent(store *fakeStore, id, title string, start time.Time, posted bool) {
	store.events[id] = db.EventRecord{
		ID:       id,
		Title:    title,
		Datetime: start.UnixMilli(),
		Signups:  model.NewSignups(testRoles),
		Posted:   posted,
	}
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
