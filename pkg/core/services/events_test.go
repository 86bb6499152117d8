package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/retro-shifts/pkg/db"
)

func TestCreateEvent_PublishesAndSaves(t *testing.T) {
	h := newHarness(t)
	start := h.at(2026, 3, 4, 20, 0)

	ev, err := h.svc.CreateEvent(h.ctx, "  Wednesday Special  ", start)
	require.NoError(t, err)

	assert.Equal(t, "msg-1", ev.ID)
	assert.Equal(t, "Wednesday Special", ev.Title)
	assert.True(t, ev.Posted)
	assert.True(t, ev.ManuallyCreated)
	assert.Equal(t, 1, h.msg.postCount())

	rec, ok := h.store.savedEvents()["msg-1"]
	require.True(t, ok)
	assert.Equal(t, start.UnixMilli(), rec.Datetime)
	assert.Len(t, rec.Signups, len(testRoles))
}

func TestCreateEvent_PublishFailureKeepsLocalID(t *testing.T) {
	h := newHarness(t)
	h.msg.setFailPublish(true)

	ev, err := h.svc.CreateEvent(h.ctx, "Wednesday Special", h.at(2026, 3, 4, 20, 0))
	require.NoError(t, err)
	assert.True(t, IsSyntheticID(ev.ID))
	assert.Contains(t, h.store.savedEvents(), ev.ID)

	slots, err := h.svc.ArmedTimers(h.ctx, ev.ID)
	require.NoError(t, err)
	assert.Len(t, slots, 4)
}

func TestCreateEvent_Rejections(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.CreateEvent(h.ctx, "   ", h.at(2026, 3, 4, 20, 0))
	assert.ErrorIs(t, err, ErrInvalidTitle)

	_, err = h.svc.CreateEvent(h.ctx, "Too Late", h.clock.Now())
	assert.ErrorIs(t, err, ErrPastInstant)

	assert.Equal(t, 0, h.msg.postCount())
	assert.Empty(t, h.store.savedEvents())
}

func TestCancelEvent(t *testing.T) {
	h := newHarness(t)
	ev, err := h.svc.CreateEvent(h.ctx, "Wednesday Special", h.at(2026, 3, 4, 20, 0))
	require.NoError(t, err)

	require.NoError(t, h.svc.CancelEvent(h.ctx, ev.ID))

	rec := h.store.savedEvents()[ev.ID]
	assert.True(t, rec.Cancelled)

	h.msg.mu.Lock()
	last := h.msg.updates[len(h.msg.updates)-1]
	h.msg.mu.Unlock()
	assert.True(t, last.Cancelled)

	err = h.svc.CancelEvent(h.ctx, ev.ID)
	assert.ErrorIs(t, err, ErrEventCancelled)
	err = h.svc.CancelEvent(h.ctx, "nope")
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestEditEventTime_Rejections(t *testing.T) {
	h := newHarness(t)
	ev, err := h.svc.CreateEvent(h.ctx, "Wednesday Special", h.at(2026, 3, 4, 20, 0))
	require.NoError(t, err)

	_, err = h.svc.EditEventTime(h.ctx, ev.ID, h.clock.Now().Add(-time.Minute))
	assert.ErrorIs(t, err, ErrPastInstant)

	_, err = h.svc.EditEventTime(h.ctx, "nope", h.at(2026, 3, 5, 20, 0))
	assert.ErrorIs(t, err, ErrEventNotFound)

	require.NoError(t, h.svc.CancelEvent(h.ctx, ev.ID))
	_, err = h.svc.EditEventTime(h.ctx, ev.ID, h.at(2026, 3, 5, 20, 0))
	assert.ErrorIs(t, err, ErrEventCancelled)

	// The start did not move
	assert.Equal(t, h.at(2026, 3, 4, 20, 0).UnixMilli(), h.store.savedEvents()[ev.ID].Datetime)
}

func TestListUpcoming(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.ListUpcoming(h.ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	friday, err := h.svc.CreateEvent(h.ctx, "Friday", h.at(2026, 3, 6, 21, 0))
	require.NoError(t, err)
	tuesday, err := h.svc.CreateEvent(h.ctx, "Tuesday", h.at(2026, 3, 3, 21, 0))
	require.NoError(t, err)
	_, err = h.svc.CreateEvent(h.ctx, "Next Month", h.at(2026, 4, 2, 21, 0))
	require.NoError(t, err)
	cancelled, err := h.svc.CreateEvent(h.ctx, "Cancelled", h.at(2026, 3, 5, 21, 0))
	require.NoError(t, err)
	require.NoError(t, h.svc.CancelEvent(h.ctx, cancelled.ID))

	// Unposted generated events are listed too
	_, err = h.svc.AddBlackoutDate(h.ctx, "2026-03-06")
	require.NoError(t, err)
	generated, err := h.svc.GenerateWeeklySchedule(h.ctx)
	require.NoError(t, err)
	require.Len(t, generated.Created, 1)

	list, err := h.svc.ListUpcoming(h.ctx, 7)
	require.NoError(t, err)
	var ids []string
	for _, ev := range list {
		ids = append(ids, ev.ID)
	}
	assert.Equal(t, []string{tuesday.ID, friday.ID, generated.Created[0].ID}, ids)

	// Started events drop out
	h.advance(36 * time.Hour)
	list, err = h.svc.ListUpcoming(h.ctx, 7)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, friday.ID, list[0].ID)
}

func TestNextShift(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.NextShift(h.ctx)
	assert.ErrorIs(t, err, ErrNoUpcomingEvent)

	_, err = h.svc.CreateEvent(h.ctx, "Saturday", h.at(2026, 3, 7, 21, 0))
	require.NoError(t, err)
	friday, err := h.svc.CreateEvent(h.ctx, "Friday", h.at(2026, 3, 6, 21, 0))
	require.NoError(t, err)

	next, err := h.svc.NextShift(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, friday.ID, next.ID)
}

func TestReturnedEventsAreCopies(t *testing.T) {
	h := newHarness(t)
	ev, err := h.svc.CreateEvent(h.ctx, "Friday", h.at(2026, 3, 6, 21, 0))
	require.NoError(t, err)

	ev.Signups["DJ"] = append(ev.Signups["DJ"], "intruder")
	ev.Title = "changed"

	again, err := h.svc.Event(h.ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Friday", again.Title)
	assert.Empty(t, again.Signups["DJ"])
}

func TestComputeOpeningStatus(t *testing.T) {
	cfg := newTestConfig(t)
	loc := cfg.Location()

	tests := []struct {
		name     string
		now      time.Time
		openNow  bool
		nextDate time.Time
	}{
		{
			name:     "monday waits for friday",
			now:      time.Date(2026, 3, 2, 10, 0, 0, 0, loc),
			nextDate: time.Date(2026, 3, 6, 21, 0, 0, 0, loc),
		},
		{
			name:     "friday afternoon is today",
			now:      time.Date(2026, 3, 6, 15, 0, 0, 0, loc),
			nextDate: time.Date(2026, 3, 6, 21, 0, 0, 0, loc),
		},
		{
			name:     "friday night is open",
			now:      time.Date(2026, 3, 6, 22, 0, 0, 0, loc),
			openNow:  true,
			nextDate: time.Date(2026, 3, 7, 21, 0, 0, 0, loc),
		},
		{
			name:     "saturday night wraps to next friday",
			now:      time.Date(2026, 3, 7, 23, 0, 0, 0, loc),
			openNow:  true,
			nextDate: time.Date(2026, 3, 13, 21, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := ComputeOpeningStatus(tt.now, cfg)
			assert.Equal(t, tt.openNow, status.OpenNow)
			assert.True(t, tt.nextDate.Equal(status.NextShiftStart), "got %s", status.NextShiftStart)
			assert.Equal(t, tt.now.Weekday().String(), status.Today)
		})
	}
}

func TestBlackoutDates(t *testing.T) {
	h := newHarness(t)

	added, err := h.svc.AddBlackoutDate(h.ctx, "2026-03-07")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = h.svc.AddBlackoutDate(h.ctx, "2026-03-06")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = h.svc.AddBlackoutDate(h.ctx, "2026-03-06")
	require.NoError(t, err)
	assert.False(t, added)

	dates, err := h.svc.ListBlackoutDates(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-03-06", "2026-03-07"}, dates)

	removed, err := h.svc.RemoveBlackoutDate(h.ctx, "2026-03-07")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = h.svc.RemoveBlackoutDate(h.ctx, "2026-03-07")
	require.NoError(t, err)
	assert.False(t, removed)

	assert.Equal(t, []string{"2026-03-06"}, h.store.blackout)
}

func TestParseBlackoutDate(t *testing.T) {
	for _, bad := range []string{"", "06-03-2026", "2026-02-30", "tomorrow"} {
		_, err := ParseBlackoutDate(bad)
		assert.ErrorIs(t, err, ErrInvalidDate, bad)
	}
	date, err := ParseBlackoutDate(" 2026-03-06 ")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-06", date)
}

func TestRoles_DisableEnableList(t *testing.T) {
	h, id := newHarnessWithEvent(t)

	changed, err := h.svc.DisableRole(h.ctx, "dj")
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = h.svc.DisableRole(h.ctx, "DJ")
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = h.svc.DisableRole(h.ctx, "Juggler")
	assert.ErrorIs(t, err, ErrUnknownRole)

	roles, err := h.svc.ListRoles(h.ctx)
	require.NoError(t, err)
	require.Len(t, roles, len(testRoles))
	assert.Equal(t, "DJ", roles[5].Name)
	assert.True(t, roles[5].Disabled)
	assert.False(t, roles[0].Disabled)
	assert.Equal(t, []string{"DJ"}, h.store.disabled)

	// Posted events show the role as disabled
	h.msg.mu.Lock()
	last := h.msg.updates[len(h.msg.updates)-1]
	h.msg.mu.Unlock()
	assert.Equal(t, id, last.EventID)
	assert.True(t, last.Roles[5].Disabled)

	changed, err = h.svc.EnableRole(h.ctx, "DJ")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, h.store.disabled)
}

func TestReloadReferenceData(t *testing.T) {
	h := newHarness(t)

	// Another process edits the collections
	h.store.mu.Lock()
	h.store.blackout = []string{"2026-03-06"}
	h.store.disabled = []string{"dj"}
	h.store.mu.Unlock()

	require.NoError(t, h.svc.ReloadReferenceData(h.ctx, db.CollectionBlackoutDates))
	require.NoError(t, h.svc.ReloadReferenceData(h.ctx, db.CollectionDisabledRoles))

	dates, err := h.svc.ListBlackoutDates(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-03-06"}, dates)

	roles, err := h.svc.ListRoles(h.ctx)
	require.NoError(t, err)
	assert.True(t, roles[5].Disabled)

	err = h.svc.ReloadReferenceData(h.ctx, db.CollectionEvents)
	assert.Error(t, err)
}

func TestRefreshEvent(t *testing.T) {
	h := newHarness(t)
	ev, err := h.svc.CreateEvent(h.ctx, "Friday", h.at(2026, 3, 6, 21, 0))
	require.NoError(t, err)

	require.NoError(t, h.svc.RefreshEvent(h.ctx, ev.ID))
	h.msg.mu.Lock()
	updates := len(h.msg.updates)
	h.msg.mu.Unlock()
	assert.Equal(t, 1, updates)

	assert.ErrorIs(t, h.svc.RefreshEvent(h.ctx, "nope"), ErrEventNotFound)

	generated, err := h.svc.GenerateWeeklySchedule(h.ctx)
	require.NoError(t, err)
	require.NotEmpty(t, generated.Created)
	assert.ErrorIs(t, h.svc.RefreshEvent(h.ctx, generated.Created[0].ID), ErrNoUpcomingEvent)
}
