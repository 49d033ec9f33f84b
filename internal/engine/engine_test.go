package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/medtrackhq/medtrack-server/internal/clock"
	"github.com/medtrackhq/medtrack-server/internal/model"
	"github.com/medtrackhq/medtrack-server/internal/notify"
	"github.com/medtrackhq/medtrack-server/internal/store"
	"github.com/medtrackhq/medtrack-server/internal/store/sqlite"
)

type captureDispatcher struct {
	mu    sync.Mutex
	notes []notify.Note
	fail  error
}

func (d *captureDispatcher) Send(_ context.Context, _ *model.User, note notify.Note) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return d.fail
	}
	d.notes = append(d.notes, note)
	return nil
}

func (d *captureDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.notes)
}

type engineFixture struct {
	store store.Store
	clock *clock.Fake
	disp  *captureDispatcher
	eng   *Engine
	med   *model.Medication
	user  *model.User
}

func newEngineFixture(t *testing.T, now time.Time) *engineFixture {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	st, err := sqlite.NewWithDB(db)
	require.NoError(t, err)

	ctx := context.Background()
	token := "push-token-1"
	user, err := st.Users().Create(ctx, &model.User{
		UserID:    "user-1",
		Email:     "amira@example.com",
		TimeZone:  "UTC",
		PushToken: &token,
	})
	require.NoError(t, err)

	med, err := st.Medications().Create(ctx, &model.Medication{
		MedicationID: "med-1",
		OwnerID:      user.UserID,
		Name:         "Metformin",
		Dosage:       "500mg",
		Frequency:    model.FrequencyDaily,
		Times:        []string{"08:00:00", "20:00:00"},
		StartDate:    "2025-03-01",
	})
	require.NoError(t, err)

	clk := clock.NewFake(now)
	disp := &captureDispatcher{}
	eng := NewEngine(st, clk, disp, Config{
		TickInterval:     time.Minute,
		TriggerTolerance: 30 * time.Second,
	}, zerolog.Nop())
	return &engineFixture{store: st, clock: clk, disp: disp, eng: eng, med: med, user: user}
}

func (f *engineFixture) addReminder(t *testing.T, id string, typ model.ReminderType, remTime, anchor string) *model.Reminder {
	t.Helper()
	rem, err := f.store.Reminders().Create(context.Background(), &model.Reminder{
		ReminderID:   id,
		OwnerID:      f.user.UserID,
		MedicationID: f.med.MedicationID,
		DoseIndex:    0,
		ReminderTime: remTime,
		AnchorDate:   anchor,
		Type:         typ,
		Status:       model.ReminderPending,
	})
	require.NoError(t, err)
	return rem
}

func TestEngineFiresSingleReminderExactlyOnce(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 10, 0, time.UTC)
	f := newEngineFixture(t, now)
	f.addReminder(t, "rem-1", model.ReminderSingle, "08:00:00", "2025-03-10")

	ctx := context.Background()
	require.NoError(t, f.eng.tick(ctx))
	require.Equal(t, 1, f.disp.count())

	// A second tick inside the same trigger window must not fire again.
	f.clock.Advance(15 * time.Second)
	require.NoError(t, f.eng.tick(ctx))
	require.Equal(t, 1, f.disp.count())

	rem, err := f.store.Reminders().Get(ctx, "rem-1")
	require.NoError(t, err)
	require.Equal(t, model.ReminderSent, rem.Status)
}

func TestEngineSkipsOutsideTolerance(t *testing.T) {
	t.Run("too early", func(t *testing.T) {
		f := newEngineFixture(t, time.Date(2025, 3, 10, 7, 58, 0, 0, time.UTC))
		f.addReminder(t, "rem-1", model.ReminderSingle, "08:00:00", "2025-03-10")
		require.NoError(t, f.eng.tick(context.Background()))
		require.Equal(t, 0, f.disp.count())
	})
	t.Run("too late", func(t *testing.T) {
		// Late reminders are retired silently, never fired hours after the fact.
		f := newEngineFixture(t, time.Date(2025, 3, 10, 8, 5, 0, 0, time.UTC))
		f.addReminder(t, "rem-1", model.ReminderSingle, "08:00:00", "2025-03-10")
		require.NoError(t, f.eng.tick(context.Background()))
		require.Equal(t, 0, f.disp.count())
	})
}

func TestEngineSingleFiresOnlyOnAnchorDate(t *testing.T) {
	f := newEngineFixture(t, time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))
	f.addReminder(t, "rem-1", model.ReminderSingle, "08:00:00", "2025-03-11")

	require.NoError(t, f.eng.tick(context.Background()))
	require.Equal(t, 0, f.disp.count())

	f.clock.Set(time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC))
	require.NoError(t, f.eng.tick(context.Background()))
	require.Equal(t, 1, f.disp.count())
}

func TestEngineRetiresLapsedSingles(t *testing.T) {
	f := newEngineFixture(t, time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC))
	f.addReminder(t, "rem-1", model.ReminderSingle, "08:00:00", "2025-03-10")

	ctx := context.Background()
	require.NoError(t, f.eng.tick(ctx))
	require.Equal(t, 0, f.disp.count())

	// No late delivery, and the reminder falls out of the schedulable scan
	// instead of being re-read every tick forever.
	rem, err := f.store.Reminders().Get(ctx, "rem-1")
	require.NoError(t, err)
	require.Equal(t, model.ReminderSent, rem.Status)

	rems, err := f.store.Reminders().ListSchedulable(ctx)
	require.NoError(t, err)
	require.Empty(t, rems)
}

func TestEngineDailyFiresOncePerDay(t *testing.T) {
	f := newEngineFixture(t, time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))
	f.addReminder(t, "rem-1", model.ReminderDaily, "08:00:00", "2025-03-10")

	ctx := context.Background()
	require.NoError(t, f.eng.tick(ctx))
	require.Equal(t, 1, f.disp.count())

	f.clock.Advance(20 * time.Second)
	require.NoError(t, f.eng.tick(ctx))
	require.Equal(t, 1, f.disp.count())

	// Next day the daily reminder fires again even though no midnight reset
	// ran: last_fired_on is the guard, not status.
	f.clock.Set(time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC))
	require.NoError(t, f.eng.tick(ctx))
	require.Equal(t, 2, f.disp.count())

	rem, err := f.store.Reminders().Get(ctx, "rem-1")
	require.NoError(t, err)
	require.NotNil(t, rem.LastFiredOn)
	require.Equal(t, "2025-03-11", *rem.LastFiredOn)
}

func TestEngineReleasesClaimWhenDispatchFails(t *testing.T) {
	f := newEngineFixture(t, time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))
	f.addReminder(t, "rem-1", model.ReminderSingle, "08:00:00", "2025-03-10")

	ctx := context.Background()
	f.disp.fail = errors.New("gateway unavailable")
	require.NoError(t, f.eng.tick(ctx))
	require.Equal(t, 0, f.disp.count())

	rem, err := f.store.Reminders().Get(ctx, "rem-1")
	require.NoError(t, err)
	require.Equal(t, model.ReminderPending, rem.Status)

	// Still inside the trigger window: the next tick retries and succeeds.
	f.disp.fail = nil
	f.clock.Advance(10 * time.Second)
	require.NoError(t, f.eng.tick(ctx))
	require.Equal(t, 1, f.disp.count())
}

func TestEngineNotePayload(t *testing.T) {
	f := newEngineFixture(t, time.Date(2025, 3, 10, 7, 45, 0, 0, time.UTC))
	f.addReminder(t, "rem-1", model.ReminderSingle, "07:45:00", "2025-03-10")

	require.NoError(t, f.eng.tick(context.Background()))
	require.Equal(t, 1, f.disp.count())
	require.Contains(t, f.disp.notes[0].Title, "Metformin")
	require.Contains(t, f.disp.notes[0].Body, "08:00:00")
	require.Contains(t, f.disp.notes[0].Body, "07:45:00")
}

func TestEngineRunStopsOnCancel(t *testing.T) {
	f := newEngineFixture(t, time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))
	f.eng.cfg.TickInterval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.eng.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("engine did not stop on cancel")
	}
}
