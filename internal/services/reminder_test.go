package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/medtrackhq/medtrack-server/internal/clock"
	"github.com/medtrackhq/medtrack-server/internal/doseclock"
	"github.com/medtrackhq/medtrack-server/internal/model"
)

func newReminderService(t *testing.T, now time.Time) (*ReminderService, *clock.Fake) {
	t.Helper()
	st := newTestStore(t)
	seedMedication(t, st, model.FrequencyDaily, []string{"08:00:00", "20:00:00"})
	clk := clock.NewFake(now)
	return NewReminderService(st, clk, doseclock.DefaultPolicy()), clk
}

func TestUpsertCreatesReminder(t *testing.T) {
	svc, _ := newReminderService(t, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))

	ctx := context.Background()
	rem, created, err := svc.Upsert(ctx, "user-1", "med-1", 1, "19:45:00", "2025-03-10", model.ReminderSingle)
	require.NoError(t, err)
	require.True(t, created)
	require.NotEmpty(t, rem.ReminderID)
	require.Equal(t, model.ReminderPending, rem.Status)
	require.Equal(t, 1, rem.DoseIndex)
}

func TestUpsertMovesExistingReminder(t *testing.T) {
	svc, _ := newReminderService(t, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))

	ctx := context.Background()
	first, created, err := svc.Upsert(ctx, "user-1", "med-1", 1, "19:45:00", "2025-03-10", model.ReminderSingle)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := svc.Upsert(ctx, "user-1", "med-1", 1, "19:30:00", "2025-03-10", model.ReminderSingle)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ReminderID, second.ReminderID)
	require.Equal(t, "19:30:00", second.ReminderTime)

	list, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestUpsertConcurrentSameSlotConverges(t *testing.T) {
	svc, _ := newReminderService(t, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	// Racing upserts against one slot must land on a single reminder. The
	// unique index on the slot arbitrates; losers converge on the winner's
	// row instead of inserting a second one.
	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.Upsert(ctx, "user-1", "med-1", 1, "19:45:00", "2025-03-10", model.ReminderSingle)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoErrorf(t, err, "racer %d", i)
	}
	list, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestUpsertDailyCollidesAcrossDates(t *testing.T) {
	svc, _ := newReminderService(t, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))

	ctx := context.Background()
	first, _, err := svc.Upsert(ctx, "user-1", "med-1", 1, "19:45:00", "2025-03-10", model.ReminderDaily)
	require.NoError(t, err)

	// A daily reminder is one per slot, whatever date the update names.
	moved, created, err := svc.Upsert(ctx, "user-1", "med-1", 1, "19:00:00", "2025-03-12", model.ReminderDaily)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ReminderID, moved.ReminderID)
}

func TestUpsertTypeConflicts(t *testing.T) {
	svc, _ := newReminderService(t, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, _, err := svc.Upsert(ctx, "user-1", "med-1", 1, "19:45:00", "2025-03-10", model.ReminderSingle)
	require.NoError(t, err)

	// Daily over an existing single collides.
	_, _, err = svc.Upsert(ctx, "user-1", "med-1", 1, "19:00:00", "2025-03-10", model.ReminderDaily)
	require.ErrorIs(t, err, model.ErrTypeConflict)

	// A single on a different date coexists with a single.
	_, created, err := svc.Upsert(ctx, "user-1", "med-1", 1, "19:00:00", "2025-03-11", model.ReminderSingle)
	require.NoError(t, err)
	require.True(t, created)

	// The other direction: single over an existing daily collides too.
	_, _, err = svc.Upsert(ctx, "user-1", "med-1", 0, "07:45:00", "2025-03-11", model.ReminderDaily)
	require.NoError(t, err)
	_, _, err = svc.Upsert(ctx, "user-1", "med-1", 0, "07:30:00", "2025-03-11", model.ReminderSingle)
	require.ErrorIs(t, err, model.ErrTypeConflict)
}

func TestUpsertRejectsPastAndOutOfWindow(t *testing.T) {
	svc, _ := newReminderService(t, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	// 07:45 today already elapsed.
	_, _, err := svc.Upsert(ctx, "user-1", "med-1", 0, "07:45:00", "2025-03-10", model.ReminderSingle)
	require.ErrorIs(t, err, model.ErrPastReminder)

	// 12:00 is outside the evening dose's lead window [18:00, 20:00].
	_, _, err = svc.Upsert(ctx, "user-1", "med-1", 1, "12:00:00", "2025-03-10", model.ReminderSingle)
	require.ErrorIs(t, err, model.ErrWindowViolation)
	require.Contains(t, err.Error(), "18:00:00")
	require.Contains(t, err.Error(), "20:00:00")

	// After the dose instant is just as invalid as too far before it.
	_, _, err = svc.Upsert(ctx, "user-1", "med-1", 1, "20:15:00", "2025-03-10", model.ReminderSingle)
	require.ErrorIs(t, err, model.ErrWindowViolation)

	// A future date waives both checks.
	_, created, err := svc.Upsert(ctx, "user-1", "med-1", 0, "07:45:00", "2025-03-11", model.ReminderSingle)
	require.NoError(t, err)
	require.True(t, created)
}

func TestUpsertValidation(t *testing.T) {
	svc, _ := newReminderService(t, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, _, err := svc.Upsert(ctx, "user-1", "med-1", -1, "19:45:00", "2025-03-10", model.ReminderSingle)
	require.ErrorIs(t, err, model.ErrValidation)

	_, _, err = svc.Upsert(ctx, "user-1", "med-1", 5, "19:45:00", "2025-03-10", model.ReminderSingle)
	require.ErrorIs(t, err, model.ErrDoseIndexOutOfRange)

	_, _, err = svc.Upsert(ctx, "user-1", "med-1", 1, "7:45pm", "2025-03-10", model.ReminderSingle)
	require.ErrorIs(t, err, model.ErrValidation)

	_, _, err = svc.Upsert(ctx, "user-1", "med-1", 1, "19:45:00", "2025-03-10", model.ReminderType("weekly"))
	require.ErrorIs(t, err, model.ErrValidation)

	_, _, err = svc.Upsert(ctx, "user-1", "no-such-med", 1, "19:45:00", "2025-03-10", model.ReminderSingle)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestDeleteIsOwnerScoped(t *testing.T) {
	svc, _ := newReminderService(t, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	rem, _, err := svc.Upsert(ctx, "user-1", "med-1", 1, "19:45:00", "2025-03-10", model.ReminderSingle)
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, "someone-else", rem.ReminderID), model.ErrNotFound)
	require.NoError(t, svc.Delete(ctx, "user-1", rem.ReminderID))
}
