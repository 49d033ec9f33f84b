package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/medtrackhq/medtrack-server/internal/clock"
	"github.com/medtrackhq/medtrack-server/internal/doseclock"
	"github.com/medtrackhq/medtrack-server/internal/model"
	"github.com/medtrackhq/medtrack-server/internal/store"
	"github.com/medtrackhq/medtrack-server/internal/store/sqlite"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "svc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	st, err := sqlite.NewWithDB(db)
	require.NoError(t, err)
	return st
}

func seedMedication(t *testing.T, st store.Store, freq model.Frequency, times []string) *model.Medication {
	t.Helper()
	ctx := context.Background()
	_, err := st.Users().Create(ctx, &model.User{UserID: "user-1", Email: "amira@example.com", TimeZone: "UTC"})
	require.NoError(t, err)
	med, err := st.Medications().Create(ctx, &model.Medication{
		MedicationID: "med-1",
		OwnerID:      "user-1",
		Name:         "Metformin",
		Dosage:       "500mg",
		Frequency:    freq,
		Times:        times,
		StartDate:    "2025-03-03", // a Monday
	})
	require.NoError(t, err)
	return med
}

func TestTakeDoseWithinWindow(t *testing.T) {
	st := newTestStore(t)
	seedMedication(t, st, model.FrequencyDaily, []string{"08:00:00", "20:00:00"})
	clk := clock.NewFake(time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC))
	svc := NewDoseService(st, clk, doseclock.DefaultPolicy())

	ctx := context.Background()
	rec, err := svc.TakeDose(ctx, "user-1", "med-1", "2025-03-10", 0)
	require.NoError(t, err)
	require.True(t, rec.Taken)
	require.NotNil(t, rec.TakenAt)
	require.Equal(t, clk.Now().Unix(), rec.TakenAt.Unix())
}

func TestTakeDoseOutsideWindow(t *testing.T) {
	st := newTestStore(t)
	seedMedication(t, st, model.FrequencyDaily, []string{"08:00:00", "20:00:00"})
	clk := clock.NewFake(time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC))
	svc := NewDoseService(st, clk, doseclock.DefaultPolicy())

	ctx := context.Background()
	// Evening dose window opens at 18:00.
	_, err := svc.TakeDose(ctx, "user-1", "med-1", "2025-03-10", 1)
	require.ErrorIs(t, err, model.ErrOutOfWindow)
	require.Contains(t, err.Error(), "18:00")
	require.Contains(t, err.Error(), "22:00")

	// Past the window the same error applies.
	clk.Set(time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC))
	_, err = svc.TakeDose(ctx, "user-1", "med-1", "2025-03-10", 0)
	require.ErrorIs(t, err, model.ErrOutOfWindow)
}

func TestTakeDoseValidation(t *testing.T) {
	st := newTestStore(t)
	seedMedication(t, st, model.FrequencyDaily, []string{"08:00:00"})
	clk := clock.NewFake(time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))
	svc := NewDoseService(st, clk, doseclock.DefaultPolicy())

	ctx := context.Background()
	_, err := svc.TakeDose(ctx, "user-1", "med-1", "2025-03-10", -1)
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.TakeDose(ctx, "user-1", "med-1", "2025-03-10", 3)
	require.ErrorIs(t, err, model.ErrDoseIndexOutOfRange)

	_, err = svc.TakeDose(ctx, "user-1", "med-1", "10-03-2025", 0)
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.TakeDose(ctx, "user-1", "no-such-med", "2025-03-10", 0)
	require.ErrorIs(t, err, model.ErrNotFound)

	// Before the medication's start date.
	_, err = svc.TakeDose(ctx, "user-1", "med-1", "2025-03-01", 0)
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestUndoDose(t *testing.T) {
	st := newTestStore(t)
	seedMedication(t, st, model.FrequencyDaily, []string{"08:00:00"})
	clk := clock.NewFake(time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))
	svc := NewDoseService(st, clk, doseclock.DefaultPolicy())

	ctx := context.Background()
	_, err := svc.TakeDose(ctx, "user-1", "med-1", "2025-03-10", 0)
	require.NoError(t, err)

	// Undo works even after the window has closed.
	clk.Set(time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC))
	rec, err := svc.UndoDose(ctx, "user-1", "med-1", "2025-03-10", 0)
	require.NoError(t, err)
	require.False(t, rec.Taken)
	require.Nil(t, rec.TakenAt)

	// Undoing an untaken dose is a no-op.
	rec, err = svc.UndoDose(ctx, "user-1", "med-1", "2025-03-10", 0)
	require.NoError(t, err)
	require.False(t, rec.Taken)
}

func TestTakeAfterSweepIsRejected(t *testing.T) {
	st := newTestStore(t)
	med := seedMedication(t, st, model.FrequencyDaily, []string{"08:00:00"})
	clk := clock.NewFake(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	svc := NewDoseService(st, clk, doseclock.DefaultPolicy())

	ctx := context.Background()
	_, err := st.Doses().GetOrInit(ctx, med, "2025-03-10")
	require.NoError(t, err)
	_, err = st.Doses().SetMissed(ctx, "med-1", "2025-03-10", 0, true)
	require.NoError(t, err)

	// Still inside the nominal window, but the sweep already closed it out.
	_, err = svc.TakeDose(ctx, "user-1", "med-1", "2025-03-10", 0)
	require.ErrorIs(t, err, model.ErrOutOfWindow)
}

func TestListStatuses(t *testing.T) {
	st := newTestStore(t)
	seedMedication(t, st, model.FrequencyWeekly, []string{"08:00:00", "20:00:00"})
	clk := clock.NewFake(time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC))
	svc := NewDoseService(st, clk, doseclock.DefaultPolicy())

	ctx := context.Background()
	// Monday: scheduled.
	out, err := svc.ListStatuses(ctx, "user-1", "med-1", "2025-03-10")
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.True(t, out[0].WithinWindow)
	require.True(t, out[0].CanTake)
	require.False(t, out[1].WithinWindow)

	// Tuesday: weekly medication is off-schedule, no statuses.
	out, err = svc.ListStatuses(ctx, "user-1", "med-1", "2025-03-11")
	require.NoError(t, err)
	require.Empty(t, out)
}
