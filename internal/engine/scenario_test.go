package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/medtrackhq/medtrack-server/internal/doseclock"
	"github.com/medtrackhq/medtrack-server/internal/model"
	"github.com/medtrackhq/medtrack-server/internal/services"

	"github.com/rs/zerolog"
)

// Full morning-dose walkthrough: the reminder fires at 08:00, the user takes
// the dose at 08:05, the 10:10 sweep leaves the taken dose alone, and the
// 23:30 sweep closes out the day's untouched evening slot.
func TestReminderTakeSweepScenario(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)
	f.addReminder(t, "rem-morning", model.ReminderDaily, "08:00:00", "2025-03-10")

	ctx := context.Background()
	policy := doseclock.DefaultPolicy()
	doseSvc := services.NewDoseService(f.store, f.clock, policy)
	sweeper := NewSweeper(f.store, f.clock, policy, time.Minute, zerolog.Nop())

	// 08:00 tick: the reminder fires once.
	require.NoError(t, f.eng.tick(ctx))
	require.Equal(t, 1, f.disp.count())

	// 08:05: the user takes the morning dose.
	f.clock.Set(time.Date(2025, 3, 10, 8, 5, 0, 0, time.UTC))
	rec, err := doseSvc.TakeDose(ctx, f.user.UserID, f.med.MedicationID, "2025-03-10", 0)
	require.NoError(t, err)
	require.True(t, rec.Taken)

	// 10:10 sweep: the morning window has closed, but the dose was taken.
	f.clock.Set(time.Date(2025, 3, 10, 10, 10, 0, 0, time.UTC))
	require.NoError(t, sweeper.sweepOnce(ctx))

	st, err := doseSvc.GetStatus(ctx, f.user.UserID, f.med.MedicationID, "2025-03-10", 0)
	require.NoError(t, err)
	require.True(t, st.Taken)
	require.False(t, st.Missed)

	// The evening dose is untouched and still pending, not yet missed.
	st, err = doseSvc.GetStatus(ctx, f.user.UserID, f.med.MedicationID, "2025-03-10", 1)
	require.NoError(t, err)
	require.False(t, st.Taken)
	require.False(t, st.Missed)

	// End of day: the sweep closes out the skipped evening dose.
	f.clock.Set(time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC))
	require.NoError(t, sweeper.sweepOnce(ctx))
	st, err = doseSvc.GetStatus(ctx, f.user.UserID, f.med.MedicationID, "2025-03-10", 1)
	require.NoError(t, err)
	require.True(t, st.Missed)

	// And a late take is refused.
	_, err = doseSvc.TakeDose(ctx, f.user.UserID, f.med.MedicationID, "2025-03-10", 1)
	require.ErrorIs(t, err, model.ErrOutOfWindow)
}
