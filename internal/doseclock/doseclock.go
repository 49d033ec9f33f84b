// Package doseclock computes the temporal state of a dose (pending, within
// its action window, actionable) from its schedule and an explicit "now".
// It performs no I/O.
package doseclock

import (
	"fmt"
	"time"

	"github.com/medtrackhq/medtrack-server/internal/model"
)

// DefaultActionWindow is the policy default for how far from the scheduled
// time a dose may still be marked taken.
const DefaultActionWindow = 2 * time.Hour

// Policy carries the tunable temporal constants. The window is policy, not a
// physical constraint, so it is always injected rather than hard-coded.
type Policy struct {
	ActionWindow time.Duration
}

// DefaultPolicy returns the standard ±2h action window.
func DefaultPolicy() Policy { return Policy{ActionWindow: DefaultActionWindow} }

// Compute derives the dose status for rec at instant now. The anchor date and
// scheduled time are taken from the record; now must already be in the
// configured timezone. Callers must address doses by explicit index;
// inferring an index from another dose's hour is not supported.
func Compute(rec *model.DoseRecord, now time.Time, p Policy) (model.DoseStatus, error) {
	if rec == nil {
		return model.DoseStatus{}, fmt.Errorf("nil dose record: %w", model.ErrValidation)
	}
	if p.ActionWindow <= 0 {
		p.ActionWindow = DefaultActionWindow
	}

	scheduledAt, err := model.CombineAt(rec.Date, rec.ScheduledTime, now.Location())
	if err != nil {
		return model.DoseStatus{}, err
	}

	st := model.DoseStatus{
		Taken:       rec.Taken,
		Missed:      rec.Missed,
		ScheduledAt: scheduledAt,
		WindowStart: scheduledAt.Add(-p.ActionWindow),
		WindowEnd:   scheduledAt.Add(p.ActionWindow),
	}
	st.WithinWindow = !now.Before(st.WindowStart) && !now.After(st.WindowEnd)
	st.TimeToTake = !now.Before(scheduledAt)
	st.CanTake = !st.Taken && !st.Missed && st.WithinWindow && rec.Date == model.DateOf(now)
	return st, nil
}

// WindowClosed reports whether the action window for rec has fully elapsed at
// instant now. Used by the missed-dose sweep.
func WindowClosed(rec *model.DoseRecord, now time.Time, p Policy) (bool, error) {
	st, err := Compute(rec, now, p)
	if err != nil {
		return false, err
	}
	return now.After(st.WindowEnd), nil
}
