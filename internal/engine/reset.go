package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/medtrackhq/medtrack-server/internal/clock"
	"github.com/medtrackhq/medtrack-server/internal/store"
)

// DailyReset re-arms daily reminders at each local midnight. The reset flips
// status back to pending for visibility; duplicate suppression itself rests
// on last_fired_on, so a skipped or repeated reset changes nothing about
// when reminders fire.
type DailyReset struct {
	store store.Store
	clock clock.Clock
	log   zerolog.Logger
}

func NewDailyReset(s store.Store, clk clock.Clock, log zerolog.Logger) *DailyReset {
	return &DailyReset{store: s, clock: clk, log: log}
}

// Run sleeps until the next local midnight, resets, and repeats until ctx is
// canceled.
func (r *DailyReset) Run(ctx context.Context) error {
	r.log.Info().Str("tz", r.clock.Location().String()).Msg("daily reset job starting")
	for {
		now := r.clock.Now()
		timer := time.NewTimer(nextMidnight(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			r.log.Info().Msg("daily reset job stopping")
			return ctx.Err()
		case <-timer.C:
			if err := r.resetOnce(ctx); err != nil {
				r.log.Error().Err(err).Msg("daily reminder reset")
			}
		}
	}
}

func (r *DailyReset) resetOnce(ctx context.Context) error {
	n, err := r.store.Reminders().ResetDailyToPending(ctx)
	if err != nil {
		return err
	}
	r.log.Info().Int64("reminders", n).Msg("daily reminders re-armed")
	return nil
}

// nextMidnight returns 00:00 of the following day in now's location.
func nextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}
