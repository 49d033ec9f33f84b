package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/medtrackhq/medtrack-server/internal/clock"
	"github.com/medtrackhq/medtrack-server/internal/doseclock"
	"github.com/medtrackhq/medtrack-server/internal/model"
	"github.com/medtrackhq/medtrack-server/internal/store"
)

// Sweeper periodically marks doses whose action window has closed without a
// take as missed. Marking is idempotent and never touches taken doses, so
// the sweep can lag, repeat, or race a concurrent take safely.
type Sweeper struct {
	store    store.Store
	clock    clock.Clock
	policy   doseclock.Policy
	interval time.Duration
	log      zerolog.Logger
}

func NewSweeper(s store.Store, clk clock.Clock, policy doseclock.Policy, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{store: s, clock: clk, policy: policy, interval: interval, log: log}
}

// Run starts the sweep loop until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) error {
	s.log.Info().Dur("interval", s.interval).Msg("missed-dose sweeper starting")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("missed-dose sweeper stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := s.sweepOnce(ctx); err != nil {
				s.log.Error().Err(err).Msg("dose sweep")
			}
		}
	}
}

// sweepOnce scans every medication active today and closes out its elapsed,
// untouched doses.
func (s *Sweeper) sweepOnce(ctx context.Context) error {
	now := s.clock.Now()
	today := model.DateOf(now)

	meds, err := s.store.Medications().ListActiveOn(ctx, today)
	if err != nil {
		return err
	}

	for _, med := range meds {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		scheduled, err := med.ScheduledOn(today, s.clock.Location())
		if err != nil {
			s.log.Error().Err(err).Str("medication", med.MedicationID).Msg("schedule check")
			continue
		}
		if !scheduled {
			continue
		}
		recs, err := s.store.Doses().GetOrInit(ctx, med, today)
		if err != nil {
			s.log.Error().Err(err).Str("medication", med.MedicationID).Msg("load doses")
			continue
		}
		for _, rec := range recs {
			if rec.Taken || rec.Missed {
				continue
			}
			closed, err := doseclock.WindowClosed(rec, now, s.policy)
			if err != nil {
				s.log.Error().Err(err).Str("medication", med.MedicationID).Int("dose", rec.DoseIndex).Msg("window check")
				continue
			}
			if !closed {
				continue
			}
			if _, err := s.store.Doses().SetMissed(ctx, med.MedicationID, rec.Date, rec.DoseIndex, true); err != nil {
				s.log.Error().Err(err).Str("medication", med.MedicationID).Int("dose", rec.DoseIndex).Msg("mark missed")
				continue
			}
			s.log.Info().
				Str("medication", med.MedicationID).
				Str("date", rec.Date).
				Int("dose", rec.DoseIndex).
				Msg("dose marked missed")
		}
	}
	return nil
}
