// Package engine runs the background schedulers: the reminder engine, the
// missed-dose sweeper and the midnight reset job. Each is a periodic loop
// sharing the store with the API service; exactly-once transitions are
// guaranteed by the store's conditional updates, so loops may overlap their
// own previous runs or run on multiple instances.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/medtrackhq/medtrack-server/internal/clock"
	"github.com/medtrackhq/medtrack-server/internal/model"
	"github.com/medtrackhq/medtrack-server/internal/notify"
	"github.com/medtrackhq/medtrack-server/internal/store"
)

// Config controls the reminder engine cadence. All values are policy.
type Config struct {
	TickInterval     time.Duration // scan period
	TriggerTolerance time.Duration // a reminder is due within ±tolerance of its instant
	DispatchDelay    time.Duration // pause between consecutive dispatches
}

// Engine scans schedulable reminders every tick and dispatches the ones due
// now. A reminder fires at most once per intended occurrence: the claim is
// taken before dispatch, and released again only if dispatch fails so the
// next tick inside the trigger window retries.
type Engine struct {
	store store.Store
	clock clock.Clock
	disp  notify.Dispatcher
	cfg   Config
	log   zerolog.Logger
}

func NewEngine(s store.Store, clk clock.Clock, disp notify.Dispatcher, cfg Config, log zerolog.Logger) *Engine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Minute
	}
	if cfg.TriggerTolerance <= 0 {
		cfg.TriggerTolerance = 30 * time.Second
	}
	return &Engine{store: s, clock: clk, disp: disp, cfg: cfg, log: log}
}

// Run starts the tick loop until ctx is canceled.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info().Dur("interval", e.cfg.TickInterval).Dur("tolerance", e.cfg.TriggerTolerance).Msg("reminder engine starting")
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("reminder engine stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := e.tick(ctx); err != nil {
				e.log.Error().Err(err).Msg("reminder tick")
			}
		}
	}
}

// tick evaluates every schedulable reminder once. Per-reminder failures are
// logged and do not abort the tick.
func (e *Engine) tick(ctx context.Context) error {
	now := e.clock.Now()
	today := model.DateOf(now)

	rems, err := e.store.Reminders().ListSchedulable(ctx)
	if err != nil {
		return err
	}

	for _, rem := range rems {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fired, err := e.evaluate(ctx, rem, now, today)
		if err != nil {
			e.log.Error().Err(err).Str("reminder", rem.ReminderID).Msg("reminder dispatch")
		}
		if fired {
			// Spacing between dispatches respects downstream rate limits.
			e.pause(ctx, e.cfg.DispatchDelay)
		}
	}
	return nil
}

// evaluate fires rem if its trigger instant for today is within the
// tolerance of now. Elapsed windows are skipped, never fired late.
func (e *Engine) evaluate(ctx context.Context, rem *model.Reminder, now time.Time, today string) (bool, error) {
	triggerDate := today
	switch rem.Type {
	case model.ReminderDaily:
		if rem.LastFiredOn != nil && *rem.LastFiredOn == today {
			return false, nil
		}
	case model.ReminderSingle:
		// A single past its date can never fire. Retire it so the scan set
		// stays bounded to live reminders.
		if rem.AnchorDate < today {
			if _, err := e.store.Reminders().UpdateStatus(ctx, rem.ReminderID, model.ReminderSent); err != nil {
				return false, err
			}
			e.log.Info().Str("reminder", rem.ReminderID).Str("anchor", rem.AnchorDate).Msg("lapsed single reminder retired")
			return false, nil
		}
		if rem.AnchorDate != today {
			return false, nil
		}
	default:
		return false, fmt.Errorf("unknown reminder type %q", rem.Type)
	}

	trigger, err := model.CombineAt(triggerDate, rem.ReminderTime, now.Location())
	if err != nil {
		return false, err
	}
	diff := now.Sub(trigger)
	if diff < 0 {
		diff = -diff
	}
	if diff > e.cfg.TriggerTolerance {
		return false, nil
	}

	claimed, err := e.store.Reminders().ClaimFire(ctx, rem, today)
	if err != nil || !claimed {
		return false, err
	}

	if err := e.dispatch(ctx, rem); err != nil {
		// Reopen the occurrence; the next tick inside the trigger window
		// retries, after that the skip above retires it.
		if relErr := e.store.Reminders().ReleaseFire(ctx, rem, today); relErr != nil {
			e.log.Error().Err(relErr).Str("reminder", rem.ReminderID).Msg("release after failed dispatch")
		}
		return false, err
	}

	e.log.Info().
		Str("reminder", rem.ReminderID).
		Str("type", string(rem.Type)).
		Str("time", rem.ReminderTime).
		Msg("reminder dispatched")
	return true, nil
}

func (e *Engine) dispatch(ctx context.Context, rem *model.Reminder) error {
	med, err := e.store.Medications().Get(ctx, rem.OwnerID, rem.MedicationID)
	if err != nil {
		return err
	}
	user, err := e.store.Users().Get(ctx, rem.OwnerID)
	if err != nil {
		return err
	}

	doseTime := ""
	if rem.DoseIndex < med.TimesPerDay() {
		doseTime = med.Times[rem.DoseIndex]
	}
	note := notify.Note{
		Title: fmt.Sprintf("Medication reminder: %s", med.Name),
		Body:  fmt.Sprintf("Time to take %s %s. Dose scheduled at %s, reminder set for %s.", med.Name, med.Dosage, doseTime, rem.ReminderTime),
	}
	return e.disp.Send(ctx, user, note)
}

func (e *Engine) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
