// Package reminderworker boots the scheduler process: the reminder engine,
// the missed-dose sweeper and the midnight reset job share one store and one
// clock but tick independently.
package reminderworker

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/medtrackhq/medtrack-server/internal/clock"
	"github.com/medtrackhq/medtrack-server/internal/config"
	"github.com/medtrackhq/medtrack-server/internal/doseclock"
	"github.com/medtrackhq/medtrack-server/internal/engine"
	"github.com/medtrackhq/medtrack-server/internal/notify"
	"github.com/medtrackhq/medtrack-server/internal/platform/factory"
	"github.com/medtrackhq/medtrack-server/internal/platform/logger"
)

// Run starts the scheduler loops and blocks until shutdown or error.
func Run() error {
	log := logger.New("reminder-worker")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Str("timezone", cfg.Timezone).
		Dur("tick", cfg.TickInterval).
		Dur("sweep", cfg.SweepInterval).
		Msg("Reminder worker starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk, err := clock.NewSystem(cfg.Timezone)
	if err != nil {
		log.Error().Err(err).Msg("Invalid timezone")
		return err
	}

	st, err := factory.NewStore(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Store unavailable")
		return err
	}

	var senders []notify.Sender
	if cfg.PushGatewayURL != "" {
		senders = append(senders, notify.NewPushSender(cfg.PushGatewayURL, cfg.DispatchTimeout))
	}
	if cfg.EmailGatewayURL != "" {
		senders = append(senders, notify.NewEmailSender(cfg.EmailGatewayURL, cfg.DispatchTimeout))
	}
	if len(senders) == 0 {
		log.Warn().Msg("no notification gateways configured; reminders will be claimed but not delivered")
	}
	dispatcher := notify.NewFanout(log, cfg.DispatchTimeout, senders...)

	policy := doseclock.Policy{ActionWindow: cfg.ActionWindow}
	eng := engine.NewEngine(st, clk, dispatcher, engine.Config{
		TickInterval:     cfg.TickInterval,
		TriggerTolerance: cfg.TriggerTolerance,
		DispatchDelay:    cfg.DispatchDelay,
	}, log)
	sweeper := engine.NewSweeper(st, clk, policy, cfg.SweepInterval, log)
	reset := engine.NewDailyReset(st, clk, log)

	var wg sync.WaitGroup
	for _, loop := range []func(context.Context) error{eng.Run, sweeper.Run, reset.Run} {
		wg.Add(1)
		run := loop
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("scheduler loop exit")
			}
		}()
	}
	wg.Wait()

	log.Info().Msg("Reminder worker exited")
	return nil
}
