// Package mirrorworker boots the outbox drain process feeding the realtime
// mirror.
package mirrorworker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/medtrackhq/medtrack-server/internal/clock"
	"github.com/medtrackhq/medtrack-server/internal/config"
	"github.com/medtrackhq/medtrack-server/internal/mirror"
	"github.com/medtrackhq/medtrack-server/internal/platform/factory"
	"github.com/medtrackhq/medtrack-server/internal/platform/logger"
)

// Run starts the mirror worker and blocks until shutdown or error.
func Run() error {
	log := logger.New("mirror-worker")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}
	if cfg.MirrorURL == "" {
		return fmt.Errorf("MEDTRACK_MIRROR_URL is required for the mirror worker")
	}

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Str("mirror", cfg.MirrorURL).
		Int("batch", cfg.MirrorBatchSize).
		Msg("Mirror worker starting")

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

	w := mirror.NewWorker(st, clk, mirror.Config{
		MirrorURL:      cfg.MirrorURL,
		BatchSize:      cfg.MirrorBatchSize,
		PollInterval:   cfg.MirrorPollInterval,
		BackoffCeiling: cfg.MirrorBackoffCeiling,
		RequestTimeout: cfg.DispatchTimeout,
	}, log)

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("mirror worker exit")
		return err
	}
	log.Info().Msg("Mirror worker exited")
	return nil
}
