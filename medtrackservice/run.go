// Package medtrackservice boots the HTTP API service.
package medtrackservice

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medtrackhq/medtrack-server/internal/api"
	"github.com/medtrackhq/medtrack-server/internal/clock"
	"github.com/medtrackhq/medtrack-server/internal/config"
	"github.com/medtrackhq/medtrack-server/internal/doseclock"
	"github.com/medtrackhq/medtrack-server/internal/health"
	"github.com/medtrackhq/medtrack-server/internal/platform/factory"
	"github.com/medtrackhq/medtrack-server/internal/platform/logger"
)

// Run starts the medtrack HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("medtrack-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Str("timezone", cfg.Timezone).
		Dur("action_window", cfg.ActionWindow).
		Msg("Medtrack service starting")

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

	// Health monitor: cached flag served by /api/health.
	storeChecker := health.NewStoreChecker(st)
	svcHealth := health.NewServiceHealthChecker(log, storeChecker)
	go storeChecker.Start(ctx, 30*time.Second)
	go svcHealth.Start(ctx, 30*time.Second)

	router := api.NewRouter(api.Deps{
		Store:   st,
		Clock:   clk,
		Policy:  doseclock.Policy{ActionWindow: cfg.ActionWindow},
		Healthy: svcHealth.IsHealthy,
	})

	server := &http.Server{
		Addr:         cfg.GetHTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
		return err
	}
}
