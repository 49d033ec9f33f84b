package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Config holds the configuration for the medtrack services.
// Environment variables are parsed from the MEDTRACK_ prefix,
// e.g. MEDTRACK_HTTP_PORT, MEDTRACK_POSTGRES_DSN.
type Config struct {
	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Storage
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"./data/medtrack.db"`

	// Timezone all dose schedules and reminders are interpreted in.
	Timezone string `envconfig:"TIMEZONE" default:"UTC"`

	// Scheduler policy. The 2h window and 30s tolerance are policy, not
	// physical constraints, so every one of them is tunable.
	TickInterval     time.Duration `envconfig:"TICK_INTERVAL" default:"60s"`
	TriggerTolerance time.Duration `envconfig:"TRIGGER_TOLERANCE" default:"30s"`
	ActionWindow     time.Duration `envconfig:"ACTION_WINDOW" default:"2h"`
	DispatchDelay    time.Duration `envconfig:"DISPATCH_DELAY" default:"5s"`
	SweepInterval    time.Duration `envconfig:"SWEEP_INTERVAL" default:"60s"`

	// Notification gateways. Empty URL disables the channel.
	PushGatewayURL  string        `envconfig:"PUSH_GATEWAY_URL" default:""`
	EmailGatewayURL string        `envconfig:"EMAIL_GATEWAY_URL" default:""`
	DispatchTimeout time.Duration `envconfig:"DISPATCH_TIMEOUT" default:"10s"`

	// Realtime mirror fed by the outbox worker. Empty disables mirroring.
	MirrorURL            string        `envconfig:"MIRROR_URL" default:""`
	MirrorBatchSize      int           `envconfig:"MIRROR_BATCH_SIZE" default:"100"`
	MirrorPollInterval   time.Duration `envconfig:"MIRROR_POLL_INTERVAL" default:"2s"`
	MirrorBackoffCeiling time.Duration `envconfig:"MIRROR_BACKOFF_CEILING" default:"5m"`
}

// ResolveDefaults validates driver selection and scheduler policy.
func (c *Config) ResolveDefaults() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN required for postgres driver")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.TickInterval <= 0 || c.SweepInterval <= 0 {
		return fmt.Errorf("tick and sweep intervals must be positive")
	}
	if c.TriggerTolerance <= 0 || c.ActionWindow <= 0 {
		return fmt.Errorf("trigger tolerance and action window must be positive")
	}
	if c.TriggerTolerance*2 > c.TickInterval {
		// A tolerance wider than half the tick period double-fires across
		// adjacent ticks; refuse the combination instead of firing twice.
		return fmt.Errorf("TRIGGER_TOLERANCE %s too wide for TICK_INTERVAL %s", c.TriggerTolerance, c.TickInterval)
	}
	return nil
}

// New creates a Config by parsing MEDTRACK_-prefixed environment variables.
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("MEDTRACK", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Str("timezone", cfg.Timezone).
		Dur("tick_interval", cfg.TickInterval).
		Dur("trigger_tolerance", cfg.TriggerTolerance).
		Dur("action_window", cfg.ActionWindow).
		Dur("dispatch_delay", cfg.DispatchDelay).
		Bool("push_enabled", cfg.PushGatewayURL != "").
		Bool("email_enabled", cfg.EmailGatewayURL != "").
		Bool("mirror_enabled", cfg.MirrorURL != "").
		Msg("Configuration loaded")

	return &cfg, nil
}

// GetHTTPAddr returns the HTTP server address.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
