// Package factory constructs the configured store backend. Shared by the API
// service and both workers so driver selection lives in one place.
package factory

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/medtrackhq/medtrack-server/internal/config"
	"github.com/medtrackhq/medtrack-server/internal/store"
	"github.com/medtrackhq/medtrack-server/internal/store/postgres"
	"github.com/medtrackhq/medtrack-server/internal/store/sqlite"
)

// NewStore opens the database named by cfg.DBDriver and returns a ready
// store. SQLite also creates the schema; postgres schemas are applied via
// migrations.
func NewStore(cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	switch cfg.DBDriver {
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		st, err := sqlite.NewWithDB(db)
		if err != nil {
			return nil, fmt.Errorf("sqlite schema: %w", err)
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("sqlite store ready")
		return st, nil
	case "postgres":
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		log.Info().Msg("postgres store ready")
		return postgres.NewWithDB(db), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER: %s", cfg.DBDriver)
	}
}
