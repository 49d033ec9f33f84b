package postgres

import (
	"os"
	"testing"

	"github.com/medtrackhq/medtrack-server/internal/store"
	"github.com/medtrackhq/medtrack-server/internal/store/storetest"
)

// Runs only when MEDTRACK_TEST_POSTGRES_DSN points at a migrated database.
func TestPostgresStore_Compliance(t *testing.T) {
	dsn := os.Getenv("MEDTRACK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MEDTRACK_TEST_POSTGRES_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		db, err := Open(dsn)
		if err != nil {
			t.Fatalf("open postgres: %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })
		return NewWithDB(db)
	})
}
