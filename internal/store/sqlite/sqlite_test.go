package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/medtrackhq/medtrack-server/internal/model"
	"github.com/medtrackhq/medtrack-server/internal/store"
	"github.com/medtrackhq/medtrack-server/internal/store/storetest"
)

func TestSQLiteStore_Compliance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		db, err := Open(filepath.Join(t.TempDir(), "medtrack.db"))
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })

		s, err := NewWithDB(db)
		if err != nil {
			t.Fatalf("new store: %v", err)
		}
		return s
	})
}

// Concurrent first-touch writes against one day must all succeed. With
// deferred transactions both writers would take read locks and deadlock on
// the upgrade; immediate transactions queue on the busy timeout instead.
func TestSQLiteConcurrentFirstTouch(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "medtrack.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	s, err := NewWithDB(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	ctx := context.Background()
	if _, err := s.Users().Create(ctx, &model.User{UserID: "u-1", Email: "u-1@example.test", TimeZone: "UTC"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	med, err := s.Medications().Create(ctx, &model.Medication{
		OwnerID:   "u-1",
		Name:      "metformin",
		Dosage:    "500mg",
		Frequency: model.FrequencyDaily,
		Times:     []string{"08:00:00", "20:00:00"},
		StartDate: "2026-03-02",
	})
	if err != nil {
		t.Fatalf("create medication: %v", err)
	}

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Doses().GetOrInit(ctx, med, "2026-03-10")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("writer %d: %v", i, err)
		}
	}
	recs, err := s.Doses().GetOrInit(ctx, med, "2026-03-10")
	if err != nil || len(recs) != 2 {
		t.Fatalf("after race: n=%d err=%v", len(recs), err)
	}
}
