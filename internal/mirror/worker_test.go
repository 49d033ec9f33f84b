package mirror

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/medtrackhq/medtrack-server/internal/clock"
	"github.com/medtrackhq/medtrack-server/internal/model"
	"github.com/medtrackhq/medtrack-server/internal/store"
	"github.com/medtrackhq/medtrack-server/internal/store/sqlite"
)

type mirrorServer struct {
	mu     sync.Mutex
	events []event
	fail   bool
	srv    *httptest.Server
}

func newMirrorServer(t *testing.T) *mirrorServer {
	t.Helper()
	m := &mirrorServer{}
	m.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.fail {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		var ev event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		m.events = append(m.events, ev)
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(m.srv.Close)
	return m
}

func (m *mirrorServer) received() []event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]event, len(m.events))
	copy(out, m.events)
	return out
}

func (m *mirrorServer) setFail(v bool) {
	m.mu.Lock()
	m.fail = v
	m.mu.Unlock()
}

func newMirrorFixture(t *testing.T, srv *mirrorServer) (store.Store, *clock.Fake, *Worker) {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	st, err := sqlite.NewWithDB(db)
	require.NoError(t, err)

	clk := clock.NewFake(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	w := NewWorker(st, clk, Config{
		MirrorURL:    srv.srv.URL,
		BatchSize:    10,
		PollInterval: 2 * time.Second,
	}, zerolog.Nop())
	return st, clk, w
}

func seedMutations(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()
	_, err := st.Users().Create(ctx, &model.User{UserID: "user-1", Email: "amira@example.com", TimeZone: "UTC"})
	require.NoError(t, err)
	_, err = st.Medications().Create(ctx, &model.Medication{
		MedicationID: "med-1",
		OwnerID:      "user-1",
		Name:         "Metformin",
		Dosage:       "500mg",
		Frequency:    model.FrequencyDaily,
		Times:        []string{"08:00:00"},
		StartDate:    "2025-03-01",
	})
	require.NoError(t, err)
}

func TestWorkerDeliversOutboxInOrder(t *testing.T) {
	srv := newMirrorServer(t)
	st, clk, w := newMirrorFixture(t, srv)
	seedMutations(t, st)

	ctx := context.Background()
	require.NoError(t, w.drainOnce(ctx))

	got := srv.received()
	require.Len(t, got, 2)
	require.Equal(t, store.OpUpsertUser, got[0].Op)
	require.Equal(t, "user-1", got[0].AggregateID)
	require.Equal(t, store.OpUpsertMedication, got[1].Op)
	require.Equal(t, "med-1", got[1].AggregateID)

	var med model.Medication
	require.NoError(t, json.Unmarshal(got[1].Payload, &med))
	require.Equal(t, "Metformin", med.Name)

	// Delivered rows are done; nothing is leased again.
	rows, err := st.Outbox().Lease(ctx, clk.Now(), 10)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestWorkerRetriesFailedDeliveryWithBackoff(t *testing.T) {
	srv := newMirrorServer(t)
	st, clk, w := newMirrorFixture(t, srv)
	seedMutations(t, st)

	ctx := context.Background()
	srv.setFail(true)
	require.NoError(t, w.drainOnce(ctx))
	require.Empty(t, srv.received())

	// Failed rows are parked until their next attempt time.
	require.NoError(t, w.drainOnce(ctx))
	require.Empty(t, srv.received())

	srv.setFail(false)
	clk.Advance(time.Minute)
	require.NoError(t, w.drainOnce(ctx))
	require.Len(t, srv.received(), 2)
}

func TestBackoffDoublesUpToCeiling(t *testing.T) {
	w := &Worker{cfg: Config{PollInterval: 2 * time.Second, BackoffCeiling: 10 * time.Second}}

	require.Equal(t, 2*time.Second, w.backoff(1))
	require.Equal(t, 4*time.Second, w.backoff(2))
	require.Equal(t, 8*time.Second, w.backoff(3))
	require.Equal(t, 10*time.Second, w.backoff(4))
	require.Equal(t, 10*time.Second, w.backoff(8))
}
