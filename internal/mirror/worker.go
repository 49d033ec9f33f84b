// Package mirror drains the transactional outbox to the realtime mirror.
// Every store mutation leaves an outbox row in the same transaction; this
// worker delivers those rows over HTTP in insertion order, retrying failed
// rows with exponential backoff so the mirror converges even through
// extended downstream outages.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/medtrackhq/medtrack-server/internal/clock"
	"github.com/medtrackhq/medtrack-server/internal/model"
	"github.com/medtrackhq/medtrack-server/internal/store"
)

// Config controls the drain loop.
type Config struct {
	MirrorURL      string        // mirror ingest endpoint
	BatchSize      int           // rows leased per poll
	PollInterval   time.Duration // sleep between polls
	BackoffCeiling time.Duration // cap on per-row retry delay
	RequestTimeout time.Duration
}

// event is the wire form of one mirrored mutation.
type event struct {
	ID          int64           `json:"id"`
	Op          string          `json:"op"`
	AggregateID string          `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
}

// Worker leases pending outbox rows and posts them to the mirror.
type Worker struct {
	store  store.Store
	clock  clock.Clock
	client *resty.Client
	cfg    Config
	log    zerolog.Logger
}

func NewWorker(s store.Store, clk clock.Clock, cfg Config, log zerolog.Logger) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BackoffCeiling <= 0 {
		cfg.BackoffCeiling = 5 * time.Minute
	}
	client := resty.New()
	if cfg.RequestTimeout > 0 {
		client.SetTimeout(cfg.RequestTimeout)
	}
	return &Worker{store: s, clock: clk, client: client, cfg: cfg, log: log}
}

// Run polls until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().Str("mirror", w.cfg.MirrorURL).Dur("poll", w.cfg.PollInterval).Msg("mirror worker starting")
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("mirror worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := w.drainOnce(ctx); err != nil {
				w.log.Error().Err(err).Msg("outbox drain")
			}
		}
	}
}

// drainOnce leases one batch and delivers it in order. A failed row is
// rescheduled and delivery continues with the next row; ordering within an
// aggregate is preserved by retry convergence, not by blocking the batch.
func (w *Worker) drainOnce(ctx context.Context) error {
	rows, err := w.store.Outbox().Lease(ctx, w.clock.Now(), w.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.deliver(ctx, row); err != nil {
			next := w.clock.Now().Add(w.backoff(row.AttemptCount + 1))
			w.log.Warn().Err(err).Int64("row", row.ID).Str("op", row.Op).Time("retry_at", next).Msg("mirror delivery failed")
			if mfErr := w.store.Outbox().MarkFailed(ctx, row.ID, next); mfErr != nil {
				w.log.Error().Err(mfErr).Int64("row", row.ID).Msg("mark failed")
			}
			continue
		}
		if err := w.store.Outbox().MarkDone(ctx, row.ID); err != nil {
			// The mirror got the event; the lease will redeliver it, which the
			// mirror must treat as an upsert replay.
			w.log.Error().Err(err).Int64("row", row.ID).Msg("mark done")
		}
	}
	return nil
}

func (w *Worker) deliver(ctx context.Context, row *model.OutboxRow) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(event{ID: row.ID, Op: row.Op, AggregateID: row.AggregateID, Payload: row.Payload}).
		Post(w.cfg.MirrorURL)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("mirror returned %s", resp.Status())
	}
	return nil
}

// backoff doubles per attempt up to the ceiling.
func (w *Worker) backoff(attempts int) time.Duration {
	d := w.cfg.PollInterval
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= w.cfg.BackoffCeiling {
			return w.cfg.BackoffCeiling
		}
	}
	if d > w.cfg.BackoffCeiling {
		d = w.cfg.BackoffCeiling
	}
	return d
}
