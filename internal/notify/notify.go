// Package notify fans reminder notifications out to the configured channels.
// The core never talks to push or email transports directly; each channel is
// an HTTP gateway behind a Sender.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/medtrackhq/medtrack-server/internal/model"
)

// Note is a resolved notification payload.
type Note struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// ErrNoEndpoint marks a channel the user has no address for (e.g. no push
// token registered). It is a skip, not a delivery failure.
var ErrNoEndpoint = errors.New("no endpoint for channel")

// Dispatcher is the collaborator the reminder engine depends on.
type Dispatcher interface {
	Send(ctx context.Context, user *model.User, note Note) error
}

// Sender is one delivery channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, user *model.User, note Note) error
}

// Fanout tries every channel in order, bounding each attempt by a per-call
// timeout so a hung gateway cannot stall the scheduler tick. One channel's
// failure never skips the next; the dispatch only fails when no channel
// delivered.
type Fanout struct {
	senders []Sender
	timeout time.Duration
	log     zerolog.Logger
}

func NewFanout(log zerolog.Logger, timeout time.Duration, senders ...Sender) *Fanout {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fanout{senders: senders, timeout: timeout, log: log}
}

func (f *Fanout) Send(ctx context.Context, user *model.User, note Note) error {
	if len(f.senders) == 0 {
		f.log.Debug().Str("user", user.UserID).Msg("no notification channels configured")
		return nil
	}

	delivered := false
	var errs []error
	for _, snd := range f.senders {
		cctx, cancel := context.WithTimeout(ctx, f.timeout)
		err := snd.Send(cctx, user, note)
		cancel()
		switch {
		case err == nil:
			delivered = true
		case errors.Is(err, ErrNoEndpoint):
			f.log.Debug().Str("user", user.UserID).Str("channel", snd.Name()).Msg("channel skipped")
		default:
			f.log.Warn().Err(err).Str("user", user.UserID).Str("channel", snd.Name()).Msg("channel dispatch failed")
			errs = append(errs, err)
		}
	}
	if !delivered && len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
