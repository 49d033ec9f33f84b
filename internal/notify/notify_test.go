package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/medtrackhq/medtrack-server/internal/model"
)

type stubSender struct {
	name  string
	err   error
	calls int
}

func (s *stubSender) Name() string { return s.name }

func (s *stubSender) Send(_ context.Context, _ *model.User, _ Note) error {
	s.calls++
	return s.err
}

func testUser() *model.User {
	token := "tok-1"
	return &model.User{UserID: "user-1", Email: "amira@example.com", TimeZone: "UTC", PushToken: &token}
}

func TestFanoutDeliversToAllChannels(t *testing.T) {
	push := &stubSender{name: "push"}
	email := &stubSender{name: "email"}
	f := NewFanout(zerolog.Nop(), time.Second, push, email)

	require.NoError(t, f.Send(context.Background(), testUser(), Note{Title: "t", Body: "b"}))
	require.Equal(t, 1, push.calls)
	require.Equal(t, 1, email.calls)
}

func TestFanoutOneChannelFailureIsNotFatal(t *testing.T) {
	push := &stubSender{name: "push", err: errors.New("gateway down")}
	email := &stubSender{name: "email"}
	f := NewFanout(zerolog.Nop(), time.Second, push, email)

	// Email still delivered, so the dispatch as a whole succeeded.
	require.NoError(t, f.Send(context.Background(), testUser(), Note{}))
	require.Equal(t, 1, email.calls)
}

func TestFanoutFailsWhenNothingDelivered(t *testing.T) {
	push := &stubSender{name: "push", err: errors.New("gateway down")}
	email := &stubSender{name: "email", err: errors.New("smtp relay down")}
	f := NewFanout(zerolog.Nop(), time.Second, push, email)

	err := f.Send(context.Background(), testUser(), Note{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "gateway down")
	require.Contains(t, err.Error(), "smtp relay down")
}

func TestFanoutSkipsChannelsWithoutEndpoint(t *testing.T) {
	push := &stubSender{name: "push", err: ErrNoEndpoint}
	email := &stubSender{name: "email", err: ErrNoEndpoint}
	f := NewFanout(zerolog.Nop(), time.Second, push, email)

	// All-skip is a success: the user simply has no channels registered.
	require.NoError(t, f.Send(context.Background(), testUser(), Note{}))
}

func TestPushSenderPostsToGateway(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewPushSender(srv.URL, time.Second)
	require.NoError(t, s.Send(context.Background(), testUser(), Note{Title: "Reminder", Body: "Take it"}))
	require.Equal(t, "tok-1", got["token"])
	require.Equal(t, "Reminder", got["title"])
}

func TestPushSenderWithoutTokenSkips(t *testing.T) {
	s := NewPushSender("http://127.0.0.1:1", time.Second)
	u := testUser()
	u.PushToken = nil
	require.ErrorIs(t, s.Send(context.Background(), u, Note{}), ErrNoEndpoint)
}

func TestEmailSenderReportsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewEmailSender(srv.URL, time.Second)
	require.Error(t, s.Send(context.Background(), testUser(), Note{}))
}
