package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/medtrackhq/medtrack-server/internal/model"
)

func TestCreateUserDefaults(t *testing.T) {
	st := newTestStore(t)
	svc := NewUserService(st)

	ctx := context.Background()
	u, err := svc.CreateUser(ctx, &model.User{Email: "amira@example.com"})
	require.NoError(t, err)
	require.NotEmpty(t, u.UserID)
	require.Equal(t, "UTC", u.TimeZone)
	require.False(t, u.CreationTime.IsZero())
}

func TestCreateUserRejectsBadEmail(t *testing.T) {
	st := newTestStore(t)
	svc := NewUserService(st)

	ctx := context.Background()
	for _, email := range []string{"", "plainaddress", "a@b", "no spaces@example.com"} {
		_, err := svc.CreateUser(ctx, &model.User{Email: email})
		require.ErrorIs(t, err, model.ErrValidation, "email %q", email)
	}
}

func TestGetAndDeleteUser(t *testing.T) {
	st := newTestStore(t)
	svc := NewUserService(st)

	ctx := context.Background()
	u, err := svc.CreateUser(ctx, &model.User{Email: "amira@example.com"})
	require.NoError(t, err)

	got, err := svc.GetUser(ctx, u.UserID)
	require.NoError(t, err)
	require.Equal(t, u.Email, got.Email)

	require.NoError(t, svc.DeleteUser(ctx, u.UserID))
	_, err = svc.GetUser(ctx, u.UserID)
	require.ErrorIs(t, err, model.ErrNotFound)
}
