package services

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/uuid"

	"github.com/medtrackhq/medtrack-server/internal/model"
	"github.com/medtrackhq/medtrack-server/internal/store"
)

var emailRx = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// UserService orchestrates account use cases.
type UserService struct {
	store store.Store
}

func NewUserService(s store.Store) *UserService { return &UserService{store: s} }

func (s *UserService) CreateUser(ctx context.Context, u *model.User) (*model.User, error) {
	if u.Email == "" || !emailRx.MatchString(u.Email) {
		return nil, fmt.Errorf("invalid email: %w", model.ErrValidation)
	}
	if u.TimeZone == "" {
		u.TimeZone = "UTC"
	}
	if u.UserID == "" {
		u.UserID = uuid.New().String()
	}
	return s.store.Users().Create(ctx, u)
}

func (s *UserService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return s.store.Users().Get(ctx, userID)
}

func (s *UserService) DeleteUser(ctx context.Context, userID string) error {
	return s.store.Users().Delete(ctx, userID)
}
