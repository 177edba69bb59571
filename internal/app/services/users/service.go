// Package users manages platform members.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yigicoin/platform/internal/app/domain/user"
	"github.com/yigicoin/platform/internal/app/storage"
	"github.com/yigicoin/platform/internal/apperr"
	"github.com/yigicoin/platform/pkg/logger"
)

// Service manages user records.
type Service struct {
	store storage.UserStore
	log   *logger.Logger
}

// New constructs a user service.
func New(store storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{store: store, log: log}
}

// Register creates a new member at the registro rank.
func (s *Service) Register(ctx context.Context, email, username string) (user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return user.User{}, fmt.Errorf("email is required")
	}
	if username == "" {
		return user.User{}, fmt.Errorf("username is required")
	}

	created, err := s.store.CreateUser(ctx, user.User{
		Email:    email,
		Username: username,
		Rank:     user.RankRegistro,
	})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return user.User{}, apperr.New(apperr.CodeConflict, "user %s already registered", email)
		}
		return user.User{}, err
	}
	s.log.Infof("user %s registered", created.ID)
	return created, nil
}

// Get retrieves a user by identifier.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return user.User{}, apperr.New(apperr.CodeUserNotFound, "user %s not found", id)
	}
	return u, err
}

// GetByEmail retrieves a user by email.
func (s *Service) GetByEmail(ctx context.Context, email string) (user.User, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return user.User{}, apperr.New(apperr.CodeUserNotFound, "user %s not found", email)
	}
	return u, err
}

// List returns all members.
func (s *Service) List(ctx context.Context) ([]user.User, error) {
	return s.store.ListUsers(ctx)
}

// SetRank moves a user to the given ladder position.
func (s *Service) SetRank(ctx context.Context, id string, rank user.Rank) (user.User, error) {
	if !rank.Valid() {
		return user.User{}, fmt.Errorf("unknown rank %q", rank)
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	u.Rank = rank
	updated, err := s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.Infof("user %s rank set to %s", id, rank)
	return updated, nil
}
