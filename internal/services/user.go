package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/cafe-inventory/server/internal/store"
	"github.com/cafe-inventory/server/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// UserService encapsulates registration and credential checks.
type UserService struct {
	repo UserRepository
	cost int

	dummyOnce sync.Once
	dummy     []byte
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo, cost: bcrypt.DefaultCost}
}

// Register creates an account. A taken username yields store.ErrConflict.
func (s *UserService) Register(ctx context.Context, username, password string, role types.Role) (types.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return types.User{}, invalid("username", "is required")
	}
	if password == "" {
		return types.User{}, invalid("password", "is required")
	}
	if !role.Valid() {
		return types.User{}, invalid("role", "must be admin or member")
	}

	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return types.User{}, store.ErrConflict
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return types.User{}, err
	}

	return s.repo.Create(ctx, types.User{
		Username:     username,
		PasswordHash: string(hashed),
		Role:         role,
	})
}

// Authenticate checks a username/password pair.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (types.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return types.User{}, ErrInvalidCredentials
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Spend the same bcrypt work as a real check.
			_ = bcrypt.CompareHashAndPassword(s.dummyHash(), []byte(password))
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// dummyHash is compared against for unknown usernames. It is generated at
// the service's cost.
func (s *UserService) dummyHash() []byte {
	s.dummyOnce.Do(func() {
		s.dummy, _ = bcrypt.GenerateFromPassword([]byte("cafe-inventory-dummy"), s.cost)
	})
	return s.dummy
}
