package services

import (
	"context"
	"fmt"

	"github.com/authgate/apiserver/internal/store"
	"github.com/authgate/apiserver/types"
)

// List page-size bounds, shared with the HTTP pagination layer so the
// service and handlers clamp identically.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// UserUpdate is the validated input for Update. Nil fields are left
// untouched. Password, when set, is re-hashed before it reaches the store.
type UserUpdate struct {
	Email     *string  `json:"email"`
	Username  *string  `json:"username"`
	FirstName *string  `json:"first_name"`
	LastName  *string  `json:"last_name"`
	Password  *string  `json:"password"`
	IsActive  *bool    `json:"is_active"`
	Roles     []string `json:"roles"`
}

// UserService encapsulates account management use-cases. It only ever
// hands out Profiles; the stored record with its hashes stays behind the
// repository boundary.
type UserService struct {
	repo   UserRepository
	hasher Hasher
}

func NewUserService(repo UserRepository, hasher Hasher) *UserService {
	return &UserService{repo: repo, hasher: hasher}
}

func (s *UserService) Get(ctx context.Context, id string) (types.Profile, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.Profile{}, err
	}
	return user.Profile(), nil
}

// GetByIdentity resolves an id, email, or username to a profile.
func (s *UserService) GetByIdentity(ctx context.Context, term string) (types.Profile, error) {
	user, err := s.repo.GetByIdentity(ctx, term)
	if err != nil {
		return types.Profile{}, err
	}
	return user.Profile(), nil
}

func (s *UserService) List(ctx context.Context, offset, limit int) ([]types.Profile, int, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	users, total, err := s.repo.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	profiles := make([]types.Profile, 0, len(users))
	for _, user := range users {
		profiles = append(profiles, user.Profile())
	}
	return profiles, total, nil
}

func (s *UserService) Update(ctx context.Context, id string, update UserUpdate) (types.Profile, error) {
	patch := store.UserPatch{
		Email:     update.Email,
		Username:  update.Username,
		FirstName: update.FirstName,
		LastName:  update.LastName,
		IsActive:  update.IsActive,
		Roles:     update.Roles,
	}

	if update.Password != nil {
		hashed, err := s.hasher.Hash(*update.Password)
		if err != nil {
			return types.Profile{}, fmt.Errorf("hash password: %w", err)
		}
		patch.PasswordHash = &hashed
	}

	user, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return types.Profile{}, err
	}
	return user.Profile(), nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
