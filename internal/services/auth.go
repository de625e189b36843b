package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/authgate/apiserver/internal/events"
	"github.com/authgate/apiserver/internal/store"
	"github.com/authgate/apiserver/internal/token"
	"github.com/authgate/apiserver/types"
)

// ErrInvalidCredentials is returned when a sign-in identity is unknown or
// the password does not match. The two cases are deliberately
// indistinguishable so callers cannot enumerate accounts.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrAccessDenied is returned when a refresh is attempted with no stored
// session or a mismatched refresh token.
var ErrAccessDenied = errors.New("access denied")

// UserRepository defines persistence operations for user accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByIdentity(ctx context.Context, term string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, id string, patch store.UserPatch) (types.User, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, offset, limit int) ([]types.User, int, error)
}

// Hasher hashes and verifies secrets.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(candidate, encoded string) (bool, error)
}

// TokenIssuer mints access/refresh token pairs.
type TokenIssuer interface {
	Issue(id, username string) (token.Pair, error)
}

// Registration is the validated input for SignUp.
type Registration struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

// AuthService orchestrates credential verification and the token
// lifecycle. The only session state it maintains is the refresh-token
// hash stored on each account.
type AuthService struct {
	repo   UserRepository
	hasher Hasher
	issuer TokenIssuer
	events events.Publisher
	logger *slog.Logger
}

// NewAuthService wires the orchestrator's collaborators together.
func NewAuthService(repo UserRepository, hasher Hasher, issuer TokenIssuer, publisher events.Publisher, logger *slog.Logger) *AuthService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		repo:   repo,
		hasher: hasher,
		issuer: issuer,
		events: publisher,
		logger: logger,
	}
}

// SignIn verifies credentials and starts a session. The identity term may
// be an id, email, or username.
func (s *AuthService) SignIn(ctx context.Context, identity, password string) (types.Profile, token.Pair, error) {
	user, err := s.repo.GetByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Profile{}, token.Pair{}, ErrInvalidCredentials
		}
		return types.Profile{}, token.Pair{}, fmt.Errorf("look up account: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.logger.Error("stored password hash is unreadable", "account_id", user.ID, "error", err)
		return types.Profile{}, token.Pair{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return types.Profile{}, token.Pair{}, ErrInvalidCredentials
	}

	pair, err := s.startSession(ctx, user)
	if err != nil {
		return types.Profile{}, token.Pair{}, err
	}

	s.emit(ctx, events.TypeSignedIn, user)
	return user.Profile(), pair, nil
}

// SignUp registers an account and starts its first session.
func (s *AuthService) SignUp(ctx context.Context, reg Registration) (types.Profile, token.Pair, error) {
	passwordHash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		s.logger.Error("hashing backend failed", "error", err)
		return types.Profile{}, token.Pair{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Email:        reg.Email,
		Username:     reg.Username,
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		PasswordHash: passwordHash,
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateIdentity) {
			return types.Profile{}, token.Pair{}, err
		}
		return types.Profile{}, token.Pair{}, fmt.Errorf("create account: %w", err)
	}

	pair, err := s.startSession(ctx, user)
	if err != nil {
		return types.Profile{}, token.Pair{}, err
	}

	s.emit(ctx, events.TypeSignedUp, user)
	return user.Profile(), pair, nil
}

// Refresh exchanges a valid refresh token for a new pair. The presented
// token must match the stored hash; rotation makes the old token unusable
// even while it is still time-valid.
func (s *AuthService) Refresh(ctx context.Context, accountID, refreshToken string) (token.Pair, error) {
	user, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return token.Pair{}, ErrAccessDenied
		}
		return token.Pair{}, fmt.Errorf("look up account: %w", err)
	}
	if user.RefreshTokenHash == "" {
		return token.Pair{}, ErrAccessDenied
	}

	ok, err := s.hasher.Verify(refreshToken, user.RefreshTokenHash)
	if err != nil {
		s.logger.Error("stored refresh-token hash is unreadable", "account_id", user.ID, "error", err)
		return token.Pair{}, fmt.Errorf("verify refresh token: %w", err)
	}
	if !ok {
		return token.Pair{}, ErrAccessDenied
	}

	pair, err := s.startSession(ctx, user)
	if err != nil {
		return token.Pair{}, err
	}

	s.emit(ctx, events.TypeRefreshed, user)
	return pair, nil
}

// Logout clears the stored session. Idempotent: logging out an account
// with no session, or an account that no longer exists, is not an error.
func (s *AuthService) Logout(ctx context.Context, accountID string) error {
	cleared := ""
	_, err := s.repo.Update(ctx, accountID, store.UserPatch{RefreshTokenHash: &cleared})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("clear session: %w", err)
	}

	s.emit(ctx, events.TypeRevoked, types.User{ID: accountID})
	return nil
}

// startSession issues a token pair and rotates the stored refresh-token
// hash. State mutation happens only after both signings succeeded, never
// speculatively before.
func (s *AuthService) startSession(ctx context.Context, user types.User) (token.Pair, error) {
	pair, err := s.issuer.Issue(user.ID, user.Username)
	if err != nil {
		s.logger.Error("token signing failed", "account_id", user.ID, "error", err)
		return token.Pair{}, fmt.Errorf("issue tokens: %w", err)
	}

	refreshHash, err := s.hasher.Hash(pair.RefreshToken)
	if err != nil {
		s.logger.Error("hashing backend failed", "account_id", user.ID, "error", err)
		return token.Pair{}, fmt.Errorf("hash refresh token: %w", err)
	}

	if _, err := s.repo.Update(ctx, user.ID, store.UserPatch{RefreshTokenHash: &refreshHash}); err != nil {
		return token.Pair{}, fmt.Errorf("persist session: %w", err)
	}
	return pair, nil
}

// emit publishes a lifecycle event. Best-effort: a broker failure never
// fails the auth operation.
func (s *AuthService) emit(ctx context.Context, eventType string, user types.User) {
	event := events.Event{
		Type:      eventType,
		AccountID: user.ID,
		Username:  user.Username,
		At:        time.Now(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("publish auth event", "type", eventType, "account_id", user.ID, "error", err)
	}
}
