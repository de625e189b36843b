// Package token mints and parses the signed access/refresh token pairs.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrSigningFailure is returned when the signing backend rejects a token.
// Callers surface it as an opaque internal error.
var ErrSigningFailure = errors.New("token signing failure")

// ErrInvalidToken is returned when a presented token fails parsing or
// signature verification.
var ErrInvalidToken = errors.New("invalid token")

// Config holds the signing material for one token kind.
type Config struct {
	Secret    []byte
	ExpiresIn time.Duration
}

// Claims is the minimal payload signed into both token kinds: subject id
// and username. No roles and no session id; session validity is checked
// against the stored refresh-token hash at refresh time.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Pair bundles the two tokens returned by Issue. Never persisted.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Issuer mints token pairs. Access and refresh tokens use distinct secrets
// and expiry windows so compromise of one does not extend to the other.
type Issuer struct {
	access  Config
	refresh Config
}

// NewIssuer constructs an Issuer from the two per-kind configurations.
func NewIssuer(access, refresh Config) (*Issuer, error) {
	if len(access.Secret) == 0 || len(refresh.Secret) == 0 {
		return nil, errors.New("both token secrets are required")
	}
	if access.ExpiresIn <= 0 || refresh.ExpiresIn <= 0 {
		return nil, errors.New("both token expiries must be positive")
	}
	return &Issuer{access: access, refresh: refresh}, nil
}

// Issue signs an access/refresh pair over {id, username}. The two signings
// have no ordering dependency and run concurrently; both must succeed.
func (i *Issuer) Issue(id, username string) (Pair, error) {
	var pair Pair
	var g errgroup.Group

	g.Go(func() error {
		signed, err := sign(id, username, i.access)
		if err != nil {
			return err
		}
		pair.AccessToken = signed
		return nil
	})
	g.Go(func() error {
		signed, err := sign(id, username, i.refresh)
		if err != nil {
			return err
		}
		pair.RefreshToken = signed
		return nil
	})

	if err := g.Wait(); err != nil {
		return Pair{}, fmt.Errorf("%w: %v", ErrSigningFailure, err)
	}
	return pair, nil
}

// ParseAccess verifies an access token and returns its claims.
func (i *Issuer) ParseAccess(tokenString string) (Claims, error) {
	return parse(tokenString, i.access.Secret)
}

// ParseRefresh verifies a refresh token and returns its claims. Signature
// validity alone does not grant a refresh; the orchestrator still checks
// the token against the stored hash.
func (i *Issuer) ParseRefresh(tokenString string) (Claims, error) {
	return parse(tokenString, i.refresh.Secret)
}

func sign(id, username string, cfg Config) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			// Unique per issuance. HS256 signing is deterministic and the
			// timestamps have second granularity, so without a jti two
			// issuances in the same second would produce byte-identical
			// tokens and rotation could hand back the token it was meant
			// to replace.
			ID:        uuid.NewString(),
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.ExpiresIn)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
}

func parse(tokenString string, secret []byte) (Claims, error) {
	claims := Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
