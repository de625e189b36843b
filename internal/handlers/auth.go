package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/authgate/apiserver/internal/services"
	"github.com/authgate/apiserver/internal/store"
	"github.com/authgate/apiserver/internal/token"
	"github.com/authgate/apiserver/types"
)

// TokenParser verifies presented tokens. Satisfied by *token.Issuer.
type TokenParser interface {
	ParseAccess(tokenString string) (token.Claims, error)
	ParseRefresh(tokenString string) (token.Claims, error)
}

// AuthHandler provides the credential and session endpoints.
type AuthHandler struct {
	authService *services.AuthService
	userService *services.UserService
	parser      TokenParser
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(authService *services.AuthService, userService *services.UserService, parser TokenParser) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
		parser:      parser,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, authService *services.AuthService, userService *services.UserService, parser TokenParser) {
	handler := NewAuthHandler(authService, userService, parser)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/refresh", handler.Refresh)
	r.With(handler.RequireAuth).Post("/logout", handler.Logout)
	r.With(handler.RequireAuth).Get("/me", handler.Me)
}

// RequireAuth enforces access-token authentication and injects the subject
// into the request context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return requireAuth(h.parser)(next)
}

// RequireAuth constructs auth middleware for other routers.
func RequireAuth(parser TokenParser) func(http.Handler) http.Handler {
	return requireAuth(parser)
}

func requireAuth(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			claims, err := parser.ParseAccess(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), contextSubjectKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Register creates an account and returns its first token pair.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.Registration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	profile, pair, err := h.authService.SignUp(r.Context(), req)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateIdentity) {
			writeError(w, http.StatusBadRequest, "email or username already taken")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{User: profile, Tokens: pair})
}

// Login verifies credentials and returns a fresh token pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Identity = strings.TrimSpace(req.Identity)
	if req.Identity == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	profile, pair, err := h.authService.SignIn(r.Context(), req.Identity, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{User: profile, Tokens: pair})
}

// Refresh exchanges a refresh token for a new pair. The token's signature
// identifies the account; the orchestrator cross-checks it against the
// stored hash before rotating.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, http.StatusBadRequest, "missing refresh token")
		return
	}

	claims, err := h.parser.ParseRefresh(req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}

	pair, err := h.authService.Refresh(r.Context(), claims.Subject, req.RefreshToken)
	if err != nil {
		if errors.Is(err, services.ErrAccessDenied) {
			writeError(w, http.StatusForbidden, "access denied")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to refresh session")
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// Logout clears the caller's stored session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	subject, err := subjectFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.authService.Logout(r.Context(), subject); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to log out")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me returns the current authenticated user's profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	subject, err := subjectFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	profile, err := h.userService.Get(r.Context(), subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

type LoginRequest struct {
	// Identity may be an id, email, or username.
	Identity string `json:"identity"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type AuthResponse struct {
	User   types.Profile `json:"user"`
	Tokens token.Pair    `json:"tokens"`
}
