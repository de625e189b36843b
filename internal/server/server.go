package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/authgate/apiserver/config"
	"github.com/authgate/apiserver/internal/db"
	"github.com/authgate/apiserver/internal/events"
	"github.com/authgate/apiserver/internal/handlers"
	"github.com/authgate/apiserver/internal/hash"
	"github.com/authgate/apiserver/internal/services"
	"github.com/authgate/apiserver/internal/store"
	"github.com/authgate/apiserver/internal/token"
)

// Server wraps the HTTP server and its collaborators.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	publisher  events.Publisher
}

// New constructs a Server with its full dependency graph wired.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	issuer, err := token.NewIssuer(
		token.Config{Secret: []byte(cfg.Auth.AccessSecret), ExpiresIn: cfg.Auth.AccessTTL},
		token.Config{Secret: []byte(cfg.Auth.RefreshSecret), ExpiresIn: cfg.Auth.RefreshTTL},
	)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("configure token issuer: %w", err)
	}

	publisher, err := newPublisher(ctx, cfg.Events)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("configure event publisher: %w", err)
	}

	hasher := hash.New()
	userRepo := store.NewUserRepository(dbConn)
	authService := services.NewAuthService(userRepo, hasher, issuer, publisher, slog.Default())
	userService := services.NewUserService(userRepo, hasher)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authService, userService, issuer)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userService, handlers.RequireAuth(issuer))
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		publisher:  publisher,
	}, nil
}

func newPublisher(ctx context.Context, cfg config.EventsConfig) (events.Publisher, error) {
	switch cfg.Broker {
	case "":
		return events.NopPublisher{}, nil
	case "rabbitmq":
		return events.NewRabbitMQPublisher(cfg.RabbitMQ, cfg.Topic)
	case "pubsub":
		return events.NewPubSubPublisher(ctx, cfg.PubSub, cfg.Topic)
	default:
		return nil, errors.New("unknown events broker: " + cfg.Broker)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.publisher != nil {
		_ = s.publisher.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
