// Package server is the composition root: it builds every dependency from
// config.Config, mounts the routes and runs the HTTP server until a signal
// arrives.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	amqp "github.com/rabbitmq/amqp091-go"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/HarveyThePooka404/jokes/internal/auth"
	"github.com/HarveyThePooka404/jokes/internal/config"
	"github.com/HarveyThePooka404/jokes/internal/events"
	"github.com/HarveyThePooka404/jokes/internal/handler"
	"github.com/HarveyThePooka404/jokes/internal/metrics"
	"github.com/HarveyThePooka404/jokes/internal/middleware"
	"github.com/HarveyThePooka404/jokes/internal/platform/rabbitmq"
	"github.com/HarveyThePooka404/jokes/internal/platform/redis"
	"github.com/HarveyThePooka404/jokes/internal/repository/orm"
	"github.com/HarveyThePooka404/jokes/internal/service"
)

// Server owns the router and every connection it opened. Close releases
// them; Start does so on its way out.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	store       *orm.Store
	redis       *goredis.Client
	amqp        *amqp.Connection
	authLimiter *middleware.RateLimiter
}

// New opens the database, the optional Redis and RabbitMQ connections and
// wires services, handlers and routes. Anything opened before a failure is
// closed again.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Server, err error) {
	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		metrics: metrics.New(),
	}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	s.store, err = orm.New(ctx, orm.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		Debug:           cfg.Log.Level == "debug",
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	var revoker auth.Revoker = auth.NewMemoryRevoker()
	if cfg.Redis.Addr != "" {
		s.redis, err = redis.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		revoker = auth.NewRedisRevoker(s.redis)
		logger.Info("token revocation backed by redis", slog.String("addr", cfg.Redis.Addr))
	}

	var publisher events.Publisher = events.NewLogPublisher(logger)
	if cfg.RabbitMQ.URL != "" {
		s.amqp, err = rabbitmq.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			return nil, fmt.Errorf("connecting to rabbitmq: %w", err)
		}
		publisher = rabbitmq.NewEventPublisher(s.amqp, cfg.RabbitMQ.Queue)
		logger.Info("activity events published to rabbitmq", slog.String("queue", cfg.RabbitMQ.Queue))
	}

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}
	sessions := auth.NewSessions(tokens, revoker, cfg.Auth.SecureCookie)

	var github *auth.GitHubProvider
	if cfg.GitHubEnabled() {
		github = auth.NewGitHubProvider(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.CallbackURL)
	}

	s.authLimiter = middleware.NewRateLimiter(
		rate.Limit(cfg.Server.AuthRateLimit), cfg.Server.AuthRateBurst, 10*time.Minute)

	deps := routeDeps{
		jokes:    service.NewJokeService(s.store, publisher, s.metrics, logger),
		comments: service.NewCommentService(s.store, s.store, publisher, s.metrics, logger),
		likes:    service.NewLikeService(s.store, s.store, publisher, s.metrics, logger),
		users:    service.NewUserService(s.store, tokens, auth.NewPasswordService(), publisher, s.metrics, logger),
		sessions: sessions,
		github:   github,
	}
	if err = s.setupRoutes(deps); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

type routeDeps struct {
	jokes    *service.JokeService
	comments *service.CommentService
	likes    *service.LikeService
	users    *service.UserService
	sessions *auth.Sessions
	github   *auth.GitHubProvider
}

// setupRoutes mounts:
//
//	GET  /healthz, /metrics
//	GET  /jokes, /jokes/{id}   POST /jokes/{id}     (HTML, optional session)
//	GET  /users                POST /users          (HTML)
//	POST /auth/register, /auth/login, /auth/logout
//	GET  /auth/github/login, /auth/github/callback
//	     /api/...                                    (JSON)
func (s *Server) setupRoutes(d routeDeps) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(s.metrics.Middleware)
	s.router.Use(chimiddleware.Recoverer)

	health := handler.NewHealthHandler(s.store, s.logger)
	s.router.Get("/healthz", health.HandleHealth)
	s.router.Handle("/metrics", s.metrics.Handler())

	pages, err := handler.NewPageHandler(d.jokes, d.comments, d.likes, d.users, s.logger)
	if err != nil {
		return err
	}
	authHandler := handler.NewAuthHandler(d.users, d.sessions, d.github, s.logger)
	jokeHandler := handler.NewJokeHandler(d.jokes, d.comments, d.likes, s.logger)
	userHandler := handler.NewUserHandler(d.users, s.logger)

	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/jokes", http.StatusFound)
	})

	s.router.Group(func(r chi.Router) {
		r.Use(d.sessions.OptionalAuth)

		r.Get("/jokes", pages.HandleRandomJoke)
		r.Get("/jokes/{id}", pages.HandleJoke)
		r.Post("/jokes/{id}", pages.HandleJokeAction)
		r.Get("/users", pages.HandleUsers)
		r.With(s.authLimiter.Middleware).Post("/users", pages.HandleRegisterUser)
	})

	s.router.Route("/auth", func(r chi.Router) {
		r.Use(d.sessions.OptionalAuth)

		r.With(s.authLimiter.Middleware).Post("/register", authHandler.HandleRegister)
		r.With(s.authLimiter.Middleware).Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(d.sessions.OptionalAuth)

		r.With(d.sessions.RequireAuth).Get("/me", authHandler.HandleMe)
		r.Get("/users", userHandler.HandleList)

		r.Route("/jokes", func(r chi.Router) {
			r.Get("/", jokeHandler.HandleList)
			r.With(d.sessions.RequireAuth).Post("/", jokeHandler.HandleCreate)
			r.Get("/random", jokeHandler.HandleRandom)
			r.Get("/{id}", jokeHandler.HandleGet)
			r.Delete("/{id}", jokeHandler.HandleDelete)
			r.Get("/{id}/comments", jokeHandler.HandleListComments)
			r.Post("/{id}/comments", jokeHandler.HandleAddComment)
			r.Post("/{id}/like", jokeHandler.HandleToggleLike)
		})
	})

	return nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests
// within the configured shutdown timeout and closes every connection.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         s.config.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("database", s.config.Database.Driver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}

// Close releases everything New opened. Safe on a partially built Server.
func (s *Server) Close() error {
	var errs []error
	if s.authLimiter != nil {
		s.authLimiter.Stop()
	}
	if s.amqp != nil {
		if err := s.amqp.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("closing rabbitmq: %w", err))
		}
		s.amqp = nil
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing redis: %w", err))
		}
		s.redis = nil
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
		s.store = nil
	}
	return errors.Join(errs...)
}
