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
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/taskmanager/apiserver/config"
	"github.com/taskmanager/apiserver/internal/auth"
	"github.com/taskmanager/apiserver/internal/handlers"
	"github.com/taskmanager/apiserver/internal/metrics"
	"github.com/taskmanager/apiserver/internal/mq"
	"github.com/taskmanager/apiserver/internal/services"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
	logger     *slog.Logger
}

// New wires the stores, auth core and routes described by cfg.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger := slog.Default()

	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tokens, err := NewTokenService(cfg.JWT)
	if err != nil {
		repos.close()
		return nil, err
	}

	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	roleService, err := services.NewRoleService(repos.roles, repos.users, logger)
	if err != nil {
		repos.close()
		return nil, err
	}
	if err := services.Seed(ctx, roleService, repos.users, hasher, seedOptions(cfg.Seed), logger); err != nil {
		repos.close()
		return nil, fmt.Errorf("seed catalog: %w", err)
	}

	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		repos.close()
		return nil, err
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewCollector(promRegistry)

	var events *services.AccountEvents
	if queue != nil {
		events = services.NewAccountEvents(queue, cfg.MQ.Channel, logger)
	}

	userService := services.NewUserService(repos.users)
	authService := services.NewAuthService(services.AuthDeps{
		Users:     repos.users,
		Roles:     roleService,
		Providers: NewIdentityRegistry(cfg.OAuth),
		Tokens:    tokens,
		Hasher:    hasher,
		Events:    events,
		Metrics:   recorder,
		Logger:    logger,
	})
	taskService := services.NewTaskService(repos.tasks)
	listService := services.NewListService(repos.lists)
	authenticator := handlers.NewAuthenticator(tokens, userService, recorder, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           3600,
		}),
	)
	var health handlers.HealthChecker
	if repos.db != nil {
		health = repos.db
	}
	router.Get("/healthz", handlers.Healthz(health))
	router.Method(http.MethodGet, "/metrics", metrics.Handler(promRegistry))

	router.Group(func(r chi.Router) {
		r.Use(authenticator.Authenticate)

		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, authService, logger)
		})
		r.Route("/oauth2", func(r chi.Router) {
			handlers.OAuthRouter(r, authService, handlers.OAuthConfig{
				FrontendRedirectURL: cfg.OAuth.FrontendRedirectURL,
				CookieSecure:        cfg.OAuth.CookieSecure,
			}, logger)
		})
		r.Route("/tasks", func(r chi.Router) {
			handlers.TaskRouter(r, taskService, logger)
		})
		r.Route("/lists", func(r chi.Router) {
			handlers.ListRouter(r, listService, logger)
		})
		r.Route("/roles", func(r chi.Router) {
			handlers.RoleRouter(r, roleService, userService, logger)
		})
		r.Route("/users", func(r chi.Router) {
			handlers.UserRouter(r, roleService, userService, logger)
		})
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

	logger.Info("server configured",
		"port", port,
		"store", cfg.StoreBackend,
		"mq", cfg.MQ.Backend,
		"token_ttl", tokens.TTL().String(),
	)

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         repos.db,
		queue:      queue,
		logger:     logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases the store and broker.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}

func seedOptions(cfg config.SeedConfig) services.SeedOptions {
	return services.SeedOptions{
		AdminUsername: cfg.AdminUsername,
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
	}
}
