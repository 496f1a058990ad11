package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cafe-inventory/server/config"
	"github.com/cafe-inventory/server/internal/db"
	"github.com/cafe-inventory/server/internal/handlers"
	"github.com/cafe-inventory/server/internal/logging"
	"github.com/cafe-inventory/server/internal/metrics"
	"github.com/cafe-inventory/server/internal/mq"
	"github.com/cafe-inventory/server/internal/services"
	"github.com/cafe-inventory/server/internal/store"
	"github.com/cafe-inventory/server/internal/views"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
	logger     *zap.Logger
}

// New connects to the database and the optional event backend and
// constructs a Server with the full route table.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open mq: %w", err)
	}
	if queue == nil {
		logger.Info("stock events disabled")
	}

	srv, err := build(cfg, logger, dbConn, queue)
	if err != nil {
		if queue != nil {
			_ = queue.Close()
		}
		_ = dbConn.Close()
		return nil, err
	}
	return srv, nil
}

func build(cfg config.Config, logger *zap.Logger, dbConn *sql.DB, queue *mq.MQ) (*Server, error) {
	if cfg.Session.Secret == "" {
		return nil, errors.New("SESSION_SECRET is required")
	}

	renderer, err := views.New(logger)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	registry := metrics.New()

	userRepo := store.NewUserRepository(dbConn)
	productRepo := store.NewProductRepository(dbConn)
	stockRepo := store.NewStockRepository(dbConn)
	logRepo := store.NewInventoryLogRepository(dbConn)

	opts := []services.InventoryOption{services.WithObserver(registry)}
	if queue != nil {
		opts = append(opts, services.WithEvents(queue))
	}

	userService := services.NewUserService(userRepo)
	productService := services.NewProductService(productRepo)
	inventoryService := services.NewInventoryService(dbConn, productRepo, stockRepo, logRepo, logger, opts...)

	sessions := handlers.NewSessions(cfg.Session.Secret, cfg.Session.TTL, cfg.Session.SecureCookie)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.Middleware(logger),
		registry.Middleware,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz(dbConn))
	router.Method(http.MethodGet, "/metrics", registry.Handler())
	router.Group(func(r chi.Router) {
		r.Use(sessions.Middleware)
		handlers.Routes(r,
			handlers.NewHomeHandler(renderer, logger),
			handlers.NewAuthHandler(userService, sessions, renderer, logger),
			handlers.NewProductHandler(productService, renderer, logger),
			handlers.NewInventoryHandler(inventoryService, productService, renderer, logger),
		)
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
		queue:      queue,
		logger:     logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones until ctx is
// done, then releases the database and event backend.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.queue != nil {
		if qerr := s.queue.Close(); qerr != nil {
			s.logger.Warn("close mq", zap.Error(qerr))
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
