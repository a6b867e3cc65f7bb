// Package server wires the store, provider registry, and records service
// into an HTTP server with graceful lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/carefile/carefile/internal/api"
	"github.com/carefile/carefile/internal/config"
	"github.com/carefile/carefile/internal/home"
	"github.com/carefile/carefile/internal/providers"
	"github.com/carefile/carefile/internal/records"
	"github.com/carefile/carefile/internal/server/endpoints"
	"github.com/carefile/carefile/internal/store"
	"github.com/carefile/carefile/internal/svcctx"
)

// Server is the carefile HTTP server. It owns the SQLite store, seeds the
// required departments on start, and closes everything on shutdown.
type Server struct {
	httpServer *http.Server
	st         *store.Store
	registry   *providers.Registry
	recordsSvc *records.Service
	configMgr  *config.Manager
	homeDir    *home.Dir
	logger     *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default from config manager).
	Host string
	// Port is the port to listen on (default from config manager).
	Port int
	// Home is the application home directory.
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support.
	ConfigManager *config.Manager
	// Logger is the structured logger to use.
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}
	if cfg.Home == nil {
		return nil, errors.New("home directory is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	appCfg := cfg.ConfigManager.Get()
	if cfg.Host == "" {
		cfg.Host = appCfg.Server.Host
	}
	if cfg.Port == 0 {
		cfg.Port = appCfg.Server.Port
	}

	registry := providers.NewRegistry()
	registry.SetLogger(cfg.Logger)
	registry.Reload(appCfg.ToRegistryConfig())

	cfg.ConfigManager.OnChange(func(c *config.Config) {
		registry.Reload(c.ToRegistryConfig())
		cfg.Logger.Info("provider registry reloaded from config")
	})

	s := &Server{
		registry:  registry,
		configMgr: cfg.ConfigManager,
		homeDir:   cfg.Home,
		logger:    cfg.Logger,
	}

	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // extraction calls run inside requests
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start opens the store and serves HTTP. It blocks until the context is
// cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.homeDir.EnsureExists(); err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to prepare home directory: %w", err)
	}

	st, err := store.Open(s.homeDir.DBPath(), s.logger)
	if err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to open store: %w", err)
	}
	s.st = st

	appCfg := s.configMgr.Get()
	created, err := st.SeedDepartments(ctx, appCfg.Departments)
	if err != nil {
		_ = s.shutdown()
		return fmt.Errorf("failed to seed departments: %w", err)
	}
	if len(created) > 0 {
		s.logger.Info("seeded departments", "created", created)
	}

	s.recordsSvc = records.New(records.Config{
		Store:              st,
		Providers:          s.registry,
		UploadsDir:         s.homeDir.UploadsDir(),
		EmptyCellThreshold: appCfg.Extraction.EmptyCellThreshold,
		MaxOutputTokens:    appCfg.Extraction.MaxOutputTokens,
		Temperature:        appCfg.Extraction.Temperature,
		Logger:             s.logger,
	})

	s.services = &svcctx.Services{
		Store:     st,
		Records:   s.recordsSvc,
		Registry:  s.registry,
		ConfigMgr: s.configMgr,
		Logger:    s.logger,
		Home:      s.homeDir,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server and the store.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.st != nil {
		if err := s.st.Close(); err != nil {
			s.logger.Error("store close error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// Store returns the record store. Nil before Start.
func (s *Server) Store() *store.Store {
	return s.st
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if the store or records service are not
// ready yet.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.st == nil || s.recordsSvc == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
