package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/galleykit/galley/internal/api"
	"github.com/galleykit/galley/internal/config"
	"github.com/galleykit/galley/internal/defra"
	"github.com/galleykit/galley/internal/extraction"
	"github.com/galleykit/galley/internal/home"
	"github.com/galleykit/galley/internal/scan"
	"github.com/galleykit/galley/internal/schema"
	"github.com/galleykit/galley/internal/server/endpoints"
	"github.com/galleykit/galley/internal/store"
	"github.com/galleykit/galley/internal/svcctx"
)

// Server is the main Galley HTTP server.
// It manages the DefraDB container lifecycle - starting it on server start
// and stopping it on server shutdown.
type Server struct {
	httpServer   *http.Server
	defraManager *defra.DockerManager
	defraClient  *defra.Client
	store        *store.Store
	scanManager  *scan.Manager
	extractors   *extraction.Registry
	configMgr    *config.Manager
	home         *home.Dir
	logger       *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8090)
	Port string
	// Home is the galley home directory for config, images, and DefraDB data
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Home == nil {
		return nil, errors.New("home directory is required")
	}
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}

	appCfg := cfg.ConfigManager.Get()
	if cfg.Port == "" {
		cfg.Port = appCfg.Server.Port
	}

	defraManager, err := defra.NewDockerManager(defra.DockerConfig{
		ContainerName: appCfg.Defra.ContainerName,
		Image:         appCfg.Defra.Image,
		HostPort:      appCfg.Defra.Port,
		DataPath:      cfg.Home.DataPath(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create defra manager: %w", err)
	}

	// Extraction providers come from config and follow it on hot reload.
	extractors := extraction.NewRegistry()
	extractors.SetLogger(cfg.Logger)
	extractors.Reload(appCfg.ToExtractionRegistryConfig())
	cfg.ConfigManager.OnChange(func(c *config.Config) {
		extractors.Reload(c.ToExtractionRegistryConfig())
		cfg.Logger.Info("extraction registry reloaded from config")
	})

	s := &Server{
		defraManager: defraManager,
		extractors:   extractors,
		configMgr:    cfg.ConfigManager,
		home:         cfg.Home,
		logger:       cfg.Logger,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{DefraManager: defraManager}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:    net.JoinHostPort(cfg.Host, cfg.Port),
		Handler: s.withServices(mux),
		// Page captures hold the request open while extraction runs, so
		// the write timeout must exceed the extraction timeout.
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start starts the server and DefraDB.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	// Start DefraDB
	s.logger.Info("starting DefraDB")
	if err := s.defraManager.Start(ctx); err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to start DefraDB: %w", err)
	}

	// Create client after DefraDB is up
	s.defraClient = defra.NewClient(s.defraManager.URL())

	// Verify DefraDB is healthy
	if err := s.defraClient.HealthCheck(ctx); err != nil {
		_ = s.shutdown() // Clean up DefraDB on failure
		return fmt.Errorf("DefraDB health check failed: %w", err)
	}
	s.logger.Info("DefraDB is ready", "url", s.defraManager.URL())

	// Initialize schemas
	s.logger.Info("initializing schemas")
	if err := schema.Initialize(ctx, s.defraClient, s.logger); err != nil {
		_ = s.shutdown()
		return fmt.Errorf("schema initialization failed: %w", err)
	}

	// Create the persistence store and scan workflow manager
	s.store = store.New(s.defraClient, s.home, s.logger)
	s.scanManager = scan.NewManager(scan.ManagerConfig{
		Gateway:        s.store,
		Extractor:      s.extractors,
		Logger:         s.logger,
		ExtractTimeout: s.extractTimeout(),
	})

	// Create services struct for context enrichment
	s.services = &svcctx.Services{
		DefraClient:   s.defraClient,
		Store:         s.store,
		ScanManager:   s.scanManager,
		Extractors:    s.extractors,
		ConfigManager: s.configMgr,
		Logger:        s.logger,
		Home:          s.home,
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown() // Clean up DefraDB on HTTP error
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// extractTimeout reads the configured extraction bound.
func (s *Server) extractTimeout() time.Duration {
	secs := s.configMgr.Get().Defaults.ExtractTimeoutSeconds
	if secs <= 0 {
		return scan.DefaultExtractTimeout
	}
	return time.Duration(secs) * time.Second
}

// shutdown performs graceful shutdown of both HTTP server and DefraDB.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Close live scan workflows so unfinished sessions are cancelled,
	// not left dangling as active.
	if s.scanManager != nil {
		s.scanManager.Shutdown(shutdownCtx)
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	// Stop DefraDB
	s.logger.Info("stopping DefraDB")
	if err := s.defraManager.Stop(shutdownCtx); err != nil {
		s.logger.Error("DefraDB stop error", "error", err)
	}

	// Close Docker client
	if err := s.defraManager.Close(); err != nil {
		s.logger.Error("DefraDB manager close error", "error", err)
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

// DefraClient returns the DefraDB client.
// Returns nil if the server hasn't started yet.
func (s *Server) DefraClient() *defra.Client {
	return s.defraClient
}

// ScanManager returns the scan workflow manager.
// Returns nil if the server hasn't started yet.
func (s *Server) ScanManager() *scan.Manager {
	return s.scanManager
}

// Extractors returns the extraction provider registry.
func (s *Server) Extractors() *extraction.Registry {
	return s.extractors
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
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
// Returns 503 Service Unavailable until DefraDB and the scan manager are ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.defraClient == nil || s.scanManager == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
