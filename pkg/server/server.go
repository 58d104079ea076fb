package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"helioshq/meridian/pkg/batch"
	"helioshq/meridian/pkg/config"
	"helioshq/meridian/pkg/routing"
	"helioshq/meridian/pkg/telemetry/health"
	"helioshq/meridian/pkg/telemetry/metrics"
	"helioshq/meridian/pkg/usage"
)

// streamPath is exempt from the request timeout; streams outlive any
// fixed budget.
const streamPath = "/v1/completions/stream"

// Deps are the gateway subsystems the server fronts. Router, Scheduler,
// Ledger, and Collector are required; a nil Checker gets a default one.
type Deps struct {
	Router    *routing.Router
	Scheduler *batch.Scheduler
	Ledger    *usage.Ledger
	Collector *metrics.Collector
	Checker   *health.Checker
}

// Server is the HTTP front of the gateway.
type Server struct {
	config    config.ServerConfig
	logger    *slog.Logger
	router    *routing.Router
	scheduler *batch.Scheduler
	ledger    *usage.Ledger
	collector *metrics.Collector
	checker   *health.Checker

	httpServer   *http.Server
	shutdownChan chan struct{}
	stopOnce     sync.Once
	shutdownOnce sync.Once

	mu        sync.RWMutex
	isRunning bool
}

// New creates a server over the given subsystems.
func New(cfg config.ServerConfig, deps Deps) (*Server, error) {
	if deps.Router == nil {
		return nil, fmt.Errorf("router is required")
	}
	if deps.Scheduler == nil {
		return nil, fmt.Errorf("batch scheduler is required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("usage ledger is required")
	}
	if deps.Collector == nil {
		return nil, fmt.Errorf("metrics collector is required")
	}
	if deps.Checker == nil {
		deps.Checker = health.New(0)
	}
	return &Server{
		config:       cfg,
		logger:       slog.Default().With("component", "server"),
		router:       deps.Router,
		scheduler:    deps.Scheduler,
		ledger:       deps.Ledger,
		collector:    deps.Collector,
		checker:      deps.Checker,
		shutdownChan: make(chan struct{}),
	}, nil
}

// Handler returns the fully assembled HTTP handler, routes plus
// middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/completions", s.handleCompletions)
	mux.HandleFunc(streamPath, s.handleCompletionStream)
	mux.HandleFunc("/v1/embeddings", s.handleEmbeddings)
	mux.HandleFunc("/v1/batch", s.handleBatch)
	mux.HandleFunc("/v1/stats", s.handleStats)
	mux.Handle("/health", s.checker.LivenessHandler())
	mux.Handle("/ready", s.checker.ReadinessHandler())
	mux.Handle("/metrics", s.collector.Handler())

	var handler http.Handler = mux
	if s.config.RequestTimeout > 0 {
		handler = timeoutMiddleware(s.config.RequestTimeout, streamPath)(handler)
	}
	handler = corsMiddleware(s.config.CORS)(handler)
	handler = loggingMiddleware(s.logger)(handler)
	handler = requestIDMiddleware(handler)
	handler = recoveryMiddleware(s.logger)(handler)
	return handler
}

// Start runs the server until the context is cancelled, a termination
// signal arrives, or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:           s.config.ListenAddress,
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received signal, shutting down", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.logger.Error("server error", "error", err)
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	case <-s.shutdownChan:
		return s.Shutdown(context.Background())
	}
}

// Stop asks a blocked Start to shut down. Safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.shutdownChan) })
}

// Shutdown drains in-flight requests within the configured shutdown
// timeout. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("server stopped")
	})
	return shutdownErr
}

// IsRunning reports whether the server is accepting requests.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
