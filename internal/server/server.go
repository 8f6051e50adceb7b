// Package server owns the HTTP listener lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/matiasleandrokruk/codeassist/internal/infra/logging"
)

// Config holds HTTP server configuration.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns default HTTP server configuration. WriteTimeout is
// above the default upstream LLM timeout so slow analyses still get a reply.
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         5000,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server wraps the HTTP server and the resources closed with it.
type Server struct {
	config  Config
	http    *http.Server
	logger  *slog.Logger
	closers []io.Closer
}

// NewServer creates a server for handler. closers are closed, in order, after
// the listener has drained.
func NewServer(handler http.Handler, config Config, logger *slog.Logger, closers ...io.Closer) *Server {
	logger = logging.OrDiscard(logger)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	return &Server{
		config:  config,
		http:    httpServer,
		logger:  logger,
		closers: closers,
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.http.Addr }

// Start serves until Shutdown is called or the listener fails. A clean
// shutdown returns nil.
func (s *Server) Start(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting HTTP server", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains the HTTP server, then closes the attached resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close resources: %w", err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}
