package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"
)

type Server struct {
	srv *http.Server
	log *slog.Logger
}

type Option func(s *Server)

func WithServerAddr(addr string) Option {
	return func(s *Server) {
		s.srv.Addr = addr
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.log = logger
	}
}

func NewServer(handler http.Handler, opts ...Option) *Server {
	srv := &http.Server{
		Addr:              "localhost:8080",
		Handler:           handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	s := &Server{
		srv: srv,
		log: slog.New(slog.NewJSONHandler(os.Stderr, nil)),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start blocks serving requests until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info(fmt.Sprintf("Starting server on %s", s.srv.Addr))

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe: %w", err)
	}

	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}

	return nil
}
