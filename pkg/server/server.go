// Package server runs an http.Server under a lifecycle coordinator.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/JaimeStill/safestack/pkg/lifecycle"
)

// Options configures the listener. Zero timeouts disable the limit.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server serves a handler until the coordinator shuts down.
type Server struct {
	http            *http.Server
	logger          *slog.Logger
	shutdownTimeout time.Duration
	ready           chan struct{}
	name            string
	addr            string
}

// New creates a Server. The logger is scoped with the given name.
func New(name string, opts Options, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:              opts.Addr,
			Handler:           handler,
			ReadTimeout:       opts.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      opts.WriteTimeout,
		},
		logger:          logger.With("system", name),
		shutdownTimeout: opts.ShutdownTimeout,
		ready:           make(chan struct{}),
		name:            name,
	}
}

// Start binds the listener, serves in the background, and registers a
// graceful shutdown hook. The server reports ready once it is listening.
func (s *Server) Start(lc *lifecycle.Coordinator) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	s.addr = ln.Addr().String()
	lc.Register(s.name, s)

	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		close(s.ready)
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", "error", err)
		}
	}()

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		s.logger.Info("shutting down server")

		ctx := context.Background()
		if s.shutdownTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.shutdownTimeout)
			defer cancel()
		}

		if err := s.http.Shutdown(ctx); err != nil {
			s.logger.Error("server shutdown error", "error", err)
		} else {
			s.logger.Info("server shutdown complete")
		}
	})

	return nil
}

// Addr returns the bound address. Empty before Start.
func (s *Server) Addr() string {
	return s.addr
}

// Ready reports whether the listener is serving.
func (s *Server) Ready() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}
