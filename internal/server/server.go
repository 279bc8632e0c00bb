// Package server provides the TCP serving layer shared by the POP3 and
// SMTP frontends: listeners, buffered connections with deadlines, and
// connection limiting.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mop3d/mop3d/internal/config"
	"github.com/mop3d/mop3d/internal/logging"
)

// Server coordinates the protocol listeners and shares a connection
// limit between them.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	limiter *ConnectionLimiter

	listeners []*Listener
	mu        sync.Mutex
}

// Config holds configuration for creating a new Server.
type Config struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(sc Config) (*Server, error) {
	logger := sc.Logger
	if logger == nil {
		logger = logging.NewLogger(sc.Cfg.LogLevel)
	}

	s := &Server{
		cfg:     sc.Cfg,
		logger:  logger,
		limiter: NewConnectionLimiter(sc.Cfg.Limits.MaxConnections),
	}

	return s, nil
}

// AddListener registers a listener for one protocol on one address.
// Must be called before Run.
func (s *Server) AddListener(protocol, address string, handler ConnectionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listeners = append(s.listeners, NewListener(ListenerConfig{
		Address:        address,
		Protocol:       protocol,
		CommandTimeout: s.cfg.Timeouts.CommandTimeout(),
		IdleTimeout:    s.cfg.Timeouts.IdleTimeout(),
		Limiter:        s.limiter,
		Logger:         s.logger,
		Handler:        handler,
	}))
}

// Run starts all registered listeners and blocks until the context is
// cancelled or a listener fails to bind. All listeners run in their own
// goroutines.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	listeners := s.listeners
	s.mu.Unlock()

	if len(listeners) == 0 {
		return errors.New("no listeners registered")
	}

	s.logger.Info("starting server",
		slog.String("hostname", s.cfg.Hostname),
		slog.Int("listener_count", len(listeners)),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errChan := make(chan error, len(listeners))

	for _, l := range listeners {
		wg.Add(1)
		go func(listener *Listener) {
			defer wg.Done()
			if err := listener.Start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				errChan <- fmt.Errorf("listener %s: %w", listener.Address(), err)
				cancel()
			}
		}(l)
	}

	wg.Wait()

	s.logger.Info("server shutting down")

	close(errChan)
	var firstErr error
	for err := range errChan {
		if firstErr == nil {
			firstErr = err
		}
		s.logger.Error("listener error", slog.String("error", err.Error()))
	}

	s.logger.Info("server stopped")

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// Shutdown gracefully stops the server.
// It closes all listeners and waits for connections to complete.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.listeners {
		_ = l.Close()
	}
}

// Logger returns the server's logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}
