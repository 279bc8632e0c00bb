package server

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/mop3d/mop3d/internal/logging"
)

// ConnectionHandler handles a single accepted connection. The handler
// owns the connection for its lifetime; the listener closes it when the
// handler returns.
type ConnectionHandler func(ctx context.Context, conn *Connection)

// ListenerConfig holds configuration for creating a new Listener.
type ListenerConfig struct {
	// Address is the host:port to listen on.
	Address string

	// Protocol names the protocol served, used for logging.
	Protocol string

	CommandTimeout time.Duration
	IdleTimeout    time.Duration

	// Limiter bounds concurrent connections across listeners. Optional.
	Limiter *ConnectionLimiter

	Logger  *slog.Logger
	Handler ConnectionHandler
}

// Listener accepts connections on one address and dispatches each to the
// handler in its own goroutine.
type Listener struct {
	cfg ListenerConfig

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// NewListener creates a new Listener with the given configuration.
func NewListener(cfg ListenerConfig) *Listener {
	return &Listener{cfg: cfg}
}

// Address returns the configured listen address.
func (l *Listener) Address() string {
	return l.cfg.Address
}

// Start binds the listen address and runs the accept loop until the
// context is canceled or the listener is closed.
func (l *Listener) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.cfg.Address)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.listener = ln
	l.mu.Unlock()

	l.cfg.Logger.Info("listener started",
		slog.String("protocol", l.cfg.Protocol),
		slog.String("address", ln.Addr().String()),
	)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				l.wg.Wait()
				return ctx.Err()
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			l.wg.Wait()
			return err
		}

		if l.cfg.Limiter != nil && !l.cfg.Limiter.TryAcquire() {
			l.cfg.Logger.Warn("connection limit reached, rejecting",
				slog.String("protocol", l.cfg.Protocol),
				slog.String("remote", conn.RemoteAddr().String()),
			)
			_ = conn.Close()
			continue
		}

		l.wg.Add(1)
		go l.serve(ctx, conn)
	}
}

func (l *Listener) serve(ctx context.Context, netConn net.Conn) {
	defer l.wg.Done()
	if l.cfg.Limiter != nil {
		defer l.cfg.Limiter.Release()
	}

	conn := NewConnection(netConn, l.cfg.CommandTimeout, l.cfg.IdleTimeout)
	defer func() {
		_ = conn.Close()
	}()

	logger := l.cfg.Logger.With(
		slog.String("protocol", l.cfg.Protocol),
		slog.String("remote", netConn.RemoteAddr().String()),
	)
	logger.Debug("connection accepted")

	connCtx := logging.WithContext(ctx, logger)
	l.cfg.Handler(connCtx, conn)

	logger.Debug("connection closed")
}

// Close stops accepting and waits for in-flight connections to finish.
func (l *Listener) Close() error {
	l.mu.Lock()
	ln := l.listener
	l.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	l.wg.Wait()
	return err
}
