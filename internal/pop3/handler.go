// Package pop3 implements the POP3 frontend (RFC 1939 with CAPA and
// UIDL). Authentication runs the upstream login pipeline; the
// transaction state serves the rendered timeline snapshot.
package pop3

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/mop3d/mop3d/internal/logging"
	"github.com/mop3d/mop3d/internal/metrics"
	"github.com/mop3d/mop3d/internal/server"
)

// connLogger adapts a slog.Logger to the ConnectionLogger interface.
type connLogger struct {
	logger *slog.Logger
}

func (c *connLogger) Logger() *slog.Logger {
	return c.logger
}

// Handler creates a POP3 protocol handler with the given configuration.
func Handler(opener MaildropOpener, tracker RecentTracker, collector metrics.Collector) server.ConnectionHandler {
	// Register authentication commands with the maildrop opener
	RegisterAuthCommands(opener)
	// Register transaction commands with the recent-id tracker
	RegisterTransactionCommands(tracker)

	return func(ctx context.Context, conn *server.Connection) {
		handleConnection(ctx, conn, collector)
	}
}

// handleConnection manages a single POP3 connection.
func handleConnection(ctx context.Context, conn *server.Connection, collector metrics.Collector) {
	logger := logging.FromContext(ctx)

	// Record connection opened
	collector.ConnectionOpened("pop3")
	defer collector.ConnectionClosed("pop3")

	// Create session
	sess := NewSession()

	logger.Info("starting POP3 session",
		"state", sess.State().String(),
	)

	// Send greeting
	if _, err := conn.Writer().WriteString("+OK MOP3 ready\r\n"); err != nil {
		logger.Error("failed to send greeting", "error", err.Error())
		return
	}
	if err := conn.Flush(); err != nil {
		logger.Error("failed to flush greeting", "error", err.Error())
		return
	}

	cl := &connLogger{logger: logger}

	// Command loop
	for {
		// Check if context is cancelled
		select {
		case <-ctx.Done():
			logger.Info("context cancelled, closing connection")
			return
		default:
		}

		// Check if connection is closed
		if conn.IsClosed() {
			logger.Info("connection closed")
			return
		}

		// Set command timeout
		if err := conn.SetCommandTimeout(); err != nil {
			logger.Error("failed to set command timeout", "error", err.Error())
			return
		}

		// Read command line
		line, err := conn.Reader().ReadString('\n')
		if err != nil {
			if err == io.EOF {
				logger.Info("client closed connection")
				return
			}
			logger.Error("error reading command", "error", err.Error())
			return
		}

		// Reset idle timeout after successful read
		if err := conn.ResetIdleTimeout(); err != nil {
			logger.Error("failed to reset idle timeout", "error", err.Error())
			return
		}

		// Trim whitespace
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		logger.Debug("received command", "line", line)

		// Parse command
		cmdName, args, err := ParseCommand(line)
		if err != nil {
			sendError(conn, "Invalid command")
			continue
		}

		// Look up command
		cmd, ok := GetCommand(cmdName)
		if !ok {
			sendError(conn, "Unknown command")
			continue
		}

		logger.Debug("executing command",
			"command", cmdName,
			"args_count", len(args),
		)

		// Record command execution
		collector.CommandProcessed("pop3", cmdName)

		// Execute command
		resp, err := cmd.Execute(ctx, sess, cl, args)
		if err != nil {
			logger.Error("command execution error",
				"command", cmdName,
				"error", err.Error(),
			)
			sendError(conn, "Internal server error")
			continue
		}

		// Send response
		if _, err := conn.Writer().WriteString(resp.String()); err != nil {
			logger.Error("failed to send response", "error", err.Error())
			return
		}
		if err := conn.Flush(); err != nil {
			logger.Error("failed to flush response", "error", err.Error())
			return
		}

		logger.Debug("sent response",
			"ok", resp.OK,
			"message", resp.Message,
		)

		// Record auth metrics for PASS
		if cmdName == "PASS" {
			collector.AuthAttempt(extractDomain(sess.Username()), resp.OK)
			// A failed login is fatal to the session; the upstream
			// rejected the credential or the fetch failed.
			if !resp.OK {
				logger.Info("login failed, closing connection")
				return
			}
		}

		if cmdName == "RETR" && resp.OK {
			collector.MessageRetrieved(extractDomain(sess.Username()), int64(len(resp.Raw)))
		}

		if cmdName == "QUIT" {
			logger.Info("QUIT command received, closing connection")
			return
		}
	}
}

// sendError sends an error response to the client.
func sendError(conn *server.Connection, message string) {
	resp := Response{OK: false, Message: message}
	if _, err := conn.Writer().WriteString(resp.String()); err != nil {
		return
	}
	_ = conn.Flush()
}

// extractDomain extracts the domain part from a username.
// If the username contains @, returns the part after @.
// Otherwise returns the username itself, which is then a bare domain.
func extractDomain(username string) string {
	if idx := strings.LastIndex(username, "@"); idx >= 0 {
		return username[idx+1:]
	}
	return username
}
