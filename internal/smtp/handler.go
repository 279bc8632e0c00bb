// Package smtp implements the SMTP frontend, a permissive subset of
// RFC 5321 sufficient for a mail client to submit posts. There is no
// AUTH; the bearer token is configured on the command line.
package smtp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mop3d/mop3d/internal/logging"
	"github.com/mop3d/mop3d/internal/metrics"
	"github.com/mop3d/mop3d/internal/server"
)

// maxMessageSize is the SIZE advertised in the EHLO response.
const maxMessageSize = 5000000

// Handler creates an SMTP protocol handler with the given configuration.
func Handler(hostname string, submitter Submitter, collector metrics.Collector) server.ConnectionHandler {
	return func(ctx context.Context, conn *server.Connection) {
		handleConnection(ctx, conn, hostname, submitter, collector)
	}
}

// handleConnection manages a single SMTP connection.
func handleConnection(ctx context.Context, conn *server.Connection, hostname string, submitter Submitter, collector metrics.Collector) {
	logger := logging.FromContext(ctx)

	collector.ConnectionOpened("smtp")
	defer collector.ConnectionClosed("smtp")

	sess := NewSession()

	logger.Info("starting SMTP session")

	if !reply(conn, logger, fmt.Sprintf("220 %s MOP3 SMTP ready\r\n", hostname)) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("context cancelled, closing connection")
			return
		default:
		}

		if conn.IsClosed() {
			logger.Info("connection closed")
			return
		}

		if err := conn.SetCommandTimeout(); err != nil {
			logger.Error("failed to set command timeout", "error", err.Error())
			return
		}

		line, err := conn.Reader().ReadString('\n')
		if err != nil {
			if err == io.EOF {
				logger.Info("client closed connection")
				return
			}
			logger.Error("error reading command", "error", err.Error())
			return
		}

		if err := conn.ResetIdleTimeout(); err != nil {
			logger.Error("failed to reset idle timeout", "error", err.Error())
			return
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		verb, arg := splitCommand(line)
		logger.Debug("received command", "verb", verb)
		collector.CommandProcessed("smtp", verb)

		switch verb {
		case "HELO":
			if !reply(conn, logger, fmt.Sprintf("250 %s\r\n", hostname)) {
				return
			}

		case "EHLO":
			resp := fmt.Sprintf("250-%s\r\n250-SIZE %d\r\n250 OK\r\n", hostname, maxMessageSize)
			if !reply(conn, logger, resp) {
				return
			}

		case "MAIL":
			sess.SetReversePath(arg)
			logger.Debug("sender accepted", "reverse_path", sess.ReversePath())
			if !reply(conn, logger, "250 OK\r\n") {
				return
			}

		case "RCPT":
			// Recipients are parsed but unused; every message goes to
			// the configured account.
			if !reply(conn, logger, "250 OK\r\n") {
				return
			}

		case "DATA":
			if !sess.HaveSender() {
				if !reply(conn, logger, "503 Bad sequence of commands\r\n") {
					return
				}
				continue
			}
			if !handleData(ctx, conn, sess, submitter, logger) {
				return
			}

		case "NOOP":
			if !reply(conn, logger, "250 OK\r\n") {
				return
			}

		case "RSET":
			sess.Reset()
			if !reply(conn, logger, "250 OK\r\n") {
				return
			}

		case "QUIT":
			reply(conn, logger, "221 good bye\r\n")
			logger.Info("QUIT command received, closing connection")
			return

		default:
			if !reply(conn, logger, "500 unrecognized command\r\n") {
				return
			}
		}
	}
}

// handleData runs the DATA phase: accept the payload, submit it
// upstream, and acknowledge only once the submission outcome is known.
// Returns false when the connection is unusable.
func handleData(ctx context.Context, conn *server.Connection, sess *Session, submitter Submitter, logger *slog.Logger) bool {
	if !reply(conn, logger, "354 Send message content\r\n") {
		return false
	}

	raw, err := readData(conn)
	if err != nil {
		logger.Error("error reading message data", "error", err.Error())
		return false
	}

	logger.Debug("message received", "bytes", len(raw))

	// The acknowledgment is deferred until after submission so the
	// client learns whether the message actually reached the upstream.
	err = submitter.Submit(ctx, sess.ReversePath(), raw)
	sess.Reset()

	switch {
	case err == nil:
		return reply(conn, logger, "250 OK\r\n")
	case errors.Is(err, ErrBadMessage):
		logger.Error("rejecting unparseable message", "error", err.Error())
		return reply(conn, logger, "554 Transaction failed\r\n")
	default:
		logger.Error("upstream submission failed", "error", err.Error())
		return reply(conn, logger, "451 Requested action aborted: error in processing\r\n")
	}
}

// readData consumes the DATA payload up to the terminating dot line,
// removing the extra leading dot of byte-stuffed lines (RFC 5321
// section 4.5.2).
func readData(conn *server.Connection) ([]byte, error) {
	var buf []byte
	for {
		if err := conn.SetCommandTimeout(); err != nil {
			return nil, err
		}
		line, err := conn.Reader().ReadString('\n')
		if err != nil {
			return nil, err
		}
		if err := conn.ResetIdleTimeout(); err != nil {
			return nil, err
		}

		if line == ".\r\n" || line == ".\n" {
			return buf, nil
		}
		if strings.HasPrefix(line, ".") {
			line = line[1:]
		}
		buf = append(buf, line...)
	}
}

// splitCommand splits a command line into its verb and the remaining
// argument text. The verb comparison is case-insensitive.
func splitCommand(line string) (verb, arg string) {
	verb = line
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		verb = line[:i]
		arg = strings.TrimSpace(line[i+1:])
	}
	// MAIL FROM: and RCPT TO: may arrive without a space before the
	// colon; strip the parameter keyword down to the bare verb.
	if i := strings.IndexByte(verb, ':'); i >= 0 {
		verb = verb[:i]
	}
	if i := strings.IndexAny(verb, " \t"); i >= 0 {
		verb = verb[:i]
	}
	verb = strings.ToUpper(verb)
	if verb == "MAIL" || verb == "RCPT" {
		// Keep the full path text, FROM:<...> or TO:<...>, as the arg.
		arg = strings.TrimSpace(line[len("MAIL"):])
	}
	return verb, arg
}

// reply writes a response line and flushes it. Returns false when the
// write fails and the connection should be abandoned.
func reply(conn *server.Connection, logger *slog.Logger, resp string) bool {
	if _, err := conn.Writer().WriteString(resp); err != nil {
		logger.Error("failed to send response", "error", err.Error())
		return false
	}
	if err := conn.Flush(); err != nil {
		logger.Error("failed to flush response", "error", err.Error())
		return false
	}
	return true
}
