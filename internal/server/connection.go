package server

import (
	"bufio"
	"net"
	"sync/atomic"
	"time"
)

// Connection wraps a client connection with buffered I/O and deadline
// management. Handlers read commands through Reader and write replies
// through Writer followed by Flush.
type Connection struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer

	commandTimeout time.Duration
	idleTimeout    time.Duration

	closed atomic.Bool
}

// NewConnection wraps a net.Conn with the given timeouts.
func NewConnection(conn net.Conn, commandTimeout, idleTimeout time.Duration) *Connection {
	return &Connection{
		conn:           conn,
		reader:         bufio.NewReader(conn),
		writer:         bufio.NewWriter(conn),
		commandTimeout: commandTimeout,
		idleTimeout:    idleTimeout,
	}
}

// Reader returns the buffered reader for the connection.
func (c *Connection) Reader() *bufio.Reader {
	return c.reader
}

// Writer returns the buffered writer for the connection.
func (c *Connection) Writer() *bufio.Writer {
	return c.writer
}

// Flush writes any buffered output to the connection.
func (c *Connection) Flush() error {
	return c.writer.Flush()
}

// SetCommandTimeout sets the read deadline for reading the next command.
func (c *Connection) SetCommandTimeout() error {
	if c.commandTimeout <= 0 {
		return nil
	}
	return c.conn.SetReadDeadline(time.Now().Add(c.commandTimeout))
}

// ResetIdleTimeout extends the connection deadline after activity.
func (c *Connection) ResetIdleTimeout() error {
	if c.idleTimeout <= 0 {
		return nil
	}
	return c.conn.SetDeadline(time.Now().Add(c.idleTimeout))
}

// RemoteAddr returns the remote address of the connection.
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// IsClosed reports whether Close has been called.
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// Close flushes buffered output and closes the underlying connection.
// Safe to call multiple times.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = c.writer.Flush()
	return c.conn.Close()
}
