package pop3

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/mop3d/mop3d/internal/message"
	"github.com/mop3d/mop3d/internal/metrics"
	"github.com/mop3d/mop3d/internal/server"
)

// startSession runs the POP3 handler over an in-memory pipe and returns
// the client side.
func startSession(t *testing.T, opener MaildropOpener, tracker RecentTracker) (*bufio.Reader, net.Conn) {
	t.Helper()

	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() {
		_ = clientConn.Close()
	})

	handler := Handler(opener, tracker, &metrics.NoopCollector{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn := server.NewConnection(serverConn, 0, 0)
		defer func() {
			_ = conn.Close()
		}()
		handler(context.Background(), conn)
	}()
	t.Cleanup(func() {
		_ = clientConn.Close()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("handler did not return")
		}
	})

	return bufio.NewReader(clientConn), clientConn
}

func expectLine(t *testing.T, r *bufio.Reader, want string) {
	t.Helper()
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("reading line: %v (want %q)", err, want)
	}
	if line != want {
		t.Fatalf("line = %q, want %q", line, want)
	}
}

func sendLine(t *testing.T, conn net.Conn, line string) {
	t.Helper()
	if _, err := conn.Write([]byte(line + "\r\n")); err != nil {
		t.Fatalf("writing %q: %v", line, err)
	}
}

func TestHandlerSession(t *testing.T) {
	drop := testMaildrop()
	opener := &mockOpener{drop: drop}
	tracker := &recordingTracker{}

	r, conn := startSession(t, opener, tracker)

	expectLine(t, r, "+OK MOP3 ready\r\n")

	sendLine(t, conn, "USER alice@b")
	expectLine(t, r, "+OK send PASS\r\n")

	sendLine(t, conn, "PASS token123")
	expectLine(t, r, "+OK MOP3 READY, MESSAGES FETCHED\r\n")

	sendLine(t, conn, "STAT")
	expectLine(t, r, "+OK 2 "+itoa64(drop.TotalSize())+"\r\n")

	// RETR transmits exactly the advertised octets before the dot.
	sendLine(t, conn, "RETR 1")
	expectLine(t, r, "+OK "+itoa64(drop.Items[0].Size())+" octets\r\n")
	payload := make([]byte, drop.Items[0].Size())
	if _, err := io.ReadFull(r, payload); err != nil {
		t.Fatalf("reading payload: %v", err)
	}
	if string(payload) != string(drop.Items[0].Raw) {
		t.Errorf("payload = %q, want the rendered message", payload)
	}
	expectLine(t, r, ".\r\n")

	if len(tracker.ids) != 1 || tracker.ids[0] != "42" {
		t.Errorf("tracker advances = %v, want one advance to 42", tracker.ids)
	}

	sendLine(t, conn, "QUIT")
	expectLine(t, r, "+OK\r\n")

	// The server closes after QUIT.
	if _, err := r.ReadString('\n'); err == nil {
		t.Error("connection should be closed after QUIT")
	}
}

func TestHandlerLoginFailureClosesSession(t *testing.T) {
	opener := &mockOpener{err: errors.New("upstream said no")}

	r, conn := startSession(t, opener, nil)

	expectLine(t, r, "+OK MOP3 ready\r\n")

	sendLine(t, conn, "USER alice@b")
	expectLine(t, r, "+OK send PASS\r\n")

	sendLine(t, conn, "PASS wrong")
	expectLine(t, r, "-ERR unable to log in\r\n")

	if _, err := r.ReadString('\n'); err == nil {
		t.Error("connection should be closed after a failed login")
	}
}

func TestHandlerUnknownCommand(t *testing.T) {
	r, conn := startSession(t, &mockOpener{drop: &message.Maildrop{Domain: "b"}}, nil)

	expectLine(t, r, "+OK MOP3 ready\r\n")

	sendLine(t, conn, "XFROB")
	expectLine(t, r, "-ERR Unknown command\r\n")

	sendLine(t, conn, "QUIT")
	expectLine(t, r, "+OK\r\n")
}

func itoa64(n int64) string {
	return strconv.FormatInt(n, 10)
}
