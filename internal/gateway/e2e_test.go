package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/mop3d/mop3d/internal/metrics"
	"github.com/mop3d/mop3d/internal/pop3"
	"github.com/mop3d/mop3d/internal/server"
	"github.com/mop3d/mop3d/internal/smtp"
)

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

func serveHandler(t *testing.T, handler server.ConnectionHandler) (*bufio.Reader, net.Conn) {
	t.Helper()

	clientConn, serverConn := net.Pipe()
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

// Full gateway round trip against a fake instance: a POP3 session
// retrieves the rendered timeline, then an SMTP session replies to the
// retrieved post and the upstream sees the threaded status.
func TestGatewayEndToEnd(t *testing.T) {
	var gotStatus map[string]any
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/accounts/verify_credentials":
			_, _ = w.Write([]byte(`{"username":"alice","display_name":"Alice"}`))
		case "/api/v1/timelines/home":
			_, _ = w.Write([]byte(`[{"id":"42","created_at":"2024-01-02T03:04:05.000Z","content":"<p>hi</p>","account":{"acct":"a@b","display_name":"A"}}]`))
		case "/api/v1/statuses":
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &gotStatus)
			_, _ = w.Write([]byte(`{"id":"99"}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer upstream.Close()

	cfg := testConfig()
	recent := &RecentID{}

	opener := NewOpener(cfg, recent, &metrics.NoopCollector{}, discardLogger())
	opener.newClient = pointTo(upstream)

	r, conn := serveHandler(t, pop3.Handler(opener, recent, &metrics.NoopCollector{}))

	expectLine(t, r, "+OK MOP3 ready\r\n")
	sendLine(t, conn, "USER alice@b")
	expectLine(t, r, "+OK send PASS\r\n")
	sendLine(t, conn, "PASS token123")
	expectLine(t, r, "+OK MOP3 READY, MESSAGES FETCHED\r\n")

	sendLine(t, conn, "UIDL")
	expectLine(t, r, "+OK\r\n")
	expectLine(t, r, "1 42@b\r\n")
	expectLine(t, r, ".\r\n")

	sendLine(t, conn, "RETR 1")
	sizeLine, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("reading RETR status: %v", err)
	}
	fields := strings.Fields(sizeLine)
	if len(fields) < 2 || fields[0] != "+OK" {
		t.Fatalf("RETR status = %q", sizeLine)
	}
	size, err := strconv.Atoi(fields[1])
	if err != nil {
		t.Fatalf("RETR octet count %q: %v", fields[1], err)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		t.Fatalf("reading payload: %v", err)
	}
	expectLine(t, r, ".\r\n")

	sendLine(t, conn, "QUIT")
	expectLine(t, r, "+OK\r\n")

	// The watermark advanced to the retrieved post.
	if recent.Since() != "42" {
		t.Errorf("Since() = %q, want 42", recent.Since())
	}

	// Reply over SMTP using the retrieved Message-ID.
	submitter := NewSubmitter(cfg, &metrics.NoopCollector{}, discardLogger())
	submitter.newClient = pointTo(upstream)

	sr, sconn := serveHandler(t, smtp.Handler("mail.example.com", submitter, &metrics.NoopCollector{}))

	expectLine(t, sr, "220 mail.example.com MOP3 SMTP ready\r\n")
	sendLine(t, sconn, "MAIL FROM:<alice@b>")
	expectLine(t, sr, "250 OK\r\n")
	sendLine(t, sconn, "RCPT TO:<alice@b>")
	expectLine(t, sr, "250 OK\r\n")
	sendLine(t, sconn, "DATA")
	expectLine(t, sr, "354 Send message content\r\n")
	sendLine(t, sconn, "From: alice@b")
	sendLine(t, sconn, "In-Reply-To: <42@b>")
	sendLine(t, sconn, "")
	sendLine(t, sconn, "hello")
	sendLine(t, sconn, ".")
	expectLine(t, sr, "250 OK\r\n")
	sendLine(t, sconn, "QUIT")
	expectLine(t, sr, "221 good bye\r\n")

	if gotStatus["status"] != "hello" || gotStatus["in_reply_to_id"] != "42" {
		t.Errorf("upstream saw %v, want status hello replying to 42", gotStatus)
	}
}
