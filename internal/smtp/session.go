package smtp

import (
	"context"
	"regexp"
)

// Submitter turns a submitted RFC 5322 message into an upstream status.
// reversePath is the MAIL FROM address of the transaction, consulted to
// locate the instance when no account is configured. Parse failures are
// reported wrapped in ErrBadMessage; any other error is an upstream
// failure.
type Submitter interface {
	Submit(ctx context.Context, reversePath string, raw []byte) error
}

// pathPattern extracts the first angle-bracketed token of a MAIL FROM
// or RCPT TO argument.
var pathPattern = regexp.MustCompile(`<(.*?)>`)

// Session tracks the state of one SMTP mail transaction.
type Session struct {
	reversePath string
	haveSender  bool
}

// NewSession creates a new SMTP session.
func NewSession() *Session {
	return &Session{}
}

// SetReversePath records the sender from MAIL FROM. The argument is the
// raw text after the verb; the first <...> token is the path.
func (s *Session) SetReversePath(arg string) {
	s.reversePath = extractPath(arg)
	s.haveSender = true
}

// ReversePath returns the recorded sender path.
func (s *Session) ReversePath() string {
	return s.reversePath
}

// HaveSender reports whether MAIL FROM has been accepted since the last
// reset.
func (s *Session) HaveSender() bool {
	return s.haveSender
}

// Reset clears the transaction state (RSET, or after DATA completes).
func (s *Session) Reset() {
	s.reversePath = ""
	s.haveSender = false
}

// extractPath returns the content of the first <...> token, or "" when
// the argument carries none.
func extractPath(arg string) string {
	m := pathPattern.FindStringSubmatch(arg)
	if m == nil {
		return ""
	}
	return m[1]
}
