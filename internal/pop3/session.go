package pop3

import (
	"context"

	"github.com/mop3d/mop3d/internal/message"
)

// State represents the current state in the POP3 state machine.
type State int

const (
	// StateAuthorization is the initial state where authentication is required.
	StateAuthorization State = iota

	// StateTransaction is the state after successful authentication.
	StateTransaction

	// StateUpdate is the state after QUIT from Transaction.
	StateUpdate
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateAuthorization:
		return "AUTHORIZATION"
	case StateTransaction:
		return "TRANSACTION"
	case StateUpdate:
		return "UPDATE"
	default:
		return "UNKNOWN"
	}
}

// MaildropOpener verifies a credential against the upstream instance and
// renders the timeline snapshot into a maildrop.
type MaildropOpener interface {
	Open(ctx context.Context, username, password string) (*message.Maildrop, error)
}

// RecentTracker records the newest post id delivered to a client, so
// later sessions fetch only newer posts.
type RecentTracker interface {
	Advance(id string)
}

// Session represents a POP3 session with state tracking.
type Session struct {
	// State machine
	state State

	// Authentication state
	username string

	// Transaction state: the rendered timeline snapshot
	maildrop *message.Maildrop

	// retrieved is set after the first successful RETR of the session,
	// when the recent-id watermark has been advanced.
	retrieved bool
}

// NewSession creates a new POP3 session.
func NewSession() *Session {
	return &Session{state: StateAuthorization}
}

// State returns the current POP3 state.
func (s *Session) State() State {
	return s.state
}

// SetUsername stores the username from the USER command.
func (s *Session) SetUsername(username string) {
	s.username = username
}

// Username returns the stored username.
func (s *Session) Username() string {
	return s.username
}

// SetAuthenticated transitions to StateTransaction with the maildrop
// loaded for the session.
func (s *Session) SetAuthenticated(drop *message.Maildrop) {
	s.state = StateTransaction
	s.maildrop = drop
}

// IsAuthenticated returns true if in StateTransaction or StateUpdate.
func (s *Session) IsAuthenticated() bool {
	return s.state == StateTransaction || s.state == StateUpdate
}

// Maildrop returns the maildrop, or nil before authentication.
func (s *Session) Maildrop() *message.Maildrop {
	return s.maildrop
}

// EnterUpdate transitions to StateUpdate (called when QUIT is received in Transaction).
func (s *Session) EnterUpdate() {
	if s.state == StateTransaction {
		s.state = StateUpdate
	}
}

// MarkRetrieved records that at least one RETR succeeded this session.
// Returns true on the first call, when the watermark should advance.
func (s *Session) MarkRetrieved() bool {
	if s.retrieved {
		return false
	}
	s.retrieved = true
	return true
}

// Capabilities returns the list of capabilities for this session.
func (s *Session) Capabilities() []string {
	return []string{"USER", "TOP", "UIDL"}
}
