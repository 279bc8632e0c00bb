package pop3

import "errors"

// Protocol errors for POP3.
var (
	// ErrInvalidState is returned when a command is not valid in the current state.
	ErrInvalidState = errors.New("command not valid in current state")

	// ErrNoUsername is returned when PASS is used before USER.
	ErrNoUsername = errors.New("username not specified")

	// ErrAuthFailed is returned when the credential does not verify upstream.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrNoSuchMessage is returned when a message number doesn't exist.
	ErrNoSuchMessage = errors.New("no such message")

	// ErrMaildropNotLoaded is returned when the maildrop is accessed before auth.
	ErrMaildropNotLoaded = errors.New("maildrop not loaded")
)

// errResponse maps a protocol error to its -ERR wire line. Wrapped errors
// match through errors.Is, so callers may annotate a sentinel with
// fmt.Errorf("%w: ...") without changing the client-visible text.
func errResponse(err error) Response {
	switch {
	case errors.Is(err, ErrNoSuchMessage):
		return Response{OK: false, Message: "no such message"}
	case errors.Is(err, ErrInvalidState):
		return Response{OK: false, Message: "Command not valid in this state"}
	case errors.Is(err, ErrNoUsername):
		return Response{OK: false, Message: "No username specified"}
	case errors.Is(err, ErrAuthFailed):
		return Response{OK: false, Message: "unable to log in"}
	case errors.Is(err, ErrMaildropNotLoaded):
		return Response{OK: false, Message: "maildrop not loaded"}
	}
	return Response{OK: false, Message: err.Error()}
}
