package smtp

import "errors"

var (
	// ErrBadMessage marks a submission that could not be parsed as an
	// RFC 5322 message. Submitters wrap parse failures with it so the
	// DATA acknowledgment can distinguish 554 from 451.
	ErrBadMessage = errors.New("message could not be parsed")
)
