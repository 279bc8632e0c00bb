package pop3

import (
	"fmt"
	"testing"
)

func TestErrResponse(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"no such message", ErrNoSuchMessage, "no such message"},
		{"invalid state", ErrInvalidState, "Command not valid in this state"},
		{"no username", ErrNoUsername, "No username specified"},
		{"auth failed", ErrAuthFailed, "unable to log in"},
		{"maildrop not loaded", ErrMaildropNotLoaded, "maildrop not loaded"},
		{"wrapped sentinel keeps the wire text", fmt.Errorf("%w: upstream said no", ErrAuthFailed), "unable to log in"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := errResponse(tt.err)
			if resp.OK {
				t.Errorf("errResponse(%v).OK = true, want -ERR", tt.err)
			}
			if resp.Message != tt.want {
				t.Errorf("errResponse(%v).Message = %q, want %q", tt.err, resp.Message, tt.want)
			}
		})
	}
}
