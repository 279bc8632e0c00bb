package pop3

import (
	"context"
	"fmt"
)

// capaCommand implements the CAPA command (RFC 2449).
type capaCommand struct{}

func (c *capaCommand) Name() string {
	return "CAPA"
}

func (c *capaCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	// CAPA takes no arguments
	if len(args) > 0 {
		return Response{OK: false, Message: "CAPA command takes no arguments"}, nil
	}

	return Response{
		OK:      true,
		Message: "Capability list follows",
		Lines:   sess.Capabilities(),
	}, nil
}

// userCommand implements the USER command (RFC 1939).
type userCommand struct{}

func (u *userCommand) Name() string {
	return "USER"
}

func (u *userCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	// USER requires exactly one argument
	if len(args) != 1 {
		return Response{OK: false, Message: "USER command requires username argument"}, nil
	}

	// Accepted in any state; after login the credential is already bound,
	// so a repeated USER changes nothing.
	if sess.State() == StateAuthorization {
		sess.SetUsername(args[0])
	}

	return Response{OK: true, Message: "send PASS"}, nil
}

// passCommand implements the PASS command (RFC 1939). A successful PASS
// runs the whole login pipeline: credential verification, timeline
// fetch, and rendering of the maildrop.
type passCommand struct {
	opener MaildropOpener
}

func (p *passCommand) Name() string {
	return "PASS"
}

func (p *passCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	// PASS is only valid in AUTHORIZATION state
	if sess.State() != StateAuthorization {
		return errResponse(ErrInvalidState), nil
	}

	// USER must have been called first
	username := sess.Username()
	if username == "" {
		return errResponse(ErrNoUsername), nil
	}

	// PASS requires exactly one argument
	if len(args) != 1 {
		return Response{OK: false, Message: "PASS command requires password argument"}, nil
	}

	password := args[0]

	drop, err := p.opener.Open(ctx, username, password)
	if err != nil {
		// Generic error on the wire; the handler closes the session.
		conn.Logger().Info("login failed",
			"username", username,
			"error", err.Error(),
		)
		return errResponse(fmt.Errorf("%w: %v", ErrAuthFailed, err)), nil
	}

	sess.SetAuthenticated(drop)

	conn.Logger().Info("login successful",
		"username", username,
		"messages", drop.Count(),
	)

	// The success line doubles as the transaction-state banner.
	return Response{OK: true, Message: "MOP3 READY, MESSAGES FETCHED"}, nil
}

// apopCommand rejects APOP; digest authentication has no meaning when
// the password is a bearer token.
type apopCommand struct{}

func (a *apopCommand) Name() string {
	return "APOP"
}

func (a *apopCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	return Response{OK: false, Message: "Server does not support APOP"}, nil
}

// authCommand rejects AUTH; no SASL mechanisms are offered.
type authCommand struct{}

func (a *authCommand) Name() string {
	return "AUTH"
}

func (a *authCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	return Response{OK: false, Message: "Server does not support AUTH"}, nil
}

// quitCommand implements the QUIT command (RFC 1939).
type quitCommand struct{}

func (q *quitCommand) Name() string {
	return "QUIT"
}

func (q *quitCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	// QUIT takes no arguments
	if len(args) > 0 {
		return Response{OK: false, Message: "QUIT command takes no arguments"}, nil
	}

	// Nothing to commit in UPDATE; the recent-id watermark already
	// advanced at the first RETR.
	sess.EnterUpdate()

	return Response{OK: true}, nil
}

// RegisterAuthCommands registers all authentication-related commands.
func RegisterAuthCommands(opener MaildropOpener) {
	RegisterCommand(&capaCommand{})
	RegisterCommand(&userCommand{})
	RegisterCommand(&passCommand{opener: opener})
	RegisterCommand(&apopCommand{})
	RegisterCommand(&authCommand{})
	RegisterCommand(&quitCommand{})
}
