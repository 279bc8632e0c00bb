package pop3

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/mop3d/mop3d/internal/message"
)

// statCommand implements the STAT command (RFC 1939).
// Returns the number of messages and total size in octets.
type statCommand struct{}

func (s *statCommand) Name() string {
	return "STAT"
}

func (s *statCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	drop, err := transactionMaildrop(sess)
	if err != nil {
		return errResponse(err), nil
	}

	// STAT takes no arguments
	if len(args) > 0 {
		return Response{OK: false, Message: "STAT command takes no arguments"}, nil
	}

	return Response{OK: true, Message: fmt.Sprintf("%d %d", drop.Count(), drop.TotalSize())}, nil
}

// listCommand implements the LIST command (RFC 1939).
// Without arguments, lists all messages. With argument, lists one message.
// An argument of 0 is treated the same as no argument.
type listCommand struct{}

func (l *listCommand) Name() string {
	return "LIST"
}

func (l *listCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	drop, err := transactionMaildrop(sess)
	if err != nil {
		return errResponse(err), nil
	}

	msgNum, resp := parseOptionalMsgNum(args, "LIST")
	if resp != nil {
		return *resp, nil
	}

	if msgNum == 0 {
		lines := make([]string, drop.Count())
		for i := range drop.Items {
			lines[i] = fmt.Sprintf("%d %d", i+1, drop.Items[i].Size())
		}
		return Response{
			OK:      true,
			Message: fmt.Sprintf("%d messages (%d octets)", drop.Count(), drop.TotalSize()),
			Lines:   lines,
			Multi:   true,
		}, nil
	}

	item := drop.Item(msgNum)
	if item == nil {
		return errResponse(ErrNoSuchMessage), nil
	}

	return Response{OK: true, Message: fmt.Sprintf("%d %d", msgNum, item.Size())}, nil
}

// uidlCommand implements the UIDL command (RFC 1939).
// The unique identifier of a message is <post id>@<instance domain>, so
// UIDs are stable across sessions that see the same posts.
type uidlCommand struct{}

func (u *uidlCommand) Name() string {
	return "UIDL"
}

func (u *uidlCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	drop, err := transactionMaildrop(sess)
	if err != nil {
		return errResponse(err), nil
	}

	msgNum, resp := parseOptionalMsgNum(args, "UIDL")
	if resp != nil {
		return *resp, nil
	}

	if msgNum == 0 {
		lines := make([]string, drop.Count())
		for i := range drop.Items {
			lines[i] = fmt.Sprintf("%d %s", i+1, drop.Items[i].UID)
		}
		return Response{OK: true, Lines: lines, Multi: true}, nil
	}

	item := drop.Item(msgNum)
	if item == nil {
		return errResponse(ErrNoSuchMessage), nil
	}

	return Response{OK: true, Message: fmt.Sprintf("%d %s", msgNum, item.UID)}, nil
}

// retrCommand implements the RETR command (RFC 1939).
// Sends the full rendered message verbatim; the advertised octet count
// is exactly the payload transmitted before the terminating dot.
type retrCommand struct {
	tracker RecentTracker
}

func (r *retrCommand) Name() string {
	return "RETR"
}

func (r *retrCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	drop, err := transactionMaildrop(sess)
	if err != nil {
		return errResponse(err), nil
	}

	// RETR requires exactly one argument
	if len(args) != 1 {
		return Response{OK: false, Message: "RETR command requires message number"}, nil
	}

	msgNum, err := strconv.Atoi(args[0])
	if err != nil {
		return Response{OK: false, Message: "Invalid message number"}, nil
	}

	item := drop.Item(msgNum)
	if item == nil {
		return errResponse(ErrNoSuchMessage), nil
	}

	// The first retrieval of a session advances the watermark to the
	// newest post in the snapshot, so the next login fetches only posts
	// newer than anything the client has already seen.
	if sess.MarkRetrieved() && r.tracker != nil && drop.NewestID != "" {
		r.tracker.Advance(drop.NewestID)
		conn.Logger().Debug("advanced recent id", "id", drop.NewestID)
	}

	return Response{
		OK:      true,
		Message: fmt.Sprintf("%d octets", item.Size()),
		Raw:     item.Raw,
	}, nil
}

// topCommand implements the TOP command (RFC 1939).
// Sends the full headers and at most k lines of the body.
type topCommand struct{}

func (t *topCommand) Name() string {
	return "TOP"
}

func (t *topCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	drop, err := transactionMaildrop(sess)
	if err != nil {
		return errResponse(err), nil
	}

	// TOP requires exactly two arguments: msgnum and n
	if len(args) != 2 {
		return Response{OK: false, Message: "TOP command requires message number and line count"}, nil
	}

	msgNum, err := strconv.Atoi(args[0])
	if err != nil {
		return Response{OK: false, Message: "Invalid message number"}, nil
	}

	lineCount, err := strconv.Atoi(args[1])
	if err != nil || lineCount < 0 {
		return Response{OK: false, Message: "Invalid line count"}, nil
	}

	item := drop.Item(msgNum)
	if item == nil {
		return errResponse(ErrNoSuchMessage), nil
	}

	partial := topSlice(item.Raw, lineCount)

	return Response{
		OK:      true,
		Message: fmt.Sprintf("%d octets", len(partial)),
		Raw:     partial,
	}, nil
}

// deleCommand implements the DELE command (RFC 1939). Posts cannot be
// deleted from the upstream timeline, so DELE is accepted but inert.
type deleCommand struct{}

func (d *deleCommand) Name() string {
	return "DELE"
}

func (d *deleCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	if _, err := transactionMaildrop(sess); err != nil {
		return errResponse(err), nil
	}

	return Response{OK: true}, nil
}

// rsetCommand implements the RSET command (RFC 1939). With no real
// deletions there is nothing to reset.
type rsetCommand struct{}

func (r *rsetCommand) Name() string {
	return "RSET"
}

func (r *rsetCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	return Response{OK: true}, nil
}

// noopCommand implements the NOOP command (RFC 1939).
// Does nothing, returns success.
type noopCommand struct{}

func (n *noopCommand) Name() string {
	return "NOOP"
}

func (n *noopCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	return Response{OK: true}, nil
}

// transactionMaildrop returns the session's maildrop for a command that
// is only valid in TRANSACTION state.
func transactionMaildrop(sess *Session) (*message.Maildrop, error) {
	if sess.State() != StateTransaction {
		return nil, ErrInvalidState
	}
	drop := sess.Maildrop()
	if drop == nil {
		return nil, ErrMaildropNotLoaded
	}
	return drop, nil
}

// parseOptionalMsgNum parses the optional message-number argument of
// LIST and UIDL. Returns 0 for the list-all form. A non-nil Response
// means the arguments were invalid.
func parseOptionalMsgNum(args []string, cmdName string) (int, *Response) {
	if len(args) == 0 {
		return 0, nil
	}
	if len(args) != 1 {
		return 0, &Response{OK: false, Message: cmdName + " command takes at most one argument"}
	}
	msgNum, err := strconv.Atoi(args[0])
	if err != nil || msgNum < 0 {
		return 0, &Response{OK: false, Message: "Invalid message number"}
	}
	return msgNum, nil
}

// topSlice returns the headers plus at most bodyLines lines of the body.
// The body begins after the first empty line. Every emitted line keeps
// its CRLF ending, so len of the result is the advertised octet count.
func topSlice(raw []byte, bodyLines int) []byte {
	var out bytes.Buffer
	inBody := false
	bodyCount := 0

	rest := raw
	for len(rest) > 0 {
		line := rest
		if i := bytes.IndexByte(rest, '\n'); i >= 0 {
			line = rest[:i+1]
			rest = rest[i+1:]
		} else {
			rest = nil
		}

		if inBody {
			if bodyCount >= bodyLines {
				break
			}
			bodyCount++
		}

		out.Write(line)

		if !inBody && len(bytes.TrimRight(line, "\r\n")) == 0 {
			inBody = true
		}
	}

	return out.Bytes()
}

// RegisterTransactionCommands registers all transaction-related commands.
func RegisterTransactionCommands(tracker RecentTracker) {
	RegisterCommand(&statCommand{})
	RegisterCommand(&listCommand{})
	RegisterCommand(&uidlCommand{})
	RegisterCommand(&retrCommand{tracker: tracker})
	RegisterCommand(&topCommand{})
	RegisterCommand(&deleCommand{})
	RegisterCommand(&rsetCommand{})
	RegisterCommand(&noopCommand{})
}
