package message

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"

	gomessage "github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
)

// quotedReplyPattern matches the attribution line mail clients insert
// above the quoted prior message ("On Mon, Jan 1, A wrote:"). It covers
// English-language clients only. Compiled multiline so the anchor matches
// at the end of the attribution line, not only at end of input.
//
// Pattern from crisp-oss/email-reply-parser.
var quotedReplyPattern = regexp.MustCompile(`(?m)-*\s*(On\s.+\s.+\n?wrote:{0,1})\s{0,1}-*$`)

// Attachment is a decoded MIME attachment from a submitted message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Submission is the post-shaped view of a submitted RFC 5322 message.
type Submission struct {
	// Status is the cleaned first text body part.
	Status string

	// InReplyToID is the upstream status id being replied to, empty for
	// a standalone post.
	InReplyToID string

	Attachments []Attachment
}

// ParseSubmission parses a submitted message and reduces it to a status
// submission: reply id resolution, quoted-reply stripping, whitespace
// cleanup and attachment extraction.
func ParseSubmission(raw []byte) (*Submission, error) {
	entity, err := gomessage.Read(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing message: %w", err)
	}

	h := mail.Header{Header: entity.Header}

	replyID := firstMsgID(&h, "In-Reply-To")
	if replyID == "" {
		replyID = firstMsgID(&h, "References")
	}

	sub := &Submission{}
	walkEntity(entity, sub)

	status := sub.Status
	if replyID != "" {
		if loc := quotedReplyPattern.FindStringIndex(status); loc != nil {
			status = status[:loc[0]]
		}
	}

	// Drop object-replacement markers some clients leave behind for
	// inline images, then trim trailing whitespace.
	status = strings.ReplaceAll(status, "￼", "")
	status = strings.TrimRightFunc(status, unicode.IsSpace)
	sub.Status = status

	// Clients may have appended the synthetic domain to the id; keep
	// only the part before the last @.
	if i := strings.LastIndex(replyID, "@"); i >= 0 {
		replyID = replyID[:i]
	}
	sub.InReplyToID = replyID

	return sub, nil
}

// firstMsgID returns the first message id of a header field without
// angle brackets, or "" when the field is absent or unparseable.
func firstMsgID(h *mail.Header, key string) string {
	ids, err := h.MsgIDList(key)
	if err != nil || len(ids) == 0 {
		return ""
	}
	return ids[0]
}

// walkEntity fills the submission from a message entity. The first text
// part becomes the status, everything else non-message becomes an
// attachment.
func walkEntity(entity *gomessage.Entity, sub *Submission) {
	if mr := entity.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if err != nil {
				return
			}
			walkEntity(part, sub)
		}
	}

	ct, _, err := entity.Header.ContentType()
	if err != nil {
		ct = "text/plain"
	}

	switch {
	case strings.HasPrefix(ct, "multipart/"):
		// Handled above; nothing to read here.

	case strings.HasPrefix(ct, "message/"):
		// Forwarded messages are not uploadable media.

	case strings.HasPrefix(ct, "text/") && sub.Status == "" && !isAttachment(entity):
		if body, err := io.ReadAll(entity.Body); err == nil {
			sub.Status = string(body)
		}

	default:
		body, err := io.ReadAll(entity.Body)
		if err != nil {
			return
		}

		h := mail.AttachmentHeader{Header: entity.Header}
		filename, _ := h.Filename()
		if filename == "" {
			filename = "Untitled.jpg"
		}
		if ct == "" {
			ct = "image/JPG"
		}

		sub.Attachments = append(sub.Attachments, Attachment{
			Filename:    filename,
			ContentType: ct,
			Data:        body,
		})
	}
}

// isAttachment reports whether a part carries an attachment disposition,
// so text files sent as attachments do not become the status.
func isAttachment(entity *gomessage.Entity) bool {
	disp, _, err := entity.Header.ContentDisposition()
	return err == nil && disp == "attachment"
}
