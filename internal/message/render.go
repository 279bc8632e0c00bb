// Package message is the translation layer between timeline posts and
// RFC 5322 messages: posts render into mail for POP3 retrieval, and
// submitted mail parses back into status submissions.
package message

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/jaytaylor/html2text"
	"github.com/mitchellh/go-wordwrap"

	"github.com/mop3d/mop3d/internal/config"
	"github.com/mop3d/mop3d/internal/mastodon"
)

// textWidth is the wrap column for HTML-to-text conversion.
const textWidth = 78

// Identity is the local account the gateway serves, used for the To
// header of every rendered message.
type Identity struct {
	DisplayName string
	Addr        string
}

// MediaFetcher downloads post media for attachment and inline delivery.
// *mastodon.Client satisfies it.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, url string) (*mastodon.Media, error)
}

// RenderOptions control how posts are rendered into mail.
type RenderOptions struct {
	// HTML emits the post content as a text/html body instead of
	// converting it to plain text.
	HTML bool

	// Media selects link, attachment or inline delivery.
	Media config.MediaMode

	// Fetcher is required for attachment and inline delivery.
	Fetcher MediaFetcher
}

// Render builds the RFC 5322 message for one timeline post. Headers come
// from the outer post; content, media and the subject come from the
// boosted post when the post is a boost.
func Render(ctx context.Context, post *mastodon.Post, ident Identity, domain string, opts RenderOptions) ([]byte, error) {
	src, boosted := post.Source()

	subject := "Post"
	if boosted {
		subject = "Boost"
	}

	content := src.Content
	if !opts.HTML {
		text, err := html2text.FromString(content)
		if err != nil {
			return nil, fmt.Errorf("rendering post %s content: %w", post.ID, err)
		}
		content = strings.ReplaceAll(wordwrap.WrapString(text, textWidth), "\n", "\r\n")
	}

	var attachments []*mastodon.Media
	switch opts.Media {
	case config.MediaAttachment, config.MediaInline:
		if opts.Fetcher == nil {
			return nil, fmt.Errorf("rendering post %s: media fetcher required for %s delivery", post.ID, opts.Media)
		}
		for _, m := range src.MediaAttachments {
			media, err := opts.Fetcher.FetchMedia(ctx, m.URL)
			if err != nil {
				return nil, fmt.Errorf("rendering post %s: %w", post.ID, err)
			}
			attachments = append(attachments, media)
		}
	default:
		// Link delivery: each media URL becomes its own body line.
		for _, m := range src.MediaAttachments {
			content += "\r\n" + m.URL
		}
	}

	header, err := buildHeader(post, ident, domain, subject)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := writeBody(&buf, header, content, attachments, opts); err != nil {
		return nil, fmt.Errorf("rendering post %s: %w", post.ID, err)
	}

	// Exactly one trailing CRLF before the terminating dot on the wire.
	raw := buf.Bytes()
	for bytes.HasSuffix(raw, []byte("\r\n\r\n")) {
		raw = raw[:len(raw)-2]
	}
	if !bytes.HasSuffix(raw, []byte("\r\n")) {
		raw = append(raw, '\r', '\n')
	}

	return raw, nil
}

func buildHeader(post *mastodon.Post, ident Identity, domain, subject string) (mail.Header, error) {
	var h mail.Header

	h.SetAddressList("From", []*mail.Address{{
		Name:    post.Account.DisplayName,
		Address: post.Account.Acct,
	}})
	h.SetAddressList("To", []*mail.Address{{
		Name:    ident.DisplayName,
		Address: ident.Addr,
	}})
	h.SetSubject(subject)

	created, err := time.Parse(time.RFC3339, post.CreatedAt)
	if err != nil {
		return h, fmt.Errorf("post %s: unexpected created_at %q: %w", post.ID, post.CreatedAt, err)
	}
	h.SetDate(created.UTC())

	// Threading hinges on this: a mail client's reply references
	// <id@domain>, which the SMTP side maps back to a status id.
	h.SetMessageID(post.ID + "@" + domain)

	if post.InReplyToID != nil && *post.InReplyToID != "" {
		h.SetMsgIDList("In-Reply-To", []string{*post.InReplyToID + "@" + domain})
	}

	return h, nil
}

func writeBody(buf *bytes.Buffer, header mail.Header, content string, attachments []*mastodon.Media, opts RenderOptions) error {
	bodyType := "text/plain"
	if opts.HTML {
		bodyType = "text/html"
	}

	if len(attachments) == 0 {
		header.SetContentType(bodyType, map[string]string{"charset": "utf-8"})
		w, err := mail.CreateSingleInlineWriter(buf, header)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, content); err != nil {
			return err
		}
		return w.Close()
	}

	mw, err := mail.CreateWriter(buf, header)
	if err != nil {
		return err
	}

	var th mail.InlineHeader
	th.SetContentType(bodyType, map[string]string{"charset": "utf-8"})
	tw, err := mw.CreateSingleInline(th)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(tw, content); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}

	for _, m := range attachments {
		contentType := m.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		var ah mail.AttachmentHeader
		ah.SetFilename(m.Filename)
		ah.SetContentType(contentType, nil)
		if opts.Media == config.MediaInline {
			ah.Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": m.Filename}))
		}

		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return err
		}
		if _, err := aw.Write(m.Data); err != nil {
			return err
		}
		if err := aw.Close(); err != nil {
			return err
		}
	}

	return mw.Close()
}
