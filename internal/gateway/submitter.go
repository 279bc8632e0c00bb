package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mop3d/mop3d/internal/config"
	"github.com/mop3d/mop3d/internal/mastodon"
	"github.com/mop3d/mop3d/internal/message"
	"github.com/mop3d/mop3d/internal/metrics"
	"github.com/mop3d/mop3d/internal/smtp"
)

// maxMediaIDs caps the media id list of one status.
const maxMediaIDs = 4

// Submitter turns submitted mail into upstream statuses. It implements
// smtp.Submitter using the configured account and token; the SMTP
// frontend carries no credentials of its own.
type Submitter struct {
	cfg       *config.Config
	collector metrics.Collector
	logger    *slog.Logger

	newClient func(baseURL, token string) *mastodon.Client
}

// NewSubmitter creates a Submitter for the given configuration.
func NewSubmitter(cfg *config.Config, collector metrics.Collector, logger *slog.Logger) *Submitter {
	return &Submitter{
		cfg:       cfg,
		collector: collector,
		logger:    logger,
		newClient: mastodon.NewClient,
	}
}

// Submit parses the message, uploads its attachments, and creates the
// status. When no account is configured the MAIL FROM reverse-path
// locates the instance instead. Parse failures are wrapped in
// smtp.ErrBadMessage.
func (s *Submitter) Submit(ctx context.Context, reversePath string, raw []byte) error {
	sub, err := message.ParseSubmission(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", smtp.ErrBadMessage, err)
	}

	account := s.cfg.Account
	if account == "" {
		account = reversePath
	}
	domain, baseURL := mastodon.Instance(account)
	client := s.newClient(baseURL, s.cfg.Token)

	var mediaIDs []string
	for _, att := range sub.Attachments {
		id, err := client.UploadMedia(ctx, att.Filename, att.ContentType, att.Data)
		if err != nil {
			s.collector.StatusSubmitted(domain, false)
			return fmt.Errorf("uploading %s: %w", att.Filename, err)
		}
		s.collector.MediaUploaded(domain)
		mediaIDs = append(mediaIDs, id)
	}
	if len(mediaIDs) > maxMediaIDs {
		s.logger.Warn("truncating media list",
			"uploaded", len(mediaIDs),
			"kept", maxMediaIDs,
		)
		mediaIDs = mediaIDs[:maxMediaIDs]
	}

	form := mastodon.StatusForm{
		Status:      sub.Status,
		InReplyToID: sub.InReplyToID,
		MediaIDs:    mediaIDs,
	}

	if err := client.PostStatus(ctx, form); err != nil {
		s.collector.StatusSubmitted(domain, false)
		return err
	}
	s.collector.StatusSubmitted(domain, true)

	s.logger.Info("status submitted",
		"domain", domain,
		"reply_to", sub.InReplyToID,
		"media", len(mediaIDs),
	)

	return nil
}
