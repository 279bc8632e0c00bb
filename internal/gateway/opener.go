// Package gateway wires the protocol frontends to the upstream
// instance: the POP3 login pipeline that renders a timeline snapshot
// into a maildrop, the SMTP submitter that turns mail into statuses,
// and the recent-id watermark shared between sessions.
package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mop3d/mop3d/internal/config"
	"github.com/mop3d/mop3d/internal/mastodon"
	"github.com/mop3d/mop3d/internal/message"
	"github.com/mop3d/mop3d/internal/metrics"
)

// timelineLimit is the page size of the home timeline fetch.
const timelineLimit = 40

// Opener runs the POP3 login pipeline: credential verification,
// timeline fetch bounded by the recent-id watermark, and rendering.
// It implements pop3.MaildropOpener.
type Opener struct {
	cfg       *config.Config
	recent    *RecentID
	collector metrics.Collector
	logger    *slog.Logger

	// newClient builds the upstream client for a base URL; tests
	// substitute one pointed at a local server.
	newClient func(baseURL, token string) *mastodon.Client
}

// NewOpener creates an Opener for the given configuration.
func NewOpener(cfg *config.Config, recent *RecentID, collector metrics.Collector, logger *slog.Logger) *Opener {
	return &Opener{
		cfg:       cfg,
		recent:    recent,
		collector: collector,
		logger:    logger,
		newClient: mastodon.NewClient,
	}
}

// Open verifies the credential and renders the current timeline
// snapshot. Configured account and token override the wire-supplied
// username and password.
func (o *Opener) Open(ctx context.Context, username, password string) (*message.Maildrop, error) {
	account, token := o.credentials(username, password)

	domain, baseURL := mastodon.Instance(account)

	client := o.newClient(baseURL, token)
	client.FoldASCII = o.cfg.ASCII

	cred, err := client.VerifyCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("verifying account %s: %w", account, err)
	}

	posts, err := client.HomeTimeline(ctx, timelineLimit, o.recent.Since())
	if err != nil {
		return nil, fmt.Errorf("fetching timeline for %s: %w", account, err)
	}
	o.collector.TimelineFetched(domain, len(posts))

	o.logger.Debug("timeline fetched",
		"domain", domain,
		"posts", len(posts),
		"since_id", o.recent.Since(),
	)
	for _, post := range posts {
		o.logger.Debug("post fetched", "id", post.ID, "created_at", post.CreatedAt)
	}

	ident := message.Identity{
		DisplayName: cred.DisplayName,
		Addr:        cred.Username + "@" + domain,
	}

	drop, err := message.BuildMaildrop(ctx, posts, ident, domain, message.RenderOptions{
		HTML:    o.cfg.HTML,
		Media:   o.cfg.Media,
		Fetcher: client,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering timeline for %s: %w", account, err)
	}

	return drop, nil
}

// credentials resolves the effective account and token, preferring
// configured values over wire-supplied ones.
func (o *Opener) credentials(username, password string) (account, token string) {
	account = username
	if o.cfg.Account != "" {
		account = o.cfg.Account
	}
	token = password
	if o.cfg.Token != "" {
		token = o.cfg.Token
	}
	return account, token
}
