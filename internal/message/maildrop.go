package message

import (
	"context"

	"github.com/mop3d/mop3d/internal/mastodon"
)

// Item is one rendered message in a maildrop snapshot. Items keep their
// source post id so UIDL and reply threading stay tied to the upstream.
type Item struct {
	PostID string
	UID    string
	Raw    []byte
}

// Size returns the rendered message size in octets.
func (i *Item) Size() int64 {
	return int64(len(i.Raw))
}

// Maildrop is the rendered timeline snapshot served for one POP3
// session. Items are ordered newest first, matching the timeline, and
// are addressed by 1-based message number.
type Maildrop struct {
	Domain string

	// NewestID is the id of the newest post in the snapshot, recorded
	// as the recent-id watermark when the client retrieves mail.
	NewestID string

	Items []Item
}

// BuildMaildrop renders every post of a timeline snapshot.
func BuildMaildrop(ctx context.Context, posts []mastodon.Post, ident Identity, domain string, opts RenderOptions) (*Maildrop, error) {
	drop := &Maildrop{Domain: domain}
	if len(posts) > 0 {
		drop.NewestID = posts[0].ID
	}

	for i := range posts {
		post := &posts[i]
		raw, err := Render(ctx, post, ident, domain, opts)
		if err != nil {
			return nil, err
		}
		drop.Items = append(drop.Items, Item{
			PostID: post.ID,
			UID:    post.ID + "@" + domain,
			Raw:    raw,
		})
	}

	return drop, nil
}

// Count returns the number of messages in the maildrop.
func (d *Maildrop) Count() int {
	return len(d.Items)
}

// TotalSize returns the total size of all messages in octets.
func (d *Maildrop) TotalSize() int64 {
	var total int64
	for i := range d.Items {
		total += d.Items[i].Size()
	}
	return total
}

// Item returns the item for a 1-based message number, or nil when the
// number is out of range.
func (d *Maildrop) Item(msgNum int) *Item {
	if msgNum < 1 || msgNum > len(d.Items) {
		return nil
	}
	return &d.Items[msgNum-1]
}
