package mastodon

// Account identifies the author of a post.
type Account struct {
	Acct        string `json:"acct"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// MediaAttachment is a media file attached to a post.
type MediaAttachment struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// Post is a status from the home timeline.
//
// https://docs.joinmastodon.org/entities/Status/
type Post struct {
	ID               string            `json:"id"`
	CreatedAt        string            `json:"created_at"`
	Content          string            `json:"content"`
	InReplyToID      *string           `json:"in_reply_to_id"`
	Account          Account           `json:"account"`
	MediaAttachments []MediaAttachment `json:"media_attachments"`
	Reblog           *Post             `json:"reblog"`
}

// Source returns the post whose content and media should be rendered,
// resolving boosts to the boosted post. The boolean reports whether the
// post was a boost.
func (p *Post) Source() (*Post, bool) {
	if p.Reblog != nil {
		return p.Reblog, true
	}
	return p, false
}

// CredentialAccount is the result of verifying credentials.
//
// https://docs.joinmastodon.org/methods/accounts/#verify_credentials
type CredentialAccount struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// StatusForm is the submission body for creating a status.
type StatusForm struct {
	Status      string   `json:"status"`
	InReplyToID string   `json:"in_reply_to_id,omitempty"`
	MediaIDs    []string `json:"media_ids,omitempty"`
}

// Media is a downloaded media file, used when rendering posts with
// attachment or inline delivery.
type Media struct {
	Filename    string
	ContentType string
	Data        []byte
}
