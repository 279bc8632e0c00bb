// Package mastodon provides a minimal client for the handful of REST
// endpoints the gateway consumes: credential verification, the home
// timeline, media upload and status creation.
package mastodon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/mozillazg/go-unidecode"
)

// Client is a blocking HTTP client for one instance and one bearer token.
type Client struct {
	// BaseURL is the instance base URL, e.g. https://example.com.
	BaseURL string

	// Token is the bearer token placed verbatim in Authorization headers.
	Token string

	// FoldASCII transliterates the raw timeline JSON to ASCII before
	// decoding, so every downstream consumer sees folded text.
	FoldASCII bool

	// HTTPClient is the underlying client; http.DefaultClient when nil.
	HTTPClient *http.Client
}

// NewClient creates a Client for the given instance base URL and token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: &http.Client{},
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// do issues the request with the bearer token attached and returns the
// response body. Non-2xx responses are returned as errors.
func (c *Client) do(req *http.Request) ([]byte, http.Header, error) {
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.Header, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, resp.Header, fmt.Errorf("%s %s: unexpected status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	return body, resp.Header, nil
}

// VerifyCredentials checks the token against the instance and returns the
// authenticated account.
func (c *Client) VerifyCredentials(ctx context.Context) (*CredentialAccount, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/v1/accounts/verify_credentials", nil)
	if err != nil {
		return nil, err
	}

	body, _, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("verifying credentials: %w", err)
	}

	var account CredentialAccount
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, fmt.Errorf("decoding credential account: %w", err)
	}

	return &account, nil
}

// HomeTimeline fetches up to limit posts from the home timeline, newest
// first. A non-empty sinceID bounds the fetch to posts strictly newer
// than that id.
func (c *Client) HomeTimeline(ctx context.Context, limit int, sinceID string) ([]Post, error) {
	u := c.BaseURL + "/api/v1/timelines/home?limit=" + strconv.Itoa(limit)
	if sinceID != "" {
		u += "&since_id=" + url.QueryEscape(sinceID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	body, _, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching timeline: %w", err)
	}

	// Folding happens on the raw JSON text so that content, display
	// names and alt text all come out ASCII, the same as the upstream
	// would have sent them.
	if c.FoldASCII {
		body = []byte(unidecode.Unidecode(string(body)))
	}

	var posts []Post
	if err := json.Unmarshal(body, &posts); err != nil {
		return nil, fmt.Errorf("decoding timeline: %w", err)
	}

	return posts, nil
}

// UploadMedia uploads one media file and returns the media id to carry in
// a subsequent status submission.
func (c *Client) UploadMedia(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	partHeader.Set("Content-Type", contentType)

	part, err := mw.CreatePart(partHeader)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v2/media", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	body, _, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("uploading media: %w", err)
	}

	var uploaded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &uploaded); err != nil {
		return "", fmt.Errorf("decoding media upload response: %w", err)
	}

	return uploaded.ID, nil
}

// PostStatus submits a new status.
func (c *Client) PostStatus(ctx context.Context, form StatusForm) error {
	payload, err := json.Marshal(form)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/statuses", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if _, _, err := c.do(req); err != nil {
		return fmt.Errorf("posting status: %w", err)
	}

	return nil
}

// FetchMedia downloads a media attachment for attachment or inline
// rendering. The content type comes from the response header and the
// filename from the last path segment of the URL.
func (c *Client) FetchMedia(ctx context.Context, mediaURL string) (*Media, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching media %s: unexpected status %d", mediaURL, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading media body: %w", err)
	}

	filename := mediaURL
	if i := strings.LastIndex(filename, "/"); i >= 0 {
		filename = filename[i+1:]
	}

	return &Media{
		Filename:    filename,
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
