package mastodon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVerifyCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/accounts/verify_credentials" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token123" {
			t.Errorf("Authorization = %q, want Bearer token123", got)
		}
		_, _ = w.Write([]byte(`{"username":"alice","display_name":"Alice"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "token123")
	account, err := client.VerifyCredentials(context.Background())
	if err != nil {
		t.Fatalf("VerifyCredentials() error = %v", err)
	}
	if account.Username != "alice" || account.DisplayName != "Alice" {
		t.Errorf("account = %+v", account)
	}
}

func TestVerifyCredentialsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "bad")
	if _, err := client.VerifyCredentials(context.Background()); err == nil {
		t.Error("VerifyCredentials() = nil error for 401")
	}
}

func TestHomeTimeline(t *testing.T) {
	t.Run("passes limit and since_id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("limit") != "40" {
				t.Errorf("limit = %q, want 40", q.Get("limit"))
			}
			if q.Get("since_id") != "99" {
				t.Errorf("since_id = %q, want 99", q.Get("since_id"))
			}
			_, _ = w.Write([]byte(`[{"id":"100","content":"<p>hi</p>"}]`))
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "t")
		posts, err := client.HomeTimeline(context.Background(), 40, "99")
		if err != nil {
			t.Fatalf("HomeTimeline() error = %v", err)
		}
		if len(posts) != 1 || posts[0].ID != "100" {
			t.Errorf("posts = %+v", posts)
		}
	})

	t.Run("omits since_id when empty", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Has("since_id") {
				t.Error("since_id should be absent")
			}
			_, _ = w.Write([]byte(`[]`))
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "t")
		if _, err := client.HomeTimeline(context.Background(), 40, ""); err != nil {
			t.Fatalf("HomeTimeline() error = %v", err)
		}
	})

	t.Run("folds to ASCII before decoding", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[{"id":"1","content":"héllo wörld","account":{"display_name":"Ünïcode"}}]`))
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "t")
		client.FoldASCII = true
		posts, err := client.HomeTimeline(context.Background(), 40, "")
		if err != nil {
			t.Fatalf("HomeTimeline() error = %v", err)
		}
		if posts[0].Content != "hello world" {
			t.Errorf("Content = %q, want folded ASCII", posts[0].Content)
		}
		if posts[0].Account.DisplayName != "Unicode" {
			t.Errorf("DisplayName = %q, want folded ASCII", posts[0].Account.DisplayName)
		}
	})
}

func TestUploadMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/media" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer func() { _ = file.Close() }()

		if header.Filename != "cat.jpg" {
			t.Errorf("filename = %q, want cat.jpg", header.Filename)
		}
		if ct := header.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("part Content-Type = %q, want image/jpeg", ct)
		}
		data, _ := io.ReadAll(file)
		if string(data) != "JPEGDATA" {
			t.Errorf("data = %q", data)
		}
		_, _ = w.Write([]byte(`{"id":"media-1"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "t")
	id, err := client.UploadMedia(context.Background(), "cat.jpg", "image/jpeg", []byte("JPEGDATA"))
	if err != nil {
		t.Fatalf("UploadMedia() error = %v", err)
	}
	if id != "media-1" {
		t.Errorf("id = %q, want media-1", id)
	}
}

func TestPostStatus(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/statuses" {
			t.Errorf("path = %q", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("body not JSON: %v", err)
		}
		_, _ = w.Write([]byte(`{"id":"5"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "t")
	err := client.PostStatus(context.Background(), StatusForm{
		Status:      "hello",
		InReplyToID: "42",
	})
	if err != nil {
		t.Fatalf("PostStatus() error = %v", err)
	}

	if got["status"] != "hello" {
		t.Errorf("status = %v, want hello", got["status"])
	}
	if got["in_reply_to_id"] != "42" {
		t.Errorf("in_reply_to_id = %v, want 42", got["in_reply_to_id"])
	}
	if _, ok := got["media_ids"]; ok {
		t.Error("media_ids should be omitted when empty")
	}
}

func TestFetchMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("PNGDATA"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "t")
	media, err := client.FetchMedia(context.Background(), srv.URL+"/media/files/dog.png")
	if err != nil {
		t.Fatalf("FetchMedia() error = %v", err)
	}
	if media.Filename != "dog.png" {
		t.Errorf("Filename = %q, want dog.png", media.Filename)
	}
	if media.ContentType != "image/png" {
		t.Errorf("ContentType = %q, want image/png", media.ContentType)
	}
	if string(media.Data) != "PNGDATA" {
		t.Errorf("Data = %q", media.Data)
	}
}
