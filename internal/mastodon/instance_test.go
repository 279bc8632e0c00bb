package mastodon

import "testing"

func TestInstance(t *testing.T) {
	tests := []struct {
		name       string
		cred       string
		wantDomain string
		wantURL    string
	}{
		{
			name:       "account credential",
			cred:       "user@example.com",
			wantDomain: "example.com",
			wantURL:    "https://example.com",
		},
		{
			name:       "bare domain",
			cred:       "example.com",
			wantDomain: "example.com",
			wantURL:    "https://example.com",
		},
		{
			name:       "already has scheme",
			cred:       "https://example.com",
			wantDomain: "https://example.com",
			wantURL:    "https://example.com",
		},
		{
			name:       "multiple at signs split on the last",
			cred:       "user@host@example.com",
			wantDomain: "example.com",
			wantURL:    "https://example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			domain, baseURL := Instance(tt.cred)
			if domain != tt.wantDomain {
				t.Errorf("domain = %q, want %q", domain, tt.wantDomain)
			}
			if baseURL != tt.wantURL {
				t.Errorf("baseURL = %q, want %q", baseURL, tt.wantURL)
			}
		})
	}
}
