package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	t.Run("missing file returns defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.POP3Port != 110 || cfg.Media != MediaLink {
			t.Errorf("Load() did not return defaults: %+v", cfg)
		}
	})

	t.Run("file values override defaults", func(t *testing.T) {
		content := `
[server]
hostname = "mail.example.com"

[mop3d]
account = "user@example.com"
token = "secret"
pop3_port = 1100
media = "attachment"

[mop3d.limits]
max_connections = 5
`
		path := filepath.Join(t.TempDir(), "mop3d.toml")
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Hostname != "mail.example.com" {
			t.Errorf("Hostname = %q, want mail.example.com", cfg.Hostname)
		}
		if cfg.Account != "user@example.com" {
			t.Errorf("Account = %q, want user@example.com", cfg.Account)
		}
		if cfg.POP3Port != 1100 {
			t.Errorf("POP3Port = %d, want 1100", cfg.POP3Port)
		}
		if cfg.SMTPPort != 25 {
			t.Errorf("SMTPPort = %d, want default 25", cfg.SMTPPort)
		}
		if cfg.Media != MediaAttachment {
			t.Errorf("Media = %q, want attachment", cfg.Media)
		}
		if cfg.Limits.MaxConnections != 5 {
			t.Errorf("MaxConnections = %d, want 5", cfg.Limits.MaxConnections)
		}
	})

	t.Run("malformed file is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.toml")
		if err := os.WriteFile(path, []byte("this is not toml = = ="), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Error("Load() = nil error for malformed file")
		}
	})
}

func TestApplyFlags(t *testing.T) {
	t.Run("flags override config", func(t *testing.T) {
		cfg := Default()
		cfg.Account = "file@example.com"

		got, err := ApplyFlags(cfg, &Flags{
			Account:  "flag@example.org",
			Token:    "flagtoken",
			POP3Port: 9110,
			ASCII:    true,
		})
		if err != nil {
			t.Fatalf("ApplyFlags() error = %v", err)
		}

		if got.Account != "flag@example.org" {
			t.Errorf("Account = %q, want flag@example.org", got.Account)
		}
		if got.Token != "flagtoken" {
			t.Errorf("Token = %q, want flagtoken", got.Token)
		}
		if got.POP3Port != 9110 {
			t.Errorf("POP3Port = %d, want 9110", got.POP3Port)
		}
		if !got.ASCII {
			t.Error("ASCII = false, want true")
		}
	})

	t.Run("attachment flag selects media mode", func(t *testing.T) {
		got, err := ApplyFlags(Default(), &Flags{Attachment: true})
		if err != nil {
			t.Fatalf("ApplyFlags() error = %v", err)
		}
		if got.Media != MediaAttachment {
			t.Errorf("Media = %q, want attachment", got.Media)
		}
	})

	t.Run("inline flag selects media mode", func(t *testing.T) {
		got, err := ApplyFlags(Default(), &Flags{Inline: true})
		if err != nil {
			t.Fatalf("ApplyFlags() error = %v", err)
		}
		if got.Media != MediaInline {
			t.Errorf("Media = %q, want inline", got.Media)
		}
	})

	t.Run("attachment and inline are mutually exclusive", func(t *testing.T) {
		_, err := ApplyFlags(Default(), &Flags{Attachment: true, Inline: true})
		if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
			t.Errorf("ApplyFlags() error = %v, want mutually exclusive error", err)
		}
	})

	t.Run("metrics address enables metrics", func(t *testing.T) {
		got, err := ApplyFlags(Default(), &Flags{MetricsAddress: ":9999"})
		if err != nil {
			t.Fatalf("ApplyFlags() error = %v", err)
		}
		if !got.Metrics.Enabled || got.Metrics.Address != ":9999" {
			t.Errorf("Metrics = %+v, want enabled on :9999", got.Metrics)
		}
	})
}
