// Package config provides configuration management for the MOP3 gateway.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// MediaMode selects how a post's media attachments are delivered to the
// mail client. The three modes are mutually exclusive.
type MediaMode string

const (
	// MediaLink appends each media URL as a line of body text.
	MediaLink MediaMode = "link"
	// MediaAttachment downloads each media file and adds it as a MIME
	// attachment part.
	MediaAttachment MediaMode = "attachment"
	// MediaInline is MediaAttachment with Content-Disposition: inline.
	MediaInline MediaMode = "inline"
)

// FileConfig is the top-level wrapper for the configuration file.
// Shared settings live under [server], gateway settings under [mop3d].
type FileConfig struct {
	Server ServerConfig `toml:"server"`
	Mop3d  Config       `toml:"mop3d"`
}

// ServerConfig holds settings shared with other services on the host.
type ServerConfig struct {
	Hostname string `toml:"hostname"`
}

// Config holds the gateway configuration.
type Config struct {
	Hostname string `toml:"hostname"`
	LogLevel string `toml:"log_level"`

	// Upstream account overrides. Account overrides the username supplied
	// over POP3/SMTP; Token overrides the POP3 password and is required
	// for SMTP submission.
	Account string `toml:"account"`
	Token   string `toml:"token"`

	// Listener settings.
	Address  string `toml:"address"`
	POP3Port int    `toml:"pop3_port"`
	SMTPPort int    `toml:"smtp_port"`
	NoSMTP   bool   `toml:"no_smtp"`

	// Rendering settings.
	ASCII bool      `toml:"ascii"`
	HTML  bool      `toml:"html"`
	Media MediaMode `toml:"media"`

	Timeouts TimeoutsConfig `toml:"timeouts"`
	Limits   LimitsConfig   `toml:"limits"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// TimeoutsConfig defines timeout durations as duration strings.
type TimeoutsConfig struct {
	Command string `toml:"command"`
	Idle    string `toml:"idle"`
}

// LimitsConfig defines resource limits for the listeners.
type LimitsConfig struct {
	MaxConnections int `toml:"max_connections"`
}

// MetricsConfig holds configuration for Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Path    string `toml:"path"`
}

// Default returns a Config with sensible default values.
func Default() Config {
	return Config{
		Hostname: "localhost",
		LogLevel: "info",
		Address:  "127.0.0.1",
		POP3Port: 110,
		SMTPPort: 25,
		Media:    MediaLink,
		Timeouts: TimeoutsConfig{
			Command: "5m",
			Idle:    "30m",
		},
		Limits: LimitsConfig{
			MaxConnections: 100,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9101",
			Path:    "/metrics",
		},
	}
}

// Validate checks that the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c.Hostname == "" {
		return errors.New("hostname is required")
	}

	if c.Address == "" {
		return errors.New("listen address is required")
	}

	if c.POP3Port < 1 || c.POP3Port > 65535 {
		return fmt.Errorf("invalid POP3 port %d", c.POP3Port)
	}

	if !c.NoSMTP {
		if c.SMTPPort < 1 || c.SMTPPort > 65535 {
			return fmt.Errorf("invalid SMTP port %d", c.SMTPPort)
		}
		if c.Token == "" {
			return errors.New("token is required to run the SMTP listener (set no_smtp to disable)")
		}
	}

	switch c.Media {
	case MediaLink, MediaAttachment, MediaInline:
	default:
		return fmt.Errorf("invalid media mode %q (valid: link, attachment, inline)", c.Media)
	}

	if c.Limits.MaxConnections <= 0 {
		return errors.New("max_connections must be positive")
	}

	if c.Timeouts.Command != "" {
		if _, err := time.ParseDuration(c.Timeouts.Command); err != nil {
			return fmt.Errorf("invalid command timeout: %w", err)
		}
	}

	if c.Timeouts.Idle != "" {
		if _, err := time.ParseDuration(c.Timeouts.Idle); err != nil {
			return fmt.Errorf("invalid idle timeout: %w", err)
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Address == "" {
			return errors.New("metrics address is required when metrics are enabled")
		}
		if c.Metrics.Path == "" {
			return errors.New("metrics path is required when metrics are enabled")
		}
	}

	return nil
}

// POP3Addr returns the POP3 listener address in host:port form.
func (c *Config) POP3Addr() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.POP3Port))
}

// SMTPAddr returns the SMTP listener address in host:port form.
func (c *Config) SMTPAddr() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.SMTPPort))
}

// CommandTimeout returns the per-command read timeout as a time.Duration.
// Returns 5 minutes if not configured or invalid.
func (c *TimeoutsConfig) CommandTimeout() time.Duration {
	if c.Command == "" {
		return 5 * time.Minute
	}
	d, err := time.ParseDuration(c.Command)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// IdleTimeout returns the idle timeout as a time.Duration.
// Returns 30 minutes if not configured or invalid.
func (c *TimeoutsConfig) IdleTimeout() time.Duration {
	if c.Idle == "" {
		return 30 * time.Minute
	}
	d, err := time.ParseDuration(c.Idle)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}
