package config

import (
	"errors"
	"flag"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// Flags holds command-line flag values.
type Flags struct {
	ConfigPath string
	Hostname   string
	LogLevel   string

	Account string
	Token   string

	Address  string
	POP3Port int
	SMTPPort int
	NoSMTP   bool

	ASCII      bool
	HTML       bool
	Attachment bool
	Inline     bool

	MaxConnections int
	MetricsAddress string
}

// ParseFlags parses command-line flags and returns a Flags struct.
func ParseFlags() *Flags {
	f := &Flags{}

	flag.StringVar(&f.ConfigPath, "config", "./mop3d.toml", "Path to configuration file")
	flag.StringVar(&f.Hostname, "hostname", "", "Server hostname used in banners")
	flag.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&f.Account, "account", "", "Mastodon account (user@example.com); overrides the POP3/SMTP username")
	flag.StringVar(&f.Token, "token", "", "Mastodon bearer token; overrides the POP3 password, required for SMTP")
	flag.StringVar(&f.Address, "address", "", "Address to listen on")
	flag.IntVar(&f.POP3Port, "pop3port", 0, "POP3 listening port")
	flag.IntVar(&f.SMTPPort, "smtpport", 0, "SMTP listening port")
	flag.BoolVar(&f.NoSMTP, "nosmtp", false, "Disable the SMTP listener; posts can only be received, not sent")
	flag.BoolVar(&f.ASCII, "ascii", false, "Only send ASCII to clients, gracefully converting unicode")
	flag.BoolVar(&f.HTML, "html", false, "Emit HTML bodies instead of converting posts to plain text")
	flag.BoolVar(&f.Attachment, "attachment", false, "Deliver images as binary attachments; not with --inline")
	flag.BoolVar(&f.Inline, "inline", false, "Deliver images as inline attachments; not with --attachment")
	flag.IntVar(&f.MaxConnections, "max-connections", 0, "Maximum concurrent connections per listener")
	flag.StringVar(&f.MetricsAddress, "metrics-address", "", "Enable Prometheus metrics on this address")

	flag.Parse()
	return f
}

// Load parses a TOML configuration file and returns the Config.
// If the file does not exist, returns the default configuration.
// Values under [mop3d] take precedence over shared [server] values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig FileConfig
	if err := toml.Unmarshal(data, &fileConfig); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	if fileConfig.Server.Hostname != "" {
		cfg.Hostname = fileConfig.Server.Hostname
	}

	cfg = mergeConfig(cfg, fileConfig.Mop3d)

	return cfg, nil
}

// ApplyFlags merges command-line flag values into the config.
// Non-zero flag values override config file values. The --attachment and
// --inline switches fold into the single Media mode and may not be
// combined.
func ApplyFlags(cfg Config, f *Flags) (Config, error) {
	if f.Hostname != "" {
		cfg.Hostname = f.Hostname
	}

	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}

	if f.Account != "" {
		cfg.Account = f.Account
	}

	if f.Token != "" {
		cfg.Token = f.Token
	}

	if f.Address != "" {
		cfg.Address = f.Address
	}

	if f.POP3Port > 0 {
		cfg.POP3Port = f.POP3Port
	}

	if f.SMTPPort > 0 {
		cfg.SMTPPort = f.SMTPPort
	}

	if f.NoSMTP {
		cfg.NoSMTP = true
	}

	if f.ASCII {
		cfg.ASCII = true
	}

	if f.HTML {
		cfg.HTML = true
	}

	if f.Attachment && f.Inline {
		return cfg, errors.New("--attachment and --inline are mutually exclusive")
	}
	if f.Attachment {
		cfg.Media = MediaAttachment
	}
	if f.Inline {
		cfg.Media = MediaInline
	}

	if f.MaxConnections > 0 {
		cfg.Limits.MaxConnections = f.MaxConnections
	}

	if f.MetricsAddress != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = f.MetricsAddress
	}

	return cfg, nil
}

// LoadWithFlags loads configuration from the path specified in flags,
// then applies flag overrides.
func LoadWithFlags(f *Flags) (Config, error) {
	cfg, err := Load(f.ConfigPath)
	if err != nil {
		return cfg, err
	}
	return ApplyFlags(cfg, f)
}

// mergeConfig merges non-zero values from src into dst.
func mergeConfig(dst, src Config) Config {
	if src.Hostname != "" {
		dst.Hostname = src.Hostname
	}

	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}

	if src.Account != "" {
		dst.Account = src.Account
	}

	if src.Token != "" {
		dst.Token = src.Token
	}

	if src.Address != "" {
		dst.Address = src.Address
	}

	if src.POP3Port > 0 {
		dst.POP3Port = src.POP3Port
	}

	if src.SMTPPort > 0 {
		dst.SMTPPort = src.SMTPPort
	}

	if src.NoSMTP {
		dst.NoSMTP = true
	}

	if src.ASCII {
		dst.ASCII = true
	}

	if src.HTML {
		dst.HTML = true
	}

	if src.Media != "" {
		dst.Media = src.Media
	}

	if src.Timeouts.Command != "" {
		dst.Timeouts.Command = src.Timeouts.Command
	}

	if src.Timeouts.Idle != "" {
		dst.Timeouts.Idle = src.Timeouts.Idle
	}

	if src.Limits.MaxConnections > 0 {
		dst.Limits.MaxConnections = src.Limits.MaxConnections
	}

	if src.Metrics.Enabled {
		dst.Metrics.Enabled = true
	}

	if src.Metrics.Address != "" {
		dst.Metrics.Address = src.Metrics.Address
	}

	if src.Metrics.Path != "" {
		dst.Metrics.Path = src.Metrics.Path
	}

	return dst
}
