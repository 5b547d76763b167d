package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Security   SecurityConfig   `yaml:"security"`
	Logging    LoggingConfig    `yaml:"logging"`
	Retention  RetentionConfig  `yaml:"retention"`
	Limits     LimitsConfig     `yaml:"limits"`
	Validation ValidationConfig `yaml:"validation"`
}

// ServerConfig holds http and tls settings.
type ServerConfig struct {
	Address string    `yaml:"address"`
	Port    int       `yaml:"port"`
	TLS     TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// StorageConfig selects and parameterizes the conversation store backend.
type StorageConfig struct {
	// Backend is one of "file", "pebble" or "postgres".
	Backend    string `yaml:"backend"`
	DataRoot   string `yaml:"data_root"`
	PebblePath string `yaml:"pebble_path"`
	Postgres   struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`
}

// SecurityConfig holds security related settings.
type SecurityConfig struct {
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	IPWhitelist []string `yaml:"ip_whitelist"`
	APIKeys     struct {
		Backend  []string `yaml:"backend"`
		Frontend []string `yaml:"frontend"`
		Admin    []string `yaml:"admin"`
	} `yaml:"api_keys"`
	// RequirePrincipal forces identity resolution on every request. Nil
	// defaults by backend: true for postgres, false otherwise.
	RequirePrincipal *bool `yaml:"require_principal"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// RetentionConfig holds configuration for the automatic trim runner.
type RetentionConfig struct {
	Enabled     bool      `yaml:"enabled"`
	Cron        string    `yaml:"cron"`
	MaxAge      Duration  `yaml:"max_age"`
	MaxMessages int       `yaml:"max_messages"`
	MaxBytes    SizeBytes `yaml:"max_bytes"`
	DryRun      bool      `yaml:"dry_run"`
}

// LimitsConfig caps request body sizes.
type LimitsConfig struct {
	MaxBodyBytes SizeBytes `yaml:"max_body_bytes"`
}

// ValidationConfig drives inbound record validation rules.
type ValidationConfig struct {
	RequireSender bool     `yaml:"require_sender"`
	MaxTextLen    int      `yaml:"max_text_len"`
	MaxSenderLen  int      `yaml:"max_sender_len"`
	Senders       []string `yaml:"senders"`
}

// Addr returns host:port for the HTTP server.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Server.Port
	if p == 0 {
		p = 8080
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// EffectiveRequirePrincipal resolves the principal requirement, defaulting
// by backend so the trust boundary stays consistent with the storage choice.
func (c *Config) EffectiveRequirePrincipal() bool {
	if c.Security.RequirePrincipal != nil {
		return *c.Security.RequirePrincipal
	}
	return c.Storage.Backend == "postgres"
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly
// strings like "64MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*s = 0
		return nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		*s = SizeBytes(v)
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*s = SizeBytes(i)
		return nil
	}
	return fmt.Errorf("invalid size value: %q", node.Value)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

// Duration is a wrapper around time.Duration that supports YAML parsing
// from strings like "720h" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	// allow numeric seconds
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
