package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EffectiveConfigResult carries the merged configuration plus provenance
// information used by the startup banner.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	Source string // "flags", "env", "config" or a comma-joined combination
}

// Load reads a YAML config file from path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseCommandFlags defines and parses command-line flags and returns their
// values along with a map indicating which flags were explicitly set.
func ParseCommandFlags() (addr string, dataRoot string, cfgPath string, setFlags map[string]bool) {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dataPtr := flag.String("data", "./data", "Data root for the file backend")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return *addrPtr, *dataPtr, *cfgPtr, setFlags
}

// ResolveConfigPath decides the config file path using the flag-provided
// value and the CONTEXTDB_CONFIG environment variable when the flag was not
// set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("CONTEXTDB_CONFIG"); p != "" {
		return p
	}
	return flagPath
}

// LoadEnvOverrides applies CONTEXTDB_* environment overrides onto cfg and
// reports whether any env vars were used.
func LoadEnvOverrides(cfg *Config) bool {
	envUsed := false
	parseList := func(v string) []string {
		if v == "" {
			return nil
		}
		var parts []string
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				parts = append(parts, s)
			}
		}
		return parts
	}

	if v := os.Getenv("CONTEXTDB_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	} else {
		if host := os.Getenv("CONTEXTDB_ADDRESS"); host != "" {
			envUsed = true
			cfg.Server.Address = host
		}
		if port := os.Getenv("CONTEXTDB_PORT"); port != "" {
			envUsed = true
			if pi, err := strconv.Atoi(port); err == nil {
				cfg.Server.Port = pi
			}
		}
	}

	if v := os.Getenv("CONTEXTDB_BACKEND"); v != "" {
		envUsed = true
		cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("CONTEXTDB_DATA_ROOT"); v != "" {
		envUsed = true
		cfg.Storage.DataRoot = v
	}
	if v := os.Getenv("CONTEXTDB_PEBBLE_PATH"); v != "" {
		envUsed = true
		cfg.Storage.PebblePath = v
	}
	if v := os.Getenv("CONTEXTDB_POSTGRES_DSN"); v != "" {
		envUsed = true
		cfg.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("CONTEXTDB_CORS_ORIGINS"); v != "" {
		envUsed = true
		cfg.Security.CORS.AllowedOrigins = parseList(v)
	}
	if v := os.Getenv("CONTEXTDB_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envUsed = true
			cfg.Security.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("CONTEXTDB_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Security.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("CONTEXTDB_IP_WHITELIST"); v != "" {
		envUsed = true
		cfg.Security.IPWhitelist = parseList(v)
	}
	if v := os.Getenv("CONTEXTDB_API_BACKEND_KEYS"); v != "" {
		envUsed = true
		cfg.Security.APIKeys.Backend = parseList(v)
	}
	if v := os.Getenv("CONTEXTDB_API_FRONTEND_KEYS"); v != "" {
		envUsed = true
		cfg.Security.APIKeys.Frontend = parseList(v)
	}
	if v := os.Getenv("CONTEXTDB_API_ADMIN_KEYS"); v != "" {
		envUsed = true
		cfg.Security.APIKeys.Admin = parseList(v)
	}
	if v := os.Getenv("CONTEXTDB_REQUIRE_PRINCIPAL"); v != "" {
		envUsed = true
		b := false
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes":
			b = true
		}
		cfg.Security.RequirePrincipal = &b
	}
	if c := os.Getenv("CONTEXTDB_TLS_CERT"); c != "" {
		envUsed = true
		cfg.Server.TLS.CertFile = c
	}
	if k := os.Getenv("CONTEXTDB_TLS_KEY"); k != "" {
		envUsed = true
		cfg.Server.TLS.KeyFile = k
	}
	return envUsed
}

// LoadEffective loads config from the given path and applies environment
// overrides. A missing config file is not an error; env and defaults apply.
func LoadEffective(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err != nil {
		cfg = &Config{}
	}
	envUsed := LoadEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg, envUsed, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "file"
	}
	if cfg.Storage.DataRoot == "" {
		cfg.Storage.DataRoot = "./data"
	}
	if cfg.Storage.PebblePath == "" {
		cfg.Storage.PebblePath = "./.database"
	}
}

// Validate checks the effective storage and security settings for
// consistency. The principal requirement must match the backend's ability
// to enforce it: only the postgres backend scopes logs by owner.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "file", "pebble":
		if c.Security.RequirePrincipal != nil && *c.Security.RequirePrincipal {
			return fmt.Errorf("security.require_principal needs the postgres backend; the %s backend does not scope by owner", c.Storage.Backend)
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required for the postgres backend")
		}
		if c.Security.RequirePrincipal != nil && !*c.Security.RequirePrincipal {
			return fmt.Errorf("the postgres backend scopes every log by owner; security.require_principal cannot be disabled")
		}
	default:
		return fmt.Errorf("unknown storage backend: %q", c.Storage.Backend)
	}
	return nil
}
