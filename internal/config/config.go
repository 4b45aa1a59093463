package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultAddr             = ":3000"
	DefaultDBPath           = "nzcp_state.db"
	DefaultAuthorityTimeout = 10 * time.Second
)

// ServerConfig captures the tunables required to start the verifier server.
type ServerConfig struct {
	Addr      string
	DBPath    string
	Logger    *log.Logger
	Authority AuthorityConfig
}

// AuthorityConfig describes where and how the trust authority's DID document is fetched.
type AuthorityConfig struct {
	URL         string
	Timeout     time.Duration
	Retries     int
	InsecureTLS bool
	// CacheTTL of zero disables caching.
	CacheTTL time.Duration
	Logger   *log.Logger
}

// FromEnv reads the server configuration from the process environment.
func FromEnv() (ServerConfig, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (ServerConfig, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := ServerConfig{
		Addr:   get("NZCP_ADDR", DefaultAddr),
		DBPath: get("NZCP_DB_PATH", DefaultDBPath),
		Authority: AuthorityConfig{
			URL: get("AUTHORITY_URL", ""),
		},
	}

	var err error
	if cfg.Authority.Timeout, err = time.ParseDuration(get("AUTHORITY_TIMEOUT", DefaultAuthorityTimeout.String())); err != nil {
		return ServerConfig{}, fmt.Errorf("AUTHORITY_TIMEOUT: %w", err)
	}
	if cfg.Authority.Retries, err = strconv.Atoi(get("AUTHORITY_RETRIES", "0")); err != nil {
		return ServerConfig{}, fmt.Errorf("AUTHORITY_RETRIES: %w", err)
	}
	if cfg.Authority.Retries < 0 {
		return ServerConfig{}, fmt.Errorf("AUTHORITY_RETRIES: must not be negative")
	}
	if cfg.Authority.InsecureTLS, err = strconv.ParseBool(get("AUTHORITY_INSECURE_TLS", "false")); err != nil {
		return ServerConfig{}, fmt.Errorf("AUTHORITY_INSECURE_TLS: %w", err)
	}
	if cfg.Authority.CacheTTL, err = time.ParseDuration(get("AUTHORITY_CACHE_TTL", "0s")); err != nil {
		return ServerConfig{}, fmt.Errorf("AUTHORITY_CACHE_TTL: %w", err)
	}
	return cfg, nil
}

// Validate reports settings the server cannot start without.
func (c ServerConfig) Validate() error {
	if c.Authority.URL == "" {
		return fmt.Errorf("AUTHORITY_URL is required")
	}
	if c.Authority.Timeout <= 0 {
		return fmt.Errorf("authority timeout must be positive")
	}
	return nil
}
