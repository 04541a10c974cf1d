// ABOUTME: Server configuration loaded from POSTPILOT_* environment variables.
// ABOUTME: Enforces security constraint: remote access requires auth token.
package server

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// ConfigError represents configuration validation errors.
var (
	ErrRemoteWithoutToken = errors.New(
		"POSTPILOT_ALLOW_REMOTE is true but POSTPILOT_AUTH_TOKEN is not set; refusing to start without authentication",
	)
	ErrNonLoopbackBind = errors.New(
		"POSTPILOT_BIND is a non-loopback address but POSTPILOT_ALLOW_REMOTE is not true; set POSTPILOT_ALLOW_REMOTE=true and POSTPILOT_AUTH_TOKEN to allow remote access",
	)
)

// Config holds server configuration loaded from environment variables.
type Config struct {
	Home            string // Data directory (POSTPILOT_HOME, default: ~/.postpilot)
	Bind            string // Socket address (POSTPILOT_BIND, default: 127.0.0.1:8640)
	AllowRemote     bool   // Allow non-loopback connections (POSTPILOT_ALLOW_REMOTE, default: false)
	AuthToken       string // Bearer token for API auth (POSTPILOT_AUTH_TOKEN, optional)
	DatabaseURL     string // Postgres DSN for the credit ledger (POSTPILOT_DATABASE_URL, optional; sqlite in Home otherwise)
	CredentialsFile string // Provider credentials YAML (POSTPILOT_CREDENTIALS, default: Home/credentials.yaml)
	Generator       string // Generation backend (POSTPILOT_GENERATOR, default: openai)
	GeneratorURL    string // Base URL for the http generator or an OpenAI-compatible endpoint (POSTPILOT_GENERATOR_URL)
	DefaultModel    string // Text model name (POSTPILOT_DEFAULT_MODEL, optional)
	GraphURL        string // Graph API base URL (POSTPILOT_GRAPH_URL)
	GraphPageID     string // Target page ID (POSTPILOT_GRAPH_PAGE_ID)
	GraphToken      string // Page access token (POSTPILOT_GRAPH_TOKEN)
}

// ConfigFromEnv loads configuration from POSTPILOT_* environment variables with sensible defaults.
func ConfigFromEnv() (*Config, error) {
	home := envOrDefault("POSTPILOT_HOME", "")
	if home == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = "/tmp"
		}
		home = filepath.Join(homeDir, ".postpilot")
	}

	bind := envOrDefault("POSTPILOT_BIND", "127.0.0.1:8640")

	allowRemote := false
	if v := os.Getenv("POSTPILOT_ALLOW_REMOTE"); v == "true" || v == "1" || v == "yes" {
		allowRemote = true
	}

	authToken := os.Getenv("POSTPILOT_AUTH_TOKEN")
	credentialsFile := envOrDefault("POSTPILOT_CREDENTIALS", filepath.Join(home, "credentials.yaml"))

	// Security: remote access requires auth token
	if allowRemote && authToken == "" {
		return nil, ErrRemoteWithoutToken
	}

	// Security: refuse non-loopback binds unless explicitly opting into remote access.
	// Checks both IP literals and hostnames; only 127.0.0.0/8, ::1, and "localhost"
	// are considered safe.
	if !allowRemote {
		if host, _, err := net.SplitHostPort(bind); err == nil && host != "" {
			ip := net.ParseIP(host)
			switch {
			case ip != nil && ip.IsLoopback():
				// Safe: 127.x.x.x or ::1
			case ip != nil:
				// Non-loopback IP literal (e.g. 0.0.0.0, 192.168.x.x)
				return nil, fmt.Errorf("%w: POSTPILOT_BIND=%s", ErrNonLoopbackBind, bind)
			case host == "localhost":
				// Safe: conventional loopback hostname
			default:
				// Non-localhost hostname (e.g. myhost, example.com)
				return nil, fmt.Errorf("%w: POSTPILOT_BIND=%s", ErrNonLoopbackBind, bind)
			}
		}
	}

	return &Config{
		Home:            home,
		Bind:            bind,
		AllowRemote:     allowRemote,
		AuthToken:       authToken,
		DatabaseURL:     os.Getenv("POSTPILOT_DATABASE_URL"),
		CredentialsFile: credentialsFile,
		Generator:       envOrDefault("POSTPILOT_GENERATOR", "openai"),
		GeneratorURL:    os.Getenv("POSTPILOT_GENERATOR_URL"),
		DefaultModel:    os.Getenv("POSTPILOT_DEFAULT_MODEL"),
		GraphURL:        os.Getenv("POSTPILOT_GRAPH_URL"),
		GraphPageID:     os.Getenv("POSTPILOT_GRAPH_PAGE_ID"),
		GraphToken:      os.Getenv("POSTPILOT_GRAPH_TOKEN"),
	}, nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
