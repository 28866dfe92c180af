// Manages server configuration stored in server_config.json.

// Package storage holds the application-level configuration for the
// file-backed document store: the declared collection set, audit retention,
// and HTTP rate limits.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
)

// collectionNameRe restricts collection names to what is safe as a file
// name inside the data directory.
var collectionNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ServerConfig stores all server-wide configuration.
// Loaded from server_config.json, created with defaults if missing.
type ServerConfig struct {
	// Collections is the static set of collection names. Fixed at startup;
	// there is no dynamic collection creation.
	Collections []string `json:"collections"`

	// AuditCollection is the audit log collection name.
	AuditCollection string `json:"audit_collection"`

	// AuditLimit caps the number of retained audit entries.
	AuditLimit int `json:"audit_limit"`

	// RateLimits defines rate limiting configuration.
	RateLimits RateLimits `json:"rate_limits"`
}

// RateLimits defines rate limiting configuration (requests per minute).
type RateLimits struct {
	// WriteRatePerMin limits write operations (insert, update, delete,
	// audit append) per client. 0 means unlimited.
	WriteRatePerMin int `json:"write_rate_per_min"`
}

// Validate checks that rate limit values are non-negative.
func (r *RateLimits) Validate() error {
	if r.WriteRatePerMin < 0 {
		return errors.New("write_rate_per_min must be non-negative")
	}
	return nil
}

// DefaultServerConfig returns the default configuration: the library
// application's collection set with a 1000-entry audit log.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Collections:     []string{"books", "users", "borrows", "settings", "notifications"},
		AuditCollection: "auditlogs",
		AuditLimit:      1000,
		RateLimits:      RateLimits{WriteRatePerMin: 0},
	}
}

// Validate checks that the configuration is valid.
func (c *ServerConfig) Validate() error {
	if len(c.Collections) == 0 {
		return errors.New("at least one collection is required")
	}
	seen := make(map[string]bool, len(c.Collections))
	for _, name := range c.Collections {
		if !collectionNameRe.MatchString(name) {
			return fmt.Errorf("invalid collection name %q", name)
		}
		if seen[name] {
			return fmt.Errorf("duplicate collection name %q", name)
		}
		seen[name] = true
	}
	if !collectionNameRe.MatchString(c.AuditCollection) {
		return fmt.Errorf("invalid audit collection name %q", c.AuditCollection)
	}
	if c.AuditLimit <= 0 {
		return errors.New("audit_limit must be positive")
	}
	if err := c.RateLimits.Validate(); err != nil {
		return fmt.Errorf("rate_limits: %w", err)
	}
	return nil
}

// AllCollections returns the declared collections plus the audit collection,
// sorted, without duplicates.
func (c *ServerConfig) AllCollections() []string {
	names := slices.Clone(c.Collections)
	if !slices.Contains(names, c.AuditCollection) {
		names = append(names, c.AuditCollection)
	}
	slices.Sort(names)
	return names
}

// LoadServerConfig loads configuration from dataDir/server_config.json.
// Creates the file with defaults if it doesn't exist.
func LoadServerConfig(dataDir string) (*ServerConfig, error) {
	path := filepath.Join(dataDir, "server_config.json")

	cfg := DefaultServerConfig()

	data, err := os.ReadFile(path) //nolint:gosec // G304: path is constructed from dataDir, not user input
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read server_config.json: %w", err)
		}
		// File doesn't exist, create it with defaults.
		if err := cfg.Save(dataDir); err != nil {
			return nil, err
		}
	} else {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse server_config.json: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server_config.json: %w", err)
	}
	return &cfg, nil
}

// Save saves configuration to dataDir/server_config.json.
func (c *ServerConfig) Save(dataDir string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(filepath.Join(dataDir, "server_config.json"), data, 0o600); err != nil {
		return fmt.Errorf("failed to write server_config.json: %w", err)
	}
	return nil
}
