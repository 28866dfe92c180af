package storage

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestLoadServerConfigCreatesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadServerConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AuditCollection != "auditlogs" {
		t.Errorf("AuditCollection = %q, want auditlogs", cfg.AuditCollection)
	}
	if cfg.AuditLimit != 1000 {
		t.Errorf("AuditLimit = %d, want 1000", cfg.AuditLimit)
	}
	if !slices.Contains(cfg.Collections, "books") {
		t.Errorf("Default collections missing books: %v", cfg.Collections)
	}
	if _, err := os.Stat(filepath.Join(dir, "server_config.json")); err != nil {
		t.Errorf("Config file was not created: %v", err)
	}

	// Reload returns the persisted values.
	cfg2, err := LoadServerConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(cfg.Collections, cfg2.Collections) {
		t.Errorf("Reload mismatch: %v != %v", cfg.Collections, cfg2.Collections)
	}
}

func TestLoadServerConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultServerConfig()
	cfg.Collections = []string{"books", "members"}
	cfg.AuditLimit = 50
	cfg.RateLimits.WriteRatePerMin = 120
	if err := cfg.Save(dir); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadServerConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(loaded.Collections, []string{"books", "members"}) {
		t.Errorf("Collections = %v", loaded.Collections)
	}
	if loaded.AuditLimit != 50 {
		t.Errorf("AuditLimit = %d, want 50", loaded.AuditLimit)
	}
	if loaded.RateLimits.WriteRatePerMin != 120 {
		t.Errorf("WriteRatePerMin = %d, want 120", loaded.RateLimits.WriteRatePerMin)
	}
}

func TestLoadServerConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "server_config.json"), []byte(`{"collections": ["../etc"], "audit_collection": "auditlogs", "audit_limit": 10}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadServerConfig(dir); err == nil {
		t.Error("Expected error for path-unsafe collection name")
	}
}

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ServerConfig)
	}{
		{"no collections", func(c *ServerConfig) { c.Collections = nil }},
		{"invalid name", func(c *ServerConfig) { c.Collections = []string{"bad name"} }},
		{"duplicate name", func(c *ServerConfig) { c.Collections = []string{"books", "books"} }},
		{"empty audit collection", func(c *ServerConfig) { c.AuditCollection = "" }},
		{"zero audit limit", func(c *ServerConfig) { c.AuditLimit = 0 }},
		{"negative rate limit", func(c *ServerConfig) { c.RateLimits.WriteRatePerMin = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultServerConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestAllCollectionsIncludesAudit(t *testing.T) {
	cfg := DefaultServerConfig()
	all := cfg.AllCollections()
	if !slices.Contains(all, "auditlogs") {
		t.Errorf("AllCollections missing audit collection: %v", all)
	}
	if !slices.IsSorted(all) {
		t.Errorf("AllCollections not sorted: %v", all)
	}

	// No duplicate when the audit collection is already declared.
	cfg.Collections = append(cfg.Collections, "auditlogs")
	all = cfg.AllCollections()
	n := 0
	for _, name := range all {
		if name == "auditlogs" {
			n++
		}
	}
	if n != 1 {
		t.Errorf("auditlogs appears %d times in %v", n, all)
	}
}
