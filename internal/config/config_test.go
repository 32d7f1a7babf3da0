package config

import (
	"testing"
	"time"
)

func TestLoadRequiresNodeID(t *testing.T) {
	t.Setenv("MURE_NODE_ID", "")
	t.Setenv("MURE_REGION", "us")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when MURE_NODE_ID is missing")
	}
}

func TestLoadRequiresRegion(t *testing.T) {
	t.Setenv("MURE_NODE_ID", "node-a")
	t.Setenv("MURE_REGION", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when MURE_REGION is missing")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MURE_NODE_ID", "node-a")
	t.Setenv("MURE_REGION", "us")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.AutoConnect {
		t.Fatal("expected AutoConnect default true")
	}
	if cfg.MaxPeers != 10 {
		t.Fatalf("expected MaxPeers default 10, got %d", cfg.MaxPeers)
	}
	if cfg.SyncInterval != 60*time.Second {
		t.Fatalf("expected SyncInterval default 60s, got %s", cfg.SyncInterval)
	}
	if cfg.MaxSyncBatchSize != 100 {
		t.Fatalf("expected MaxSyncBatchSize default 100, got %d", cfg.MaxSyncBatchSize)
	}
	if cfg.RecordTTL != 7*24*time.Hour {
		t.Fatalf("expected RecordTTL default 7d, got %s", cfg.RecordTTL)
	}
	if cfg.StoreDriver != "sqlite" {
		t.Fatalf("expected StoreDriver default sqlite, got %q", cfg.StoreDriver)
	}
	if !cfg.RateLimitEnabled || cfg.RateLimitBurst != 100 {
		t.Fatalf("expected rate limit enabled with burst 100, got %v/%d",
			cfg.RateLimitEnabled, cfg.RateLimitBurst)
	}
}

func TestParseSkipsValidation(t *testing.T) {
	t.Setenv("MURE_NODE_ID", "")
	t.Setenv("MURE_REGION", "")

	// Parse must succeed so callers can apply overrides before Validate.
	cfg := Parse()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to fail without identity")
	}
	cfg.NodeID = "node-a"
	cfg.Region = "us"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate after overrides: %v", err)
	}
}

func TestLoadBootstrapPeersList(t *testing.T) {
	t.Setenv("MURE_NODE_ID", "node-a")
	t.Setenv("MURE_REGION", "us")
	t.Setenv("MURE_BOOTSTRAP_PEERS", "http://peer1:7410, http://peer2:7410 ,,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.BootstrapPeers) != 2 {
		t.Fatalf("expected 2 bootstrap peers, got %v", cfg.BootstrapPeers)
	}
	if cfg.BootstrapPeers[1] != "http://peer2:7410" {
		t.Fatalf("expected trimmed address, got %q", cfg.BootstrapPeers[1])
	}
}

func TestValidatePostgresNeedsURL(t *testing.T) {
	cfg := Config{
		NodeID:              "node-a",
		Region:              "us",
		MaxPeers:            10,
		MaxSyncBatchSize:    100,
		ReconnectMin:        5 * time.Second,
		ReconnectMax:        10 * time.Second,
		MaxRequestBodyBytes: 1024,
		StoreDriver:         "postgres",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for postgres driver without DATABASE_URL")
	}
	cfg.DatabaseURL = "postgres://localhost:5432/mure"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateReconnectWindow(t *testing.T) {
	cfg := Config{
		NodeID:              "node-a",
		Region:              "us",
		MaxPeers:            10,
		MaxSyncBatchSize:    100,
		ReconnectMin:        10 * time.Second,
		ReconnectMax:        5 * time.Second,
		MaxRequestBodyBytes: 1024,
		StoreDriver:         "memory",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for inverted reconnect window")
	}
}
