// Package config loads and validates node configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all node configuration.
type Config struct {
	// Node identity.
	NodeID          string
	Region          string
	ProtocolVersion string

	// Swarm settings.
	BootstrapPeers       []string
	AutoConnect          bool
	MaxPeers             int
	ConnectionTimeout    time.Duration // per-dial and per-exchange deadline
	CoordinationInterval time.Duration
	ReconnectMin         time.Duration // jittered reconnect window lower bound
	ReconnectMax         time.Duration // jittered reconnect window upper bound
	PeerRetention        time.Duration // prune disconnected peers not seen for this long

	// Memory settings.
	SyncInterval        time.Duration
	ReplicateAll        bool
	MaxSyncBatchSize    int
	RecordTTL           time.Duration
	FullResyncThreshold time.Duration

	// Server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	MaxRequestBodyBytes int64
	RateLimitEnabled    bool
	RateLimitRPS        float64 // sustained requests per second per peer address
	RateLimitBurst      int

	// Storage settings.
	StoreDriver string // "sqlite", "postgres", or "memory"
	DatabaseURL string // required when StoreDriver is "postgres"
	SQLitePath  string

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible
// defaults and validates it.
func Load() (Config, error) {
	cfg := Parse()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse reads configuration from environment variables without validating,
// so callers can apply overrides before calling Validate.
func Parse() Config {
	return Config{
		NodeID:               envStr("MURE_NODE_ID", ""),
		Region:               envStr("MURE_REGION", ""),
		ProtocolVersion:      envStr("MURE_PROTOCOL_VERSION", "1.0"),
		BootstrapPeers:       envList("MURE_BOOTSTRAP_PEERS"),
		AutoConnect:          envBool("MURE_AUTO_CONNECT", true),
		MaxPeers:             envInt("MURE_MAX_PEERS", 10),
		ConnectionTimeout:    envDuration("MURE_CONNECTION_TIMEOUT", 5*time.Second),
		CoordinationInterval: envDuration("MURE_COORDINATION_INTERVAL", 30*time.Second),
		ReconnectMin:         envDuration("MURE_RECONNECT_MIN", 5*time.Second),
		ReconnectMax:         envDuration("MURE_RECONNECT_MAX", 10*time.Second),
		PeerRetention:        envDuration("MURE_PEER_RETENTION", 24*time.Hour),
		SyncInterval:         envDuration("MURE_SYNC_INTERVAL", 60*time.Second),
		ReplicateAll:         envBool("MURE_REPLICATE_ALL", false),
		MaxSyncBatchSize:     envInt("MURE_MAX_SYNC_BATCH_SIZE", 100),
		RecordTTL:            envDuration("MURE_RECORD_TTL", 7*24*time.Hour),
		FullResyncThreshold:  envDuration("MURE_FULL_RESYNC_THRESHOLD", 24*time.Hour),
		Port:                 envInt("MURE_PORT", 7410),
		ReadTimeout:          envDuration("MURE_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:         envDuration("MURE_WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBodyBytes:  int64(envInt("MURE_MAX_REQUEST_BODY_BYTES", 4*1024*1024)),
		RateLimitEnabled:     envBool("MURE_RATE_LIMIT_ENABLED", true),
		RateLimitRPS:         envFloat("MURE_RATE_LIMIT_RPS", 50),
		RateLimitBurst:       envInt("MURE_RATE_LIMIT_BURST", 100),
		StoreDriver:          envStr("MURE_STORE_DRIVER", "sqlite"),
		DatabaseURL:          envStr("DATABASE_URL", ""),
		SQLitePath:           envStr("MURE_SQLITE_PATH", "mure.db"),
		OTELEndpoint:         envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:         envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:          envStr("OTEL_SERVICE_NAME", "mure"),
		LogLevel:             envStr("MURE_LOG_LEVEL", "info"),
	}
}

// Validate checks that required configuration is present and coherent.
// Configuration errors are fatal: they surface at construction and are
// never retried.
func (c Config) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("config: MURE_NODE_ID is required")
	}
	if c.Region == "" {
		return fmt.Errorf("config: MURE_REGION is required")
	}
	if c.MaxPeers <= 0 {
		return fmt.Errorf("config: MURE_MAX_PEERS must be positive")
	}
	if c.MaxSyncBatchSize <= 0 {
		return fmt.Errorf("config: MURE_MAX_SYNC_BATCH_SIZE must be positive")
	}
	if c.ReconnectMin <= 0 || c.ReconnectMax < c.ReconnectMin {
		return fmt.Errorf("config: reconnect window must satisfy 0 < min <= max")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: MURE_MAX_REQUEST_BODY_BYTES must be positive")
	}
	if c.RateLimitEnabled && (c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0) {
		return fmt.Errorf("config: rate limit rps and burst must be positive when enabled")
	}
	switch c.StoreDriver {
	case "sqlite", "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required when MURE_STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("config: unknown MURE_STORE_DRIVER %q", c.StoreDriver)
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

// envList parses a comma-separated address list, trimming whitespace and
// dropping empty entries.
func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
