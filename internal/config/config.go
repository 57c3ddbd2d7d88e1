package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config collects everything the portal reads from the environment.
// Secondary storage and the Manus task service are optional; the pipeline
// degrades gracefully when they are not configured.
type Config struct {
	Port string

	MongoURI    string
	MongoDBName string

	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string

	AnthropicAPIKey string
	AnthropicModel  string

	ManusBaseURL string
	ManusAPIKey  string

	BatchLimit     int           // max records per unscoped reprocess run
	RequestTimeout time.Duration // outbound call timeout
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:               getenv("PORT", "8080"),
		MongoURI:           os.Getenv("MONGODB_URI"),
		MongoDBName:        getenv("MONGODB_DB", "finance_portal"),
		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
		SupabaseBucket:     getenv("SUPABASE_BUCKET", "documents"),
		AnthropicAPIKey:    os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:     getenv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		ManusBaseURL:       os.Getenv("MANUS_BASE_URL"),
		ManusAPIKey:        os.Getenv("MANUS_API_KEY"),
		BatchLimit:         getenvInt("REPROCESS_BATCH_LIMIT", 10),
		RequestTimeout:     getenvDuration("OUTBOUND_TIMEOUT", 45*time.Second),
	}
	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("MONGODB_URI is required")
	}
	return cfg, nil
}

// SupabaseConfigured reports whether the secondary store can be used.
func (c *Config) SupabaseConfigured() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

// ManusConfigured reports whether uploads should be handed off for AI processing.
func (c *Config) ManusConfigured() bool {
	return c.ManusBaseURL != "" && c.ManusAPIKey != ""
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
