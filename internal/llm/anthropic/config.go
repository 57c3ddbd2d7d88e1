package anthropic

import (
	"log/slog"
	"os"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Config for the Anthropic client.
type Config struct {
	APIKey    string        // if empty, falls back to env ANTHROPIC_API_KEY
	BaseURL   string        // default https://api.anthropic.com
	Model     string        // e.g. "claude-sonnet-4-20250514"
	MaxTokens int           // response budget
	Timeout   time.Duration // http client timeout
}

type Client struct {
	cfg  Config
	http *retryablehttp.Client
	log  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	hc := retryablehttp.NewClient()
	hc.Logger = nil
	hc.RetryMax = 2
	hc.HTTPClient.Timeout = cfg.Timeout

	return &Client{cfg: cfg, http: hc, log: logger}
}
