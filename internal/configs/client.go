package configs

import (
	"fmt"
	"net/url"
	"os"
	"time"
)

// ClientConfig contains the settings shared by the terminal client and the bots.
type ClientConfig struct {
	Environment string

	// ServerURL is the base URL of the chat server API.
	ServerURL *url.URL

	// LogFile receives the client's logs; terminal front ends cannot log to stderr.
	LogFile string

	// HistoryLimit is the page size requested when loading previous events.
	HistoryLimit int

	// ReconnectBase and ReconnectMax bound the event stream reconnect backoff.
	ReconnectBase time.Duration
	ReconnectMax  time.Duration

	// RequestTimeout bounds every one-shot API call.
	RequestTimeout time.Duration

	// BotName is the display name the welcome bot joins with.
	BotName string
}

// IsDevelopment reports whether the client runs in the development environment.
func (c *ClientConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadClientConfig reads and parses the client configuration from environment variables.
func LoadClientConfig() (*ClientConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &ClientConfig{}

	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	rawURL := os.Getenv("CHATROOM_URL")
	if rawURL == "" {
		rawURL = "http://localhost:8080"
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid CHATROOM_URL environment variable: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("CHATROOM_URL must use http or https, got %q", u.Scheme)
	}
	cfg.ServerURL = u

	cfg.LogFile = os.Getenv("CHATROOM_LOG_FILE")
	if cfg.LogFile == "" {
		cfg.LogFile = "chatroom-client.log"
	}

	if cfg.HistoryLimit, err = intEnv("HISTORY_LIMIT", 32); err != nil {
		return nil, err
	}
	if cfg.HistoryLimit < 1 {
		return nil, fmt.Errorf("HISTORY_LIMIT must be positive, got %d", cfg.HistoryLimit)
	}

	if cfg.ReconnectBase, err = durationEnv("RECONNECT_BASE", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.ReconnectMax, err = durationEnv("RECONNECT_MAX", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReconnectMax < cfg.ReconnectBase {
		return nil, fmt.Errorf("RECONNECT_MAX (%s) must not be lower than RECONNECT_BASE (%s)", cfg.ReconnectMax, cfg.ReconnectBase)
	}

	if cfg.RequestTimeout, err = durationEnv("REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	cfg.BotName = os.Getenv("BOT_NAME")
	if cfg.BotName == "" {
		cfg.BotName = "welcomebot"
	}

	return cfg, nil
}
