package assistant

import (
	"log/slog"
	"time"
)

// Config holds configuration for assistant clients.
type Config struct {
	// APIKey is the access credential for the hosted relay.
	APIKey string

	// AssistantID is the default assistant to call when Start is given
	// an empty id.
	AssistantID string

	// BaseURL overrides the default relay endpoint.
	BaseURL string

	// Timeout is the control-connection dial timeout.
	Timeout time.Duration

	// WriteTimeout is the timeout for writing control requests.
	WriteTimeout time.Duration

	// PingInterval is how often keepalive pings are sent.
	PingInterval time.Duration

	// Logger is the structured logger to use.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Timeout:      15 * time.Second,
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
		Logger:       slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// Option is a functional option for configuring clients.
type Option func(*Config)

// WithAPIKey sets the access credential.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithAssistantID sets the default assistant identifier.
func WithAssistantID(id string) Option {
	return func(c *Config) {
		c.AssistantID = id
	}
}

// WithBaseURL sets the relay endpoint.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithTimeout sets the dial timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithPingInterval sets the keepalive ping interval.
func WithPingInterval(d time.Duration) Option {
	return func(c *Config) {
		c.PingInterval = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
