// Package config provides environment configuration helpers for voiceloop
// commands. Operational knobs fall back to defaults when unset; credentials
// do not — a missing credential is reported to the caller so the session
// controller can degrade instead of dialing with a placeholder.
package config

import "os"

// Default operational configuration.
const (
	DefaultListenAddr = ":8090"
	DefaultLogLevel   = "info"
)

// Env var names.
const (
	EnvAPIKey      = "VOICELOOP_API_KEY"
	EnvAssistantID = "VOICELOOP_ASSISTANT_ID"
	EnvListenAddr  = "VOICELOOP_ADDR"
	EnvRelayURL    = "VOICELOOP_RELAY_URL"
	EnvLogLevel    = "VOICELOOP_LOG_LEVEL"
)

// ListenAddr returns the HTTP listen address from VOICELOOP_ADDR,
// falling back to DefaultListenAddr.
func ListenAddr() string {
	if addr := os.Getenv(EnvListenAddr); addr != "" {
		return addr
	}
	return DefaultListenAddr
}

// LogLevel returns the log level from VOICELOOP_LOG_LEVEL,
// falling back to DefaultLogLevel.
func LogLevel() string {
	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		return lvl
	}
	return DefaultLogLevel
}

// RelayURL returns the relay endpoint override from VOICELOOP_RELAY_URL.
// Empty means the client's built-in endpoint.
func RelayURL() string {
	return os.Getenv(EnvRelayURL)
}

// APIKey returns the relay access credential from VOICELOOP_API_KEY.
// No fallback: empty means not configured.
func APIKey() string {
	return os.Getenv(EnvAPIKey)
}

// AssistantID returns the hosted assistant identifier from
// VOICELOOP_ASSISTANT_ID. No fallback: empty means not configured.
func AssistantID() string {
	return os.Getenv(EnvAssistantID)
}
