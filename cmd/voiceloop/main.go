// Voiceloop - demo call page for a hosted AI voice assistant.
// Serves a single page where a visitor starts a live voice call, watches the
// status badge and call duration, and follows a scrolling event log.
//
// Environment variables:
//
//	VOICELOOP_API_KEY      - Relay access credential (required for live calls)
//	VOICELOOP_ASSISTANT_ID - Hosted assistant to call (required for live calls)
//	VOICELOOP_ADDR         - Listen address (default :8090)
//	VOICELOOP_RELAY_URL    - Relay endpoint override
//	VOICELOOP_LOG_LEVEL    - debug, info, warn, error (default info)
//
// Missing credentials do not prevent startup: the page comes up degraded and
// reports the initialization failure in its event log.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/voiceloop/go-voiceloop/internal/config"
	"github.com/voiceloop/go-voiceloop/internal/log"
	"github.com/voiceloop/go-voiceloop/pkg/assistant"
	"github.com/voiceloop/go-voiceloop/pkg/session"
	"github.com/voiceloop/go-voiceloop/pkg/web"
)

func main() {
	addr := flag.String("addr", config.ListenAddr(), "HTTP listen address")
	logLevel := flag.String("log-level", config.LogLevel(), "Log level: debug, info, warn, error")
	assistantID := flag.String("assistant", "", "Assistant ID (overrides VOICELOOP_ASSISTANT_ID)")
	relayURL := flag.String("relay-url", "", "Relay endpoint (overrides VOICELOOP_RELAY_URL)")
	flag.Parse()

	log.Init(*logLevel)

	id := *assistantID
	if id == "" {
		id = config.AssistantID()
	}
	relay := *relayURL
	if relay == "" {
		relay = config.RelayURL()
	}

	client, initErr := buildClient(config.APIKey(), id, relay)
	if initErr != nil {
		log.Warn("assistant client unavailable, starting degraded", "error", initErr)
	}

	controller := session.New(client, session.Config{
		AssistantID: id,
		InitError:   initErr,
		Logger:      log.L(),
	})
	defer controller.Close()

	server := web.NewServer(*addr, controller, client, log.L())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		if err := server.Shutdown(); err != nil {
			log.Error("shutdown failed", "error", err)
		}
	case err := <-errCh:
		if err != nil {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}

// buildClient constructs the relay client, or reports why it cannot be
// constructed so the controller can run degraded.
func buildClient(apiKey, assistantID, relayURL string) (assistant.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s is not set", config.EnvAPIKey)
	}
	if assistantID == "" {
		return nil, fmt.Errorf("%s is not set", config.EnvAssistantID)
	}

	opts := []assistant.Option{
		assistant.WithAPIKey(apiKey),
		assistant.WithAssistantID(assistantID),
		assistant.WithLogger(log.L()),
	}
	if relayURL != "" {
		opts = append(opts, assistant.WithBaseURL(relayURL))
	}

	// A nil *Relay must come back as a nil Client, not a typed nil, so the
	// controller's degraded-mode check still fires.
	r, err := assistant.NewRelay(opts...)
	if err != nil {
		return nil, err
	}
	return r, nil
}
