// Command callprobe drives one voice call from the terminal, without the web
// page. Useful for checking relay credentials and watching the raw event flow.
//
// Usage:
//
//	go run ./cmd/callprobe -duration 30s
//	go run ./cmd/callprobe -mock   # scripted call, no network
//
// Environment variables required (unless -mock):
//
//	VOICELOOP_API_KEY      - Relay access credential
//	VOICELOOP_ASSISTANT_ID - Hosted assistant to call
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/voiceloop/go-voiceloop/internal/config"
	"github.com/voiceloop/go-voiceloop/internal/log"
	"github.com/voiceloop/go-voiceloop/pkg/assistant"
	"github.com/voiceloop/go-voiceloop/pkg/session"
)

func main() {
	assistantID := flag.String("assistant", "", "Assistant ID (overrides VOICELOOP_ASSISTANT_ID)")
	relayURL := flag.String("relay-url", "", "Relay endpoint (overrides VOICELOOP_RELAY_URL)")
	duration := flag.Duration("duration", 30*time.Second, "How long to hold the call")
	mock := flag.Bool("mock", false, "Use a scripted mock client instead of the relay")
	debug := flag.Bool("debug", false, "Enable debug output")
	flag.Parse()

	level := "warn"
	if *debug {
		level = "debug"
	}
	log.Init(level)

	id := *assistantID
	if id == "" {
		id = config.AssistantID()
	}

	var client assistant.Client
	var mockClient *assistant.Mock
	if *mock {
		mockClient = assistant.NewMock()
		client = mockClient
		id = "asst_mock"
	} else {
		relay := *relayURL
		if relay == "" {
			relay = config.RelayURL()
		}
		opts := []assistant.Option{
			assistant.WithAPIKey(config.APIKey()),
			assistant.WithAssistantID(id),
		}
		if relay != "" {
			opts = append(opts, assistant.WithBaseURL(relay))
		}
		r, err := assistant.NewRelay(opts...)
		if err != nil {
			fmt.Printf("❌ Client error: %v\n", err)
			fmt.Println("\nRequired environment variables:")
			fmt.Println("  VOICELOOP_API_KEY      - Relay access credential")
			fmt.Println("  VOICELOOP_ASSISTANT_ID - Hosted assistant to call")
			os.Exit(1)
		}
		client = r
	}

	controller := session.New(client, session.Config{AssistantID: id})
	defer controller.Close()

	// Print every new log entry as it lands, skipping snapshots that
	// arrive behind one already printed.
	var printMu sync.Mutex
	var lastSeq uint64
	seen := 0
	controller.OnChange(func(snap session.Snapshot) {
		printMu.Lock()
		defer printMu.Unlock()
		if snap.Seq <= lastSeq {
			return
		}
		lastSeq = snap.Seq
		if len(snap.Log) < seen {
			seen = 0
		}
		for _, entry := range snap.Log[seen:] {
			fmt.Printf("[%s] %-7s %s\n", entry.Time, entry.Severity, entry.Message)
		}
		seen = len(snap.Log)
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("📞 Starting call to %s (%s)\n", id, *duration)
	if err := controller.Start(ctx); err != nil {
		fmt.Printf("❌ Start failed: %v\n", err)
		os.Exit(1)
	}

	if mockClient != nil {
		go script(mockClient)
	}

	select {
	case <-ctx.Done():
		fmt.Println("\n⏹  Interrupted")
	case <-time.After(*duration):
	}

	if err := controller.Stop(); err != nil {
		fmt.Printf("⚠️  Stop error: %v\n", err)
	}

	snap := controller.Snapshot()
	fmt.Printf("\nFinal status: %s, log entries: %d\n", snap.Status, len(snap.Log))
}

// script plays a short canned call against the mock client.
func script(m *assistant.Mock) {
	time.Sleep(300 * time.Millisecond)
	m.SimulateCallStart()
	time.Sleep(500 * time.Millisecond)
	m.SimulateSpeechStart()
	time.Sleep(1200 * time.Millisecond)
	m.SimulateSpeechEnd()
	time.Sleep(500 * time.Millisecond)
	m.SimulateCallEnd()
}
