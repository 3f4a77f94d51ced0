// Package assistant provides a client for hosted conversational-AI voice
// assistants. It wraps the vendor's realtime control channel behind a small
// Client interface so callers can start and stop calls and react to call
// lifecycle events without touching the wire protocol.
//
// The media plane (microphone capture, audio transport, speech recognition,
// synthesis) is owned end to end by the hosted vendor; this package carries
// only the control channel and its events.
//
// Example usage:
//
//	client, err := assistant.NewRelay(
//	    assistant.WithAPIKey(os.Getenv("VOICELOOP_API_KEY")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.OnCallStart(func() {
//	    // Call is live.
//	})
//	client.OnError(func(err error) {
//	    // Vendor reported a mid-call failure.
//	})
//
//	if err := client.Start(ctx, assistantID); err != nil {
//	    log.Fatal(err)
//	}
package assistant

import (
	"context"
	"time"
)

// EventType names a control-channel event from the vendor.
type EventType string

const (
	// EventCallStart signals the call is established and audio is flowing.
	EventCallStart EventType = "call-start"
	// EventCallEnd signals the call ended normally.
	EventCallEnd EventType = "call-end"
	// EventError signals a vendor-side failure; the call is over.
	EventError EventType = "error"
	// EventSpeechStart signals the assistant began speaking.
	EventSpeechStart EventType = "speech-start"
	// EventSpeechEnd signals the assistant stopped speaking.
	EventSpeechEnd EventType = "speech-end"
)

// Client is the interface for hosted assistant call clients.
// Implementations handle the control connection and event delivery.
//
// Start is asynchronous: a nil return means the start request was accepted,
// not that the call is live. Liveness is signaled later through OnCallStart.
// Event callbacks are invoked one at a time, in arrival order.
type Client interface {
	// Start requests a call with the given assistant.
	Start(ctx context.Context, assistantID string) error

	// Stop requests the current call to end. Safe to call with no
	// call in progress.
	Stop() error

	// Close releases the control connection and all resources.
	Close() error

	// Active returns true while a call is in progress (start requested
	// and not yet ended).
	Active() bool

	// Metrics returns control-channel statistics.
	Metrics() Metrics

	// Callbacks

	// OnCallStart is called when the vendor reports the call is live.
	OnCallStart(fn func())

	// OnCallEnd is called when the vendor reports the call ended.
	OnCallEnd(fn func())

	// OnError is called when the vendor reports a failure.
	OnError(fn func(err error))

	// OnSpeechStart is called when the assistant begins speaking.
	OnSpeechStart(fn func())

	// OnSpeechEnd is called when the assistant stops speaking.
	OnSpeechEnd(fn func())
}

// Metrics tracks control-channel statistics.
type Metrics struct {
	// ConnectedAt is when the control connection was established.
	ConnectedAt time.Time

	// EventsReceived is the count of vendor events delivered.
	EventsReceived int64

	// StartsRequested is the count of call start requests sent.
	StartsRequested int64

	// StopsRequested is the count of call stop requests sent.
	StopsRequested int64

	// Errors is the count of errors encountered.
	Errors int64

	// LastEventAt is when the most recent vendor event arrived.
	LastEventAt time.Time
}
