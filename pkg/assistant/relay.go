package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const relayBaseURL = "wss://relay.voiceloop.dev/v1/calls"

// relayRequest is a control request sent to the relay.
type relayRequest struct {
	Type        string `json:"type"`
	AssistantID string `json:"assistant_id,omitempty"`
}

// relayEvent is a control event received from the relay.
type relayEvent struct {
	Type  EventType `json:"type"`
	Error *struct {
		Code    string `json:"code,omitempty"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Relay implements Client over the hosted voice relay's websocket control
// channel. One Relay holds at most one control connection; the connection is
// dialed lazily on the first Start and reused across calls.
type Relay struct {
	config *Config
	logger *slog.Logger

	mu       sync.RWMutex
	conn     *websocket.Conn
	active   bool
	closed   bool
	pingDone chan struct{}

	// writeMu serializes websocket writes; gorilla allows one
	// concurrent writer only.
	writeMu sync.Mutex

	// Callbacks
	onCallStart   func()
	onCallEnd     func()
	onError       func(err error)
	onSpeechStart func()
	onSpeechEnd   func()

	connectedAt     time.Time
	lastEventAt     atomic.Int64
	eventsReceived  atomic.Int64
	startsRequested atomic.Int64
	stopsRequested  atomic.Int64
	errorCount      atomic.Int64
}

// NewRelay creates a new relay client.
//
//	client, err := assistant.NewRelay(
//	    assistant.WithAPIKey(apiKey),
//	    assistant.WithAssistantID(assistantID),
//	)
func NewRelay(opts ...Option) (*Relay, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = relayBaseURL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Relay{
		config: cfg,
		logger: cfg.Logger.With("component", "assistant.relay"),
	}, nil
}

// Start implements Client. It dials the control channel if needed and sends
// a call.start request. A nil return means the request was written; the call
// going live is signaled later through OnCallStart.
func (r *Relay) Start(ctx context.Context, assistantID string) error {
	if assistantID == "" {
		assistantID = r.config.AssistantID
	}
	if assistantID == "" {
		return ErrMissingAssistantID
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.active {
		r.mu.Unlock()
		return ErrCallActive
	}
	if r.conn == nil {
		if err := r.dialLocked(ctx); err != nil {
			r.mu.Unlock()
			r.errorCount.Add(1)
			return err
		}
	}
	r.active = true
	r.mu.Unlock()

	if err := r.writeJSON(relayRequest{Type: "call.start", AssistantID: assistantID}); err != nil {
		r.mu.Lock()
		r.active = false
		r.mu.Unlock()
		r.errorCount.Add(1)
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	r.startsRequested.Add(1)
	r.logger.Info("call start requested", "assistant_id", assistantID)
	return nil
}

// dialLocked establishes the control connection. Caller holds r.mu.
func (r *Relay) dialLocked(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: r.config.Timeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+r.config.APIKey)

	conn, resp, err := dialer.DialContext(ctx, r.config.BaseURL, header)
	if err != nil {
		if resp != nil {
			return &ConnectionError{
				Reason: fmt.Sprintf("relay rejected handshake (HTTP %d)", resp.StatusCode),
				Cause:  err,
			}
		}
		return &ConnectionError{Reason: "dial failed", Cause: err}
	}

	r.conn = conn
	r.connectedAt = time.Now()
	r.pingDone = make(chan struct{})
	go r.readLoop(conn)
	go r.pingLoop(conn, r.pingDone)

	r.logger.Info("control channel connected", "url", r.config.BaseURL)
	return nil
}

// Stop implements Client. Safe to call with no call in progress.
func (r *Relay) Stop() error {
	r.mu.Lock()
	conn := r.conn
	wasActive := r.active
	r.active = false
	r.mu.Unlock()

	if conn == nil || !wasActive {
		return nil
	}

	r.stopsRequested.Add(1)
	if err := r.writeJSON(relayRequest{Type: "call.stop"}); err != nil {
		r.errorCount.Add(1)
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	r.logger.Info("call stop requested")
	return nil
}

// Close implements Client. Idempotent.
func (r *Relay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.active = false
	conn := r.conn
	r.conn = nil
	r.stopPingLocked()
	r.mu.Unlock()

	if conn != nil {
		r.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		r.writeMu.Unlock()
		return conn.Close()
	}
	return nil
}

// Active implements Client.
func (r *Relay) Active() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Metrics implements Client.
func (r *Relay) Metrics() Metrics {
	r.mu.RLock()
	connectedAt := r.connectedAt
	r.mu.RUnlock()

	var lastEvent time.Time
	if ns := r.lastEventAt.Load(); ns > 0 {
		lastEvent = time.Unix(0, ns)
	}
	return Metrics{
		ConnectedAt:     connectedAt,
		EventsReceived:  r.eventsReceived.Load(),
		StartsRequested: r.startsRequested.Load(),
		StopsRequested:  r.stopsRequested.Load(),
		Errors:          r.errorCount.Load(),
		LastEventAt:     lastEvent,
	}
}

// Callback setters.

// OnCallStart implements Client.
func (r *Relay) OnCallStart(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onCallStart = fn
}

// OnCallEnd implements Client.
func (r *Relay) OnCallEnd(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onCallEnd = fn
}

// OnError implements Client.
func (r *Relay) OnError(fn func(err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = fn
}

// OnSpeechStart implements Client.
func (r *Relay) OnSpeechStart(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSpeechStart = fn
}

// OnSpeechEnd implements Client.
func (r *Relay) OnSpeechEnd(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSpeechEnd = fn
}

// writeJSON serializes a control request onto the connection.
func (r *Relay) writeJSON(req relayRequest) error {
	r.mu.RLock()
	conn := r.conn
	r.mu.RUnlock()
	if conn == nil {
		return ErrConnectionClosed
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(r.config.WriteTimeout))
	return conn.WriteJSON(req)
}

// readLoop consumes vendor events until the connection drops. Callbacks fire
// from this goroutine, so events are delivered one at a time in arrival order.
func (r *Relay) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			r.handleDisconnect(conn, err)
			return
		}

		var ev relayEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			r.logger.Warn("discarding malformed event", "error", err)
			continue
		}

		r.eventsReceived.Add(1)
		r.lastEventAt.Store(time.Now().UnixNano())
		r.dispatch(ev)
	}
}

// pingLoop sends keepalive pings until the connection is torn down or a
// write fails. done is closed by Close and handleDisconnect.
func (r *Relay) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(r.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(r.config.WriteTimeout))
			r.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// stopPingLocked signals the keepalive goroutine to exit. Idempotent;
// caller holds r.mu.
func (r *Relay) stopPingLocked() {
	if r.pingDone != nil {
		close(r.pingDone)
		r.pingDone = nil
	}
}

// dispatch routes one vendor event to its callback.
func (r *Relay) dispatch(ev relayEvent) {
	r.mu.Lock()
	switch ev.Type {
	case EventCallEnd, EventError:
		r.active = false
	}
	onCallStart := r.onCallStart
	onCallEnd := r.onCallEnd
	onError := r.onError
	onSpeechStart := r.onSpeechStart
	onSpeechEnd := r.onSpeechEnd
	r.mu.Unlock()

	switch ev.Type {
	case EventCallStart:
		r.logger.Debug("event: call-start")
		if onCallStart != nil {
			onCallStart()
		}
	case EventCallEnd:
		r.logger.Debug("event: call-end")
		if onCallEnd != nil {
			onCallEnd()
		}
	case EventError:
		r.errorCount.Add(1)
		callErr := &CallError{Message: "unknown error"}
		if ev.Error != nil {
			callErr.Code = ev.Error.Code
			callErr.Message = ev.Error.Message
		}
		r.logger.Warn("event: error", "code", callErr.Code, "message", callErr.Message)
		if onError != nil {
			onError(callErr)
		}
	case EventSpeechStart:
		if onSpeechStart != nil {
			onSpeechStart()
		}
	case EventSpeechEnd:
		if onSpeechEnd != nil {
			onSpeechEnd()
		}
	default:
		r.logger.Debug("ignoring unknown event", "type", string(ev.Type))
	}
}

// handleDisconnect reports an unexpected connection drop.
func (r *Relay) handleDisconnect(conn *websocket.Conn, err error) {
	r.mu.Lock()
	closed := r.closed
	stale := r.conn != conn
	wasActive := r.active
	if !stale {
		r.conn = nil
		r.active = false
		r.stopPingLocked()
	}
	onError := r.onError
	r.mu.Unlock()

	if closed || stale {
		return
	}

	conn.Close()
	r.errorCount.Add(1)
	r.logger.Warn("control channel dropped", "error", err)

	// Only surface the drop as a call error if a call was in flight.
	if wasActive && onError != nil {
		onError(&ConnectionError{Reason: "control channel dropped", Cause: err})
	}
}

// Ensure Relay implements Client.
var _ Client = (*Relay)(nil)
