package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voiceloop/go-voiceloop/pkg/assistant"
)

// eventKind identifies a vendor event routed through the controller.
type eventKind int

const (
	evCallStart eventKind = iota
	evCallEnd
	evError
	evSpeechStart
	evSpeechEnd
)

// event is one vendor callback queued for the state machine. Callbacks are
// funneled through a FIFO channel so transitions observe events in arrival
// order.
type event struct {
	kind eventKind
	err  error
}

// Config configures a Controller.
type Config struct {
	// AssistantID is the hosted assistant to call.
	AssistantID string

	// InitError records why the assistant client could not be
	// constructed. Set together with a nil client to run degraded.
	InitError error

	// Logger is the structured logger to use.
	Logger *slog.Logger

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time

	// TickInterval overrides the duration recompute interval.
	// Defaults to one second.
	TickInterval time.Duration

	// LogLimit caps the event log. Defaults to 500 entries.
	LogLimit int
}

// Controller is the call session state machine. One controller owns one
// session: the status, the event log, the duration ticker, and the assistant
// client handle (released on Close).
//
// All state changes are guarded by a single mutex; vendor events additionally
// pass through a FIFO queue consumed by one goroutine, so order-sensitive
// transitions (an error right after call-start must still stop the ticker)
// are handled in arrival order.
type Controller struct {
	client       assistant.Client
	assistantID  string
	logger       *slog.Logger
	now          func() time.Time
	tickInterval time.Duration
	logLimit     int

	mu        sync.RWMutex
	seq       uint64
	status    Status
	callID    string
	startedAt time.Time
	duration  int
	degraded  bool
	closed    bool
	logBuf    []LogEntry
	onChange  func(Snapshot)
	ticker    *time.Ticker
	tickC     <-chan time.Time

	events    chan event
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Controller around the given assistant client and starts its
// event loop. A nil client puts the controller in degraded mode: Start fails
// immediately with ErrNotInitialized and the failure is visible in the log.
func New(client assistant.Client, cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.LogLimit <= 0 {
		cfg.LogLimit = defaultLogLimit
	}

	c := &Controller{
		client:       client,
		assistantID:  cfg.AssistantID,
		logger:       cfg.Logger.With("component", "session"),
		now:          cfg.Now,
		tickInterval: cfg.TickInterval,
		logLimit:     cfg.LogLimit,
		status:       StatusIdle,
		events:       make(chan event, 64),
		done:         make(chan struct{}),
	}

	if client == nil {
		c.degraded = true
		msg := "Assistant client not initialized; calls are disabled"
		if cfg.InitError != nil {
			msg = fmt.Sprintf("Assistant client not initialized: %v", cfg.InitError)
		}
		c.mu.Lock()
		c.appendLocked(SeverityError, msg)
		c.mu.Unlock()
		c.logger.Warn("running degraded", "error", cfg.InitError)
	} else {
		client.OnCallStart(func() { c.enqueue(event{kind: evCallStart}) })
		client.OnCallEnd(func() { c.enqueue(event{kind: evCallEnd}) })
		client.OnError(func(err error) { c.enqueue(event{kind: evError, err: err}) })
		client.OnSpeechStart(func() { c.enqueue(event{kind: evSpeechStart}) })
		client.OnSpeechEnd(func() { c.enqueue(event{kind: evSpeechEnd}) })
	}

	go c.run()
	return c
}

// Start requests a new call. It transitions idle/error → connecting and asks
// the assistant client to start; the call going live is signaled later by the
// vendor's call-start event, not by this returning nil.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.degraded || c.client == nil {
		c.appendLocked(SeverityError, "Cannot start call: assistant client not initialized")
		c.mu.Unlock()
		c.notify()
		return ErrNotInitialized
	}
	if c.status == StatusConnecting || c.status == StatusConnected {
		c.mu.Unlock()
		return ErrCallInProgress
	}
	c.status = StatusConnecting
	c.callID = uuid.NewString()
	callID := c.callID
	c.appendLocked(SeverityInfo, "Starting call")
	c.mu.Unlock()
	c.notify()

	if err := c.client.Start(ctx, c.assistantID); err != nil {
		c.mu.Lock()
		// Fail the attempt unless a vendor event already moved it on.
		if c.status == StatusConnecting {
			c.resetLocked()
			c.status = StatusError
		}
		c.appendLocked(SeverityError, fmt.Sprintf("Failed to start call: %v", err))
		c.mu.Unlock()
		c.notify()
		return err
	}

	c.logger.Info("call start requested", "call_id", callID)
	return nil
}

// Stop ends the current call. Always safe: when no call is in progress it
// leaves status and duration untouched apart from re-asserting idle.
func (c *Controller) Stop() error {
	var stopErr error
	if c.client != nil {
		stopErr = c.client.Stop()
	}

	c.mu.Lock()
	c.resetLocked()
	c.status = StatusIdle
	if c.client != nil {
		c.appendLocked(SeverityInfo, "Call stopped by user")
	}
	c.mu.Unlock()
	c.notify()

	if stopErr != nil {
		c.logger.Warn("assistant stop failed", "error", stopErr)
	}
	return stopErr
}

// ClearLog empties the event log. Call status is unaffected.
func (c *Controller) ClearLog() {
	c.mu.Lock()
	c.logBuf = nil
	c.mu.Unlock()
	c.notify()
}

// Snapshot returns a read-only copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// OnChange registers a hook invoked with a fresh snapshot after every state
// mutation. Intended for the presentation layer; the hook must not call back
// into the controller.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Close tears the session down: the event loop exits, any ticker is
// cancelled, and the assistant client handle is released. Idempotent.
func (c *Controller) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.resetLocked()
		c.status = StatusIdle
		c.mu.Unlock()
		close(c.done)
		if c.client != nil {
			err = c.client.Close()
		}
	})
	return err
}

// run is the single consumer of vendor events and duration ticks.
func (c *Controller) run() {
	for {
		c.mu.RLock()
		tickC := c.tickC
		c.mu.RUnlock()

		select {
		case <-c.done:
			return
		case ev := <-c.events:
			c.handleEvent(ev)
		case <-tickC:
			c.tick()
		}
	}
}

// enqueue queues a vendor event for the state machine.
func (c *Controller) enqueue(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	default:
		c.logger.Warn("event queue full, dropping event", "kind", int(ev.kind))
	}
}

// handleEvent applies one vendor event to the transition table.
func (c *Controller) handleEvent(ev event) {
	c.mu.Lock()
	switch ev.kind {
	case evCallStart:
		if c.status != StatusConnecting {
			// Stale: the user already stopped or an error won the race.
			c.mu.Unlock()
			return
		}
		c.status = StatusConnected
		c.startedAt = c.now()
		c.duration = 0
		c.startTickerLocked()
		c.appendLocked(SeveritySuccess, "Call connected")

	case evCallEnd:
		if c.status != StatusConnected && c.status != StatusConnecting {
			c.mu.Unlock()
			return
		}
		c.resetLocked()
		c.status = StatusIdle
		c.appendLocked(SeverityInfo, "Call ended")

	case evError:
		msg := "Call error"
		if ev.err != nil {
			msg = fmt.Sprintf("Call error: %v", ev.err)
		}
		if c.status == StatusConnecting || c.status == StatusConnected {
			c.resetLocked()
			c.status = StatusError
		}
		c.appendLocked(SeverityError, msg)

	case evSpeechStart:
		c.appendLocked(SeverityInfo, "Assistant speaking")

	case evSpeechEnd:
		c.appendLocked(SeverityInfo, "Assistant finished speaking")
	}
	c.mu.Unlock()
	c.notify()
}

// tick recomputes the call duration. Stale ticks after leaving connected are
// discarded by the status guard.
func (c *Controller) tick() {
	c.mu.Lock()
	if c.status != StatusConnected || c.startedAt.IsZero() {
		c.mu.Unlock()
		return
	}
	c.duration = int(c.now().Sub(c.startedAt) / time.Second)
	c.mu.Unlock()
	c.notify()
}

// startTickerLocked begins the duration ticker. Caller holds c.mu.
func (c *Controller) startTickerLocked() {
	c.stopTickerLocked()
	c.ticker = time.NewTicker(c.tickInterval)
	c.tickC = c.ticker.C
}

// stopTickerLocked cancels the duration ticker. Idempotent; caller holds c.mu.
func (c *Controller) stopTickerLocked() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	c.tickC = nil
}

// resetLocked cancels the ticker and clears per-call state. Caller holds c.mu.
func (c *Controller) resetLocked() {
	c.stopTickerLocked()
	c.startedAt = time.Time{}
	c.duration = 0
}

// appendLocked adds a log entry, dropping the oldest past the cap.
// Caller holds c.mu.
func (c *Controller) appendLocked(severity Severity, message string) {
	entry := LogEntry{
		ID:       uuid.NewString(),
		Time:     c.now().Format("15:04:05"),
		Message:  message,
		Severity: severity,
	}
	c.logBuf = append(c.logBuf, entry)
	if over := len(c.logBuf) - c.logLimit; over > 0 {
		c.logBuf = c.logBuf[over:]
	}
}

// snapshotLocked builds a snapshot copy. Caller holds c.mu.
func (c *Controller) snapshotLocked() Snapshot {
	logCopy := make([]LogEntry, len(c.logBuf))
	copy(logCopy, c.logBuf)
	return Snapshot{
		Seq:             c.seq,
		Status:          c.status,
		CallID:          c.callID,
		DurationSeconds: c.duration,
		Duration:        FormatDuration(c.duration),
		Degraded:        c.degraded,
		Log:             logCopy,
	}
}

// notify delivers a fresh snapshot to the change hook. The sequence number
// is assigned under the lock, so even when hooks fire concurrently from the
// caller and the event loop, a later state always carries a higher Seq.
func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onChange
	var snap Snapshot
	if fn != nil {
		c.seq++
		snap = c.snapshotLocked()
	}
	c.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}
