// Package session owns the lifecycle of a voice call with a hosted
// assistant. The Controller is a small state machine driven by user actions
// (start, stop) and asynchronous vendor callbacks (call-start, call-end,
// error, speech events). It keeps a bounded append-only event log and a
// once-per-second call duration, and exposes read-only snapshots for the
// presentation layer. It holds no network or audio code of its own.
package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the call lifecycle state.
type Status int

const (
	// StatusIdle means no call is in progress.
	StatusIdle Status = iota
	// StatusConnecting means a call was requested and is being set up.
	StatusConnecting
	// StatusConnected means the call is live.
	StatusConnected
	// StatusError means the last call attempt failed.
	StatusError
)

// String returns a human-readable status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the status as its string form.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a status from its string form.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "connecting":
		*s = StatusConnecting
	case "connected":
		*s = StatusConnected
	case "error":
		*s = StatusError
	default:
		*s = StatusIdle
	}
	return nil
}

// Severity classifies a log entry.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// LogEntry is one immutable line in the session event log.
type LogEntry struct {
	// ID uniquely identifies the entry within the session.
	ID string `json:"id"`

	// Time is the human-readable capture time, assigned at creation.
	Time string `json:"time"`

	// Message describes the event.
	Message string `json:"message"`

	// Severity is info, success, or error.
	Severity Severity `json:"severity"`
}

// Snapshot is a read-only view of the controller state for rendering.
type Snapshot struct {
	// Seq orders snapshots. It increases with every state change, so a
	// consumer receiving snapshots from concurrent deliveries can discard
	// any whose Seq is not greater than the last one applied.
	Seq uint64 `json:"seq"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// CallID identifies the current or most recent call attempt.
	CallID string `json:"call_id,omitempty"`

	// DurationSeconds is the elapsed call time. Meaningful only while
	// Status is connected; zero otherwise.
	DurationSeconds int `json:"duration_seconds"`

	// Duration is DurationSeconds formatted as MM:SS.
	Duration string `json:"duration"`

	// Degraded is true when the assistant client failed to initialize;
	// starting a call will fail immediately.
	Degraded bool `json:"degraded"`

	// Log is the event log in insertion order.
	Log []LogEntry `json:"log"`
}

// FormatDuration renders elapsed seconds as MM:SS (e.g. 65 → "01:05").
// Durations of an hour or more roll into the minutes field.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// defaultLogLimit caps the event log; oldest entries are dropped first.
const defaultLogLimit = 500

// defaultTickInterval is how often the call duration is recomputed.
const defaultTickInterval = time.Second
