package assistant

import (
	"errors"
	"fmt"
)

// Sentinel errors for the assistant package.
var (
	// ErrMissingAPIKey indicates the access credential was not provided.
	ErrMissingAPIKey = errors.New("assistant: API key is required")

	// ErrMissingAssistantID indicates no assistant identifier was given.
	ErrMissingAssistantID = errors.New("assistant: assistant ID is required")

	// ErrCallActive indicates a start was requested while a call is
	// already in progress.
	ErrCallActive = errors.New("assistant: call already in progress")

	// ErrClosed indicates the client was closed.
	ErrClosed = errors.New("assistant: client closed")

	// ErrConnectionFailed indicates the control connection could not be
	// established.
	ErrConnectionFailed = errors.New("assistant: connection failed")

	// ErrConnectionClosed indicates the control connection dropped.
	ErrConnectionClosed = errors.New("assistant: connection closed")

	// ErrSendFailed indicates a control request could not be written.
	ErrSendFailed = errors.New("assistant: send failed")
)

// CallError represents a failure reported by the vendor over the control
// channel (the payload of an "error" event).
type CallError struct {
	// Code is the vendor error code, if any.
	Code string

	// Message is the human-readable error message.
	Message string
}

// Error implements the error interface.
func (e *CallError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("assistant: call error [%s]: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("assistant: call error: %s", e.Message)
}

// ConnectionError represents a control-channel transport error.
type ConnectionError struct {
	// Reason describes why the connection failed.
	Reason string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("assistant: connection error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("assistant: connection error: %s", e.Reason)
}

// Unwrap returns the underlying cause.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// IsCallError reports whether err is a vendor-reported call failure,
// returning the typed error when it is.
func IsCallError(err error) (*CallError, bool) {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr, true
	}
	return nil, false
}
