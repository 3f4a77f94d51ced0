package session

import "errors"

// Sentinel errors for the session package.
var (
	// ErrNotInitialized indicates the assistant client failed to
	// construct; the controller is running degraded and cannot place
	// calls.
	ErrNotInitialized = errors.New("session: assistant client not initialized")

	// ErrCallInProgress indicates Start was called while a call is
	// already connecting or connected.
	ErrCallInProgress = errors.New("session: call already in progress")

	// ErrClosed indicates the controller was shut down.
	ErrClosed = errors.New("session: controller closed")
)
