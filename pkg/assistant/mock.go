package assistant

import (
	"context"
	"sync"
)

// Mock is a mock implementation of Client for testing.
type Mock struct {
	mu sync.RWMutex

	// State
	active bool
	closed bool

	// Callbacks
	onCallStart   func()
	onCallEnd     func()
	onError       func(err error)
	onSpeechStart func()
	onSpeechEnd   func()

	// Configurable behavior
	StartFunc func(ctx context.Context, assistantID string) error
	StopFunc  func() error

	// Captured calls for assertions
	StartCalls []string
	StopCalls  int
}

// NewMock creates a new Mock client.
func NewMock() *Mock {
	return &Mock{}
}

// Start implements Client.
func (m *Mock) Start(ctx context.Context, assistantID string) error {
	if m.StartFunc != nil {
		return m.StartFunc(ctx, assistantID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.active {
		return ErrCallActive
	}
	m.active = true
	m.StartCalls = append(m.StartCalls, assistantID)
	return nil
}

// Stop implements Client.
func (m *Mock) Stop() error {
	if m.StopFunc != nil {
		return m.StopFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = false
	m.StopCalls++
	return nil
}

// Close implements Client.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.active = false
	return nil
}

// Active implements Client.
func (m *Mock) Active() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Metrics implements Client.
func (m *Mock) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		StartsRequested: int64(len(m.StartCalls)),
		StopsRequested:  int64(m.StopCalls),
	}
}

// OnCallStart implements Client.
func (m *Mock) OnCallStart(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCallStart = fn
}

// OnCallEnd implements Client.
func (m *Mock) OnCallEnd(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCallEnd = fn
}

// OnError implements Client.
func (m *Mock) OnError(fn func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = fn
}

// OnSpeechStart implements Client.
func (m *Mock) OnSpeechStart(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSpeechStart = fn
}

// OnSpeechEnd implements Client.
func (m *Mock) OnSpeechEnd(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSpeechEnd = fn
}

// Test helpers

// SimulateCallStart triggers the OnCallStart callback.
func (m *Mock) SimulateCallStart() {
	m.mu.RLock()
	fn := m.onCallStart
	m.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// SimulateCallEnd triggers the OnCallEnd callback and marks the call ended.
func (m *Mock) SimulateCallEnd() {
	m.mu.Lock()
	m.active = false
	fn := m.onCallEnd
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// SimulateError triggers the OnError callback and marks the call ended.
func (m *Mock) SimulateError(err error) {
	m.mu.Lock()
	m.active = false
	fn := m.onError
	m.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// SimulateSpeechStart triggers the OnSpeechStart callback.
func (m *Mock) SimulateSpeechStart() {
	m.mu.RLock()
	fn := m.onSpeechStart
	m.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// SimulateSpeechEnd triggers the OnSpeechEnd callback.
func (m *Mock) SimulateSpeechEnd() {
	m.mu.RLock()
	fn := m.onSpeechEnd
	m.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Reset clears all captured data.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartCalls = nil
	m.StopCalls = 0
	m.active = false
	m.closed = false
}

// Ensure Mock implements Client.
var _ Client = (*Mock)(nil)
