package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voiceloop/go-voiceloop/pkg/assistant"
)

// fakeClock is a settable clock for duration tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// newTestController wires a controller to a mock client with a fast ticker
// and a fake clock.
func newTestController(t *testing.T) (*Controller, *assistant.Mock, *fakeClock) {
	t.Helper()
	mock := assistant.NewMock()
	clock := newFakeClock()
	c := New(mock, Config{
		AssistantID:  "asst_test",
		Now:          clock.Now,
		TickInterval: 5 * time.Millisecond,
	})
	t.Cleanup(func() { c.Close() })
	return c, mock, clock
}

// waitStatus polls until the controller reaches the wanted status.
func waitStatus(t *testing.T, c *Controller, want Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Snapshot().Status == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for status %v, still %v", want, c.Snapshot().Status)
}

// waitDuration polls until the snapshot duration reaches want seconds.
func waitDuration(t *testing.T, c *Controller, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Snapshot().DurationSeconds == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for duration %d, still %d", want, c.Snapshot().DurationSeconds)
}

func TestStartConnect(t *testing.T) {
	c, mock, _ := newTestController(t)

	if got := c.Snapshot().Status; got != StatusIdle {
		t.Fatalf("fresh controller should be idle, got %v", got)
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	snap := c.Snapshot()
	if snap.Status != StatusConnecting {
		t.Errorf("expected connecting, got %v", snap.Status)
	}
	if snap.CallID == "" {
		t.Error("start must assign a call id")
	}
	if len(mock.StartCalls) != 1 || mock.StartCalls[0] != "asst_test" {
		t.Errorf("client start calls mismatch: %v", mock.StartCalls)
	}

	mock.SimulateCallStart()
	waitStatus(t, c, StatusConnected)

	snap = c.Snapshot()
	if snap.DurationSeconds != 0 {
		t.Errorf("duration should start at 0, got %d", snap.DurationSeconds)
	}
	last := snap.Log[len(snap.Log)-1]
	if last.Severity != SeveritySuccess {
		t.Errorf("expected success log entry, got %q (%s)", last.Message, last.Severity)
	}
}

func TestStartWhileConnected(t *testing.T) {
	c, mock, _ := newTestController(t)

	_ = c.Start(context.Background())
	mock.SimulateCallStart()
	waitStatus(t, c, StatusConnected)

	if err := c.Start(context.Background()); !errors.Is(err, ErrCallInProgress) {
		t.Errorf("expected ErrCallInProgress, got %v", err)
	}
	if got := c.Snapshot().Status; got != StatusConnected {
		t.Errorf("second start must not change state, got %v", got)
	}
	if len(mock.StartCalls) != 1 {
		t.Errorf("second start must not reach the client, got %d calls", len(mock.StartCalls))
	}
}

func TestVendorError(t *testing.T) {
	c, mock, _ := newTestController(t)

	_ = c.Start(context.Background())
	mock.SimulateError(&assistant.CallError{Message: "network down"})
	waitStatus(t, c, StatusError)

	snap := c.Snapshot()
	if snap.DurationSeconds != 0 {
		t.Errorf("error must reset duration, got %d", snap.DurationSeconds)
	}
	last := snap.Log[len(snap.Log)-1]
	if last.Severity != SeverityError {
		t.Errorf("expected error log entry, got %s", last.Severity)
	}
	if !contains(last.Message, "network down") {
		t.Errorf("error message should include vendor payload, got %q", last.Message)
	}

	// Retry from error state is allowed.
	if err := c.Start(context.Background()); err != nil {
		t.Errorf("retry from error state failed: %v", err)
	}
	if got := c.Snapshot().Status; got != StatusConnecting {
		t.Errorf("expected connecting after retry, got %v", got)
	}
}

func TestErrorAfterConnected(t *testing.T) {
	c, mock, clock := newTestController(t)

	_ = c.Start(context.Background())
	mock.SimulateCallStart()
	waitStatus(t, c, StatusConnected)

	clock.Advance(3 * time.Second)
	waitDuration(t, c, 3)

	mock.SimulateError(errors.New("dropped"))
	waitStatus(t, c, StatusError)

	snap := c.Snapshot()
	if snap.DurationSeconds != 0 {
		t.Errorf("error must stop the ticker and reset duration, got %d", snap.DurationSeconds)
	}

	// A dangling tick after the reset must not resurrect the duration.
	clock.Advance(10 * time.Second)
	time.Sleep(30 * time.Millisecond)
	if got := c.Snapshot().DurationSeconds; got != 0 {
		t.Errorf("stale tick changed duration to %d", got)
	}
}

func TestCallEnd(t *testing.T) {
	c, mock, clock := newTestController(t)

	_ = c.Start(context.Background())
	mock.SimulateCallStart()
	waitStatus(t, c, StatusConnected)

	clock.Advance(5 * time.Second)
	waitDuration(t, c, 5)

	mock.SimulateCallEnd()
	waitStatus(t, c, StatusIdle)

	if got := c.Snapshot().DurationSeconds; got != 0 {
		t.Errorf("duration must be 0 after returning to idle, got %d", got)
	}
}

func TestUserStop(t *testing.T) {
	c, mock, clock := newTestController(t)

	_ = c.Start(context.Background())
	mock.SimulateCallStart()
	waitStatus(t, c, StatusConnected)

	clock.Advance(7 * time.Second)
	waitDuration(t, c, 7)

	if err := c.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	snap := c.Snapshot()
	if snap.Status != StatusIdle {
		t.Errorf("expected idle after stop, got %v", snap.Status)
	}
	if snap.DurationSeconds != 0 {
		t.Errorf("stop must reset duration, got %d", snap.DurationSeconds)
	}
	if mock.StopCalls != 1 {
		t.Errorf("client stop must be invoked exactly once, got %d", mock.StopCalls)
	}
}

func TestStopWhileConnecting(t *testing.T) {
	c, mock, _ := newTestController(t)

	_ = c.Start(context.Background())
	if got := c.Snapshot().Status; got != StatusConnecting {
		t.Fatalf("expected connecting, got %v", got)
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("stop while connecting failed: %v", err)
	}
	if got := c.Snapshot().Status; got != StatusIdle {
		t.Errorf("stop while connecting must reset to idle, got %v", got)
	}

	// A late call-start from the vendor must not revive the session.
	mock.SimulateCallStart()
	time.Sleep(30 * time.Millisecond)
	if got := c.Snapshot().Status; got != StatusIdle {
		t.Errorf("stale call-start changed status to %v", got)
	}
}

func TestStopWhenIdle(t *testing.T) {
	c, _, _ := newTestController(t)

	if err := c.Stop(); err != nil {
		t.Errorf("stop when idle must succeed, got %v", err)
	}
	snap := c.Snapshot()
	if snap.Status != StatusIdle || snap.DurationSeconds != 0 {
		t.Errorf("stop when idle must be a no-op, got %v/%d", snap.Status, snap.DurationSeconds)
	}
}

func TestStartFailure(t *testing.T) {
	c, mock, _ := newTestController(t)

	mock.StartFunc = func(ctx context.Context, assistantID string) error {
		return assistant.ErrConnectionFailed
	}

	err := c.Start(context.Background())
	if !errors.Is(err, assistant.ErrConnectionFailed) {
		t.Fatalf("expected connection failure, got %v", err)
	}

	snap := c.Snapshot()
	if snap.Status != StatusError {
		t.Errorf("failed start must end in error, got %v", snap.Status)
	}
	last := snap.Log[len(snap.Log)-1]
	if last.Severity != SeverityError {
		t.Errorf("expected error log entry, got %s", last.Severity)
	}
}

func TestDegradedMode(t *testing.T) {
	initErr := errors.New("VOICELOOP_API_KEY is not set")
	c := New(nil, Config{InitError: initErr})
	defer c.Close()

	snap := c.Snapshot()
	if !snap.Degraded {
		t.Error("controller should report degraded")
	}
	if len(snap.Log) != 1 || snap.Log[0].Severity != SeverityError {
		t.Fatalf("init failure must be logged, got %v", snap.Log)
	}

	if err := c.Start(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
	if got := c.Snapshot().Status; got != StatusIdle {
		t.Errorf("degraded start must leave status idle, got %v", got)
	}
	last := c.Snapshot().Log
	if m := last[len(last)-1].Message; !contains(m, "not initialized") {
		t.Errorf("degraded start must log an initialization error, got %q", m)
	}
}

func TestSpeechEventsLogOnly(t *testing.T) {
	c, mock, _ := newTestController(t)

	_ = c.Start(context.Background())
	mock.SimulateCallStart()
	waitStatus(t, c, StatusConnected)
	before := len(c.Snapshot().Log)

	mock.SimulateSpeechStart()
	mock.SimulateSpeechEnd()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(c.Snapshot().Log) >= before+2 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	snap := c.Snapshot()
	if snap.Status != StatusConnected {
		t.Errorf("speech events must not change status, got %v", snap.Status)
	}
	entries := snap.Log[before:]
	if len(entries) != 2 {
		t.Fatalf("expected 2 speech log entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Severity != SeverityInfo {
			t.Errorf("speech entries are informational, got %s", e.Severity)
		}
	}
}

func TestClearLog(t *testing.T) {
	c, mock, _ := newTestController(t)

	_ = c.Start(context.Background())
	mock.SimulateCallStart()
	waitStatus(t, c, StatusConnected)

	if len(c.Snapshot().Log) == 0 {
		t.Fatal("expected log entries before clearing")
	}

	c.ClearLog()
	snap := c.Snapshot()
	if len(snap.Log) != 0 {
		t.Errorf("clear must empty the log, got %d entries", len(snap.Log))
	}
	if snap.Status != StatusConnected {
		t.Errorf("clear must not touch status, got %v", snap.Status)
	}

	// Subsequent events still append.
	mock.SimulateSpeechStart()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(c.Snapshot().Log) == 1 {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Error("events after clear must still append")
}

func TestDurationTicks(t *testing.T) {
	c, mock, clock := newTestController(t)

	_ = c.Start(context.Background())
	mock.SimulateCallStart()
	waitStatus(t, c, StatusConnected)

	// Non-decreasing while connected.
	for _, want := range []int{1, 2, 30, 65} {
		clock.Advance(time.Duration(want-c.Snapshot().DurationSeconds) * time.Second)
		waitDuration(t, c, want)
	}

	if got := c.Snapshot().Duration; got != "01:05" {
		t.Errorf("65 seconds should format as 01:05, got %q", got)
	}
}

func TestLogCap(t *testing.T) {
	mock := assistant.NewMock()
	c := New(mock, Config{AssistantID: "asst_test", LogLimit: 10})
	defer c.Close()

	for i := 0; i < 25; i++ {
		mock.SimulateSpeechStart()
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(c.Snapshot().Log) == 10 {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Errorf("log should be capped at 10 entries, got %d", len(c.Snapshot().Log))
}

func TestSnapshotSequence(t *testing.T) {
	c, _, _ := newTestController(t)

	// No vendor events are simulated, so every notification fires from
	// this goroutine and callback order matches mutation order.
	var seqs []uint64
	c.OnChange(func(s Snapshot) { seqs = append(seqs, s.Seq) })

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	c.ClearLog()

	if len(seqs) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(seqs))
	}
	for i := 1; i < len(seqs); i++ {
		if seqs[i] <= seqs[i-1] {
			t.Fatalf("sequence not increasing: %v", seqs)
		}
	}
}

func TestOnChange(t *testing.T) {
	c, mock, _ := newTestController(t)

	var mu sync.Mutex
	var statuses []Status
	c.OnChange(func(s Snapshot) {
		mu.Lock()
		statuses = append(statuses, s.Status)
		mu.Unlock()
	})

	_ = c.Start(context.Background())
	mock.SimulateCallStart()
	waitStatus(t, c, StatusConnected)

	mu.Lock()
	defer mu.Unlock()
	if len(statuses) < 2 {
		t.Fatalf("expected change notifications, got %d", len(statuses))
	}
	for _, s := range statuses {
		switch s {
		case StatusIdle, StatusConnecting, StatusConnected, StatusError:
		default:
			t.Errorf("observed impossible status %d", s)
		}
	}
}

func TestClose(t *testing.T) {
	c, mock, _ := newTestController(t)

	_ = c.Start(context.Background())
	mock.SimulateCallStart()
	waitStatus(t, c, StatusConnected)

	if err := c.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second close must be a no-op, got %v", err)
	}
	if err := c.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
}

func contains(s, substr string) bool {
	return strings.Contains(s, substr)
}
