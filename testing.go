package streamrig

import (
	"sync"

	"github.com/streamrig/streamrig/internal/filter"
	"github.com/streamrig/streamrig/internal/machine"
	"github.com/streamrig/streamrig/internal/registry"
)

// MockMachine is a test double implementing machine.Impl, playing back
// a fixed byte sequence on Read and recording everything passed to
// Write, with call-count tracking for verification.
type MockMachine struct {
	mu sync.Mutex

	readData   []byte
	readStatus filter.Status

	written     []byte
	writeStatus filter.Status

	closed  bool
	stopped bool

	readCalls  int
	writeCalls int
	stopCalls  int
	closeCalls int
}

// NewMockMachine creates a mock machine that returns StatusSuccess
// from both Read and Write until reconfigured.
func NewMockMachine() *MockMachine {
	return &MockMachine{
		readStatus:  filter.StatusSuccess,
		writeStatus: filter.StatusSuccess,
	}
}

// SetReadData queues bytes to be handed back by subsequent Read calls.
func (m *MockMachine) SetReadData(b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readData = append([]byte(nil), b...)
}

// SetReadStatus overrides the Status returned once readData is
// exhausted (default StatusSuccess, set to StatusComplete to simulate
// end-of-data).
func (m *MockMachine) SetReadStatus(s filter.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readStatus = s
}

// SetWriteStatus overrides the Status Write returns (default
// StatusSuccess, set to StatusError to simulate an I/O failure).
func (m *MockMachine) SetWriteStatus(s filter.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeStatus = s
}

// Read implements machine.Impl.
func (m *MockMachine) Read(buf []byte, mode filter.BlockMode) (int, filter.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.readCalls++
	if m.closed {
		return 0, filter.StatusError
	}

	if len(m.readData) == 0 {
		return 0, m.readStatus
	}

	n := copy(buf, m.readData)
	m.readData = m.readData[n:]
	return n, filter.StatusSuccess
}

// Write implements machine.Impl.
func (m *MockMachine) Write(buf []byte, mode filter.BlockMode) (int, filter.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writeCalls++
	if m.closed {
		return 0, filter.StatusError
	}
	if m.writeStatus == filter.StatusError {
		return 0, filter.StatusError
	}

	m.written = append(m.written, buf...)
	return len(buf), m.writeStatus
}

// Stop implements machine.Impl.
func (m *MockMachine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
	m.stopped = true
}

// Close implements machine.Impl.
func (m *MockMachine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalls++
	m.closed = true
	return nil
}

// Written returns a copy of everything accumulated across Write calls.
func (m *MockMachine) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.written...)
}

// IsClosed reports whether Close has been called.
func (m *MockMachine) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// IsStopped reports whether Stop has been called.
func (m *MockMachine) IsStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// CallCounts returns how many times each method has been called.
func (m *MockMachine) CallCounts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int{
		"read":  m.readCalls,
		"write": m.writeCalls,
		"stop":  m.stopCalls,
		"close": m.closeCalls,
	}
}

// Reset clears all call counters and recorded bytes without touching
// closed/stopped state.
func (m *MockMachine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readCalls, m.writeCalls, m.stopCalls, m.closeCalls = 0, 0, 0, 0
	m.written = nil
}

var _ machine.Impl = (*MockMachine)(nil)

// NewMockHandle creates a handle-table entry wrapping a fresh
// MockMachine under kind, for tests that need a real Handle without
// going through a registered machine kind's factory.
func NewMockHandle(kind Kind) (Handle, *MockMachine) {
	m := NewMockMachine()
	d := machine.NewDesc(nil, m, "_mock")
	h := registry.Global.RequestHandle(kind, d)
	return h, m
}
