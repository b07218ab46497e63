package audio

import (
	"sync"

	"github.com/hccps/sondar/internal/sonar"
)

// MockDriver is a scriptable Driver for tests. Frames pushed with
// PushFrame are delivered synchronously to the capture callback, and
// emitted chirps are recorded for inspection.
type MockDriver struct {
	mu sync.Mutex

	// EmitError is returned by the next Emit call if set.
	EmitError error

	callback  FrameCallback
	capturing bool
	released  bool

	emitted      []sonar.RealFrame
	framesPushed int
}

// NewMockDriver creates a MockDriver.
func NewMockDriver() *MockDriver {
	return &MockDriver{}
}

// StartCapture implements Driver.
func (m *MockDriver) StartCapture(onFrame FrameCallback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return ErrReleased
	}
	m.callback = onFrame
	m.capturing = true
	return nil
}

// StopCapture implements Driver.
func (m *MockDriver) StopCapture() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capturing = false
	return nil
}

// Emit implements Driver, recording the chirp buffer.
func (m *MockDriver) Emit(samples sonar.RealFrame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return ErrReleased
	}
	if m.EmitError != nil {
		err := m.EmitError
		m.EmitError = nil
		return err
	}
	m.emitted = append(m.emitted, samples.Clone())
	return nil
}

// Release implements Driver.
func (m *MockDriver) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capturing = false
	m.released = true
	return nil
}

// PushFrame delivers one capture buffer to the registered callback, as
// the platform capture thread would. The buffer is reused semantics:
// the same slice is handed to the callback directly.
func (m *MockDriver) PushFrame(frame sonar.RealFrame) bool {
	m.mu.Lock()
	cb := m.callback
	capturing := m.capturing
	m.framesPushed++
	m.mu.Unlock()

	if !capturing || cb == nil {
		return false
	}
	cb(frame)
	return true
}

// Emitted returns the chirp buffers recorded so far.
func (m *MockDriver) Emitted() []sonar.RealFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sonar.RealFrame, len(m.emitted))
	copy(out, m.emitted)
	return out
}

// EmitCount returns the number of successful Emit calls.
func (m *MockDriver) EmitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.emitted)
}

// Capturing reports whether a capture callback is active.
func (m *MockDriver) Capturing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capturing
}
