package audio

import "github.com/hccps/sondar/internal/sonar"

// DisabledDriver is a no-op Driver used when audio hardware is absent
// (selected by -driver=disabled, the server's default). It lets the
// server and admin surfaces run without a device; capture never
// delivers a frame and emission is discarded.
type DisabledDriver struct{}

// NewDisabledDriver creates a DisabledDriver.
func NewDisabledDriver() *DisabledDriver {
	return &DisabledDriver{}
}

// StartCapture implements Driver. No frames will ever be delivered.
func (*DisabledDriver) StartCapture(FrameCallback) error { return nil }

// StopCapture implements Driver.
func (*DisabledDriver) StopCapture() error { return nil }

// Emit implements Driver.
func (*DisabledDriver) Emit(sonar.RealFrame) error { return nil }

// Release implements Driver.
func (*DisabledDriver) Release() error { return nil }
