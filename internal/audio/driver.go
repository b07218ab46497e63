// Package audio defines the capability interface to the device's
// speaker and microphone, plus the replay, mock, and disabled drivers
// used when real hardware is absent.
//
// The platform audio HAL itself lives outside this module; production
// builds inject a driver that wraps it. Everything in here exists so the
// pipeline and server can run headless.
package audio

import (
	"errors"
	"fmt"

	"github.com/hccps/sondar/internal/sonar"
)

// ErrReleased is returned by driver operations after Release.
var ErrReleased = errors.New("audio driver released")

// FrameCallback receives one capture buffer per invocation. The buffer
// is owned by the driver and may be reused immediately after the
// callback returns; receivers must copy before handing it elsewhere.
type FrameCallback func(frame sonar.RealFrame)

// Driver is the capability interface over the device audio path:
// mono signed-16 PCM capture at the configured sample rate, and chirp
// emission on the speaker.
type Driver interface {
	// StartCapture begins delivering capture buffers to the callback.
	StartCapture(onFrame FrameCallback) error
	// StopCapture stops the delivery of capture buffers.
	StopCapture() error
	// Emit writes one chirp buffer to the audio output.
	Emit(samples sonar.RealFrame) error
	// Release frees the underlying device. Implies StopCapture.
	Release() error
}

// New constructs a driver by kind: "disabled", "mock", or "replay"
// (which requires a raw PCM path).
func New(kind, replayPath string, frameSamples int) (Driver, error) {
	switch kind {
	case "disabled":
		return NewDisabledDriver(), nil
	case "mock":
		return NewMockDriver(), nil
	case "replay":
		if replayPath == "" {
			return nil, fmt.Errorf("replay driver requires a PCM file path")
		}
		return NewReplayDriver(replayPath, frameSamples)
	default:
		return nil, fmt.Errorf("unknown audio driver kind %q", kind)
	}
}
