package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/hccps/sondar/internal/monitoring"
	"github.com/hccps/sondar/internal/sonar"
)

// frameInterval is the wall-clock spacing of replayed capture buffers,
// matching the 20 ms buffers the real driver delivers.
const frameInterval = 20 * time.Millisecond

// ReplayDriver replays raw mono signed-16 little-endian PCM from a file
// as if it were live capture, one buffer every 20 ms. Emission is a
// no-op beyond counting, since there is no speaker to drive.
type ReplayDriver struct {
	mu sync.Mutex

	path         string
	frameSamples int

	stopCh    chan struct{}
	doneCh    chan struct{}
	capturing bool
	released  bool

	emitCount int
}

// NewReplayDriver creates a ReplayDriver for the given PCM file.
func NewReplayDriver(path string, frameSamples int) (*ReplayDriver, error) {
	if frameSamples <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %d", frameSamples)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("replay file: %w", err)
	}
	return &ReplayDriver{path: path, frameSamples: frameSamples}, nil
}

// StartCapture implements Driver: a goroutine reads the file and
// delivers one frame per tick until EOF or StopCapture.
func (r *ReplayDriver) StartCapture(onFrame FrameCallback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	if r.capturing {
		return fmt.Errorf("capture already running")
	}

	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("failed to open replay file: %w", err)
	}

	r.capturing = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	go func(stop <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		defer f.Close()

		ticker := time.NewTicker(frameInterval)
		defer ticker.Stop()

		buf := make(sonar.RealFrame, r.frameSamples)
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := binary.Read(f, binary.LittleEndian, buf); err != nil {
					if err != io.EOF && err != io.ErrUnexpectedEOF {
						monitoring.Logf("replay: read error: %v", err)
					}
					monitoring.Logf("replay: end of file %s", r.path)
					return
				}
				onFrame(buf)
			}
		}
	}(r.stopCh, r.doneCh)

	return nil
}

// StopCapture implements Driver.
func (r *ReplayDriver) StopCapture() error {
	r.mu.Lock()
	if !r.capturing {
		r.mu.Unlock()
		return nil
	}
	r.capturing = false
	close(r.stopCh)
	done := r.doneCh
	r.mu.Unlock()

	<-done
	return nil
}

// Emit implements Driver.
func (r *ReplayDriver) Emit(samples sonar.RealFrame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	r.emitCount++
	return nil
}

// EmitCount returns the number of Emit calls so far.
func (r *ReplayDriver) EmitCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emitCount
}

// Release implements Driver.
func (r *ReplayDriver) Release() error {
	if err := r.StopCapture(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = true
	return nil
}
