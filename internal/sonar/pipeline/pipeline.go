// Package pipeline orchestrates the sensing loop: chirp emission,
// frame capture, the per-frame processing chain, and result fan-out.
//
// This package is the composition root: it imports the stage packages
// (chirp, dsp, align, downconv, background, phase, imaging) but none of
// those packages import pipeline.
//
// Three actors run per session: the driver's capture thread (which must
// never block), a single processing goroutine that owns all pipeline
// state, and a ticker-driven emission goroutine. Frames queue at depth
// one between capture and processing; overruns are dropped.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hccps/sondar/internal/audio"
	"github.com/hccps/sondar/internal/config"
	"github.com/hccps/sondar/internal/monitoring"
	"github.com/hccps/sondar/internal/sonar"
	"github.com/hccps/sondar/internal/sonar/align"
	"github.com/hccps/sondar/internal/sonar/background"
	"github.com/hccps/sondar/internal/sonar/chirp"
	"github.com/hccps/sondar/internal/sonar/downconv"
	"github.com/hccps/sondar/internal/sonar/dsp"
	"github.com/hccps/sondar/internal/sonar/imaging"
)

// emitterStopTimeout bounds the wait for the emission actor on Stop.
const emitterStopTimeout = 500 * time.Millisecond

// drainTimeout bounds the wait for the processing actor on Stop.
const drainTimeout = 1 * time.Second

// distanceHistorySize bounds the per-frame distance ring consumed by
// the physical mapper's motion estimation.
const distanceHistorySize = 32

// ObservationStore persists per-frame observations. A nil store
// disables persistence.
type ObservationStore interface {
	RecordObservation(sessionID string, frameIndex int, velocityMps, correlation, peakMagnitude float64) error
	RecordSizeEstimate(sessionID string, frameIndex int, lengthMM, widthMM float64, shape string) error
}

// TraceLogger receives per-stage signal traces. A nil logger disables
// tracing. *siglog.Logger satisfies this.
type TraceLogger interface {
	LogRaw(frame sonar.RealFrame, index int)
	LogComplex(frame sonar.ComplexFrame, index int, stage string)
	LogImage(img sonar.RangeDopplerImage, index int, stage string)
	LogVelocity(raw, smoothed, correlation float64, index int)
}

// Processor runs the sensing pipeline for one session.
type Processor struct {
	cfg    *config.SonarConfig
	driver audio.Driver
	store  ObservationStore
	trace  TraceLogger

	chirpWaveform sonar.RealFrame
	prefilter     *dsp.BandpassFIR
	doubleFilter  bool
	aligner       *align.Aligner
	down          *downconv.Downconverter
	subtractor    *background.Subtractor
	mapper        *imaging.Mapper
	classifier    imaging.Classifier

	running atomic.Bool
	cancel  context.CancelFunc
	frameCh chan sonar.RealFrame

	procDone chan struct{}
	emitDone chan struct{}

	subscriberMu sync.Mutex
	subscribers  map[string]chan *sonar.Result

	// State below is written only by the processing actor; the mutex
	// guards cross-actor reads of the snapshots.
	snapMu         sync.Mutex
	sessionID      string
	frameIndex     int
	lastResult     *sonar.Result
	lastForeground sonar.TFImage
	distances      []float64

	framesDropped atomic.Int64
	framesDone    atomic.Int64
}

// Option customises a Processor.
type Option func(*Processor)

// WithStore attaches an observation store.
func WithStore(store ObservationStore) Option {
	return func(p *Processor) { p.store = store }
}

// WithTraceLogger attaches a per-stage trace logger.
func WithTraceLogger(trace TraceLogger) Option {
	return func(p *Processor) { p.trace = trace }
}

// WithClassifier replaces the default shape classifier.
func WithClassifier(c imaging.Classifier) Option {
	return func(p *Processor) { p.classifier = c }
}

// NewProcessor builds the pipeline for the given configuration and
// audio driver. Templates and the FIR kernel are generated once here
// and reused for the whole session.
func NewProcessor(cfg *config.SonarConfig, driver audio.Driver, opts ...Option) *Processor {
	synth := chirp.NewSynthesizer(cfg)

	p := &Processor{
		cfg:           cfg,
		driver:        driver,
		chirpWaveform: synth.Waveform(),
		prefilter: dsp.NewBandpassFIR(
			cfg.GetChirpMinFreqHz(), cfg.GetChirpMaxFreqHz(),
			cfg.GetSampleRateHz(), cfg.GetFIRKernelSize()),
		doubleFilter: cfg.GetDoubleFilter(),
		aligner:      align.NewAligner(cfg, synth.Template()),
		down:         downconv.NewDownconverter(cfg, synth.Downchirp()),
		subtractor:   background.NewSubtractor(cfg.GetBackgroundAlpha()),
		mapper:       imaging.NewMapper(cfg),
		classifier:   imaging.HeuristicClassifier{},
		subscribers:  map[string]chan *sonar.Result{},
	}

	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SessionID returns the identifier of the current (or last) session.
func (p *Processor) SessionID() string {
	p.snapMu.Lock()
	defer p.snapMu.Unlock()
	return p.sessionID
}

// Running reports whether a session is active.
func (p *Processor) Running() bool {
	return p.running.Load()
}

// FramesDropped returns the number of capture buffers rejected because
// the processing actor was saturated.
func (p *Processor) FramesDropped() int64 {
	return p.framesDropped.Load()
}

// FramesProcessed returns the number of frames fully processed.
func (p *Processor) FramesProcessed() int64 {
	return p.framesDone.Load()
}

// Start begins capture, processing, and chirp emission. It is a no-op
// if the session is already running.
func (p *Processor) Start(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return nil
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.frameCh = make(chan sonar.RealFrame, 1)
	p.procDone = make(chan struct{})
	p.emitDone = make(chan struct{})

	p.snapMu.Lock()
	p.sessionID = uuid.NewString()
	p.frameIndex = 0
	p.lastResult = nil
	p.lastForeground = nil
	p.distances = nil
	p.snapMu.Unlock()
	p.subtractor.Reset()
	p.aligner.Estimator().Reset()

	if err := p.driver.StartCapture(p.onFrame); err != nil {
		p.running.Store(false)
		p.cancel()
		return err
	}

	go p.processLoop(ctx)
	go p.emitLoop(ctx)

	monitoring.Logf("pipeline: session %s started", p.sessionID)
	return nil
}

// onFrame is the capture actor: it copies the driver's buffer and
// hands it to the processing actor without ever blocking.
func (p *Processor) onFrame(frame sonar.RealFrame) {
	if !p.running.Load() {
		return
	}

	select {
	case p.frameCh <- frame.Clone():
	default:
		n := p.framesDropped.Add(1)
		if n%50 == 1 {
			monitoring.Logf("pipeline: processing saturated, %d frames dropped", n)
		}
	}
}

// processLoop is the processing actor.
func (p *Processor) processLoop(ctx context.Context) {
	defer close(p.procDone)
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-p.frameCh:
			p.safeProcess(frame)
		}
	}
}

// safeProcess runs one frame and confines any stage fault to it.
func (p *Processor) safeProcess(frame sonar.RealFrame) {
	defer func() {
		if r := recover(); r != nil {
			monitoring.Logf("pipeline: stage fault, frame dropped: %v", r)
		}
	}()
	p.processFrame(frame)
}

// emitLoop is the emission actor: one chirp per emit period, starting
// immediately.
func (p *Processor) emitLoop(ctx context.Context) {
	defer close(p.emitDone)

	period := time.Duration(p.cfg.GetEmitPeriodMs()) * time.Millisecond
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	if err := p.driver.Emit(p.chirpWaveform); err != nil {
		monitoring.Logf("pipeline: chirp emission failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.driver.Emit(p.chirpWaveform); err != nil {
				monitoring.Logf("pipeline: chirp emission failed: %v", err)
			}
		}
	}
}

// Stop ends the session: the emitter is signalled and awaited briefly,
// the processing actor is drained with a grace period. Idempotent.
func (p *Processor) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}

	if err := p.driver.StopCapture(); err != nil {
		monitoring.Logf("pipeline: stop capture: %v", err)
	}
	p.cancel()

	select {
	case <-p.emitDone:
	case <-time.After(emitterStopTimeout):
		monitoring.Logf("pipeline: emitter did not stop within %v", emitterStopTimeout)
	}

	select {
	case <-p.procDone:
	case <-time.After(drainTimeout):
		monitoring.Logf("pipeline: processing did not drain within %v", drainTimeout)
	}

	monitoring.Logf("pipeline: session %s stopped (%d processed, %d dropped)",
		p.SessionID(), p.framesDone.Load(), p.framesDropped.Load())
}

// Release stops the session and frees the audio device.
func (p *Processor) Release() {
	p.Stop()
	if err := p.driver.Release(); err != nil {
		monitoring.Logf("pipeline: driver release: %v", err)
	}
}

// Subscribe returns a channel receiving published results. Slow
// subscribers miss results rather than stalling the pipeline.
func (p *Processor) Subscribe() (string, <-chan *sonar.Result) {
	id := uuid.NewString()
	ch := make(chan *sonar.Result, 1)
	p.subscriberMu.Lock()
	defer p.subscriberMu.Unlock()
	p.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (p *Processor) Unsubscribe(id string) {
	p.subscriberMu.Lock()
	defer p.subscriberMu.Unlock()
	if ch, ok := p.subscribers[id]; ok {
		close(ch)
		delete(p.subscribers, id)
	}
}

// LastResult returns the most recent published result.
func (p *Processor) LastResult() (*sonar.Result, bool) {
	p.snapMu.Lock()
	defer p.snapMu.Unlock()
	if p.lastResult == nil {
		return nil, false
	}
	return p.lastResult, true
}

// LastForeground returns the most recent background-subtracted
// time-frequency image.
func (p *Processor) LastForeground() (sonar.TFImage, bool) {
	p.snapMu.Lock()
	defer p.snapMu.Unlock()
	if p.lastForeground == nil {
		return nil, false
	}
	return p.lastForeground, true
}

// Distances returns the recent per-frame distance estimates, oldest
// first.
func (p *Processor) Distances() []float64 {
	p.snapMu.Lock()
	defer p.snapMu.Unlock()
	out := make([]float64, len(p.distances))
	copy(out, p.distances)
	return out
}

// CurrentSize maps the latest image to physical space and extracts the
// target size and shape. ok is false until a result exists.
func (p *Processor) CurrentSize() (imaging.Size, imaging.ShapeLabel, bool) {
	res, ok := p.LastResult()
	if !ok {
		return imaging.Size{}, imaging.ShapeUnknown, false
	}
	return p.sizeForResult(res)
}
