// Package siglog records per-stage signal traces for offline analysis.
// A logger accumulates a ring of recent samples and writes one JSON
// document per experiment, mirroring the layout the analysis notebooks
// expect: experiment metadata plus per-sample stage traces, stage
// statistics, image dumps, and velocity records.
package siglog

import (
	"encoding/json"
	"fmt"
	"math/cmplx"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/hccps/sondar/internal/config"
	"github.com/hccps/sondar/internal/monitoring"
	"github.com/hccps/sondar/internal/sonar"
)

// ringSize bounds the number of recent samples kept in memory.
const ringSize = 10

// tracePoints is the approximate number of points kept per stage trace.
const tracePoints = 100

// Stats summarises one stage's trace or image.
type Stats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	Rows int     `json:"rows,omitempty"`
	Cols int     `json:"cols,omitempty"`
}

// VelocityRecord is one velocity estimation outcome.
type VelocityRecord struct {
	RawVelocity      float64 `json:"rawVelocity"`
	SmoothedVelocity float64 `json:"smoothedVelocity"`
	CorrelationScore float64 `json:"correlationScore"`
}

// sample collects everything logged for one frame index.
type sample struct {
	index     int
	rawSignal []float64
	stages    map[string][]float64
	stats     map[string]Stats
	images    map[string][][]float64
	velocity  *VelocityRecord
}

// MarshalJSON flattens the sample into the flat stage-keyed layout.
func (s *sample) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{"sampleIndex": s.index}
	if s.rawSignal != nil {
		m["rawSignal"] = s.rawSignal
	}
	for stage, trace := range s.stages {
		m[stage] = trace
	}
	for stage, st := range s.stats {
		m[stage+"_stats"] = st
	}
	for stage, img := range s.images {
		m[stage+"_image"] = img
	}
	if s.velocity != nil {
		m["velocityData"] = s.velocity
	}
	return json.Marshal(m)
}

// Logger accumulates experiment data. All methods are safe for
// concurrent use; logging calls on a disabled logger are no-ops.
type Logger struct {
	mu sync.Mutex

	cfg       *config.SonarConfig
	enabled   bool
	name      string
	outputDir string
	startTime time.Time
	expID     string

	samples []*sample
}

// NewLogger creates a disabled Logger; StartExperiment enables it.
func NewLogger(cfg *config.SonarConfig) *Logger {
	return &Logger{cfg: cfg}
}

// StartExperiment resets state and begins recording under the given
// experiment name. Files are written into dir on Save.
func (l *Logger) StartExperiment(name, dir string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.enabled = true
	l.name = name
	l.outputDir = dir
	l.startTime = time.Now()
	l.expID = uuid.NewString()
	l.samples = nil

	monitoring.Logf("siglog: started experiment %q (%s)", name, l.expID)
}

// Enabled reports whether an experiment is recording.
func (l *Logger) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// LogRaw records a downsampled trace of the raw PCM frame.
func (l *Logger) LogRaw(frame sonar.RealFrame, index int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled {
		return
	}

	trace := make([]float64, 0, tracePoints)
	for i := 0; i < len(frame); i += stride(len(frame)) {
		trace = append(trace, float64(frame[i]))
	}

	s := l.findOrCreate(index)
	s.rawSignal = trace
}

// LogComplex records a downsampled magnitude trace plus stats for one
// processing stage.
func (l *Logger) LogComplex(frame sonar.ComplexFrame, index int, stage string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled || len(frame) == 0 {
		return
	}

	magnitudes := make([]float64, len(frame))
	for i, c := range frame {
		magnitudes[i] = cmplx.Abs(c)
	}

	trace := make([]float64, 0, tracePoints)
	for i := 0; i < len(magnitudes); i += stride(len(magnitudes)) {
		trace = append(trace, magnitudes[i])
	}

	s := l.findOrCreate(index)
	s.stages[stage] = trace
	s.stats[stage] = Stats{
		Min:  floats.Min(magnitudes),
		Max:  floats.Max(magnitudes),
		Mean: stat.Mean(magnitudes, nil),
	}
}

// LogImage records a magnitude image plus stats for one stage.
func (l *Logger) LogImage(img sonar.RangeDopplerImage, index int, stage string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled || len(img) == 0 {
		return
	}

	rows := len(img)
	cols := len(img[0])
	flat := make([]float64, 0, rows*cols)
	dump := make([][]float64, rows)
	for i, row := range img {
		dump[i] = make([]float64, cols)
		for j, v := range row {
			dump[i][j] = float64(v)
			flat = append(flat, float64(v))
		}
	}

	s := l.findOrCreate(index)
	s.images[stage] = dump
	s.stats[stage] = Stats{
		Min:  floats.Min(flat),
		Max:  floats.Max(flat),
		Mean: stat.Mean(flat, nil),
		Rows: rows,
		Cols: cols,
	}
}

// LogVelocity records one velocity estimation outcome.
func (l *Logger) LogVelocity(raw, smoothed, correlation float64, index int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled {
		return
	}

	s := l.findOrCreate(index)
	s.velocity = &VelocityRecord{
		RawVelocity:      raw,
		SmoothedVelocity: smoothed,
		CorrelationScore: correlation,
	}
}

// Save writes the experiment document and disables further logging.
func (l *Logger) Save() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled {
		return "", fmt.Errorf("no experiment in progress")
	}
	l.enabled = false

	doc := map[string]interface{}{
		"metadata": map[string]interface{}{
			"name":          l.name,
			"startTime":     l.startTime.Format("2006-01-02 15:04:05"),
			"endTime":       time.Now().Format("2006-01-02 15:04:05"),
			"experimentId":  l.expID,
			"chirpMinFreq":  l.cfg.GetChirpMinFreqHz(),
			"chirpMaxFreq":  l.cfg.GetChirpMaxFreqHz(),
			"chirpDuration": l.cfg.GetChirpDurationMs(),
			"sampleRate":    l.cfg.GetSampleRateHz(),
			"deviceLatency": l.cfg.GetDeviceLatencyMs(),
		},
		"samples": l.samples,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal experiment data: %w", err)
	}

	if err := os.MkdirAll(l.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	filename := fmt.Sprintf("%s_%s.json", sanitise(l.name), l.startTime.Format("20060102_150405"))
	path := filepath.Join(l.outputDir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write experiment file: %w", err)
	}

	monitoring.Logf("siglog: saved experiment %q to %s (%d samples)", l.name, path, len(l.samples))
	return path, nil
}

// findOrCreate returns the sample for an index, evicting the oldest
// sample when the ring is full. Callers hold l.mu.
func (l *Logger) findOrCreate(index int) *sample {
	for _, s := range l.samples {
		if s.index == index {
			return s
		}
	}

	s := &sample{
		index:  index,
		stages: map[string][]float64{},
		stats:  map[string]Stats{},
		images: map[string][][]float64{},
	}
	l.samples = append(l.samples, s)
	if len(l.samples) > ringSize {
		l.samples = l.samples[len(l.samples)-ringSize:]
	}
	return s
}

// stride returns the downsampling step for a trace of length n.
func stride(n int) int {
	step := n / tracePoints
	if step < 1 {
		return 1
	}
	return step
}

// sanitise makes an experiment name safe for a filename.
func sanitise(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "experiment"
	}
	return string(out)
}
