// Package chirp synthesises the emitted FM up-chirp and the matched
// templates used by the Doppler search and the dechirp mixer.
package chirp

import (
	"math"

	"github.com/hccps/sondar/internal/config"
	"github.com/hccps/sondar/internal/sonar"
	"github.com/hccps/sondar/internal/sonar/dsp"
)

// amplitudeScale keeps the emitted waveform at 80% of full scale to
// leave headroom for the speaker driver.
const amplitudeScale = 0.8

// Synthesizer generates chirp waveforms for a fixed configuration. The
// generated buffers are computed once and reused for the whole session.
type Synthesizer struct {
	sampleRate int
	minFreq    float64
	maxFreq    float64
	durationMs float64
}

// NewSynthesizer creates a Synthesizer from the session configuration.
func NewSynthesizer(cfg *config.SonarConfig) *Synthesizer {
	return &Synthesizer{
		sampleRate: cfg.GetSampleRateHz(),
		minFreq:    cfg.GetChirpMinFreqHz(),
		maxFreq:    cfg.GetChirpMaxFreqHz(),
		durationMs: cfg.GetChirpDurationMs(),
	}
}

// NumSamples returns the length of one chirp in samples.
func (s *Synthesizer) NumSamples() int {
	return int(float64(s.sampleRate) * s.durationMs / 1000.0)
}

// rate returns the chirp rate in Hz/s.
func (s *Synthesizer) rate() float64 {
	return (s.maxFreq - s.minFreq) / (s.durationMs / 1000.0)
}

// phaseAt returns the instantaneous phase at sample i.
func (s *Synthesizer) phaseAt(i int) float64 {
	t := float64(i) / float64(s.sampleRate)
	return 2 * math.Pi * (s.minFreq*t + 0.5*s.rate()*t*t)
}

// Waveform generates the Hamming-windowed emission waveform as PCM
// samples, peaking at 80% of the signed-16 maximum.
func (s *Synthesizer) Waveform() sonar.RealFrame {
	n := s.NumSamples()
	out := make(sonar.RealFrame, n)
	for i := 0; i < n; i++ {
		amplitude := float64(math.MaxInt16) * amplitudeScale * dsp.Hamming(i, n)
		out[i] = int16(amplitude * math.Sin(s.phaseAt(i)))
	}
	return out
}

// Template returns the analytic reference used by the Doppler search:
// the real emission waveform with zero imaginary parts. The full
// Hilbert transform is deliberately omitted to stay within the
// per-frame latency budget.
func (s *Synthesizer) Template() sonar.ComplexFrame {
	waveform := s.Waveform()
	out := make(sonar.ComplexFrame, len(waveform))
	for i, v := range waveform {
		out[i] = complex(float64(v), 0)
	}
	return out
}

// Downchirp returns the negative-phase complex chirp used as the
// baseband mixing signal.
func (s *Synthesizer) Downchirp() sonar.ComplexFrame {
	n := s.NumSamples()
	out := make(sonar.ComplexFrame, n)
	for i := 0; i < n; i++ {
		phi := s.phaseAt(i)
		out[i] = complex(math.Cos(-phi), math.Sin(-phi))
	}
	return out
}
