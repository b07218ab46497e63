// Package align compensates captured echoes for target motion and for
// the fixed speaker-to-microphone latency of the device.
package align

import (
	"math"

	"github.com/hccps/sondar/internal/config"
	"github.com/hccps/sondar/internal/monitoring"
	"github.com/hccps/sondar/internal/sonar"
	"github.com/hccps/sondar/internal/sonar/doppler"
)

// Alignment is the outcome of aligning one frame.
type Alignment struct {
	Frame sonar.ComplexFrame
	// Velocity is the estimate used for the warp, after the
	// reliability override and clamping. m/s.
	Velocity float64
	// RawVelocity is the unsmoothed search winner, for logging.
	RawVelocity float64
	// Correlation is the winning template's score.
	Correlation float64
}

// Aligner time-warps frames by the estimated Doppler velocity and
// strips the configured device latency.
type Aligner struct {
	estimator *doppler.Estimator

	latencySamples    int
	weaknessThreshold float64
	reliability       float64
	clampMax          float64
}

// NewAligner creates an Aligner that estimates velocity against the
// given chirp reference.
func NewAligner(cfg *config.SonarConfig, template sonar.ComplexFrame) *Aligner {
	return &Aligner{
		estimator:         doppler.NewEstimator(cfg, template),
		latencySamples:    cfg.LatencySamples(),
		weaknessThreshold: cfg.GetWeaknessThreshold(),
		reliability:       cfg.GetReliabilityThreshold(),
		clampMax:          cfg.GetVelocityClampMax(),
	}
}

// Estimator exposes the underlying Doppler state, mainly for session
// reset and inspection.
func (a *Aligner) Estimator() *doppler.Estimator {
	return a.estimator
}

// Align estimates the Doppler velocity of the frame, warps it to undo
// the time dilation, and removes the device latency. Weak frames are
// returned unchanged with a zero velocity; a warp that degenerates to
// all zeros falls back to the unwarped input.
func (a *Aligner) Align(signal sonar.ComplexFrame) Alignment {
	if len(signal) == 0 {
		monitoring.Logf("align: empty frame")
		return Alignment{Frame: sonar.ComplexFrame{}}
	}

	if max := signal.MaxMagnitude(); max < a.weaknessThreshold {
		monitoring.Logf("align: signal too weak (max=%.4f), passing through", max)
		return Alignment{Frame: signal}
	}

	est := a.estimator.Estimate(signal)
	velocity := est.Smoothed
	if est.Correlation < a.reliability {
		monitoring.Logf("align: low correlation %.1f, forcing velocity to 0", est.Correlation)
		velocity = 0
	}
	velocity = sonar.Clamp(velocity, a.clampMax)

	aligned := warp(signal, velocity)
	if aligned.IsAllZero() {
		monitoring.Logf("align: warp produced all zeros, using original frame")
		aligned = signal
	}

	return Alignment{
		Frame:       removeLatency(aligned, a.latencySamples),
		Velocity:    velocity,
		RawVelocity: est.Raw,
		Correlation: est.Correlation,
	}
}

// warp resamples the signal at i*s with s = 1 + v/c, undoing the
// Doppler time dilation. When only one interpolation neighbour is in
// range it is used verbatim; fully out-of-range indices produce zero.
func warp(signal sonar.ComplexFrame, velocity float64) sonar.ComplexFrame {
	length := len(signal)
	out := make(sonar.ComplexFrame, length)
	scale := 1 + velocity/sonar.SpeedOfSoundMps

	for i := 0; i < length; i++ {
		originalIdx := float64(i) * scale
		lower := int(math.Floor(originalIdx))
		upper := int(math.Ceil(originalIdx))
		fraction := originalIdx - float64(lower)

		switch {
		case lower >= 0 && upper < length:
			lo := signal[lower]
			hi := signal[upper]
			out[i] = complex(
				real(lo)*(1-fraction)+real(hi)*fraction,
				imag(lo)*(1-fraction)+imag(hi)*fraction,
			)
		case lower >= 0 && lower < length:
			out[i] = signal[lower]
		case upper >= 0 && upper < length:
			out[i] = signal[upper]
		}
	}

	return out
}

// removeLatency left-shifts the signal by the given sample count,
// zero-filling the tail.
func removeLatency(signal sonar.ComplexFrame, latencySamples int) sonar.ComplexFrame {
	if latencySamples <= 0 {
		return signal
	}

	length := len(signal)
	out := make(sonar.ComplexFrame, length)
	for i := 0; i < length; i++ {
		if i+latencySamples < length {
			out[i] = signal[i+latencySamples]
		}
	}
	return out
}
