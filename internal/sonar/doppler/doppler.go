// Package doppler estimates target radial velocity by correlating the
// received signal against time-warped copies of the chirp reference.
package doppler

import (
	"math"

	"github.com/hccps/sondar/internal/config"
	"github.com/hccps/sondar/internal/monitoring"
	"github.com/hccps/sondar/internal/sonar"
)

// refineSteps is the number of hypotheses in the fine sweep around the
// coarse argmax.
const refineSteps = 10

// refineHalfWidth is the half-width of the fine sweep in m/s.
const refineHalfWidth = 0.5

// Estimate is the outcome of one velocity search.
type Estimate struct {
	// Raw is the refined argmax velocity before smoothing, m/s.
	Raw float64
	// Smoothed is the EMA-filtered velocity, m/s.
	Smoothed float64
	// Correlation is the dot-product score of the winning template.
	Correlation float64
}

// Estimator performs the template-scaling velocity search. Smoothing is
// stateful, so an Estimator must see frames sequentially from a single
// goroutine.
type Estimator struct {
	template  sonar.ComplexFrame
	searchMax float64
	steps     int
	smoothing float64

	lastVelocity    float64
	lastCorrelation float64
}

// NewEstimator creates an Estimator for the given chirp reference.
func NewEstimator(cfg *config.SonarConfig, template sonar.ComplexFrame) *Estimator {
	return &Estimator{
		template:  template,
		searchMax: cfg.GetVelocitySearchMax(),
		steps:     cfg.GetVelocitySteps(),
		smoothing: cfg.GetSmoothingWeight(),
	}
}

// Estimate runs the coarse sweep, refines around the winner, smooths
// with the EMA, and records the winning correlation score.
func (e *Estimator) Estimate(received sonar.ComplexFrame) Estimate {
	bestCorrelation := -math.MaxFloat64
	bestVelocity := 0.0

	step := 2 * e.searchMax / float64(e.steps-1)
	for i := 0; i < e.steps; i++ {
		v := -e.searchMax + float64(i)*step
		corr := e.correlate(received, e.scaleTemplate(v))
		if corr > bestCorrelation {
			bestCorrelation = corr
			bestVelocity = v
		}
	}

	bestVelocity = e.refine(received, bestVelocity)

	finalCorrelation := e.correlate(received, e.scaleTemplate(bestVelocity))

	raw := bestVelocity
	e.lastVelocity = e.smoothing*e.lastVelocity + (1-e.smoothing)*bestVelocity
	e.lastCorrelation = finalCorrelation

	monitoring.Logf("doppler: raw=%.4f m/s smoothed=%.4f m/s corr=%.1f",
		raw, e.lastVelocity, finalCorrelation)

	return Estimate{
		Raw:         raw,
		Smoothed:    e.lastVelocity,
		Correlation: finalCorrelation,
	}
}

// LastVelocity returns the most recent smoothed velocity.
func (e *Estimator) LastVelocity() float64 {
	return e.lastVelocity
}

// LastCorrelation returns the correlation score of the last estimate.
func (e *Estimator) LastCorrelation() float64 {
	return e.lastCorrelation
}

// Reset clears the smoothing state between sessions.
func (e *Estimator) Reset() {
	e.lastVelocity = 0
	e.lastCorrelation = 0
}

// refine runs a finer uniform sweep around the coarse winner.
func (e *Estimator) refine(received sonar.ComplexFrame, initial float64) float64 {
	min := initial - refineHalfWidth
	step := 2 * refineHalfWidth / float64(refineSteps-1)

	bestCorrelation := -math.MaxFloat64
	best := initial
	for i := 0; i < refineSteps; i++ {
		v := min + float64(i)*step
		corr := e.correlate(received, e.scaleTemplate(v))
		if corr > bestCorrelation {
			bestCorrelation = corr
			best = v
		}
	}
	return best
}

// scaleTemplate builds a time-warped copy of the reference for one
// velocity hypothesis: output index i samples the reference at i/s with
// s = 1 + v/c. Out-of-range lookups produce zero.
func (e *Estimator) scaleTemplate(velocity float64) sonar.ComplexFrame {
	length := len(e.template)
	scaled := make(sonar.ComplexFrame, length)
	scale := 1 + velocity/sonar.SpeedOfSoundMps

	for i := 0; i < length; i++ {
		originalIdx := float64(i) / scale
		lower := int(math.Floor(originalIdx))
		upper := int(math.Ceil(originalIdx))
		fraction := originalIdx - float64(lower)

		if lower >= 0 && upper < length {
			lo := e.template[lower]
			hi := e.template[upper]
			scaled[i] = complex(
				real(lo)*(1-fraction)+real(hi)*fraction,
				imag(lo)*(1-fraction)+imag(hi)*fraction,
			)
		}
	}

	return scaled
}

// correlate scores a template against the received signal with a
// real-valued dot product over the central half of the overlap.
func (e *Estimator) correlate(received, template sonar.ComplexFrame) float64 {
	length := len(received)
	if len(template) < length {
		length = len(template)
	}

	start := length / 4
	end := 3 * length / 4

	correlation := 0.0
	for i := start; i < end; i++ {
		correlation += real(received[i])*real(template[i]) + imag(received[i])*imag(template[i])
	}
	return correlation
}
