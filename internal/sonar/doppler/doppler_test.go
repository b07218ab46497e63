package doppler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hccps/sondar/internal/config"
	"github.com/hccps/sondar/internal/monitoring"
	"github.com/hccps/sondar/internal/sonar"
	"github.com/hccps/sondar/internal/sonar/chirp"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

// scaledEcho simulates the echo of the reference from a target moving
// at v: the received signal is the template time-scaled by 1 + v/c.
func scaledEcho(template sonar.ComplexFrame, v float64) sonar.ComplexFrame {
	scale := 1 + v/sonar.SpeedOfSoundMps
	out := make(sonar.ComplexFrame, len(template))
	for i := range out {
		src := float64(i) / scale
		lo := int(math.Floor(src))
		hi := int(math.Ceil(src))
		if lo < 0 || hi >= len(template) {
			continue
		}
		frac := src - float64(lo)
		out[i] = complex(
			real(template[lo])*(1-frac)+real(template[hi])*frac,
			imag(template[lo])*(1-frac)+imag(template[hi])*frac,
		)
	}
	return out
}

func newTestEstimator() (*Estimator, sonar.ComplexFrame) {
	cfg := config.EmptySonarConfig()
	template := chirp.NewSynthesizer(cfg).Template()
	return NewEstimator(cfg, template), template
}

func TestEstimateStationaryTarget(t *testing.T) {
	t.Parallel()

	est, template := newTestEstimator()
	result := est.Estimate(template)

	assert.InDelta(t, 0.0, result.Raw, 0.1)
	assert.Greater(t, result.Correlation, 1000.0)
}

func TestEstimateApproachingTarget(t *testing.T) {
	t.Parallel()

	est, template := newTestEstimator()
	echo := scaledEcho(template, 1.0)

	result := est.Estimate(echo)
	assert.InDelta(t, 1.0, result.Raw, 0.15)
	assert.Greater(t, result.Correlation, 1000.0)
}

func TestEstimateRecedingTarget(t *testing.T) {
	t.Parallel()

	est, template := newTestEstimator()
	echo := scaledEcho(template, -1.0)

	result := est.Estimate(echo)
	assert.InDelta(t, -1.0, result.Raw, 0.15)
}

func TestSmoothingConvergence(t *testing.T) {
	t.Parallel()

	est, template := newTestEstimator()
	echo := scaledEcho(template, 1.0)

	var result Estimate
	for i := 0; i < 20; i++ {
		result = est.Estimate(echo)
	}

	// With a constant true velocity the EMA converges towards the raw
	// estimate; after 20 frames the residual 0.7^20 is negligible
	// against the refinement grid's quantisation.
	assert.InDelta(t, result.Raw, result.Smoothed, 0.05)
	assert.InDelta(t, 1.0, result.Smoothed, 0.15)
}

func TestSmoothingIsStateful(t *testing.T) {
	t.Parallel()

	est, template := newTestEstimator()
	echo := scaledEcho(template, 2.0)

	first := est.Estimate(echo)
	second := est.Estimate(echo)

	// ema = 0.3*raw after one frame, 0.51*raw after two.
	assert.InDelta(t, 0.3*first.Raw, first.Smoothed, 0.02)
	assert.Greater(t, second.Smoothed, first.Smoothed)
}

func TestReset(t *testing.T) {
	t.Parallel()

	est, template := newTestEstimator()
	est.Estimate(scaledEcho(template, 2.0))
	require.NotZero(t, est.LastVelocity())

	est.Reset()
	assert.Zero(t, est.LastVelocity())
	assert.Zero(t, est.LastCorrelation())
}

func TestEstimateSilentSignal(t *testing.T) {
	t.Parallel()

	est, template := newTestEstimator()
	silent := make(sonar.ComplexFrame, len(template))

	result := est.Estimate(silent)
	assert.Equal(t, 0.0, result.Correlation)
}
