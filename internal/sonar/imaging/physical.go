// Package imaging maps range-Doppler images into millimetre-scaled
// physical space and extracts target dimensions and coarse shape.
package imaging

import (
	"math"

	"github.com/hccps/sondar/internal/config"
	"github.com/hccps/sondar/internal/monitoring"
	"github.com/hccps/sondar/internal/sonar"
)

// speedOfSoundMmps is the speed of sound in mm/s.
const speedOfSoundMmps = sonar.SpeedOfSoundMps * 1000

// defaultRotationRad is the angular aperture assumed when fewer than
// three distance samples are available.
var defaultRotationRad = 15 * math.Pi / 180

// minRotationRad keeps the azimuth-resolution division away from zero.
var minRotationRad = 1 * math.Pi / 180

// PhysicalImage is a range-Doppler image translated so the strongest
// reflector sits at the centre, with per-cell millimetre resolutions.
type PhysicalImage struct {
	Data sonar.RangeDopplerImage

	CenterRow int
	CenterCol int

	// RangeResolutionMM is the millimetre extent of one row.
	RangeResolutionMM float64
	// AzimuthResolutionMM is the millimetre extent of one column.
	AzimuthResolutionMM float64
	// RotationRad is the estimated angular aperture swept by the target.
	RotationRad float64
}

// Mapper converts range-Doppler images to physical space using the
// session's chirp geometry.
type Mapper struct {
	chirpDurationMs float64
	gapMs           float64
	bandwidthHz     float64
	minFreqHz       float64
}

// NewMapper creates a Mapper from the session configuration.
func NewMapper(cfg *config.SonarConfig) *Mapper {
	return &Mapper{
		chirpDurationMs: cfg.GetChirpDurationMs(),
		gapMs:           cfg.GetInterChirpGapMs(),
		bandwidthHz:     cfg.GetChirpMaxFreqHz() - cfg.GetChirpMinFreqHz(),
		minFreqHz:       cfg.GetChirpMinFreqHz(),
	}
}

// RotationAngle estimates the angular aperture from a sequence of
// per-frame distance estimates: the target sweeps arccos(Dmin/Dfirst)
// on one side of closest approach and arccos(Dmin/Dlast) on the other.
// Fewer than three samples fall back to the default aperture. The
// result is clamped below to one degree so downstream divisions stay
// bounded.
func RotationAngle(distances []float64) float64 {
	if len(distances) < 3 {
		return defaultRotationRad
	}

	min := distances[0]
	for _, d := range distances {
		if d < min {
			min = d
		}
	}

	first := distances[0]
	last := distances[len(distances)-1]
	if min <= 0 || first <= 0 || last <= 0 {
		return defaultRotationRad
	}

	theta := math.Acos(clampRatio(min/first)) + math.Acos(clampRatio(min/last))
	if theta < minRotationRad {
		theta = minRotationRad
	}
	return theta
}

// clampRatio keeps a distance ratio inside acos's domain; jitter in the
// distance estimates can push Dmin/D fractionally above 1.
func clampRatio(r float64) float64 {
	if r > 1 {
		return 1
	}
	if r < -1 {
		return -1
	}
	return r
}

// RangeResolution returns the millimetre extent of one range bin:
// (c_mm * Tc) / (2 * B * Ttotal).
func (m *Mapper) RangeResolution() float64 {
	tc := m.chirpDurationMs / 1000
	total := (m.chirpDurationMs + m.gapMs) / 1000
	return (speedOfSoundMmps * tc) / (2 * m.bandwidthHz * total)
}

// AzimuthResolution returns the millimetre extent of one azimuth bin
// for the given angular aperture: (c_mm / f_lo) / (2θ).
func (m *Mapper) AzimuthResolution(rotationRad float64) float64 {
	if rotationRad < minRotationRad {
		rotationRad = minRotationRad
	}
	wavelength := speedOfSoundMmps / m.minFreqHz
	return wavelength / (2 * rotationRad)
}

// ToPhysical translates the image so the strongest reflector lands at
// the centre and attaches the millimetre resolutions derived from the
// distance history. Out-of-source cells become zero.
func (m *Mapper) ToPhysical(image sonar.RangeDopplerImage, distances []float64) *PhysicalImage {
	rows := len(image)
	if rows == 0 {
		monitoring.Logf("imaging: empty range-Doppler image")
		return nil
	}
	cols := len(image[0])

	theta := RotationAngle(distances)

	maxRow, maxCol, _ := image.Peak()
	centerRow := rows / 2
	centerCol := cols / 2
	rowOffset := centerRow - maxRow
	colOffset := centerCol - maxCol

	data := make(sonar.RangeDopplerImage, rows)
	for i := 0; i < rows; i++ {
		data[i] = make([]float32, cols)
		for j := 0; j < cols; j++ {
			srcRow := i - rowOffset
			srcCol := j - colOffset
			if srcRow >= 0 && srcRow < rows && srcCol >= 0 && srcCol < cols {
				data[i][j] = image[srcRow][srcCol]
			}
		}
	}

	return &PhysicalImage{
		Data:                data,
		CenterRow:           centerRow,
		CenterCol:           centerCol,
		RangeResolutionMM:   m.RangeResolution(),
		AzimuthResolutionMM: m.AzimuthResolution(theta),
		RotationRad:         theta,
	}
}
