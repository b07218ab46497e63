// Package phase applies the velocity-driven column re-indexing that
// sharpens the range-Doppler image for a moving target.
package phase

import (
	"math"

	"github.com/hccps/sondar/internal/sonar"
)

// Compensate re-indexes each column j of the image to round(j*f) with
// f = 1 + v/c. Columns that scale outside the image are discarded;
// collisions overwrite. With v = 0 the output equals the input.
func Compensate(image sonar.RangeDopplerImage, velocityMps float64) sonar.RangeDopplerImage {
	rows := len(image)
	if rows == 0 {
		return sonar.RangeDopplerImage{}
	}
	cols := len(image[0])

	factor := 1 + velocityMps/sonar.SpeedOfSoundMps

	out := make(sonar.RangeDopplerImage, rows)
	for i := range out {
		out[i] = make([]float32, cols)
	}

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			target := int(math.Round(float64(j) * factor))
			if target >= 0 && target < cols {
				out[i][target] = image[i][j]
			}
		}
	}

	return out
}
