// Package background maintains a leaky-mean model of the static scene
// in time-frequency space and extracts the moving foreground from it.
package background

import (
	"github.com/hccps/sondar/internal/sonar"
)

// Subtractor holds the background model for one session. It is owned by
// the processing actor and must see frames sequentially.
type Subtractor struct {
	background sonar.TFImage
	alpha      float64
}

// NewSubtractor creates a Subtractor with the given adaptation rate.
func NewSubtractor(alpha float64) *Subtractor {
	return &Subtractor{alpha: alpha}
}

// Remove subtracts the background model from the current frame and
// updates the model with a leaky mean. The first invocation bootstraps
// the model from the input and returns the input unchanged.
func (s *Subtractor) Remove(current sonar.TFImage) sonar.TFImage {
	rows := len(current)
	if rows == 0 {
		return sonar.TFImage{}
	}
	cols := len(current[0])

	if s.background == nil {
		s.background = current.Clone()
		return current
	}

	result := make(sonar.TFImage, rows)
	for i := 0; i < rows; i++ {
		result[i] = make([]complex128, cols)
		for j := 0; j < cols; j++ {
			c := current[i][j]
			b := s.background[i][j]
			result[i][j] = c - b
			s.background[i][j] = complex(
				real(b)*(1-s.alpha)+real(c)*s.alpha,
				imag(b)*(1-s.alpha)+imag(c)*s.alpha,
			)
		}
	}

	return result
}

// Reset discards the background model so the next frame bootstraps a
// fresh one.
func (s *Subtractor) Reset() {
	s.background = nil
}

// HasModel reports whether a background model has been bootstrapped.
func (s *Subtractor) HasModel() bool {
	return s.background != nil
}
