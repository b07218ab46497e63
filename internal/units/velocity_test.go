package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValid(t *testing.T) {
	t.Parallel()

	for _, u := range ValidUnits {
		assert.True(t, IsValid(u), "unit %q should be valid", u)
	}
	assert.False(t, IsValid("knots"))
	assert.False(t, IsValid(""))
}

func TestConvertSpeed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		mps   float64
		units string
		want  float64
	}{
		{"mps passthrough", 1.5, MPS, 1.5},
		{"mph", 10, MPH, 22.3694},
		{"kmph", 10, KMPH, 36},
		{"kph alias", 10, KPH, 36},
		{"unknown defaults to mps", 3, "furlongs", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, ConvertSpeed(tt.mps, tt.units), 1e-9)
		})
	}
}

func TestConvertLength(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 5.0, ConvertLength(50, CM), 1e-9)
	assert.InDelta(t, 2.0, ConvertLength(50.8, IN), 1e-9)
	assert.InDelta(t, 50.0, ConvertLength(50, MM), 1e-9)
	assert.InDelta(t, 50.0, ConvertLength(50, "cubits"), 1e-9)
}
