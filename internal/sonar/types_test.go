package sonar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextPowerOfTwo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int
		want int
	}{
		{0, 1},
		{1, 1},
		{2, 2},
		{3, 4},
		{29, 32},
		{512, 512},
		{513, 1024},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NextPowerOfTwo(tt.in), "NextPowerOfTwo(%d)", tt.in)
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	t.Parallel()

	assert.True(t, IsPowerOfTwo(1))
	assert.True(t, IsPowerOfTwo(512))
	assert.False(t, IsPowerOfTwo(0))
	assert.False(t, IsPowerOfTwo(-4))
	assert.False(t, IsPowerOfTwo(960))
}

func TestClamp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 10.0, Clamp(42, 10))
	assert.Equal(t, -10.0, Clamp(-42, 10))
	assert.Equal(t, 3.5, Clamp(3.5, 10))
}

func TestRealFrameToComplex(t *testing.T) {
	t.Parallel()

	frame := RealFrame{1, -2, 32767}
	c := frame.ToComplex()
	assert.Len(t, c, 3)
	assert.Equal(t, complex(1, 0), c[0])
	assert.Equal(t, complex(-2, 0), c[1])
	assert.Equal(t, complex(32767, 0), c[2])
}

func TestRealFrameClone(t *testing.T) {
	t.Parallel()

	frame := RealFrame{1, 2, 3}
	clone := frame.Clone()
	clone[0] = 99
	assert.Equal(t, int16(1), frame[0])
}

func TestComplexFrameMaxMagnitude(t *testing.T) {
	t.Parallel()

	frame := ComplexFrame{complex(3, 4), complex(1, 0)}
	assert.InDelta(t, 5.0, frame.MaxMagnitude(), 1e-12)
	assert.Equal(t, 0.0, ComplexFrame{}.MaxMagnitude())
}

func TestComplexFrameIsAllZero(t *testing.T) {
	t.Parallel()

	assert.True(t, ComplexFrame{0, 0, complex(1e-12, -1e-12)}.IsAllZero())
	assert.False(t, ComplexFrame{0, complex(1e-3, 0)}.IsAllZero())
}

func TestRangeDopplerImagePeak(t *testing.T) {
	t.Parallel()

	img := RangeDopplerImage{
		{0, 1, 0},
		{0, 0, 7},
		{2, 0, 0},
	}
	row, col, value := img.Peak()
	assert.Equal(t, 1, row)
	assert.Equal(t, 2, col)
	assert.Equal(t, float32(7), value)

	row, col, value = RangeDopplerImage{}.Peak()
	assert.Equal(t, 0, row)
	assert.Equal(t, 0, col)
	assert.Equal(t, float32(0), value)
}
