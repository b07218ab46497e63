package background

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hccps/sondar/internal/sonar"
)

func makeImage(rows, cols int, fill complex128) sonar.TFImage {
	img := make(sonar.TFImage, rows)
	for i := range img {
		img[i] = make([]complex128, cols)
		for j := range img[i] {
			img[i][j] = fill
		}
	}
	return img
}

func TestFirstFrameReturnedUnchanged(t *testing.T) {
	t.Parallel()

	s := NewSubtractor(0.05)
	frame := makeImage(4, 8, complex(3, -1))

	out := s.Remove(frame)
	assert.Empty(t, cmp.Diff(frame, out), "first frame must be bit-equal to the input")
	assert.True(t, s.HasModel())
}

func TestSecondFrameSubtracted(t *testing.T) {
	t.Parallel()

	s := NewSubtractor(0.05)
	first := makeImage(2, 2, complex(10, 4))
	second := makeImage(2, 2, complex(12, 4))

	s.Remove(first)
	out := s.Remove(second)

	// second - background(=first) elementwise
	for i := range out {
		for j := range out[i] {
			assert.InDelta(t, 2.0, real(out[i][j]), 1e-12)
			assert.InDelta(t, 0.0, imag(out[i][j]), 1e-12)
		}
	}
}

func TestBackgroundLeakyUpdate(t *testing.T) {
	t.Parallel()

	const alpha = 0.05
	s := NewSubtractor(alpha)
	first := makeImage(1, 1, complex(10, 0))
	second := makeImage(1, 1, complex(20, 0))
	third := makeImage(1, 1, complex(20, 0))

	s.Remove(first)
	s.Remove(second)
	out := s.Remove(third)

	// After the second frame the model is 0.95*10 + 0.05*20 = 10.5,
	// so the third foreground is 20 - 10.5 = 9.5.
	require.Len(t, out, 1)
	assert.InDelta(t, 9.5, real(out[0][0]), 1e-12)
}

func TestBackgroundConvergesToStaticScene(t *testing.T) {
	t.Parallel()

	s := NewSubtractor(0.5)
	static := makeImage(2, 2, complex(7, 7))

	var out sonar.TFImage
	for i := 0; i < 30; i++ {
		out = s.Remove(static)
	}

	for i := range out {
		for j := range out[i] {
			assert.InDelta(t, 0.0, real(out[i][j]), 1e-6)
			assert.InDelta(t, 0.0, imag(out[i][j]), 1e-6)
		}
	}
}

func TestEmptyImage(t *testing.T) {
	t.Parallel()

	s := NewSubtractor(0.05)
	out := s.Remove(sonar.TFImage{})
	assert.Empty(t, out)
	assert.False(t, s.HasModel())
}

func TestReset(t *testing.T) {
	t.Parallel()

	s := NewSubtractor(0.05)
	s.Remove(makeImage(2, 2, 1))
	require.True(t, s.HasModel())

	s.Reset()
	assert.False(t, s.HasModel())

	// The next frame bootstraps again and passes through unchanged.
	frame := makeImage(2, 2, complex(5, 5))
	out := s.Remove(frame)
	assert.Empty(t, cmp.Diff(frame, out))
}
