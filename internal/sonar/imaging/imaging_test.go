package imaging

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hccps/sondar/internal/config"
	"github.com/hccps/sondar/internal/monitoring"
	"github.com/hccps/sondar/internal/sonar"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

func TestRotationAngle(t *testing.T) {
	t.Parallel()

	t.Run("symmetric pass", func(t *testing.T) {
		t.Parallel()
		// Dmin/Dfirst = Dmin/Dlast = 0.5: theta = 2*acos(0.5) = 2pi/3.
		theta := RotationAngle([]float64{2, 1, 2})
		assert.InDelta(t, 2*math.Pi/3, theta, 1e-12)
	})

	t.Run("too few samples defaults to 15 degrees", func(t *testing.T) {
		t.Parallel()
		assert.InDelta(t, 15*math.Pi/180, RotationAngle([]float64{1, 2}), 1e-12)
		assert.InDelta(t, 15*math.Pi/180, RotationAngle(nil), 1e-12)
	})

	t.Run("constant distance clamps to 1 degree", func(t *testing.T) {
		t.Parallel()
		theta := RotationAngle([]float64{1, 1, 1})
		assert.InDelta(t, math.Pi/180, theta, 1e-12)
	})

	t.Run("non-positive distances fall back", func(t *testing.T) {
		t.Parallel()
		assert.InDelta(t, 15*math.Pi/180, RotationAngle([]float64{0, 0, 0}), 1e-12)
	})
}

func TestResolutions(t *testing.T) {
	t.Parallel()

	m := NewMapper(config.EmptySonarConfig())

	// rho_r = (343000 * 0.02) / (2 * 2000 * 0.04) = 42.875 mm
	assert.InDelta(t, 42.875, m.RangeResolution(), 1e-9)

	// rho_a at 15 degrees: (343000/15000) / (2 * 0.2618) mm
	theta := 15 * math.Pi / 180
	want := (343000.0 / 15000.0) / (2 * theta)
	assert.InDelta(t, want, m.AzimuthResolution(theta), 1e-9)

	// The guard keeps tiny apertures from blowing the resolution up.
	assert.Equal(t, m.AzimuthResolution(0), m.AzimuthResolution(math.Pi/180))
}

func TestToPhysicalCentersPeak(t *testing.T) {
	t.Parallel()

	m := NewMapper(config.EmptySonarConfig())

	img := make(sonar.RangeDopplerImage, 8)
	for i := range img {
		img[i] = make([]float32, 8)
	}
	img[1][2] = 5

	physical := m.ToPhysical(img, nil)
	require.NotNil(t, physical)

	assert.Equal(t, 4, physical.CenterRow)
	assert.Equal(t, 4, physical.CenterCol)
	assert.Equal(t, float32(5), physical.Data[4][4], "peak must land at the centre")

	// Cells shifted in from outside the source are zero.
	assert.Equal(t, float32(0), physical.Data[0][0])
}

func TestToPhysicalEmptyImage(t *testing.T) {
	t.Parallel()

	m := NewMapper(config.EmptySonarConfig())
	assert.Nil(t, m.ToPhysical(sonar.RangeDopplerImage{}, nil))
}

// fixedImage builds a physical image with explicit resolutions.
func fixedImage(rows, cols int, rhoR, rhoA float64) *PhysicalImage {
	data := make(sonar.RangeDopplerImage, rows)
	for i := range data {
		data[i] = make([]float32, cols)
	}
	return &PhysicalImage{
		Data:                data,
		CenterRow:           rows / 2,
		CenterCol:           cols / 2,
		RangeResolutionMM:   rhoR,
		AzimuthResolutionMM: rhoA,
	}
}

func TestExtractSizeRectangle(t *testing.T) {
	t.Parallel()

	// A 10x20-cell span at intensity 1.0 with rho_r = 5 mm and
	// rho_a = 3 mm reads back as 50 mm x 60 mm.
	img := fixedImage(64, 64, 5, 3)
	for i := 10; i <= 20; i++ {
		for j := 5; j <= 25; j++ {
			img.Data[i][j] = 1.0
		}
	}

	size := ExtractSize(img)
	assert.InDelta(t, 50.0, size.LengthMM, 1e-9)
	assert.InDelta(t, 60.0, size.WidthMM, 1e-9)
}

func TestExtractSizeWeakImage(t *testing.T) {
	t.Parallel()

	img := fixedImage(16, 16, 5, 3)
	img.Data[3][3] = 0.0005 // below the meaningful-intensity floor

	size := ExtractSize(img)
	assert.Zero(t, size.LengthMM)
	assert.Zero(t, size.WidthMM)
}

func TestExtractSizeSinglePixel(t *testing.T) {
	t.Parallel()

	// A single hot pixel has a degenerate bounding box.
	img := fixedImage(16, 16, 5, 3)
	img.Data[8][8] = 1

	size := ExtractSize(img)
	assert.Zero(t, size.LengthMM)
	assert.Zero(t, size.WidthMM)
}

func TestExtractSizeCapped(t *testing.T) {
	t.Parallel()

	// Huge per-cell resolution drives the raw size past the cap.
	img := fixedImage(64, 64, 500, 500)
	for i := 10; i <= 40; i++ {
		for j := 10; j <= 40; j++ {
			img.Data[i][j] = 1
		}
	}

	size := ExtractSize(img)
	assert.Equal(t, 1000.0, size.LengthMM)
	assert.Equal(t, 1000.0, size.WidthMM)
}

func TestExtractSizeNil(t *testing.T) {
	t.Parallel()

	assert.Zero(t, ExtractSize(nil))
}

func TestHeuristicClassifier(t *testing.T) {
	t.Parallel()

	fillRect := func(img *PhysicalImage, r0, r1, c0, c1 int) {
		for i := r0; i <= r1; i++ {
			for j := c0; j <= c1; j++ {
				img.Data[i][j] = 1
			}
		}
	}

	t.Run("square", func(t *testing.T) {
		t.Parallel()
		img := fixedImage(32, 32, 1, 1)
		fillRect(img, 8, 18, 8, 18)
		assert.Equal(t, ShapeSquare, HeuristicClassifier{}.Classify(img, 0.3))
	})

	t.Run("rectangle", func(t *testing.T) {
		t.Parallel()
		img := fixedImage(32, 32, 1, 1)
		fillRect(img, 8, 12, 4, 24)
		assert.Equal(t, ShapeRectangle, HeuristicClassifier{}.Classify(img, 0.3))
	})

	t.Run("circle", func(t *testing.T) {
		t.Parallel()
		img := fixedImage(64, 64, 1, 1)
		const cx, cy, r = 32, 32, 12
		for i := 0; i < 64; i++ {
			for j := 0; j < 64; j++ {
				di, dj := float64(i-cy), float64(j-cx)
				if di*di+dj*dj <= r*r {
					img.Data[i][j] = 1
				}
			}
		}
		assert.Equal(t, ShapeCircle, HeuristicClassifier{}.Classify(img, 0.3))
	})

	t.Run("triangle", func(t *testing.T) {
		t.Parallel()
		img := fixedImage(64, 64, 1, 1)
		for i := 0; i < 30; i++ {
			for j := 32 - i/2; j <= 32+i/2; j++ {
				img.Data[10+i][j] = 1
			}
		}
		assert.Equal(t, ShapeTriangle, HeuristicClassifier{}.Classify(img, 0.3))
	})

	t.Run("empty is unknown", func(t *testing.T) {
		t.Parallel()
		img := fixedImage(8, 8, 1, 1)
		assert.Equal(t, ShapeUnknown, HeuristicClassifier{}.Classify(img, 0.3))
		assert.Equal(t, ShapeUnknown, HeuristicClassifier{}.Classify(nil, 0.3))
	})
}

func TestShapeLabelString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "circle", ShapeCircle.String())
	assert.Equal(t, "unknown", ShapeUnknown.String())
	assert.Equal(t, "unknown", ShapeLabel(99).String())
}

func TestNullClassifier(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ShapeUnknown, NullClassifier{}.Classify(fixedImage(4, 4, 1, 1), 0.5))
}
