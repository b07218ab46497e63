package imaging

import (
	"github.com/hccps/sondar/internal/monitoring"
)

// minMeaningfulIntensity rejects images with no real reflector.
const minMeaningfulIntensity = 0.001

// boundaryFraction sets the boundary threshold relative to the peak
// intensity. Thresholding on the peak rather than the mean keeps the
// box stable across frames with different noise floors.
const boundaryFraction = 0.3

// maxReasonableSizeMM caps each reported dimension at one metre.
const maxReasonableSizeMM = 1000.0

// Size is a target extent estimate in millimetres.
type Size struct {
	LengthMM float64 `json:"length_mm"`
	WidthMM  float64 `json:"width_mm"`
}

// ExtractSize finds the bounding box of cells above 30% of the peak
// intensity and scales it by the image resolutions. Images with no
// meaningful signal, or a degenerate box, report a zero size.
func ExtractSize(img *PhysicalImage) Size {
	if img == nil || len(img.Data) == 0 {
		return Size{}
	}

	rows := len(img.Data)
	cols := len(img.Data[0])

	var maxSignal float32
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if img.Data[i][j] > maxSignal {
				maxSignal = img.Data[i][j]
			}
		}
	}

	if maxSignal < minMeaningfulIntensity {
		monitoring.Logf("imaging: no meaningful signal for size extraction (max=%.6f)", maxSignal)
		return Size{}
	}

	threshold := maxSignal * boundaryFraction

	minRow, maxRow := rows, 0
	minCol, maxCol := cols, 0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if img.Data[i][j] > threshold {
				if i < minRow {
					minRow = i
				}
				if i > maxRow {
					maxRow = i
				}
				if j < minCol {
					minCol = j
				}
				if j > maxCol {
					maxCol = j
				}
			}
		}
	}

	if minRow >= maxRow || minCol >= maxCol {
		monitoring.Logf("imaging: degenerate boundaries rows=[%d,%d] cols=[%d,%d]",
			minRow, maxRow, minCol, maxCol)
		return Size{}
	}

	length := float64(maxRow-minRow) * img.RangeResolutionMM
	width := float64(maxCol-minCol) * img.AzimuthResolutionMM
	if length > maxReasonableSizeMM {
		monitoring.Logf("imaging: length %.1f mm capped to %.0f mm", length, maxReasonableSizeMM)
		length = maxReasonableSizeMM
	}
	if width > maxReasonableSizeMM {
		monitoring.Logf("imaging: width %.1f mm capped to %.0f mm", width, maxReasonableSizeMM)
		width = maxReasonableSizeMM
	}

	return Size{LengthMM: length, WidthMM: width}
}
