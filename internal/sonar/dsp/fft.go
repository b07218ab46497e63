// Package dsp implements the numeric primitives of the sensing
// pipeline: the radix-2 FFT, window functions, and the bandpass FIR
// filter. Everything operates on sonar.ComplexFrame values and is free
// of shared state, so all functions are safe for concurrent use.
package dsp

import (
	"fmt"
	"math"
	"math/bits"
	"math/cmplx"

	"github.com/hccps/sondar/internal/sonar"
)

// FFT computes the forward FFT of the input, which must have
// power-of-two length. The input is not modified.
func FFT(input sonar.ComplexFrame) (sonar.ComplexFrame, error) {
	n := len(input)
	if !sonar.IsPowerOfTwo(n) {
		return nil, fmt.Errorf("fft: length %d: %w", n, sonar.ErrNotPowerOfTwo)
	}

	out := input.Clone()

	// Bit-reversal permutation.
	shift := bits.UintSize - uint(bits.Len(uint(n))) + 1
	for i := 0; i < n; i++ {
		j := int(bits.Reverse(uint(i)) >> shift)
		if j > i {
			out[i], out[j] = out[j], out[i]
		}
	}

	// Iterative Cooley-Tukey butterflies.
	for size := 2; size <= n; size *= 2 {
		angle := -2 * math.Pi / float64(size)
		wn := cmplx.Exp(complex(0, angle))
		for start := 0; start < n; start += size {
			w := complex(1, 0)
			for k := 0; k < size/2; k++ {
				t := w * out[start+k+size/2]
				u := out[start+k]
				out[start+k] = u + t
				out[start+k+size/2] = u - t
				w *= wn
			}
		}
	}

	return out, nil
}

// IFFT computes the inverse FFT by conjugating the input, running the
// forward transform, and scaling by 1/N with a final conjugate.
func IFFT(input sonar.ComplexFrame) (sonar.ComplexFrame, error) {
	n := len(input)
	conjugated := make(sonar.ComplexFrame, n)
	for i, c := range input {
		conjugated[i] = cmplx.Conj(c)
	}

	out, err := FFT(conjugated)
	if err != nil {
		return nil, err
	}

	scale := 1 / float64(n)
	for i, c := range out {
		out[i] = complex(real(c)*scale, -imag(c)*scale)
	}
	return out, nil
}

// FFT2D applies the 1D FFT to each row, then to each column. Both
// dimensions must be powers of two.
func FFT2D(input sonar.TFImage) (sonar.TFImage, error) {
	rows := len(input)
	if rows == 0 {
		return sonar.TFImage{}, nil
	}
	cols := len(input[0])

	out := make(sonar.TFImage, rows)
	for i := range input {
		row, err := FFT(input[i])
		if err != nil {
			return nil, fmt.Errorf("fft2d row %d: %w", i, err)
		}
		out[i] = row
	}

	for j := 0; j < cols; j++ {
		col := make(sonar.ComplexFrame, rows)
		for i := 0; i < rows; i++ {
			col[i] = out[i][j]
		}
		fftCol, err := FFT(col)
		if err != nil {
			return nil, fmt.Errorf("fft2d col %d: %w", j, err)
		}
		for i := 0; i < rows; i++ {
			out[i][j] = fftCol[i]
		}
	}

	return out, nil
}

// Magnitude returns the per-sample magnitudes of a complex frame.
func Magnitude(input sonar.ComplexFrame) []float64 {
	out := make([]float64, len(input))
	for i, c := range input {
		out[i] = cmplx.Abs(c)
	}
	return out
}
