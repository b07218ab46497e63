package dsp

import (
	"math"

	"github.com/hccps/sondar/internal/sonar"
)

// BandpassFIR is a symmetric windowed-sinc bandpass filter built as the
// difference of two low-pass sinc kernels, Hamming windowed. The kernel
// is real, so convolution touches the real and imaginary channels of a
// complex input independently.
type BandpassFIR struct {
	kernel []float64
}

// NewBandpassFIR builds a bandpass kernel of the given odd length for
// the band [lowHz, highHz] at the given sample rate.
func NewBandpassFIR(lowHz, highHz float64, sampleRate, kernelSize int) *BandpassFIR {
	lowNorm := 2 * math.Pi * lowHz / float64(sampleRate)
	highNorm := 2 * math.Pi * highHz / float64(sampleRate)

	kernel := make([]float64, kernelSize)
	for i := range kernel {
		n := i - kernelSize/2
		if n == 0 {
			kernel[i] = (highNorm - lowNorm) / math.Pi
			continue
		}
		highSinc := math.Sin(highNorm*float64(n)) / (math.Pi * float64(n))
		lowSinc := math.Sin(lowNorm*float64(n)) / (math.Pi * float64(n))
		kernel[i] = (highSinc - lowSinc) * Hamming(i, kernelSize)
	}

	return &BandpassFIR{kernel: kernel}
}

// Apply convolves the kernel over the input. Samples outside the input
// are treated as zero, so the output has the same length as the input.
func (f *BandpassFIR) Apply(signal sonar.ComplexFrame) sonar.ComplexFrame {
	signalLen := len(signal)
	kernelLen := len(f.kernel)
	out := make(sonar.ComplexFrame, signalLen)

	for i := 0; i < signalLen; i++ {
		var re, im float64
		for j := 0; j < kernelLen; j++ {
			idx := i - j + kernelLen/2
			if idx >= 0 && idx < signalLen {
				re += real(signal[idx]) * f.kernel[j]
				im += imag(signal[idx]) * f.kernel[j]
			}
		}
		out[i] = complex(re, im)
	}

	return out
}

// Kernel returns the filter taps.
func (f *BandpassFIR) Kernel() []float64 {
	return f.kernel
}
