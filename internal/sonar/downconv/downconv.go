// Package downconv collapses the chirp modulation of aligned echoes and
// builds the time-frequency and range-Doppler images.
package downconv

import (
	"math/cmplx"

	"github.com/hccps/sondar/internal/config"
	"github.com/hccps/sondar/internal/sonar"
	"github.com/hccps/sondar/internal/sonar/dsp"
)

// Downconverter mixes frames to baseband against the downchirp template
// and produces the two image transforms.
type Downconverter struct {
	downchirp  sonar.ComplexFrame
	windowSize int
	windowStep int
}

// NewDownconverter creates a Downconverter with the given downchirp
// mixing template.
func NewDownconverter(cfg *config.SonarConfig, downchirp sonar.ComplexFrame) *Downconverter {
	return &Downconverter{
		downchirp:  downchirp,
		windowSize: cfg.GetWindowSize(),
		windowStep: cfg.GetWindowStep(),
	}
}

// Dechirp multiplies the aligned signal elementwise by the downchirp,
// cancelling the chirp's linear phase so target range becomes tone
// frequency. Samples beyond the template length are zeroed.
func (d *Downconverter) Dechirp(aligned sonar.ComplexFrame) sonar.ComplexFrame {
	out := make(sonar.ComplexFrame, len(aligned))
	for i := range aligned {
		if i < len(d.downchirp) {
			out[i] = aligned[i] * d.downchirp[i]
		}
	}
	return out
}

// STFT slides a Hann-tapered window across the baseband signal and
// FFTs each position, keeping only the positive-frequency half of each
// spectrum. The output has floor((L-W)/H)+1 windows of W/2 bins; a
// signal shorter than one window produces an empty image.
func (d *Downconverter) STFT(baseband sonar.ComplexFrame) (sonar.TFImage, error) {
	signalLen := len(baseband)
	if signalLen < d.windowSize {
		return sonar.TFImage{}, nil
	}

	numWindows := (signalLen-d.windowSize)/d.windowStep + 1
	image := make(sonar.TFImage, numWindows)

	windowData := make(sonar.ComplexFrame, d.windowSize)
	for w := 0; w < numWindows; w++ {
		start := w * d.windowStep
		for i := 0; i < d.windowSize; i++ {
			if start+i < signalLen {
				coeff := dsp.Hann(i, d.windowSize)
				windowData[i] = complex(
					real(baseband[start+i])*coeff,
					imag(baseband[start+i])*coeff,
				)
			} else {
				windowData[i] = 0
			}
		}

		spectrum, err := dsp.FFT(windowData)
		if err != nil {
			return nil, err
		}

		image[w] = make([]complex128, d.windowSize/2)
		copy(image[w], spectrum[:d.windowSize/2])
	}

	return image, nil
}

// RangeDoppler gathers each frequency bin's slow-time vector across
// windows, zero-pads it to the next power of two, FFTs it, and stores
// magnitudes. The output is indexed [freqBin][slowTime].
func (d *Downconverter) RangeDoppler(image sonar.TFImage) (sonar.RangeDopplerImage, error) {
	timeSteps := len(image)
	if timeSteps == 0 {
		return sonar.RangeDopplerImage{}, nil
	}
	freqBins := len(image[0])
	padded := sonar.NextPowerOfTwo(timeSteps)

	out := make(sonar.RangeDopplerImage, freqBins)
	slowTime := make(sonar.ComplexFrame, padded)

	for freq := 0; freq < freqBins; freq++ {
		for t := 0; t < padded; t++ {
			if t < timeSteps {
				slowTime[t] = image[t][freq]
			} else {
				slowTime[t] = 0
			}
		}

		spectrum, err := dsp.FFT(slowTime)
		if err != nil {
			return nil, err
		}

		out[freq] = make([]float32, padded)
		for t, c := range spectrum {
			out[freq][t] = float32(cmplx.Abs(c))
		}
	}

	return out, nil
}
