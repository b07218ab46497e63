package dsp

import "math"

// Hamming returns the Hamming window coefficient for sample i of an
// n-sample window.
func Hamming(i, n int) float64 {
	if n < 2 {
		return 1
	}
	return 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
}

// Hann returns the Hann window coefficient for sample i of an n-sample
// window.
func Hann(i, n int) float64 {
	if n < 2 {
		return 1
	}
	return 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
}
