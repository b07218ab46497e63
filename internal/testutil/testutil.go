// Package testutil provides shared test utilities and synthetic signal
// fixtures for the pipeline packages.
package testutil

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// Tone synthesises n samples of a pure sinusoid at freqHz with the
// given amplitude.
func Tone(freqHz float64, sampleRate, n int, amplitude float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freqHz*float64(i)/float64(sampleRate))
	}
	return out
}

// TimeScale resamples a signal by the factor s with linear
// interpolation, simulating the Doppler dilation of an echo from a
// target moving at v where s = 1 + v/c. Out-of-range samples are zero.
func TimeScale(signal []float64, s float64) []float64 {
	out := make([]float64, len(signal))
	for i := range out {
		src := float64(i) / s
		lo := int(math.Floor(src))
		hi := int(math.Ceil(src))
		if lo < 0 || hi >= len(signal) {
			continue
		}
		frac := src - float64(lo)
		out[i] = signal[lo]*(1-frac) + signal[hi]*frac
	}
	return out
}
