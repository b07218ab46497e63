package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the sonar defaults file shipped with
// the repository. Its values mirror the defaults baked into the Get*
// accessors; it is only read when passed to LoadSonarConfig.
const DefaultConfigPath = "config/sonar.defaults.json"

// SonarConfig represents the root configuration for the sensing pipeline.
// The schema matches the /api/config endpoint so the same JSON can be
// used for both startup configuration and inspection at runtime.
//
// All fields are pointers so that partial config files are safe: fields
// omitted from the JSON keep their baked-in defaults via the Get*
// accessors.
type SonarConfig struct {
	// Audio format params
	SampleRateHz *int `json:"sample_rate_hz,omitempty"`

	// Chirp params
	ChirpMinFreqHz  *float64 `json:"chirp_min_freq_hz,omitempty"`
	ChirpMaxFreqHz  *float64 `json:"chirp_max_freq_hz,omitempty"`
	ChirpDurationMs *float64 `json:"chirp_duration_ms,omitempty"`
	InterChirpGapMs *float64 `json:"inter_chirp_gap_ms,omitempty"`
	EmitPeriodMs    *int     `json:"emit_period_ms,omitempty"`

	// Alignment params
	DeviceLatencyMs   *float64 `json:"device_latency_ms,omitempty"`
	WeaknessThreshold *float64 `json:"weakness_threshold,omitempty"`

	// Doppler search params
	VelocitySearchMax    *float64 `json:"velocity_search_max,omitempty"`
	VelocitySteps        *int     `json:"velocity_steps,omitempty"`
	VelocityClampMax     *float64 `json:"velocity_clamp_max,omitempty"`
	SmoothingWeight      *float64 `json:"smoothing_weight,omitempty"`
	ReliabilityThreshold *float64 `json:"reliability_threshold,omitempty"`

	// STFT params
	WindowSize *int `json:"window_size,omitempty"`
	WindowStep *int `json:"window_step,omitempty"`

	// Filter params
	FIRKernelSize *int  `json:"fir_kernel_size,omitempty"`
	DoubleFilter  *bool `json:"double_filter,omitempty"`

	// Background params
	BackgroundAlpha *float64 `json:"background_alpha,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }

// EmptySonarConfig returns a SonarConfig with all fields set to nil, so
// every Get* accessor returns its baked-in default. Use LoadSonarConfig
// to read values from a JSON file.
func EmptySonarConfig() *SonarConfig {
	return &SonarConfig{}
}

// LoadSonarConfig loads a SonarConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under
// the max file size. Fields omitted from the JSON file retain their
// default values, so partial configs are safe.
func LoadSonarConfig(path string) (*SonarConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySonarConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are consistent. The
// chirp band must sit strictly inside Nyquist and the STFT window must
// be a power of two so every FFT in the pipeline stays radix-2.
func (c *SonarConfig) Validate() error {
	lo := c.GetChirpMinFreqHz()
	hi := c.GetChirpMaxFreqHz()
	sr := c.GetSampleRateHz()

	if lo <= 0 || hi <= 0 {
		return fmt.Errorf("chirp band must be positive, got [%f, %f]", lo, hi)
	}
	if lo >= hi {
		return fmt.Errorf("chirp_min_freq_hz (%f) must be below chirp_max_freq_hz (%f)", lo, hi)
	}
	if hi >= float64(sr)/2 {
		return fmt.Errorf("chirp_max_freq_hz (%f) must be below Nyquist (%d)", hi, sr/2)
	}
	if c.GetChirpDurationMs() <= 0 {
		return fmt.Errorf("chirp_duration_ms must be positive, got %f", c.GetChirpDurationMs())
	}
	if w := c.GetWindowSize(); w <= 0 || w&(w-1) != 0 {
		return fmt.Errorf("window_size must be a power of two, got %d", w)
	}
	if c.GetWindowStep() <= 0 {
		return fmt.Errorf("window_step must be positive, got %d", c.GetWindowStep())
	}
	if k := c.GetFIRKernelSize(); k <= 0 || k%2 == 0 {
		return fmt.Errorf("fir_kernel_size must be a positive odd number, got %d", k)
	}
	if a := c.GetBackgroundAlpha(); a < 0 || a > 1 {
		return fmt.Errorf("background_alpha must be between 0 and 1, got %f", a)
	}
	if s := c.GetVelocitySteps(); s < 2 {
		return fmt.Errorf("velocity_steps must be at least 2, got %d", s)
	}
	if w := c.GetSmoothingWeight(); w < 0 || w >= 1 {
		return fmt.Errorf("smoothing_weight must be in [0, 1), got %f", w)
	}
	return nil
}

// GetSampleRateHz returns the sample rate or the default 48 kHz.
func (c *SonarConfig) GetSampleRateHz() int {
	if c.SampleRateHz == nil {
		return 48000
	}
	return *c.SampleRateHz
}

// GetChirpMinFreqHz returns the chirp start frequency or the default.
func (c *SonarConfig) GetChirpMinFreqHz() float64 {
	if c.ChirpMinFreqHz == nil {
		return 15000
	}
	return *c.ChirpMinFreqHz
}

// GetChirpMaxFreqHz returns the chirp end frequency or the default.
func (c *SonarConfig) GetChirpMaxFreqHz() float64 {
	if c.ChirpMaxFreqHz == nil {
		return 17000
	}
	return *c.ChirpMaxFreqHz
}

// GetChirpDurationMs returns the chirp duration or the default 20 ms.
func (c *SonarConfig) GetChirpDurationMs() float64 {
	if c.ChirpDurationMs == nil {
		return 20
	}
	return *c.ChirpDurationMs
}

// GetInterChirpGapMs returns the gap between chirps or the default 20 ms.
func (c *SonarConfig) GetInterChirpGapMs() float64 {
	if c.InterChirpGapMs == nil {
		return 20
	}
	return *c.InterChirpGapMs
}

// GetEmitPeriodMs returns the chirp emission period or the default 100 ms.
func (c *SonarConfig) GetEmitPeriodMs() int {
	if c.EmitPeriodMs == nil {
		return 100
	}
	return *c.EmitPeriodMs
}

// GetDeviceLatencyMs returns the fixed speaker-to-mic latency. The
// default was measured on the reference handset; it is a configured
// constant, not discovered at runtime.
func (c *SonarConfig) GetDeviceLatencyMs() float64 {
	if c.DeviceLatencyMs == nil {
		return 132.78
	}
	return *c.DeviceLatencyMs
}

// GetWeaknessThreshold returns the max-magnitude floor below which a
// frame is considered too weak to align.
func (c *SonarConfig) GetWeaknessThreshold() float64 {
	if c.WeaknessThreshold == nil {
		return 1.0
	}
	return *c.WeaknessThreshold
}

// GetVelocitySearchMax returns the half-width of the coarse velocity
// sweep in m/s. The sweep covers [-max, +max].
func (c *SonarConfig) GetVelocitySearchMax() float64 {
	if c.VelocitySearchMax == nil {
		return 5.0
	}
	return *c.VelocitySearchMax
}

// GetVelocitySteps returns the number of coarse velocity hypotheses.
func (c *SonarConfig) GetVelocitySteps() int {
	if c.VelocitySteps == nil {
		return 41
	}
	return *c.VelocitySteps
}

// GetVelocityClampMax returns the hard bound on reported velocity magnitude.
func (c *SonarConfig) GetVelocityClampMax() float64 {
	if c.VelocityClampMax == nil {
		return 10.0
	}
	return *c.VelocityClampMax
}

// GetSmoothingWeight returns the EMA weight applied to the previous
// velocity estimate: ema = w*ema + (1-w)*best.
func (c *SonarConfig) GetSmoothingWeight() float64 {
	if c.SmoothingWeight == nil {
		return 0.7
	}
	return *c.SmoothingWeight
}

// GetReliabilityThreshold returns the correlation score below which the
// velocity estimate is overridden to zero.
func (c *SonarConfig) GetReliabilityThreshold() float64 {
	if c.ReliabilityThreshold == nil {
		return 1000
	}
	return *c.ReliabilityThreshold
}

// GetWindowSize returns the STFT window size.
func (c *SonarConfig) GetWindowSize() int {
	if c.WindowSize == nil {
		return 512
	}
	return *c.WindowSize
}

// GetWindowStep returns the STFT window hop.
func (c *SonarConfig) GetWindowStep() int {
	if c.WindowStep == nil {
		return 16
	}
	return *c.WindowStep
}

// GetFIRKernelSize returns the bandpass kernel length (odd, symmetric).
func (c *SonarConfig) GetFIRKernelSize() int {
	if c.FIRKernelSize == nil {
		return 101
	}
	return *c.FIRKernelSize
}

// GetDoubleFilter reports whether the bandpass filter is applied twice
// during preprocessing. The original handset build filtered twice; the
// default here is a single pass.
func (c *SonarConfig) GetDoubleFilter() bool {
	if c.DoubleFilter == nil {
		return false
	}
	return *c.DoubleFilter
}

// GetBackgroundAlpha returns the background adaptation rate.
func (c *SonarConfig) GetBackgroundAlpha() float64 {
	if c.BackgroundAlpha == nil {
		return 0.05
	}
	return *c.BackgroundAlpha
}

// ChirpSamples returns the number of samples in one chirp.
func (c *SonarConfig) ChirpSamples() int {
	return int(float64(c.GetSampleRateHz()) * c.GetChirpDurationMs() / 1000.0)
}

// CaptureBufferSamples returns the size of one capture buffer delivered
// by the audio driver (20 ms of audio).
func (c *SonarConfig) CaptureBufferSamples() int {
	return c.GetSampleRateHz() / 50
}

// LatencySamples returns the configured device latency in samples.
func (c *SonarConfig) LatencySamples() int {
	return int(c.GetDeviceLatencyMs()*float64(c.GetSampleRateHz())/1000.0 + 0.5)
}
