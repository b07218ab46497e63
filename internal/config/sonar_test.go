package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Parallel()

	cfg := EmptySonarConfig()
	assert.Equal(t, 48000, cfg.GetSampleRateHz())
	assert.Equal(t, 15000.0, cfg.GetChirpMinFreqHz())
	assert.Equal(t, 17000.0, cfg.GetChirpMaxFreqHz())
	assert.Equal(t, 20.0, cfg.GetChirpDurationMs())
	assert.Equal(t, 100, cfg.GetEmitPeriodMs())
	assert.Equal(t, 132.78, cfg.GetDeviceLatencyMs())
	assert.Equal(t, 512, cfg.GetWindowSize())
	assert.Equal(t, 16, cfg.GetWindowStep())
	assert.Equal(t, 101, cfg.GetFIRKernelSize())
	assert.Equal(t, 0.05, cfg.GetBackgroundAlpha())
	assert.Equal(t, 41, cfg.GetVelocitySteps())
	assert.Equal(t, 0.7, cfg.GetSmoothingWeight())
	assert.False(t, cfg.GetDoubleFilter())
}

func TestDerivedSizes(t *testing.T) {
	t.Parallel()

	cfg := EmptySonarConfig()
	assert.Equal(t, 960, cfg.ChirpSamples())
	assert.Equal(t, 960, cfg.CaptureBufferSamples())
	// round(132.78 * 48000 / 1000) = round(6373.44)
	assert.Equal(t, 6373, cfg.LatencySamples())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*SonarConfig)
		wantErr bool
	}{
		{"defaults valid", func(c *SonarConfig) {}, false},
		{"band inverted", func(c *SonarConfig) {
			c.ChirpMinFreqHz = ptrFloat64(17000)
			c.ChirpMaxFreqHz = ptrFloat64(15000)
		}, true},
		{"band above nyquist", func(c *SonarConfig) {
			c.ChirpMaxFreqHz = ptrFloat64(24000)
		}, true},
		{"negative low edge", func(c *SonarConfig) {
			c.ChirpMinFreqHz = ptrFloat64(-1)
		}, true},
		{"window not power of two", func(c *SonarConfig) {
			c.WindowSize = ptrInt(500)
		}, true},
		{"even kernel", func(c *SonarConfig) {
			c.FIRKernelSize = ptrInt(100)
		}, true},
		{"alpha out of range", func(c *SonarConfig) {
			c.BackgroundAlpha = ptrFloat64(1.5)
		}, true},
		{"smoothing weight one", func(c *SonarConfig) {
			c.SmoothingWeight = ptrFloat64(1.0)
		}, true},
		{"double filter allowed", func(c *SonarConfig) {
			c.DoubleFilter = ptrBool(true)
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := EmptySonarConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadSonarConfig(t *testing.T) {
	t.Parallel()

	t.Run("partial file keeps defaults", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "sonar.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"emit_period_ms": 200}`), 0o644))

		cfg, err := LoadSonarConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 200, cfg.GetEmitPeriodMs())
		assert.Equal(t, 48000, cfg.GetSampleRateHz())
	})

	t.Run("rejects non-json extension", func(t *testing.T) {
		t.Parallel()
		_, err := LoadSonarConfig("sonar.yaml")
		assert.Error(t, err)
	})

	t.Run("rejects invalid band", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "sonar.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"chirp_max_freq_hz": 30000}`), 0o644))
		_, err := LoadSonarConfig(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadSonarConfig(filepath.Join(t.TempDir(), "absent.json"))
		assert.Error(t, err)
	})
}
