// simulate runs synthetic capture scenarios through the full sensing
// pipeline without hardware, writing a signal-trace JSON document, a
// range-Doppler heat map, and a velocity convergence plot.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/hccps/sondar/internal/api"
	"github.com/hccps/sondar/internal/audio"
	"github.com/hccps/sondar/internal/config"
	"github.com/hccps/sondar/internal/siglog"
	"github.com/hccps/sondar/internal/sonar"
	"github.com/hccps/sondar/internal/sonar/chirp"
	"github.com/hccps/sondar/internal/sonar/pipeline"
)

var (
	scenario = flag.String("scenario", "loopback", "Scenario: silent, loopback, approach, recede")
	frames   = flag.Int("frames", 20, "Number of capture frames to run")
	outDir   = flag.String("out", "simout", "Output directory")
	velocity = flag.Float64("velocity", 1.0, "Target speed in m/s for approach/recede")
	noiseAmp = flag.Float64("noise", 100, "Additive Gaussian noise amplitude")
	seed     = flag.Int64("seed", 1, "Noise RNG seed")
)

func main() {
	flag.Parse()

	cfg := config.EmptySonarConfig()
	rng := rand.New(rand.NewSource(*seed))

	v := 0.0
	switch *scenario {
	case "silent", "loopback":
	case "approach":
		v = *velocity
	case "recede":
		v = -*velocity
	default:
		log.Fatalf("unknown scenario %q", *scenario)
	}

	driver := audio.NewMockDriver()
	trace := siglog.NewLogger(cfg)
	trace.StartExperiment(*scenario, *outDir)

	proc := pipeline.NewProcessor(cfg, driver, pipeline.WithTraceLogger(trace))
	if err := proc.Start(context.Background()); err != nil {
		log.Fatalf("failed to start pipeline: %v", err)
	}

	id, results := proc.Subscribe()
	defer proc.Unsubscribe(id)

	velocities := make(plotter.XYs, 0, *frames)
	for i := 0; i < *frames; i++ {
		driver.PushFrame(synthFrame(cfg, *scenario, v, *noiseAmp, rng))
		res := <-results
		velocities = append(velocities, plotter.XY{X: float64(res.FrameIndex), Y: res.VelocityMps})
		fmt.Printf("frame %2d: velocity=%+.3f m/s correlation=%.0f\n",
			res.FrameIndex, res.VelocityMps, res.Correlation)
	}

	proc.Stop()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("failed to create output dir: %v", err)
	}

	if path, err := trace.Save(); err != nil {
		log.Printf("failed to save trace: %v", err)
	} else {
		log.Printf("trace: %s", path)
	}

	if res, ok := proc.LastResult(); ok {
		heatPath := filepath.Join(*outDir, *scenario+"_heatmap.html")
		f, err := os.Create(heatPath)
		if err != nil {
			log.Fatalf("failed to create heat map file: %v", err)
		}
		title := fmt.Sprintf("Range-Doppler (%s, v=%.2f m/s)", *scenario, res.VelocityMps)
		if err := api.RenderHeatMap(f, res.Image, title); err != nil {
			log.Printf("failed to render heat map: %v", err)
		}
		f.Close()
		log.Printf("heat map: %s", heatPath)
	}

	if err := plotVelocities(velocities, filepath.Join(*outDir, *scenario+"_velocity.png")); err != nil {
		log.Printf("failed to plot velocities: %v", err)
	}
}

// synthFrame builds one capture buffer: the emitted chirp delayed by
// the configured device latency, time-scaled for the target velocity,
// with additive Gaussian noise. The buffer is long enough to survive
// latency stripping so the pipeline sees a usable echo.
func synthFrame(cfg *config.SonarConfig, scenario string, v, noiseAmp float64, rng *rand.Rand) sonar.RealFrame {
	length := sonar.NextPowerOfTwo(cfg.LatencySamples() + 2*cfg.ChirpSamples() + cfg.GetWindowSize())
	frame := make(sonar.RealFrame, length)
	if scenario == "silent" {
		return frame
	}

	waveform := chirp.NewSynthesizer(cfg).Waveform()
	scale := 1 + v/sonar.SpeedOfSoundMps

	// Two echo copies: the preceding chirp's echo at the buffer head
	// (what the Doppler search correlates against) and the current
	// chirp's echo at the device latency (what survives the latency
	// strip and feeds the imaging chain).
	for _, offset := range []int{0, cfg.LatencySamples()} {
		for i := offset; i < len(frame); i++ {
			src := float64(i-offset) / scale
			lo := int(math.Floor(src))
			hi := int(math.Ceil(src))
			if lo < 0 || hi >= len(waveform) {
				continue
			}
			frac := src - float64(lo)
			echo := float64(waveform[lo])*(1-frac) + float64(waveform[hi])*frac
			frame[i] = int16(sonar.Clamp(echo, math.MaxInt16-1))
		}
	}

	for i := range frame {
		noisy := float64(frame[i]) + rng.NormFloat64()*noiseAmp
		frame[i] = int16(sonar.Clamp(noisy, math.MaxInt16-1))
	}
	return frame
}

// plotVelocities writes the per-frame velocity series as a PNG.
func plotVelocities(series plotter.XYs, path string) error {
	p := plot.New()
	p.Title.Text = "Velocity convergence"
	p.X.Label.Text = "frame"
	p.Y.Label.Text = "velocity (m/s)"

	line, err := plotter.NewLine(series)
	if err != nil {
		return err
	}
	p.Add(line, plotter.NewGrid())

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return err
	}
	log.Printf("velocity plot: %s", path)
	return nil
}
