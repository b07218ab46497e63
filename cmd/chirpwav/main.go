// chirpwav writes the configured emission chirp to a mono 16-bit WAV
// file, for listening tests and latency measurements.
package main

import (
	"encoding/binary"
	"flag"
	"log"
	"os"

	"github.com/hccps/sondar/internal/config"
	"github.com/hccps/sondar/internal/sonar"
	"github.com/hccps/sondar/internal/sonar/chirp"
)

var (
	out        = flag.String("out", "chirp.wav", "Output WAV path")
	configFile = flag.String("config", "", "Path to a JSON config file (defaults baked in)")
	repeat     = flag.Int("repeat", 1, "Number of chirp periods to write (chirp + silent gap)")
)

// wavHeader is a canonical 44-byte PCM WAV header.
type wavHeader struct {
	RIFF          [4]byte
	FileSize      uint32
	WAVE          [4]byte
	Fmt           [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Data          [4]byte
	DataSize      uint32
}

func main() {
	flag.Parse()

	cfg := config.EmptySonarConfig()
	if *configFile != "" {
		var err error
		cfg, err = config.LoadSonarConfig(*configFile)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	waveform := chirp.NewSynthesizer(cfg).Waveform()
	gapSamples := int(float64(cfg.GetSampleRateHz()) * float64(cfg.GetEmitPeriodMs()) / 1000.0)
	gapSamples -= len(waveform)
	if gapSamples < 0 {
		gapSamples = 0
	}

	samples := make(sonar.RealFrame, 0, *repeat*(len(waveform)+gapSamples))
	for i := 0; i < *repeat; i++ {
		samples = append(samples, waveform...)
		samples = append(samples, make(sonar.RealFrame, gapSamples)...)
	}

	if err := writeWAV(*out, samples, cfg.GetSampleRateHz()); err != nil {
		log.Fatalf("failed to write %s: %v", *out, err)
	}
	log.Printf("wrote %d samples (%d chirps) to %s", len(samples), *repeat, *out)
}

func writeWAV(path string, samples sonar.RealFrame, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dataSize := uint32(len(samples) * 2)
	header := wavHeader{
		FileSize:      36 + dataSize,
		FmtSize:       16,
		AudioFormat:   1, // PCM
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * 2),
		BlockAlign:    2,
		BitsPerSample: 16,
		DataSize:      dataSize,
	}
	copy(header.RIFF[:], "RIFF")
	copy(header.WAVE[:], "WAVE")
	copy(header.Fmt[:], "fmt ")
	copy(header.Data[:], "data")

	if err := binary.Write(f, binary.LittleEndian, &header); err != nil {
		return err
	}
	return binary.Write(f, binary.LittleEndian, samples)
}
