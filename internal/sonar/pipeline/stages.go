package pipeline

import (
	"github.com/hccps/sondar/internal/monitoring"
	"github.com/hccps/sondar/internal/sonar"
	"github.com/hccps/sondar/internal/sonar/imaging"
	"github.com/hccps/sondar/internal/sonar/phase"
)

// processFrame runs the full per-frame chain:
// preprocess → align → dechirp → STFT → subtract → range-Doppler →
// compensate → publish.
func (p *Processor) processFrame(frame sonar.RealFrame) {
	if len(frame) == 0 {
		monitoring.Logf("pipeline: empty frame")
		return
	}

	index := p.nextFrameIndex()
	if p.trace != nil {
		p.trace.LogRaw(frame, index)
	}

	preprocessed := p.preprocess(frame)
	if p.trace != nil {
		p.trace.LogComplex(preprocessed, index, "preprocessed")
	}

	alignment := p.aligner.Align(preprocessed)
	if p.trace != nil {
		p.trace.LogComplex(alignment.Frame, index, "aligned")
		p.trace.LogVelocity(alignment.RawVelocity, alignment.Velocity, alignment.Correlation, index)
	}

	baseband := p.down.Dechirp(alignment.Frame)

	tfImage, err := p.down.STFT(baseband)
	if err != nil {
		monitoring.Logf("pipeline: stft failed, frame %d dropped: %v", index, err)
		return
	}
	if len(tfImage) == 0 {
		monitoring.Logf("pipeline: frame %d too short for stft", index)
		return
	}

	foreground := p.subtractor.Remove(tfImage)

	rangeDoppler, err := p.down.RangeDoppler(foreground)
	if err != nil {
		monitoring.Logf("pipeline: range-doppler failed, frame %d dropped: %v", index, err)
		return
	}

	compensated := phase.Compensate(rangeDoppler, alignment.Velocity)
	if p.trace != nil {
		p.trace.LogImage(compensated, index, "rangeDoppler")
	}

	result := &sonar.Result{
		Image:       compensated,
		VelocityMps: alignment.Velocity,
		Correlation: alignment.Correlation,
		FrameIndex:  index,
	}

	peakRow, _, peakValue := compensated.Peak()

	p.snapMu.Lock()
	p.lastResult = result
	p.lastForeground = foreground
	if peakValue > 0 {
		p.distances = append(p.distances, p.rangeOfBin(peakRow))
		if len(p.distances) > distanceHistorySize {
			p.distances = p.distances[len(p.distances)-distanceHistorySize:]
		}
	}
	p.snapMu.Unlock()

	p.persist(result, float64(peakValue))
	p.framesDone.Add(1)
	p.publish(result)
}

// preprocess converts PCM to complex and bandpasses it around the chirp
// band. The second filter pass reproduces the original handset build
// when configured.
func (p *Processor) preprocess(frame sonar.RealFrame) sonar.ComplexFrame {
	filtered := p.prefilter.Apply(frame.ToComplex())
	if p.doubleFilter {
		filtered = p.prefilter.Apply(filtered)
	}
	return filtered
}

// nextFrameIndex allocates the next frame sequence number.
func (p *Processor) nextFrameIndex() int {
	p.snapMu.Lock()
	defer p.snapMu.Unlock()
	index := p.frameIndex
	p.frameIndex++
	return index
}

// rangeOfBin converts an STFT frequency bin index to a one-way target
// distance in metres: the dechirped beat frequency is proportional to
// round-trip delay, f_b = 2·B·R / (c·T_c).
func (p *Processor) rangeOfBin(bin int) float64 {
	binHz := float64(p.cfg.GetSampleRateHz()) / float64(p.cfg.GetWindowSize())
	beatHz := float64(bin) * binHz
	tc := p.cfg.GetChirpDurationMs() / 1000
	bandwidth := p.cfg.GetChirpMaxFreqHz() - p.cfg.GetChirpMinFreqHz()
	return sonar.SpeedOfSoundMps * beatHz * tc / (2 * bandwidth)
}

// persist writes the observation and the derived size estimate.
func (p *Processor) persist(result *sonar.Result, peakMagnitude float64) {
	if p.store == nil {
		return
	}

	session := p.SessionID()
	if err := p.store.RecordObservation(session, result.FrameIndex,
		result.VelocityMps, result.Correlation, peakMagnitude); err != nil {
		monitoring.Logf("pipeline: failed to record observation: %v", err)
	}

	if size, label, ok := p.sizeForResult(result); ok {
		if err := p.store.RecordSizeEstimate(session, result.FrameIndex,
			size.LengthMM, size.WidthMM, label.String()); err != nil {
			monitoring.Logf("pipeline: failed to record size estimate: %v", err)
		}
	}
}

// sizeForResult maps a result's image to physical space and extracts
// the target size and shape label.
func (p *Processor) sizeForResult(result *sonar.Result) (imaging.Size, imaging.ShapeLabel, bool) {
	physical := p.mapper.ToPhysical(result.Image, p.Distances())
	if physical == nil {
		return imaging.Size{}, imaging.ShapeUnknown, false
	}
	size := imaging.ExtractSize(physical)
	_, _, peak := physical.Data.Peak()
	label := p.classifier.Classify(physical, peak*0.3)
	return size, label, true
}

// publish fans the result out to all subscribers without blocking.
func (p *Processor) publish(result *sonar.Result) {
	p.subscriberMu.Lock()
	defer p.subscriberMu.Unlock()
	for _, ch := range p.subscribers {
		select {
		case ch <- result:
		default:
		}
	}
}
