package vocalgap

import "math"

// noiseFloorEpsilon keeps the SNR ratio finite when a chunk opens in total
// digital silence.
const noiseFloorEpsilon = 1e-10

// rms returns the root-mean-square amplitude of samples.
func rms(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// energyEnvelope computes the frame RMS envelope of a mono signal using
// FrameDurationMs windows advanced by HopDurationMs. The final frame may be
// shorter than a full window.
func energyEnvelope(mono []float64, sampleRate int, cfg ScanConfig) []float64 {
	frameLen := int(cfg.FrameDurationMs * float64(sampleRate) / 1000.0)
	hopLen := int(cfg.HopDurationMs * float64(sampleRate) / 1000.0)
	if frameLen <= 0 || hopLen <= 0 || len(mono) == 0 {
		return nil
	}
	envelope := make([]float64, 0, len(mono)/hopLen+1)
	for start := 0; start < len(mono); start += hopLen {
		end := start + frameLen
		if end > len(mono) {
			end = len(mono)
		}
		envelope = append(envelope, rms(mono[start:end]))
	}
	return envelope
}

// measureNoiseFloor returns the RMS over the first NoiseFloorDurationMs of
// the chunk. Shorter waveforms use whatever samples exist; a degraded
// estimate, not an error.
//
// The reference is capped at the absolute onset threshold: vocal isolation
// leaves near-silence outside voiced regions, so a floor measured above that
// threshold means the measurement window itself is voiced and would otherwise
// mask an onset at the very start of the chunk.
func measureNoiseFloor(mono []float64, sampleRate int, cfg ScanConfig) float64 {
	n := int(cfg.NoiseFloorDurationMs * float64(sampleRate) / 1000.0)
	if n > len(mono) {
		n = len(mono)
	}
	floor := rms(mono[:n])
	if floor > cfg.OnsetAbsThreshold {
		floor = cfg.OnsetAbsThreshold
	}
	if floor < noiseFloorEpsilon {
		floor = noiseFloorEpsilon
	}
	return floor
}

// DetectOnset decides whether and where sustained vocal energy begins inside
// one isolated-vocal chunk.
//
// A frame is an onset candidate when its SNR against the chunk's noise floor
// reaches OnsetSNRThresholdDB and its RMS reaches OnsetAbsThreshold (the
// absolute floor blocks false triggers when the noise floor is near zero).
// Candidates must stay above threshold for MinVoicedDurationMs, allowing dips
// no longer than HysteresisMs, before they count as genuine onset. That
// sustain requirement rejects transient spikes such as percussive hits. The
// reported onset is the start of the first qualifying frame in absolute song
// time.
func DetectOnset(vocals Waveform, chunkStartMs float64, cfg ScanConfig) ChunkDetection {
	mono := vocals.Mono()
	envelope := energyEnvelope(mono, vocals.SampleRate, cfg)
	if len(envelope) == 0 {
		return ChunkDetection{}
	}
	floor := measureNoiseFloor(mono, vocals.SampleRate, cfg)

	minFrames := int(math.Ceil(cfg.MinVoicedDurationMs / cfg.HopDurationMs))
	if minFrames < 1 {
		minFrames = 1
	}
	maxDipFrames := int(cfg.HysteresisMs / cfg.HopDurationMs)

	var periods []VoicedPeriod
	runStart, lastAbove := -1, -1
	closeRun := func() {
		if runStart >= 0 && lastAbove-runStart+1 >= minFrames {
			periods = append(periods, VoicedPeriod{
				StartMs: chunkStartMs + float64(runStart)*cfg.HopDurationMs,
				EndMs:   chunkStartMs + float64(lastAbove+1)*cfg.HopDurationMs,
			})
		}
		runStart, lastAbove = -1, -1
	}

	for i, frameRMS := range envelope {
		above := frameRMS >= cfg.OnsetAbsThreshold &&
			20*math.Log10(frameRMS/floor) >= cfg.OnsetSNRThresholdDB
		switch {
		case above:
			if runStart < 0 {
				runStart = i
			}
			lastAbove = i
		case runStart >= 0 && i-lastAbove > maxDipFrames:
			closeRun()
		}
	}
	closeRun()

	if len(periods) == 0 {
		return ChunkDetection{}
	}
	return ChunkDetection{
		OnsetMs:       periods[0].StartMs,
		Found:         true,
		VoicedPeriods: periods,
	}
}
