package vocalgap

import (
	"context"
	"fmt"
	"math"
)

const (
	// Confidence compares the energy just before the onset against the energy
	// just after it.
	confidenceNoiseWindowMs  = 800.0
	confidenceSignalWindowMs = 300.0

	// confidenceFallback is reported when scoring itself fails. A detection
	// good enough to score is more likely right than wrong, so the fallback
	// sits above the default acceptance threshold rather than at zero.
	confidenceFallback = 0.7

	// quietNoiseSNRDB stands in for the SNR when the pre-onset region is
	// essentially silent and the ratio would be meaningless.
	quietNoiseSNRDB = 20.0

	confidenceEpsilon = 1e-10
)

// energyStrategy is the default detection method: band-pass vocal isolation
// followed by RMS/SNR onset decisions.
type energyStrategy struct {
	loader    ChunkLoader
	separator Separator
	cache     *VocalsCache
	cfg       ScanConfig
	log       Logger
}

func (e *energyStrategy) MethodName() string {
	return "energy-snr"
}

// GetVocals returns the isolated vocals for one chunk. A cache hit that fully
// covers the requested boundary is sliced and returned without touching the
// separation model.
func (e *energyStrategy) GetVocals(ctx context.Context, audioPath string, b ChunkBoundary) (Waveform, error) {
	if cached, cachedStart, ok := e.cache.GetCovering(audioPath, b.StartMs, b.EndMs); ok {
		e.log.Debugf("vocals cache hit for [%.0f, %.0f]ms", b.StartMs, b.EndMs)
		return cached.Slice(b.StartMs-cachedStart, b.EndMs-cachedStart), nil
	}

	channels, sampleRate, err := e.loader.LoadChunk(ctx, audioPath, b.StartMs, b.EndMs)
	if err != nil {
		return Waveform{}, fmt.Errorf("loading chunk [%.0f, %.0f]ms: %w", b.StartMs, b.EndMs, err)
	}
	vocalChannels, err := e.separator.Separate(ctx, channels, sampleRate)
	if err != nil {
		return Waveform{}, fmt.Errorf("isolating vocals in [%.0f, %.0f]ms: %w", b.StartMs, b.EndMs, err)
	}

	vocals := NewWaveform(vocalChannels, sampleRate)
	e.cache.Put(audioPath, b.StartMs, b.EndMs, vocals)
	return vocals, nil
}

func (e *energyStrategy) DetectSilencePeriods(vocals Waveform, chunkStartMs float64) ChunkDetection {
	return DetectOnset(vocals, chunkStartMs, e.cfg)
}

// ComputeConfidence scores how cleanly the signal after onsetMs stands out
// from the region before it. The SNR between the two windows is squashed
// through a sigmoid so that ~10dB maps to 0.5 and ~30dB saturates near 1.
func (e *energyStrategy) ComputeConfidence(ctx context.Context, audioPath string, onsetMs float64) (float64, error) {
	vocals, chunkStartMs, err := e.vocalsAround(ctx, audioPath, onsetMs)
	if err != nil {
		return 0, err
	}
	if vocals.NumSamples() == 0 {
		return 0, fmt.Errorf("empty vocal segment around %.0fms", onsetMs)
	}

	relOnsetMs := onsetMs - chunkStartMs
	noiseRMS := rms(vocals.Slice(0, confidenceNoiseWindowMs).Mono())
	signalRMS := rms(vocals.Slice(relOnsetMs, relOnsetMs+confidenceSignalWindowMs).Mono())

	var snrDB float64
	if noiseRMS < 1e-6 {
		snrDB = quietNoiseSNRDB
	} else {
		snrDB = 20 * math.Log10((signalRMS+confidenceEpsilon)/(noiseRMS+confidenceEpsilon))
	}

	confidence := 1.0 / (1.0 + math.Exp(-0.1*(snrDB-10)))
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence, nil
}

// vocalsAround returns an isolated-vocal chunk covering onsetMs, preferring a
// chunk already cached by the detection pass.
func (e *energyStrategy) vocalsAround(ctx context.Context, audioPath string, onsetMs float64) (Waveform, float64, error) {
	if cached, cachedStart, _, ok := e.cache.Get(audioPath, onsetMs); ok {
		return cached, cachedStart, nil
	}

	startMs := math.Max(0, onsetMs-confidenceNoiseWindowMs)
	b := ChunkBoundary{StartMs: startMs, EndMs: onsetMs + confidenceSignalWindowMs}
	vocals, err := e.GetVocals(ctx, audioPath, b)
	if err != nil {
		return Waveform{}, 0, err
	}
	return vocals, b.StartMs, nil
}
