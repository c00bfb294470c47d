package vocalgap

import "context"

// Service is the engine's entry point for a host application. One Service
// instance owns one vocals cache; detection and the later confidence pass for
// the same song share it. A Service is not safe for concurrent scans: the
// separation model is assumed to be a single shared instance and callers must
// serialize access.
type Service interface {
	// ScanForOnset locates the moment vocals begin in audioPath, searching
	// expanding windows around expectedGapMs. Cancelling ctx aborts the scan
	// at the next chunk boundary and returns the partial outcome with
	// Cancelled=true and a nil error.
	//
	// Only an unreadable source file or a misconfiguration produce an error;
	// everything else degrades to a no-onset outcome.
	ScanForOnset(ctx context.Context, audioPath string, expectedGapMs float64) (*DetectionOutcome, error)

	// ComputeConfidence scores a detected onset in [0, 1], reusing cached
	// isolated vocals when possible. It never returns an error: any failure
	// yields a fixed moderate-high fallback value.
	ComputeConfidence(ctx context.Context, audioPath string, onsetMs float64) (float64, error)

	// MethodName identifies the active detection strategy.
	MethodName() string

	// ClearCache drops all cached isolated-vocal chunks. Call between
	// unrelated songs.
	ClearCache()
}

// Strategy is a pluggable onset-detection method. The energy/SNR strategy is
// the default; alternatives can swap in different isolation or decision
// procedures behind the same pipeline.
type Strategy interface {
	MethodName() string

	// GetVocals returns the isolated-vocal waveform for one chunk, consulting
	// the shared cache before invoking the separation model.
	GetVocals(ctx context.Context, audioPath string, b ChunkBoundary) (Waveform, error)

	// DetectSilencePeriods analyses an isolated-vocal chunk and reports the
	// voiced periods found in it, plus the first sustained onset if any.
	// chunkStartMs anchors the result in absolute song time.
	DetectSilencePeriods(vocals Waveform, chunkStartMs float64) ChunkDetection

	// ComputeConfidence scores an onset from the isolated-vocal signal around
	// it. Errors are advisory; the service maps them to a fallback score.
	ComputeConfidence(ctx context.Context, audioPath string, onsetMs float64) (float64, error)
}

// ChunkLoader supplies decoded waveform chunks from an audio file. It is
// responsible for any transcoding of exotic codecs. Channel data is
// normalized to [-1, 1].
type ChunkLoader interface {
	// DurationMs returns the total playable duration of the file.
	DurationMs(ctx context.Context, path string) (float64, error)

	// LoadChunk decodes the frame range covering [startMs, endMs).
	LoadChunk(ctx context.Context, path string, startMs, endMs float64) ([][]float64, int, error)
}

// Separator maps a waveform chunk to an isolated-vocal waveform chunk.
// Implementations are expensive and typically hold a model loaded once;
// they must behave as pure functions of their input.
type Separator interface {
	Separate(ctx context.Context, channels [][]float64, sampleRate int) ([][]float64, error)
}

// Logger is the minimal logging surface the engine needs. The default is the
// process-wide leveled logger; tests inject a silent one.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
