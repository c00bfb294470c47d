package vocalgap

import "errors"

var (
	// ErrSourceUnreadable is returned when the source audio file cannot be
	// opened or decoded at all. Per-chunk decode or separation failures are
	// recovered internally and never surface as this error.
	ErrSourceUnreadable = errors.New("source audio unreadable")

	// ErrInvalidConfig is returned for scan configurations that cannot produce
	// a meaningful scan (e.g. chunk overlap >= chunk duration).
	ErrInvalidConfig = errors.New("invalid scan config")
)

// Waveform holds decoded PCM as one slice per channel, normalized to [-1, 1].
type Waveform struct {
	Channels   [][]float64
	SampleRate int
}

// NewWaveform wraps raw channel data and a sample rate into a Waveform.
func NewWaveform(channels [][]float64, sampleRate int) Waveform {
	return Waveform{Channels: channels, SampleRate: sampleRate}
}

// NumSamples returns the per-channel sample count.
func (w Waveform) NumSamples() int {
	if len(w.Channels) == 0 {
		return 0
	}
	return len(w.Channels[0])
}

// DurationMs returns the waveform length in milliseconds.
func (w Waveform) DurationMs() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(w.NumSamples()) / float64(w.SampleRate) * 1000.0
}

// Mono mixes all channels down to a single signal by averaging.
func (w Waveform) Mono() []float64 {
	if len(w.Channels) == 0 {
		return nil
	}
	if len(w.Channels) == 1 {
		return w.Channels[0]
	}
	n := w.NumSamples()
	out := make([]float64, n)
	for _, ch := range w.Channels {
		for i := 0; i < n && i < len(ch); i++ {
			out[i] += ch[i]
		}
	}
	scale := 1.0 / float64(len(w.Channels))
	for i := range out {
		out[i] *= scale
	}
	return out
}

// Slice returns the sub-waveform covering [fromMs, toMs) relative to the
// start of this waveform. Bounds are clamped to the available samples.
func (w Waveform) Slice(fromMs, toMs float64) Waveform {
	n := w.NumSamples()
	from := int(fromMs * float64(w.SampleRate) / 1000.0)
	to := int(toMs * float64(w.SampleRate) / 1000.0)
	if from < 0 {
		from = 0
	}
	if to > n {
		to = n
	}
	if from >= to {
		return Waveform{Channels: make([][]float64, len(w.Channels)), SampleRate: w.SampleRate}
	}
	channels := make([][]float64, len(w.Channels))
	for i, ch := range w.Channels {
		channels[i] = ch[from:to]
	}
	return Waveform{Channels: channels, SampleRate: w.SampleRate}
}

// ChunkBoundary is one time range handed to the separation model.
// StartMs is always strictly less than EndMs.
type ChunkBoundary struct {
	StartMs float64
	EndMs   float64
}

// Equal reports whether two boundaries describe the same chunk. Millisecond
// values are truncated to integers before comparison so that float drift
// between expansions cannot defeat deduplication.
func (b ChunkBoundary) Equal(other ChunkBoundary) bool {
	return int64(b.StartMs) == int64(other.StartMs) && int64(b.EndMs) == int64(other.EndMs)
}

// SearchWindow is one expansion step of the scan.
type SearchWindow struct {
	StartMs   float64
	EndMs     float64
	RadiusMs  float64
	Expansion int
}

// VoicedPeriod is a time range judged to contain sustained vocal energy,
// in absolute milliseconds from the start of the song.
type VoicedPeriod struct {
	StartMs float64
	EndMs   float64
}

// ChunkDetection is the per-chunk result of the detection strategy.
type ChunkDetection struct {
	OnsetMs       float64
	Found         bool
	VoicedPeriods []VoicedPeriod
}

// DetectionOutcome is the result of a full onset scan.
//
// Cancelled scans carry whatever was accumulated before the cancellation was
// observed; Cancelled=true distinguishes that from a completed scan that
// simply found nothing.
type DetectionOutcome struct {
	OnsetMs          float64
	Found            bool
	Cancelled        bool
	VoicedPeriods    []VoicedPeriod
	ChunksProcessed  int
	ExpansionReached int
}
