package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/quaverlab/vocalgap/pkg/utils"
)

const (
	// Full-song transcodes of long tracks can take a while.
	defaultTranscodeTimeout = 2 * time.Minute

	// loadBlockFrames is the number of PCM frames decoded per read while
	// streaming a chunk out of a file.
	loadBlockFrames = 4096
)

// Loader decodes waveform chunks from audio files. WAV files are read
// directly; anything else is transcoded to 16-bit PCM WAV via ffmpeg once and
// the result is memoized for the lifetime of the Loader.
type Loader struct {
	tempDir string

	mu         sync.Mutex
	transcoded map[string]string
}

// NewLoader creates a Loader that stores transcoded intermediates in tempDir.
func NewLoader(tempDir string) *Loader {
	return &Loader{
		tempDir:    tempDir,
		transcoded: make(map[string]string),
	}
}

// DurationMs returns the total playable duration of path in milliseconds.
func (l *Loader) DurationMs(ctx context.Context, path string) (float64, error) {
	wavPath, err := l.ensureWAV(ctx, path)
	if err != nil {
		return 0, err
	}
	f, err := os.Open(wavPath)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", wavPath, err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return 0, fmt.Errorf("not a valid wav file: %s", wavPath)
	}
	dur, err := decoder.Duration()
	if err != nil {
		return 0, fmt.Errorf("reading duration of %s: %w", wavPath, err)
	}
	return dur.Seconds() * 1000.0, nil
}

// LoadChunk decodes the frame range covering [startMs, endMs) and returns one
// slice per channel with samples normalized to [-1, 1], plus the sample rate.
func (l *Loader) LoadChunk(ctx context.Context, path string, startMs, endMs float64) ([][]float64, int, error) {
	wavPath, err := l.ensureWAV(ctx, path)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, 0, fmt.Errorf("opening %s: %w", wavPath, err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("not a valid wav file: %s", wavPath)
	}
	sampleRate := int(decoder.SampleRate)
	numChans := int(decoder.NumChans)
	if sampleRate <= 0 || numChans <= 0 {
		return nil, 0, fmt.Errorf("bad wav header in %s: rate=%d channels=%d", wavPath, sampleRate, numChans)
	}
	bitDepth := int(decoder.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := 1.0 / float64(int(1)<<(bitDepth-1))

	startFrame := int(startMs * float64(sampleRate) / 1000.0)
	endFrame := int(endMs * float64(sampleRate) / 1000.0)
	if startFrame < 0 {
		startFrame = 0
	}
	if endFrame <= startFrame {
		return nil, 0, fmt.Errorf("empty chunk range [%.0f, %.0f]ms", startMs, endMs)
	}

	channels := make([][]float64, numChans)
	for c := range channels {
		channels[c] = make([]float64, 0, endFrame-startFrame)
	}
	buf := &goaudio.IntBuffer{
		Data:   make([]int, loadBlockFrames*numChans),
		Format: &goaudio.Format{NumChannels: numChans, SampleRate: sampleRate},
	}

	frame := 0
	for frame < endFrame {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		n, err := decoder.PCMBuffer(buf)
		if n == 0 {
			break
		}
		frames := n / numChans
		for i := 0; i < frames; i++ {
			abs := frame + i
			if abs < startFrame {
				continue
			}
			if abs >= endFrame {
				break
			}
			for c := 0; c < numChans; c++ {
				channels[c] = append(channels[c], float64(buf.Data[i*numChans+c])*scale)
			}
		}
		frame += frames
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, 0, fmt.Errorf("decoding %s: %w", wavPath, err)
		}
	}

	if len(channels[0]) == 0 {
		return nil, 0, fmt.Errorf("no samples in range [%.0f, %.0f]ms of %s", startMs, endMs, wavPath)
	}
	return channels, sampleRate, nil
}

// ensureWAV returns a WAV path for the given file, transcoding through ffmpeg
// when needed. Transcodes are written to a temp name first and moved into
// place so a killed process never leaves a half-written file behind.
func (l *Loader) ensureWAV(ctx context.Context, path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		return path, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if out, ok := l.transcoded[path]; ok {
		if utils.FileExists(out) {
			return out, nil
		}
		delete(l.transcoded, path)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("source file %s: %w", path, err)
	}
	if err := utils.MakeDir(l.tempDir); err != nil {
		return "", err
	}

	out := filepath.Join(l.tempDir, fmt.Sprintf("%s.wav", utils.GenerateUUID()))
	tmp := out + ".part"

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTranscodeTimeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", "-y", "-v", "quiet", "-i", path, "-c:a", "pcm_s16le", tmp)
	if output, err := cmd.CombinedOutput(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("ffmpeg transcode of %s failed: %v (%s)", path, err, strings.TrimSpace(string(output)))
	}
	if err := utils.MoveFile(tmp, out); err != nil {
		os.Remove(tmp)
		return "", err
	}

	l.transcoded[path] = out
	return out, nil
}
