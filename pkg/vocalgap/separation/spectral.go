package separation

import (
	"context"
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"
)

const (
	windowSize = 1024
	hopSize    = 256

	// The band covering the bulk of sung vocal energy, fundamentals plus the
	// formants that carry intelligibility.
	defaultLowHz  = 200.0
	defaultHighHz = 4000.0
)

// SpectralSeparator approximates vocal isolation with an STFT band-pass
// filter: everything outside the vocal band is zeroed in the frequency domain
// and the signal is rebuilt by overlap-add. It is a cheap stand-in for a
// neural separation model and is accurate enough for energy-based onset
// decisions on typical mixes.
type SpectralSeparator struct {
	LowHz  float64
	HighHz float64
}

// NewSpectralSeparator returns a separator tuned to the standard vocal band.
func NewSpectralSeparator() *SpectralSeparator {
	return &SpectralSeparator{LowHz: defaultLowHz, HighHz: defaultHighHz}
}

// Separate filters each channel independently and returns the vocal-band
// residue with the same shape as the input.
func (s *SpectralSeparator) Separate(ctx context.Context, channels [][]float64, sampleRate int) ([][]float64, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	window := hammingWindow(windowSize)
	out := make([][]float64, len(channels))
	for i, ch := range channels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = s.filterChannel(ch, sampleRate, window)
	}
	return out, nil
}

func (s *SpectralSeparator) filterChannel(signal []float64, sampleRate int, window []float64) []float64 {
	n := len(signal)
	if n == 0 {
		return nil
	}
	padded := signal
	if n < windowSize {
		padded = make([]float64, windowSize)
		copy(padded, signal)
	}

	out := make([]float64, len(padded))
	norm := make([]float64, len(padded))
	frame := make([]float64, windowSize)

	for start := 0; start+windowSize <= len(padded); start += hopSize {
		for j := 0; j < windowSize; j++ {
			frame[j] = padded[start+j] * window[j]
		}
		spectrum := fft.FFTReal(frame)
		for k := range spectrum {
			// Mirror bins above Nyquist back into [0, N/2] to get the
			// frequency they represent.
			bin := k
			if bin > windowSize/2 {
				bin = windowSize - bin
			}
			freq := float64(bin) * float64(sampleRate) / float64(windowSize)
			if freq < s.LowHz || freq > s.HighHz {
				spectrum[k] = 0
			}
		}
		restored := fft.IFFT(spectrum)
		for j := 0; j < windowSize; j++ {
			out[start+j] += real(restored[j]) * window[j]
			norm[start+j] += window[j] * window[j]
		}
	}

	for i := range out {
		if norm[i] > 1e-12 {
			out[i] /= norm[i]
		}
	}
	return out[:n]
}

func hammingWindow(size int) []float64 {
	w := make([]float64, size)
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(size-1))
	}
	return w
}
