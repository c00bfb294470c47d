package vocalgap

import (
	"context"
	"fmt"
	"math"

	"github.com/quaverlab/vocalgap/pkg/logger"
	"github.com/quaverlab/vocalgap/pkg/utils"
	"github.com/quaverlab/vocalgap/pkg/vocalgap/audio"
	"github.com/quaverlab/vocalgap/pkg/vocalgap/separation"
)

type service struct {
	loader   ChunkLoader
	strategy Strategy
	cache    *VocalsCache
	cfg      ScanConfig
	log      Logger
}

// NewService builds the onset-scanning engine. With no options it uses the
// process logger, the WAV/ffmpeg chunk loader and the band-pass spectral
// separator; hosts typically override the separator with a neural model
// backend.
func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Scan.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.Loader == nil {
		cfg.Loader = audio.NewLoader(cfg.TempDir)
	}
	if cfg.Separator == nil {
		cfg.Separator = separation.NewSpectralSeparator()
	}

	cache := NewVocalsCache(cfg.CacheCapacity)
	return &service{
		loader: cfg.Loader,
		strategy: &energyStrategy{
			loader:    cfg.Loader,
			separator: cfg.Separator,
			cache:     cache,
			cfg:       cfg.Scan,
			log:       cfg.Logger,
		},
		cache: cache,
		cfg:   cfg.Scan,
		log:   cfg.Logger,
	}, nil
}

// ScanForOnset drives the expanding-window pipeline: generate the chunk
// boundaries of the current window, isolate vocals per chunk (cache first),
// run onset detection, and either stop early on a near-expected hit or keep
// the candidate closest to the expected position across all windows.
func (s *service) ScanForOnset(ctx context.Context, audioPath string, expectedGapMs float64) (*DetectionOutcome, error) {
	scanID := utils.GenerateUUID()[:8]
	s.log.Infof("[scan %s] step 1: probing %s", scanID, audioPath)

	totalMs, err := s.loader.DurationMs(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, audioPath, err)
	}
	if totalMs <= 0 {
		return nil, fmt.Errorf("%w: %s: reported duration %.1fms", ErrSourceUnreadable, audioPath, totalMs)
	}
	if expectedGapMs < 0 {
		expectedGapMs = 0
	}
	if expectedGapMs > totalMs {
		expectedGapMs = totalMs
	}

	iter, err := NewChunkIterator(s.cfg, totalMs)
	if err != nil {
		return nil, err
	}
	expansion := NewExpansionStrategy(s.cfg, totalMs)

	s.log.Infof("[scan %s] step 2: scanning %.0fms of audio around expected onset %.0fms (%s)",
		scanID, totalMs, expectedGapMs, s.strategy.MethodName())

	outcome := &DetectionOutcome{}
	var (
		bestOnsetMs  float64
		bestDistance float64
		haveBest     bool
	)

	for i := 0; ; i++ {
		win := expansion.Window(expectedGapMs, i)
		outcome.ExpansionReached = i
		s.log.Debugf("[scan %s] expansion %d: window [%.0f, %.0f]ms (radius %.0fms)",
			scanID, i, win.StartMs, win.EndMs, win.RadiusMs)

		for _, b := range iter.Generate(win.StartMs, win.EndMs) {
			outcome.ChunksProcessed++
			if ctx.Err() != nil {
				s.log.Warnf("[scan %s] cancelled after %d chunks", scanID, outcome.ChunksProcessed)
				outcome.Cancelled = true
				if haveBest {
					outcome.Found = true
					outcome.OnsetMs = bestOnsetMs
				}
				return outcome, nil
			}

			vocals, err := s.strategy.GetVocals(ctx, audioPath, b)
			if err != nil {
				s.log.Warnf("[scan %s] chunk [%.0f, %.0f]ms failed: %v; skipping",
					scanID, b.StartMs, b.EndMs, err)
				continue
			}

			det := s.strategy.DetectSilencePeriods(vocals, b.StartMs)
			outcome.VoicedPeriods = append(outcome.VoicedPeriods, det.VoicedPeriods...)
			if !det.Found {
				continue
			}

			distance := math.Abs(det.OnsetMs - expectedGapMs)
			if distance <= s.cfg.EarlyStopToleranceMs {
				s.log.Infof("[scan %s] step 3: onset at %.0fms within %.0fms of expected; stopping early",
					scanID, det.OnsetMs, s.cfg.EarlyStopToleranceMs)
				outcome.Found = true
				outcome.OnsetMs = det.OnsetMs
				return outcome, nil
			}
			if !haveBest || distance < bestDistance {
				bestOnsetMs = det.OnsetMs
				bestDistance = distance
				haveBest = true
			}
		}

		if !expansion.ShouldContinue(i, haveBest) {
			break
		}
	}

	if haveBest {
		outcome.Found = true
		outcome.OnsetMs = bestOnsetMs
		s.log.Infof("[scan %s] step 3: onset at %.0fms after %d chunks, expansion %d",
			scanID, outcome.OnsetMs, outcome.ChunksProcessed, outcome.ExpansionReached)
	} else {
		s.log.Infof("[scan %s] step 3: no sustained vocals found after %d chunks, expansion %d",
			scanID, outcome.ChunksProcessed, outcome.ExpansionReached)
	}
	return outcome, nil
}

// ComputeConfidence delegates to the strategy and converts any failure into
// the fixed fallback score. A broken scoring pass must not invalidate an
// otherwise good detection.
func (s *service) ComputeConfidence(ctx context.Context, audioPath string, onsetMs float64) (float64, error) {
	score, err := s.strategy.ComputeConfidence(ctx, audioPath, onsetMs)
	if err != nil {
		s.log.Warnf("confidence scoring for %s at %.0fms failed: %v; using fallback %.2f",
			audioPath, onsetMs, err, confidenceFallback)
		return confidenceFallback, nil
	}
	return score, nil
}

func (s *service) MethodName() string {
	return s.strategy.MethodName()
}

func (s *service) ClearCache() {
	s.cache.Clear()
}
