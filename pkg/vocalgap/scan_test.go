package vocalgap

import (
	"context"
	"errors"
	"math"
	"testing"
)

// fakeLoader synthesizes PCM from a time-domain signal function instead of
// reading files.
type fakeLoader struct {
	totalMs float64
	rate    int
	signal  func(tMs float64) float64
	durErr  error
	loadErr error
	onLoad  func()
	loads   int
}

func (f *fakeLoader) DurationMs(ctx context.Context, path string) (float64, error) {
	if f.durErr != nil {
		return 0, f.durErr
	}
	return f.totalMs, nil
}

func (f *fakeLoader) LoadChunk(ctx context.Context, path string, startMs, endMs float64) ([][]float64, int, error) {
	f.loads++
	if f.onLoad != nil {
		f.onLoad()
	}
	if f.loadErr != nil {
		return nil, 0, f.loadErr
	}
	if endMs > f.totalMs {
		endMs = f.totalMs
	}
	if endMs <= startMs {
		return nil, 0, errors.New("range beyond end of file")
	}
	n := int((endMs - startMs) * float64(f.rate) / 1000.0)
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = f.signal(startMs + float64(i)*1000.0/float64(f.rate))
	}
	return [][]float64{samples}, f.rate, nil
}

// identitySeparator passes the mix through unchanged and counts invocations.
type identitySeparator struct {
	calls int
	err   error
}

func (s *identitySeparator) Separate(ctx context.Context, channels [][]float64, sampleRate int) ([][]float64, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return channels, nil
}

type nopLogger struct{}

func (nopLogger) Infof(format string, args ...any)  {}
func (nopLogger) Warnf(format string, args ...any)  {}
func (nopLogger) Errorf(format string, args ...any) {}
func (nopLogger) Debugf(format string, args ...any) {}

func testScanConfig() ScanConfig {
	cfg := DefaultScanConfig()
	cfg.ChunkDurationMs = 1000
	cfg.ChunkOverlapMs = 100
	cfg.FrameDurationMs = 20
	cfg.HopDurationMs = 10
	cfg.NoiseFloorDurationMs = 200
	cfg.OnsetSNRThresholdDB = 10
	cfg.OnsetAbsThreshold = 0.01
	cfg.MinVoicedDurationMs = 100
	cfg.HysteresisMs = 30
	cfg.InitialRadiusMs = 1000
	cfg.RadiusIncrementMs = 1000
	cfg.MaxExpansions = 5
	cfg.EarlyStopToleranceMs = 150
	return cfg
}

// silenceThenTone is zero before onsetMs and a 440Hz tone after it.
func silenceThenTone(onsetMs float64) func(float64) float64 {
	return func(tMs float64) float64 {
		if tMs < onsetMs {
			return 0
		}
		return 0.3 * math.Sin(2*math.Pi*440*tMs/1000.0)
	}
}

func newTestService(t *testing.T, cfg ScanConfig, loader *fakeLoader, sep *identitySeparator) Service {
	t.Helper()
	svc, err := NewService(
		WithScanConfig(cfg),
		WithLoader(loader),
		WithSeparator(sep),
		WithLogger(nopLogger{}),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestScanSilenceThenToneNeedsExpansion(t *testing.T) {
	loader := &fakeLoader{totalMs: 3000, rate: 8000, signal: silenceThenTone(2600)}
	sep := &identitySeparator{}
	svc := newTestService(t, testScanConfig(), loader, sep)

	outcome, err := svc.ScanForOnset(context.Background(), "song.wav", 0)
	if err != nil {
		t.Fatalf("ScanForOnset: %v", err)
	}
	if !outcome.Found {
		t.Fatal("expected onset to be found")
	}
	if math.Abs(outcome.OnsetMs-2600) > 25 {
		t.Errorf("onset = %.1fms, want ~2600ms", outcome.OnsetMs)
	}
	if outcome.ExpansionReached != 1 {
		t.Errorf("expansion = %d, want 1", outcome.ExpansionReached)
	}
	if outcome.ChunksProcessed != 3 {
		t.Errorf("chunks = %d, want 3", outcome.ChunksProcessed)
	}
	if sep.calls != outcome.ChunksProcessed {
		t.Errorf("separator calls = %d, want %d (one per distinct chunk)", sep.calls, outcome.ChunksProcessed)
	}
	if outcome.Cancelled {
		t.Error("scan should not report cancelled")
	}
}

func TestScanEarlyStopNearExpected(t *testing.T) {
	loader := &fakeLoader{totalMs: 3000, rate: 8000, signal: silenceThenTone(2600)}
	sep := &identitySeparator{}
	svc := newTestService(t, testScanConfig(), loader, sep)

	outcome, err := svc.ScanForOnset(context.Background(), "song.wav", 2600)
	if err != nil {
		t.Fatalf("ScanForOnset: %v", err)
	}
	if !outcome.Found {
		t.Fatal("expected onset to be found")
	}
	if math.Abs(outcome.OnsetMs-2600) > 25 {
		t.Errorf("onset = %.1fms, want ~2600ms", outcome.OnsetMs)
	}
	// The chunk containing the onset is the third in the first window; the
	// early stop must skip the fourth.
	if outcome.ExpansionReached != 0 {
		t.Errorf("expansion = %d, want 0", outcome.ExpansionReached)
	}
	if outcome.ChunksProcessed != 3 {
		t.Errorf("chunks = %d, want 3 (early stop before the last chunk)", outcome.ChunksProcessed)
	}
}

func TestScanToneFromStartDespiteFarExpected(t *testing.T) {
	cfg := testScanConfig()
	// One chunk covers the whole song so the first always-from-zero window
	// decides by itself.
	cfg.ChunkDurationMs = 4000
	cfg.ChunkOverlapMs = 100

	loader := &fakeLoader{totalMs: 3000, rate: 8000, signal: silenceThenTone(0)}
	sep := &identitySeparator{}
	svc := newTestService(t, cfg, loader, sep)

	outcome, err := svc.ScanForOnset(context.Background(), "song.wav", 5000)
	if err != nil {
		t.Fatalf("ScanForOnset: %v", err)
	}
	if !outcome.Found {
		t.Fatal("expected onset to be found")
	}
	if outcome.OnsetMs > 25 {
		t.Errorf("onset = %.1fms, want ~0ms", outcome.OnsetMs)
	}
	if outcome.ExpansionReached != 0 {
		t.Errorf("expansion = %d, want 0 (found in the first window)", outcome.ExpansionReached)
	}
}

func TestScanExpandsFarBeyondInitialRadius(t *testing.T) {
	cfg := testScanConfig()
	cfg.InitialRadiusMs = 5000
	cfg.RadiusIncrementMs = 10000
	cfg.MaxExpansions = 4

	loader := &fakeLoader{totalMs: 50000, rate: 8000, signal: silenceThenTone(45000)}
	sep := &identitySeparator{}
	svc := newTestService(t, cfg, loader, sep)

	outcome, err := svc.ScanForOnset(context.Background(), "song.wav", 10000)
	if err != nil {
		t.Fatalf("ScanForOnset: %v", err)
	}
	if !outcome.Found {
		t.Fatal("expected onset to be found")
	}
	if math.Abs(outcome.OnsetMs-45000) > 25 {
		t.Errorf("onset = %.1fms, want ~45000ms", outcome.OnsetMs)
	}
	if outcome.ExpansionReached < 2 {
		t.Errorf("expansion = %d, want at least 2", outcome.ExpansionReached)
	}
}

func TestScanNoVocalsExhaustsExpansions(t *testing.T) {
	cfg := testScanConfig()
	loader := &fakeLoader{totalMs: 3000, rate: 8000, signal: func(float64) float64 { return 0 }}
	sep := &identitySeparator{}
	svc := newTestService(t, cfg, loader, sep)

	outcome, err := svc.ScanForOnset(context.Background(), "song.wav", 1500)
	if err != nil {
		t.Fatalf("ScanForOnset: %v", err)
	}
	if outcome.Found {
		t.Errorf("found onset at %.1fms in pure silence", outcome.OnsetMs)
	}
	if outcome.ExpansionReached != cfg.MaxExpansions {
		t.Errorf("expansion = %d, want %d", outcome.ExpansionReached, cfg.MaxExpansions)
	}
}

func TestScanCancellationReturnsPartialOutcome(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	loader := &fakeLoader{totalMs: 3000, rate: 8000, signal: func(float64) float64 { return 0 }}
	loader.onLoad = cancel
	sep := &identitySeparator{}
	svc := newTestService(t, testScanConfig(), loader, sep)

	outcome, err := svc.ScanForOnset(ctx, "song.wav", 0)
	if err != nil {
		t.Fatalf("cancellation must not be an error, got %v", err)
	}
	if !outcome.Cancelled {
		t.Fatal("expected Cancelled=true")
	}
	// The first chunk completes before cancel is observed; the second chunk is
	// counted and then aborted.
	if outcome.ChunksProcessed != 2 {
		t.Errorf("chunks = %d, want 2", outcome.ChunksProcessed)
	}
	if outcome.Found {
		t.Error("no onset should be reported")
	}
}

func TestScanSeparatorFailuresAreSkipped(t *testing.T) {
	loader := &fakeLoader{totalMs: 3000, rate: 8000, signal: silenceThenTone(2600)}
	sep := &identitySeparator{err: errors.New("model crashed")}
	svc := newTestService(t, testScanConfig(), loader, sep)

	outcome, err := svc.ScanForOnset(context.Background(), "song.wav", 0)
	if err != nil {
		t.Fatalf("per-chunk failures must not fail the scan, got %v", err)
	}
	if outcome.Found {
		t.Error("no onset should survive when every chunk fails")
	}
	if outcome.ExpansionReached != testScanConfig().MaxExpansions {
		t.Errorf("expansion = %d, want %d", outcome.ExpansionReached, testScanConfig().MaxExpansions)
	}
}

func TestScanUnreadableSource(t *testing.T) {
	loader := &fakeLoader{durErr: errors.New("no such file")}
	svc := newTestService(t, testScanConfig(), loader, &identitySeparator{})

	_, err := svc.ScanForOnset(context.Background(), "missing.wav", 0)
	if !errors.Is(err, ErrSourceUnreadable) {
		t.Fatalf("err = %v, want ErrSourceUnreadable", err)
	}
}

func TestScanSecondPassServedFromCache(t *testing.T) {
	loader := &fakeLoader{totalMs: 3000, rate: 8000, signal: silenceThenTone(2600)}
	sep := &identitySeparator{}
	svc := newTestService(t, testScanConfig(), loader, sep)

	if _, err := svc.ScanForOnset(context.Background(), "song.wav", 0); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	callsAfterFirst := sep.calls

	if _, err := svc.ScanForOnset(context.Background(), "song.wav", 0); err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if sep.calls != callsAfterFirst {
		t.Errorf("separator calls grew from %d to %d; second scan should hit the cache", callsAfterFirst, sep.calls)
	}

	svc.ClearCache()
	if _, err := svc.ScanForOnset(context.Background(), "song.wav", 0); err != nil {
		t.Fatalf("third scan: %v", err)
	}
	if sep.calls == callsAfterFirst {
		t.Error("separator should run again after ClearCache")
	}
}

func TestScanInvalidConfigRejectedAtConstruction(t *testing.T) {
	cfg := testScanConfig()
	cfg.ChunkOverlapMs = cfg.ChunkDurationMs
	_, err := NewService(
		WithScanConfig(cfg),
		WithLoader(&fakeLoader{}),
		WithSeparator(&identitySeparator{}),
		WithLogger(nopLogger{}),
	)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestMethodName(t *testing.T) {
	svc := newTestService(t, testScanConfig(), &fakeLoader{totalMs: 1000, rate: 8000}, &identitySeparator{})
	if got := svc.MethodName(); got != "energy-snr" {
		t.Errorf("MethodName() = %q, want %q", got, "energy-snr")
	}
}
