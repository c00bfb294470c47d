package vocalgap

import (
	"errors"
	"testing"
)

func newTestIterator(t *testing.T, totalMs float64) *ChunkIterator {
	t.Helper()
	it, err := NewChunkIterator(testScanConfig(), totalMs)
	if err != nil {
		t.Fatalf("NewChunkIterator: %v", err)
	}
	return it
}

func TestChunkIteratorOverlappingBoundaries(t *testing.T) {
	it := newTestIterator(t, 3000)

	got := it.Generate(0, 1000)
	want := []ChunkBoundary{{0, 1000}, {900, 1900}}
	if len(got) != len(want) {
		t.Fatalf("got %d boundaries %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("boundary %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestChunkIteratorDedupAcrossCalls(t *testing.T) {
	it := newTestIterator(t, 3000)

	first := it.Generate(0, 1000)
	second := it.Generate(0, 2000)
	if len(second) != 1 || !second[0].Equal(ChunkBoundary{1800, 2800}) {
		t.Fatalf("second call = %v, want only [1800, 2800]", second)
	}
	if got := it.ChunksProcessed(); got != len(first)+len(second) {
		t.Errorf("ChunksProcessed() = %d, want %d", got, len(first)+len(second))
	}
}

func TestChunkIteratorResetAllowsReemission(t *testing.T) {
	it := newTestIterator(t, 3000)

	if got := it.Generate(0, 1000); len(got) == 0 {
		t.Fatal("expected boundaries before reset")
	}
	if got := it.Generate(0, 1000); len(got) != 0 {
		t.Fatalf("expected no boundaries without reset, got %v", got)
	}
	it.Reset()
	if got := it.Generate(0, 1000); len(got) != 2 {
		t.Fatalf("expected boundaries again after reset, got %v", got)
	}
}

func TestChunkIteratorClampsToDuration(t *testing.T) {
	it := newTestIterator(t, 2500)

	got := it.Generate(0, 3000)
	if len(got) == 0 {
		t.Fatal("expected boundaries")
	}
	last := got[len(got)-1]
	if last.EndMs != 2500 {
		t.Errorf("last boundary end = %.1fms, want clamped 2500ms", last.EndMs)
	}
	for _, b := range got {
		if b.StartMs >= 2500 {
			t.Errorf("boundary %+v starts past the end of the song", b)
		}
	}
}

func TestChunkIteratorRejectsBadInput(t *testing.T) {
	cfg := testScanConfig()
	cfg.ChunkOverlapMs = cfg.ChunkDurationMs
	if _, err := NewChunkIterator(cfg, 3000); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("overlap >= duration: err = %v, want ErrInvalidConfig", err)
	}
	if _, err := NewChunkIterator(testScanConfig(), 0); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("zero duration: err = %v, want ErrInvalidConfig", err)
	}
}
