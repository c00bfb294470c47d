package vocalgap

import (
	"fmt"
	"math"
)

// ChunkIterator produces non-redundant chunk boundaries inside search
// windows. The dedup set persists across Generate calls on purpose: search
// windows of successive expansions overlap, and a chunk already handed to the
// separation model must never be handed over again. Call Reset before an
// unrelated scan.
//
// Not safe for concurrent use.
type ChunkIterator struct {
	chunkDurationMs float64
	hopMs           float64
	totalDurationMs float64

	seen      map[chunkKey]struct{}
	processed int
}

// chunkKey compares boundaries on truncated integer milliseconds so float
// drift between expansions cannot defeat deduplication.
type chunkKey struct {
	startMs int64
	endMs   int64
}

func boundaryKey(b ChunkBoundary) chunkKey {
	return chunkKey{startMs: int64(b.StartMs), endMs: int64(b.EndMs)}
}

// NewChunkIterator builds an iterator for one song of totalDurationMs.
func NewChunkIterator(cfg ScanConfig, totalDurationMs float64) (*ChunkIterator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if totalDurationMs <= 0 {
		return nil, fmt.Errorf("%w: total duration must be positive, got %.1fms", ErrInvalidConfig, totalDurationMs)
	}
	return &ChunkIterator{
		chunkDurationMs: cfg.ChunkDurationMs,
		hopMs:           cfg.ChunkDurationMs - cfg.ChunkOverlapMs,
		totalDurationMs: totalDurationMs,
		seen:            make(map[chunkKey]struct{}),
	}, nil
}

// Generate returns the chunk boundaries covering [startMs, endMs) that have
// not been emitted by any previous Generate call since the last Reset.
// Boundaries are emitted in ascending time order and clamped to the song
// duration.
func (it *ChunkIterator) Generate(startMs, endMs float64) []ChunkBoundary {
	var out []ChunkBoundary
	for current := startMs; current < endMs && current < it.totalDurationMs; current += it.hopMs {
		b := ChunkBoundary{
			StartMs: current,
			EndMs:   math.Min(current+it.chunkDurationMs, it.totalDurationMs),
		}
		if b.EndMs <= b.StartMs {
			break
		}
		key := boundaryKey(b)
		if _, dup := it.seen[key]; dup {
			continue
		}
		it.seen[key] = struct{}{}
		it.processed++
		out = append(out, b)
	}
	return out
}

// Reset clears the dedup set so previously emitted boundaries can be
// generated again.
func (it *ChunkIterator) Reset() {
	it.seen = make(map[chunkKey]struct{})
}

// ChunksProcessed returns the running total of distinct boundaries emitted.
func (it *ChunkIterator) ChunksProcessed() int {
	return it.processed
}
