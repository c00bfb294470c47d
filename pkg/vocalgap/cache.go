package vocalgap

// DefaultCacheCapacity bounds memory for isolated-vocal buffers (each can be
// several MB) while still allowing detection-then-confidence reuse within one
// scan.
const DefaultCacheCapacity = 6

// VocalsCache is a small bounded store of isolated-vocal chunks keyed by
// (file, start, end). Eviction is oldest-inserted-first, by insertion order
// rather than last access. Entries are never mutated after insertion.
//
// A linear scan over a handful of entries beats any index at this capacity.
// The cache is used by a single scan at a time; concurrent users must
// serialize access externally.
type VocalsCache struct {
	capacity int
	entries  []vocalsEntry
}

type vocalsEntry struct {
	path    string
	startMs float64
	endMs   float64
	vocals  Waveform
}

// NewVocalsCache creates a cache holding at most capacity entries.
// Non-positive capacities fall back to DefaultCacheCapacity.
func NewVocalsCache(capacity int) *VocalsCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &VocalsCache{capacity: capacity}
}

// Get returns the first cached chunk of path whose range covers positionMs,
// together with the chunk's start and end.
func (c *VocalsCache) Get(path string, positionMs float64) (Waveform, float64, float64, bool) {
	for _, e := range c.entries {
		if e.path == path && e.startMs <= positionMs && positionMs < e.endMs {
			return e.vocals, e.startMs, e.endMs, true
		}
	}
	return Waveform{}, 0, 0, false
}

// GetCovering returns the first cached chunk of path whose range contains
// [startMs, endMs] entirely, together with the chunk's start.
func (c *VocalsCache) GetCovering(path string, startMs, endMs float64) (Waveform, float64, bool) {
	for _, e := range c.entries {
		if e.path == path && e.startMs <= startMs && endMs <= e.endMs {
			return e.vocals, e.startMs, true
		}
	}
	return Waveform{}, 0, false
}

// Put inserts an isolated-vocal chunk, evicting the oldest-inserted entry
// when the cache is full.
func (c *VocalsCache) Put(path string, startMs, endMs float64, vocals Waveform) {
	if len(c.entries) >= c.capacity {
		drop := len(c.entries) - c.capacity + 1
		c.entries = append(c.entries[:0], c.entries[drop:]...)
	}
	c.entries = append(c.entries, vocalsEntry{path: path, startMs: startMs, endMs: endMs, vocals: vocals})
}

// Clear empties the cache. Call between unrelated songs.
func (c *VocalsCache) Clear() {
	c.entries = nil
}

// Len returns the current number of cached chunks.
func (c *VocalsCache) Len() int {
	return len(c.entries)
}
