package vocalgap

import "math"

// ExpansionStrategy computes the sequence of search windows around an
// expected vocal position. Window 0 always starts at zero regardless of the
// expected position so that songs whose vocals begin immediately are caught
// on the first, cheapest pass; later windows are centered on the expected
// position with a radius that grows by a fixed increment.
//
// Stateless; safe to reuse with different expected positions.
type ExpansionStrategy struct {
	InitialRadiusMs   float64
	RadiusIncrementMs float64
	MaxExpansions     int
	TotalDurationMs   float64
}

// NewExpansionStrategy builds a strategy for one song of totalDurationMs.
func NewExpansionStrategy(cfg ScanConfig, totalDurationMs float64) ExpansionStrategy {
	return ExpansionStrategy{
		InitialRadiusMs:   cfg.InitialRadiusMs,
		RadiusIncrementMs: cfg.RadiusIncrementMs,
		MaxExpansions:     cfg.MaxExpansions,
		TotalDurationMs:   totalDurationMs,
	}
}

// Window returns the search window for expansion index.
func (e ExpansionStrategy) Window(expectedMs float64, index int) SearchWindow {
	radius := e.InitialRadiusMs + float64(index)*e.RadiusIncrementMs
	start := 0.0
	if index > 0 {
		start = math.Max(0, expectedMs-radius)
	}
	end := math.Min(e.TotalDurationMs, expectedMs+radius)
	if end < start {
		end = start
	}
	return SearchWindow{StartMs: start, EndMs: end, RadiusMs: radius, Expansion: index}
}

// Windows returns the full, fixed sequence of MaxExpansions+1 windows.
func (e ExpansionStrategy) Windows(expectedMs float64) []SearchWindow {
	out := make([]SearchWindow, 0, e.MaxExpansions+1)
	for i := 0; i <= e.MaxExpansions; i++ {
		out = append(out, e.Window(expectedMs, i))
	}
	return out
}

// ShouldContinue reports whether the scan should advance to the next
// expansion: it should not once a candidate was found or the expansion budget
// is spent.
func (e ExpansionStrategy) ShouldContinue(index int, found bool) bool {
	if found {
		return false
	}
	return index < e.MaxExpansions
}
