// Copyright (c) 2026 Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package latency

import "math"

// Stats is the rolling per-channel latency summary. Min starts at +Inf so
// the first sample always takes it; Max starts at zero. Only successful
// measurements reach Update; timeouts are dropped by the caller.
type Stats struct {
	RunCount uint64  `json:"runs"`
	LastMs   float32 `json:"last_ms"`
	AvgMs    float32 `json:"avg_ms"`
	MinMs    float32 `json:"min_ms"`
	MaxMs    float32 `json:"max_ms"`
}

// NewStats returns a zeroed summary with the +Inf min sentinel.
func NewStats() Stats {
	return Stats{MinMs: float32(math.Inf(1))}
}

// Update folds one successful sample into the summary using an incremental
// mean, which stays numerically stable over thousands of samples where a
// naive running sum would lose precision.
func (s *Stats) Update(ms float32) {
	s.RunCount++
	s.AvgMs += (ms - s.AvgMs) / float32(s.RunCount)
	if ms < s.MinMs {
		s.MinMs = ms
	}
	if ms > s.MaxMs {
		s.MaxMs = ms
	}
	s.LastMs = ms
}

// Empty reports whether the channel has recorded any sample yet.
func (s *Stats) Empty() bool {
	return s.RunCount == 0
}
