// Copyright (c) 2026 Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package latency

import "time"

// Level is the classified screen state seen by the light sensor.
type Level int

const (
	LevelDark Level = iota
	LevelLight
	// LevelIndeterminate is the hysteresis dead zone between the dark and
	// light thresholds; it counts as neither.
	LevelIndeterminate
)

func (l Level) String() string {
	switch l {
	case LevelDark:
		return "dark"
	case LevelLight:
		return "light"
	}
	return "indeterminate"
}

// Thresholds is the asymmetric hysteresis band. Light must stay strictly
// above Dark; readings in between classify as indeterminate, which rejects
// sensor noise around a single crossing point.
type Thresholds struct {
	Light uint16
	Dark  uint16
}

// Valid reports whether the band is well formed.
func (t Thresholds) Valid() bool {
	return t.Light > t.Dark
}

// Classify maps a raw intensity onto the hysteresis band.
func (t Thresholds) Classify(v uint16) Level {
	switch {
	case v >= t.Light:
		return LevelLight
	case v <= t.Dark:
		return LevelDark
	default:
		return LevelIndeterminate
	}
}

// Poller is the busy-poll edge detector. Read and Now are injected so
// tests run it against a scripted sensor and a virtual clock. The wait
// loops insert no delays: the poll itself is the critical timing path and
// any sleep would pollute the measured latency.
type Poller struct {
	Read func() uint16
	Now  func() time.Time
	Th   Thresholds
}

// Wait busy-polls until the sensor reaches target or timeout elapses.
// It returns the elapsed time and whether the edge was seen. Timeout is an
// ordinary result, not an error.
func (p *Poller) Wait(target Level, timeout time.Duration) (time.Duration, bool) {
	return p.WaitFrom(p.Now(), target, timeout)
}

// WaitFrom is Wait with a caller-supplied start instant, so the measured
// window opens exactly when the stimulus was issued rather than when the
// poll loop gets entered.
func (p *Poller) WaitFrom(start time.Time, target Level, timeout time.Duration) (time.Duration, bool) {
	for {
		if p.Th.Classify(p.Read()) == target {
			return p.Now().Sub(start), true
		}
		if p.Now().Sub(start) >= timeout {
			return 0, false
		}
	}
}

// WaitStable polls until the sensor has held target continuously for the
// stable duration. Automatic mode uses this to require a continuous-dark
// baseline instead of a single instantaneous reading, which rejects
// display flicker between runs.
func (p *Poller) WaitStable(target Level, stable, timeout time.Duration) bool {
	start := p.Now()
	var since time.Time
	haveRun := false
	for {
		now := p.Now()
		if p.Th.Classify(p.Read()) == target {
			if !haveRun {
				since = now
				haveRun = true
			} else if now.Sub(since) >= stable {
				return true
			}
		} else {
			haveRun = false
		}
		if now.Sub(start) >= timeout {
			return false
		}
	}
}

// WaitInterruptible is Wait plus an abort check per iteration. It is used
// only outside the timed window (sync and baseline waits), where the extra
// branch costs nothing that is being measured. The second result is true
// when the wait ended because abort fired.
func (p *Poller) WaitInterruptible(target Level, timeout time.Duration, abort func() bool) (ok, aborted bool) {
	start := p.Now()
	for {
		if p.Th.Classify(p.Read()) == target {
			return true, false
		}
		if abort != nil && abort() {
			return false, true
		}
		if p.Now().Sub(start) >= timeout {
			return false, false
		}
	}
}
