// Copyright (c) 2026 Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package latency

import (
	"sync"
	"time"
)

// SimScreen is a virtual monitor plus sensor plus click target for running
// the full engine without hardware. A click toggles the screen after a
// configurable response lag; with FlashDuration set the screen falls back
// to dark on its own, which mimics the flash pattern Automatic mode
// measures against.
type SimScreen struct {
	Now func() time.Time
	// Lag is the simulated click-to-photon latency.
	Lag time.Duration
	// FlashDuration, when non-zero, returns the screen to dark that long
	// after it went white.
	FlashDuration time.Duration
	// DarkLevel and LightLevel are the emitted intensities.
	DarkLevel  uint16
	LightLevel uint16

	white    bool
	toggleAt time.Time
	pending  bool
	fallAt   time.Time
	falling  bool
	clicks   int
}

// NewSimScreen returns a dark screen with the given response lag.
func NewSimScreen(lag time.Duration) *SimScreen {
	return &SimScreen{
		Now:        time.Now,
		Lag:        lag,
		DarkLevel:  80,
		LightLevel: 900,
	}
}

// Click schedules the pending toggle. Repeated clicks before the toggle
// lands are coalesced, the way a real test pattern debounces.
func (s *SimScreen) Click() {
	s.clicks++
	if !s.pending {
		s.pending = true
		s.toggleAt = s.Now().Add(s.Lag)
	}
}

// Clicks reports how many stimuli the screen has absorbed.
func (s *SimScreen) Clicks() int { return s.clicks }

// ReadIntensity advances the simulation to now and reports the level.
// It satisfies LightSensor.
func (s *SimScreen) ReadIntensity() uint16 {
	now := s.Now()
	if s.pending && !now.Before(s.toggleAt) {
		s.pending = false
		s.white = !s.white
		if s.white && s.FlashDuration > 0 {
			s.falling = true
			s.fallAt = s.toggleAt.Add(s.FlashDuration)
		}
	}
	if s.falling && !now.Before(s.fallAt) {
		s.falling = false
		s.white = false
	}
	if s.white {
		return s.LightLevel
	}
	return s.DarkLevel
}

// SimClicker adapts a SimScreen to ClickSource. Pulse and HIDClick land
// as one click each; Set models a target that shows white while the click
// line is held, so both edges toggle.
type SimClicker struct {
	Screen *SimScreen
}

func (c SimClicker) Pulse(time.Duration) error { c.Screen.Click(); return nil }
func (c SimClicker) Set(active bool) error     { c.Screen.Click(); return nil }
func (c SimClicker) HIDClick() error           { c.Screen.Click(); return nil }

// ScriptInput replays canned hold events; the simulator feeds it from a
// stdin reader goroutine and tests enqueue releases directly, so the
// queue takes a lock.
type ScriptInput struct {
	mu     sync.Mutex
	events []HoldEvent
}

// Push queues a release of the given duration.
func (s *ScriptInput) Push(d time.Duration) {
	s.mu.Lock()
	s.events = append(s.events, HoldEvent{Duration: d})
	s.mu.Unlock()
}

func (s *ScriptInput) Poll() (HoldEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return HoldEvent{}, false
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, true
}

func (s *ScriptInput) Holding() (time.Duration, bool) { return 0, false }
