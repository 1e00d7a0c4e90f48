// Copyright (c) 2026 Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package latency

import (
	"testing"
	"time"
)

func TestSimScreenClickLag(t *testing.T) {
	clock := newVirtualClock()
	s := NewSimScreen(5 * time.Millisecond)
	s.Now = clock.Now

	if got := s.ReadIntensity(); got != s.DarkLevel {
		t.Fatalf("initial level = %d, want dark", got)
	}

	s.Click()
	clock.advance(4 * time.Millisecond)
	if got := s.ReadIntensity(); got != s.DarkLevel {
		t.Errorf("level = %d before the lag elapsed, want dark", got)
	}
	clock.advance(time.Millisecond)
	if got := s.ReadIntensity(); got != s.LightLevel {
		t.Errorf("level = %d after the lag, want light", got)
	}

	// Second click toggles back down.
	s.Click()
	clock.advance(5 * time.Millisecond)
	if got := s.ReadIntensity(); got != s.DarkLevel {
		t.Errorf("level = %d after the second click, want dark", got)
	}
	if s.Clicks() != 2 {
		t.Errorf("clicks = %d, want 2", s.Clicks())
	}
}

func TestSimScreenCoalescesPendingClicks(t *testing.T) {
	clock := newVirtualClock()
	s := NewSimScreen(5 * time.Millisecond)
	s.Now = clock.Now

	s.Click()
	s.Click()
	s.Click()
	clock.advance(10 * time.Millisecond)
	if got := s.ReadIntensity(); got != s.LightLevel {
		t.Errorf("level = %d, want a single coalesced toggle to light", got)
	}
	if s.Clicks() != 3 {
		t.Errorf("clicks = %d, want all 3 counted", s.Clicks())
	}
}

func TestSimScreenFlashFallsBack(t *testing.T) {
	clock := newVirtualClock()
	s := NewSimScreen(5 * time.Millisecond)
	s.Now = clock.Now
	s.FlashDuration = 20 * time.Millisecond

	s.Click()
	clock.advance(5 * time.Millisecond)
	if got := s.ReadIntensity(); got != s.LightLevel {
		t.Fatalf("level = %d after the lag, want light", got)
	}
	clock.advance(19 * time.Millisecond)
	if got := s.ReadIntensity(); got != s.LightLevel {
		t.Errorf("level = %d before the flash ended, want light", got)
	}
	clock.advance(time.Millisecond)
	if got := s.ReadIntensity(); got != s.DarkLevel {
		t.Errorf("level = %d after the flash, want dark", got)
	}
}

func TestScriptInputQueue(t *testing.T) {
	var in ScriptInput
	if _, ok := in.Poll(); ok {
		t.Fatal("empty queue returned an event")
	}
	in.Push(100 * time.Millisecond)
	in.Push(3 * time.Second)

	ev, ok := in.Poll()
	if !ok || ev.Duration != 100*time.Millisecond {
		t.Errorf("first event = (%v, %v)", ev, ok)
	}
	ev, ok = in.Poll()
	if !ok || ev.Duration != 3*time.Second {
		t.Errorf("second event = (%v, %v)", ev, ok)
	}
	if _, ok := in.Poll(); ok {
		t.Error("drained queue returned an event")
	}
	if d, holding := in.Holding(); holding || d != 0 {
		t.Errorf("Holding = (%v, %v), want idle", d, holding)
	}
}

func TestSimClickerRoutesToScreen(t *testing.T) {
	clock := newVirtualClock()
	s := NewSimScreen(time.Millisecond)
	s.Now = clock.Now
	c := SimClicker{Screen: s}

	if err := c.Pulse(100 * time.Microsecond); err != nil {
		t.Fatal(err)
	}
	if err := c.HIDClick(); err != nil {
		t.Fatal(err)
	}
	if err := c.Set(true); err != nil {
		t.Fatal(err)
	}
	if err := c.Set(false); err != nil {
		t.Fatal(err)
	}
	if s.Clicks() != 4 {
		t.Errorf("clicks = %d, want 4 (both Set edges toggle)", s.Clicks())
	}
}
