// Copyright (c) 2026 Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package latency

import (
	"testing"
	"time"
)

// virtualClock is a manually advanced time source shared by the scripted
// sensors below, so wait loops run instantly and deterministically.
type virtualClock struct {
	now time.Time
}

func newVirtualClock() *virtualClock {
	return &virtualClock{now: time.Unix(1000, 0)}
}

func (c *virtualClock) Now() time.Time { return c.now }

func (c *virtualClock) advance(d time.Duration) { c.now = c.now.Add(d) }

// scriptedSensor replays a fixed reading sequence. Every read after the
// first advances the clock by one poll interval, so the first reading is
// observed at the start instant and the Nth at N-1 intervals later. Once
// the script runs out the last reading repeats, which keeps timeout loops
// terminating.
type scriptedSensor struct {
	clock    *virtualClock
	interval time.Duration
	readings []uint16
	idx      int
}

func (s *scriptedSensor) Read() uint16 {
	if s.idx > 0 {
		s.clock.advance(s.interval)
	}
	i := s.idx
	if i >= len(s.readings) {
		i = len(s.readings) - 1
	}
	s.idx++
	return s.readings[i]
}

var testThresholds = Thresholds{Light: 100, Dark: 60}

func TestThresholdsClassify(t *testing.T) {
	cases := []struct {
		value uint16
		want  Level
	}{
		{0, LevelDark},
		{59, LevelDark},
		{60, LevelDark},
		{61, LevelIndeterminate},
		{99, LevelIndeterminate},
		{100, LevelLight},
		{1023, LevelLight},
	}
	for _, c := range cases {
		if got := testThresholds.Classify(c.value); got != c.want {
			t.Errorf("Classify(%d) = %v, want %v", c.value, got, c.want)
		}
	}
}

func TestThresholdsValid(t *testing.T) {
	cases := []struct {
		th   Thresholds
		want bool
	}{
		{Thresholds{Light: 600, Dark: 450}, true},
		{Thresholds{Light: 450, Dark: 450}, false},
		{Thresholds{Light: 100, Dark: 600}, false},
		{Thresholds{}, false},
	}
	for _, c := range cases {
		if got := c.th.Valid(); got != c.want {
			t.Errorf("Thresholds%+v.Valid() = %v, want %v", c.th, got, c.want)
		}
	}
}

// The canonical detection scenario: three dark readings then a light one,
// sampled one interval apart, must report exactly three intervals elapsed.
func TestWaitElapsedThreeIntervals(t *testing.T) {
	const interval = 100 * time.Microsecond
	clock := newVirtualClock()
	sensor := &scriptedSensor{
		clock:    clock,
		interval: interval,
		readings: []uint16{50, 50, 50, 120},
	}
	p := &Poller{Read: sensor.Read, Now: clock.Now, Th: testThresholds}

	elapsed, ok := p.Wait(LevelLight, time.Second)
	if !ok {
		t.Fatal("Wait reported timeout, want detection")
	}
	if want := 3 * interval; elapsed != want {
		t.Errorf("elapsed = %v, want %v", elapsed, want)
	}
}

func TestWaitTimeout(t *testing.T) {
	clock := newVirtualClock()
	sensor := &scriptedSensor{
		clock:    clock,
		interval: 100 * time.Microsecond,
		readings: []uint16{50},
	}
	p := &Poller{Read: sensor.Read, Now: clock.Now, Th: testThresholds}

	before := clock.Now()
	elapsed, ok := p.Wait(LevelLight, time.Millisecond)
	if ok {
		t.Fatal("Wait reported detection on an all-dark script")
	}
	if elapsed != 0 {
		t.Errorf("elapsed = %v on timeout, want 0", elapsed)
	}
	if got := clock.Now().Sub(before); got < time.Millisecond {
		t.Errorf("poll loop gave up after %v, before the %v timeout", got, time.Millisecond)
	}
}

// Readings in the hysteresis dead zone match neither target.
func TestWaitIgnoresIndeterminate(t *testing.T) {
	clock := newVirtualClock()
	sensor := &scriptedSensor{
		clock:    clock,
		interval: 100 * time.Microsecond,
		readings: []uint16{80, 80, 80, 120},
	}
	p := &Poller{Read: sensor.Read, Now: clock.Now, Th: testThresholds}

	if _, ok := p.Wait(LevelDark, 200*time.Microsecond); ok {
		t.Error("dead-zone readings classified as dark")
	}

	sensor.idx = 0
	if _, ok := p.Wait(LevelLight, time.Second); !ok {
		t.Error("light reading after dead-zone run not detected")
	}
}

func TestWaitFromChargesPreLoopTime(t *testing.T) {
	const interval = 100 * time.Microsecond
	clock := newVirtualClock()
	sensor := &scriptedSensor{
		clock:    clock,
		interval: interval,
		readings: []uint16{120},
	}
	p := &Poller{Read: sensor.Read, Now: clock.Now, Th: testThresholds}

	// The stimulus fired 2ms before the poll loop was entered; that gap is
	// part of the measured latency.
	start := clock.Now()
	clock.advance(2 * time.Millisecond)
	elapsed, ok := p.WaitFrom(start, LevelLight, time.Second)
	if !ok {
		t.Fatal("WaitFrom reported timeout")
	}
	if elapsed != 2*time.Millisecond {
		t.Errorf("elapsed = %v, want %v", elapsed, 2*time.Millisecond)
	}
}

func TestWaitStable(t *testing.T) {
	const interval = 100 * time.Microsecond
	cases := []struct {
		name     string
		readings []uint16
		stable   time.Duration
		timeout  time.Duration
		want     bool
	}{
		{
			name:     "continuous dark",
			readings: []uint16{50},
			stable:   300 * time.Microsecond,
			timeout:  time.Second,
			want:     true,
		},
		{
			name: "flicker resets the stable window",
			// Dark never holds for 3 intervals before the timeout.
			readings: []uint16{50, 50, 120, 50, 50, 120, 50, 50, 120},
			stable:   300 * time.Microsecond,
			timeout:  800 * time.Microsecond,
			want:     false,
		},
		{
			name:     "never dark",
			readings: []uint16{120},
			stable:   300 * time.Microsecond,
			timeout:  time.Millisecond,
			want:     false,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			clock := newVirtualClock()
			sensor := &scriptedSensor{clock: clock, interval: interval, readings: c.readings}
			p := &Poller{Read: sensor.Read, Now: clock.Now, Th: testThresholds}
			if got := p.WaitStable(LevelDark, c.stable, c.timeout); got != c.want {
				t.Errorf("WaitStable = %v, want %v", got, c.want)
			}
		})
	}
}

func TestWaitInterruptible(t *testing.T) {
	clock := newVirtualClock()
	sensor := &scriptedSensor{
		clock:    clock,
		interval: 100 * time.Microsecond,
		readings: []uint16{50},
	}
	p := &Poller{Read: sensor.Read, Now: clock.Now, Th: testThresholds}

	calls := 0
	abort := func() bool {
		calls++
		return calls >= 3
	}
	ok, aborted := p.WaitInterruptible(LevelLight, time.Second, abort)
	if ok || !aborted {
		t.Errorf("WaitInterruptible = (%v, %v), want (false, true)", ok, aborted)
	}

	// Without an abort the same script times out normally.
	sensor.idx = 0
	ok, aborted = p.WaitInterruptible(LevelLight, time.Millisecond, nil)
	if ok || aborted {
		t.Errorf("WaitInterruptible = (%v, %v), want (false, false)", ok, aborted)
	}
}
