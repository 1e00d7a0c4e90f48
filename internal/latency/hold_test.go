// Copyright (c) 2026 Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package latency

import (
	"testing"
	"time"
)

var testHolds = HoldThresholds{
	Indicate: 300 * time.Millisecond,
	Select:   2 * time.Second,
	Debug:    5 * time.Second,
	Reset:    8 * time.Second,
}

// A long release also exceeds every shorter threshold; classification must
// resolve to the longest action it qualifies for.
func TestHoldClassify(t *testing.T) {
	cases := []struct {
		duration time.Duration
		want     HoldAction
	}{
		{50 * time.Millisecond, ActionShortClick},
		{299 * time.Millisecond, ActionShortClick},
		{300 * time.Millisecond, ActionNone},
		{1999 * time.Millisecond, ActionNone},
		{2 * time.Second, ActionSelect},
		{4999 * time.Millisecond, ActionSelect},
		{5 * time.Second, ActionDebug},
		{7999 * time.Millisecond, ActionDebug},
		{8 * time.Second, ActionReset},
		{30 * time.Second, ActionReset},
	}
	for _, c := range cases {
		if got := testHolds.Classify(c.duration); got != c.want {
			t.Errorf("Classify(%v) = %v, want %v", c.duration, got, c.want)
		}
	}
}

func TestHoldThresholdsValid(t *testing.T) {
	cases := []struct {
		name string
		th   HoldThresholds
		want bool
	}{
		{"nested", testHolds, true},
		{"zero indicate", HoldThresholds{0, 2 * time.Second, 5 * time.Second, 8 * time.Second}, false},
		{"select below indicate", HoldThresholds{3 * time.Second, 2 * time.Second, 5 * time.Second, 8 * time.Second}, false},
		{"debug equals select", HoldThresholds{300 * time.Millisecond, 2 * time.Second, 2 * time.Second, 8 * time.Second}, false},
		{"reset below debug", HoldThresholds{300 * time.Millisecond, 2 * time.Second, 5 * time.Second, 4 * time.Second}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.th.Valid(); got != c.want {
				t.Errorf("Valid() = %v, want %v", got, c.want)
			}
		})
	}
}
