// Copyright (c) 2026 Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package latency implements the measurement core of the click-to-photon
// tester: the mode state machine, the smart-sync protocol, the busy-poll
// edge detector, rolling statistics and the button-hold UI plumbing.
// Hardware access is injected through the interfaces in ports.go so the
// whole engine runs against stubs in tests and in the simulator.
package latency

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Mode selects the stimulus mechanism and the active statistics channels.
// It is chosen once per session from the menu and never changes mid-run.
type Mode int

const (
	ModeAutomatic Mode = iota
	ModeAutoApertureUE4
	ModeDirectApertureUE4
	ModeDebugMouse
	ModeDebugLightSensor
	ModeDebugPollingTest
)

func (m Mode) String() string {
	switch m {
	case ModeAutomatic:
		return "Automatic"
	case ModeAutoApertureUE4:
		return "Auto UE4"
	case ModeDirectApertureUE4:
		return "Direct UE4"
	case ModeDebugMouse:
		return "Debug Mouse"
	case ModeDebugLightSensor:
		return "Debug Sensor"
	case ModeDebugPollingTest:
		return "Polling Test"
	}
	return "Unknown"
}

// IsAperture reports whether the mode alternates black/white transitions
// against an external toggle test pattern.
func (m Mode) IsAperture() bool {
	return m == ModeAutoApertureUE4 || m == ModeDirectApertureUE4
}

// RunLimit bounds the number of successful measurements in a session.
// Zero means unlimited.
type RunLimit int

// RunLimits is the fixed menu of selectable limits.
var RunLimits = []RunLimit{10, 25, 50, 100, 500, 0}

func (r RunLimit) String() string {
	if r == 0 {
		return "Unlimited"
	}
	return strconv.Itoa(int(r))
}

// Reached reports whether runs successful measurements exhaust the limit.
func (r RunLimit) Reached(runs uint64) bool {
	return r > 0 && runs >= uint64(r)
}

// TransitionPhase is the expected next transition in the aperture modes.
// It flips only on a successful measurement; a timeout leaves it alone so
// the black/white bookkeeping cannot drift out of step with the screen.
type TransitionPhase int

const (
	ExpectingWhite TransitionPhase = iota
	ExpectingBlack
)

func (p TransitionPhase) String() string {
	if p == ExpectingBlack {
		return "W>B"
	}
	return "B>W"
}

// Channel identifies an independent statistics stream.
type Channel int

const (
	ChannelAutomatic Channel = iota
	ChannelAutoBtoW
	ChannelAutoWtoB
	ChannelDirectBtoW
	ChannelDirectWtoB
	channelCount
)

func (c Channel) String() string {
	switch c {
	case ChannelAutomatic:
		return "auto"
	case ChannelAutoBtoW:
		return "auto_b2w"
	case ChannelAutoWtoB:
		return "auto_w2b"
	case ChannelDirectBtoW:
		return "direct_b2w"
	case ChannelDirectWtoB:
		return "direct_w2b"
	}
	return "unknown"
}

// MarshalJSON exports the channel as its wire label so sinks and the web
// feed stay readable.
func (c Channel) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// UnmarshalJSON accepts the wire label produced by MarshalJSON, so session
// summaries round-trip through MQTT subscribers.
func (c *Channel) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for ch := ChannelAutomatic; ch < channelCount; ch++ {
		if ch.String() == s {
			*c = ch
			return nil
		}
	}
	return fmt.Errorf("unknown channel %q", s)
}

// MarshalJSON exports the mode by name.
func (m Mode) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts the name produced by MarshalJSON.
func (m *Mode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for cand := ModeAutomatic; cand <= ModeDebugPollingTest; cand++ {
		if cand.String() == s {
			*m = cand
			return nil
		}
	}
	return fmt.Errorf("unknown mode %q", s)
}

// channelFor maps a mode and phase to the statistics channel the sample
// belongs to. The phase argument is ignored for Automatic.
func channelFor(m Mode, p TransitionPhase) Channel {
	switch m {
	case ModeAutoApertureUE4:
		if p == ExpectingBlack {
			return ChannelAutoWtoB
		}
		return ChannelAutoBtoW
	case ModeDirectApertureUE4:
		if p == ExpectingBlack {
			return ChannelDirectWtoB
		}
		return ChannelDirectBtoW
	default:
		return ChannelAutomatic
	}
}

// SyncResult is the terminal outcome of one smart-sync attempt.
type SyncResult int

const (
	SyncSuccess SyncResult = iota
	SyncFailed
	SyncAborted
)

func (r SyncResult) String() string {
	switch r {
	case SyncSuccess:
		return "success"
	case SyncFailed:
		return "failed"
	case SyncAborted:
		return "aborted"
	}
	return "unknown"
}
