// Copyright (c) 2026 Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package latency

import "time"

// LightSensor is the fast intensity read on the critical timing path.
// Implementations must be non-blocking and bounded-latency; error handling
// belongs inside the implementation (return the last good reading), never
// in the poll loop.
type LightSensor interface {
	ReadIntensity() uint16
}

// ClickSource delivers the synthetic click stimulus.
type ClickSource interface {
	// Pulse asserts the GPIO click line for the given width, then releases it.
	Pulse(width time.Duration) error
	// Set drives the click line to a steady level. Automatic mode holds the
	// stimulus high for the whole detection window.
	Set(active bool) error
	// HIDClick emits one real USB HID mouse click through the injector.
	HIDClick() error
}

// HoldEvent describes one completed button interaction. The debounced
// button never produces overlapping events; classification is strictly by
// hold duration at release time.
type HoldEvent struct {
	Duration time.Duration
}

// HoldInput is the debounced button source. Poll is called once per outer
// loop pass, never inside the measurement poll, so a hold is only observed
// between measurement attempts.
type HoldInput interface {
	// Poll returns the release event completed since the last call, if any.
	Poll() (HoldEvent, bool)
	// Holding returns the duration of an in-progress press.
	Holding() (time.Duration, bool)
}

// MouseMonitor observes the receive-click line from a wired analog mouse.
type MouseMonitor interface {
	ClickActive() bool
}

// ScreenKind tells the renderer which layout to draw.
type ScreenKind int

const (
	ScreenSetup ScreenKind = iota
	ScreenMenu
	ScreenMeasure
	ScreenRunsComplete
	ScreenSync
	ScreenDebugSensor
	ScreenDebugMouse
	ScreenDebugPolling
	ScreenError
)

// ChannelStats pairs a channel with a snapshot of its statistics for
// rendering and export.
type ChannelStats struct {
	Channel Channel `json:"channel"`
	Stats   Stats   `json:"stats"`
}

// Frame is one complete description of what the display should show.
// The engine emits a fresh frame every outer loop pass.
type Frame struct {
	Screen    ScreenKind      `json:"screen"`
	ModeLabel string          `json:"mode"`
	Intensity uint16          `json:"intensity"`
	Menu      []string        `json:"menu,omitempty"`
	Selected  int             `json:"selected"`
	Channels  []ChannelStats  `json:"channels,omitempty"`
	Runs      uint64          `json:"runs"`
	Limit     RunLimit        `json:"limit"`
	Phase     TransitionPhase `json:"phase"`
	// HoldFrac is the in-progress hold as a fraction of the reset
	// threshold, zero when no hold is active.
	HoldFrac float64 `json:"hold_frac"`
	Status   string  `json:"status,omitempty"`
	// Setup screen fields.
	MonitorOK bool `json:"monitor_ok"`
	SensorOK  bool `json:"sensor_ok"`
	MouseOK   bool `json:"mouse_ok"`
	// Debug screen fields.
	MouseActive bool    `json:"mouse_active"`
	MouseEdges  uint64  `json:"mouse_edges"`
	PollsPerSec float64 `json:"polls_per_sec"`
}

// Display is the draw-and-present sink. Render must tolerate being called
// at loop rate; implementations throttle internally if presenting is slow.
type Display interface {
	Render(Frame)
}

// SessionMeta summarizes a completed or abandoned session for the log sink.
type SessionMeta struct {
	Mode     Mode           `json:"mode"`
	Limit    RunLimit       `json:"limit"`
	Started  time.Time      `json:"started"`
	Ended    time.Time      `json:"ended"`
	Runs     uint64         `json:"runs"`
	Channels []ChannelStats `json:"channels"`
}

// LogSink receives every successful sample and the end-of-session summary.
// Timeouts are never appended.
type LogSink interface {
	Append(ch Channel, sampleMs float32)
	Flush(meta SessionMeta)
}

// NopDisplay discards frames.
type NopDisplay struct{}

func (NopDisplay) Render(Frame) {}

// NopSink discards samples and summaries.
type NopSink struct{}

func (NopSink) Append(Channel, float32) {}
func (NopSink) Flush(SessionMeta)       {}
