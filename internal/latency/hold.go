// Copyright (c) 2026 Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package latency

import "time"

// HoldAction is the classified meaning of a button release.
type HoldAction int

const (
	// ActionNone: released after the hold indicator began but before any
	// action threshold: abort back to the pre-hold state.
	ActionNone HoldAction = iota
	// ActionShortClick: released before the hold indicator; a menu advance.
	ActionShortClick
	ActionSelect
	ActionDebug
	ActionReset
)

func (a HoldAction) String() string {
	switch a {
	case ActionShortClick:
		return "click"
	case ActionSelect:
		return "select"
	case ActionDebug:
		return "debug"
	case ActionReset:
		return "reset"
	}
	return "none"
}

// HoldThresholds are the nested duration boundaries. Reset > Debug >
// Select > Indicate must hold; a release long enough for Reset also
// exceeds the lower thresholds, so classification checks the longest
// action first.
type HoldThresholds struct {
	Indicate time.Duration
	Select   time.Duration
	Debug    time.Duration
	Reset    time.Duration
}

// Valid reports whether the thresholds are strictly nested.
func (t HoldThresholds) Valid() bool {
	return t.Indicate > 0 && t.Select > t.Indicate && t.Debug > t.Select && t.Reset > t.Debug
}

// Classify maps a release duration onto an action, longest first.
func (t HoldThresholds) Classify(d time.Duration) HoldAction {
	switch {
	case d >= t.Reset:
		return ActionReset
	case d >= t.Debug:
		return ActionDebug
	case d >= t.Select:
		return ActionSelect
	case d >= t.Indicate:
		return ActionNone
	default:
		return ActionShortClick
	}
}
