// Copyright (c) 2026 Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package latency

import "time"

// Syncer runs the smart-sync protocol: force the screen into a known dark
// state before a batch of alternating aperture measurements. Without it a
// missed click or a startup race would leave the black/white bookkeeping
// permanently inverted.
//
// The protocol spans several seconds, so every wait checks Abort; a long
// button hold unwinds it immediately with SyncAborted.
type Syncer struct {
	Poller *Poller
	// Fire sends one toggle stimulus to the target application.
	Fire func() error
	// Sleep is injected for tests; real callers pass time.Sleep.
	Sleep func(time.Duration)
	// Abort reports a concurrent long button hold.
	Abort func() bool

	SettleDelay   time.Duration
	VerifyTimeout time.Duration
}

// Run executes one sync attempt. Failed is retryable by the caller;
// retries are not capped.
func (s *Syncer) Run() SyncResult {
	// A first "focus" click makes sure the test application has input
	// focus before any reading is trusted.
	if err := s.Fire(); err != nil {
		return SyncFailed
	}
	if s.sleepAborted(s.SettleDelay) {
		return SyncAborted
	}

	switch s.Poller.Th.Classify(s.Poller.Read()) {
	case LevelDark:
		// Already converged, no extra click.
		return SyncSuccess
	case LevelIndeterminate:
		// Ambiguous transitional state, let the caller retry whole-hog.
		return SyncFailed
	}

	// White: one more toggle drives it toward dark, then verify.
	if err := s.Fire(); err != nil {
		return SyncFailed
	}
	ok, aborted := s.Poller.WaitInterruptible(LevelDark, s.VerifyTimeout, s.Abort)
	if aborted {
		return SyncAborted
	}
	if !ok {
		return SyncFailed
	}
	return SyncSuccess
}

// sleepAborted sleeps in short slices so a hold can interrupt the settle
// delay; returns true if aborted.
func (s *Syncer) sleepAborted(d time.Duration) bool {
	const slice = 20 * time.Millisecond
	for rem := d; rem > 0; rem -= slice {
		if s.Abort != nil && s.Abort() {
			return true
		}
		if rem < slice {
			s.Sleep(rem)
		} else {
			s.Sleep(slice)
		}
	}
	return s.Abort != nil && s.Abort()
}
