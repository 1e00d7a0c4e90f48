// Copyright (c) 2026 Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package latency

import (
	"errors"
	"testing"
	"time"
)

func newTestSyncer(clock *virtualClock, sensor *scriptedSensor, fires *int) *Syncer {
	return &Syncer{
		Poller: &Poller{Read: sensor.Read, Now: clock.Now, Th: testThresholds},
		Fire: func() error {
			*fires++
			return nil
		},
		Sleep:         clock.advance,
		SettleDelay:   500 * time.Millisecond,
		VerifyTimeout: time.Millisecond,
	}
}

// Screen already dark after the focus click: success with exactly one
// stimulus. A second click here would flip the screen white and invert the
// whole session.
func TestSyncAlreadyDark(t *testing.T) {
	clock := newVirtualClock()
	sensor := &scriptedSensor{clock: clock, interval: 100 * time.Microsecond, readings: []uint16{50}}
	fires := 0
	s := newTestSyncer(clock, sensor, &fires)

	if got := s.Run(); got != SyncSuccess {
		t.Fatalf("Run() = %v, want success", got)
	}
	if fires != 1 {
		t.Errorf("fired %d stimuli, want exactly 1 (focus click only)", fires)
	}
}

// Screen white after the focus click: exactly one corrective toggle, then
// the dark state must be verified.
func TestSyncWhiteToDark(t *testing.T) {
	clock := newVirtualClock()
	sensor := &scriptedSensor{clock: clock, interval: 100 * time.Microsecond, readings: []uint16{120, 50}}
	fires := 0
	s := newTestSyncer(clock, sensor, &fires)

	if got := s.Run(); got != SyncSuccess {
		t.Fatalf("Run() = %v, want success", got)
	}
	if fires != 2 {
		t.Errorf("fired %d stimuli, want exactly 2 (focus + one toggle)", fires)
	}
}

func TestSyncIndeterminateFails(t *testing.T) {
	clock := newVirtualClock()
	sensor := &scriptedSensor{clock: clock, interval: 100 * time.Microsecond, readings: []uint16{80}}
	fires := 0
	s := newTestSyncer(clock, sensor, &fires)

	if got := s.Run(); got != SyncFailed {
		t.Fatalf("Run() = %v, want failed", got)
	}
	if fires != 1 {
		t.Errorf("fired %d stimuli on an ambiguous reading, want 1", fires)
	}
}

func TestSyncVerifyTimeoutFails(t *testing.T) {
	clock := newVirtualClock()
	sensor := &scriptedSensor{clock: clock, interval: 100 * time.Microsecond, readings: []uint16{120}}
	fires := 0
	s := newTestSyncer(clock, sensor, &fires)

	if got := s.Run(); got != SyncFailed {
		t.Fatalf("Run() = %v, want failed when the screen never darkens", got)
	}
	if fires != 2 {
		t.Errorf("fired %d stimuli, want 2", fires)
	}
}

func TestSyncFireErrorFails(t *testing.T) {
	clock := newVirtualClock()
	sensor := &scriptedSensor{clock: clock, interval: 100 * time.Microsecond, readings: []uint16{50}}
	s := &Syncer{
		Poller:        &Poller{Read: sensor.Read, Now: clock.Now, Th: testThresholds},
		Fire:          func() error { return errors.New("injector offline") },
		Sleep:         clock.advance,
		SettleDelay:   500 * time.Millisecond,
		VerifyTimeout: time.Millisecond,
	}
	if got := s.Run(); got != SyncFailed {
		t.Errorf("Run() = %v, want failed", got)
	}
}

func TestSyncAbortDuringSettle(t *testing.T) {
	clock := newVirtualClock()
	sensor := &scriptedSensor{clock: clock, interval: 100 * time.Microsecond, readings: []uint16{50}}
	fires := 0
	s := newTestSyncer(clock, sensor, &fires)
	s.Abort = func() bool { return true }

	if got := s.Run(); got != SyncAborted {
		t.Fatalf("Run() = %v, want aborted", got)
	}
	if fires != 1 {
		t.Errorf("fired %d stimuli after the abort, want 1", fires)
	}
}

func TestSyncAbortDuringVerify(t *testing.T) {
	clock := newVirtualClock()
	sensor := &scriptedSensor{clock: clock, interval: 100 * time.Microsecond, readings: []uint16{120}}
	fires := 0
	s := newTestSyncer(clock, sensor, &fires)
	s.Abort = func() bool { return fires == 2 }

	if got := s.Run(); got != SyncAborted {
		t.Fatalf("Run() = %v, want aborted", got)
	}
}
