// Copyright (c) 2026 Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package hw

import (
	"fmt"
	"log"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"github.com/relabs-tech/latency_tester/internal/latency"
)

// Button is the debounced, active-low push button. It is sampled from the
// engine's outer loop only; the debounce is time-based (a level change
// must persist for the debounce interval before it counts), so a single
// Poll per loop pass is enough.
type Button struct {
	pin      gpio.PinIO
	debounce time.Duration
	now      func() time.Time

	raw       bool
	rawSince  time.Time
	stable    bool
	pressedAt time.Time
	pending   []latency.HoldEvent
}

// NewButton claims the button pin with the internal pull-up.
func NewButton(pinName string, debounce time.Duration) (*Button, error) {
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("button: pin %q not found", pinName)
	}
	if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("button: init %s: %w", pinName, err)
	}
	if debounce <= 0 {
		debounce = 25 * time.Millisecond
	}
	log.Printf("button: input on %s, %s debounce", pinName, debounce)
	return &Button{pin: pin, debounce: debounce, now: time.Now}, nil
}

// sample advances the debounce state machine by one reading.
func (b *Button) sample() {
	pressed := b.pin.Read() == gpio.Low
	now := b.now()

	if pressed != b.raw {
		b.raw = pressed
		b.rawSince = now
	}
	if pressed == b.stable {
		return
	}
	if now.Sub(b.rawSince) < b.debounce {
		return
	}

	b.stable = pressed
	if pressed {
		// The hold is measured from first contact, not from when the
		// debounce settled.
		b.pressedAt = b.rawSince
	} else {
		b.pending = append(b.pending, latency.HoldEvent{Duration: b.rawSince.Sub(b.pressedAt)})
	}
}

// Poll returns the completed release event, if any. Satisfies
// latency.HoldInput.
func (b *Button) Poll() (latency.HoldEvent, bool) {
	b.sample()
	if len(b.pending) == 0 {
		return latency.HoldEvent{}, false
	}
	ev := b.pending[0]
	b.pending = b.pending[1:]
	return ev, true
}

// Holding reports the duration of an in-progress press.
func (b *Button) Holding() (time.Duration, bool) {
	b.sample()
	if !b.stable {
		return 0, false
	}
	return b.now().Sub(b.pressedAt), true
}

// MouseSense watches the receive-click line from the wired mouse. A high
// level means the mouse button circuit is conducting.
type MouseSense struct {
	pin gpio.PinIO
}

// NewMouseSense claims the sense pin as a plain input.
func NewMouseSense(pinName string) (*MouseSense, error) {
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("mouse sense: pin %q not found", pinName)
	}
	if err := pin.In(gpio.PullDown, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("mouse sense: init %s: %w", pinName, err)
	}
	return &MouseSense{pin: pin}, nil
}

// ClickActive satisfies latency.MouseMonitor.
func (m *MouseSense) ClickActive() bool {
	return m.pin.Read() == gpio.High
}

// Present is the boot-time presence check: the idle line sits high when a
// powered mouse is wired in.
func (m *MouseSense) Present() bool {
	return m.pin.Read() == gpio.High
}

// StatusLED is the fatal-error indicator.
type StatusLED struct {
	pin gpio.PinIO
}

// NewStatusLED claims the LED pin, off.
func NewStatusLED(pinName string) (*StatusLED, error) {
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("status led: pin %q not found", pinName)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("status led: init %s: %w", pinName, err)
	}
	return &StatusLED{pin: pin}, nil
}

func (l *StatusLED) On() error  { return l.pin.Out(gpio.High) }
func (l *StatusLED) Off() error { return l.pin.Out(gpio.Low) }
