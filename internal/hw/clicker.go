// Copyright (c) 2026 Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package hw

import (
	"fmt"
	"io"
	"log"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// Clicker drives the two stimulus paths: the GPIO line wired into the
// mouse button circuit, and a serial-attached USB HID injector that emits
// a real mouse click on the host when commanded.
type Clicker struct {
	pin gpio.PinIO
	hid io.ReadWriteCloser
}

// NewClicker claims the click pin and drives it low.
func NewClicker(pinName string) (*Clicker, error) {
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("clicker: pin %q not found", pinName)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("clicker: init %s low: %w", pinName, err)
	}
	log.Printf("clicker: click line on %s", pinName)
	return &Clicker{pin: pin}, nil
}

// OpenHID connects the serial HID injector. Optional: the GPIO modes work
// without it, and Direct mode is rejected at start when it is absent.
func (c *Clicker) OpenHID(port string, baud int) error {
	if port == "" {
		return fmt.Errorf("clicker: no HID serial port configured")
	}
	p, err := serial.Open(serial.OpenOptions{
		PortName:        port,
		BaudRate:        uint(baud),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	})
	if err != nil {
		return fmt.Errorf("clicker: open HID injector %s: %w", port, err)
	}
	c.hid = p
	log.Printf("clicker: HID injector on %s at %d baud", port, baud)
	return nil
}

// HIDReady reports whether the injector port is open.
func (c *Clicker) HIDReady() bool { return c.hid != nil }

// Pulse asserts the click line for width. The width is held with a busy
// wait: a timer sleep has millisecond-class jitter on Linux and would
// stretch a 100µs pulse beyond recognition.
func (c *Clicker) Pulse(width time.Duration) error {
	if err := c.pin.Out(gpio.High); err != nil {
		return err
	}
	for start := time.Now(); time.Since(start) < width; {
	}
	return c.pin.Out(gpio.Low)
}

// Set drives the click line to a steady level.
func (c *Clicker) Set(active bool) error {
	if active {
		return c.pin.Out(gpio.High)
	}
	return c.pin.Out(gpio.Low)
}

// HIDClick commands one click from the injector.
func (c *Clicker) HIDClick() error {
	if c.hid == nil {
		return fmt.Errorf("clicker: HID injector not connected")
	}
	if _, err := c.hid.Write([]byte{'C'}); err != nil {
		return fmt.Errorf("clicker: HID write: %w", err)
	}
	return nil
}

// Close releases the click line and the injector port.
func (c *Clicker) Close() error {
	_ = c.pin.Out(gpio.Low)
	if c.hid != nil {
		return c.hid.Close()
	}
	return nil
}
