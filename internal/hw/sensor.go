// Copyright (c) 2026 Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package hw implements the tester's hardware capabilities on periph.io:
// the ADS1115 light sensor, the GPIO click line, the serial HID injector
// and the debounced button.
package hw

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
)

// LightSensor reads the photodiode through an ADS1115. ReadIntensity is
// the hot path: it must never block on error handling, so a failed
// conversion returns the last good reading and bumps a counter the debug
// screen can surface.
type LightSensor struct {
	pin  analog.PinADC
	last uint16
	errs uint64
}

// NewLightSensor configures one ADS1115 single-ended channel for
// continuous fast conversions.
func NewLightSensor(bus i2c.Bus, addr uint16, channel int) (*LightSensor, error) {
	opts := ads1x15.DefaultOpts
	if addr != 0 {
		opts.I2cAddress = addr
	}

	adc, err := ads1x15.NewADS1115(bus, &opts)
	if err != nil {
		return nil, fmt.Errorf("light sensor: ADS1115 init: %w", err)
	}

	ch, err := adcChannel(channel)
	if err != nil {
		return nil, err
	}

	// 860 SPS is the chip maximum; quality is deliberately traded for
	// conversion speed on the timing path.
	pin, err := adc.PinForChannel(ch, 3300*physic.MilliVolt, 860*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		return nil, fmt.Errorf("light sensor: channel %d: %w", channel, err)
	}

	log.Printf("light sensor: ADS1115 ready on channel %d at 0x%02X", channel, opts.I2cAddress)
	return &LightSensor{pin: pin}, nil
}

func adcChannel(n int) (ads1x15.Channel, error) {
	switch n {
	case 0:
		return ads1x15.Channel0, nil
	case 1:
		return ads1x15.Channel1, nil
	case 2:
		return ads1x15.Channel2, nil
	case 3:
		return ads1x15.Channel3, nil
	}
	return 0, fmt.Errorf("light sensor: invalid ADC channel %d", n)
}

// ReadIntensity satisfies latency.LightSensor. The raw 16-bit conversion
// is scaled down to the 10-bit range all thresholds are expressed in.
func (s *LightSensor) ReadIntensity() uint16 {
	sample, err := s.pin.Read()
	if err != nil {
		s.errs++
		return s.last
	}
	raw := sample.Raw >> 5
	if raw < 0 {
		raw = 0
	}
	if raw > 1023 {
		raw = 1023
	}
	s.last = uint16(raw)
	return s.last
}

// ReadChecked is the boot-time read used by the self-test; unlike the hot
// path it propagates the error.
func (s *LightSensor) ReadChecked() (uint16, error) {
	sample, err := s.pin.Read()
	if err != nil {
		return 0, fmt.Errorf("light sensor read: %w", err)
	}
	raw := sample.Raw >> 5
	if raw < 0 {
		raw = 0
	}
	if raw > 1023 {
		raw = 1023
	}
	return uint16(raw), nil
}

// ReadErrors reports how many conversions failed since startup.
func (s *LightSensor) ReadErrors() uint64 { return s.errs }

// Halt releases the ADC channel.
func (s *LightSensor) Halt() error {
	return s.pin.Halt()
}
