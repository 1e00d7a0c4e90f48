// Copyright (c) 2026 Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package app wires the measurement engine to the real hardware, the
// simulator and the telemetry sinks.
package app

import (
	"fmt"
	"log"
	"time"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/latency_tester/internal/config"
	"github.com/relabs-tech/latency_tester/internal/hw"
	"github.com/relabs-tech/latency_tester/internal/latency"
)

// fanDisplay mirrors frames to several sinks (OLED plus web).
type fanDisplay []latency.Display

func (f fanDisplay) Render(fr latency.Frame) {
	for _, d := range f {
		d.Render(fr)
	}
}

// RunTester brings up the hardware, runs the boot self-test and hands
// control to the engine until a reset hold.
func RunTester() error {
	cfg := config.Get()

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	// The LED is the only indicator left if the display is dead.
	var led *hw.StatusLED
	if cfg.LEDPin != "" {
		if led, err = hw.NewStatusLED(cfg.LEDPin); err != nil {
			log.Printf("tester: %v", err)
			led = nil
		}
	}

	oled, err := NewOLEDDisplay(bus, cfg.FooterTag)
	if err != nil {
		// Monitor failure is fatal and cannot even be displayed.
		if led != nil {
			_ = led.On()
		}
		return fmt.Errorf("monitor self-test failed: %w", err)
	}

	sensor, sensorErr := hw.NewLightSensor(bus, cfg.ADCI2CAddr, cfg.ADCChannel)
	clicker, err := hw.NewClicker(cfg.ClickPin)
	if err != nil {
		return err
	}
	defer clicker.Close()
	button, err := hw.NewButton(cfg.ButtonPin, time.Duration(cfg.ButtonDebounceMS)*time.Millisecond)
	if err != nil {
		return err
	}

	var mouse *hw.MouseSense
	if cfg.MouseSensePin != "" {
		if mouse, err = hw.NewMouseSense(cfg.MouseSensePin); err != nil {
			log.Printf("tester: %v", err)
			mouse = nil
		}
	}

	// The HID injector is optional; Direct mode is rejected at start when
	// the port never opened.
	if cfg.HIDSerialPort != "" {
		if err := clicker.OpenHID(cfg.HIDSerialPort, cfg.HIDBaudRate); err != nil {
			log.Printf("tester: %v", err)
		}
	}

	// --- Boot self-test (the monitor already proved itself above) ---
	setup := latency.SetupStatus{MonitorOK: true}
	if sensorErr != nil {
		log.Printf("tester: sensor self-test failed: %v", sensorErr)
	} else if reading, err := sensor.ReadChecked(); err != nil {
		log.Printf("tester: sensor self-test read failed: %v", err)
	} else if cfg.SensorErrorMax > 0 && reading >= cfg.SensorErrorMax {
		log.Printf("tester: sensor self-test failed: boot reading %d >= %d", reading, cfg.SensorErrorMax)
	} else {
		setup.SensorOK = true
	}
	setup.MouseOK = mouse != nil && mouse.Present()
	log.Printf("tester: self-test monitor=%v sensor=%v mouse=%v",
		setup.MonitorOK, setup.SensorOK, setup.MouseOK)

	// --- Telemetry sinks (non-fatal: measuring works offline) ---
	var sink latency.LogSink = latency.NopSink{}
	if cfg.MQTTBroker != "" {
		if m, err := NewMQTTSink(cfg.MQTTBroker, cfg.MQTTClientIDTester, cfg.TopicSamples, cfg.TopicSessions); err != nil {
			log.Printf("tester: MQTT unavailable, samples not published: %v", err)
		} else {
			sink = m
			defer m.Close()
		}
	}

	display := fanDisplay{oled}
	if cfg.WebServerPort != 0 {
		stats := NewStatsServer()
		display = append(display, stats)
		go func() {
			if err := stats.ListenAndServe(cfg.WebServerPort); err != nil {
				log.Printf("tester: stats server: %v", err)
			}
		}()
	}

	var sensorPort latency.LightSensor = sensor
	if sensorErr != nil {
		// Keep the engine constructible so the failure is on screen.
		sensorPort = zeroSensor{}
	}

	engine := latency.New(cfg.Params(), latency.Deps{
		Sensor:    sensorPort,
		Clicker:   clicker,
		Input:     button,
		Display:   display,
		Sink:      sink,
		Mouse:     mouseMonitor(mouse),
		Preflight: preflight(clicker, mouse),
	}, setup)

	if !setup.SensorOK {
		if led != nil {
			_ = led.On()
		}
		engine.Halt("Sensor Error")
	}

	log.Println("tester: entering control loop")
	engine.Run()
	log.Println("tester: reset hold released, exiting for restart")
	return nil
}

// zeroSensor stands in when the ADC never came up; the engine is halted
// anyway.
type zeroSensor struct{}

func (zeroSensor) ReadIntensity() uint16 { return 0 }

func mouseMonitor(m *hw.MouseSense) latency.MouseMonitor {
	if m == nil {
		return nil
	}
	return m
}

// preflight rejects modes whose hardware precondition is unmet, bouncing
// the user back to the menu with a message instead of starting a session
// that can only time out.
func preflight(clicker *hw.Clicker, mouse *hw.MouseSense) func(latency.Mode) error {
	return func(m latency.Mode) error {
		switch m {
		case latency.ModeDirectApertureUE4:
			if !clicker.HIDReady() {
				return fmt.Errorf("No USB injector")
			}
		case latency.ModeAutomatic, latency.ModeAutoApertureUE4:
			if mouse == nil || !mouse.Present() {
				return fmt.Errorf("No mouse wired")
			}
		}
		return nil
	}
}
