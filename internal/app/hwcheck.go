// Copyright (c) 2026 Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

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

// RunHardwareCheck exercises every peripheral once and prints a pass/fail
// line per device. Meant for bench bring-up before deploying a head.
func RunHardwareCheck() error {
	cfg := config.Get()
	failures := 0
	report := func(name string, err error) {
		if err != nil {
			failures++
			log.Printf("hwcheck: FAIL %-12s %v", name, err)
			return
		}
		log.Printf("hwcheck: OK   %s", name)
	}

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	// Monitor: draw the setup screen so a pass is visible on the glass.
	oled, oledErr := NewOLEDDisplay(bus, cfg.FooterTag)
	report("monitor", oledErr)
	if oledErr == nil {
		oled.Render(latency.Frame{Screen: latency.ScreenSetup, MonitorOK: true})
	}

	// Light sensor: a handful of checked reads, values printed so gain
	// and wiring problems are obvious.
	sensor, sensorErr := hw.NewLightSensor(bus, cfg.ADCI2CAddr, cfg.ADCChannel)
	report("sensor", sensorErr)
	if sensorErr == nil {
		for i := 0; i < 5; i++ {
			reading, err := sensor.ReadChecked()
			if err != nil {
				report("sensor read", err)
				break
			}
			log.Printf("hwcheck:      sensor reading %d/5: %d", i+1, reading)
			time.Sleep(100 * time.Millisecond)
		}
		defer sensor.Halt()
	}

	// Click output: one visible pulse on the opto line.
	clicker, clickErr := hw.NewClicker(cfg.ClickPin)
	report("click pin", clickErr)
	if clickErr == nil {
		report("click pulse", clicker.Pulse(time.Duration(cfg.ClickPulseUS)*time.Microsecond))
		defer clicker.Close()
	}

	// HID injector, optional.
	if cfg.HIDSerialPort == "" {
		log.Printf("hwcheck: SKIP hid (no HID_SERIAL_PORT configured)")
	} else if clickErr == nil {
		if err := clicker.OpenHID(cfg.HIDSerialPort, cfg.HIDBaudRate); err != nil {
			report("hid", err)
		} else {
			report("hid", clicker.HIDClick())
		}
	}

	// Button: report the level now, then wait briefly for a press.
	button, buttonErr := hw.NewButton(cfg.ButtonPin, time.Duration(cfg.ButtonDebounceMS)*time.Millisecond)
	report("button pin", buttonErr)
	if buttonErr == nil {
		log.Printf("hwcheck:      press the button within 5s...")
		pressed := false
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if _, down := button.Holding(); down {
				pressed = true
				break
			}
			time.Sleep(5 * time.Millisecond)
		}
		if pressed {
			log.Printf("hwcheck: OK   button press")
		} else {
			failures++
			log.Printf("hwcheck: FAIL button press  no press seen in 5s")
		}
	}

	if cfg.MouseSensePin == "" {
		log.Printf("hwcheck: SKIP mouse sense (no MOUSE_SENSE_PIN configured)")
	} else {
		mouse, mouseErr := hw.NewMouseSense(cfg.MouseSensePin)
		report("mouse sense", mouseErr)
		if mouseErr == nil {
			log.Printf("hwcheck:      mouse present=%v", mouse.Present())
		}
	}

	if cfg.LEDPin == "" {
		log.Printf("hwcheck: SKIP led (no LED_PIN configured)")
	} else if led, ledErr := hw.NewStatusLED(cfg.LEDPin); ledErr != nil {
		report("led", ledErr)
	} else {
		_ = led.On()
		time.Sleep(500 * time.Millisecond)
		report("led", led.Off())
	}

	if failures > 0 {
		return fmt.Errorf("%d check(s) failed", failures)
	}
	log.Println("hwcheck: all checks passed")
	return nil
}
