// Copyright (c) 2026 Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/relabs-tech/latency_tester/internal/latency"
)

// consoleDisplay prints engine frames to stdout, throttled, so the
// simulator is watchable without hardware.
type consoleDisplay struct {
	last     time.Time
	lastLine string
}

func (c *consoleDisplay) Render(f latency.Frame) {
	line := frameLine(f)
	if line == c.lastLine && time.Since(c.last) < 500*time.Millisecond {
		return
	}
	c.last = time.Now()
	c.lastLine = line
	fmt.Println(line)
}

func frameLine(f latency.Frame) string {
	switch f.Screen {
	case latency.ScreenSetup:
		return fmt.Sprintf("[SETUP] monitor=%v sensor=%v mouse=%v (s=continue)",
			f.MonitorOK, f.SensorOK, f.MouseOK)
	case latency.ScreenMenu:
		var b strings.Builder
		fmt.Fprintf(&b, "[MENU ] %s:", f.ModeLabel)
		for i, opt := range f.Menu {
			if i == f.Selected {
				fmt.Fprintf(&b, " >%s<", opt)
			} else {
				fmt.Fprintf(&b, "  %s", opt)
			}
		}
		if f.Status != "" {
			fmt.Fprintf(&b, "  (%s)", f.Status)
		}
		return b.String()
	case latency.ScreenSync:
		return fmt.Sprintf("[SYNC ] %s: %s", f.ModeLabel, f.Status)
	case latency.ScreenMeasure, latency.ScreenRunsComplete:
		var b strings.Builder
		fmt.Fprintf(&b, "[MEAS ] %s L=%d", f.ModeLabel, f.Intensity)
		for _, cs := range f.Channels {
			if cs.Stats.Empty() {
				continue
			}
			fmt.Fprintf(&b, " | %s last=%.2f avg=%.2f min=%.2f max=%.2f n=%d",
				cs.Channel, cs.Stats.LastMs, cs.Stats.AvgMs, cs.Stats.MinMs, cs.Stats.MaxMs, cs.Stats.RunCount)
		}
		if f.Screen == latency.ScreenRunsComplete {
			b.WriteString(" | RUNS COMPLETE")
		}
		return b.String()
	case latency.ScreenError:
		return fmt.Sprintf("[HALT ] %s", f.Status)
	default:
		return fmt.Sprintf("[DEBUG] %s L=%d polls/s=%.0f edges=%d",
			f.ModeLabel, f.Intensity, f.PollsPerSec, f.MouseEdges)
	}
}

// RunSim runs the full engine against a virtual screen. Keyboard drives
// the button: c=click, s=select hold, d=debug hold, r=reset hold.
func RunSim() error {
	screen := latency.NewSimScreen(35 * time.Millisecond)
	input := &latency.ScriptInput{}

	// Map stdin lines onto synthetic hold releases.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			switch strings.TrimSpace(scanner.Text()) {
			case "c", "":
				input.Push(100 * time.Millisecond)
			case "s":
				input.Push(2500 * time.Millisecond)
			case "d":
				input.Push(5500 * time.Millisecond)
			case "r":
				input.Push(9 * time.Second)
			default:
				fmt.Println("keys: c=click  s=select  d=debug  r=reset")
			}
		}
	}()

	engine := latency.New(latency.Params{
		Thresholds:     latency.Thresholds{Light: 600, Dark: 200},
		InterRunDelay:  200 * time.Millisecond,
		InterRunJitter: 100 * time.Millisecond,
	}, latency.Deps{
		Sensor:  screen,
		Clicker: latency.SimClicker{Screen: screen},
		Input:   input,
		Display: &consoleDisplay{},
		Sink:    logSinkToConsole{},
	}, latency.SetupStatus{MonitorOK: true, SensorOK: true, MouseOK: true})

	log.Println("sim: virtual screen with 35ms response lag; keys: c/s/d/r + enter")
	engine.Run()
	log.Println("sim: reset hold, exiting")
	return nil
}

// logSinkToConsole prints what the MQTT sink would publish.
type logSinkToConsole struct{}

func (logSinkToConsole) Append(ch latency.Channel, ms float32) {
	fmt.Printf("[SAMPLE] %s %.3fms\n", ch, ms)
}

func (logSinkToConsole) Flush(meta latency.SessionMeta) {
	fmt.Printf("[SESSION] mode=%s runs=%d duration=%s\n",
		meta.Mode, meta.Runs, meta.Ended.Sub(meta.Started).Round(time.Millisecond))
}
