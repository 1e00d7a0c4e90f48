// Copyright (c) 2026 Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"image"
	"log"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/latency_tester/internal/latency"
)

// minRedraw throttles the OLED: a frame arrives every engine loop pass,
// but pushing 1kB over I2C at that rate would starve the bus the ADC
// shares.
const minRedraw = 50 * time.Millisecond

// OLEDDisplay renders engine frames on the SSD1306. It satisfies
// latency.Display.
type OLEDDisplay struct {
	dev    *ssd1306.Dev
	footer string

	lastDraw   time.Time
	lastScreen latency.ScreenKind
}

// NewOLEDDisplay initializes the 128x64 panel at the standard 0x3C
// address.
func NewOLEDDisplay(bus i2c.Bus, footer string) (*OLEDDisplay, error) {
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("display: ssd1306 init: %w", err)
	}
	log.Printf("display: ssd1306 initialized")
	return &OLEDDisplay{dev: dev, footer: footer}, nil
}

// Render draws one frame. Redraws are rate-limited except when the screen
// kind changes, so state transitions show up immediately.
func (d *OLEDDisplay) Render(f latency.Frame) {
	now := time.Now()
	if f.Screen == d.lastScreen && now.Sub(d.lastDraw) < minRedraw {
		return
	}
	d.lastDraw = now
	d.lastScreen = f.Screen

	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	switch f.Screen {
	case latency.ScreenSetup:
		d.drawSetup(drawer, f)
	case latency.ScreenMenu:
		d.drawMenu(drawer, f)
	case latency.ScreenMeasure, latency.ScreenRunsComplete:
		d.drawMeasure(drawer, f)
	case latency.ScreenSync:
		d.drawStatus(drawer, f.ModeLabel, f.Status)
	case latency.ScreenDebugSensor:
		d.drawStatus(drawer, f.ModeLabel, fmt.Sprintf("L: %4d", f.Intensity))
	case latency.ScreenDebugMouse:
		state := "idle"
		if f.MouseActive {
			state = "ACTIVE"
		}
		d.drawStatus(drawer, f.ModeLabel, fmt.Sprintf("%s  n=%d", state, f.MouseEdges))
	case latency.ScreenDebugPolling:
		d.drawStatus(drawer, f.ModeLabel, fmt.Sprintf("%.0f polls/s", f.PollsPerSec))
	case latency.ScreenError:
		d.drawStatus(drawer, "ERROR", f.Status)
	}

	if f.HoldFrac > 0 {
		// The progress bar takes over the footer row.
		d.drawHoldBar(img, f.HoldFrac)
	} else {
		switch f.Screen {
		case latency.ScreenSetup, latency.ScreenMenu:
			// Bottom row carries the continue hint / status line instead.
		default:
			d.text(drawer, 20, 63, d.footer)
		}
	}

	if err := d.dev.Draw(d.dev.Bounds(), img, image.Point{}); err != nil {
		log.Printf("display: draw error: %v", err)
	}
}

func (d *OLEDDisplay) text(drawer *font.Drawer, x, y int, s string) {
	drawer.Dot = fixed.P(x, y)
	drawer.DrawBytes([]byte(s))
}

func (d *OLEDDisplay) drawSetup(drawer *font.Drawer, f latency.Frame) {
	okText := func(ok bool, good, bad string) string {
		if ok {
			return good
		}
		return bad
	}
	d.text(drawer, 0, 10, "SETUP")
	d.text(drawer, 70, 10, d.footer)
	d.text(drawer, 4, 23, "Monitor: "+okText(f.MonitorOK, "Working", "Missing"))
	d.text(drawer, 4, 36, "Sensor:  "+okText(f.SensorOK, "Working", "Error"))
	d.text(drawer, 4, 49, "Mouse:   "+okText(f.MouseOK, "Wired", "Missing"))
	d.text(drawer, 4, 62, "Hold to continue")
}

func (d *OLEDDisplay) drawMenu(drawer *font.Drawer, f latency.Frame) {
	d.text(drawer, 30, 10, f.ModeLabel)

	// Three rows fit under the title; scroll the window with the cursor.
	first := 0
	if f.Selected > 1 {
		first = f.Selected - 1
	}
	if last := len(f.Menu) - 3; first > last && last >= 0 {
		first = last
	}
	y := 23
	for i := first; i < len(f.Menu) && i < first+3; i++ {
		marker := "  "
		if i == f.Selected {
			marker = "> "
		}
		d.text(drawer, 10, y, marker+f.Menu[i])
		y += 13
	}

	if f.Status != "" {
		d.text(drawer, 4, 62, f.Status)
	}
}

func (d *OLEDDisplay) drawMeasure(drawer *font.Drawer, f latency.Frame) {
	d.text(drawer, 0, 10, fmt.Sprintf("L:%4d", f.Intensity))
	d.text(drawer, 58, 10, f.ModeLabel)

	if len(f.Channels) == 1 {
		// Single channel: room for the extremes too.
		s := f.Channels[0].Stats
		if s.Empty() {
			d.text(drawer, 0, 23, "waiting...")
		} else {
			d.text(drawer, 0, 23, fmt.Sprintf("%5.1f av%5.1f n%d", s.LastMs, s.AvgMs, s.RunCount))
			d.text(drawer, 0, 36, fmt.Sprintf("mn%6.1f mx%6.1f", s.MinMs, s.MaxMs))
		}
	} else {
		// One compact row per transition direction.
		y := 23
		for _, cs := range f.Channels {
			if cs.Stats.Empty() {
				d.text(drawer, 0, y, dirLabel(cs.Channel)+"    --")
			} else {
				d.text(drawer, 0, y, fmt.Sprintf("%s%6.1f av%5.1f",
					dirLabel(cs.Channel), cs.Stats.LastMs, cs.Stats.AvgMs))
			}
			y += 13
		}
	}

	if f.Screen == latency.ScreenRunsComplete {
		d.text(drawer, 4, 49, "Done - hold to exit")
	} else if f.Limit > 0 {
		d.text(drawer, 72, 49, fmt.Sprintf("%d/%d", f.Runs, f.Limit))
	}
}

func dirLabel(c latency.Channel) string {
	switch c {
	case latency.ChannelAutoBtoW, latency.ChannelDirectBtoW:
		return "B>W"
	case latency.ChannelAutoWtoB, latency.ChannelDirectWtoB:
		return "W>B"
	}
	return "   "
}

func (d *OLEDDisplay) drawStatus(drawer *font.Drawer, title, status string) {
	d.text(drawer, 10, 14, title)
	d.text(drawer, 4, 34, status)
}

// drawHoldBar fills the bottom rows proportionally to the in-progress
// hold, the visual cue for how far the hold has progressed toward reset.
func (d *OLEDDisplay) drawHoldBar(img *image1bit.VerticalLSB, frac float64) {
	w := int(frac * 128)
	for y := 59; y < 63; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, image1bit.On)
		}
	}
}
