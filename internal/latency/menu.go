// Copyright (c) 2026 Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package latency

// menu is a cyclic selection index over a fixed option list. Pure
// bookkeeping: a short click advances, a select hold commits elsewhere.
type menu struct {
	options  []string
	selected int
}

func newMenu(options []string) menu {
	return menu{options: options}
}

func (m *menu) advance() {
	m.selected = (m.selected + 1) % len(m.options)
}

func (m *menu) reset() {
	m.selected = 0
}

// measurementModes is the main menu; debugModes is reached through the
// debug hold escape hatch.
var (
	measurementModes = []Mode{ModeAutomatic, ModeAutoApertureUE4, ModeDirectApertureUE4}
	debugModes       = []Mode{ModeDebugMouse, ModeDebugLightSensor, ModeDebugPollingTest}
)

func modeLabels(modes []Mode) []string {
	labels := make([]string, len(modes))
	for i, m := range modes {
		labels[i] = m.String()
	}
	return labels
}

func limitLabels() []string {
	labels := make([]string, len(RunLimits))
	for i, r := range RunLimits {
		labels[i] = r.String()
	}
	return labels
}
