// Copyright (c) 2026 Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package latency

import (
	"math/rand"
	"time"
)

// Params are the tunables of the measurement core. Zero fields are filled
// with the stock bench defaults.
type Params struct {
	Thresholds Thresholds
	Holds      HoldThresholds

	// MeasureTimeout bounds the poll after a stimulus fires.
	MeasureTimeout time.Duration
	// BaselineTimeout bounds the pre-measurement baseline wait.
	BaselineTimeout time.Duration
	// StableDark is the minimum continuous dark required as the Automatic
	// mode baseline; an instantaneous reading would accept flicker.
	StableDark time.Duration
	// SettleDelay and VerifyTimeout belong to the smart-sync protocol.
	SettleDelay   time.Duration
	VerifyTimeout time.Duration
	// PulseWidth is the GPIO click pulse length.
	PulseWidth time.Duration
	// InterRunDelay plus a random jitter in [0, InterRunJitter) separates
	// consecutive runs so the measurement never locks onto a refresh beat.
	InterRunDelay  time.Duration
	InterRunJitter time.Duration
	// PollTestWindow is the sampling window of the polling-rate debug mode.
	PollTestWindow time.Duration
}

func (p Params) withDefaults() Params {
	if !p.Thresholds.Valid() {
		p.Thresholds = Thresholds{Light: 600, Dark: 450}
	}
	if !p.Holds.Valid() {
		p.Holds = HoldThresholds{
			Indicate: 300 * time.Millisecond,
			Select:   2 * time.Second,
			Debug:    5 * time.Second,
			Reset:    8 * time.Second,
		}
	}
	if p.MeasureTimeout <= 0 {
		p.MeasureTimeout = time.Second
	}
	if p.BaselineTimeout <= 0 {
		p.BaselineTimeout = 3 * time.Second
	}
	if p.StableDark <= 0 {
		p.StableDark = 150 * time.Millisecond
	}
	if p.SettleDelay <= 0 {
		p.SettleDelay = 500 * time.Millisecond
	}
	if p.VerifyTimeout <= 0 {
		p.VerifyTimeout = 3 * time.Second
	}
	if p.PulseWidth <= 0 {
		p.PulseWidth = 100 * time.Microsecond
	}
	if p.InterRunDelay <= 0 {
		p.InterRunDelay = 100 * time.Millisecond
	}
	if p.InterRunJitter < 0 {
		p.InterRunJitter = 0
	}
	if p.PollTestWindow <= 0 {
		p.PollTestWindow = time.Second
	}
	return p
}

// Deps are the injected collaborators. Sensor, Clicker and Input are
// required; the rest default to no-ops or the real clock.
type Deps struct {
	Sensor  LightSensor
	Clicker ClickSource
	Input   HoldInput
	Display Display
	Sink    LogSink
	// Mouse observes the receive-click line; used by the mouse debug mode.
	Mouse MouseMonitor
	// Preflight rejects a mode whose hardware precondition is unmet (no
	// USB host for Direct, no wired mouse for the GPIO modes). A nil
	// Preflight accepts everything.
	Preflight func(Mode) error

	Now   func() time.Time
	Sleep func(time.Duration)
	Rand  *rand.Rand
}

// SetupStatus is the boot self-test result shown on the setup screen.
type SetupStatus struct {
	MonitorOK bool
	SensorOK  bool
	MouseOK   bool
}

type stateKind int

const (
	stateSetup stateKind = iota
	stateSelectMenu
	stateSelectRunLimit
	stateSelectDebugMenu
	stateHoldAction
	stateAutomatic
	stateAutoApertureUE4
	stateDirectApertureUE4
	stateDebugMouse
	stateDebugLightSensor
	stateDebugPollingTest
	stateRunsComplete
	stateErrorHalt
)

// state is the engine's tagged state. Only holdAction carries extra data:
// the state to unwind to when the hold releases early.
type state struct {
	kind     stateKind
	returnTo stateKind
}

func stateForMode(m Mode) stateKind {
	switch m {
	case ModeAutomatic:
		return stateAutomatic
	case ModeAutoApertureUE4:
		return stateAutoApertureUE4
	case ModeDirectApertureUE4:
		return stateDirectApertureUE4
	case ModeDebugMouse:
		return stateDebugMouse
	case ModeDebugLightSensor:
		return stateDebugLightSensor
	case ModeDebugPollingTest:
		return stateDebugPollingTest
	}
	return stateSelectMenu
}

// Engine owns every piece of session state and drives the whole control
// loop from a single logical thread. Nothing in here is safe for
// concurrent use; fan-out (web, MQTT) hangs off the Display and LogSink
// sinks instead.
type Engine struct {
	params Params
	deps   Deps
	poller *Poller
	setup  SetupStatus

	st        state
	modeMenu  menu
	limitMenu menu
	debugMenu menu

	mode          Mode
	limit         RunLimit
	phase         TransitionPhase
	synced        bool
	stats         [channelCount]Stats
	runs          uint64
	started       time.Time
	sessionActive bool
	flushed       bool
	status        string

	mouseLast   bool
	mouseEdges  uint64
	pollsPerSec float64
	haltMsg     string
}

// New builds an engine waiting on the setup screen. A failed self-test
// still gets an engine so the failure is visible; call Halt to pin it.
func New(params Params, deps Deps, setup SetupStatus) *Engine {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sleep == nil {
		deps.Sleep = time.Sleep
	}
	if deps.Display == nil {
		deps.Display = NopDisplay{}
	}
	if deps.Sink == nil {
		deps.Sink = NopSink{}
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	params = params.withDefaults()

	e := &Engine{
		params:    params,
		deps:      deps,
		setup:     setup,
		st:        state{kind: stateSetup},
		modeMenu:  newMenu(modeLabels(measurementModes)),
		limitMenu: newMenu(limitLabels()),
		debugMenu: newMenu(modeLabels(debugModes)),
	}
	e.poller = &Poller{Read: deps.Sensor.ReadIntensity, Now: deps.Now, Th: params.Thresholds}
	e.resetSession()
	return e
}

// Halt pins the engine in the fatal error state. Only a reset hold (or a
// power cycle) leaves it.
func (e *Engine) Halt(msg string) {
	e.haltMsg = msg
	e.st = state{kind: stateErrorHalt}
}

// Run drives the control loop until a reset hold. The caller restarts the
// process or reboots the board afterwards.
func (e *Engine) Run() {
	for e.Step() {
	}
}

// Step executes one outer loop pass: observe the button, dispatch on the
// current state, redraw. It returns false once a reset hold is released.
// Button work happens only here, never inside a measurement poll, so a
// hold is recognized between attempts with at most one measurement
// timeout of lag.
func (e *Engine) Step() bool {
	e.observeHold()
	if ev, ok := e.deps.Input.Poll(); ok {
		if !e.handleRelease(ev) {
			return false
		}
	}

	switch e.st.kind {
	case stateAutomatic:
		e.stepMeasure(ModeAutomatic)
	case stateAutoApertureUE4:
		e.stepMeasure(ModeAutoApertureUE4)
	case stateDirectApertureUE4:
		e.stepMeasure(ModeDirectApertureUE4)
	case stateDebugMouse:
		e.stepDebugMouse()
	case stateDebugLightSensor:
		e.deps.Sleep(20 * time.Millisecond)
	case stateDebugPollingTest:
		e.stepDebugPolling()
	case stateErrorHalt:
		e.deps.Sleep(100 * time.Millisecond)
	default:
		// Selection and idle screens just need render pacing.
		e.deps.Sleep(20 * time.Millisecond)
	}

	e.render()
	return true
}

// observeHold promotes an in-progress press into the transient hold-action
// state once it crosses the indicator threshold, remembering where to
// unwind to.
func (e *Engine) observeHold() {
	if e.st.kind == stateHoldAction || e.st.kind == stateErrorHalt {
		return
	}
	if d, ok := e.deps.Input.Holding(); ok && d >= e.params.Holds.Indicate {
		e.st = state{kind: stateHoldAction, returnTo: e.st.kind}
	}
}

// holdAbort reports a concurrent hold long enough to qualify as an action;
// the sync protocol and baseline waits poll it so multi-second blocking
// steps stay interruptible.
func (e *Engine) holdAbort() bool {
	d, ok := e.deps.Input.Holding()
	return ok && d >= e.params.Holds.Select
}

// handleRelease classifies a completed hold. Thresholds are nested, so the
// longest qualifying action is checked first: a reset-length hold also
// exceeds the debug and select thresholds and must still mean reset.
func (e *Engine) handleRelease(ev HoldEvent) bool {
	action := e.params.Holds.Classify(ev.Duration)

	if e.st.kind == stateErrorHalt {
		// The halt state honors nothing but a full reset.
		if action == ActionReset {
			e.flushSession()
			return false
		}
		return true
	}

	from := e.st.kind
	if from == stateHoldAction {
		from = e.st.returnTo
	}

	switch action {
	case ActionReset:
		e.flushSession()
		return false

	case ActionDebug:
		// Global escape hatch into the debug selector.
		e.flushSession()
		e.resetSession()
		e.debugMenu.reset()
		e.status = ""
		e.st = state{kind: stateSelectDebugMenu}

	case ActionSelect:
		e.commitSelect(from)

	case ActionNone:
		// Released after the indicator but before any action: unwind.
		e.st = state{kind: from}

	case ActionShortClick:
		switch e.st.kind {
		case stateSelectMenu:
			e.modeMenu.advance()
		case stateSelectRunLimit:
			e.limitMenu.advance()
		case stateSelectDebugMenu:
			e.debugMenu.advance()
		}
	}
	return true
}

// commitSelect advances the configuration pipeline, or exits an active
// screen back to the menu.
func (e *Engine) commitSelect(from stateKind) {
	switch from {
	case stateSetup:
		e.st = state{kind: stateSelectMenu}

	case stateSelectMenu:
		e.mode = measurementModes[e.modeMenu.selected]
		e.limitMenu.reset()
		e.st = state{kind: stateSelectRunLimit}

	case stateSelectRunLimit:
		e.limit = RunLimits[e.limitMenu.selected]
		e.startSession()

	case stateSelectDebugMenu:
		e.mode = debugModes[e.debugMenu.selected]
		e.mouseLast = false
		e.mouseEdges = 0
		e.pollsPerSec = 0
		e.st = state{kind: stateForMode(e.mode)}

	default:
		// Active measurement, runs-complete or debug screen: flush and
		// clear the session, back to mode selection.
		e.flushSession()
		e.resetSession()
		e.status = ""
		e.st = state{kind: stateSelectMenu}
	}
}

// startSession checks the mode's hardware precondition and enters the
// measurement state with fresh statistics.
func (e *Engine) startSession() {
	if e.deps.Preflight != nil {
		if err := e.deps.Preflight(e.mode); err != nil {
			e.status = err.Error()
			e.st = state{kind: stateSelectMenu}
			return
		}
	}
	e.resetSession()
	e.sessionActive = true
	e.started = e.deps.Now()
	e.status = ""
	e.st = state{kind: stateForMode(e.mode)}
}

func (e *Engine) resetSession() {
	for i := range e.stats {
		e.stats[i] = NewStats()
	}
	e.runs = 0
	e.phase = ExpectingWhite
	e.synced = false
	e.sessionActive = false
	e.flushed = false
}

// flushSession hands the session summary to the log sink exactly once.
func (e *Engine) flushSession() {
	if !e.sessionActive || e.flushed {
		return
	}
	e.flushed = true
	e.deps.Sink.Flush(SessionMeta{
		Mode:     e.mode,
		Limit:    e.limit,
		Started:  e.started,
		Ended:    e.deps.Now(),
		Runs:     e.runs,
		Channels: e.channelSnapshots(),
	})
}

func (e *Engine) channelSnapshots() []ChannelStats {
	var out []ChannelStats
	switch e.mode {
	case ModeAutomatic:
		out = append(out, ChannelStats{ChannelAutomatic, e.stats[ChannelAutomatic]})
	case ModeAutoApertureUE4:
		out = append(out,
			ChannelStats{ChannelAutoBtoW, e.stats[ChannelAutoBtoW]},
			ChannelStats{ChannelAutoWtoB, e.stats[ChannelAutoWtoB]})
	case ModeDirectApertureUE4:
		out = append(out,
			ChannelStats{ChannelDirectBtoW, e.stats[ChannelDirectBtoW]},
			ChannelStats{ChannelDirectWtoB, e.stats[ChannelDirectWtoB]})
	}
	return out
}

// fireFor returns the stimulus for the mode: a timed GPIO pulse for the
// analog path, a real HID packet for the direct path.
func (e *Engine) fireFor(m Mode) func() error {
	if m == ModeDirectApertureUE4 {
		return e.deps.Clicker.HIDClick
	}
	return func() error { return e.deps.Clicker.Pulse(e.params.PulseWidth) }
}

// stepMeasure is one measurement iteration: limit check, first-run sync,
// baseline, fire+poll, bookkeeping, jittered inter-run delay.
func (e *Engine) stepMeasure(m Mode) {
	if e.limit.Reached(e.runs) {
		e.flushSession()
		e.st = state{kind: stateRunsComplete}
		return
	}

	if m.IsAperture() && !e.synced {
		e.runSync(m)
		// The sync iteration never collects a sample, whatever happened.
		return
	}

	// Confirm the expected baseline before firing; on timeout skip this
	// attempt entirely: no stats update and, critically, no phase flip.
	if m == ModeAutomatic {
		if !e.poller.WaitStable(LevelDark, e.params.StableDark, e.params.BaselineTimeout) {
			e.interRunWait()
			return
		}
	} else {
		base := LevelDark
		if e.phase == ExpectingBlack {
			base = LevelLight
		}
		ok, aborted := e.poller.WaitInterruptible(base, e.params.BaselineTimeout, e.holdAbort)
		if aborted {
			return // the release is handled on the next pass
		}
		if !ok {
			e.interRunWait()
			return
		}
	}

	target := LevelLight
	if m.IsAperture() && e.phase == ExpectingBlack {
		target = LevelDark
	}

	// The timer starts at the instant the stimulus is issued; everything
	// between here and the poll loop is on the measured path.
	start := e.deps.Now()
	var fireErr error
	switch m {
	case ModeAutomatic:
		fireErr = e.deps.Clicker.Set(true)
	case ModeAutoApertureUE4:
		fireErr = e.deps.Clicker.Pulse(e.params.PulseWidth)
	case ModeDirectApertureUE4:
		fireErr = e.deps.Clicker.HIDClick()
	}
	if fireErr != nil {
		e.status = "Stimulus error"
		e.interRunWait()
		return
	}

	elapsed, ok := e.poller.WaitFrom(start, target, e.params.MeasureTimeout)
	if m == ModeAutomatic {
		// Stimulus was held high for the whole detection window.
		_ = e.deps.Clicker.Set(false)
	}

	if ok {
		ms := float32(float64(elapsed) / float64(time.Millisecond))
		ch := channelFor(m, e.phase)
		e.stats[ch].Update(ms)
		e.deps.Sink.Append(ch, ms)
		e.runs++
		if m.IsAperture() {
			// Phase advances only on success; a timeout must re-target
			// the same transition or the channels drift off the screen's
			// true alternating sequence.
			if e.phase == ExpectingWhite {
				e.phase = ExpectingBlack
			} else {
				e.phase = ExpectingWhite
			}
		}
		e.status = ""
	}

	e.interRunWait()
}

// runSync drives one smart-sync attempt plus, on success, the warm-up
// pass. Failure just leaves a status message; the next iteration retries,
// without a cap.
func (e *Engine) runSync(m Mode) {
	e.status = "Syncing..."
	e.render()

	s := &Syncer{
		Poller:        e.poller,
		Fire:          e.fireFor(m),
		Sleep:         e.deps.Sleep,
		Abort:         e.holdAbort,
		SettleDelay:   e.params.SettleDelay,
		VerifyTimeout: e.params.VerifyTimeout,
	}
	switch s.Run() {
	case SyncSuccess:
		e.warmup(m)
		e.synced = true
		e.phase = ExpectingWhite
		e.status = ""
	case SyncFailed:
		e.status = "Sync failed, retrying"
	case SyncAborted:
		// Unwind to the hold-action screen; the release decides where to
		// go from here.
		e.st = state{kind: stateHoldAction, returnTo: e.st.kind}
	}
}

// warmup runs two unmeasured stimulus/detect cycles (B→W then W→B). The
// first transitions after idle are systematically biased; they are burned
// here instead of skewing the statistics.
func (e *Engine) warmup(m Mode) {
	fire := e.fireFor(m)
	if err := fire(); err != nil {
		return
	}
	e.poller.WaitInterruptible(LevelLight, e.params.MeasureTimeout, e.holdAbort)
	if err := fire(); err != nil {
		return
	}
	e.poller.WaitInterruptible(LevelDark, e.params.MeasureTimeout, e.holdAbort)
}

// interRunWait sleeps the jittered inter-run delay in short slices,
// bailing out as soon as a press begins so the UI stays responsive.
func (e *Engine) interRunWait() {
	d := e.params.InterRunDelay
	if e.params.InterRunJitter > 0 {
		d += time.Duration(e.deps.Rand.Int63n(int64(e.params.InterRunJitter)))
	}
	const slice = 10 * time.Millisecond
	for rem := d; rem > 0; rem -= slice {
		if _, holding := e.deps.Input.Holding(); holding {
			return
		}
		if rem < slice {
			e.deps.Sleep(rem)
		} else {
			e.deps.Sleep(slice)
		}
	}
}

func (e *Engine) stepDebugMouse() {
	if e.deps.Mouse != nil {
		active := e.deps.Mouse.ClickActive()
		if active && !e.mouseLast {
			e.mouseEdges++
		}
		e.mouseLast = active
	}
	e.deps.Sleep(5 * time.Millisecond)
}

// stepDebugPolling measures the achieved sensor poll rate over a fixed
// window, the Go-side equivalent of the old 8kHz polling bench.
func (e *Engine) stepDebugPolling() {
	start := e.deps.Now()
	n := 0
	for e.deps.Now().Sub(start) < e.params.PollTestWindow {
		e.deps.Sensor.ReadIntensity()
		n++
		if n%4096 == 0 {
			if _, holding := e.deps.Input.Holding(); holding {
				break
			}
		}
	}
	if el := e.deps.Now().Sub(start); el > 0 {
		e.pollsPerSec = float64(n) / el.Seconds()
	}
}

func (e *Engine) render() {
	f := Frame{Status: e.status}

	switch e.st.kind {
	case stateSetup:
		f.Screen = ScreenSetup
		f.MonitorOK = e.setup.MonitorOK
		f.SensorOK = e.setup.SensorOK
		f.MouseOK = e.setup.MouseOK

	case stateSelectMenu:
		f.Screen = ScreenMenu
		f.ModeLabel = "Select Mode"
		f.Menu = e.modeMenu.options
		f.Selected = e.modeMenu.selected

	case stateSelectRunLimit:
		f.Screen = ScreenMenu
		f.ModeLabel = "Run Limit"
		f.Menu = e.limitMenu.options
		f.Selected = e.limitMenu.selected

	case stateSelectDebugMenu:
		f.Screen = ScreenMenu
		f.ModeLabel = "Debug"
		f.Menu = e.debugMenu.options
		f.Selected = e.debugMenu.selected

	case stateHoldAction:
		// Keep drawing the underlying screen with the progress bar on top.
		prev := e.st
		e.st = state{kind: prev.returnTo}
		e.render()
		e.st = prev
		return

	case stateAutomatic, stateAutoApertureUE4, stateDirectApertureUE4:
		f.Screen = ScreenMeasure
		if e.mode.IsAperture() && !e.synced {
			f.Screen = ScreenSync
		}
		f.ModeLabel = e.mode.String()
		f.Intensity = e.deps.Sensor.ReadIntensity()
		f.Channels = e.channelSnapshots()
		f.Runs = e.runs
		f.Limit = e.limit
		f.Phase = e.phase

	case stateRunsComplete:
		f.Screen = ScreenRunsComplete
		f.ModeLabel = e.mode.String()
		f.Channels = e.channelSnapshots()
		f.Runs = e.runs
		f.Limit = e.limit

	case stateDebugLightSensor:
		f.Screen = ScreenDebugSensor
		f.ModeLabel = e.mode.String()
		f.Intensity = e.deps.Sensor.ReadIntensity()

	case stateDebugMouse:
		f.Screen = ScreenDebugMouse
		f.ModeLabel = e.mode.String()
		f.MouseActive = e.mouseLast
		f.MouseEdges = e.mouseEdges

	case stateDebugPollingTest:
		f.Screen = ScreenDebugPolling
		f.ModeLabel = e.mode.String()
		f.PollsPerSec = e.pollsPerSec

	case stateErrorHalt:
		f.Screen = ScreenError
		f.Status = e.haltMsg
	}

	if d, ok := e.deps.Input.Holding(); ok && d >= e.params.Holds.Indicate {
		frac := float64(d) / float64(e.params.Holds.Reset)
		if frac > 1 {
			frac = 1
		}
		f.HoldFrac = frac
	}

	e.deps.Display.Render(f)
}
