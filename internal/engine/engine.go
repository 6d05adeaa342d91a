// Package engine implements the clocked CV slew engine core: per-channel
// segment generation, adaptive sample-rate playback and the feedback
// corrections that keep buffered playback aligned with a jittery external
// clock.
//
// The engine is single-threaded by design. All mutable state belongs to
// whichever goroutine calls Tick; the only concurrent actors are the
// interrupt-style signal handlers on Control, which communicate through
// atomic pending flags. Nothing here blocks: every operation is gated on
// an elapsed-time comparison and skipped when its interval has not come
// around.
package engine

import (
	"fmt"
	"math/rand"

	"github.com/tphakala/go-cv-slew/internal/clocking"
	"github.com/tphakala/go-cv-slew/internal/pattern"
	"github.com/tphakala/go-cv-slew/internal/shape"
)

// VoltageWriter is the hardware collaborator that realizes channel
// voltages. Implementations must be cheap; they are called from the
// time-critical emission path.
type VoltageWriter interface {
	// SetVoltage drives the given channel's output.
	SetVoltage(channel int, volts float64)

	// Off silences the given channel's output.
	Off(channel int)
}

// Params configures a new engine. Zero-valued fields fall back to the
// package defaults.
type Params struct {
	Channels      int
	MaxVoltage    float64
	Divisions     []int
	Shapes        []shape.Shape
	PatternLength int
	IntervalMs    int64
	Unclocked     bool
	Selected      int
	Rand          *rand.Rand
	Out           VoltageWriter

	// SaveFunc is invoked from Tick when a throttled persisted-state
	// write falls due. May be nil.
	SaveFunc func()
}

// Engine is the per-channel pattern/step state machine together with the
// playback driver that feeds the CV outputs.
type Engine struct {
	ctrl Control

	channels []*Channel
	bank     *pattern.Bank
	slot     int

	tracker   *clocking.Tracker
	averageMs float64
	clockStep int64
	lastClock int64

	patternLength int
	selected      int
	maxVoltage    float64
	extremes      [2]float64

	resetTimeoutMs int64

	out    VoltageWriter
	saveFn func()

	pendingSave bool
	lastSaveMs  int64

	screenRefresh    bool
	showNewPattern   bool
	newPatternStep   int64
	lastKnobA        float64
	lastKnobB        int
	knobAInitialized bool
}

// New creates an engine with pre-allocated buffers for every channel.
// No allocation happens after this point during steady-state operation.
func New(p Params) (*Engine, error) {
	if p.Channels <= 0 {
		p.Channels = DefaultChannels
	}
	if p.PatternLength <= 0 {
		p.PatternLength = DefaultPatternLength
	}
	if p.PatternLength > pattern.MaxStepLength {
		return nil, fmt.Errorf("pattern length %d exceeds maximum %d", p.PatternLength, pattern.MaxStepLength)
	}
	if p.IntervalMs <= 0 {
		p.IntervalMs = DefaultIntervalMs
	}
	if p.MaxVoltage <= 0 {
		return nil, fmt.Errorf("max voltage must be positive, got %v", p.MaxVoltage)
	}
	if p.Rand == nil {
		return nil, fmt.Errorf("random source is required")
	}

	bank, err := pattern.NewBank(p.Rand, p.Channels, p.MaxVoltage)
	if err != nil {
		return nil, fmt.Errorf("initializing pattern bank: %w", err)
	}

	e := &Engine{
		channels:       make([]*Channel, p.Channels),
		bank:           bank,
		tracker:        clocking.NewTracker(p.IntervalMs, MaxClockMs),
		averageMs:      float64(p.IntervalMs),
		patternLength:  p.PatternLength,
		selected:       p.Selected % p.Channels,
		maxVoltage:     p.MaxVoltage,
		extremes:       [2]float64{0, p.MaxVoltage},
		resetTimeoutMs: MaxClockMs,
		out:            p.Out,
		saveFn:         p.SaveFunc,
		screenRefresh:  true,
	}
	e.ctrl.setUnclocked(p.Unclocked)
	if p.Unclocked {
		e.ctrl.setRunning(true)
	}

	for i := range e.channels {
		div := 1
		if i < len(p.Divisions) && p.Divisions[i] >= 1 && p.Divisions[i] <= MaxDivision {
			div = p.Divisions[i]
		}
		sh := shape.StepUpStepDown
		if i < len(p.Shapes) && p.Shapes[i].Valid() {
			sh = p.Shapes[i]
		}
		e.channels[i] = newChannel(div, sh)
	}

	e.recalculateSampleRates()
	return e, nil
}

// Control exposes the interrupt-safe signal entry points.
func (e *Engine) Control() *Control { return &e.ctrl }

// Channel returns the state of one output channel.
func (e *Engine) Channel(i int) *Channel { return e.channels[i] }

// Channels returns the number of output channels.
func (e *Engine) Channels() int { return len(e.channels) }

// Bank returns the engine's pattern bank.
func (e *Engine) Bank() *pattern.Bank { return e.bank }

// ActiveSlot returns the pattern bank slot channels play from.
func (e *Engine) ActiveSlot() int { return e.slot }

// SetActiveSlot selects the pattern bank slot to play from. Slots the
// bank does not hold are ignored.
func (e *Engine) SetActiveSlot(i int) {
	if i < 0 || i >= e.bank.Patterns() || i == e.slot {
		return
	}
	e.slot = i
	e.screenRefresh = true
	e.pendingSave = true
}

// PatternLength returns the shared pattern length. A length of 1 is LFO
// mode: channels swing between the voltage extremes instead of stepping
// through patterns.
func (e *Engine) PatternLength() int { return e.patternLength }

// AverageIntervalMs returns the running average clock interval.
func (e *Engine) AverageIntervalMs() float64 { return e.averageMs }

// ClockStep returns the number of processed clock steps.
func (e *Engine) ClockStep() int64 { return e.clockStep }

// Selected returns the channel currently targeted by the controls.
func (e *Engine) Selected() int { return e.selected }

// Running reports whether the engine is emitting.
func (e *Engine) Running() bool { return e.ctrl.Running() }

// Unclocked reports whether the engine is free-running.
func (e *Engine) Unclocked() bool { return e.ctrl.Unclocked() }

// Tick runs one cooperative iteration of the control loop: it drains
// pending signals, processes a queued clock edge, emits any due samples,
// fires a throttled save, self-clocks in unclocked mode and applies the
// silence reset. nowMs must be monotonic milliseconds.
func (e *Engine) Tick(nowMs int64) {
	e.drainButtons()

	if edgeMs, ok := e.ctrl.TakeClock(); ok {
		e.processClockEdge(edgeMs)
	}

	e.emitDue(nowMs)

	if e.pendingSave && e.saveFn != nil && nowMs-e.lastSaveMs >= MinMsBetweenSaves {
		e.saveFn()
		e.pendingSave = false
		e.lastSaveMs = nowMs
	}

	// Self-clock when free-running.
	if e.ctrl.Unclocked() && nowMs-e.lastClock >= int64(e.averageMs) {
		e.ctrl.setRunning(true)
		e.lastClock = nowMs
		e.handleClockStep()
		e.clockStep++
	}

	// Silence reset: a stopped external clock returns every channel to
	// step zero with outputs off.
	if !e.ctrl.Unclocked() && e.clockStep != 0 && e.ctrl.Running() &&
		nowMs-e.ctrl.LastEdgeMs() > e.resetTimeoutMs {
		e.reset()
	}
}

// processClockEdge updates timing statistics from a drained clock event
// and runs the step engine.
func (e *Engine) processClockEdge(edgeMs int64) {
	interval, ok := e.tracker.Record(edgeMs)
	if ok && e.tracker.ShouldRecalculate(interval, e.averageMs) {
		e.averageMs = e.tracker.Average()
		e.recalculateSampleRates()
	}
	e.lastClock = edgeMs
	e.handleClockStep()
	e.clockStep++
}

// handleClockStep regenerates the segment for every channel whose
// division boundary falls on the current clock step, then advances those
// channels' pattern positions.
func (e *Engine) handleClockStep() {
	lfoMode := e.patternLength == 1

	for idx, ch := range e.channels {
		if e.clockStep%int64(ch.Division) != 0 {
			continue
		}

		ch.flipFlop = !ch.flipFlop

		// Fold the previous segment's overrun into the sample offset.
		// The correction only means anything once timing statistics are
		// established and an external clock is driving playback.
		if e.clockStep > clocking.WindowLength && !e.ctrl.Unclocked() {
			ch.overrunSamples = ch.cursor - ch.targetSamples
			ch.sampleOffset -= ch.overrunSamples
		} else {
			ch.sampleOffset = 0
		}

		ch.targetSamples = e.targetSampleCount(ch)

		start, stop := e.segmentEndpoints(idx, ch, lfoMode)
		if ch.Shape == shape.StepUpStepDown {
			// Square transitions read a single precomputed level; the
			// buffer machinery adds nothing to a two-level signal.
			ch.squareOutput = start
		} else {
			shape.Fill(ch.Shape, start, stop, ch.targetSamples, ch.buf, lfoMode)
		}

		ch.cursor = 0

		ch.step = (ch.step + 1) % e.patternLength
		ch.nextStep = (ch.step + 1) % e.patternLength
	}

	if e.showNewPattern && e.clockStep > e.newPatternStep+newPatternIndicatorSteps {
		e.showNewPattern = false
		e.screenRefresh = true
	}
}

// segmentEndpoints picks the start and stop voltages for a channel's next
// segment: the two extremes in LFO mode, otherwise the pattern values at
// the current and next step.
func (e *Engine) segmentEndpoints(idx int, ch *Channel, lfoMode bool) (start, stop float64) {
	if lfoMode {
		from, to := 0, 1
		if ch.flipFlop {
			from, to = 1, 0
		}
		return e.extremes[from], e.extremes[to]
	}
	return e.bank.Value(idx, e.slot, ch.step), e.bank.Value(idx, e.slot, ch.nextStep)
}

// emitDue emits the next sample for every channel whose inter-sample
// delay has elapsed. An exhausted buffer is an underrun, not an error:
// the previous voltage is held until the next segment catches up. The
// cursor advances either way, so the overrun feedback sees exactly how
// many emission slots the segment actually consumed.
func (e *Engine) emitDue(nowMs int64) {
	if !e.ctrl.Running() {
		return
	}
	for idx, ch := range e.channels {
		if nowMs-ch.lastEmitMs < ch.sampleDelayMs {
			continue
		}

		if ch.cursor < ch.targetSamples {
			var v float64
			if ch.Shape == shape.StepUpStepDown {
				v = ch.squareOutput
			} else {
				v = ch.buf[ch.cursor]
			}
			if e.out != nil {
				e.out.SetVoltage(idx, v)
			}
			ch.lastVoltage = v
			ch.underruns = 0
		} else {
			if e.out != nil {
				e.out.SetVoltage(idx, ch.lastVoltage)
			}
			ch.underruns++
		}

		ch.cursor++
		ch.lastEmitMs = nowMs
	}
}

// reset returns every channel to pattern step zero and silences the
// outputs. Runs when the external clock has been quiet for longer than
// the reset timeout.
func (e *Engine) reset() {
	for idx, ch := range e.channels {
		ch.step = 0
		ch.nextStep = 1 % e.patternLength
		ch.resetPlayback()
		if e.out != nil {
			e.out.Off(idx)
		}
		ch.lastVoltage = 0
	}
	e.ctrl.setRunning(false)
	e.screenRefresh = true
	e.pendingSave = true
}

// drainButtons applies any pending button events on the loop thread.
func (e *Engine) drainButtons() {
	if heldMs, ok := e.ctrl.TakeButtonA(); ok {
		e.applyButtonA(heldMs)
	}
	if heldMs, ok := e.ctrl.TakeButtonB(); ok {
		e.applyButtonB(heldMs)
	}
}

// applyButtonA handles button A: a long press regenerates the selected
// channel's pattern, a short press cycles its slew shape.
func (e *Engine) applyButtonA(heldMs int64) {
	if isLongPress(heldMs) {
		// Regeneration failure is non-fatal; the previous pattern stays.
		if err := e.bank.Regenerate(e.selected, e.slot); err == nil {
			e.showNewPattern = true
			e.newPatternStep = e.clockStep
		}
	} else {
		ch := e.channels[e.selected]
		ch.Shape = ch.Shape.Next()
	}
	e.screenRefresh = true
	e.pendingSave = true
}

// applyButtonB handles button B: a long press toggles unclocked mode, a
// short press cycles the selected channel.
func (e *Engine) applyButtonB(heldMs int64) {
	if isLongPress(heldMs) {
		unclocked := !e.ctrl.Unclocked()
		e.ctrl.setUnclocked(unclocked)
		if unclocked {
			e.ctrl.setRunning(true)
		}
	} else {
		e.selected = (e.selected + 1) % len(e.channels)
	}
	e.screenRefresh = true
	e.pendingSave = true
}

func isLongPress(heldMs int64) bool {
	return heldMs > LongPressMs && heldMs < LongPressMaxMs
}

// SetKnobA applies the first knob: pattern length when clocked, clock
// interval when free-running. Readings are normalized 1..KnobRange;
// out-of-range values are clamped, so a zero reading can never zero the
// free-run interval. Readings pass through a hysteresis tolerance so ADC
// noise does not retrigger updates.
func (e *Engine) SetKnobA(reading float64) {
	if reading < 1 {
		reading = 1
	}
	if reading > KnobRange {
		reading = KnobRange
	}

	if e.knobAInitialized && absFloat(reading-e.lastKnobA) <= KnobChangeTolerance {
		e.lastKnobA = reading
		return
	}

	if e.ctrl.Unclocked() {
		e.averageMs = reading * (MaxClockMs / MinClockMs) / 2
		e.recalculateSampleRates()
	} else {
		length := int((pattern.MaxStepLength/float64(KnobRange))*(reading-1)) + 1
		if length > pattern.MaxStepLength {
			length = pattern.MaxStepLength
		}
		e.patternLength = length
	}

	e.lastKnobA = reading
	e.knobAInitialized = true
	e.pendingSave = true
	e.screenRefresh = true
}

// SetKnobB applies the second knob: the selected channel's clock
// division, as a detented position 1..MaxDivision.
func (e *Engine) SetKnobB(position int) {
	if position < 1 {
		position = 1
	}
	if position > MaxDivision {
		position = MaxDivision
	}
	if position == e.lastKnobB {
		return
	}
	e.lastKnobB = position
	e.channels[e.selected].Division = position
	e.recalculateSampleRates()
	e.screenRefresh = true
	e.pendingSave = true
}

// SetPatternLength sets the shared pattern length directly (1 enables
// LFO mode).
func (e *Engine) SetPatternLength(n int) error {
	if n < 1 || n > pattern.MaxStepLength {
		return fmt.Errorf("pattern length %d out of range 1..%d", n, pattern.MaxStepLength)
	}
	e.patternLength = n
	e.screenRefresh = true
	e.pendingSave = true
	return nil
}

// SetAverageIntervalMs overrides the average clock interval, used when
// restoring persisted state.
func (e *Engine) SetAverageIntervalMs(ms float64) {
	if ms <= 0 {
		ms = DefaultIntervalMs
	}
	e.averageMs = ms
	e.recalculateSampleRates()
}

// SetSelected targets a channel for the control surface.
func (e *Engine) SetSelected(i int) {
	if i < 0 || i >= len(e.channels) {
		return
	}
	e.selected = i
	e.screenRefresh = true
}

// SetUnclocked switches between externally clocked and free-running
// operation.
func (e *Engine) SetUnclocked(v bool) {
	e.ctrl.setUnclocked(v)
	if v {
		e.ctrl.setRunning(true)
	}
	e.screenRefresh = true
	e.pendingSave = true
}

// ScreenRefreshNeeded reports and clears the display collaborator's
// refresh flag.
func (e *Engine) ScreenRefreshNeeded() bool {
	v := e.screenRefresh
	e.screenRefresh = false
	return v
}

// NewPatternIndicator reports whether the new-pattern indicator should be
// shown.
func (e *Engine) NewPatternIndicator() bool { return e.showNewPattern }

// MarkPendingSave requests a throttled persisted-state write.
func (e *Engine) MarkPendingSave() { e.pendingSave = true }

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
