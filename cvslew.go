package cvslew

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/tphakala/go-cv-slew/internal/engine"
	"github.com/tphakala/go-cv-slew/internal/pattern"
	"github.com/tphakala/go-cv-slew/internal/shape"
)

// Shape selects a slew transition curve. See the Shape* constants.
type Shape = shape.Shape

// The available slew shapes, in control-surface cycling order.
const (
	ShapeStepUpStepDown    = shape.StepUpStepDown
	ShapeLinear            = shape.Linear
	ShapeSmooth            = shape.Smooth
	ShapeExpUpExpDown      = shape.ExpUpExpDown
	ShapeSharkTooth        = shape.SharkTooth
	ShapeSharkToothReverse = shape.SharkToothReverse
	ShapeLogUpStepDown     = shape.LogUpStepDown
	ShapeStepUpExpDown     = shape.StepUpExpDown
)

// NumShapes is the number of available slew shapes.
var NumShapes = shape.Count()

// VoltageWriter is the hardware collaborator that realizes channel
// voltages.
type VoltageWriter = engine.VoltageWriter

// StateStore persists the engine's configuration blob and returns it
// verbatim on the next start.
type StateStore interface {
	// Save persists the state blob. Called from Tick on a throttled
	// schedule; failures are recorded, not fatal.
	Save(s State) error
}

// Common errors returned by the engine.
var (
	// ErrInvalidConfig indicates invalid configuration parameters.
	ErrInvalidConfig = errors.New("invalid engine configuration")
)

// Config holds engine configuration.
type Config struct {
	// Channels is the number of CV outputs. 0 selects the default of 6.
	Channels int

	// MaxVoltage is the output voltage ceiling. Patterns and LFO swings
	// span [0, MaxVoltage]. Required.
	MaxVoltage float64

	// Divisions sets each channel's initial clock division
	// (1..MaxDivision). Missing entries default to [1, 2, 4, ...]
	// repeating.
	Divisions []int

	// Shapes sets each channel's initial slew shape. Missing entries
	// default to ShapeStepUpStepDown.
	Shapes []Shape

	// PatternLength is the shared initial pattern length (1..32).
	// A length of 1 selects LFO mode. 0 selects the default of 8.
	PatternLength int

	// ClockIntervalMs seeds the clock timing window before real edges
	// arrive, typically from persisted state. 0 selects the default.
	ClockIntervalMs int64

	// Unclocked starts the engine free-running from its internal
	// interval instead of waiting for an external clock.
	Unclocked bool

	// Seed seeds the pattern random source. 0 uses the current time.
	Seed int64

	// Output receives channel voltages. May be nil for headless use
	// (tests, offline rendering); voltages are still tracked per
	// channel.
	Output VoltageWriter

	// Store receives throttled persisted-state writes. May be nil.
	Store StateStore
}

// defaultDivisions is the repeating initial division assignment.
var defaultDivisions = []int{1, 2, 4}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.MaxVoltage <= 0 {
		return fmt.Errorf("%w: max voltage must be positive", ErrInvalidConfig)
	}

	if c.Channels < 0 {
		return fmt.Errorf("%w: channels must not be negative", ErrInvalidConfig)
	}

	if c.PatternLength < 0 || c.PatternLength > pattern.MaxStepLength {
		return fmt.Errorf("%w: pattern length must be 1-%d", ErrInvalidConfig, pattern.MaxStepLength)
	}

	for i, d := range c.Divisions {
		if d < 1 || d > engine.MaxDivision {
			return fmt.Errorf("%w: division[%d] = %d outside 1-%d", ErrInvalidConfig, i, d, engine.MaxDivision)
		}
	}

	for i, s := range c.Shapes {
		if !s.Valid() {
			return fmt.Errorf("%w: shape[%d] = %d is not a defined shape", ErrInvalidConfig, i, int(s))
		}
	}

	return nil
}

// Engine is the public facade over the slew engine core. All methods
// except ClockEdge, PressButtonA and PressButtonB must be called from a
// single goroutine (the control loop).
type Engine struct {
	core    *engine.Engine
	store   StateStore
	saveErr error
}

// New creates an engine from the configuration. All per-channel sample
// buffers are allocated here; steady-state operation allocates nothing.
func New(config *Config) (*Engine, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	channels := config.Channels
	if channels == 0 {
		channels = engine.DefaultChannels
	}

	divisions := config.Divisions
	if len(divisions) == 0 {
		divisions = make([]int, channels)
		for i := range divisions {
			divisions[i] = defaultDivisions[i%len(defaultDivisions)]
		}
	}

	e := &Engine{store: config.Store}

	core, err := engine.New(engine.Params{
		Channels:      channels,
		MaxVoltage:    config.MaxVoltage,
		Divisions:     divisions,
		Shapes:        config.Shapes,
		PatternLength: config.PatternLength,
		IntervalMs:    config.ClockIntervalMs,
		Unclocked:     config.Unclocked,
		Rand:          rand.New(rand.NewSource(seed)),
		Out:           config.Output,
		SaveFunc:      e.save,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	e.core = core
	return e, nil
}

// ClockEdge records a rising edge of the external clock. Interrupt-safe:
// it only sets atomic pending state, deferring all work to Tick.
func (e *Engine) ClockEdge(nowMs int64) {
	e.core.Control().SignalClock(nowMs)
}

// PressButtonA records a button A release held for heldMs. Interrupt
// safe. A short press cycles the selected channel's slew shape; a long
// press (2-5 s) regenerates the selected channel's pattern.
func (e *Engine) PressButtonA(heldMs int64) {
	e.core.Control().SignalButtonA(heldMs)
}

// PressButtonB records a button B release held for heldMs. Interrupt
// safe. A short press cycles the selected channel; a long press (2-5 s)
// toggles unclocked mode.
func (e *Engine) PressButtonB(heldMs int64) {
	e.core.Control().SignalButtonB(heldMs)
}

// SetKnobA applies the first knob reading (normalized 1..100): pattern
// length when clocked, free-run interval when unclocked. Loop thread
// only.
func (e *Engine) SetKnobA(reading float64) { e.core.SetKnobA(reading) }

// SetKnobB applies the second knob position (1..MaxDivision): the
// selected channel's clock division. Loop thread only.
func (e *Engine) SetKnobB(position int) { e.core.SetKnobB(position) }

// Tick runs one cooperative control-loop iteration at the given
// monotonic millisecond timestamp.
func (e *Engine) Tick(nowMs int64) { e.core.Tick(nowMs) }

// Voltage returns the most recently emitted voltage for a channel.
func (e *Engine) Voltage(channel int) float64 {
	return e.core.Channel(channel).LastVoltage()
}

// Channels returns the number of CV outputs.
func (e *Engine) Channels() int { return e.core.Channels() }

// Underruns returns a channel's consecutive underrun count: how many
// emissions past the end of the current segment have held the previous
// voltage.
func (e *Engine) Underruns(channel int) int {
	return e.core.Channel(channel).Underruns()
}

// OverrunSamples returns the overrun measured at a channel's last
// segment boundary (negative when the segment was not fully consumed).
func (e *Engine) OverrunSamples(channel int) int {
	return e.core.Channel(channel).OverrunSamples()
}

// SampleRate returns a channel's derived sample rate in samples/sec.
func (e *Engine) SampleRate(channel int) int {
	return e.core.Channel(channel).SampleRate()
}

// Division returns a channel's clock division.
func (e *Engine) Division(channel int) int {
	return e.core.Channel(channel).Division
}

// SelectedShape returns a channel's current slew shape.
func (e *Engine) SelectedShape(channel int) Shape {
	return e.core.Channel(channel).Shape
}

// Running reports whether the engine is emitting samples.
func (e *Engine) Running() bool { return e.core.Running() }

// Unclocked reports whether the engine is free-running.
func (e *Engine) Unclocked() bool { return e.core.Unclocked() }

// Selected returns the channel currently targeted by the controls.
func (e *Engine) Selected() int { return e.core.Selected() }

// PatternLength returns the shared pattern length (1 = LFO mode).
func (e *Engine) PatternLength() int { return e.core.PatternLength() }

// AverageClockMs returns the running average interval between clock
// edges.
func (e *Engine) AverageClockMs() float64 { return e.core.AverageIntervalMs() }

// ScreenRefreshNeeded reports and clears the display refresh flag.
func (e *Engine) ScreenRefreshNeeded() bool { return e.core.ScreenRefreshNeeded() }

// NewPatternIndicator reports whether the display should show the
// new-pattern indicator; it expires on its own after two clock steps.
func (e *Engine) NewPatternIndicator() bool { return e.core.NewPatternIndicator() }

// SaveErr returns the error from the most recent persisted-state write,
// if any. Save failures never interrupt the engine.
func (e *Engine) SaveErr() error { return e.saveErr }

// save is the throttled persistence hook handed to the core.
func (e *Engine) save() {
	if e.store == nil {
		return
	}
	e.saveErr = e.store.Save(e.Snapshot())
}
