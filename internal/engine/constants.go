package engine

// Clock timing limits.
const (
	// MinClockMs is the shortest supported interval between incoming
	// clock edges. Faster clocks than this cannot be serviced reliably
	// by the control loop.
	MinClockMs = 50

	// MaxClockMs is the longest interval between clock edges. Intervals
	// are clamped here; it also serves as the silence timeout after
	// which the engine resets, and it bounds worst-case buffer sizing.
	MaxClockMs = 3750
)

// Sample rate and division ceilings. Together with MaxClockMs these keep
// the worst-case per-channel buffer within the fixed memory budget.
const (
	// MaxSampleRate is the global ceiling on per-channel samples per
	// second.
	MaxSampleRate = 32

	// MaxDivision is the coarsest clock division a channel may select.
	MaxDivision = 8
)

// BufferCapacity is the fixed per-channel sample buffer size, sized for
// the worst case: the slowest clock, the highest sample rate and the
// coarsest division. Buffers are allocated once and never resized.
const BufferCapacity = MaxClockMs * MaxSampleRate * MaxDivision / 1000

// Defaults applied when no persisted state is available.
const (
	// DefaultChannels is the number of CV outputs.
	DefaultChannels = 6

	// DefaultIntervalMs seeds the clock interval window before any real
	// edges arrive (roughly 16th notes at 123 BPM).
	DefaultIntervalMs = 976

	// DefaultPatternLength is the initial number of steps per pattern.
	DefaultPatternLength = 8
)

// Control surface constants.
const (
	// KnobChangeTolerance suppresses knob hysteresis: a reading must
	// move by more than this before it takes effect.
	KnobChangeTolerance = 0.999

	// KnobRange is the normalized span of a knob reading.
	KnobRange = 100

	// LongPressMs and LongPressMaxMs bound the press duration that
	// classifies as a long press.
	LongPressMs    = 2000
	LongPressMaxMs = 5000
)

// Housekeeping intervals.
const (
	// MinMsBetweenSaves throttles persisted-state writes so storage I/O
	// never lands inside time-critical sections back to back.
	MinMsBetweenSaves = 2000

	// newPatternIndicatorSteps is how many clock steps the new-pattern
	// indicator stays visible.
	newPatternIndicatorSteps = 2
)
