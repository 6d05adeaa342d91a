package engine

import "github.com/tphakala/go-cv-slew/internal/shape"

// Channel is the complete state of one CV output. It is owned exclusively
// by the engine's control loop: the step engine rewrites the buffer and
// step indices on division-aligned clock edges, and the playback driver
// advances the cursor between them.
type Channel struct {
	// Division is how many incoming clock edges make up one step for
	// this output (1..MaxDivision).
	Division int

	// Shape selects the slew transition curve.
	Shape shape.Shape

	// Pattern walk state.
	step     int
	nextStep int

	// flipFlop toggles on every division-aligned edge and selects which
	// voltage extreme an LFO cycle moves toward.
	flipFlop bool

	// Segment buffer and playback cursor. buf is allocated once at
	// BufferCapacity and overwritten in place each segment.
	buf           []float64
	cursor        int
	targetSamples int

	// sampleOffset accumulates the overrun feedback correction that is
	// subtracted from the next segment's target sample count.
	sampleOffset   int
	overrunSamples int
	underruns      int

	// Derived playback cadence.
	sampleRate    int
	sampleDelayMs int64
	lastEmitMs    int64

	// lastVoltage is held on the output during buffer underrun.
	lastVoltage float64

	// squareOutput is the precomputed level for step-shape channels,
	// which bypass the sample buffer.
	squareOutput float64
}

func newChannel(division int, sh shape.Shape) *Channel {
	return &Channel{
		Division: division,
		Shape:    sh,
		buf:      make([]float64, BufferCapacity),
	}
}

// Step returns the channel's current pattern step index.
func (ch *Channel) Step() int { return ch.step }

// Cursor returns the playback position within the current segment.
func (ch *Channel) Cursor() int { return ch.cursor }

// TargetSamples returns the number of samples planned for the current
// segment.
func (ch *Channel) TargetSamples() int { return ch.targetSamples }

// SampleRate returns the channel's derived sample rate in samples/sec.
func (ch *Channel) SampleRate() int { return ch.sampleRate }

// SampleDelayMs returns the derived interval between emitted samples.
func (ch *Channel) SampleDelayMs() int64 { return ch.sampleDelayMs }

// Underruns returns the count of consecutive underrun emissions.
func (ch *Channel) Underruns() int { return ch.underruns }

// OverrunSamples returns the overrun measured at the last segment
// boundary.
func (ch *Channel) OverrunSamples() int { return ch.overrunSamples }

// SampleOffset returns the accumulated overrun correction.
func (ch *Channel) SampleOffset() int { return ch.sampleOffset }

// LastVoltage returns the most recently emitted voltage.
func (ch *Channel) LastVoltage() float64 { return ch.lastVoltage }

// Samples returns the live segment samples (the filled prefix of the
// channel's buffer). The slice aliases engine-owned memory and is only
// valid until the next clock step.
func (ch *Channel) Samples() []float64 {
	n := ch.targetSamples
	if n < 0 {
		n = 0
	}
	if n > len(ch.buf) {
		n = len(ch.buf)
	}
	return ch.buf[:n]
}

// resetPlayback clears playback and correction state, keeping the
// channel's configuration.
func (ch *Channel) resetPlayback() {
	ch.cursor = 0
	ch.underruns = 0
	ch.overrunSamples = 0
	ch.sampleOffset = 0
}
