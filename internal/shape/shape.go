// Package shape implements the slew shape library: pure functions that fill
// a sample buffer with an interpolated transition between two CV values.
//
// Every shape is symmetric: it produces a sensible curve whether the segment
// rises (start <= stop) or falls (start > stop), selected by branching on
// that comparison. Shapes never write past the requested sample count and
// treat a count of zero as a no-op.
package shape

import "math"

// Shape selects one of the slew transition curves.
type Shape int

const (
	// StepUpStepDown is an instantaneous jump to the target value.
	// Channels using it normally bypass the sample buffer entirely
	// (see the playback driver); the buffer variant exists for
	// completeness and for LFO mode, where it produces a square wave.
	StepUpStepDown Shape = iota

	// Linear interpolates in equal increments (a triangle in LFO mode).
	Linear

	// Smooth traces half a cosine period for an S-shaped transition.
	Smooth

	// ExpUpExpDown uses quarter-cosine segments for a pointy exponential
	// rise and fall.
	ExpUpExpDown

	// SharkTooth approximates a logarithmic rise and exponential fall.
	SharkTooth

	// SharkToothReverse is the mirror of SharkTooth.
	SharkToothReverse

	// LogUpStepDown ramps up along an approximate log curve and drops
	// instantly.
	LogUpStepDown

	// StepUpExpDown jumps up instantly and decays along an approximate
	// exponential curve.
	StepUpExpDown

	numShapes
)

// Count returns the number of available shapes.
func Count() int { return int(numShapes) }

// Next cycles to the following shape, wrapping after the last one.
func (s Shape) Next() Shape { return (s + 1) % numShapes }

// Valid reports whether s names one of the defined shapes.
func (s Shape) Valid() bool { return s >= 0 && s < numShapes }

// String returns a short human-readable shape name.
func (s Shape) String() string {
	switch s {
	case StepUpStepDown:
		return "step"
	case Linear:
		return "linear"
	case Smooth:
		return "smooth"
	case ExpUpExpDown:
		return "expUpExpDown"
	case SharkTooth:
		return "sharkTooth"
	case SharkToothReverse:
		return "sharkToothRev"
	case LogUpStepDown:
		return "logUpStepDown"
	case StepUpExpDown:
		return "stepUpExpDown"
	default:
		return "unknown"
	}
}

// Cosine segment fractions: half a period for the smooth shape, a quarter
// period for the pointy shapes.
const (
	halfCycle    = 0.5
	quarterCycle = 0.25
)

// roundScale rounds cosine-derived samples to 4 decimal places, matching
// the precision of the stored pattern values closely enough that segment
// endpoints line up.
const roundScale = 1e4

// Fill renders n samples of the transition from start to stop into buf
// using the selected shape, and returns the number of samples written.
//
// n is clamped to len(buf); a non-positive n writes nothing. lfoMode
// selects the full-cycle variants of the step shapes used when the
// pattern length is 1.
//
// The step shape outside LFO mode writes only n-1 samples, leaving one
// trailing slot holding a stale sample from the previous segment.
// Square channels are emitted directly rather than from the buffer, so
// the stale slot is never played.
func Fill(s Shape, start, stop float64, n int, buf []float64, lfoMode bool) int {
	if n <= 0 || len(buf) == 0 {
		return 0
	}
	if n > len(buf) {
		n = len(buf)
	}

	switch s {
	case StepUpStepDown:
		return fillStep(start, stop, n, buf, lfoMode)
	case Linear:
		return fillLinear(start, stop, n, buf)
	case Smooth:
		return fillSmooth(start, stop, n, buf)
	case ExpUpExpDown:
		return fillExpUpExpDown(start, stop, n, buf)
	case SharkTooth:
		return fillSharkTooth(start, stop, n, buf)
	case SharkToothReverse:
		return fillSharkToothReverse(start, stop, n, buf)
	case LogUpStepDown:
		return fillLogUpStepDown(start, stop, n, buf, lfoMode)
	case StepUpExpDown:
		return fillStepUpExpDown(start, stop, n, buf)
	default:
		return 0
	}
}

// fillStep writes an instantaneous transition. In LFO mode the first half
// of the segment holds start and the second half holds stop, completing a
// full square cycle. Otherwise it holds stop for n-1 samples (see Fill).
func fillStep(start, stop float64, n int, buf []float64, lfoMode bool) int {
	c := 0
	if lfoMode {
		half := n / 2
		for i := 0; i < half; i++ {
			buf[c] = start
			c++
		}
		for i := 0; i < half; i++ {
			buf[c] = stop
			c++
		}
		return c
	}
	for i := 0; i < n-1; i++ {
		buf[c] = stop
		c++
	}
	return c
}

// fillLinear writes evenly spaced values from start toward stop.
// buf[0] always equals start; stop itself is the first sample of the
// following segment.
func fillLinear(start, stop float64, n int, buf []float64) int {
	div := n
	if div < 1 {
		div = 1
	}
	diff := (stop - start) / float64(div)
	for i := 0; i < n; i++ {
		buf[i] = start + diff*float64(i)
	}
	return n
}

// cosSegment writes n samples of amplitude*(1+cos) starting at the given
// phase offset (in samples of the same period), shifted by level.
func cosSegment(amplitude, level float64, phaseOffset, cycle float64, n int, buf []float64) {
	for i := 0; i < n; i++ {
		p := float64(i) + phaseOffset
		v := amplitude + amplitude*math.Cos(2*math.Pi*cycle*p/float64(n))
		buf[i] = math.Round((v+level)*roundScale) / roundScale
	}
}

// fillSmooth traces half a cosine period from start to stop.
// For start == stop the amplitude is zero and every sample equals start.
func fillSmooth(start, stop float64, n int, buf []float64) int {
	amplitude := math.Abs(stop-start) / 2
	if start <= stop {
		// Begin at the cosine trough so the curve rises from start.
		cosSegment(amplitude, start, float64(n), halfCycle, n, buf)
	} else {
		// Begin at the crest so the curve falls toward stop.
		cosSegment(amplitude, stop, 0, halfCycle, n, buf)
	}
	return n
}

// fillExpUpExpDown traces a quarter cosine period, giving a steep
// move that eases into the target.
func fillExpUpExpDown(start, stop float64, n int, buf []float64) int {
	amplitude := math.Abs(stop - start)
	if start <= stop {
		cosSegment(amplitude, start, float64(2*n), quarterCycle, n, buf)
	} else {
		cosSegment(amplitude, stop, float64(n), quarterCycle, n, buf)
	}
	return n
}

// fillSharkTooth approximates a log rise / exponential fall using quarter
// cosine segments with shifted phase.
func fillSharkTooth(start, stop float64, n int, buf []float64) int {
	amplitude := math.Abs(stop - start)
	if start <= stop {
		cosSegment(amplitude, start-amplitude, float64(3*n), quarterCycle, n, buf)
	} else {
		cosSegment(amplitude, stop, float64(n), quarterCycle, n, buf)
	}
	return n
}

// fillSharkToothReverse is the mirrored sharktooth: exponential rise,
// approximate log fall.
func fillSharkToothReverse(start, stop float64, n int, buf []float64) int {
	amplitude := math.Abs(stop - start)
	if start <= stop {
		cosSegment(amplitude, start, float64(2*n), quarterCycle, n, buf)
	} else {
		cosSegment(amplitude, stop-amplitude, 0, quarterCycle, n, buf)
	}
	return n
}

// hyperbolic evaluates the 1 - (stop-start)/i + (stop-1) ramp used by the
// single-direction shapes, with i clamped to 1 to avoid dividing by zero.
func hyperbolic(start, stop float64, i int) float64 {
	if i < 1 {
		i = 1
	}
	return 1 - (stop-start)/float64(i) + (stop - 1)
}

// fillLogUpStepDown ramps up along an approximate log curve when the
// segment rises, and holds stop otherwise. In LFO mode the first half of
// the segment carries the ramp and the second half holds stop, so the
// drop lands mid-cycle.
func fillLogUpStepDown(start, stop float64, n int, buf []float64, lfoMode bool) int {
	c := 0
	if lfoMode {
		half := n / 2
		for i := 0; i < half; i++ {
			buf[c] = hyperbolic(start, stop, i)
			c++
		}
		for i := 0; i < half; i++ {
			buf[c] = stop
			c++
		}
		return c
	}
	if stop >= start {
		for i := 0; i < n; i++ {
			buf[c] = hyperbolic(start, stop, i)
			c++
		}
	} else {
		for i := 0; i < n; i++ {
			buf[c] = stop
			c++
		}
	}
	return c
}

// fillStepUpExpDown decays along the hyperbolic ramp when the segment
// falls, and holds stop (an instant jump) otherwise.
func fillStepUpExpDown(start, stop float64, n int, buf []float64) int {
	c := 0
	if stop <= start {
		for i := 0; i < n; i++ {
			buf[c] = hyperbolic(start, stop, i)
			c++
		}
	} else {
		for i := 0; i < n; i++ {
			buf[c] = stop
			c++
		}
	}
	return c
}
