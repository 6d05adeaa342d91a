package cvslew

import (
	"fmt"

	"github.com/tphakala/go-cv-slew/internal/shape"
)

// RenderSegment renders one slew segment from start to stop as a
// freshly allocated sample slice, without constructing an engine. It is
// intended for offline inspection and tooling, not for the real-time
// path, which reuses pre-allocated buffers.
//
// The returned slice holds exactly the samples the shape produced, which
// for the step shape is one fewer than requested (the engine-side buffer
// keeps a trailing settle sample there).
func RenderSegment(s Shape, start, stop float64, samples int) ([]float64, error) {
	return render(s, start, stop, samples, false)
}

// RenderLFOCycle renders one full LFO cycle between low and high: the
// rising segment followed by the falling one, each of the given length,
// using the shape's LFO-mode variant.
func RenderLFOCycle(s Shape, low, high float64, segmentSamples int) ([]float64, error) {
	rise, err := render(s, low, high, segmentSamples, true)
	if err != nil {
		return nil, err
	}
	fall, err := render(s, high, low, segmentSamples, true)
	if err != nil {
		return nil, err
	}
	return append(rise, fall...), nil
}

func render(s Shape, start, stop float64, samples int, lfoMode bool) ([]float64, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: shape %d is not defined", ErrInvalidConfig, int(s))
	}
	if samples < 0 || samples > BufferCapacity {
		return nil, fmt.Errorf("%w: sample count %d outside 0-%d", ErrInvalidConfig, samples, BufferCapacity)
	}

	buf := make([]float64, samples)
	n := shape.Fill(s, start, stop, samples, buf, lfoMode)
	return buf[:n], nil
}
