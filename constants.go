package cvslew

import (
	"github.com/tphakala/go-cv-slew/internal/engine"
	"github.com/tphakala/go-cv-slew/internal/pattern"
)

// Engine limits, re-exported for collaborators that size their own
// resources against them.
const (
	// MinClockMs is the shortest supported interval between clock edges.
	MinClockMs = engine.MinClockMs

	// MaxClockMs is the longest interval between clock edges; it also
	// serves as the silence reset timeout.
	MaxClockMs = engine.MaxClockMs

	// MaxSampleRate is the per-channel sample rate ceiling.
	MaxSampleRate = engine.MaxSampleRate

	// MaxDivision is the coarsest per-channel clock division.
	MaxDivision = engine.MaxDivision

	// MaxStepLength is the maximum pattern length in steps.
	MaxStepLength = pattern.MaxStepLength

	// BufferCapacity is the fixed per-channel sample buffer size.
	BufferCapacity = engine.BufferCapacity

	// DefaultChannels is the channel count used when Config.Channels
	// is zero.
	DefaultChannels = engine.DefaultChannels
)
