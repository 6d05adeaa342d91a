// Package pattern stores and generates the per-channel CV patterns the
// step engine walks through.
//
// A pattern is an ordered sequence of target voltages, one per clock step.
// Each output channel owns a bank of patterns; banks never alias each
// other, so regenerating one channel's pattern cannot disturb another's.
// The data structure supports multiple patterns per bank, though memory
// constraints on the target hardware keep a single pattern active.
package pattern

import (
	"fmt"
	"math"
	"math/rand"
)

// MaxStepLength is the maximum number of steps in a pattern.
const MaxStepLength = 32

// valueScale rounds generated voltages to 3 decimal places, the precision
// the outputs can meaningfully resolve.
const valueScale = 1e3

// ErrInvalidLength indicates a pattern length outside 1..MaxStepLength.
var ErrInvalidLength = fmt.Errorf("pattern length must be 1..%d", MaxStepLength)

// Pattern is an ordered sequence of CV values.
type Pattern []float64

// Clone returns an independent copy of the pattern.
func (p Pattern) Clone() Pattern {
	out := make(Pattern, len(p))
	copy(out, p)
	return out
}

// Generate draws length values uniformly from [minV, maxV], rounded to
// 3 decimal places.
func Generate(rng *rand.Rand, length int, minV, maxV float64) (Pattern, error) {
	if length < 1 || length > MaxStepLength {
		return nil, ErrInvalidLength
	}
	p := make(Pattern, length)
	for i := range p {
		v := minV + rng.Float64()*(maxV-minV)
		p[i] = math.Round(v*valueScale) / valueScale
	}
	return p, nil
}

// Bank holds the patterns for every output channel. The outer index is
// the channel, the middle index the pattern slot within that channel's
// bank.
type Bank struct {
	patterns [][]Pattern
	rng      *rand.Rand
	maxV     float64
}

// NewBank creates a bank with one random pattern of MaxStepLength steps
// per channel, with values in [0, maxVoltage].
func NewBank(rng *rand.Rand, channels int, maxVoltage float64) (*Bank, error) {
	b := &Bank{
		patterns: make([][]Pattern, channels),
		rng:      rng,
		maxV:     maxVoltage,
	}
	for ch := range b.patterns {
		p, err := Generate(rng, MaxStepLength, 0, maxVoltage)
		if err != nil {
			return nil, err
		}
		b.patterns[ch] = []Pattern{p}
	}
	return b, nil
}

// Channels returns the number of channels in the bank.
func (b *Bank) Channels() int { return len(b.patterns) }

// Patterns returns the number of pattern slots in a channel's bank.
func (b *Bank) Patterns() int {
	if len(b.patterns) == 0 {
		return 0
	}
	return len(b.patterns[0])
}

// Value returns the voltage at the given channel, pattern slot and step.
func (b *Bank) Value(channel, slot, step int) float64 {
	return b.patterns[channel][slot][step]
}

// Regenerate replaces the pattern in the given slot for one channel, or
// for every channel when channel is negative. On failure the previous
// patterns are retained untouched and the error is reported to the
// caller, who treats it as non-fatal.
func (b *Bank) Regenerate(channel, slot int) error {
	fill := func(ch int) error {
		p, err := Generate(b.rng, MaxStepLength, 0, b.maxV)
		if err != nil {
			return err
		}
		b.patterns[ch][slot] = p
		return nil
	}
	if channel >= 0 {
		return fill(channel)
	}
	for ch := range b.patterns {
		if err := fill(ch); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot returns a deep copy of the bank contents for persistence.
func (b *Bank) Snapshot() [][][]float64 {
	out := make([][][]float64, len(b.patterns))
	for ch, slots := range b.patterns {
		out[ch] = make([][]float64, len(slots))
		for s, p := range slots {
			out[ch][s] = p.Clone()
		}
	}
	return out
}

// Restore replaces the bank contents with a previously persisted
// snapshot. Channels or slots missing from the snapshot keep their
// current contents, and extra ones are ignored. Saved patterns that are
// not exactly MaxStepLength steps long are skipped too: the step engine
// may index any step up to the active pattern length, so a truncated
// blob must never shrink a pattern.
func (b *Bank) Restore(saved [][][]float64) {
	for ch := range b.patterns {
		if ch >= len(saved) {
			return
		}
		for s := range b.patterns[ch] {
			if s >= len(saved[ch]) || len(saved[ch][s]) != MaxStepLength {
				continue
			}
			b.patterns[ch][s] = Pattern(saved[ch][s]).Clone()
		}
	}
}
