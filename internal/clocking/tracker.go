// Package clocking tracks the timing of an external clock signal.
//
// Incoming clocks are never perfectly regular: sequencers drift, cables
// glitch, and humans tap tempo. The tracker keeps a small rolling window
// of inter-edge intervals and exposes their mean, which downstream sample
// rate calculations use instead of the raw interval. A change-detection
// threshold separates genuine tempo changes from ordinary jitter so the
// engine does not thrash its sample rates on every edge.
package clocking

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// WindowLength is the number of recent inter-clock intervals averaged.
// Five values deals with wonky clocks well without lagging far behind
// genuine tempo changes.
const WindowLength = 5

// ChangeThresholdMs is the minimum deviation from the window mean, in
// milliseconds, that counts as a clock rate change rather than jitter.
const ChangeThresholdMs = 100

// Tracker maintains a rolling window of inter-clock-edge intervals.
// It is not safe for concurrent use; the engine's single control loop
// owns it.
type Tracker struct {
	window     [WindowLength]float64
	lastEdgeMs int64
	edges      int64
	maxMs      int64
}

// NewTracker returns a tracker whose window is pre-filled with the given
// initial interval (typically the persisted average from a previous run),
// so the average is usable before a full window of real edges arrives.
// Intervals recorded later are clamped to maxIntervalMs.
func NewTracker(initialIntervalMs, maxIntervalMs int64) *Tracker {
	t := &Tracker{maxMs: maxIntervalMs}
	for i := range t.window {
		t.window[i] = float64(initialIntervalMs)
	}
	return t
}

// Record notes a clock edge at nowMs and returns the interval since the
// previous edge, clamped to the tracker's maximum. The first edge has no
// reference point: it is counted but produces no interval and leaves the
// window untouched, and Record reports ok=false for it.
func (t *Tracker) Record(nowMs int64) (intervalMs float64, ok bool) {
	defer func() { t.edges++ }()

	if t.edges == 0 {
		t.lastEdgeMs = nowMs
		return 0, false
	}

	diff := nowMs - t.lastEdgeMs
	if diff > t.maxMs {
		diff = t.maxMs
	}
	t.lastEdgeMs = nowMs

	t.window[t.edges%WindowLength] = float64(diff)
	return float64(diff), true
}

// Average returns the arithmetic mean of the interval window.
func (t *Tracker) Average() float64 {
	return stat.Mean(t.window[:], nil)
}

// ShouldRecalculate reports whether the given interval deviates from the
// supplied running average by more than the change threshold. It stays
// false until a full window of real intervals has been recorded (the
// first edge produces none), so startup transients and leftover seed
// values never trigger recalculation.
func (t *Tracker) ShouldRecalculate(intervalMs, averageMs float64) bool {
	if t.edges <= WindowLength {
		return false
	}
	return math.Abs(intervalMs-averageMs) > ChangeThresholdMs
}

// Edges returns the number of edges recorded, including the discarded
// first one.
func (t *Tracker) Edges() int64 { return t.edges }

// LastEdgeMs returns the timestamp of the most recent recorded edge.
func (t *Tracker) LastEdgeMs() int64 { return t.lastEdgeMs }

// Reset clears the edge history but keeps the current window contents,
// so the learned tempo survives a clock dropout.
func (t *Tracker) Reset() {
	t.edges = 0
	t.lastEdgeMs = 0
}
