package engine

import "sync/atomic"

// Control is the bridge between interrupt-context signal handlers and the
// engine's single control loop. Handlers do the minimum possible work:
// they set a pending flag and record a timestamp, and the loop drains
// them. Each field has exactly one writer side (the handler) and one
// reader-and-clearer side (the loop), so word-level atomicity is the only
// synchronization required.
type Control struct {
	running atomic.Bool

	clockPending atomic.Bool
	lastEdgeMs   atomic.Int64

	unclocked atomic.Bool

	buttonAPending atomic.Bool
	buttonAPressMs atomic.Int64

	buttonBPending atomic.Bool
	buttonBPressMs atomic.Int64
}

// SignalClock records a rising clock edge. Safe to call from interrupt
// context. In unclocked mode the edge still marks the engine running but
// is not queued for processing.
func (c *Control) SignalClock(nowMs int64) {
	c.running.Store(true)
	c.lastEdgeMs.Store(nowMs)
	if !c.unclocked.Load() {
		c.clockPending.Store(true)
	}
}

// SignalButtonA records a button A release with the given held duration.
// Safe to call from interrupt context.
func (c *Control) SignalButtonA(heldMs int64) {
	c.buttonAPressMs.Store(heldMs)
	c.buttonAPending.Store(true)
}

// SignalButtonB records a button B release with the given held duration.
// Safe to call from interrupt context.
func (c *Control) SignalButtonB(heldMs int64) {
	c.buttonBPressMs.Store(heldMs)
	c.buttonBPending.Store(true)
}

// TakeClock consumes a pending clock event, reporting whether one was
// queued and the timestamp of the most recent edge. Loop side only.
func (c *Control) TakeClock() (edgeMs int64, ok bool) {
	if !c.clockPending.Load() {
		return 0, false
	}
	c.clockPending.Store(false)
	return c.lastEdgeMs.Load(), true
}

// TakeButtonA consumes a pending button A event. Loop side only.
func (c *Control) TakeButtonA() (heldMs int64, ok bool) {
	if !c.buttonAPending.Load() {
		return 0, false
	}
	c.buttonAPending.Store(false)
	return c.buttonAPressMs.Load(), true
}

// TakeButtonB consumes a pending button B event. Loop side only.
func (c *Control) TakeButtonB() (heldMs int64, ok bool) {
	if !c.buttonBPending.Load() {
		return 0, false
	}
	c.buttonBPending.Store(false)
	return c.buttonBPressMs.Load(), true
}

// LastEdgeMs returns the timestamp of the most recent clock edge.
func (c *Control) LastEdgeMs() int64 { return c.lastEdgeMs.Load() }

// Running reports whether the engine has been clocked into the running
// state.
func (c *Control) Running() bool { return c.running.Load() }

func (c *Control) setRunning(v bool) { c.running.Store(v) }

// Unclocked reports whether the engine free-runs from its internal
// interval instead of the external clock.
func (c *Control) Unclocked() bool { return c.unclocked.Load() }

func (c *Control) setUnclocked(v bool) { c.unclocked.Store(v) }
