// Package cvslew drives multiple continuous control-voltage outputs of a
// clocked modular-synthesizer module, interpolating between the steps of
// a random CV pattern (or between two voltage extremes in LFO mode) with
// a library of slew shapes.
//
// The hard problem the engine solves is real-time waveform generation
// under a jittery, externally supplied clock with a fixed memory budget:
// for every division-aligned clock edge it computes how many samples the
// next segment needs, renders them into a pre-allocated per-channel
// buffer, and plays them back at an adaptively derived sample rate. A
// slow clock causes buffer underrun (the previous voltage is held), a
// fast or irregular clock causes overrun (the overshoot is fed back into
// the next segment's sample budget), so timing error stays bounded and
// self-correcting rather than accumulating.
//
// # Quick start
//
//	cfg := &cvslew.Config{
//	    MaxVoltage: 10,
//	    Output:     myDAC, // implements cvslew.VoltageWriter
//	}
//	eng, err := cvslew.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// From the clock-input interrupt:
//	eng.ClockEdge(nowMs)
//
//	// From the main loop, as often as possible:
//	eng.Tick(nowMs)
//
// The engine never blocks and performs no allocation in steady state;
// Tick is a cooperative time-slice that drains pending interrupt flags,
// regenerates segments on clock boundaries and emits due samples.
//
// # Collaborators
//
// Hardware and platform concerns stay outside the engine: voltages are
// written through the [VoltageWriter] interface, persisted configuration
// goes through [StateStore] (writes are throttled and deferred out of
// time-critical sections), and the display reads the screen-refresh and
// new-pattern indicator flags. Button presses arrive pre-classified by
// held duration; knob readings arrive normalized.
//
// For one-shot rendering of a slew curve without an engine, see
// [RenderSegment] and [RenderLFOCycle].
package cvslew
