package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-cv-slew/internal/clocking"
	"github.com/tphakala/go-cv-slew/internal/shape"
)

// fakeWriter records voltages driven through the VoltageWriter interface.
type fakeWriter struct {
	volts []float64
	sets  []int
	offs  []int
}

func newFakeWriter(channels int) *fakeWriter {
	return &fakeWriter{volts: make([]float64, channels)}
}

func (w *fakeWriter) SetVoltage(channel int, volts float64) {
	w.volts[channel] = volts
	w.sets = append(w.sets, channel)
}

func (w *fakeWriter) Off(channel int) {
	w.volts[channel] = 0
	w.offs = append(w.offs, channel)
}

func newTestEngine(t *testing.T, p Params) (*Engine, *fakeWriter) {
	t.Helper()
	if p.Channels == 0 {
		p.Channels = DefaultChannels
	}
	if p.MaxVoltage == 0 {
		p.MaxVoltage = 10
	}
	if p.Rand == nil {
		p.Rand = rand.New(rand.NewSource(1))
	}
	w := newFakeWriter(p.Channels)
	if p.Out == nil {
		p.Out = w
	}
	e, err := New(p)
	require.NoError(t, err)
	return e, w
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Params{MaxVoltage: 0, Rand: rand.New(rand.NewSource(1))})
	assert.Error(t, err, "zero max voltage must be rejected")

	_, err = New(Params{MaxVoltage: 10})
	assert.Error(t, err, "missing random source must be rejected")

	_, err = New(Params{MaxVoltage: 10, PatternLength: 33, Rand: rand.New(rand.NewSource(1))})
	assert.Error(t, err, "oversized pattern length must be rejected")
}

func TestNew_AllocatesFullBuffers(t *testing.T) {
	e, _ := newTestEngine(t, Params{})
	for i := 0; i < e.Channels(); i++ {
		assert.Len(t, e.Channel(i).buf, BufferCapacity)
	}
}

func TestRecalculate_RateScalesInverselyWithDivision(t *testing.T) {
	e, _ := newTestEngine(t, Params{
		Divisions: []int{1, 2, 4, 8, 8, 8},
	})
	e.SetAverageIntervalMs(MaxClockMs)

	prev := MaxSampleRate + 1
	for _, idx := range []int{0, 1, 2, 3} {
		rate := e.Channel(idx).SampleRate()
		assert.LessOrEqual(t, rate, MaxSampleRate)
		assert.GreaterOrEqual(t, rate, 1)
		assert.LessOrEqual(t, rate, prev,
			"rate must not increase with a coarser division")
		prev = rate
	}

	// With the slowest possible clock the formula is exact:
	// 2 * (32/div) * (3750/3750).
	assert.Equal(t, 32, e.Channel(0).SampleRate())
	assert.Equal(t, 32, e.Channel(1).SampleRate())
	assert.Equal(t, 16, e.Channel(2).SampleRate())
	assert.Equal(t, 8, e.Channel(3).SampleRate())
}

func TestRecalculate_SampleDelayFloors(t *testing.T) {
	e, _ := newTestEngine(t, Params{Divisions: []int{1}})
	e.SetAverageIntervalMs(MaxClockMs)
	// 1000 / 32 = 31.25, floored.
	assert.Equal(t, int64(31), e.Channel(0).SampleDelayMs())
}

func TestTargetSampleCount_ClampedToCapacity(t *testing.T) {
	e, _ := newTestEngine(t, Params{Divisions: []int{8}})
	e.SetAverageIntervalMs(MaxClockMs)

	ch := e.Channel(0)
	ch.sampleOffset = -100000
	assert.Equal(t, BufferCapacity, e.targetSampleCount(ch))
}

func TestHandleClockStep_AdvancesPatternSteps(t *testing.T) {
	e, _ := newTestEngine(t, Params{Divisions: []int{1, 1, 1, 1, 1, 1}})

	e.handleClockStep()
	for i := 0; i < e.Channels(); i++ {
		assert.Equal(t, 1, e.Channel(i).Step())
		assert.Equal(t, 2, e.Channel(i).nextStep)
	}
}

func TestHandleClockStep_RespectsDivision(t *testing.T) {
	e, _ := newTestEngine(t, Params{Divisions: []int{1, 4}, Channels: 2})

	for step := 0; step < 4; step++ {
		e.handleClockStep()
		e.clockStep++
	}

	assert.Equal(t, 4%e.patternLength, e.Channel(0).Step(), "division 1 steps every clock")
	assert.Equal(t, 1, e.Channel(1).Step(), "division 4 steps only on aligned clocks")
}

func TestHandleClockStep_StepWraps(t *testing.T) {
	e, _ := newTestEngine(t, Params{Divisions: []int{1}, Channels: 1, PatternLength: 4})

	for i := 0; i < 4; i++ {
		e.handleClockStep()
		e.clockStep++
	}
	assert.Equal(t, 0, e.Channel(0).Step())
}

func TestLFOMode_SquareAlternatesExtremes(t *testing.T) {
	e, _ := newTestEngine(t, Params{
		Channels:      1,
		Divisions:     []int{1},
		Shapes:        []shape.Shape{shape.StepUpStepDown},
		PatternLength: 1,
	})

	e.handleClockStep()
	first := e.Channel(0).squareOutput
	e.clockStep++
	e.handleClockStep()
	second := e.Channel(0).squareOutput

	assert.ElementsMatch(t, []float64{0, 10}, []float64{first, second},
		"square LFO must swing between the voltage extremes")
	assert.NotEqual(t, first, second)
}

func TestLFOMode_SlewedSegmentSpansExtremes(t *testing.T) {
	e, _ := newTestEngine(t, Params{
		Channels:      1,
		Divisions:     []int{1},
		Shapes:        []shape.Shape{shape.Linear},
		PatternLength: 1,
	})
	e.SetAverageIntervalMs(1000)

	e.handleClockStep()
	ch := e.Channel(0)
	require.Positive(t, ch.TargetSamples())
	samples := ch.Samples()
	// Rising from one extreme toward the other.
	assert.InDelta(t, 10.0, samples[0], 1e-9)
	assert.Greater(t, samples[0], samples[len(samples)-1])
}

func TestOverrunFeedback_FoldsIntoNextTarget(t *testing.T) {
	e, _ := newTestEngine(t, Params{Channels: 1, Divisions: []int{1}, Shapes: []shape.Shape{shape.Linear}})
	e.SetAverageIntervalMs(1000)

	ch := e.Channel(0)
	e.clockStep = clocking.WindowLength + 1

	base := e.targetSampleCount(ch)

	// Previous segment consumed 3 emission slots past its target.
	ch.targetSamples = base
	ch.cursor = base + 3

	e.handleClockStep()

	assert.Equal(t, 3, ch.OverrunSamples())
	assert.Equal(t, -3, ch.SampleOffset())
	assert.Equal(t, base+3, ch.TargetSamples(),
		"the consumed overshoot must be folded into the next segment's budget")
}

func TestOverrunFeedback_ConvergesOverRepeatedCycles(t *testing.T) {
	e, _ := newTestEngine(t, Params{Channels: 1, Divisions: []int{1}, Shapes: []shape.Shape{shape.Linear}})
	e.SetAverageIntervalMs(1000)

	ch := e.Channel(0)
	e.clockStep = clocking.WindowLength + 1
	base := e.targetSampleCount(ch)

	// The loop consistently emits base+3 slots per segment. After the
	// first correction the target matches consumption and the offset
	// stops drifting.
	consumed := base + 3
	ch.targetSamples = base
	for cycle := 0; cycle < 5; cycle++ {
		ch.cursor = consumed
		e.handleClockStep()
		e.clockStep++
	}

	assert.Equal(t, consumed, ch.TargetSamples())
	assert.Equal(t, -3, ch.SampleOffset(), "correction must not accumulate without bound")
}

func TestOverrunFeedback_DisabledEarlyAndUnclocked(t *testing.T) {
	e, _ := newTestEngine(t, Params{Channels: 1, Divisions: []int{1}})
	ch := e.Channel(0)

	// Too few clocks observed: the offset must stay cleared.
	e.clockStep = 2
	ch.sampleOffset = -7
	ch.cursor = 50
	ch.targetSamples = 10
	e.handleClockStep()
	assert.Zero(t, ch.SampleOffset())

	// Unclocked mode: no external clock to correct against.
	e.ctrl.setUnclocked(true)
	e.clockStep = clocking.WindowLength + 1
	ch.sampleOffset = -7
	e.handleClockStep()
	assert.Zero(t, ch.SampleOffset())
}

func TestProcessClockEdge_RecalculatesOnRateChange(t *testing.T) {
	e, _ := newTestEngine(t, Params{Channels: 1, Divisions: []int{8}, IntervalMs: 200})

	// Feed a steady 200 ms clock to fill the window.
	now := int64(0)
	for i := 0; i < clocking.WindowLength+2; i++ {
		e.processClockEdge(now)
		now += 200
	}
	fastRate := e.Channel(0).SampleRate()

	// Drop to a much slower clock; the average shifts and the sample
	// rate comes down with it.
	for i := 0; i < clocking.WindowLength+1; i++ {
		now += 3000
		e.processClockEdge(now)
	}

	assert.Less(t, e.Channel(0).SampleRate(), fastRate)
	assert.Greater(t, e.AverageIntervalMs(), 200.0)
}

func TestTick_DrainsPendingClockOnce(t *testing.T) {
	e, _ := newTestEngine(t, Params{Channels: 1, Divisions: []int{1}})

	e.Control().SignalClock(0)
	e.Tick(0)
	assert.Equal(t, int64(1), e.ClockStep())

	e.Tick(1)
	assert.Equal(t, int64(1), e.ClockStep(), "a drained clock event must not reprocess")
}

func TestReset_AfterClockSilence(t *testing.T) {
	e, w := newTestEngine(t, Params{Channels: 2, Divisions: []int{1, 1}})

	now := int64(0)
	for i := 0; i < 3; i++ {
		e.Control().SignalClock(now)
		e.Tick(now)
		now += 100
	}
	require.True(t, e.Running())
	require.NotZero(t, e.Channel(0).Step())

	// Silence past the reset timeout.
	e.Tick(now + MaxClockMs + 1)

	assert.False(t, e.Running())
	for i := 0; i < e.Channels(); i++ {
		ch := e.Channel(i)
		assert.Zero(t, ch.Step(), "channel %d step not reset", i)
		assert.Zero(t, ch.Cursor())
		assert.Zero(t, ch.Underruns())
		assert.Zero(t, ch.SampleOffset())
	}
	assert.ElementsMatch(t, []int{0, 1}, w.offs, "all outputs must be silenced")
	assert.True(t, e.ScreenRefreshNeeded())
}

func TestReset_NotInUnclockedMode(t *testing.T) {
	e, _ := newTestEngine(t, Params{Channels: 1, Divisions: []int{1}, Unclocked: true, IntervalMs: 100})

	e.Tick(100)
	require.True(t, e.Running())

	e.Tick(100 + MaxClockMs + 1)
	assert.True(t, e.Running(), "free-running mode never resets on silence")
}

func TestUnclocked_SelfClocksAtInterval(t *testing.T) {
	e, _ := newTestEngine(t, Params{Channels: 1, Divisions: []int{1}, Unclocked: true, IntervalMs: 100})

	e.Tick(0)
	assert.Zero(t, e.ClockStep())

	e.Tick(100)
	assert.Equal(t, int64(1), e.ClockStep())

	e.Tick(150)
	assert.Equal(t, int64(1), e.ClockStep())

	e.Tick(200)
	assert.Equal(t, int64(2), e.ClockStep())
}

func TestButtonA_ShortPressCyclesShape(t *testing.T) {
	e, _ := newTestEngine(t, Params{Channels: 1, Divisions: []int{1}})
	require.Equal(t, shape.StepUpStepDown, e.Channel(0).Shape)

	e.Control().SignalButtonA(300)
	e.Tick(0)

	assert.Equal(t, shape.Linear, e.Channel(0).Shape)
}

func TestButtonA_LongPressRegeneratesPattern(t *testing.T) {
	e, _ := newTestEngine(t, Params{Channels: 2, Divisions: []int{1, 1}})
	before := e.Bank().Snapshot()

	e.Control().SignalButtonA(3000)
	e.Tick(0)

	after := e.Bank().Snapshot()
	assert.NotEqual(t, before[0], after[0], "selected channel must get a fresh pattern")
	assert.Equal(t, before[1], after[1], "other channels keep their patterns")
	assert.True(t, e.NewPatternIndicator())
}

func TestNewPatternIndicator_ExpiresAfterTwoSteps(t *testing.T) {
	e, _ := newTestEngine(t, Params{Channels: 1, Divisions: []int{1}})

	e.Control().SignalButtonA(3000)
	e.Tick(0)
	require.True(t, e.NewPatternIndicator())

	for i := 0; i < 3; i++ {
		e.handleClockStep()
		e.clockStep++
	}
	e.handleClockStep()
	assert.False(t, e.NewPatternIndicator())
}

func TestButtonB_ShortPressCyclesSelected(t *testing.T) {
	e, _ := newTestEngine(t, Params{Channels: 3, Divisions: []int{1, 1, 1}})

	e.Control().SignalButtonB(100)
	e.Tick(0)
	assert.Equal(t, 1, e.Selected())

	e.Control().SignalButtonB(100)
	e.Tick(1)
	e.Control().SignalButtonB(100)
	e.Tick(2)
	assert.Equal(t, 0, e.Selected(), "selection wraps around")
}

func TestButtonB_LongPressTogglesUnclocked(t *testing.T) {
	e, _ := newTestEngine(t, Params{Channels: 1, Divisions: []int{1}})
	require.False(t, e.Unclocked())

	e.Control().SignalButtonB(2500)
	e.Tick(0)
	assert.True(t, e.Unclocked())
	assert.True(t, e.Running(), "entering unclocked mode starts the engine")

	e.Control().SignalButtonB(2500)
	e.Tick(1)
	assert.False(t, e.Unclocked())
}

func TestKnobA_SetsPatternLengthWhenClocked(t *testing.T) {
	e, _ := newTestEngine(t, Params{Channels: 1, Divisions: []int{1}})

	e.SetKnobA(50)
	assert.Equal(t, 16, e.PatternLength())

	e.SetKnobA(100)
	assert.Equal(t, 32, e.PatternLength())

	e.SetKnobA(1)
	assert.Equal(t, 1, e.PatternLength(), "knob floor selects LFO mode")
}

func TestKnobA_HysteresisSuppressesJitter(t *testing.T) {
	e, _ := newTestEngine(t, Params{Channels: 1, Divisions: []int{1}})

	e.SetKnobA(50)
	want := e.PatternLength()

	e.SetKnobA(50.5)
	assert.Equal(t, want, e.PatternLength(), "sub-tolerance movement must be ignored")

	e.SetKnobA(55)
	assert.NotEqual(t, want, e.PatternLength())
}

func TestKnobA_SetsIntervalWhenUnclocked(t *testing.T) {
	e, _ := newTestEngine(t, Params{Channels: 1, Divisions: []int{1}, Unclocked: true})

	e.SetKnobA(50)
	assert.Equal(t, 50*(MaxClockMs/MinClockMs)/2.0, e.AverageIntervalMs())
}

func TestKnobA_ClampsOutOfRangeReadings(t *testing.T) {
	e, _ := newTestEngine(t, Params{Channels: 1, Divisions: []int{1}, Unclocked: true})

	// A raw zero reading must behave like the knob floor, not zero the
	// free-run interval (which would divide the rate formula by zero and
	// make the self-clock fire on every Tick).
	e.SetKnobA(0)
	assert.Equal(t, 1*(MaxClockMs/MinClockMs)/2.0, e.AverageIntervalMs())
	assert.GreaterOrEqual(t, e.Channel(0).SampleRate(), 1)
	assert.LessOrEqual(t, e.Channel(0).SampleRate(), MaxSampleRate)

	e.SetKnobA(150)
	assert.Equal(t, float64(KnobRange)*(MaxClockMs/MinClockMs)/2.0, e.AverageIntervalMs())
}

func TestKnobB_SetsSelectedDivision(t *testing.T) {
	e, _ := newTestEngine(t, Params{Channels: 2, Divisions: []int{1, 1}})
	e.SetAverageIntervalMs(MaxClockMs)
	rateBefore := e.Channel(0).SampleRate()

	e.SetKnobB(8)
	assert.Equal(t, 8, e.Channel(0).Division)
	assert.Equal(t, 1, e.Channel(1).Division, "only the selected channel changes")
	assert.Less(t, e.Channel(0).SampleRate(), rateBefore, "rates recalculate on division change")
}

func TestSaveThrottle(t *testing.T) {
	saves := 0
	e, _ := newTestEngine(t, Params{
		Channels:  1,
		Divisions: []int{1},
		SaveFunc:  func() { saves++ },
	})

	e.MarkPendingSave()
	e.Tick(100)
	assert.Zero(t, saves, "save must wait for the throttle interval")

	e.Tick(MinMsBetweenSaves)
	assert.Equal(t, 1, saves)

	e.Tick(MinMsBetweenSaves + 100)
	assert.Equal(t, 1, saves, "a completed save clears the pending flag")

	e.MarkPendingSave()
	e.Tick(MinMsBetweenSaves + 200)
	assert.Equal(t, 1, saves, "second save is still throttled")

	e.MarkPendingSave()
	e.Tick(2*MinMsBetweenSaves + 100)
	assert.Equal(t, 2, saves)
}
