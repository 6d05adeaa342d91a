package cvslew_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cvslew "github.com/tphakala/go-cv-slew"
)

// recordingWriter captures voltages for assertions.
type recordingWriter struct {
	volts map[int][]float64
	offs  int
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{volts: make(map[int][]float64)}
}

func (w *recordingWriter) SetVoltage(channel int, volts float64) {
	w.volts[channel] = append(w.volts[channel], volts)
}

func (w *recordingWriter) Off(channel int) { w.offs++ }

func allShapes() []cvslew.Shape {
	return []cvslew.Shape{
		cvslew.ShapeStepUpStepDown,
		cvslew.ShapeLinear,
		cvslew.ShapeSmooth,
		cvslew.ShapeExpUpExpDown,
		cvslew.ShapeSharkTooth,
		cvslew.ShapeSharkToothReverse,
		cvslew.ShapeLogUpStepDown,
		cvslew.ShapeStepUpExpDown,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *cvslew.Config
		wantErr bool
	}{
		{
			name:   "minimal valid",
			config: &cvslew.Config{MaxVoltage: 10},
		},
		{
			name:    "zero max voltage",
			config:  &cvslew.Config{},
			wantErr: true,
		},
		{
			name:    "negative max voltage",
			config:  &cvslew.Config{MaxVoltage: -5},
			wantErr: true,
		},
		{
			name:    "division too large",
			config:  &cvslew.Config{MaxVoltage: 10, Divisions: []int{9}},
			wantErr: true,
		},
		{
			name:    "division too small",
			config:  &cvslew.Config{MaxVoltage: 10, Divisions: []int{0}},
			wantErr: true,
		},
		{
			name:    "undefined shape",
			config:  &cvslew.Config{MaxVoltage: 10, Shapes: []cvslew.Shape{cvslew.Shape(42)}},
			wantErr: true,
		},
		{
			name:    "pattern length past maximum",
			config:  &cvslew.Config{MaxVoltage: 10, PatternLength: cvslew.MaxStepLength + 1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, cvslew.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_NilConfig(t *testing.T) {
	_, err := cvslew.New(nil)
	assert.ErrorIs(t, err, cvslew.ErrInvalidConfig)
}

func TestNew_Defaults(t *testing.T) {
	eng, err := cvslew.New(&cvslew.Config{MaxVoltage: 10, Seed: 1})
	require.NoError(t, err)

	assert.Equal(t, cvslew.DefaultChannels, eng.Channels())
	assert.Equal(t, 8, eng.PatternLength())
	assert.False(t, eng.Running())

	// Default divisions repeat 1, 2, 4.
	assert.Equal(t, 1, eng.Division(0))
	assert.Equal(t, 2, eng.Division(1))
	assert.Equal(t, 4, eng.Division(2))
	assert.Equal(t, 1, eng.Division(3))
}

func TestRenderSegment_LinearKnownValues(t *testing.T) {
	out, err := cvslew.RenderSegment(cvslew.ShapeLinear, 0, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2, 4, 6, 8}, out)
}

func TestRenderSegment_StepLeavesSettleSample(t *testing.T) {
	out, err := cvslew.RenderSegment(cvslew.ShapeStepUpStepDown, 0, 5, 8)
	require.NoError(t, err)
	assert.Len(t, out, 7)
}

func TestRenderSegment_Invalid(t *testing.T) {
	_, err := cvslew.RenderSegment(cvslew.Shape(99), 0, 10, 8)
	assert.ErrorIs(t, err, cvslew.ErrInvalidConfig)

	_, err = cvslew.RenderSegment(cvslew.ShapeLinear, 0, 10, cvslew.BufferCapacity+1)
	assert.ErrorIs(t, err, cvslew.ErrInvalidConfig)

	_, err = cvslew.RenderSegment(cvslew.ShapeLinear, 0, 10, -1)
	assert.ErrorIs(t, err, cvslew.ErrInvalidConfig)
}

func TestRenderLFOCycle_SpansBothLegs(t *testing.T) {
	out, err := cvslew.RenderLFOCycle(cvslew.ShapeSmooth, 0, 10, 16)
	require.NoError(t, err)
	require.Len(t, out, 32)

	assert.InDelta(t, 0, out[0], 1e-3, "cycle begins at the low extreme")
	assert.InDelta(t, 10, out[16], 1e-3, "falling leg begins at the high extreme")
}

func TestEngine_EndToEndClockedRun(t *testing.T) {
	w := newRecordingWriter()
	eng, err := cvslew.New(&cvslew.Config{
		MaxVoltage: 10,
		Shapes:     allShapes()[:6],
		Seed:       1,
		Output:     w,
	})
	require.NoError(t, err)

	// A steady 100 ms clock with dense ticks in between.
	now := int64(0)
	for edge := 0; edge < 20; edge++ {
		eng.ClockEdge(now)
		for ts := now; ts < now+100; ts += 5 {
			eng.Tick(ts)
		}
		now += 100
	}

	assert.True(t, eng.Running())
	require.NotEmpty(t, w.volts)
	for ch, emitted := range w.volts {
		for i, v := range emitted {
			assert.GreaterOrEqualf(t, v, -1e-3, "channel %d sample %d below range", ch, i)
			assert.LessOrEqualf(t, v, 10+1e-3, "channel %d sample %d above range", ch, i)
		}
	}
}

func TestEngine_ResetSilencesOutputs(t *testing.T) {
	w := newRecordingWriter()
	eng, err := cvslew.New(&cvslew.Config{MaxVoltage: 10, Seed: 1, Output: w})
	require.NoError(t, err)

	now := int64(0)
	for edge := 0; edge < 3; edge++ {
		eng.ClockEdge(now)
		eng.Tick(now)
		now += 100
	}
	require.True(t, eng.Running())

	eng.Tick(now + cvslew.MaxClockMs + 1)
	assert.False(t, eng.Running())
	assert.Equal(t, eng.Channels(), w.offs)
}

func TestEngine_UnclockedFreeRuns(t *testing.T) {
	w := newRecordingWriter()
	eng, err := cvslew.New(&cvslew.Config{
		MaxVoltage:      10,
		Unclocked:       true,
		ClockIntervalMs: 100,
		Seed:            1,
		Output:          w,
	})
	require.NoError(t, err)
	require.True(t, eng.Running())

	for ts := int64(0); ts < 1000; ts += 5 {
		eng.Tick(ts)
	}

	assert.NotEmpty(t, w.volts, "free-running engine must emit without external clocks")
}
