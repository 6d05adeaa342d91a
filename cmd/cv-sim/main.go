// Command cv-sim drives the slew engine with a simulated jittery clock
// and reports per-channel playback statistics. It is a bench tool for
// checking how the adaptive sample-rate correction behaves under
// imperfect timing.
//
// Usage:
//
//	cv-sim -bpm 120 -jitter 5 -duration 30s
//	cv-sim -bpm 90 -seed 42 -lfo
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/tphakala/simd/f64"

	cvslew "github.com/tphakala/go-cv-slew"
)

const (
	defaultBPM      = 120
	defaultJitterMs = 5
	tickStepMs      = 1
	maxVolts        = 10.0
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	bpm := flag.Int("bpm", defaultBPM, "simulated clock tempo in beats per minute")
	jitterMs := flag.Int("jitter", defaultJitterMs, "uniform clock jitter in milliseconds (+/-)")
	duration := flag.Duration("duration", 30*time.Second, "simulated run time")
	seed := flag.Int64("seed", 0, "random seed (0 = current time)")
	lfo := flag.Bool("lfo", false, "run in LFO mode (pattern length 1)")
	flag.Parse()

	if *bpm <= 0 {
		return fmt.Errorf("bpm must be positive, got %d", *bpm)
	}
	if *jitterMs < 0 {
		return fmt.Errorf("jitter must not be negative, got %d", *jitterMs)
	}

	intervalMs := int64(60_000 / *bpm)
	if intervalMs < cvslew.MinClockMs {
		return fmt.Errorf("bpm %d gives a %dms clock, below the %dms floor", *bpm, intervalMs, cvslew.MinClockMs)
	}

	patternLength := 0
	if *lfo {
		patternLength = 1
	}

	// One channel per shape so a single run exercises every curve.
	shapes := make([]cvslew.Shape, cvslew.NumShapes)
	for i := range shapes {
		shapes[i] = cvslew.Shape(i)
	}

	engine, err := cvslew.New(&cvslew.Config{
		Channels:        cvslew.NumShapes,
		MaxVoltage:      maxVolts,
		Divisions:       []int{1, 2, 4, 8, 1, 2, 4, 8},
		Shapes:          shapes,
		PatternLength:   patternLength,
		ClockIntervalMs: intervalMs,
		Seed:            *seed,
	})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	seedVal := *seed
	if seedVal == 0 {
		seedVal = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seedVal))

	stats := simulate(engine, rng, intervalMs, int64(*jitterMs), duration.Milliseconds())

	report(engine, stats, *bpm, intervalMs)
	return nil
}

// channelStats accumulates per-channel observations across the run.
type channelStats struct {
	voltages     []float64
	maxUnderrun  int
	lastOverrun  int
	worstOverrun int
}

// simulate runs the engine over durationMs of virtual time, firing
// jittered clock edges and ticking every millisecond.
func simulate(engine *cvslew.Engine, rng *rand.Rand, intervalMs, jitterMs, durationMs int64) []channelStats {
	stats := make([]channelStats, engine.Channels())

	nextEdge := int64(0)
	for now := int64(0); now < durationMs; now += tickStepMs {
		if now >= nextEdge {
			engine.ClockEdge(now)
			jitter := int64(0)
			if jitterMs > 0 {
				jitter = rng.Int63n(2*jitterMs+1) - jitterMs
			}
			nextEdge = now + intervalMs + jitter
		}

		engine.Tick(now)

		for ch := range stats {
			s := &stats[ch]
			s.voltages = append(s.voltages, engine.Voltage(ch))
			if u := engine.Underruns(ch); u > s.maxUnderrun {
				s.maxUnderrun = u
			}
			s.lastOverrun = engine.OverrunSamples(ch)
			if abs(s.lastOverrun) > abs(s.worstOverrun) {
				s.worstOverrun = s.lastOverrun
			}
		}
	}

	return stats
}

func report(engine *cvslew.Engine, stats []channelStats, bpm int, intervalMs int64) {
	fmt.Printf("Simulated %d channels at %d BPM (%dms clock)\n", engine.Channels(), bpm, intervalMs)
	fmt.Printf("Learned clock average: %.1fms\n\n", engine.AverageClockMs())

	fmt.Println("ch  shape              div  rate  mean V  last V  max underrun  worst overrun")
	for ch := range stats {
		s := &stats[ch]
		mean := 0.0
		if len(s.voltages) > 0 {
			mean = f64.Sum(s.voltages) / float64(len(s.voltages))
		}
		last := 0.0
		if n := len(s.voltages); n > 0 {
			last = s.voltages[n-1]
		}
		fmt.Printf("%2d  %-17s  %3d  %4d  %6.3f  %6.3f  %12d  %13d\n",
			ch,
			engine.SelectedShape(ch).String(),
			engine.Division(ch),
			engine.SampleRate(ch),
			mean,
			last,
			s.maxUnderrun,
			s.worstOverrun,
		)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
