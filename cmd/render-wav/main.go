// Command render-wav renders slew shape cycles to a WAV file for offline
// inspection of the transition curves in an audio editor.
//
// Usage:
//
//	render-wav -shape smooth out.wav
//	render-wav -shape sharkTooth -cycles 8 -samples 256 out.wav
//	render-wav -shape linear -low 0 -high 5 -rate 8000 out.wav
//
// The output is a mono 16-bit PCM file containing the requested number of
// LFO cycles of the shape, normalized to full scale.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/tphakala/simd/f64"

	cvslew "github.com/tphakala/go-cv-slew"
)

const (
	// CLI defaults
	defaultSamplesPerSegment = 128
	defaultCycles            = 4
	defaultHighVolts         = 10.0
	defaultSampleRate        = 4000

	// Output format
	bitDepth       = 16
	monoChannels   = 1
	pcmAudioFormat = 1
	maxInt16       = 32767.0
)

// shapesByName maps CLI names to shape selectors.
var shapesByName = map[string]cvslew.Shape{
	"step":          cvslew.ShapeStepUpStepDown,
	"linear":        cvslew.ShapeLinear,
	"smooth":        cvslew.ShapeSmooth,
	"expUpExpDown":  cvslew.ShapeExpUpExpDown,
	"sharkTooth":    cvslew.ShapeSharkTooth,
	"sharkToothRev": cvslew.ShapeSharkToothReverse,
	"logUpStepDown": cvslew.ShapeLogUpStepDown,
	"stepUpExpDown": cvslew.ShapeStepUpExpDown,
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	shapeName := flag.String("shape", "smooth", "Slew shape to render: "+shapeNames())
	low := flag.Float64("low", 0, "Low voltage extreme")
	high := flag.Float64("high", defaultHighVolts, "High voltage extreme")
	samples := flag.Int("samples", defaultSamplesPerSegment, "Samples per rising/falling segment")
	cycles := flag.Int("cycles", defaultCycles, "Number of LFO cycles to render")
	rate := flag.Int("rate", defaultSampleRate, "Output sample rate in Hz")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return fmt.Errorf("expected exactly one output file, got %d arguments", flag.NArg())
	}
	outPath := flag.Arg(0)

	sh, ok := shapesByName[*shapeName]
	if !ok {
		return fmt.Errorf("unknown shape %q, want one of: %s", *shapeName, shapeNames())
	}
	if *cycles < 1 {
		return fmt.Errorf("cycles must be at least 1, got %d", *cycles)
	}

	cycle, err := cvslew.RenderLFOCycle(sh, *low, *high, *samples)
	if err != nil {
		return err
	}
	if len(cycle) == 0 {
		return fmt.Errorf("shape %q produced no samples for %d per segment", *shapeName, *samples)
	}

	volts := make([]float64, 0, len(cycle)*(*cycles))
	for i := 0; i < *cycles; i++ {
		volts = append(volts, cycle...)
	}

	pcm := voltsToPCM(volts, *low, *high)

	if err := writeWAV(outPath, pcm, *rate); err != nil {
		return err
	}

	log.Printf("wrote %d samples (%d cycles of %s) to %s", len(pcm), *cycles, *shapeName, outPath)
	return nil
}

// voltsToPCM maps voltages in [low, high] onto full-scale 16-bit PCM.
func voltsToPCM(volts []float64, low, high float64) []int {
	span := high - low
	if span <= 0 {
		span = 1
	}

	// Normalize to [0, 2], then center to [-1, 1].
	scaled := make([]float64, len(volts))
	f64.Scale(scaled, volts, 2/span)
	offset := -1 - 2*low/span

	pcm := make([]int, len(scaled))
	for i, v := range scaled {
		pcm[i] = int((v + offset) * maxInt16)
	}
	return pcm
}

// writeWAV encodes mono 16-bit PCM samples to path.
func writeWAV(path string, pcm []int, rate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}

	enc := wav.NewEncoder(f, rate, bitDepth, monoChannels, pcmAudioFormat)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: monoChannels, SampleRate: rate},
		Data:           pcm,
		SourceBitDepth: bitDepth,
	}

	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return fmt.Errorf("writing samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("finalizing WAV: %w", err)
	}
	return f.Close()
}

func shapeNames() string {
	names := make([]string, 0, len(shapesByName))
	for name := range shapesByName {
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}
