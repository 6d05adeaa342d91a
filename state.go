package cvslew

import (
	"encoding/json"
	"fmt"

	"github.com/tphakala/go-cv-slew/internal/shape"
)

// State is the serializable configuration blob handed to the storage
// collaborator. It round-trips through JSON verbatim; everything the
// engine needs to resume where it left off is here.
type State struct {
	// PatternBanks holds every channel's pattern bank:
	// [channel][bank slot][step] voltage.
	PatternBanks [][][]float64 `json:"cvPatternBanks"`

	// ActivePattern is the bank slot in use.
	ActivePattern int `json:"cvPattern"`

	// SlewShapes is each channel's shape selector.
	SlewShapes []int `json:"outputSlewModes"`

	// Divisions is each channel's clock division.
	Divisions []int `json:"outputDivisions"`

	// PatternLength is the shared pattern length (1 = LFO mode).
	PatternLength int `json:"patternLength"`

	// ClockIntervalMs is the learned average interval between clocks.
	ClockIntervalMs float64 `json:"msBetweenClocks"`

	// Unclocked records free-running mode.
	Unclocked bool `json:"unclockedMode"`

	// Selected is the channel targeted by the control surface.
	Selected int `json:"selectedOutput"`
}

// Encode serializes the state blob.
func (s State) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// DecodeState deserializes a state blob previously produced by Encode.
func DecodeState(data []byte) (State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("decoding engine state: %w", err)
	}
	return s, nil
}

// Snapshot captures the engine's persistable configuration.
func (e *Engine) Snapshot() State {
	core := e.core
	n := core.Channels()

	s := State{
		PatternBanks:    core.Bank().Snapshot(),
		ActivePattern:   core.ActiveSlot(),
		SlewShapes:      make([]int, n),
		Divisions:       make([]int, n),
		PatternLength:   core.PatternLength(),
		ClockIntervalMs: core.AverageIntervalMs(),
		Unclocked:       core.Unclocked(),
		Selected:        core.Selected(),
	}
	for i := 0; i < n; i++ {
		ch := core.Channel(i)
		s.SlewShapes[i] = int(ch.Shape)
		s.Divisions[i] = ch.Division
	}
	return s
}

// Restore applies a previously captured state. Entries that fail
// validation are skipped, keeping the current value; the pattern bank
// takes every full-length pattern the snapshot provides and ignores the
// rest.
func (e *Engine) Restore(s State) error {
	core := e.core

	if s.PatternLength != 0 {
		if err := core.SetPatternLength(s.PatternLength); err != nil {
			return err
		}
	}

	core.Bank().Restore(s.PatternBanks)
	core.SetActiveSlot(s.ActivePattern)

	for i := 0; i < core.Channels(); i++ {
		ch := core.Channel(i)
		if i < len(s.SlewShapes) && shape.Shape(s.SlewShapes[i]).Valid() {
			ch.Shape = shape.Shape(s.SlewShapes[i])
		}
		if i < len(s.Divisions) && s.Divisions[i] >= 1 && s.Divisions[i] <= MaxDivision {
			ch.Division = s.Divisions[i]
		}
	}

	core.SetSelected(s.Selected)
	core.SetUnclocked(s.Unclocked)
	core.SetAverageIntervalMs(s.ClockIntervalMs)
	core.MarkPendingSave()
	return nil
}
