// Package script loads and runs declarative acquisition scenarios.
//
// A script is a TOML file with an ordered list of [[step]] tables. Each step
// either names a raw wire mnemonic or uses exactly one typed action key:
//
//	name = "dpc demo"
//
//	[[step]]
//	clear = true
//
//	[[step]]
//	color = "red"
//	brightness = 64
//
//	[[step]]
//	pattern = "dpc.t"
//	wait_ms = 250
//	repeat = 4
//
//	[[step]]
//	command = "x"
//
//	[[step]]
//	dpc = { delay_ms = 100, acquisitions = 2, trigger_modes = [-1] }
//
// brightness, na and distance_mm may accompany another action; they are sent
// first in that order. A step with only wait_ms pauses.
package script

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/illuminode/internal/protocol"
)

// Script is a named list of steps.
type Script struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
	Steps       []Step `toml:"step"`
}

// Step is one entry of a script.
type Step struct {
	Command string `toml:"command"`

	Clear      bool          `toml:"clear"`
	Reset      bool          `toml:"reset"`
	Pattern    string        `toml:"pattern"`
	Color      string        `toml:"color"`
	RGB        []int         `toml:"rgb"`
	Brightness *int          `toml:"brightness"`
	NA         *int          `toml:"na"`
	DistanceMm *int          `toml:"distance_mm"`
	Leds       []int         `toml:"leds"`
	AutoClear  *bool         `toml:"autoclear"`
	Trigger    *TriggerStep  `toml:"trigger"`
	Dpc        *SequenceStep `toml:"dpc"`
	Fpm        *SequenceStep `toml:"fpm"`

	WaitMs int `toml:"wait_ms"`
	Repeat int `toml:"repeat"`
}

// TriggerStep configures one trigger channel.
type TriggerStep struct {
	Channel      int `toml:"channel"`
	PulseWidthUs int `toml:"pulse_width_us"`
	StartDelayUs int `toml:"start_delay_us"`
}

// SequenceStep holds DPC or FPM sequence parameters.
type SequenceStep struct {
	DelayMs      int   `toml:"delay_ms"`
	Acquisitions int   `toml:"acquisitions"`
	MaxNA        int   `toml:"max_na"`
	TriggerModes []int `toml:"trigger_modes"`
}

func (s SequenceStep) params(fpm bool) (protocol.SequenceParams, error) {
	if len(s.TriggerModes) > protocol.TriggerChannels {
		return protocol.SequenceParams{}, fmt.Errorf("trigger_modes has %d entries, at most %d allowed",
			len(s.TriggerModes), protocol.TriggerChannels)
	}
	if !fpm && s.MaxNA != 0 {
		return protocol.SequenceParams{}, errors.New("max_na only applies to fpm")
	}
	p := protocol.SequenceParams{DelayMs: s.DelayMs, Acquisitions: s.Acquisitions, MaxNA: s.MaxNA}
	for i, m := range s.TriggerModes {
		p.Triggers[i] = protocol.TriggerMode(m)
	}
	return p, nil
}

// Requests returns the commands one iteration of the step sends, in order.
// A wait-only step returns none.
func (s Step) Requests() ([]protocol.Request, error) {
	var (
		reqs    []protocol.Request
		actions int
	)
	add := func(r protocol.Request) {
		reqs = append(reqs, r)
		actions++
	}

	if s.Command != "" {
		req, err := protocol.Parse(s.Command)
		if err != nil {
			return nil, err
		}
		add(req)
	}
	if s.Brightness != nil {
		reqs = append(reqs, protocol.SetBrightness{Value: *s.Brightness})
	}
	if s.NA != nil {
		reqs = append(reqs, protocol.SetNA{Value: *s.NA})
	}
	if s.DistanceMm != nil {
		reqs = append(reqs, protocol.SetArrayDistance{Millimeters: *s.DistanceMm})
	}
	if s.Clear {
		add(protocol.Clear{})
	}
	if s.Reset {
		add(protocol.Reset{})
	}
	if s.Pattern != "" {
		add(protocol.ShowPattern{Name: protocol.Pattern(s.Pattern)})
	}
	switch {
	case s.Color != "" && s.RGB != nil:
		return nil, errors.New("color and rgb are mutually exclusive")
	case s.Color != "":
		add(protocol.SetColor{Color: protocol.PresetColor(protocol.ColorPreset(s.Color))})
	case s.RGB != nil:
		if len(s.RGB) != 3 {
			return nil, fmt.Errorf("rgb needs 3 values, got %d", len(s.RGB))
		}
		add(protocol.SetColor{Color: protocol.RGB(s.RGB[0], s.RGB[1], s.RGB[2])})
	}
	if s.Leds != nil {
		add(protocol.DrawLeds{Indices: s.Leds})
	}
	if s.AutoClear != nil {
		add(protocol.SetAutoClear{Enabled: *s.AutoClear})
	}
	if s.Trigger != nil {
		add(protocol.SetupTrigger{
			Channel:      s.Trigger.Channel,
			PulseWidthUs: s.Trigger.PulseWidthUs,
			StartDelayUs: s.Trigger.StartDelayUs,
		})
	}
	if s.Dpc != nil {
		p, err := s.Dpc.params(false)
		if err != nil {
			return nil, fmt.Errorf("dpc: %w", err)
		}
		add(protocol.RunDpcSequence{Params: p})
	}
	if s.Fpm != nil {
		p, err := s.Fpm.params(true)
		if err != nil {
			return nil, fmt.Errorf("fpm: %w", err)
		}
		add(protocol.RunFpmSequence{Params: p})
	}

	if actions > 1 {
		return nil, fmt.Errorf("step has %d actions, at most one allowed", actions)
	}
	for _, r := range reqs {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	return reqs, nil
}

// Iterations returns how many times the step runs.
func (s Step) Iterations() int {
	return max(s.Repeat, 1)
}

func (s Step) validate() error {
	if s.WaitMs < 0 {
		return fmt.Errorf("wait_ms %d is negative", s.WaitMs)
	}
	if s.Repeat < 0 {
		return fmt.Errorf("repeat %d is negative", s.Repeat)
	}
	reqs, err := s.Requests()
	if err != nil {
		return err
	}
	if len(reqs) == 0 && s.WaitMs == 0 {
		return errors.New("step has no action and no wait_ms")
	}
	return nil
}

// Parse decodes and validates a script. Unknown keys are errors.
func Parse(data []byte) (*Script, error) {
	var s Script
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("parse script: %s", strict.String())
		}
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if len(s.Steps) == 0 {
		return nil, errors.New("script has no steps")
	}
	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return &s, nil
}

// Load reads a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = path
	}
	return s, nil
}
