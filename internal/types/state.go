package types

import (
	"slices"
	"time"
)

// Pattern values recorded by commands that are not named patterns.
const (
	PatternCleared = "x"
	PatternLeds    = "l"
	PatternDpcSeq  = "rdpc"
	PatternFpmSeq  = "rfpm"
)

// ColorState is the last acknowledged color selection.
type ColorState struct {
	Name string `json:"name" example:"green" doc:"Preset name or 'custom'"`
	R    int    `json:"r,omitempty" doc:"Red level for custom colors"`
	G    int    `json:"g,omitempty" doc:"Green level for custom colors"`
	B    int    `json:"b,omitempty" doc:"Blue level for custom colors"`
}

// DeviceState is the host-side view of the illumination device. Nil pointers
// and empty strings mean the value is not known.
type DeviceState struct {
	SessionID       string      `json:"session_id" doc:"Owning session identifier"`
	Pattern         string      `json:"pattern,omitempty" example:"bf" doc:"Last drawn pattern mnemonic"`
	Color           *ColorState `json:"color,omitempty" doc:"Last acknowledged color"`
	Brightness      *int        `json:"brightness,omitempty" example:"128" doc:"Brightness 0-255"`
	NA              *int        `json:"na,omitempty" example:"25" doc:"Numerical aperture x100"`
	ArrayDistanceMm *int        `json:"array_distance_mm,omitempty" example:"50" doc:"Sample to array distance"`
	LedSubset       []int       `json:"led_subset,omitempty" doc:"LEDs drawn by the last l command"`
	AutoClear       *bool       `json:"auto_clear,omitempty" doc:"Auto clear between patterns"`
	SequenceActive  bool        `json:"sequence_active" doc:"A DPC/FPM sequence is running on the device"`
	Armed           bool        `json:"armed" doc:"A clear was acknowledged since the last pattern or sequence"`
	Stale           bool        `json:"stale" doc:"Cached values may not match the device"`
	UpdatedAt       time.Time   `json:"updated_at" doc:"Time of the last state change"`
}

// Clone returns a copy that shares no mutable memory with s.
func (s DeviceState) Clone() DeviceState {
	out := s
	out.LedSubset = slices.Clone(s.LedSubset)
	if s.Color != nil {
		c := *s.Color
		out.Color = &c
	}
	out.Brightness = clonePtr(s.Brightness)
	out.NA = clonePtr(s.NA)
	out.ArrayDistanceMm = clonePtr(s.ArrayDistanceMm)
	out.AutoClear = clonePtr(s.AutoClear)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
